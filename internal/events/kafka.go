package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaConfig holds producer and consumer settings for the Kafka backend.
type KafkaConfig struct {
	Brokers       []string
	GroupID       string        // consumer group (default: "driftwatch-group")
	BatchSize     int           // producer batch size (default: 100)
	BatchTimeout  time.Duration // producer linger (default: 10ms)
	RequiredAcks  int           // 0=none, 1=leader, -1=all (default: 1)
	MaxRetries    int           // producer write attempts (default: 3)
	RetryBackoff  time.Duration // wait between commit retries (default: 100ms)
	CommitRetries int           // consumer commit attempts (default: 3)
}

// withDefaults returns a copy of cfg with unset fields filled in.
func (cfg KafkaConfig) withDefaults() KafkaConfig {
	if cfg.GroupID == "" {
		cfg.GroupID = "driftwatch-group"
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
	if cfg.BatchTimeout == 0 {
		cfg.BatchTimeout = 10 * time.Millisecond
	}
	if cfg.RequiredAcks == 0 {
		cfg.RequiredAcks = int(kafka.RequireOne)
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = 100 * time.Millisecond
	}
	if cfg.CommitRetries == 0 {
		cfg.CommitRetries = 3
	}
	return cfg
}

// kafkaSub pairs a consumer-group reader with the cancel func of its
// fetch loop.
type kafkaSub struct {
	reader *kafka.Reader
	cancel context.CancelFunc
}

// KafkaQueue implements Queue on Apache Kafka. Topics map 1:1 to
// subjects, one cached writer per topic; each subscription runs its own
// fetch loop inside the configured consumer group.
type KafkaQueue struct {
	config  KafkaConfig
	mu      sync.RWMutex
	writers map[string]*kafka.Writer
	subs    map[string]*kafkaSub
}

// newKafkaQueue validates cfg and returns a queue. kafka-go connects
// lazily, so no broker is contacted here.
func newKafkaQueue(cfg KafkaConfig) (*KafkaQueue, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers not configured")
	}

	return &KafkaQueue{
		config:  cfg.withDefaults(),
		writers: make(map[string]*kafka.Writer),
		subs:    make(map[string]*kafkaSub),
	}, nil
}

// writerFor returns the cached writer for a topic, creating it on first
// use. Outlier events are JSON, so writers compress with snappy.
func (q *KafkaQueue) writerFor(topic string) *kafka.Writer {
	q.mu.RLock()
	w := q.writers[topic]
	q.mu.RUnlock()
	if w != nil {
		return w
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if w := q.writers[topic]; w != nil {
		return w
	}

	w = &kafka.Writer{
		Addr:         kafka.TCP(q.config.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchSize:    q.config.BatchSize,
		BatchTimeout: q.config.BatchTimeout,
		RequiredAcks: kafka.RequiredAcks(q.config.RequiredAcks),
		MaxAttempts:  q.config.MaxRetries,
		Compression:  kafka.Snappy,
	}
	q.writers[topic] = w
	return w
}

// Publish writes one event to the topic named by subject.
func (q *KafkaQueue) Publish(ctx context.Context, subject string, data []byte) error {
	msg := kafka.Message{Value: data, Time: time.Now()}
	if err := q.writerFor(subject).WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish to kafka topic %s: %w", subject, err)
	}
	return nil
}

// PublishBatch groups events by topic and writes each group in a single
// call. It returns how many events were written; an error is returned
// only when nothing was.
func (q *KafkaQueue) PublishBatch(ctx context.Context, messages []BatchMessage) (int, error) {
	if len(messages) == 0 {
		return 0, nil
	}

	now := time.Now()
	byTopic := make(map[string][]kafka.Message)
	for _, msg := range messages {
		byTopic[msg.Subject] = append(byTopic[msg.Subject], kafka.Message{Value: msg.Data, Time: now})
	}

	written := 0
	var lastErr error
	for topic, batch := range byTopic {
		if err := q.writerFor(topic).WriteMessages(ctx, batch...); err != nil {
			lastErr = fmt.Errorf("topic %s: %w", topic, err)
			continue
		}
		written += len(batch)
	}

	if written == 0 && lastErr != nil {
		return 0, fmt.Errorf("failed to publish batch: %w", lastErr)
	}
	return written, nil
}

// Subscribe joins the consumer group for a topic and starts a fetch
// loop. CommitInterval stays zero so commits are synchronous: an event
// is acknowledged only after its handler returns nil, and unhandled
// events are redelivered to the group.
func (q *KafkaQueue) Subscribe(subject string, handler MessageHandler) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  q.config.Brokers,
		GroupID:  q.config.GroupID,
		Topic:    subject,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())

	q.mu.Lock()
	if _, dup := q.subs[subject]; dup {
		q.mu.Unlock()
		cancel()
		_ = reader.Close()
		return fmt.Errorf("already subscribed to topic: %s", subject)
	}
	q.subs[subject] = &kafkaSub{reader: reader, cancel: cancel}
	q.mu.Unlock()

	go q.fetchLoop(ctx, reader, handler)
	return nil
}

// fetchLoop delivers messages until ctx is cancelled.
func (q *KafkaQueue) fetchLoop(ctx context.Context, reader *kafka.Reader, handler MessageHandler) {
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			continue
		}

		if err := handler(msg.Value); err != nil {
			// Not committed; the group redelivers it
			continue
		}

		q.commit(ctx, reader, msg)
	}
}

// commit acknowledges msg, retrying transient failures.
func (q *KafkaQueue) commit(ctx context.Context, reader *kafka.Reader, msg kafka.Message) {
	for attempt := 0; attempt < q.config.CommitRetries; attempt++ {
		if err := reader.CommitMessages(ctx, msg); err == nil {
			return
		}
		if ctx.Err() != nil {
			return
		}
		time.Sleep(q.config.RetryBackoff)
	}
}

// Unsubscribe stops the fetch loop for a topic and closes its reader.
func (q *KafkaQueue) Unsubscribe(subject string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	sub, ok := q.subs[subject]
	if !ok {
		return fmt.Errorf("not subscribed to topic: %s", subject)
	}

	sub.cancel()
	err := sub.reader.Close()
	delete(q.subs, subject)
	return err
}

// Close stops every subscription and closes all cached writers.
func (q *KafkaQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	var lastErr error
	for subject, sub := range q.subs {
		sub.cancel()
		if err := sub.reader.Close(); err != nil {
			lastErr = err
		}
		delete(q.subs, subject)
	}

	for topic, w := range q.writers {
		if err := w.Close(); err != nil {
			lastErr = err
		}
		delete(q.writers, topic)
	}

	return lastErr
}
