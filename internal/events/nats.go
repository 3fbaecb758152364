package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// Consumer tuning for outlier event delivery. Runs publish at most a
// few events per segment, so the flow-control window stays small.
const (
	natsMaxAckPending = 100
	natsAckWait       = 30 * time.Second
	natsMaxDeliver    = 3
)

// NATSQueue implements Queue on NATS JetStream. Every subscribed
// subject gets a file-backed stream and a durable consumer, so events
// survive both broker and subscriber restarts.
type NATSQueue struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	mu   sync.RWMutex
	subs map[string]*nats.Subscription
}

// newNATSQueue dials the server and layers JetStream on top.
func newNATSQueue(url string) (*NATSQueue, error) {
	conn, err := nats.Connect(url,
		nats.Name("driftwatch"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	q, err := newNATSQueueWithConn(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return q, nil
}

// newNATSQueueWithConn wraps an existing connection (used in tests).
func newNATSQueueWithConn(conn *nats.Conn) (*NATSQueue, error) {
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return &NATSQueue{
		conn: conn,
		js:   js,
		subs: make(map[string]*nats.Subscription),
	}, nil
}

// Publish publishes a message and waits for the stream acknowledgment.
// Outlier runs emit few events, so the sync round-trip is acceptable
// in exchange for knowing the event was persisted.
func (q *NATSQueue) Publish(ctx context.Context, subject string, data []byte) error {
	_, err := q.js.Publish(subject, data, nats.Context(ctx))
	if err != nil {
		return fmt.Errorf("failed to publish to subject %s: %w", subject, err)
	}
	return nil
}

// PublishBatch queues all messages asynchronously, waits once for the
// whole batch, and returns how many were acknowledged.
func (q *NATSQueue) PublishBatch(ctx context.Context, messages []BatchMessage) (int, error) {
	if len(messages) == 0 {
		return 0, nil
	}

	futures := make([]nats.PubAckFuture, 0, len(messages))
	for _, msg := range messages {
		future, err := q.js.PublishAsync(msg.Subject, msg.Data)
		if err != nil {
			// A message that failed to queue does not abort the rest
			continue
		}
		futures = append(futures, future)
	}

	select {
	case <-q.js.PublishAsyncComplete():
	case <-ctx.Done():
		return len(futures), fmt.Errorf("timeout waiting for batch publish: %w", ctx.Err())
	}

	// Every future has resolved by now; count the ones that failed.
	failed := 0
	for _, future := range futures {
		select {
		case <-future.Err():
			failed++
		default:
		}
	}

	return len(futures) - failed, nil
}

// ensureStream creates the file-backed stream for a subject if it does
// not exist yet, and returns the stream name.
func (q *NATSQueue) ensureStream(subject string) (string, error) {
	name := "driftwatch-" + sanitizeStreamName(subject)

	_, err := q.js.StreamInfo(name)
	if err == nil {
		return name, nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return "", fmt.Errorf("failed to look up stream for subject %s: %w", subject, err)
	}

	_, err = q.js.AddStream(&nats.StreamConfig{
		Name:     name,
		Subjects: []string{subject},
		Storage:  nats.FileStorage,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create stream for subject %s: %w", subject, err)
	}
	return name, nil
}

// Subscribe binds a durable consumer to the subject's stream. Failed
// handlers NAK, and the server redelivers up to natsMaxDeliver times.
func (q *NATSQueue) Subscribe(subject string, handler MessageHandler) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, dup := q.subs[subject]; dup {
		return fmt.Errorf("already subscribed to subject: %s", subject)
	}

	if _, err := q.ensureStream(subject); err != nil {
		return err
	}

	durable := "consumer-" + sanitizeStreamName(subject)
	sub, err := q.js.Subscribe(subject, func(msg *nats.Msg) {
		if err := handler(msg.Data); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.Durable(durable),
		nats.ManualAck(),
		nats.MaxAckPending(natsMaxAckPending),
		nats.AckWait(natsAckWait),
		nats.MaxDeliver(natsMaxDeliver),
		nats.DeliverAll(),
	)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", subject, err)
	}

	q.subs[subject] = sub
	return nil
}

// Unsubscribe removes the durable consumer binding for a subject.
func (q *NATSQueue) Unsubscribe(subject string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	sub, ok := q.subs[subject]
	if !ok {
		return fmt.Errorf("not subscribed to subject: %s", subject)
	}

	if err := sub.Unsubscribe(); err != nil {
		return fmt.Errorf("failed to unsubscribe from subject %s: %w", subject, err)
	}

	delete(q.subs, subject)
	return nil
}

// Close drops all subscriptions and closes the connection.
func (q *NATSQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for subject, sub := range q.subs {
		_ = sub.Unsubscribe()
		delete(q.subs, subject)
	}

	q.conn.Close()
	return nil
}

// sanitizeStreamName maps a subject to a legal stream or consumer name.
// Only A-Z, a-z, 0-9, dash and underscore are allowed.
func sanitizeStreamName(subject string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, subject)
}
