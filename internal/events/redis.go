package events

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisDialTimeout   = 5 * time.Second
	redisBlockInterval = 5 * time.Second
	redisReadBatch     = 100
)

// RedisConfig holds Redis Streams settings for the events backend.
type RedisConfig struct {
	URL      string // redis:// URL or plain host:port
	Password string
	DB       int
	Stream   string // stream name prefix (default: "driftwatch")
	Group    string // consumer group (default: "driftwatch-group")
	Consumer string // consumer name (default: hostname)
}

// withDefaults returns a copy of cfg with unset fields filled in.
func (cfg RedisConfig) withDefaults() RedisConfig {
	if cfg.Stream == "" {
		cfg.Stream = "driftwatch"
	}
	if cfg.Group == "" {
		cfg.Group = "driftwatch-group"
	}
	if cfg.Consumer == "" {
		hostname, _ := os.Hostname()
		if hostname == "" {
			hostname = "driftwatch-consumer"
		}
		cfg.Consumer = hostname
	}
	return cfg
}

// redisOptions resolves cfg.URL, accepting both redis:// URLs and bare
// addresses.
func redisOptions(cfg RedisConfig) *redis.Options {
	if opts, err := redis.ParseURL(cfg.URL); err == nil {
		return opts
	}
	return &redis.Options{
		Addr:     cfg.URL,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// RedisQueue implements Queue on Redis Streams. Each subject maps to a
// stream; subscriptions read through a consumer group so events survive
// restarts until acknowledged.
type RedisQueue struct {
	client *redis.Client
	config RedisConfig
	mu     sync.RWMutex
	subs   map[string]context.CancelFunc
}

// newRedisQueue connects to Redis and verifies the connection with a
// ping before returning.
func newRedisQueue(cfg RedisConfig) (*RedisQueue, error) {
	client := redis.NewClient(redisOptions(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), redisDialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisQueue{
		client: client,
		config: cfg.withDefaults(),
		subs:   make(map[string]context.CancelFunc),
	}, nil
}

// streamName builds the stream key for a subject.
func (q *RedisQueue) streamName(subject string) string {
	return q.config.Stream + ":" + subject
}

// Publish appends one event to the subject's stream.
func (q *RedisQueue) Publish(ctx context.Context, subject string, data []byte) error {
	stream := q.streamName(subject)
	err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{"data": data},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish to Redis stream %s: %w", stream, err)
	}
	return nil
}

// PublishBatch appends all events in one pipeline round trip and
// returns how many were accepted.
func (q *RedisQueue) PublishBatch(ctx context.Context, messages []BatchMessage) (int, error) {
	if len(messages) == 0 {
		return 0, nil
	}

	pipe := q.client.Pipeline()
	for _, msg := range messages {
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: q.streamName(msg.Subject),
			Values: map[string]interface{}{"data": msg.Data},
		})
	}

	cmds, err := pipe.Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to execute batch publish: %w", err)
	}

	accepted := 0
	for _, cmd := range cmds {
		if cmd.Err() == nil {
			accepted++
		}
	}
	return accepted, nil
}

// Subscribe creates the consumer group for the subject's stream if
// needed and starts a consume loop.
func (q *RedisQueue) Subscribe(subject string, handler MessageHandler) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, dup := q.subs[subject]; dup {
		return fmt.Errorf("already subscribed to subject: %s", subject)
	}

	stream := q.streamName(subject)
	ctx, cancel := context.WithCancel(context.Background())

	err := q.client.XGroupCreateMkStream(ctx, stream, q.config.Group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		cancel()
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	q.subs[subject] = cancel
	go q.consumeLoop(ctx, stream, handler)
	return nil
}

// consumeLoop blocks on XREADGROUP until ctx is cancelled.
func (q *RedisQueue) consumeLoop(ctx context.Context, stream string, handler MessageHandler) {
	for ctx.Err() == nil {
		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.config.Group,
			Consumer: q.config.Consumer,
			Streams:  []string{stream, ">"},
			Count:    redisReadBatch,
			Block:    redisBlockInterval,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			continue
		}

		for _, s := range streams {
			q.handleEntries(ctx, stream, s.Messages, handler)
		}
	}
}

// handleEntries runs the handler for each entry. An entry is
// acknowledged after the handler succeeds, so failed events stay
// pending and the group redelivers them. Entries without a data field
// are acknowledged immediately to keep them out of the pending list.
func (q *RedisQueue) handleEntries(ctx context.Context, stream string, entries []redis.XMessage, handler MessageHandler) {
	for _, entry := range entries {
		data, ok := entry.Values["data"].(string)
		if !ok {
			q.client.XAck(ctx, stream, q.config.Group, entry.ID)
			continue
		}

		if err := handler([]byte(data)); err != nil {
			continue
		}

		q.client.XAck(ctx, stream, q.config.Group, entry.ID)
	}
}

// Unsubscribe stops the consume loop for a subject.
func (q *RedisQueue) Unsubscribe(subject string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	cancel, ok := q.subs[subject]
	if !ok {
		return fmt.Errorf("not subscribed to subject: %s", subject)
	}
	cancel()
	delete(q.subs, subject)
	return nil
}

// Close stops all consume loops and closes the client.
func (q *RedisQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for subject, cancel := range q.subs {
		cancel()
		delete(q.subs, subject)
	}
	return q.client.Close()
}
