package events

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

func kafkaBrokers() []string {
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		return []string{brokers}
	}
	return []string{"localhost:9092"}
}

// kafkaQueueForTest skips unless KAFKA_TEST=1. kafka-go connects lazily,
// so reachability cannot be probed cheaply at construction time.
func kafkaQueueForTest(t *testing.T) *KafkaQueue {
	t.Helper()

	if os.Getenv("KAFKA_TEST") != "1" {
		t.Skip("Kafka not available, skipping test")
	}

	q, err := newKafkaQueue(KafkaConfig{Brokers: kafkaBrokers(), GroupID: "driftwatch-test-group"})
	if err != nil {
		t.Fatalf("Failed to create Kafka queue: %v", err)
	}
	t.Cleanup(func() { _ = q.Close() })
	return q
}

func TestNewKafkaQueue(t *testing.T) {
	t.Run("requires brokers", func(t *testing.T) {
		for _, brokers := range [][]string{nil, {}} {
			if _, err := newKafkaQueue(KafkaConfig{Brokers: brokers}); err == nil {
				t.Errorf("Expected error for brokers=%v", brokers)
			}
		}
	})

	t.Run("applies defaults", func(t *testing.T) {
		q, err := newKafkaQueue(KafkaConfig{Brokers: []string{"localhost:9092"}})
		if err != nil {
			t.Fatalf("Failed to create Kafka queue: %v", err)
		}
		defer func() { _ = q.Close() }()

		if q.config.GroupID != "driftwatch-group" {
			t.Errorf("Expected GroupID 'driftwatch-group', got '%s'", q.config.GroupID)
		}
		if q.config.BatchSize != 100 || q.config.BatchTimeout != 10*time.Millisecond {
			t.Errorf("Unexpected batch defaults: size=%d timeout=%v", q.config.BatchSize, q.config.BatchTimeout)
		}
		if q.config.MaxRetries != 3 || q.config.RetryBackoff != 100*time.Millisecond {
			t.Errorf("Unexpected retry defaults: retries=%d backoff=%v", q.config.MaxRetries, q.config.RetryBackoff)
		}
		if q.config.CommitRetries != 3 {
			t.Errorf("Expected CommitRetries 3, got %d", q.config.CommitRetries)
		}
	})

	t.Run("keeps the broker list", func(t *testing.T) {
		brokers := []string{"broker1:9092", "broker2:9092", "broker3:9092"}
		q, err := newKafkaQueue(KafkaConfig{Brokers: brokers, GroupID: "ha-group"})
		if err != nil {
			t.Fatalf("Failed to create Kafka queue: %v", err)
		}
		defer func() { _ = q.Close() }()

		if len(q.config.Brokers) != 3 {
			t.Errorf("Expected 3 brokers, got %d", len(q.config.Brokers))
		}
	})
}

// Writers are created lazily and cached per topic
func TestKafkaQueue_WriterPerTopic(t *testing.T) {
	q, err := newKafkaQueue(KafkaConfig{Brokers: []string{"localhost:9092"}})
	if err != nil {
		t.Fatalf("Failed to create Kafka queue: %v", err)
	}
	defer func() { _ = q.Close() }()

	orders := q.writerFor("driftwatch.outliers.orders")
	if orders == nil {
		t.Fatal("Writer should not be nil")
	}
	if orders.Compression != kafka.Snappy {
		t.Errorf("Expected snappy compression, got %v", orders.Compression)
	}
	if again := q.writerFor("driftwatch.outliers.orders"); again != orders {
		t.Error("Same topic should reuse the writer")
	}
	if sensors := q.writerFor("driftwatch.outliers.sensors"); sensors == orders {
		t.Error("Different topics should have different writers")
	}
	if len(q.writers) != 2 {
		t.Errorf("Expected 2 writers, got %d", len(q.writers))
	}
}

func TestKafkaQueue_PublishEvent(t *testing.T) {
	q := kafkaQueueForTest(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	payload := marshaledEvent(t, "run-1", "orders", "store_3", 1)
	if err := q.Publish(ctx, "driftwatch.outliers", payload); err != nil {
		t.Fatalf("Failed to publish: %v", err)
	}
}

func TestKafkaQueue_PublishBatch(t *testing.T) {
	t.Run("empty batch is a no-op", func(t *testing.T) {
		q, err := newKafkaQueue(KafkaConfig{Brokers: []string{"localhost:9092"}})
		if err != nil {
			t.Fatalf("Failed to create Kafka queue: %v", err)
		}
		defer func() { _ = q.Close() }()

		count, err := q.PublishBatch(context.Background(), nil)
		if err != nil {
			t.Fatalf("Empty batch should not error: %v", err)
		}
		if count != 0 {
			t.Errorf("Expected 0 messages, got %d", count)
		}
	})

	t.Run("spans dataset topics", func(t *testing.T) {
		q := kafkaQueueForTest(t)

		messages := []BatchMessage{
			{Subject: "driftwatch.outliers.orders", Data: marshaledEvent(t, "run-2", "orders", "store_1", 1)},
			{Subject: "driftwatch.outliers.orders", Data: marshaledEvent(t, "run-2", "orders", "store_2", 1)},
			{Subject: "driftwatch.outliers.sensors", Data: marshaledEvent(t, "run-2", "sensors", "probe_1", 1)},
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		count, err := q.PublishBatch(ctx, messages)
		if err != nil {
			t.Fatalf("Failed to publish batch: %v", err)
		}
		if count != 3 {
			t.Errorf("Expected 3 messages published, got %d", count)
		}
	})
}

func TestKafkaQueue_Subscribe(t *testing.T) {
	q := kafkaQueueForTest(t)

	topic := "driftwatch.outliers"
	if err := q.Subscribe(topic, func([]byte) error { return nil }); err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}

	q.mu.RLock()
	sub := q.subs[topic]
	q.mu.RUnlock()
	if sub == nil || sub.reader == nil {
		t.Error("Expected subscription and reader to be tracked")
	}

	if err := q.Subscribe(topic, func([]byte) error { return nil }); err == nil {
		t.Error("Expected error for double subscribe")
	}
}

func TestKafkaQueue_UnsubscribeUnknownTopic(t *testing.T) {
	q, err := newKafkaQueue(KafkaConfig{Brokers: []string{"localhost:9092"}})
	if err != nil {
		t.Fatalf("Failed to create Kafka queue: %v", err)
	}
	defer func() { _ = q.Close() }()

	if err := q.Unsubscribe("never.subscribed"); err == nil {
		t.Fatal("Expected error for unsubscribing from unknown topic")
	}
}

func TestKafkaQueue_Close(t *testing.T) {
	t.Run("cancels tracked subscriptions", func(t *testing.T) {
		q, err := newKafkaQueue(KafkaConfig{Brokers: []string{"localhost:9092"}})
		if err != nil {
			t.Fatalf("Failed to create Kafka queue: %v", err)
		}

		// Readers connect lazily, so tracking one is safe without a broker
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers: kafkaBrokers(),
			GroupID: "close-test",
			Topic:   "driftwatch.outliers",
		})
		ctx, cancel := context.WithCancel(context.Background())
		q.mu.Lock()
		q.subs["driftwatch.outliers"] = &kafkaSub{reader: reader, cancel: cancel}
		q.mu.Unlock()

		if err := q.Close(); err != nil {
			t.Fatalf("Failed to close: %v", err)
		}
		if len(q.subs) != 0 {
			t.Error("Subscriptions should be empty after close")
		}
		select {
		case <-ctx.Done():
		default:
			t.Error("Consumer context should be cancelled after close")
		}
	})

	t.Run("closes cached writers", func(t *testing.T) {
		q, err := newKafkaQueue(KafkaConfig{Brokers: []string{"localhost:9092"}})
		if err != nil {
			t.Fatalf("Failed to create Kafka queue: %v", err)
		}

		q.writerFor("driftwatch.outliers.orders")
		q.writerFor("driftwatch.outliers.sensors")

		if err := q.Close(); err != nil {
			t.Fatalf("Failed to close: %v", err)
		}
		if len(q.writers) != 0 {
			t.Error("Writers should be empty after close")
		}
	})

	t.Run("empty queue closes cleanly", func(t *testing.T) {
		q, err := newKafkaQueue(KafkaConfig{Brokers: []string{"localhost:9092"}})
		if err != nil {
			t.Fatalf("Failed to create Kafka queue: %v", err)
		}
		if err := q.Close(); err != nil {
			t.Fatalf("Failed to close empty queue: %v", err)
		}
	})
}
