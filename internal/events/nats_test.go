package events

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

// startJetStream runs an embedded NATS server with JetStream enabled
// and returns its client URL. The server is torn down with the test.
func startJetStream(t *testing.T) string {
	t.Helper()

	ns, err := server.NewServer(&server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
	})
	if err != nil {
		t.Fatalf("Failed to create NATS server: %v", err)
	}

	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}

	t.Cleanup(func() {
		ns.Shutdown()
		ns.WaitForShutdown()
	})
	return ns.ClientURL()
}

// newJetStreamQueue starts an embedded server and connects a queue to it
func newJetStreamQueue(t *testing.T) *NATSQueue {
	t.Helper()

	queue, err := newNATSQueue(startJetStream(t))
	if err != nil {
		t.Fatalf("Failed to create NATS queue: %v", err)
	}
	t.Cleanup(func() { _ = queue.Close() })
	return queue
}

// marshaledEvent builds the payload a detection run would publish
func marshaledEvent(t *testing.T, runID, dataset, segment string, outliers int) []byte {
	t.Helper()

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	timestamps := make([]time.Time, outliers)
	for i := range timestamps {
		timestamps[i] = base.AddDate(0, 0, i)
	}

	data, err := (&OutlierEvent{
		RunID:      runID,
		Dataset:    dataset,
		Segment:    segment,
		Column:     "target",
		Method:     "density",
		Timestamps: timestamps,
		DetectedAt: time.Now().UTC(),
	}).Marshal()
	if err != nil {
		t.Fatalf("Failed to marshal event: %v", err)
	}
	return data
}

// waitForCount polls until count reaches want or the timeout expires
func waitForCount(t *testing.T, count *atomic.Int32, want int32, timeout time.Duration) {
	t.Helper()

	deadline := time.After(timeout)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case <-tick.C:
			if count.Load() >= want {
				return
			}
		case <-deadline:
			t.Fatalf("Timeout: received %d of %d messages", count.Load(), want)
		}
	}
}

func TestNATSQueue_Connect(t *testing.T) {
	t.Run("connects and enables JetStream", func(t *testing.T) {
		queue := newJetStreamQueue(t)

		if queue.conn == nil || queue.js == nil {
			t.Error("Expected connection and JetStream context to be initialized")
		}
		if queue.subs == nil {
			t.Error("Expected subscriptions map to be initialized")
		}
	})

	t.Run("rejects unreachable server", func(t *testing.T) {
		queue, err := newNATSQueue("nats://127.0.0.1:1")
		if err == nil {
			_ = queue.Close()
			t.Fatal("Expected error for unreachable server")
		}
	})
}

func TestNATSQueue_WrapsExistingConn(t *testing.T) {
	conn, err := nats.Connect(startJetStream(t))
	if err != nil {
		t.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer conn.Close()

	queue, err := newNATSQueueWithConn(conn)
	if err != nil {
		t.Fatalf("Failed to wrap connection: %v", err)
	}
	defer func() { _ = queue.Close() }()

	if queue.conn != conn {
		t.Error("Expected queue to reuse the provided connection")
	}
}

// An alerter subscribed on the default subject must receive and decode
// the event a detection run publishes.
func TestNATSQueue_DeliversOutlierEvent(t *testing.T) {
	queue := newJetStreamQueue(t)

	received := make(chan *OutlierEvent, 1)
	err := queue.Subscribe(DefaultSubject, func(data []byte) error {
		event, err := UnmarshalOutlierEvent(data)
		if err != nil {
			return err
		}
		received <- event
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	time.Sleep(200 * time.Millisecond)

	payload := marshaledEvent(t, "run-7", "orders", "store_42", 3)
	if err := queue.Publish(context.Background(), DefaultSubject, payload); err != nil {
		t.Fatalf("Failed to publish event: %v", err)
	}

	select {
	case got := <-received:
		if got.RunID != "run-7" {
			t.Errorf("Expected run ID run-7, got %s", got.RunID)
		}
		if got.Dataset != "orders" || got.Segment != "store_42" {
			t.Errorf("Expected orders/store_42, got %s/%s", got.Dataset, got.Segment)
		}
		if len(got.Timestamps) != 3 {
			t.Errorf("Expected 3 outlier timestamps, got %d", len(got.Timestamps))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timeout waiting for outlier event")
	}
}

// One event per flagged segment, all on the same subject
func TestNATSQueue_DeliversRunOfEvents(t *testing.T) {
	queue := newJetStreamQueue(t)

	var count atomic.Int32
	var mu sync.Mutex
	segments := make(map[string]bool)

	err := queue.Subscribe(DefaultSubject, func(data []byte) error {
		event, err := UnmarshalOutlierEvent(data)
		if err != nil {
			return err
		}
		mu.Lock()
		segments[event.Segment] = true
		mu.Unlock()
		count.Add(1)
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	time.Sleep(200 * time.Millisecond)

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		payload := marshaledEvent(t, "run-9", "orders", fmt.Sprintf("store_%d", i), 1)
		if err := queue.Publish(ctx, DefaultSubject, payload); err != nil {
			t.Fatalf("Failed to publish event %d: %v", i, err)
		}
	}

	waitForCount(t, &count, 10, 5*time.Second)

	mu.Lock()
	defer mu.Unlock()
	if len(segments) != 10 {
		t.Errorf("Expected events for 10 distinct segments, got %d", len(segments))
	}
}

// A failing handler NAKs, so JetStream redelivers up to MaxDeliver times
func TestNATSQueue_RedeliversOnHandlerError(t *testing.T) {
	queue := newJetStreamQueue(t)

	subject := "driftwatch.outliers.flaky"
	var calls atomic.Int32
	err := queue.Subscribe(subject, func(data []byte) error {
		if calls.Add(1) < 3 {
			return fmt.Errorf("alert sink unavailable")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	time.Sleep(200 * time.Millisecond)

	payload := marshaledEvent(t, "run-1", "orders", "store_1", 1)
	if err := queue.Publish(context.Background(), subject, payload); err != nil {
		t.Fatalf("Failed to publish: %v", err)
	}

	// Two failures plus the final successful delivery
	waitForCount(t, &calls, 3, 10*time.Second)
}

func TestNATSQueue_DuplicateSubscribeRejected(t *testing.T) {
	queue := newJetStreamQueue(t)

	handler := func(data []byte) error { return nil }
	if err := queue.Subscribe(DefaultSubject, handler); err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	if err := queue.Subscribe(DefaultSubject, handler); err == nil {
		t.Error("Expected error when subscribing to the same subject twice")
	}
}

func TestNATSQueue_Unsubscribe(t *testing.T) {
	t.Run("removes the subscription", func(t *testing.T) {
		queue := newJetStreamQueue(t)

		if err := queue.Subscribe(DefaultSubject, func([]byte) error { return nil }); err != nil {
			t.Fatalf("Failed to subscribe: %v", err)
		}
		if err := queue.Unsubscribe(DefaultSubject); err != nil {
			t.Fatalf("Failed to unsubscribe: %v", err)
		}

		queue.mu.RLock()
		_, exists := queue.subs[DefaultSubject]
		queue.mu.RUnlock()
		if exists {
			t.Error("Expected subscription to be removed")
		}
	})

	t.Run("errors for unknown subject", func(t *testing.T) {
		queue := newJetStreamQueue(t)

		if err := queue.Unsubscribe("driftwatch.outliers.unknown"); err == nil {
			t.Error("Expected error when unsubscribing without a subscription")
		}
	})
}

// Deployments that fan events out per dataset get isolated streams
func TestNATSQueue_SubjectPerDataset(t *testing.T) {
	queue := newJetStreamQueue(t)

	ordersSubject := "driftwatch.outliers.orders"
	sensorsSubject := "driftwatch.outliers.sensors"

	orders := make(chan *OutlierEvent, 1)
	sensors := make(chan *OutlierEvent, 1)

	collect := func(into chan *OutlierEvent) MessageHandler {
		return func(data []byte) error {
			event, err := UnmarshalOutlierEvent(data)
			if err != nil {
				return err
			}
			into <- event
			return nil
		}
	}

	if err := queue.Subscribe(ordersSubject, collect(orders)); err != nil {
		t.Fatalf("Failed to subscribe to %s: %v", ordersSubject, err)
	}
	if err := queue.Subscribe(sensorsSubject, collect(sensors)); err != nil {
		t.Fatalf("Failed to subscribe to %s: %v", sensorsSubject, err)
	}
	time.Sleep(200 * time.Millisecond)

	ctx := context.Background()
	_ = queue.Publish(ctx, ordersSubject, marshaledEvent(t, "run-1", "orders", "store_1", 1))
	_ = queue.Publish(ctx, sensorsSubject, marshaledEvent(t, "run-2", "sensors", "probe_9", 2))

	for name, ch := range map[string]chan *OutlierEvent{"orders": orders, "sensors": sensors} {
		select {
		case event := <-ch:
			if event.Dataset != name {
				t.Errorf("Subject for %s delivered event for dataset %s", name, event.Dataset)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("Timeout waiting for %s event", name)
		}
	}
}

// A single wildcard consumer sees events for every dataset
func TestNATSQueue_WildcardSubject(t *testing.T) {
	queue := newJetStreamQueue(t)

	var count atomic.Int32
	if err := queue.Subscribe("driftwatch.outliers.>", func([]byte) error {
		count.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("Failed to subscribe to wildcard: %v", err)
	}
	time.Sleep(200 * time.Millisecond)

	ctx := context.Background()
	for _, subject := range []string{
		"driftwatch.outliers.orders",
		"driftwatch.outliers.sensors",
		"driftwatch.outliers.traffic.hourly",
	} {
		if err := queue.Publish(ctx, subject, marshaledEvent(t, "run-3", "any", "seg", 1)); err != nil {
			t.Fatalf("Failed to publish to %s: %v", subject, err)
		}
	}

	waitForCount(t, &count, 3, 5*time.Second)
}

func TestNATSQueue_PublishBatch(t *testing.T) {
	t.Run("empty batch is a no-op", func(t *testing.T) {
		queue := newJetStreamQueue(t)

		published, err := queue.PublishBatch(context.Background(), nil)
		if err != nil {
			t.Fatalf("Expected no error for empty batch, got: %v", err)
		}
		if published != 0 {
			t.Errorf("Expected 0 published, got %d", published)
		}
	})

	t.Run("delivers a whole detection run", func(t *testing.T) {
		queue := newJetStreamQueue(t)

		var count atomic.Int32
		if err := queue.Subscribe(DefaultSubject, func([]byte) error {
			count.Add(1)
			return nil
		}); err != nil {
			t.Fatalf("Failed to subscribe: %v", err)
		}
		time.Sleep(200 * time.Millisecond)

		const flagged = 100
		messages := make([]BatchMessage, flagged)
		for i := range messages {
			messages[i] = BatchMessage{
				Subject: DefaultSubject,
				Data:    marshaledEvent(t, "run-4", "orders", fmt.Sprintf("store_%d", i), 1),
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		published, err := queue.PublishBatch(ctx, messages)
		if err != nil {
			t.Fatalf("Failed to publish batch: %v", err)
		}
		if published != flagged {
			t.Errorf("Expected %d published, got %d", flagged, published)
		}

		waitForCount(t, &count, flagged, 10*time.Second)
	})

	t.Run("spans several dataset subjects", func(t *testing.T) {
		queue := newJetStreamQueue(t)

		subjects := []string{
			"driftwatch.outliers.orders",
			"driftwatch.outliers.sensors",
			"driftwatch.outliers.traffic",
		}

		var total atomic.Int32
		perSubject := make(map[string]*atomic.Int32, len(subjects))
		for _, subject := range subjects {
			counter := &atomic.Int32{}
			perSubject[subject] = counter
			if err := queue.Subscribe(subject, func([]byte) error {
				counter.Add(1)
				total.Add(1)
				return nil
			}); err != nil {
				t.Fatalf("Failed to subscribe to %s: %v", subject, err)
			}
		}
		time.Sleep(200 * time.Millisecond)

		const perDataset = 20
		messages := make([]BatchMessage, 0, len(subjects)*perDataset)
		for _, subject := range subjects {
			for i := 0; i < perDataset; i++ {
				messages = append(messages, BatchMessage{
					Subject: subject,
					Data:    marshaledEvent(t, "run-5", "multi", fmt.Sprintf("seg_%d", i), 1),
				})
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		published, err := queue.PublishBatch(ctx, messages)
		if err != nil {
			t.Fatalf("Failed to publish batch: %v", err)
		}
		if published != len(messages) {
			t.Errorf("Expected %d published, got %d", len(messages), published)
		}

		waitForCount(t, &total, int32(len(messages)), 10*time.Second)
		for subject, counter := range perSubject {
			if counter.Load() != perDataset {
				t.Errorf("Subject %s: expected %d events, got %d", subject, perDataset, counter.Load())
			}
		}
	})
}

// Concurrent detection runs publishing to one subject must not lose events
func TestNATSQueue_ConcurrentPublishers(t *testing.T) {
	queue := newJetStreamQueue(t)

	var count atomic.Int32
	if err := queue.Subscribe(DefaultSubject, func([]byte) error {
		count.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	time.Sleep(200 * time.Millisecond)

	const runs = 5
	const eventsPerRun = 40

	var wg sync.WaitGroup
	ctx := context.Background()
	for r := 0; r < runs; r++ {
		payload := marshaledEvent(t, fmt.Sprintf("run-%d", r), "orders", "seg_0", 1)
		wg.Add(1)
		go func(data []byte) {
			defer wg.Done()
			for i := 0; i < eventsPerRun; i++ {
				_ = queue.Publish(ctx, DefaultSubject, data)
			}
		}(payload)
	}
	wg.Wait()

	waitForCount(t, &count, runs*eventsPerRun, 10*time.Second)
}

func TestNATSQueue_CloseCleansUp(t *testing.T) {
	queue, err := newNATSQueue(startJetStream(t))
	if err != nil {
		t.Fatalf("Failed to create NATS queue: %v", err)
	}

	if err := queue.Subscribe(DefaultSubject, func([]byte) error { return nil }); err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}

	if err := queue.Close(); err != nil {
		t.Errorf("Failed to close queue: %v", err)
	}

	queue.mu.RLock()
	remaining := len(queue.subs)
	queue.mu.RUnlock()
	if remaining != 0 {
		t.Errorf("Expected 0 subscriptions after close, got %d", remaining)
	}
	if !queue.conn.IsClosed() {
		t.Error("Expected connection to be closed")
	}
}

func TestSanitizeStreamName(t *testing.T) {
	tests := []struct {
		subject string
		want    string
	}{
		{"driftwatch.outliers", "driftwatch_outliers"},
		{"driftwatch.outliers.orders", "driftwatch_outliers_orders"},
		{"driftwatch.outliers.>", "driftwatch_outliers__"},
		{"plain", "plain"},
		{"with-dash_and_underscore", "with-dash_and_underscore"},
		{"spaces and*stars", "spaces_and_stars"},
	}

	for _, tt := range tests {
		if got := sanitizeStreamName(tt.subject); got != tt.want {
			t.Errorf("sanitizeStreamName(%q) = %q, want %q", tt.subject, got, tt.want)
		}
	}
}
