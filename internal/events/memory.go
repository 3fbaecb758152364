package events

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// memoryBacklogLimit bounds how many events a subject retains while no
// subscription matches it.
const memoryBacklogLimit = 10000

// MemoryQueue is a process-local Queue for single-binary deployments
// and tests. Subscription patterns follow NATS token rules ("*" and
// ">"), so code written against the JetStream queue behaves the same
// here, except that a failed handler is not redelivered.
type MemoryQueue struct {
	mu      sync.Mutex
	subs    map[string]*memorySub
	backlog map[string][][]byte
	closed  bool
}

// memorySub is one subscription: its pattern, delivery channel, and
// stop signal.
type memorySub struct {
	pattern string
	ch      chan []byte
	done    chan struct{}
}

func newMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		subs:    make(map[string]*memorySub),
		backlog: make(map[string][][]byte),
	}
}

// subjectMatches reports whether subject matches a subscription pattern
// under NATS token rules: "*" matches exactly one token, ">" matches
// one or more trailing tokens.
func subjectMatches(pattern, subject string) bool {
	if pattern == subject {
		return true
	}
	ptoks := strings.Split(pattern, ".")
	stoks := strings.Split(subject, ".")
	for i, tok := range ptoks {
		if tok == ">" {
			return len(stoks) > i
		}
		if i >= len(stoks) || (tok != "*" && tok != stoks[i]) {
			return false
		}
	}
	return len(ptoks) == len(stoks)
}

// Publish delivers data to every subscription whose pattern matches
// subject. With no matching subscription the event is held in a
// per-subject backlog until one appears.
func (q *MemoryQueue) Publish(ctx context.Context, subject string, data []byte) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return fmt.Errorf("memory queue is closed")
	}

	var targets []*memorySub
	for _, sub := range q.subs {
		if subjectMatches(sub.pattern, subject) {
			targets = append(targets, sub)
		}
	}
	if len(targets) == 0 {
		if len(q.backlog[subject]) >= memoryBacklogLimit {
			q.mu.Unlock()
			return fmt.Errorf("backlog full for subject: %s", subject)
		}
		q.backlog[subject] = append(q.backlog[subject], append([]byte(nil), data...))
		q.mu.Unlock()
		return nil
	}
	q.mu.Unlock()

	for _, sub := range targets {
		// Each subscription gets its own copy; handlers run concurrently.
		buf := append([]byte(nil), data...)
		select {
		case sub.ch <- buf:
		case <-sub.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// PublishBatch publishes messages one by one, skipping subjects whose
// backlog is full. It stops early only when ctx is cancelled.
func (q *MemoryQueue) PublishBatch(ctx context.Context, messages []BatchMessage) (int, error) {
	published := 0
	for _, msg := range messages {
		if err := q.Publish(ctx, msg.Subject, msg.Data); err != nil {
			if ctx.Err() != nil {
				return published, err
			}
			continue
		}
		published++
	}
	return published, nil
}

// Subscribe registers handler for every subject matching pattern and
// replays any backlog those subjects accumulated. One subscription per
// pattern; handler errors drop the event.
func (q *MemoryQueue) Subscribe(pattern string, handler MessageHandler) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return fmt.Errorf("memory queue is closed")
	}
	if _, dup := q.subs[pattern]; dup {
		q.mu.Unlock()
		return fmt.Errorf("already subscribed to subject: %s", pattern)
	}

	sub := &memorySub{
		pattern: pattern,
		ch:      make(chan []byte, 1024),
		done:    make(chan struct{}),
	}
	q.subs[pattern] = sub

	var replay [][]byte
	for subject, held := range q.backlog {
		if subjectMatches(pattern, subject) {
			replay = append(replay, held...)
			delete(q.backlog, subject)
		}
	}
	q.mu.Unlock()

	go func() {
		for _, data := range replay {
			_ = handler(data)
		}
		for {
			select {
			case <-sub.done:
				return
			case data := <-sub.ch:
				_ = handler(data)
			}
		}
	}()

	return nil
}

// Unsubscribe stops the subscription registered for pattern.
func (q *MemoryQueue) Unsubscribe(pattern string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	sub, ok := q.subs[pattern]
	if !ok {
		return fmt.Errorf("not subscribed to subject: %s", pattern)
	}
	close(sub.done)
	delete(q.subs, pattern)
	return nil
}

// Close stops every subscription and discards the backlog. A closed
// queue rejects further publishes and subscriptions.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	for pattern, sub := range q.subs {
		close(sub.done)
		delete(q.subs, pattern)
	}
	q.backlog = nil
	return nil
}

// Backlog returns how many events are held for subject while no
// subscription matches it.
func (q *MemoryQueue) Backlog(subject string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.backlog[subject])
}
