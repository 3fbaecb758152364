// Package events carries outlier notifications between the detection
// service and downstream consumers over a pluggable message queue.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// DefaultSubject is the subject outlier events are published on
const DefaultSubject = "driftwatch.outliers"

// OutlierEvent is published once per segment where a detection run
// flagged at least one timestamp
type OutlierEvent struct {
	RunID      string      `json:"run_id"`
	Dataset    string      `json:"dataset"`
	Segment    string      `json:"segment"`
	Column     string      `json:"column"`
	Method     string      `json:"method"`
	Timestamps []time.Time `json:"timestamps"`
	DetectedAt time.Time   `json:"detected_at"`
}

// Marshal encodes the event as JSON for publishing
func (e *OutlierEvent) Marshal() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode outlier event: %w", err)
	}
	return data, nil
}

// UnmarshalOutlierEvent decodes an event from its wire form
func UnmarshalOutlierEvent(data []byte) (*OutlierEvent, error) {
	var e OutlierEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to decode outlier event: %w", err)
	}
	return &e, nil
}

// Publisher publishes messages to a queue
type Publisher interface {
	// Publish publishes a message to a subject/topic
	Publish(ctx context.Context, subject string, data []byte) error

	// PublishBatch publishes multiple messages and reports how many
	// were accepted
	PublishBatch(ctx context.Context, messages []BatchMessage) (int, error)

	// Close closes the connection
	Close() error
}

// BatchMessage represents a message for batch publishing
type BatchMessage struct {
	Subject string
	Data    []byte
}

// Subscriber subscribes to messages from a queue
type Subscriber interface {
	// Subscribe subscribes to a subject/topic with a handler
	Subscribe(subject string, handler MessageHandler) error

	// Unsubscribe unsubscribes from a subject/topic
	Unsubscribe(subject string) error

	// Close closes the connection
	Close() error
}

// MessageHandler handles incoming messages
type MessageHandler func(data []byte) error

// Queue combines Publisher and Subscriber interfaces
type Queue interface {
	Publisher
	Subscriber
}
