package utils

import "time"

// Operational timeouts shared across services.
const (
	// EventPublishTimeout bounds the publish of one outlier event batch.
	EventPublishTimeout = 5 * time.Second

	// ShutdownTimeout is the grace period for draining in-flight work
	// on shutdown.
	ShutdownTimeout = 10 * time.Second
)

// Upload validation limits.
const (
	// MaxNameLength caps dataset, segment, and column names.
	MaxNameLength = 128

	// MaxUploadPoints caps the points accepted in one upload.
	MaxUploadPoints = 1_000_000
)

// QueueType selects an event queue backend.
type QueueType string

const (
	QueueTypeNATS   QueueType = "nats" // default
	QueueTypeRedis  QueueType = "redis"
	QueueTypeKafka  QueueType = "kafka"
	QueueTypeMemory QueueType = "memory" // single process, mostly for tests
)
