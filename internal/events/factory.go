package events

import (
	"fmt"
	"strings"

	"github.com/driftwatch/driftwatch/internal/config"
	"github.com/driftwatch/driftwatch/internal/utils"
)

// builders maps queue types to their constructors.
var builders = map[utils.QueueType]func(config.EventsConfig) (Queue, error){
	utils.QueueTypeNATS: func(cfg config.EventsConfig) (Queue, error) {
		return newNATSQueue(cfg.URL)
	},
	utils.QueueTypeRedis: func(cfg config.EventsConfig) (Queue, error) {
		return newRedisQueue(RedisConfig{
			URL:      cfg.URL,
			Password: cfg.Password,
			DB:       cfg.RedisDB,
			Stream:   cfg.RedisStream,
			Group:    cfg.RedisGroup,
			Consumer: cfg.RedisConsumer,
		})
	},
	utils.QueueTypeKafka: func(cfg config.EventsConfig) (Queue, error) {
		return newKafkaQueue(KafkaConfig{
			Brokers: cfg.KafkaBrokers,
			GroupID: cfg.KafkaGroupID,
		})
	},
	utils.QueueTypeMemory: func(config.EventsConfig) (Queue, error) {
		return newMemoryQueue(), nil
	},
}

// New creates the queue backend named by cfg.Type. An empty type selects
// NATS.
func New(cfg config.EventsConfig) (Queue, error) {
	queueType := utils.QueueTypeNATS
	if cfg.Type != "" {
		queueType = utils.QueueType(strings.ToLower(cfg.Type))
	}

	build, ok := builders[queueType]
	if !ok {
		return nil, fmt.Errorf("unsupported queue type: %s (supported: nats, redis, kafka, memory)", queueType)
	}
	return build(cfg)
}

// NewPublisher narrows New to the publish side.
func NewPublisher(cfg config.EventsConfig) (Publisher, error) {
	return New(cfg)
}

// NewSubscriber narrows New to the consume side.
func NewSubscriber(cfg config.EventsConfig) (Subscriber, error) {
	return New(cfg)
}
