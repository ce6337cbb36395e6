package constants

import "time"

const (
	ServiceName = "analysis-service"
)

const (
	DefaultInputQueue    = "incoming_texts"
	DefaultOutputQueue   = "processed_texts"
	DefaultConsumerGroup = "text-analysis"
)

const (
	DefaultMongoDBName     = "text_analysis"
	DefaultMongoCollection = "processed_messages"
)

const (
	DefaultConnectAttempts = 10
	DefaultConnectDelay    = 3 * time.Second
)

const (
	DefaultPrefetch     = 20
	DefaultDrainTimeout = 10 * time.Second
)

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	ContentTypeJSON = "application/json"
)

const (
	CacheKeyPrefixScore = "score:"
)

const (
	ShutdownTimeout = 5 * time.Second
)
