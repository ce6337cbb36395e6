package broker

import (
	"context"
)

// Message is a transport-neutral broker payload. Key is the record identity,
// used as the AMQP message id or the Kafka message key.
type Message struct {
	Key     string
	Body    []byte
	Headers map[string]string
}

type Producer interface {
	Publish(ctx context.Context, destination string, msg Message) error
	HealthCheck(ctx context.Context) error
	Close() error
}

// Consumer delivers messages from source to handler until ctx is cancelled.
// Every delivery is acknowledged once the handler returns, whatever it
// returned; nothing is requeued.
type Consumer interface {
	Consume(ctx context.Context, source string, handler HandlerFunc) error
	HealthCheck(ctx context.Context) error
	Close() error
	SetServiceName(name string)
}

type HandlerFunc func(ctx context.Context, msg Message) error

// Dispatcher runs jobs with bounded concurrency. Jobs with the same key may
// be serialized depending on the implementation.
type Dispatcher interface {
	Submit(ctx context.Context, key string, job func(ctx context.Context)) error
}

// KeyFunc derives the dispatch key of a message.
type KeyFunc func(msg Message) string
