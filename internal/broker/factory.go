package broker

import (
	"context"
	"fmt"

	"textanalysis/internal/config"
	"textanalysis/internal/logger"
)

// NewProducer connects a producer for cfg.Type. The initial connection goes
// through the supervisor, so an unreachable broker yields ErrConnectionExhausted.
func NewProducer(ctx context.Context, cfg config.BrokerConfig, supervisor *Supervisor, log logger.Logger) (Producer, error) {
	switch cfg.Type {
	case "rabbitmq":
		session := NewSession("producer", cfg.RabbitMQ, supervisor, nil, log)
		if err := session.Connect(ctx); err != nil {
			return nil, err
		}
		return NewRabbitMQProducer(session, log), nil
	case "kafka":
		if err := supervisor.Run(ctx, "kafka:producer", func(ctx context.Context) error {
			return ProbeKafka(ctx, cfg.Kafka.Brokers)
		}); err != nil {
			return nil, err
		}
		return NewKafkaProducer(cfg.Kafka, log), nil
	default:
		return nil, fmt.Errorf("unknown broker type: %s", cfg.Type)
	}
}

func NewConsumer(ctx context.Context, cfg config.BrokerConfig, supervisor *Supervisor, dispatcher Dispatcher, keyFunc KeyFunc, log logger.Logger) (Consumer, error) {
	switch cfg.Type {
	case "rabbitmq":
		session := NewSession("consumer", cfg.RabbitMQ, supervisor, nil, log)
		if err := session.Connect(ctx); err != nil {
			return nil, err
		}
		return NewRabbitMQConsumer(session, dispatcher, cfg.Consumer.Prefetch, keyFunc, log), nil
	case "kafka":
		if err := supervisor.Run(ctx, "kafka:consumer", func(ctx context.Context) error {
			return ProbeKafka(ctx, cfg.Kafka.Brokers)
		}); err != nil {
			return nil, err
		}
		return NewKafkaConsumer(cfg.Kafka, dispatcher, keyFunc, log), nil
	default:
		return nil, fmt.Errorf("unknown broker type: %s", cfg.Type)
	}
}

// Queues returns the input and output destinations for cfg.Type.
func Queues(cfg config.BrokerConfig) (input, output string) {
	if cfg.Type == "kafka" {
		return cfg.Kafka.InputTopic, cfg.Kafka.OutputTopic
	}
	return cfg.RabbitMQ.InputQueue, cfg.RabbitMQ.OutputQueue
}
