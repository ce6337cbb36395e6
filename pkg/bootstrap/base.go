package bootstrap

import (
	"context"
	"fmt"

	"textanalysis/internal/broker"
	"textanalysis/internal/config"
	"textanalysis/internal/logger"
)

type Base struct {
	Config     *config.Config
	Logger     logger.Logger
	Supervisor *broker.Supervisor
	Producer   broker.Producer
	Consumer   broker.Consumer
}

// NewBase falls back to a no-op logger when log is nil.
func NewBase(cfg *config.Config, log logger.Logger) *Base {
	if log == nil {
		log = logger.NopLogger()
	}
	return &Base{
		Config:     cfg,
		Logger:     log,
		Supervisor: broker.NewSupervisor(cfg.Broker.Connect, log),
	}
}

// InitBroker connects the producer and the consumer. Either failing to
// connect within the supervisor's attempts is fatal for startup.
func (b *Base) InitBroker(ctx context.Context, serviceName string, dispatcher broker.Dispatcher, keyFunc broker.KeyFunc) error {
	producer, err := broker.NewProducer(ctx, b.Config.Broker, b.Supervisor, b.Logger)
	if err != nil {
		return fmt.Errorf("failed to create producer: %w", err)
	}

	consumer, err := broker.NewConsumer(ctx, b.Config.Broker, b.Supervisor, dispatcher, keyFunc, b.Logger)
	if err != nil {
		producer.Close()
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	if serviceName != "" {
		consumer.SetServiceName(serviceName)
	}

	b.Producer = producer
	b.Consumer = consumer
	return nil
}

func (b *Base) ShutdownBroker() []error {
	var errs []error

	if b.Consumer != nil {
		if err := b.Consumer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("consumer close error: %w", err))
		}
	}

	if b.Producer != nil {
		if err := b.Producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("producer close error: %w", err))
		}
	}

	return errs
}

// Shutdown runs stopServing, closes the broker, then runs releaseResources.
// Either hook may be nil.
func (b *Base) Shutdown(ctx context.Context, stopServing, releaseResources func(ctx context.Context) []error) error {
	b.Logger.Info("Shutting down application...")

	var errs []error

	if stopServing != nil {
		errs = append(errs, stopServing(ctx)...)
	}

	errs = append(errs, b.ShutdownBroker()...)

	if releaseResources != nil {
		errs = append(errs, releaseResources(ctx)...)
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	b.Logger.Info("Application exited successfully")
	return nil
}
