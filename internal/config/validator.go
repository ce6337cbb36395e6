package config

import (
	"errors"
	"fmt"
	"strings"

	"textanalysis/pkg/cel"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// ValidateStatic checks the parts of the configuration that do not need any
// external system. All section errors are joined.
func ValidateStatic(cfg *Config) error {
	var errs []error

	for _, err := range []error{
		validateServer(cfg.Server),
		validateBroker(cfg.Broker),
		validateDatabase(cfg.Database),
		validateProcessing(cfg.Processing, cfg.Database.Redis),
		validateCircuitBreaker(cfg.CircuitBreaker),
		validatePublisher(cfg.Publisher),
		validateTracing(cfg.Tracing),
	} {
		if err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.ReadTimeoutSeconds <= 0 || cfg.WriteTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server",
			Message: "read and write timeouts must be positive",
		}
	}

	return nil
}

func validateBroker(cfg BrokerConfig) error {
	var err error
	switch cfg.Type {
	case "":
		return &ValidationError{Field: "broker.type", Message: "broker type is required"}
	case "kafka":
		err = validateKafka(cfg.Kafka)
	case "rabbitmq":
		err = validateRabbitMQ(cfg.RabbitMQ)
	default:
		return &ValidationError{
			Field:   "broker.type",
			Message: fmt.Sprintf("unknown broker type: %s (supported: kafka, rabbitmq)", cfg.Type),
		}
	}
	if err != nil {
		return err
	}

	if cfg.Connect.MaxAttempts < 1 {
		return &ValidationError{
			Field:   "broker.connect.max_attempts",
			Message: "at least one connection attempt is required",
		}
	}

	if cfg.Connect.Delay < 0 {
		return &ValidationError{
			Field:   "broker.connect.delay",
			Message: "delay must be non-negative",
		}
	}

	return validateConsumer(cfg.Consumer)
}

func validateConsumer(cfg ConsumerConfig) error {
	if cfg.Prefetch < 1 {
		return &ValidationError{Field: "broker.consumer.prefetch", Message: "prefetch must be positive"}
	}

	if cfg.Workers < 1 {
		return &ValidationError{Field: "broker.consumer.workers", Message: "workers must be positive"}
	}

	if cfg.QueueSize < 0 {
		return &ValidationError{Field: "broker.consumer.queue_size", Message: "queue size must be non-negative"}
	}

	if cfg.DrainTimeout <= 0 {
		return &ValidationError{Field: "broker.consumer.drain_timeout", Message: "drain timeout must be positive"}
	}

	return nil
}

func validateKafka(cfg KafkaConfig) error {
	if len(cfg.Brokers) == 0 {
		return &ValidationError{
			Field:   "broker.kafka.brokers",
			Message: "at least one Kafka broker is required",
		}
	}

	if cfg.GroupID == "" {
		return &ValidationError{
			Field:   "broker.kafka.group_id",
			Message: "Kafka consumer group ID is required",
		}
	}

	if cfg.InputTopic == "" || cfg.OutputTopic == "" {
		return &ValidationError{
			Field:   "broker.kafka",
			Message: "input_topic and output_topic are required",
		}
	}

	return nil
}

func validateRabbitMQ(cfg RabbitMQConfig) error {
	if cfg.Host == "" {
		return &ValidationError{
			Field:   "broker.rabbitmq.host",
			Message: "RabbitMQ host is required",
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "broker.rabbitmq.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.InputQueue == "" || cfg.OutputQueue == "" {
		return &ValidationError{
			Field:   "broker.rabbitmq",
			Message: "input_queue and output_queue are required",
		}
	}

	return nil
}

func validateDatabase(cfg DatabaseConfig) error {
	if err := validateMongoDB(cfg.MongoDB); err != nil {
		return err
	}

	if cfg.Redis.Host != "" {
		return validateRedis(cfg.Redis)
	}

	return nil
}

func validateRedis(cfg RedisConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "database.redis.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.DB < 0 {
		return &ValidationError{
			Field:   "database.redis.db",
			Message: "db index must be non-negative",
		}
	}

	return nil
}

func validateMongoDB(cfg MongoDBConfig) error {
	if cfg.URI == "" {
		return &ValidationError{
			Field:   "database.mongodb.uri",
			Message: "MongoDB URI is required",
		}
	}

	if !strings.HasPrefix(cfg.URI, "mongodb://") && !strings.HasPrefix(cfg.URI, "mongodb+srv://") {
		return &ValidationError{
			Field:   "database.mongodb.uri",
			Message: "MongoDB URI must start with mongodb:// or mongodb+srv://",
		}
	}

	if cfg.Database == "" || cfg.Collection == "" {
		return &ValidationError{
			Field:   "database.mongodb",
			Message: "database and collection names are required",
		}
	}

	return nil
}

func validateProcessing(cfg ProcessingConfig, redis RedisConfig) error {
	if cfg.MinProcessingTime < 0 {
		return &ValidationError{
			Field:   "processing.min_processing_time",
			Message: "must be non-negative",
		}
	}

	if cfg.MaxProcessingTime < cfg.MinProcessingTime {
		return &ValidationError{
			Field:   "processing.max_processing_time",
			Message: fmt.Sprintf("must be >= min_processing_time (%g), got %g", cfg.MinProcessingTime, cfg.MaxProcessingTime),
		}
	}

	if cfg.ToxicityThreshold < 0 || cfg.ToxicityThreshold > 100 {
		return &ValidationError{
			Field:   "processing.toxicity_threshold",
			Message: fmt.Sprintf("must be between 0 and 100, got %d", cfg.ToxicityThreshold),
		}
	}

	if cfg.Cache.Enabled {
		if redis.Host == "" {
			return &ValidationError{
				Field:   "processing.cache.enabled",
				Message: "score cache requires database.redis.host",
			}
		}
		if cfg.Cache.TTL <= 0 {
			return &ValidationError{
				Field:   "processing.cache.ttl",
				Message: "ttl must be positive",
			}
		}
	}

	return nil
}

func validateCircuitBreaker(cfg CircuitBreakerConfig) error {
	if !cfg.Enabled {
		return nil
	}

	if cfg.FailureRatio <= 0 || cfg.FailureRatio > 1 {
		return &ValidationError{
			Field:   "circuit_breaker.failure_ratio",
			Message: fmt.Sprintf("must be in (0, 1], got %g", cfg.FailureRatio),
		}
	}

	if cfg.Timeout <= 0 {
		return &ValidationError{
			Field:   "circuit_breaker.timeout",
			Message: "timeout must be positive",
		}
	}

	return nil
}

func validatePublisher(cfg PublisherConfig) error {
	if cfg.Filter == "" {
		return nil
	}

	evaluator, err := cel.NewEvaluator()
	if err != nil {
		return err
	}

	if err := evaluator.ValidateFilterExpression(cfg.Filter); err != nil {
		return &ValidationError{
			Field:   "publisher.filter",
			Message: err.Error(),
		}
	}

	return nil
}

func validateTracing(cfg TracingConfig) error {
	if !cfg.Enabled {
		return nil
	}

	switch cfg.Sampler.Type {
	case "", "always", "never":
	case "ratio":
		if cfg.Sampler.Param < 0 || cfg.Sampler.Param > 1 {
			return &ValidationError{
				Field:   "tracing.sampler.param",
				Message: fmt.Sprintf("ratio must be in [0, 1], got %g", cfg.Sampler.Param),
			}
		}
	default:
		return &ValidationError{
			Field:   "tracing.sampler.type",
			Message: fmt.Sprintf("unknown sampler: %s (supported: always, never, ratio)", cfg.Sampler.Type),
		}
	}

	return nil
}
