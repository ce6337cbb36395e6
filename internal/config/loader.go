package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"textanalysis/internal/constants"
)

// LoadConfig builds the configuration from defaults, an optional YAML file
// and the environment, in increasing order of precedence.
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()

	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnvVariables(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(&cfg)

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout_seconds", "10s")
	v.SetDefault("server.write_timeout_seconds", "10s")

	v.SetDefault("broker.type", "rabbitmq")
	v.SetDefault("broker.rabbitmq.host", "localhost")
	v.SetDefault("broker.rabbitmq.port", 5672)
	v.SetDefault("broker.rabbitmq.user", "guest")
	v.SetDefault("broker.rabbitmq.password", "guest")
	v.SetDefault("broker.rabbitmq.vhost", "/")
	v.SetDefault("broker.rabbitmq.input_queue", constants.DefaultInputQueue)
	v.SetDefault("broker.rabbitmq.output_queue", constants.DefaultOutputQueue)

	v.SetDefault("broker.kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("broker.kafka.group_id", constants.DefaultConsumerGroup)
	v.SetDefault("broker.kafka.input_topic", constants.DefaultInputQueue)
	v.SetDefault("broker.kafka.output_topic", constants.DefaultOutputQueue)

	v.SetDefault("broker.connect.max_attempts", constants.DefaultConnectAttempts)
	v.SetDefault("broker.connect.delay", constants.DefaultConnectDelay)

	v.SetDefault("broker.consumer.prefetch", constants.DefaultPrefetch)
	v.SetDefault("broker.consumer.workers", constants.DefaultPrefetch)
	v.SetDefault("broker.consumer.queue_size", constants.DefaultPrefetch)
	v.SetDefault("broker.consumer.order_by_key", false)
	v.SetDefault("broker.consumer.drain_timeout", constants.DefaultDrainTimeout)

	v.SetDefault("database.mongodb.uri", "mongodb://localhost:27017")
	v.SetDefault("database.mongodb.database", constants.DefaultMongoDBName)
	v.SetDefault("database.mongodb.collection", constants.DefaultMongoCollection)
	v.SetDefault("database.mongodb.timeout", "10s")

	v.SetDefault("database.redis.host", "")
	v.SetDefault("database.redis.port", 6379)
	v.SetDefault("database.redis.password", "")
	v.SetDefault("database.redis.db", 0)

	v.SetDefault("processing.min_processing_time", 2.0)
	v.SetDefault("processing.max_processing_time", 15.0)
	v.SetDefault("processing.toxicity_threshold", 70)
	v.SetDefault("processing.cache.enabled", false)
	v.SetDefault("processing.cache.ttl", "1h")

	v.SetDefault("publisher.filter", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("circuit_breaker.enabled", false)
	v.SetDefault("circuit_breaker.max_requests", 5)
	v.SetDefault("circuit_breaker.interval", "60s")
	v.SetDefault("circuit_breaker.timeout", "30s")
	v.SetDefault("circuit_breaker.failure_ratio", 0.6)
	v.SetDefault("circuit_breaker.min_requests", 10)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", constants.ServiceName)
	v.SetDefault("tracing.otlp.endpoint", "localhost:4317")
	v.SetDefault("tracing.otlp.insecure", true)
	v.SetDefault("tracing.sampler.type", "always")
	v.SetDefault("tracing.sampler.param", 1.0)
}

// bindEnvVariables maps keys onto their structured env name first and the
// short legacy name second, so either form configures the service.
func bindEnvVariables(v *viper.Viper) {
	_ = v.BindEnv("broker.type", "BROKER_TYPE")

	_ = v.BindEnv("broker.rabbitmq.host", "BROKER_RABBITMQ_HOST", "RABBITMQ_HOST")
	_ = v.BindEnv("broker.rabbitmq.port", "BROKER_RABBITMQ_PORT", "RABBITMQ_PORT")
	_ = v.BindEnv("broker.rabbitmq.user", "BROKER_RABBITMQ_USER", "RABBITMQ_USER")
	_ = v.BindEnv("broker.rabbitmq.password", "BROKER_RABBITMQ_PASSWORD", "RABBITMQ_PASSWORD")
	_ = v.BindEnv("broker.rabbitmq.vhost", "BROKER_RABBITMQ_VHOST", "RABBITMQ_VHOST")
	_ = v.BindEnv("broker.rabbitmq.input_queue", "BROKER_RABBITMQ_INPUT_QUEUE", "RABBITMQ_INPUT_QUEUE")
	_ = v.BindEnv("broker.rabbitmq.output_queue", "BROKER_RABBITMQ_OUTPUT_QUEUE", "RABBITMQ_OUTPUT_QUEUE")

	_ = v.BindEnv("broker.kafka.brokers", "BROKER_KAFKA_BROKERS")
	_ = v.BindEnv("broker.kafka.group_id", "BROKER_KAFKA_GROUP_ID")
	_ = v.BindEnv("broker.kafka.input_topic", "BROKER_KAFKA_INPUT_TOPIC")
	_ = v.BindEnv("broker.kafka.output_topic", "BROKER_KAFKA_OUTPUT_TOPIC")

	_ = v.BindEnv("broker.connect.max_attempts", "BROKER_CONNECT_MAX_ATTEMPTS")
	_ = v.BindEnv("broker.connect.delay", "BROKER_CONNECT_DELAY")

	_ = v.BindEnv("broker.consumer.prefetch", "BROKER_CONSUMER_PREFETCH")
	_ = v.BindEnv("broker.consumer.workers", "BROKER_CONSUMER_WORKERS")
	_ = v.BindEnv("broker.consumer.queue_size", "BROKER_CONSUMER_QUEUE_SIZE")
	_ = v.BindEnv("broker.consumer.order_by_key", "BROKER_CONSUMER_ORDER_BY_KEY")
	_ = v.BindEnv("broker.consumer.drain_timeout", "BROKER_CONSUMER_DRAIN_TIMEOUT")

	_ = v.BindEnv("database.mongodb.uri", "DATABASE_MONGODB_URI", "MONGO_URI")
	_ = v.BindEnv("database.mongodb.database", "DATABASE_MONGODB_DATABASE", "MONGO_DB_NAME")
	_ = v.BindEnv("database.mongodb.collection", "DATABASE_MONGODB_COLLECTION", "MONGO_COLLECTION")

	_ = v.BindEnv("database.redis.host", "DATABASE_REDIS_HOST")
	_ = v.BindEnv("database.redis.port", "DATABASE_REDIS_PORT")
	_ = v.BindEnv("database.redis.password", "DATABASE_REDIS_PASSWORD")
	_ = v.BindEnv("database.redis.db", "DATABASE_REDIS_DB")

	_ = v.BindEnv("processing.min_processing_time", "PROCESSING_MIN_PROCESSING_TIME", "MIN_PROCESSING_TIME")
	_ = v.BindEnv("processing.max_processing_time", "PROCESSING_MAX_PROCESSING_TIME", "MAX_PROCESSING_TIME")
	_ = v.BindEnv("processing.toxicity_threshold", "PROCESSING_TOXICITY_THRESHOLD", "TOXICITY_THRESHOLD")
	_ = v.BindEnv("processing.cache.enabled", "PROCESSING_CACHE_ENABLED")
	_ = v.BindEnv("processing.cache.ttl", "PROCESSING_CACHE_TTL")

	_ = v.BindEnv("publisher.filter", "PUBLISHER_FILTER")

	_ = v.BindEnv("server.port", "SERVER_PORT")
	_ = v.BindEnv("logging.level", "LOGGING_LEVEL")
	_ = v.BindEnv("logging.format", "LOGGING_FORMAT")

	_ = v.BindEnv("circuit_breaker.enabled", "CIRCUIT_BREAKER_ENABLED")

	_ = v.BindEnv("tracing.enabled", "TRACING_ENABLED")
	_ = v.BindEnv("tracing.service_name", "TRACING_SERVICE_NAME")
	_ = v.BindEnv("tracing.otlp.endpoint", "TRACING_OTLP_ENDPOINT")
	_ = v.BindEnv("tracing.otlp.insecure", "TRACING_OTLP_INSECURE")
}

func applyEnvOverrides(cfg *Config) {
	brokers := make([]string, 0, len(cfg.Broker.Kafka.Brokers))
	for _, b := range cfg.Broker.Kafka.Brokers {
		for _, part := range strings.Split(b, ",") {
			if part = strings.TrimSpace(part); part != "" {
				brokers = append(brokers, part)
			}
		}
	}
	cfg.Broker.Kafka.Brokers = brokers

	cfg.Broker.Type = strings.ToLower(strings.TrimSpace(cfg.Broker.Type))
}
