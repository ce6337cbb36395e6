package broker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"textanalysis/internal/config"
	"textanalysis/internal/constants"
	"textanalysis/internal/logger"
	apperrors "textanalysis/pkg/errors"
	"textanalysis/pkg/logging"
	"textanalysis/pkg/metrics"
	"textanalysis/pkg/tracing"
)

const brokerKafka = "kafka"

// ProbeKafka checks that at least one of the brokers accepts connections.
func ProbeKafka(ctx context.Context, brokers []string) error {
	var lastErr error
	for _, addr := range brokers {
		conn, err := kafka.DialContext(ctx, "tcp", addr)
		if err != nil {
			lastErr = err
			continue
		}
		return conn.Close()
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no kafka brokers configured")
	}
	return lastErr
}

type KafkaProducer struct {
	brokers []string
	writer  *kafka.Writer
	logger  logger.Logger
}

func NewKafkaProducer(cfg config.KafkaConfig, log logger.Logger) *KafkaProducer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           constants.KafkaBatchTimeout,
		WriteTimeout:           constants.KafkaWriteTimeout,
		AllowAutoTopicCreation: true,
	}
	return &KafkaProducer{brokers: cfg.Brokers, writer: w, logger: log}
}

func (p *KafkaProducer) Publish(ctx context.Context, topic string, msg Message) error {
	headers := make([]kafka.Header, 0, len(msg.Headers)+1)
	headers = append(headers, kafka.Header{Key: "content-type", Value: []byte(constants.ContentTypeJSON)})
	for k, v := range msg.Headers {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	start := time.Now()
	err := p.writer.WriteMessages(ctx, kafka.Message{
		Topic:   topic,
		Key:     []byte(msg.Key),
		Value:   msg.Body,
		Headers: headers,
		Time:    start,
	})

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.ObservePublish(brokerKafka, topic, status, len(msg.Body), time.Since(start))

	if err != nil {
		return fmt.Errorf("failed to write kafka message: %w", err)
	}
	return nil
}

func (p *KafkaProducer) HealthCheck(ctx context.Context) error {
	return ProbeKafka(ctx, p.brokers)
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

// KafkaConsumer reads a topic in a consumer group and commits every message
// after its handler returns, whatever the outcome. Workers finish out of
// order, so a partition's offset only advances past messages that are all done.
type KafkaConsumer struct {
	cfg         config.KafkaConfig
	dispatcher  Dispatcher
	keyFunc     KeyFunc
	logger      logger.Logger
	serviceName string

	mu     sync.Mutex
	reader *kafka.Reader
}

func NewKafkaConsumer(cfg config.KafkaConfig, dispatcher Dispatcher, keyFunc KeyFunc, log logger.Logger) *KafkaConsumer {
	return &KafkaConsumer{
		cfg:         cfg,
		dispatcher:  dispatcher,
		keyFunc:     keyFunc,
		logger:      log,
		serviceName: "unknown",
	}
}

func (c *KafkaConsumer) SetServiceName(name string) {
	c.serviceName = name
}

func (c *KafkaConsumer) Consume(ctx context.Context, topic string, handler HandlerFunc) error {
	consumeCtx := logging.WithServiceName(ctx, c.serviceName)
	c.logger.InfowCtx(consumeCtx, "Creating Kafka reader",
		"topic", topic,
		"brokers", c.cfg.Brokers,
		"group_id", c.cfg.GroupID,
	)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        c.cfg.Brokers,
		GroupID:        c.cfg.GroupID,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
	})
	offsets := newOffsetTracker()
	c.mu.Lock()
	c.reader = reader
	c.mu.Unlock()

	for {
		m, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.InfowCtx(consumeCtx, "Stopped consuming",
					"topic", topic,
					"reason", "context canceled",
				)
				return nil
			}
			c.logger.ErrorwCtx(consumeCtx, "Error fetching kafka message",
				"error", err,
				"topic", topic,
			)
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}

		metrics.IncMessagesConsumed(brokerKafka, topic, len(m.Value))

		msg := Message{Key: string(m.Key), Body: m.Value, Headers: kafkaHeadersToMap(m.Headers)}
		key := msg.Key
		if c.keyFunc != nil {
			key = c.keyFunc(msg)
		}

		fetched := m
		offsets.fetched(m.Partition, m.Offset)
		err = c.dispatcher.Submit(ctx, key, func(jobCtx context.Context) {
			c.handle(jobCtx, reader, offsets, topic, fetched, msg, handler)
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

func (c *KafkaConsumer) handle(ctx context.Context, reader *kafka.Reader, offsets *offsetTracker, topic string, m kafka.Message, msg Message, handler HandlerFunc) {
	ctx = logging.WithServiceName(ctx, c.serviceName)
	ctx = logging.WithDelivery(ctx, strconv.Itoa(m.Partition)+"/"+strconv.FormatInt(m.Offset, 10))
	ctx, span := tracing.StartConsumeSpan(ctx, "kafka.consume", msg.Headers)
	defer span.End()

	func() {
		defer func() {
			if r := recover(); r != nil {
				c.logger.ErrorwCtx(ctx, "Panic recovered during message handling",
					"error", apperrors.RecoverPanic(r),
					"topic", topic,
				)
			}
		}()
		if err := handler(ctx, msg); err != nil {
			c.logger.DebugwCtx(ctx, "Message dropped", "topic", topic, "error", err)
		}
	}()

	if ctx.Err() != nil {
		c.logger.WarnwCtx(ctx, "Handling abandoned during shutdown, leaving offset uncommitted", "topic", topic)
		return
	}

	upTo, ok := offsets.completed(m.Partition, m.Offset)
	if !ok {
		return
	}

	commit := kafka.Message{Topic: m.Topic, Partition: m.Partition, Offset: upTo}
	if err := reader.CommitMessages(ctx, commit); err != nil {
		c.logger.ErrorwCtx(ctx, "Failed to commit message", "error", err, "topic", topic)
	}
}

// offsetTracker records fetched offsets per partition and reports the
// highest offset below which every fetched message has completed.
type offsetTracker struct {
	mu    sync.Mutex
	parts map[int]*partitionOffsets
}

type partitionOffsets struct {
	inflight []int64
	done     map[int64]bool
}

func newOffsetTracker() *offsetTracker {
	return &offsetTracker{parts: make(map[int]*partitionOffsets)}
}

func (t *offsetTracker) fetched(partition int, offset int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.parts[partition]
	if !ok {
		p = &partitionOffsets{done: make(map[int64]bool)}
		t.parts[partition] = p
	}
	p.inflight = append(p.inflight, offset)
}

// completed marks offset as handled. It returns the offset to commit and true
// when the oldest in-flight offsets of the partition are now all done.
func (t *offsetTracker) completed(partition int, offset int64) (int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.parts[partition]
	if !ok {
		return 0, false
	}
	p.done[offset] = true

	var upTo int64
	advanced := false
	for len(p.inflight) > 0 && p.done[p.inflight[0]] {
		upTo = p.inflight[0]
		delete(p.done, upTo)
		p.inflight = p.inflight[1:]
		advanced = true
	}
	return upTo, advanced
}

func (c *KafkaConsumer) HealthCheck(ctx context.Context) error {
	return ProbeKafka(ctx, c.cfg.Brokers)
}

func (c *KafkaConsumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reader == nil {
		return nil
	}
	err := c.reader.Close()
	c.reader = nil
	return err
}

func kafkaHeadersToMap(headers []kafka.Header) map[string]string {
	out := make(map[string]string, len(headers))
	for _, h := range headers {
		out[h.Key] = string(h.Value)
	}
	return out
}
