package broker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"

	"textanalysis/internal/constants"
	"textanalysis/internal/logger"
	apperrors "textanalysis/pkg/errors"
	"textanalysis/pkg/logging"
	"textanalysis/pkg/metrics"
	"textanalysis/pkg/tracing"
)

const brokerRabbitMQ = "rabbitmq"

var errDeliveriesClosed = errors.New("delivery channel closed")

type RabbitMQConsumer struct {
	session     *Session
	dispatcher  Dispatcher
	keyFunc     KeyFunc
	prefetch    int
	tag         string
	logger      logger.Logger
	serviceName string

	mu sync.Mutex
	ch Channel
}

func NewRabbitMQConsumer(session *Session, dispatcher Dispatcher, prefetch int, keyFunc KeyFunc, log logger.Logger) *RabbitMQConsumer {
	return &RabbitMQConsumer{
		session:     session,
		dispatcher:  dispatcher,
		keyFunc:     keyFunc,
		prefetch:    prefetch,
		tag:         "analysis-" + uuid.NewString(),
		logger:      log,
		serviceName: "unknown",
	}
}

func (c *RabbitMQConsumer) SetServiceName(name string) {
	c.serviceName = name
}

// Consume subscribes to queue and hands deliveries to the dispatcher until
// ctx is cancelled. A closed delivery channel triggers a resubscribe; it
// returns an error only when the session cannot reconnect.
func (c *RabbitMQConsumer) Consume(ctx context.Context, queue string, handler HandlerFunc) error {
	consumeCtx := logging.WithServiceName(ctx, c.serviceName)

	for {
		ch, deliveries, err := c.subscribe(ctx, queue)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		c.logger.InfowCtx(consumeCtx, "Started consuming",
			"queue", queue,
			"prefetch", c.prefetch,
			"consumer_tag", c.tag,
		)

		err = c.dispatchLoop(ctx, queue, deliveries, handler)
		if errors.Is(err, errDeliveriesClosed) && ctx.Err() == nil {
			c.logger.WarnwCtx(consumeCtx, "Delivery channel closed, resubscribing", "queue", queue)
			c.resetChannel(ch)
			continue
		}

		if cancelErr := ch.Cancel(c.tag, false); cancelErr != nil {
			c.logger.DebugwCtx(consumeCtx, "Failed to cancel consumer", "error", cancelErr)
		}

		if ctx.Err() != nil {
			c.logger.InfowCtx(consumeCtx, "Stopped consuming",
				"queue", queue,
				"reason", "context canceled",
			)
			return nil
		}
		return err
	}
}

func (c *RabbitMQConsumer) subscribe(ctx context.Context, queue string) (Channel, <-chan amqp.Delivery, error) {
	ch, err := c.session.Channel(ctx)
	if err != nil {
		return nil, nil, err
	}

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		_ = ch.Close()
		return nil, nil, fmt.Errorf("failed to set prefetch: %w", err)
	}

	if _, err := DeclareQueue(ch, queue); err != nil {
		_ = ch.Close()
		return nil, nil, err
	}

	deliveries, err := ch.Consume(queue, c.tag, false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, nil, fmt.Errorf("failed to consume from %s: %w", queue, err)
	}

	c.mu.Lock()
	c.ch = ch
	c.mu.Unlock()

	return ch, deliveries, nil
}

func (c *RabbitMQConsumer) dispatchLoop(ctx context.Context, queue string, deliveries <-chan amqp.Delivery, handler HandlerFunc) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errDeliveriesClosed
			}
			metrics.IncMessagesConsumed(brokerRabbitMQ, queue, len(d.Body))

			msg := Message{
				Key:     d.MessageId,
				Body:    d.Body,
				Headers: tracing.TableToMap(d.Headers),
			}
			key := msg.Key
			if c.keyFunc != nil {
				key = c.keyFunc(msg)
			}

			delivery := d
			err := c.dispatcher.Submit(ctx, key, func(jobCtx context.Context) {
				c.handle(jobCtx, queue, delivery, msg, handler)
			})
			if err != nil {
				// Not acked: the broker redelivers it once this channel closes.
				return err
			}
		}
	}
}

func (c *RabbitMQConsumer) handle(ctx context.Context, queue string, d amqp.Delivery, msg Message, handler HandlerFunc) {
	ctx = logging.WithServiceName(ctx, c.serviceName)
	ctx = logging.WithDelivery(ctx, strconv.FormatUint(d.DeliveryTag, 10))
	ctx, span := tracing.StartConsumeSpan(ctx, "rabbitmq.consume", msg.Headers)
	defer span.End()

	func() {
		defer func() {
			if r := recover(); r != nil {
				c.logger.ErrorwCtx(ctx, "Panic recovered during message handling",
					"error", apperrors.RecoverPanic(r),
					"queue", queue,
				)
			}
		}()
		if err := handler(ctx, msg); err != nil {
			c.logger.DebugwCtx(ctx, "Message dropped", "queue", queue, "error", err)
		}
	}()

	if ctx.Err() != nil {
		c.logger.WarnwCtx(ctx, "Handling abandoned during shutdown, leaving message unacknowledged", "queue", queue)
		return
	}

	if err := d.Ack(false); err != nil {
		c.logger.ErrorwCtx(ctx, "Failed to acknowledge message", "error", err, "queue", queue)
	}
}

func (c *RabbitMQConsumer) resetChannel(ch Channel) {
	c.mu.Lock()
	if c.ch == ch {
		c.ch = nil
	}
	c.mu.Unlock()
	_ = ch.Close()
}

func (c *RabbitMQConsumer) HealthCheck(ctx context.Context) error {
	return c.session.HealthCheck(ctx)
}

func (c *RabbitMQConsumer) Close() error {
	c.mu.Lock()
	ch := c.ch
	c.ch = nil
	c.mu.Unlock()

	if ch != nil {
		_ = ch.Close()
	}
	return c.session.Close()
}

type RabbitMQProducer struct {
	session  *Session
	logger   logger.Logger
	mu       sync.Mutex
	ch       Channel
	declared map[string]bool
}

func NewRabbitMQProducer(session *Session, log logger.Logger) *RabbitMQProducer {
	return &RabbitMQProducer{
		session:  session,
		logger:   log,
		declared: make(map[string]bool),
	}
}

// Publish sends msg to queue through the default exchange as a persistent
// message. A failed publish discards the channel so the next call reopens it.
func (p *RabbitMQProducer) Publish(ctx context.Context, queue string, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	err := p.publishLocked(ctx, queue, msg)

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.ObservePublish(brokerRabbitMQ, queue, status, len(msg.Body), time.Since(start))

	return err
}

func (p *RabbitMQProducer) publishLocked(ctx context.Context, queue string, msg Message) error {
	if p.ch == nil {
		ch, err := p.session.Channel(ctx)
		if err != nil {
			return err
		}
		p.ch = ch
		p.declared = make(map[string]bool)
	}

	if !p.declared[queue] {
		if _, err := DeclareQueue(p.ch, queue); err != nil {
			p.dropChannelLocked()
			return err
		}
		p.declared[queue] = true
	}

	err := p.ch.Publish("", queue, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  constants.ContentTypeJSON,
		MessageId:    msg.Key,
		Timestamp:    time.Now().UTC(),
		Headers:      tracing.MapToTable(msg.Headers),
		Body:         msg.Body,
	})
	if err != nil {
		p.dropChannelLocked()
		return fmt.Errorf("failed to publish to %s: %w", queue, err)
	}
	return nil
}

func (p *RabbitMQProducer) dropChannelLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
}

func (p *RabbitMQProducer) HealthCheck(ctx context.Context) error {
	return p.session.HealthCheck(ctx)
}

func (p *RabbitMQProducer) Close() error {
	p.mu.Lock()
	p.dropChannelLocked()
	p.mu.Unlock()
	return p.session.Close()
}
