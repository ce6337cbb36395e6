package broker

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"github.com/streadway/amqp"

	"textanalysis/internal/config"
	"textanalysis/internal/logger"
)

// Channel is the subset of *amqp.Channel the broker uses.
type Channel interface {
	Qos(prefetchCount, prefetchSize int, global bool) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueuePurge(name string, noWait bool) (int, error)
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Cancel(consumer string, noWait bool) error
	Close() error
}

type Connection interface {
	Channel() (Channel, error)
	IsClosed() bool
	Close() error
}

type Dialer func(url string) (Connection, error)

type amqpConnection struct {
	*amqp.Connection
}

func (c amqpConnection) Channel() (Channel, error) {
	ch, err := c.Connection.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func DialAMQP(url string) (Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	return amqpConnection{conn}, nil
}

var ErrSessionClosed = errors.New("amqp session closed")

// Session owns one AMQP connection. A lost connection is re-dialled lazily
// through the supervisor the next time a channel is requested.
type Session struct {
	url        string
	name       string
	dial       Dialer
	supervisor *Supervisor
	logger     logger.Logger

	mu     sync.Mutex
	conn   Connection
	closed bool
}

func NewSession(name string, cfg config.RabbitMQConfig, supervisor *Supervisor, dial Dialer, log logger.Logger) *Session {
	if dial == nil {
		dial = DialAMQP
	}
	return &Session{
		url:        AMQPURL(cfg),
		name:       name,
		dial:       dial,
		supervisor: supervisor,
		logger:     log,
	}
}

func AMQPURL(cfg config.RabbitMQConfig) string {
	u := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   cfg.Host + ":" + strconv.Itoa(cfg.Port),
	}
	if cfg.VHost != "" && cfg.VHost != "/" {
		u.Path = "/" + cfg.VHost
	}
	return u.String()
}

// Connect establishes the connection if there is none.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.connectLocked(ctx)
	return err
}

func (s *Session) connectLocked(ctx context.Context) (Connection, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.conn != nil && !s.conn.IsClosed() {
		return s.conn, nil
	}
	if s.conn != nil {
		s.logger.Warnw("RabbitMQ connection lost, reconnecting", "session", s.name)
		s.conn = nil
	}

	err := s.supervisor.Run(ctx, "rabbitmq:"+s.name, func(context.Context) error {
		conn, err := s.dial(s.url)
		if err != nil {
			return err
		}
		s.conn = conn
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Infow("Connected to RabbitMQ", "session", s.name)
	return s.conn, nil
}

// Channel opens a new channel, reconnecting first when needed.
func (s *Session) Channel(ctx context.Context) (Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, err := s.connectLocked(ctx)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	return ch, nil
}

// DeclareQueue declares a durable queue and returns the number of ready messages in it.
func DeclareQueue(ch Channel, name string) (int, error) {
	q, err := ch.QueueDeclare(name, true, false, false, false, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to declare queue %s: %w", name, err)
	}
	return q.Messages, nil
}

// MessageCount reports the ready messages in queue, declaring it if missing.
func (s *Session) MessageCount(ctx context.Context, queue string) (int, error) {
	ch, err := s.Channel(ctx)
	if err != nil {
		return 0, err
	}
	defer ch.Close()

	return DeclareQueue(ch, queue)
}

func (s *Session) Purge(ctx context.Context, queue string) (int, error) {
	ch, err := s.Channel(ctx)
	if err != nil {
		return 0, err
	}
	defer ch.Close()

	if _, err := DeclareQueue(ch, queue); err != nil {
		return 0, err
	}
	n, err := ch.QueuePurge(queue, false)
	if err != nil {
		return 0, fmt.Errorf("failed to purge queue %s: %w", queue, err)
	}
	return n, nil
}

func (s *Session) HealthCheck(ctx context.Context) error {
	if !s.mu.TryLock() {
		return fmt.Errorf("rabbitmq session %s is reconnecting", s.name)
	}
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if s.conn == nil || s.conn.IsClosed() {
		return fmt.Errorf("rabbitmq session %s is not connected", s.name)
	}
	return nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if s.conn == nil || s.conn.IsClosed() {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}
