package broker

import (
	"errors"
	"sync"

	"github.com/streadway/amqp"
)

type ackRecord struct {
	tag      uint64
	multiple bool
}

type fakeAcknowledger struct {
	mu      sync.Mutex
	acks    []ackRecord
	nacks   int
	rejects int
	ackErr  error
}

func (a *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acks = append(a.acks, ackRecord{tag: tag, multiple: multiple})
	return a.ackErr
}

func (a *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacks++
	return nil
}

func (a *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rejects++
	return nil
}

func (a *fakeAcknowledger) ackedTags() []uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	tags := make([]uint64, 0, len(a.acks))
	for _, r := range a.acks {
		tags = append(tags, r.tag)
	}
	return tags
}

type declaredQueue struct {
	name    string
	durable bool
}

type publishRecord struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	mu         sync.Mutex
	prefetch   int
	declared   []declaredQueue
	consumeArg struct {
		queue   string
		tag     string
		autoAck bool
	}
	deliveries chan amqp.Delivery
	published  []publishRecord
	publishErr error
	cancelled  []string
	closed     bool
	purged     int
	ready      int
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{deliveries: make(chan amqp.Delivery, 32)}
}

func (c *fakeChannel) Qos(prefetchCount, prefetchSize int, global bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prefetch = prefetchCount
	return nil
}

func (c *fakeChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.declared = append(c.declared, declaredQueue{name: name, durable: durable})
	return amqp.Queue{Name: name, Messages: c.ready}, nil
}

func (c *fakeChannel) QueuePurge(name string, noWait bool) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.ready
	c.ready = 0
	c.purged += n
	return n, nil
}

func (c *fakeChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consumeArg.queue = queue
	c.consumeArg.tag = consumer
	c.consumeArg.autoAck = autoAck
	return c.deliveries, nil
}

func (c *fakeChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.publishErr != nil {
		return c.publishErr
	}
	c.published = append(c.published, publishRecord{exchange: exchange, key: key, msg: msg})
	return nil
}

func (c *fakeChannel) Cancel(consumer string, noWait bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelled = append(c.cancelled, consumer)
	return nil
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeChannel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type fakeConnection struct {
	mu       sync.Mutex
	channels []*fakeChannel
	next     int
	closed   bool
}

func (c *fakeConnection) Channel() (Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errors.New("connection closed")
	}
	if c.next >= len(c.channels) {
		ch := newFakeChannel()
		c.channels = append(c.channels, ch)
	}
	ch := c.channels[c.next]
	c.next++
	return ch, nil
}

func (c *fakeConnection) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// fakeDialer hands out conns in order, failing the first `failures` dials.
type fakeDialer struct {
	mu       sync.Mutex
	failures int
	conns    []*fakeConnection
	dials    int
	urls     []string
}

func (d *fakeDialer) Dial(url string) (Connection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	d.urls = append(d.urls, url)
	if d.failures > 0 {
		d.failures--
		return nil, errors.New("dial tcp: connection refused")
	}
	if len(d.conns) == 0 {
		d.conns = append(d.conns, &fakeConnection{})
	}
	conn := d.conns[0]
	d.conns = d.conns[1:]
	return conn, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}
