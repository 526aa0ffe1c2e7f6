package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	// dialTimeout bounds the TCP connect and AMQP handshake when the caller's
	// context carries no earlier deadline.
	dialTimeout = 5 * time.Second
	// redialAfter is how long Publish fails fast after a failed dial.
	redialAfter = 2 * time.Second
)

// ErrBrokerUnavailable is returned while the publisher is backing off after
// a failed dial.
var ErrBrokerUnavailable = errors.New("rabbitmq: broker unavailable")

// Publisher sends AuthEvents to the auth.events queue as persistent JSON
// messages. The connection is opened lazily and re-dialed after the broker
// closes it. Only one caller dials or publishes at a time; the others wait
// no longer than their own context allows.
type Publisher struct {
	url string
	log *zap.Logger

	// sem is a one-slot lock that can be abandoned when ctx ends.
	sem     chan struct{}
	conn    *amqp.Connection
	ch      *amqp.Channel
	retryAt time.Time
	now     func() time.Time
}

func NewPublisher(url string, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{url: url, log: log, sem: make(chan struct{}, 1), now: time.Now}
}

// Publish marshals ev and publishes it. Errors are returned so the caller can
// decide to ignore them.
func (p *Publisher) Publish(ctx context.Context, ev AuthEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := p.acquire(ctx); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	defer p.release()

	ch, err := p.channelLocked(ctx)
	if err != nil {
		return err
	}
	err = ch.PublishWithContext(ctx,
		"",              // default exchange
		AuthEventsQueue, // routing key = queue name
		false,           // mandatory
		false,           // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    ev.ID,
			Type:         string(ev.Type),
			Timestamp:    p.now().UTC(),
			Body:         body,
		})
	if err != nil {
		p.resetLocked()
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

// Close releases the channel and connection.
func (p *Publisher) Close() error {
	_ = p.acquire(context.Background())
	defer p.release()
	p.resetLocked()
	return nil
}

func (p *Publisher) acquire(ctx context.Context) error {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	// both cases may be ready; never start work for a caller that gave up
	if err := ctx.Err(); err != nil {
		p.release()
		return err
	}
	return nil
}

func (p *Publisher) release() { <-p.sem }

func (p *Publisher) channelLocked(ctx context.Context) (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() && p.conn != nil && !p.conn.IsClosed() {
		return p.ch, nil
	}
	p.resetLocked()

	if p.now().Before(p.retryAt) {
		return nil, ErrBrokerUnavailable
	}
	timeout := dialTimeout
	if dl, ok := ctx.Deadline(); ok {
		timeout = min(timeout, time.Until(dl))
	}
	if timeout <= 0 {
		return nil, context.DeadlineExceeded
	}

	conn, err := dial(p.url, timeout)
	if err != nil {
		p.retryAt = p.now().Add(redialAfter)
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	if _, err := declareAuthQueue(ch); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	p.conn, p.ch = conn, ch
	p.retryAt = time.Time{}
	p.log.Info("rabbitmq publisher connected", zap.String("queue", AuthEventsQueue))
	return ch, nil
}

func (p *Publisher) resetLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// dial opens a connection whose TCP connect and AMQP handshake together
// finish within timeout, so a broker that accepts and never answers cannot
// hold a caller for long.
func dial(url string, timeout time.Duration) (*amqp.Connection, error) {
	return amqp.DialConfig(url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(timeout),
	})
}

// declareAuthQueue is idempotent; the queue is durable so events survive a
// broker restart.
func declareAuthQueue(ch *amqp.Channel) (amqp.Queue, error) {
	q, err := ch.QueueDeclare(AuthEventsQueue, true, false, false, false, nil)
	if err != nil {
		return q, fmt.Errorf("queue declare: %w", err)
	}
	return q, nil
}
