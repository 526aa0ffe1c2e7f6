package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// AuditConsumer drains auth.events and appends one line per event to an
// audit log file.
type AuditConsumer struct {
	url     string
	logPath string
	log     *zap.Logger
}

func NewAuditConsumer(url, logPath string, log *zap.Logger) *AuditConsumer {
	return &AuditConsumer{url: url, logPath: logPath, log: log}
}

// Run connects, consumes and reconnects with exponential backoff until ctx
// is cancelled.
func (c *AuditConsumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := dial(c.url, dialTimeout)
		if err != nil {
			c.log.Warn("audit-consumer: dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleepCtx(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("audit-consumer: consume loop ended, reconnecting", zap.Error(err))
		if !sleepCtx(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *AuditConsumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.log.Warn("audit-consumer: set QoS failed", zap.Error(err))
	}
	if _, err := declareAuthQueue(ch); err != nil {
		return err
	}
	msgs, err := ch.Consume(AuthEventsQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	f, err := openAuditLog(c.logPath)
	if err != nil {
		return err
	}
	defer f.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := HandleAuditMessage(f, d.Body); err != nil {
				c.log.Error("audit-consumer: handle message failed", zap.Error(err))
				_ = d.Nack(false, false) // do not requeue poison messages
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// HandleAuditMessage decodes one AuthEvent and writes it to w as a single
// line.
func HandleAuditMessage(w io.Writer, body []byte) error {
	var ev AuthEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" {
		return errors.New("event without type")
	}
	line := fmt.Sprintf("[%s] %s | event_id=%s | user_id=%s | email=%q | token_id=%s | reason=%s | ip=%s | ua=%q\n",
		ev.OccurredAt.UTC().Format(time.RFC3339), ev.Type, ev.ID, ev.UserID, ev.Email, ev.TokenID, ev.Reason, ev.IP, ev.UserAgent)
	if _, err := io.WriteString(w, line); err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

func openAuditLog(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir audit log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	return f, nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
