// Package messaging publishes domain events to NATS for downstream consumers
// such as push or email delivery.
package messaging

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/live-vibe/internal/config"
	"github.com/live-vibe/internal/logging"
	"github.com/live-vibe/internal/models"
)

// Publisher sends notification events. A nil or disconnected Publisher is a no-op.
type Publisher struct {
	conn   *nats.Conn
	prefix string
}

// Connect dials NATS. An empty URL returns a nil Publisher, which disables publishing.
func Connect(cfg *config.NatsConfig) (*Publisher, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	nc, err := nats.Connect(
		cfg.URL,
		nats.Name("live-vibe"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logging.WithError(err).Warn("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logging.WithField("url", nc.ConnectedUrl()).Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	return NewPublisher(nc, cfg.SubjectPrefix), nil
}

// NewPublisher wraps an existing connection
func NewPublisher(nc *nats.Conn, prefix string) *Publisher {
	if prefix == "" {
		prefix = "livevibe"
	}
	return &Publisher{conn: nc, prefix: prefix}
}

// NotificationSubject returns the subject a notification of the given type is published on
func (p *Publisher) NotificationSubject(notificationType string) string {
	prefix := "livevibe"
	if p != nil {
		prefix = p.prefix
	}
	return prefix + ".notifications." + sanitizeToken(notificationType)
}

// PublishNotification publishes n as JSON
func (p *Publisher) PublishNotification(n *models.Notification) error {
	if p == nil || p.conn == nil {
		return nil
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := p.conn.Publish(p.NotificationSubject(n.Type), payload); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Close drains pending messages and closes the connection
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		logging.WithError(err).Warn("Failed to drain NATS connection")
		p.conn.Close()
	}
}

// sanitizeToken keeps subject tokens free of separators and wildcards
func sanitizeToken(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n':
			return '_'
		}
		return r
	}, s)
}
