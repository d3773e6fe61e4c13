package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"SpaceDealScanner/internal/domain"
	"SpaceDealScanner/internal/ports"
)

// conn is the part of *nats.Conn the publisher needs.
type conn interface {
	Publish(subject string, data []byte) error
	FlushTimeout(timeout time.Duration) error
	Drain() error
}

// DealPublisher emits one JSON message per relevant deal on
// "<prefix>.<source-slug>".
type DealPublisher struct {
	conn   conn
	prefix string
	logger *slog.Logger
}

var _ ports.DealPublisher = (*DealPublisher)(nil)

// DealEvent is the wire payload.
type DealEvent struct {
	PublishedAt time.Time         `json:"published_at"`
	Deal        domain.DealRecord `json:"deal"`
}

// Connect dials NATS with unlimited reconnects.
func Connect(url, prefix string, logger *slog.Logger) (*DealPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("spacedeals"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if logger != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			if logger != nil {
				logger.Info("nats reconnected", "url", nc.ConnectedUrl())
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return newDealPublisher(nc, prefix, logger), nil
}

func newDealPublisher(c conn, prefix string, logger *slog.Logger) *DealPublisher {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = "deals"
	}
	return &DealPublisher{conn: c, prefix: prefix, logger: logger}
}

// Subject returns the subject a record is published on.
func (p *DealPublisher) Subject(rec domain.DealRecord) string {
	slug := domain.SourceType(rec.Source).Slug()
	if slug == "" {
		slug = "unknown"
	}
	return p.prefix + "." + slug
}

// PublishDeal serializes rec and publishes it.
func (p *DealPublisher) PublishDeal(ctx context.Context, rec domain.DealRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(DealEvent{PublishedAt: time.Now().UTC(), Deal: rec})
	if err != nil {
		return fmt.Errorf("encode deal event: %w", err)
	}

	subject := p.Subject(rec)
	if err := p.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	if p.logger != nil {
		p.logger.Debug("deal event published", "subject", subject, "url", rec.URL, "bytes", len(payload))
	}
	return nil
}

// Close flushes pending messages and drains the connection.
func (p *DealPublisher) Close() error {
	if err := p.conn.FlushTimeout(5 * time.Second); err != nil && p.logger != nil {
		p.logger.Warn("nats flush failed", "error", err)
	}
	return p.conn.Drain()
}
