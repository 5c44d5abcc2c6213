// Package events publishes match lifecycle events to NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/RMRattray/national-recording-rummy/config"
)

// Subjects, relative to the configured prefix.
const (
	SubjectMatchStarted  = "match.started"
	SubjectMatchFinished = "match.finished"
)

// MatchStarted is published when the lobby seats a new match.
type MatchStarted struct {
	GameID    string    `json:"gameId"`
	Players   []string  `json:"players"`
	StartedAt time.Time `json:"startedAt"`
}

// Standing is one player's final line in MatchFinished.
type Standing struct {
	Name     string `json:"name"`
	Seat     int    `json:"seat"`
	Score    int    `json:"score"`
	IsWinner bool   `json:"isWinner"`
}

// MatchFinished is published once, when a match ends.
type MatchFinished struct {
	GameID     string     `json:"gameId"`
	WinnerName string     `json:"winnerName"`
	Results    []Standing `json:"results"`
	EndedAt    time.Time  `json:"endedAt"`
}

// Publisher sends lifecycle events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, subject string, event any) error
	Connected() bool
	Close()
}

// NATSPublisher publishes JSON events on <prefix>.<subject>.
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
}

// Connect dials the configured NATS server.
func Connect(cfg config.EventsConfig) (*NATSPublisher, error) {
	opts := []nats.Option{
		nats.Name("rummy-server"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(time.Duration(cfg.ReconnectWaitMS) * time.Millisecond),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			slog.Warn("disconnected from NATS", "tag", "events", "err", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("reconnected to NATS", "tag", "events", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			slog.Info("NATS connection closed", "tag", "events")
		}),
		nats.Timeout(10 * time.Second),
	}
	conn, err := nats.Connect(cfg.NATSURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return NewNATSPublisher(conn, cfg.SubjectPrefix), nil
}

// NewNATSPublisher wraps an existing connection.
func NewNATSPublisher(conn *nats.Conn, prefix string) *NATSPublisher {
	return &NATSPublisher{conn: conn, prefix: prefix}
}

// Subject returns the full subject name for subject.
func (p *NATSPublisher) Subject(subject string) string {
	return Subject(p.prefix, subject)
}

// Publish marshals event to JSON and publishes it. NATS publishing does not
// block on the network; ctx is only checked before sending.
func (p *NATSPublisher) Publish(ctx context.Context, subject string, event any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", subject, err)
	}
	full := p.Subject(subject)
	if err := p.conn.Publish(full, data); err != nil {
		return fmt.Errorf("publish %s: %w", full, err)
	}
	slog.Debug("published event", "tag", "events", "subject", full)
	return nil
}

// Connected reports whether the underlying connection is up.
func (p *NATSPublisher) Connected() bool {
	return p.conn != nil && p.conn.IsConnected()
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() {
	if p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}

// Subject joins prefix and subject with a dot. An empty prefix leaves subject as is.
func Subject(prefix, subject string) string {
	if prefix == "" {
		return subject
	}
	return prefix + "." + subject
}

// Noop discards every event. Used when NATS is not configured.
type Noop struct{}

func (Noop) Publish(context.Context, string, any) error { return nil }
func (Noop) Connected() bool                           { return false }
func (Noop) Close()                                    {}
