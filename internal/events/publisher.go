// Package events publishes survey lifecycle notifications over NATS so
// downstream consumers (demand modelling, reporting) can react without
// polling the database.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/MikeSquared-Agency/hearth/internal/survey"
)

const (
	SubjectApplianceCommitted = "survey.appliance.committed"
	SubjectSessionCompleted   = "survey.session.completed"
	SubjectSessionAbandoned   = "survey.session.abandoned"
)

// ApplianceCommitted is emitted for every appliance row that lands,
// including rows that supersede an earlier record for the same slot.
type ApplianceCommitted struct {
	SessionID  string  `json:"session_id"`
	UserID     string  `json:"user_id"`
	FamilyID   string  `json:"family_id"`
	RecordID   int64   `json:"record_id"`
	Name       string  `json:"name"`
	PowerWatts int     `json:"power_watts"`
	DailyKWh   float64 `json:"daily_kwh"`
	Superseded int64   `json:"superseded,omitempty"`
}

// SessionEnded is emitted on completion or abandonment.
type SessionEnded struct {
	SessionID  string `json:"session_id"`
	UserID     string `json:"user_id"`
	FamilyID   string `json:"family_id"`
	Status     string `json:"status"`
	Appliances int    `json:"appliances"`
}

type Publisher struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// Connect dials NATS with retrying reconnect behaviour. Token may be
// empty for unauthenticated brokers.
func Connect(ctx context.Context, url, token string, logger *slog.Logger) (*Publisher, error) {
	opts := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &Publisher{conn: nc, logger: logger}, nil
}

// ApplianceCommitted publishes a commit notification. A nil publisher is
// a no-op, so the interview loop works with eventing disabled.
func (p *Publisher) ApplianceCommitted(a survey.Appliance, dailyKWh float64, superseded int64) {
	if p == nil {
		return
	}
	p.publish(SubjectApplianceCommitted, ApplianceCommitted{
		SessionID:  a.SessionID,
		UserID:     a.UserID,
		FamilyID:   a.FamilyID,
		RecordID:   a.ID,
		Name:       a.Name,
		PowerWatts: a.Power,
		DailyKWh:   dailyKWh,
		Superseded: superseded,
	})
}

// SessionEnded publishes a terminal lifecycle notification.
func (p *Publisher) SessionEnded(sess survey.Session, status survey.SessionStatus, appliances int) {
	if p == nil {
		return
	}
	subject := SubjectSessionCompleted
	if status == survey.StatusAbandoned {
		subject = SubjectSessionAbandoned
	}
	p.publish(subject, SessionEnded{
		SessionID:  sess.ID,
		UserID:     sess.UserID,
		FamilyID:   sess.FamilyID,
		Status:     string(status),
		Appliances: appliances,
	})
}

func (p *Publisher) publish(subject string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		p.logger.Error("marshal event", "subject", subject, "error", err)
		return
	}
	if err := p.conn.Publish(subject, payload); err != nil {
		p.logger.Warn("publish event", "subject", subject, "error", err)
	}
}

func (p *Publisher) Close() {
	if p == nil {
		return
	}
	p.conn.Close()
}
