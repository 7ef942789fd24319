// Package notify fans high-risk security events out to operators. Sinks are
// best effort: a sink failure is logged and never fails the login or token
// path that raised the alert.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/opswell/gatekeep/internal/auth/domain"
	"github.com/opswell/gatekeep/pkg/slogx"
)

// Alert is the payload delivered to sinks for a high-risk event.
type Alert struct {
	EventID   string           `json:"event_id"`
	Kind      domain.EventKind `json:"kind"`
	RiskLevel domain.RiskLevel `json:"risk_level"`
	Email     string           `json:"email,omitempty"`
	UserID    string           `json:"user_id,omitempty"`
	TenantID  string           `json:"tenant_id,omitempty"`
	IP        string           `json:"ip,omitempty"`
	Detail    string           `json:"detail,omitempty"`
	At        time.Time        `json:"at"`
}

// AlertSink delivers one alert.
type AlertSink interface {
	Send(ctx context.Context, a Alert) error
}

// AlertFromEvent maps a stored event to its alert payload.
func AlertFromEvent(e domain.SecurityEvent) Alert {
	a := Alert{
		EventID:   e.ID,
		Kind:      e.Kind,
		RiskLevel: e.RiskLevel,
		Email:     e.Email,
		IP:        e.IP,
		Detail:    e.Detail,
		At:        e.CreatedAt,
	}
	if e.UserID != nil {
		a.UserID = *e.UserID
	}
	if e.TenantID != nil {
		a.TenantID = *e.TenantID
	}
	return a
}

// LogSink writes alerts to the structured log. It is the fallback sink when
// no broker is configured.
type LogSink struct{}

func (LogSink) Send(ctx context.Context, a Alert) error {
	slogx.FromContext(ctx).Warn("security alert",
		slog.String("event_id", a.EventID),
		slog.String("kind", string(a.Kind)),
		slog.String("risk_level", string(a.RiskLevel)),
		slog.String("email", a.Email),
		slog.String("ip", a.IP),
		slog.String("detail", a.Detail),
	)
	return nil
}
