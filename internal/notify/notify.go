package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/uptimeguard/internal/alert"
	"github.com/hamed0406/uptimeguard/internal/domain"
	"github.com/hamed0406/uptimeguard/internal/probe"
)

// ErrPhoneNotImplemented is returned by the phone channel. Phone contacts are
// stored and configurable but nothing dispatches to them yet.
var ErrPhoneNotImplemented = errors.New("phone channel not implemented")

// Alert is one decided alert for one target.
type Alert struct {
	Target      *domain.MonitoredTarget
	Kind        alert.Kind
	Result      probe.Result
	ThresholdMs int
	At          time.Time
}

// Message is what a Mailer delivers.
type Message struct {
	From    string
	To      string
	Subject string
	HTML    string
}

// Mailer sends one message and returns the transport's message id.
type Mailer interface {
	Send(ctx context.Context, m Message) (string, error)
}

// PhoneChannel would deliver an alert to a phone number.
type PhoneChannel interface {
	Call(ctx context.Context, phone string, a Alert) error
}

// NoPhone is the phone channel in use until a provider exists.
type NoPhone struct{}

func (NoPhone) Call(ctx context.Context, phone string, a Alert) error {
	return ErrPhoneNotImplemented
}

type Notifier struct {
	Mailer   Mailer
	From     string
	Phone    PhoneChannel
	Ops      OpsSink // optional mirror, never counts as delivery
	Location *time.Location
	Log      *zap.Logger
}

func New(m Mailer, from string, ops OpsSink, loc *time.Location, log *zap.Logger) *Notifier {
	if loc == nil {
		loc = time.Local
	}
	return &Notifier{Mailer: m, From: from, Phone: NoPhone{}, Ops: ops, Location: loc, Log: log}
}

// Notify delivers a to every configured contact in order and reports whether
// at least one delivery succeeded. Per-contact failures are logged.
func (n *Notifier) Notify(ctx context.Context, a Alert) bool {
	sent, err := n.Deliver(ctx, a)
	for _, e := range multierr.Errors(err) {
		if errors.Is(e, ErrPhoneNotImplemented) {
			n.Log.Warn("phone_channel_not_implemented", zap.String("target_id", string(a.Target.ID)))
			continue
		}
		n.Log.Warn("alert_send_failed", zap.String("target_id", string(a.Target.ID)), zap.String("kind", string(a.Kind)), zap.Error(e))
	}
	if n.Ops != nil {
		title, text := OpsLine(a, n.Location)
		if err := n.Ops.Send(ctx, title, text); err != nil {
			n.Log.Warn("ops_mirror_failed", zap.String("target_id", string(a.Target.ID)), zap.Error(err))
		}
	}
	return sent > 0
}

// Deliver sends a sequentially to each contact of the enabled channels. It
// returns the number of successful sends and every failure combined.
func (n *Notifier) Deliver(ctx context.Context, a Alert) (int, error) {
	cfg, _ := domain.EffectiveMonitoring(a.Target)
	if a.ThresholdMs == 0 {
		a.ThresholdMs = cfg.Alerts.ResponseTimeThresholdMs
	}
	var (
		sent int
		errs error
	)
	if cfg.Alerts.Email && len(a.Target.Contacts.Emails) > 0 {
		subject, body, err := Render(a, n.Location)
		if err != nil {
			return 0, fmt.Errorf("render %s alert: %w", a.Kind, err)
		}
		for _, to := range a.Target.Contacts.Emails {
			if err := ctx.Err(); err != nil {
				return sent, multierr.Append(errs, err)
			}
			id, err := n.Mailer.Send(ctx, Message{From: n.From, To: to, Subject: subject, HTML: body})
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("email %s: %w", to, err))
				continue
			}
			sent++
			n.Log.Info("alert_sent",
				zap.String("target_id", string(a.Target.ID)),
				zap.String("kind", string(a.Kind)),
				zap.String("to", to),
				zap.String("message_id", id),
			)
		}
	}
	if cfg.Alerts.Phone && len(a.Target.Contacts.Phones) > 0 && n.Phone != nil {
		for _, p := range a.Target.Contacts.Phones {
			if err := n.Phone.Call(ctx, p, a); err != nil {
				if errors.Is(err, ErrPhoneNotImplemented) {
					// one entry is enough to surface it
					errs = multierr.Append(errs, err)
					break
				}
				errs = multierr.Append(errs, fmt.Errorf("phone %s: %w", p, err))
				continue
			}
			sent++
		}
	}
	return sent, errs
}
