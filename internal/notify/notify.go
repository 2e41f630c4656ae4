// Package notify delivers best-effort chat notifications about new session
// activity. Delivery failures are logged, never surfaced to the writer
// whose registration or message triggered them.
package notify

import (
	"context"

	"github.com/zulandar/qrchat/internal/config"
	"github.com/zulandar/qrchat/internal/models"
)

// Notifier is the hook the store calls after a successful write.
type Notifier interface {
	VisitorRegistered(ctx context.Context, sess *models.Session, v *models.Visitor)
	MessageReceived(ctx context.Context, sess *models.Session, v *models.Visitor, m *models.Message)
}

// Multi fans a notification out to several targets.
type Multi struct {
	targets []Notifier
}

// NewMulti combines targets into one Notifier. Nil targets are skipped.
func NewMulti(targets ...Notifier) *Multi {
	m := &Multi{}
	for _, t := range targets {
		if t != nil {
			m.targets = append(m.targets, t)
		}
	}
	return m
}

func (m *Multi) VisitorRegistered(ctx context.Context, sess *models.Session, v *models.Visitor) {
	for _, t := range m.targets {
		t.VisitorRegistered(ctx, sess, v)
	}
}

func (m *Multi) MessageReceived(ctx context.Context, sess *models.Session, v *models.Visitor, msg *models.Message) {
	for _, t := range m.targets {
		t.MessageReceived(ctx, sess, v, msg)
	}
}

// FromConfig builds the configured notifier set. Returns nil when no
// target is configured, so callers can skip the hook entirely.
func FromConfig(cfg config.NotifyConfig) (*Multi, error) {
	var targets []Notifier
	if cfg.Slack.Token != "" {
		targets = append(targets, NewSlack(cfg.Slack))
	}
	if cfg.Discord.Token != "" {
		d, err := NewDiscord(cfg.Discord)
		if err != nil {
			return nil, err
		}
		targets = append(targets, d)
	}
	if len(targets) == 0 {
		return nil, nil
	}
	return NewMulti(targets...), nil
}

// sessionLabel names a session in notification text.
func sessionLabel(sess *models.Session) string {
	if sess.Name != "" {
		return sess.Name
	}
	return sess.ID
}
