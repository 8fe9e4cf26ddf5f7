// Package notify delivers run summaries to people or downstream consumers.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/danielbelay23/data-pipelines/pkg/config"
	"github.com/danielbelay23/data-pipelines/pkg/logger"
	"github.com/danielbelay23/data-pipelines/pkg/session"
)

// Notifier sends one run summary
type Notifier interface {
	Notify(ctx context.Context, s session.Summary) error
	Close() error
}

// Nop discards summaries
type Nop struct{}

func (Nop) Notify(context.Context, session.Summary) error { return nil }
func (Nop) Close() error                                  { return nil }

// New builds the notifier selected by cfg
func New(cfg config.NotificationConfig, log logger.Logger) (Notifier, error) {
	if !cfg.Enabled {
		return Nop{}, nil
	}
	switch strings.ToLower(cfg.Type) {
	case "desktop":
		return NewDesktop(log), nil
	case "amqp":
		return DialAMQP(cfg, log)
	case "none", "":
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown notification type %q", cfg.Type)
	}
}

// Title is the one-line headline of a summary
func Title(s session.Summary) string {
	if !s.Success {
		return "twpipeline: run interrupted"
	}
	return "twpipeline: run completed"
}

// Body is the short human-readable description of a summary
func Body(s session.Summary) string {
	following := "following skipped (" + s.GateReason + ")"
	if s.FollowingRan {
		following = fmt.Sprintf("+%d following", s.NewFollowing)
	}
	body := fmt.Sprintf("%s, +%d tweets in %.0fs", following, s.TweetsCollected, s.RuntimeSeconds)
	if s.Errors > 0 {
		body += fmt.Sprintf(", %d errors", s.Errors)
	}
	return body
}
