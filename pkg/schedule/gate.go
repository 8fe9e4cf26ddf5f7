package schedule

import (
	"fmt"
	"time"

	"github.com/danielbelay23/data-pipelines/pkg/logger"
	"github.com/danielbelay23/data-pipelines/pkg/retry"
	"github.com/danielbelay23/data-pipelines/pkg/session"
)

// Reason explains a gate outcome
type Reason string

const (
	ReasonColdStart Reason = "cold_start"
	ReasonForced    Reason = "forced"
	ReasonRampHit   Reason = "ramp_hit"
	ReasonRampMiss  Reason = "ramp_miss"
	ReasonRecentRun Reason = "recent_run"
	// ReasonRamp marks an evaluation inside the ramp before any draw
	ReasonRamp Reason = "ramp"
)

// Source finds the newest session log entry matching a predicate
type Source interface {
	MostRecentMatching(pred func(session.Entry) bool) (session.Entry, bool, error)
}

// Policy bounds the ramp. Below MinInterval a run is skipped, above
// MaxInterval it is forced, and in between the chance rises linearly.
type Policy struct {
	MinInterval time.Duration
	MaxInterval time.Duration
}

// Evaluation is the deterministic part of a gate decision
type Evaluation struct {
	Reason      Reason     `json:"reason"`
	LastRun     *time.Time `json:"last_run,omitempty"`
	HoursSince  float64    `json:"hours_since"`
	Probability float64    `json:"run_probability"`
}

// Decision is an evaluation plus the sampled outcome
type Decision struct {
	Evaluation
	Run  bool    `json:"run"`
	Draw float64 `json:"draw"`
}

// Gate decides whether the following collection runs this session
type Gate struct {
	source Source
	policy Policy
	loc    *time.Location
	rand   retry.Rand
	logger logger.Logger
}

// NewGate creates a gate reading past runs from source
func NewGate(source Source, policy Policy, loc *time.Location, rng retry.Rand, log logger.Logger) *Gate {
	if loc == nil {
		loc = time.Local
	}
	if rng == nil {
		rng = retry.NewRand()
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Gate{source: source, policy: policy, loc: loc, rand: rng, logger: log}
}

// LastCompletedRun returns the timestamp of the newest following collection
// that gathered at least one account
func (g *Gate) LastCompletedRun() (time.Time, bool, error) {
	var last time.Time
	_, found, err := g.source.MostRecentMatching(func(e session.Entry) bool {
		if e.Status != session.StatusFollowingComplete {
			return false
		}
		if n, ok := e.Int("following_collected"); !ok || n <= 0 {
			return false
		}
		t, err := ParseTimestamp(e.Timestamp, g.loc)
		if err != nil {
			return false
		}
		last = t
		return true
	})
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read session log: %w", err)
	}
	return last, found, nil
}

// Evaluate computes the gate state at now without sampling
func (g *Gate) Evaluate(now time.Time) (Evaluation, error) {
	last, found, err := g.LastCompletedRun()
	if err != nil {
		return Evaluation{}, err
	}
	if !found {
		return Evaluation{Reason: ReasonColdStart, Probability: 1}, nil
	}

	last = last.In(g.loc)
	elapsed := now.In(g.loc).Sub(last)
	ev := Evaluation{LastRun: &last, HoursSince: elapsed.Hours()}

	switch {
	case elapsed > g.policy.MaxInterval:
		ev.Reason, ev.Probability = ReasonForced, 1
	case elapsed >= g.policy.MinInterval:
		ev.Reason = ReasonRamp
		ev.Probability = float64(elapsed-g.policy.MinInterval) / float64(g.policy.MaxInterval-g.policy.MinInterval)
	default:
		ev.Reason, ev.Probability = ReasonRecentRun, 0
	}
	return ev, nil
}

// Decide evaluates the gate and, inside the ramp, draws once
func (g *Gate) Decide(now time.Time) (Decision, error) {
	ev, err := g.Evaluate(now)
	if err != nil {
		return Decision{}, err
	}

	d := Decision{Evaluation: ev}
	switch ev.Reason {
	case ReasonColdStart, ReasonForced:
		d.Run = true
	case ReasonRecentRun:
		d.Run = false
	case ReasonRamp:
		d.Draw = g.rand.Float64()
		d.Run = d.Draw < ev.Probability
		if d.Run {
			d.Reason = ReasonRampHit
		} else {
			d.Reason = ReasonRampMiss
		}
	}

	g.logger.InfoWithFields("Schedule gate decided", map[string]interface{}{
		"run":             d.Run,
		"reason":          string(d.Reason),
		"hours_since":     d.HoursSince,
		"run_probability": d.Probability,
	})
	return d, nil
}

var zonelessLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
}

// ParseTimestamp reads an ISO-8601 timestamp. One without a UTC offset is
// interpreted in loc.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02 15:04:05.999999999Z07:00", s); err == nil {
		return t, nil
	}
	for _, layout := range zonelessLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
