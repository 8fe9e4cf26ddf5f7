package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danielbelay23/data-pipelines/pkg/collector"
	errs "github.com/danielbelay23/data-pipelines/pkg/errors"
	"github.com/danielbelay23/data-pipelines/pkg/logger"
	"github.com/danielbelay23/data-pipelines/pkg/schedule"
	"github.com/danielbelay23/data-pipelines/pkg/session"
)

const (
	// ReasonGateError is the gate reason used when the gate cannot decide
	ReasonGateError = "gate_error"
	// ReasonAuthFailed is the skip reason when the gate said run but the
	// session could not authenticate
	ReasonAuthFailed = "auth_failed"
)

// steps named in panic events; the collections use their op names
const (
	stepAuthenticate = "authenticate"
	stepDecide       = "should_collect_following"
	stepComplete     = "complete_session"
	stepNotify       = "notify"
)

// Deps are the collaborators of a pipeline run
type Deps struct {
	Auth      Authenticator
	Client    Client
	Gate      Gate
	Log       SessionLog
	Following FollowingStore
	Timeline  TimelineStore
	Profile   ProfileCache
	Lock      RunLock
	Notifier  Notifier
	Metrics   Recorder
	Logger    logger.Logger
}

// Options are the per-run settings
type Options struct {
	Username          string
	Location          *time.Location
	FollowingPageSize int
	TimelinePageSize  int
	FollowingPolicy   collector.Policy
	TimelinePolicy    collector.Policy
}

// Pipeline runs one collection session
type Pipeline struct {
	deps   Deps
	opts   Options
	runner *collector.Runner
	logger logger.Logger
}

// New creates a pipeline on the real clock
func New(deps Deps, opts Options) *Pipeline {
	if deps.Logger == nil {
		deps.Logger = logger.NewNopLogger()
	}
	if deps.Metrics == nil {
		deps.Metrics = nopRecorder{}
	}
	if deps.Notifier == nil {
		deps.Notifier = nopNotifier{}
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Pipeline{
		deps:   deps,
		opts:   opts,
		runner: collector.NewRunner(deps.Logger, deps.Metrics),
		logger: deps.Logger.WithField("component", "pipeline"),
	}
}

// WithRunner replaces the clock, sleeper and random source of collections
func (p *Pipeline) WithRunner(r *collector.Runner) *Pipeline {
	p.runner = r
	return p
}

// Run executes one session: gate, following collection, timeline
// collection, then the final summary. Failures inside a step are recorded on
// the session and the run moves on; a panic in any step ends the run with a
// completed entry marked unsuccessful. The only error returned for a run that
// started is one wrapping session.ErrEncode; ErrHeld-style lock errors are
// returned before anything is written.
func (p *Pipeline) Run(ctx context.Context) (summary session.Summary, err error) {
	if p.deps.Lock != nil {
		if err := p.deps.Lock.Acquire(ctx); err != nil {
			return session.Summary{}, fmt.Errorf("run lock: %w", err)
		}
		defer func() {
			// release even when ctx is already cancelled
			if err := p.deps.Lock.Release(context.WithoutCancel(ctx)); err != nil {
				p.logger.WithError(err).Warn("Failed to release run lock")
			}
		}()
	}

	sess := session.New(p.runner.Clock, p.opts.Location)
	log := p.logger.WithField("session_id", sess.ID)
	logger.LogComponentStart(log, "session", map[string]interface{}{
		"start_time": sess.Format(sess.StartTime),
	})

	if err := p.append(sess, session.StatusStarted, nil); err != nil {
		return sess.Summarize(), err
	}

	partial := session.Summary{}
	step := stepAuthenticate
	defer func() {
		if r := recover(); r != nil {
			summary, err = p.recoverRun(ctx, sess, log, step, partial, r)
		}
	}()

	authed := p.authenticate(ctx, sess)

	// following
	step = stepDecide
	decision := p.decide(sess)
	p.deps.Metrics.RecordGate(string(decision.Reason))
	partial.GateReason = string(decision.Reason)

	if authed && decision.Run {
		step = opFollowing
		result, total := p.collectFollowing(ctx, sess)
		partial.FollowingRan = true
		partial.FollowingOutcome = string(result.Outcome)

		collected := 0
		if result.Outcome != collector.OutcomeAborted && result.Outcome != collector.OutcomeCancelled {
			collected = total
		}
		err := p.append(sess, session.StatusFollowingComplete, map[string]interface{}{
			"following_collected": collected,
			"new_following_count": sess.NewFollowingCount,
			"outcome":             string(result.Outcome),
			"gate_reason":         string(decision.Reason),
		})
		if err != nil {
			return sess.Summarize(), err
		}
	} else {
		reason := string(schedule.ReasonRecentRun)
		if !authed && decision.Run {
			reason = ReasonAuthFailed
		}
		err := p.append(sess, session.StatusFollowingSkipped, map[string]interface{}{
			"reason":              reason,
			"gate_reason":         string(decision.Reason),
			"following_collected": 0,
			"hours_since":         decision.HoursSince,
			"run_probability":     decision.Probability,
		})
		if err != nil {
			return sess.Summarize(), err
		}
	}

	// timeline
	step = opTimeline
	timelineOutcome := collector.OutcomeAborted
	if authed {
		result, _ := p.collectTimeline(ctx, sess)
		timelineOutcome = result.Outcome
	}
	partial.TimelineOutcome = string(timelineOutcome)
	err = p.append(sess, session.StatusTweetsComplete, map[string]interface{}{
		"tweets_collected": sess.TweetsCollected,
		"outcome":          string(timelineOutcome),
	})
	if err != nil {
		return sess.Summarize(), err
	}

	// completion
	step = stepComplete
	partial.FollowingTotal = p.count(p.deps.Following.Count, "following")
	partial.TweetsTotal = p.count(p.deps.Timeline.Count, "tweets")
	partial.Success = ctx.Err() == nil && authed
	err = p.append(sess, session.StatusCompleted, map[string]interface{}{
		"final_following_count": partial.FollowingTotal,
		"final_tweets_count":    partial.TweetsTotal,
		"success":               partial.Success,
	})
	if err != nil {
		return sess.Summarize(), err
	}

	step = stepNotify
	return p.finish(ctx, sess, log, partial), nil
}

// recoverRun turns a panic in step into an unexpected_error event and closes
// the session as unsuccessful with whatever was collected so far
func (p *Pipeline) recoverRun(ctx context.Context, sess *session.Session, log logger.Logger, step string, partial session.Summary, r interface{}) (session.Summary, error) {
	msg := fmt.Sprint(r)
	sess.RecordError(string(errs.KindUnexpected), msg, step)
	log.ErrorWithFields("Session panicked", map[string]interface{}{
		"step":  step,
		"panic": msg,
	})

	if step == stepNotify {
		// completed is already logged
		return merge(sess, partial), nil
	}

	partial.Success = false
	err := p.append(sess, session.StatusCompleted, map[string]interface{}{
		"final_following_count": partial.FollowingTotal,
		"final_tweets_count":    partial.TweetsTotal,
		"success":               false,
		"failed_step":           step,
	})
	if err != nil {
		return sess.Summarize(), err
	}
	return p.finish(ctx, sess, log, partial), nil
}

// finish merges the session counters into partial, then records and
// announces the run
func (p *Pipeline) finish(ctx context.Context, sess *session.Session, log logger.Logger, partial session.Summary) session.Summary {
	final := merge(sess, partial)

	logger.LogMetrics(log, "session", map[string]interface{}{
		"runtime_seconds":  final.RuntimeSeconds,
		"calls":            final.Calls,
		"new_following":    final.NewFollowing,
		"tweets_collected": final.TweetsCollected,
		"errors":           final.Errors,
		"success":          final.Success,
	})

	p.deps.Metrics.RecordRun(final)
	if err := p.deps.Notifier.Notify(context.WithoutCancel(ctx), final); err != nil {
		log.WithError(err).Warn("Failed to send run notification")
	}
	return final
}

func merge(sess *session.Session, partial session.Summary) session.Summary {
	final := sess.Summarize()
	final.FollowingRan = partial.FollowingRan
	final.GateReason = partial.GateReason
	final.FollowingOutcome = partial.FollowingOutcome
	final.FollowingTotal = partial.FollowingTotal
	final.TimelineOutcome = partial.TimelineOutcome
	final.TweetsTotal = partial.TweetsTotal
	final.Success = partial.Success
	return final
}

// append writes a log entry. Write failures are logged and swallowed; only an
// encoding failure is returned.
func (p *Pipeline) append(sess *session.Session, status session.Status, extra map[string]interface{}) error {
	_, err := p.deps.Log.Append(sess, status, extra)
	if err == nil {
		return nil
	}
	if errors.Is(err, session.ErrEncode) {
		p.logger.WithError(err).ErrorWithFields("Session log entry cannot be encoded", map[string]interface{}{
			"status": string(status),
		})
		return err
	}
	p.logger.WithError(err).WarnWithFields("Failed to write session log", map[string]interface{}{
		"status": string(status),
	})
	return nil
}

func (p *Pipeline) authenticate(ctx context.Context, sess *session.Session) bool {
	if p.deps.Auth == nil {
		return true
	}
	if err := p.deps.Auth.EnsureAuthenticated(ctx, sess); err != nil {
		p.logger.WithError(err).Error("Authentication failed, skipping collections")
		return false
	}
	return true
}

// decide asks the gate; an error is recorded and treated as skip
func (p *Pipeline) decide(sess *session.Session) schedule.Decision {
	d, err := p.deps.Gate.Decide(p.runner.Clock())
	if err != nil {
		sess.RecordError(string(errs.KindUnexpected), err.Error(), stepDecide)
		p.logger.WithError(err).Warn("Schedule gate failed, skipping following collection")
		return schedule.Decision{Evaluation: schedule.Evaluation{Reason: ReasonGateError}}
	}
	return d
}

func (p *Pipeline) count(fn func() (int, error), document string) int {
	n, err := fn()
	if err != nil {
		p.logger.WithError(err).WarnWithFields("Failed to count document", map[string]interface{}{
			"document": document,
		})
		return 0
	}
	return n
}
