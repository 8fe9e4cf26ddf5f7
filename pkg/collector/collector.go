package collector

import (
	"context"
	"time"

	"github.com/danielbelay23/data-pipelines/pkg/config"
	errs "github.com/danielbelay23/data-pipelines/pkg/errors"
	"github.com/danielbelay23/data-pipelines/pkg/logger"
	"github.com/danielbelay23/data-pipelines/pkg/retry"
	"github.com/danielbelay23/data-pipelines/pkg/session"
)

// Page is one batch of items and the cursor of the next batch. An empty
// cursor marks the last page.
type Page[T any] struct {
	Items  []T
	Cursor string
}

// Source fetches a page by cursor; "" requests the first page
type Source[T any] interface {
	FetchPage(ctx context.Context, cursor string) (Page[T], error)
}

// Sink persists projected items and reports how many were new
type Sink[R any] interface {
	Merge(items []R) (int, error)
}

// Outcome is why a collection stopped
type Outcome string

const (
	OutcomeExhausted       Outcome = "exhausted"
	OutcomeTargetReached   Outcome = "target_reached"
	OutcomeBudgetExhausted Outcome = "budget_exhausted"
	OutcomeCaughtUp        Outcome = "caught_up"
	OutcomeAborted         Outcome = "aborted"
	OutcomeCancelled       Outcome = "cancelled"
)

// Policy bounds one collection
type Policy struct {
	// TargetItems stops the crawl once this many new items were stored; 0 disables
	TargetItems int
	// Budget is the wall-clock allowance measured from the first fetch
	Budget time.Duration
	// MaxEmptyPages stops after this many consecutive pages with nothing new; 0 disables
	MaxEmptyPages   int
	Delay           retry.Jitter
	LongPause       retry.Jitter
	LongPauseChance float64
	Cooldowns       retry.Cooldowns
}

// PolicyFromConfig maps a collection config section onto a Policy
func PolicyFromConfig(cc config.CollectionConfig) Policy {
	return Policy{
		TargetItems:     cc.TargetItems,
		Budget:          cc.Budget,
		MaxEmptyPages:   cc.MaxEmptyPages,
		Delay:           retry.Jitter{Min: cc.DelayMin, Max: cc.DelayMax},
		LongPause:       retry.Jitter{Min: cc.LongPauseMin, Max: cc.LongPauseMax},
		LongPauseChance: cc.LongPauseChance,
		Cooldowns: retry.Cooldowns{
			RateLimited: cc.RateLimitCooldown,
			ServerError: cc.ServerErrorCooldown,
			Unexpected:  cc.UnexpectedCooldown,
		},
	}
}

// Resource wires one remote collection to its store
type Resource[T, R any] struct {
	Name    string
	Source  Source[T]
	Key     func(T) string
	Project func(T) R
	Sink    Sink[R]
	// Known holds ids already persisted; it is copied, not modified
	Known  map[string]struct{}
	Policy Policy
	// Progress receives the running count of new items after every merge
	Progress func(collected int)
}

// Result reports a finished collection
type Result struct {
	Collected int
	Pages     int
	Outcome   Outcome
	Err       error
}

// Recorder observes collection events
type Recorder interface {
	PageFetched(resource string)
	ItemsCollected(resource string, n int)
	FetchFailed(resource string, kind errs.Kind)
	Cooldown(resource string, kind errs.Kind, d time.Duration)
}

// NopRecorder ignores every event
type NopRecorder struct{}

func (NopRecorder) PageFetched(string)                        {}
func (NopRecorder) ItemsCollected(string, int)                {}
func (NopRecorder) FetchFailed(string, errs.Kind)             {}
func (NopRecorder) Cooldown(string, errs.Kind, time.Duration) {}

// Runner supplies time, randomness and observation to collections
type Runner struct {
	Clock    func() time.Time
	Sleep    retry.Sleeper
	Rand     retry.Rand
	Logger   logger.Logger
	Recorder Recorder
}

// NewRunner creates a runner on the real clock
func NewRunner(log logger.Logger, rec Recorder) *Runner {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if rec == nil {
		rec = NopRecorder{}
	}
	return &Runner{
		Clock:    time.Now,
		Sleep:    retry.Wait,
		Rand:     retry.NewRand(),
		Logger:   log,
		Recorder: rec,
	}
}

// pause sleeps for d unless that would reach the deadline. It returns the
// terminal outcome when the collection must stop instead.
func (r *Runner) pause(ctx context.Context, d time.Duration, deadline time.Time) (Outcome, bool) {
	if !r.Clock().Add(d).Before(deadline) {
		return OutcomeBudgetExhausted, true
	}
	if err := r.Sleep(ctx, d); err != nil {
		return OutcomeCancelled, true
	}
	return "", false
}

// Collect pages through res until the source is exhausted, a target or the
// budget is reached, the crawl catches up with stored data, a non-retryable
// failure occurs, or ctx is cancelled. Each page's new items are merged into
// the sink before the next fetch.
func Collect[T, R any](ctx context.Context, r *Runner, sess *session.Session, res Resource[T, R]) Result {
	p := res.Policy
	function := "collect_" + res.Name
	log := r.Logger.WithField("resource", res.Name)

	seen := make(map[string]struct{}, len(res.Known))
	for id := range res.Known {
		seen[id] = struct{}{}
	}

	deadline := r.Clock().Add(p.Budget)
	cursor := ""
	result := Result{}
	emptyRun := 0

	finish := func(outcome Outcome, err error) Result {
		result.Outcome = outcome
		result.Err = err
		log.InfoWithFields("Collection finished", map[string]interface{}{
			"outcome":   string(outcome),
			"collected": result.Collected,
			"pages":     result.Pages,
		})
		return result
	}

	logger.LogComponentStart(log, function, map[string]interface{}{
		"known":       len(seen),
		"target":      p.TargetItems,
		"budget":      p.Budget,
		"empty_pages": p.MaxEmptyPages,
	})

	for {
		if ctx.Err() != nil {
			return finish(OutcomeCancelled, nil)
		}
		if !r.Clock().Before(deadline) {
			return finish(OutcomeBudgetExhausted, nil)
		}

		sess.Calls++
		page, err := res.Source.FetchPage(ctx, cursor)
		if err != nil {
			if ctx.Err() != nil {
				return finish(OutcomeCancelled, nil)
			}
			kind := errs.KindOf(err)
			sess.RecordError(string(kind), err.Error(), function)
			r.Recorder.FetchFailed(res.Name, kind)

			action := p.Cooldowns.For(kind)
			if !action.Retry {
				log.WithError(err).ErrorWithFields("Collection aborted", map[string]interface{}{
					"kind": string(kind),
				})
				return finish(OutcomeAborted, err)
			}

			if kind == errs.KindRateLimited {
				logger.LogRateLimit(log, res.Name, action.Delay)
			} else {
				log.WithError(err).WarnWithFields("Fetch failed, cooling down", map[string]interface{}{
					"kind":     string(kind),
					"cooldown": action.Delay,
				})
			}
			if outcome, stop := r.pause(ctx, action.Delay, deadline); stop {
				return finish(outcome, nil)
			}
			r.Recorder.Cooldown(res.Name, kind, action.Delay)
			continue
		}

		result.Pages++
		r.Recorder.PageFetched(res.Name)

		var buffer []R
		for _, item := range page.Items {
			id := res.Key(item)
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			buffer = append(buffer, res.Project(item))
		}

		added := 0
		if len(buffer) > 0 {
			added, err = res.Sink.Merge(buffer)
			if err != nil {
				sess.RecordError(session.EventPersistFailed, err.Error(), function)
				log.WithError(err).Error("Failed to persist page")
				return finish(OutcomeAborted, err)
			}
		}

		if added > 0 {
			emptyRun = 0
			result.Collected += added
			r.Recorder.ItemsCollected(res.Name, added)
			if res.Progress != nil {
				res.Progress(result.Collected)
			}
		} else {
			emptyRun++
		}
		logger.LogCollectionProgress(log, res.Name, result.Pages, result.Collected, p.TargetItems)

		switch {
		case page.Cursor == "":
			return finish(OutcomeExhausted, nil)
		case p.TargetItems > 0 && result.Collected >= p.TargetItems:
			return finish(OutcomeTargetReached, nil)
		case p.MaxEmptyPages > 0 && emptyRun >= p.MaxEmptyPages:
			return finish(OutcomeCaughtUp, nil)
		}

		delay := p.Delay.Pick(r.Rand)
		if p.LongPauseChance > 0 && r.Rand.Float64() < p.LongPauseChance {
			delay += p.LongPause.Pick(r.Rand)
		}
		if outcome, stop := r.pause(ctx, delay, deadline); stop {
			return finish(outcome, nil)
		}
		cursor = page.Cursor
	}
}
