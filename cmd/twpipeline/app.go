package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/danielbelay23/data-pipelines/internal/export"
	"github.com/danielbelay23/data-pipelines/internal/statusapi"
	"github.com/danielbelay23/data-pipelines/pkg/auth"
	"github.com/danielbelay23/data-pipelines/pkg/collector"
	"github.com/danielbelay23/data-pipelines/pkg/config"
	"github.com/danielbelay23/data-pipelines/pkg/lock"
	"github.com/danielbelay23/data-pipelines/pkg/logger"
	"github.com/danielbelay23/data-pipelines/pkg/metrics"
	"github.com/danielbelay23/data-pipelines/pkg/notify"
	"github.com/danielbelay23/data-pipelines/pkg/pipeline"
	"github.com/danielbelay23/data-pipelines/pkg/ratelimit"
	"github.com/danielbelay23/data-pipelines/pkg/schedule"
	"github.com/danielbelay23/data-pipelines/pkg/session"
	"github.com/danielbelay23/data-pipelines/pkg/store"
	"github.com/danielbelay23/data-pipelines/pkg/twitter"
)

// app holds the components shared by the commands
type app struct {
	cfg *config.Config
	log logger.Logger
	loc *time.Location

	registry *prometheus.Registry
	metrics  *metrics.Collector

	sessionLog *session.Log
	following  *store.FollowingStore
	timeline   *store.TimelineStore
	profile    *store.ProfileStore
	gate       *schedule.Gate

	closers []func() error
}

func newApp(cfg *config.Config, log logger.Logger) (*app, error) {
	loc, err := cfg.Storage.Location()
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	s := cfg.Storage
	a := &app{
		cfg:        cfg,
		log:        log,
		loc:        loc,
		registry:   registry,
		metrics:    metrics.NewCollector(registry),
		sessionLog: session.NewLog(s.Path(s.SessionLogFile), log),
		following:  store.NewFollowingStore(s.Path(s.FollowingFile), log),
		timeline:   store.NewTimelineStore(s.Path(s.TweetsFile), loc, log),
		profile:    store.NewProfileStore(s.Path(s.ProfileFile), log),
	}
	a.gate = schedule.NewGate(a.sessionLog, schedule.Policy{
		MinInterval: cfg.Schedule.MinInterval,
		MaxInterval: cfg.Schedule.MaxInterval,
	}, loc, nil, log)
	return a, nil
}

// pipeline wires the remote client, credentials, lock and notifier into a
// runnable pipeline
func (a *app) pipeline() (*pipeline.Pipeline, error) {
	limiter := ratelimit.NewPerMinute(a.cfg.RateLimit.RequestsPerMinute, a.cfg.RateLimit.BurstSize)
	client := twitter.NewClient(&a.cfg.Twitter, limiter, a.log)

	manager, err := auth.NewManager()
	if err != nil {
		a.log.WithError(err).Warn("Credential stores unavailable, using environment only")
		manager = auth.NewManagerWithStores(auth.NewEnvironmentStore())
	}
	authenticator := auth.NewAuthenticator(manager, a.cfg.Twitter, client, a.log)

	runLock, closeLock, err := lock.Open(a.cfg.Lock, a.log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeLock)

	notifier, err := notify.New(a.cfg.Notifications, a.log)
	if err != nil {
		// a broken notifier must not block collection
		a.log.WithError(err).Warn("Notifications disabled")
		notifier = notify.Nop{}
	}
	a.closers = append(a.closers, notifier.Close)

	return pipeline.New(pipeline.Deps{
		Auth:      authenticator,
		Client:    client,
		Gate:      a.gate,
		Log:       a.sessionLog,
		Following: a.following,
		Timeline:  a.timeline,
		Profile:   a.profile,
		Lock:      runLock,
		Notifier:  notifier,
		Metrics:   a.metrics,
		Logger:    a.log,
	}, pipeline.Options{
		Username:          a.cfg.Twitter.Username,
		Location:          a.loc,
		FollowingPageSize: a.cfg.Following.PageSize,
		TimelinePageSize:  a.cfg.Timeline.PageSize,
		FollowingPolicy:   collector.PolicyFromConfig(a.cfg.Following),
		TimelinePolicy:    collector.PolicyFromConfig(a.cfg.Timeline),
	}), nil
}

// export syncs the documents into SQLite and, when configured, Postgres
func (a *app) export(ctx context.Context) ([]export.Report, error) {
	tables := export.Tables(&a.cfg.Storage)
	var reports []export.Report
	var errs []error

	if path := a.cfg.Export.SQLitePath; path != "" {
		exp, err := export.OpenSQLite(path, a.log)
		if err != nil {
			errs = append(errs, err)
		} else {
			r, err := exp.Sync(ctx, tables)
			reports = append(reports, r...)
			errs = append(errs, err, exp.Close())
		}
	}

	if dsn := a.cfg.Export.PostgresDSN; dsn != "" {
		exp, err := export.OpenPostgres(ctx, dsn, export.ConnectRetry(a.log), a.log)
		if err != nil {
			errs = append(errs, err)
		} else {
			r, err := exp.Sync(ctx, tables)
			reports = append(reports, r...)
			errs = append(errs, err, exp.Close())
		}
	}

	return reports, errors.Join(errs...)
}

// router builds the status API over the app's documents
func (a *app) router() http.Handler {
	return statusapi.NewRouter(statusapi.Deps{
		Sessions: a.sessionLog,
		Gate:     a.gate,
		Documents: map[string]statusapi.Counter{
			"following": a.following,
			"tweets":    a.timeline,
		},
		Gatherer: a.registry,
		Logger:   a.log,
	})
}

// writeMetrics writes the textfile for node-exporter when configured
func (a *app) writeMetrics() {
	path := a.cfg.Metrics.TextfilePath
	if path == "" {
		return
	}
	if err := metrics.WriteTextfile(path, a.registry); err != nil {
		a.log.WithError(err).Warn("Failed to write metrics textfile")
	}
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.WithError(err).Warn("Failed to close resource")
		}
	}
}

func describeReports(reports []export.Report) string {
	total := export.Report{}
	for _, r := range reports {
		total.Inserted += r.Inserted
		total.Updated += r.Updated
	}
	return fmt.Sprintf("%d tables, %d inserted, %d updated", len(reports), total.Inserted, total.Updated)
}
