package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/danielbelay23/data-pipelines/pkg/collector"
	errs "github.com/danielbelay23/data-pipelines/pkg/errors"
	"github.com/danielbelay23/data-pipelines/pkg/session"
	"github.com/danielbelay23/data-pipelines/pkg/store"
	"github.com/danielbelay23/data-pipelines/pkg/twitter"
)

const (
	opFollowing = "collect_following"
	opTimeline  = "collect_timeline"
)

// collectFollowing crawls the following list and returns the document size after it
func (p *Pipeline) collectFollowing(ctx context.Context, sess *session.Session) (collector.Result, int) {
	userID, err := p.resolveUserID(ctx, sess)
	if err != nil {
		return collector.Result{Outcome: collector.OutcomeAborted, Err: err}, p.count(p.deps.Following.Count, "following")
	}

	known, err := p.deps.Following.IDs()
	if err != nil {
		sess.RecordError(string(errs.KindUnexpected), err.Error(), opFollowing)
		return collector.Result{Outcome: collector.OutcomeAborted, Err: err}, 0
	}

	res := collector.Resource[twitter.User, store.Following]{
		Name:     "following",
		Source:   collector.FollowingSource{Client: p.deps.Client, UserID: userID, PageSize: p.opts.FollowingPageSize},
		Key:      collector.UserKey,
		Project:  collector.ProjectUser,
		Sink:     p.deps.Following,
		Known:    known,
		Policy:   p.opts.FollowingPolicy,
		Progress: func(n int) { sess.NewFollowingCount = n },
	}
	result := safeCollect(ctx, p, sess, opFollowing, res)
	return result, p.count(p.deps.Following.Count, "following")
}

// collectTimeline crawls the home timeline and returns the document size after it
func (p *Pipeline) collectTimeline(ctx context.Context, sess *session.Session) (collector.Result, int) {
	known, err := p.deps.Timeline.IDs()
	if err != nil {
		sess.RecordError(string(errs.KindUnexpected), err.Error(), opTimeline)
		return collector.Result{Outcome: collector.OutcomeAborted, Err: err}, 0
	}

	res := collector.Resource[twitter.Tweet, store.Tweet]{
		Name:     "timeline",
		Source:   collector.TimelineSource{Client: p.deps.Client, PageSize: p.opts.TimelinePageSize},
		Key:      collector.TweetKey,
		Project:  collector.ProjectTweet,
		Sink:     p.deps.Timeline,
		Known:    known,
		Policy:   p.opts.TimelinePolicy,
		Progress: func(n int) { sess.TweetsCollected = n },
	}
	result := safeCollect(ctx, p, sess, opTimeline, res)
	return result, p.count(p.deps.Timeline.Count, "tweets")
}

// safeCollect runs one collection, converting a panic into an
// unexpected_error event and an aborted result
func safeCollect[T, R any](ctx context.Context, p *Pipeline, sess *session.Session, op string, res collector.Resource[T, R]) (result collector.Result) {
	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprint(r)
			sess.RecordError(string(errs.KindUnexpected), msg, op)
			p.logger.ErrorWithFields("Collection panicked", map[string]interface{}{
				"operation": op,
				"panic":     msg,
			})
			result = collector.Result{
				Outcome: collector.OutcomeAborted,
				Err:     fmt.Errorf("panic in %s: %v", op, r),
			}
		}
	}()
	return collector.Collect(ctx, p.runner, sess, res)
}

// resolveUserID returns the collecting account's id from the profile cache,
// the authenticated user, or a screen-name lookup, caching what it finds
func (p *Pipeline) resolveUserID(ctx context.Context, sess *session.Session) (string, error) {
	if p.deps.Profile != nil {
		prof, err := p.deps.Profile.Load()
		if err != nil {
			p.logger.WithError(err).Warn("Failed to read profile cache")
		} else if prof != nil {
			return prof.UserID, nil
		}
	}

	var user *twitter.User
	if p.deps.Auth != nil {
		user = p.deps.Auth.User()
	}
	if user == nil {
		if p.opts.Username == "" {
			err := errors.New("no username configured to look up")
			sess.RecordError(session.EventUserLookupFailed, err.Error(), opFollowing)
			return "", err
		}
		sess.Calls++
		u, err := p.deps.Client.UserByScreenName(ctx, p.opts.Username)
		if err != nil {
			sess.RecordError(session.EventUserLookupFailed, err.Error(), opFollowing)
			return "", fmt.Errorf("look up @%s: %w", p.opts.Username, err)
		}
		user = u
	}

	if p.deps.Profile != nil {
		if err := p.deps.Profile.Save(user.ID, user.ScreenName); err != nil {
			p.logger.WithError(err).Warn("Failed to cache profile")
		}
	}
	return user.ID, nil
}
