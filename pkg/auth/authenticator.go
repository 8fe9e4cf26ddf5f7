package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/danielbelay23/data-pipelines/pkg/config"
	errs "github.com/danielbelay23/data-pipelines/pkg/errors"
	"github.com/danielbelay23/data-pipelines/pkg/logger"
	"github.com/danielbelay23/data-pipelines/pkg/session"
	"github.com/danielbelay23/data-pipelines/pkg/twitter"
)

const authFunction = "ensure_authenticated"

// Verifier is the part of the remote client the authenticator drives
type Verifier interface {
	SetCredentials(authToken, csrfToken, userAgent string)
	VerifyCredentials(ctx context.Context) (*twitter.User, error)
}

// Credentials is where stored cookies come from and working ones go back to
type Credentials interface {
	Retrieve(username string) (*Account, error)
	RetrieveDefault() (*Account, error)
	Store(account *Account) error
}

// Authenticator establishes an authenticated client session
type Authenticator struct {
	creds    Credentials
	cfg      config.TwitterConfig
	verifier Verifier
	logger   logger.Logger
	user     *twitter.User
}

func NewAuthenticator(creds Credentials, cfg config.TwitterConfig, verifier Verifier, log logger.Logger) *Authenticator {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Authenticator{
		creds:    creds,
		cfg:      cfg,
		verifier: verifier,
		logger:   log.WithField("component", "auth"),
	}
}

// User is the account verified by the last successful EnsureAuthenticated
func (a *Authenticator) User() *twitter.User {
	return a.user
}

// EnsureAuthenticated tries the stored cookies first and falls back to the
// cookies in configuration. Each failed step is recorded on the session; the
// returned error is always of kind auth_error.
func (a *Authenticator) EnsureAuthenticated(ctx context.Context, sess *session.Session) error {
	sess.Attempts++

	stored, err := a.storedAccount()
	if err == nil {
		user, verr := a.verify(ctx, sess, stored)
		if verr == nil {
			a.user = user
			a.logger.InfoWithFields("Authenticated with stored cookies", map[string]interface{}{
				"screen_name": user.ScreenName,
			})
			return nil
		}
		if ctx.Err() != nil {
			return errs.Wrap(errs.KindAuth, ctx.Err(), "authentication interrupted")
		}
		err = verr
	}
	sess.RecordError(session.EventCookieLoadFailed, err.Error(), authFunction)
	a.logger.WithError(err).Warn("Stored cookies unusable, falling back to configured cookies")

	if a.cfg.AuthToken == "" || a.cfg.CSRFToken == "" {
		msg := "no configured auth_token/csrf_token to fall back to"
		sess.RecordError(session.EventLoginFailed, msg, authFunction)
		return errs.New(errs.KindAuth, msg)
	}

	configured := &Account{
		Username:  a.cfg.Username,
		AuthToken: a.cfg.AuthToken,
		CSRFToken: a.cfg.CSRFToken,
		UserAgent: a.cfg.UserAgent,
	}
	user, err := a.verify(ctx, sess, configured)
	if err != nil {
		sess.RecordError(session.EventLoginFailed, err.Error(), authFunction)
		return errs.Wrap(errs.KindAuth, err, "authentication failed")
	}
	a.user = user

	if configured.Username == "" {
		configured.Username = user.ScreenName
	}
	if a.creds != nil {
		if err := a.creds.Store(configured); err != nil {
			a.logger.WithError(err).Warn("Failed to save working cookies")
		}
	}
	a.logger.InfoWithFields("Authenticated with configured cookies", map[string]interface{}{
		"screen_name": user.ScreenName,
	})
	return nil
}

func (a *Authenticator) storedAccount() (*Account, error) {
	if a.creds == nil {
		return nil, ErrCredentialsNotFound
	}
	if a.cfg.Username != "" {
		return a.creds.Retrieve(a.cfg.Username)
	}
	return a.creds.RetrieveDefault()
}

func (a *Authenticator) verify(ctx context.Context, sess *session.Session, acct *Account) (*twitter.User, error) {
	ua := acct.UserAgent
	if ua == "" {
		ua = a.cfg.UserAgent
	}
	a.verifier.SetCredentials(acct.AuthToken, acct.CSRFToken, ua)

	sess.Calls++
	user, err := a.verifier.VerifyCredentials(ctx)
	if err != nil {
		return nil, err
	}
	if user == nil || user.ID == "" {
		return nil, errors.New("verify_credentials returned no user")
	}
	if a.cfg.Username != "" && !equalFoldScreenName(user.ScreenName, a.cfg.Username) {
		return nil, fmt.Errorf("cookies belong to @%s, expected @%s", user.ScreenName, a.cfg.Username)
	}
	return user, nil
}

func equalFoldScreenName(a, b string) bool {
	return strings.EqualFold(twitter.SanitizeScreenName(a), twitter.SanitizeScreenName(b))
}
