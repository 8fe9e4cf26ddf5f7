package auth

import (
	"os"
	"time"
)

const (
	envAuthToken = "TWPIPELINE_AUTH_TOKEN"
	envCSRFToken = "TWPIPELINE_CSRF_TOKEN"
	envUserAgent = "TWPIPELINE_USER_AGENT"
)

// EnvironmentStore is a read-only CredentialStore over TWPIPELINE_* variables
type EnvironmentStore struct{}

func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve returns the environment cookies under username, or "default"
func (e *EnvironmentStore) Retrieve(username string) (*Account, error) {
	authToken := os.Getenv(envAuthToken)
	csrfToken := os.Getenv(envCSRFToken)
	if authToken == "" || csrfToken == "" {
		return nil, ErrCredentialsNotFound
	}

	if username == "" {
		username = "default"
	}
	return &Account{
		Username:     username,
		AuthToken:    authToken,
		CSRFToken:    csrfToken,
		UserAgent:    os.Getenv(envUserAgent),
		LastModified: time.Now(),
	}, nil
}

func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

func (e *EnvironmentStore) Delete(username string) error {
	return ErrStoreUnavailable
}

func (e *EnvironmentStore) Exists(username string) bool {
	return os.Getenv(envAuthToken) != "" && os.Getenv(envCSRFToken) != ""
}
