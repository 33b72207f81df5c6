package auth

import (
	"os"
	"time"
)

// Environment variables read by EnvironmentStore
const (
	EnvCookie    = "DOCMIRROR_COOKIE"
	EnvUserAgent = "DOCMIRROR_USER_AGENT"
)

// EnvironmentStore implements CredentialStore over environment variables.
// It is read-only.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(cred *Credential) error {
	return ErrStoreUnavailable
}

// Retrieve returns the environment credential under any name
func (e *EnvironmentStore) Retrieve(name string) (*Credential, error) {
	cookie := NormalizeCookie(os.Getenv(EnvCookie))
	if cookie == "" {
		return nil, ErrCredentialsNotFound
	}
	if name == "" {
		name = "env"
	}
	return &Credential{
		Name:         name,
		Cookie:       cookie,
		UserAgent:    os.Getenv(EnvUserAgent),
		LastModified: time.Now(),
	}, nil
}

// List returns the environment credential if one is set
func (e *EnvironmentStore) List() ([]*Credential, error) {
	cred, err := e.Retrieve("")
	if err != nil {
		return []*Credential{}, nil
	}
	return []*Credential{cred}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(name string) error {
	return ErrStoreUnavailable
}

// Exists checks if an environment credential is set
func (e *EnvironmentStore) Exists(name string) bool {
	return os.Getenv(EnvCookie) != ""
}
