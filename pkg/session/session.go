// Package session provides the authenticated, human-assisted access to the
// remote collection. Two drivers exist: a real browser driven over the
// DevTools protocol, and plain HTTP reusing a cookie the human copied from
// their own browser.
package session

import (
	"context"
	"fmt"

	"docmirror/pkg/auth"
	"docmirror/pkg/config"
	"docmirror/pkg/listing"
	"docmirror/pkg/logger"
	"docmirror/pkg/source"
)

// Driver names
const (
	DriverBrowser = "browser"
	DriverHTTP    = "http"
)

// Prompter is the channel to the human at the keyboard
type Prompter interface {
	// WaitForEnter shows msg and blocks until the human confirms.
	WaitForEnter(ctx context.Context, msg string) error
	// ReadSecret reads a line without echoing it.
	ReadSecret(ctx context.Context, prompt string) (string, error)
}

// Credentials is the part of the credential manager the HTTP driver uses
type Credentials interface {
	Retrieve(name string) (*auth.Credential, error)
	RetrieveDefault() (*auth.Credential, error)
	Store(cred *auth.Credential) error
}

// New builds the driver named by cfg.Session.Driver
func New(cfg *config.Config, prompter Prompter, creds Credentials, log logger.Logger) (source.Session, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	extractor, err := listing.NewExtractor(cfg.Source)
	if err != nil {
		return nil, err
	}

	switch cfg.Session.Driver {
	case DriverBrowser, "":
		return NewBrowser(cfg.Session, extractor, prompter, log), nil
	case DriverHTTP:
		return NewHTTP(cfg.Session, extractor, prompter, creds, log)
	default:
		return nil, fmt.Errorf("unknown session driver %q", cfg.Session.Driver)
	}
}
