// Package source defines the contract between the mirror core and the
// session layer that talks to the remote collection.
package source

import (
	"context"
	"io"

	"docmirror/pkg/dataset"
)

// Ref is a document link seen on a listing page
type Ref struct {
	// ID is the stable identifier, also used as the local file name.
	ID  string
	URL string
	// Page is the listing page the link was seen on.
	Page int
}

// Document is an open document download. Size is -1 when the remote did
// not announce a length.
type Document struct {
	Body        io.ReadCloser
	Size        int64
	ContentType string
}

// Lister reads listing pages of one dataset.
type Lister interface {
	// FetchPage returns the document links on page. Errors classified as
	// auth_expired or challenge must not be retried by the caller.
	FetchPage(ctx context.Context, page int) ([]Ref, error)
}

// Fetcher opens documents of one dataset.
type Fetcher interface {
	FetchDocument(ctx context.Context, ref Ref) (*Document, error)
}

// Source is a dataset bound to an authenticated session
type Source interface {
	Lister
	Fetcher
}

// Session is the human-facing collaborator: it owns authentication state
// and the interaction with whoever clears verification challenges.
type Session interface {
	Open(ctx context.Context, ds dataset.Dataset) (Source, error)
	// AwaitHumanVerification blocks until a human has cleared a challenge.
	AwaitHumanVerification(ctx context.Context) error
	// Reauthorize re-establishes an expired session.
	Reauthorize(ctx context.Context) error
	Close() error
}
