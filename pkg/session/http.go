package session

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"docmirror/pkg/auth"
	"docmirror/pkg/config"
	"docmirror/pkg/dataset"
	"docmirror/pkg/listing"
	"docmirror/pkg/logger"
	"docmirror/pkg/source"
)

// HTTPSession talks to the site directly with a cookie captured from the
// human's browser. Reauthorization asks for a fresh cookie.
type HTTPSession struct {
	cfg       config.SessionConfig
	client    *http.Client
	extractor *listing.Extractor
	prompter  Prompter
	creds     Credentials
	logger    logger.Logger

	mu        sync.RWMutex
	cookie    string
	userAgent string
}

// NewHTTP creates an HTTP session. The cookie comes from the configuration
// (DOCMIRROR_COOKIE) or the credential store; having none is allowed for
// collections that are not gated yet.
func NewHTTP(cfg config.SessionConfig, extractor *listing.Extractor, prompter Prompter, creds Credentials, log logger.Logger) (*HTTPSession, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	s := &HTTPSession{
		cfg:       cfg,
		client:    &http.Client{},
		extractor: extractor,
		prompter:  prompter,
		creds:     creds,
		logger:    log.WithField("driver", DriverHTTP),
		cookie:    auth.NormalizeCookie(cfg.Cookie),
		userAgent: cfg.UserAgent,
	}

	if s.cookie == "" && creds != nil {
		var cred *auth.Credential
		var err error
		if cfg.Account != "" {
			cred, err = creds.Retrieve(cfg.Account)
		} else {
			cred, err = creds.RetrieveDefault()
		}
		switch {
		case err == nil:
			s.cookie = cred.Cookie
			if cred.UserAgent != "" {
				s.userAgent = cred.UserAgent
			}
		case errors.Is(err, auth.ErrCredentialsNotFound):
			s.logger.Warn("No stored session cookie, starting unauthenticated")
		default:
			return nil, err
		}
	}
	return s, nil
}

// SetClient replaces the HTTP client
func (s *HTTPSession) SetClient(c *http.Client) {
	s.client = c
}

func (s *HTTPSession) headers(referer string) requestHeaders {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return requestHeaders{Cookie: s.cookie, UserAgent: s.userAgent, Referer: referer}
}

// Open binds the session to a dataset
func (s *HTTPSession) Open(ctx context.Context, ds dataset.Dataset) (source.Source, error) {
	return &httpSource{s: s, ds: ds}, nil
}

// AwaitHumanVerification asks the human to clear the challenge in their
// browser and optionally paste the cookie of the verified session.
func (s *HTTPSession) AwaitHumanVerification(ctx context.Context) error {
	if s.prompter == nil {
		return errors.New("verification required but no prompter is available")
	}
	if err := s.prompter.WaitForEnter(ctx, "Open the site in your browser and clear the verification page, then press Enter"); err != nil {
		return err
	}
	cookie, err := s.prompter.ReadSecret(ctx, "Paste the Cookie header of that session (Enter to keep the current one): ")
	if err != nil {
		return err
	}
	return s.updateCookie(cookie, false)
}

// Reauthorize asks the human for a fresh cookie and stores it
func (s *HTTPSession) Reauthorize(ctx context.Context) error {
	if s.prompter == nil {
		return errors.New("session expired but no prompter is available")
	}
	for {
		cookie, err := s.prompter.ReadSecret(ctx, "Session expired. Paste a fresh Cookie header: ")
		if err != nil {
			return err
		}
		if strings.TrimSpace(cookie) == "" {
			continue
		}
		return s.updateCookie(cookie, true)
	}
}

func (s *HTTPSession) updateCookie(raw string, required bool) error {
	cookie := auth.NormalizeCookie(raw)
	if cookie == "" {
		if required {
			return auth.ErrInvalidCredentials
		}
		return nil
	}

	s.mu.Lock()
	s.cookie = cookie
	ua := s.userAgent
	s.mu.Unlock()

	if s.creds != nil {
		name := s.cfg.Account
		if name == "" {
			name = "default"
		}
		if err := s.creds.Store(&auth.Credential{Name: name, Cookie: cookie, UserAgent: ua}); err != nil {
			s.logger.WithError(err).Warn("Failed to store session cookie, using it for this run only")
		}
	}
	s.logger.Info("Session cookie updated")
	return nil
}

// Close releases idle connections
func (s *HTTPSession) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

type httpSource struct {
	s  *HTTPSession
	ds dataset.Dataset
}

func (h *httpSource) FetchPage(ctx context.Context, page int) ([]source.Ref, error) {
	if h.s.cfg.PageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.s.cfg.PageTimeout)
		defer cancel()
	}

	url := h.ds.PageURL(page)
	hdr := h.s.headers("")
	hdr.Accept = "text/html,application/xhtml+xml"
	resp, err := get(ctx, h.s.client, url, hdr)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return h.s.extractor.Extract(resp.Body, url, page)
}

func (h *httpSource) FetchDocument(ctx context.Context, ref source.Ref) (*source.Document, error) {
	page := ref.Page
	if page < 1 {
		page = 1
	}
	return fetchDocument(ctx, h.s.client, h.s.extractor, ref, h.s.headers(h.ds.PageURL(page)))
}
