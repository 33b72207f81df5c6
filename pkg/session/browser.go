package session

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"docmirror/pkg/config"
	"docmirror/pkg/dataset"
	"docmirror/pkg/errors"
	"docmirror/pkg/listing"
	"docmirror/pkg/logger"
	"docmirror/pkg/source"
)

// BrowserSession drives a real Chrome. Listing pages are rendered in a
// stealth tab the human can see and interact with; documents are fetched
// over HTTP carrying the tab's cookies, so a verification cleared in the
// window covers the downloads too.
type BrowserSession struct {
	cfg       config.SessionConfig
	extractor *listing.Extractor
	prompter  Prompter
	logger    logger.Logger
	client    *http.Client

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
	scope    *rod.Browser
	page     *rod.Page
	ua       string
}

// NewBrowser creates a browser session. Chrome starts on first use.
func NewBrowser(cfg config.SessionConfig, extractor *listing.Extractor, prompter Prompter, log logger.Logger) *BrowserSession {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &BrowserSession{
		cfg:       cfg,
		extractor: extractor,
		prompter:  prompter,
		logger:    log.WithField("driver", DriverBrowser),
		client:    &http.Client{},
	}
}

// start launches or connects to Chrome and opens the working tab
func (b *BrowserSession) start() error {
	if b.page != nil {
		return nil
	}

	if b.browser == nil {
		controlURL := b.cfg.ControlURL
		if controlURL == "" {
			l := launcher.New().
				Headless(b.cfg.Headless).
				Set("disable-blink-features", "AutomationControlled")
			u, err := l.Launch()
			if err != nil {
				return fmt.Errorf("launch browser: %w", err)
			}
			b.launcher = l
			controlURL = u
			b.logger.InfoWithFields("Browser launched", map[string]interface{}{"headless": b.cfg.Headless})
		} else {
			b.logger.InfoWithFields("Connecting to running browser", map[string]interface{}{"url": controlURL})
		}

		browser := rod.New().ControlURL(controlURL)
		if err := browser.Connect(); err != nil {
			return fmt.Errorf("connect browser: %w", err)
		}
		b.browser = browser
		b.scope = browser
	}

	page, err := stealth.Page(b.scope)
	if err != nil {
		return fmt.Errorf("open tab: %w", err)
	}
	if b.cfg.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: b.cfg.UserAgent}); err != nil {
			b.logger.WithError(err).Warn("Failed to override user agent")
		}
	}
	b.page = page
	b.ua = ""
	return nil
}

func (b *BrowserSession) tab(ctx context.Context) (*rod.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.start(); err != nil {
		return nil, err
	}
	return b.page.Context(ctx), nil
}

// Open starts the browser if needed and binds it to a dataset
func (b *BrowserSession) Open(ctx context.Context, ds dataset.Dataset) (source.Source, error) {
	if _, err := b.tab(ctx); err != nil {
		return nil, err
	}
	return &browserSource{b: b, ds: ds}, nil
}

// AwaitHumanVerification waits for the human to clear the challenge shown
// in the browser window.
func (b *BrowserSession) AwaitHumanVerification(ctx context.Context) error {
	if b.cfg.Headless {
		b.logger.Warn("Verification requested while headless; the page cannot be seen. Restart with --headless=false")
	}
	if b.prompter == nil {
		return fmt.Errorf("verification required but no prompter is available")
	}
	return b.prompter.WaitForEnter(ctx, "Complete the verification in the browser window, then press Enter")
}

// Reauthorize drops the current tab and cookies, opens a fresh incognito
// context, and waits for the human to sign in again.
func (b *BrowserSession) Reauthorize(ctx context.Context) error {
	b.mu.Lock()
	if b.page != nil {
		_ = b.page.Close()
		b.page = nil
	}
	if b.browser != nil {
		incognito, err := b.browser.Incognito()
		if err != nil {
			b.mu.Unlock()
			return fmt.Errorf("open incognito context: %w", err)
		}
		b.scope = incognito
	}
	err := b.start()
	b.mu.Unlock()
	if err != nil {
		return err
	}

	if b.prompter == nil {
		return nil
	}
	return b.prompter.WaitForEnter(ctx, "The session was reset. Open the collection in the browser window, pass any checks, then press Enter")
}

// Close shuts the browser down
func (b *BrowserSession) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.page != nil {
		_ = b.page.Close()
		b.page = nil
	}
	var err error
	if b.browser != nil {
		err = b.browser.Close()
		b.browser = nil
		b.scope = nil
	}
	if b.launcher != nil {
		b.launcher.Cleanup()
		b.launcher = nil
	}
	b.client.CloseIdleConnections()
	return err
}

// headersFor builds request headers carrying the tab's cookies for url
func (b *BrowserSession) headersFor(page *rod.Page, url, referer string) (requestHeaders, error) {
	cookies, err := page.Cookies([]string{url})
	if err != nil {
		return requestHeaders{}, errors.Wrap(errors.ErrorTypeNetwork, "read browser cookies", err)
	}

	b.mu.Lock()
	ua := b.ua
	b.mu.Unlock()
	if ua == "" {
		ua = b.cfg.UserAgent
		if ua == "" {
			if res, err := page.Eval(`() => navigator.userAgent`); err == nil {
				ua = res.Value.Str()
			}
		}
		b.mu.Lock()
		b.ua = ua
		b.mu.Unlock()
	}

	return requestHeaders{Cookie: cookieHeader(cookies), UserAgent: ua, Referer: referer}, nil
}

// cookieHeader renders browser cookies as a Cookie header value
func cookieHeader(cookies []*proto.NetworkCookie) string {
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		if c == nil || c.Name == "" {
			continue
		}
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}

type browserSource struct {
	b  *BrowserSession
	ds dataset.Dataset
}

func (s *browserSource) FetchPage(ctx context.Context, page int) ([]source.Ref, error) {
	if s.b.cfg.PageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.b.cfg.PageTimeout)
		defer cancel()
	}

	tab, err := s.b.tab(ctx)
	if err != nil {
		return nil, err
	}

	url := s.ds.PageURL(page)
	if err := tab.Navigate(url); err != nil {
		return nil, classifyBrowserErr(ctx, "navigate", err)
	}
	if err := tab.WaitLoad(); err != nil {
		return nil, classifyBrowserErr(ctx, "wait for page load", err)
	}
	html, err := tab.HTML()
	if err != nil {
		return nil, classifyBrowserErr(ctx, "read page", err)
	}

	return s.b.extractor.Extract(strings.NewReader(html), url, page)
}

func (s *browserSource) FetchDocument(ctx context.Context, ref source.Ref) (*source.Document, error) {
	tab, err := s.b.tab(ctx)
	if err != nil {
		return nil, err
	}
	page := ref.Page
	if page < 1 {
		page = 1
	}
	hdr, err := s.b.headersFor(tab, ref.URL, s.ds.PageURL(page))
	if err != nil {
		return nil, err
	}
	return fetchDocument(ctx, s.b.client, s.b.extractor, ref, hdr)
}

func classifyBrowserErr(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return errors.Wrap(errors.ErrorTypeTimeout, op, err)
	}
	return errors.Wrap(errors.ErrorTypeNetwork, op, err)
}
