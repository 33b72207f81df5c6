// Package listing turns a listing page into document references.
package listing

import (
	"fmt"
	"io"
	"net/url"
	"path"
	"regexp"
	"strings"

	"docmirror/pkg/config"
	"docmirror/pkg/errors"
	"docmirror/pkg/source"
	"github.com/PuerkitoBio/goquery"
)

// Extractor finds document links in listing HTML
type Extractor struct {
	base             *url.URL
	linkContains     string
	extension        string
	idPattern        *regexp.Regexp
	challengeMarkers []string
}

// NewExtractor builds an extractor from the source configuration
func NewExtractor(cfg config.SourceConfig) (*Extractor, error) {
	base, err := url.Parse(cfg.Site)
	if err != nil {
		return nil, fmt.Errorf("invalid site url: %w", err)
	}

	e := &Extractor{
		base:         base,
		linkContains: strings.ToLower(cfg.LinkContains),
		extension:    strings.ToLower(cfg.Extension),
	}
	if cfg.IDPattern != "" {
		e.idPattern, err = regexp.Compile(cfg.IDPattern)
		if err != nil {
			return nil, fmt.Errorf("invalid id pattern: %w", err)
		}
	}
	for _, m := range cfg.ChallengeMarkers {
		if m = strings.TrimSpace(strings.ToLower(m)); m != "" {
			e.challengeMarkers = append(e.challengeMarkers, m)
		}
	}
	return e, nil
}

// Extract parses a listing page. Links are resolved against pageURL (or the
// site when pageURL is empty), filtered, and deduplicated in page order. A
// page with no document links whose text carries a challenge marker is
// reported as a challenge rather than as an empty page.
func (e *Extractor) Extract(r io.Reader, pageURL string, page int) ([]source.Ref, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse listing page %d: %w", page, err)
	}

	base := e.base
	if pageURL != "" {
		if u, err := url.Parse(pageURL); err == nil {
			base = u
		}
	}

	var refs []source.Ref
	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		ref, ok := e.refFor(base, href, page)
		if !ok || seen[ref.ID] {
			return
		}
		seen[ref.ID] = true
		refs = append(refs, ref)
	})

	if len(refs) == 0 && e.isChallenge(doc) {
		return nil, errors.New(errors.ErrorTypeChallenge, fmt.Sprintf("verification page served for listing page %d", page))
	}
	return refs, nil
}

func (e *Extractor) refFor(base *url.URL, href string, page int) (source.Ref, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return source.Ref{}, false
	}
	u, err := base.Parse(href)
	if err != nil {
		return source.Ref{}, false
	}
	u.Fragment = ""

	p := strings.ToLower(u.Path)
	if e.linkContains != "" && !strings.Contains(p, e.linkContains) {
		return source.Ref{}, false
	}
	if e.extension != "" && !strings.HasSuffix(p, e.extension) {
		return source.Ref{}, false
	}

	id := path.Base(u.Path)
	if id == "." || id == "/" || id == "" {
		return source.Ref{}, false
	}
	if e.idPattern != nil && !e.idPattern.MatchString(id) {
		return source.Ref{}, false
	}
	return source.Ref{ID: id, URL: u.String(), Page: page}, true
}

func (e *Extractor) isChallenge(doc *goquery.Document) bool {
	if len(e.challengeMarkers) == 0 {
		return false
	}
	text := strings.ToLower(doc.Find("title").Text() + " " + doc.Find("body").Text())
	for _, m := range e.challengeMarkers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}

// IsChallengeHTML reports whether raw HTML looks like a verification page.
// Used on document responses that came back as HTML.
func (e *Extractor) IsChallengeHTML(r io.Reader) bool {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return false
	}
	return e.isChallenge(doc)
}
