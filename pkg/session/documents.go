package session

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"

	"docmirror/pkg/errors"
	"docmirror/pkg/listing"
	"docmirror/pkg/source"
)

// htmlSniffLimit bounds how much of an unexpected HTML body is inspected
const htmlSniffLimit = 256 << 10

// requestHeaders are attached to every request a driver makes
type requestHeaders struct {
	Cookie    string
	UserAgent string
	Referer   string
	Accept    string
}

func (h requestHeaders) apply(req *http.Request) {
	if h.Cookie != "" {
		req.Header.Set("Cookie", h.Cookie)
	}
	if h.UserAgent != "" {
		req.Header.Set("User-Agent", h.UserAgent)
	}
	if h.Referer != "" {
		req.Header.Set("Referer", h.Referer)
	}
	if h.Accept != "" {
		req.Header.Set("Accept", h.Accept)
	}
}

// get issues a GET and classifies transport and status failures. The caller
// owns the response body on success.
func get(ctx context.Context, client *http.Client, url string, h requestHeaders) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	h.apply(req)

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		t := errors.TypeOf(err)
		if t == errors.ErrorTypeUnknown {
			t = errors.ErrorTypeNetwork
		}
		return nil, errors.Wrap(t, url, err)
	}

	if statusErr := errors.FromStatus(resp.StatusCode, url); statusErr != nil {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		resp.Body.Close()
		return nil, statusErr
	}
	return resp, nil
}

// fetchDocument downloads one document with the session's headers. A
// document request answered with HTML means the session no longer reaches
// the file: a verification page is reported as a challenge, anything else
// as an expired session.
func fetchDocument(ctx context.Context, client *http.Client, extractor *listing.Extractor, ref source.Ref, h requestHeaders) (*source.Document, error) {
	h.Accept = "application/pdf,*/*"
	resp, err := get(ctx, client, ref.URL, h)
	if err != nil {
		return nil, err
	}

	contentType := resp.Header.Get("Content-Type")
	if mediaType, _, _ := mime.ParseMediaType(contentType); mediaType == "text/html" {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, htmlSniffLimit))
		if extractor != nil && extractor.IsChallengeHTML(bytes.NewReader(body)) {
			return nil, errors.New(errors.ErrorTypeChallenge, fmt.Sprintf("verification page served for %s", ref.ID))
		}
		return nil, errors.New(errors.ErrorTypeAuthExpired, fmt.Sprintf("HTML page served instead of %s", ref.ID))
	}

	return &source.Document{
		Body:        resp.Body,
		Size:        resp.ContentLength,
		ContentType: contentType,
	}, nil
}
