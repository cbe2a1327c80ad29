package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

// HTTPReader downloads the table once from an http(s) URL. The body is parsed
// as XLSX when the URL path ends in .xlsx and as CSV otherwise.
type HTTPReader struct {
	client  *http.Client
	url     string
	sheet   string
	timeout time.Duration
}

// NewHTTPReader creates a reader for rawURL.
func NewHTTPReader(rawURL, sheet string, timeout time.Duration) *HTTPReader {
	return &HTTPReader{
		client:  &http.Client{},
		url:     rawURL,
		sheet:   sheet,
		timeout: timeout,
	}
}

// Describe implements Reader. Query strings and credentials are stripped.
func (r *HTTPReader) Describe() string {
	u, err := url.Parse(r.url)
	if err != nil {
		return "http:<invalid url>"
	}
	return u.Scheme + "://" + u.Host + u.Path
}

// Read implements Reader.
func (r *HTTPReader) Read(ctx context.Context) (*Table, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid url: %v", ErrUnreachable, err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d from %s", ErrUnreachable, resp.StatusCode, r.Describe())
	}

	if strings.EqualFold(path.Ext(req.URL.Path), ".xlsx") {
		return ParseXLSX(resp.Body, r.sheet)
	}
	return ParseCSV(resp.Body)
}
