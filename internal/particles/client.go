// Package particles fetches building surface samples from the remote
// particle service. The service takes a JSON array of building codes and
// answers with the building list that surface.Decode understands.
package particles

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/banshee-data/surface.report/internal/httputil"
	"github.com/banshee-data/surface.report/internal/monitoring"
	"github.com/banshee-data/surface.report/internal/surface"
)

// maxResponseSize caps how much of a response body is read.
const maxResponseSize = 64 * 1024 * 1024

// ErrNoCodes is returned when the input holds no usable building codes.
var ErrNoCodes = errors.New("no valid building codes provided")

// StatusError reports a non-2xx answer from the particle service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("particle service returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("particle service returned %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

// Client posts building codes to the particle service.
type Client struct {
	URL  string
	HTTP httputil.HTTPClient
}

// NewClient returns a Client for url. A nil httpClient uses
// http.DefaultClient, so callers normally pass httputil.NewStandardClient.
func NewClient(url string, httpClient httputil.HTTPClient) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{URL: url, HTTP: httpClient}
}

// ParseCodes splits comma separated building codes, trimming whitespace and
// dropping empty entries.
func ParseCodes(input string) ([]string, error) {
	var codes []string
	for _, part := range strings.Split(input, ",") {
		if code := strings.TrimSpace(part); code != "" {
			codes = append(codes, code)
		}
	}
	if len(codes) == 0 {
		return nil, ErrNoCodes
	}
	return codes, nil
}

// FetchRaw posts codes to the service and returns the response body as-is.
func (c *Client) FetchRaw(ctx context.Context, codes []string) ([]byte, error) {
	if len(codes) == 0 {
		return nil, ErrNoCodes
	}

	payload, err := json.Marshal(codes)
	if err != nil {
		return nil, fmt.Errorf("failed to encode building codes: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build particle request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	defer monitoring.Timed(fmt.Sprintf("[Particles] fetch %d codes", len(codes)))()

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching data from particle service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read particle response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: snippet}
	}

	monitoring.Logf("[Particles] received %d bytes for codes %v", len(body), codes)
	return body, nil
}

// Fetch posts codes to the service and decodes the building list. Malformed
// particles surface as *surface.DataError.
func (c *Client) Fetch(ctx context.Context, codes []string) ([]surface.Building, error) {
	body, err := c.FetchRaw(ctx, codes)
	if err != nil {
		return nil, err
	}
	buildings, err := surface.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("decode particle response: %w", err)
	}
	return buildings, nil
}
