package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

var _ RatesProvider = (*Client)(nil)

// Client calls GET {baseURL}/{base} and classifies failures.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a new Client with a per-request timeout.
func NewClient(baseURL string, timeoutSec int) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
	}
}

type ratesResponse struct {
	Base  string             `json:"base"`
	Date  string             `json:"date"`
	Rates map[string]float64 `json:"rates"`
}

// FetchRates retrieves the full rate table for base.
func (c *Client) FetchRates(ctx context.Context, base string) (map[string]float64, error) {
	reqURL := c.baseURL + "/" + url.PathEscape(base)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: request creation failed: %v", ErrProviderUnavailable, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrCurrencyNotSupported, base)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrProviderUnavailable, resp.StatusCode, string(body))
	}

	var result ratesResponse
	if err = json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", ErrProviderUnavailable, err)
	}
	if result.Rates == nil {
		return nil, fmt.Errorf("%w: response for %s has no rates", ErrProviderUnavailable, base)
	}

	return result.Rates, nil
}
