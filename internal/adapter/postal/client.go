// Package postal queries the public postal PIN lookup service by place name.
package postal

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// PostOffice is one candidate returned for a place-name lookup.
type PostOffice struct {
	Name     string `json:"Name"`
	PinCode  string `json:"Pincode"`
	Block    string `json:"Block"`
	District string `json:"District"`
	State    string `json:"State"`
}

// Client looks up post offices for a place name.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates a postal lookup client. insecureSkipVerify disables TLS
// certificate verification and must stay an explicit opt-in for development
// against proxies with interception certs.
func NewClient(baseURL string, timeout time.Duration, insecureSkipVerify bool, logger *slog.Logger) *Client {
	transport := http.DefaultTransport
	if insecureSkipVerify {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		transport = t
		logger.Warn("postal lookup TLS verification disabled")
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout, Transport: transport},
		baseURL:    baseURL,
		logger:     logger,
	}
}

// Lookup returns all post offices matching the place name. A lookup that
// succeeds but finds nothing returns an empty slice and no error.
func (c *Client) Lookup(ctx context.Context, place string) ([]PostOffice, error) {
	u := fmt.Sprintf("%s/postoffice/%s", c.baseURL, url.PathEscape(place))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("postal lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("postal lookup: status %d: %s", resp.StatusCode, body)
	}

	var results []lookupResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decode postal response: %w", err)
	}

	// Any status other than Success, or an empty office list, means no result.
	if len(results) == 0 || results[0].Status != "Success" {
		return nil, nil
	}
	return results[0].PostOffice, nil
}

type lookupResult struct {
	Message    string       `json:"Message"`
	Status     string       `json:"Status"`
	PostOffice []PostOffice `json:"PostOffice"`
}
