// Package wris queries the India-WRIS groundwater stations layer, an ArcGIS
// MapServer exposed over HTTP.
package wris

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/groundwater-etl/internal/domain"
	"github.com/couchcryptid/groundwater-etl/internal/observability"
)

// Client issues bounded station-data page queries against the upstream
// MapServer layer.
type Client struct {
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a WRIS query client. baseURL is the layer endpoint
// without the trailing /query.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		metrics:    metrics,
		logger:     logger,
	}
}

// QueryPage fetches one page of features for the given where clause at the
// given offset. An empty slice signals end-of-data for the clause, not an
// error.
func (c *Client) QueryPage(ctx context.Context, clause string, offset, pageSize int) ([]domain.RawFeature, error) {
	params := url.Values{
		"where":             {clause},
		"outFields":         {"*"},
		"returnGeometry":    {"true"},
		"f":                 {"json"},
		"resultRecordCount": {strconv.Itoa(pageSize)},
		"resultOffset":      {strconv.Itoa(offset)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/query?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("station query: %w", err)
	}
	defer resp.Body.Close()
	c.metrics.PageFetchDuration.Observe(time.Since(start).Seconds())

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("station query: status %d: %s", resp.StatusCode, body)
	}

	var qr queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&qr); err != nil {
		return nil, fmt.Errorf("decode station query response: %w", err)
	}
	// ArcGIS reports failures inside a 200 body.
	if qr.Error != nil {
		return nil, fmt.Errorf("station query: upstream error %d: %s", qr.Error.Code, qr.Error.Message)
	}

	c.metrics.PagesFetched.Inc()
	c.logger.Debug("page fetched", "clause", clause, "offset", offset, "features", len(qr.Features))
	return qr.Features, nil
}

// ArcGIS query response types.

type queryResponse struct {
	Features []domain.RawFeature `json:"features"`
	Error    *queryError         `json:"error"`
}

type queryError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
