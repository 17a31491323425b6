package wris

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/groundwater-etl/internal/observability"
)

func testClient(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    baseURL,
		metrics:    observability.NewMetricsForTesting(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestQueryPage_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/query", r.URL.Path)
		assert.Equal(t, "state_name='Andhra Pradesh'", q.Get("where"))
		assert.Equal(t, "*", q.Get("outFields"))
		assert.Equal(t, "true", q.Get("returnGeometry"))
		assert.Equal(t, "json", q.Get("f"))
		assert.Equal(t, "300", q.Get("resultRecordCount"))
		assert.Equal(t, "600", q.Get("resultOffset"))

		_, _ = w.Write([]byte(`{"features":[
			{"attributes":{"state_name":"Andhra Pradesh","station_code":"AP1","water_level":4.2},
			 "geometry":{"x":80.1,"y":16.2}},
			{"attributes":{"state_name":"Andhra Pradesh","station_code":"AP2","water_level":6.0}}
		]}`))
	}))
	defer srv.Close()

	features, err := testClient(srv.URL).QueryPage(context.Background(), "state_name='Andhra Pradesh'", 600, 300)
	require.NoError(t, err)
	require.Len(t, features, 2)

	assert.Equal(t, "Andhra Pradesh", features[0].Attributes["state_name"])
	assert.Equal(t, "AP1", features[0].Attributes["station_code"])
	require.NotNil(t, features[0].Geometry)
	assert.Equal(t, 80.1, features[0].Geometry.X)
	assert.Equal(t, 16.2, features[0].Geometry.Y)
	assert.Nil(t, features[1].Geometry)
}

func TestQueryPage_EmptyFeaturesIsEndOfData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"features":[]}`))
	}))
	defer srv.Close()

	features, err := testClient(srv.URL).QueryPage(context.Background(), "1=1", 0, 300)
	require.NoError(t, err)
	assert.Empty(t, features)
}

func TestQueryPage_AbsentFeaturesIsEndOfData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	features, err := testClient(srv.URL).QueryPage(context.Background(), "1=1", 0, 300)
	require.NoError(t, err)
	assert.Empty(t, features)
}

func TestQueryPage_UpstreamErrorInOKBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"Invalid where clause"}}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).QueryPage(context.Background(), "bogus", 0, 300)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid where clause")
}

func TestQueryPage_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).QueryPage(context.Background(), "1=1", 0, 300)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestQueryPage_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := &Client{
		httpClient: &http.Client{Timeout: 50 * time.Millisecond},
		baseURL:    srv.URL,
		metrics:    observability.NewMetricsForTesting(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	_, err := c.QueryPage(context.Background(), "1=1", 0, 300)
	require.Error(t, err)
}
