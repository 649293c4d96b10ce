package app

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retailsight/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server: config.ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 5 * time.Second,
			RequestTimeout:  2 * time.Minute,
		},
		Logging: config.LoggingConfig{Level: "info", Format: "json", Output: "console"},
		Uploads: config.UploadsConfig{Dir: t.TempDir(), MaxSizeBytes: 1 << 20},
		Analytics: config.AnalyticsConfig{
			DefaultClusters:       3,
			DefaultPeriods:        30,
			DefaultChurnThreshold: 60,
		},
		RateLimit: config.RateLimitConfig{Enabled: false},
	}
}

func TestNew_RoutesAreMounted(t *testing.T) {
	application, err := New(testConfig(t))
	require.NoError(t, err)

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/api/load-data", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			rec := httptest.NewRecorder()
			application.Router().ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestNew_RateLimiterEnabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.RateLimit = config.RateLimitConfig{Enabled: true, RPS: 0.0001, Burst: 1}

	application, err := New(cfg)
	require.NoError(t, err)

	// burst of one: the second immediate request gets throttled
	first := httptest.NewRecorder()
	application.Router().ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	application.Router().ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}
