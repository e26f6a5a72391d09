package di

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wayfinder/internal/config"
)

func testConfig() *config.Config {
	cfg := config.Defaults(config.Development)
	cfg.Logging.Format = "json"
	cfg.Logging.Level = "error"
	return cfg
}

func TestInitializeClient(t *testing.T) {
	c, cleanup, err := InitializeClient(context.Background(), testConfig())
	require.NoError(t, err)
	defer cleanup()

	assert.NotNil(t, c.API)
	assert.Same(t, c.Query, c.API.Query)
	assert.Nil(t, c.Tracing, "tracing is off by default")
	assert.False(t, c.Sessions.Current().Ready())
}

func TestInitializeClient_BadLevel(t *testing.T) {
	cfg := testConfig()
	cfg.Logging.Level = "loud"

	_, _, err := InitializeClient(context.Background(), cfg)
	assert.Error(t, err)
}

func TestInitializeServer(t *testing.T) {
	s, cleanup, err := InitializeServer(context.Background(), testConfig())
	require.NoError(t, err)
	defer cleanup()

	for _, path := range []string{"/health", "/metrics"} {
		rec := httptest.NewRecorder()
		s.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/upload/signature", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestInitializeServer_MissingSecret(t *testing.T) {
	cfg := testConfig()
	cfg.Uploads.APISecret = ""

	_, _, err := InitializeServer(context.Background(), cfg)
	assert.Error(t, err)
}

func TestProductionSecretsOnlyGateTheServer(t *testing.T) {
	cfg := config.Defaults(config.Production)
	require.NoError(t, cfg.Validate())

	_, cleanup, err := InitializeClient(context.Background(), cfg)
	require.NoError(t, err)
	cleanup()

	_, _, err = InitializeServer(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UPLOAD_API_SECRET")
}
