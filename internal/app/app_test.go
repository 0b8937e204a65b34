package app

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	documentshttp "github.com/odyssey-erp/odyssey-docs/internal/documents/http"
	"github.com/odyssey-erp/odyssey-docs/internal/observability"
	_ "github.com/odyssey-erp/odyssey-docs/testing"
)

// =============================================================================
// CONFIG TESTS
// =============================================================================

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("COMPANY_NAME", "Harbour Supplies")
	t.Setenv("COMPANY_LOGO_PATH", "uploads/logo.png")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 60*time.Second, cfg.PreviewTTL)
	assert.Equal(t, 3, cfg.CurrencyDecimals)
	assert.Equal(t, int64(8<<20), cfg.AssetMaxBytes)
	assert.Equal(t, 30*24*time.Hour, cfg.DocumentRetention)
	assert.Equal(t, int32(8), cfg.PGMaxConns)
	assert.False(t, cfg.IsProduction())

	co := cfg.Company()
	assert.Equal(t, "Harbour Supplies", co.Name)
	assert.Equal(t, "uploads/logo.png", co.LogoRef)
}

func TestConfigValidate(t *testing.T) {
	valid := Config{PreviewTTL: time.Minute, AssetMaxBytes: 1, CurrencyDecimals: 2, AssetOrigin: "https://erp.example.com"}
	require.NoError(t, valid.Validate())

	cases := map[string]func(*Config){
		"decimals":    func(c *Config) { c.CurrencyDecimals = 9 },
		"preview ttl": func(c *Config) { c.PreviewTTL = 0 },
		"max bytes":   func(c *Config) { c.AssetMaxBytes = 0 },
		"retention":   func(c *Config) { c.DocumentRetention = time.Minute },
		"origin":      func(c *Config) { c.AssetOrigin = "erp.example.com" },
		"api base":    func(c *Config) { c.AssetAPIBase = "/api/" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := valid
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

// =============================================================================
// ROUTER TESTS
// =============================================================================

func newTestRouter(t *testing.T, filesDir string) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &Config{
		PreviewTTL:         time.Minute,
		CurrencyDecimals:   3,
		AssetMaxBytes:      1 << 20,
		AssetFetchTimeout:  time.Second,
		DocumentStorageDir: filesDir,
		CompanyName:        "Odyssey Trading LLC",
	}
	metrics := observability.NewMetrics()
	svc := NewDocumentService(cfg, logger, DocumentDeps{Metrics: metrics})
	return NewRouter(RouterParams{
		Logger:          logger,
		Config:          cfg,
		DocumentHandler: documentshttp.NewHandler(logger, svc, nil),
		Metrics:         metrics,
		FilesDir:        filesDir,
	})
}

func TestRouterHealthAndMetrics(t *testing.T) {
	router := newTestRouter(t, t.TempDir())

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "odyssey_document_asset_fallbacks_total")
}

func TestRouterServesRenderedFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "INV-1.pdf"), []byte("%PDF-1.3"), 0o644))
	router := newTestRouter(t, dir)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/files/INV-1.pdf", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
	assert.Equal(t, "private, max-age=300", rr.Header().Get("Cache-Control"))

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/files/", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRouterMountsDocuments(t *testing.T) {
	router := newTestRouter(t, t.TempDir())

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/documents/invoice/INV-1/pdf", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

// =============================================================================
// LOGGER TESTS
// =============================================================================

func TestNewLoggerHonoursFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&Config{LogFormat: "json", LogLevel: "warn"}, &buf)

	logger.Info("hidden")
	logger.Warn("asset unavailable, using placeholder", slog.String("ref", "/assets/logo.png"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "asset unavailable, using placeholder", entry["msg"])
	assert.Equal(t, "odyssey-docs", entry["service"])
	assert.Equal(t, "/assets/logo.png", entry["ref"])
}

func TestSkipStartupFollowsTestMode(t *testing.T) {
	t.Setenv(testModeEnv, "1")
	RefreshTestMode()
	assert.True(t, SkipStartup("worker"))

	t.Setenv(testModeEnv, "")
	RefreshTestMode()
	assert.False(t, SkipStartup("worker"))
}
