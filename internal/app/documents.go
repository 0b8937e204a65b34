package app

import (
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-docs/internal/documents"
	"github.com/odyssey-erp/odyssey-docs/internal/documents/asset"
	"github.com/odyssey-erp/odyssey-docs/internal/documents/engine"
	"github.com/odyssey-erp/odyssey-docs/internal/documents/output"
	"github.com/odyssey-erp/odyssey-docs/internal/observability"
)

// PreviewPath is the route prefix preview handles are served under.
const PreviewPath = "/previews"

// DocumentDeps are the optional backends of the document service. Without a
// pool stored records are unavailable; without Redis previews stay in process.
type DocumentDeps struct {
	Pool    *pgxpool.Pool
	Redis   *redis.Client
	Metrics *observability.Metrics
	// LocalFiles allows file:// asset references. Never set it for services
	// rendering request-supplied records.
	LocalFiles bool
}

// NewAssetLoader builds the image loader for the configured origin and API
// base. extra options are applied last.
func NewAssetLoader(cfg *Config, logger *slog.Logger, metrics *observability.Metrics, extra ...asset.Option) *asset.HTTPLoader {
	timeout := cfg.AssetFetchTimeout
	if timeout <= 0 {
		timeout = asset.DefaultTimeout
	}
	opts := []asset.Option{
		asset.WithClient(observability.WrapHTTPClient(&http.Client{Timeout: timeout})),
		asset.WithMaxBytes(cfg.AssetMaxBytes),
		asset.WithLogger(logger),
		asset.WithFallbackHook(metrics.AssetFallback),
	}
	return asset.NewHTTPLoader(
		asset.Resolver{Origin: cfg.AssetOrigin, APIBase: cfg.AssetAPIBase},
		append(opts, extra...)...,
	)
}

// NewDocumentService wires the document service from configuration.
func NewDocumentService(cfg *Config, logger *slog.Logger, deps DocumentDeps) *documents.Service {
	var previews output.PreviewStore
	if deps.Redis != nil {
		previews = output.NewRedisPreviewStore(deps.Redis, cfg.PreviewTTL, PreviewPath)
	} else {
		previews = output.NewMemoryPreviewStore(cfg.PreviewTTL, PreviewPath)
	}
	var loaderOpts []asset.Option
	if deps.LocalFiles {
		loaderOpts = append(loaderOpts, asset.WithFileURLs())
	}
	var records documents.RecordStore
	if deps.Pool != nil {
		records = documents.NewRepository(deps.Pool)
	}
	return documents.NewService(documents.ServiceConfig{
		Engine:   engine.New(NewAssetLoader(cfg, logger, deps.Metrics, loaderOpts...), engine.WithLogger(logger)),
		Company:  cfg.Company(),
		Decimals: cfg.CurrencyDecimals,
		Records:  records,
		Previews: previews,
		Store:    output.NewDirStore(cfg.DocumentStorageDir),
		Metrics:  deps.Metrics,
		Logger:   logger,
	})
}
