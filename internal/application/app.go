// Package application wires configuration into the stores, the geocoder
// and the pipeline service shared by the server and the CLI.
package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/JonMunkholm/clientimport/internal/analysis"
	"github.com/JonMunkholm/clientimport/internal/client"
	"github.com/JonMunkholm/clientimport/internal/config"
	"github.com/JonMunkholm/clientimport/internal/geocode"
	"github.com/JonMunkholm/clientimport/internal/pipeline"
	"github.com/JonMunkholm/clientimport/internal/report"
	"github.com/JonMunkholm/clientimport/internal/store"
	"github.com/JonMunkholm/clientimport/internal/upsert"
)

// RowStore is the medecin store plus the read-side queries exposed by the
// dashboard.
type RowStore interface {
	upsert.Store
	EnsureSchema(ctx context.Context) error
	Stats(ctx context.Context) (store.Stats, error)
	FindPotentialDuplicates(ctx context.Context) ([]store.DuplicateGroup, error)
}

// App holds the long-lived collaborators built from a Config.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Rows    RowStore
	Blobs   *store.FSBlobStore
	Service *pipeline.Service

	closers []func()
}

// New opens the configured row store, ensures its schema and builds the
// pipeline service. Close releases the store.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	rows, err := a.openRows(ctx)
	if err != nil {
		return nil, err
	}
	a.Rows = rows

	if err := rows.EnsureSchema(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("prepare row store: %w", err)
	}

	a.Blobs = store.NewFSBlobStore(cfg.Storage.BlobDir)

	var geocoder client.Geocoder
	if cfg.Geocode.Enabled {
		opts := []geocode.Option{
			geocode.WithRateLimit(cfg.Geocode.RatePerSecond),
			geocode.WithRegion(cfg.Geocode.Region),
		}
		if cfg.Geocode.BaseURL != "" {
			opts = append(opts, geocode.WithBaseURL(cfg.Geocode.BaseURL))
		}
		geocoder = geocode.NewGoogle(cfg.Geocode.APIKey, opts...)
		logger.Info("geocoding enabled", "region", cfg.Geocode.Region, "rate", cfg.Geocode.RatePerSecond)
	}

	a.Service = pipeline.NewService(pipeline.Options{
		Blobs:            a.Blobs,
		Store:            rows,
		Geocoder:         geocoder,
		GeocodeTimeout:   cfg.Geocode.Timeout,
		Limiter:          pipeline.NewLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime),
		Logger:           logger,
		MaxFileSize:      cfg.Upload.MaxFileSize,
		Timeout:          cfg.Upload.Timeout,
		Analysis:         AnalysisOptions(cfg.Quality),
		ReportThresholds: ReportThresholds(cfg.Quality),
	})
	return a, nil
}

func (a *App) openRows(ctx context.Context) (RowStore, error) {
	db := a.Config.Database
	switch db.Driver {
	case config.DriverPostgres:
		pool, err := store.OpenPool(ctx, db.URL, store.PoolOptions{
			MaxConns:        int32(db.MaxConns),
			MinConns:        int32(db.MinConns),
			MaxConnLifetime: db.MaxConnLifetime,
			MaxConnIdleTime: db.MaxConnIdleTime,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)
		a.Logger.Info("connected to database", "driver", db.Driver)
		return store.NewPostgres(pool), nil

	case config.DriverSQLite:
		st, err := store.NewSQLite(db.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() {
			if err := st.Close(); err != nil {
				a.Logger.Warn("close sqlite", "error", err)
			}
		})
		a.Logger.Info("opened database", "driver", db.Driver, "path", db.SQLitePath)
		return st, nil
	}
	return nil, fmt.Errorf("unknown database driver %q", db.Driver)
}

// UpsertConfig builds the engine settings from the configured defaults.
// A non-empty strategy overrides the configured one.
func (a *App) UpsertConfig(strategy string) (upsert.Config, error) {
	u := a.Config.Upsert
	if strategy == "" {
		strategy = u.Strategy
	}
	st, err := upsert.ParseStrategy(strategy)
	if err != nil {
		return upsert.Config{}, err
	}

	cfg := upsert.Config{
		UniqueKeys:       u.UniqueKeys,
		ConflictStrategy: st,
		UpdateColumns:    u.UpdateColumns,
		KeepExisting:     u.KeepExisting,
	}
	if u.PreferComplete {
		cfg.ShouldUpdate = upsert.PreferMoreComplete
	}
	if _, _, err := cfg.Validate(); err != nil {
		return upsert.Config{}, err
	}
	return cfg, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// AnalysisOptions converts the quality settings into detector options.
func AnalysisOptions(q config.QualityConfig) []analysis.Option {
	return []analysis.Option{analysis.WithThresholds(analysis.Thresholds{
		MinColumns:        q.MinColumns,
		MinValidRatio:     q.MinValidRatio,
		MaxIssueRatio:     q.MaxIssueRatio,
		MinTypeConfidence: q.MinTypeConfidence,
	})}
}

// ReportThresholds converts the quality settings into report thresholds,
// keeping defaults for unset values.
func ReportThresholds(q config.QualityConfig) report.Thresholds {
	th := report.DefaultThresholds()
	if q.ReportCompleteness > 0 {
		th.Completeness = q.ReportCompleteness
	}
	if q.ReportAccuracy > 0 {
		th.Accuracy = q.ReportAccuracy
	}
	if q.ReportMaxColumns > 0 {
		th.MaxColumns = q.ReportMaxColumns
	}
	return th
}
