package application

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/clientimport/internal/config"
	"github.com/JonMunkholm/clientimport/internal/pipeline"
	"github.com/JonMunkholm/clientimport/internal/report"
	"github.com/JonMunkholm/clientimport/internal/upsert"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Database: config.DatabaseConfig{Driver: config.DriverSQLite, SQLitePath: filepath.Join(dir, "app.db")},
		Upload:   config.UploadConfig{MaxFileSize: 1 << 20, MaxConcurrent: 2, MaxWaitTime: time.Second, Timeout: time.Minute},
		Storage:  config.StorageConfig{BlobDir: filepath.Join(dir, "blobs")},
		Quality:  config.QualityConfig{MinColumns: 2, MinValidRatio: 0.8, MaxIssueRatio: 0.1, MinTypeConfidence: 0.5},
		Upsert:   config.UpsertConfig{Strategy: "update", UniqueKeys: []string{"Nom", "Prénom", "VILLE"}},
	}
}

func newTestApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	app, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(app.Close)
	return app
}

func TestNew_SQLiteImportRoundTrip(t *testing.T) {
	app := newTestApp(t, testConfig(t))
	ctx := context.Background()

	cfg, err := app.UpsertConfig("")
	require.NoError(t, err)

	data := []byte("Nom,Prénom,Ville\nDupont,Jean,Paris\nMartin,Paul,Lyon\n")
	out, err := app.Service.Import(ctx, pipeline.Upload{OwnerID: "cli", FileName: "clients.csv", Data: data}, cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Upsert.Inserted)

	stats, err := app.Rows.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalRecords)

	saved, err := app.Blobs.Read(ctx, out.BlobPath)
	require.NoError(t, err)
	assert.Equal(t, data, saved)
}

func TestNew_UnknownDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.Driver = "mysql"

	_, err := New(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "mysql")
}

func TestUpsertConfig(t *testing.T) {
	app := &App{Config: testConfig(t)}

	cfg, err := app.UpsertConfig("SKIP")
	require.NoError(t, err)
	assert.Equal(t, upsert.StrategySkip, cfg.ConflictStrategy)
	assert.Nil(t, cfg.ShouldUpdate)

	app.Config.Upsert.PreferComplete = true
	cfg, err = app.UpsertConfig("")
	require.NoError(t, err)
	assert.Equal(t, upsert.StrategyUpdate, cfg.ConflictStrategy)
	assert.NotNil(t, cfg.ShouldUpdate)
	assert.False(t, cfg.KeepExisting)

	app.Config.Upsert.KeepExisting = true
	cfg, err = app.UpsertConfig("")
	require.NoError(t, err)
	assert.True(t, cfg.KeepExisting)

	_, err = app.UpsertConfig("merge")
	assert.Error(t, err)

	app.Config.Upsert.UniqueKeys = []string{"inconnu"}
	_, err = app.UpsertConfig("")
	assert.Error(t, err)
}

func TestReportThresholds(t *testing.T) {
	assert.Equal(t, report.DefaultThresholds(), ReportThresholds(config.QualityConfig{}))
	assert.Equal(t,
		report.Thresholds{Completeness: 80, Accuracy: 99, MaxColumns: 12},
		ReportThresholds(config.QualityConfig{ReportCompleteness: 80, ReportAccuracy: 99, ReportMaxColumns: 12}))
}
