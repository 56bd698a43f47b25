// Package pipeline runs uploaded files through parsing, analysis,
// cleaning, client extraction, reporting and, on import, the upsert
// engine.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/clientimport/internal/analysis"
	"github.com/JonMunkholm/clientimport/internal/client"
	"github.com/JonMunkholm/clientimport/internal/report"
	"github.com/JonMunkholm/clientimport/internal/upsert"
)

// DefaultMaxFileSize caps uploads at 100MB.
const DefaultMaxFileSize int64 = 100 << 20

// DefaultTimeout bounds one run once it holds a limiter slot.
const DefaultTimeout = 10 * time.Minute

// BlobStore keeps the raw bytes of each upload.
type BlobStore interface {
	Save(ctx context.Context, ownerID, fileName string, data []byte) (string, error)
	Read(ctx context.Context, path string) ([]byte, error)
}

// Upload is one file submitted for processing.
type Upload struct {
	OwnerID  string
	FileName string
	Data     []byte
}

// Outcome carries every intermediate snapshot of a run. Fields after the
// failing stage are nil.
type Outcome struct {
	FileID   string                       `json:"fileId"`
	BlobPath string                       `json:"blobPath,omitempty"`
	Analysis *analysis.FileAnalysisResult `json:"analysis,omitempty"`
	Cleaned  *analysis.FileAnalysisResult `json:"cleaned,omitempty"`
	Clients  []client.ClientRecord        `json:"clients,omitempty"`
	Report   *report.DetailedReport       `json:"report,omitempty"`
	Upsert   *upsert.Result               `json:"upsert,omitempty"`
}

// Options configures a Service. Zero values fall back to defaults.
type Options struct {
	Blobs            BlobStore
	Store            upsert.Store
	Geocoder         client.Geocoder
	GeocodeTimeout   time.Duration
	Limiter          *Limiter
	Logger           *slog.Logger
	MaxFileSize      int64
	Timeout          time.Duration
	Analysis         []analysis.Option
	ReportThresholds report.Thresholds
	Clock            func() time.Time
}

// Service is safe for concurrent use. Runs are bounded by the limiter and
// each run is sequential.
type Service struct {
	blobs     BlobStore
	store     upsert.Store
	extractor *client.Extractor
	limiter   *Limiter
	logger    *slog.Logger
	maxSize   int64
	timeout   time.Duration
	analysis  []analysis.Option
	reportTh  report.Thresholds
	clock     func() time.Time
}

func NewService(opts Options) *Service {
	s := &Service{
		blobs:    opts.Blobs,
		store:    opts.Store,
		limiter:  opts.Limiter,
		logger:   opts.Logger,
		maxSize:  opts.MaxFileSize,
		timeout:  opts.Timeout,
		analysis: opts.Analysis,
		reportTh: opts.ReportThresholds,
		clock:    opts.Clock,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.limiter == nil {
		s.limiter = NewLimiter(DefaultMaxConcurrent, DefaultMaxWait)
	}
	if s.maxSize <= 0 {
		s.maxSize = DefaultMaxFileSize
	}
	if s.timeout <= 0 {
		s.timeout = DefaultTimeout
	}
	if s.reportTh == (report.Thresholds{}) {
		s.reportTh = report.DefaultThresholds()
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	s.extractor = client.NewExtractor(opts.Geocoder, opts.GeocodeTimeout, s.logger)
	return s
}

// Limiter exposes the run limiter for status reporting and shutdown.
func (s *Service) Limiter() *Limiter { return s.limiter }

// Analyze saves the upload when a blob store is configured, then parses,
// analyzes, cleans, extracts clients and builds the report. On failure the
// returned Outcome holds the stages that completed and the error is a
// *StageError.
func (s *Service) Analyze(ctx context.Context, up Upload) (*Outcome, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, stageErr(StageReceive, err)
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return s.analyze(ctx, up, true)
}

// Import runs Analyze and upserts the extracted medecins with cfg. Under
// the error strategy the partial upsert result is returned alongside the
// conflict.
func (s *Service) Import(ctx context.Context, up Upload, cfg upsert.Config) (*Outcome, error) {
	if s.store == nil {
		return nil, stageErr(StageUpsert, ErrNoStore)
	}
	if _, _, err := cfg.Validate(); err != nil {
		return nil, stageErr(StageUpsert, err)
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, stageErr(StageReceive, err)
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.analyze(ctx, up, true)
	if err != nil {
		return out, err
	}

	recs, err := client.ToMedecins(out.Cleaned)
	if err != nil {
		return out, stageErr(StageUpsert, err)
	}

	engine := upsert.NewEngine(s.store, s.logger)
	engine.Clock = s.clock
	res, err := engine.Upsert(ctx, out.FileID, recs, cfg)
	out.Upsert = res
	return out, stageErr(StageUpsert, err)
}

// Reanalyze reruns the pipeline on a previously saved upload without
// saving it again.
func (s *Service) Reanalyze(ctx context.Context, blobPath, fileName string) (*Outcome, error) {
	if s.blobs == nil {
		return nil, stageErr(StageStore, ErrNoFile)
	}
	data, err := s.blobs.Read(ctx, blobPath)
	if err != nil {
		return nil, stageErr(StageStore, err)
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, stageErr(StageReceive, err)
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.analyze(ctx, Upload{FileName: fileName, Data: data}, false)
	if out != nil {
		out.BlobPath = blobPath
	}
	return out, err
}

func (s *Service) analyze(ctx context.Context, up Upload, save bool) (*Outcome, error) {
	out := &Outcome{FileID: uuid.NewString()}
	logger := s.logger.With("file_id", out.FileID, "file_name", up.FileName)
	start := s.clock()

	switch {
	case up.FileName == "":
		return out, stageErr(StageReceive, ErrNoFile)
	case len(up.Data) == 0:
		return out, stageErr(StageReceive, ErrEmptyFile)
	case int64(len(up.Data)) > s.maxSize:
		return out, stageErr(StageReceive, ErrFileTooLarge)
	case !analysis.IsSupported(up.FileName):
		_, err := analysis.Parse(up.FileName, nil)
		return out, stageErr(StageParse, err)
	}

	if save && s.blobs != nil {
		path, err := s.blobs.Save(ctx, up.OwnerID, up.FileName, up.Data)
		if err != nil {
			return out, stageErr(StageStore, err)
		}
		out.BlobPath = path
	}

	if err := ctx.Err(); err != nil {
		return out, stageErr(StageParse, err)
	}
	table, err := analysis.Parse(up.FileName, up.Data)
	if err != nil {
		logger.Warn("parse failed", "error", err)
		return out, stageErr(StageParse, err)
	}

	if err := ctx.Err(); err != nil {
		return out, stageErr(StageAnalyze, err)
	}
	out.Analysis, err = analysis.Analyze(up.FileName, table, s.analysis...)
	if err != nil {
		return out, stageErr(StageAnalyze, err)
	}

	if err := ctx.Err(); err != nil {
		return out, stageErr(StageClean, err)
	}
	out.Cleaned, err = analysis.Clean(out.Analysis, s.clock())
	if err != nil {
		return out, stageErr(StageClean, err)
	}

	out.Clients, err = s.extractor.Extract(ctx, out.Cleaned)
	if err != nil {
		return out, stageErr(StageExtract, err)
	}
	// geocoding swallows its own errors, including the run deadline
	if err := ctx.Err(); err != nil {
		out.Clients = nil
		return out, stageErr(StageExtract, err)
	}

	out.Report, err = report.Generate(out.Cleaned, out.Clients, s.clock(), s.reportTh)
	if err != nil {
		return out, stageErr(StageReport, err)
	}

	logger.Info("file processed",
		"rows", out.Analysis.TotalRows,
		"issues", len(out.Analysis.Issues),
		"cleaned_rows", out.Cleaned.TotalRows,
		"clients", len(out.Clients),
		"well_structured", out.Analysis.IsWellStructured,
		"duration", s.clock().Sub(start),
	)
	return out, nil
}
