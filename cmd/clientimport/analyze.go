package main

import (
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/clientimport/internal/application"
	"github.com/JonMunkholm/clientimport/internal/pipeline"
	"github.com/JonMunkholm/clientimport/internal/store"
)

var (
	analyzeReport string
	analyzeOut    string
	analyzeOwner  string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>...",
	Short: "Analyze and clean files without touching the database",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if analyzeReport != "" && analyzeReport != "html" && analyzeReport != "json" {
			return eris.Errorf("unknown report format %q (expected html or json)", analyzeReport)
		}
		ctx := cmd.Context()

		svc := pipeline.NewService(pipeline.Options{
			Blobs:            store.NewFSBlobStore(cfg.Storage.BlobDir),
			Limiter:          pipeline.NewLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime),
			Logger:           logger,
			MaxFileSize:      cfg.Upload.MaxFileSize,
			Timeout:          cfg.Upload.Timeout,
			Analysis:         application.AnalysisOptions(cfg.Quality),
			ReportThresholds: application.ReportThresholds(cfg.Quality),
		})

		outs := make([]*pipeline.Outcome, len(args))
		errs := make([]error, len(args))

		g, gCtx := errgroup.WithContext(ctx)
		g.SetLimit(svc.Limiter().Capacity())
		for i, path := range args {
			g.Go(func() error {
				up, err := readUpload(path, analyzeOwner)
				if err != nil {
					errs[i] = err
					return nil
				}
				outs[i], errs[i] = svc.Analyze(gCtx, up)
				return nil
			})
		}
		_ = g.Wait()

		w := cmd.OutOrStdout()
		var failed int
		for i, path := range args {
			if errs[i] != nil {
				failed++
				color.New(color.FgRed).Fprintf(cmd.ErrOrStderr(), "%s : ", filepath.Base(path))
				printUserError(cmd.ErrOrStderr(), errs[i])
				logger.Debug("analyze failed", "file", path, "error", errs[i])
				continue
			}

			out := outs[i]
			printSummary(w, out)
			printIssues(w, out)

			if analyzeReport != "" {
				written, err := writeReport(ctx, analyzeOut, out.Report, analyzeReport, time.Now())
				if err != nil {
					return err
				}
				color.New(color.FgGreen).Fprintf(w, "Rapport écrit : %s\n", written)
			}
		}

		if failed > 0 {
			return eris.Errorf("analyze: %d of %d files failed", failed, len(args))
		}
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeReport, "report", "", "write a report file: html or json")
	analyzeCmd.Flags().StringVar(&analyzeOut, "out", ".", "directory for the report file")
	analyzeCmd.Flags().StringVar(&analyzeOwner, "owner", "cli", "owner segment for the saved upload")
	rootCmd.AddCommand(analyzeCmd)
}

func readUpload(path, owner string) (pipeline.Upload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return pipeline.Upload{}, eris.Wrapf(err, "read %s", path)
	}
	return pipeline.Upload{OwnerID: owner, FileName: filepath.Base(path), Data: data}, nil
}
