package web

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/JonMunkholm/clientimport/internal/pipeline"
	"github.com/JonMunkholm/clientimport/internal/report"
	"github.com/JonMunkholm/clientimport/internal/store"
	"github.com/JonMunkholm/clientimport/internal/upsert"
)

// multipartOverhead is allowed on top of the file size limit for form
// fields and part headers.
const multipartOverhead = 1 << 20

func asStageError(err error) *pipeline.StageError {
	var se *pipeline.StageError
	if errors.As(err, &se) {
		return se
	}
	return nil
}

/* ----------------------------------------
	Upload endpoints
---------------------------------------- */

// handleAnalyze runs the pipeline up to the report and returns every
// snapshot as JSON.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	up, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err, nil)
		return
	}

	out, err := s.service.Analyze(r.Context(), up)
	if err != nil {
		s.respondError(w, r, err, nil)
		return
	}
	writeJSON(w, r, http.StatusOK, out)
}

// handleImport runs the full pipeline with the strategy form field.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	up, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err, nil)
		return
	}

	cfg, err := s.upsertConfig(r.FormValue("strategy"))
	if err != nil {
		s.respondError(w, r, err, nil)
		return
	}

	out, err := s.service.Import(r.Context(), up, cfg)
	if err != nil {
		var partial *upsert.Result
		if out != nil {
			partial = out.Upsert
		}
		s.respondError(w, r, err, partial)
		return
	}
	writeJSON(w, r, http.StatusOK, out)
}

// handleReport re-analyzes a saved upload and returns its report as a
// download. Query: path (blob path), name (original file name),
// format=html|json. The path must sit under the requesting owner's
// directory.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	blobPath := q.Get("path")
	if blobPath == "" {
		s.respondError(w, r, pipeline.ErrNoFile, nil)
		return
	}
	name := q.Get("name")
	if name == "" {
		name = path.Base(blobPath)
	}

	format := strings.ToLower(q.Get("format"))
	if format == "" {
		format = "html"
	}
	if format != "html" && format != "json" {
		writeJSON(w, r, http.StatusBadRequest, ErrorResponse{
			Error:   "format must be html or json",
			Message: "Format de rapport inconnu",
			Code:    "VAL003",
		})
		return
	}

	blobPath = path.Clean(blobPath)
	if !strings.HasPrefix(blobPath, store.OwnerDir(requestOwner(r))+"/") {
		writeJSON(w, r, http.StatusForbidden, ErrorResponse{
			Error:   "file belongs to another owner",
			Message: "Accès refusé à ce fichier",
			Code:    "VAL004",
		})
		return
	}

	out, err := s.service.Reanalyze(r.Context(), blobPath, name)
	if err != nil {
		s.respondError(w, r, err, nil)
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.FileName(name, format, s.now())))
	if format == "json" {
		w.Header().Set("Content-Type", "application/json")
		err = report.RenderJSON(w, out.Report)
	} else {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		err = report.RenderHTML(r.Context(), w, out.Report)
	}
	if err != nil {
		s.respondError(w, r, err, nil)
	}
}

// readUpload reads the "file" form field, bounded by the configured size
// limit. The owner comes from the X-Owner-ID header or the owner field.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (pipeline.Upload, error) {
	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return pipeline.Upload{}, fmt.Errorf("read upload: %w", pipeline.ErrFileTooLarge)
		}
		return pipeline.Upload{}, fmt.Errorf("read upload: %w: %v", pipeline.ErrNoFile, err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return pipeline.Upload{}, fmt.Errorf("read upload: %w", pipeline.ErrNoFile)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return pipeline.Upload{}, fmt.Errorf("read upload: %w", err)
	}

	return pipeline.Upload{OwnerID: requestOwner(r), FileName: header.Filename, Data: data}, nil
}

// requestOwner reads the X-Owner-ID header, falling back to the owner
// form or query value.
func requestOwner(r *http.Request) string {
	if owner := r.Header.Get("X-Owner-ID"); owner != "" {
		return owner
	}
	return r.FormValue("owner")
}

/* ----------------------------------------
	Dashboard endpoints
---------------------------------------- */

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.records == nil {
		s.respondError(w, r, pipeline.ErrNoStore, nil)
		return
	}
	stats, err := s.records.Stats(r.Context())
	if err != nil {
		s.respondError(w, r, err, nil)
		return
	}
	writeJSON(w, r, http.StatusOK, stats)
}

func (s *Server) handleDuplicates(w http.ResponseWriter, r *http.Request) {
	if s.records == nil {
		s.respondError(w, r, pipeline.ErrNoStore, nil)
		return
	}
	groups, err := s.records.FindPotentialDuplicates(r.Context())
	if err != nil {
		s.respondError(w, r, err, nil)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"groups": groups, "count": len(groups)})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":    "ok",
		"pipelines": s.service.Limiter().Status(),
	})
}
