// Package report turns an analyzed or cleaned file into quality metrics and
// recommendations, and renders them as JSON or a self-contained HTML page.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/JonMunkholm/clientimport/internal/analysis"
	"github.com/JonMunkholm/clientimport/internal/client"
)

// Recommendation texts.
const (
	RecCompleteness = "Améliorer la complétude des données : compléter les valeurs manquantes à la source."
	RecAccuracy     = "Vérifier le format des données : certaines valeurs ne respectent pas le type attendu."
	RecDuplicates   = "Supprimer les doublons pour garantir l'unicité des enregistrements."
	RecColumns      = "Réduire le nombre de colonnes pour simplifier l'exploitation du fichier."
	RecGoodQuality  = "Les données sont de bonne qualité, aucune action corrective n'est nécessaire."
)

// Thresholds trigger recommendations. Percentages are in [0,100].
type Thresholds struct {
	Completeness float64
	Accuracy     float64
	MaxColumns   int
}

// Default recommendation thresholds.
const (
	DefaultCompletenessTarget = 90.0
	DefaultAccuracyTarget     = 95.0
	DefaultMaxColumns         = 20
)

// DefaultThresholds returns the thresholds used when none are given.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Completeness: DefaultCompletenessTarget,
		Accuracy:     DefaultAccuracyTarget,
		MaxColumns:   DefaultMaxColumns,
	}
}

// Summary holds the headline counts.
type Summary struct {
	TotalRows           int `json:"totalRows"`
	ValidRows           int `json:"validRows"`
	CleanedRows         int `json:"cleanedRows"`
	Columns             int `json:"columns"`
	TotalIssues         int `json:"totalIssues"`
	DuplicatesRemoved   int `json:"duplicatesRemoved"`
	MissingValuesFilled int `json:"missingValuesFilled"`
	FormatConversions   int `json:"formatConversions"`
	ClientsExtracted    int `json:"clientsExtracted"`
}

// Quality holds the four percentages.
type Quality struct {
	Completeness float64 `json:"completeness"`
	Accuracy     float64 `json:"accuracy"`
	Consistency  float64 `json:"consistency"`
	Uniqueness   float64 `json:"uniqueness"`
}

// DetailedReport is built once from a finalized result and never modified.
type DetailedReport struct {
	FileName        string                `json:"fileName"`
	GeneratedAt     time.Time             `json:"generatedAt"`
	Summary         Summary               `json:"summary"`
	Quality         Quality               `json:"quality"`
	Issues          []analysis.DataIssue  `json:"issues"`
	Fixes           []analysis.Fix        `json:"fixes"`
	Recommendations []string              `json:"recommendations"`
	Clients         []client.ClientRecord `json:"clients,omitempty"`
}

// Generate computes the report for r. clients may be nil.
func Generate(r *analysis.FileAnalysisResult, clients []client.ClientRecord, now time.Time, th ...Thresholds) (*DetailedReport, error) {
	if r == nil || !r.IsAnalyzed {
		name := ""
		if r != nil {
			name = r.FileName
		}
		return nil, fmt.Errorf("report %s: file must be analyzed first", name)
	}

	limits := DefaultThresholds()
	if len(th) > 0 {
		limits = th[0]
	}

	rows := r.SourceRows
	if rows == 0 {
		rows = r.TotalRows
	}
	cells := rows * len(r.Columns)

	dups := r.CountIssues(analysis.IssueDuplicate)
	q := Quality{
		Completeness: percentOf(cells-r.CountIssues(analysis.IssueMissingValue), cells),
		Accuracy:     percentOf(cells-r.CountIssues(analysis.IssueWrongFormat), cells),
		Consistency:  percentOf(cells-r.CountIssues(analysis.IssueInconsistentType), cells),
		Uniqueness:   percentOf(rows-dups, rows),
	}

	rep := &DetailedReport{
		FileName:    r.FileName,
		GeneratedAt: now,
		Summary: Summary{
			TotalRows:        rows,
			ValidRows:        r.ValidRows,
			CleanedRows:      r.TotalRows,
			Columns:          len(r.Columns),
			TotalIssues:      len(r.Issues),
			ClientsExtracted: len(clients),
		},
		Quality: q,
		Issues:  append([]analysis.DataIssue(nil), r.Issues...),
		Clients: append([]client.ClientRecord(nil), clients...),
	}

	if cr := r.CleaningReport; cr != nil {
		rep.Summary.DuplicatesRemoved = cr.DuplicatesRemoved
		rep.Summary.MissingValuesFilled = cr.MissingValuesFilled
		rep.Summary.FormatConversions = cr.FormatConversions
		rep.Fixes = append([]analysis.Fix(nil), cr.FixesApplied...)
	}

	rep.Recommendations = Recommend(q, dups, len(r.Columns), limits)
	return rep, nil
}

// Recommend returns the triggered recommendations, or the single
// good-quality message when none trigger.
func Recommend(q Quality, duplicates, columns int, th Thresholds) []string {
	var recs []string
	if q.Completeness < th.Completeness {
		recs = append(recs, RecCompleteness)
	}
	if q.Accuracy < th.Accuracy {
		recs = append(recs, RecAccuracy)
	}
	if duplicates > 0 {
		recs = append(recs, RecDuplicates)
	}
	if columns > th.MaxColumns {
		recs = append(recs, RecColumns)
	}
	if len(recs) == 0 {
		recs = []string{RecGoodQuality}
	}
	return recs
}

// percentOf returns part/total as a percentage, or 100 when total is zero.
func percentOf(part, total int) float64 {
	if total <= 0 {
		return 100
	}
	return float64(part) / float64(total) * 100
}

// RenderJSON writes the report as indented JSON.
func RenderJSON(w io.Writer, rep *DetailedReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return nil
}

// FileName builds rapport-analyse-<basename>-<YYYY-MM-DD>.<ext> from the
// uploaded file name.
func FileName(uploadName, ext string, now time.Time) string {
	base := filepath.Base(uploadName)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." {
		base = "fichier"
	}
	ext = strings.TrimPrefix(ext, ".")
	return fmt.Sprintf("rapport-analyse-%s-%s.%s", base, now.Format(time.DateOnly), ext)
}
