package analysis

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Thresholds holds the tunable limits used by Analyze.
type Thresholds struct {
	// MinColumns is the smallest column count a well-structured file may have.
	MinColumns int
	// MinValidRatio must be strictly exceeded by validRows/totalRows.
	MinValidRatio float64
	// MaxIssueRatio bounds non-missing-value issues as a fraction of totalRows.
	MaxIssueRatio float64
	// MinTypeConfidence is the score a typed predicate needs to beat text.
	MinTypeConfidence float64
}

// Default thresholds for a well-structured file.
const (
	DefaultMinColumns        = 2
	DefaultMinValidRatio     = 0.8
	DefaultMaxIssueRatio     = 0.1
	DefaultMinTypeConfidence = 0.5
)

// DefaultThresholds returns the thresholds Analyze uses without options.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinColumns:        DefaultMinColumns,
		MinValidRatio:     DefaultMinValidRatio,
		MaxIssueRatio:     DefaultMaxIssueRatio,
		MinTypeConfidence: DefaultMinTypeConfidence,
	}
}

// Option customizes Analyze.
type Option func(*Thresholds)

// WithThresholds replaces all thresholds. Zero fields fall back to defaults.
func WithThresholds(t Thresholds) Option {
	return func(dst *Thresholds) {
		def := DefaultThresholds()
		if t.MinColumns <= 0 {
			t.MinColumns = def.MinColumns
		}
		if t.MinValidRatio <= 0 {
			t.MinValidRatio = def.MinValidRatio
		}
		if t.MaxIssueRatio <= 0 {
			t.MaxIssueRatio = def.MaxIssueRatio
		}
		if t.MinTypeConfidence <= 0 {
			t.MinTypeConfidence = def.MinTypeConfidence
		}
		*dst = t
	}
}

// WithMinTypeConfidence overrides only the type inference threshold.
func WithMinTypeConfidence(v float64) Option {
	return func(dst *Thresholds) {
		if v > 0 {
			dst.MinTypeConfidence = v
		}
	}
}

// Analyze infers column types, detects issues and decides whether the file
// is well structured. The table is not modified.
func Analyze(fileName string, t *ParsedTable, opts ...Option) (*FileAnalysisResult, error) {
	if t == nil {
		return nil, errors.New("analyze: nil table")
	}

	th := DefaultThresholds()
	for _, opt := range opts {
		opt(&th)
	}

	res := &FileAnalysisResult{
		FileName:   fileName,
		Columns:    slices.Clone(t.Columns),
		DataTypes:  make(map[string]ColumnTypeInfo, len(t.Columns)),
		Data:       make([]Row, len(t.Rows)),
		TotalRows:  len(t.Rows),
		SourceRows: len(t.Rows),
		IsAnalyzed: true,
	}
	for i, row := range t.Rows {
		res.Data[i] = row.clone()
	}

	for _, col := range res.Columns {
		values := make([]string, len(res.Data))
		for i, row := range res.Data {
			values[i] = row[col]
		}
		info := inferColumnType(values, th.MinTypeConfidence)
		res.DataTypes[col] = info
		if info.Type == TypeEmpty {
			res.Errors = append(res.Errors, fmt.Sprintf("Colonne %q principalement vide", col))
		}
	}

	res.Issues = detectCellIssues(res.Columns, res.DataTypes, res.Data)

	for i, row := range res.Data {
		if hasData(res.Columns, row) {
			res.ValidRows++
		} else {
			res.Errors = append(res.Errors, fmt.Sprintf("Ligne %d vide ou invalide", i+2))
		}
	}

	res.Issues = append(res.Issues, detectDuplicates(res.Columns, res.Data)...)
	res.IsWellStructured = isWellStructured(res, th)

	return res, nil
}

// detectCellIssues scans every cell in row then column order.
func detectCellIssues(columns []string, types map[string]ColumnTypeInfo, data []Row) []DataIssue {
	var issues []DataIssue
	for i, row := range data {
		for _, col := range columns {
			value := row[col]
			if strings.TrimSpace(value) == "" {
				issues = append(issues, DataIssue{
					Type:        IssueMissingValue,
					Column:      col,
					Row:         i + 1,
					Value:       value,
					Description: fmt.Sprintf("Valeur manquante dans la colonne %q", col),
				})
				continue
			}

			typ := types[col].Type
			if !MatchesType(typ, value) {
				issues = append(issues, DataIssue{
					Type:        IssueWrongFormat,
					Column:      col,
					Row:         i + 1,
					Value:       value,
					Description: fmt.Sprintf("Format invalide pour le type %s", typ),
				})
			}
			if HasControlChars(value) {
				issues = append(issues, DataIssue{
					Type:        IssueInvalidCharacter,
					Column:      col,
					Row:         i + 1,
					Value:       value,
					Description: "Caractères de contrôle détectés",
				})
			}
		}
	}
	return issues
}

// detectDuplicates flags the second and later occurrences of identical rows.
func detectDuplicates(columns []string, data []Row) []DataIssue {
	var issues []DataIssue
	first := make(map[string]int, len(data))
	for i, row := range data {
		key := rowKey(columns, row)
		if j, ok := first[key]; ok {
			issues = append(issues, DataIssue{
				Type:        IssueDuplicate,
				Row:         i + 1,
				DuplicateOf: j + 1,
				Description: fmt.Sprintf("Ligne identique à la ligne %d", j+1),
			})
			continue
		}
		first[key] = i
	}
	return issues
}

func isWellStructured(res *FileAnalysisResult, th Thresholds) bool {
	if len(res.Columns) < th.MinColumns || res.ValidRows == 0 || res.TotalRows == 0 {
		return false
	}
	if float64(res.ValidRows)/float64(res.TotalRows) <= th.MinValidRatio {
		return false
	}
	blocking := len(res.Issues) - res.CountIssues(IssueMissingValue)
	return float64(blocking) < th.MaxIssueRatio*float64(res.TotalRows)
}

// rowKey serializes a row in table column order, so the key order of the
// source JSON objects does not matter and an absent field equals "".
// Two rows are duplicates iff their keys are equal.
func rowKey(columns []string, row Row) string {
	var b strings.Builder
	for _, col := range columns {
		b.WriteString(col)
		b.WriteByte(0)
		b.WriteString(row[col])
		b.WriteByte(0x1f)
	}
	return b.String()
}

func hasData(columns []string, row Row) bool {
	for _, col := range columns {
		if strings.TrimSpace(row[col]) != "" {
			return true
		}
	}
	return false
}

// isControl matches 0x00-0x08, 0x0B-0x0C, 0x0E-0x1F and 0x7F. Tab, line feed
// and carriage return are allowed.
func isControl(r rune) bool {
	switch {
	case r <= 0x08, r == 0x0B, r == 0x0C:
		return true
	case r >= 0x0E && r <= 0x1F, r == 0x7F:
		return true
	}
	return false
}

// HasControlChars reports whether s contains a disallowed control character.
func HasControlChars(s string) bool {
	return strings.IndexFunc(s, isControl) >= 0
}

// StripControlChars removes disallowed control characters from s.
func StripControlChars(s string) string {
	if !HasControlChars(s) {
		return s
	}
	return strings.Map(func(r rune) rune {
		if isControl(r) {
			return -1
		}
		return r
	}, s)
}
