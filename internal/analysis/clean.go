package analysis

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	numberSubstring = regexp.MustCompile(`[+-]?\d+(?:[.,]\d+)?(?:[eE][+-]?\d+)?`)
	phoneDisallowed = regexp.MustCompile(`[^0-9+\-() ]`)
)

// Fix types recorded in DataCleaningReport.FixesApplied.
const (
	FixDuplicatesRemoved   = "duplicates_removed"
	FixMissingValuesFilled = "missing_values_filled"
	FixFormatConversions   = "format_conversions"
	FixColumnsRenamed      = "columns_renamed"
)

// Clean deduplicates, fills, normalizes and renames the columns of an
// analyzed result. The input is left untouched; running Clean on its own
// output changes no data.
func Clean(r *FileAnalysisResult, now time.Time) (*FileAnalysisResult, error) {
	if r == nil || !r.IsAnalyzed {
		name := ""
		if r != nil {
			name = r.FileName
		}
		return nil, &CleaningPreconditionError{FileName: name}
	}

	out := r.clone()
	rep := &DataCleaningReport{}

	// 1. Remove duplicates, keeping the first occurrence.
	var removed int
	out.Data, removed = dedupRows(out.Columns, out.Data)
	rep.DuplicatesRemoved += removed

	// 2. Fill missing values and normalize the rest.
	for _, row := range out.Data {
		for _, col := range out.Columns {
			typ := columnType(out.DataTypes, col)
			raw := row[col]
			value := strings.TrimSpace(StripControlChars(raw))

			if value == "" {
				row[col] = DefaultValue(typ, now)
				rep.MissingValuesFilled++
				continue
			}

			normalized := value
			if !IsPlaceholder(value) {
				normalized = normalizeValue(typ, value)
			}
			if normalized != raw {
				row[col] = normalized
				rep.FormatConversions++
			}
		}
	}

	// Normalization can make rows identical ("jean" and "Jean").
	out.Data, removed = dedupRows(out.Columns, out.Data)
	rep.DuplicatesRemoved += removed

	// 3. Rename columns to their canonical names.
	renamed := renameColumns(out)

	out.TotalRows = len(out.Data)
	out.ValidRows = out.TotalRows
	out.IsCleaned = true
	out.IsWellStructured = true
	rep.CleanedRows = out.TotalRows
	rep.FixesApplied = buildFixes(rep, renamed)
	out.CleaningReport = rep

	return out, nil
}

func columnType(types map[string]ColumnTypeInfo, col string) ColumnType {
	if info, ok := types[col]; ok {
		return info.Type
	}
	return TypeText
}

func dedupRows(columns []string, data []Row) ([]Row, int) {
	seen := make(map[string]bool, len(data))
	kept := make([]Row, 0, len(data))
	for _, row := range data {
		key := rowKey(columns, row)
		if seen[key] {
			continue
		}
		seen[key] = true
		kept = append(kept, row)
	}
	return kept, len(data) - len(kept)
}

// normalizeValue applies the per-type normalization to a trimmed,
// non-empty value.
func normalizeValue(t ColumnType, v string) string {
	switch t {
	case TypeNumber:
		return normalizeNumber(v)
	case TypeEmail:
		return strings.ToLower(v)
	case TypePhone:
		if p := strings.TrimSpace(phoneDisallowed.ReplaceAllString(v, "")); p != "" {
			return p
		}
		return v
	case TypeDate:
		return v
	default:
		return capitalize(v)
	}
}

// normalizeNumber rewrites a number without going through float64, so
// leading zeros, long integers and exponents keep their digits. A value that
// is not a number on its own is reduced to its first numeric substring.
func normalizeNumber(v string) string {
	if IsNumber(v) {
		return canonicalNumber(strings.TrimSpace(v))
	}
	m := numberSubstring.FindString(v)
	if m == "" {
		return v
	}
	return canonicalNumber(m)
}

// canonicalNumber reads a lone comma as the decimal separator and drops
// trailing fractional zeros. Exponent forms are returned as is.
func canonicalNumber(n string) string {
	if strings.Count(n, ",") == 1 && !strings.Contains(n, ".") {
		n = strings.Replace(n, ",", ".", 1)
	}
	if strings.ContainsAny(n, "eE") || !strings.Contains(n, ".") {
		return n
	}
	n = strings.TrimRight(n, "0")
	n = strings.TrimSuffix(n, ".")
	if n == "" || n == "+" || n == "-" {
		return "0"
	}
	return n
}

// capitalize upper-cases the first rune and lower-cases the rest using
// French casing rules.
func capitalize(v string) string {
	first, size := utf8.DecodeRuneInString(v)
	if first == utf8.RuneError && size <= 1 {
		return v
	}
	head := cases.Upper(language.French).String(string(first))
	tail := cases.Lower(language.French).String(v[size:])
	return head + tail
}

// renameColumns rewrites the column list, the type map and every row.
// A column already carrying a canonical name keeps it; when two other
// columns map to the same name the later one keeps its original name.
// It returns how many columns changed name.
func renameColumns(r *FileAnalysisResult) int {
	taken := make(map[string]bool, len(r.Columns))
	target := make(map[string]string, len(r.Columns))

	for _, col := range r.Columns {
		if canonical, ok := CanonicalColumn(col); ok && canonical == col {
			taken[col] = true
			target[col] = col
		}
	}
	for _, col := range r.Columns {
		if _, done := target[col]; done {
			continue
		}
		name := col
		if canonical, ok := CanonicalColumn(col); ok && !taken[canonical] {
			name = canonical
		}
		taken[name] = true
		target[col] = name
	}

	renamed := 0
	columns := make([]string, len(r.Columns))
	types := make(map[string]ColumnTypeInfo, len(r.DataTypes))
	for i, col := range r.Columns {
		columns[i] = target[col]
		if target[col] != col {
			renamed++
		}
		if info, ok := r.DataTypes[col]; ok {
			types[target[col]] = info
		}
	}

	if renamed > 0 {
		for i, row := range r.Data {
			next := make(Row, len(row))
			for _, col := range r.Columns {
				next[target[col]] = row[col]
			}
			r.Data[i] = next
		}
		for i := range r.Issues {
			if name, ok := target[r.Issues[i].Column]; ok {
				r.Issues[i].Column = name
			}
		}
	}

	r.Columns = columns
	r.DataTypes = types
	return renamed
}

func buildFixes(rep *DataCleaningReport, renamed int) []Fix {
	var fixes []Fix
	if rep.DuplicatesRemoved > 0 {
		fixes = append(fixes, Fix{
			Type:        FixDuplicatesRemoved,
			Count:       rep.DuplicatesRemoved,
			Description: fmt.Sprintf("%d ligne(s) en double supprimée(s)", rep.DuplicatesRemoved),
		})
	}
	if rep.MissingValuesFilled > 0 {
		fixes = append(fixes, Fix{
			Type:        FixMissingValuesFilled,
			Count:       rep.MissingValuesFilled,
			Description: fmt.Sprintf("%d valeur(s) manquante(s) complétée(s)", rep.MissingValuesFilled),
		})
	}
	if rep.FormatConversions > 0 {
		fixes = append(fixes, Fix{
			Type:        FixFormatConversions,
			Count:       rep.FormatConversions,
			Description: fmt.Sprintf("%d valeur(s) reformatée(s)", rep.FormatConversions),
		})
	}
	if renamed > 0 {
		fixes = append(fixes, Fix{
			Type:        FixColumnsRenamed,
			Count:       renamed,
			Description: fmt.Sprintf("%d colonne(s) renommée(s) vers leur nom standard", renamed),
		})
	}
	return fixes
}
