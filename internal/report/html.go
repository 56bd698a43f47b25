package report

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/JonMunkholm/clientimport/internal/client"
)

//go:generate templ generate

// RenderHTML writes the report as a standalone HTML document.
func RenderHTML(ctx context.Context, w io.Writer, rep *DetailedReport) error {
	return Page(rep).Render(ctx, w)
}

type labelled[T any] struct {
	Label string
	Value T
}

func summaryRows(s Summary) []labelled[string] {
	rows := []labelled[int]{
		{"Lignes analysées", s.TotalRows},
		{"Lignes valides", s.ValidRows},
		{"Lignes après nettoyage", s.CleanedRows},
		{"Colonnes", s.Columns},
		{"Problèmes détectés", s.TotalIssues},
		{"Doublons supprimés", s.DuplicatesRemoved},
		{"Valeurs complétées", s.MissingValuesFilled},
		{"Valeurs reformatées", s.FormatConversions},
		{"Clients extraits", s.ClientsExtracted},
	}
	out := make([]labelled[string], len(rows))
	for i, r := range rows {
		out[i] = labelled[string]{r.Label, itoa(r.Value)}
	}
	return out
}

func qualityRows(q Quality) []labelled[float64] {
	return []labelled[float64]{
		{"Complétude", q.Completeness},
		{"Exactitude", q.Accuracy},
		{"Cohérence", q.Consistency},
		{"Unicité", q.Uniqueness},
	}
}

func itoa(n int) string { return strconv.Itoa(n) }

func percent(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64) + "%"
}

func coordinates(c client.ClientRecord) string {
	if c.Coordinates == nil {
		return ""
	}
	return fmt.Sprintf("%.5f, %.5f", c.Coordinates.Lat, c.Coordinates.Lng)
}
