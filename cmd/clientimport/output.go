package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/rotisserie/eris"

	"github.com/JonMunkholm/clientimport/internal/pipeline"
	"github.com/JonMunkholm/clientimport/internal/report"
	"github.com/JonMunkholm/clientimport/internal/store"
	"github.com/JonMunkholm/clientimport/internal/upsert"
)

// maxIssueRows caps the issue table; the report file has the full list.
const maxIssueRows = 20

var heading = color.New(color.FgYellow, color.Bold)

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}

func printSummary(w io.Writer, out *pipeline.Outcome) {
	if out == nil || out.Report == nil {
		return
	}
	rep := out.Report
	s := rep.Summary
	q := rep.Quality

	heading.Fprintf(w, "\nAnalyse de %s\n", rep.FileName)
	table := newTable(w, "Indicateur", "Valeur")
	table.AppendBulk([][]string{
		{"Lignes", strconv.Itoa(s.TotalRows)},
		{"Lignes valides", strconv.Itoa(s.ValidRows)},
		{"Lignes nettoyées", strconv.Itoa(s.CleanedRows)},
		{"Colonnes", strconv.Itoa(s.Columns)},
		{"Problèmes", strconv.Itoa(s.TotalIssues)},
		{"Doublons supprimés", strconv.Itoa(s.DuplicatesRemoved)},
		{"Valeurs manquantes remplies", strconv.Itoa(s.MissingValuesFilled)},
		{"Formats convertis", strconv.Itoa(s.FormatConversions)},
		{"Clients extraits", strconv.Itoa(s.ClientsExtracted)},
		{"Complétude", percent(q.Completeness)},
		{"Exactitude", percent(q.Accuracy)},
		{"Cohérence", percent(q.Consistency)},
		{"Unicité", percent(q.Uniqueness)},
	})
	table.Render()

	if out.Analysis != nil {
		status := color.New(color.FgGreen).Sprint("fichier bien structuré")
		if !out.Analysis.IsWellStructured {
			status = color.New(color.FgRed).Sprint("fichier mal structuré")
		}
		fmt.Fprintf(w, "Structure : %s\n", status)
	}

	for _, r := range rep.Recommendations {
		color.New(color.FgCyan).Fprintf(w, "- %s\n", r)
	}
}

func printIssues(w io.Writer, out *pipeline.Outcome) {
	if out == nil || out.Analysis == nil || len(out.Analysis.Issues) == 0 {
		return
	}
	issues := out.Analysis.Issues

	heading.Fprintf(w, "\nProblèmes détectés (%d)\n", len(issues))
	table := newTable(w, "Ligne", "Colonne", "Type", "Valeur")
	for i, is := range issues {
		if i == maxIssueRows {
			break
		}
		table.Append([]string{strconv.Itoa(is.Row), is.Column, string(is.Type), is.Value})
	}
	table.Render()
	if len(issues) > maxIssueRows {
		fmt.Fprintf(w, "... et %d autres\n", len(issues)-maxIssueRows)
	}
}

func printUpsert(w io.Writer, res *upsert.Result) {
	heading.Fprintln(w, "\nImport")
	table := newTable(w, "Insérés", "Mis à jour", "Ignorés", "Total")
	table.Append([]string{
		strconv.Itoa(res.Inserted),
		strconv.Itoa(res.Updated),
		strconv.Itoa(res.Skipped),
		strconv.Itoa(res.Total),
	})
	table.Render()

	if len(res.Conflicts) == 0 {
		return
	}
	conflicts := newTable(w, "Ligne", "Action", "Raison")
	for _, c := range res.Conflicts {
		conflicts.Append([]string{strconv.Itoa(c.Row), c.Action, c.Reason})
	}
	conflicts.Render()
}

func printStats(w io.Writer, st store.Stats) {
	heading.Fprintln(w, "Table medecin")
	table := newTable(w, "Enregistrements", "Noms", "Villes", "Spécialités")
	table.Append([]string{
		strconv.Itoa(st.TotalRecords),
		strconv.Itoa(st.UniqueNames),
		strconv.Itoa(st.Cities),
		strconv.Itoa(st.Specialties),
	})
	table.Render()
}

func printDuplicates(w io.Writer, groups []store.DuplicateGroup) {
	heading.Fprintf(w, "\nDoublons potentiels (%d)\n", len(groups))
	if len(groups) == 0 {
		return
	}
	table := newTable(w, "Groupe", "Nombre", "IDs")
	for _, g := range groups {
		ids := ""
		for i, r := range g.Records {
			if i > 0 {
				ids += ","
			}
			ids += strconv.FormatInt(r.ID, 10)
		}
		table.Append([]string{g.Group, strconv.Itoa(g.Count), ids})
	}
	table.Render()
}

// printUserError writes the French user message for err.
func printUserError(w io.Writer, err error) {
	color.New(color.FgRed).Fprintln(w, pipeline.FormatUserError(err))
}

// writeReport renders rep into dir and returns the written path.
func writeReport(ctx context.Context, dir string, rep *report.DetailedReport, format string, now time.Time) (string, error) {
	if rep == nil {
		return "", eris.New("write report: no report")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", eris.Wrapf(err, "write report: create %s", dir)
	}

	path := filepath.Join(dir, report.FileName(rep.FileName, format, now))
	f, err := os.Create(path)
	if err != nil {
		return "", eris.Wrap(err, "write report")
	}
	defer f.Close()

	switch format {
	case "json":
		err = report.RenderJSON(f, rep)
	default:
		err = report.RenderHTML(ctx, f, rep)
	}
	if err != nil {
		return "", eris.Wrapf(err, "write report %s", path)
	}
	return path, f.Close()
}

func percent(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64) + " %"
}
