package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/clientimport/internal/pipeline"
	"github.com/JonMunkholm/clientimport/internal/report"
	"github.com/JonMunkholm/clientimport/internal/store"
	"github.com/JonMunkholm/clientimport/internal/upsert"
)

const medecinsCSV = "Nom,Prénom,VILLE,SPECIALITE\n" +
	"Dupont,Jean,Paris,Cardiologie\n" +
	"Martin,Paul,Lyon,Pédiatrie\n" +
	"Dupont,Jean,Paris,Cardiologie\n"

func init() {
	color.NoColor = true
}

// runCLI executes the root command against a scratch environment.
func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	analyzeReport, analyzeOut, analyzeOwner = "", ".", "cli"
	importStrategy, importOwner = "", "cli"
	statsDuplicates = false

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func scratchEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("STORAGE_BLOB_DIR", filepath.Join(dir, "blobs"))
	t.Setenv("SQLITE_PATH", filepath.Join(dir, "cli.db"))
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("LOG_LEVEL", "error")

	path := filepath.Join(dir, "medecins.csv")
	require.NoError(t, os.WriteFile(path, []byte(medecinsCSV), 0o600))
	return dir
}

// ============================================================================
// Command tree
// ============================================================================

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"analyze", "import", "stats"} {
		assert.True(t, names[name], "expected subcommand %q", name)
	}
}

func TestCommandFlags(t *testing.T) {
	flag := analyzeCmd.Flags().Lookup("report")
	require.NotNil(t, flag)
	assert.Equal(t, "", flag.DefValue)

	flag = analyzeCmd.Flags().Lookup("out")
	require.NotNil(t, flag)
	assert.Equal(t, ".", flag.DefValue)

	require.NotNil(t, importCmd.Flags().Lookup("strategy"))
	require.NotNil(t, statsCmd.Flags().Lookup("duplicates"))
}

// ============================================================================
// End to end
// ============================================================================

func TestAnalyzeCommand_WritesJSONReport(t *testing.T) {
	dir := scratchEnv(t)
	outDir := filepath.Join(dir, "reports")

	stdout, _, err := runCLI(t, "analyze", filepath.Join(dir, "medecins.csv"), "--report", "json", "--out", outDir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Analyse de medecins.csv")
	assert.Contains(t, stdout, "Doublons supprimés")
	assert.Contains(t, stdout, "Rapport écrit")

	matches, err := filepath.Glob(filepath.Join(outDir, "rapport-analyse-medecins-*.json"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	var rep report.DetailedReport
	require.NoError(t, json.Unmarshal(data, &rep))
	assert.Equal(t, 3, rep.Summary.TotalRows)
	assert.Equal(t, 1, rep.Summary.DuplicatesRemoved)
}

func TestAnalyzeCommand_MultipleFiles(t *testing.T) {
	dir := scratchEnv(t)
	second := filepath.Join(dir, "autres.csv")
	require.NoError(t, os.WriteFile(second, []byte(medecinsCSV), 0o600))
	notes := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(notes, []byte("hello"), 0o600))

	stdout, stderr, err := runCLI(t, "analyze", filepath.Join(dir, "medecins.csv"), second, notes)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 3 files failed")

	assert.Contains(t, stdout, "Analyse de medecins.csv")
	assert.Contains(t, stdout, "Analyse de autres.csv")
	assert.Contains(t, stderr, "notes.txt")
	assert.Contains(t, stderr, "FILE003")
}

func TestAnalyzeCommand_Errors(t *testing.T) {
	dir := scratchEnv(t)

	_, _, err := runCLI(t, "analyze", filepath.Join(dir, "medecins.csv"), "--report", "pdf")
	assert.Error(t, err)

	_, _, err = runCLI(t, "analyze", filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)

	notes := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(notes, []byte("hello"), 0o600))
	_, stderr, err := runCLI(t, "analyze", notes)
	assert.Error(t, err)
	assert.Contains(t, stderr, "FILE003")
}

func TestImportCommand_ThenStats(t *testing.T) {
	dir := scratchEnv(t)
	file := filepath.Join(dir, "medecins.csv")

	stdout, _, err := runCLI(t, "import", file)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Import terminé")

	stdout, _, err = runCLI(t, "stats", "--duplicates")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Table medecin")
	assert.Contains(t, stdout, "Doublons potentiels (0)")

	_, stderr, err := runCLI(t, "import", file, "--strategy", "error")
	assert.Error(t, err)
	assert.Contains(t, stderr, "UPS001")

	_, stderr, err = runCLI(t, "import", file, "--strategy", "merge")
	assert.Error(t, err)
	assert.Contains(t, stderr, "VAL002")
}

// ============================================================================
// Output helpers
// ============================================================================

func TestPrintUpsert(t *testing.T) {
	var buf bytes.Buffer
	printUpsert(&buf, &upsert.Result{
		Inserted: 1, Skipped: 1, Total: 2,
		Conflicts: []upsert.ConflictEntry{{Row: 2, Reason: "already exists", Action: "skipped"}},
	})

	out := buf.String()
	assert.Contains(t, out, "INSÉRÉS")
	assert.Contains(t, out, "already exists")
	assert.Contains(t, out, "skipped")
}

func TestPrintDuplicates(t *testing.T) {
	var buf bytes.Buffer
	printDuplicates(&buf, []store.DuplicateGroup{{
		Group: "dupont|jean|paris",
		Count: 2,
		Records: []upsert.StoredMedecin{
			{ID: 3}, {ID: 7},
		},
	}})

	out := buf.String()
	assert.Contains(t, out, "Doublons potentiels (1)")
	assert.Contains(t, out, "dupont|jean|paris")
	assert.Contains(t, out, "3,7")
}

func TestPrintSummary_NilOutcome(t *testing.T) {
	var buf bytes.Buffer
	printSummary(&buf, nil)
	printSummary(&buf, &pipeline.Outcome{})
	printIssues(&buf, nil)
	assert.Empty(t, buf.String())
}

func TestWriteReport(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC)
	rep := &report.DetailedReport{FileName: "clients.xlsx", GeneratedAt: now}

	path, err := writeReport(context.Background(), dir, rep, "html", now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "rapport-analyse-clients-2024-05-17.html"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Rapport d'analyse")

	_, err = writeReport(context.Background(), dir, nil, "json", now)
	assert.Error(t, err)
}
