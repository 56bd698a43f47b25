package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, name, content string) *ParsedTable {
	t.Helper()
	table, err := Parse(name, []byte(content))
	require.NoError(t, err)
	return table
}

func issuesOf(r *FileAnalysisResult, typ IssueType) []DataIssue {
	var out []DataIssue
	for _, i := range r.Issues {
		if i.Type == typ {
			out = append(out, i)
		}
	}
	return out
}

func TestAnalyze_WellStructuredSingleRow(t *testing.T) {
	table := mustParse(t, "medecins.csv", "Nom,Prénom,VILLE\nJean,Dupont,Paris\n")

	res, err := Analyze("medecins.csv", table)
	require.NoError(t, err)

	assert.Equal(t, 1, res.TotalRows)
	assert.Equal(t, 1, res.ValidRows)
	assert.Equal(t, []string{"Nom", "Prénom", "VILLE"}, res.Columns)
	assert.True(t, res.IsWellStructured)
	assert.True(t, res.IsAnalyzed)
	assert.False(t, res.IsCleaned)
	assert.Empty(t, res.Issues)
}

func TestAnalyze_EmailColumnWrongFormat(t *testing.T) {
	table := &ParsedTable{
		Columns: []string{"email"},
		Rows:    []Row{{"email": "a@b.com"}, {"email": "bad"}, {"email": "c@d.com"}},
	}

	res, err := Analyze("emails.csv", table)
	require.NoError(t, err)

	assert.Equal(t, TypeEmail, res.DataTypes["email"].Type)
	assert.InDelta(t, 0.67, res.DataTypes["email"].Confidence, 0.01)

	wrong := issuesOf(res, IssueWrongFormat)
	require.Len(t, wrong, 1)
	assert.Equal(t, 2, wrong[0].Row)
	assert.Equal(t, "bad", wrong[0].Value)
	assert.Equal(t, "email", wrong[0].Column)
}

func TestAnalyze_Duplicates(t *testing.T) {
	table := mustParse(t, "d.csv", "nom,ville\nJean,Paris\nMarie,Lyon\nJean,Paris\nJean,Paris\n")

	res, err := Analyze("d.csv", table)
	require.NoError(t, err)

	dups := issuesOf(res, IssueDuplicate)
	require.Len(t, dups, 2)
	assert.Equal(t, 3, dups[0].Row)
	assert.Equal(t, 1, dups[0].DuplicateOf)
	assert.Equal(t, 4, dups[1].Row)
	assert.Equal(t, 1, dups[1].DuplicateOf)
}

func TestAnalyze_TwoIdenticalRows(t *testing.T) {
	table := mustParse(t, "d.csv", "nom,ville\nJean,Paris\nJean,Paris\n")

	res, err := Analyze("d.csv", table)
	require.NoError(t, err)

	dups := issuesOf(res, IssueDuplicate)
	require.Len(t, dups, 1)
	assert.Equal(t, 2, dups[0].Row)
}

func TestAnalyze_DuplicatesIgnoreJSONKeyOrder(t *testing.T) {
	table := mustParse(t, "d.json", `[
		{"nom": "Jean", "ville": "Paris"},
		{"ville": "Paris", "nom": "Jean"},
		{"nom": "Marie"},
		{"nom": "Marie", "ville": null},
		{"nom": "Marie", "ville": ""}
	]`)

	res, err := Analyze("d.json", table)
	require.NoError(t, err)

	dups := issuesOf(res, IssueDuplicate)
	require.Len(t, dups, 3)
	assert.Equal(t, 2, dups[0].Row)
	assert.Equal(t, 1, dups[0].DuplicateOf)
	assert.Equal(t, 4, dups[1].Row)
	assert.Equal(t, 3, dups[1].DuplicateOf)
	assert.Equal(t, 5, dups[2].Row)
	assert.Equal(t, 3, dups[2].DuplicateOf)
}

func TestAnalyze_MissingAndInvalidCharacters(t *testing.T) {
	table := &ParsedTable{
		Columns: []string{"nom", "ville"},
		Rows: []Row{
			{"nom": "Jean\x07", "ville": ""},
			{"nom": "", "ville": ""},
		},
	}

	res, err := Analyze("x.csv", table)
	require.NoError(t, err)

	assert.Len(t, issuesOf(res, IssueMissingValue), 3)
	invalid := issuesOf(res, IssueInvalidCharacter)
	require.Len(t, invalid, 1)
	assert.Equal(t, 1, invalid[0].Row)
	assert.Equal(t, "nom", invalid[0].Column)

	assert.Equal(t, 1, res.ValidRows)
	assert.Equal(t, TypeEmpty, res.DataTypes["ville"].Type)
	assert.Contains(t, res.Errors, `Colonne "ville" principalement vide`)
	assert.Contains(t, res.Errors, "Ligne 3 vide ou invalide")
	assert.False(t, res.IsWellStructured)
}

func TestAnalyze_WrongFormatAndInvalidCharBothFire(t *testing.T) {
	table := &ParsedTable{
		Columns: []string{"n"},
		Rows:    []Row{{"n": "1"}, {"n": "2"}, {"n": "x\x01"}},
	}

	res, err := Analyze("n.csv", table)
	require.NoError(t, err)
	assert.Len(t, issuesOf(res, IssueWrongFormat), 1)
	assert.Len(t, issuesOf(res, IssueInvalidCharacter), 1)
}

func TestAnalyze_IsWellStructured(t *testing.T) {
	tests := []struct {
		name  string
		table *ParsedTable
		want  bool
	}{
		{
			name:  "single column",
			table: &ParsedTable{Columns: []string{"a"}, Rows: []Row{{"a": "x"}}},
			want:  false,
		},
		{
			name: "too many blank rows",
			table: &ParsedTable{Columns: []string{"a", "b"}, Rows: []Row{
				{"a": "x", "b": "y"}, {"a": "", "b": ""},
			}},
			want: false,
		},
		{
			name: "missing values do not count against structure",
			table: &ParsedTable{Columns: []string{"a", "b"}, Rows: []Row{
				{"a": "x", "b": ""}, {"a": "y", "b": "z"},
			}},
			want: true,
		},
		{
			name: "duplicate issue reaches the issue ratio",
			table: &ParsedTable{Columns: []string{"a", "b"}, Rows: []Row{
				{"a": "x", "b": "y"}, {"a": "x", "b": "y"},
			}},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Analyze("f.csv", tt.table)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.IsWellStructured)
		})
	}
}

func TestAnalyze_DoesNotMutateInput(t *testing.T) {
	table := &ParsedTable{
		Columns: []string{"a", "b"},
		Rows:    []Row{{"a": "x", "b": "y"}},
	}

	res, err := Analyze("f.csv", table)
	require.NoError(t, err)

	res.Data[0]["a"] = "changed"
	res.Columns[0] = "changed"
	assert.Equal(t, "x", table.Rows[0]["a"])
	assert.Equal(t, "a", table.Columns[0])
}

func TestAnalyze_Thresholds(t *testing.T) {
	table := &ParsedTable{Columns: []string{"a"}, Rows: []Row{{"a": "x"}}}

	res, err := Analyze("f.csv", table, WithThresholds(Thresholds{MinColumns: 1}))
	require.NoError(t, err)
	assert.True(t, res.IsWellStructured)
}

func TestAnalyze_NilTable(t *testing.T) {
	_, err := Analyze("f.csv", nil)
	assert.Error(t, err)
}

func TestStripControlChars(t *testing.T) {
	assert.Equal(t, "abc\tdef", StripControlChars("a\x00b\x1fc\tdef\x7f"))
	assert.Equal(t, "plain", StripControlChars("plain"))
	assert.False(t, HasControlChars("line\r\n"))
}
