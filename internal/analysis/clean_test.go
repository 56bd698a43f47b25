package analysis

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cleanNow = time.Date(2024, 5, 17, 9, 30, 0, 0, time.UTC)

func analyzeCSV(t *testing.T, content string) *FileAnalysisResult {
	t.Helper()
	res, err := Analyze("f.csv", mustParse(t, "f.csv", content))
	require.NoError(t, err)
	return res
}

func TestClean_RequiresAnalysis(t *testing.T) {
	_, err := Clean(&FileAnalysisResult{FileName: "f.csv"}, cleanNow)
	var perr *CleaningPreconditionError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "f.csv", perr.FileName)

	_, err = Clean(nil, cleanNow)
	assert.ErrorAs(t, err, &perr)
}

func TestClean_RemovesExactlyOneDuplicate(t *testing.T) {
	res := analyzeCSV(t, "nom,ville\nJean,Paris\nJean,Paris\n")

	cleaned, err := Clean(res, cleanNow)
	require.NoError(t, err)

	assert.Equal(t, 1, cleaned.CleaningReport.DuplicatesRemoved)
	assert.Equal(t, 1, cleaned.TotalRows)
	assert.Len(t, cleaned.Data, 1)
}

func TestClean_FillsDefaultsByType(t *testing.T) {
	table := &ParsedTable{
		Columns: []string{"n", "mail", "tel", "nom", "date"},
		Rows: []Row{
			{"n": "1", "mail": "a@b.fr", "tel": "0601020304 ", "nom": "jean", "date": "2024-01-01"},
			{"n": "", "mail": "", "tel": "", "nom": "", "date": ""},
			{"n": "3", "mail": "c@d.fr", "tel": "+33 6 11 22 33 44", "nom": "Marie", "date": "2024-02-02"},
		},
	}
	res, err := Analyze("f.csv", table)
	require.NoError(t, err)
	require.Equal(t, TypeNumber, res.DataTypes["n"].Type)
	require.Equal(t, TypeEmail, res.DataTypes["mail"].Type)
	require.Equal(t, TypeDate, res.DataTypes["date"].Type)

	cleaned, err := Clean(res, cleanNow)
	require.NoError(t, err)

	filled := cleaned.Data[1]
	assert.Equal(t, "0", filled["n"])
	assert.Equal(t, PlaceholderEmail, filled[ColEmail])
	assert.Equal(t, NotProvided, filled[ColPhone])
	assert.Equal(t, NotProvided, filled[ColNom])
	assert.Equal(t, "2024-05-17", filled["date"])
	assert.Equal(t, 5, cleaned.CleaningReport.MissingValuesFilled)
}

func TestClean_Normalizes(t *testing.T) {
	table := &ParsedTable{
		Columns: []string{"potentiel", "email", "telephone", "ville"},
		Rows: []Row{
			{"potentiel": "12,50", "email": "Jean@Exemple.FR", "telephone": "06.12.34.56.78", "ville": "  PARIS\x01 "},
			{"potentiel": "7", "email": "marie@exemple.fr", "telephone": "(01) 23-45-67-89", "ville": "lyon"},
		},
	}
	res, err := Analyze("f.csv", table)
	require.NoError(t, err)

	cleaned, err := Clean(res, cleanNow)
	require.NoError(t, err)

	row := cleaned.Data[0]
	assert.Equal(t, "12.5", row[ColPotentiel])
	assert.Equal(t, "jean@exemple.fr", row[ColEmail])
	assert.Equal(t, "Paris", row[ColVille])
	assert.Equal(t, "Lyon", cleaned.Data[1][ColVille])
	assert.Positive(t, cleaned.CleaningReport.FormatConversions)
}

func TestClean_RenamesColumnsEverywhere(t *testing.T) {
	res := analyzeCSV(t, "nom,prénom,Téléphone,Spécialité,Sect_Act,autre\nDupont,jean,0601020304,cardio,A1,x\n")

	cleaned, err := Clean(res, cleanNow)
	require.NoError(t, err)

	want := []string{ColNom, ColPrenom, ColPhone, ColSpecialite, ColSectAct, "autre"}
	assert.Equal(t, want, cleaned.Columns)
	for _, row := range cleaned.Data {
		assert.Len(t, row, len(want))
		for _, col := range want {
			_, ok := row[col]
			assert.True(t, ok, "row missing %s", col)
		}
	}
	for _, col := range want {
		_, ok := cleaned.DataTypes[col]
		assert.True(t, ok, "data type missing for %s", col)
	}
	assert.Equal(t, "Jean", cleaned.Data[0][ColPrenom])
}

func TestClean_RenameCollisionKeepsOriginalName(t *testing.T) {
	res := analyzeCSV(t, "tel,telephone,nom\n0601020304,0708091011,a\n")

	cleaned, err := Clean(res, cleanNow)
	require.NoError(t, err)
	assert.Equal(t, []string{ColPhone, "telephone", ColNom}, cleaned.Columns)

	res = analyzeCSV(t, "tel,phone\n0601020304,0708091011\n")
	cleaned, err = Clean(res, cleanNow)
	require.NoError(t, err)
	assert.Equal(t, []string{"tel", ColPhone}, cleaned.Columns)
}

func TestClean_Output(t *testing.T) {
	res := analyzeCSV(t, "nom,ville\nJean,Paris\n,\nJean,Paris\n")
	require.False(t, res.IsWellStructured)

	cleaned, err := Clean(res, cleanNow)
	require.NoError(t, err)

	assert.True(t, cleaned.IsCleaned)
	assert.True(t, cleaned.IsWellStructured)
	assert.Equal(t, len(cleaned.Data), cleaned.TotalRows)
	assert.Equal(t, cleaned.TotalRows, cleaned.ValidRows)
	assert.Equal(t, cleaned.TotalRows, cleaned.CleaningReport.CleanedRows)
	assert.Equal(t, 3, cleaned.SourceRows)

	var types []string
	for _, f := range cleaned.CleaningReport.FixesApplied {
		types = append(types, f.Type)
	}
	assert.Equal(t, []string{FixDuplicatesRemoved, FixMissingValuesFilled, FixColumnsRenamed}, types)
}

func TestClean_Idempotent(t *testing.T) {
	inputs := []string{
		"nom,prenom,email,tel,potentiel,date\nDUPONT,jean,J@X.FR,06 12 34 56 78,12,2024-01-01\n,,,,,\ndupont,Jean,j@x.fr,06 12 34 56 78,12.0,2024-01-01\nMartin,Paul,p@x.fr,0708091011,3,\n",
		"a,b\n  x ,1\nx,1\n",
		"Nom,Prénom,VILLE\nJean,Dupont,Paris\n",
	}

	for _, in := range inputs {
		first, err := Clean(analyzeCSV(t, in), cleanNow)
		require.NoError(t, err)

		second, err := Clean(first, cleanNow.Add(48*time.Hour))
		require.NoError(t, err)

		assert.Equal(t, 0, second.CleaningReport.DuplicatesRemoved)
		assert.Equal(t, 0, second.CleaningReport.MissingValuesFilled)
		assert.Equal(t, 0, second.CleaningReport.FormatConversions)
		assert.Empty(t, second.CleaningReport.FixesApplied)
		assert.Equal(t, first.Columns, second.Columns)
		assert.Equal(t, first.Data, second.Data)
	}
}

func TestClean_DoesNotMutateInput(t *testing.T) {
	res := analyzeCSV(t, "nom,ville\njean,paris\njean,paris\n")

	_, err := Clean(res, cleanNow)
	require.NoError(t, err)

	assert.Equal(t, []string{"nom", "ville"}, res.Columns)
	assert.Len(t, res.Data, 2)
	assert.Equal(t, "jean", res.Data[0]["nom"])
	assert.False(t, res.IsCleaned)
	assert.Nil(t, res.CleaningReport)
}

func TestCapitalize(t *testing.T) {
	tests := map[string]string{
		"jean":        "Jean",
		"ÉLODIE":      "Élodie",
		"jean-pierre": "Jean-pierre",
		"é":           "É",
	}
	for in, want := range tests {
		assert.Equal(t, want, capitalize(in), in)
	}
}

func TestClean_NumberColumnKeepsDigits(t *testing.T) {
	table := &ParsedTable{
		Columns: []string{"Telephone", "mesure"},
		Rows: []Row{
			{"Telephone": "0612345678", "mesure": "1e5"},
			{"Telephone": "0698765432", "mesure": "12345678901234567890"},
		},
	}
	res, err := Analyze("f.csv", table)
	require.NoError(t, err)
	require.Equal(t, TypeNumber, res.DataTypes["Telephone"].Type)
	require.Equal(t, TypeNumber, res.DataTypes["mesure"].Type)

	cleaned, err := Clean(res, cleanNow)
	require.NoError(t, err)

	assert.Equal(t, "0612345678", cleaned.Data[0][ColPhone])
	assert.Equal(t, "0698765432", cleaned.Data[1][ColPhone])
	assert.Equal(t, "1e5", cleaned.Data[0]["mesure"])
	assert.Equal(t, "12345678901234567890", cleaned.Data[1]["mesure"])
	assert.Zero(t, cleaned.CleaningReport.FormatConversions)
}

func TestNormalizeNumber(t *testing.T) {
	tests := map[string]string{
		"12,50":                "12.5",
		"  42 € ":              "42",
		"1.000":                "1",
		"abc":                  "abc",
		"-3,0":                 "-3",
		"prix 7.25":            "7.25",
		"1e5":                  "1e5",
		"2.5E3":                "2.5E3",
		"0612345678":           "0612345678",
		"12345678901234567890": "12345678901234567890",
		"9007199254740993,10":  "9007199254740993.1",
		"+5":                   "+5",
		"0,0":                  "0",
		"env. 3e2 unités":      "3e2",
	}
	for in, want := range tests {
		assert.Equal(t, want, normalizeNumber(in), in)
	}
}
