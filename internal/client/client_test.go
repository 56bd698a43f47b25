package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/clientimport/internal/analysis"
	"github.com/JonMunkholm/clientimport/internal/upsert"
)

type fakeGeocoder struct {
	results map[string]*Coordinates
	errs    map[string]error
	delay   time.Duration
	calls   []string
}

func (g *fakeGeocoder) Resolve(ctx context.Context, address string) (*Coordinates, error) {
	g.calls = append(g.calls, address)
	if g.delay > 0 {
		select {
		case <-time.After(g.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err, ok := g.errs[address]; ok {
		return nil, err
	}
	return g.results[address], nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func cleanedResult(rows ...analysis.Row) *analysis.FileAnalysisResult {
	return &analysis.FileAnalysisResult{
		FileName:   "medecins.csv",
		TotalRows:  len(rows),
		ValidRows:  len(rows),
		Data:       rows,
		IsAnalyzed: true,
		IsCleaned:  true,
	}
}

func TestExtract_RequiresCleaned(t *testing.T) {
	x := NewExtractor(nil, 0, quietLogger())

	_, err := x.Extract(context.Background(), &analysis.FileAnalysisResult{FileName: "a.csv", IsAnalyzed: true})
	var perr *ExtractionPreconditionError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "a.csv", perr.FileName)

	_, err = ToMedecins(&analysis.FileAnalysisResult{IsAnalyzed: true})
	assert.ErrorAs(t, err, &perr)
}

func TestExtract_FieldResolution(t *testing.T) {
	res := cleanedResult(
		analysis.Row{"Nom": "Dupont", "phone": "0601020304", "email": "j@x.fr", "ADRESSE": "1 rue A", "VILLE": "Paris", "SPECIALITE": "Cardio"},
		analysis.Row{"firstName": "Marie", "lastName": "Curie", "mail": "m@x.fr", "specialty": "Radio"},
		analysis.Row{"Nom": analysis.NotProvided, "email": analysis.PlaceholderEmail},
		analysis.Row{"Prénom": "Paul"},
		analysis.Row{"Nom": ""},
	)

	clients, err := NewExtractor(nil, 0, quietLogger()).Extract(context.Background(), res)
	require.NoError(t, err)
	require.Len(t, clients, 3)

	assert.Equal(t, ClientRecord{
		Name: "Dupont", Phone: "0601020304", Email: "j@x.fr", Address: "1 rue A", City: "Paris", Specialty: "Cardio",
	}, clients[0])
	assert.Equal(t, ClientRecord{Name: "Marie Curie", Email: "m@x.fr", Specialty: "Radio"}, clients[1])
	assert.Equal(t, "Paul", clients[2].Name)
}

func TestExtract_GeocodesNonPlaceholderAddresses(t *testing.T) {
	geo := &fakeGeocoder{results: map[string]*Coordinates{
		"1 rue A": {Lat: 48.85, Lng: 2.35},
	}}
	res := cleanedResult(
		analysis.Row{"Nom": "A", "ADRESSE": "1 rue A"},
		analysis.Row{"Nom": "B", "ADRESSE": analysis.NotProvided},
		analysis.Row{"Nom": "C", "ADRESSE": "nowhere"},
	)

	clients, err := NewExtractor(geo, time.Second, quietLogger()).Extract(context.Background(), res)
	require.NoError(t, err)
	require.Len(t, clients, 3)

	assert.Equal(t, &Coordinates{Lat: 48.85, Lng: 2.35}, clients[0].Coordinates)
	assert.Nil(t, clients[1].Coordinates)
	assert.Nil(t, clients[2].Coordinates)
	assert.Equal(t, []string{"1 rue A", "nowhere"}, geo.calls)
}

func TestExtract_GeocodeFailuresAreSwallowed(t *testing.T) {
	geo := &fakeGeocoder{errs: map[string]error{"bad": errors.New("quota exceeded")}}
	res := cleanedResult(
		analysis.Row{"Nom": "A", "ADRESSE": "bad"},
		analysis.Row{"Nom": "B", "ADRESSE": "good"},
	)

	clients, err := NewExtractor(geo, time.Second, quietLogger()).Extract(context.Background(), res)
	require.NoError(t, err)
	require.Len(t, clients, 2)
	assert.Nil(t, clients[0].Coordinates)
}

func TestExtract_GeocodeTimeoutFailsSoft(t *testing.T) {
	geo := &fakeGeocoder{delay: time.Second}
	res := cleanedResult(
		analysis.Row{"Nom": "A", "ADRESSE": "slow 1"},
		analysis.Row{"Nom": "B", "ADRESSE": "slow 2"},
	)

	start := time.Now()
	clients, err := NewExtractor(geo, 20*time.Millisecond, quietLogger()).Extract(context.Background(), res)
	require.NoError(t, err)

	assert.Len(t, clients, 2)
	assert.Nil(t, clients[0].Coordinates)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestExtract_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewExtractor(nil, 0, quietLogger()).Extract(ctx, cleanedResult(analysis.Row{"Nom": "A"}))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestToMedecins(t *testing.T) {
	res := cleanedResult(
		analysis.Row{
			"Nom": "Dupont", "Prénom": "Jean", "VILLE": "Paris", "SECT ACT": "S1",
			"Nom du compte": analysis.NotProvided, "POTENTIEL": "3", "autre": "x",
		},
		analysis.Row{"Nom": analysis.NotProvided, "Prénom": "Nobody"},
	)

	recs, err := ToMedecins(res)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, upsert.Medecin{Nom: "Dupont", Prenom: "Jean", Ville: "Paris", SectAct: "S1", Potentiel: "3"}, recs[0])
}

func TestToMedecins_FromCleanedFile(t *testing.T) {
	table, err := analysis.Parse("m.csv", []byte("nom,prénom,ville,spécialité\nDUPONT,jean,paris,cardiologie\n"))
	require.NoError(t, err)
	analyzed, err := analysis.Analyze("m.csv", table)
	require.NoError(t, err)
	cleaned, err := analysis.Clean(analyzed, time.Now())
	require.NoError(t, err)

	recs, err := ToMedecins(cleaned)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, upsert.Medecin{Nom: "Dupont", Prenom: "Jean", Ville: "Paris", Specialite: "Cardiologie"}, recs[0])
}
