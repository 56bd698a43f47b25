package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/clientimport/internal/upsert"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.EnsureSchema(context.Background()))
	return st
}

func TestSQLite_InsertAndFindMatching(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Date(2024, 5, 17, 8, 0, 0, 0, time.UTC)

	id, err := st.Insert(ctx, "file-1", upsert.Medecin{Nom: "Dupont", Prenom: "Jean", Ville: "Paris", Specialite: "Cardiologie"}, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	got, err := st.FindMatching(ctx, map[string]string{"nom": "DUPONT", "prenom": "jean", "ville": "paris"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Cardiologie", got[0].Specialite)
	assert.Equal(t, "", got[0].Adresse)
	assert.Equal(t, "file-1", got[0].FileID)
	assert.True(t, now.Equal(got[0].CreatedAt))

	got, err = st.FindMatching(ctx, map[string]string{"nom": "Dupont", "ville": "Lyon"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSQLite_FindMatchingBlankKeyMatchesNull(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.Insert(ctx, "f", upsert.Medecin{Nom: "Dupont", Prenom: "Jean"}, time.Now())
	require.NoError(t, err)

	got, err := st.FindMatching(ctx, map[string]string{"nom": "dupont", "ville": ""})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSQLite_Update(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	updated := created.Add(24 * time.Hour)

	id, err := st.Insert(ctx, "f", upsert.Medecin{Nom: "Dupont", Prenom: "Jean", Specialite: "Cardio"}, created)
	require.NoError(t, err)

	require.NoError(t, st.Update(ctx, id, map[string]string{"specialite": "Neuro", "adresse": "1 rue A"}, updated))

	got, err := st.FindMatching(ctx, map[string]string{"nom": "Dupont"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Neuro", got[0].Specialite)
	assert.Equal(t, "1 rue A", got[0].Adresse)
	assert.True(t, created.Equal(got[0].CreatedAt))
	assert.True(t, updated.Equal(got[0].UpdatedAt))

	assert.Error(t, st.Update(ctx, 999, map[string]string{"ville": "X"}, updated))
}

func TestSQLite_StatsAndDuplicates(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Now()

	for _, m := range []upsert.Medecin{
		{Nom: "Dupont", Prenom: "Jean", Ville: "Paris", Specialite: "Cardio"},
		{Nom: "DUPONT", Prenom: "JEAN", Ville: "paris", Specialite: "cardio"},
		{Nom: "Martin", Prenom: "Paul", Ville: "Lyon"},
		{Nom: "Durand", Prenom: "Anne"},
	} {
		_, err := st.Insert(ctx, "f", m, now)
		require.NoError(t, err)
	}

	stats, err := st.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{TotalRecords: 4, UniqueNames: 3, Cities: 2, Specialties: 1}, stats)

	groups, err := st.FindPotentialDuplicates(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "dupont|jean|paris", groups[0].Group)
	assert.Equal(t, 2, groups[0].Count)
}

func TestSQLite_WithKeyLockRollsBack(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := st.WithKeyLock(ctx, "k", func(tx upsert.Store) error {
		if _, err := tx.Insert(ctx, "f", upsert.Medecin{Nom: "A", Prenom: "B"}, time.Now()); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	stats, err := st.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalRecords)
}

// The engine drives a real store end to end.
func TestSQLite_UpsertEngine(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	engine := upsert.NewEngine(st, slog.New(slog.NewTextHandler(io.Discard, nil)))

	recs := []upsert.Medecin{
		{Nom: "Dupont", Prenom: "Jean", Ville: "Paris", Specialite: "Cardio"},
		{Nom: "Martin", Prenom: "Paul", Ville: "Lyon"},
	}
	res, err := engine.Upsert(ctx, "f1", recs, upsert.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Inserted)

	recs[0].Specialite = "Neuro"
	res, err = engine.Upsert(ctx, "f2", recs, upsert.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Updated)

	got, err := st.FindMatching(ctx, map[string]string{"nom": "dupont"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Neuro", got[0].Specialite)
	assert.Equal(t, "f1", got[0].FileID)
}
