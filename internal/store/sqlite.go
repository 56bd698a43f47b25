package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/JonMunkholm/clientimport/internal/upsert"
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStore implements upsert.Store using modernc.org/sqlite. It is meant
// for local runs of the CLI.
type SQLiteStore struct {
	db *sql.DB
	q  querier
}

var (
	_ upsert.Store     = (*SQLiteStore)(nil)
	_ upsert.KeyLocker = (*SQLiteStore)(nil)
)

// NewSQLite opens a SQLite database at dsn and configures WAL mode. Writes
// go through a single connection.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, q: db}, nil
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS medecin (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	file_id    TEXT NOT NULL,
	nom        TEXT NOT NULL,
	prenom     TEXT NOT NULL,
	sect_act   TEXT,
	semaine    TEXT,
	structure  TEXT,
	nom_compte TEXT,
	specialite TEXT,
	potentiel  TEXT,
	ville      TEXT,
	adresse    TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_medecin_identity ON medecin(lower(nom), lower(prenom), lower(ville));
`

// EnsureSchema creates the medecin table for a fresh local database.
func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteSchema)
	return eris.Wrap(err, "sqlite: ensure schema")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// FindMatching selects records equal to every key, ignoring ASCII case.
func (s *SQLiteStore) FindMatching(ctx context.Context, keys map[string]string) ([]upsert.StoredMedecin, error) {
	cols := orderedKeys(keys)
	if len(cols) == 0 {
		return nil, eris.New("sqlite: find matching: no key columns")
	}

	where := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, col := range cols {
		where[i] = fmt.Sprintf("lower(coalesce(%s, '')) = lower(?)", col)
		args[i] = keys[col]
	}

	rows, err := s.q.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM medecin WHERE `+strings.Join(where, " AND ")+` ORDER BY id`, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find matching")
	}
	return scanSQLiteMedecins(rows)
}

// Insert adds one record and returns its id.
func (s *SQLiteStore) Insert(ctx context.Context, fileID string, m upsert.Medecin, at time.Time) (int64, error) {
	ts := formatTime(at)
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO medecin (file_id, nom, prenom, sect_act, semaine, structure, nom_compte, specialite, potentiel, ville, adresse, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		fileID,
		strings.TrimSpace(m.Nom),
		strings.TrimSpace(m.Prenom),
		nullable(m.SectAct),
		nullable(m.Semaine),
		nullable(m.Structure),
		nullable(m.NomCompte),
		nullable(m.Specialite),
		nullable(m.Potentiel),
		nullable(m.Ville),
		nullable(m.Adresse),
		ts, ts,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: insert medecin")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: insert medecin id")
	}
	return id, nil
}

// Update sets the given columns and updated_at on record id.
func (s *SQLiteStore) Update(ctx context.Context, id int64, values map[string]string, at time.Time) error {
	cols := orderedKeys(values)
	sets := make([]string, 0, len(cols)+1)
	args := make([]any, 0, len(cols)+2)
	for _, col := range cols {
		sets = append(sets, col+" = ?")
		if col == "nom" || col == "prenom" {
			args = append(args, strings.TrimSpace(values[col]))
		} else {
			args = append(args, nullable(values[col]))
		}
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, formatTime(at), id)

	res, err := s.q.ExecContext(ctx, `UPDATE medecin SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update medecin %d", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Errorf("sqlite: update medecin %d: not found", id)
	}
	return nil
}

// WithKeyLock runs fn in a transaction. SQLite serializes writers, so the
// key itself is not needed.
func (s *SQLiteStore) WithKeyLock(ctx context.Context, _ string, fn func(upsert.Store) error) error {
	if s.db == nil {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &upsert.StoreIOError{Op: "begin", Err: err}
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(&SQLiteStore{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return &upsert.StoreIOError{Op: "commit", Err: err}
	}
	return nil
}

// Stats counts records, distinct names, cities and specialties.
func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.q.QueryRowContext(ctx, `SELECT count(*),
	count(DISTINCT lower(nom) || '|' || lower(prenom)),
	count(DISTINCT lower(ville)),
	count(DISTINCT lower(specialite))
FROM medecin`).Scan(&st.TotalRecords, &st.UniqueNames, &st.Cities, &st.Specialties)
	if err != nil {
		return Stats{}, eris.Wrap(err, "sqlite: stats")
	}
	return st, nil
}

// FindPotentialDuplicates returns groups of stored records sharing
// lower(nom|prenom|ville).
func (s *SQLiteStore) FindPotentialDuplicates(ctx context.Context) ([]DuplicateGroup, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+selectColumns+` FROM medecin
WHERE (lower(nom), lower(prenom), lower(coalesce(ville, ''))) IN (
	SELECT lower(nom), lower(prenom), lower(coalesce(ville, ''))
	FROM medecin
	GROUP BY 1, 2, 3
	HAVING count(*) > 1
)
ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find duplicates")
	}
	records, err := scanSQLiteMedecins(rows)
	if err != nil {
		return nil, err
	}
	return groupDuplicates(records), nil
}

func scanSQLiteMedecins(rows *sql.Rows) ([]upsert.StoredMedecin, error) {
	defer rows.Close()

	var out []upsert.StoredMedecin
	for rows.Next() {
		var (
			m                    upsert.StoredMedecin
			optional             [8]sql.NullString
			createdAt, updatedAt string
		)
		if err := rows.Scan(
			&m.ID, &m.FileID, &m.Nom, &m.Prenom,
			&optional[0], &optional[1], &optional[2], &optional[3],
			&optional[4], &optional[5], &optional[6], &optional[7],
			&createdAt, &updatedAt,
		); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan medecin")
		}

		m.SectAct = optional[0].String
		m.Semaine = optional[1].String
		m.Structure = optional[2].String
		m.NomCompte = optional[3].String
		m.Specialite = optional[4].String
		m.Potentiel = optional[5].String
		m.Ville = optional[6].String
		m.Adresse = optional[7].String
		m.CreatedAt = parseTime(createdAt)
		m.UpdatedAt = parseTime(updatedAt)
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate medecin rows")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
