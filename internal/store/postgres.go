package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/clientimport/internal/upsert"
)

// DBTX is the interface for database operations.
// Satisfied by *pgxpool.Pool, pgx.Tx and pgxmock.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// Pool is a DBTX that can start transactions.
type Pool interface {
	DBTX
	Begin(context.Context) (pgx.Tx, error)
}

// PostgresStore implements upsert.Store against the medecin table.
type PostgresStore struct {
	db   DBTX
	pool Pool
}

var (
	_ upsert.Store     = (*PostgresStore)(nil)
	_ upsert.KeyLocker = (*PostgresStore)(nil)
)

// NewPostgres wraps a connection pool.
func NewPostgres(pool Pool) *PostgresStore {
	return &PostgresStore{db: pool, pool: pool}
}

// PoolOptions tunes the pgx pool opened by OpenPool.
type PoolOptions struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS medecin (
	id         BIGSERIAL PRIMARY KEY,
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
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_medecin_identity ON medecin (lower(nom), lower(prenom), lower(ville));
`

// EnsureSchema creates the medecin table and its identity index if missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("ensure medecin schema: %w", err)
	}
	return nil
}

// OpenPool parses url, applies opts and pings the database.
func OpenPool(ctx context.Context, url string, opts PoolOptions) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		cfg.MinConns = opts.MinConns
	}
	if opts.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = opts.MaxConnLifetime
	}
	if opts.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = opts.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// FindMatching selects records equal to every key, ignoring case.
func (s *PostgresStore) FindMatching(ctx context.Context, keys map[string]string) ([]upsert.StoredMedecin, error) {
	cols := orderedKeys(keys)
	if len(cols) == 0 {
		return nil, errors.New("find matching: no key columns")
	}

	where := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, col := range cols {
		where[i] = fmt.Sprintf("lower(coalesce(%s, '')) = lower($%d)", pgx.Identifier{col}.Sanitize(), i+1)
		args[i] = keys[col]
	}

	query := `SELECT ` + selectColumns + ` FROM medecin WHERE ` + strings.Join(where, " AND ") + ` ORDER BY id`
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find matching: %w", err)
	}
	return collectMedecins(rows)
}

// Insert adds one record and returns its id.
func (s *PostgresStore) Insert(ctx context.Context, fileID string, m upsert.Medecin, at time.Time) (int64, error) {
	const query = `INSERT INTO medecin (file_id, nom, prenom, sect_act, semaine, structure, nom_compte, specialite, potentiel, ville, adresse, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
RETURNING id`

	var id int64
	err := s.db.QueryRow(ctx, query,
		fileID,
		strings.TrimSpace(m.Nom),
		strings.TrimSpace(m.Prenom),
		ToPgText(m.SectAct),
		ToPgText(m.Semaine),
		ToPgText(m.Structure),
		ToPgText(m.NomCompte),
		ToPgText(m.Specialite),
		ToPgText(m.Potentiel),
		ToPgText(m.Ville),
		ToPgText(m.Adresse),
		at,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert medecin: %w", err)
	}
	return id, nil
}

// Update sets the given columns and updated_at on record id.
func (s *PostgresStore) Update(ctx context.Context, id int64, values map[string]string, at time.Time) error {
	cols := orderedKeys(values)
	sets := make([]string, 0, len(cols)+1)
	args := make([]any, 0, len(cols)+2)
	for _, col := range cols {
		args = append(args, columnValue(col, values[col]))
		sets = append(sets, fmt.Sprintf("%s = $%d", pgx.Identifier{col}.Sanitize(), len(args)))
	}
	args = append(args, at)
	sets = append(sets, fmt.Sprintf("updated_at = $%d", len(args)))
	args = append(args, id)

	query := fmt.Sprintf("UPDATE medecin SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update medecin %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update medecin %d: %w", id, pgx.ErrNoRows)
	}
	return nil
}

// WithKeyLock runs fn in a transaction holding an advisory lock on key, so
// concurrent imports of the same identity are serialized.
func (s *PostgresStore) WithKeyLock(ctx context.Context, key string, fn func(upsert.Store) error) error {
	if s.pool == nil {
		return fn(s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return &upsert.StoreIOError{Op: "begin", Err: err}
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
		return &upsert.StoreIOError{Op: "lock", Err: err}
	}

	if err := fn(&PostgresStore{db: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return &upsert.StoreIOError{Op: "commit", Err: err}
	}
	return nil
}

// Stats counts records, distinct names, cities and specialties.
func (s *PostgresStore) Stats(ctx context.Context) (Stats, error) {
	const query = `SELECT count(*),
	count(DISTINCT lower(nom) || '|' || lower(prenom)),
	count(DISTINCT lower(ville)),
	count(DISTINCT lower(specialite))
FROM medecin`

	var st Stats
	if err := s.db.QueryRow(ctx, query).Scan(&st.TotalRecords, &st.UniqueNames, &st.Cities, &st.Specialties); err != nil {
		return Stats{}, fmt.Errorf("medecin stats: %w", err)
	}
	return st, nil
}

// FindPotentialDuplicates returns groups of stored records sharing
// lower(nom|prenom|ville).
func (s *PostgresStore) FindPotentialDuplicates(ctx context.Context) ([]DuplicateGroup, error) {
	query := `SELECT ` + selectColumns + ` FROM medecin
WHERE (lower(nom), lower(prenom), lower(coalesce(ville, ''))) IN (
	SELECT lower(nom), lower(prenom), lower(coalesce(ville, ''))
	FROM medecin
	GROUP BY 1, 2, 3
	HAVING count(*) > 1
)
ORDER BY id`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("find duplicates: %w", err)
	}
	records, err := collectMedecins(rows)
	if err != nil {
		return nil, err
	}
	return groupDuplicates(records), nil
}

func collectMedecins(rows pgx.Rows) ([]upsert.StoredMedecin, error) {
	defer rows.Close()

	var out []upsert.StoredMedecin
	for rows.Next() {
		var (
			m                    upsert.StoredMedecin
			fileID               pgtype.Text
			optional             [8]pgtype.Text
			createdAt, updatedAt pgtype.Timestamptz
		)
		if err := rows.Scan(
			&m.ID, &fileID, &m.Nom, &m.Prenom,
			&optional[0], &optional[1], &optional[2], &optional[3],
			&optional[4], &optional[5], &optional[6], &optional[7],
			&createdAt, &updatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan medecin: %w", err)
		}

		m.FileID = fileID.String
		m.SectAct = optional[0].String
		m.Semaine = optional[1].String
		m.Structure = optional[2].String
		m.NomCompte = optional[3].String
		m.Specialite = optional[4].String
		m.Potentiel = optional[5].String
		m.Ville = optional[6].String
		m.Adresse = optional[7].String
		m.CreatedAt = createdAt.Time
		m.UpdatedAt = updatedAt.Time
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate medecin rows: %w", err)
	}
	return out, nil
}

// columnValue keeps nom and prenom as plain strings (NOT NULL columns) and
// maps the optional columns through ToPgText.
func columnValue(col, v string) any {
	if col == "nom" || col == "prenom" {
		return strings.TrimSpace(v)
	}
	return ToPgText(v)
}

// ToPgText converts a string to pgtype.Text.
// Returns invalid if the string is empty or only whitespace.
func ToPgText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}
