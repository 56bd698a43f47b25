package upsert

import (
	"context"
	"time"
)

// Store is the row store the engine reads from and writes to. Column names
// are the snake_case names from Fields.
type Store interface {
	// FindMatching returns stored records whose values equal every key,
	// ignoring case, ordered by id.
	FindMatching(ctx context.Context, keys map[string]string) ([]StoredMedecin, error)
	// Insert stores a new record and returns its id.
	Insert(ctx context.Context, fileID string, m Medecin, at time.Time) (int64, error)
	// Update overwrites the given columns of record id and sets updated_at.
	Update(ctx context.Context, id int64, values map[string]string, at time.Time) error
}

// KeyLocker is implemented by stores that can run a find-then-write
// sequence atomically with respect to other writers using the same key.
type KeyLocker interface {
	WithKeyLock(ctx context.Context, key string, fn func(Store) error) error
}
