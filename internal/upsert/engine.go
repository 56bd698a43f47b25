package upsert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Actions recorded in ConflictEntry.Action.
const (
	ActionUpdated = "updated"
	ActionSkipped = "skipped"
	ActionError   = "error"
)

// ConflictEntry records what happened to a record that matched an existing
// one or failed. Row is 1-based in input order.
type ConflictEntry struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
	Action string `json:"action"`
}

// Result holds the batch counters. Inserted+Updated+Skipped == Total.
type Result struct {
	Inserted  int             `json:"inserted"`
	Updated   int             `json:"updated"`
	Skipped   int             `json:"skipped"`
	Total     int             `json:"total"`
	Conflicts []ConflictEntry `json:"conflicts"`
}

// Engine applies a Config to a batch of incoming records, one at a time in
// input order.
type Engine struct {
	Store  Store
	Logger *slog.Logger
	Clock  func() time.Time
}

// NewEngine creates an engine backed by store.
func NewEngine(store Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{Store: store, Logger: logger, Clock: time.Now}
}

type outcome struct {
	action string
	reason string
}

// Upsert processes recs sequentially. A failing record is logged and
// counted as skipped. Under StrategyError the first match stops the batch
// and returns the partial result with a *DuplicateConflictError.
func (e *Engine) Upsert(ctx context.Context, fileID string, recs []Medecin, cfg Config) (*Result, error) {
	keys, updates, err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	logger := e.logger().With("file_id", fileID, "strategy", string(cfg.ConflictStrategy))
	res := &Result{}

	for i, rec := range recs {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("upsert cancelled after %d of %d records: %w", res.Total, len(recs), err)
		}

		row := i + 1
		res.Total++

		out, err := e.apply(ctx, fileID, row, rec, cfg, keys, updates)
		if err != nil {
			var dup *DuplicateConflictError
			if errors.As(err, &dup) {
				res.Skipped++
				res.Conflicts = append(res.Conflicts, ConflictEntry{Row: row, Reason: dup.Error(), Action: ActionError})
				logger.Warn("duplicate conflict, aborting batch", "row", row, "existing_id", dup.ExistingID)
				return res, err
			}

			logger.Error("upsert record failed", "row", row, "error", err)
			res.Skipped++
			res.Conflicts = append(res.Conflicts, ConflictEntry{Row: row, Reason: "Erreur: " + err.Error(), Action: ActionSkipped})
			continue
		}

		switch out.action {
		case "":
			res.Inserted++
		case ActionUpdated:
			res.Updated++
			res.Conflicts = append(res.Conflicts, ConflictEntry{Row: row, Reason: out.reason, Action: ActionUpdated})
		default:
			res.Skipped++
			res.Conflicts = append(res.Conflicts, ConflictEntry{Row: row, Reason: out.reason, Action: ActionSkipped})
		}
	}

	logger.Info("upsert complete",
		"total", res.Total,
		"inserted", res.Inserted,
		"updated", res.Updated,
		"skipped", res.Skipped,
	)
	return res, nil
}

// apply runs find-then-write for one record, under the store's key lock
// when it has one.
func (e *Engine) apply(ctx context.Context, fileID string, row int, rec Medecin, cfg Config, keys, updates []string) (outcome, error) {
	criteria := make(map[string]string, len(keys))
	identity := make([]string, len(keys))
	for i, col := range keys {
		v, _ := rec.Get(col)
		criteria[col] = v
		identity[i] = v
	}

	var out outcome
	run := func(s Store) error {
		var err error
		out, err = e.resolve(ctx, s, fileID, row, rec, cfg, criteria, identity, updates)
		return err
	}

	if locker, ok := e.Store.(KeyLocker); ok {
		err := locker.WithKeyLock(ctx, strings.ToLower(strings.Join(identity, "|")), run)
		return out, err
	}
	return out, run(e.Store)
}

func (e *Engine) resolve(
	ctx context.Context,
	s Store,
	fileID string,
	row int,
	rec Medecin,
	cfg Config,
	criteria map[string]string,
	identity []string,
	updates []string,
) (outcome, error) {
	now := e.now()

	matches, err := s.FindMatching(ctx, criteria)
	if err != nil {
		return outcome{}, storeErr("find", err)
	}

	if len(matches) == 0 {
		if _, err := s.Insert(ctx, fileID, rec, now); err != nil {
			return outcome{}, storeErr("insert", err)
		}
		return outcome{}, nil
	}

	existing := matches[0]
	switch cfg.ConflictStrategy {
	case StrategyUpdate:
		if cfg.ShouldUpdate != nil && !cfg.ShouldUpdate(existing, rec) {
			return outcome{action: ActionSkipped, reason: "Enregistrement existant plus récent, mise à jour ignorée"}, nil
		}
		values := make(map[string]string, len(updates))
		for _, col := range updates {
			v, _ := rec.Get(col)
			if cfg.KeepExisting && strings.TrimSpace(v) == "" {
				continue
			}
			values[col] = v
		}
		if err := s.Update(ctx, existing.ID, values, now); err != nil {
			return outcome{}, storeErr("update", err)
		}
		return outcome{action: ActionUpdated, reason: fmt.Sprintf("Mise à jour de l'enregistrement existant (ID: %d)", existing.ID)}, nil

	case StrategySkip:
		return outcome{action: ActionSkipped, reason: "Enregistrement similaire existe déjà, insertion ignorée"}, nil

	default:
		return outcome{}, &DuplicateConflictError{Row: row, ExistingID: existing.ID, Identity: identity}
	}
}

func storeErr(op string, err error) error {
	var sio *StoreIOError
	if errors.As(err, &sio) {
		return err
	}
	return &StoreIOError{Op: op, Err: err}
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

func (e *Engine) now() time.Time {
	if e.Clock == nil {
		return time.Now()
	}
	return e.Clock()
}
