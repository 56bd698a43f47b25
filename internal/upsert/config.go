package upsert

import (
	"fmt"
	"slices"
	"strings"
)

// Strategy decides what happens when an incoming record matches a stored one.
type Strategy string

const (
	StrategyUpdate Strategy = "update"
	StrategySkip   Strategy = "skip"
	StrategyError  Strategy = "error"
)

// ParseStrategy converts a user-provided strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.ToLower(strings.TrimSpace(s))); st {
	case StrategyUpdate, StrategySkip, StrategyError:
		return st, nil
	}
	return "", &ConfigError{Field: "ConflictStrategy", Reason: fmt.Sprintf("unknown strategy %q (expected update, skip or error)", s)}
}

// Config controls matching and conflict resolution.
type Config struct {
	// UniqueKeys are the fields compared case-insensitively to find a match.
	UniqueKeys []string
	// ConflictStrategy applies to the first matching stored record.
	ConflictStrategy Strategy
	// UpdateColumns restricts which fields an update overwrites. Empty means
	// every field except the unique keys.
	UpdateColumns []string
	// ShouldUpdate, when set, must return true for an update to proceed.
	ShouldUpdate func(existing StoredMedecin, incoming Medecin) bool
	// KeepExisting leaves a stored field untouched when the incoming value
	// is blank. By default a blank value clears the field.
	KeepExisting bool
}

// DefaultConfig matches on name, first name and city and updates the
// descriptive fields.
func DefaultConfig() Config {
	return Config{
		UniqueKeys:       []string{"Nom", "Prénom", "VILLE"},
		ConflictStrategy: StrategyUpdate,
		UpdateColumns:    []string{"SECT ACT", "Semaine", "STRUCTURE", "Nom du compte", "SPECIALITE", "POTENTIEL", "ADRESSE"},
	}
}

// PreferMoreComplete is a ShouldUpdate predicate that keeps the stored
// record when the incoming one has fewer filled fields.
func PreferMoreComplete(existing StoredMedecin, incoming Medecin) bool {
	return incoming.Completeness() >= existing.Completeness()
}

// Validate checks the config and returns the unique key and update column
// lists resolved to column names.
func (c Config) Validate() (keys, updates []string, err error) {
	if len(c.UniqueKeys) == 0 {
		return nil, nil, &ConfigError{Field: "UniqueKeys", Reason: "at least one key is required"}
	}
	if _, err := ParseStrategy(string(c.ConflictStrategy)); err != nil {
		return nil, nil, err
	}

	for _, k := range c.UniqueKeys {
		col, ok := ColumnFor(k)
		if !ok {
			return nil, nil, &ConfigError{Field: "UniqueKeys", Reason: fmt.Sprintf("unknown field %q", k)}
		}
		if !slices.Contains(keys, col) {
			keys = append(keys, col)
		}
	}

	if len(c.UpdateColumns) == 0 {
		for _, f := range Fields {
			if !slices.Contains(keys, f.Column) {
				updates = append(updates, f.Column)
			}
		}
		return keys, updates, nil
	}

	for _, u := range c.UpdateColumns {
		col, ok := ColumnFor(u)
		if !ok {
			return nil, nil, &ConfigError{Field: "UpdateColumns", Reason: fmt.Sprintf("unknown field %q", u)}
		}
		if !slices.Contains(updates, col) {
			updates = append(updates, col)
		}
	}
	return keys, updates, nil
}
