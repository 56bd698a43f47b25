package upsert

import (
	"fmt"
	"strings"
)

// DuplicateConflictError aborts a batch under StrategyError.
type DuplicateConflictError struct {
	Row        int
	ExistingID int64
	// Identity holds the unique key values of the offending record, in key order.
	Identity []string
}

func (e *DuplicateConflictError) Error() string {
	return fmt.Sprintf("row %d: doublon détecté pour %s (existing id %d)", e.Row, describeIdentity(e.Identity), e.ExistingID)
}

// describeIdentity renders "Jean Dupont à Paris" for the default key set and
// a space-joined list otherwise.
func describeIdentity(values []string) string {
	if len(values) == 3 {
		return fmt.Sprintf("%s %s à %s", values[0], values[1], values[2])
	}
	return strings.Join(values, " ")
}

// StoreIOError wraps a failure returned by the row store.
type StoreIOError struct {
	Op  string
	Err error
}

func (e *StoreIOError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreIOError) Unwrap() error { return e.Err }

// ConfigError reports an invalid Config.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("upsert config %s: %s", e.Field, e.Reason)
}
