package db

import (
	"errors"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
)

// ColumnCaps tracks which columns the live schema turned out not to have.
// Every column is assumed present until a failed statement proves
// otherwise; the knowledge is kept for the process lifetime.
type ColumnCaps struct {
	mu      sync.RWMutex
	missing map[string]bool
}

func NewColumnCaps() *ColumnCaps {
	return &ColumnCaps{missing: make(map[string]bool)}
}

func (c *ColumnCaps) Available(col string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.missing[col]
}

func (c *ColumnCaps) MarkMissing(col string) {
	c.mu.Lock()
	c.missing[col] = true
	c.mu.Unlock()
}

// Pick returns the first of the two column names still believed present.
func (c *ColumnCaps) Pick(primary, fallback string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.missing[primary] {
		return primary, true
	}
	if !c.missing[fallback] {
		return fallback, true
	}
	return "", false
}

// MissingColumn extracts the column name from an undefined_column error,
// or "" when err is something else.
func MissingColumn(err error) string {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "42703" {
		return ""
	}
	// Message shapes: `column "status" does not exist`,
	// `column "avg_entry" of relation "positions" does not exist`,
	// `column p.status does not exist`.
	msg := pgErr.Message
	if i := strings.Index(msg, `"`); i >= 0 {
		rest := msg[i+1:]
		if j := strings.Index(rest, `"`); j >= 0 {
			return rest[:j]
		}
	}
	fields := strings.Fields(msg)
	for i, f := range fields {
		if f == "column" && i+1 < len(fields) {
			name := fields[i+1]
			if k := strings.LastIndex(name, "."); k >= 0 {
				name = name[k+1:]
			}
			return name
		}
	}
	return ""
}

// UniqueViolation reports whether err is a uniqueness violation on a
// constraint whose name contains the given fragment.
func UniqueViolation(err error, constraintFragment string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" && strings.Contains(pgErr.ConstraintName, constraintFragment)
}
