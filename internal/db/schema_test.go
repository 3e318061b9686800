package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestMissingColumn(t *testing.T) {
	cases := []struct {
		msg  string
		want string
	}{
		{`column "status" does not exist`, "status"},
		{`column "avg_entry" of relation "positions" does not exist`, "avg_entry"},
		{`column p.status does not exist`, "status"},
	}
	for _, tc := range cases {
		err := fmt.Errorf("query: %w", &pgconn.PgError{Code: "42703", Message: tc.msg})
		assert.Equal(t, tc.want, MissingColumn(err), tc.msg)
	}

	assert.Empty(t, MissingColumn(errors.New("connection refused")))
	assert.Empty(t, MissingColumn(&pgconn.PgError{Code: "23505", Message: `column "x" does not exist`}))
}

func TestUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "positions_user_symbol_key"})
	assert.True(t, UniqueViolation(err, "positions_user"))
	assert.False(t, UniqueViolation(err, "orders"))
	assert.False(t, UniqueViolation(errors.New("boom"), "positions_user"))
}

func TestColumnCaps(t *testing.T) {
	caps := NewColumnCaps()
	assert.True(t, caps.Available("status"))

	col, ok := caps.Pick("avg_entry", "entry_price")
	assert.True(t, ok)
	assert.Equal(t, "avg_entry", col)

	caps.MarkMissing("avg_entry")
	col, ok = caps.Pick("avg_entry", "entry_price")
	assert.True(t, ok)
	assert.Equal(t, "entry_price", col)

	caps.MarkMissing("entry_price")
	_, ok = caps.Pick("avg_entry", "entry_price")
	assert.False(t, ok)
	assert.False(t, caps.Available("avg_entry"))
}
