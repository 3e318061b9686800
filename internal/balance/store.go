// Package balance persists the demo cash balance on the profiles table.
package balance

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// DefaultBalance is the demo cash every new profile starts with.
var DefaultBalance = decimal.NewFromInt(10000)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Get reads the user's cash balance. A missing profile row reads as the
// default demo balance rather than an error.
func (s *Store) Get(ctx context.Context, userID string) (decimal.Decimal, error) {
	var bal decimal.Decimal
	err := s.pool.QueryRow(ctx,
		`select coalesce(cash_balance, $2) from profiles where id = $1`,
		userID, DefaultBalance,
	).Scan(&bal)
	if errors.Is(err, pgx.ErrNoRows) {
		return DefaultBalance, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("fetch balance: %w", err)
	}
	return bal, nil
}

// Set writes the user's cash balance.
func (s *Store) Set(ctx context.Context, userID string, amount decimal.Decimal) error {
	tag, err := s.pool.Exec(ctx,
		`update profiles set cash_balance = $2 where id = $1`,
		userID, amount,
	)
	if err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.Ensure(ctx, userID, amount)
	}
	return nil
}

// Reset puts the balance back to the demo default.
func (s *Store) Reset(ctx context.Context, userID string) error {
	return s.Set(ctx, userID, DefaultBalance)
}

// Ensure creates the profile row with the given balance if it does not
// exist yet. An existing row is left untouched.
func (s *Store) Ensure(ctx context.Context, userID string, amount decimal.Decimal) error {
	_, err := s.pool.Exec(ctx,
		`insert into profiles (id, cash_balance) values ($1, $2) on conflict (id) do nothing`,
		userID, amount,
	)
	if err != nil {
		return fmt.Errorf("ensure profile: %w", err)
	}
	return nil
}
