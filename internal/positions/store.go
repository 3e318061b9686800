// Package positions persists open positions. The table schema has drifted
// across deployments (renamed value columns, late-added optional columns),
// so writes negotiate the available column set instead of assuming it.
package positions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cryptoworld/internal/db"
	"cryptoworld/internal/logger"
	"cryptoworld/internal/model"
)

// ErrSchemaDrift is returned when a column the write cannot do without is
// missing from the live schema.
var ErrSchemaDrift = errors.New("positions table schema is missing a required column")

// ErrNotFound is returned by single-row lookups.
var ErrNotFound = errors.New("position not found")

const duplicateConstraint = "positions_user"

type Store struct {
	pool   *pgxpool.Pool
	caps   *db.ColumnCaps
	logger logger.Logger
}

func NewStore(pool *pgxpool.Pool, log logger.Logger) *Store {
	return &Store{pool: pool, caps: db.NewColumnCaps(), logger: log}
}

// OpenByUser returns every open position for the user.
func (s *Store) OpenByUser(ctx context.Context, userID string) ([]model.Position, error) {
	return s.fetchOpen(ctx, "user_id = $1", userID)
}

// OpenBySymbol returns the user's open position for symbol, or ErrNotFound.
func (s *Store) OpenBySymbol(ctx context.Context, userID, symbol string) (*model.Position, error) {
	rows, err := s.fetchOpen(ctx, "user_id = $1 and symbol = $2", userID, symbol)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

// ByID returns a position regardless of status, or ErrNotFound.
func (s *Store) ByID(ctx context.Context, userID, id string) (*model.Position, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`select to_jsonb(p) from positions p where id = $1 and user_id = $2`,
		id, userID,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch position %s: %w", id, err)
	}
	p, err := decodeRow(raw)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// fetchOpen selects rows as jsonb so legacy column shapes survive the trip
// and model.FromRow can apply its fallbacks. When the status column itself
// is missing the filter is dropped and every row counts as open.
func (s *Store) fetchOpen(ctx context.Context, where string, args ...any) ([]model.Position, error) {
	query := `select to_jsonb(p) from positions p where ` + where
	withStatus := s.caps.Available("status")
	if withStatus {
		query += ` and p.status = 'open'`
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		if withStatus && db.MissingColumn(err) == "status" {
			s.caps.MarkMissing("status")
			return s.fetchOpen(ctx, where, args...)
		}
		return nil, fmt.Errorf("fetch open positions: %w", err)
	}
	defer rows.Close()

	var out []model.Position
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan position row: %w", err)
		}
		p, err := decodeRow(raw)
		if err != nil {
			return nil, err
		}
		if p.IsOpen() {
			out = append(out, p)
		}
	}
	return out, rows.Err()
}

func decodeRow(raw []byte) (model.Position, error) {
	var row map[string]any
	if err := json.Unmarshal(raw, &row); err != nil {
		return model.Position{}, fmt.Errorf("decode position row: %w", err)
	}
	return model.FromRow(row), nil
}

// Insert writes a new position and returns its id. A unique-constraint
// violation is returned as-is so the caller can detect it with IsDuplicate.
func (s *Store) Insert(ctx context.Context, p *model.Position) (string, error) {
	for {
		cols, vals := s.writeColumns(p, true)
		placeholders := make([]string, len(vals))
		for i := range vals {
			placeholders[i] = fmt.Sprintf("$%d", i+1)
		}
		query := fmt.Sprintf(
			"insert into positions (%s) values (%s) returning id",
			strings.Join(cols, ", "), strings.Join(placeholders, ", "),
		)

		var id string
		err := s.pool.QueryRow(ctx, query, vals...).Scan(&id)
		if err == nil {
			return id, nil
		}
		if retry, derr := s.dropMissing(err); derr != nil {
			return "", derr
		} else if retry {
			continue
		}
		return "", fmt.Errorf("insert position %s: %w", p.Symbol, err)
	}
}

// Update rewrites the mutable fields of an existing position.
func (s *Store) Update(ctx context.Context, p *model.Position) error {
	for {
		cols, vals := s.writeColumns(p, false)
		sets := make([]string, len(cols))
		for i, c := range cols {
			sets[i] = fmt.Sprintf("%s = $%d", c, i+2)
		}
		query := fmt.Sprintf("update positions set %s where id = $1", strings.Join(sets, ", "))

		tag, err := s.pool.Exec(ctx, query, append([]any{p.ID}, vals...)...)
		if err == nil {
			if tag.RowsAffected() == 0 {
				return ErrNotFound
			}
			return nil
		}
		if retry, derr := s.dropMissing(err); derr != nil {
			return derr
		} else if retry {
			continue
		}
		return fmt.Errorf("update position %s: %w", p.ID, err)
	}
}

// Delete removes a position row by id.
func (s *Store) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `delete from positions where id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete position %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAllForUser wipes every position the user has.
func (s *Store) DeleteAllForUser(ctx context.Context, userID string) error {
	if _, err := s.pool.Exec(ctx, `delete from positions where user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete positions for user: %w", err)
	}
	return nil
}

// IsDuplicate reports whether err is the uniqueness violation of the one
// open position per (user, symbol) constraint.
func IsDuplicate(err error) bool {
	return db.UniqueViolation(err, duplicateConstraint)
}

// writeColumns assembles the column list for a write against the currently
// negotiated schema. Value columns fall back to their legacy mirror when
// the canonical name is known-missing; insert-only columns (user_id,
// symbol) are skipped for updates.
func (s *Store) writeColumns(p *model.Position, insert bool) ([]string, []any) {
	var cols []string
	var vals []any
	add := func(col string, v any) {
		cols = append(cols, col)
		vals = append(vals, v)
	}

	if insert {
		add("user_id", p.UserID)
		add("symbol", p.Symbol)
	}
	if c, ok := s.caps.Pick("size", "quantity"); ok {
		add(c, p.Quantity)
	}
	if c, ok := s.caps.Pick("avg_entry", "entry_price"); ok {
		add(c, p.AvgEntry)
	}
	for _, opt := range []struct {
		col string
		val any
	}{
		{"side", string(p.Side)},
		{"leverage", p.Leverage},
		{"margin_required", p.MarginRequired},
		{"status", p.Status},
	} {
		if s.caps.Available(opt.col) {
			add(opt.col, opt.val)
		}
	}
	return cols, vals
}

// dropMissing inspects a write failure. For an undefined-column error it
// records the column as missing and reports whether a retry can still
// produce a valid write; required columns surface as ErrSchemaDrift.
func (s *Store) dropMissing(err error) (retry bool, fatal error) {
	col := db.MissingColumn(err)
	if col == "" {
		return false, nil
	}
	switch col {
	case "user_id", "symbol", "id":
		return false, fmt.Errorf("%w: %s", ErrSchemaDrift, col)
	case "size", "quantity", "avg_entry", "entry_price":
		s.caps.MarkMissing(col)
		if _, ok := s.caps.Pick(mirrorOf(col), col); !ok {
			return false, fmt.Errorf("%w: %s and its mirror", ErrSchemaDrift, col)
		}
		s.logger.Warnf("positions column %q missing, falling back to mirror", col)
		return true, nil
	case "side", "leverage", "margin_required", "status":
		s.caps.MarkMissing(col)
		s.logger.Warnf("positions column %q missing, dropped from writes", col)
		return true, nil
	default:
		return false, fmt.Errorf("%w: %s", ErrSchemaDrift, col)
	}
}

func mirrorOf(col string) string {
	switch col {
	case "size":
		return "quantity"
	case "quantity":
		return "size"
	case "avg_entry":
		return "entry_price"
	case "entry_price":
		return "avg_entry"
	default:
		return ""
	}
}
