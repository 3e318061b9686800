// Package ledger appends and lists the immutable order history. One row is
// written per executed trade event; optional columns that a deployment's
// table lacks are negotiated away rather than failing the trade.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"cryptoworld/internal/db"
	"cryptoworld/internal/logger"
	"cryptoworld/internal/model"
	"cryptoworld/internal/types"
)

// ErrSchemaDrift is returned when the orders table lacks a column the
// write cannot do without.
var ErrSchemaDrift = errors.New("orders table schema is missing a required column")

type Store struct {
	pool   *pgxpool.Pool
	caps   *db.ColumnCaps
	logger logger.Logger
}

func NewStore(pool *pgxpool.Pool, log logger.Logger) *Store {
	return &Store{pool: pool, caps: db.NewColumnCaps(), logger: log}
}

// Insert appends one order row, negotiating optional columns away on
// undefined-column failures.
func (s *Store) Insert(ctx context.Context, o *model.Order) (string, error) {
	for {
		cols, vals := s.writeColumns(o)
		placeholders := make([]string, len(vals))
		for i := range vals {
			placeholders[i] = fmt.Sprintf("$%d", i+1)
		}
		query := fmt.Sprintf(
			"insert into orders (%s) values (%s) returning id",
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
		return "", fmt.Errorf("insert order %s: %w", o.Symbol, err)
	}
}

// ByUser lists the user's order history, newest first.
func (s *Store) ByUser(ctx context.Context, userID string, limit int) ([]model.Order, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.pool.Query(ctx,
		`select to_jsonb(o) from orders o where user_id = $1 order by created_at desc limit $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("fetch orders: %w", err)
	}
	defer rows.Close()

	var out []model.Order
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		o, err := decodeRow(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Store) writeColumns(o *model.Order) ([]string, []any) {
	var cols []string
	var vals []any
	add := func(col string, v any) {
		cols = append(cols, col)
		vals = append(vals, v)
	}

	add("user_id", o.UserID)
	add("symbol", o.Symbol)
	add("side", string(o.Side))
	add("quantity", o.Quantity)
	add("price", o.Price)
	add("status", string(o.Status))

	for _, opt := range []struct {
		col  string
		val  any
		keep bool
	}{
		{"total", o.Total, true},
		{"leverage", o.Leverage, o.Leverage > 0},
		{"type", string(o.Type), o.Type != ""},
		{"pnl", o.Pnl, o.Pnl != nil},
		{"created_at", o.CreatedAt, !o.CreatedAt.IsZero()},
	} {
		if opt.keep && s.caps.Available(opt.col) {
			add(opt.col, opt.val)
		}
	}
	return cols, vals
}

func (s *Store) dropMissing(err error) (retry bool, fatal error) {
	col := db.MissingColumn(err)
	if col == "" {
		return false, nil
	}
	switch col {
	case "total", "leverage", "type", "pnl", "created_at":
		s.caps.MarkMissing(col)
		s.logger.Warnf("orders column %q missing, dropped from writes", col)
		return true, nil
	default:
		return false, fmt.Errorf("%w: %s", ErrSchemaDrift, col)
	}
}

func decodeRow(raw []byte) (model.Order, error) {
	var row map[string]any
	if err := json.Unmarshal(raw, &row); err != nil {
		return model.Order{}, fmt.Errorf("decode order row: %w", err)
	}

	o := model.Order{
		ID:     str(row["id"]),
		UserID: str(row["user_id"]),
		Symbol: str(row["symbol"]),
	}
	side, err := model.NormalizeOrderSide(str(row["side"]))
	if err == nil {
		o.Side = side
	}
	o.Status = types.NormalizeOrderStatus(str(row["status"]))
	o.Type = types.OrderType(str(row["type"]))
	o.Quantity = num(row["quantity"])
	o.Price = num(row["price"])
	o.Total = num(row["total"])
	o.Leverage = num(row["leverage"])
	if v, ok := row["pnl"]; ok && v != nil {
		p := num(v)
		o.Pnl = &p
	}
	if ts := str(row["created_at"]); ts != "" {
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.999999"} {
			if t, err := time.Parse(layout, ts); err == nil {
				o.CreatedAt = t
				break
			}
		}
	}
	return o, nil
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func num(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		var f float64
		if _, err := fmt.Sscanf(t, "%g", &f); err == nil {
			return f
		}
	}
	return 0
}
