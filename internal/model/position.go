package model

import (
	"math"
	"strconv"
	"strings"
	"time"

	"cryptoworld/internal/types"
)

// DefaultLeverage is assumed for rows written before the leverage column
// existed.
const DefaultLeverage = 30

// Position is one open exposure per (user, symbol). Rows older than the
// current schema may carry entry_price instead of avg_entry and quantity
// instead of size; FromRow folds both shapes into this struct.
type Position struct {
	ID             string
	UserID         string
	Symbol         string
	Side           types.PositionSide
	Quantity       float64
	AvgEntry       float64
	Leverage       float64
	MarginRequired float64
	Status         string
	OpenedAt       time.Time
	UpdatedAt      time.Time
}

// IsOpen reports whether the row counts as open. Legacy rows without a
// status column are treated as open.
func (p Position) IsOpen() bool {
	return p.Status == "" || p.Status == "open"
}

// FromRow builds a Position from a raw store row, applying the column
// fallbacks accumulated across schema migrations in one place.
func FromRow(row map[string]any) Position {
	p := Position{
		ID:     asString(row["id"]),
		UserID: asString(row["user_id"]),
		Symbol: asString(row["symbol"]),
		Status: asString(row["status"]),
	}

	p.Side = NormalizePositionSide(asString(row["side"]))

	p.AvgEntry = firstFinite(row["avg_entry"], row["entry_price"])
	p.Quantity = firstFinite(row["size"], row["quantity"])

	lev := asFloat(row["leverage"])
	if !math.IsNaN(lev) && lev > 0 {
		p.Leverage = lev
	} else {
		p.Leverage = DefaultLeverage
	}

	margin := asFloat(row["margin_required"])
	if !math.IsNaN(margin) && margin > 0 {
		p.MarginRequired = margin
	}

	p.OpenedAt = asTime(row["opened_at"])
	p.UpdatedAt = asTime(row["updated_at"])
	return p
}

// NormalizePositionSide maps SELL/SHORT to short and everything else to
// long, matching how legacy rows with a missing side are displayed.
func NormalizePositionSide(raw string) types.PositionSide {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "SELL", "SHORT":
		return types.PositionSideShort
	default:
		return types.PositionSideLong
	}
}

func firstFinite(values ...any) float64 {
	for _, v := range values {
		f := asFloat(v)
		if !math.IsNaN(f) {
			return f
		}
	}
	return math.NaN()
}

func asFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int64:
		return float64(t)
	case int:
		return float64(t)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asTime(v any) time.Time {
	s, ok := v.(string)
	if !ok {
		if t, ok := v.(time.Time); ok {
			return t
		}
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.999999"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
