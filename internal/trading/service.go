// Package trading orchestrates order execution: pricing, margin admission,
// position reconciliation, persistence, and the ledger write, with the
// recovery paths for racing inserts and partial failures.
package trading

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"cryptoworld/internal/logger"
	"cryptoworld/internal/margin"
	"cryptoworld/internal/marketdata"
	"cryptoworld/internal/model"
	"cryptoworld/internal/pnl"
	"cryptoworld/internal/positions"
	"cryptoworld/internal/reconcile"
	"cryptoworld/internal/types"
)

type PositionStore interface {
	OpenByUser(ctx context.Context, userID string) ([]model.Position, error)
	OpenBySymbol(ctx context.Context, userID, symbol string) (*model.Position, error)
	ByID(ctx context.Context, userID, id string) (*model.Position, error)
	Insert(ctx context.Context, p *model.Position) (string, error)
	Update(ctx context.Context, p *model.Position) error
	Delete(ctx context.Context, id string) error
	DeleteAllForUser(ctx context.Context, userID string) error
}

type LedgerStore interface {
	Insert(ctx context.Context, o *model.Order) (string, error)
	ByUser(ctx context.Context, userID string, limit int) ([]model.Order, error)
}

type BalanceStore interface {
	Get(ctx context.Context, userID string) (decimal.Decimal, error)
	Set(ctx context.Context, userID string, amount decimal.Decimal) error
	Reset(ctx context.Context, userID string) error
}

type PriceSource interface {
	Price(ctx context.Context, symbol string) (float64, error)
	Prices(ctx context.Context, symbols []string) (map[string]float64, error)
}

type Service struct {
	positions PositionStore
	ledger    LedgerStore
	balance   BalanceStore
	prices    PriceSource
	quotes    *marketdata.Quotes
	watch     *marketdata.WatchList
	logger    logger.Logger
}

func NewService(
	pos PositionStore,
	led LedgerStore,
	bal BalanceStore,
	prices PriceSource,
	quotes *marketdata.Quotes,
	watch *marketdata.WatchList,
	log logger.Logger,
) *Service {
	return &Service{
		positions: pos,
		ledger:    led,
		balance:   bal,
		prices:    prices,
		quotes:    quotes,
		watch:     watch,
		logger:    log,
	}
}

// OrderRequest is a user-submitted market order.
type OrderRequest struct {
	Symbol   string  `json:"symbol"`
	Side     string  `json:"side"`
	Quantity float64 `json:"quantity"`
	Leverage float64 `json:"leverage"`
}

// OrderResult reports what the order did. Warnings carry the non-fatal
// follow-up failures (history row, balance update) that do not undo the
// executed trade.
type OrderResult struct {
	Order       model.Order         `json:"order"`
	Mode        types.ReconcileMode `json:"mode"`
	Position    *model.Position     `json:"position,omitempty"`
	RealizedPnl float64             `json:"realized_pnl"`
	Warnings    []string            `json:"warnings,omitempty"`
}

// SubmitOrder executes one market order end to end.
func (s *Service) SubmitOrder(ctx context.Context, userID string, req OrderRequest) (*OrderResult, error) {
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		return nil, fmt.Errorf("%w: symbol is required", reconcile.ErrInvalidInput)
	}
	side, err := model.NormalizeOrderSide(req.Side)
	if err != nil {
		return nil, err
	}
	leverage := req.Leverage
	if leverage <= 0 {
		leverage = model.DefaultLeverage
	}

	price, err := s.prices.Price(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrPriceUnavailable, symbol, err)
	}

	existing, err := s.openPosition(ctx, userID, symbol)
	if err != nil {
		return nil, err
	}

	intent := reconcile.Intent{
		Symbol:   symbol,
		Side:     side,
		Quantity: req.Quantity,
		Price:    price,
		Leverage: leverage,
	}

	if side == types.OrderSideBuy {
		if err := s.admitBuy(ctx, userID, intent); err != nil {
			return nil, err
		}
	}

	outcome, err := reconcile.Reconcile(existing, intent)
	if err != nil {
		return nil, err
	}

	insertedID, err := s.applyOutcome(ctx, userID, existing, &outcome, intent)
	if err != nil {
		return nil, err
	}
	result := &OrderResult{
		Mode:        outcome.Mode,
		Position:    outcome.Position,
		RealizedPnl: outcome.RealizedPnl,
	}

	order := s.buildOrder(userID, side, intent, outcome)
	if _, lerr := s.ledger.Insert(ctx, &order); lerr != nil {
		if outcome.Mode == types.ReconcileInsert {
			// A brand new position without its opening history row must
			// not survive; roll the insert back and fail the order.
			if derr := s.positions.Delete(ctx, insertedID); derr != nil {
				s.logger.Errorf("rollback of position %s failed: %v", insertedID, derr)
			}
			return nil, &LedgerWriteError{Symbol: symbol, Err: lerr}
		}
		s.logger.Warnf("history write for %s failed after %s: %v", symbol, outcome.Mode, lerr)
		result.Warnings = append(result.Warnings, "trade executed but could not be recorded in history")
	}
	result.Order = order

	if outcome.RealizedPnl != 0 {
		if err := s.applyRealized(ctx, userID, outcome.RealizedPnl); err != nil {
			s.logger.Warnf("balance update for %s failed: %v", userID, err)
			result.Warnings = append(result.Warnings, "trade executed but balance update failed")
		}
	}

	s.watch.Add(symbol)
	return result, nil
}

// openPosition fetches the user's open position for symbol, mapping the
// store's not-found to nil.
func (s *Service) openPosition(ctx context.Context, userID, symbol string) (*model.Position, error) {
	p, err := s.positions.OpenBySymbol(ctx, userID, symbol)
	if errors.Is(err, positions.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) admitBuy(ctx context.Context, userID string, intent reconcile.Intent) error {
	required, err := margin.Required(intent.Quantity, intent.Price, intent.Leverage)
	if err != nil {
		return err
	}
	snapshot, err := s.accountSnapshot(ctx, userID)
	if err != nil {
		return err
	}
	return snapshot.AdmitBuy(required)
}

func (s *Service) accountSnapshot(ctx context.Context, userID string) (margin.Snapshot, error) {
	bal, err := s.balance.Get(ctx, userID)
	if err != nil {
		return margin.Snapshot{}, err
	}
	open, err := s.positions.OpenByUser(ctx, userID)
	if err != nil {
		return margin.Snapshot{}, err
	}
	return margin.NewSnapshot(bal.InexactFloat64(), open), nil
}

// applyOutcome persists the reconciliation outcome. For an insert that
// loses the unique-constraint race it re-reads the winner's row and merges
// into it once; a second collision is surfaced as unresolved.
func (s *Service) applyOutcome(ctx context.Context, userID string, existing *model.Position, outcome *reconcile.Outcome, intent reconcile.Intent) (string, error) {
	switch outcome.Mode {
	case types.ReconcileInsert:
		outcome.Position.UserID = userID
		id, err := s.positions.Insert(ctx, outcome.Position)
		if err == nil {
			outcome.Position.ID = id
			return id, nil
		}
		if !positions.IsDuplicate(err) {
			return "", err
		}
		s.logger.Warnf("insert for %s lost a duplicate race, merging into the winner", intent.Symbol)
		winner, ferr := s.openPosition(ctx, userID, intent.Symbol)
		if ferr != nil || winner == nil {
			return "", fmt.Errorf("%w: %s", ErrDuplicatePositionUnresolved, intent.Symbol)
		}
		merged, rerr := reconcile.Reconcile(winner, intent)
		if rerr != nil {
			return "", rerr
		}
		if merged.Mode == types.ReconcileInsert {
			return "", fmt.Errorf("%w: %s", ErrDuplicatePositionUnresolved, intent.Symbol)
		}
		*outcome = merged
		return s.applyOutcome(ctx, userID, winner, outcome, intent)

	case types.ReconcileUpdate, types.ReconcileReduce:
		return "", s.positions.Update(ctx, outcome.Position)

	case types.ReconcileDelete:
		return "", s.positions.Delete(ctx, existing.ID)

	default:
		return "", fmt.Errorf("unknown reconcile mode %q", outcome.Mode)
	}
}

func (s *Service) buildOrder(userID string, side types.OrderSide, intent reconcile.Intent, outcome reconcile.Outcome) model.Order {
	order := model.Order{
		UserID:    userID,
		Symbol:    intent.Symbol,
		Side:      side,
		Quantity:  intent.Quantity,
		Price:     intent.Price,
		Leverage:  intent.Leverage,
		Type:      types.OrderTypeMarket,
		Status:    types.OrderStatusFilled,
		Total:     intent.Quantity * intent.Price,
		CreatedAt: time.Now().UTC(),
	}
	if outcome.Mode == types.ReconcileReduce || outcome.Mode == types.ReconcileDelete {
		realized := outcome.RealizedPnl
		order.Pnl = &realized
	}
	return order
}

func (s *Service) applyRealized(ctx context.Context, userID string, realized float64) error {
	bal, err := s.balance.Get(ctx, userID)
	if err != nil {
		return err
	}
	return s.balance.Set(ctx, userID, bal.Add(decimal.NewFromFloat(realized)))
}

// ClosePosition fully closes one position at the current market price.
func (s *Service) ClosePosition(ctx context.Context, userID, positionID string) (*OrderResult, error) {
	p, err := s.positions.ByID(ctx, userID, positionID)
	if errors.Is(err, positions.ErrNotFound) {
		return nil, ErrPositionNotFound
	}
	if err != nil {
		return nil, err
	}
	if !p.IsOpen() {
		return nil, ErrPositionNotFound
	}
	return s.SubmitOrder(ctx, userID, OrderRequest{
		Symbol:   p.Symbol,
		Side:     string(types.OrderSideSell),
		Quantity: p.Quantity,
		Leverage: p.Leverage,
	})
}

// PositionView is an open position decorated with its mark price and
// unrealized PnL for display.
type PositionView struct {
	Position   model.Position `json:"position"`
	MarkPrice  float64        `json:"mark_price"`
	Unrealized pnl.Result     `json:"unrealized"`
	PriceStale bool           `json:"price_stale"`
}

// OpenPositions lists the user's open positions with live marks. When the
// live fetch fails the last-known cached quote is used and the row is
// flagged stale; a symbol with no quote at all shows zero PnL.
func (s *Service) OpenPositions(ctx context.Context, userID string) ([]PositionView, error) {
	open, err := s.positions.OpenByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(open) == 0 {
		return []PositionView{}, nil
	}

	symbols := make([]string, 0, len(open))
	for _, p := range open {
		symbols = append(symbols, p.Symbol)
	}
	live, err := s.prices.Prices(ctx, symbols)
	if err != nil {
		s.logger.Warnf("live prices unavailable, serving cached quotes: %v", err)
		live = nil
	}

	out := make([]PositionView, 0, len(open))
	for _, p := range open {
		view := PositionView{Position: p}
		if price, ok := live[p.Symbol]; ok {
			view.MarkPrice = price
		} else if quote, ok := s.quotes.Get(p.Symbol); ok {
			view.MarkPrice = quote.Price
			view.PriceStale = true
		}
		if view.MarkPrice > 0 {
			view.Unrealized = pnl.Calculate(p.Side, p.AvgEntry, view.MarkPrice, p.Quantity)
		}
		out = append(out, view)
	}
	return out, nil
}

// History lists the user's order history, newest first.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]model.Order, error) {
	return s.ledger.ByUser(ctx, userID, limit)
}

// AccountMetrics is the dashboard's account header.
type AccountMetrics struct {
	Balance       float64 `json:"balance"`
	Equity        float64 `json:"equity"`
	UsedMargin    float64 `json:"used_margin"`
	FreeMargin    float64 `json:"free_margin"`
	UnrealizedPnl float64 `json:"unrealized_pnl"`
	OpenPositions int     `json:"open_positions"`
}

// Metrics derives the account header numbers. Unrealized PnL is shown but
// never feeds equity.
func (s *Service) Metrics(ctx context.Context, userID string) (AccountMetrics, error) {
	snapshot, err := s.accountSnapshot(ctx, userID)
	if err != nil {
		return AccountMetrics{}, err
	}
	views, err := s.OpenPositions(ctx, userID)
	if err != nil {
		return AccountMetrics{}, err
	}
	var unrealized float64
	for _, v := range views {
		unrealized += v.Unrealized.Abs
	}
	return AccountMetrics{
		Balance:       snapshot.CashBalance,
		Equity:        snapshot.Equity,
		UsedMargin:    snapshot.UsedMargin,
		FreeMargin:    snapshot.FreeMargin,
		UnrealizedPnl: unrealized,
		OpenPositions: len(views),
	}, nil
}

// ResetAccount wipes every position and restores the demo balance.
func (s *Service) ResetAccount(ctx context.Context, userID string) error {
	if err := s.positions.DeleteAllForUser(ctx, userID); err != nil {
		return err
	}
	return s.balance.Reset(ctx, userID)
}
