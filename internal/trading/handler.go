package trading

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"cryptoworld/internal/httputil"
	"cryptoworld/internal/margin"
	"cryptoworld/internal/model"
	"cryptoworld/internal/positions"
	"cryptoworld/internal/reconcile"
)

type Handler struct {
	svc          *Service
	resetEnabled bool
}

func NewHandler(svc *Service, resetEnabled bool) *Handler {
	return &Handler{svc: svc, resetEnabled: resetEnabled}
}

func (h *Handler) SubmitOrder(w http.ResponseWriter, r *http.Request, userID string) {
	var req OrderRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	res, err := h.svc.SubmitOrder(r.Context(), userID, req)
	if err != nil {
		writeTradeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, res)
}

func (h *Handler) Positions(w http.ResponseWriter, r *http.Request, userID string) {
	views, err := h.svc.OpenPositions(r.Context(), userID)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: "could not load positions"})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, views)
}

func (h *Handler) ClosePosition(w http.ResponseWriter, r *http.Request, userID string) {
	id := chi.URLParam(r, "id")
	if id == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "position id is required"})
		return
	}
	res, err := h.svc.ClosePosition(r.Context(), userID, id)
	if err != nil {
		writeTradeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request, userID string) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	orders, err := h.svc.History(r.Context(), userID, limit)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: "could not load history"})
		return
	}
	if orders == nil {
		orders = []model.Order{}
	}
	httputil.WriteJSON(w, http.StatusOK, orders)
}

func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request, userID string) {
	metrics, err := h.svc.Metrics(r.Context(), userID)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: "could not load account metrics"})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, metrics)
}

func (h *Handler) Reset(w http.ResponseWriter, r *http.Request, userID string) {
	if !h.resetEnabled {
		httputil.WriteJSON(w, http.StatusForbidden, httputil.ErrorResponse{Error: "account reset is disabled"})
		return
	}
	if err := h.svc.ResetAccount(r.Context(), userID); err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: "account reset failed"})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// writeTradeError maps the service's typed failures to HTTP statuses with
// user-facing messages.
func writeTradeError(w http.ResponseWriter, err error) {
	var ledgerErr *LedgerWriteError
	switch {
	case errors.Is(err, reconcile.ErrInvalidInput),
		errors.Is(err, model.ErrInvalidSide),
		errors.Is(err, margin.ErrInvalidMargin):
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
	case errors.Is(err, margin.ErrInsufficientMargin),
		errors.Is(err, reconcile.ErrSellExceedsPosition),
		errors.Is(err, reconcile.ErrNoPositionToClose),
		errors.Is(err, reconcile.ErrLegacyShortPosition),
		errors.Is(err, reconcile.ErrInvalidEntryPrice):
		httputil.WriteJSON(w, http.StatusUnprocessableEntity, httputil.ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrPositionNotFound):
		httputil.WriteJSON(w, http.StatusNotFound, httputil.ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrPriceUnavailable):
		httputil.WriteJSON(w, http.StatusServiceUnavailable, httputil.ErrorResponse{Error: "live price unavailable, try again"})
	case errors.Is(err, ErrDuplicatePositionUnresolved):
		httputil.WriteJSON(w, http.StatusConflict, httputil.ErrorResponse{Error: err.Error()})
	case errors.As(err, &ledgerErr):
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: ledgerErr.Error()})
	case errors.Is(err, positions.ErrSchemaDrift):
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: "storage schema mismatch, contact support"})
	default:
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: "order failed"})
	}
}
