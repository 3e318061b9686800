package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"cryptoworld/internal/auth"
	"cryptoworld/internal/httputil"
	"cryptoworld/internal/marketdata"
	"cryptoworld/internal/trading"
)

type RouterDeps struct {
	AuthHandler    *auth.Handler
	TradingHandler *trading.Handler
	MarketHandler  *marketdata.Handler
	AuthService    *auth.Service
	WSHandler      http.Handler
	HealthLive     http.HandlerFunc
	HealthReady    http.HandlerFunc
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()

	// CORS for the browser dashboard
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				origin = "*"
			}
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})
	r.Use(SecurityHeaders)

	r.Get("/health", d.HealthReady)
	r.Get("/health/live", d.HealthLive)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", d.AuthHandler.Register)
			r.Post("/login", d.AuthHandler.Login)
		})

		r.Get("/market/price", d.MarketHandler.Price)
		r.Get("/market/tickers", d.MarketHandler.Tickers)
		r.Get("/market/klines", d.MarketHandler.Klines)
		r.Get("/market/ws", d.WSHandler.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(WithAuth(d.AuthService))
			r.Get("/me", authed(d.AuthHandler.Me))
			r.Post("/orders", authed(d.TradingHandler.SubmitOrder))
			r.Get("/orders", authed(d.TradingHandler.History))
			r.Get("/positions", authed(d.TradingHandler.Positions))
			r.Post("/positions/{id}/close", authed(d.TradingHandler.ClosePosition))
			r.Get("/account/metrics", authed(d.TradingHandler.Metrics))
			r.Post("/account/reset", authed(d.TradingHandler.Reset))
		})
	})

	return r
}

// authed lifts a (w, r, userID) handler into a http.HandlerFunc.
func authed(h func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserID(r)
		if !ok {
			httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "unauthorized"})
			return
		}
		h(w, r, userID)
	}
}
