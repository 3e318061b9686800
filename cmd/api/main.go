package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"cryptoworld/internal/auth"
	"cryptoworld/internal/balance"
	"cryptoworld/internal/config"
	"cryptoworld/internal/db"
	"cryptoworld/internal/health"
	"cryptoworld/internal/httpserver"
	"cryptoworld/internal/ledger"
	"cryptoworld/internal/logger"
	"cryptoworld/internal/marketdata"
	"cryptoworld/internal/positions"
	"cryptoworld/internal/trading"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	zl, syncLogs, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer syncLogs()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DBDSN)
	if err != nil {
		zl.Fatalf("db: %v", err)
	}
	defer pool.Close()

	startedAt := time.Now().UTC()

	balanceStore := balance.NewStore(pool)
	positionStore := positions.NewStore(pool, zl.With("component", "positions"))
	ledgerStore := ledger.NewStore(pool, zl.With("component", "ledger"))

	marketClient := marketdata.NewClient(cfg.BinanceBaseURL, zl.With("component", "marketdata"))
	defer marketClient.Close()
	quotes := marketdata.NewQuotes()
	watch := marketdata.NewWatchList(marketdata.DefaultWatch...)
	bus := marketdata.NewBus()
	poller := marketdata.NewPoller(marketClient, bus, quotes, watch, cfg.PricePollEvery, zl.With("component", "poller"))
	go poller.Run(ctx)

	authSvc := auth.NewService(pool, cfg.JWTIssuer, []byte(cfg.JWTSecret), cfg.JWTTTL, balanceStore)
	tradingSvc := trading.NewService(
		positionStore, ledgerStore, balanceStore,
		marketClient, quotes, watch,
		zl.With("component", "trading"),
	)

	healthHandler := health.NewHandler(pool, startedAt)
	router := httpserver.NewRouter(httpserver.RouterDeps{
		AuthHandler:    auth.NewHandler(authSvc),
		TradingHandler: trading.NewHandler(tradingSvc, cfg.ResetEnabled),
		MarketHandler:  marketdata.NewHandler(marketClient, quotes),
		AuthService:    authSvc,
		WSHandler:      httpserver.NewWSHandler(bus, watch, authSvc, cfg.WebSocketOrigin),
		HealthLive:     healthHandler.Live,
		HealthReady:    healthHandler.Ready,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	zl.Infof("server listening on %s", cfg.HTTPAddr)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		zl.Fatalf("server: %v", err)
	}
	zl.Infof("server stopped")
}
