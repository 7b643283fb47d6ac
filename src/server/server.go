package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"

	"papertrader/src/auth"
	"papertrader/src/handler"
	"papertrader/src/repository"
	"papertrader/src/trading"
)

// NewRouter assembles the API surface: a public healthcheck plus the
// account-scoped trading routes behind the user-resolution middleware.
func NewRouter(svc *trading.Service, ledger repository.Ledger) *chi.Mux {
	r := chi.NewRouter()

	// Public routes
	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error("\"/healthcheck\" error")
		}
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(ledger))

		r.Post("/trades", handler.ExecuteTradeHandler(svc))
		r.Get("/trades", handler.TradeHistoryHandler(svc))
		r.Get("/positions", handler.PositionsHandler(svc))
		r.Post("/positions/{symbol}/square-off", handler.SquareOffHandler(svc))
		r.Get("/portfolio/summary", handler.PortfolioSummaryHandler(svc))
		r.Get("/settings", handler.GetSettingsHandler(svc))
		r.Put("/settings", handler.UpdateSettingsHandler(svc))
	})

	return r
}

// StartServer serves the router until SIGINT/SIGTERM, then shuts down
// gracefully.
func StartServer(port string, router http.Handler) {
	addr := ":" + port
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		logger.Infof("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server crashed")
		}
	}()

	// Shutdown on SIGINT or SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Shutdown error")
	}
}
