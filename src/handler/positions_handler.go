package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"papertrader/src/auth"
	"papertrader/src/model"
	"papertrader/src/trading"
)

type positionLister interface {
	GetPositions(ctx context.Context, userID uint) ([]model.Position, error)
}

type squareOffer interface {
	SquareOff(ctx context.Context, userID uint, symbol string) (*trading.TradeResult, error)
}

type portfolioSummarizer interface {
	Summarize(ctx context.Context, userID uint) (*trading.PortfolioSummary, error)
}

// PositionsHandler lists the authenticated user's open positions marked at
// live prices.
func PositionsHandler(svc positionLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		positions, err := svc.GetPositions(r.Context(), user.ID)
		if err != nil {
			writeTradeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, positions)
	}
}

// SquareOffHandler fully liquidates one open position.
func SquareOffHandler(svc squareOffer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		symbol := chi.URLParam(r, "symbol")
		if symbol == "" {
			http.Error(w, "symbol is required", http.StatusBadRequest)
			return
		}

		result, err := svc.SquareOff(r.Context(), user.ID, symbol)
		if err != nil {
			writeTradeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}

// PortfolioSummaryHandler returns the aggregate portfolio view.
func PortfolioSummaryHandler(svc portfolioSummarizer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		summary, err := svc.Summarize(r.Context(), user.ID)
		if err != nil {
			writeTradeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, summary)
	}
}
