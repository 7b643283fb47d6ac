package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"papertrader/src/auth"
	"papertrader/src/model"
	"papertrader/src/trading"
)

type tradeExecutor interface {
	ExecuteTrade(ctx context.Context, req trading.TradeRequest) (*trading.TradeResult, error)
	GetSettings(ctx context.Context, userID uint) (*model.UserSettings, error)
}

type tradeLister interface {
	GetTradeHistory(ctx context.Context, userID uint, limit int) ([]model.Trade, error)
}

type tradeRequestBody struct {
	Symbol   string          `json:"symbol"`
	Side     string          `json:"side"`
	Quantity int64           `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

type failureResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ExecuteTradeHandler places one buy/sell order for the authenticated user.
// Brokerage simulation follows the user's settings.
func ExecuteTradeHandler(svc tradeExecutor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		var body tradeRequestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if body.Symbol == "" {
			http.Error(w, "symbol is required", http.StatusBadRequest)
			return
		}

		settings, err := svc.GetSettings(r.Context(), user.ID)
		if err != nil {
			writeTradeError(w, err)
			return
		}

		result, err := svc.ExecuteTrade(r.Context(), trading.TradeRequest{
			UserID:           user.ID,
			Symbol:           body.Symbol,
			Side:             body.Side,
			Quantity:         body.Quantity,
			Price:            body.Price,
			BrokerageEnabled: settings.BrokerageSimulation,
		})
		if err != nil {
			writeTradeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}

// TradeHistoryHandler lists the authenticated user's trades, newest first.
func TradeHistoryHandler(svc tradeLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok || user == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		limit := 50
		if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
			parsed, err := strconv.Atoi(limitParam)
			if err != nil || parsed <= 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = parsed
		}

		trades, err := svc.GetTradeHistory(r.Context(), user.ID, limit)
		if err != nil {
			writeTradeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, trades)
	}
}

// writeTradeError maps a typed trade failure to a specific status code and a
// distinguishable message; callers never see a generic error for an expected
// validation failure.
func writeTradeError(w http.ResponseWriter, err error) {
	var tradeErr *trading.TradeError
	if !errors.As(err, &tradeErr) {
		logger.WithError(err).Error("Unexpected handler error")
		writeJSON(w, http.StatusInternalServerError, failureResponse{Message: "internal error"})
		return
	}

	status := http.StatusUnprocessableEntity
	switch tradeErr.Code {
	case trading.CodeInvalidQuantity, trading.CodeInvalidPrice:
		status = http.StatusBadRequest
	case trading.CodePositionNotFound:
		status = http.StatusNotFound
	case trading.CodeStoreUnavailable, trading.CodeFeedUnavailable:
		status = http.StatusServiceUnavailable
	case trading.CodeInvalidState:
		status = http.StatusInternalServerError
	}

	writeJSON(w, status, failureResponse{Message: tradeErr.Message})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.WithError(err).Error("Failed to encode response")
	}
}
