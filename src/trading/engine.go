// Package trading implements the core of the paper-trading simulator: order
// validation and execution, weighted-average-cost position accounting,
// portfolio valuation and square-off.
package trading

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"papertrader/src/marketfeed"
	"papertrader/src/model"
	"papertrader/src/repository"
)

// FlatBrokerage is the fixed platform fee per order (₹20), charged regardless
// of quantity or notional when brokerage simulation is enabled.
var FlatBrokerage = decimal.NewFromInt(20)

// Service validates and executes orders against the ledger and market feed,
// and serves the read-side portfolio operations. Both collaborators are
// injected; tests substitute stubs and a fixed clock.
type Service struct {
	ledger repository.Ledger
	feed   marketfeed.Feed
	hours  marketfeed.Hours
	logger *logrus.Entry
	now    func() time.Time

	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

func NewService(ledger repository.Ledger, feed marketfeed.Feed, logger *logrus.Entry) *Service {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}

	return &Service{
		ledger: ledger,
		feed:   feed,
		hours:  marketfeed.NewHours(),
		logger: logger,
		now:    time.Now,
		locks:  make(map[uint]*sync.Mutex),
	}
}

// WithClock overrides the service clock, used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// TradeRequest describes one buy/sell order to execute.
type TradeRequest struct {
	UserID           uint            `json:"user_id"`
	Symbol           string          `json:"symbol"`
	Side             string          `json:"side"`
	Quantity         int64           `json:"quantity"`
	Price            decimal.Decimal `json:"price"`
	BrokerageEnabled bool            `json:"brokerage_enabled"`
}

// TradeResult reports a successfully executed order.
type TradeResult struct {
	Success     bool            `json:"success"`
	Message     string          `json:"message"`
	TradeID     uint            `json:"trade_id"`
	Reference   string          `json:"reference"`
	NewBalance  decimal.Decimal `json:"new_balance"`
	Brokerage   decimal.Decimal `json:"brokerage"`
	RealizedPnl decimal.Decimal `json:"realized_pnl"`
}

// userLock serializes trade execution per user. Order execution is a
// read-modify-write across the balance and one position row; concurrent
// requests for the same user must not interleave between validation and
// commit.
func (s *Service) userLock(userID uint) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[userID] = lock
	}
	return lock
}

// ExecuteTrade validates and executes exactly one order. Validation failures
// return a typed *TradeError and touch nothing; once validation passes the
// balance update, trade insert and position upsert commit in one transaction
// or roll back together.
func (s *Service) ExecuteTrade(ctx context.Context, req TradeRequest) (*TradeResult, error) {
	lock := s.userLock(req.UserID)
	lock.Lock()
	defer lock.Unlock()

	side := strings.ToUpper(req.Side)
	log := s.logger.WithFields(logrus.Fields{
		"user_id": req.UserID,
		"symbol":  req.Symbol,
		"side":    side,
		"qty":     req.Quantity,
	})

	if side != model.TradeSideBuy && side != model.TradeSideSell {
		return nil, &TradeError{Code: CodeInvalidState, Message: fmt.Sprintf("Unknown trade side %q", req.Side)}
	}
	if req.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if !req.Price.IsPositive() {
		return nil, ErrInvalidPrice
	}
	if !s.feed.IsOpen(s.now()) {
		log.Info("Order rejected, market closed")
		return nil, ErrMarketClosed
	}

	brokerage := decimal.Zero
	if req.BrokerageEnabled {
		brokerage = FlatBrokerage
	}
	grossAmount := req.Price.Mul(decimal.NewFromInt(req.Quantity)).Round(2)

	balance, err := s.ledger.GetBalance(ctx, req.UserID)
	if err != nil {
		return nil, storeErr(err)
	}

	var position *model.Position
	switch side {
	case model.TradeSideBuy:
		totalDebit := grossAmount.Add(brokerage)
		if totalDebit.GreaterThan(balance) {
			log.Info("Order rejected, insufficient balance")
			return nil, ErrInsufficientBalance
		}
		position, err = s.ledger.GetPosition(ctx, req.UserID, req.Symbol)
		if err != nil {
			return nil, storeErr(err)
		}

	case model.TradeSideSell:
		position, err = s.ledger.GetPosition(ctx, req.UserID, req.Symbol)
		if err != nil {
			return nil, storeErr(err)
		}
		if position == nil || position.Quantity < req.Quantity {
			log.Info("Order rejected, insufficient holdings")
			return nil, ErrInsufficientHoldings
		}
	}

	// Mark the surviving position at the live price; fall back to the
	// execution price when the feed has no quote.
	currentPrice, err := s.feed.GetPrice(ctx, req.Symbol)
	if err != nil {
		log.WithError(err).Warn("No live quote, marking position at execution price")
		currentPrice = req.Price
	}

	executedAt := s.now()
	trade := &model.Trade{
		Reference:   uuid.NewString(),
		UserID:      req.UserID,
		Symbol:      req.Symbol,
		Side:        side,
		Quantity:    req.Quantity,
		Price:       req.Price.Round(2),
		Brokerage:   brokerage,
		GrossAmount: grossAmount,
		Status:      model.TradeStatusOpen,
		CreatedAt:   executedAt,
	}

	var newBalance decimal.Decimal
	if side == model.TradeSideBuy {
		trade.NetAmount = grossAmount.Add(brokerage)
		newBalance = balance.Sub(trade.NetAmount).Round(2)
	} else {
		trade.NetAmount = grossAmount.Sub(brokerage)
		newBalance = balance.Add(trade.NetAmount).Round(2)
		// A sell locks in its gain immediately; square-off stamps the same
		// figure onto the remaining open buys when the position closes.
		trade.RealizedPnl = RealizedPnl(position.AvgPrice, req.Price, req.Quantity)
	}

	err = s.ledger.Transaction(ctx, func(tx repository.Ledger) error {
		if err := tx.SetBalance(ctx, req.UserID, newBalance); err != nil {
			return err
		}
		if err := tx.InsertTrade(ctx, trade); err != nil {
			return err
		}

		updated, err := ApplyFill(position, side, req.Quantity, req.Price, currentPrice)
		if err != nil {
			return err
		}
		if updated == nil {
			return tx.DeletePosition(ctx, req.UserID, req.Symbol)
		}
		updated.UserID = req.UserID
		updated.Symbol = req.Symbol
		updated.UpdatedAt = executedAt
		return tx.UpsertPosition(ctx, updated)
	})
	if err != nil {
		var tradeErr *TradeError
		if errors.As(err, &tradeErr) {
			log.WithError(err).Error("Trade execution aborted")
			return nil, tradeErr
		}
		log.WithError(err).Error("Trade execution failed, transaction rolled back")
		return nil, storeErr(err)
	}

	log.WithFields(logrus.Fields{
		"trade_id":    trade.ID,
		"new_balance": newBalance,
	}).Info("Order executed")

	return &TradeResult{
		Success:     true,
		Message:     fmt.Sprintf("%s order executed successfully", side),
		TradeID:     trade.ID,
		Reference:   trade.Reference,
		NewBalance:  newBalance,
		Brokerage:   brokerage,
		RealizedPnl: trade.RealizedPnl,
	}, nil
}
