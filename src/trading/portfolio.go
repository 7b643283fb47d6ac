package trading

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"papertrader/src/marketfeed"
	"papertrader/src/model"
)

// PortfolioSummary is the derived aggregate view over all open positions. It
// is recomputed on demand and never persisted.
type PortfolioSummary struct {
	TotalValue         decimal.Decimal `json:"total_value"`
	TotalInvested      decimal.Decimal `json:"total_invested"`
	TotalPnl           decimal.Decimal `json:"total_pnl"`
	TotalPnlPercentage decimal.Decimal `json:"total_pnl_percentage"`
	DayPnl             decimal.Decimal `json:"day_pnl"`
	TotalBrokerage     decimal.Decimal `json:"total_brokerage"`
}

// GetPositions returns the user's open positions marked at live feed prices,
// and persists the refreshed marks so stored rows stay close to the screen.
// Symbols without a live quote keep their last-seen price.
func (s *Service) GetPositions(ctx context.Context, userID uint) ([]model.Position, error) {
	positions, err := s.ledger.ListPositions(ctx, userID)
	if err != nil {
		return nil, storeErr(err)
	}

	for i := range positions {
		if err := s.refreshMark(ctx, &positions[i]); err != nil {
			return nil, err
		}
		if err := s.ledger.UpsertPosition(ctx, &positions[i]); err != nil {
			return nil, storeErr(err)
		}
	}

	return positions, nil
}

// Summarize aggregates all open positions against fresh feed prices. Pure
// read: repeated calls with unchanged prices and no intervening trades yield
// identical results.
func (s *Service) Summarize(ctx context.Context, userID uint) (*PortfolioSummary, error) {
	positions, err := s.ledger.ListPositions(ctx, userID)
	if err != nil {
		return nil, storeErr(err)
	}

	summary := &PortfolioSummary{
		TotalValue:         decimal.Zero,
		TotalInvested:      decimal.Zero,
		TotalPnl:           decimal.Zero,
		TotalPnlPercentage: decimal.Zero,
		DayPnl:             decimal.Zero,
		TotalBrokerage:     decimal.Zero,
	}

	marks := make(map[string]decimal.Decimal, len(positions))
	held := make(map[string]int64, len(positions))
	for i := range positions {
		if err := s.refreshMark(ctx, &positions[i]); err != nil {
			return nil, err
		}
		marks[positions[i].Symbol] = positions[i].CurrentPrice
		held[positions[i].Symbol] = positions[i].Quantity

		summary.TotalInvested = summary.TotalInvested.Add(positions[i].InvestedAmount)
		summary.TotalValue = summary.TotalValue.Add(positions[i].CurrentValue)
		summary.TotalPnl = summary.TotalPnl.Add(positions[i].Pnl)
	}

	if summary.TotalInvested.IsPositive() {
		summary.TotalPnlPercentage = summary.TotalPnl.
			Div(summary.TotalInvested).
			Mul(decimal.NewFromInt(100)).
			Round(2)
	}

	dayPnl, err := s.dayPnl(ctx, userID, marks, held)
	if err != nil {
		return nil, err
	}
	summary.DayPnl = dayPnl

	totalBrokerage, err := s.ledger.SumBrokerage(ctx, userID)
	if err != nil {
		return nil, storeErr(err)
	}
	summary.TotalBrokerage = totalBrokerage

	s.logger.WithFields(logrus.Fields{
		"user_id":   userID,
		"positions": len(positions),
		"total_pnl": summary.TotalPnl,
	}).Debug("Portfolio summarized")

	return summary, nil
}

// dayPnl estimates the P&L attributable to the current trading day from the
// trades executed since its start: gains locked in by today's sells, plus
// mark-to-market on today's buys that are still held.
func (s *Service) dayPnl(ctx context.Context, userID uint, marks map[string]decimal.Decimal, held map[string]int64) (decimal.Decimal, error) {
	since := s.hours.StartOfTradingDay(s.now())
	trades, err := s.ledger.ListTradesSince(ctx, userID, since)
	if err != nil {
		return decimal.Zero, storeErr(err)
	}

	type buyLot struct {
		quantity int64
		cost     decimal.Decimal
	}

	dayPnl := decimal.Zero
	buys := make(map[string]*buyLot)

	for i := range trades {
		trade := &trades[i]
		switch trade.Side {
		case model.TradeSideSell:
			dayPnl = dayPnl.Add(trade.RealizedPnl)
		case model.TradeSideBuy:
			lot, ok := buys[trade.Symbol]
			if !ok {
				lot = &buyLot{cost: decimal.Zero}
				buys[trade.Symbol] = lot
			}
			lot.quantity += trade.Quantity
			lot.cost = lot.cost.Add(trade.Price.Mul(decimal.NewFromInt(trade.Quantity)))
		}
	}

	for symbol, lot := range buys {
		openQty, ok := held[symbol]
		if !ok || lot.quantity == 0 {
			// Bought and fully sold today; the sell side already counted it.
			continue
		}
		quantity := lot.quantity
		if openQty < quantity {
			quantity = openQty
		}

		avgToday := lot.cost.Div(decimal.NewFromInt(lot.quantity))
		dayPnl = dayPnl.Add(marks[symbol].Sub(avgToday).Mul(decimal.NewFromInt(quantity)))
	}

	return dayPnl.Round(2), nil
}

// GetTradeHistory returns the user's most recent trades, newest first.
func (s *Service) GetTradeHistory(ctx context.Context, userID uint, limit int) ([]model.Trade, error) {
	if limit <= 0 {
		limit = 50
	}

	trades, err := s.ledger.ListTrades(ctx, userID, limit)
	if err != nil {
		return nil, storeErr(err)
	}
	return trades, nil
}

// GetSettings returns the user's simulation settings (defaults when unset).
func (s *Service) GetSettings(ctx context.Context, userID uint) (*model.UserSettings, error) {
	settings, err := s.ledger.GetSettings(ctx, userID)
	if err != nil {
		return nil, storeErr(err)
	}
	return settings, nil
}

// UpdateSettings upserts the user's simulation settings.
func (s *Service) UpdateSettings(ctx context.Context, settings *model.UserSettings) error {
	if err := s.ledger.SaveSettings(ctx, settings); err != nil {
		return storeErr(err)
	}
	return nil
}

// refreshMark re-marks one position at the live feed price. A symbol the feed
// does not cover keeps its last-seen price; a feed transport failure aborts
// the valuation so callers never see stale totals presented as current.
func (s *Service) refreshMark(ctx context.Context, position *model.Position) error {
	price, err := s.feed.GetPrice(ctx, position.Symbol)
	if err != nil {
		if !errors.Is(err, marketfeed.ErrUnknownSymbol) {
			s.logger.WithError(err).WithField("symbol", position.Symbol).
				Error("Market feed unavailable during valuation")
			return feedErr(err)
		}
		s.logger.WithError(err).WithField("symbol", position.Symbol).
			Debug("No quote for symbol, keeping last-seen price")
		price = position.CurrentPrice
	}
	revalue(position, price)
	return nil
}
