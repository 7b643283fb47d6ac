package trading

import (
	"github.com/shopspring/decimal"

	"papertrader/src/model"
)

// ApplyFill folds one fill into the weighted-average-cost model for a
// (user, symbol) holding. It is a pure computation: callers own atomicity of
// the read-modify-write around it.
//
// BUY with no existing position opens one at the execution price. BUY into an
// existing position merges via the weighted mean
//
//	newAvg = (qty*avg + fillQty*fillPrice) / (qty + fillQty)
//
// SELL reduces quantity and leaves the average price unchanged; the realized
// gain belongs to the trade record, not the position. A position whose
// quantity reaches zero is removed: the result is (nil, nil).
//
// A SELL with no position or exceeding the held quantity must be rejected by
// the execution engine before this is invoked; it is still guarded here so a
// negative quantity can never be produced.
func ApplyFill(existing *model.Position, side string, quantity int64, execPrice, currentPrice decimal.Decimal) (*model.Position, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	qty := decimal.NewFromInt(quantity)

	switch side {
	case model.TradeSideBuy:
		if existing == nil {
			position := &model.Position{
				Quantity: quantity,
				AvgPrice: execPrice.Round(2),
			}
			revalue(position, currentPrice)
			return position, nil
		}

		heldQty := decimal.NewFromInt(existing.Quantity)
		totalCost := heldQty.Mul(existing.AvgPrice).Add(qty.Mul(execPrice))
		newQty := existing.Quantity + quantity

		position := clone(existing)
		position.Quantity = newQty
		position.AvgPrice = totalCost.Div(decimal.NewFromInt(newQty)).Round(2)
		revalue(position, currentPrice)
		return position, nil

	case model.TradeSideSell:
		if existing == nil || existing.Quantity < quantity {
			return nil, ErrInvalidState
		}

		newQty := existing.Quantity - quantity
		if newQty == 0 {
			return nil, nil
		}

		position := clone(existing)
		position.Quantity = newQty
		revalue(position, currentPrice)
		return position, nil

	default:
		return nil, &TradeError{Code: CodeInvalidState, Message: "Unknown trade side " + side}
	}
}

// RealizedPnl is the gain locked in when quantity units are sold at execPrice
// against a position carried at avgPrice.
func RealizedPnl(avgPrice, execPrice decimal.Decimal, quantity int64) decimal.Decimal {
	return execPrice.Sub(avgPrice).Mul(decimal.NewFromInt(quantity)).Round(2)
}

// revalue refreshes the mark-dependent figures on a surviving position.
func revalue(position *model.Position, currentPrice decimal.Decimal) {
	qty := decimal.NewFromInt(position.Quantity)

	position.CurrentPrice = currentPrice.Round(2)
	position.Pnl = currentPrice.Sub(position.AvgPrice).Mul(qty).Round(2)
	if position.AvgPrice.IsPositive() {
		position.PnlPercentage = currentPrice.Sub(position.AvgPrice).
			Div(position.AvgPrice).
			Mul(decimal.NewFromInt(100)).
			Round(2)
	} else {
		position.PnlPercentage = decimal.Zero
	}
	position.InvestedAmount = position.AvgPrice.Mul(qty).Round(2)
	position.CurrentValue = currentPrice.Mul(qty).Round(2)
}

func clone(position *model.Position) *model.Position {
	copied := *position
	return &copied
}
