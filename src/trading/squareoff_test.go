package trading

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"papertrader/src/model"
)

func TestSquareOffLiquidatesAndClosesTrades(t *testing.T) {
	ledger := newStubLedger()
	ledger.balances[1] = dec("63455.00")
	ledger.positions[posKey(1, "RELIANCE")] = &model.Position{
		ID: 1, UserID: 1, Symbol: "RELIANCE",
		Quantity: 15, AvgPrice: dec("2433.67"), CurrentPrice: dec("2433.67"),
	}
	today := sessionClock()()
	ledger.trades = append(ledger.trades,
		model.Trade{UserID: 1, Symbol: "RELIANCE", Side: model.TradeSideBuy,
			Quantity: 10, Price: dec("2400.50"), Status: model.TradeStatusOpen, CreatedAt: today.AddDate(0, 0, -2)},
		model.Trade{UserID: 1, Symbol: "RELIANCE", Side: model.TradeSideBuy,
			Quantity: 5, Price: dec("2500.00"), Status: model.TradeStatusOpen, CreatedAt: today.AddDate(0, 0, -1)},
	)
	ledger.nextID = 2

	feed := &stubFeed{open: true, prices: map[string]decimal.Decimal{"RELIANCE": dec("2456.75")}}
	svc := newTestService(ledger, feed)

	result, err := svc.SquareOff(context.Background(), 1, "RELIANCE")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 63455.00 + (15*2456.75 - 20) = 100286.25
	if !result.NewBalance.Equal(dec("100286.25")) {
		t.Fatalf("expected balance 100286.25, got %s", result.NewBalance)
	}
	if !result.RealizedPnl.Equal(dec("346.20")) {
		t.Fatalf("expected realized pnl 346.20, got %s", result.RealizedPnl)
	}
	if !strings.Contains(result.Message, "346.20") {
		t.Fatalf("expected message to include realized P&L, got %q", result.Message)
	}

	if _, ok := ledger.positions[posKey(1, "RELIANCE")]; ok {
		t.Fatal("expected position removal after square-off")
	}

	for _, trade := range ledger.trades {
		if trade.Symbol != "RELIANCE" {
			continue
		}
		if trade.Status != model.TradeStatusClosed {
			t.Fatalf("expected trade %d closed, got %s", trade.ID, trade.Status)
		}
		if trade.ClosedAt == nil {
			t.Fatalf("expected closing timestamp on trade %d", trade.ID)
		}
		if !trade.RealizedPnl.Equal(dec("346.20")) {
			t.Fatalf("expected realized pnl stamp 346.20 on trade %d, got %s", trade.ID, trade.RealizedPnl)
		}
	}
}

func TestSquareOffMissingPosition(t *testing.T) {
	ledger := newStubLedger()
	ledger.balances[1] = dec("100000")
	feed := &stubFeed{open: true, prices: map[string]decimal.Decimal{"RELIANCE": dec("2456.75")}}
	svc := newTestService(ledger, feed)

	_, err := svc.SquareOff(context.Background(), 1, "RELIANCE")
	if !errors.Is(err, ErrPositionNotFound) {
		t.Fatalf("expected ErrPositionNotFound, got %v", err)
	}
	if !ledger.balances[1].Equal(dec("100000")) {
		t.Fatalf("balance must be untouched, got %s", ledger.balances[1])
	}
}

func TestSquareOffHonoursBrokerageSetting(t *testing.T) {
	ledger := newStubLedger()
	ledger.balances[1] = dec("0")
	ledger.positions[posKey(1, "ITC")] = &model.Position{
		ID: 1, UserID: 1, Symbol: "ITC",
		Quantity: 10, AvgPrice: dec("450.00"), CurrentPrice: dec("450.00"),
	}
	ledger.settings[1] = &model.UserSettings{UserID: 1, BrokerageSimulation: false}

	feed := &stubFeed{open: true, prices: map[string]decimal.Decimal{"ITC": dec("456.90")}}
	svc := newTestService(ledger, feed)

	result, err := svc.SquareOff(context.Background(), 1, "ITC")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.Brokerage.IsZero() {
		t.Fatalf("expected zero brokerage, got %s", result.Brokerage)
	}
	if !result.NewBalance.Equal(dec("4569.00")) {
		t.Fatalf("expected balance 4569.00, got %s", result.NewBalance)
	}
}

func TestSquareOffMarketClosed(t *testing.T) {
	ledger := newStubLedger()
	ledger.balances[1] = dec("1000")
	ledger.positions[posKey(1, "ITC")] = &model.Position{
		ID: 1, UserID: 1, Symbol: "ITC",
		Quantity: 10, AvgPrice: dec("450.00"), CurrentPrice: dec("450.00"),
	}
	feed := &stubFeed{open: false, prices: map[string]decimal.Decimal{"ITC": dec("456.90")}}
	svc := newTestService(ledger, feed)

	_, err := svc.SquareOff(context.Background(), 1, "ITC")
	if !errors.Is(err, ErrMarketClosed) {
		t.Fatalf("expected ErrMarketClosed, got %v", err)
	}
	if _, ok := ledger.positions[posKey(1, "ITC")]; !ok {
		t.Fatal("position must remain when square-off is rejected")
	}
}
