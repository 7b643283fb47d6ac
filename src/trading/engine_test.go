package trading

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"

	"papertrader/src/marketfeed"
	"papertrader/src/model"
	"papertrader/src/repository"
)

// stubLedger is an in-memory Ledger with snapshot-based transaction rollback.
type stubLedger struct {
	balances  map[uint]decimal.Decimal
	positions map[string]*model.Position
	trades    []model.Trade
	settings  map[uint]*model.UserSettings
	nextID    uint

	setBalanceErr  error
	insertTradeErr error
	upsertErr      error
	closeTradesErr error
}

func newStubLedger() *stubLedger {
	return &stubLedger{
		balances:  make(map[uint]decimal.Decimal),
		positions: make(map[string]*model.Position),
		settings:  make(map[uint]*model.UserSettings),
	}
}

func posKey(userID uint, symbol string) string {
	return fmt.Sprintf("%d:%s", userID, symbol)
}

func (s *stubLedger) GetUser(_ context.Context, userID uint) (*model.User, error) {
	balance, ok := s.balances[userID]
	if !ok {
		return nil, nil
	}
	return &model.User{ID: userID, VirtualBalance: balance}, nil
}

func (s *stubLedger) GetBalance(_ context.Context, userID uint) (decimal.Decimal, error) {
	return s.balances[userID], nil
}

func (s *stubLedger) SetBalance(_ context.Context, userID uint, balance decimal.Decimal) error {
	if s.setBalanceErr != nil {
		return s.setBalanceErr
	}
	s.balances[userID] = balance
	return nil
}

func (s *stubLedger) GetPosition(_ context.Context, userID uint, symbol string) (*model.Position, error) {
	position, ok := s.positions[posKey(userID, symbol)]
	if !ok {
		return nil, nil
	}
	copied := *position
	return &copied, nil
}

func (s *stubLedger) UpsertPosition(_ context.Context, position *model.Position) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	copied := *position
	s.positions[posKey(position.UserID, position.Symbol)] = &copied
	return nil
}

func (s *stubLedger) DeletePosition(_ context.Context, userID uint, symbol string) error {
	delete(s.positions, posKey(userID, symbol))
	return nil
}

func (s *stubLedger) ListPositions(_ context.Context, userID uint) ([]model.Position, error) {
	var positions []model.Position
	for _, position := range s.positions {
		if position.UserID == userID {
			positions = append(positions, *position)
		}
	}
	return positions, nil
}

func (s *stubLedger) InsertTrade(_ context.Context, trade *model.Trade) error {
	if s.insertTradeErr != nil {
		return s.insertTradeErr
	}
	s.nextID++
	trade.ID = s.nextID
	s.trades = append(s.trades, *trade)
	return nil
}

func (s *stubLedger) CloseOpenTrades(_ context.Context, userID uint, symbol string, closedAt time.Time, realizedPnl decimal.Decimal) (int64, error) {
	if s.closeTradesErr != nil {
		return 0, s.closeTradesErr
	}
	var closed int64
	for i := range s.trades {
		trade := &s.trades[i]
		if trade.UserID == userID && trade.Symbol == symbol && trade.Status == model.TradeStatusOpen {
			trade.Status = model.TradeStatusClosed
			at := closedAt
			trade.ClosedAt = &at
			trade.RealizedPnl = realizedPnl
			closed++
		}
	}
	return closed, nil
}

func (s *stubLedger) ListTrades(_ context.Context, userID uint, limit int) ([]model.Trade, error) {
	var trades []model.Trade
	for i := len(s.trades) - 1; i >= 0; i-- {
		if s.trades[i].UserID == userID {
			trades = append(trades, s.trades[i])
			if limit > 0 && len(trades) == limit {
				break
			}
		}
	}
	return trades, nil
}

func (s *stubLedger) ListTradesSince(_ context.Context, userID uint, since time.Time) ([]model.Trade, error) {
	var trades []model.Trade
	for _, trade := range s.trades {
		if trade.UserID == userID && !trade.CreatedAt.Before(since) {
			trades = append(trades, trade)
		}
	}
	return trades, nil
}

func (s *stubLedger) SumBrokerage(_ context.Context, userID uint) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, trade := range s.trades {
		if trade.UserID == userID {
			total = total.Add(trade.Brokerage)
		}
	}
	return total, nil
}

func (s *stubLedger) GetSettings(_ context.Context, userID uint) (*model.UserSettings, error) {
	if settings, ok := s.settings[userID]; ok {
		copied := *settings
		return &copied, nil
	}
	return &model.UserSettings{UserID: userID, BrokerageSimulation: true, NotificationsEnabled: true}, nil
}

func (s *stubLedger) SaveSettings(_ context.Context, settings *model.UserSettings) error {
	copied := *settings
	s.settings[settings.UserID] = &copied
	return nil
}

// Transaction snapshots the ledger, runs fn, and restores the snapshot when
// fn fails, mimicking database rollback.
func (s *stubLedger) Transaction(_ context.Context, fn func(tx repository.Ledger) error) error {
	snapshot := s.snapshot()
	if err := fn(s); err != nil {
		s.restore(snapshot)
		return err
	}
	return nil
}

func (s *stubLedger) snapshot() *stubLedger {
	copied := newStubLedger()
	for userID, balance := range s.balances {
		copied.balances[userID] = balance
	}
	for key, position := range s.positions {
		p := *position
		copied.positions[key] = &p
	}
	copied.trades = append([]model.Trade(nil), s.trades...)
	copied.nextID = s.nextID
	return copied
}

func (s *stubLedger) restore(snapshot *stubLedger) {
	s.balances = snapshot.balances
	s.positions = snapshot.positions
	s.trades = snapshot.trades
	s.nextID = snapshot.nextID
}

// stubFeed serves fixed prices and a switchable open flag. A symbol absent
// from the table is an unknown-symbol miss; getPriceErr simulates the feed
// transport being down.
type stubFeed struct {
	prices      map[string]decimal.Decimal
	open        bool
	getPriceErr error
}

func (f *stubFeed) GetPrice(_ context.Context, symbol string) (decimal.Decimal, error) {
	if f.getPriceErr != nil {
		return decimal.Zero, f.getPriceErr
	}
	price, ok := f.prices[symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("no quote for symbol %q: %w", symbol, marketfeed.ErrUnknownSymbol)
	}
	return price, nil
}

func (f *stubFeed) IsOpen(time.Time) bool {
	return f.open
}

func sessionClock() func() time.Time {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		loc = time.UTC
	}
	at := time.Date(2024, time.June, 12, 11, 0, 0, 0, loc)
	return func() time.Time { return at }
}

func newTestService(ledger *stubLedger, feed *stubFeed) *Service {
	nullLogger, _ := logrustest.NewNullLogger()
	return NewService(ledger, feed, logrus.NewEntry(nullLogger)).WithClock(sessionClock())
}

func TestExecuteTradeBuyOpensPositionAndDebitsBalance(t *testing.T) {
	ledger := newStubLedger()
	ledger.balances[1] = dec("100000")
	feed := &stubFeed{open: true, prices: map[string]decimal.Decimal{"RELIANCE": dec("2400.50")}}
	svc := newTestService(ledger, feed)

	result, err := svc.ExecuteTrade(context.Background(), TradeRequest{
		UserID: 1, Symbol: "RELIANCE", Side: "BUY", Quantity: 10,
		Price: dec("2400.50"), BrokerageEnabled: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 100000 - (24005.00 + 20) = 75975.00
	if !result.NewBalance.Equal(dec("75975.00")) {
		t.Fatalf("expected balance 75975.00, got %s", result.NewBalance)
	}
	if !result.Brokerage.Equal(dec("20")) {
		t.Fatalf("expected brokerage 20, got %s", result.Brokerage)
	}

	position := ledger.positions[posKey(1, "RELIANCE")]
	if position == nil {
		t.Fatal("expected position to be created")
	}
	if position.Quantity != 10 || !position.AvgPrice.Equal(dec("2400.50")) {
		t.Fatalf("unexpected position: %+v", position)
	}

	if len(ledger.trades) != 1 {
		t.Fatalf("expected 1 trade record, got %d", len(ledger.trades))
	}
	trade := ledger.trades[0]
	if trade.Side != model.TradeSideBuy || trade.Status != model.TradeStatusOpen {
		t.Fatalf("unexpected trade record: %+v", trade)
	}
	if !trade.NetAmount.Equal(dec("24025.00")) {
		t.Fatalf("expected net amount 24025.00, got %s", trade.NetAmount)
	}
	if trade.Reference == "" {
		t.Fatal("expected a trade reference")
	}
}

func TestExecuteTradeSecondBuyAveragesIn(t *testing.T) {
	ledger := newStubLedger()
	ledger.balances[1] = dec("100000")
	feed := &stubFeed{open: true, prices: map[string]decimal.Decimal{"RELIANCE": dec("2500.00")}}
	svc := newTestService(ledger, feed)

	_, err := svc.ExecuteTrade(context.Background(), TradeRequest{
		UserID: 1, Symbol: "RELIANCE", Side: "BUY", Quantity: 10,
		Price: dec("2400.50"), BrokerageEnabled: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := svc.ExecuteTrade(context.Background(), TradeRequest{
		UserID: 1, Symbol: "RELIANCE", Side: "BUY", Quantity: 5,
		Price: dec("2500.00"), BrokerageEnabled: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 75975.00 - (12500.00 + 20) = 63455.00
	if !result.NewBalance.Equal(dec("63455.00")) {
		t.Fatalf("expected balance 63455.00, got %s", result.NewBalance)
	}

	position := ledger.positions[posKey(1, "RELIANCE")]
	if position.Quantity != 15 || !position.AvgPrice.Equal(dec("2433.67")) {
		t.Fatalf("unexpected position after averaging: %+v", position)
	}
}

func TestExecuteTradeFullSellRemovesPositionAndCredits(t *testing.T) {
	ledger := newStubLedger()
	ledger.balances[1] = dec("100000")
	feed := &stubFeed{open: true, prices: map[string]decimal.Decimal{"RELIANCE": dec("2456.75")}}
	svc := newTestService(ledger, feed)

	buys := []TradeRequest{
		{UserID: 1, Symbol: "RELIANCE", Side: "BUY", Quantity: 10, Price: dec("2400.50"), BrokerageEnabled: true},
		{UserID: 1, Symbol: "RELIANCE", Side: "BUY", Quantity: 5, Price: dec("2500.00"), BrokerageEnabled: true},
	}
	for _, req := range buys {
		if _, err := svc.ExecuteTrade(context.Background(), req); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	result, err := svc.ExecuteTrade(context.Background(), TradeRequest{
		UserID: 1, Symbol: "RELIANCE", Side: "SELL", Quantity: 15,
		Price: dec("2456.75"), BrokerageEnabled: true,
	})
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
	if _, ok := ledger.positions[posKey(1, "RELIANCE")]; ok {
		t.Fatal("expected position to be removed after full sell")
	}
}

func TestExecuteTradeSellWithoutHoldings(t *testing.T) {
	ledger := newStubLedger()
	ledger.balances[1] = dec("100000")
	feed := &stubFeed{open: true, prices: map[string]decimal.Decimal{"TCS": dec("3890.40")}}
	svc := newTestService(ledger, feed)

	_, err := svc.ExecuteTrade(context.Background(), TradeRequest{
		UserID: 1, Symbol: "TCS", Side: "SELL", Quantity: 1,
		Price: dec("3890.40"), BrokerageEnabled: true,
	})
	if !errors.Is(err, ErrInsufficientHoldings) {
		t.Fatalf("expected ErrInsufficientHoldings, got %v", err)
	}

	if !ledger.balances[1].Equal(dec("100000")) {
		t.Fatalf("balance must be untouched, got %s", ledger.balances[1])
	}
	if len(ledger.trades) != 0 {
		t.Fatalf("no trade record expected, got %d", len(ledger.trades))
	}
}

func TestExecuteTradeMarketClosed(t *testing.T) {
	ledger := newStubLedger()
	ledger.balances[1] = dec("100000")
	feed := &stubFeed{open: false, prices: map[string]decimal.Decimal{"RELIANCE": dec("2400.50")}}
	svc := newTestService(ledger, feed)

	_, err := svc.ExecuteTrade(context.Background(), TradeRequest{
		UserID: 1, Symbol: "RELIANCE", Side: "BUY", Quantity: 1,
		Price: dec("2400.50"), BrokerageEnabled: true,
	})
	if !errors.Is(err, ErrMarketClosed) {
		t.Fatalf("expected ErrMarketClosed, got %v", err)
	}
	if !ledger.balances[1].Equal(dec("100000")) {
		t.Fatalf("balance must be untouched, got %s", ledger.balances[1])
	}
}

func TestExecuteTradeInsufficientBalance(t *testing.T) {
	ledger := newStubLedger()
	ledger.balances[1] = dec("1000")
	feed := &stubFeed{open: true, prices: map[string]decimal.Decimal{"RELIANCE": dec("2400.50")}}
	svc := newTestService(ledger, feed)

	_, err := svc.ExecuteTrade(context.Background(), TradeRequest{
		UserID: 1, Symbol: "RELIANCE", Side: "BUY", Quantity: 1,
		Price: dec("2400.50"), BrokerageEnabled: true,
	})
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if len(ledger.trades) != 0 {
		t.Fatalf("no trade record expected, got %d", len(ledger.trades))
	}
}

func TestExecuteTradeRejectsInvalidQuantity(t *testing.T) {
	ledger := newStubLedger()
	ledger.balances[1] = dec("100000")
	feed := &stubFeed{open: true, prices: map[string]decimal.Decimal{"RELIANCE": dec("2400.50")}}
	svc := newTestService(ledger, feed)

	for _, quantity := range []int64{0, -5} {
		_, err := svc.ExecuteTrade(context.Background(), TradeRequest{
			UserID: 1, Symbol: "RELIANCE", Side: "BUY", Quantity: quantity,
			Price: dec("2400.50"), BrokerageEnabled: true,
		})
		if !errors.Is(err, ErrInvalidQuantity) {
			t.Fatalf("expected ErrInvalidQuantity for qty %d, got %v", quantity, err)
		}
	}
}

func TestExecuteTradeRejectsNonPositivePrice(t *testing.T) {
	ledger := newStubLedger()
	ledger.balances[1] = dec("100000")
	feed := &stubFeed{open: true, prices: map[string]decimal.Decimal{"RELIANCE": dec("2400.50")}}
	svc := newTestService(ledger, feed)

	for _, price := range []decimal.Decimal{decimal.Zero, dec("-2400.50")} {
		_, err := svc.ExecuteTrade(context.Background(), TradeRequest{
			UserID: 1, Symbol: "RELIANCE", Side: "BUY", Quantity: 10,
			Price: price, BrokerageEnabled: true,
		})
		if !errors.Is(err, ErrInvalidPrice) {
			t.Fatalf("expected ErrInvalidPrice for price %s, got %v", price, err)
		}
		if errors.Is(err, ErrInvalidQuantity) {
			t.Fatalf("price rejection must not match ErrInvalidQuantity, got %v", err)
		}
	}
	if len(ledger.trades) != 0 {
		t.Fatalf("no trade record expected, got %d", len(ledger.trades))
	}
}

// Buying and selling the same quantity at the same price with brokerage
// disabled must restore the balance exactly.
func TestExecuteTradeRoundTripRestoresBalance(t *testing.T) {
	ledger := newStubLedger()
	ledger.balances[1] = dec("50000")
	feed := &stubFeed{open: true, prices: map[string]decimal.Decimal{"ITC": dec("456.90")}}
	svc := newTestService(ledger, feed)

	if _, err := svc.ExecuteTrade(context.Background(), TradeRequest{
		UserID: 1, Symbol: "ITC", Side: "BUY", Quantity: 40, Price: dec("456.90"),
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := svc.ExecuteTrade(context.Background(), TradeRequest{
		UserID: 1, Symbol: "ITC", Side: "SELL", Quantity: 40, Price: dec("456.90"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.NewBalance.Equal(dec("50000")) {
		t.Fatalf("round trip must restore balance exactly, got %s", result.NewBalance)
	}
}

// A store failure mid-execution must roll back every mutation already
// applied, never leaving a partial state.
func TestExecuteTradeStoreFailureRollsBack(t *testing.T) {
	ledger := newStubLedger()
	ledger.balances[1] = dec("100000")
	ledger.insertTradeErr = errors.New("disk full")
	feed := &stubFeed{open: true, prices: map[string]decimal.Decimal{"RELIANCE": dec("2400.50")}}
	svc := newTestService(ledger, feed)

	_, err := svc.ExecuteTrade(context.Background(), TradeRequest{
		UserID: 1, Symbol: "RELIANCE", Side: "BUY", Quantity: 10,
		Price: dec("2400.50"), BrokerageEnabled: true,
	})
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}

	if !ledger.balances[1].Equal(dec("100000")) {
		t.Fatalf("balance must be rolled back, got %s", ledger.balances[1])
	}
	if _, ok := ledger.positions[posKey(1, "RELIANCE")]; ok {
		t.Fatal("position must be rolled back")
	}
}

func TestExecuteTradeBrokerageDisabled(t *testing.T) {
	ledger := newStubLedger()
	ledger.balances[1] = dec("100000")
	feed := &stubFeed{open: true, prices: map[string]decimal.Decimal{"SBIN": dec("598.25")}}
	svc := newTestService(ledger, feed)

	result, err := svc.ExecuteTrade(context.Background(), TradeRequest{
		UserID: 1, Symbol: "SBIN", Side: "BUY", Quantity: 10, Price: dec("598.25"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.Brokerage.IsZero() {
		t.Fatalf("expected zero brokerage, got %s", result.Brokerage)
	}
	if !result.NewBalance.Equal(dec("94017.50")) {
		t.Fatalf("expected balance 94017.50, got %s", result.NewBalance)
	}
}
