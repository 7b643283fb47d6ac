package marketfeed

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

// defaultQuotes seeds the simulated NSE universe with base prices. Values are
// starting points only; the jitter loop walks them once started.
var defaultQuotes = map[string]float64{
	"NIFTY":      19456.75,
	"BANKNIFTY":  43567.80,
	"FINNIFTY":   19234.65,
	"RELIANCE":   2456.75,
	"TCS":        3890.40,
	"HDFCBANK":   1543.20,
	"INFY":       1567.80,
	"ICICIBANK":  987.45,
	"KOTAKBANK":  1789.30,
	"SBIN":       598.25,
	"BHARTIARTL": 912.60,
	"ITC":        456.90,
	"ASIANPAINT": 3102.55,
	"LT":         3415.10,
	"AXISBANK":   1044.85,
	"MARUTI":     10480.00,
	"SUNPHARMA":  1189.95,
	"HINDUNILVR": 2514.30,
}

// SimFeed is a deterministic in-memory quote table. It is explicitly injected
// into the trading service; price jitter only runs when the caller starts it.
type SimFeed struct {
	mu     sync.RWMutex
	quotes map[string]decimal.Decimal
	hours  Hours
	rng    *rand.Rand
}

// NewSimFeed builds a feed seeded with the default NSE universe.
func NewSimFeed() *SimFeed {
	quotes := make(map[string]decimal.Decimal, len(defaultQuotes))
	for symbol, price := range defaultQuotes {
		quotes[symbol] = decimal.NewFromFloat(price)
	}
	return &SimFeed{
		quotes: quotes,
		hours:  NewHours(),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NewSimFeedWith builds a feed with an explicit quote table and session hours,
// used by tests and the seed command.
func NewSimFeedWith(quotes map[string]decimal.Decimal, hours Hours) *SimFeed {
	copied := make(map[string]decimal.Decimal, len(quotes))
	for symbol, price := range quotes {
		copied[symbol] = price
	}
	return &SimFeed{
		quotes: copied,
		hours:  hours,
		rng:    rand.New(rand.NewSource(1)),
	}
}

func (f *SimFeed) GetPrice(_ context.Context, symbol string) (decimal.Decimal, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	price, ok := f.quotes[symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("no quote for symbol %q: %w", symbol, ErrUnknownSymbol)
	}
	return price, nil
}

func (f *SimFeed) IsOpen(at time.Time) bool {
	return f.hours.IsOpen(at)
}

// SetPrice overrides the quote for a symbol.
func (f *SimFeed) SetPrice(symbol string, price decimal.Decimal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quotes[symbol] = price
}

// Start runs a random-walk jitter loop (up to ±0.5% per tick) until the
// context is canceled. Demo mode only; tests and the engine never need it.
func (f *SimFeed) Start(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				logger.Debug("[marketfeed] sim jitter stopped")
				return
			case <-ticker.C:
				f.jitter()
			}
		}
	}()
}

func (f *SimFeed) jitter() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for symbol, price := range f.quotes {
		// drift in (-0.5%, +0.5%)
		drift := (f.rng.Float64() - 0.5) / 100
		next := price.Mul(decimal.NewFromFloat(1 + drift)).Round(2)
		if next.IsPositive() {
			f.quotes[symbol] = next
		}
	}
}
