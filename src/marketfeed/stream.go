package marketfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

// StreamFeed consumes price ticks from a websocket endpoint and keeps the
// latest quote per symbol in memory. Reads are pull-based snapshots; a symbol
// that has not ticked yet falls through to the optional fallback feed.
type StreamFeed struct {
	url      string
	fallback Feed
	hours    Hours

	mu     sync.RWMutex
	quotes map[string]decimal.Decimal
}

type tick struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
}

// NewStreamFeed builds a feed reading ticks from url. fallback may be nil.
func NewStreamFeed(url string, fallback Feed) *StreamFeed {
	return &StreamFeed{
		url:      url,
		fallback: fallback,
		hours:    NewHours(),
		quotes:   make(map[string]decimal.Decimal),
	}
}

// Run connects and consumes ticks until the context is canceled, redialing
// with a fixed backoff on connection loss.
func (f *StreamFeed) Run(ctx context.Context) {
	for {
		if err := f.consume(ctx); err != nil {
			logger.WithError(err).Warn("[marketfeed] stream disconnected")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Second):
		}
	}
}

func (f *StreamFeed) consume(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", f.url, err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	logger.WithField("url", f.url).Info("[marketfeed] stream connected")

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var t tick
		if err := json.Unmarshal(payload, &t); err != nil {
			logger.WithError(err).Debug("[marketfeed] dropping malformed tick")
			continue
		}
		if t.Symbol == "" || !t.Price.IsPositive() {
			continue
		}

		f.mu.Lock()
		f.quotes[t.Symbol] = t.Price
		f.mu.Unlock()
	}
}

func (f *StreamFeed) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	f.mu.RLock()
	price, ok := f.quotes[symbol]
	f.mu.RUnlock()

	if ok {
		return price, nil
	}
	if f.fallback != nil {
		return f.fallback.GetPrice(ctx, symbol)
	}
	return decimal.Zero, fmt.Errorf("no tick received for symbol %q: %w", symbol, ErrUnknownSymbol)
}

func (f *StreamFeed) IsOpen(at time.Time) bool {
	return f.hours.IsOpen(at)
}
