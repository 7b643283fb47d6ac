// Package marketfeed supplies current prices per symbol and the market-open
// predicate the trading service validates against. Feeds are pull-based
// snapshots: the core never blocks waiting for a tick and re-reads whatever
// price is current at call time.
package marketfeed

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrUnknownSymbol marks a miss for a symbol the feed has no quote for, as
// opposed to the feed itself being unreachable. Callers that can fall back to
// a last-seen price branch on it with errors.Is.
var ErrUnknownSymbol = errors.New("unknown symbol")

// Feed is the market data collaborator consumed by the trading service.
type Feed interface {
	// GetPrice returns the current price for symbol. A miss for a symbol the
	// feed does not cover wraps ErrUnknownSymbol; any other error means the
	// feed is unavailable.
	GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error)

	// IsOpen reports whether the market is open at the given instant.
	IsOpen(at time.Time) bool
}
