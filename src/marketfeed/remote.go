package marketfeed

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

// RemoteFeed pulls quotes from an external market data HTTP API. Calls carry a
// bounded timeout; failures surface to the caller as feed unavailability and
// are classified retryable there.
type RemoteFeed struct {
	client *resty.Client
	hours  Hours
}

type quoteResponse struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
}

// NewRemoteFeed builds a client against the given base URL,
// e.g. https://feed.example.com/api/v1.
func NewRemoteFeed(baseURL string, timeout time.Duration) *RemoteFeed {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &RemoteFeed{
		client: client,
		hours:  NewHours(),
	}
}

func (f *RemoteFeed) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	var quote quoteResponse

	resp, err := f.client.R().
		SetContext(ctx).
		SetResult(&quote).
		SetPathParam("symbol", symbol).
		Get("/quote/{symbol}")
	if err != nil {
		return decimal.Zero, fmt.Errorf("quote request for %s failed: %w", symbol, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return decimal.Zero, fmt.Errorf("no quote for symbol %q: %w", symbol, ErrUnknownSymbol)
	}
	if resp.IsError() {
		return decimal.Zero, fmt.Errorf("quote request for %s returned status %d", symbol, resp.StatusCode())
	}
	if !quote.Price.IsPositive() {
		return decimal.Zero, fmt.Errorf("quote for %s has no usable price", symbol)
	}

	return quote.Price, nil
}

func (f *RemoteFeed) IsOpen(at time.Time) bool {
	return f.hours.IsOpen(at)
}
