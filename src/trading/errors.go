package trading

import "fmt"

// Error codes for the failure modes an order can hit. Every failure carries a
// specific, distinguishable message so callers can branch on it.
const (
	CodeInvalidQuantity      = "INVALID_QUANTITY"
	CodeInvalidPrice         = "INVALID_PRICE"
	CodeMarketClosed         = "MARKET_CLOSED"
	CodeInsufficientBalance  = "INSUFFICIENT_BALANCE"
	CodeInsufficientHoldings = "INSUFFICIENT_HOLDINGS"
	CodePositionNotFound     = "POSITION_NOT_FOUND"
	CodeStoreUnavailable     = "STORE_UNAVAILABLE"
	CodeFeedUnavailable      = "FEED_UNAVAILABLE"
	CodeInvalidState         = "INVALID_STATE"
)

// TradeError is a typed, recoverable order failure. Two TradeErrors match
// under errors.Is when their codes are equal, so callers branch on the
// sentinel values below regardless of the wrapped cause.
type TradeError struct {
	Code    string
	Message string
	Err     error
}

func (e *TradeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *TradeError) Unwrap() error {
	return e.Err
}

func (e *TradeError) Is(target error) bool {
	t, ok := target.(*TradeError)
	return ok && t.Code == e.Code
}

var (
	ErrInvalidQuantity      = &TradeError{Code: CodeInvalidQuantity, Message: "Quantity must be a positive whole number"}
	ErrInvalidPrice         = &TradeError{Code: CodeInvalidPrice, Message: "Price must be positive"}
	ErrMarketClosed         = &TradeError{Code: CodeMarketClosed, Message: "Market is closed. Trading hours are 09:15 to 15:30"}
	ErrInsufficientBalance  = &TradeError{Code: CodeInsufficientBalance, Message: "Insufficient balance for this trade"}
	ErrInsufficientHoldings = &TradeError{Code: CodeInsufficientHoldings, Message: "Insufficient quantity to sell"}
	ErrPositionNotFound     = &TradeError{Code: CodePositionNotFound, Message: "Position not found"}
	ErrStoreUnavailable     = &TradeError{Code: CodeStoreUnavailable, Message: "Ledger store unavailable, please retry"}
	ErrFeedUnavailable      = &TradeError{Code: CodeFeedUnavailable, Message: "Market feed unavailable, please retry"}
	ErrInvalidState         = &TradeError{Code: CodeInvalidState, Message: "Position accounting invariant violated"}
)

// storeErr wraps an underlying I/O failure as a retryable store error.
func storeErr(err error) *TradeError {
	return &TradeError{Code: CodeStoreUnavailable, Message: ErrStoreUnavailable.Message, Err: err}
}

// feedErr wraps a market-feed transport failure as a retryable feed error.
func feedErr(err error) *TradeError {
	return &TradeError{Code: CodeFeedUnavailable, Message: ErrFeedUnavailable.Message, Err: err}
}
