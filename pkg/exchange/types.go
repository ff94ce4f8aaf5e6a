// Package exchange defines venue-neutral order types shared by signed REST clients.
package exchange

import (
	"context"
	"errors"
	"fmt"
)

// Side denotes order side.
type Side string

const (
	SideBuy  Side = "Buy"
	SideSell Side = "Sell"
)

// Opposite returns the reducing side for a position opened with s.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderType denotes basic order types.
type OrderType string

const (
	OrderTypeLimit  OrderType = "Limit"
	OrderTypeMarket OrderType = "Market"
)

// TimeInForce captures TIF semantics.
type TimeInForce string

const (
	TIFGTC TimeInForce = "GTC" // Good Till Cancelled
	TIFIOC TimeInForce = "IOC" // Immediate Or Cancel
)

// OrderRequest captures an order intent to be sent to a venue.
type OrderRequest struct {
	Symbol       string
	Side         Side
	Type         OrderType
	Qty          float64
	Price        float64 // required for LIMIT
	TriggerPrice float64 // conditional (protective stop) orders
	ReduceOnly   bool
	TimeInForce  TimeInForce
	ClientID     string // optional client order id
}

// OrderResult returns the venue ack.
type OrderResult struct {
	OrderID  string
	ClientID string
}

// Position is an open position as reported by the venue.
type Position struct {
	Symbol     string
	Side       Side
	Size       float64
	EntryPrice float64
}

// CloseResult reports the outcome of closing one position.
type CloseResult struct {
	Symbol  string
	Side    Side
	Size    float64
	Success bool
	Error   string
}

// ErrInvalidQuantity flags a quantity that cannot be submitted, typically
// because instrument metadata was unavailable or the size is below the
// venue minimum.
var ErrInvalidQuantity = errors.New("invalid order quantity")

// VenueError is a failed venue call. Code/Message carry the venue's own
// status when the payload was readable; Transport marks HTTP/network
// failures where no payload arrived.
type VenueError struct {
	Code      int
	Message   string
	Transport bool
}

func (e *VenueError) Error() string {
	if e.Transport {
		return fmt.Sprintf("venue transport error: %s", e.Message)
	}
	return fmt.Sprintf("venue error %d: %s", e.Code, e.Message)
}

// Venue is one credentialed exchange account. Implementations never retry;
// retry policy belongs to the caller.
type Venue interface {
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
	GetPositions(ctx context.Context, symbol string) ([]Position, error)
	ClosePosition(ctx context.Context, symbol string) error
	CloseAllPositions(ctx context.Context) ([]CloseResult, error)
	SetLeverage(ctx context.Context, symbol string, leverage int) error
}
