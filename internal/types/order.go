package types

import "time"

// OrderSide is the direction of a queued order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderStatus tracks a queued order through settlement (spec.md §4.6 edge
// policies: deferred on a missing open, cancelled after 5 consecutive
// misses).
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order is queued at the close of day D (by risk control or the selector)
// for settlement at the open of day D+1 (spec.md §4.6 step 4).
type Order struct {
	ID           string
	Symbol       string
	Side         OrderSide
	Quantity     float64 // shares; 0 until settlement computes the buy size
	QueuedDay    time.Time
	MissedOpens  int // consecutive days with a missing open price
	Status       OrderStatus
}

// Fill is an executed order, appended to the trade log in
// (settlement_day, side=sell-before-buy, insertion order) per spec.md §5.
type Fill struct {
	OrderID       string    `csv:"order_id"`
	Symbol        string    `csv:"symbol"`
	Side          OrderSide `csv:"side"`
	Day           time.Time `csv:"day"`
	Quantity      float64   `csv:"quantity"`
	Price         float64   `csv:"price"` // execution price after slippage
	Fee           float64   `csv:"fee"`
	Notional      float64   `csv:"notional"` // quantity * price, before fee
}

// Lot is one open FIFO layer of a long position, consumed in order by
// subsequent sells when matching round-trip trades (spec.md §4.7
// "round-trip trades (matched buy→sell pairs per symbol, FIFO)").
type Lot struct {
	Quantity   float64
	EntryPrice float64
	EntryFee   float64
	OpenedDay  time.Time
}

// RoundTrip is a FIFO-matched buy->sell pair (or partial pair) used for
// win_rate/profit_loss_ratio.
type RoundTrip struct {
	Symbol     string
	Quantity   float64
	EntryPrice float64
	EntryFee   float64
	ExitPrice  float64
	ExitFee    float64
	ClosedDay  time.Time
	PnL        float64
}
