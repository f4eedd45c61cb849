package simulation

import (
	"time"

	"github.com/quantlab/backtest-engine/internal/types"
)

// maxMissedOpens is the consecutive-miss threshold after which a deferred
// order is cancelled and logged (spec.md §4.6 edge policies).
const maxMissedOpens = 5

// orderQueue holds orders awaiting settlement at the next available open.
type orderQueue struct {
	pending []types.Order
}

func (q *orderQueue) enqueue(symbol string, side types.OrderSide, day time.Time) {
	q.pending = append(q.pending, types.Order{
		Symbol:    symbol,
		Side:      side,
		QueuedDay: day,
		Status:    types.OrderStatusPending,
	})
}

// drainSells returns and removes every pending sell order.
func (q *orderQueue) drainSells() []types.Order {
	return q.drainSide(types.OrderSideSell)
}

// drainBuys returns and removes every pending buy order.
func (q *orderQueue) drainBuys() []types.Order {
	return q.drainSide(types.OrderSideBuy)
}

func (q *orderQueue) drainSide(side types.OrderSide) []types.Order {
	var taken, kept []types.Order

	for _, o := range q.pending {
		if o.Side == side {
			taken = append(taken, o)
		} else {
			kept = append(kept, o)
		}
	}

	q.pending = kept

	return taken
}

// requeueMissed re-enqueues an order whose open was missing, bumping its
// miss counter; cancelled returns true once the order crosses the
// consecutive-miss threshold, per spec.md §4.6.
func (q *orderQueue) requeueMissed(o types.Order) (cancelled bool) {
	o.MissedOpens++
	if o.MissedOpens >= maxMissedOpens {
		return true
	}

	q.pending = append(q.pending, o)

	return false
}
