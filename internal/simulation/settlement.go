package simulation

import (
	"context"
	"math"
	"time"

	"github.com/quantlab/backtest-engine/internal/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// settle executes orders queued on prior days at day's open price, per
// spec.md §4.6 step 4.
func (l *Loop) settle(ctx context.Context, p *portfolio, queue *orderQueue, day time.Time) {
	l.settleSells(ctx, p, queue, day)
	l.settleBuys(ctx, p, queue, day)
}

func (l *Loop) openPrice(ctx context.Context, symbol string, day time.Time) (float64, bool) {
	v, ok, err := l.Gateway.Row(ctx, symbol, day, "daily", "open")
	if err != nil || !ok {
		return 0, false
	}

	return v, true
}

func (l *Loop) settleSells(ctx context.Context, p *portfolio, queue *orderQueue, day time.Time) {
	sellFee := NewRateFee(l.Strategy.SellFeeRate)

	for _, order := range queue.drainSells() {
		open, ok := l.openPrice(ctx, order.Symbol, day)
		if !ok {
			l.deferOrMiss(queue, order, day)
			continue
		}

		execPrice := open * (1 - l.SlippageRate)
		quantity := p.quantity(order.Symbol)

		if quantity <= 0 {
			continue
		}

		notional := decimal.NewFromFloat(quantity).Mul(decimal.NewFromFloat(execPrice))
		fee := sellFee.Calculate(notional)

		p.closeLots(order.Symbol, day, quantity, execPrice, mustFloat(fee))

		proceeds := notional.Sub(fee)
		p.cash = p.cash.Add(proceeds)

		p.fills = append(p.fills, types.Fill{
			OrderID: order.ID, Symbol: order.Symbol, Side: types.OrderSideSell,
			Day: day, Quantity: quantity, Price: execPrice, Fee: mustFloat(fee), Notional: mustFloat(notional),
		})
	}
}

// buyCandidate is a pending buy order with its resolved open price.
type buyCandidate struct {
	order types.Order
	open  float64
}

// buyPlan is what executing a buyCandidate against the current per-order
// budget would cost.
type buyPlan struct {
	candidate buyCandidate
	quantity  float64
	cost      decimal.Decimal
}

func (l *Loop) settleBuys(ctx context.Context, p *portfolio, queue *orderQueue, day time.Time) {
	buyFee := NewRateFee(l.Strategy.BuyFeeRate)

	var candidates []buyCandidate

	for _, order := range queue.drainBuys() {
		open, ok := l.openPrice(ctx, order.Symbol, day)
		if !ok {
			l.deferOrMiss(queue, order, day)
			continue
		}

		candidates = append(candidates, buyCandidate{order: order, open: open})
	}

	droppedSmallest := false

	for len(candidates) > 0 {
		budget := p.cash.Div(decimal.NewFromInt(int64(len(candidates))))

		plans := make([]buyPlan, 0, len(candidates))
		total := decimal.Zero

		for _, c := range candidates {
			quantity := buyQuantity(budget, c.open, l.SlippageRate, l.Strategy.BuyFeeRate, l.LotSize)
			if quantity <= 0 {
				plans = append(plans, buyPlan{candidate: c})
				continue
			}

			execPrice := c.open * (1 + l.SlippageRate)
			notional := decimal.NewFromFloat(quantity).Mul(decimal.NewFromFloat(execPrice))
			fee := buyFee.Calculate(notional)
			cost := notional.Add(fee)

			plans = append(plans, buyPlan{candidate: c, quantity: quantity, cost: cost})
			total = total.Add(cost)
		}

		if total.LessThanOrEqual(p.cash) {
			l.executeBuyPlans(p, buyFee, plans, day)
			return
		}

		// Cash would be overdrawn: drop the smallest-cost order first,
		// then fall back to dropping from the end of the queue in input
		// order (spec.md §4.6 edge policy).
		dropIdx := len(candidates) - 1

		if !droppedSmallest {
			dropIdx = smallestCostIndex(plans)
			droppedSmallest = true
		}

		candidates = append(candidates[:dropIdx], candidates[dropIdx+1:]...)
	}
}

func (l *Loop) executeBuyPlans(p *portfolio, buyFee CommissionFee, plans []buyPlan, day time.Time) {
	for _, pl := range plans {
		if pl.quantity <= 0 {
			continue
		}

		execPrice := pl.candidate.open * (1 + l.SlippageRate)
		notional := decimal.NewFromFloat(pl.quantity).Mul(decimal.NewFromFloat(execPrice))
		fee := buyFee.Calculate(notional)

		p.cash = p.cash.Sub(notional).Sub(fee)
		p.openLot(pl.candidate.order.Symbol, day, pl.quantity, execPrice, mustFloat(fee))

		p.fills = append(p.fills, types.Fill{
			OrderID: pl.candidate.order.ID, Symbol: pl.candidate.order.Symbol, Side: types.OrderSideBuy,
			Day: day, Quantity: pl.quantity, Price: execPrice, Fee: mustFloat(fee), Notional: mustFloat(notional),
		})
	}
}

func smallestCostIndex(plans []buyPlan) int {
	idx := 0
	min := plans[0].cost

	for i, pl := range plans {
		if pl.cost.LessThan(min) {
			min = pl.cost
			idx = i
		}
	}

	return idx
}

// buyQuantity implements spec.md §4.6 step 4's lot-size formula.
func buyQuantity(budget decimal.Decimal, open, slippageRate, buyFeeRate, lotSize float64) float64 {
	execPrice := open * (1 + slippageRate) * (1 + buyFeeRate)
	if execPrice <= 0 {
		return 0
	}

	budgetF, _ := budget.Float64()

	raw := budgetF / execPrice / lotSize

	return math.Floor(raw) * lotSize
}

// deferOrMiss requeues an order whose open was missing (suspension), or
// cancels and logs it once it has missed 5 consecutive opens.
func (l *Loop) deferOrMiss(queue *orderQueue, order types.Order, day time.Time) {
	cancelled := queue.requeueMissed(order)
	if !cancelled {
		return
	}

	if l.Log != nil {
		l.Log.Warn("order cancelled after consecutive missed opens",
			zap.String("symbol", order.Symbol), zap.String("side", string(order.Side)), zap.Time("day", day))
	}
}

func mustFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
