package simulation

import (
	"sort"
	"time"

	"github.com/quantlab/backtest-engine/internal/types"
	"github.com/shopspring/decimal"
)

// portfolio is the mutable state the loop carries across trading days:
// cash, open positions as FIFO lot queues, the equity curve, and the fill
// log (spec.md §3 PortfolioState).
type portfolio struct {
	cash         decimal.Decimal
	lots         map[string][]types.Lot // FIFO queue per symbol
	equitySeries []types.EquityPoint
	fills        []types.Fill
	roundTrips   []types.RoundTrip

	lastRebalanceDay time.Time
	haveRebalanced   bool
}

func newPortfolio(initialFund float64) *portfolio {
	return &portfolio{
		cash: decimal.NewFromFloat(initialFund),
		lots: make(map[string][]types.Lot),
	}
}

// holdings returns the symbols currently held with quantity > 0, sorted
// for deterministic iteration.
func (p *portfolio) holdings() []string {
	var out []string

	for symbol, lots := range p.lots {
		if totalQuantity(lots) > 0 {
			out = append(out, symbol)
		}
	}

	sort.Strings(out)

	return out
}

func (p *portfolio) quantity(symbol string) float64 {
	return totalQuantity(p.lots[symbol])
}

func totalQuantity(lots []types.Lot) float64 {
	var total float64
	for _, l := range lots {
		total += l.Quantity
	}

	return total
}

// markToMarket appends one equity sample: cash + sum(shares * close).
func (p *portfolio) markToMarket(day time.Time, closeOf func(symbol string) (float64, bool)) {
	equity := p.cash

	for symbol, lots := range p.lots {
		qty := totalQuantity(lots)
		if qty == 0 {
			continue
		}

		price, ok := closeOf(symbol)
		if !ok {
			continue
		}

		equity = equity.Add(decimal.NewFromFloat(qty).Mul(decimal.NewFromFloat(price)))
	}

	value, _ := equity.Float64()
	p.equitySeries = append(p.equitySeries, types.EquityPoint{Day: day, Equity: value})
}

// openLot adds a new FIFO layer after a buy fill.
func (p *portfolio) openLot(symbol string, day time.Time, quantity, price, fee float64) {
	p.lots[symbol] = append(p.lots[symbol], types.Lot{
		Quantity:   quantity,
		EntryPrice: price,
		EntryFee:   fee,
		OpenedDay:  day,
	})
}

// closeLots consumes FIFO layers for a sell of quantity shares, recording
// one RoundTrip per consumed (or partially consumed) layer, per spec.md
// §4.7 "round-trip trades (matched buy→sell pairs per symbol, FIFO)".
func (p *portfolio) closeLots(symbol string, day time.Time, quantity, exitPrice, totalExitFee float64) {
	remaining := quantity
	lots := p.lots[symbol]

	var kept []types.Lot

	i := 0
	for ; i < len(lots) && remaining > 1e-9; i++ {
		lot := lots[i]

		take := lot.Quantity
		if take > remaining {
			take = remaining
		}

		feeShare := totalExitFee * (take / quantity)
		entryFeeShare := lot.EntryFee * (take / lot.Quantity)

		pnl := (exitPrice-lot.EntryPrice)*take - feeShare - entryFeeShare

		p.roundTrips = append(p.roundTrips, types.RoundTrip{
			Symbol:     symbol,
			Quantity:   take,
			EntryPrice: lot.EntryPrice,
			EntryFee:   entryFeeShare,
			ExitPrice:  exitPrice,
			ExitFee:    feeShare,
			ClosedDay:  day,
			PnL:        pnl,
		})

		remaining -= take
		lot.Quantity -= take
		lot.EntryFee -= entryFeeShare

		if lot.Quantity > 1e-9 {
			kept = append(kept, lot)
		}
	}

	// Every lot the loop never reached is untouched; carry it forward as-is.
	kept = append(kept, lots[i:]...)
	p.lots[symbol] = kept
}
