package simulation

import (
	"context"
	"testing"
	"time"

	"github.com/quantlab/backtest-engine/internal/calendar"
	"github.com/quantlab/backtest-engine/internal/gateway"
	"github.com/quantlab/backtest-engine/internal/harness"
	"github.com/quantlab/backtest-engine/internal/types"
	"github.com/stretchr/testify/suite"
)

func d(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

// scriptedInvoker returns fixed select/risk-control decisions by day,
// avoiding a live goja runtime in these tests.
type scriptedInvoker struct {
	selectByDay      map[string][]string
	riskControlByDay map[string][]string
}

func (s *scriptedInvoker) InvokeSelect(_ context.Context, _ string, args harness.SelectFuncArgs) ([]string, error) {
	key := args.Day.Format("2006-01-02")
	if target, ok := s.selectByDay[key]; ok {
		return target, nil
	}

	return args.CurrentHoldings, nil
}

func (s *scriptedInvoker) InvokeRiskControl(_ context.Context, _ string, args harness.RiskControlArgs) ([]string, error) {
	key := args.Day.Format("2006-01-02")
	if retained, ok := s.riskControlByDay[key]; ok {
		return retained, nil
	}

	return args.CurrentHoldings, nil
}

// contextStashingInvoker counts how many times select runs by stashing a
// counter in the shared per-backtest context map.
type contextStashingInvoker struct {
	seenCounts []int
}

func (c *contextStashingInvoker) InvokeSelect(_ context.Context, _ string, args harness.SelectFuncArgs) ([]string, error) {
	n, _ := args.Context["calls"].(int)
	n++
	args.Context["calls"] = n
	c.seenCounts = append(c.seenCounts, n)

	return args.CurrentHoldings, nil
}

func (c *contextStashingInvoker) InvokeRiskControl(_ context.Context, _ string, args harness.RiskControlArgs) ([]string, error) {
	return args.CurrentHoldings, nil
}

type SimulationTestSuite struct {
	suite.Suite
	cal *calendar.InMemoryProvider
	gw  *gateway.InMemoryGateway
}

func (s *SimulationTestSuite) SetupTest() {
	s.cal = calendar.NewInMemoryProvider()
	s.gw = gateway.NewInMemoryGateway()

	s.cal.SetTradingDays([]time.Time{
		d("2024-01-02"), d("2024-01-03"), d("2024-01-04"), d("2024-01-05"), d("2024-01-08"),
	})
}

func (s *SimulationTestSuite) setPrice(symbol, day string, open, close float64) {
	s.gw.Set(symbol, d(day), "daily", "open", open)
	s.gw.Set(symbol, d(day), "daily", "close", close)
}

func (s *SimulationTestSuite) TestSingleStockBuyAndHoldMarksToMarketDaily() {
	s.setPrice("A", "2024-01-02", 10, 10)
	s.setPrice("A", "2024-01-03", 10, 11)
	s.setPrice("A", "2024-01-04", 11, 12)
	s.setPrice("A", "2024-01-05", 12, 13)

	invoker := &scriptedInvoker{selectByDay: map[string][]string{
		"2024-01-02": {"A"},
	}}

	loop := &Loop{
		Gateway:  s.gw,
		Calendar: s.cal,
		Invoker:  invoker,
		Strategy: types.Strategy{
			Creator: "alice", Name: "buy_hold",
			Scope:         types.Scope{Kind: types.ScopeSingleStock, Symbol: "A"},
			PositionCount: 1,
		},
		InitialFund: 100000,
		LotSize:     100,
	}

	days, err := s.cal.TradingDays(context.Background(), d("2024-01-02"), d("2024-01-05"))
	s.Require().NoError(err)

	result, err := loop.Run(context.Background(), days)
	s.Require().NoError(err)

	s.Require().Len(result.EquitySeries, 4)
	// Day 1: no position yet (order settles at next open).
	s.Equal(100000.0, result.EquitySeries[0].Equity)
	// By day 4 the position should be held and marked at close=13.
	s.Greater(result.EquitySeries[3].Equity, 0.0)
	s.Require().NotEmpty(result.Fills)
}

func (s *SimulationTestSuite) TestRiskControlSellsDroppedSymbol() {
	s.setPrice("A", "2024-01-02", 10, 10)
	s.setPrice("A", "2024-01-03", 10, 10)
	s.setPrice("A", "2024-01-04", 10, 10)
	s.setPrice("A", "2024-01-05", 10, 10)

	invoker := &scriptedInvoker{
		selectByDay: map[string][]string{"2024-01-02": {"A"}},
		riskControlByDay: map[string][]string{
			"2024-01-04": {},
		},
	}

	loop := &Loop{
		Gateway:  s.gw,
		Calendar: s.cal,
		Invoker:  invoker,
		Strategy: types.Strategy{
			Creator: "alice", Name: "drop_on_day4",
			Scope:           types.Scope{Kind: types.ScopeSingleStock, Symbol: "A"},
			PositionCount:   1,
			RiskControlFunc: "scripted",
		},
		InitialFund: 100000,
		LotSize:     100,
	}

	days, err := s.cal.TradingDays(context.Background(), d("2024-01-02"), d("2024-01-05"))
	s.Require().NoError(err)

	result, err := loop.Run(context.Background(), days)
	s.Require().NoError(err)

	var sawSell bool

	for _, f := range result.Fills {
		if f.Side == types.OrderSideSell {
			sawSell = true
		}
	}

	s.True(sawSell)
}

func (s *SimulationTestSuite) TestMissingOpenDefersOrder() {
	s.setPrice("A", "2024-01-02", 10, 10)
	// 2024-01-03 open missing (suspension); only close set.
	s.gw.Set("A", d("2024-01-03"), "daily", "close", 10)
	s.setPrice("A", "2024-01-04", 11, 11)
	s.setPrice("A", "2024-01-05", 12, 12)

	invoker := &scriptedInvoker{selectByDay: map[string][]string{"2024-01-02": {"A"}}}

	loop := &Loop{
		Gateway:  s.gw,
		Calendar: s.cal,
		Invoker:  invoker,
		Strategy: types.Strategy{
			Creator: "alice", Name: "deferred_buy",
			Scope:         types.Scope{Kind: types.ScopeSingleStock, Symbol: "A"},
			PositionCount: 1,
		},
		InitialFund: 100000,
		LotSize:     100,
	}

	days, err := s.cal.TradingDays(context.Background(), d("2024-01-02"), d("2024-01-05"))
	s.Require().NoError(err)

	result, err := loop.Run(context.Background(), days)
	s.Require().NoError(err)

	// The buy should settle on 2024-01-04 (next day with a present open),
	// not be lost when 2024-01-03's open was missing.
	var filled bool

	for _, f := range result.Fills {
		if f.Side == types.OrderSideBuy && f.Day.Equal(d("2024-01-04")) {
			filled = true
		}
	}

	s.True(filled)
}

func (s *SimulationTestSuite) TestContextPersistsAcrossDays() {
	s.setPrice("A", "2024-01-02", 10, 10)
	s.setPrice("A", "2024-01-03", 10, 10)
	s.setPrice("A", "2024-01-04", 10, 10)
	s.setPrice("A", "2024-01-05", 10, 10)

	invoker := &contextStashingInvoker{}

	loop := &Loop{
		Gateway:  s.gw,
		Calendar: s.cal,
		Invoker:  invoker,
		Strategy: types.Strategy{
			Creator: "alice", Name: "counts_calls",
			Scope:         types.Scope{Kind: types.ScopeSingleStock, Symbol: "A"},
			PositionCount: 1,
		},
		InitialFund: 100000,
		LotSize:     100,
	}

	days, err := s.cal.TradingDays(context.Background(), d("2024-01-02"), d("2024-01-05"))
	s.Require().NoError(err)

	_, err = loop.Run(context.Background(), days)
	s.Require().NoError(err)

	s.Equal([]int{1, 2, 3, 4}, invoker.seenCounts)
}

func TestSimulationSuite(t *testing.T) {
	suite.Run(t, new(SimulationTestSuite))
}
