package report

import (
	"context"
	"testing"
	"time"

	"github.com/quantlab/backtest-engine/internal/gateway"
	"github.com/quantlab/backtest-engine/internal/simulation"
	"github.com/quantlab/backtest-engine/internal/types"
	"github.com/stretchr/testify/suite"
)

type AssemblerTestSuite struct {
	suite.Suite
	gw *gateway.InMemoryGateway
}

func (s *AssemblerTestSuite) SetupTest() {
	s.gw = gateway.NewInMemoryGateway()
}

func (s *AssemblerTestSuite) days() []time.Time {
	return []time.Time{d("2024-01-02"), d("2024-01-03")}
}

func (s *AssemblerTestSuite) TestSingleStockScopeUsesInstrumentAsBenchmark() {
	s.gw.Set("A", d("2024-01-02"), "daily", "close", 10)
	s.gw.Set("A", d("2024-01-03"), "daily", "close", 11)

	assembler := &Assembler{Gateway: s.gw}

	strategy := types.Strategy{
		Creator: "alice", Name: "buy_hold",
		Scope: types.Scope{Kind: types.ScopeSingleStock, Symbol: "A"},
	}

	submission := types.JobSubmission{
		StartDate: d("2024-01-02"), EndDate: d("2024-01-03"), InitialFund: 100000,
	}

	result := &simulation.Result{
		EquitySeries: []types.EquityPoint{
			{Day: d("2024-01-02"), Equity: 100000},
			{Day: d("2024-01-03"), Equity: 110000},
		},
	}

	row, payload, err := assembler.Assemble(context.Background(), submission, strategy, s.days(), result)
	s.Require().NoError(err)

	s.Equal("A", row.StockCode)
	s.Equal(types.BacktestTypeStock, row.BacktestType)
	s.InDelta(0.1, row.TotalReturn, 1e-9)

	// Benchmark series is A's own close (10 -> 11), a +10% move, matching
	// the strategy's own +10% move, so excess should be ~0.
	excess := payload.ReturnsChart.Data[2]
	s.InDelta(0.0, excess.Y[1], 1e-9)
}

func (s *AssemblerTestSuite) TestIndexScopeDefaultsBenchmarkSymbol() {
	s.gw.Set(DefaultBenchmark, d("2024-01-02"), "daily", "close", 3000)
	s.gw.Set(DefaultBenchmark, d("2024-01-03"), "daily", "close", 3150)

	assembler := &Assembler{Gateway: s.gw}

	strategy := types.Strategy{
		Creator: "alice", Name: "small_cap",
		Scope: types.Scope{Kind: types.ScopeIndex, IndexCode: "000905.SH"},
	}

	submission := types.JobSubmission{
		StartDate: d("2024-01-02"), EndDate: d("2024-01-03"), InitialFund: 100000,
	}

	result := &simulation.Result{
		EquitySeries: []types.EquityPoint{
			{Day: d("2024-01-02"), Equity: 100000},
			{Day: d("2024-01-03"), Equity: 108000},
		},
	}

	row, payload, err := assembler.Assemble(context.Background(), submission, strategy, s.days(), result)
	s.Require().NoError(err)

	s.Equal(types.BacktestTypeIndex, row.BacktestType)
	s.Empty(row.StockCode)

	benchmarkTrace := payload.ReturnsChart.Data[1]
	s.InDelta(0.05, benchmarkTrace.Y[1], 1e-9)
}

func TestAssemblerSuite(t *testing.T) {
	suite.Run(t, new(AssemblerTestSuite))
}
