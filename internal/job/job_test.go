package job

import (
	"context"
	"testing"
	"time"

	"github.com/quantlab/backtest-engine/internal/calendar"
	"github.com/quantlab/backtest-engine/internal/gateway"
	"github.com/quantlab/backtest-engine/internal/registry"
	"github.com/quantlab/backtest-engine/internal/types"
	"github.com/stretchr/testify/suite"
)

func d(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

type JobTestSuite struct {
	suite.Suite
	cal *calendar.InMemoryProvider
	gw  *gateway.InMemoryGateway
}

func (s *JobTestSuite) SetupTest() {
	s.cal = calendar.NewInMemoryProvider()
	s.gw = gateway.NewInMemoryGateway()

	s.cal.SetTradingDays([]time.Time{
		d("2024-01-02"), d("2024-01-03"), d("2024-01-04"), d("2024-01-05"),
	})
}

func (s *JobTestSuite) setPrice(symbol, day string, open, close float64) {
	s.gw.Set(symbol, d(day), "daily", "open", open)
	s.gw.Set(symbol, d(day), "daily", "close", close)
}

// buyAndHoldSelect always targets whatever candidates it's given, up to
// position_count.
const buyAndHoldSelect = `function(candidates, params, positionCount, currentHoldings, day, context) {
	return candidates.slice(0, positionCount);
}`

func (s *JobTestSuite) TestSingleStockBuyAndHoldProducesCompletedReport() {
	s.setPrice("A", "2024-01-02", 10, 10)
	s.setPrice("A", "2024-01-03", 10, 11)
	s.setPrice("A", "2024-01-04", 11, 12)
	s.setPrice("A", "2024-01-05", 12, 13)

	strategy := types.Strategy{
		Creator: "alice", Name: "buy_hold",
		SelectFunc:    buyAndHoldSelect,
		Scope:         types.Scope{Kind: types.ScopeSingleStock, Symbol: "A"},
		PositionCount: 1,
	}

	snapshot := registry.NewSnapshot(nil, nil, []types.Strategy{strategy})

	coordinator := &Coordinator{
		Calendar: s.cal,
		Gateway:  s.gw,
		Registry: snapshot,
		LotSize:  100,
	}

	submission := types.JobSubmission{
		Creator:     "alice",
		Strategy:    "buy_hold",
		StartDate:   d("2024-01-02"),
		EndDate:     d("2024-01-05"),
		InitialFund: 100000,
	}

	outcome := coordinator.Run(context.Background(), submission, strategy.FQName())

	s.Require().Equal(types.JobStatusCompleted, outcome.Status, outcome.ErrMsg)
	s.Equal("A", outcome.Row.StockCode)
	s.Equal(types.BacktestTypeStock, outcome.Row.BacktestType)
	s.NotEmpty(outcome.ReportID)
	s.Require().Len(outcome.Chart.ReturnsChart.Data, 3)
}

func (s *JobTestSuite) TestUnknownStrategyIsInvalidRequest() {
	snapshot := registry.NewSnapshot(nil, nil, nil)

	coordinator := &Coordinator{Calendar: s.cal, Gateway: s.gw, Registry: snapshot}

	submission := types.JobSubmission{
		Creator: "alice", Strategy: "missing",
		StartDate: d("2024-01-02"), EndDate: d("2024-01-05"), InitialFund: 100000,
	}

	outcome := coordinator.Run(context.Background(), submission, "alice.missing")

	s.Equal(types.JobStatusFailed, outcome.Status)
	s.Equal("InvalidRequest", string(outcome.ErrKind))
}

func (s *JobTestSuite) TestEmptyUniverseIsUniverseEmpty() {
	emptyCal := calendar.NewInMemoryProvider()
	emptyCal.SetTradingDays([]time.Time{d("2024-01-02"), d("2024-01-03")})

	strategy := types.Strategy{
		Creator: "alice", Name: "small_cap",
		SelectFunc:        buyAndHoldSelect,
		Scope:             types.Scope{Kind: types.ScopeIndex, IndexCode: "000905.SH"},
		PositionCount:     5,
		RebalanceInterval: 5,
	}

	snapshot := registry.NewSnapshot(nil, nil, []types.Strategy{strategy})

	coordinator := &Coordinator{Calendar: emptyCal, Gateway: s.gw, Registry: snapshot}

	submission := types.JobSubmission{
		Creator: "alice", Strategy: "small_cap",
		StartDate: d("2024-01-02"), EndDate: d("2024-01-03"), InitialFund: 100000,
	}

	outcome := coordinator.Run(context.Background(), submission, strategy.FQName())

	s.Equal(types.JobStatusFailed, outcome.Status)
	s.Equal("UniverseEmpty", string(outcome.ErrKind))
}

func TestJobSuite(t *testing.T) {
	suite.Run(t, new(JobTestSuite))
}
