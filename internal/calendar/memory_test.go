package calendar

import (
	"context"
	"testing"
	"time"

	"github.com/quantlab/backtest-engine/internal/types"
	"github.com/quantlab/backtest-engine/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type InMemoryProviderTestSuite struct {
	suite.Suite
	provider *InMemoryProvider
}

func (s *InMemoryProviderTestSuite) SetupTest() {
	s.provider = NewInMemoryProvider()
}

func day(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func (s *InMemoryProviderTestSuite) TestTradingDaysOrderedAndFiltered() {
	s.provider.SetTradingDays([]time.Time{
		day("2024-01-05"), day("2024-01-02"), day("2024-01-03"), day("2024-02-01"),
	})

	days, err := s.provider.TradingDays(context.Background(), day("2024-01-01"), day("2024-01-31"))
	s.Require().NoError(err)
	s.Require().Equal([]time.Time{day("2024-01-02"), day("2024-01-03"), day("2024-01-05")}, days)
}

func (s *InMemoryProviderTestSuite) TestTradingDaysEmptyRangeIsCalendarUnavailable() {
	s.provider.SetTradingDays([]time.Time{day("2024-01-02")})

	_, err := s.provider.TradingDays(context.Background(), day("2024-06-01"), day("2024-06-30"))
	s.Require().Error(err)
	s.Equal(errors.KindCalendarUnavailable, errors.GetKind(err))
}

func (s *InMemoryProviderTestSuite) TestUniverseSingleStockIsScopeSymbol() {
	universe, err := s.provider.Universe(context.Background(), types.Scope{
		Kind: types.ScopeSingleStock, Symbol: "600519.SH",
	}, day("2024-01-02"))
	s.Require().NoError(err)
	s.Equal(map[string]struct{}{"600519.SH": {}}, universe)
}

func (s *InMemoryProviderTestSuite) TestUniverseIndexTakesMostRecentSnapshot() {
	s.provider.SetIndexMembers("000300.SH", day("2024-01-01"), []string{"A", "B"})
	s.provider.SetIndexMembers("000300.SH", day("2024-02-01"), []string{"A", "C"})

	universe, err := s.provider.Universe(context.Background(), types.Scope{
		Kind: types.ScopeIndex, IndexCode: "000300.SH",
	}, day("2024-02-15"))
	s.Require().NoError(err)
	s.Equal(map[string]struct{}{"A": {}, "C": {}}, universe)
}

func (s *InMemoryProviderTestSuite) TestUniverseIndexBeforeAnySnapshotIsEmpty() {
	s.provider.SetIndexMembers("000300.SH", day("2024-02-01"), []string{"A", "C"})

	universe, err := s.provider.Universe(context.Background(), types.Scope{
		Kind: types.ScopeIndex, IndexCode: "000300.SH",
	}, day("2024-01-15"))
	s.Require().NoError(err)
	s.Empty(universe)
}

func (s *InMemoryProviderTestSuite) TestUniverseAllUsesMostRecentListingSnapshot() {
	s.provider.SetListed(day("2024-01-01"), []string{"A", "B"})

	universe, err := s.provider.Universe(context.Background(), types.Scope{Kind: types.ScopeAll}, day("2024-03-01"))
	s.Require().NoError(err)
	s.Equal(map[string]struct{}{"A": {}, "B": {}}, universe)
}

func TestInMemoryProviderSuite(t *testing.T) {
	suite.Run(t, new(InMemoryProviderTestSuite))
}
