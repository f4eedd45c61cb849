// Package mocks provides synthetic market data and go:generate directives
// for the engine's mockable interfaces (internal/calendar.Provider,
// internal/gateway.Gateway, internal/panel.IndicatorInvoker,
// internal/simulation.StrategyInvoker), used to build load/benchmark
// fixtures without a DuckDB store.
package mocks

import (
	"math"
	"math/rand"
	"time"

	"github.com/quantlab/backtest-engine/internal/gateway"
)

// DataGenerator produces realistic daily.{open,high,low,close,vol} bars
// via geometric Brownian motion, seeded for reproducible fixtures.
type DataGenerator struct {
	rng *rand.Rand
}

// NewDataGenerator creates a DataGenerator with the given seed.
func NewDataGenerator(seed int64) *DataGenerator {
	return &DataGenerator{rng: rand.New(rand.NewSource(seed))}
}

// GeneratorConfig configures one symbol's synthetic daily bar series.
type GeneratorConfig struct {
	Symbol         string
	StartDate      time.Time
	Days           int
	InitialPrice   float64
	Volatility     float64 // fractional per-day volatility, e.g. 0.02 = 2%
	Trend          float64 // total drift over the series, e.g. 0.1 = +10%
	VolumeBase     float64
	VolumeVariance float64
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Symbol:         "TEST",
		StartDate:      time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Days:           252,
		InitialPrice:   100.0,
		Volatility:     0.02,
		Trend:          0.0,
		VolumeBase:     1_000_000,
		VolumeVariance: 0.3,
	}
}

// tradingDaySpan skips Saturday/Sunday so generated series look like a real
// trade_cal-bounded run.
func tradingDaySpan(start time.Time, n int) []time.Time {
	days := make([]time.Time, 0, n)

	for d := start; len(days) < n; d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}

		days = append(days, d)
	}

	return days
}

// Seed writes config.Days worth of daily.{open,high,low,close,vol} bars for
// one symbol into gw, following geometric Brownian motion (Box-Muller).
func (g *DataGenerator) Seed(gw *gateway.InMemoryGateway, config GeneratorConfig) []time.Time {
	days := tradingDaySpan(config.StartDate, config.Days)
	currentPrice := config.InitialPrice

	for _, day := range days {
		open := currentPrice

		u1 := g.rng.Float64()
		u2 := g.rng.Float64()
		z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)

		priceChange := config.Volatility * z
		drift := config.Trend / float64(len(days))

		close := open * (1 + priceChange + drift)
		if close <= 0 {
			close = open * 0.99
		}

		highExtension := math.Abs(g.rng.Float64() * config.Volatility * open * 0.5)
		lowExtension := math.Abs(g.rng.Float64() * config.Volatility * open * 0.5)

		high := math.Max(open, close) + highExtension
		low := math.Min(open, close) - lowExtension
		if low <= 0 {
			low = math.Min(open, close) * 0.99
		}

		volumeVariation := 1.0 + (g.rng.Float64()*2-1)*config.VolumeVariance
		volume := config.VolumeBase * volumeVariation
		if volume < 0 {
			volume = config.VolumeBase * 0.1
		}

		gw.Set(config.Symbol, day, "daily", "open", roundToDecimals(open, 4))
		gw.Set(config.Symbol, day, "daily", "high", roundToDecimals(high, 4))
		gw.Set(config.Symbol, day, "daily", "low", roundToDecimals(low, 4))
		gw.Set(config.Symbol, day, "daily", "close", roundToDecimals(close, 4))
		gw.Set(config.Symbol, day, "daily", "vol", roundToDecimals(volume, 2))

		currentPrice = close
	}

	return days
}

// SeedMultiSymbol seeds an independent price path per symbol, each a slight
// perturbation of baseConfig, and returns their shared trading-day span.
func (g *DataGenerator) SeedMultiSymbol(gw *gateway.InMemoryGateway, symbols []string, baseConfig GeneratorConfig) []time.Time {
	var days []time.Time

	for _, symbol := range symbols {
		config := baseConfig
		config.Symbol = symbol
		config.InitialPrice = baseConfig.InitialPrice * (0.8 + g.rng.Float64()*0.4)
		config.Volatility = baseConfig.Volatility * (0.8 + g.rng.Float64()*0.4)

		days = g.Seed(gw, config)
	}

	return days
}

func roundToDecimals(val float64, decimals int) float64 {
	pow := math.Pow(10, float64(decimals))
	return math.Round(val*pow) / pow
}
