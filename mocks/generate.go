package mocks

//go:generate mockgen -destination=./mock_calendar.go -package=mocks github.com/quantlab/backtest-engine/internal/calendar Provider
//go:generate mockgen -destination=./mock_gateway.go -package=mocks github.com/quantlab/backtest-engine/internal/gateway Gateway
//go:generate mockgen -destination=./mock_panel.go -package=mocks github.com/quantlab/backtest-engine/internal/panel IndicatorInvoker
//go:generate mockgen -destination=./mock_simulation.go -package=mocks github.com/quantlab/backtest-engine/internal/simulation StrategyInvoker
