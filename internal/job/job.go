// Package job implements C8: the coordinator that drives one backtest job
// through its prepare and simulate phases, tracks status, and enforces the
// per-job timeout (spec.md §5, §6).
package job

import (
	"context"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/quantlab/backtest-engine/internal/calendar"
	"github.com/quantlab/backtest-engine/internal/gateway"
	"github.com/quantlab/backtest-engine/internal/harness"
	"github.com/quantlab/backtest-engine/internal/logger"
	"github.com/quantlab/backtest-engine/internal/panel"
	"github.com/quantlab/backtest-engine/internal/registry"
	"github.com/quantlab/backtest-engine/internal/report"
	"github.com/quantlab/backtest-engine/internal/resolver"
	"github.com/quantlab/backtest-engine/internal/simulation"
	"github.com/quantlab/backtest-engine/internal/types"
	"github.com/quantlab/backtest-engine/pkg/errors"
	"go.uber.org/zap"
)

// DefaultTimeout is the per-job budget of spec.md §6 job.default_timeout_seconds.
const DefaultTimeout = 600 * time.Second

// DefaultPanelWorkers is the default C4 worker-pool size (spec.md §6
// job.panel_workers).
const DefaultPanelWorkers = 4

var submissionValidator = validator.New()

// Coordinator runs one job's prepare phase (C1-C4) followed by its
// simulate phase (C6-C7), per spec.md §5's scheduling model.
type Coordinator struct {
	Calendar           calendar.Provider
	Gateway            gateway.Gateway
	Registry           *registry.Snapshot
	Log                *logger.Logger
	Timeout            time.Duration
	PanelWorkers       int
	LotSize            float64
	UsercodeTimeout    time.Duration
	TradingDaysPerYear int
}

// Outcome is what a job run produces: a completed report row plus its
// chart payload, or a failure kind/message (spec.md §7 propagation policy:
// any fatal error aborts the job and, if a row was opened, marks it
// failed).
type Outcome struct {
	ReportID string
	Status   types.JobStatus
	Row      types.ReportRow
	Chart    report.ChartPayload
	ErrKind  errors.Kind
	ErrMsg   string
}

// Run executes one job submission end to end. Cancellation is honored at
// the prepare/simulate phase boundary and between simulation days (inside
// simulation.Loop.Run); it is never honored mid-day.
func (c *Coordinator) Run(ctx context.Context, submission types.JobSubmission, strategyFQName string) Outcome {
	reportID := uuid.New().String()

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	strategy, err := c.Registry.MustStrategy(strategyFQName)
	if err != nil {
		return c.invalidRequest(reportID, err)
	}

	if err := submissionValidator.Struct(submission); err != nil {
		return c.invalidRequest(reportID, errors.Wrap(errors.ErrCodeInvalidRequest, "invalid job submission", err))
	}

	if err := strategy.Validate(); err != nil {
		return c.invalidRequest(reportID, err)
	}

	result, days, err := c.prepareAndSimulate(ctx, submission, strategy)
	if err != nil {
		return c.failed(reportID, err)
	}

	assembler := &report.Assembler{Gateway: c.Gateway, TradingDaysPerYear: c.TradingDaysPerYear}

	row, chart, err := assembler.Assemble(ctx, submission, strategy, days, result)
	if err != nil {
		return c.failed(reportID, err)
	}

	row.ReportID = reportID
	row.ReportGenerateAt = time.Now()
	row.ReportStatus = types.JobStatusCompleted

	if c.Log != nil {
		c.Log.Info("job completed",
			zap.String("report_id", reportID),
			zap.String("strategy", strategyFQName),
			zap.Float64("total_return", row.TotalReturn),
		)
	}

	return Outcome{ReportID: reportID, Status: types.JobStatusCompleted, Row: row, Chart: chart}
}

// prepareAndSimulate runs C1-C4 (prepare) then, after the phase-boundary
// cancellation check, C5-C6 (simulate).
func (c *Coordinator) prepareAndSimulate(ctx context.Context, submission types.JobSubmission, strategy types.Strategy) (*simulation.Result, []time.Time, error) {
	days, err := c.Calendar.TradingDays(ctx, submission.StartDate, submission.EndDate)
	if err != nil {
		return nil, nil, err
	}

	resolution, err := resolver.Resolve(c.Registry, strategy)
	if err != nil {
		return nil, nil, err
	}

	symbols, err := c.universeUnion(ctx, strategy, days)
	if err != nil {
		return nil, nil, err
	}

	panelWorkers := c.PanelWorkers
	if panelWorkers <= 0 {
		panelWorkers = DefaultPanelWorkers
	}

	h := harness.New()
	if c.UsercodeTimeout > 0 {
		h.Timeout = c.UsercodeTimeout
	}

	builder := &panel.Builder{
		Calendar: c.Calendar,
		Gateway:  c.Gateway,
		Invoker:  h,
		Workers:  panelWorkers,
	}

	builtPanel, err := builder.Build(ctx, resolution, strategy, symbols, submission.StartDate, submission.EndDate)
	if err != nil {
		return nil, nil, err
	}

	// Phase boundary: cancellation between C4 and C6 is honored here.
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	paramFQNames := make([]string, 0, len(strategy.Params))
	for _, p := range strategy.Params {
		paramFQNames = append(paramFQNames, p.FQName())
	}

	loop := &simulation.Loop{
		Gateway:      c.Gateway,
		Calendar:     c.Calendar,
		Panel:        builtPanel,
		Invoker:      h,
		Log:          c.Log,
		Strategy:     strategy,
		ParamFQNames: paramFQNames,
		InitialFund:  submission.InitialFund,
		SlippageRate: submission.SlippageRate,
		LotSize:      c.LotSize,
	}

	result, err := loop.Run(ctx, days)
	if err != nil {
		return nil, nil, err
	}

	return result, days, nil
}

// universeUnion computes the set of symbols the panel must cover: the
// union of the scope's universe across every trading day in range, since
// index membership can change day to day (spec.md §4.1).
func (c *Coordinator) universeUnion(ctx context.Context, strategy types.Strategy, days []time.Time) ([]string, error) {
	seen := make(map[string]struct{})

	for _, day := range days {
		universe, err := c.Calendar.Universe(ctx, strategy.Scope, day)
		if err != nil {
			return nil, err
		}

		for symbol := range universe {
			seen[symbol] = struct{}{}
		}
	}

	if len(seen) == 0 {
		return nil, errors.NewKindf(errors.KindUniverseEmpty, "no symbols in scope for %s over the requested range", strategy.FQName())
	}

	symbols := make([]string, 0, len(seen))
	for symbol := range seen {
		symbols = append(symbols, symbol)
	}

	sort.Strings(symbols)

	return symbols, nil
}

func (c *Coordinator) invalidRequest(reportID string, err error) Outcome {
	kind := errors.GetKind(err)
	if kind == "" {
		kind = errors.KindInvalidRequest
	}

	return Outcome{
		ReportID: reportID,
		Status:   types.JobStatusFailed,
		ErrKind:  kind,
		ErrMsg:   err.Error(),
	}
}

// failed builds a failure Outcome; an error that carries no Kind and wraps
// context.DeadlineExceeded is reported as JobTimeout, while an error that
// already has a Kind keeps it (spec.md §7 "JobTimeout - overall, fatal").
func (c *Coordinator) failed(reportID string, err error) Outcome {
	kind := errors.GetKind(err)
	msg := err.Error()

	if kind == "" && errors.Is(err, context.DeadlineExceeded) {
		kind = errors.KindJobTimeout
		msg = "job exceeded its time budget"
	}

	if c.Log != nil {
		c.Log.Error("job failed",
			zap.String("report_id", reportID),
			zap.String("kind", string(kind)),
			zap.String("message", msg),
		)
	}

	return Outcome{
		ReportID: reportID,
		Status:   types.JobStatusFailed,
		ErrKind:  kind,
		ErrMsg:   msg,
	}
}
