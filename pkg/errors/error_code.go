package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// ErrCodeUnknown represents a general unknown error (1-99 range).
	ErrCodeUnknown ErrorCode = 1

	// ErrCodeInvalidParameter indicates an invalid parameter was provided (100-199 range).
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidOrder         ErrorCode = 102
	ErrCodeInsufficientData     ErrorCode = 106
	ErrCodeInvalidType          ErrorCode = 107
	ErrCodeInvalidPeriod        ErrorCode = 108
	ErrCodeMissingParameter     ErrorCode = 109
	ErrCodeInvalidAggFunc       ErrorCode = 110

	// ErrCodeDataNotFound indicates requested data was not found (200-299 range).
	ErrCodeDataNotFound          ErrorCode = 200
	ErrCodeDataSourceUnavailable ErrorCode = 201
	ErrCodeQueryFailed           ErrorCode = 202
	ErrCodeNoDataFound           ErrorCode = 204

	// ErrCodeIndicatorNotFound indicates a requested indicator was not found (300-399 range).
	ErrCodeIndicatorNotFound      ErrorCode = 300
	ErrCodeIndicatorAlreadyExists ErrorCode = 301
	ErrCodeIndicatorCalculation   ErrorCode = 302

	// ErrCodeStrategyNotLoaded indicates a strategy was not loaded (400-499 range).
	ErrCodeStrategyNotLoaded    ErrorCode = 400
	ErrCodeStrategyConfigError  ErrorCode = 401
	ErrCodeStrategyRuntimeError ErrorCode = 402
	ErrCodeUnsupportedStrategy  ErrorCode = 403

	// ErrCodeOrderFailed indicates an order execution failed (500-599 range).
	ErrCodeOrderFailed       ErrorCode = 500
	ErrCodePositionNotFound  ErrorCode = 501
	ErrCodeMarketDataMissing ErrorCode = 502

	// ErrCodeBacktestStateNil indicates backtest state is nil (600-699 range).
	ErrCodeBacktestStateNil    ErrorCode = 600
	ErrCodeBacktestInitFailed  ErrorCode = 601
	ErrCodeBacktestConfigError ErrorCode = 602

	// ErrCodeMarketDataFetchFailed indicates market data fetching failed (700-799 range).
	ErrCodeMarketDataFetchFailed ErrorCode = 700
	ErrCodeMarketDataParseFailed ErrorCode = 702

	// ErrCodeCallbackFailed indicates a callback execution failed (800-899 range).
	ErrCodeCallbackFailed ErrorCode = 800

	// Spec error taxonomy (900-999 range): resolver, preparation, and
	// execution failures that flow verbatim into BacktestReport.message.
	ErrCodeCyclicDependency      ErrorCode = 900
	ErrCodeMissingParam          ErrorCode = 901
	ErrCodeMissingIndicator      ErrorCode = 902
	ErrCodeCalendarUnavailable   ErrorCode = 903
	ErrCodeUniverseEmpty         ErrorCode = 904
	ErrCodeUserIndicatorError    ErrorCode = 905
	ErrCodeUserStrategyError     ErrorCode = 906
	ErrCodeUserCodeTimeout       ErrorCode = 907
	ErrCodeJobTimeout       ErrorCode = 908
	ErrCodeInvalidRequest   ErrorCode = 909
)

// Kind is the spec's string error kind, surfaced verbatim in report rows
// and job status (spec.md §7). It is distinct from ErrorCode (an internal,
// stable numeric identity) because external consumers match on Kind.
type Kind string

const (
	KindCyclicDependency      Kind = "CyclicDependency"
	KindMissingParam          Kind = "MissingParam"
	KindMissingIndicator      Kind = "MissingIndicator"
	KindDataSourceUnavailable Kind = "DataSourceUnavailable"
	KindCalendarUnavailable   Kind = "CalendarUnavailable"
	KindUniverseEmpty         Kind = "UniverseEmpty"
	KindUserIndicatorError    Kind = "UserIndicatorError"
	KindUserStrategyError     Kind = "UserStrategyError"
	KindUserCodeTimeout       Kind = "UserCodeTimeout"
	KindJobTimeout            Kind = "JobTimeout"
	KindInvalidRequest        Kind = "InvalidRequest"
)

// kindToCode maps a spec Kind to its internal ErrorCode for HasCode checks.
var kindToCode = map[Kind]ErrorCode{
	KindCyclicDependency:      ErrCodeCyclicDependency,
	KindMissingParam:          ErrCodeMissingParam,
	KindMissingIndicator:      ErrCodeMissingIndicator,
	KindDataSourceUnavailable: ErrCodeDataSourceUnavailable,
	KindCalendarUnavailable:   ErrCodeCalendarUnavailable,
	KindUniverseEmpty:         ErrCodeUniverseEmpty,
	KindUserIndicatorError:    ErrCodeUserIndicatorError,
	KindUserStrategyError:     ErrCodeUserStrategyError,
	KindUserCodeTimeout:       ErrCodeUserCodeTimeout,
	KindJobTimeout:            ErrCodeJobTimeout,
	KindInvalidRequest:        ErrCodeInvalidRequest,
}

// CodeForKind returns the ErrorCode associated with a spec Kind.
func CodeForKind(k Kind) ErrorCode {
	return kindToCode[k]
}
