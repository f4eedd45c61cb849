package types

import "time"

// JobSubmission is the job-submission input of spec.md §6. Struct tags wire
// github.com/go-playground/validator/v10 so internal/job can turn a bad
// submission into an InvalidRequest before any report row is opened.
type JobSubmission struct {
	Creator    Creator `validate:"required"`
	Strategy   string  `validate:"required"`
	StartDate  time.Time `validate:"required"`
	EndDate    time.Time `validate:"required,gtefield=StartDate"`
	InitialFund float64 `validate:"required,gt=0"`

	// SlippageRate defaults to 0 when unset.
	SlippageRate float64 `validate:"gte=0,lte=0.1"`
	// BenchmarkTsCode defaults to "000300.SH" when empty.
	BenchmarkTsCode string
}
