package aggregator

import (
	"errors"
	"time"

	"github.com/jgoulah/dailyusage/pkg/models"
	"github.com/samber/lo"
)

// Status is the outcome of one source on one date
type Status string

const (
	StatusWritten Status = "written"
	StatusNoData  Status = "no-data"
	StatusFailed  Status = "failed"
)

// Outcome records what happened to a single source
type Outcome struct {
	Date   time.Time
	Source models.Source
	Status Status
	Usage  models.DailyUsage // Set when Status is StatusWritten
	Err    error             // Set when Status is StatusFailed
}

// RunStatus summarizes a whole run
type RunStatus string

const (
	RunSuccess RunStatus = "success"
	RunPartial RunStatus = "partial-failure"
	RunFailure RunStatus = "failure"
)

// Exit codes reported to the shell
const (
	ExitSuccess = 0
	ExitFailure = 1
	ExitPartial = 2
)

// Result collects the outcomes of a run
type Result struct {
	RunID    string
	Outcomes []Outcome
}

// Failed returns the outcomes of failed sources
func (r Result) Failed() []Outcome {
	return lo.Filter(r.Outcomes, func(o Outcome, _ int) bool {
		return o.Status == StatusFailed
	})
}

// Count returns how many outcomes have the given status
func (r Result) Count(s Status) int {
	return lo.CountBy(r.Outcomes, func(o Outcome) bool {
		return o.Status == s
	})
}

// Status is success when nothing failed and failure when every source failed.
// Sources without readings count as successful.
func (r Result) Status() RunStatus {
	failed := len(r.Failed())
	switch {
	case failed == 0:
		return RunSuccess
	case failed == len(r.Outcomes):
		return RunFailure
	default:
		return RunPartial
	}
}

// ExitCode maps the run status to a process exit code
func (r Result) ExitCode() int {
	switch r.Status() {
	case RunSuccess:
		return ExitSuccess
	case RunPartial:
		return ExitPartial
	default:
		return ExitFailure
	}
}

// Err joins the errors of all failed sources, or returns nil
func (r Result) Err() error {
	errs := lo.Map(r.Failed(), func(o Outcome, _ int) error {
		return o.Err
	})
	return errors.Join(errs...)
}
