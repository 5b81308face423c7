package task

import (
	"fmt"
	"time"
)

// Status is the outcome class of a task.
type Status string

const (
	StatusOK      Status = "OK"
	StatusChanged Status = "CHANGED"
	StatusWarning Status = "WARNING"
	StatusFailed  Status = "FAILED"
	StatusSkipped Status = "SKIPPED"
)

// Statuses lists every valid status.
var Statuses = []Status{StatusOK, StatusChanged, StatusWarning, StatusFailed, StatusSkipped}

// Valid reports whether s is one of the defined statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusOK, StatusChanged, StatusWarning, StatusFailed, StatusSkipped:
		return true
	}
	return false
}

// Blocking reports whether s halts the run.
func (s Status) Blocking() bool {
	return s == StatusFailed
}

// Result is what a task reports for one host.
type Result struct {
	Status  Status
	Message string
	Data    any
}

func OK(msg string) Result      { return Result{Status: StatusOK, Message: msg} }
func Changed(msg string) Result { return Result{Status: StatusChanged, Message: msg} }
func Warning(msg string) Result { return Result{Status: StatusWarning, Message: msg} }
func Failed(msg string) Result  { return Result{Status: StatusFailed, Message: msg} }
func Skipped(msg string) Result { return Result{Status: StatusSkipped, Message: msg} }

// Failedf formats a FAILED result.
func Failedf(format string, args ...any) Result {
	return Failed(fmt.Sprintf(format, args...))
}

// Changedf formats a CHANGED result.
func Changedf(format string, args ...any) Result {
	return Changed(fmt.Sprintf(format, args...))
}

// OKf formats an OK result.
func OKf(format string, args ...any) Result {
	return OK(fmt.Sprintf(format, args...))
}

// WithData returns a copy of r carrying data.
func (r Result) WithData(data any) Result {
	r.Data = data
	return r
}

// HostResult is a task result attributed to a host. Build it with
// NewHostResult so that Failed always agrees with the status.
type HostResult struct {
	Host     string
	Task     string
	Failed   bool
	Result   Result
	Duration time.Duration
}

// NewHostResult wraps res for host. Failed is set exactly when the status
// is FAILED.
func NewHostResult(host, taskName string, res Result, d time.Duration) HostResult {
	return HostResult{
		Host:     host,
		Task:     taskName,
		Failed:   res.Status == StatusFailed,
		Result:   res,
		Duration: d,
	}
}
