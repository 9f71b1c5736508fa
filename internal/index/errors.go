package index

import (
	"fmt"
	"time"
)

// ValidationError reports a malformed or out-of-range domain value.
// It is fatal to the operation that raised it and is never repaired
// silently.
type ValidationError struct {
	Field  string
	Ticker string
	Date   time.Time
	Reason string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s", e.Field)
	if e.Ticker != "" {
		msg += fmt.Sprintf(" for %s", e.Ticker)
	}
	if !e.Date.IsZero() {
		msg += fmt.Sprintf(" on %s", e.Date.Format("2006-01-02"))
	}
	return msg + ": " + e.Reason
}

// InsufficientDataError reports that fewer data points were available
// than an operation requires. It is recoverable by caller policy:
// proceed with what is there, skip the day, or abort the batch.
type InsufficientDataError struct {
	Date time.Time
	What string
	Need int
	Have int
}

func (e *InsufficientDataError) Error() string {
	msg := fmt.Sprintf("insufficient %s: need %d, have %d", e.What, e.Need, e.Have)
	if !e.Date.IsZero() {
		msg += " on " + e.Date.Format("2006-01-02")
	}
	return msg
}

// ContinuityViolationError reports a non-positive pre-adjustment market
// value, which makes the divisor update undefined. It indicates corrupt
// upstream data and must abort the day rather than divide.
type ContinuityViolationError struct {
	Date        time.Time
	ValueBefore float64
}

func (e *ContinuityViolationError) Error() string {
	return fmt.Sprintf("index continuity broken on %s: pre-adjustment market value %v is not positive",
		e.Date.Format("2006-01-02"), e.ValueBefore)
}
