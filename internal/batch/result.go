// Package batch holds the aggregate outcome shared by the row pipelines.
package batch

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Result is the aggregate outcome of one batch invocation. Success stays true
// when individual rows fail; those are counted in ErrorCount and Errors.
type Result struct {
	Success        bool     `json:"success"`
	ProcessedCount int      `json:"processedCount"`
	SuccessCount   int      `json:"successCount"`
	ErrorCount     int      `json:"errorCount"`
	Errors         []string `json:"errors,omitempty"`
}

// Empty is the zero-count success returned when there is nothing to do.
func Empty() Result {
	return Result{Success: true}
}

// Failure is a zero-count failed result carrying msgs. ErrorCount is
// errorCount, not len(msgs), matching how callers report aggregate failures.
func Failure(errorCount int, msgs ...string) Result {
	return Result{
		Success:    false,
		ErrorCount: errorCount,
		Errors:     msgs,
	}
}

// Unexpected reports a recovered panic or other unforeseen failure.
func Unexpected(prefix string, v any) Result {
	return Failure(1, fmt.Sprintf("%s: %v", prefix, v))
}

// RowError formats a per-row error message.
func RowError(row int, msg string) string {
	return fmt.Sprintf("Row %d: %s", row, msg)
}

// Finish fills ErrorCount and Errors from errs; Errors stays nil when empty.
func (r *Result) Finish(errs []string) {
	r.ErrorCount = len(errs)
	if len(errs) > 0 {
		r.Errors = errs
	} else {
		r.Errors = nil
	}
}

var digitsRe = regexp.MustCompile(`\d+`)

// StartRow returns the first row number in the cell-address part of a range
// such as "Sheet1!E2:F10" (2). A range without digits starts at row 1.
func StartRow(rng string) int {
	addr := rng
	if i := strings.LastIndex(addr, "!"); i >= 0 {
		addr = addr[i+1:]
	}
	m := digitsRe.FindString(addr)
	if m == "" {
		return 1
	}
	n, err := strconv.Atoi(m)
	if err != nil || n < 1 {
		return 1
	}
	return n
}
