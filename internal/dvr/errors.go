// SPDX-License-Identifier: MIT

package dvr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrJobNotFound is returned for lookups of unknown job ids.
	ErrJobNotFound = errors.New("job not found")

	// ErrPastSchedule is returned when a requested recording window has
	// already elapsed at schedule time.
	ErrPastSchedule = errors.New("recording window already elapsed")

	// ErrNotReschedulable is returned when Reschedule targets a job that is
	// no longer in the scheduled state.
	ErrNotReschedulable = errors.New("only scheduled jobs can be rescheduled")

	// ErrNotCancellable is returned when Cancel targets a job that already
	// started or finished; running jobs are stopped, not cancelled.
	ErrNotCancellable = errors.New("only scheduled jobs can be cancelled")
)

// ConflictError rejects a schedule request whose window overlaps too many
// existing jobs. It carries the full blocking list so the caller can decide
// to force-schedule through a different path.
type ConflictError struct {
	Conflicting []Job
}

func (e *ConflictError) Error() string {
	titles := make([]string, 0, len(e.Conflicting))
	for _, j := range e.Conflicting {
		titles = append(titles, fmt.Sprintf("%s (%s)", j.ProgramTitle, j.ID))
	}
	return fmt.Sprintf("recording window conflicts with %d job(s): %s",
		len(e.Conflicting), strings.Join(titles, ", "))
}
