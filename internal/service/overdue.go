// internal/service/overdue.go
package service

import (
	"time"

	"github.com/clubmaster/clubmaster/ent/generated/task"
)

// IsOverdue reports whether a task is past due at the given instant. It
// is the single overdue predicate for both submission-time evaluation and
// the periodic sweep, so the two paths can never disagree.
//
// A task without a due date is never overdue. Once a task is completed
// the flag frozen on the task row is authoritative, not this function.
func IsOverdue(dueDate *time.Time, now time.Time, currentStatus task.Status) bool {
	if dueDate == nil {
		return false
	}
	if currentStatus == task.StatusCompleted {
		return false
	}
	return now.After(*dueDate)
}
