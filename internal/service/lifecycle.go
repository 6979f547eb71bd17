// internal/service/lifecycle.go
package service

import (
	"strings"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	ent "github.com/clubmaster/clubmaster/ent/generated"
	"github.com/clubmaster/clubmaster/ent/generated/task"
)

// Stable error values for the validation taxonomy. Persistence problems
// are reported separately as Unavailable/Internal.
var (
	errTaskNotFound     = status.Error(codes.NotFound, "task not found")
	errAlreadyCompleted = status.Error(codes.FailedPrecondition, "this task has already been completed")
	errNotAssignee      = status.Error(codes.PermissionDenied, "you are not assigned to this task")
	errEmptySubmission  = status.Error(codes.InvalidArgument, "submission description is required")
	errSelfAssignment   = status.Error(codes.InvalidArgument, "self-task assignment is not allowed")
)

// taskTransitions is the full lifecycle: pending may move to in_progress
// or straight to completed; completed is terminal.
var taskTransitions = map[task.Status][]task.Status{
	task.StatusPending:    {task.StatusInProgress, task.StatusCompleted},
	task.StatusInProgress: {task.StatusCompleted},
	task.StatusCompleted:  {},
}

// CanTransition reports whether a status change is legal.
func CanTransition(from, to task.Status) bool {
	for _, next := range taskTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// validateCompletion is the submission-time guard. The ledger's
// compare-and-swap is the authoritative duplicate check under
// concurrency; this pre-check gives early, well-typed rejections.
//
// Assignee equality is verified upstream by authorization, but the
// engine re-asserts it and fails closed.
func validateCompletion(t *ent.Task, submitterID uuid.UUID, description string) error {
	if strings.TrimSpace(description) == "" {
		return errEmptySubmission
	}
	if !CanTransition(t.Status, task.StatusCompleted) {
		return errAlreadyCompleted
	}
	if t.AssigneeID != submitterID {
		return errNotAssignee
	}
	return nil
}

// validateAssignment is the creation-time guard.
func validateAssignment(assignerID, assigneeID uuid.UUID, difficulty int) error {
	if assignerID == assigneeID {
		return errSelfAssignment
	}
	if difficulty < 1 || difficulty > 10 {
		return status.Error(codes.InvalidArgument, "difficulty must be between 1 and 10")
	}
	return nil
}
