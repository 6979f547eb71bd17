// internal/service/credit_engine.go
package service

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	ent "github.com/clubmaster/clubmaster/ent/generated"
	"github.com/clubmaster/clubmaster/ent/generated/task"
	"github.com/clubmaster/clubmaster/pkg/credit"
)

// PerformanceSource supplies a user's completion history for the AI
// estimator's prompt. A nil result is fine; history is advisory.
type PerformanceSource interface {
	UserPastPerformance(ctx context.Context, userID uuid.UUID) (*credit.PastPerformance, error)
}

// CreditEngine orchestrates a task submission end to end: lifecycle
// guard, overdue detection, credit estimation and the atomic ledger
// update. It also drives the periodic overdue sweep.
type CreditEngine struct {
	client    *ent.Client
	estimator credit.Estimator
	ledger    *LedgerUpdater
	history   PerformanceSource

	// now is swappable for deterministic tests.
	now func() time.Time
}

// NewCreditEngine creates the engine. history may be nil.
func NewCreditEngine(
	client *ent.Client,
	estimator credit.Estimator,
	ledger *LedgerUpdater,
	history PerformanceSource,
) *CreditEngine {
	return &CreditEngine{
		client:    client,
		estimator: estimator,
		ledger:    ledger,
		history:   history,
		now:       time.Now,
	}
}

// SubmitRequest is a member's completion submission.
type SubmitRequest struct {
	Description       string
	CompletionMinutes int // 0 means unknown
	Attachments       []string
}

// SubmissionResult is returned on successful completion.
type SubmissionResult struct {
	Task      *ent.Task
	Progress  *ent.ProgressRecord
	Breakdown credit.Breakdown
}

// SubmitTask completes a task on behalf of submitterID. Estimation can
// never fail the submission: any AI problem silently substitutes the
// deterministic formula. Validation and persistence problems are
// returned as coded errors with no partial state change.
func (e *CreditEngine) SubmitTask(
	ctx context.Context,
	taskID, submitterID uuid.UUID,
	req SubmitRequest,
) (*SubmissionResult, error) {
	t, err := e.client.Task.Query().
		Where(task.IDEQ(taskID)).
		Only(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, errTaskNotFound
		}
		return nil, status.Errorf(codes.Unavailable, "loading task: %v", err)
	}

	if err := validateCompletion(t, submitterID, req.Description); err != nil {
		return nil, err
	}
	if req.CompletionMinutes < 0 {
		return nil, status.Error(codes.InvalidArgument, "completion minutes must not be negative")
	}

	now := e.now()
	overdue := IsOverdue(t.DueDate, now, t.Status)

	var history *credit.PastPerformance
	if e.history != nil {
		history, err = e.history.UserPastPerformance(ctx, submitterID)
		if err != nil {
			// History only enriches the AI prompt; estimation proceeds
			// without it.
			log.Printf("past performance lookup failed for user %s: %v", submitterID, err)
			history = nil
		}
	}

	breakdown, err := e.estimator.Estimate(ctx, credit.EstimationInput{
		Difficulty:      t.Difficulty,
		ExpectedMinutes: t.ExpectedMinutes,
		ActualMinutes:   req.CompletionMinutes,
		IsOverdue:       overdue,
		SubmissionText:  req.Description,
		PastPerformance: history,
	})
	if err != nil {
		// Only invalid input reaches here; the chain swallows AI errors.
		return nil, status.Errorf(codes.Internal, "credit estimation: %v", err)
	}

	record, err := e.ledger.ApplyCompletion(ctx, t, breakdown, submitterID, Submission{
		Description:       req.Description,
		CompletionMinutes: req.CompletionMinutes,
		Attachments:       req.Attachments,
	}, overdue, now)
	if err != nil {
		return nil, err
	}

	completed, err := e.client.Task.Get(ctx, t.ID)
	if err != nil {
		return nil, status.Errorf(codes.Unavailable, "reloading task: %v", err)
	}

	return &SubmissionResult{
		Task:      completed,
		Progress:  record,
		Breakdown: breakdown,
	}, nil
}

// RunOverdueSweep flags every open task past its due date. Intended to
// run on a fixed interval; safe to run concurrently with submissions.
func (e *CreditEngine) RunOverdueSweep(ctx context.Context, now time.Time) (int, error) {
	flagged, err := e.ledger.FlagOverdue(ctx, now)
	if err != nil {
		return 0, status.Errorf(codes.Unavailable, "overdue sweep: %v", err)
	}
	if flagged > 0 {
		log.Printf("overdue sweep flagged %d task(s)", flagged)
	}
	return flagged, nil
}
