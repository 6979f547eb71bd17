// internal/service/ledger.go
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	ent "github.com/clubmaster/clubmaster/ent/generated"
	"github.com/clubmaster/clubmaster/ent/generated/progressrecord"
	"github.com/clubmaster/clubmaster/ent/generated/task"
	"github.com/clubmaster/clubmaster/pkg/credit"
)

// LedgerUpdater owns every durable credit mutation. Completion is a
// single transaction: task row, progress record and user total move
// together or not at all.
type LedgerUpdater struct {
	client *ent.Client
}

// NewLedgerUpdater creates a ledger updater over the given Ent client.
func NewLedgerUpdater(client *ent.Client) *LedgerUpdater {
	return &LedgerUpdater{
		client: client,
	}
}

// Submission carries the member-provided completion details.
type Submission struct {
	Description       string
	CompletionMinutes int // 0 means unknown
	Attachments       []string
}

// ApplyCompletion marks the task completed, creates its single progress
// record and increments the submitter's running total, atomically.
//
// The status update is conditional on the task not being completed yet,
// so of two concurrent submissions exactly one commits; the loser gets
// the same already-completed error as a late sequential duplicate.
func (l *LedgerUpdater) ApplyCompletion(
	ctx context.Context,
	t *ent.Task,
	breakdown credit.Breakdown,
	submitterID uuid.UUID,
	sub Submission,
	isOverdue bool,
	now time.Time,
) (*ent.ProgressRecord, error) {
	tx, err := l.client.Tx(ctx)
	if err != nil {
		return nil, status.Errorf(codes.Unavailable, "starting transaction: %v", err)
	}

	attachments := sub.Attachments
	if attachments == nil {
		attachments = []string{}
	}

	// Compare-and-swap on status: zero affected rows means another
	// submission won.
	n, err := tx.Task.Update().
		Where(
			task.IDEQ(t.ID),
			task.StatusNEQ(task.StatusCompleted),
		).
		SetStatus(task.StatusCompleted).
		SetIsOverdue(isOverdue).
		SetSubmittedAt(now).
		SetSubmissionDescription(sub.Description).
		SetSubmissionAttachments(attachments).
		SetCredits(breakdown.TotalCredits).
		Save(ctx)
	if err != nil {
		return nil, rollback(tx, status.Errorf(codes.Unavailable, "completing task: %v", err))
	}
	if n == 0 {
		_ = tx.Rollback()
		return nil, errAlreadyCompleted
	}

	create := tx.ProgressRecord.Create().
		SetUserID(submitterID).
		SetTaskID(t.ID).
		SetClubID(t.ClubID).
		SetStatus(progressrecord.StatusCompleted).
		SetSubmittedAt(now).
		SetCreditsEarned(breakdown.TotalCredits).
		SetTimeFactor(breakdown.TimeFactor).
		SetDifficultyFactor(breakdown.DifficultyFactor).
		SetQualityFactor(breakdown.QualityFactor).
		SetBonusCredits(breakdown.BonusCredits).
		SetLatePenalty(breakdown.LatePenalty).
		SetExplanation(breakdown.Explanation)

	if sub.CompletionMinutes > 0 {
		create = create.SetCompletionMinutes(sub.CompletionMinutes)
	}

	record, err := create.Save(ctx)
	if err != nil {
		if ent.IsConstraintError(err) {
			// Unique task_id index: a record already exists.
			return nil, rollback(tx, errAlreadyCompleted)
		}
		return nil, rollback(tx, status.Errorf(codes.Unavailable, "recording progress: %v", err))
	}

	if err := tx.User.
		UpdateOneID(submitterID).
		AddTotalCredits(breakdown.TotalCredits).
		Exec(ctx); err != nil {
		return nil, rollback(tx, status.Errorf(codes.Unavailable, "updating user credits: %v", err))
	}

	if err := tx.Commit(); err != nil {
		return nil, status.Errorf(codes.Unavailable, "committing completion: %v", err)
	}

	return record, nil
}

// FlagOverdue flips is_overdue on every open task whose due date has
// passed. Bulk, idempotent, no credit impact; racing a completion is
// safe because the predicate re-checks status at write time.
func (l *LedgerUpdater) FlagOverdue(ctx context.Context, now time.Time) (int, error) {
	return l.client.Task.Update().
		Where(
			task.DueDateLT(now),
			task.StatusNEQ(task.StatusCompleted),
			task.IsOverdue(false),
		).
		SetIsOverdue(true).
		Save(ctx)
}

// RecomputeUserTotal replays the user's progress records and returns the
// sum of credits earned. The stored running total must always equal this
// value; it exists for audits and tests, not the hot path.
func (l *LedgerUpdater) RecomputeUserTotal(ctx context.Context, userID uuid.UUID) (int, error) {
	earned, err := l.client.ProgressRecord.Query().
		Where(progressrecord.UserIDEQ(userID)).
		Select(progressrecord.FieldCreditsEarned).
		Ints(ctx)
	if err != nil {
		return 0, fmt.Errorf("replaying progress records: %w", err)
	}

	total := 0
	for _, credits := range earned {
		total += credits
	}
	return total, nil
}

// AttachFeedback sets the feedback fields on a progress record, the one
// mutation permitted after creation. Re-attaching overwrites.
func (l *LedgerUpdater) AttachFeedback(
	ctx context.Context,
	recordID, giverID uuid.UUID,
	content string,
	now time.Time,
) (*ent.ProgressRecord, error) {
	if strings.TrimSpace(content) == "" {
		return nil, status.Error(codes.InvalidArgument, "feedback content is required")
	}

	record, err := l.client.ProgressRecord.
		UpdateOneID(recordID).
		SetFeedbackBy(giverID).
		SetFeedbackContent(content).
		SetFeedbackAt(now).
		Save(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, status.Error(codes.NotFound, "progress record not found")
		}
		return nil, status.Errorf(codes.Unavailable, "attaching feedback: %v", err)
	}
	return record, nil
}

// Helper function for transaction rollback
func rollback(tx *ent.Tx, err error) error {
	if rerr := tx.Rollback(); rerr != nil {
		err = fmt.Errorf("%w: %v", err, rerr)
	}
	return err
}
