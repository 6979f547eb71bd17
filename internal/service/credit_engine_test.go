// internal/service/credit_engine_test.go
package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	ent "github.com/clubmaster/clubmaster/ent/generated"
	"github.com/clubmaster/clubmaster/ent/generated/task"
	"github.com/clubmaster/clubmaster/pkg/credit"
)

// stubEstimator records its input and returns a canned breakdown.
type stubEstimator struct {
	mu    sync.Mutex
	input credit.EstimationInput
	out   credit.Breakdown
	err   error
}

func (s *stubEstimator) Estimate(_ context.Context, in credit.EstimationInput) (credit.Breakdown, error) {
	s.mu.Lock()
	s.input = in
	s.mu.Unlock()
	if s.err != nil {
		return credit.Breakdown{}, s.err
	}
	return s.out, nil
}

type engineFixture struct {
	client *ent.Client
	h      *TestHelpers
	engine *CreditEngine

	lead   *ent.User
	member *ent.User
	club   *ent.Club
}

func newEngineFixture(t *testing.T, estimator credit.Estimator) *engineFixture {
	client, _ := setupTestDB(t)
	h := NewTestHelpers(t, client)

	lead := h.CreateTestLead("lead@club.dev", "lead")
	member := h.CreateTestUser("member@club.dev", "member")
	club := h.CreateTestClub("Robotics", lead, member)

	return &engineFixture{
		client: client,
		h:      h,
		engine: NewCreditEngine(client, estimator, NewLedgerUpdater(client), nil),
		lead:   lead,
		member: member,
		club:   club,
	}
}

func TestCreditEngineSubmitTask_Fallback(t *testing.T) {
	fix := newEngineFixture(t, credit.NewChain(nil, credit.FallbackEstimator{}, time.Second))
	ctx := context.Background()

	testTask := fix.h.CreateTestTask(fix.club, fix.lead, fix.member, TaskFixture{
		Difficulty:      5,
		ExpectedMinutes: 240,
	})

	result, err := fix.engine.SubmitTask(ctx, testTask.ID, fix.member.ID, SubmitRequest{
		Description:       "Demo rig assembled and tested",
		CompletionMinutes: 120,
	})
	require.NoError(t, err)

	// Half the expected time: factor 1.5 on a base of 10.
	assert.Equal(t, 15, result.Breakdown.TotalCredits)
	assert.Equal(t, 1.5, result.Breakdown.TimeFactor)
	assert.Equal(t, credit.FallbackExplanation, result.Breakdown.Explanation)

	assert.Equal(t, task.StatusCompleted, result.Task.Status)
	assert.Equal(t, 15, result.Task.Credits)
	assert.Equal(t, 15, result.Progress.CreditsEarned)

	member, err := fix.client.User.Get(ctx, fix.member.ID)
	require.NoError(t, err)
	assert.Equal(t, 15, member.TotalCredits)
}

func TestCreditEngineSubmitTask_OverduePenalty(t *testing.T) {
	fix := newEngineFixture(t, credit.FallbackEstimator{})
	ctx := context.Background()

	due := time.Now().Add(-24 * time.Hour)
	testTask := fix.h.CreateTestTask(fix.club, fix.lead, fix.member, TaskFixture{
		Difficulty:      8,
		ExpectedMinutes: 240,
		DueDate:         &due,
	})

	result, err := fix.engine.SubmitTask(ctx, testTask.ID, fix.member.ID, SubmitRequest{
		Description:       "Finished late, sorry",
		CompletionMinutes: 600,
	})
	require.NoError(t, err)

	// Base 16, slow-time factor 0.5, overdue multiplier and late penalty.
	assert.Equal(t, 6, result.Breakdown.TotalCredits)
	assert.Equal(t, 4.0, result.Breakdown.LatePenalty)

	// Completion freezes the overdue flag even though the sweep never ran.
	assert.True(t, result.Task.IsOverdue)
}

func TestCreditEngineSubmitTask_EstimatorInput(t *testing.T) {
	stub := &stubEstimator{out: credit.Breakdown{
		TotalCredits:     20,
		TimeFactor:       1.2,
		DifficultyFactor: 14,
		QualityFactor:    1.1,
		BonusCredits:     3,
		Explanation:      "Thorough submission with photos",
	}}
	fix := newEngineFixture(t, stub)
	ctx := context.Background()

	testTask := fix.h.CreateTestTask(fix.club, fix.lead, fix.member, TaskFixture{
		Difficulty:      7,
		ExpectedMinutes: 180,
	})

	result, err := fix.engine.SubmitTask(ctx, testTask.ID, fix.member.ID, SubmitRequest{
		Description:       "Full writeup attached",
		CompletionMinutes: 150,
		Attachments:       []string{"https://club.dev/writeup.pdf"},
	})
	require.NoError(t, err)

	assert.Equal(t, 7, stub.input.Difficulty)
	assert.Equal(t, 180, stub.input.ExpectedMinutes)
	assert.Equal(t, 150, stub.input.ActualMinutes)
	assert.False(t, stub.input.IsOverdue)
	assert.Equal(t, "Full writeup attached", stub.input.SubmissionText)

	assert.Equal(t, 20, result.Progress.CreditsEarned)
	assert.Equal(t, "Thorough submission with photos", result.Progress.Explanation)
	assert.Equal(t, []string{"https://club.dev/writeup.pdf"}, result.Task.SubmissionAttachments)
}

func TestCreditEngineSubmitTask_Validation(t *testing.T) {
	fix := newEngineFixture(t, credit.FallbackEstimator{})
	ctx := context.Background()

	testTask := fix.h.CreateTestTask(fix.club, fix.lead, fix.member, TaskFixture{})

	t.Run("unknown task", func(t *testing.T) {
		_, err := fix.engine.SubmitTask(ctx, uuid.New(), fix.member.ID, SubmitRequest{Description: "Done"})
		require.Error(t, err)
		assert.Equal(t, codes.NotFound, status.Code(err))
	})

	t.Run("empty description", func(t *testing.T) {
		_, err := fix.engine.SubmitTask(ctx, testTask.ID, fix.member.ID, SubmitRequest{Description: ""})
		require.Error(t, err)
		assert.Equal(t, codes.InvalidArgument, status.Code(err))
	})

	t.Run("negative minutes", func(t *testing.T) {
		_, err := fix.engine.SubmitTask(ctx, testTask.ID, fix.member.ID, SubmitRequest{
			Description:       "Done",
			CompletionMinutes: -10,
		})
		require.Error(t, err)
		assert.Equal(t, codes.InvalidArgument, status.Code(err))
	})

	t.Run("not the assignee", func(t *testing.T) {
		_, err := fix.engine.SubmitTask(ctx, testTask.ID, fix.lead.ID, SubmitRequest{Description: "Done"})
		require.Error(t, err)
		assert.Equal(t, codes.PermissionDenied, status.Code(err))
	})

	// Nothing above should have left any state behind.
	count, err := fix.client.ProgressRecord.Query().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestCreditEngineSubmitTask_Duplicate(t *testing.T) {
	fix := newEngineFixture(t, credit.FallbackEstimator{})
	ctx := context.Background()

	testTask := fix.h.CreateTestTask(fix.club, fix.lead, fix.member, TaskFixture{})

	_, err := fix.engine.SubmitTask(ctx, testTask.ID, fix.member.ID, SubmitRequest{Description: "Done"})
	require.NoError(t, err)

	_, err = fix.engine.SubmitTask(ctx, testTask.ID, fix.member.ID, SubmitRequest{Description: "Done again"})
	require.Error(t, err)
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	// Exactly one award.
	count, err := fix.client.ProgressRecord.Query().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCreditEngineSubmitTask_EstimatorFailureIsInternal(t *testing.T) {
	// Only a bare estimator can surface an error; behind the chain the
	// formula always answers.
	stub := &stubEstimator{err: errors.New("model unavailable")}
	fix := newEngineFixture(t, stub)
	ctx := context.Background()

	testTask := fix.h.CreateTestTask(fix.club, fix.lead, fix.member, TaskFixture{})

	_, err := fix.engine.SubmitTask(ctx, testTask.ID, fix.member.ID, SubmitRequest{Description: "Done"})
	require.Error(t, err)
	assert.Equal(t, codes.Internal, status.Code(err))

	reloaded, err := fix.client.Task.Get(ctx, testTask.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusPending, reloaded.Status)
}

func TestCreditEngineRunOverdueSweep(t *testing.T) {
	fix := newEngineFixture(t, credit.FallbackEstimator{})
	ctx := context.Background()

	now := time.Now().UTC()
	past := now.Add(-2 * time.Hour)
	future := now.Add(2 * time.Hour)

	pastDue := fix.h.CreateTestTask(fix.club, fix.lead, fix.member, TaskFixture{Title: "Past due", DueDate: &past})
	fix.h.CreateTestTask(fix.club, fix.lead, fix.member, TaskFixture{Title: "Future due", DueDate: &future})

	flagged, err := fix.engine.RunOverdueSweep(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, flagged)

	reloaded, err := fix.client.Task.Get(ctx, pastDue.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.IsOverdue)

	// An overdue task can still be submitted; the award just reflects it.
	result, err := fix.engine.SubmitTask(ctx, pastDue.ID, fix.member.ID, SubmitRequest{Description: "Late but done"})
	require.NoError(t, err)
	assert.True(t, result.Task.IsOverdue)
	assert.Equal(t, task.StatusCompleted, result.Task.Status)
}

func TestCreditEngineSubmitTask_FrozenClock(t *testing.T) {
	fix := newEngineFixture(t, credit.FallbackEstimator{})
	ctx := context.Background()

	frozen := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	fix.engine.now = func() time.Time { return frozen }

	due := frozen.Add(time.Minute)
	testTask := fix.h.CreateTestTask(fix.club, fix.lead, fix.member, TaskFixture{DueDate: &due})

	// One minute before the deadline: on time.
	result, err := fix.engine.SubmitTask(ctx, testTask.ID, fix.member.ID, SubmitRequest{Description: "Just in time"})
	require.NoError(t, err)
	assert.False(t, result.Task.IsOverdue)
	require.NotNil(t, result.Task.SubmittedAt)
	assert.True(t, result.Task.SubmittedAt.Equal(frozen))
}
