// internal/service/credit_service_test.go
package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	creditv1 "github.com/clubmaster/clubmaster/api/proto/credit/v1/generated"
	"github.com/clubmaster/clubmaster/internal/repository"
	"github.com/clubmaster/clubmaster/pkg/credit"
)

func newCreditService(t *testing.T) (*CreditService, *engineFixture) {
	client, dsn := setupTestDB(t)
	h := NewTestHelpers(t, client)

	lead := h.CreateTestLead("lead@club.dev", "lead")
	member := h.CreateTestUser("member@club.dev", "member")
	club := h.CreateTestClub("Robotics", lead, member)

	ledger := NewLedgerUpdater(client)
	rollup := repository.NewRollupRepository(openReadDB(t, dsn))
	engine := NewCreditEngine(client, credit.FallbackEstimator{}, ledger, rollup)

	fix := &engineFixture{
		client: client,
		h:      h,
		engine: engine,
		lead:   lead,
		member: member,
		club:   club,
	}
	return NewCreditService(client, rollup, ledger, engine), fix
}

func submitFixtureTasks(t *testing.T, fix *engineFixture, count int) {
	t.Helper()
	for i := 0; i < count; i++ {
		task := fix.h.CreateTestTask(fix.club, fix.lead, fix.member, TaskFixture{
			Title:           "Task " + string(rune('A'+i)),
			Difficulty:      5,
			ExpectedMinutes: 240,
		})
		_, err := fix.engine.SubmitTask(authedContext(fix.member), task.ID, fix.member.ID, SubmitRequest{
			Description:       "Done",
			CompletionMinutes: 120,
		})
		require.NoError(t, err)
	}
}

func TestCreditServiceGetUserCredits(t *testing.T) {
	svc, fix := newCreditService(t)

	submitFixtureTasks(t, fix, 3)

	resp, err := svc.GetUserCredits(authedContext(fix.member), &creditv1.GetUserCreditsRequest{})
	require.NoError(t, err)

	// Each submission awarded 15; stored and derived totals agree.
	assert.Equal(t, int32(45), resp.TotalCredits)
	assert.Equal(t, int32(45), resp.DerivedTotal)
	assert.Equal(t, int32(3), resp.CompletedTasks)
	assert.Equal(t, 15.0, resp.AvgCredits)
	assert.Len(t, resp.Records, 3)

	t.Run("other user by id", func(t *testing.T) {
		resp, err := svc.GetUserCredits(authedContext(fix.lead), &creditv1.GetUserCreditsRequest{
			UserId: fix.member.ID.String(),
		})
		require.NoError(t, err)
		assert.Equal(t, int32(45), resp.TotalCredits)
	})

	t.Run("no history", func(t *testing.T) {
		resp, err := svc.GetUserCredits(authedContext(fix.lead), &creditv1.GetUserCreditsRequest{})
		require.NoError(t, err)
		assert.Equal(t, int32(0), resp.TotalCredits)
		assert.Equal(t, int32(0), resp.CompletedTasks)
		assert.Empty(t, resp.Records)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := svc.GetUserCredits(authedContext(fix.lead), &creditv1.GetUserCreditsRequest{
			UserId: "22222222-2222-2222-2222-222222222222",
		})
		require.Error(t, err)
		assert.Equal(t, codes.NotFound, status.Code(err))
	})
}

func TestCreditServiceGetClubRollup(t *testing.T) {
	svc, fix := newCreditService(t)

	second := fix.h.CreateTestUser("second@club.dev", "second")
	_, err := fix.client.Club.UpdateOneID(fix.club.ID).AddMembers(second).Save(authedContext(fix.lead))
	require.NoError(t, err)

	submitFixtureTasks(t, fix, 2) // member earns 30

	task := fix.h.CreateTestTask(fix.club, fix.lead, second, TaskFixture{
		Title:           "Second's task",
		Difficulty:      5,
		ExpectedMinutes: 240,
	})
	_, err = fix.engine.SubmitTask(authedContext(second), task.ID, second.ID, SubmitRequest{
		Description:       "Done",
		CompletionMinutes: 240,
	})
	require.NoError(t, err) // earns 10

	resp, err := svc.GetClubRollup(authedContext(fix.lead), &creditv1.GetClubRollupRequest{
		ClubId: fix.club.ID.String(),
	})
	require.NoError(t, err)

	assert.Equal(t, int32(40), resp.TotalCredits)
	assert.Equal(t, int32(3), resp.CompletedTasks)
	require.Len(t, resp.Members, 2)

	// Sorted by credits descending.
	assert.Equal(t, "member", resp.Members[0].Username)
	assert.Equal(t, int32(30), resp.Members[0].TotalCredits)
	assert.Equal(t, "second", resp.Members[1].Username)
	assert.Equal(t, int32(10), resp.Members[1].TotalCredits)

	t.Run("empty club", func(t *testing.T) {
		resp, err := svc.GetClubRollup(authedContext(fix.lead), &creditv1.GetClubRollupRequest{
			ClubId: "33333333-3333-3333-3333-333333333333",
		})
		require.NoError(t, err)
		assert.Equal(t, int32(0), resp.TotalCredits)
		assert.Empty(t, resp.Members)
	})
}

func TestCreditServiceAttachFeedback(t *testing.T) {
	svc, fix := newCreditService(t)

	submitFixtureTasks(t, fix, 1)
	records, err := fix.client.ProgressRecord.Query().All(authedContext(fix.lead))
	require.NoError(t, err)
	require.Len(t, records, 1)
	recordID := records[0].ID.String()

	t.Run("lead attaches feedback", func(t *testing.T) {
		resp, err := svc.AttachFeedback(authedContext(fix.lead), &creditv1.AttachFeedbackRequest{
			RecordId: recordID,
			Content:  "Great work on the wiring.",
		})
		require.NoError(t, err)
		assert.Equal(t, "Great work on the wiring.", resp.Record.FeedbackContent)
		assert.Equal(t, fix.lead.ID.String(), resp.Record.FeedbackBy)
		// The award is immutable.
		assert.Equal(t, int32(15), resp.Record.CreditsEarned)
	})

	t.Run("member may not give feedback", func(t *testing.T) {
		_, err := svc.AttachFeedback(authedContext(fix.member), &creditv1.AttachFeedbackRequest{
			RecordId: recordID,
			Content:  "Self praise",
		})
		require.Error(t, err)
		assert.Equal(t, codes.PermissionDenied, status.Code(err))
	})

	t.Run("empty content", func(t *testing.T) {
		_, err := svc.AttachFeedback(authedContext(fix.lead), &creditv1.AttachFeedbackRequest{
			RecordId: recordID,
		})
		require.Error(t, err)
		assert.Equal(t, codes.InvalidArgument, status.Code(err))
	})
}
