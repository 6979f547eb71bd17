// internal/repository/rollup_repository_test.go
package repository

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ent "github.com/clubmaster/clubmaster/ent/generated"
	"github.com/clubmaster/clubmaster/ent/generated/enttest"
	"github.com/clubmaster/clubmaster/ent/generated/progressrecord"
	"github.com/clubmaster/clubmaster/ent/generated/user"

	_ "github.com/mattn/go-sqlite3"
)

var repoDBSeq atomic.Int64

func setupRepoDB(t *testing.T) (*ent.Client, *sqlx.DB) {
	dsn := fmt.Sprintf("file:repo_test_%d?mode=memory&cache=shared&_fk=1", repoDBSeq.Add(1))
	client := enttest.Open(t, "sqlite3", dsn)

	db, err := sqlx.Open("sqlite3", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return client, db
}

type rollupFixture struct {
	client *ent.Client
	club   *ent.Club
	lead   *ent.User
	member *ent.User
}

func seedRollupFixture(t *testing.T, client *ent.Client) *rollupFixture {
	ctx := context.Background()

	lead, err := client.User.Create().
		SetEmail("lead@club.dev").
		SetUsername("lead").
		SetDisplayName("Lead").
		SetRole(user.RoleLead).
		Save(ctx)
	require.NoError(t, err)

	member, err := client.User.Create().
		SetEmail("member@club.dev").
		SetUsername("member").
		SetDisplayName("Member").
		Save(ctx)
	require.NoError(t, err)

	club, err := client.Club.Create().
		SetName("Robotics").
		SetLeadID(lead.ID).
		AddMembers(lead, member).
		Save(ctx)
	require.NoError(t, err)

	return &rollupFixture{client: client, club: club, lead: lead, member: member}
}

// recordEarned writes one completed submission straight into the ledger
// tables, bypassing the engine.
func (f *rollupFixture) recordEarned(t *testing.T, u *ent.User, credits int) {
	ctx := context.Background()

	task, err := f.client.Task.Create().
		SetTitle("Seeded task").
		SetDescription("Seeded for rollup math.").
		SetClubID(f.club.ID).
		SetAssignerID(f.lead.ID).
		SetAssigneeID(u.ID).
		SetTags([]string{}).
		Save(ctx)
	require.NoError(t, err)

	_, err = f.client.ProgressRecord.Create().
		SetUserID(u.ID).
		SetTaskID(task.ID).
		SetClubID(f.club.ID).
		SetStatus(progressrecord.StatusCompleted).
		SetSubmittedAt(time.Now()).
		SetCreditsEarned(credits).
		Save(ctx)
	require.NoError(t, err)
}

func TestRollupUserPastPerformance(t *testing.T) {
	client, db := setupRepoDB(t)
	fix := seedRollupFixture(t, client)
	repo := NewRollupRepository(db)
	ctx := context.Background()

	t.Run("no history returns nil", func(t *testing.T) {
		perf, err := repo.UserPastPerformance(ctx, fix.member.ID)
		require.NoError(t, err)
		assert.Nil(t, perf)
	})

	fix.recordEarned(t, fix.member, 15)
	fix.recordEarned(t, fix.member, 6)
	fix.recordEarned(t, fix.member, 9)

	perf, err := repo.UserPastPerformance(ctx, fix.member.ID)
	require.NoError(t, err)
	require.NotNil(t, perf)
	assert.Equal(t, 3, perf.CompletedTasks)
	assert.Equal(t, 10.0, perf.AvgCredits)

	// Another member's history is invisible.
	perf, err = repo.UserPastPerformance(ctx, fix.lead.ID)
	require.NoError(t, err)
	assert.Nil(t, perf)
}

func TestRollupDerivedUserTotal(t *testing.T) {
	client, db := setupRepoDB(t)
	fix := seedRollupFixture(t, client)
	repo := NewRollupRepository(db)
	ctx := context.Background()

	total, err := repo.DerivedUserTotal(ctx, fix.member.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, total)

	fix.recordEarned(t, fix.member, 12)
	fix.recordEarned(t, fix.member, 8)

	total, err = repo.DerivedUserTotal(ctx, fix.member.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, total)
}

func TestRollupClubRollup(t *testing.T) {
	client, db := setupRepoDB(t)
	fix := seedRollupFixture(t, client)
	repo := NewRollupRepository(db)
	ctx := context.Background()

	fix.recordEarned(t, fix.member, 15)
	fix.recordEarned(t, fix.member, 15)
	fix.recordEarned(t, fix.lead, 10)

	rollup, err := repo.ClubRollup(ctx, fix.club.ID)
	require.NoError(t, err)

	assert.Equal(t, fix.club.ID, rollup.ClubID)
	assert.Equal(t, 40, rollup.TotalCredits)
	assert.Equal(t, 3, rollup.CompletedTasks)
	require.Len(t, rollup.Members, 2)

	assert.Equal(t, "member", rollup.Members[0].Username)
	assert.Equal(t, 30, rollup.Members[0].TotalCredits)
	assert.Equal(t, 2, rollup.Members[0].CompletedTasks)
	assert.Equal(t, "lead", rollup.Members[1].Username)
	assert.Equal(t, 10, rollup.Members[1].TotalCredits)

	t.Run("unknown club is empty", func(t *testing.T) {
		rollup, err := repo.ClubRollup(ctx, uuid.New())
		require.NoError(t, err)
		assert.Zero(t, rollup.TotalCredits)
		assert.Empty(t, rollup.Members)
	})
}
