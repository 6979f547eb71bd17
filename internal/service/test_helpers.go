// internal/service/test_helpers.go
package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	ent "github.com/clubmaster/clubmaster/ent/generated"
	"github.com/clubmaster/clubmaster/ent/generated/enttest"
	"github.com/clubmaster/clubmaster/ent/generated/user"
	"github.com/clubmaster/clubmaster/internal/middleware"

	_ "github.com/mattn/go-sqlite3"
)

var testDBSeq atomic.Int64

// setupTestDB opens a fresh in-memory database for one test. Every test
// gets its own name so parallel tests never share state; the shared
// cache DSN lets the sqlx read model open a second handle onto the same
// database while the Ent client holds it open.
func setupTestDB(t *testing.T) (*ent.Client, string) {
	dsn := fmt.Sprintf("file:svc_test_%d?mode=memory&cache=shared&_fk=1", testDBSeq.Add(1))
	client := enttest.Open(t, "sqlite3", dsn)
	return client, dsn
}

// openReadDB opens the read-model handle onto a test database.
func openReadDB(t *testing.T, dsn string) *sqlx.DB {
	db, err := sqlx.Open("sqlite3", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// TestHelpers provides common test fixtures
type TestHelpers struct {
	t      *testing.T
	client *ent.Client
}

// NewTestHelpers creates a new test helper instance
func NewTestHelpers(t *testing.T, client *ent.Client) *TestHelpers {
	return &TestHelpers{
		t:      t,
		client: client,
	}
}

// CreateTestUser creates a standard club member
func (h *TestHelpers) CreateTestUser(email, username string) *ent.User {
	member, err := h.client.User.Create().
		SetEmail(email).
		SetUsername(username).
		SetDisplayName("Test Member").
		SetRole(user.RoleMember).
		SetIsActive(true).
		Save(context.Background())
	require.NoError(h.t, err)

	return member
}

// CreateTestLead creates a club lead
func (h *TestHelpers) CreateTestLead(email, username string) *ent.User {
	lead, err := h.client.User.Create().
		SetEmail(email).
		SetUsername(username).
		SetDisplayName("Test Lead").
		SetRole(user.RoleLead).
		SetIsActive(true).
		Save(context.Background())
	require.NoError(h.t, err)

	return lead
}

// CreateTestClub creates a club led by the given user, with the lead and
// any extra members attached.
func (h *TestHelpers) CreateTestClub(name string, lead *ent.User, members ...*ent.User) *ent.Club {
	club, err := h.client.Club.Create().
		SetName(name).
		SetDescription("Test club").
		SetLeadID(lead.ID).
		AddMembers(lead).
		AddMembers(members...).
		Save(context.Background())
	require.NoError(h.t, err)

	return club
}

// TaskFixture configures CreateTestTask. Zero values get sensible
// defaults.
type TaskFixture struct {
	Title           string
	Difficulty      int
	ExpectedMinutes int
	DueDate         *time.Time
}

// CreateTestTask creates a pending task in the club, assigned by the
// club's lead.
func (h *TestHelpers) CreateTestTask(club *ent.Club, assigner, assignee *ent.User, fix TaskFixture) *ent.Task {
	if fix.Title == "" {
		fix.Title = "Prepare robotics demo"
	}
	if fix.Difficulty == 0 {
		fix.Difficulty = 5
	}

	create := h.client.Task.Create().
		SetTitle(fix.Title).
		SetDescription("Assemble and test the demo rig before the open house.").
		SetClubID(club.ID).
		SetAssignerID(assigner.ID).
		SetAssigneeID(assignee.ID).
		SetDifficulty(fix.Difficulty).
		SetTags([]string{}).
		SetNillableDueDate(fix.DueDate)

	if fix.ExpectedMinutes > 0 {
		create = create.SetExpectedMinutes(fix.ExpectedMinutes)
	}

	task, err := create.Save(context.Background())
	require.NoError(h.t, err)

	return task
}

// authedContext returns a context carrying the identity the auth
// interceptor would have extracted from a verified token.
func authedContext(u *ent.User) context.Context {
	ctx := context.WithValue(context.Background(), middleware.ContextKeyUserID, u.ID.String())
	return context.WithValue(ctx, middleware.ContextKeyUserRole, string(u.Role))
}
