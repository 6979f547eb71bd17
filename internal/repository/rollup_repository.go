// internal/repository/rollup_repository.go
package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/clubmaster/clubmaster/pkg/credit"
)

// RollupRepository is the read model over the progress ledger. It runs
// plain aggregate SQL against the same tables Ent writes, so every
// number here is derivable from progress records alone.
type RollupRepository struct {
	db *sqlx.DB
}

func NewRollupRepository(db *sqlx.DB) *RollupRepository {
	return &RollupRepository{
		db: db,
	}
}

type pastPerformanceRow struct {
	CompletedTasks int             `db:"completed_tasks"`
	AvgCredits     sql.NullFloat64 `db:"avg_credits"`
}

// UserPastPerformance summarizes a member's completion history. Returns
// nil with no error for a member who has not completed anything yet.
func (r *RollupRepository) UserPastPerformance(ctx context.Context, userID uuid.UUID) (*credit.PastPerformance, error) {
	query := r.db.Rebind(`
		SELECT COUNT(*)            AS completed_tasks,
		       AVG(credits_earned) AS avg_credits
		FROM progress_records
		WHERE user_id = ? AND status = 'completed'`)

	var row pastPerformanceRow
	if err := r.db.GetContext(ctx, &row, query, userID); err != nil {
		return nil, fmt.Errorf("query past performance: %w", err)
	}
	if row.CompletedTasks == 0 {
		return nil, nil
	}

	return &credit.PastPerformance{
		CompletedTasks: row.CompletedTasks,
		AvgCredits:     row.AvgCredits.Float64,
	}, nil
}

// DerivedUserTotal replays the ledger for one user. The stored running
// total on the user row must always match this.
func (r *RollupRepository) DerivedUserTotal(ctx context.Context, userID uuid.UUID) (int, error) {
	query := r.db.Rebind(`
		SELECT COALESCE(SUM(credits_earned), 0)
		FROM progress_records
		WHERE user_id = ?`)

	var total int
	if err := r.db.GetContext(ctx, &total, query, userID); err != nil {
		return 0, fmt.Errorf("derive user total: %w", err)
	}
	return total, nil
}

type ClubMemberRollup struct {
	UserID         uuid.UUID `db:"user_id"`
	Username       string    `db:"username"`
	TotalCredits   int       `db:"total_credits"`
	CompletedTasks int       `db:"completed_tasks"`
}

type ClubRollup struct {
	ClubID         uuid.UUID
	TotalCredits   int
	CompletedTasks int
	Members        []ClubMemberRollup
}

// ClubRollup aggregates earned credits per member for one club, ordered
// by credits descending. Club totals are summed from the member rows.
func (r *RollupRepository) ClubRollup(ctx context.Context, clubID uuid.UUID) (*ClubRollup, error) {
	query := r.db.Rebind(`
		SELECT pr.user_id              AS user_id,
		       u.username              AS username,
		       SUM(pr.credits_earned)  AS total_credits,
		       COUNT(*)                AS completed_tasks
		FROM progress_records pr
		JOIN users u ON u.id = pr.user_id
		WHERE pr.club_id = ?
		GROUP BY pr.user_id, u.username
		ORDER BY total_credits DESC, u.username ASC`)

	var members []ClubMemberRollup
	if err := r.db.SelectContext(ctx, &members, query, clubID); err != nil {
		return nil, fmt.Errorf("query club rollup: %w", err)
	}

	rollup := &ClubRollup{
		ClubID:  clubID,
		Members: members,
	}
	for _, m := range members {
		rollup.TotalCredits += m.TotalCredits
		rollup.CompletedTasks += m.CompletedTasks
	}
	return rollup, nil
}
