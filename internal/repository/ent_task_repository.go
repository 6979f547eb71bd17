// internal/repository/ent_task_repository.go
package repository

import (
	"context"
	"fmt"
	"time"

	"entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	ent "github.com/clubmaster/clubmaster/ent/generated"
	"github.com/clubmaster/clubmaster/ent/generated/predicate"
	"github.com/clubmaster/clubmaster/ent/generated/task"
)

type EntTaskRepository struct {
	client *ent.Client
}

func NewEntTaskRepository(client *ent.Client) *EntTaskRepository {
	return &EntTaskRepository{
		client: client,
	}
}

func (r *EntTaskRepository) Create(ctx context.Context, t *TaskInput) (*ent.Task, error) {
	create := r.client.Task.
		Create().
		SetTitle(t.Title).
		SetDescription(t.Description).
		SetClubID(t.ClubID).
		SetAssignerID(t.AssignerID).
		SetAssigneeID(t.AssigneeID).
		SetPriority(task.Priority(t.Priority)).
		SetDifficulty(t.Difficulty).
		SetNillableDueDate(t.DueDate)

	if t.ExpectedMinutes > 0 {
		create = create.SetExpectedMinutes(t.ExpectedMinutes)
	}

	// Handle tags - ensure it's not nil
	if len(t.Tags) > 0 {
		create = create.SetTags(t.Tags)
	} else {
		create = create.SetTags([]string{}) // Set empty array instead of nil
	}

	return create.Save(ctx)
}

func (r *EntTaskRepository) GetByID(ctx context.Context, id uuid.UUID) (*ent.Task, error) {
	return r.client.Task.
		Query().
		Where(task.ID(id)).
		Only(ctx)
}

func (r *EntTaskRepository) GetByIDWithRelations(ctx context.Context, id uuid.UUID) (*ent.Task, error) {
	return r.client.Task.
		Query().
		Where(task.ID(id)).
		WithClub().
		WithAssigner().
		WithAssignee().
		WithProgress().
		Only(ctx)
}

func (r *EntTaskRepository) List(ctx context.Context, filter ListFilter) ([]*ent.Task, int, error) {
	query := r.client.Task.Query()

	// Apply filters
	var predicates []predicate.Task

	if filter.Status != nil {
		predicates = append(predicates, task.StatusEQ(task.Status(*filter.Status)))
	}

	if filter.Priority != nil {
		predicates = append(predicates, task.PriorityEQ(task.Priority(*filter.Priority)))
	}

	if filter.ClubID != nil {
		predicates = append(predicates, task.ClubIDEQ(*filter.ClubID))
	}

	if filter.AssigneeID != nil {
		predicates = append(predicates, task.AssigneeIDEQ(*filter.AssigneeID))
	}

	if filter.OnlyOverdue {
		predicates = append(predicates, task.IsOverdue(true))
	}

	if filter.Search != "" {
		// Search in title and description
		predicates = append(predicates, task.Or(
			task.TitleContainsFold(filter.Search),
			task.DescriptionContainsFold(filter.Search),
		))
	}

	// Apply predicates
	if len(predicates) > 0 {
		query = query.Where(predicates...)
	}

	// Get total count before pagination
	totalCount, err := query.Count(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("count tasks: %w", err)
	}

	// Apply sorting
	switch filter.SortBy {
	case "created_at":
		if filter.SortOrder == "asc" {
			query = query.Order(ent.Asc(task.FieldCreatedAt))
		} else {
			query = query.Order(ent.Desc(task.FieldCreatedAt))
		}
	case "due_date":
		if filter.SortOrder == "asc" {
			query = query.Order(ent.Asc(task.FieldDueDate))
		} else {
			query = query.Order(ent.Desc(task.FieldDueDate))
		}
	case "credits":
		if filter.SortOrder == "asc" {
			query = query.Order(ent.Asc(task.FieldCredits))
		} else {
			query = query.Order(ent.Desc(task.FieldCredits))
		}
	case "priority":
		// Custom order for priority
		query = query.Order(func(s *sql.Selector) {
			s.OrderExpr(sql.ExprP(
				"CASE priority WHEN 'urgent' THEN 1 WHEN 'high' THEN 2 WHEN 'medium' THEN 3 WHEN 'low' THEN 4 END",
			))
		})
	default:
		query = query.Order(ent.Desc(task.FieldCreatedAt))
	}

	// Apply pagination
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	// Include club and member information
	if filter.WithRelations {
		query = query.WithClub().WithAssigner().WithAssignee()
	}

	// Execute query
	tasks, err := query.All(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("query tasks: %w", err)
	}

	return tasks, totalCount, nil
}

func (r *EntTaskRepository) Update(ctx context.Context, id uuid.UUID, input *TaskUpdateInput) (*ent.Task, error) {
	update := r.client.Task.UpdateOneID(id)

	if input.Title != nil {
		update = update.SetTitle(*input.Title)
	}
	if input.Description != nil {
		update = update.SetDescription(*input.Description)
	}
	if input.Priority != nil {
		update = update.SetPriority(task.Priority(*input.Priority))
	}
	if input.Difficulty != nil {
		update = update.SetDifficulty(*input.Difficulty)
	}
	if input.ExpectedMinutes != nil {
		update = update.SetExpectedMinutes(*input.ExpectedMinutes)
	}
	if input.AssigneeID != nil {
		update = update.SetAssigneeID(*input.AssigneeID)
	}
	if input.DueDate != nil {
		// A due date change invalidates a stale overdue flag; the next
		// sweep re-evaluates.
		update = update.SetDueDate(*input.DueDate).SetIsOverdue(false)
	}
	if input.Tags != nil {
		update = update.SetTags(input.Tags)
	}

	return update.Save(ctx)
}

func (r *EntTaskRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.client.Task.
		DeleteOneID(id).
		Exec(ctx)
}

// ListOverdueCandidates returns the open tasks whose due date has passed
// but whose overdue flag is still unset, for sweep previews and audits.
// The sweep itself flips the flag in one bulk statement.
func (r *EntTaskRepository) ListOverdueCandidates(ctx context.Context, now time.Time) ([]*ent.Task, error) {
	return r.client.Task.
		Query().
		Where(
			task.DueDateLT(now),
			task.StatusNEQ(task.StatusCompleted),
			task.IsOverdue(false),
		).
		Order(ent.Asc(task.FieldDueDate)).
		All(ctx)
}

// Types for repository input
type TaskInput struct {
	Title           string
	Description     string
	ClubID          uuid.UUID
	AssignerID      uuid.UUID
	AssigneeID      uuid.UUID
	Priority        string
	Difficulty      int
	ExpectedMinutes int
	DueDate         *time.Time
	Tags            []string
}

type TaskUpdateInput struct {
	Title           *string
	Description     *string
	Priority        *string
	Difficulty      *int
	ExpectedMinutes *int
	AssigneeID      *uuid.UUID
	DueDate         *time.Time
	Tags            []string
}

type ListFilter struct {
	Status        *string
	Priority      *string
	ClubID        *uuid.UUID
	AssigneeID    *uuid.UUID
	OnlyOverdue   bool
	Search        string
	SortBy        string
	SortOrder     string
	Limit         int
	Offset        int
	WithRelations bool // Include club, assigner and assignee information
}
