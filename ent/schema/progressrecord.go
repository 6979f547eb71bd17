// ent/schema/progressrecord.go
package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
	"github.com/google/uuid"
)

// ProgressRecord holds the schema definition for the ProgressRecord entity.
//
// A progress record is the immutable audit entry for one completed
// submission. It is created only inside the ledger transaction that marks
// the task completed, and never mutated afterward except to attach
// feedback.
type ProgressRecord struct {
	ent.Schema
}

// Fields of the ProgressRecord.
func (ProgressRecord) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("id", uuid.UUID{}).
			Default(uuid.New).
			Immutable(),

		field.UUID("user_id", uuid.UUID{}).
			Comment("User who completed the task"),

		field.UUID("task_id", uuid.UUID{}).
			Comment("Completed task; unique, completion is single-shot"),

		field.UUID("club_id", uuid.UUID{}).
			Comment("Club the task belonged to"),

		field.Enum("status").
			Values("pending", "in_progress", "completed").
			Default("completed").
			Comment("Task status at creation time; always completed"),

		field.Int("completion_minutes").
			Optional().
			Nillable().
			Min(0).
			Comment("Reported time taken in minutes, if known"),

		field.Time("submitted_at").
			Comment("When the submission was made"),

		field.Int("credits_earned").
			Default(0).
			Min(0).
			Comment("Credits awarded for this submission"),

		// Embedded credit breakdown
		field.Float("time_factor").
			Default(0).
			Comment("Time efficiency component of the credit breakdown"),

		field.Float("difficulty_factor").
			Default(0).
			Comment("Difficulty component of the credit breakdown"),

		field.Float("quality_factor").
			Default(0).
			Comment("Quality component of the credit breakdown"),

		field.Float("bonus_credits").
			Default(0).
			Comment("Bonus credits granted by the estimator"),

		field.Float("late_penalty").
			Default(0).
			Comment("Penalty applied for an overdue submission"),

		field.Text("explanation").
			Optional().
			Comment("Estimator's explanation of the award"),

		// Feedback, the one permitted mutation
		field.UUID("feedback_by", uuid.UUID{}).
			Optional().
			Nillable().
			Comment("User who gave feedback on this submission"),

		field.Text("feedback_content").
			Optional().
			Comment("Feedback text"),

		field.Time("feedback_at").
			Optional().
			Nillable().
			Comment("When feedback was given"),

		field.Time("created_at").
			Default(time.Now).
			Immutable().
			Comment("When the record was created"),
	}
}

// Edges of the ProgressRecord.
func (ProgressRecord) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("user", User.Type).
			Ref("progress_records").
			Field("user_id").
			Unique().
			Required(),

		edge.From("task", Task.Type).
			Ref("progress").
			Field("task_id").
			Unique().
			Required(),

		edge.From("club", Club.Type).
			Ref("progress_records").
			Field("club_id").
			Unique().
			Required(),
	}
}

// Indexes of the ProgressRecord.
func (ProgressRecord) Indexes() []ent.Index {
	return []ent.Index{
		// Single-shot completion: one record per task, ever.
		index.Fields("task_id").
			Unique(),

		// Ledger replay and past-performance aggregation
		index.Fields("user_id", "status"),

		// Club rollups
		index.Fields("club_id"),

		index.Fields("submitted_at"),
	}
}
