// ent/schema/task.go
package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
	"github.com/google/uuid"
)

// Task holds the schema definition for the Task entity.
type Task struct {
	ent.Schema
}

// Fields of the Task.
func (Task) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("id", uuid.UUID{}).
			Default(uuid.New).
			Immutable(),

		field.String("title").
			NotEmpty().
			Comment("Task title"),

		field.Text("description").
			NotEmpty().
			Comment("Detailed description of the task"),

		field.Enum("status").
			Values("pending", "in_progress", "completed").
			Default("pending").
			Comment("Current status of the task; completed is terminal"),

		field.Enum("priority").
			Values("low", "medium", "high", "urgent").
			Default("medium").
			Comment("Priority level of the task"),

		field.Int("difficulty").
			Default(5).
			Min(1).
			Max(10).
			Comment("Difficulty on a 1-10 scale, used for credit estimation"),

		field.Int("expected_minutes").
			Default(240).
			Positive().
			Comment("Expected completion time in minutes"),

		field.Time("due_date").
			Optional().
			Nillable().
			Comment("When the task should be completed"),

		field.Bool("is_overdue").
			Default(false).
			Comment("Set by the overdue sweep or at submission; frozen once completed"),

		field.Time("submitted_at").
			Optional().
			Nillable().
			Comment("When the completing submission was made"),

		field.Text("submission_description").
			Optional().
			Comment("Description provided with the completing submission"),

		field.JSON("submission_attachments", []string{}).
			Optional().
			Comment("Attachment references provided with the submission"),

		field.Int("credits").
			Default(0).
			Min(0).
			Comment("Credits awarded for the completed submission"),

		field.JSON("tags", []string{}).
			Optional().
			SchemaType(map[string]string{
				dialect.Postgres: "text[]",
			}).
			Comment("Tags for categorizing the task"),

		field.UUID("club_id", uuid.UUID{}).
			Comment("Club that owns this task"),

		field.UUID("assigner_id", uuid.UUID{}).
			Comment("User who assigned this task"),

		field.UUID("assignee_id", uuid.UUID{}).
			Comment("User the task is assigned to; must differ from assigner"),

		field.Time("created_at").
			Default(time.Now).
			Immutable().
			Comment("When the task was created"),

		field.Time("updated_at").
			Default(time.Now).
			UpdateDefault(time.Now).
			Comment("When the task was last updated"),
	}
}

// Edges of the Task.
func (Task) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("club", Club.Type).
			Ref("tasks").
			Field("club_id").
			Unique().
			Required(),

		edge.From("assigner", User.Type).
			Ref("created_tasks").
			Field("assigner_id").
			Unique().
			Required(),

		edge.From("assignee", User.Type).
			Ref("assigned_tasks").
			Field("assignee_id").
			Unique().
			Required(),

		// At most one progress record per task; enforced by the unique
		// task_id index on ProgressRecord.
		edge.To("progress", ProgressRecord.Type).
			Unique(),
	}
}

// Indexes of the Task.
func (Task) Indexes() []ent.Index {
	return []ent.Index{
		// Index on status for filtering
		index.Fields("status"),

		// Index on priority for filtering
		index.Fields("priority"),

		// Composite index for club dashboards
		index.Fields("club_id", "status"),

		// Composite index for member task lists and overdue counts
		index.Fields("assignee_id", "is_overdue"),

		// Index for the overdue sweep scan
		index.Fields("due_date", "status"),

		// Index on created_at for sorting
		index.Fields("created_at"),
	}
}
