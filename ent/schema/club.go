// ent/schema/club.go
package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
	"github.com/google/uuid"
)

// Club holds the schema definition for the Club entity.
type Club struct {
	ent.Schema
}

// Fields of the Club.
func (Club) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("id", uuid.UUID{}).
			Default(uuid.New).
			Immutable(),

		field.String("name").
			NotEmpty().
			Unique().
			MaxLen(120).
			Comment("Club name"),

		field.Text("description").
			Optional().
			Comment("What the club is about"),

		field.UUID("lead_id", uuid.UUID{}).
			Comment("User who leads this club"),

		field.Time("created_at").
			Default(time.Now).
			Immutable().
			Comment("When the club was created"),

		field.Time("updated_at").
			Default(time.Now).
			UpdateDefault(time.Now).
			Comment("When the club was last updated"),
	}
}

// Edges of the Club.
func (Club) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("lead", User.Type).
			Ref("lead_clubs").
			Field("lead_id").
			Unique().
			Required(),

		edge.To("members", User.Type).
			Comment("Users belonging to this club"),

		edge.To("tasks", Task.Type).
			Comment("Tasks owned by this club"),

		edge.To("progress_records", ProgressRecord.Type).
			Comment("Completed-submission audit entries within this club"),
	}
}

// Indexes of the Club.
func (Club) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("name").
			Unique(),

		index.Fields("lead_id"),
	}
}
