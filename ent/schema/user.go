// ent/schema/user.go
package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
	"github.com/google/uuid"
)

// User holds the schema definition for the User entity.
//
// Credentials are not stored here; authentication is handled by the
// external identity provider and users are referenced by the subject id
// carried in its tokens.
type User struct {
	ent.Schema
}

// Fields of the User.
func (User) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("id", uuid.UUID{}).
			Default(uuid.New).
			Immutable(),

		field.String("email").
			NotEmpty().
			Unique().
			Comment("User email address"),

		field.String("username").
			NotEmpty().
			Unique().
			MinLen(3).
			MaxLen(50).
			Comment("Unique username"),

		field.String("display_name").
			Optional().
			Default("").
			MaxLen(100).
			Comment("Name shown in rosters and leaderboards"),

		field.Enum("role").
			Values("member", "lead", "admin").
			Default("member").
			Comment("Club role for authorization"),

		field.Int("total_credits").
			Default(0).
			Min(0).
			Comment("Running credit total; always equals the sum of this user's progress records"),

		field.Bool("is_active").
			Default(true).
			Comment("Whether the user account is active"),

		field.Time("created_at").
			Default(time.Now).
			Immutable().
			Comment("When the user was created"),

		field.Time("updated_at").
			Default(time.Now).
			UpdateDefault(time.Now).
			Comment("When the user was last updated"),
	}
}

// Edges of the User.
func (User) Edges() []ent.Edge {
	return []ent.Edge{
		// Tasks this user handed out
		edge.To("created_tasks", Task.Type).
			Comment("Tasks assigned by this user"),

		// Tasks this user is responsible for
		edge.To("assigned_tasks", Task.Type).
			Comment("Tasks assigned to this user"),

		edge.To("progress_records", ProgressRecord.Type).
			Comment("Completed-submission audit entries for this user"),

		edge.To("lead_clubs", Club.Type).
			Comment("Clubs this user leads"),

		edge.From("clubs", Club.Type).
			Ref("members").
			Comment("Clubs this user is a member of"),
	}
}

// Indexes of the User.
func (User) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("email").
			Unique(),

		index.Fields("username").
			Unique(),

		// Index for role-based queries
		index.Fields("role", "is_active"),

		// Leaderboards sort by credits
		index.Fields("total_credits"),

		index.Fields("created_at"),
	}
}
