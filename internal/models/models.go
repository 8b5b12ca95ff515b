// Package models holds the application's table-backed types. Each model
// carries the schema it was last bound with.
package models

import (
	"time"

	"db_schema_migrator/internal/blueprint"
)

type User struct {
	ID        int64      `db:"id" json:"id"`
	Email     string     `db:"email" json:"email"`
	Name      string     `db:"name" json:"name"`
	Active    bool       `db:"active" json:"active"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt *time.Time `db:"updated_at" json:"updated_at,omitempty"`

	schema *blueprint.CompiledSchema
}

func (User) TableName() string { return "users" }

// DefineTable declares the users table.
func (User) DefineTable(b *blueprint.Blueprint) {
	b.ID()
	b.String("email", 255).NotNull().Unique()
	b.String("name", 120).NotNull()
	b.Boolean("active").NotNull().Default(true)
	b.UTC().Timestamps(true)
}

func (u *User) SetSchema(s *blueprint.CompiledSchema) { u.schema = s }

// Schema is nil until the model has been bound.
func (u *User) Schema() *blueprint.CompiledSchema { return u.schema }

type Post struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	Slug      string    `db:"slug" json:"slug"`
	Title     string    `db:"title" json:"title"`
	Body      string    `db:"body" json:"body"`
	Rating    string    `db:"rating" json:"rating"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`

	schema *blueprint.CompiledSchema
}

func (Post) TableName() string { return "posts" }

// DefineTable declares the posts table. Slugs are unique per author.
func (Post) DefineTable(b *blueprint.Blueprint) {
	b.ID()
	b.BigInteger("user_id").NotNull()
	b.String("slug", 160).NotNull()
	b.String("title", 255).NotNull()
	b.Text("body")
	b.Decimal("rating", 3, 1).Default(0)
	b.UTC().Timestamps(false)
	b.Index("user_id")
	b.Unique("user_id", "slug")
}

func (p *Post) SetSchema(s *blueprint.CompiledSchema) { p.schema = s }

func (p *Post) Schema() *blueprint.CompiledSchema { return p.schema }
