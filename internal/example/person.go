// Package example holds the demo entities served by cmd/managedmodel and
// the schema block that creates their tables.
package example

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/quells/managedmodel/internal/model"
)

// now is the clock used for entity timestamps.
var now = time.Now

// Person is a named individual with an age.
type Person struct {
	ID           string
	Name         string
	Age          int
	DateCreated  time.Time
	DateModified time.Time
}

// NewPerson returns a Person with a fresh UUID and both timestamps set.
func NewPerson(name string, age int) *Person {
	t := now()
	return &Person{
		ID:           uuid.NewString(),
		Name:         name,
		Age:          age,
		DateCreated:  t,
		DateModified: t,
	}
}

// TableName implements model.Entity.
func (p *Person) TableName() string { return "Person" }

// ManagedFields implements model.Entity.
func (p *Person) ManagedFields() []model.Field {
	return []model.Field{
		{Name: "id", Ptr: &p.ID},
		{Name: "name", Ptr: &p.Name},
		{Name: "age", Ptr: &p.Age},
		{Name: "dateCreated", Ptr: &p.DateCreated},
		{Name: "dateModified", Ptr: &p.DateModified},
	}
}

// BeforeInsert assigns a missing id and stamps the timestamps.
func (p *Person) BeforeInsert() error { return p.touch() }

// BeforeUpdate stamps DateModified.
func (p *Person) BeforeUpdate() error { return p.touch() }

// BeforeDelete stamps DateModified.
func (p *Person) BeforeDelete() error { return p.touch() }

func (p *Person) touch() error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.DateModified = now()
	if p.DateCreated.IsZero() {
		p.DateCreated = p.DateModified
	}
	return nil
}

// String implements fmt.Stringer.
func (p *Person) String() string {
	return fmt.Sprintf("<%s age %d, created %s>", p.Name, p.Age, p.DateCreated.Format(time.RFC3339))
}
