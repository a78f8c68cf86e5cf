package example

import (
	"slices"
	"time"

	"github.com/quells/managedmodel/internal/model"
)

// People is an ordered group of Person ids, newest first.
type People struct {
	ID           int
	People       []string
	DateModified time.Time
}

// TableName implements model.Entity.
func (g *People) TableName() string { return "People" }

// ManagedFields implements model.Entity.
func (g *People) ManagedFields() []model.Field {
	return []model.Field{
		{Name: "id", Ptr: &g.ID},
		{Name: "people", Ptr: &g.People},
		{Name: "dateModified", Ptr: &g.DateModified},
	}
}

// BeforeUpdate stamps DateModified.
func (g *People) BeforeUpdate() error {
	g.DateModified = now()
	return nil
}

// Add puts p's id at the front of the group.
func (g *People) Add(p *Person) {
	g.People = slices.Insert(g.People, 0, p.ID)
	g.DateModified = now()
}

// Remove drops every occurrence of p's id from the group.
func (g *People) Remove(p *Person) {
	g.People = slices.DeleteFunc(g.People, func(id string) bool { return id == p.ID })
	g.DateModified = now()
}

// Contains reports whether p is in the group.
func (g *People) Contains(p *Person) bool {
	return slices.Contains(g.People, p.ID)
}
