package example

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/quells/managedmodel/internal/controller"
	"github.com/quells/managedmodel/internal/infrastructure/database"
	"github.com/quells/managedmodel/migrations"
)

func TestPeopleMembership(t *testing.T) {
	fixClock(t, time.Unix(1700000000, 0))

	a, b := NewPerson("Ann", 30), NewPerson("Bob", 40)
	if a.ID == "" || a.ID == b.ID {
		t.Fatalf("NewPerson ids = %q, %q; want distinct non-empty", a.ID, b.ID)
	}

	g := &People{ID: 1}
	g.Add(a)
	g.Add(b)
	if want := []string{b.ID, a.ID}; !reflect.DeepEqual(g.People, want) {
		t.Errorf("People = %v, want %v", g.People, want)
	}

	g.Remove(a)
	if g.Contains(a) || !g.Contains(b) {
		t.Errorf("after Remove(a) People = %v", g.People)
	}
}

func TestHooksTouchDateModified(t *testing.T) {
	created := time.Unix(1700000000, 0)
	fixClock(t, created)
	p := NewPerson("Ann", 30)

	later := created.Add(time.Hour)
	fixClock(t, later)

	if err := p.BeforeUpdate(); err != nil {
		t.Fatalf("BeforeUpdate() error = %v", err)
	}
	if !p.DateModified.Equal(later) {
		t.Errorf("DateModified = %v, want %v", p.DateModified, later)
	}
	if !p.DateCreated.Equal(created) {
		t.Errorf("DateCreated = %v, want unchanged %v", p.DateCreated, created)
	}
}

func TestSchemaAndRoundTrip(t *testing.T) {
	fixClock(t, time.Unix(1700000000, 0))
	ctx := context.Background()

	db, err := database.Open(ctx, database.Config{
		Path:         filepath.Join(t.TempDir(), "example.db"),
		BusyTimeout:  5,
		Template:     migrations.Template(),
		TemplateName: migrations.TemplateName,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close() //nolint:errcheck // Test cleanup

	applied, err := db.Migrate(ctx, Schema1())
	if err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if applied != 3 {
		t.Errorf("Migrate() applied %d, want 3", applied)
	}

	c := controller.New(db)
	for _, newFn := range Entities() {
		if err := c.Register(newFn); err != nil {
			t.Fatalf("Register() error = %v", err)
		}
	}
	if got := c.Tables(); !reflect.DeepEqual(got, []string{"People", "Person"}) {
		t.Errorf("Tables() = %v", got)
	}

	ann := NewPerson("Ann", 30)
	if _, err := c.Insert(ctx, ann); err != nil {
		t.Fatalf("Insert(person) error = %v", err)
	}
	group := &People{ID: 1}
	group.Add(ann)
	if _, err := c.Insert(ctx, group); err != nil {
		t.Fatalf("Insert(people) error = %v", err)
	}

	gotPerson := &Person{}
	found, err := c.FirstInstanceOf(ctx, gotPerson, "id", ann.ID)
	if err != nil || !found {
		t.Fatalf("FirstInstanceOf(person) = %v, %v", found, err)
	}
	if gotPerson.Name != "Ann" || gotPerson.Age != 30 || !gotPerson.DateCreated.Equal(ann.DateCreated) {
		t.Errorf("loaded person = %v, want %v", gotPerson, ann)
	}

	gotGroup := &People{}
	if _, err := c.FirstInstanceOf(ctx, gotGroup, "id", 1); err != nil {
		t.Fatalf("FirstInstanceOf(people) error = %v", err)
	}
	if !gotGroup.Contains(ann) {
		t.Errorf("loaded group = %v, want it to contain %s", gotGroup.People, ann.ID)
	}

	// Person.id carries a unique index on top of the primary key.
	dup := &Person{ID: ann.ID, Name: "Impostor"}
	if _, err := c.Insert(ctx, dup); err == nil {
		t.Error("Insert() with a duplicate id succeeded")
	}
}

func fixClock(t *testing.T, at time.Time) {
	t.Helper()
	orig := now
	t.Cleanup(func() { now = orig })
	now = func() time.Time { return at }
}
