// Package model reflects application entities into ordered field
// descriptors and rehydrates them from fetched rows.
//
// An entity declares its persisted fields explicitly through ManagedFields.
// The returned list is the only source of column order: the first field is
// the primary key, and the same order is used for CREATE TABLE, INSERT and
// UPDATE generation. Fields that should not be persisted are simply left
// out of the list.
//
//	type Person struct {
//	    ID   string
//	    Name string
//	    Age  int
//	}
//
//	func (p *Person) TableName() string { return "Person" }
//
//	func (p *Person) ManagedFields() []model.Field {
//	    return []model.Field{
//	        {Name: "id", Ptr: &p.ID},
//	        {Name: "name", Ptr: &p.Name},
//	        {Name: "age", Ptr: &p.Age},
//	    }
//	}
//
// Each Field carries a pointer into the entity, so Describe reads current
// values through it and Load writes fetched values back through it.
package model
