package model

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"
)

// ReservedTable is the table that stores the schema version. Entities may
// not map onto it.
const ReservedTable = "Schema"

// SemanticType is the persisted meaning of a managed field.
type SemanticType int

// Semantic field types.
const (
	Int SemanticType = iota
	Real
	Text
	Blob
	Timestamp
	ListOfText
)

// String returns the type name.
func (t SemanticType) String() string {
	switch t {
	case Int:
		return "Int"
	case Real:
		return "Real"
	case Text:
		return "Text"
	case Blob:
		return "Blob"
	case Timestamp:
		return "Timestamp"
	case ListOfText:
		return "ListOfText"
	default:
		return fmt.Sprintf("SemanticType(%d)", int(t))
	}
}

// Field is one managed field: its column name and a pointer to the
// entity's storage for it.
type Field struct {
	Name string
	Ptr  any
}

// Entity is an application record type mapped to one table.
type Entity interface {
	// TableName returns the table the entity is stored in.
	TableName() string

	// ManagedFields returns the persisted fields in column order. The
	// first field is the primary key.
	ManagedFields() []Field
}

// InsertHook is implemented by entities that validate or prepare
// themselves before being inserted.
type InsertHook interface {
	BeforeInsert() error
}

// UpdateHook is implemented by entities that validate or prepare
// themselves before being updated.
type UpdateHook interface {
	BeforeUpdate() error
}

// DeleteHook is implemented by entities that can refuse deletion.
type DeleteHook interface {
	BeforeDelete() error
}

// FieldDescriptor names a column and its semantic type.
type FieldDescriptor struct {
	Name string
	Type SemanticType
}

// Description is the reflected shape of an entity at one point in time.
//
// Fields and Values are index-aligned. Values hold normalised Go values:
// int64, float64, string, []byte, time.Time or []string.
type Description struct {
	Table  string
	Fields []FieldDescriptor
	Values []any
}

// PrimaryKey returns the primary key column name, or "" when the entity
// has no managed fields.
func (d Description) PrimaryKey() string {
	if len(d.Fields) == 0 {
		return ""
	}
	return d.Fields[0].Name
}

// PrimaryKeyValue returns the primary key's current value, or nil when the
// entity has no managed fields.
func (d Description) PrimaryKeyValue() any {
	if len(d.Values) == 0 {
		return nil
	}
	return d.Values[0]
}

// Lookup returns the descriptor for a managed field by name.
func (d Description) Lookup(name string) (FieldDescriptor, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDescriptor{}, false
}

// Names returns the column names in order.
func (d Description) Names() []string {
	names := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		names[i] = f.Name
	}
	return names
}

// Describe reflects an entity into its ordered descriptors and current
// values.
//
// An entity with no managed fields yields an empty Description without
// error; callers that need a primary key must check PrimaryKey.
func Describe(e Entity) (Description, error) {
	table := e.TableName()
	if strings.EqualFold(table, ReservedTable) {
		return Description{}, fmt.Errorf("%w: %s", ErrReservedTable, table)
	}

	fields := e.ManagedFields()
	d := Description{
		Table:  table,
		Fields: make([]FieldDescriptor, 0, len(fields)),
		Values: make([]any, 0, len(fields)),
	}
	seen := make(map[string]struct{}, len(fields))

	for _, f := range fields {
		if f.Name == "" {
			return Description{}, fmt.Errorf("%w: empty name in %s", ErrInvalidField, table)
		}
		if _, dup := seen[f.Name]; dup {
			return Description{}, fmt.Errorf("%w: %s.%s", ErrDuplicateField, table, f.Name)
		}
		seen[f.Name] = struct{}{}

		elem, err := fieldElem(f)
		if err != nil {
			return Description{}, fmt.Errorf("%s.%s: %w", table, f.Name, err)
		}
		st, err := semanticTypeOf(elem.Type())
		if err != nil {
			return Description{}, fmt.Errorf("%s.%s: %w", table, f.Name, err)
		}

		v, err := normalise(elem, st)
		if err != nil {
			return Description{}, fmt.Errorf("%s.%s: %w", table, f.Name, err)
		}
		d.Fields = append(d.Fields, FieldDescriptor{Name: f.Name, Type: st})
		d.Values = append(d.Values, v)
	}

	return d, nil
}

// TypeOf returns the semantic type a field pointer maps to.
func TypeOf(ptr any) (SemanticType, error) {
	elem, err := fieldElem(Field{Name: "_", Ptr: ptr})
	if err != nil {
		return 0, err
	}
	return semanticTypeOf(elem.Type())
}

// BeforeInsert runs the entity's InsertHook, if any.
func BeforeInsert(e Entity) error {
	if h, ok := e.(InsertHook); ok {
		if err := h.BeforeInsert(); err != nil {
			return fmt.Errorf("%w: insert into %s: %w", ErrVetoed, e.TableName(), err)
		}
	}
	return nil
}

// BeforeUpdate runs the entity's UpdateHook, if any.
func BeforeUpdate(e Entity) error {
	if h, ok := e.(UpdateHook); ok {
		if err := h.BeforeUpdate(); err != nil {
			return fmt.Errorf("%w: update %s: %w", ErrVetoed, e.TableName(), err)
		}
	}
	return nil
}

// BeforeDelete runs the entity's DeleteHook, if any.
func BeforeDelete(e Entity) error {
	if h, ok := e.(DeleteHook); ok {
		if err := h.BeforeDelete(); err != nil {
			return fmt.Errorf("%w: delete from %s: %w", ErrVetoed, e.TableName(), err)
		}
	}
	return nil
}

var (
	timeType    = reflect.TypeOf(time.Time{})
	bytesType   = reflect.TypeOf([]byte(nil))
	stringsType = reflect.TypeOf([]string(nil))
)

func fieldElem(f Field) (reflect.Value, error) {
	rv := reflect.ValueOf(f.Ptr)
	if !rv.IsValid() || rv.Kind() != reflect.Pointer || rv.IsNil() {
		return reflect.Value{}, fmt.Errorf("%w: %s must be a non-nil pointer", ErrInvalidField, f.Name)
	}
	return rv.Elem(), nil
}

func semanticTypeOf(t reflect.Type) (SemanticType, error) {
	switch {
	case t == timeType:
		return Timestamp, nil
	case t.ConvertibleTo(bytesType) && t.Kind() == reflect.Slice:
		return Blob, nil
	case t.Kind() == reflect.Slice && t.ConvertibleTo(stringsType):
		return ListOfText, nil
	}

	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Int, nil
	case reflect.Float32, reflect.Float64:
		return Real, nil
	case reflect.String:
		return Text, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedField, t)
	}
}

// normalise converts a field's current value to the representation
// Bind expects. Unsigned values above math.MaxInt64 do not fit an SQLite
// INTEGER and are rejected.
func normalise(v reflect.Value, st SemanticType) (any, error) {
	switch st {
	case Int:
		switch v.Kind() {
		case reflect.Bool:
			if v.Bool() {
				return int64(1), nil
			}
			return int64(0), nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			u := v.Uint()
			if u > math.MaxInt64 {
				return nil, fmt.Errorf("%w: %d overflows int64", ErrUnsupportedField, u)
			}
			return int64(u), nil
		default:
			return v.Int(), nil
		}
	case Real:
		return v.Float(), nil
	case Text:
		return v.String(), nil
	case Blob:
		if v.IsNil() {
			return []byte(nil), nil
		}
		out := make([]byte, v.Len())
		copy(out, v.Bytes())
		return out, nil
	case Timestamp:
		return v.Interface().(time.Time), nil //nolint:forcetypeassert // checked by semanticTypeOf
	case ListOfText:
		if v.IsNil() {
			return []string(nil), nil
		}
		return v.Convert(stringsType).Interface(), nil
	default:
		return v.Interface(), nil
	}
}
