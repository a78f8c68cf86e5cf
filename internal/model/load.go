package model

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/quells/managedmodel/internal/value"
)

// Load copies a fetched row into the entity's managed fields.
//
// Each field takes the value conversion matching its semantic type, so a
// column stored with an unexpected class still lands as the field's
// default rather than failing. Columns missing from the row leave the
// field untouched. ListOfText fields decode a JSON array; text that is not
// a JSON array of strings yields a nil slice.
func Load(e Entity, row value.Row) error {
	for _, f := range e.ManagedFields() {
		v, ok := row.Get(f.Name)
		if !ok {
			continue
		}

		elem, err := fieldElem(f)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", e.TableName(), f.Name, err)
		}
		st, err := semanticTypeOf(elem.Type())
		if err != nil {
			return fmt.Errorf("%s.%s: %w", e.TableName(), f.Name, err)
		}

		assign(elem, st, v)
	}
	return nil
}

func assign(dst reflect.Value, st SemanticType, v value.Value) {
	switch st {
	case Int:
		switch dst.Kind() {
		case reflect.Bool:
			dst.SetBool(v.Int() != 0)
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			n := v.Int()
			if n < 0 {
				n = 0
			}
			dst.SetUint(uint64(n))
		default:
			dst.SetInt(v.Int())
		}
	case Real:
		dst.SetFloat(v.Float())
	case Text:
		dst.SetString(v.String())
	case Blob:
		dst.SetBytes(v.Bytes())
	case Timestamp:
		t, ok := v.Time()
		if !ok {
			t = time.Time{}
		}
		dst.Set(reflect.ValueOf(t))
	case ListOfText:
		var list []string
		if !v.IsNull() {
			if err := json.Unmarshal([]byte(v.String()), &list); err != nil {
				list = nil
			}
		}
		dst.Set(reflect.ValueOf(list).Convert(dst.Type()))
	}
}
