package command

import (
	"fmt"
	"strings"

	"github.com/quells/managedmodel/internal/model"
)

// Statement is parameterised SQL with its positional arguments.
type Statement struct {
	SQL  string
	Args []any
}

// Empty reports whether the statement is the no-op returned by builders
// that have nothing to do.
func (s Statement) Empty() bool {
	return s.SQL == ""
}

// Inline renders the statement with every argument embedded as a literal.
func (s Statement) Inline() (string, error) {
	if len(s.Args) == 0 {
		return s.SQL, nil
	}

	var b strings.Builder
	b.Grow(len(s.SQL) + 16*len(s.Args))

	next := 0
	for i := 0; i < len(s.SQL); i++ {
		c := s.SQL[i]
		if c != '?' {
			b.WriteByte(c)
			continue
		}
		if next >= len(s.Args) {
			return "", fmt.Errorf("%w: more placeholders than arguments", ErrFieldMismatch)
		}
		lit, err := Literal(s.Args[next])
		if err != nil {
			return "", err
		}
		b.WriteString(lit)
		next++
	}
	if next != len(s.Args) {
		return "", fmt.Errorf("%w: %d arguments for %d placeholders", ErrFieldMismatch, len(s.Args), next)
	}
	return b.String(), nil
}

// String returns the inlined form when it can be rendered and the raw SQL
// otherwise. It is meant for logs.
func (s Statement) String() string {
	if text, err := s.Inline(); err == nil {
		return text
	}
	return s.SQL
}

// ColumnType returns the SQL column type a semantic type is stored as.
// Timestamps are stored as FLOAT epoch seconds.
func ColumnType(t model.SemanticType) string {
	switch t {
	case model.Int:
		return "INTEGER"
	case model.Real, model.Timestamp:
		return "FLOAT"
	default:
		return "TEXT"
	}
}

// CreateTable returns CREATE TABLE IF NOT EXISTS for the fields. The first
// field is the primary key and every column is NOT NULL.
func CreateTable(table string, fields []model.FieldDescriptor) (Statement, error) {
	if err := ValidateIdentifier(table); err != nil {
		return Statement{}, err
	}
	if len(fields) == 0 {
		return Statement{}, fmt.Errorf("%w: table %s", ErrNoFields, table)
	}

	cols := make([]string, len(fields))
	for i, f := range fields {
		if err := ValidateIdentifier(f.Name); err != nil {
			return Statement{}, err
		}
		col := f.Name + " " + ColumnType(f.Type)
		if i == 0 {
			col += " PRIMARY KEY"
		}
		cols[i] = col + " NOT NULL"
	}

	return Statement{
		SQL: fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table, strings.Join(cols, ", ")),
	}, nil
}

// CreateIndex returns CREATE [UNIQUE] INDEX IF NOT EXISTS on one column.
// The index is named after the column.
func CreateIndex(table, field string, unique bool) (Statement, error) {
	if err := validateIdentifiers(table, field); err != nil {
		return Statement{}, err
	}
	kind := "INDEX"
	if unique {
		kind = "UNIQUE INDEX"
	}
	return Statement{
		SQL: fmt.Sprintf("CREATE %s IF NOT EXISTS %s ON %s (%s)", kind, field, table, field),
	}, nil
}

// Insert returns INSERT INTO with one placeholder per field.
func Insert(table string, fields []model.FieldDescriptor, values []any) (Statement, error) {
	if err := ValidateIdentifier(table); err != nil {
		return Statement{}, err
	}
	args, err := bindAll(fields, values)
	if err != nil {
		return Statement{}, err
	}

	names := make([]string, len(fields))
	marks := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
		marks[i] = "?"
	}

	return Statement{
		SQL:  fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(names, ", "), strings.Join(marks, ", ")),
		Args: args,
	}, nil
}

// Update returns UPDATE ... SET every field WHERE whereField equals whereValue.
func Update(table string, fields []model.FieldDescriptor, values []any, whereField string, whereValue any) (Statement, error) {
	if err := validateIdentifiers(table, whereField); err != nil {
		return Statement{}, err
	}
	args, err := bindAll(fields, values)
	if err != nil {
		return Statement{}, err
	}
	where, err := Bind(whereValue)
	if err != nil {
		return Statement{}, err
	}

	sets := make([]string, len(fields))
	for i, f := range fields {
		sets[i] = f.Name + " = ?"
	}

	return Statement{
		SQL:  fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", table, strings.Join(sets, ", "), whereField),
		Args: append(args, where),
	}, nil
}

// Delete returns DELETE FROM ... WHERE pkField equals pkValue. With no
// primary key field it returns the empty Statement.
func Delete(table, pkField string, pkValue any) (Statement, error) {
	if pkField == "" {
		return Statement{}, nil
	}
	return whereStatement("DELETE FROM %s WHERE %s = ?", table, pkField, pkValue)
}

// Select returns SELECT * FROM ... WHERE whereField equals whereValue.
func Select(table, whereField string, whereValue any) (Statement, error) {
	return whereStatement("SELECT * FROM %s WHERE %s = ?", table, whereField, whereValue)
}

// SelectAll returns SELECT * FROM table.
func SelectAll(table string) (Statement, error) {
	if err := ValidateIdentifier(table); err != nil {
		return Statement{}, err
	}
	return Statement{SQL: "SELECT * FROM " + table}, nil
}

// Count returns SELECT COUNT(*) AS count FROM table.
func Count(table string) (Statement, error) {
	if err := ValidateIdentifier(table); err != nil {
		return Statement{}, err
	}
	return Statement{SQL: "SELECT COUNT(*) AS count FROM " + table}, nil
}

func whereStatement(format, table, field string, v any) (Statement, error) {
	if err := validateIdentifiers(table, field); err != nil {
		return Statement{}, err
	}
	arg, err := Bind(v)
	if err != nil {
		return Statement{}, err
	}
	return Statement{SQL: fmt.Sprintf(format, table, field), Args: []any{arg}}, nil
}

func bindAll(fields []model.FieldDescriptor, values []any) ([]any, error) {
	if len(fields) == 0 {
		return nil, ErrNoFields
	}
	if len(fields) != len(values) {
		return nil, fmt.Errorf("%w: %d fields, %d values", ErrFieldMismatch, len(fields), len(values))
	}

	args := make([]any, len(values))
	for i, f := range fields {
		if err := ValidateIdentifier(f.Name); err != nil {
			return nil, err
		}
		arg, err := Bind(values[i])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Name, err)
		}
		args[i] = arg
	}
	return args, nil
}
