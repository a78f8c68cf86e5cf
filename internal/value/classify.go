package value

import "strings"

// Declared SQL type names, grouped by the kind they decode as.
var declaredFamilies = map[Kind][]string{
	Integer:   {"BIGINT", "BIT", "BOOL", "BOOLEAN", "INT", "INT2", "INT8", "INTEGER", "MEDIUMINT", "SMALLINT", "TINYINT"},
	Real:      {"DECIMAL", "DOUBLE", "DOUBLE PRECISION", "FLOAT", "NUMERIC", "REAL"},
	Text:      {"CHAR", "CHARACTER", "CLOB", "NATIONAL VARYING CHARACTER", "NATIVE CHARACTER", "NCHAR", "NVARCHAR", "TEXT", "VARCHAR", "VARIANT", "VARYING CHARACTER"},
	Blob:      {"BINARY", "BLOB", "VARBINARY"},
	Null:      {"NULL"},
	Timestamp: {"DATE", "DATETIME", "TIME", "TIMESTAMP"},
}

// declaredKinds is the reverse lookup built from declaredFamilies.
var declaredKinds = func() map[string]Kind {
	m := make(map[string]Kind)
	for kind, names := range declaredFamilies {
		for _, name := range names {
			m[name] = kind
		}
	}
	return m
}()

// Classify maps a declared column type to a Kind.
//
// Matching is case-insensitive, ignores a parenthesised suffix such as the
// "(255)" in VARCHAR(255) and collapses repeated whitespace. Unrecognised
// declarations, including the empty string, classify as Text.
func Classify(declType string) Kind {
	name := normaliseDeclType(declType)
	if kind, ok := declaredKinds[name]; ok {
		return kind
	}
	return Text
}

// ClassifyColumn picks the kind for a result column.
//
// The declared type wins whenever the column has one. Expression columns
// carry no declared type, so the raw value's storage class decides.
func ClassifyColumn(declType string, raw any) Kind {
	if normaliseDeclType(declType) == "" {
		return KindOf(raw)
	}
	return Classify(declType)
}

func normaliseDeclType(declType string) string {
	name := strings.ToUpper(declType)
	if i := strings.IndexByte(name, '('); i >= 0 {
		name = name[:i]
	}
	return strings.Join(strings.Fields(name), " ")
}
