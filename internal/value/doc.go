// Package value normalises SQLite column values into a small closed set of
// semantic kinds.
//
// A Value is built once per column per fetched record from the raw driver
// value and the column's classified Kind. Every conversion accessor is total:
// a mismatch degrades to a kind-appropriate default (0, "", nil, absent)
// instead of returning an error, so callers can coerce untyped storage
// results blindly.
//
// Kind classification prefers the column's declared SQL type over the
// storage class SQLite reports at runtime. A DATE column holding an integer
// epoch therefore decodes as Timestamp, not Integer:
//
//	kind := value.ClassifyColumn("DATE", int64(1700000000))
//	v := value.New(int64(1700000000), kind)
//	t, _ := v.Time() // 2023-11-14 22:13:20 UTC
//
// Timestamps rendered as text always use the fixed layout
// "2006-01-02 15:04:05" in the local time zone.
package value
