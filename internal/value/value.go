package value

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// TimeLayout is the fixed text format for timestamps.
const TimeLayout = "2006-01-02 15:04:05"

// Kind is the semantic type of a column value.
type Kind int

// Supported kinds.
const (
	Null Kind = iota
	Integer
	Real
	Text
	Blob
	Timestamp
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case Integer:
		return "Integer"
	case Real:
		return "Real"
	case Text:
		return "Text"
	case Blob:
		return "Blob"
	case Timestamp:
		return "Timestamp"
	default:
		return "Null"
	}
}

// Value holds a single column value together with its Kind.
//
// The zero Value is Null. Values are immutable once constructed.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
	b    []byte
	t    time.Time
}

// New builds a Value of the given kind from a raw driver value.
//
// The raw value is coerced into the kind's representation; a nil raw value
// always yields Null regardless of kind.
func New(raw any, kind Kind) Value {
	if raw == nil {
		return Value{kind: Null}
	}

	switch kind {
	case Integer:
		return Value{kind: Integer, i: rawInt(raw)}
	case Real:
		return Value{kind: Real, f: rawFloat(raw)}
	case Blob:
		return Value{kind: Blob, b: rawBytes(raw)}
	case Timestamp:
		return Value{kind: Timestamp, t: rawTime(raw)}
	case Null:
		return Value{kind: Null}
	default:
		v := Value{kind: Text, s: rawString(raw)}
		if b, ok := raw.([]byte); ok {
			// Keep the stored bytes so Bytes() survives invalid UTF-8.
			v.b = rawBytes(b)
		}
		return v
	}
}

// Kind returns the semantic kind.
func (v Value) Kind() Kind {
	return v.kind
}

// IsNull reports whether the value is Null.
func (v Value) IsNull() bool {
	return v.kind == Null
}

// String returns the value as text.
//
// Integer and Real render as decimal text, Blob is decoded as UTF-8 (empty
// when invalid), Timestamp uses TimeLayout in local time and Null is "".
func (v Value) String() string {
	switch v.kind {
	case Integer:
		return strconv.FormatInt(v.i, 10)
	case Real:
		return formatFloat(v.f)
	case Text:
		return v.s
	case Blob:
		if !utf8.Valid(v.b) {
			return ""
		}
		return string(v.b)
	case Timestamp:
		return v.t.In(time.Local).Format(TimeLayout)
	default:
		return ""
	}
}

// Int returns the value as an integer.
//
// Text and Blob parse their leading numeric prefix (0 when there is none)
// and Timestamp yields seconds since the Unix epoch.
func (v Value) Int() int64 {
	switch v.kind {
	case Integer:
		return v.i
	case Real:
		return clampInt(v.f)
	case Text:
		return leadingInt(v.s)
	case Blob:
		return leadingInt(string(v.b))
	case Timestamp:
		return v.t.Unix()
	default:
		return 0
	}
}

// Float returns the value as a float.
//
// Timestamp yields fractional seconds since the Unix epoch.
func (v Value) Float() float64 {
	switch v.kind {
	case Integer:
		return float64(v.i)
	case Real:
		return v.f
	case Text:
		return leadingFloat(v.s)
	case Blob:
		return leadingFloat(string(v.b))
	case Timestamp:
		return epochSeconds(v.t)
	default:
		return 0
	}
}

// Bytes returns the value as bytes. Null returns nil.
func (v Value) Bytes() []byte {
	switch v.kind {
	case Blob:
		out := make([]byte, len(v.b))
		copy(out, v.b)
		return out
	case Null:
		return nil
	case Text:
		if v.b != nil {
			out := make([]byte, len(v.b))
			copy(out, v.b)
			return out
		}
		return []byte(v.s)
	default:
		return []byte(v.String())
	}
}

// Time returns the value as a timestamp.
//
// Numeric kinds are read as seconds since the Unix epoch. Text and Blob are
// parsed with TimeLayout in local time. The boolean is false when no
// timestamp can be derived.
func (v Value) Time() (time.Time, bool) {
	switch v.kind {
	case Integer:
		return time.Unix(v.i, 0), true
	case Real:
		return fromEpoch(v.f), true
	case Text:
		return parseLayout(v.s)
	case Blob:
		return parseLayout(string(v.b))
	case Timestamp:
		return v.t, true
	default:
		return time.Time{}, false
	}
}

// Raw returns the natural Go representation: int64, float64, string,
// []byte, time.Time or nil.
func (v Value) Raw() any {
	switch v.kind {
	case Integer:
		return v.i
	case Real:
		return v.f
	case Text:
		return v.s
	case Blob:
		return v.Bytes()
	case Timestamp:
		return v.t
	default:
		return nil
	}
}

// MarshalJSON encodes the value in its natural JSON form.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == Real && (math.IsNaN(v.f) || math.IsInf(v.f, 0)) {
		return []byte("null"), nil
	}
	return json.Marshal(v.Raw())
}

// GoString renders the value for debugging as <Kind: text>.
func (v Value) GoString() string {
	return "<" + v.kind.String() + ": " + v.String() + ">"
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func clampInt(f float64) int64 {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt64:
		return math.MaxInt64
	case f <= math.MinInt64:
		return math.MinInt64
	default:
		return int64(f)
	}
}

func epochSeconds(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/float64(time.Second)
}

func fromEpoch(seconds float64) time.Time {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return time.Unix(0, 0)
	}
	whole, frac := math.Modf(seconds)
	return time.Unix(int64(whole), int64(math.Round(frac*float64(time.Second))))
}

func parseLayout(s string) (time.Time, bool) {
	t, err := time.ParseInLocation(TimeLayout, strings.TrimSpace(s), time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// leadingInt parses an optional sign followed by digits, ignoring leading
// whitespace and anything after the digits.
func leadingInt(s string) int64 {
	s = strings.TrimLeft(s, " \t\r\n")
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		// Overflow: saturate in the direction of the sign.
		if s[0] == '-' {
			return math.MinInt64
		}
		return math.MaxInt64
	}
	return n
}

// leadingFloat parses the longest decimal float prefix of s.
func leadingFloat(s string) float64 {
	s = strings.TrimLeft(s, " \t\r\n")
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	mantissa := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
		mantissa++
	}
	if end < len(s) && s[end] == '.' {
		end++
		for end < len(s) && s[end] >= '0' && s[end] <= '9' {
			end++
			mantissa++
		}
	}
	if mantissa == 0 {
		return 0
	}
	if end < len(s) && (s[end] == 'e' || s[end] == 'E') {
		exp := end + 1
		if exp < len(s) && (s[exp] == '+' || s[exp] == '-') {
			exp++
		}
		digits := exp
		for exp < len(s) && s[exp] >= '0' && s[exp] <= '9' {
			exp++
		}
		if exp > digits {
			end = exp
		}
	}
	// On overflow ParseFloat still returns ±Inf, which is the wanted result.
	f, _ := strconv.ParseFloat(s[:end], 64) //nolint:errcheck // range errors keep the saturated value
	return f
}
