package value

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// timestampFormats are tried in order when a timestamp column holds text.
// The fixed layout comes first; the rest cover what the sqlite3 driver and
// SQLite's own date functions write.
var timestampFormats = []string{
	TimeLayout,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
}

// KindOf reports the kind matching a raw driver value's Go type.
// It is used when a column has no declared type.
func KindOf(raw any) Kind {
	switch raw.(type) {
	case nil:
		return Null
	case int64, int, int32, bool:
		return Integer
	case float64, float32:
		return Real
	case []byte:
		return Blob
	case time.Time:
		return Timestamp
	default:
		return Text
	}
}

func rawInt(raw any) int64 {
	switch x := raw.(type) {
	case int64:
		return x
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case float64:
		return clampInt(x)
	case float32:
		return clampInt(float64(x))
	case bool:
		if x {
			return 1
		}
		return 0
	case string:
		return leadingInt(x)
	case []byte:
		return leadingInt(string(x))
	case time.Time:
		return x.Unix()
	default:
		return 0
	}
}

func rawFloat(raw any) float64 {
	switch x := raw.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int64:
		return float64(x)
	case int:
		return float64(x)
	case int32:
		return float64(x)
	case bool:
		if x {
			return 1
		}
		return 0
	case string:
		return leadingFloat(x)
	case []byte:
		return leadingFloat(string(x))
	case time.Time:
		return epochSeconds(x)
	default:
		return 0
	}
}

func rawString(raw any) string {
	switch x := raw.(type) {
	case string:
		return x
	case []byte:
		if !utf8.Valid(x) {
			return ""
		}
		return string(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case float64:
		return formatFloat(x)
	case float32:
		return formatFloat(float64(x))
	case bool:
		if x {
			return "1"
		}
		return "0"
	case time.Time:
		return x.In(time.Local).Format(TimeLayout)
	default:
		return ""
	}
}

func rawBytes(raw any) []byte {
	switch x := raw.(type) {
	case []byte:
		out := make([]byte, len(x))
		copy(out, x)
		return out
	case string:
		return []byte(x)
	default:
		return []byte(rawString(raw))
	}
}

// rawTime converts a raw driver value stored in a timestamp column.
// Text that matches none of the known layouts is read as a numeric epoch,
// so unparseable text lands on the epoch instead of failing.
func rawTime(raw any) time.Time {
	switch x := raw.(type) {
	case time.Time:
		return x
	case int64:
		return time.Unix(x, 0)
	case int:
		return time.Unix(int64(x), 0)
	case float64:
		return fromEpoch(x)
	case float32:
		return fromEpoch(float64(x))
	case string:
		return parseTimestamp(x)
	case []byte:
		return parseTimestamp(string(x))
	default:
		return time.Unix(0, 0)
	}
}

func parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if strings.ContainsAny(s, "-:") {
		trimmed := strings.TrimSuffix(s, "Z")
		for _, layout := range timestampFormats {
			if t, err := time.ParseInLocation(layout, trimmed, time.Local); err == nil {
				return t
			}
		}
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t
		}
	}
	return fromEpoch(leadingFloat(s))
}
