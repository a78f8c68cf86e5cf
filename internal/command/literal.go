package command

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Literal renders a value as SQL literal text.
//
// Integers and reals are bare decimal text, text is single-quoted with
// embedded quotes doubled, a []string becomes a quoted JSON array, a
// time.Time becomes its epoch seconds, booleans become 1 or 0 and nil
// becomes NULL. Blobs return ErrUnsupportedValue.
func Literal(v any) (string, error) {
	bound, err := Bind(v)
	if err != nil {
		return "", err
	}

	switch x := bound.(type) {
	case nil:
		return "NULL", nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return "NULL", nil
		}
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case string:
		return quote(x), nil
	case []byte:
		return "", fmt.Errorf("%w: blob literal (%d bytes)", ErrUnsupportedValue, len(x))
	default:
		return "", fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
	}
}

// Bind converts a field value into the argument handed to the driver.
//
// The result is one of nil, int64, float64, string or []byte. Timestamps
// become float epoch seconds and string lists become JSON array text, so a
// bound value stores exactly what Literal would have embedded.
func Bind(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case uint:
		return bindUint(uint64(x))
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint64:
		return bindUint(x)
	case bool:
		if x {
			return int64(1), nil
		}
		return int64(0), nil
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case string:
		return x, nil
	case []byte:
		if x == nil {
			return []byte{}, nil
		}
		out := make([]byte, len(x))
		copy(out, x)
		return out, nil
	case time.Time:
		return EpochSeconds(x), nil
	case []string:
		if x == nil {
			x = []string{}
		}
		data, err := json.Marshal(x)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnsupportedValue, err)
		}
		return string(data), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
	}
}

// bindUint rejects values an SQLite INTEGER cannot hold.
func bindUint(u uint64) (any, error) {
	if u > math.MaxInt64 {
		return nil, fmt.Errorf("%w: %d overflows int64", ErrUnsupportedValue, u)
	}
	return int64(u), nil
}

// EpochSeconds returns t as fractional seconds since the Unix epoch.
func EpochSeconds(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/float64(time.Second)
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
