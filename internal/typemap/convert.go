package typemap

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"

	"github.com/coregx/rse/internal/types"
)

// ToUUID converts v to a UUID. Strings are parsed, 16-byte slices are taken as raw bytes.
func ToUUID(v any) (uuid.UUID, error) {
	switch x := v.(type) {
	case uuid.UUID:
		return x, nil
	case [16]byte:
		return uuid.UUID(x), nil
	case []byte:
		if len(x) == 16 {
			return uuid.FromBytes(x)
		}
		return uuid.ParseBytes(x)
	case string:
		return uuid.Parse(x)
	case fmt.Stringer:
		return uuid.Parse(x.String())
	}
	return uuid.Nil, types.ErrConversion.New(v, types.GUID)
}

// ToDecimal converts v to a decimal.
func ToDecimal(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, nil
	case *decimal.Decimal:
		if x == nil {
			return decimal.Zero, types.ErrConversion.New(v, types.Decimal)
		}
		return *x, nil
	case string:
		return decimal.NewFromString(x)
	case []byte:
		return decimal.NewFromString(string(x))
	case float32:
		return decimal.NewFromFloat32(x), nil
	case float64:
		return decimal.NewFromFloat(x), nil
	case uint64:
		return decimal.NewFromString(strconv.FormatUint(x, 10))
	}
	n, err := cast.ToInt64E(v)
	if err != nil {
		return decimal.Zero, types.ErrConversion.New(v, types.Decimal)
	}
	return decimal.NewFromInt(n), nil
}

// TimeOfDay converts v to the duration since midnight. It accepts durations,
// clock values of time.Time and "15:04:05[.ffffff]" strings.
func TimeOfDay(v any) (time.Duration, error) {
	switch x := v.(type) {
	case time.Duration:
		return x, nil
	case time.Time:
		h, m, s := x.Clock()
		return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute +
			time.Duration(s)*time.Second + time.Duration(x.Nanosecond()), nil
	case []byte:
		return parseTimeOfDay(string(x))
	case string:
		return parseTimeOfDay(x)
	}
	return 0, types.ErrConversion.New(v, types.Time)
}

func parseTimeOfDay(s string) (time.Duration, error) {
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return 0, types.ErrConversion.New(s, types.Time)
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	sec, err3 := strconv.ParseFloat(parts[2], 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, types.ErrConversion.New(s, types.Time)
	}
	d := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(math.Round(sec*1e9))
	if neg {
		d = -d
	}
	return d, nil
}

// FormatTimeOfDay formats a duration since midnight as HH:MM:SS.ffffff.
func FormatTimeOfDay(d time.Duration) string {
	d %= 24 * time.Hour
	if d < 0 {
		d += 24 * time.Hour
	}
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	us := (d % time.Second) / time.Microsecond
	return fmt.Sprintf("%02d:%02d:%02d.%06d", h, m, s, us)
}

// ToTime converts v to a time.Time.
func ToTime(v any) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return x, nil
	case []byte:
		v = string(x)
	}
	if s, ok := v.(string); ok {
		for _, layout := range []string{"2006-01-02 15:04:05.999999999", "2006-01-02 15:04:05.999999999-07:00"} {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
	}
	t, err := cast.ToTimeE(v)
	if err != nil {
		return time.Time{}, types.ErrConversion.New(v, types.DateTime)
	}
	return t, nil
}

// ToInterval converts v to a duration. Integers are nanoseconds.
func ToInterval(v any) (time.Duration, error) {
	if d, ok := v.(time.Duration); ok {
		return d, nil
	}
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	n, err := cast.ToInt64E(v)
	if err != nil {
		return 0, types.ErrConversion.New(v, types.Interval)
	}
	return time.Duration(n), nil
}

func toUint64(v any) (uint64, error) {
	switch x := v.(type) {
	case []byte:
		return strconv.ParseUint(string(x), 10, 64)
	case string:
		return strconv.ParseUint(x, 10, 64)
	case decimal.Decimal:
		return strconv.ParseUint(x.String(), 10, 64)
	}
	n, err := cast.ToUint64E(v)
	if err != nil {
		return 0, types.ErrConversion.New(v, types.UInt64)
	}
	return n, nil
}

func text(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
