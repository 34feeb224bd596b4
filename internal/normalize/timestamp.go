package normalize

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/movi/internal/jsonval"
)

// epochMillisThreshold separates epoch milliseconds from epoch seconds:
// anything above it is read as milliseconds.
const epochMillisThreshold = 1e12

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",     // isoformat() without offset; fractions are accepted too
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02",
}

// Timestamp reads the wire representations the backend has been seen to
// emit:
//
//	"2024-05-01T12:00:00Z"              ISO-8601, with or without offset
//	1714564800 / 1714564800000          epoch seconds / milliseconds
//	{"$date": "2024-05-01T12:00:00Z"}   extended-JSON wrappers, where
//	{"$date": 1714564800000}            $date holds a string, a number,
//	{"$date": {"$numberLong": "..."}}   or a $numberLong
//
// Anything else yields the zero time, which sorts as oldest.
func Timestamp(v jsonval.Value) time.Time {
	switch v.Kind() {
	case jsonval.String:
		return parseTimeString(v.TrimmedText())
	case jsonval.Number:
		f, ok := v.Float()
		if !ok {
			return time.Time{}
		}
		return fromEpoch(f)
	case jsonval.Object:
		if d := v.Get("$date"); !d.IsNull() {
			return Timestamp(d)
		}
		if n := v.Get("$numberLong"); !n.IsNull() {
			return Timestamp(n)
		}
	}
	return time.Time{}
}

func parseTimeString(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return fromEpoch(f)
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	// Some writers use a trailing "+00" instead of "+00:00".
	if strings.HasSuffix(s, "+00") {
		return parseTimeString(s + ":00")
	}
	return time.Time{}
}

func fromEpoch(f float64) time.Time {
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return time.Time{}
	}
	if f > epochMillisThreshold {
		return time.UnixMilli(int64(f)).UTC()
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}
