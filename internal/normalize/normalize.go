// Package normalize turns upstream JSON into the canonical model records.
//
// Every function here is total: it accepts any jsonval.Value, never panics,
// never returns an error, and degrades missing or mistyped fields to the
// record's zero/optional value. Fallback chains are evaluated strictly in
// the documented order; the first field that yields a usable value wins.
package normalize

import (
	"strings"

	"github.com/sakif/movi/internal/jsonval"
)

// idOf stringifies an id that may be a string, a number, or a Mongo-style
// {"$oid": "..."} wrapper.
func idOf(v jsonval.Value) string {
	if v.Kind() == jsonval.Object {
		return v.Get("$oid").TrimmedText()
	}
	return v.TrimmedText()
}

// firstID returns the first non-empty id among keys.
func firstID(v jsonval.Value, keys ...string) string {
	for _, k := range keys {
		if id := idOf(v.Get(k)); id != "" {
			return id
		}
	}
	return ""
}

// firstText returns the first non-empty trimmed string/number among keys.
func firstText(v jsonval.Value, keys ...string) string {
	for _, k := range keys {
		if s := v.Get(k).TrimmedText(); s != "" {
			return s
		}
	}
	return ""
}

// firstString is firstText restricted to JSON strings, for URLs.
func firstString(v jsonval.Value, keys ...string) string {
	for _, k := range keys {
		if s, ok := v.Get(k).Str(); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

// nameOf reads a display name that is either a plain string or a
// {"first": ..., "last": ...} object.
func nameOf(v jsonval.Value) string {
	switch v.Kind() {
	case jsonval.String:
		return v.TrimmedText()
	case jsonval.Object:
		first := v.Get("first").TrimmedText()
		last := v.Get("last").TrimmedText()
		return strings.TrimSpace(first + " " + last)
	default:
		return ""
	}
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func optFloat(v jsonval.Value) *float64 {
	f, ok := v.Float()
	if !ok {
		return nil
	}
	return &f
}

func optPositiveInt(v jsonval.Value) *int {
	n, ok := v.Int()
	if !ok || n <= 0 {
		return nil
	}
	return &n
}

// Items extracts the array stored under field, tolerating a bare array
// body as well.
func Items(body jsonval.Value, field string) []jsonval.Value {
	if body.Kind() == jsonval.Array {
		return body.Array()
	}
	return body.Get(field).Array()
}
