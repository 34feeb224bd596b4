// Package jsonval holds an untyped JSON document as a tagged value.
//
// Upstream payloads (backend lists, activity logs, TMDB and OpenLibrary
// results) are not schema-disciplined: fields go missing, switch between
// numbers and strings, or arrive wrapped in database envelopes such as
// {"$date": ...}. Decoding into fixed structs would either fail or silently
// zero those fields, so the normalizers walk a Value instead and narrow each
// field explicitly.
//
// A missing key, an out-of-range index, or a lookup on the wrong kind all
// yield the Null value, so chains like v.Get("meta").Get("title") never
// panic.
package jsonval

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Kind is the JSON type of a Value.
type Kind int

const (
	Null Kind = iota
	Bool
	Number
	String
	Array
	Object
)

func (k Kind) String() string {
	switch k {
	case Bool:
		return "bool"
	case Number:
		return "number"
	case String:
		return "string"
	case Array:
		return "array"
	case Object:
		return "object"
	default:
		return "null"
	}
}

// Value is an immutable JSON value. The zero Value is Null.
type Value struct {
	kind Kind
	b    bool
	num  json.Number
	str  string
	arr  []Value
	obj  map[string]Value
}

// Parse decodes a JSON document. Numbers keep their literal text so large
// ids survive the round trip.
func Parse(data []byte) (Value, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Value{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return Value{}, fmt.Errorf("jsonval: decoding: %w", err)
	}
	return FromAny(raw), nil
}

// MustParse is Parse for literals in tests and fixtures.
func MustParse(s string) Value {
	v, err := Parse([]byte(s))
	if err != nil {
		panic(err)
	}
	return v
}

// FromAny converts the output of a generic JSON decode (or a hand-built
// map/slice literal) into a Value. Unsupported Go types become Null.
func FromAny(raw any) Value {
	switch t := raw.(type) {
	case nil:
		return Value{}
	case Value:
		return t
	case bool:
		return Value{kind: Bool, b: t}
	case json.Number:
		return Value{kind: Number, num: t}
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return Value{}
		}
		return Value{kind: Number, num: json.Number(strconv.FormatFloat(t, 'f', -1, 64))}
	case int:
		return Value{kind: Number, num: json.Number(strconv.Itoa(t))}
	case int64:
		return Value{kind: Number, num: json.Number(strconv.FormatInt(t, 10))}
	case string:
		return Value{kind: String, str: t}
	case []any:
		arr := make([]Value, len(t))
		for i, e := range t {
			arr[i] = FromAny(e)
		}
		return Value{kind: Array, arr: arr}
	case []Value:
		return Value{kind: Array, arr: t}
	case map[string]any:
		obj := make(map[string]Value, len(t))
		for k, e := range t {
			obj[k] = FromAny(e)
		}
		return Value{kind: Object, obj: obj}
	case map[string]Value:
		return Value{kind: Object, obj: t}
	default:
		return Value{}
	}
}

func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is JSON null or absent.
func (v Value) IsNull() bool { return v.kind == Null }

// Get returns the member named key, or Null.
func (v Value) Get(key string) Value {
	if v.kind != Object {
		return Value{}
	}
	return v.obj[key]
}

// Has reports whether the object has a non-null member named key.
func (v Value) Has(key string) bool {
	return !v.Get(key).IsNull()
}

// Path follows a chain of object keys.
func (v Value) Path(keys ...string) Value {
	cur := v
	for _, k := range keys {
		cur = cur.Get(k)
	}
	return cur
}

// Index returns element i of an array, or Null.
func (v Value) Index(i int) Value {
	if v.kind != Array || i < 0 || i >= len(v.arr) {
		return Value{}
	}
	return v.arr[i]
}

// Len is the number of elements or members; 0 for scalars.
func (v Value) Len() int {
	switch v.kind {
	case Array:
		return len(v.arr)
	case Object:
		return len(v.obj)
	default:
		return 0
	}
}

// Array returns the elements, or nil when v is not an array.
func (v Value) Array() []Value {
	if v.kind != Array {
		return nil
	}
	return v.arr
}

// Keys returns the object's member names in sorted order.
func (v Value) Keys() []string {
	if v.kind != Object {
		return nil
	}
	keys := make([]string, 0, len(v.obj))
	for k := range v.obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Str returns the string if v is a JSON string.
func (v Value) Str() (string, bool) {
	if v.kind != String {
		return "", false
	}
	return v.str, true
}

// Bool returns the boolean if v is a JSON boolean.
func (v Value) Bool() (bool, bool) {
	if v.kind != Bool {
		return false, false
	}
	return v.b, true
}

// Number returns the literal if v is a JSON number.
func (v Value) Number() (json.Number, bool) {
	if v.kind != Number {
		return "", false
	}
	return v.num, true
}

// Float returns v as a finite float64. JSON numbers and numeric strings
// qualify; everything else, including NaN and infinities, does not.
func (v Value) Float() (float64, bool) {
	var (
		f   float64
		err error
	)
	switch v.kind {
	case Number:
		f, err = v.num.Float64()
	case String:
		s := strings.TrimSpace(v.str)
		if s == "" {
			return 0, false
		}
		f, err = strconv.ParseFloat(s, 64)
	default:
		return 0, false
	}
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Int returns v as an int when it is an integral finite number (or a
// numeric string holding one).
func (v Value) Int() (int, bool) {
	f, ok := v.Float()
	if !ok || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return 0, false
	}
	return int(f), true
}

// Text renders strings and numbers as text. Ids arrive as either, and both
// must compare equal once stringified. Other kinds yield "".
func (v Value) Text() string {
	switch v.kind {
	case String:
		return v.str
	case Number:
		return v.num.String()
	default:
		return ""
	}
}

// TrimmedText is Text with surrounding whitespace removed.
func (v Value) TrimmedText() string {
	return strings.TrimSpace(v.Text())
}

// Interface converts v back to plain Go values (map[string]any, []any,
// json.Number, string, bool, nil).
func (v Value) Interface() any {
	switch v.kind {
	case Bool:
		return v.b
	case Number:
		return v.num
	case String:
		return v.str
	case Array:
		out := make([]any, len(v.arr))
		for i, e := range v.arr {
			out[i] = e.Interface()
		}
		return out
	case Object:
		out := make(map[string]any, len(v.obj))
		for k, e := range v.obj {
			out[k] = e.Interface()
		}
		return out
	default:
		return nil
	}
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON implements json.Unmarshaler so a Value can sit inside a
// typed envelope.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// String renders v as compact JSON, for logs.
func (v Value) String() string {
	b, err := v.MarshalJSON()
	if err != nil {
		return "<invalid>"
	}
	return string(b)
}
