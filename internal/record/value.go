package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Value is a sealed interface representing the value kinds a parsed record
// may hold. Only String, Number, Bool, Datetime, Ref, Null, Object, *List
// and Map implement it.
type Value interface {
	recordValue() // Sealed - only these types implement it
}

// Null represents an explicit null slot inside a List.
// Record properties are never set to Null - an unset property is absent.
type Null struct{}

func (Null) recordValue() {}

// MarshalJSON implements json.Marshaler for Null.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// String represents a string property value.
type String string

func (String) recordValue() {}

// Number represents a numeric property value.
// Record ids of number type render without a fractional part when integral.
type Number float64

func (Number) recordValue() {}

// Bool represents a boolean property value.
type Bool bool

func (Bool) recordValue() {}

// Datetime represents a datetime property value as an ISO-8601 UTC string.
type Datetime string

func (Datetime) recordValue() {}

// MarshalJSON implements json.Marshaler for Datetime.
func (d Datetime) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(d))
}

// Ref represents a reference property value in the canonical
// "<RecordTypeName>#<id>" format.
type Ref string

func (Ref) recordValue() {}

// MarshalJSON implements json.Marshaler for Ref.
func (r Ref) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(r))
}

// Object represents a record or nested object: a mapping from property name
// to value. Unset optional properties are absent, never Null.
type Object map[string]Value

func (Object) recordValue() {}

// List represents an ordered collection property. It has pointer semantics:
// the parser binds a *List into the parent object once and appends elements
// in place as rows arrive.
type List struct {
	Elems []Value
}

func (*List) recordValue() {}

// Append adds an element to the list.
func (l *List) Append(v Value) {
	l.Elems = append(l.Elems, v)
}

// Map represents a string-keyed collection property. Ref-typed keys use the
// canonical "<RecordTypeName>#<id>" rendering.
type Map map[string]Value

func (Map) recordValue() {}

// NumberID renders a Number the way a record id of number type appears in a
// reference value: integral numbers carry no fractional part.
func NumberID(n Number) string {
	return strconv.FormatFloat(float64(n), 'f', -1, 64)
}

// RefValue builds the canonical reference string for a record type and id.
// The id must be a String or Number per the schema id invariants.
func RefValue(typeName string, id Value) string {
	switch v := id.(type) {
	case String:
		return typeName + "#" + string(v)
	case Number:
		return typeName + "#" + NumberID(v)
	default:
		return typeName + "#" + fmt.Sprintf("%v", id)
	}
}

// Equal reports deep structural equality of two values.
// Absent map keys and absent object properties never equal present ones.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case Null:
		_, ok := b.(Null)
		return ok
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Number:
		bv, ok := b.(Number)
		return ok && av == bv
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case Datetime:
		bv, ok := b.(Datetime)
		return ok && av == bv
	case Ref:
		bv, ok := b.(Ref)
		return ok && av == bv
	case Object:
		bv, ok := b.(Object)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			w, ok := bv[k]
			if !ok || !Equal(v, w) {
				return false
			}
		}
		return true
	case *List:
		bv, ok := b.(*List)
		if !ok || len(av.Elems) != len(bv.Elems) {
			return false
		}
		for i, v := range av.Elems {
			if !Equal(v, bv.Elems[i]) {
				return false
			}
		}
		return true
	case Map:
		bv, ok := b.(Map)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			w, ok := bv[k]
			if !ok || !Equal(v, w) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// MarshalJSON implements json.Marshaler for Object with sorted keys
// (RFC 8785 ordering).
func (obj Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	keys := obj.SortedKeys()
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := MarshalValue(obj[k])
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %q: %w", k, err)
		}
		buf.Write(valBytes)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalJSON implements json.Marshaler for Map with sorted keys.
func (m Map) MarshalJSON() ([]byte, error) {
	return Object(m).MarshalJSON()
}

// MarshalJSON implements json.Marshaler for List.
func (l *List) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, elem := range l.Elems {
		if i > 0 {
			buf.WriteByte(',')
		}
		elemBytes, err := MarshalValue(elem)
		if err != nil {
			return nil, fmt.Errorf("list[%d]: %w", i, err)
		}
		buf.Write(elemBytes)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// MarshalValue marshals a Value to JSON bytes.
// Uses type-switch dispatch to handle all Value types correctly.
// NOTE: This is NOT canonical marshaling. Use MarshalCanonical for golden
// comparisons and content-addressed output.
func MarshalValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case Null:
		return []byte("null"), nil
	case String:
		return json.Marshal(string(val))
	case Number:
		return json.Marshal(float64(val))
	case Bool:
		return json.Marshal(bool(val))
	case Datetime:
		return json.Marshal(string(val))
	case Ref:
		return json.Marshal(string(val))
	case Object:
		return val.MarshalJSON()
	case Map:
		return val.MarshalJSON()
	case *List:
		return val.MarshalJSON()
	default:
		return nil, fmt.Errorf("unknown record value type: %T", v)
	}
}
