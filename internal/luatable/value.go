// Package luatable models values handed to the Lua host.
//
// A Value is a tagged variant: a scalar leaf, an ordered list that carries
// the index of its first element, or a mapping with explicit keys. Go code
// builds lists with base 0; Normalize re-bases every list to 1 so the Lua
// side sees conventional sequences.
package luatable

import (
	"fmt"
	"strconv"
)

// Kind identifies the variant held by a Value
type Kind int

const (
	KindScalar Kind = iota
	KindList
	KindMap
)

// String returns the name of the kind
func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// Key is a mapping key: either an integer or a string
type Key struct {
	str   string
	num   int64
	isNum bool
}

// IntKey creates an integer key
func IntKey(n int64) Key {
	return Key{num: n, isNum: true}
}

// StringKey creates a string key
func StringKey(s string) Key {
	return Key{str: s}
}

// IsInt reports whether the key is an integer
func (k Key) IsInt() bool {
	return k.isNum
}

// Int returns the integer form of the key
func (k Key) Int() int64 {
	return k.num
}

// String returns the key as text
func (k Key) String() string {
	if k.isNum {
		return strconv.FormatInt(k.num, 10)
	}
	return k.str
}

// Entry is one key/value pair of a map
type Entry struct {
	Key   Key
	Value Value
}

// Value is a scalar, list or map
type Value struct {
	kind    Kind
	scalar  interface{}
	base    int
	items   []Value
	entries []Entry
}

// Scalar wraps a leaf value: nil, bool, integer, float or string
func Scalar(v interface{}) Value {
	return Value{kind: KindScalar, scalar: v}
}

// Nil is the empty scalar
func Nil() Value {
	return Scalar(nil)
}

// List creates a 0-based list
func List(items ...Value) Value {
	return ListFrom(0, items...)
}

// ListFrom creates a list whose first element sits at index base
func ListFrom(base int, items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindList, base: base, items: items}
}

// Map creates a mapping with entries kept in insertion order
func Map(entries ...Entry) Value {
	if entries == nil {
		entries = []Entry{}
	}
	return Value{kind: KindMap, entries: entries}
}

// Field is shorthand for a string-keyed entry
func Field(name string, v Value) Entry {
	return Entry{Key: StringKey(name), Value: v}
}

// Kind returns the variant held by v
func (v Value) Kind() Kind {
	return v.kind
}

// Interface returns the scalar payload; it is nil for lists and maps
func (v Value) Interface() interface{} {
	return v.scalar
}

// Base returns the index of the first list element
func (v Value) Base() int {
	return v.base
}

// Items returns the list elements
func (v Value) Items() []Value {
	return v.items
}

// Entries returns the map entries
func (v Value) Entries() []Entry {
	return v.entries
}

// Len returns the number of list elements or map entries
func (v Value) Len() int {
	switch v.kind {
	case KindList:
		return len(v.items)
	case KindMap:
		return len(v.entries)
	default:
		return 0
	}
}

// Index returns the list element at the given index, honoring the base
func (v Value) Index(i int) (Value, bool) {
	if v.kind != KindList {
		return Value{}, false
	}
	pos := i - v.base
	if pos < 0 || pos >= len(v.items) {
		return Value{}, false
	}
	return v.items[pos], true
}

// Get looks up a map entry
func (v Value) Get(k Key) (Value, bool) {
	if v.kind != KindMap {
		return Value{}, false
	}
	for _, e := range v.entries {
		if e.Key == k {
			return e.Value, true
		}
	}
	return Value{}, false
}

// GoString renders the value for debugging
func (v Value) GoString() string {
	switch v.kind {
	case KindList:
		return fmt.Sprintf("list(base=%d)%v", v.base, v.items)
	case KindMap:
		return fmt.Sprintf("map%v", v.entries)
	default:
		return fmt.Sprintf("%#v", v.scalar)
	}
}
