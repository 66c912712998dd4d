package luatable

import (
	"fmt"
	"math"
	"sort"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// ToLua converts v into a Lua value owned by L. List elements are stored at
// base+i, so callers hand in normalized values.
func ToLua(L *lua.LState, v Value) lua.LValue {
	switch v.kind {
	case KindList:
		tbl := L.CreateTable(len(v.items), 0)
		for i, item := range v.items {
			tbl.RawSetInt(v.base+i, ToLua(L, item))
		}
		return tbl

	case KindMap:
		tbl := L.CreateTable(0, len(v.entries))
		for _, e := range v.entries {
			if e.Key.IsInt() {
				tbl.RawSetInt(int(e.Key.Int()), ToLua(L, e.Value))
			} else {
				tbl.RawSetString(e.Key.String(), ToLua(L, e.Value))
			}
		}
		return tbl

	default:
		return scalarToLua(v.scalar)
	}
}

func scalarToLua(s interface{}) lua.LValue {
	switch x := s.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(x)
	case string:
		return lua.LString(x)
	case int:
		return lua.LNumber(x)
	case int32:
		return lua.LNumber(x)
	case int64:
		return lua.LNumber(x)
	case uint32:
		return lua.LNumber(x)
	case float64:
		return lua.LNumber(x)
	case time.Time:
		return lua.LString(x.UTC().Format(time.RFC3339))
	case fmt.Stringer:
		return lua.LString(x.String())
	default:
		return lua.LString(fmt.Sprint(x))
	}
}

// MaxDepth bounds how deeply nested tables FromLua descends into
const MaxDepth = 100

// FromLua converts a Lua value into a Value. Tables whose keys are exactly
// 1..n become base-1 lists; any other table becomes a map with integer keys
// first (ascending) and string keys after (sorted). Keys of other types and
// non-data values such as functions are rendered by their type name. A table
// that contains itself, or one nested deeper than MaxDepth, is rendered as
// the scalar "table" at the point of repetition.
func FromLua(lv lua.LValue) Value {
	return fromLua(lv, make(map[*lua.LTable]bool))
}

// fromLua converts lv; path holds the tables currently being converted
func fromLua(lv lua.LValue, path map[*lua.LTable]bool) Value {
	switch x := lv.(type) {
	case *lua.LNilType:
		return Nil()
	case lua.LBool:
		return Scalar(bool(x))
	case lua.LString:
		return Scalar(string(x))
	case lua.LNumber:
		f := float64(x)
		if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return Scalar(int64(f))
		}
		return Scalar(f)
	case *lua.LTable:
		if path[x] || len(path) >= MaxDepth {
			return Scalar(lua.LTTable.String())
		}
		path[x] = true
		defer delete(path, x)
		return tableFromLua(x, path)
	default:
		return Scalar(lv.Type().String())
	}
}

func tableFromLua(tbl *lua.LTable, path map[*lua.LTable]bool) Value {
	ints := make(map[int64]Value)
	strs := make(map[string]Value)

	tbl.ForEach(func(k, v lua.LValue) {
		switch key := k.(type) {
		case lua.LNumber:
			f := float64(key)
			if f == math.Trunc(f) {
				ints[int64(f)] = fromLua(v, path)
				return
			}
			strs[key.String()] = fromLua(v, path)
		case lua.LString:
			strs[string(key)] = fromLua(v, path)
		default:
			strs[k.String()] = fromLua(v, path)
		}
	})

	if len(strs) == 0 && isSequence(ints) {
		items := make([]Value, len(ints))
		for i := range items {
			items[i] = ints[int64(i+1)]
		}
		return ListFrom(1, items...)
	}

	intKeys := make([]int64, 0, len(ints))
	for k := range ints {
		intKeys = append(intKeys, k)
	}
	sort.Slice(intKeys, func(i, j int) bool { return intKeys[i] < intKeys[j] })

	strKeys := make([]string, 0, len(strs))
	for k := range strs {
		strKeys = append(strKeys, k)
	}
	sort.Strings(strKeys)

	entries := make([]Entry, 0, len(ints)+len(strs))
	for _, k := range intKeys {
		entries = append(entries, Entry{Key: IntKey(k), Value: ints[k]})
	}
	for _, k := range strKeys {
		entries = append(entries, Entry{Key: StringKey(k), Value: strs[k]})
	}
	return Map(entries...)
}

// isSequence reports whether the keys are exactly 1..len(keys)
func isSequence(keys map[int64]Value) bool {
	for i := int64(1); i <= int64(len(keys)); i++ {
		if _, ok := keys[i]; !ok {
			return false
		}
	}
	return true
}
