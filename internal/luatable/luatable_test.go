package luatable

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
)

func sampleRecords() Value {
	return List(
		Map(
			Field("id", Scalar(int64(1))),
			Field("title", Scalar("Main Page")),
			Field("tags", List(Scalar("a"), Scalar("b"))),
		),
		Map(
			Field("id", Scalar(int64(2))),
			Field("title", Scalar("Help")),
			Field("tags", List()),
		),
	)
}

func TestNormalize_RebasesTopLevel(t *testing.T) {
	v := Normalize(List(Scalar(1), Scalar(2), Scalar("banana")))

	assert.Equal(t, KindList, v.Kind())
	assert.Equal(t, 1, v.Base())

	first, ok := v.Index(1)
	require.True(t, ok)
	assert.Equal(t, 1, first.Interface())

	last, ok := v.Index(3)
	require.True(t, ok)
	assert.Equal(t, "banana", last.Interface())

	_, ok = v.Index(0)
	assert.False(t, ok)
}

func TestNormalize_Recurses(t *testing.T) {
	v := Normalize(List(List(Scalar("x")), sampleRecords()))

	inner, ok := v.Index(1)
	require.True(t, ok)
	assert.Equal(t, 1, inner.Base())

	records, ok := v.Index(2)
	require.True(t, ok)
	assert.Equal(t, 1, records.Base())

	rec, ok := records.Index(1)
	require.True(t, ok)
	tags, ok := rec.Get(StringKey("tags"))
	require.True(t, ok)
	assert.Equal(t, 1, tags.Base())
}

func TestNormalize_Idempotent(t *testing.T) {
	once := Normalize(sampleRecords())
	twice := Normalize(once)
	assert.Equal(t, once, twice)

	already := ListFrom(1, Scalar("a"), Scalar("b"))
	assert.Equal(t, already, Normalize(already))
}

func TestNormalize_MapKeysUntouched(t *testing.T) {
	m := Map(
		Entry{Key: IntKey(0), Value: Scalar(true)},
		Entry{Key: IntKey(42), Value: Scalar(false)},
	)
	got := Normalize(m)
	assert.Equal(t, m, got)
}

func TestNormalize_ScalarPassThrough(t *testing.T) {
	for _, s := range []interface{}{nil, true, int64(3), 2.5, "text"} {
		assert.Equal(t, Scalar(s), Normalize(Scalar(s)))
	}
}

func TestToLua(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	L.SetGlobal("records", ToLua(L, Normalize(sampleRecords())))
	err := L.DoString(`
		assert(#records == 2, "two records")
		assert(records[1].id == 1)
		assert(records[1].title == "Main Page")
		assert(#records[1].tags == 2)
		assert(records[1].tags[1] == "a")
		assert(records[2].title == "Help")
		assert(#records[2].tags == 0)
	`)
	require.NoError(t, err)
}

func TestToLua_IntKeyedMap(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	m := Map(
		Entry{Key: IntKey(10), Value: Scalar(true)},
		Entry{Key: IntKey(20), Value: Scalar(false)},
	)
	L.SetGlobal("result", ToLua(L, m))
	require.NoError(t, L.DoString(`assert(result[10] == true); assert(result[20] == false)`))
}

func TestFromLua(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	require.NoError(t, L.DoString(`
		seq = { "a", "b", { 1, 2 } }
		rec = { id = 3, title = "X", ratio = 0.5 }
		sparse = { [5] = true, [1] = false, name = "n" }
		empty = {}
	`))

	seq := FromLua(L.GetGlobal("seq"))
	assert.Equal(t, KindList, seq.Kind())
	assert.Equal(t, 3, seq.Len())
	nested, _ := seq.Index(3)
	assert.Equal(t, ListFrom(1, Scalar(int64(1)), Scalar(int64(2))), nested)

	rec := FromLua(L.GetGlobal("rec"))
	assert.Equal(t, KindMap, rec.Kind())
	id, ok := rec.Get(StringKey("id"))
	require.True(t, ok)
	assert.Equal(t, int64(3), id.Interface())
	ratio, _ := rec.Get(StringKey("ratio"))
	assert.Equal(t, 0.5, ratio.Interface())

	sparse := FromLua(L.GetGlobal("sparse"))
	require.Equal(t, KindMap, sparse.Kind())
	keys := make([]string, 0)
	for _, e := range sparse.Entries() {
		keys = append(keys, e.Key.String())
	}
	assert.Equal(t, []string{"1", "5", "name"}, keys)

	empty := FromLua(L.GetGlobal("empty"))
	assert.Equal(t, KindList, empty.Kind())
	assert.Equal(t, 0, empty.Len())

	assert.Equal(t, Nil(), FromLua(lua.LNil))
}

func TestFromLua_Cycles(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	require.NoError(t, L.DoString(`
		selfref = { name = "loop" }
		selfref.self = selfref

		a = {}
		b = { a }
		a[1] = b

		shared = { 1 }
		twice = { x = shared, y = shared }
	`))

	v := FromLua(L.GetGlobal("selfref"))
	require.Equal(t, KindMap, v.Kind())
	self, ok := v.Get(StringKey("self"))
	require.True(t, ok)
	assert.Equal(t, "table", self.Interface())

	a := FromLua(L.GetGlobal("a"))
	b, _ := a.Index(1)
	inner, _ := b.Index(1)
	assert.Equal(t, "table", inner.Interface())

	// the same table twice is not a cycle
	twice := FromLua(L.GetGlobal("twice"))
	x, _ := twice.Get(StringKey("x"))
	y, _ := twice.Get(StringKey("y"))
	assert.Equal(t, ListFrom(1, Scalar(int64(1))), x)
	assert.Equal(t, x, y)
}

func TestFromLua_DepthLimit(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	require.NoError(t, L.DoString(`
		deep = {}
		local t = deep
		for i = 1, 500 do
			t[1] = {}
			t = t[1]
		end
	`))

	v := FromLua(L.GetGlobal("deep"))
	depth := 0
	for v.Kind() == KindList && v.Len() == 1 {
		v, _ = v.Index(1)
		depth++
	}
	assert.Equal(t, MaxDepth, depth)
	assert.Equal(t, "table", v.Interface())
}

func TestRoundTripThroughLua(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	v := Normalize(sampleRecords())
	back := FromLua(ToLua(L, v))

	first, ok := back.Index(1)
	require.True(t, ok)
	title, ok := first.Get(StringKey("title"))
	require.True(t, ok)
	assert.Equal(t, "Main Page", title.Interface())
}

func TestMarshalJSON(t *testing.T) {
	v := Map(
		Field("pages", Normalize(List(Scalar("A"), Scalar("B")))),
		Entry{Key: IntKey(7), Value: Scalar(true)},
		Field("none", Nil()),
	)

	b, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"pages":["A","B"],"7":true,"none":null}`, string(b))

	b, err = json.Marshal(List())
	require.NoError(t, err)
	assert.Equal(t, "[]", string(b))
}

func TestKey(t *testing.T) {
	assert.True(t, IntKey(5).IsInt())
	assert.Equal(t, "5", IntKey(5).String())
	assert.False(t, StringKey("x").IsInt())
	assert.Equal(t, "x", StringKey("x").String())
	assert.Equal(t, "map", KindMap.String())
}
