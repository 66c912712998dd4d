package scribunto

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"

	"github.com/cattools/cattools/internal/budget"
	"github.com/cattools/cattools/internal/categories"
	"github.com/cattools/cattools/internal/finder"
	"github.com/cattools/cattools/internal/luatable"
)

type fakeToolbox struct {
	hasPage   bool
	pages     []categories.PageRecord
	members   map[int64]bool
	err       error
	namespace *int
	opts      categories.PagesOptions
	ids       []int64
	names     []string
	mode      finder.Mode
}

func (f *fakeToolbox) CategoryHasPage(_ context.Context, _ string, _ int, _ string) (bool, error) {
	return f.hasPage, f.err
}

func (f *fakeToolbox) CategoryPagesTable(_ context.Context, _ string, namespace *int, opts categories.PagesOptions) (luatable.Value, error) {
	f.namespace = namespace
	f.opts = opts
	if f.err != nil {
		return luatable.Value{}, f.err
	}
	return categories.RecordsTable(f.pages), nil
}

func (f *fakeToolbox) ArePagesInCategoriesTable(_ context.Context, ids []int64, names []string, mode finder.Mode) (luatable.Value, error) {
	f.ids = ids
	f.names = names
	f.mode = mode
	if f.err != nil {
		return luatable.Value{}, f.err
	}
	entries := make([]luatable.Entry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, luatable.Entry{Key: luatable.IntKey(id), Value: luatable.Scalar(f.members[id])})
	}
	return luatable.Map(entries...), nil
}

func newTestState(t *testing.T, tb Toolbox) (*lua.LState, *Library) {
	t.Helper()
	L := newSandbox()
	t.Cleanup(L.Close)

	lib := NewLibrary(tb, nil)
	lib.Register(L)
	return L, lib
}

func TestRegister_RequireAndGlobal(t *testing.T) {
	L, _ := newTestState(t, &fakeToolbox{hasPage: true})

	err := L.DoString(`
		local ct = require("mw.ext.cattools")
		assert(ct == mw.ext.cattools)
		assert(type(ct.categoryHasPage) == "function")
		assert(type(ct.categoryPages) == "function")
		assert(type(ct.arePagesInCategories) == "function")
	`)
	require.NoError(t, err)
}

func TestCategoryHasPage_Lua(t *testing.T) {
	L, _ := newTestState(t, &fakeToolbox{hasPage: true})

	require.NoError(t, L.DoString(`result = mw.ext.cattools.categoryHasPage("Foo", 0, "Bar")`))
	assert.Equal(t, lua.LTrue, L.GetGlobal("result"))
}

func TestCategoryHasPage_ArgumentTypes(t *testing.T) {
	L, _ := newTestState(t, &fakeToolbox{})

	err := L.DoString(`mw.ext.cattools.categoryHasPage("Foo", "zero", "Bar")`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad argument #2")
}

func TestNamespaceMustBeInteger(t *testing.T) {
	tb := &fakeToolbox{}
	L, _ := newTestState(t, tb)

	for _, src := range []string{
		`mw.ext.cattools.categoryHasPage("Foo", 1.5, "Bar")`,
		`mw.ext.cattools.categoryPages("Foo", 1.5)`,
		`mw.ext.cattools.categoryPages("Foo", 1e12)`,
	} {
		err := L.DoString(src)
		require.Error(t, err, src)
		assert.Contains(t, err.Error(), "bad argument #2", src)
		assert.Contains(t, err.Error(), "namespace must be an integer", src)
	}
	assert.Nil(t, tb.namespace)

	require.NoError(t, L.DoString(`mw.ext.cattools.categoryPages("Foo", 14.0)`))
	require.NotNil(t, tb.namespace)
	assert.Equal(t, 14, *tb.namespace)
}

func TestCategoryPages_Lua(t *testing.T) {
	tb := &fakeToolbox{pages: []categories.PageRecord{
		{ID: 1, Title: "Main Page", NS: 0, Type: categories.LinkPage},
		{ID: 2, Title: "Help", NS: 12, Type: categories.LinkPage},
	}}
	L, _ := newTestState(t, tb)

	err := L.DoString(`
		local pages = mw.ext.cattools.categoryPages("Foo", 0, {
			sortkeyPrefix = "M",
			orderByRecency = true,
			limit = 10,
			offset = 5,
		})
		assert(#pages == 2)
		assert(pages[0] == nil)
		assert(pages[1].title == "Main Page")
		assert(pages[2].ns == 12)
		assert(pages[2].type == "page")
	`)
	require.NoError(t, err)

	require.NotNil(t, tb.namespace)
	assert.Equal(t, 0, *tb.namespace)
	assert.Equal(t, "M", *tb.opts.SortkeyPrefix)
	assert.True(t, *tb.opts.OrderByRecency)
	assert.Equal(t, 10, *tb.opts.Limit)
	assert.Equal(t, 5, *tb.opts.Offset)
}

func TestCategoryPages_OptionalArguments(t *testing.T) {
	tb := &fakeToolbox{}
	L, _ := newTestState(t, tb)

	require.NoError(t, L.DoString(`
		local pages = mw.ext.cattools.categoryPages("Foo")
		assert(#pages == 0)
	`))
	assert.Nil(t, tb.namespace)
	assert.Nil(t, tb.opts.Limit)

	require.NoError(t, L.DoString(`mw.ext.cattools.categoryPages("Foo", nil, {limit = 3})`))
	assert.Nil(t, tb.namespace)
	assert.Equal(t, 3, *tb.opts.Limit)
}

func TestCategoryPages_BadOptions(t *testing.T) {
	L, _ := newTestState(t, &fakeToolbox{})

	for _, src := range []string{
		`mw.ext.cattools.categoryPages("Foo", nil, {limit = 2.5})`,
		`mw.ext.cattools.categoryPages("Foo", nil, {limit = "ten"})`,
		`mw.ext.cattools.categoryPages("Foo", nil, {orderByRecency = 1})`,
		`mw.ext.cattools.categoryPages("Foo", nil, {sortkeyPrefix = {}})`,
	} {
		err := L.DoString(src)
		require.Error(t, err, src)
		assert.Contains(t, err.Error(), "bad argument #3", src)
	}
}

func TestArePagesInCategories_Lua(t *testing.T) {
	tb := &fakeToolbox{members: map[int64]bool{10: true}}
	L, _ := newTestState(t, tb)

	err := L.DoString(`
		local r = mw.ext.cattools.arePagesInCategories({10, 20}, {"A", "B"}, "ANY")
		assert(r[10] == true)
		assert(r[20] == false)
	`)
	require.NoError(t, err)

	assert.Equal(t, []int64{10, 20}, tb.ids)
	assert.Equal(t, []string{"A", "B"}, tb.names)
	assert.Equal(t, finder.ModeAny, tb.mode)
}

func TestArePagesInCategories_SingleCategoryDefaultMode(t *testing.T) {
	tb := &fakeToolbox{}
	L, _ := newTestState(t, tb)

	require.NoError(t, L.DoString(`mw.ext.cattools.arePagesInCategories({1}, "A")`))
	assert.Equal(t, []string{"A"}, tb.names)
	assert.Equal(t, finder.ModeAll, tb.mode)
}

func TestArePagesInCategories_BadArguments(t *testing.T) {
	L, _ := newTestState(t, &fakeToolbox{})

	tests := []struct{ src, want string }{
		{`mw.ext.cattools.arePagesInCategories({1.5}, {"A"})`, "bad argument #1"},
		{`mw.ext.cattools.arePagesInCategories({"x"}, {"A"})`, "bad argument #1"},
		{`mw.ext.cattools.arePagesInCategories({1}, {1})`, "bad argument #2"},
		{`mw.ext.cattools.arePagesInCategories({1}, 7)`, "bad argument #2"},
		{`mw.ext.cattools.arePagesInCategories({1}, {"A"}, "SOME")`, "bad argument #3"},
	}
	for _, tt := range tests {
		err := L.DoString(tt.src)
		require.Error(t, err, tt.src)
		assert.Contains(t, err.Error(), tt.want, tt.src)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"invalid argument", categories.ErrInvalidArgument, "bad argument to 'categoryPages'"},
		{"budget", budget.ErrLimitExceeded, "too many expensive function calls"},
		{"store", errors.New("replica unavailable"), "categoryPages: replica unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			L, lib := newTestState(t, &fakeToolbox{err: tt.err})

			err := L.DoString(`mw.ext.cattools.categoryPages("Foo")`)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.ErrorIs(t, lib.LastError(), tt.err)
		})
	}
}

func TestErrorsCanBeCaughtInLua(t *testing.T) {
	L, _ := newTestState(t, &fakeToolbox{err: budget.ErrLimitExceeded})

	require.NoError(t, L.DoString(`
		local ok, msg = pcall(mw.ext.cattools.categoryPages, "Foo")
		assert(not ok)
		assert(string.find(msg, "too many expensive function calls", 1, true))
	`))
}
