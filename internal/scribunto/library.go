// Package scribunto exposes the category toolbox to Lua modules as the
// mw.ext.cattools library.
package scribunto

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cattools/cattools/internal/budget"
	"github.com/cattools/cattools/internal/categories"
	"github.com/cattools/cattools/internal/finder"
	"github.com/cattools/cattools/internal/luatable"
	"github.com/cattools/cattools/internal/metrics"
)

// ModuleName is the name the library is required and published under
const ModuleName = "mw.ext.cattools"

// Toolbox is the part of categories.Toolbox the library calls
type Toolbox interface {
	CategoryHasPage(ctx context.Context, category string, namespace int, title string) (bool, error)
	CategoryPagesTable(ctx context.Context, category string, namespace *int, opts categories.PagesOptions) (luatable.Value, error)
	ArePagesInCategoriesTable(ctx context.Context, pageIDs []int64, categories []string, mode finder.Mode) (luatable.Value, error)
}

// Library binds a Toolbox to Lua states
type Library struct {
	toolbox Toolbox
	logger  *zap.Logger

	// lastErr is the Go error behind the most recent Lua error raised by
	// the library, lastMsg the message it was raised with
	lastErr error
	lastMsg string
}

// NewLibrary creates a library backed by tb
func NewLibrary(tb Toolbox, logger *zap.Logger) *Library {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Library{toolbox: tb, logger: logger}
}

// Register makes the library available to L through require and as the
// global table mw.ext.cattools
func (lib *Library) Register(L *lua.LState) {
	mod := L.SetFuncs(L.NewTable(), lib.exports())

	L.PreloadModule(ModuleName, func(L *lua.LState) int {
		L.Push(mod)
		return 1
	})

	mw := ensureTable(L, L.G.Global, "mw")
	ext := ensureTable(L, mw, "ext")
	L.SetField(ext, "cattools", mod)
}

// LastError returns the Go error behind the last raised Lua error
func (lib *Library) LastError() error {
	return lib.lastErr
}

func (lib *Library) reset() {
	lib.lastErr = nil
	lib.lastMsg = ""
}

// causeOf returns the library error behind luaErr. A chunk may catch a
// library error with pcall and raise something else later, so the cause is
// only attached when luaErr still carries the library's message.
func (lib *Library) causeOf(luaErr error) error {
	if lib.lastErr == nil {
		return nil
	}
	var apiErr *lua.ApiError
	if !errors.As(luaErr, &apiErr) || apiErr.Object == nil {
		return nil
	}
	if !strings.Contains(apiErr.Object.String(), lib.lastMsg) {
		return nil
	}
	return lib.lastErr
}

func (lib *Library) exports() map[string]lua.LGFunction {
	return map[string]lua.LGFunction{
		categories.OpHasPage:    lib.categoryHasPage,
		categories.OpPages:      lib.categoryPages,
		categories.OpMembership: lib.arePagesInCategories,
	}
}

func ensureTable(L *lua.LState, parent *lua.LTable, name string) *lua.LTable {
	if tbl, ok := L.GetField(parent, name).(*lua.LTable); ok {
		return tbl
	}
	tbl := L.NewTable()
	L.SetField(parent, name, tbl)
	return tbl
}

// categoryHasPage(category, namespace, title) -> boolean
func (lib *Library) categoryHasPage(L *lua.LState) int {
	category := L.CheckString(1)
	namespace := checkNamespace(L, 2)
	title := L.CheckString(3)

	ok, err := lib.toolbox.CategoryHasPage(contextOf(L), category, namespace, title)
	if err != nil {
		return lib.fail(L, categories.OpHasPage, err)
	}
	metrics.LuaInvocations.WithLabelValues(categories.OpHasPage, metrics.StatusOK).Inc()

	L.Push(lua.LBool(ok))
	return 1
}

// categoryPages(category [, namespace [, options]]) -> table
func (lib *Library) categoryPages(L *lua.LState) int {
	category := L.CheckString(1)

	var namespace *int
	if L.Get(2) != lua.LNil {
		ns := checkNamespace(L, 2)
		namespace = &ns
	}

	var opts categories.PagesOptions
	if tbl := L.OptTable(3, nil); tbl != nil {
		opts = parseOptions(L, tbl)
	}

	table, err := lib.toolbox.CategoryPagesTable(contextOf(L), category, namespace, opts)
	if err != nil {
		return lib.fail(L, categories.OpPages, err)
	}
	metrics.LuaInvocations.WithLabelValues(categories.OpPages, metrics.StatusOK).Inc()

	L.Push(luatable.ToLua(L, table))
	return 1
}

// arePagesInCategories(pageIds, categories [, mode]) -> table
func (lib *Library) arePagesInCategories(L *lua.LState) int {
	ids := checkIDs(L, 1)
	names := checkStrings(L, 2)

	mode, err := finder.ParseMode(L.OptString(3, finder.ModeAll.String()))
	if err != nil {
		L.ArgError(3, err.Error())
		return 0
	}

	table, err := lib.toolbox.ArePagesInCategoriesTable(contextOf(L), ids, names, mode)
	if err != nil {
		return lib.fail(L, categories.OpMembership, err)
	}
	metrics.LuaInvocations.WithLabelValues(categories.OpMembership, metrics.StatusOK).Inc()

	L.Push(luatable.ToLua(L, table))
	return 1
}

// fail raises err as a Lua error. It never returns normally.
func (lib *Library) fail(L *lua.LState, name string, err error) int {
	metrics.LuaInvocations.WithLabelValues(name, metrics.StatusError).Inc()

	var msg string
	switch {
	case categories.IsInvalidArgument(err):
		msg = fmt.Sprintf("bad argument to '%s' (%s)", name, err.Error())
	case budget.IsLimitExceeded(err):
		msg = budget.ErrLimitExceeded.Error()
	default:
		lib.logger.Error("cattools call failed", zap.String("function", name), zap.Error(err))
		msg = fmt.Sprintf("%s: %s", name, err.Error())
	}

	lib.lastErr = err
	lib.lastMsg = msg
	L.RaiseError("%s", msg)
	return 0
}

func parseOptions(L *lua.LState, tbl *lua.LTable) categories.PagesOptions {
	var opts categories.PagesOptions

	switch v := L.GetField(tbl, "sortkeyPrefix").(type) {
	case *lua.LNilType:
	case lua.LString:
		opts.SortkeyPrefix = categories.String(string(v))
	default:
		L.ArgError(3, "sortkeyPrefix must be a string")
	}

	switch v := L.GetField(tbl, "orderByRecency").(type) {
	case *lua.LNilType:
	case lua.LBool:
		opts.OrderByRecency = categories.Bool(bool(v))
	default:
		L.ArgError(3, "orderByRecency must be a boolean")
	}

	opts.Limit = optionalInt(L, tbl, "limit")
	opts.Offset = optionalInt(L, tbl, "offset")
	return opts
}

// checkNamespace is CheckInt without truncation of fractional numbers
func checkNamespace(L *lua.LState, n int) int {
	f := float64(L.CheckNumber(n))
	if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		L.ArgError(n, "namespace must be an integer")
	}
	return int(f)
}

func optionalInt(L *lua.LState, tbl *lua.LTable, field string) *int {
	switch v := L.GetField(tbl, field).(type) {
	case *lua.LNilType:
		return nil
	case lua.LNumber:
		f := float64(v)
		if f != math.Trunc(f) {
			L.ArgError(3, field+" must be an integer")
		}
		return categories.Int(int(f))
	default:
		L.ArgError(3, field+" must be a number")
	}
	return nil
}

func checkIDs(L *lua.LState, n int) []int64 {
	tbl := L.CheckTable(n)

	ids := make([]int64, 0, tbl.Len())
	for i := 1; i <= tbl.Len(); i++ {
		num, ok := tbl.RawGetInt(i).(lua.LNumber)
		if !ok || float64(num) != math.Trunc(float64(num)) {
			L.ArgError(n, "page ids must be integers")
		}
		ids = append(ids, int64(num))
	}
	return ids
}

// checkStrings accepts a single string or a sequence of strings
func checkStrings(L *lua.LState, n int) []string {
	switch v := L.Get(n).(type) {
	case lua.LString:
		return []string{string(v)}
	case *lua.LTable:
		out := make([]string, 0, v.Len())
		for i := 1; i <= v.Len(); i++ {
			s, ok := v.RawGetInt(i).(lua.LString)
			if !ok {
				L.ArgError(n, "category names must be strings")
			}
			out = append(out, string(s))
		}
		return out
	default:
		L.TypeError(n, lua.LTTable)
	}
	return nil
}

func contextOf(L *lua.LState) context.Context {
	if ctx := L.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
