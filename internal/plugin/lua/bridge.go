package lua

import (
	"fmt"
	"math"
	"sort"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/eventsys/internal/event"
	"github.com/dshills/eventsys/internal/event/execution"
)

// Userdata metatable names.
const (
	eventTypeName    = "eventsys.event"
	executorTypeName = "eventsys.executor"
)

// FieldReader is implemented by events whose fields scripts can read.
type FieldReader interface {
	Get(key string) (any, bool)
}

// FieldWriter is implemented by events whose fields scripts can write.
type FieldWriter interface {
	Set(key string, value any)
}

// ToGoValue converts a Lua value to a Go value. Integral numbers become
// int64, sequences become []any and other tables become map[string]any.
// Functions and cyclic tables convert to nil.
func ToGoValue(lv lua.LValue) any {
	return toGo(lv, make(map[*lua.LTable]bool))
}

func toGo(lv lua.LValue, visited map[*lua.LTable]bool) any {
	switch v := lv.(type) {
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		f := float64(v)
		if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return int64(f)
		}
		return f
	case lua.LString:
		return string(v)
	case *lua.LTable:
		if visited[v] {
			return nil
		}
		visited[v] = true
		defer delete(visited, v)
		return tableToGo(v, visited)
	case *lua.LUserData:
		return v.Value
	default:
		return nil
	}
}

func tableToGo(t *lua.LTable, visited map[*lua.LTable]bool) any {
	n := t.Len()
	count := 0
	t.ForEach(func(_, _ lua.LValue) { count++ })

	if n > 0 && n == count {
		arr := make([]any, n)
		for i := 1; i <= n; i++ {
			arr[i-1] = toGo(t.RawGetInt(i), visited)
		}
		return arr
	}

	m := make(map[string]any, count)
	t.ForEach(func(k, v lua.LValue) {
		m[k.String()] = toGo(v, visited)
	})
	return m
}

// ToLuaValue converts a Go value to a Lua value. Unsupported values convert
// to their fmt representation.
func ToLuaValue(L *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case lua.LValue:
		return val
	case bool:
		return lua.LBool(val)
	case int:
		return lua.LNumber(val)
	case int32:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case uint:
		return lua.LNumber(val)
	case uint32:
		return lua.LNumber(val)
	case uint64:
		return lua.LNumber(val)
	case float32:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case string:
		return lua.LString(val)
	case []byte:
		return lua.LString(val)
	case []string:
		t := L.CreateTable(len(val), 0)
		for i, s := range val {
			t.RawSetInt(i+1, lua.LString(s))
		}
		return t
	case []any:
		t := L.CreateTable(len(val), 0)
		for i, item := range val {
			t.RawSetInt(i+1, ToLuaValue(L, item))
		}
		return t
	case map[string]any:
		t := L.CreateTable(0, len(val))
		for k, item := range val {
			t.RawSetString(k, ToLuaValue(L, item))
		}
		return t
	case map[string]string:
		t := L.CreateTable(0, len(val))
		for k, s := range val {
			t.RawSetString(k, lua.LString(s))
		}
		return t
	case fmt.Stringer:
		return lua.LString(val.String())
	default:
		return lua.LString(fmt.Sprint(val))
	}
}

// registerTypes installs the event and executor metatables.
func registerTypes(L *lua.LState) {
	emt := L.NewTypeMetatable(eventTypeName)
	L.SetField(emt, "__index", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"type":      eventType,
		"get":       eventGet,
		"set":       eventSet,
		"fields":    eventFields,
		"cancel":    eventCancel,
		"cancelled": eventCancelled,
	}))
	L.SetField(emt, "__tostring", L.NewFunction(func(L *lua.LState) int {
		ev := checkEvent(L, 1)
		L.Push(lua.LString("event<" + ev.Type().Name() + ">"))
		return 1
	}))

	xmt := L.NewTypeMetatable(executorTypeName)
	L.SetField(xmt, "__index", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"detach":   executorDetach,
		"detached": executorDetached,
		"name":     executorName,
		"kind":     executorKind,
		"priority": executorPriority,
	}))
}

// NewEventValue wraps ev as userdata.
func NewEventValue(L *lua.LState, ev event.Event) *lua.LUserData {
	ud := L.NewUserData()
	ud.Value = ev
	L.SetMetatable(ud, L.GetTypeMetatable(eventTypeName))
	return ud
}

// NewExecutorValue wraps ex as userdata.
func NewExecutorValue(L *lua.LState, ex execution.Executor) *lua.LUserData {
	ud := L.NewUserData()
	ud.Value = ex
	L.SetMetatable(ud, L.GetTypeMetatable(executorTypeName))
	return ud
}

func checkEvent(L *lua.LState, n int) event.Event {
	ud := L.CheckUserData(n)
	if ev, ok := ud.Value.(event.Event); ok {
		return ev
	}
	L.ArgError(n, "event expected")
	return nil
}

func checkExecutor(L *lua.LState, n int) execution.Executor {
	ud := L.CheckUserData(n)
	if ex, ok := ud.Value.(execution.Executor); ok {
		return ex
	}
	L.ArgError(n, "executor expected")
	return nil
}

func eventType(L *lua.LState) int {
	L.Push(lua.LString(checkEvent(L, 1).Type().Name()))
	return 1
}

func eventGet(L *lua.LState) int {
	ev := checkEvent(L, 1)
	key := L.CheckString(2)

	r, ok := ev.(FieldReader)
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	v, _ := r.Get(key)
	L.Push(ToLuaValue(L, v))
	return 1
}

func eventSet(L *lua.LState) int {
	ev := checkEvent(L, 1)
	key := L.CheckString(2)

	w, ok := ev.(FieldWriter)
	if !ok {
		L.RaiseError("event %s has no writable fields", ev.Type().Name())
		return 0
	}
	w.Set(key, ToGoValue(L.Get(3)))
	return 0
}

func eventFields(L *lua.LState) int {
	ev := checkEvent(L, 1)
	t := L.NewTable()
	if m, ok := ev.(interface{ Fields() map[string]any }); ok {
		fields := m.Fields()
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			t.RawSetString(k, ToLuaValue(L, fields[k]))
		}
	}
	L.Push(t)
	return 1
}

func eventCancel(L *lua.LState) int {
	ev := checkEvent(L, 1)
	c, ok := ev.(event.Canceler)
	if !ok {
		L.RaiseError("event %s cannot be cancelled", ev.Type().Name())
		return 0
	}
	c.Cancel()
	return 0
}

func eventCancelled(L *lua.LState) int {
	L.Push(lua.LBool(checkEvent(L, 1).Cancelled()))
	return 1
}

func executorDetach(L *lua.LState) int {
	checkExecutor(L, 1).Detach()
	return 0
}

func executorDetached(L *lua.LState) int {
	L.Push(lua.LBool(checkExecutor(L, 1).IsDetached()))
	return 1
}

func executorName(L *lua.LState) int {
	L.Push(lua.LString(checkExecutor(L, 1).Name()))
	return 1
}

func executorKind(L *lua.LState) int {
	L.Push(lua.LString(checkExecutor(L, 1).Kind().String()))
	return 1
}

func executorPriority(L *lua.LState) int {
	L.Push(lua.LString(checkExecutor(L, 1).Priority().String()))
	return 1
}
