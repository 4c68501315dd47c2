// Package reflector provides cached type metadata for selector-based
// message dispatch: given an actor instance and an exported method name,
// it resolves the method once per type and reuses the lookup.
package reflector

import (
	"reflect"
	"sync"
)

var (
	muCache sync.RWMutex
	cache   = make(map[reflect.Type]*TypeInfo)
)

// TypeInfo holds metadata about a reflected type, including its exported
// method set keyed by name.
type TypeInfo struct {
	Name    string       // Short type name, e.g. "Counter"
	Full    string       // Fully qualified name: "pkg/path.TypeName"
	Type    reflect.Type // The type as passed in (pointer kept intact)
	methods map[string]reflect.Method
}

// Method resolves an exported method by name.
func (ti *TypeInfo) Method(name string) (reflect.Method, bool) {
	m, ok := ti.methods[name]
	return m, ok
}

// MethodNames returns the names of all exported methods.
func (ti *TypeInfo) MethodNames() []string {
	out := make([]string, 0, len(ti.methods))
	for name := range ti.methods {
		out = append(out, name)
	}
	return out
}

// TypeInfoOf returns TypeInfo for the dynamic type of x.
// Results are cached; thread-safe for concurrent use.
func TypeInfoOf(x any) *TypeInfo {
	return TypeInfoForType(reflect.TypeOf(x))
}

// TypeInfoFor returns TypeInfo for type parameter T.
func TypeInfoFor[T any]() *TypeInfo {
	return TypeInfoForType(reflect.TypeFor[T]())
}

// TypeInfoForType returns TypeInfo for the given reflect.Type. The method
// set is taken from t itself, so pass the pointer type to include
// pointer-receiver methods.
func TypeInfoForType(t reflect.Type) *TypeInfo {
	if t == nil {
		return &TypeInfo{}
	}

	muCache.RLock()
	ti, ok := cache[t]
	muCache.RUnlock()
	if ok {
		return ti
	}

	named := t
	if named.Kind() == reflect.Pointer {
		named = named.Elem()
	}

	ti = &TypeInfo{
		Name:    named.Name(),
		Full:    named.PkgPath() + "." + named.Name(),
		Type:    t,
		methods: make(map[string]reflect.Method, t.NumMethod()),
	}
	for i := 0; i < t.NumMethod(); i++ {
		m := t.Method(i)
		if m.IsExported() {
			ti.methods[m.Name] = m
		}
	}

	muCache.Lock()
	cache[t] = ti
	muCache.Unlock()
	return ti
}
