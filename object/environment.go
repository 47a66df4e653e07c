package object

import "sort"

// Environment holds the bindings of one scope and a link to its enclosing scope.
type Environment struct {
	store map[string]*Object
	outer *Environment
}

// NewEnvironment creates a new, top-level environment.
func NewEnvironment() *Environment {
	return &Environment{store: make(map[string]*Object)}
}

// NewEnclosedEnvironment creates a new environment that is enclosed by an outer one.
func NewEnclosedEnvironment(outer *Environment) *Environment {
	env := NewEnvironment()
	env.outer = outer
	return env
}

// Get retrieves an object by name, checking outer scopes if necessary.
func (e *Environment) Get(name string) (Object, bool) {
	if objPtr, ok := e.store[name]; ok {
		return *objPtr, true
	}
	if e.outer != nil {
		return e.outer.Get(name)
	}
	return nil, false
}

// Set binds name in the current scope, shadowing any outer binding.
func (e *Environment) Set(name string, val Object) Object {
	e.store[name] = &val
	return val
}

// Assign updates the innermost existing binding of name. It reports false
// when name is not bound in any scope.
func (e *Environment) Assign(name string, val Object) bool {
	if objPtr, ok := e.store[name]; ok {
		*objPtr = val
		return true
	}
	if e.outer != nil {
		return e.outer.Assign(name, val)
	}
	return false
}

// Outer returns the enclosing environment.
func (e *Environment) Outer() *Environment {
	return e.outer
}

// Snapshot flattens the whole scope chain into a new top-level environment
// holding the currently visible bindings. Later changes to e are not seen
// through the snapshot, and changes to the snapshot do not reach e.
func (e *Environment) Snapshot() *Environment {
	snap := NewEnvironment()
	var chain []*Environment
	for cur := e; cur != nil; cur = cur.outer {
		chain = append(chain, cur)
	}
	// outermost first, so inner bindings win
	for i := len(chain) - 1; i >= 0; i-- {
		for name, objPtr := range chain[i].store {
			snap.Set(name, *objPtr)
		}
	}
	return snap
}

// Names returns the sorted names visible from e.
func (e *Environment) Names() []string {
	seen := map[string]bool{}
	for cur := e; cur != nil; cur = cur.outer {
		for name := range cur.store {
			seen[name] = true
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
