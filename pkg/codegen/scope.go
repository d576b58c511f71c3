package codegen

import "github.com/chazu/marten/pkg/runtime"

// scopeName is one lexical binding: an interned name and the register it
// occupies in its function's frame.
type scopeName struct {
	name     *runtime.String
	register int
}

// scopeNameList is the flat binding list shared by all live scopes. Scope
// records partition it by start index; exiting a scope truncates the list
// back to the scope's start.
type scopeNameList struct {
	names   []scopeName
	current *nameScope
}

// nameScope is one lexical scope. Scopes nest strictly: they are created
// and destroyed in stack order.
type nameScope struct {
	list     *scopeNameList
	previous *nameScope
	start    int
	owner    *runtime.Function
}

// enterScope pushes a new scope. owner may be nil to inherit the
// enclosing scope's owner function.
func enterScope(list *scopeNameList, owner *runtime.Function) *nameScope {
	s := &nameScope{
		list:     list,
		previous: list.current,
		start:    len(list.names),
		owner:    owner,
	}
	if s.owner == nil {
		s.owner = s.previous.owner
	}
	list.current = s
	return s
}

// exit truncates the binding list to this scope's start and restores the
// previous scope. Must run on every exit path.
func (s *nameScope) exit() {
	s.list.names = s.list.names[:s.start]
	s.list.current = s.previous
}

// contains reports whether name is bound in this scope, and under which
// register.
func (s *nameScope) contains(name *runtime.String) (int, bool) {
	for i := s.start; i < len(s.list.names); i++ {
		if s.list.names[i].name == name {
			return s.list.names[i].register, true
		}
	}
	return -1, false
}

// addName binds name to *reg if it is new to this scope; when the name is
// already bound here, *reg is overwritten with the existing register and
// addName returns false.
func (s *nameScope) addName(name *runtime.String, reg *int) bool {
	if existing, ok := s.contains(name); ok {
		*reg = existing
		return false
	}
	s.list.names = append(s.list.names, scopeName{name: name, register: *reg})
	return true
}

// resolve finds the lexically nearest scope binding name, walking from
// this scope outward. Returns the scope and its owner function, or nil
// when the name is unbound everywhere.
func (s *nameScope) resolve(name *runtime.String) (*nameScope, *runtime.Function) {
	for cur := s; cur != nil; cur = cur.previous {
		if _, ok := cur.contains(name); ok {
			return cur, cur.owner
		}
	}
	return nil, nil
}
