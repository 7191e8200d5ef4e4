package ir

// Scope is a stack of name bindings with shadowing. Lookups that miss fall
// through to an optional containing scope. The zero value is ready to use.
type Scope[T any] struct {
	table      map[string][]T
	order      []string
	containing *Scope[T]
}

// NewScope returns an empty scope.
func NewScope[T any]() *Scope[T] { return &Scope[T]{} }

// SetContaining makes lookups that miss consult parent.
func (s *Scope[T]) SetContaining(parent *Scope[T]) { s.containing = parent }

// Push binds name to v, shadowing any earlier binding.
func (s *Scope[T]) Push(name string, v T) {
	if s.table == nil {
		s.table = make(map[string][]T)
	}
	s.table[name] = append(s.table[name], v)
	s.order = append(s.order, name)
}

// Pop removes the innermost binding of name.
func (s *Scope[T]) Pop(name string) {
	stack := s.table[name]
	Assertf(len(stack) > 0, "scope: pop of unbound name %q", name)
	if len(stack) == 1 {
		delete(s.table, name)
	} else {
		s.table[name] = stack[:len(stack)-1]
	}
	for i := len(s.order) - 1; i >= 0; i-- {
		if s.order[i] == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Get returns the innermost binding of name.
func (s *Scope[T]) Get(name string) (T, bool) {
	for sc := s; sc != nil; sc = sc.containing {
		if stack := sc.table[name]; len(stack) > 0 {
			return stack[len(stack)-1], true
		}
	}
	var zero T
	return zero, false
}

// Contains reports whether name is bound.
func (s *Scope[T]) Contains(name string) bool {
	_, ok := s.Get(name)
	return ok
}

// Empty reports whether the scope and its containing scopes bind nothing.
func (s *Scope[T]) Empty() bool {
	for sc := s; sc != nil; sc = sc.containing {
		if len(sc.table) > 0 {
			return false
		}
	}
	return true
}

// Names returns the bound names, innermost binding first, without
// duplicates. Containing scopes come after this one.
func (s *Scope[T]) Names() []string {
	var names []string
	seen := make(map[string]bool)
	for sc := s; sc != nil; sc = sc.containing {
		for i := len(sc.order) - 1; i >= 0; i-- {
			n := sc.order[i]
			if !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
	}
	return names
}
