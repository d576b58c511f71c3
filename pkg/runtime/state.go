// Package runtime defines the Marten value representation, the heap
// object types managed by the collector, and the State that ties the
// operand stack, the global environment, and the interner together.
package runtime

import "github.com/chazu/marten/pkg/gc"

// State is the execution context shared by the code generator and the
// interpreter: the collector, the operand stack, the global environment
// table, and the string interner.
type State struct {
	gc       *gc.GC
	stack    *Stack
	global   *Table
	interner *Interner
}

// NewState creates a fresh State with an empty global environment. The
// State registers itself as the collector's root enumerator: the operand
// stack and the global table are roots for both minor and major
// collections; interner entries are weak and are dropped as strings die.
func NewState() *State {
	s := &State{
		gc:       gc.New(),
		stack:    NewStack(),
		interner: NewInterner(),
	}
	s.gc.SetRootTraveller(s.travelRoots, s.travelRoots)
	s.gc.SetReleaseHook(s.released)
	s.global = s.NewTable(gc.Gen2)
	return s
}

// GC returns the collector.
func (s *State) GC() *gc.GC {
	return s.gc
}

// Stack returns the operand stack.
func (s *State) Stack() *Stack {
	return s.stack
}

// Global returns the global environment table.
func (s *State) Global() *Table {
	return s.global
}

// Interner returns the string interner.
func (s *State) Interner() *Interner {
	return s.interner
}

// NewTable allocates a table in the given generation.
func (s *State) NewTable(gen gc.Generation) *Table {
	t := &Table{}
	s.gc.Alloc(t, gen)
	return t
}

// NewFunction allocates a function prototype. Prototypes always live in
// the oldest generation from birth.
func (s *State) NewFunction() *Function {
	f := &Function{}
	s.gc.Alloc(f, gc.Gen2)
	return f
}

// NewClosure allocates a closure in the youngest generation.
func (s *State) NewClosure() *Closure {
	c := &Closure{}
	s.gc.Alloc(c, gc.Gen0)
	return c
}

// NewString returns the interned string object for content, allocating a
// fresh one in the youngest generation on first sight.
func (s *State) NewString(content string) *String {
	if obj := s.interner.Lookup(content); obj != nil {
		return obj
	}
	obj := &String{str: content}
	s.gc.Alloc(obj, gc.Gen0)
	s.interner.Add(obj)
	return obj
}

// CheckGC runs a collection if thresholds are exceeded. The interpreter
// calls this between instructions; nothing else triggers collection.
func (s *State) CheckGC() {
	s.gc.CheckGC()
}

func (s *State) travelRoots(visit func(gc.Object)) {
	for i := 0; i < s.stack.Top; i++ {
		traceValue(s.stack.Slots[i], visit)
	}
	visit(s.global)
}

func (s *State) released(obj gc.Object) {
	if str, ok := obj.(*String); ok {
		s.interner.Remove(str)
	}
}
