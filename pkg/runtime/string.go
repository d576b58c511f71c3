package runtime

import "github.com/chazu/marten/pkg/gc"

// String is an immutable interned byte sequence. The interner guarantees
// one object per distinct content, so identity comparison suffices
// everywhere in the runtime.
type String struct {
	gc.ObjectHeader
	str string
}

// Str returns the string's content.
func (s *String) Str() string {
	return s.str
}

// Trace implements gc.Object. Strings reference nothing.
func (s *String) Trace(visit func(gc.Object)) {}

// Interner deduplicates string objects by content. Entries are weak: the
// State's GC release hook removes a string when the collector destroys
// it, so the interner never keeps a string alive by itself.
type Interner struct {
	pool map[string]*String
}

// NewInterner creates an empty interner.
func NewInterner() *Interner {
	return &Interner{pool: make(map[string]*String)}
}

// Lookup returns the interned object for content, or nil.
func (in *Interner) Lookup(content string) *String {
	return in.pool[content]
}

// Add records a freshly allocated string object.
func (in *Interner) Add(s *String) {
	in.pool[s.str] = s
}

// Remove drops the entry for s if it is the recorded object.
func (in *Interner) Remove(s *String) {
	if in.pool[s.str] == s {
		delete(in.pool, s.str)
	}
}

// Len returns the number of interned strings.
func (in *Interner) Len() int {
	return len(in.pool)
}
