package runtime

import (
	"errors"

	"github.com/chazu/marten/pkg/gc"
)

// ErrNilTableKey is returned when a table write uses a nil key.
var ErrNilTableKey = errors.New("runtime: table key is nil")

// Table is the associative container of the language.
type Table struct {
	gc.ObjectHeader
	hash map[Value]Value
}

// SetValue stores key -> value. The write barrier is applied here so
// callers cannot forget it: mutating an old table records it for the next
// minor collection.
func (t *Table) SetValue(g *gc.GC, key, value Value) error {
	if key.IsNil() {
		return ErrNilTableKey
	}
	if t.hash == nil {
		t.hash = make(map[Value]Value)
	}
	if value.IsNil() {
		delete(t.hash, key)
	} else {
		t.hash[key] = value
	}
	g.WriteBarrier(t)
	return nil
}

// GetValue returns the value stored under key, or nil.
func (t *Table) GetValue(key Value) Value {
	if t.hash == nil {
		return NilValue()
	}
	if v, ok := t.hash[key]; ok {
		return v
	}
	return NilValue()
}

// Len returns the number of entries.
func (t *Table) Len() int {
	return len(t.hash)
}

// Trace implements gc.Object.
func (t *Table) Trace(visit func(gc.Object)) {
	for k, v := range t.hash {
		traceValue(k, visit)
		traceValue(v, visit)
	}
}
