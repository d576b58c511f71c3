package runtime

import "github.com/chazu/marten/pkg/gc"

// UpvalueKind tells the interpreter how an upvalue binds to its origin.
type UpvalueKind uint8

const (
	// UpvalueStack binds to a slot in the parent frame's registers.
	UpvalueStack UpvalueKind = iota

	// UpvalueUpvalue binds to an entry of the parent closure's upvalue
	// vector.
	UpvalueUpvalue
)

// Upvalue is a binding captured from an enclosing function.
type Upvalue struct {
	Value Value
	Kind  UpvalueKind
}

// Closure binds a function prototype to its captured upvalues.
type Closure struct {
	gc.ObjectHeader
	proto    *Function
	upvalues []Upvalue
}

// SetPrototype binds the prototype.
func (c *Closure) SetPrototype(g *gc.GC, proto *Function) {
	c.proto = proto
	g.WriteBarrier(c)
}

// Prototype returns the bound prototype.
func (c *Closure) Prototype() *Function {
	return c.proto
}

// AddUpvalue appends an upvalue binding.
func (c *Closure) AddUpvalue(g *gc.GC, v Value, kind UpvalueKind) {
	c.upvalues = append(c.upvalues, Upvalue{Value: v, Kind: kind})
	g.WriteBarrier(c)
}

// Upvalues returns the upvalue vector.
func (c *Closure) Upvalues() []Upvalue {
	return c.upvalues
}

// Trace implements gc.Object.
func (c *Closure) Trace(visit func(gc.Object)) {
	if c.proto != nil {
		visit(c.proto)
	}
	for _, uv := range c.upvalues {
		traceValue(uv.Value, visit)
	}
}
