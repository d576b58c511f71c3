package runtime

import (
	"github.com/chazu/marten/pkg/bytecode"
	"github.com/chazu/marten/pkg/gc"
)

// ConstKind distinguishes the two constant pools.
type ConstKind uint8

const (
	ConstNumber ConstKind = iota
	ConstString
)

// ConstRef is one entry of a function's constant directory: the kind of
// constant and its index within that kind's pool. The operand of
// OpLoadConst indexes the directory.
type ConstRef struct {
	Kind  ConstKind
	Index int
}

// Function is an immutable-after-generation function prototype: the
// instruction stream, the constant pools, nested prototypes, and the
// register watermark used during generation. Prototypes are born in the
// oldest generation because they are referenced across generations for
// the life of the program.
type Function struct {
	gc.ObjectHeader

	instructions []bytecode.Instruction
	lines        []int

	numbers  []float64
	strings  []*String
	consts   []ConstRef
	numIndex map[float64]int
	strIndex map[*String]int

	children []*Function
	superior *Function

	module *String
	line   int

	paramCount int

	// First unused register; a bump allocator for temporaries during
	// generation only.
	nextRegister int
}

// SetBaseInfo records the defining module and line.
func (f *Function) SetBaseInfo(g *gc.GC, module *String, line int) {
	f.module = module
	f.line = line
	g.WriteBarrier(f)
}

// SetSuperior links the enclosing prototype (nil for the top level).
func (f *Function) SetSuperior(g *gc.GC, superior *Function) {
	f.superior = superior
	g.WriteBarrier(f)
}

// AddChild appends a nested prototype.
func (f *Function) AddChild(g *gc.GC, child *Function) {
	f.children = append(f.children, child)
	g.WriteBarrier(f)
}

// SetParamCount records the number of declared parameters.
func (f *Function) SetParamCount(count int) {
	f.paramCount = count
}

// AddInstruction appends an instruction attributed to a source line.
func (f *Function) AddInstruction(i bytecode.Instruction, line int) {
	f.instructions = append(f.instructions, i)
	f.lines = append(f.lines, line)
}

// AddConstNumber interns a number into the constant pool and returns its
// directory index. Equal numbers share one entry.
func (f *Function) AddConstNumber(n float64) int {
	if idx, ok := f.numIndex[n]; ok {
		return idx
	}
	if f.numIndex == nil {
		f.numIndex = make(map[float64]int)
	}
	f.numbers = append(f.numbers, n)
	idx := len(f.consts)
	f.consts = append(f.consts, ConstRef{Kind: ConstNumber, Index: len(f.numbers) - 1})
	f.numIndex[n] = idx
	return idx
}

// AddConstString interns a string object into the constant pool and
// returns its directory index. Identity comparison suffices because the
// string is already interned.
func (f *Function) AddConstString(g *gc.GC, s *String) int {
	if idx, ok := f.strIndex[s]; ok {
		return idx
	}
	if f.strIndex == nil {
		f.strIndex = make(map[*String]int)
	}
	f.strings = append(f.strings, s)
	idx := len(f.consts)
	f.consts = append(f.consts, ConstRef{Kind: ConstString, Index: len(f.strings) - 1})
	f.strIndex[s] = idx
	g.WriteBarrier(f)
	return idx
}

// GetNextRegister peeks the register watermark.
func (f *Function) GetNextRegister() int {
	return f.nextRegister
}

// AllocaNextRegister reserves the next register and bumps the watermark.
func (f *Function) AllocaNextRegister() int {
	reg := f.nextRegister
	f.nextRegister++
	return reg
}

// SetNextRegister restores the watermark, releasing temporaries above it.
func (f *Function) SetNextRegister(reg int) {
	f.nextRegister = reg
}

// Instructions returns the emitted instruction stream.
func (f *Function) Instructions() []bytecode.Instruction {
	return f.instructions
}

// Lines returns the per-instruction source lines.
func (f *Function) Lines() []int {
	return f.lines
}

// Consts returns the constant directory.
func (f *Function) Consts() []ConstRef {
	return f.consts
}

// ConstNumbers returns the number pool in insertion order.
func (f *Function) ConstNumbers() []float64 {
	return f.numbers
}

// ConstStrings returns the string pool in insertion order.
func (f *Function) ConstStrings() []*String {
	return f.strings
}

// Children returns the nested prototypes.
func (f *Function) Children() []*Function {
	return f.children
}

// Superior returns the enclosing prototype, or nil.
func (f *Function) Superior() *Function {
	return f.superior
}

// Module returns the defining module name, or nil.
func (f *Function) Module() *String {
	return f.module
}

// DefLine returns the line the function was defined on.
func (f *Function) DefLine() int {
	return f.line
}

// ParamCount returns the declared parameter count.
func (f *Function) ParamCount() int {
	return f.paramCount
}

// Trace implements gc.Object.
func (f *Function) Trace(visit func(gc.Object)) {
	if f.module != nil {
		visit(f.module)
	}
	for _, s := range f.strings {
		visit(s)
	}
	for _, c := range f.children {
		visit(c)
	}
	if f.superior != nil {
		visit(f.superior)
	}
}
