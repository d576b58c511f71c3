// Package dist defines the wire representation of compiled Marten
// programs: a flattened, pointer-free image of a prototype tree that can
// be serialized, content-addressed, and restored into a running State.
package dist

import (
	"fmt"

	"github.com/chazu/marten/pkg/bytecode"
	"github.com/chazu/marten/pkg/runtime"
)

// ImageMagic identifies Marten program images.
const ImageMagic = "MTNP"

// ImageVersion is the current image format version. Increment when making
// incompatible changes to the format.
const ImageVersion uint16 = 1

// ConstImage is one constant-directory entry: the pool it refers to and
// the index within that pool.
type ConstImage struct {
	Kind  uint8 `cbor:"k"`
	Index int   `cbor:"i"`
}

// ProtoImage is one flattened function prototype. Children and Superior
// are indexes into the enclosing ProgramImage's Protos slice; Superior is
// -1 for the root.
type ProtoImage struct {
	Module       string       `cbor:"module"`
	Line         int          `cbor:"line"`
	ParamCount   int          `cbor:"params"`
	Instructions []uint32     `cbor:"code"`
	Lines        []int32      `cbor:"lines"`
	Numbers      []float64    `cbor:"numbers"`
	Strings      []string     `cbor:"strings"`
	Consts       []ConstImage `cbor:"consts"`
	Children     []int        `cbor:"children"`
	Superior     int          `cbor:"superior"`
}

// ProgramImage is a complete serialized program: every prototype of one
// compiled chunk, root first.
type ProgramImage struct {
	Magic   string       `cbor:"magic"`
	Version uint16       `cbor:"version"`
	Entry   int          `cbor:"entry"`
	Protos  []ProtoImage `cbor:"protos"`
}

// Flatten renders a prototype tree into a ProgramImage. The root becomes
// entry 0; nested prototypes follow in pre-order.
func Flatten(root *runtime.Function) *ProgramImage {
	img := &ProgramImage{
		Magic:   ImageMagic,
		Version: ImageVersion,
		Entry:   0,
	}

	index := make(map[*runtime.Function]int)
	var number func(fn *runtime.Function)
	number = func(fn *runtime.Function) {
		index[fn] = len(img.Protos)
		img.Protos = append(img.Protos, ProtoImage{})
		for _, child := range fn.Children() {
			number(child)
		}
	}
	number(root)

	var fill func(fn *runtime.Function)
	fill = func(fn *runtime.Function) {
		p := &img.Protos[index[fn]]
		if fn.Module() != nil {
			p.Module = fn.Module().Str()
		}
		p.Line = fn.DefLine()
		p.ParamCount = fn.ParamCount()

		for _, instr := range fn.Instructions() {
			p.Instructions = append(p.Instructions, uint32(instr))
		}
		for _, line := range fn.Lines() {
			p.Lines = append(p.Lines, int32(line))
		}
		p.Numbers = append(p.Numbers, fn.ConstNumbers()...)
		for _, s := range fn.ConstStrings() {
			p.Strings = append(p.Strings, s.Str())
		}
		for _, c := range fn.Consts() {
			p.Consts = append(p.Consts, ConstImage{Kind: uint8(c.Kind), Index: c.Index})
		}
		for _, child := range fn.Children() {
			p.Children = append(p.Children, index[child])
		}
		if fn.Superior() != nil {
			p.Superior = index[fn.Superior()]
		} else {
			p.Superior = -1
		}

		for _, child := range fn.Children() {
			fill(child)
		}
	}
	fill(root)

	return img
}

// Restore rebuilds the prototype tree in state, re-interning strings and
// allocating every prototype in the oldest generation. Returns the entry
// prototype.
func Restore(img *ProgramImage, state *runtime.State) (*runtime.Function, error) {
	if img.Magic != ImageMagic {
		return nil, fmt.Errorf("dist: invalid image magic %q", img.Magic)
	}
	if img.Version > ImageVersion {
		return nil, fmt.Errorf("dist: image version %d is newer than supported version %d",
			img.Version, ImageVersion)
	}
	if img.Entry < 0 || img.Entry >= len(img.Protos) {
		return nil, fmt.Errorf("dist: entry index %d out of range (%d protos)",
			img.Entry, len(img.Protos))
	}

	g := state.GC()
	fns := make([]*runtime.Function, len(img.Protos))
	for i := range img.Protos {
		fns[i] = state.NewFunction()
	}

	for i, p := range img.Protos {
		fn := fns[i]
		fn.SetBaseInfo(g, state.NewString(p.Module), p.Line)
		fn.SetParamCount(p.ParamCount)

		if len(p.Lines) != len(p.Instructions) {
			return nil, fmt.Errorf("dist: proto %d: %d lines for %d instructions",
				i, len(p.Lines), len(p.Instructions))
		}
		for pc, w := range p.Instructions {
			fn.AddInstruction(bytecode.Instruction(w), int(p.Lines[pc]))
		}

		// Replaying the directory in order reproduces both pools and
		// their deduplication indexes.
		for _, c := range p.Consts {
			switch runtime.ConstKind(c.Kind) {
			case runtime.ConstNumber:
				if c.Index < 0 || c.Index >= len(p.Numbers) {
					return nil, fmt.Errorf("dist: proto %d: number index %d out of range", i, c.Index)
				}
				fn.AddConstNumber(p.Numbers[c.Index])
			case runtime.ConstString:
				if c.Index < 0 || c.Index >= len(p.Strings) {
					return nil, fmt.Errorf("dist: proto %d: string index %d out of range", i, c.Index)
				}
				fn.AddConstString(g, state.NewString(p.Strings[c.Index]))
			default:
				return nil, fmt.Errorf("dist: proto %d: unknown constant kind %d", i, c.Kind)
			}
		}

		for _, ci := range p.Children {
			if ci < 0 || ci >= len(fns) {
				return nil, fmt.Errorf("dist: proto %d: child index %d out of range", i, ci)
			}
			fn.AddChild(g, fns[ci])
			fns[ci].SetSuperior(g, fn)
		}
	}

	return fns[img.Entry], nil
}
