package bytecode

import (
	"strings"
	"testing"
)

func TestEncodingRoundTrips(t *testing.T) {
	tests := []struct {
		name  string
		instr Instruction
		check func(t *testing.T, i Instruction)
	}{
		{
			"A form",
			ACode(OpSetTop, 7),
			func(t *testing.T, i Instruction) {
				if i.Opcode() != OpSetTop || i.A() != 7 {
					t.Errorf("got op=%s A=%d", i.Opcode(), i.A())
				}
			},
		},
		{
			"AB form wide operand",
			ABCode(OpLoadConst, 3, 600),
			func(t *testing.T, i Instruction) {
				if i.Opcode() != OpLoadConst || i.A() != 3 || i.B() != 600 {
					t.Errorf("got op=%s A=%d B=%d", i.Opcode(), i.A(), i.B())
				}
			},
		},
		{
			"ABC form",
			ABCCode(OpGetUpTable, 2, 0, 2),
			func(t *testing.T, i Instruction) {
				if i.Opcode() != OpGetUpTable || i.A() != 2 || i.B8() != 0 || i.C() != 2 {
					t.Errorf("got op=%s A=%d B=%d C=%d", i.Opcode(), i.A(), i.B8(), i.C())
				}
			},
		},
		{
			"AsBx positive",
			AsBxCode(OpCall, 1, 12),
			func(t *testing.T, i Instruction) {
				if i.Opcode() != OpCall || i.A() != 1 || i.SBx() != 12 {
					t.Errorf("got op=%s A=%d sBx=%d", i.Opcode(), i.A(), i.SBx())
				}
			},
		},
		{
			"AsBx sentinel",
			AsBxCode(OpCall, 0, ExpValueCountAny),
			func(t *testing.T, i Instruction) {
				if i.SBx() != ExpValueCountAny {
					t.Errorf("sentinel did not survive encoding: %d", i.SBx())
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, tt.instr)
		})
	}
}

func TestAllOpcodesHaveMetadata(t *testing.T) {
	for _, op := range AllOpcodes() {
		info := GetOpcodeInfo(op)
		if info.Name == "" || strings.HasPrefix(info.Name, "UNKNOWN") {
			t.Errorf("opcode 0x%02X has no metadata", uint8(op))
		}
	}
}

func TestUnknownOpcode(t *testing.T) {
	info := GetOpcodeInfo(Opcode(0xEE))
	if !strings.HasPrefix(info.Name, "UNKNOWN") {
		t.Errorf("expected synthesized name, got %q", info.Name)
	}
}

func TestDisassemble(t *testing.T) {
	code := []Instruction{
		ABCode(OpLoadConst, 0, 0),
		ABCCode(OpGetUpTable, 0, 0, 0),
		AsBxCode(OpCall, 0, 0),
		ACode(OpSetTop, 0),
	}
	lines := []int{1, 1, 1, 0}

	out := Disassemble("chunk", code, lines)

	for _, want := range []string{"=== chunk ===", "LOAD_CONST", "GET_UPTABLE", "CALL", "SET_TOP", "; line 1"} {
		if !strings.Contains(out, want) {
			t.Errorf("disassembly missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(strings.Split(out, "\n")[4], "; line") {
		t.Errorf("zero line should suppress annotation:\n%s", out)
	}
}

func TestDisassembleMultretCall(t *testing.T) {
	out := DisassembleInstruction(AsBxCode(OpCall, 2, ExpValueCountAny))
	if !strings.Contains(out, "any") {
		t.Errorf("multret call should render as 'any': %s", out)
	}
}
