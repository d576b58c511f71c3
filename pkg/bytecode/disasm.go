package bytecode

import (
	"fmt"
	"strings"
)

// DisassembleInstruction renders a single instruction word.
func DisassembleInstruction(i Instruction) string {
	info := GetOpcodeInfo(i.Opcode())
	switch info.Form {
	case FormAB:
		return fmt.Sprintf("%-12s r%d %d", info.Name, i.A(), i.B())
	case FormABC:
		return fmt.Sprintf("%-12s r%d %d r%d", info.Name, i.A(), i.B8(), i.C())
	case FormAsBx:
		sbx := i.SBx()
		if sbx == ExpValueCountAny {
			return fmt.Sprintf("%-12s r%d any", info.Name, i.A())
		}
		return fmt.Sprintf("%-12s r%d %d", info.Name, i.A(), sbx)
	default:
		return fmt.Sprintf("%-12s r%d", info.Name, i.A())
	}
}

// Disassemble returns a listing for an instruction stream with optional
// per-instruction source lines. lines may be nil or shorter than code; a
// missing or zero entry suppresses the line annotation.
func Disassemble(name string, code []Instruction, lines []int) string {
	var sb strings.Builder

	if name != "" {
		sb.WriteString(fmt.Sprintf("; === %s ===\n", name))
	}
	for pc, instr := range code {
		sb.WriteString(fmt.Sprintf("%04d  %-28s", pc, DisassembleInstruction(instr)))
		if pc < len(lines) && lines[pc] > 0 {
			sb.WriteString(fmt.Sprintf(" ; line %d", lines[pc]))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
