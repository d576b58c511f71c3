package bytecode

import "fmt"

// Opcode identifies a VM instruction.
type Opcode uint8

const (
	// ========================================================================
	// Frame management (0x00-0x0F)
	// ========================================================================

	OpNop     Opcode = 0x00 // No operation
	OpSetTop  Opcode = 0x01 // Drop stack slots at and above register A: OpSetTop A
	OpLoadNil Opcode = 0x02 // Store nil into register A: OpLoadNil A

	// ========================================================================
	// Data movement (0x10-0x1F)
	// ========================================================================

	OpLoadConst Opcode = 0x10 // Load constant B into register A: OpLoadConst A B
	OpMove      Opcode = 0x11 // Copy register B into register A: OpMove A B

	// ========================================================================
	// Upvalue table access (0x20-0x2F)
	// ========================================================================

	OpGetUpTable Opcode = 0x20 // A = upvalue-table B indexed by register C
	OpSetUpTable Opcode = 0x21 // upvalue-table B at register C = register A

	// ========================================================================
	// Calls and returns (0x30-0x3F)
	// ========================================================================

	OpCall   Opcode = 0x30 // Call closure in register A expecting sBx results
	OpReturn Opcode = 0x31 // Return values starting at register A, count sBx
)

// EncodingForm describes how an instruction word's operands are laid out.
type EncodingForm uint8

const (
	FormA    EncodingForm = iota // opcode + A
	FormAB                       // opcode + A + 16-bit B
	FormABC                      // opcode + A + B + C
	FormAsBx                     // opcode + A + signed 16-bit sBx
)

// OpcodeInfo provides metadata about each opcode for disassembly and
// validation.
type OpcodeInfo struct {
	Name string
	Form EncodingForm
}

var opcodeInfoTable = map[Opcode]OpcodeInfo{
	OpNop:        {"NOP", FormA},
	OpSetTop:     {"SET_TOP", FormA},
	OpLoadNil:    {"LOAD_NIL", FormA},
	OpLoadConst:  {"LOAD_CONST", FormAB},
	OpMove:       {"MOVE", FormAB},
	OpGetUpTable: {"GET_UPTABLE", FormABC},
	OpSetUpTable: {"SET_UPTABLE", FormABC},
	OpCall:       {"CALL", FormAsBx},
	OpReturn:     {"RETURN", FormAsBx},
}

// GetOpcodeInfo returns metadata for an opcode. Returns a zero OpcodeInfo
// with a synthesized name if the opcode is not recognized.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", uint8(op)), Form: FormA}
}

// String returns the human-readable name of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// Form returns the encoding form of an opcode.
func (op Opcode) Form() EncodingForm {
	return GetOpcodeInfo(op).Form
}

// AllOpcodes returns a slice of all defined opcodes. Useful for testing
// that all opcodes have metadata.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(opcodeInfoTable))
	for op := range opcodeInfoTable {
		opcodes = append(opcodes, op)
	}
	return opcodes
}
