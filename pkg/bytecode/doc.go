// Package bytecode defines the instruction set of the Marten virtual
// machine.
//
// This package contains:
//   - 32-bit instruction words in four encodings (A, AB, ABC, AsBx)
//   - Opcode definitions and per-opcode metadata
//   - A disassembler for compiled prototypes
//
// Instructions are produced by pkg/codegen and consumed by the
// interpreter. The encodings are fixed-width: the opcode always occupies
// the top byte, operand A the next byte, and the low half-word holds
// either two byte operands (ABC), one 16-bit unsigned operand (AB), or
// one 16-bit signed biased operand (AsBx).
package bytecode
