// Copyright (C) 2021  Antonio Lassandro

// This program is free software: you can redistribute it and/or modify it
// under the terms of the GNU General Public License as published by the Free
// Software Foundation, either version 3 of the License, or (at your option)
// any later version.

// This program is distributed in the hope that it will be useful, but WITHOUT
// ANY WARRANTY; without even the implied warranty of MERCHANTABILITY or
// FITNESS FOR A PARTICULAR PURPOSE.  See the GNU General Public License for
// more details.

// You should have received a copy of the GNU General Public License along
// with this program.  If not, see <http://www.gnu.org/licenses/>.

package machine

import (
	"fmt"
)

// Instruction is a decoded word.
//
//	OP   |oooo|                   |AAA|BBB|CCC| Three register operands
//	IMM  |1101|RRR|value25                    | Immediate load
//	---- [ 31 ..................... 8 .. 3 .. 0 ]
type Instruction struct {
	Word   uint32
	Opcode uint32
	A      uint32
	B      uint32
	C      uint32
	Value  uint32
}

func Decode(word uint32) Instruction {
	ins := Instruction{Word: word, Opcode: word >> 28}

	if ins.Opcode == OP_IMM {
		ins.A = (word >> 25) & 0x7
		ins.Value = word & IMM_MASK
	} else {
		ins.A = (word >> 6) & 0x7
		ins.B = (word >> 3) & 0x7
		ins.C = word & 0x7
	}

	return ins
}

func Encode(opcode, a, b, c uint32) uint32 {
	return (opcode&0xF)<<28 | (a&0x7)<<6 | (b&0x7)<<3 | (c & 0x7)
}

func EncodeImm(reg, value uint32) uint32 {
	return OP_IMM<<28 | (reg&0x7)<<25 | (value & IMM_MASK)
}

// Mnemonic returns the assembler name of an opcode, or "" for the unused
// opcodes 14 and 15.
func Mnemonic(opcode uint32) string {
	switch opcode {
	case OP_CMOV:
		return "cmov"
	case OP_LOAD:
		return "load"
	case OP_STORE:
		return "store"
	case OP_ADD:
		return "add"
	case OP_MUL:
		return "mul"
	case OP_DIV:
		return "div"
	case OP_NAND:
		return "nand"
	case OP_HALT:
		return "halt"
	case OP_ALLOC:
		return "alloc"
	case OP_FREE:
		return "free"
	case OP_OUT:
		return "out"
	case OP_IN:
		return "in"
	case OP_JMP:
		return "jmp"
	case OP_IMM:
		return "imm"
	}

	return ""
}

// String renders the instruction in the syntax accepted by the assembler.
// Unused opcodes render as a raw .FILL directive.
func (ins Instruction) String() string {
	name := Mnemonic(ins.Opcode)

	switch ins.Opcode {
	case OP_CMOV, OP_LOAD, OP_STORE, OP_ADD, OP_MUL, OP_DIV, OP_NAND:
		return fmt.Sprintf("%s r%d, r%d, r%d", name, ins.A, ins.B, ins.C)
	case OP_HALT:
		return name
	case OP_ALLOC, OP_JMP:
		return fmt.Sprintf("%s r%d, r%d", name, ins.B, ins.C)
	case OP_FREE, OP_OUT, OP_IN:
		return fmt.Sprintf("%s r%d", name, ins.C)
	case OP_IMM:
		return fmt.Sprintf("%s r%d, %d", name, ins.A, ins.Value)
	default:
		return fmt.Sprintf(".FILL 0x%08x", ins.Word)
	}
}
