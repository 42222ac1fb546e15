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

const (
	OP_CMOV  uint32 = 0
	OP_LOAD  uint32 = 1
	OP_STORE uint32 = 2
	OP_ADD   uint32 = 3
	OP_MUL   uint32 = 4
	OP_DIV   uint32 = 5
	OP_NAND  uint32 = 6
	OP_HALT  uint32 = 7
	OP_ALLOC uint32 = 8
	OP_FREE  uint32 = 9
	OP_OUT   uint32 = 10
	OP_IN    uint32 = 11
	OP_JMP   uint32 = 12
	OP_IMM   uint32 = 13
)

const (
	NUM_REGISTERS = 8

	IMM_MASK  uint32 = 0x1FFFFFF
	IMM_LIMIT uint32 = 1 << 25

	// Register value loaded by IN once the input stream is exhausted
	INPUT_EOF uint32 = 0xFFFFFFFF

	// Identifier of the active program image in the page table
	PROGRAM_PAGE uint32 = 0
)
