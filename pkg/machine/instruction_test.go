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

package machine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lassandro/goum/pkg/machine"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		Word     uint32
		Expected machine.Instruction
	}{
		{
			Word: 0x300001D1,
			Expected: machine.Instruction{
				Word: 0x300001D1, Opcode: machine.OP_ADD, A: 7, B: 2, C: 1,
			},
		},
		{
			Word: 0x0FFFFE00,
			Expected: machine.Instruction{
				Word: 0x0FFFFE00, Opcode: machine.OP_CMOV,
			},
		},
		{
			Word: 0xDE000048,
			Expected: machine.Instruction{
				Word: 0xDE000048, Opcode: machine.OP_IMM, A: 7, Value: 72,
			},
		},
		{
			Word: 0xD1FFFFFF,
			Expected: machine.Instruction{
				Word: 0xD1FFFFFF, Opcode: machine.OP_IMM, A: 0, Value: 0x1FFFFFF,
			},
		},
	}

	for _, test := range tests {
		assert.Equal(t, test.Expected, machine.Decode(test.Word), "0x%08x", test.Word)
	}
}

func TestEncode(t *testing.T) {
	for op := uint32(0); op < 16; op++ {
		if op == machine.OP_IMM {
			continue
		}

		for _, regs := range [][3]uint32{{0, 0, 0}, {7, 7, 7}, {1, 2, 3}, {6, 0, 5}} {
			ins := machine.Decode(machine.Encode(op, regs[0], regs[1], regs[2]))
			assert.Equal(t, op, ins.Opcode)
			assert.Equal(t, regs, [3]uint32{ins.A, ins.B, ins.C})
		}
	}

	ins := machine.Decode(machine.EncodeImm(5, 0x1234567))
	assert.Equal(t, machine.OP_IMM, ins.Opcode)
	assert.Equal(t, uint32(5), ins.A)
	assert.Equal(t, uint32(0x1234567), ins.Value)
}

func TestInstructionString(t *testing.T) {
	tests := map[uint32]string{
		machine.Encode(machine.OP_CMOV, 1, 2, 3):  "cmov r1, r2, r3",
		machine.Encode(machine.OP_NAND, 0, 0, 0):  "nand r0, r0, r0",
		machine.Encode(machine.OP_HALT, 0, 0, 0):  "halt",
		machine.Encode(machine.OP_ALLOC, 0, 4, 5): "alloc r4, r5",
		machine.Encode(machine.OP_JMP, 0, 6, 7):   "jmp r6, r7",
		machine.Encode(machine.OP_OUT, 0, 0, 2):   "out r2",
		machine.Encode(machine.OP_IN, 0, 0, 3):    "in r3",
		machine.Encode(machine.OP_FREE, 0, 0, 1):  "free r1",
		machine.EncodeImm(3, 105):                 "imm r3, 105",
	}

	for word, expected := range tests {
		assert.Equal(t, expected, machine.Decode(word).String())
	}

	assert.Equal(t, ".FILL 0xe0000001", machine.Decode(0xE0000001).String())
}

func TestFaultError(t *testing.T) {
	fault := &machine.Fault{
		Type:    machine.FAULT_ARITHMETIC,
		Counter: 0x10,
		Word:    machine.Encode(machine.OP_DIV, 0, 1, 2),
	}

	assert.Equal(t, "arithmetic fault at 0x00000010 [div r0, r1, r2]", fault.Error())
	assert.ErrorIs(t, fault, machine.ErrArithmetic)
	assert.NotErrorIs(t, fault, machine.ErrMemory)

	fault = &machine.Fault{
		Type: machine.FAULT_MEMORY, Counter: 2, Page: 3, Offset: 9,
		Word: machine.Encode(machine.OP_LOAD, 0, 1, 2),
	}

	assert.Equal(
		t,
		"memory fault at 0x00000002 [load r0, r1, r2] (page 0x3, offset 0x9)",
		fault.Error(),
	)

	fault = &machine.Fault{
		Type: machine.FAULT_MEMORY, Counter: 7, Page: 0, Offset: 7, Fetch: true,
	}

	assert.Equal(
		t,
		"memory fault at 0x00000007 (fetch past end of program page 0x0)",
		fault.Error(),
	)
	assert.ErrorIs(t, fault, machine.ErrMemory)
}
