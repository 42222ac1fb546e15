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

package assembler_test

import (
	"bytes"
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lassandro/goum/pkg/assembler"
	"github.com/lassandro/goum/pkg/machine"
)

type testCase struct {
	Name     string
	Input    string
	Output   []uint32
	SymTable *assembler.SymTable
}

type failCase struct {
	Name  string
	Input string
	Error error
}

func enc(opcode, a, b, c uint32) uint32 {
	return machine.Encode(opcode, a, b, c)
}

func testAssemblerSuccess(t *testing.T, test *testCase) {
	var symtable *assembler.SymTable

	if test.SymTable != nil {
		symtable = assembler.NewSymTable("")
	}

	result, errs := assembler.AssembleUMSource(
		strings.NewReader(test.Input), symtable,
	)

	require.Empty(t, errs)
	assert.Equal(t, test.Output, result, "instruction encoding mismatch")

	if test.SymTable != nil {
		assert.Equal(t, test.SymTable.Symbols, symtable.Symbols, "symbols mismatch")
		assert.Equal(t, test.SymTable.Labels, symtable.Labels, "labels mismatch")
	}
}

func testAssemblerFail(t *testing.T, test *failCase) {
	file := strings.NewReader(test.Input)

	_, errs := assembler.AssembleUMSource(file, nil)

	if test.Error == nil {
		panic("Fail case missing error value")
	}

	require.Len(t, errs, 1, "%s produced %v", t.Name(), errs)
	assert.Equal(
		t,
		reflect.TypeOf(test.Error),
		reflect.TypeOf(errs[0]),
		"%s produced error of incorrect type",
		t.Name(),
	)
}

func testSuccess(t *testing.T, tests []testCase) {
	t.Run("Success", func(t *testing.T) {
		for _, test := range tests {
			test := test
			t.Run(test.Name, func(t *testing.T) {
				testAssemblerSuccess(t, &test)
			})
		}
	})
}

func testFail(t *testing.T, tests []failCase) {
	t.Run("Fail", func(t *testing.T) {
		for _, test := range tests {
			test := test
			t.Run(test.Name, func(t *testing.T) {
				testAssemblerFail(t, &test)
			})
		}
	})
}

// OP   |oooo|                   |A  |B  |C  |
func TestThreeRegister(t *testing.T) {
	testSuccess(t, []testCase{
		{
			Name:   "ADD",
			Input:  `ADD R7, R2, R1`,
			Output: []uint32{0x300001D1},
		},
		{
			Name:   "Lowercase",
			Input:  `nand r0, r1, r2`,
			Output: []uint32{enc(machine.OP_NAND, 0, 1, 2)},
		},
		{
			Name:  "All",
			Input: "cmov r1 r2 r3\nload r1, r2, r3\nstore r1, r2, r3\nmul r1, r2, r3\ndiv r1, r2, r3",
			Output: []uint32{
				enc(machine.OP_CMOV, 1, 2, 3),
				enc(machine.OP_LOAD, 1, 2, 3),
				enc(machine.OP_STORE, 1, 2, 3),
				enc(machine.OP_MUL, 1, 2, 3),
				enc(machine.OP_DIV, 1, 2, 3),
			},
		},
	})

	testFail(t, []failCase{
		{
			Name:  "Missing Operand",
			Input: `ADD R0, R1`,
			Error: &assembler.InvalidNumArgumentsError{},
		},
		{
			Name:  "Bad Register",
			Input: `ADD R0, R1, R8`,
			Error: &assembler.InvalidRegisterError{},
		},
		{
			Name:  "Literal Operand",
			Input: `ADD R0, R1, x10`,
			Error: &assembler.InvalidOperandError{},
		},
	})
}

// ALLOC|1000|               |B  |C  |
// FREE |1001|                   |C  |
// HALT |0111|                       |
func TestShortForms(t *testing.T) {
	testSuccess(t, []testCase{
		{
			Name: "Page Operations",
			Input: `
				alloc r1, r2
				jmp r3, r4
				free r5
				out r6
				in r7
				halt
			`,
			Output: []uint32{
				enc(machine.OP_ALLOC, 0, 1, 2),
				enc(machine.OP_JMP, 0, 3, 4),
				enc(machine.OP_FREE, 0, 0, 5),
				enc(machine.OP_OUT, 0, 0, 6),
				enc(machine.OP_IN, 0, 0, 7),
				enc(machine.OP_HALT, 0, 0, 0),
			},
		},
	})

	testFail(t, []failCase{
		{
			Name:  "HALT Operand",
			Input: `HALT R0`,
			Error: &assembler.InvalidNumArgumentsError{},
		},
		{
			Name:  "OUT Literal",
			Input: `OUT #5`,
			Error: &assembler.InvalidOperandError{},
		},
		{
			Name:  "Unexpected Character",
			Input: `HALT @`,
			Error: &assembler.UnexpectedCharacterError{},
		},
	})
}

// IMM  |1101|R  |value25                    |
func TestImmediate(t *testing.T) {
	testSuccess(t, []testCase{
		{
			Name: "Hi",
			Input: `
				imm r0, 72      ; H
				imm r1, #105    ; i
				out r0
				out r1
				halt
			`,
			Output: []uint32{
				machine.EncodeImm(0, 72),
				machine.EncodeImm(1, 105),
				enc(machine.OP_OUT, 0, 0, 0),
				enc(machine.OP_OUT, 0, 0, 1),
				enc(machine.OP_HALT, 0, 0, 0),
			},
		},
		{
			Name:   "Hex Max",
			Input:  `IMM R7, x1FFFFFF`,
			Output: []uint32{0xDFFFFFFF},
		},
		{
			Name: "Label",
			Input: `
				imm r2, data
				halt
				data .FILL 9
			`,
			Output: []uint32{machine.EncodeImm(2, 2), 0x70000000, 9},
		},
	})

	testFail(t, []failCase{
		{
			Name:  "Oversized",
			Input: `IMM R0, 33554432`,
			Error: &assembler.OversizedLiteralError{},
		},
		{
			Name:  "Unknown Label",
			Input: `IMM R0, nowhere`,
			Error: &assembler.UnknownLabelError{},
		},
		{
			Name:  "Register Value",
			Input: `IMM R0, "a"`,
			Error: &assembler.InvalidOperandError{},
		},
	})
}

func TestDirectives(t *testing.T) {
	testSuccess(t, []testCase{
		{
			Name: "FILL",
			Input: `
				.FILL xCAFE
				.FILL #4294967295
				self .FILL self
			`,
			Output: []uint32{0xCAFE, 0xFFFFFFFF, 2},
		},
		{
			Name:   "BLKW",
			Input:  `.BLKW 3`,
			Output: []uint32{0, 0, 0},
		},
		{
			Name:   "STRINGZ",
			Input:  `.STRINGZ "Hi\n, \"there\""`,
			Output: []uint32{'H', 'i', '\n', ',', ' ', '"', 't', 'h', 'e', 'r', 'e', '"', 0},
		},
		{
			Name:   "END",
			Input:  "halt\n.END\nhalt\nhalt",
			Output: []uint32{0x70000000},
		},
	})

	testFail(t, []failCase{
		{
			Name:  "FILL Bad Literal",
			Input: `.FILL #zz`,
			Error: &assembler.InvalidLiteralError{},
		},
		{
			Name:  "FILL String",
			Input: `.FILL "a"`,
			Error: &assembler.InvalidOperandError{},
		},
		{
			Name:  "STRINGZ Unterminated",
			Input: `.STRINGZ "abc`,
			Error: &assembler.InvalidStringError{},
		},
		{
			Name:  "BLKW Oversized",
			Input: `.BLKW 67108865`,
			Error: &assembler.OversizedBinaryError{},
		},
		{
			Name:  "END Operand",
			Input: `.END 1`,
			Error: &assembler.InvalidNumArgumentsError{},
		},
	})
}

func TestLabels(t *testing.T) {
	testSuccess(t, []testCase{
		{
			Name:  "Symbols",
			Input: "; header\nmain imm r0, loop\nloop\n  out r0\n  halt\n",
			Output: []uint32{
				machine.EncodeImm(0, 1),
				enc(machine.OP_OUT, 0, 0, 0),
				enc(machine.OP_HALT, 0, 0, 0),
			},
			SymTable: &assembler.SymTable{
				Symbols: map[uint32]int64{0: 9, 1: 32, 2: 41},
				Labels:  map[uint32]string{0: "main", 1: "loop"},
			},
		},
	})

	testFail(t, []failCase{
		{
			Name:  "Redeclared",
			Input: "a halt\na halt",
			Error: &assembler.RedeclaredLabelError{},
		},
		{
			Name:  "Unknown Identifier",
			Input: `foo bar`,
			Error: &assembler.UnknownIdentifierError{},
		},
	})
}

func TestSymTableLookup(t *testing.T) {
	symtable := assembler.NewSymTable("prog.uma")

	_, errs := assembler.AssembleUMSource(
		strings.NewReader("start halt\nend .FILL 0"), symtable,
	)
	require.Empty(t, errs)

	addr, ok := symtable.Lookup("end")
	require.True(t, ok)
	assert.Equal(t, uint32(1), addr)

	_, ok = symtable.Lookup("missing")
	assert.False(t, ok)
	assert.Equal(t, "prog.uma", symtable.Source)
}

func TestErrorPosition(t *testing.T) {
	_, errs := assembler.AssembleUMSource(
		strings.NewReader("halt\n  add r0, r1, r9\n"), nil,
	)

	require.Len(t, errs, 1)

	tokenErr, ok := errs[0].(assembler.TokenError)
	require.True(t, ok)

	position := tokenErr.GetPosition()
	assert.Equal(t, 2, position.Line)
	assert.Equal(t, 15, position.Column)
	assert.Equal(t, int64(19), position.Byte)
	assert.Equal(t, int64(2), position.Size)
}

func TestErrorMessages(t *testing.T) {
	position := assembler.Cursor{Line: 3, Column: 9}

	tests := []struct {
		Error    error
		Expected string
	}{
		{
			Error: &assembler.OversizedLabelError{
				Position: position, Required: machine.IMM_LIMIT, Received: 0x2000001,
			},
			Expected: "3:9: label address 0x2000001 does not fit in an imm operand (limit 0x2000000)",
		},
		{
			Error: &assembler.OversizedLiteralError{
				Position: position, Required: machine.IMM_LIMIT, Received: 0x3000000,
			},
			Expected: "3:9: literal 0x3000000 does not fit in an imm operand (limit 0x2000000)",
		},
		{
			Error: &assembler.InvalidOperandError{
				Position: position,
				Required: []assembler.TokenType{assembler.TOKEN_LITERAL, assembler.TOKEN_IDENT},
				Received: assembler.TOKEN_STRING,
			},
			Expected: "3:9: operand is a string, expected literal or identifier",
		},
		{
			Error:    &assembler.InvalidNumArgumentsError{Position: position, Required: 3, Received: 2},
			Expected: "3:9: takes 3 operands, got 2",
		},
		{
			Error:    &assembler.InvalidRegisterError{Position: position},
			Expected: "3:9: expected a register r0 through r7",
		},
		{
			Error:    &assembler.UnknownLabelError{Position: position, Received: "loop"},
			Expected: `3:9: undefined label "loop"`,
		},
	}

	for _, test := range tests {
		assert.Equal(t, test.Expected, test.Error.Error())
	}

	_, errs := assembler.AssembleUMSource(strings.NewReader("imm r0, x2000000\n"), nil)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "literal 0x2000000 does not fit in an imm operand")
}

// Every disassembled instruction assembles back to the same word.
func TestDisassemblyRoundTrip(t *testing.T) {
	words := []uint32{
		enc(machine.OP_CMOV, 7, 6, 5),
		enc(machine.OP_LOAD, 0, 1, 2),
		enc(machine.OP_STORE, 3, 4, 5),
		enc(machine.OP_ADD, 1, 1, 1),
		enc(machine.OP_MUL, 2, 3, 4),
		enc(machine.OP_DIV, 5, 6, 7),
		enc(machine.OP_NAND, 0, 0, 0),
		enc(machine.OP_HALT, 0, 0, 0),
		enc(machine.OP_ALLOC, 0, 2, 3),
		enc(machine.OP_FREE, 0, 0, 4),
		enc(machine.OP_OUT, 0, 0, 5),
		enc(machine.OP_IN, 0, 0, 6),
		enc(machine.OP_JMP, 0, 7, 0),
		machine.EncodeImm(4, 0x1ABCDEF),
		0xE0000000,
		0xF1234567,
	}

	var source bytes.Buffer

	for _, word := range words {
		source.WriteString(machine.Decode(word).String())
		source.WriteByte('\n')
	}

	result, errs := assembler.AssembleUMSource(&source, nil)
	require.Empty(t, errs)
	assert.Equal(t, words, result)
}

func TestAssembleAndRun(t *testing.T) {
	image, errs := assembler.AssembleUMSource(strings.NewReader(`
		; copy msg into a fresh page, then print it from there
		        imm r1, msg
		        imm r2, 3
		        alloc r3, r2
		        imm r4, 1
		        imm r5, 0
		copy    load r6, r0, r1
		        store r3, r5, r6
		        add r1, r1, r4
		        add r5, r5, r4
		        imm r7, 3
		        nand r7, r7, r7
		        add r7, r7, r4
		        add r7, r5, r7
		        imm r6, print
		        imm r0, copy
		        cmov r6, r0, r7
		        imm r0, 0
		        jmp r0, r6
		print   imm r5, 0
		        load r6, r3, r5
		        out r6
		        add r5, r5, r4
		        load r6, r3, r5
		        out r6
		        add r5, r5, r4
		        load r6, r3, r5
		        out r6
		        free r3
		        halt
		msg     .STRINGZ "ok"
	`), nil)

	require.Empty(t, errs)

	var display bytes.Buffer
	var mc machine.Machine

	mc.LoadWords(image)
	mc.Devices = &machine.DeviceHandler{Output: &display}

	require.NoError(t, mc.Run())
	assert.Equal(t, "ok\x00", display.String())
	assert.Equal(t, uint64(1), mc.Stats.Frees)
}
