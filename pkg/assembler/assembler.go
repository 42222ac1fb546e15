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

package assembler

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/lassandro/goum/pkg/encoding"
	"github.com/lassandro/goum/pkg/machine"
)

type labelRef struct {
	Label    string
	Addr     uint32
	Type     RefType
	Position Cursor
}

func parseDirective(ident string) DirectiveType {
	if strings.EqualFold(ident, ".FILL") {
		return DIRECTIVE_FILL
	} else if strings.EqualFold(ident, ".BLKW") {
		return DIRECTIVE_BLKW
	} else if strings.EqualFold(ident, ".STRINGZ") {
		return DIRECTIVE_STRINGZ
	} else if strings.EqualFold(ident, ".END") {
		return DIRECTIVE_END
	}

	return DIRECTIVE_INVALID
}

// Instruction types are declared in opcode order, offset by one
func parseInstruction(ident string) InstructionType {
	for op := machine.OP_CMOV; op <= machine.OP_IMM; op++ {
		if strings.EqualFold(ident, machine.Mnemonic(op)) {
			return InstructionType(op) + INSTRUCTION_CMOV
		}
	}

	return INSTRUCTION_INVALID
}

func parseRegister(token *Token) (uint32, bool) {
	ident := token.Value

	if len(ident) != 2 || (ident[0] != 'r' && ident[0] != 'R') {
		return 0, false
	}

	if ident[1] < '0' || ident[1] > '7' {
		return 0, false
	}

	return uint32(ident[1] - '0'), true
}

// parseLiteral decodes a literal token. A non-zero limit is an exclusive
// upper bound on the value.
func parseLiteral(token *Token, limit uint32) (uint32, error) {
	result, err := encoding.DecodeWord(token.Value)

	if err != nil {
		return 0, &InvalidLiteralError{token.Position}
	}

	if limit != 0 && result >= limit {
		return 0, &OversizedLiteralError{token.Position, limit, result}
	}

	return result, nil
}

func isHex(s string) bool {
	for _, char := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", char) {
			return false
		}
	}

	return len(s) > 0
}

func classifyToken(value string) TokenType {
	switch {
	case value[0] == '.':
		return TOKEN_DIRECTIVE
	case value[0] == '"':
		return TOKEN_STRING
	case value[0] == '#' || unicode.IsDigit(rune(value[0])):
		return TOKEN_LITERAL
	case (value[0] == 'x' || value[0] == 'X') && isHex(value[1:]):
		return TOKEN_LITERAL
	}

	return TOKEN_IDENT
}

func tokenizeLine(line string, cursor Cursor) (tokens []Token, errs []error) {
	var builder strings.Builder
	var tokenStart int
	var inString, escaped bool

	flush := func() {
		if builder.Len() == 0 {
			return
		}

		value := builder.String()
		tokens = append(tokens, Token{
			Type:  classifyToken(value),
			Value: value,
			Position: Cursor{
				Line:     cursor.Line,
				Column:   tokenStart,
				Byte:     cursor.LineByte + int64(tokenStart-1),
				Size:     int64(len(value)),
				LineByte: cursor.LineByte,
			},
		})
		builder.Reset()
	}

scan:
	for i, char := range line {
		column := i + 1

		if inString {
			builder.WriteRune(char)

			if escaped {
				escaped = false
			} else if char == '\\' {
				escaped = true
			} else if char == '"' {
				inString = false
				flush()
			}

			continue
		}

		switch {
		// Operand Separators
		case unicode.IsSpace(char) || char == ',':
			flush()

		// Comments
		case char == ';':
			flush()
			break scan

		// String Literal
		case char == '"':
			flush()
			tokenStart = column
			inString = true
			builder.WriteRune(char)

		// Identifiers, Directives, and Literals
		case char <= unicode.MaxASCII &&
			(unicode.IsLetter(char) || unicode.IsDigit(char) ||
				char == '_' || char == '.' || char == '#'):
			if builder.Len() == 0 {
				tokenStart = column
			}

			builder.WriteRune(char)

		default:
			errs = append(errs, &UnexpectedCharacterError{
				Cursor{
					Line:     cursor.Line,
					Column:   column,
					Byte:     cursor.LineByte + int64(column-1),
					Size:     1,
					LineByte: cursor.LineByte,
				},
				char,
			})
		}
	}

	if inString {
		errs = append(errs, &InvalidStringError{
			Cursor{
				Line:     cursor.Line,
				Column:   tokenStart,
				Byte:     cursor.LineByte + int64(tokenStart-1),
				Size:     int64(builder.Len()),
				LineByte: cursor.LineByte,
			},
		})
		builder.Reset()
	}

	flush()
	return
}

func parseRegisterOperand(token *Token) (uint32, error) {
	if token.Type != TOKEN_IDENT {
		return 0, &InvalidOperandError{
			token.Position, []TokenType{TOKEN_IDENT}, token.Type,
		}
	}

	reg, ok := parseRegister(token)

	if !ok {
		return 0, &InvalidRegisterError{token.Position}
	}

	return reg, nil
}

func assembleInstruction(
	instruction InstructionType, keyword *Token, operands []Token,
) (uint32, *labelRef, []error) {
	var errs []error
	var regs [3]uint32
	var required int

	opcode := uint32(instruction - INSTRUCTION_CMOV)

	switch opcode {
	case machine.OP_CMOV, machine.OP_LOAD, machine.OP_STORE, machine.OP_ADD,
		machine.OP_MUL, machine.OP_DIV, machine.OP_NAND:
		required = 3
	case machine.OP_ALLOC, machine.OP_JMP, machine.OP_IMM:
		required = 2
	case machine.OP_FREE, machine.OP_OUT, machine.OP_IN:
		required = 1
	}

	if count := len(operands); count != required {
		return 0, nil, []error{
			&InvalidNumArgumentsError{keyword.Position, required, count},
		}
	}

	registers := required

	if opcode == machine.OP_IMM {
		registers = 1
	}

	for i := 0; i < registers; i++ {
		reg, err := parseRegisterOperand(&operands[i])

		if err != nil {
			errs = append(errs, err)
		}

		regs[i] = reg
	}

	switch opcode {
	// IMM  |1101|R  |value25          |
	case machine.OP_IMM:
		operand := &operands[1]

		switch operand.Type {
		case TOKEN_LITERAL:
			literal, err := parseLiteral(operand, machine.IMM_LIMIT)

			if err != nil {
				errs = append(errs, err)
			}

			return machine.EncodeImm(regs[0], literal), nil, errs

		case TOKEN_IDENT:
			ref := &labelRef{
				Label:    operand.Value,
				Type:     REF_IMM,
				Position: operand.Position,
			}

			return machine.EncodeImm(regs[0], 0), ref, errs

		default:
			errs = append(errs, &InvalidOperandError{
				operand.Position,
				[]TokenType{TOKEN_LITERAL, TOKEN_IDENT},
				operand.Type,
			})

			return 0, nil, errs
		}

	// ALLOC|1000|            |B  |C  |
	// JMP  |1100|            |B  |C  |
	case machine.OP_ALLOC, machine.OP_JMP:
		return machine.Encode(opcode, 0, regs[0], regs[1]), nil, errs

	// FREE |1001|                |C  |
	// OUT  |1010|                |C  |
	// IN   |1011|                |C  |
	case machine.OP_FREE, machine.OP_OUT, machine.OP_IN:
		return machine.Encode(opcode, 0, 0, regs[0]), nil, errs
	}

	return machine.Encode(opcode, regs[0], regs[1], regs[2]), nil, errs
}

// AssembleUMSource assembles source into a program image. When symtable is
// non-nil it receives the source offset of every emitted address and the
// address of every label.
func AssembleUMSource(input io.Reader, symtable *SymTable) (result []uint32, errs []error) {
	var labels = make(map[string]uint32)
	var labelRefs []labelRef

	var scanner = bufio.NewScanner(input)
	var cursor = Cursor{Line: 1}

	result = make([]uint32, 0, 1024)
	errs = make([]error, 0)

	advance := func(line string) {
		cursor.Line++
		cursor.Byte += int64(len(line) + 1)
		cursor.LineByte += int64(len(line) + 1)
	}

	for scanner.Scan() {
		line := scanner.Text()
		cursor.Size = int64(len(line))

		tokens, lineErrs := tokenizeLine(line, cursor)

		// Pass any potential assembler errors if we already had parser errors
		if len(tokens) == 0 || len(lineErrs) > 0 {
			errs = append(errs, lineErrs...)
			advance(line)
			continue
		}

		var label *Token = nil
		var keyword *Token = nil
		var directive DirectiveType
		var instruction InstructionType
		var operands []Token

		head := 0

		if tokens[0].Type == TOKEN_IDENT &&
			parseInstruction(tokens[0].Value) == INSTRUCTION_INVALID {
			label = &tokens[0]
			head = 1
		}

		if label != nil {
			if _, exists := labels[label.Value]; !exists {
				labels[label.Value] = uint32(len(result))
			} else {
				errs = append(
					errs, &RedeclaredLabelError{label.Position, label.Value},
				)
			}
		}

		// No need to assemble label-only statements
		if head == len(tokens) {
			advance(line)
			continue
		}

		keyword = &tokens[head]
		operands = tokens[head+1:]

		switch keyword.Type {
		case TOKEN_IDENT:
			instruction = parseInstruction(keyword.Value)
		case TOKEN_DIRECTIVE:
			directive = parseDirective(keyword.Value)
		}

		if instruction == INSTRUCTION_INVALID && directive == DIRECTIVE_INVALID {
			errs = append(
				errs, &UnknownIdentifierError{keyword.Position, keyword.Value},
			)
			advance(line)
			continue
		}

		if directive == DIRECTIVE_END {
			if count := len(operands); count != 0 {
				errs = append(
					errs, &InvalidNumArgumentsError{keyword.Position, 0, count},
				)
			}

			break
		}

		start := uint32(len(result))

		switch directive {
		// .FILL # | label
		case DIRECTIVE_FILL:
			if count := len(operands); count != 1 {
				errs = append(
					errs, &InvalidNumArgumentsError{keyword.Position, 1, count},
				)

				break
			}

			switch operands[0].Type {
			case TOKEN_LITERAL:
				literal, err := parseLiteral(&operands[0], 0)

				if err != nil {
					errs = append(errs, err)
				}

				result = append(result, literal)

			case TOKEN_IDENT:
				labelRefs = append(labelRefs, labelRef{
					Label:    operands[0].Value,
					Addr:     start,
					Type:     REF_WORD,
					Position: operands[0].Position,
				})

				result = append(result, 0)

			default:
				errs = append(
					errs,
					&InvalidOperandError{
						operands[0].Position,
						[]TokenType{TOKEN_LITERAL, TOKEN_IDENT},
						operands[0].Type,
					},
				)
			}

		// .BLKW #
		case DIRECTIVE_BLKW:
			if count := len(operands); count != 1 {
				errs = append(
					errs, &InvalidNumArgumentsError{keyword.Position, 1, count},
				)

				break
			}

			if operands[0].Type != TOKEN_LITERAL {
				errs = append(
					errs,
					&InvalidOperandError{
						operands[0].Position,
						[]TokenType{TOKEN_LITERAL},
						operands[0].Type,
					},
				)

				break
			}

			literal, err := parseLiteral(&operands[0], 0)

			if err != nil {
				errs = append(errs, err)
				break
			}

			if uint64(len(result))+uint64(literal) > MAX_IMAGE_WORDS {
				errs = append(errs, &OversizedBinaryError{})
				return
			}

			result = append(result, make([]uint32, literal)...)

		// .STRINGZ "..."
		case DIRECTIVE_STRINGZ:
			if count := len(operands); count != 1 {
				errs = append(
					errs, &InvalidNumArgumentsError{keyword.Position, 1, count},
				)

				break
			}

			if operands[0].Type != TOKEN_STRING {
				errs = append(
					errs,
					&InvalidOperandError{
						operands[0].Position,
						[]TokenType{TOKEN_STRING},
						operands[0].Type,
					},
				)

				break
			}

			s, err := strconv.Unquote(operands[0].Value)

			if err != nil {
				errs = append(errs, &InvalidStringError{operands[0].Position})
				break
			}

			for i := 0; i < len(s); i++ {
				result = append(result, uint32(s[i]))
			}

			result = append(result, 0)
		}

		if instruction != INSTRUCTION_INVALID {
			word, ref, instructionErrs := assembleInstruction(
				instruction, keyword, operands,
			)

			errs = append(errs, instructionErrs...)

			if ref != nil {
				ref.Addr = start
				labelRefs = append(labelRefs, *ref)
			}

			result = append(result, word)
		}

		if symtable != nil && uint32(len(result)) > start {
			symtable.Symbols[start] = cursor.LineByte
		}

		if len(result) > MAX_IMAGE_WORDS {
			errs = append(errs, &OversizedBinaryError{})
			return
		}

		advance(line)
	}

	if err := scanner.Err(); err != nil {
		errs = append(errs, err)
	}

	// Label
	// - Validate and resolve label references
	// - Add labels to symbol table
	for _, ref := range labelRefs {
		addr, exists := labels[ref.Label]

		if !exists {
			errs = append(errs, &UnknownLabelError{ref.Position, ref.Label})
			continue
		}

		switch ref.Type {
		case REF_WORD:
			result[ref.Addr] = addr

		case REF_IMM:
			if addr >= machine.IMM_LIMIT {
				errs = append(
					errs,
					&OversizedLabelError{ref.Position, machine.IMM_LIMIT, addr},
				)

				continue
			}

			result[ref.Addr] |= addr
		}
	}

	if symtable != nil {
		for label, addr := range labels {
			symtable.Labels[addr] = label
		}
	}

	return
}
