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
	"fmt"
	"strings"
)

type TokenType uint
type InstructionType uint
type DirectiveType uint
type RefType uint

type Cursor struct {
	Line     int
	Column   int
	Byte     int64
	Size     int64
	LineByte int64
}

type Token struct {
	Type     TokenType
	Position Cursor
	Value    string
}

// SymTable maps image addresses back to the source that produced them.
// Symbols holds the byte offset of the source line for each address.
type SymTable struct {
	Source  string
	Symbols map[uint32]int64
	Labels  map[uint32]string
}

func NewSymTable(source string) *SymTable {
	return &SymTable{
		Source:  source,
		Symbols: make(map[uint32]int64),
		Labels:  make(map[uint32]string),
	}
}

// Lookup returns the address of a label.
func (st *SymTable) Lookup(label string) (uint32, bool) {
	for addr, name := range st.Labels {
		if name == label {
			return addr, true
		}
	}

	return 0, false
}

type TokenError interface {
	GetPosition() Cursor
}

// where prefixes a message with the line and column of the offending token.
func where(pos Cursor, format string, args ...interface{}) string {
	return fmt.Sprintf("%d:%d: ", pos.Line, pos.Column) + fmt.Sprintf(format, args...)
}

func tokenTypeName(tokenType TokenType) string {
	switch tokenType {
	case TOKEN_IDENT:
		return "identifier"
	case TOKEN_DIRECTIVE:
		return "directive"
	case TOKEN_STRING:
		return "string"
	case TOKEN_LITERAL:
		return "literal"
	}

	return "<invalid>"
}

type InvalidOperandError struct {
	Position Cursor
	Required []TokenType
	Received TokenType
}

func (err *InvalidOperandError) GetPosition() Cursor {
	return err.Position
}

func (err *InvalidOperandError) Error() string {
	names := make([]string, 0, len(err.Required))

	for _, tokenType := range err.Required {
		names = append(names, tokenTypeName(tokenType))
	}

	return where(
		err.Position,
		"operand is a %s, expected %s",
		tokenTypeName(err.Received),
		strings.Join(names, " or "),
	)
}

type InvalidNumArgumentsError struct {
	Position Cursor
	Required int
	Received int
}

func (err *InvalidNumArgumentsError) GetPosition() Cursor {
	return err.Position
}

func (err *InvalidNumArgumentsError) Error() string {
	return where(
		err.Position,
		"takes %d operands, got %d",
		err.Required,
		err.Received,
	)
}

// OversizedLabelError is raised when an imm operand names a label whose
// address needs more than the 25 bits an imm instruction carries.
type OversizedLabelError struct {
	Position Cursor
	Required uint32
	Received uint32
}

func (err *OversizedLabelError) GetPosition() Cursor {
	return err.Position
}

func (err *OversizedLabelError) Error() string {
	return where(
		err.Position,
		"label address %#x does not fit in an imm operand (limit %#x)",
		err.Received,
		err.Required,
	)
}

type InvalidLiteralError struct {
	Position Cursor
}

func (err *InvalidLiteralError) GetPosition() Cursor {
	return err.Position
}

func (err *InvalidLiteralError) Error() string {
	return where(err.Position, "malformed numeric literal")
}

type InvalidStringError struct {
	Position Cursor
}

func (err *InvalidStringError) GetPosition() Cursor {
	return err.Position
}

func (err *InvalidStringError) Error() string {
	return where(err.Position, "malformed string literal")
}

type OversizedLiteralError struct {
	Position Cursor
	Required uint32
	Received uint32
}

func (err *OversizedLiteralError) GetPosition() Cursor {
	return err.Position
}

func (err *OversizedLiteralError) Error() string {
	return where(
		err.Position,
		"literal %#x does not fit in an imm operand (limit %#x)",
		err.Received,
		err.Required,
	)
}

type InvalidRegisterError struct {
	Position Cursor
}

func (err *InvalidRegisterError) GetPosition() Cursor {
	return err.Position
}

func (err *InvalidRegisterError) Error() string {
	return where(err.Position, "expected a register r0 through r7")
}

type UnexpectedCharacterError struct {
	Position Cursor
	Received rune
}

func (err *UnexpectedCharacterError) GetPosition() Cursor {
	return err.Position
}

func (err *UnexpectedCharacterError) Error() string {
	return where(err.Position, "unexpected character %q", err.Received)
}

type RedeclaredLabelError struct {
	Position Cursor
	Received string
}

func (err *RedeclaredLabelError) GetPosition() Cursor {
	return err.Position
}

func (err *RedeclaredLabelError) Error() string {
	return where(err.Position, "label %q already declared", err.Received)
}

type UnknownLabelError struct {
	Position Cursor
	Received string
}

func (err *UnknownLabelError) GetPosition() Cursor {
	return err.Position
}

func (err *UnknownLabelError) Error() string {
	return where(err.Position, "undefined label %q", err.Received)
}

type UnknownIdentifierError struct {
	Position Cursor
	Received string
}

func (err *UnknownIdentifierError) GetPosition() Cursor {
	return err.Position
}

func (err *UnknownIdentifierError) Error() string {
	return where(err.Position, "%q is not an instruction or directive", err.Received)
}

type OversizedBinaryError struct{}

func (err *OversizedBinaryError) Error() string {
	return fmt.Sprintf("image exceeds %d words", MAX_IMAGE_WORDS)
}
