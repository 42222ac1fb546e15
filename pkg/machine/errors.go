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
	"errors"
	"fmt"
)

type FaultType uint

const (
	FAULT_NONE FaultType = iota
	FAULT_ARITHMETIC
	FAULT_INVALID_PAGE
	FAULT_MEMORY
	FAULT_OUT_OF_MEMORY
	FAULT_IO
)

var (
	ErrArithmetic  = errors.New("arithmetic fault")
	ErrInvalidPage = errors.New("invalid page fault")
	ErrMemory      = errors.New("memory fault")
	ErrOutOfMemory = errors.New("out of memory")
	ErrIO          = errors.New("device fault")

	ErrHalted = errors.New("machine halted")
)

func (t FaultType) sentinel() error {
	switch t {
	case FAULT_ARITHMETIC:
		return ErrArithmetic
	case FAULT_INVALID_PAGE:
		return ErrInvalidPage
	case FAULT_MEMORY:
		return ErrMemory
	case FAULT_OUT_OF_MEMORY:
		return ErrOutOfMemory
	case FAULT_IO:
		return ErrIO
	}

	return nil
}

func (t FaultType) String() string {
	if err := t.sentinel(); err != nil {
		return err.Error()
	}

	return "fault"
}

// Fault is a fatal machine trap. Counter and Word identify the instruction
// that raised it; Page and Offset are set for memory and page faults. Fetch
// marks a counter that ran off the program page, in which case Word is unset.
type Fault struct {
	Type    FaultType
	Counter uint32
	Word    uint32
	Page    uint32
	Offset  uint32
	Fetch   bool
	Err     error
}

func (err *Fault) Error() string {
	if err.Fetch {
		return fmt.Sprintf(
			"%s at 0x%08x (fetch past end of program page %#x)",
			err.Type,
			err.Counter,
			err.Page,
		)
	}

	var detail string

	switch err.Type {
	case FAULT_INVALID_PAGE:
		detail = fmt.Sprintf(" (page %#x)", err.Page)
	case FAULT_MEMORY:
		detail = fmt.Sprintf(" (page %#x, offset %#x)", err.Page, err.Offset)
	case FAULT_IO:
		if err.Err != nil {
			detail = ": " + err.Err.Error()
		}
	}

	return fmt.Sprintf(
		"%s at 0x%08x [%s]%s",
		err.Type,
		err.Counter,
		Decode(err.Word),
		detail,
	)
}

func (err *Fault) Is(target error) bool {
	return target != nil && target == err.Type.sentinel()
}

func (err *Fault) Unwrap() error {
	return err.Err
}
