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
	"io"

	"github.com/lassandro/goum/pkg/encoding"
)

func (mc *MachineState) Reset() {
	for i := range mc.Registers {
		mc.Registers[i] = 0
	}

	mc.Counter = 0
	mc.Version = 0
	mc.Halted = false
	mc.Pages.Reset(nil)
}

// LoadImage resets the machine and installs the big-endian program image read
// from reader as page 0.
func (mc *Machine) LoadImage(reader io.Reader) error {
	words, err := encoding.ReadWords(reader)

	if err != nil {
		return err
	}

	mc.LoadWords(words)
	return nil
}

func (mc *Machine) LoadWords(words []uint32) {
	mc.State.Reset()
	mc.State.Pages.Reset(words)
	mc.Stats = Stats{}
}

func (mc *Machine) read(page, offset uint32) (uint32, error) {
	if mc.Debugger != nil {
		mc.Debugger.Read(page, offset, mc)
	}

	return mc.State.Pages.Read(page, offset)
}

func (mc *Machine) write(page, offset, value uint32) error {
	if err := mc.State.Pages.Write(page, offset, value); err != nil {
		return err
	}

	if mc.Debugger != nil {
		mc.Debugger.Write(page, offset, mc)
	}

	return nil
}

func (mc *Machine) output(value byte) error {
	mc.Stats.Outputs++

	if mc.Devices == nil || mc.Devices.Output == nil {
		return nil
	}

	if err := mc.Devices.Output.WriteByte(value); err != nil {
		return &Fault{Type: FAULT_IO, Err: err}
	}

	return nil
}

func (mc *Machine) input() (uint32, error) {
	mc.Stats.Inputs++

	if mc.Devices == nil || mc.Devices.Input == nil {
		return INPUT_EOF, nil
	}

	value, err := mc.Devices.Input.ReadByte()

	if err == io.EOF {
		return INPUT_EOF, nil
	} else if err != nil {
		return 0, &Fault{Type: FAULT_IO, Err: err}
	}

	return uint32(value), nil
}

// Step fetches, decodes and executes the instruction at the program counter.
// Faults are returned as *Fault and are not recoverable: the machine state
// after a fault is unspecified.
func (mc *Machine) Step() error {
	if mc.State.Halted {
		return ErrHalted
	}

	if mc.Debugger != nil {
		mc.Debugger.Step(mc)

		if mc.State.Halted {
			return ErrHalted
		}
	}

	counter := mc.State.Counter
	program := mc.State.Pages.Program()

	if uint64(counter) >= uint64(len(program)) {
		return &Fault{
			Type:    FAULT_MEMORY,
			Counter: counter,
			Page:    PROGRAM_PAGE,
			Offset:  counter,
			Fetch:   true,
		}
	}

	word := program[counter]

	mc.State.Counter++
	mc.Stats.Instructions++

	if err := mc.execute(Decode(word)); err != nil {
		var fault *Fault

		if errors.As(err, &fault) {
			fault.Counter = counter
			fault.Word = word
		}

		return err
	}

	return nil
}

// Run steps the machine until it halts or faults. A halt returns nil.
func (mc *Machine) Run() error {
	for {
		err := mc.Step()

		if err == ErrHalted {
			return nil
		} else if err != nil {
			return err
		}

		if mc.State.Halted {
			return nil
		}
	}
}

func (mc *Machine) execute(ins Instruction) error {
	r := &mc.State.Registers

	switch ins.Opcode {
	// CMOV |0000|        |A  |B  |C  | if r[C] != 0 { r[A] = r[B] }
	case OP_CMOV:
		if r[ins.C] != 0 {
			r[ins.A] = r[ins.B]
		}

	// LOAD |0001|        |A  |B  |C  | r[A] = page(r[B])[r[C]]
	case OP_LOAD:
		value, err := mc.read(r[ins.B], r[ins.C])

		if err != nil {
			return err
		}

		r[ins.A] = value

	// STORE|0010|        |A  |B  |C  | page(r[A])[r[B]] = r[C]
	case OP_STORE:
		return mc.write(r[ins.A], r[ins.B], r[ins.C])

	// ADD  |0011|        |A  |B  |C  | r[A] = r[B] + r[C]
	case OP_ADD:
		r[ins.A] = r[ins.B] + r[ins.C]

	// MUL  |0100|        |A  |B  |C  | r[A] = r[B] * r[C]
	case OP_MUL:
		r[ins.A] = r[ins.B] * r[ins.C]

	// DIV  |0101|        |A  |B  |C  | r[A] = r[B] / r[C]
	case OP_DIV:
		if r[ins.C] == 0 {
			return &Fault{Type: FAULT_ARITHMETIC}
		}

		r[ins.A] = r[ins.B] / r[ins.C]

	// NAND |0110|        |A  |B  |C  | r[A] = ^(r[B] & r[C])
	case OP_NAND:
		r[ins.A] = ^(r[ins.B] & r[ins.C])

	// HALT |0111|                    |
	case OP_HALT:
		mc.State.Halted = true

	// ALLOC|1000|            |B  |C  | r[B] = allocate(r[C])
	case OP_ALLOC:
		id, err := mc.State.Pages.Allocate(r[ins.C])

		if err != nil {
			return err
		}

		mc.Stats.Allocations++
		r[ins.B] = id

	// FREE |1001|                |C  | free(r[C])
	case OP_FREE:
		if err := mc.State.Pages.Free(r[ins.C]); err != nil {
			return err
		}

		mc.Stats.Frees++

	// OUT  |1010|                |C  | write(r[C])
	case OP_OUT:
		return mc.output(byte(r[ins.C]))

	// IN   |1011|                |C  | r[C] = read()
	case OP_IN:
		// A snapshot taken while blocked here resumes at this instruction
		mc.State.Counter--

		value, err := mc.input()

		if err != nil {
			return err
		}

		r[ins.C] = value
		mc.State.Counter++

	// JMP  |1100|            |B  |C  | program = copy(page(r[B])); pc = r[C]
	case OP_JMP:
		if r[ins.B] != PROGRAM_PAGE {
			if err := mc.State.Pages.Replace(r[ins.B]); err != nil {
				return err
			}

			mc.State.Version++
			mc.Stats.Loads++
		}

		mc.State.Counter = r[ins.C]

	// IMM  |1101|R  |value25          | r[R] = value25
	case OP_IMM:
		r[ins.A] = ins.Value

	// Opcodes 14 and 15 are no-ops
	default:
	}

	return nil
}
