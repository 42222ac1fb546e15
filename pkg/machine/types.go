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
	"io"
)

type DeviceHandler struct {
	Input  io.ByteReader
	Output io.ByteWriter
}

type Page []uint32

type PageTable struct {
	pages []Page
	free  []uint32
}

type MachineState struct {
	Registers [NUM_REGISTERS]uint32
	Counter   uint32
	Version   uint64
	Halted    bool
	Pages     PageTable
}

type Stats struct {
	Instructions uint64
	Allocations  uint64
	Frees        uint64
	Loads        uint64
	Outputs      uint64
	Inputs       uint64
}

type MachineDebugger interface {
	Step(mc *Machine)
	Read(page, offset uint32, mc *Machine)
	Write(page, offset uint32, mc *Machine)
}

type Machine struct {
	Devices  *DeviceHandler
	State    MachineState
	Stats    Stats
	Debugger MachineDebugger
}
