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

package debugger

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/lassandro/goum/pkg/machine"
)

func (dbg *Debugger) out() io.Writer {
	if dbg.Output == nil {
		return os.Stdout
	}

	return dbg.Output
}

func (dbg *Debugger) Step(mc *machine.Machine) {
	if dbg.Break.Load() {
		if dbg.HandleBreak != nil {
			dbg.HandleBreak(dbg, mc)
		}
		return
	}

	for _, breakpoint := range dbg.Breakpoints {
		if mc.State.Counter == breakpoint.Addr {
			if dbg.HandleBreak != nil {
				dbg.HandleBreak(dbg, mc)
			}
			break
		}
	}
}

func (dbg *Debugger) Read(page, offset uint32, mc *machine.Machine) {
	for _, watchpoint := range dbg.Watchpoints {
		if watchpoint.Type&ReadWatch == 0 {
			continue
		}

		if page == watchpoint.Page && offset == watchpoint.Offset {
			if dbg.HandleRead != nil {
				dbg.HandleRead(page, offset, dbg, mc)
			}
			break
		}
	}
}

func (dbg *Debugger) Write(page, offset uint32, mc *machine.Machine) {
	for _, watchpoint := range dbg.Watchpoints {
		if watchpoint.Type&WriteWatch == 0 {
			continue
		}

		if page == watchpoint.Page && offset == watchpoint.Offset {
			if dbg.HandleWrite != nil {
				dbg.HandleWrite(page, offset, dbg, mc)
			}
			break
		}
	}
}

// AddBreakpoint returns false if a breakpoint already exists at addr.
func (dbg *Debugger) AddBreakpoint(addr uint32) bool {
	for _, breakpoint := range dbg.Breakpoints {
		if breakpoint.Addr == addr {
			return false
		}
	}

	dbg.Breakpoints = append(dbg.Breakpoints, Breakpoint{addr})
	return true
}

// AddWatchpoint returns false if an identical watchpoint already exists.
func (dbg *Debugger) AddWatchpoint(page, offset uint32, wtype WatchpointType) bool {
	for _, watchpoint := range dbg.Watchpoints {
		if watchpoint.Page == page &&
			watchpoint.Offset == offset &&
			watchpoint.Type == wtype {
			return false
		}
	}

	dbg.Watchpoints = append(dbg.Watchpoints, Watchpoint{page, offset, wtype})
	return true
}

func (dbg *Debugger) LabelAt(addr uint32) (string, bool) {
	if dbg.SymTable == nil {
		return "", false
	}

	label, exists := dbg.SymTable.Labels[addr]
	return label, exists
}

func (dbg *Debugger) PrintSource(addr uint32, count uint32) {
	w := dbg.out()

	if dbg.Source == nil {
		fmt.Fprintln(w, "No source file loaded")
		return
	}

	if dbg.SymTable == nil {
		fmt.Fprintln(w, "No symbol table loaded")
		return
	}

	offset, exists := dbg.SymTable.Symbols[addr]

	if !exists {
		fmt.Fprintf(w, "No instruction found at 0x%08x\n", addr)
		return
	}

	if _, err := dbg.Source.Seek(offset, io.SeekStart); err != nil {
		fmt.Fprintln(w, err)
		return
	}

	lines := make(map[int64]uint32, len(dbg.SymTable.Symbols))

	for lineaddr, linebyte := range dbg.SymTable.Symbols {
		lines[linebyte] = lineaddr
	}

	scanner := bufio.NewScanner(dbg.Source)
	scanner.Split(bufio.ScanLines)

	for i := uint32(0); i < count; i++ {
		if !scanner.Scan() {
			break
		}

		line := scanner.Text()

		if lineaddr, found := lines[offset]; found {
			fmt.Fprintf(w, "\033[1m[0x%08x]\033[0m ", lineaddr)
		} else {
			fmt.Fprint(w, "\033[1;30m~~~~~~~~~~\033[0m ")
		}

		fmt.Fprintln(w, line)

		offset += int64(len(line) + 1)
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintln(w, err)
	}
}

// PrintDisasm lists count decoded words of the program image from addr.
func (dbg *Debugger) PrintDisasm(mc *machine.Machine, addr, count uint32) {
	w := dbg.out()
	program := mc.State.Pages.Program()

	for i := uint64(addr); i < uint64(addr)+uint64(count); i++ {
		if i >= uint64(len(program)) {
			fmt.Fprintf(w, "\033[1;30m[0x%08x] <end of program>\033[0m\n", i)
			break
		}

		if label, exists := dbg.LabelAt(uint32(i)); exists {
			fmt.Fprintf(w, "\033[1;30m%s:\033[0m\n", label)
		}

		marker := "  "
		if uint32(i) == mc.State.Counter {
			marker = "=>"
		}

		fmt.Fprintf(
			w,
			"%s \033[1m[0x%08x]\033[0m %08x  %s\n",
			marker,
			i,
			program[i],
			machine.Decode(program[i]),
		)
	}
}

func (dbg *Debugger) PrintMem(mc *machine.Machine, page, addr, count uint32) {
	w := dbg.out()

	words, err := mc.State.Pages.Get(page)

	if err != nil {
		fmt.Fprintln(w, err)
		return
	}

	for i := uint64(addr); i < uint64(addr)+uint64(count); i++ {
		if i >= uint64(len(words)) {
			fmt.Fprintln(w)
			fmt.Fprintf(w, "\033[1;30m[0x%08x] <end of page>\033[0m", i)
			break
		}

		if i == uint64(addr) {
			fmt.Fprintf(w, "\033[1m[0x%08x]\033[0m ", i)
		} else if (i-uint64(addr))%4 == 0 {
			fmt.Fprintln(w)
			fmt.Fprintf(w, "\033[1m[0x%08x]\033[0m ", i)
		}

		result := words[i]

		if result == 0 {
			fmt.Fprintf(w, "\033[1;30m0x%08x\033[0m ", result)
		} else {
			fmt.Fprintf(w, "0x%08x ", result)
		}
	}

	fmt.Fprintln(w)
}

func (dbg *Debugger) PrintRegisters(mc *machine.Machine) {
	w := dbg.out()

	for i, register := range mc.State.Registers {
		fmt.Fprintf(w, "\033[1mR%d:\033[0m 0x%08x\t", i, register)
		if i == (len(mc.State.Registers)-1)/2 {
			fmt.Fprintln(w)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(
		w,
		"\033[1mPC:\033[0m 0x%08x\t\033[1mVER:\033[0m %d\n",
		mc.State.Counter,
		mc.State.Version,
	)
}

func (dbg *Debugger) PrintStats(mc *machine.Machine) {
	PrintStats(dbg.out(), mc)
}

// PrintStats writes the page table and execution counters.
func PrintStats(w io.Writer, mc *machine.Machine) {
	pages := &mc.State.Pages

	fmt.Fprintf(
		w,
		"pages:\n"+
			"\treserved identifiers:  %d\n"+
			"\tactive pages:          %d\n"+
			"\tinactive identifiers:  %d\n"+
			"\tallocated words:       %d\n",
		pages.Reserved(),
		pages.Active(),
		len(pages.FreeList()),
		pages.Words(),
	)

	fmt.Fprintf(
		w,
		"machine:\n"+
			"\texecuted instructions: %d\n"+
			"\tallocations:           %d\n"+
			"\tfrees:                 %d\n"+
			"\tprogram loads:         %d\n"+
			"\toutput bytes:          %d\n"+
			"\tinput bytes:           %d\n",
		mc.Stats.Instructions,
		mc.Stats.Allocations,
		mc.Stats.Frees,
		mc.Stats.Loads,
		mc.Stats.Outputs,
		mc.Stats.Inputs,
	)
}
