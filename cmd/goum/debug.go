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

package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"golang.org/x/exp/slices"

	"github.com/lassandro/goum/pkg/console"
	"github.com/lassandro/goum/pkg/debugger"
	"github.com/lassandro/goum/pkg/encoding"
	"github.com/lassandro/goum/pkg/machine"
	"github.com/lassandro/goum/pkg/snapshot"
)

var lastcmd []string

// Set by main before any REPL is entered
var imagePath string
var devices *console.Console

func newReadline(prompt string) (*readline.Instance, error) {
	return readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     filepath.Join(os.TempDir(), ".goum_history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
}

func parsePage(args []string, i int) (uint32, error) {
	if len(args) <= i {
		return machine.PROGRAM_PAGE, nil
	}

	return encoding.DecodeWord(args[i])
}

func debugBreak(dbg *debugger.Debugger, args []string) {
	const usage = "break [add|list|remove]"

	if len(args) == 0 {
		args = append(args, "l")
	}

	cmd := args[0]
	args = args[1:]

	switch cmd {
	case "a", "add":
		const usage = "break add [0x####|label]"

		if len(args) != 1 {
			log.Println(usage)
			return
		}

		addr, err := encoding.DecodeHex(args[0])

		if err != nil {
			if dbg.SymTable == nil {
				log.Println(err)
				return
			}

			var found bool

			if addr, found = dbg.SymTable.Lookup(args[0]); !found {
				log.Printf("Unable to find '%s'\n", args[0])
				return
			}
		}

		if dbg.AddBreakpoint(addr) {
			fmt.Printf("Breakpoint added [0x%08x]\n", addr)
		}

	case "l", "ls", "list":
		var fmtstring string
		{
			digits := math.Floor(math.Log10(float64(len(dbg.Breakpoints) + 1)))
			fmtstring = fmt.Sprintf("#%%0%dd: 0x%%08x\n", int64(digits)+1)
		}

		for i, breakpoint := range dbg.Breakpoints {
			fmt.Printf(fmtstring, i, breakpoint.Addr)
		}

	case "r", "rm", "remove":
		const usage = "break remove [#]"

		if len(args) != 1 {
			log.Println(usage)
			return
		}

		i, err := strconv.ParseInt(args[0], 10, 64)

		if err != nil {
			log.Println(err)
			return
		}

		if i < 0 || i >= int64(len(dbg.Breakpoints)) {
			log.Println("Invalid breakpoint number")
			return
		}

		dbg.Breakpoints[i] = dbg.Breakpoints[len(dbg.Breakpoints)-1]
		dbg.Breakpoints = dbg.Breakpoints[:len(dbg.Breakpoints)-1]
		fmt.Printf("Breakpoint removed [%d]\n", i)

	case "clear":
		dbg.Breakpoints = make([]debugger.Breakpoint, 0)
		fmt.Println("Breakpoints reset")

	default:
		log.Printf("break: '%s' is not a valid command\n", cmd)
		log.Println(usage)
	}
}

func watchTypeName(wtype debugger.WatchpointType) string {
	switch wtype {
	case debugger.ReadWatch:
		return "read"
	case debugger.WriteWatch:
		return "write"
	case debugger.ReadWriteWatch:
		return "readwrite"
	}

	return "?"
}

func debugWatch(dbg *debugger.Debugger, args []string) {
	const usage = "watch [add|list|rm]"

	if len(args) == 0 {
		log.Println(usage)
		return
	}

	cmd := args[0]
	args = args[1:]

	switch cmd {
	case "a", "add":
		const usage = "watch add [0x####] [read|write|readwrite] [page]"

		if len(args) != 2 && len(args) != 3 {
			log.Println(usage)
			return
		}

		addr, err := encoding.DecodeHex(args[0])

		if err != nil {
			log.Println(err)
			return
		}

		page, err := parsePage(args, 2)

		if err != nil {
			log.Println(err)
			return
		}

		var wtype debugger.WatchpointType

		switch args[1] {
		case "r", "read":
			wtype = debugger.ReadWatch
		case "w", "write":
			wtype = debugger.WriteWatch
		case "rw", "rwrite", "readwrite":
			wtype = debugger.ReadWriteWatch
		default:
			log.Println(usage)
			return
		}

		if dbg.AddWatchpoint(page, addr, wtype) {
			fmt.Printf(
				"Watchpoint added [%#x:0x%08x] (%s)\n",
				page,
				addr,
				watchTypeName(wtype),
			)
		}

	case "l", "ls", "list":
		var fmtstring string
		{
			digits := math.Floor(math.Log10(float64(len(dbg.Watchpoints) + 1)))
			fmtstring = fmt.Sprintf("#%%0%dd: %%#x:0x%%08x %%s\n", int64(digits)+1)
		}

		for i, watchpoint := range dbg.Watchpoints {
			fmt.Printf(
				fmtstring,
				i,
				watchpoint.Page,
				watchpoint.Offset,
				watchTypeName(watchpoint.Type),
			)
		}

	case "r", "rm", "remove":
		const usage = "watch rm [#]"

		if len(args) != 1 {
			log.Println(usage)
			return
		}

		i, err := strconv.ParseInt(args[0], 10, 64)

		if err != nil {
			log.Println(err)
			return
		}

		if i < 0 || i >= int64(len(dbg.Watchpoints)) {
			log.Println("Invalid watchpoint number")
			return
		}

		dbg.Watchpoints[i] = dbg.Watchpoints[len(dbg.Watchpoints)-1]
		dbg.Watchpoints = dbg.Watchpoints[:len(dbg.Watchpoints)-1]
		fmt.Printf("Watchpoint removed [%d]\n", i)

	case "clear":
		dbg.Watchpoints = make([]debugger.Watchpoint, 0)
		fmt.Println("Watchpoints reset")

	default:
		log.Printf("watch: '%s' is not a valid command\n", cmd)
	}
}

func debugReg(dbg *debugger.Debugger, mc *machine.Machine, args []string) {
	const usage = "register [R#|PC] [0x####]"

	if len(args) == 0 {
		dbg.PrintRegisters(mc)
		return
	}

	if len(args) != 2 {
		log.Println(usage)
		return
	}

	value, err := encoding.DecodeWord(args[1])

	if err != nil {
		log.Println(err)
		return
	}

	name := strings.ToUpper(args[0])

	switch {
	case name == "PC":
		mc.State.Counter = value
	case len(name) == 2 && name[0] == 'R' && name[1] >= '0' && name[1] <= '7':
		mc.State.Registers[name[1]-'0'] = value
	default:
		log.Println("Invalid register")
		return
	}

	fmt.Printf("\033[1m%s:\033[0m 0x%08x\n", name, value)
}

// debugCount parses the "[0x####|label|#] [#]" argument form shared by the
// listing commands. A bare decimal first argument is a count from the PC.
func debugCount(dbg *debugger.Debugger, mc *machine.Machine, args []string, size uint32) (uint32, uint32, bool) {
	addr := mc.State.Counter

	if len(args) > 0 {
		if value, err := encoding.DecodeHex(args[0]); err == nil {
			addr = value
		} else if dbg.SymTable != nil {
			if value, found := dbg.SymTable.Lookup(args[0]); found {
				addr = value
			} else if value, err := strconv.ParseUint(args[0], 10, 32); err == nil {
				size = uint32(value)
			} else {
				log.Println(err)
				return 0, 0, false
			}
		} else if value, err := strconv.ParseUint(args[0], 10, 32); err == nil {
			size = uint32(value)
		} else {
			log.Println(err)
			return 0, 0, false
		}
	}

	if len(args) > 1 {
		value, err := strconv.ParseUint(args[1], 10, 32)

		if err != nil {
			log.Println(err)
			return 0, 0, false
		}

		size = uint32(value)
	}

	return addr, size, true
}

func debugSource(dbg *debugger.Debugger, mc *machine.Machine, args []string) {
	const usage = "source [0x####|label] [#]"

	if len(args) > 2 {
		log.Println(usage)
		return
	}

	if dbg.SymTable == nil || dbg.Source == nil {
		debugDisasm(dbg, mc, args)
		return
	}

	if addr, size, ok := debugCount(dbg, mc, args, 3); ok {
		dbg.PrintSource(addr, size)
	}
}

func debugDisasm(dbg *debugger.Debugger, mc *machine.Machine, args []string) {
	const usage = "disasm [0x####|label] [#]"

	if len(args) > 2 {
		log.Println(usage)
		return
	}

	if addr, size, ok := debugCount(dbg, mc, args, 8); ok {
		dbg.PrintDisasm(mc, addr, size)
	}
}

func debugLabels(dbg *debugger.Debugger, args []string) {
	const usage = "labels"

	if len(args) > 0 {
		fmt.Println(usage)
		return
	}

	if dbg.SymTable == nil {
		fmt.Println("No symbol table loaded")
		return
	}

	keys := make([]uint32, 0, len(dbg.SymTable.Labels))
	for addr := range dbg.SymTable.Labels {
		keys = append(keys, addr)
	}

	slices.Sort(keys)

	for _, addr := range keys {
		fmt.Printf(
			"\033[1m[0x%08x]\033[0m %s\n", addr, dbg.SymTable.Labels[addr],
		)
	}
}

func debugJump(dbg *debugger.Debugger, mc *machine.Machine, args []string) {
	const usage = "jump [0x####|label]"

	if len(args) != 1 {
		fmt.Println(usage)
		return
	}

	if addr, err := encoding.DecodeHex(args[0]); err == nil {
		mc.State.Counter = addr

		fmt.Printf("\033[1mPC:\033[0m 0x%08x\n", addr)
	} else if dbg.SymTable != nil {
		if addr, found := dbg.SymTable.Lookup(args[0]); found {
			mc.State.Counter = addr
			fmt.Printf(
				"\033[1mPC:\033[0m 0x%08x \033[1;30m(%s)\033[0m\n",
				addr,
				args[0],
			)
			return
		}

		fmt.Printf("Unable to find '%s'\n", args[0])
	} else {
		fmt.Println("No symbol table loaded")
	}
}

func debugMemory(dbg *debugger.Debugger, mc *machine.Machine, args []string) {
	const usage = "memory [0x####|#] [#] [page]"

	if len(args) > 3 {
		log.Println(usage)
		return
	}

	page, err := parsePage(args, 2)

	if err != nil {
		log.Println(err)
		return
	}

	if addr, size, ok := debugCount(dbg, mc, args, 1); ok {
		dbg.PrintMem(mc, page, addr, size)
	}
}

func debugSet(dbg *debugger.Debugger, mc *machine.Machine, args []string) {
	const usage = "set [0x####] [0x####] [page]"

	if len(args) != 2 && len(args) != 3 {
		log.Println(usage)
		return
	}

	addr, err := encoding.DecodeHex(args[0])

	if err != nil {
		log.Println(err)
		return
	}

	value, err := encoding.DecodeWord(args[1])

	if err != nil {
		log.Println(err)
		return
	}

	page, err := parsePage(args, 2)

	if err != nil {
		log.Println(err)
		return
	}

	if err := mc.State.Pages.Write(page, addr, value); err != nil {
		log.Println(err)
		return
	}

	dbg.PrintMem(mc, page, addr, 1)
}

func snapshotName(args []string) string {
	if len(args) == 0 {
		return snapshot.DEFAULT_FILENAME
	}

	return strings.Join(args, " ")
}

func debugSave(mc *machine.Machine, args []string) {
	filename := snapshotName(args)

	file, err := os.Create(filename)

	if err != nil {
		log.Println(err)
		return
	}

	defer file.Close()

	if err := snapshot.Save(file, mc, devices); err != nil {
		log.Println(err)
		return
	}

	if offset, err := file.Seek(0, io.SeekCurrent); err == nil {
		fmt.Printf("Saved to %s, %d bytes\n", filename, offset)
	}
}

func debugLoad(mc *machine.Machine, args []string) bool {
	filename := snapshotName(args)

	if err := loadSnapshot(filename, mc, devices); err != nil {
		log.Println(err)
		return false
	}

	fmt.Printf("Loaded from %s\n", filename)
	return true
}

func loadSnapshot(filename string, mc *machine.Machine, con *console.Console) error {
	file, err := os.Open(filename)

	if err != nil {
		return err
	}

	defer file.Close()

	return snapshot.Load(file, mc, con)
}

func debugSend(args []string) {
	const usage = "send [filename]"

	if len(args) == 0 {
		log.Println(usage)
		return
	}

	data, err := os.ReadFile(strings.Join(args, " "))

	if err != nil {
		log.Println(err)
		return
	}

	if devices == nil {
		log.Println("No console attached")
		return
	}

	if n := devices.Paste(data); n < len(data) {
		log.Printf("Paste buffer full, dropped %d bytes\n", len(data)-n)
	}
}

func debugReset(mc *machine.Machine) {
	file, err := os.Open(imagePath)

	if err != nil {
		log.Println(err)
		return
	}

	defer file.Close()

	if err := mc.LoadImage(file); err != nil {
		log.Println(err)
		return
	}

	fmt.Println("Machine reset")
}

func debugREPL(dbg *debugger.Debugger, mc *machine.Machine) {
	if termActive {
		exitRawTerm()
		defer enterRawTerm()
	}

	if devices != nil {
		devices.Flush()
	}

	rl, err := newReadline("\033[1;30m(dbg)\033[0m ")

	if err != nil {
		log.Println(err)
		mc.State.Halted = true
		return
	}

	defer rl.Close()

	for {
		line, err := rl.Readline()

		if errors.Is(err, readline.ErrInterrupt) {
			continue
		} else if err != nil {
			fmt.Println()
			mc.State.Halted = true
			return
		}

		args := strings.Fields(line)

		if len(args) == 0 {
			if len(lastcmd) == 0 {
				continue
			}
			args = lastcmd
		} else {
			lastcmd = make([]string, len(args))
			copy(lastcmd, args)
		}

		cmd := args[0]
		args = args[1:]

		switch cmd {
		case "b", "bp", "break", "breakpoint":
			debugBreak(dbg, args)

		case "w", "wp", "watch", "watchpoint":
			debugWatch(dbg, args)

		case "r", "reg", "register", "registers":
			debugReg(dbg, mc, args)

		case "s", "src", "source":
			debugSource(dbg, mc, args)

		case "d", "dis", "disasm":
			debugDisasm(dbg, mc, args)

		case "l", "label", "labels":
			debugLabels(dbg, args)

		case "j", "jmp", "jump":
			debugJump(dbg, mc, args)

		case "m", "mem", "memory":
			debugMemory(dbg, mc, args)

		case "set":
			debugSet(dbg, mc, args)

		case "stat", "stats":
			dbg.PrintStats(mc)

		case "save":
			debugSave(mc, args)

		case "load":
			if debugLoad(mc, args) && devices != nil {
				devices.Redraw()
			}

		case "send":
			debugSend(args)

		case "c", "continue":
			dbg.Break.Store(false)
			return

		case "n", "next":
			dbg.Break.Store(true)
			return

		case "q", "quit", "exit":
			mc.State.Halted = true
			return

		case "clear":
			fmt.Print("\033[H\033[2J")

		case "reset":
			debugReset(mc)

		default:
			fmt.Printf("error: '%s' is not a valid command\n", cmd)
		}
	}
}

// consoleREPL is entered from the middle of an IN instruction when the escape
// character is typed. "exit" resumes the machine, "quit" ends the process.
func consoleREPL(mc *machine.Machine) {
	if termActive {
		exitRawTerm()
		defer enterRawTerm()
	}

	devices.Flush()

	rl, err := newReadline("um> ")

	if err != nil {
		log.Println(err)
		return
	}

	defer rl.Close()
	defer devices.Redraw()

	for {
		line, err := rl.Readline()

		if errors.Is(err, readline.ErrInterrupt) {
			continue
		} else if err != nil {
			return
		}

		args := strings.Fields(line)

		if len(args) == 0 {
			continue
		}

		cmd := args[0]
		args = args[1:]

		switch cmd {
		case "stat", "stats":
			debugger.PrintStats(os.Stdout, mc)

		case "save":
			debugSave(mc, args)

		case "load":
			debugLoad(mc, args)

		case "send":
			debugSend(args)

		case "halt", "quit", "q":
			devices.Flush()
			exitRawTerm()
			os.Exit(0)

		case "exit", "x":
			return

		default:
			fmt.Printf("unknown command: %s\n", cmd)
		}
	}
}

func handleBreak(dbg *debugger.Debugger, mc *machine.Machine) {
	if !dbg.Break.Load() {
		fmt.Println()
		fmt.Println("Program stopped")
	}

	if dbg.SymTable != nil && dbg.Source != nil {
		dbg.PrintSource(mc.State.Counter, 1)
	} else {
		dbg.PrintDisasm(mc, mc.State.Counter, 1)
	}

	debugREPL(dbg, mc)
}

func handleRead(page, addr uint32, dbg *debugger.Debugger, mc *machine.Machine) {
	fmt.Println()
	fmt.Println("Program stopped")
	dbg.PrintMem(mc, page, addr, 1)
	debugREPL(dbg, mc)
}

func handleWrite(page, addr uint32, dbg *debugger.Debugger, mc *machine.Machine) {
	fmt.Println()
	fmt.Println("Program stopped")
	dbg.PrintMem(mc, page, addr, 1)
	debugREPL(dbg, mc)
}
