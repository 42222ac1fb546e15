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
	"encoding/gob"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lassandro/goum/pkg/assembler"
	"github.com/lassandro/goum/pkg/console"
	"github.com/lassandro/goum/pkg/debugger"
	"github.com/lassandro/goum/pkg/machine"
)

const usage = "goum [--debug] [--console] [--raw] [--stats] [--snapshot file] [--dump] filename"

type options struct {
	debug    bool
	console  bool
	raw      bool
	stats    bool
	dump     bool
	snapshot string
}

func init() {
	exe, _ := os.Executable()
	log.SetFlags(0)
	log.SetPrefix(fmt.Sprintf("%s: ", filepath.Base(exe)))
	log.SetOutput(os.Stderr)
}

func loadSymbols(dbg *debugger.Debugger, image string) {
	filename := filepath.Dir(image) + "/" + strings.TrimSuffix(
		filepath.Base(image), filepath.Ext(image),
	) + ".umdb"

	file, err := os.Open(filename)

	if err != nil {
		return
	}

	defer file.Close()

	symtable := assembler.NewSymTable("")

	if err := gob.NewDecoder(file).Decode(symtable); err != nil {
		log.Println("Error loading symbol file")
		log.Println(err)
		return
	}

	dbg.SymTable = symtable

	if symtable.Source == "" {
		return
	}

	// The source stays open for the lifetime of the process
	if source, err := os.Open(symtable.Source); err == nil {
		dbg.Source = source
	} else {
		log.Println("Error loading source file")
		log.Println(err)
	}
}

func dump(mc *machine.Machine, stdout io.Writer) {
	for addr, word := range mc.State.Pages.Program() {
		fmt.Fprintf(stdout, "%08x: %08x  %s\n", addr, word, machine.Decode(word))
	}
}

func run(image string, opts *options, stdin io.Reader, stdout io.Writer) int {
	file, err := os.Open(image)

	if err != nil {
		log.Println(err)
		return 1
	}

	defer file.Close()

	var mc machine.Machine

	if err := mc.LoadImage(file); err != nil {
		log.Printf("%s: %v\n", image, err)
		return 1
	}

	if opts.dump {
		dump(&mc, stdout)
		return 0
	}

	imagePath = image
	devices = console.New(stdin, stdout)
	defer devices.Flush()

	mc.Devices = &machine.DeviceHandler{Input: devices, Output: devices}

	if opts.snapshot != "" {
		if err := loadSnapshot(opts.snapshot, &mc, devices); err != nil {
			log.Printf("%s: %v\n", opts.snapshot, err)
			return 1
		}

		devices.Redraw()
	}

	if opts.console {
		devices.OnEscape = func() { consoleREPL(&mc) }
	}

	var dbg *debugger.Debugger

	if opts.debug {
		dbg = &debugger.Debugger{
			HandleBreak: handleBreak,
			HandleRead:  handleRead,
			HandleWrite: handleWrite,
		}
		loadSymbols(dbg, image)
		mc.Debugger = dbg

		c := make(chan os.Signal, 1)
		defer close(c)

		signal.Notify(c, os.Interrupt)
		defer signal.Stop(c)

		go func() {
			for range c {
				fmt.Println()
				dbg.Break.Store(true)
			}
		}()
	}

	if opts.raw {
		if err := enterRawTerm(); err != nil {
			log.Println(err)
			return 1
		}

		defer exitRawTerm()
	}

	if opts.debug {
		debugREPL(dbg, &mc)
	}

	var fault error

	for !mc.State.Halted {
		if err := mc.Step(); err != nil {
			if err != machine.ErrHalted {
				fault = err
			}
			break
		}
	}

	if err := devices.Flush(); err != nil && fault == nil {
		fault = err
	}

	if opts.stats {
		debugger.PrintStats(os.Stderr, &mc)
	}

	if fault != nil {
		exitRawTerm()
		log.Println(fault)
		return 1
	}

	return 0
}

func goum(args []string, stdin io.Reader, stdout io.Writer) int {
	var opts options
	var code int

	cmd := &cobra.Command{
		Use:           usage,
		Short:         "Runs a Universal Machine program image",
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			code = run(args[0], &opts, stdin, stdout)
			return nil
		},
	}
	cmd.CompletionOptions.DisableDefaultCmd = true

	flags := cmd.Flags()
	flags.BoolVar(&opts.debug, "debug", false, "Runs the machine in a debug CLI")
	flags.BoolVar(
		&opts.console, "console", false,
		"Enters a console when '!' is typed at an input prompt",
	)
	flags.BoolVar(&opts.raw, "raw", false, "Puts the terminal in raw mode")
	flags.BoolVar(&opts.stats, "stats", false, "Prints execution statistics on exit")
	flags.BoolVar(&opts.dump, "dump", false, "Prints a disassembly of the image and exits")
	flags.StringVar(
		&opts.snapshot, "snapshot", "",
		"Resumes execution from a snapshot taken of the same image",
	)

	cmd.SetArgs(args)
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(os.Stderr)

	if err := cmd.Execute(); err != nil {
		log.Println(err)
		log.Println(usage)
		return 1
	}

	return code
}

func main() {
	os.Exit(goum(os.Args[1:], os.Stdin, os.Stdout))
}
