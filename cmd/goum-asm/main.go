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
	"bufio"
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lassandro/goum/pkg/assembler"
	"github.com/lassandro/goum/pkg/encoding"
)

const usage = "goum-asm [--debug] [--out outfile] filename"

type options struct {
	debug bool
	out   string
}

func init() {
	log.SetFlags(0)
	log.SetOutput(os.Stderr)
}

func replaceExt(filename, ext string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename)) + ext
}

func reportErrors(input io.ReadSeeker, errs []error) {
	for _, err := range errs {
		tokenErr, ok := err.(assembler.TokenError)

		if !ok || input == nil {
			log.Println(err)
			continue
		}

		cursor := tokenErr.GetPosition()

		if _, err := input.Seek(cursor.LineByte, io.SeekStart); err != nil {
			panic(err)
		}

		line, _ := bufio.NewReader(input).ReadString('\n')
		line = strings.TrimRight(line, "\r\n")

		size := int(cursor.Size)
		if size < 1 {
			size = 1
		}

		underlinefmt := fmt.Sprintf(
			"%% %ds%s",
			int(cursor.Byte-cursor.LineByte)+1,
			strings.Repeat("~", size-1),
		)

		log.Printf(
			"%s\n%s\n\033[31m%s\033[0m",
			err,
			line,
			fmt.Sprintf(underlinefmt, "^"),
		)
	}
}

func assemble(opts *options, args []string, stdin *os.File) int {
	var infile string
	var input io.ReadSeeker
	var display io.ReadSeeker

	if len(args) == 0 {
		if stat, err := stdin.Stat(); err != nil || stat.Mode()&os.ModeCharDevice != 0 {
			log.Println(usage)
			return 1
		}

		// Buffer piped input so that errors can quote their source line
		data, err := io.ReadAll(stdin)

		if err != nil {
			log.Println(err)
			return 1
		}

		input = bytes.NewReader(data)
		display = bytes.NewReader(data)
		log.SetPrefix("\033[1m<stdin>:\033[0m")

		if opts.out == "" {
			opts.out = "out.um"
		}
	} else {
		file, err := os.Open(args[0])

		if err != nil {
			log.Println(err)
			return 1
		}

		defer file.Close()

		filename := filepath.Base(file.Name())

		if stat, err := file.Stat(); err != nil {
			log.Println(err)
			return 1
		} else if stat.IsDir() {
			log.Printf("%s is not a valid assembly file", filename)
			return 1
		}

		input = file
		display = file
		infile = file.Name()
		log.SetPrefix(fmt.Sprintf("\033[1m%s:\033[0m", filename))

		if opts.out == "" {
			opts.out = replaceExt(filename, ".um")
		}
	}

	var symtable *assembler.SymTable = nil

	if opts.debug {
		symtable = assembler.NewSymTable("")

		if infile != "" {
			if source, err := filepath.Abs(infile); err == nil {
				symtable.Source = source
			} else {
				log.Println(err)
			}
		}
	}

	result, errs := assembler.AssembleUMSource(input, symtable)

	if len(errs) > 0 {
		reportErrors(display, errs)
		return 1
	}

	{
		buffer := new(bytes.Buffer)

		if err := encoding.WriteWords(buffer, result); err != nil {
			log.Println("Error writing output file")
			log.Println(err)
			return 1
		}

		if err := os.WriteFile(opts.out, buffer.Bytes(), 0666); err != nil {
			log.Println("Error writing output file")
			log.Println(err)
			return 1
		}
	}

	if opts.debug {
		filename := replaceExt(opts.out, ".umdb")

		file, err := os.Create(filename)

		if err != nil {
			log.Println("Error creating symbol table")
			log.Println(err)
			return 1
		}

		defer file.Close()

		if err := gob.NewEncoder(file).Encode(symtable); err != nil {
			log.Println("Error writing symbol table")
			log.Println(err)
			return 1
		}
	}

	return 0
}

func goumAsm(args []string) int {
	var opts options
	var code int

	cmd := &cobra.Command{
		Use:           usage,
		Short:         "Assembles Universal Machine source into a program image",
		Args:          cobra.MaximumNArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			code = assemble(&opts, args, os.Stdin)
			return nil
		},
	}
	cmd.CompletionOptions.DisableDefaultCmd = true

	flags := cmd.Flags()
	flags.BoolVar(
		&opts.debug, "debug", false,
		"Specifies whether to generate debugging information as a symbol "+
			"table. The table will use the output filename with extension "+
			"'.umdb'",
	)
	flags.StringVarP(
		&opts.out, "out", "o", "",
		"Specifies a precise name for the output file, "+
			"overriding the default means of determining it",
	)

	cmd.SetArgs(args)

	if err := cmd.Execute(); err != nil {
		log.Println(err)
		log.Println(usage)
		return 1
	}

	return code
}

func main() {
	os.Exit(goumAsm(os.Args[1:]))
}
