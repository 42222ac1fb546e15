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
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lassandro/goum/pkg/assembler"
	"github.com/lassandro/goum/pkg/encoding"
	"github.com/lassandro/goum/pkg/machine"
	"github.com/lassandro/goum/pkg/snapshot"
)

func writeImage(t *testing.T, words []uint32) string {
	filename := filepath.Join(t.TempDir(), "prog.um")

	file, err := os.Create(filename)
	require.NoError(t, err)
	defer file.Close()

	require.NoError(t, encoding.WriteWords(file, words))
	return filename
}

func assembleImage(t *testing.T, source string) string {
	words, errs := assembler.AssembleUMSource(strings.NewReader(source), nil)
	require.Empty(t, errs)
	return writeImage(t, words)
}

var hello = []uint32{
	machine.EncodeImm(0, 72),
	machine.EncodeImm(1, 105),
	machine.Encode(machine.OP_OUT, 0, 0, 0),
	machine.Encode(machine.OP_OUT, 0, 0, 1),
	machine.Encode(machine.OP_HALT, 0, 0, 0),
}

func TestUsage(t *testing.T) {
	image := writeImage(t, hello)

	for _, args := range [][]string{
		{},
		{image, image},
		{"--bogus", image},
	} {
		var display bytes.Buffer

		assert.Equal(t, 1, goum(args, strings.NewReader(""), &display), "%v", args)
		assert.Empty(t, display.String())
	}
}

func TestRunHello(t *testing.T) {
	var display bytes.Buffer

	code := goum([]string{writeImage(t, hello)}, strings.NewReader(""), &display)

	assert.Equal(t, 0, code)
	assert.Equal(t, "Hi", display.String())
}

func TestRunEcho(t *testing.T) {
	image := assembleImage(t, `
		loop    in r1
		        nand r3, r1, r1
		        imm r4, done
		        imm r5, body
		        cmov r4, r5, r3
		        jmp r0, r4
		body    out r1
		        imm r4, loop
		        jmp r0, r4
		done    halt
	`)

	var display bytes.Buffer

	code := goum([]string{image}, strings.NewReader("echo\n"), &display)

	assert.Equal(t, 0, code)
	assert.Equal(t, "echo\n", display.String())
}

func TestRunFault(t *testing.T) {
	var display bytes.Buffer

	image := writeImage(t, []uint32{
		machine.EncodeImm(0, 'a'),
		machine.Encode(machine.OP_OUT, 0, 0, 0),
		machine.Encode(machine.OP_DIV, 0, 0, 1),
		machine.Encode(machine.OP_HALT, 0, 0, 0),
	})

	assert.Equal(t, 1, goum([]string{image}, strings.NewReader(""), &display))
	assert.Equal(t, "a", display.String(), "output before a fault is flushed")
}

func TestRunBadImage(t *testing.T) {
	var display bytes.Buffer

	truncated := filepath.Join(t.TempDir(), "short.um")
	require.NoError(t, os.WriteFile(truncated, []byte{0x70, 0, 0}, 0666))

	assert.Equal(t, 1, goum([]string{truncated}, strings.NewReader(""), &display))

	missing := filepath.Join(t.TempDir(), "missing.um")
	assert.Equal(t, 1, goum([]string{missing}, strings.NewReader(""), &display))
}

func TestDump(t *testing.T) {
	var display bytes.Buffer

	code := goum(
		[]string{"--dump", writeImage(t, hello)}, strings.NewReader(""), &display,
	)

	assert.Equal(t, 0, code)

	lines := strings.Split(strings.TrimSpace(display.String()), "\n")
	require.Len(t, lines, len(hello))
	assert.Equal(t, "00000000: d0000048  imm r0, 72", lines[0])
	assert.Equal(t, "00000004: 70000000  halt", lines[4])
}

func TestResumeSnapshot(t *testing.T) {
	image := writeImage(t, hello)

	var mc machine.Machine

	mc.LoadWords(hello)
	require.NoError(t, mc.Step())
	require.NoError(t, mc.Step())
	require.NoError(t, mc.Step())

	filename := filepath.Join(t.TempDir(), snapshot.DEFAULT_FILENAME)

	file, err := os.Create(filename)
	require.NoError(t, err)
	require.NoError(t, snapshot.Save(file, &mc, nil))
	require.NoError(t, file.Close())

	var display bytes.Buffer

	code := goum(
		[]string{"--snapshot", filename, image}, strings.NewReader(""), &display,
	)

	assert.Equal(t, 0, code)
	assert.Equal(t, "i", display.String())

	assert.Equal(
		t, 1,
		goum([]string{"--snapshot", image, image}, strings.NewReader(""), &display),
		"an image is not a snapshot",
	)
}
