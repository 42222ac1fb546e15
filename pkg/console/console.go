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

// Package console implements the byte devices behind the machine's OUT and IN
// instructions. Output is buffered and mirrored into a fixed-size backlog so
// that the screen can be redrawn after a snapshot is restored. Input is served
// from a paste queue first, then from the underlying reader.
package console

import (
	"bufio"
	"io"
)

const (
	BACKLOG_CAPACITY = 4096
	PASTE_CAPACITY   = 1024 * 1024

	ESCAPE_CHAR byte = '!'
)

type Console struct {
	in  *bufio.Reader
	out *bufio.Writer

	backlog       [BACKLOG_CAPACITY]byte
	backlogOffset int
	backlogSize   int

	paste []byte

	// OnEscape, when set, is called instead of delivering ESCAPE_CHAR to the
	// machine.
	OnEscape func()
}

func New(in io.Reader, out io.Writer) *Console {
	return &Console{
		in:  bufio.NewReader(in),
		out: bufio.NewWriter(out),
	}
}

func (con *Console) feedBacklog(c byte) {
	con.backlog[con.backlogOffset] = c
	con.backlogOffset++

	if con.backlogSize < BACKLOG_CAPACITY {
		con.backlogSize++
	}

	if con.backlogOffset == BACKLOG_CAPACITY {
		con.backlogOffset = 0
	}
}

func (con *Console) WriteByte(c byte) error {
	con.feedBacklog(c)
	return con.out.WriteByte(c)
}

// ReadByte flushes pending output before blocking on the reader. Pasted bytes
// are echoed to the output as if typed.
func (con *Console) ReadByte() (byte, error) {
	for {
		if len(con.paste) > 0 {
			c := con.paste[0]
			con.paste = con.paste[1:]

			if err := con.out.WriteByte(c); err != nil {
				return 0, err
			}

			con.feedBacklog(c)
			return c, nil
		}

		if err := con.out.Flush(); err != nil {
			return 0, err
		}

		c, err := con.in.ReadByte()

		if err != nil {
			return 0, err
		}

		if c == ESCAPE_CHAR && con.OnEscape != nil {
			con.OnEscape()
			continue
		}

		con.feedBacklog(c)
		return c, nil
	}
}

func (con *Console) Flush() error {
	return con.out.Flush()
}

// Paste queues data to be read before any further input. Data beyond
// PASTE_CAPACITY pending bytes is dropped; the number of bytes queued is
// returned.
func (con *Console) Paste(data []byte) int {
	room := PASTE_CAPACITY - len(con.paste)

	if len(data) > room {
		data = data[:room]
	}

	con.paste = append(con.paste, data...)
	return len(data)
}

func (con *Console) Pending() []byte {
	return con.paste
}

// Backlog returns up to the last BACKLOG_CAPACITY bytes that passed through
// the console, oldest first.
func (con *Console) Backlog() []byte {
	result := make([]byte, 0, con.backlogSize)

	if con.backlogSize == BACKLOG_CAPACITY {
		result = append(result, con.backlog[con.backlogOffset:]...)
	}

	return append(result, con.backlog[:con.backlogOffset]...)
}

// Restore replaces the backlog and paste queue, as saved by a snapshot.
func (con *Console) Restore(backlog, paste []byte) {
	con.backlog = [BACKLOG_CAPACITY]byte{}

	if len(backlog) > BACKLOG_CAPACITY {
		backlog = backlog[len(backlog)-BACKLOG_CAPACITY:]
	}

	copy(con.backlog[:], backlog)
	con.backlogSize = len(backlog)
	con.backlogOffset = len(backlog) % BACKLOG_CAPACITY
	con.paste = append([]byte(nil), paste...)
}

// Redraw writes the backlog to the output.
func (con *Console) Redraw() error {
	if _, err := con.out.Write(con.Backlog()); err != nil {
		return err
	}

	return con.out.Flush()
}
