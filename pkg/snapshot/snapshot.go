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

// Package snapshot saves and restores a running machine together with its
// console. A snapshot is the 4-byte magic "UMX\x01" followed by a gob stream.
package snapshot

import (
	"bufio"
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"io"

	"github.com/lassandro/goum/pkg/console"
	"github.com/lassandro/goum/pkg/machine"
)

const MAGIC = "UMX\x01"

const DEFAULT_FILENAME = "snapshot.umx"

var (
	ErrBadMagic    = errors.New("Corrupted snapshot")
	ErrBadFreeList = errors.New("free-list names a live or unknown page")
)

// gob cannot tell a nil slice from an empty one, so liveness is explicit
type pageRecord struct {
	Live  bool
	Words []uint32
}

type record struct {
	Registers [machine.NUM_REGISTERS]uint32
	Counter   uint32
	Version   uint64
	Pages     []pageRecord
	Free      []uint32
	Stats     machine.Stats
	Backlog   []byte
	Paste     []byte
}

// Save writes the machine state and, if con is non-nil, its backlog and
// pending paste queue.
func Save(writer io.Writer, mc *machine.Machine, con *console.Console) error {
	var rec record

	rec.Registers = mc.State.Registers
	rec.Counter = mc.State.Counter
	rec.Version = mc.State.Version
	rec.Free = mc.State.Pages.FreeList()
	rec.Stats = mc.Stats

	pages := mc.State.Pages.Pages()
	rec.Pages = make([]pageRecord, len(pages))

	for i, page := range pages {
		rec.Pages[i] = pageRecord{Live: page != nil, Words: page}
	}

	if con != nil {
		rec.Backlog = con.Backlog()
		rec.Paste = con.Pending()
	}

	buffered := bufio.NewWriter(writer)

	if _, err := buffered.WriteString(MAGIC); err != nil {
		return err
	}

	if err := gob.NewEncoder(buffered).Encode(&rec); err != nil {
		return err
	}

	return buffered.Flush()
}

// validate rejects free-lists that would let an allocation hand out the
// program page, a live page, or the same identifier twice.
func (rec *record) validate() error {
	seen := make(map[uint32]bool, len(rec.Free))

	for _, id := range rec.Free {
		switch {
		case id == machine.PROGRAM_PAGE,
			uint64(id) >= uint64(len(rec.Pages)),
			rec.Pages[id].Live,
			seen[id]:
			return fmt.Errorf("%w: page %#x", ErrBadFreeList, id)
		}

		seen[id] = true
	}

	return nil
}

// Load replaces the machine state with a saved one. The machine is left
// untouched if the snapshot cannot be decoded.
func Load(reader io.Reader, mc *machine.Machine, con *console.Console) error {
	buffered := bufio.NewReader(reader)
	magic := make([]byte, len(MAGIC))

	if _, err := io.ReadFull(buffered, magic); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return ErrBadMagic
		}
		return err
	}

	if !bytes.Equal(magic, []byte(MAGIC)) {
		return ErrBadMagic
	}

	var rec record

	if err := gob.NewDecoder(buffered).Decode(&rec); err != nil {
		return fmt.Errorf("decoding snapshot: %w", err)
	}

	if err := rec.validate(); err != nil {
		return fmt.Errorf("decoding snapshot: %w", err)
	}

	pages := make([]machine.Page, len(rec.Pages))

	for i, page := range rec.Pages {
		if !page.Live {
			continue
		}

		pages[i] = make(machine.Page, len(page.Words))
		copy(pages[i], page.Words)
	}

	mc.State.Registers = rec.Registers
	mc.State.Counter = rec.Counter
	mc.State.Version = rec.Version
	mc.State.Halted = false
	mc.State.Pages.Restore(pages, rec.Free)
	mc.Stats = rec.Stats

	if con != nil {
		con.Restore(rec.Backlog, rec.Paste)
	}

	return nil
}
