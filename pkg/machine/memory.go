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
	"math"
)

// Reset discards every page and installs program as page 0.
func (pt *PageTable) Reset(program []uint32) {
	if program == nil {
		program = make([]uint32, 0)
	}

	pt.pages = []Page{program}
	pt.free = pt.free[:0]
}

// Restore rebuilds a page table from a page list and a free-list, as saved by
// a snapshot. Absent pages are nil.
func (pt *PageTable) Restore(pages []Page, free []uint32) {
	pt.pages = pages
	pt.free = free

	if len(pt.pages) == 0 {
		pt.Reset(nil)
	} else if pt.pages[PROGRAM_PAGE] == nil {
		pt.pages[PROGRAM_PAGE] = make(Page, 0)
	}
}

func (pt *PageTable) Program() Page {
	if len(pt.pages) == 0 {
		return nil
	}

	return pt.pages[PROGRAM_PAGE]
}

// Pages returns the underlying table. Entries must not be resized.
func (pt *PageTable) Pages() []Page {
	return pt.pages
}

func (pt *PageTable) FreeList() []uint32 {
	return pt.free
}

func (pt *PageTable) Allocate(size uint32) (uint32, error) {
	page := make(Page, size)

	if n := len(pt.free); n > 0 {
		id := pt.free[n-1]
		pt.free = pt.free[:n-1]
		pt.pages[id] = page
		return id, nil
	}

	if uint64(len(pt.pages)) > math.MaxUint32 {
		return 0, &Fault{Type: FAULT_OUT_OF_MEMORY}
	}

	pt.pages = append(pt.pages, page)
	return uint32(len(pt.pages) - 1), nil
}

func (pt *PageTable) Free(id uint32) error {
	if id == PROGRAM_PAGE {
		return &Fault{Type: FAULT_INVALID_PAGE, Page: id}
	}

	if _, err := pt.Get(id); err != nil {
		return err
	}

	pt.pages[id] = nil
	pt.free = append(pt.free, id)
	return nil
}

func (pt *PageTable) Get(id uint32) (Page, error) {
	if uint64(id) >= uint64(len(pt.pages)) || pt.pages[id] == nil {
		return nil, &Fault{Type: FAULT_INVALID_PAGE, Page: id}
	}

	return pt.pages[id], nil
}

func (pt *PageTable) Read(id, offset uint32) (uint32, error) {
	page, err := pt.Get(id)

	if err != nil {
		return 0, err
	}

	if uint64(offset) >= uint64(len(page)) {
		return 0, &Fault{Type: FAULT_MEMORY, Page: id, Offset: offset}
	}

	return page[offset], nil
}

func (pt *PageTable) Write(id, offset, value uint32) error {
	page, err := pt.Get(id)

	if err != nil {
		return err
	}

	if uint64(offset) >= uint64(len(page)) {
		return &Fault{Type: FAULT_MEMORY, Page: id, Offset: offset}
	}

	page[offset] = value
	return nil
}

// Replace installs a copy of page id as the program image. The source page
// keeps its own storage, so later writes to either one are not shared.
func (pt *PageTable) Replace(id uint32) error {
	page, err := pt.Get(id)

	if err != nil {
		return err
	}

	program := make(Page, len(page))
	copy(program, page)
	pt.pages[PROGRAM_PAGE] = program
	return nil
}

// Reserved counts every identifier ever handed out, including page 0.
func (pt *PageTable) Reserved() int {
	return len(pt.pages)
}

// Active counts the identifiers currently backed by a page.
func (pt *PageTable) Active() int {
	return len(pt.pages) - len(pt.free)
}

// Words sums the length of every live page.
func (pt *PageTable) Words() uint64 {
	var total uint64

	for _, page := range pt.pages {
		total += uint64(len(page))
	}

	return total
}
