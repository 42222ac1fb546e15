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

package encoding

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"strconv"
	"strings"
)

var ErrTruncatedImage = errors.New("Image length is not a multiple of 4 bytes")

// Decodes a hexidecimal string in the formats: 0xFFFFFFFF, xFFFFFFFF
func DecodeHex(s string) (uint32, error) {
	if i := strings.IndexAny(s, "xX"); i == 0 {
		s = "0" + s
	} else if i == -1 || i != 1 || s[0] != '0' {
		return 0, errors.New("Invalid hex string")
	}

	result, err := strconv.ParseUint(s, 0, 32)

	if err != nil {
		return 0, err
	}

	return uint32(result), nil
}

// Decodes a base-10 string in the formats: #123, 123
func DecodeInt(s string) (uint32, error) {
	if i := strings.Index(s, "#"); i == 0 {
		s = s[1:]
	}

	result, err := strconv.ParseUint(s, 10, 32)

	if err != nil {
		return 0, err
	}

	return uint32(result), nil
}

// Decodes either literal format
func DecodeWord(s string) (uint32, error) {
	if strings.ContainsAny(s, "xX") {
		return DecodeHex(s)
	}

	return DecodeInt(s)
}

// ReadWords reads a headerless sequence of big-endian 32-bit words until EOF.
func ReadWords(reader io.Reader) ([]uint32, error) {
	buffered := bufio.NewReader(reader)
	scratch := make([]byte, 4)
	words := make([]uint32, 0, 1024)

	for {
		n, err := io.ReadFull(buffered, scratch)

		if err == io.EOF {
			return words, nil
		} else if err == io.ErrUnexpectedEOF {
			return nil, ErrTruncatedImage
		} else if err != nil {
			return nil, err
		} else if n != 4 {
			return nil, ErrTruncatedImage
		}

		words = append(words, binary.BigEndian.Uint32(scratch))
	}
}

func WriteWords(writer io.Writer, words []uint32) error {
	buffered := bufio.NewWriter(writer)

	if err := binary.Write(buffered, binary.BigEndian, words); err != nil {
		return err
	}

	return buffered.Flush()
}
