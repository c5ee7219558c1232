/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package container

import (
	"encoding/binary"
)

// PNG embeds the whole JUMBF stream in a single caBX chunk.
const pngChunkCABX = "caBX"

func (s *Scanner) nextPNG() (*Segment, error) {
	data := s.data
	for {
		if s.pos == int64(len(data)) {
			s.done = true
			return nil, nil
		}
		if s.pos+8 > int64(len(data)) {
			return nil, &TruncatedError{Offset: s.pos, Need: 8, Have: int64(len(data)) - s.pos}
		}
		chunkLen := int64(binary.BigEndian.Uint32(data[s.pos : s.pos+4]))
		chunkType := string(data[s.pos+4 : s.pos+8])

		// length + type + data + CRC
		total := 8 + chunkLen + 4
		if s.pos+total > int64(len(data)) {
			return nil, &TruncatedError{Offset: s.pos, Need: total, Have: int64(len(data)) - s.pos}
		}

		dataStart := s.pos + 8
		s.pos += total

		if chunkType == "IEND" {
			s.done = true
			return nil, nil
		}
		if chunkType != pngChunkCABX {
			continue
		}

		return &Segment{
			Offset: dataStart,
			Length: chunkLen,
			Kind:   KindJUMBF,
		}, nil
	}
}
