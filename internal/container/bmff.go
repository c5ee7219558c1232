/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package container

import (
	"bytes"
	"encoding/binary"
)

// BMFF-family containers (MP4, MOV, HEIF) carry the JUMBF stream in a
// top-level uuid box tagged with the C2PA extension UUID.
var bmffC2PAUUID = []byte{
	0xd8, 0xfe, 0xc3, 0xd6, 0x1b, 0x0e, 0x48, 0x3c,
	0x92, 0x97, 0x58, 0x28, 0x87, 0x7e, 0xc4, 0x81,
}

func (s *Scanner) nextBMFF() (*Segment, error) {
	data := s.data
	for {
		if s.pos == int64(len(data)) {
			s.done = true
			return nil, nil
		}
		if s.pos+8 > int64(len(data)) {
			return nil, &TruncatedError{Offset: s.pos, Need: 8, Have: int64(len(data)) - s.pos}
		}

		size := int64(binary.BigEndian.Uint32(data[s.pos : s.pos+4]))
		boxType := string(data[s.pos+4 : s.pos+8])
		headerLen := int64(8)

		switch size {
		case 0:
			// box extends to end of file
			size = int64(len(data)) - s.pos
		case 1:
			if s.pos+16 > int64(len(data)) {
				return nil, &TruncatedError{Offset: s.pos, Need: 16, Have: int64(len(data)) - s.pos}
			}
			size = int64(binary.BigEndian.Uint64(data[s.pos+8 : s.pos+16]))
			headerLen = 16
		}
		if size < headerLen {
			return nil, &FormatError{Format: FormatBMFF, Detail: "box size below header size"}
		}
		if s.pos+size > int64(len(data)) {
			return nil, &TruncatedError{Offset: s.pos, Need: size, Have: int64(len(data)) - s.pos}
		}

		boxStart := s.pos
		s.pos += size

		if boxType != "uuid" {
			continue
		}
		payloadStart := boxStart + headerLen
		if size-headerLen < 16 {
			continue
		}
		if !bytes.Equal(data[payloadStart:payloadStart+16], bmffC2PAUUID) {
			continue
		}

		return &Segment{
			Offset: payloadStart + 16,
			Length: size - headerLen - 16,
			Kind:   KindJUMBF,
		}, nil
	}
}
