/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package container

import (
	"encoding/binary"
)

// JPEG markers. Provenance payloads travel in APP11 segments whose
// data starts with the "JP" common identifier, a box instance number
// and a packet sequence number, followed by a fragment of the JUMBF
// stream.
const (
	markerSOI   = 0xD8
	markerEOI   = 0xD9
	markerSOS   = 0xDA
	markerTEM   = 0x01
	markerAPP11 = 0xEB
	markerRST0  = 0xD0
	markerRST7  = 0xD7
)

// app11HeaderLen covers CI ("JP", 2 bytes), En (2 bytes) and Z (4
// bytes) at the front of every APP11 provenance packet.
const app11HeaderLen = 8

func (s *Scanner) nextJPEG() (*Segment, error) {
	data := s.data
	for {
		if s.pos+2 > int64(len(data)) {
			return nil, &TruncatedError{Offset: s.pos, Need: 2, Have: int64(len(data)) - s.pos}
		}
		if data[s.pos] != 0xFF {
			return nil, &FormatError{Format: FormatJPEG, Detail: "expected marker byte 0xFF"}
		}
		marker := data[s.pos+1]

		// Fill bytes before a marker are allowed.
		if marker == 0xFF {
			s.pos++
			continue
		}

		switch {
		case marker == markerEOI, marker == markerSOS:
			// Manifest stores precede the entropy-coded data, so the
			// scan ends at SOS.
			s.done = true
			return nil, nil
		case marker == markerSOI, marker == markerTEM,
			marker >= markerRST0 && marker <= markerRST7:
			s.pos += 2
			continue
		}

		if s.pos+4 > int64(len(data)) {
			return nil, &TruncatedError{Offset: s.pos, Need: 4, Have: int64(len(data)) - s.pos}
		}
		segLen := int64(binary.BigEndian.Uint16(data[s.pos+2 : s.pos+4]))
		if segLen < 2 {
			return nil, &FormatError{Format: FormatJPEG, Detail: "segment length below minimum"}
		}
		end := s.pos + 2 + segLen
		if end > int64(len(data)) {
			return nil, &TruncatedError{Offset: s.pos, Need: 2 + segLen, Have: int64(len(data)) - s.pos}
		}

		payloadStart := s.pos + 4
		payload := data[payloadStart:end]
		s.pos = end

		if marker != markerAPP11 || len(payload) < app11HeaderLen ||
			payload[0] != 'J' || payload[1] != 'P' {
			continue
		}

		return &Segment{
			Offset:   payloadStart + app11HeaderLen,
			Length:   int64(len(payload) - app11HeaderLen),
			Kind:     KindJUMBF,
			instance: binary.BigEndian.Uint16(payload[2:4]),
			sequence: binary.BigEndian.Uint32(payload[4:8]),
		}, nil
	}
}
