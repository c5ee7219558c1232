/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

// Package container locates provenance metadata inside media file
// containers. It walks the container framing only; the bytes it yields
// are handed to the JUMBF and manifest layers untouched.
package container

import (
	"bytes"
	"context"
	"fmt"
)

// Format identifies a supported media container.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatBMFF Format = "bmff"
)

var (
	jpegMagic = []byte{0xFF, 0xD8, 0xFF}
	pngMagic  = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}
	ftypBrand = []byte("ftyp")
)

// SegmentKind tags what a scanned byte range holds.
type SegmentKind string

const (
	// KindJUMBF marks a range carrying a fragment of the JUMBF-encoded
	// manifest store.
	KindJUMBF SegmentKind = "jumbf"
)

// Segment is one provenance-tagged byte range within the source.
// Offset and Length address the payload fragment itself, excluding the
// container's own framing bytes.
type Segment struct {
	Offset int64
	Length int64
	Kind   SegmentKind

	// instance and sequence order multi-packet payloads (JPEG APP11).
	instance uint16
	sequence uint32
}

// DetectFormat inspects magic bytes. Returns ErrUnknownFormat when the
// prefix matches no supported container.
func DetectFormat(data []byte) (Format, error) {
	switch {
	case bytes.HasPrefix(data, jpegMagic):
		return FormatJPEG, nil
	case bytes.HasPrefix(data, pngMagic):
		return FormatPNG, nil
	case len(data) >= 12 && bytes.Equal(data[4:8], ftypBrand):
		return FormatBMFF, nil
	}
	return "", ErrUnknownFormat
}

// Scanner walks a container and yields provenance segments one at a
// time. It holds no state beyond a cursor into the input and never
// mutates the source bytes.
type Scanner struct {
	ctx    context.Context
	data   []byte
	format Format

	pos  int64
	done bool
}

// NewScanner validates the container magic against the declared format
// and positions the cursor at the first top-level structure.
func NewScanner(ctx context.Context, data []byte, format Format) (*Scanner, error) {
	detected, err := DetectFormat(data)
	if err != nil {
		return nil, err
	}
	if detected != format {
		return nil, &FormatError{Format: format, Detail: fmt.Sprintf("magic bytes identify %s", detected)}
	}

	s := &Scanner{ctx: ctx, data: data, format: format}
	switch format {
	case FormatJPEG:
		s.pos = 2 // past SOI
	case FormatPNG:
		s.pos = int64(len(pngMagic))
	case FormatBMFF:
		s.pos = 0
	default:
		return nil, ErrUnknownFormat
	}
	return s, nil
}

// Next returns the next provenance segment, or nil when the container
// is exhausted. Cancellation is honored at segment boundaries.
func (s *Scanner) Next() (*Segment, error) {
	if s.done {
		return nil, nil
	}
	if err := s.ctx.Err(); err != nil {
		return nil, err
	}

	switch s.format {
	case FormatJPEG:
		return s.nextJPEG()
	case FormatPNG:
		return s.nextPNG()
	case FormatBMFF:
		return s.nextBMFF()
	}
	return nil, ErrUnknownFormat
}

// Payload scans the whole container and re-assembles the provenance
// payload fragments into the contiguous JUMBF byte stream. Multi-packet
// JPEG payloads are stitched in (instance, sequence) order. Returns
// ErrNoProvenanceData when the container carries no provenance
// metadata.
func Payload(ctx context.Context, data []byte, format Format) ([]byte, error) {
	s, err := NewScanner(ctx, data, format)
	if err != nil {
		return nil, err
	}

	var segs []*Segment
	for {
		seg, err := s.Next()
		if err != nil {
			return nil, err
		}
		if seg == nil {
			break
		}
		segs = append(segs, seg)
	}
	if len(segs) == 0 {
		return nil, ErrNoProvenanceData
	}

	// Stable stitch order for fragmented payloads. Scan order is kept
	// for equal keys.
	ordered := make([]*Segment, len(segs))
	copy(ordered, segs)
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && less(ordered[j], ordered[j-1]); j-- {
			ordered[j], ordered[j-1] = ordered[j-1], ordered[j]
		}
	}

	var total int64
	for _, seg := range ordered {
		total += seg.Length
	}
	out := make([]byte, 0, total)
	for _, seg := range ordered {
		out = append(out, data[seg.Offset:seg.Offset+seg.Length]...)
	}
	return out, nil
}

func less(a, b *Segment) bool {
	if a.instance != b.instance {
		return a.instance < b.instance
	}
	return a.sequence < b.sequence
}
