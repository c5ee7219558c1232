/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

// Package jumbf reads and writes the JUMBF (ISO 19566-5) box framing
// that carries C2PA manifest stores. Only the subset needed for
// manifest stores is implemented: superboxes with a description box,
// and leaf content boxes holding CBOR or JSON payloads.
package jumbf

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"
)

var (
	ErrTruncatedBox       = errors.New("jumbf: box length exceeds available bytes")
	ErrInvalidBoxLength   = errors.New("jumbf: box length below header size")
	ErrMissingDescription = errors.New("jumbf: superbox lacks description box")
	ErrInvalidLabel       = errors.New("jumbf: box label is not valid UTF-8")
)

// Box types used by manifest stores.
const (
	TypeSuperbox    = "jumb"
	TypeDescription = "jumd"
	TypeCBOR        = "cbor"
	TypeJSON        = "json"
)

// Description box toggles.
const (
	toggleRequestable = 0x01
	toggleLabel       = 0x02
)

// UUID is a JUMBF content-type identifier.
type UUID [16]byte

// Box is one parsed JUMBF box. Superboxes carry a content type, an
// optional label and child boxes; leaf boxes carry raw payload bytes.
type Box struct {
	Type string

	// superbox fields (Type == TypeSuperbox)
	ContentType UUID
	Label       string
	Requestable bool
	Children    []*Box

	// leaf payload (any other type)
	Payload []byte
}

// FindChild returns the first direct child superbox or leaf with the
// given label, or nil. Leaf boxes have no label, so this matches
// superboxes only.
func (b *Box) FindChild(label string) *Box {
	for _, c := range b.Children {
		if c.Type == TypeSuperbox && c.Label == label {
			return c
		}
	}
	return nil
}

// Leaf returns the payload of the single leaf content box inside a
// superbox, along with its box type.
func (b *Box) Leaf() (string, []byte, error) {
	for _, c := range b.Children {
		if c.Type != TypeSuperbox && c.Type != TypeDescription {
			return c.Type, c.Payload, nil
		}
	}
	return "", nil, fmt.Errorf("jumbf: superbox %q has no content box", b.Label)
}

// Parse decodes a single box from the front of data. The box must span
// data exactly.
func Parse(data []byte) (*Box, error) {
	box, rest, err := parseBox(data)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("jumbf: %d trailing bytes after box", len(rest))
	}
	return box, nil
}

func parseBox(data []byte) (*Box, []byte, error) {
	if len(data) < 8 {
		return nil, nil, ErrTruncatedBox
	}
	length := int64(binary.BigEndian.Uint32(data[:4]))
	boxType := string(data[4:8])
	headerLen := int64(8)

	if length == 1 {
		if len(data) < 16 {
			return nil, nil, ErrTruncatedBox
		}
		length = int64(binary.BigEndian.Uint64(data[8:16]))
		headerLen = 16
	}
	if length < headerLen {
		return nil, nil, ErrInvalidBoxLength
	}
	if length > int64(len(data)) {
		return nil, nil, ErrTruncatedBox
	}

	payload := data[headerLen:length]
	rest := data[length:]

	box := &Box{Type: boxType}
	if boxType != TypeSuperbox {
		box.Payload = payload
		return box, rest, nil
	}

	// A superbox starts with its description box.
	desc, remaining, err := parseBox(payload)
	if err != nil {
		return nil, nil, err
	}
	if desc.Type != TypeDescription {
		return nil, nil, ErrMissingDescription
	}
	if err := box.applyDescription(desc.Payload); err != nil {
		return nil, nil, err
	}

	for len(remaining) > 0 {
		child, next, err := parseBox(remaining)
		if err != nil {
			return nil, nil, err
		}
		box.Children = append(box.Children, child)
		remaining = next
	}
	return box, rest, nil
}

func (b *Box) applyDescription(payload []byte) error {
	if len(payload) < 17 {
		return ErrMissingDescription
	}
	copy(b.ContentType[:], payload[:16])
	toggles := payload[16]
	b.Requestable = toggles&toggleRequestable != 0

	if toggles&toggleLabel != 0 {
		rest := payload[17:]
		end := -1
		for i, c := range rest {
			if c == 0 {
				end = i
				break
			}
		}
		if end < 0 {
			return ErrInvalidLabel
		}
		label := string(rest[:end])
		if !utf8.ValidString(label) {
			return ErrInvalidLabel
		}
		b.Label = label
	}
	return nil
}
