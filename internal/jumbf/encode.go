/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package jumbf

import (
	"encoding/binary"
)

// Encode serializes a box tree back into its byte form. Superboxes are
// always written with a description box carrying the requestable and
// label toggles that are set on the Box.
func Encode(b *Box) []byte {
	var body []byte
	if b.Type == TypeSuperbox {
		body = encodeDescription(b)
		for _, c := range b.Children {
			body = append(body, Encode(c)...)
		}
	} else {
		body = b.Payload
	}

	out := make([]byte, 8, 8+len(body))
	binary.BigEndian.PutUint32(out[:4], uint32(8+len(body)))
	copy(out[4:8], b.Type)
	return append(out, body...)
}

func encodeDescription(b *Box) []byte {
	var toggles byte
	if b.Requestable {
		toggles |= toggleRequestable
	}
	if b.Label != "" {
		toggles |= toggleLabel
	}

	payload := make([]byte, 0, 17+len(b.Label)+1)
	payload = append(payload, b.ContentType[:]...)
	payload = append(payload, toggles)
	if b.Label != "" {
		payload = append(payload, b.Label...)
		payload = append(payload, 0)
	}

	out := make([]byte, 8, 8+len(payload))
	binary.BigEndian.PutUint32(out[:4], uint32(8+len(payload)))
	copy(out[4:8], TypeDescription)
	return append(out, payload...)
}
