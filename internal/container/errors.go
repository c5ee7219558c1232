/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package container

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownFormat    = errors.New("unrecognized container format")
	ErrNoProvenanceData = errors.New("no provenance metadata found in container")
)

// FormatError reports a container whose structure does not match the
// declared (or detected) format.
type FormatError struct {
	Format Format
	Detail string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid %s container: %s", e.Format, e.Detail)
}

// TruncatedError reports a segment, chunk or box header that claims
// more bytes than the input holds.
type TruncatedError struct {
	Offset int64
	Need   int64
	Have   int64
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("truncated container at offset %d: need %d bytes, have %d", e.Offset, e.Need, e.Have)
}
