/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package manifest

import "fmt"

// DecodeError reports structurally invalid manifest store bytes. The
// reason names the first structural problem found.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("manifest decode: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("manifest decode: %s", e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func decodeErrorf(err error, format string, args ...any) error {
	return &DecodeError{Reason: fmt.Sprintf(format, args...), Err: err}
}
