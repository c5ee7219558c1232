/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package model

import "time"

// InspectionReport is one archived pipeline run.
type InspectionReport struct {
	ID            int64
	Path          string
	Format        string
	ActiveLabel   string
	ManifestCount int
	TrustStatus   string
	Output        string
	CreatedAt     time.Time
}
