/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package service

import (
	"context"

	"github.com/provenance-lab/c2pa-inspect/internal/domain/model"
)

// InspectionReportRepository defines the interface for report persistence.
type InspectionReportRepository interface {
	Create(ctx context.Context, report *model.InspectionReport) (int64, error)
	FindByID(ctx context.Context, id int64) (*model.InspectionReport, error)
	FindLatestByPath(ctx context.Context, path string) (*model.InspectionReport, error)
	ListRecent(ctx context.Context, limit int) ([]*model.InspectionReport, error)
}
