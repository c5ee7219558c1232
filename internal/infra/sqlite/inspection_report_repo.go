/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/provenance-lab/c2pa-inspect/internal/domain/model"
)

// InspectionReportRepository handles report persistence.
type InspectionReportRepository struct {
	db *sql.DB
}

func NewInspectionReportRepository(db *sql.DB) *InspectionReportRepository {
	return &InspectionReportRepository{db: db}
}

// Create inserts a new report and returns the inserted id.
func (r *InspectionReportRepository) Create(ctx context.Context, report *model.InspectionReport) (int64, error) {
	const q = `
		INSERT INTO inspection_reports (path, format, active_label, manifest_count, trust_status, output, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	res, err := r.db.ExecContext(ctx, q,
		report.Path, report.Format, report.ActiveLabel, report.ManifestCount,
		report.TrustStatus, report.Output, report.CreatedAt)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *InspectionReportRepository) FindByID(ctx context.Context, id int64) (*model.InspectionReport, error) {
	const q = `
		SELECT id, path, format, active_label, manifest_count, trust_status, output, created_at
		FROM inspection_reports
		WHERE id = ?
	`
	row := r.db.QueryRowContext(ctx, q, id)
	var m model.InspectionReport
	if err := row.Scan(&m.ID, &m.Path, &m.Format, &m.ActiveLabel, &m.ManifestCount, &m.TrustStatus, &m.Output, &m.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("inspection report scan: %w", err)
	}
	return &m, nil
}

// FindLatestByPath returns the most recent report for a file path.
func (r *InspectionReportRepository) FindLatestByPath(ctx context.Context, path string) (*model.InspectionReport, error) {
	const q = `
		SELECT id, path, format, active_label, manifest_count, trust_status, output, created_at
		FROM inspection_reports
		WHERE path = ?
		ORDER BY id DESC
		LIMIT 1
	`
	row := r.db.QueryRowContext(ctx, q, path)
	var m model.InspectionReport
	if err := row.Scan(&m.ID, &m.Path, &m.Format, &m.ActiveLabel, &m.ManifestCount, &m.TrustStatus, &m.Output, &m.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("inspection report scan: %w", err)
	}
	return &m, nil
}

// ListRecent returns up to limit reports, newest first.
func (r *InspectionReportRepository) ListRecent(ctx context.Context, limit int) ([]*model.InspectionReport, error) {
	const q = `
		SELECT id, path, format, active_label, manifest_count, trust_status, output, created_at
		FROM inspection_reports
		ORDER BY id DESC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.InspectionReport
	for rows.Next() {
		var m model.InspectionReport
		if err := rows.Scan(&m.ID, &m.Path, &m.Format, &m.ActiveLabel, &m.ManifestCount, &m.TrustStatus, &m.Output, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("inspection report scan: %w", err)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}
