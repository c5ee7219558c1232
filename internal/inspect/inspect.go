/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

// Package inspect runs the whole pipeline: scan the container, decode
// the manifest store, verify each manifest's signature, render the
// result. Stages run strictly in sequence; scanner and decoder errors
// abort the run, verification results are data.
package inspect

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/provenance-lab/c2pa-inspect/internal/config"
	"github.com/provenance-lab/c2pa-inspect/internal/container"
	"github.com/provenance-lab/c2pa-inspect/internal/domain/model"
	"github.com/provenance-lab/c2pa-inspect/internal/domain/service"
	"github.com/provenance-lab/c2pa-inspect/internal/infra/sqlite"
	"github.com/provenance-lab/c2pa-inspect/internal/manifest"
	"github.com/provenance-lab/c2pa-inspect/internal/render"
	"github.com/provenance-lab/c2pa-inspect/internal/verify"
	"github.com/provenance-lab/c2pa-inspect/resources"
)

// Stage is how far a pipeline run has progressed.
type Stage string

const (
	StageUnparsed Stage = "unparsed"
	StageScanned  Stage = "scanned"
	StageDecoded  Stage = "decoded"
	StageVerified Stage = "verified"
	StageReady    Stage = "ready"
)

// Report is the terminal result of one run. On success Stage is
// StageReady and Err is nil; on failure Stage is the last state
// reached and Err names the stage that could not complete. A failed
// run carries no partial store.
type Report struct {
	Stage  Stage
	Err    error
	Format container.Format
	Store  *manifest.Store
	View   *render.View
	Output string
}

func (r *Report) Ready() bool {
	return r.Stage == StageReady && r.Err == nil
}

// Inspector owns the pipeline configuration: trust policy, logger and
// the optional report archive. One Inspector may serve many runs;
// runs share no mutable state.
type Inspector struct {
	cfg      *config.Config
	logger   *log.Logger
	verifier *verify.Verifier
	db       *sql.DB
	reports  service.InspectionReportRepository
}

// New builds an Inspector from config. Trust anchors come from the
// configured PEM bundles, or from the embedded demo anchor when none
// are configured.
func New(ctx context.Context, cfg *config.Config) (*Inspector, error) {
	if cfg == nil {
		cfg = &config.Config{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	var anchorPEM []byte
	for _, path := range cfg.TrustAnchorPaths {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read trust anchors (%s): %w", path, err)
		}
		anchorPEM = append(anchorPEM, b...)
		anchorPEM = append(anchorPEM, '\n')
	}
	if anchorPEM == nil {
		anchorPEM = resources.DemoTrustAnchorsPEM
	}
	anchors, err := verify.ParseAnchorsPEM(anchorPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse trust anchors: %w", err)
	}

	ins := &Inspector{
		cfg:    cfg,
		logger: logger,
		verifier: verify.New(verify.TrustPolicy{
			Anchors:       anchors,
			MaxChainDepth: cfg.MaxChainDepth,
		}),
	}

	if cfg.ArchivePath != "" {
		db, err := sqlite.InitDB(ctx, cfg.ArchivePath)
		if err != nil {
			return nil, err
		}
		ins.db = db
		ins.reports = sqlite.NewInspectionReportRepository(db)
	}
	return ins, nil
}

// Close releases the report archive, if open.
func (i *Inspector) Close() error {
	return sqlite.CloseDB(i.db)
}

// InspectBytes runs the pipeline over in-memory container bytes.
// format may be empty to detect from magic bytes.
func (i *Inspector) InspectBytes(ctx context.Context, data []byte, format container.Format) *Report {
	r := &Report{Stage: StageUnparsed}

	if format == "" {
		detected, err := container.DetectFormat(data)
		if err != nil {
			r.Err = fmt.Errorf("scan: %w", err)
			return r
		}
		format = detected
	}
	r.Format = format

	payload, err := container.Payload(ctx, data, format)
	if err != nil {
		i.logger.Printf("scan failed (%s): %v", format, err)
		r.Err = fmt.Errorf("scan: %w", err)
		return r
	}
	r.Stage = StageScanned

	store, err := manifest.DecodeStore(payload)
	if err != nil {
		i.logger.Printf("decode failed: %v", err)
		r.Err = fmt.Errorf("decode: %w", err)
		return r
	}
	r.Stage = StageDecoded

	// The verifier never aborts: each manifest gets a status, trusted
	// or not.
	for _, label := range store.Labels {
		m := store.Manifests[label]
		m.SignatureInfo = i.verifier.VerifyManifest(m)
	}
	r.Stage = StageVerified

	view := render.NewView(store)
	out, err := view.Render()
	if err != nil {
		r.Err = fmt.Errorf("render: %w", err)
		return r
	}

	r.Store = store
	r.View = view
	r.Output = out
	r.Stage = StageReady
	return r
}

// Inspect reads a media file and runs the pipeline, archiving the
// report when an archive is configured. format may be empty to detect
// from magic bytes. The returned error covers file access and
// archiving; pipeline failures live in Report.Err.
func (i *Inspector) Inspect(ctx context.Context, path string, format container.Format) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	r := i.InspectBytes(ctx, data, format)
	if !r.Ready() || i.reports == nil {
		return r, nil
	}

	active := r.Store.Active()
	status := manifest.TrustUnsigned
	if active.SignatureInfo != nil {
		status = active.SignatureInfo.Status
	}
	_, err = i.reports.Create(ctx, &model.InspectionReport{
		Path:          path,
		Format:        string(r.Format),
		ActiveLabel:   r.Store.ActiveLabel,
		ManifestCount: len(r.Store.Labels),
		TrustStatus:   string(status),
		Output:        r.Output,
		CreatedAt:     time.Now().UTC().Truncate(time.Second),
	})
	if err != nil {
		return r, fmt.Errorf("failed to archive report: %w", err)
	}
	return r, nil
}
