/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package inspect

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/binary"
	"encoding/pem"
	"io"
	"log"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	cose "github.com/veraison/go-cose"

	"github.com/provenance-lab/c2pa-inspect/internal/config"
	"github.com/provenance-lab/c2pa-inspect/internal/container"
	"github.com/provenance-lab/c2pa-inspect/internal/infra/sqlite"
	"github.com/provenance-lab/c2pa-inspect/internal/manifest"
	"github.com/provenance-lab/c2pa-inspect/internal/verify"
)

const testLabel = "urn:uuid:aabda386-8331-4a35-a2f9-a5c42bc45a36"

var (
	openedAt  = time.Date(2023, 8, 23, 19, 12, 45, 0, time.UTC)
	croppedAt = openedAt.Add(5 * time.Minute)
)

type signingChain struct {
	anchorPEM []byte
	key       *ecdsa.PrivateKey
	leafDER   []byte
}

// newSigningChain builds a CA anchor plus a leaf signing cert whose
// validity covers the test signing times.
func newSigningChain(t *testing.T) *signingChain {
	t.Helper()
	nb := openedAt.Add(-24 * time.Hour)
	na := openedAt.Add(365 * 24 * time.Hour)

	caKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey error: %v", err)
	}
	caTmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "pipeline test anchor"},
		NotBefore:             nb,
		NotAfter:              na,
		BasicConstraintsValid: true,
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
	}
	caDER, err := x509.CreateCertificate(rand.Reader, caTmpl, caTmpl, &caKey.PublicKey, caKey)
	if err != nil {
		t.Fatalf("CreateCertificate error: %v", err)
	}
	caCert, err := x509.ParseCertificate(caDER)
	if err != nil {
		t.Fatalf("ParseCertificate error: %v", err)
	}

	leafKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey error: %v", err)
	}
	leafTmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(2),
		Subject:               pkix.Name{CommonName: "pipeline test signer"},
		NotBefore:             nb,
		NotAfter:              na,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageDigitalSignature,
	}
	leafDER, err := x509.CreateCertificate(rand.Reader, leafTmpl, caCert, &leafKey.PublicKey, caKey)
	if err != nil {
		t.Fatalf("CreateCertificate error: %v", err)
	}

	return &signingChain{
		anchorPEM: pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: caDER}),
		key:       leafKey,
		leafDER:   leafDER,
	}
}

// signedStoreBytes builds the spec scenario: one manifest with opened
// and cropped actions, signed by the chain.
func signedStoreBytes(t *testing.T, chain *signingChain) []byte {
	t.Helper()
	m := &manifest.Manifest{
		Label:          testLabel,
		ClaimGenerator: "c2pa-inspect-test/0.1",
		Title:          "test_file.jpg",
		Format:         "image/jpeg",
		InstanceID:     "xmp:iid:7f9cdf39-6c0d-44c4-8c45-b7e9b1a6e4f2",
		SigningTime:    croppedAt,
		Assertions: []manifest.Assertion{
			{
				Label: manifest.LabelActions,
				Payload: manifest.ActionsPayload{Actions: []manifest.Action{
					{Action: "c2pa.opened", When: openedAt, SoftwareAgent: "c2pa-inspect-test/0.1"},
					{Action: "c2pa.cropped", When: croppedAt, SoftwareAgent: "c2pa-inspect-test/0.1"},
				}},
			},
		},
	}

	claimBytes, err := manifest.EncodeClaim(m)
	if err != nil {
		t.Fatalf("EncodeClaim error: %v", err)
	}
	m.ClaimBytes = claimBytes
	m.SignatureBytes, err = verify.SignClaim(rand.Reader, chain.key, cose.AlgorithmES256, [][]byte{chain.leafDER}, claimBytes)
	if err != nil {
		t.Fatalf("SignClaim error: %v", err)
	}

	store := &manifest.Store{
		ActiveLabel: testLabel,
		Labels:      []string{testLabel},
		Manifests:   map[string]*manifest.Manifest{testLabel: m},
	}
	encoded, err := manifest.EncodeStore(store)
	if err != nil {
		t.Fatalf("EncodeStore error: %v", err)
	}
	return encoded
}

// buildJPEG wraps a JUMBF stream into APP11 packets inside a minimal
// JPEG shell, splitting the stream to exercise packet stitching.
func buildJPEG(jumbfStream []byte) []byte {
	out := []byte{0xFF, 0xD8} // SOI

	const packetSize = 1024
	seq := uint32(0)
	for off := 0; off < len(jumbfStream); off += packetSize {
		end := off + packetSize
		if end > len(jumbfStream) {
			end = len(jumbfStream)
		}
		frag := jumbfStream[off:end]

		out = append(out, 0xFF, 0xEB) // APP11
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], uint16(2+8+len(frag)))
		out = append(out, b[:]...)
		out = append(out, 'J', 'P')
		out = append(out, 0x00, 0x01) // box instance
		var z [4]byte
		binary.BigEndian.PutUint32(z[:], seq)
		out = append(out, z[:]...)
		out = append(out, frag...)
		seq++
	}

	out = append(out, 0xFF, 0xDA, 0x00, 0x02) // SOS
	out = append(out, 0xFF, 0xD9)             // EOI
	return out
}

func newTestInspector(t *testing.T, chain *signingChain, archivePath string) *Inspector {
	t.Helper()
	dir := t.TempDir()
	anchorPath := filepath.Join(dir, "anchors.pem")
	if err := os.WriteFile(anchorPath, chain.anchorPEM, 0o600); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}

	ins, err := New(context.Background(), &config.Config{
		TrustAnchorPaths: []string{anchorPath},
		ArchivePath:      archivePath,
		Logger:           log.New(io.Discard, "", 0),
	})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	t.Cleanup(func() { ins.Close() })
	return ins
}

func TestInspectBytes_EndToEnd(t *testing.T) {
	chain := newSigningChain(t)
	jpeg := buildJPEG(signedStoreBytes(t, chain))
	ins := newTestInspector(t, chain, "")

	r := ins.InspectBytes(context.Background(), jpeg, "")
	if !r.Ready() {
		t.Fatalf("pipeline not ready: stage=%s err=%v", r.Stage, r.Err)
	}
	assert.Equal(t, StageReady, r.Stage)
	assert.Equal(t, container.FormatJPEG, r.Format)
	assert.Equal(t, testLabel, r.Store.ActiveLabel)

	active := r.Store.Active()
	if active.SignatureInfo == nil {
		t.Fatal("active manifest has no signature info")
	}
	assert.Equal(t, manifest.TrustValid, active.SignatureInfo.Status)
	assert.Equal(t, "pipeline test anchor", active.SignatureInfo.Issuer)

	// rendered output lists both actions, in order, with timestamps
	opened := strings.Index(r.Output, "c2pa.opened")
	cropped := strings.Index(r.Output, "c2pa.cropped")
	assert.True(t, opened >= 0 && cropped > opened, "actions missing or out of order")
	assert.Contains(t, r.Output, openedAt.Format(time.RFC3339))
	assert.Contains(t, r.Output, croppedAt.Format(time.RFC3339))
	assert.Contains(t, r.Output, `"trust_status": "valid"`)
}

func TestInspectBytes_UntrustedAnchorStillReady(t *testing.T) {
	signing := newSigningChain(t)
	jpeg := buildJPEG(signedStoreBytes(t, signing))

	// inspector trusts a different chain entirely
	ins := newTestInspector(t, newSigningChain(t), "")

	r := ins.InspectBytes(context.Background(), jpeg, "")
	if !r.Ready() {
		t.Fatalf("pipeline not ready: stage=%s err=%v", r.Stage, r.Err)
	}
	assert.Equal(t, manifest.TrustUntrusted, r.Store.Active().SignatureInfo.Status)
	assert.Contains(t, r.Output, `"trust_status": "untrusted"`)
}

func TestInspectBytes_TruncatedAborts(t *testing.T) {
	chain := newSigningChain(t)
	jpeg := buildJPEG(signedStoreBytes(t, chain))
	// claim more bytes than remain in the first APP11 segment
	binary.BigEndian.PutUint16(jpeg[4:6], 0xFFF0)

	ins := newTestInspector(t, chain, "")
	r := ins.InspectBytes(context.Background(), jpeg, "")

	assert.False(t, r.Ready())
	assert.Equal(t, StageUnparsed, r.Stage)
	var te *container.TruncatedError
	assert.ErrorAs(t, r.Err, &te)
	assert.Nil(t, r.Store)
}

func TestInspectBytes_DecodeFailureAborts(t *testing.T) {
	chain := newSigningChain(t)
	jpeg := buildJPEG([]byte("valid container, junk payload"))

	ins := newTestInspector(t, chain, "")
	r := ins.InspectBytes(context.Background(), jpeg, "")

	assert.False(t, r.Ready())
	assert.Equal(t, StageScanned, r.Stage)
	var de *manifest.DecodeError
	assert.ErrorAs(t, r.Err, &de)
	assert.Nil(t, r.Store)
}

func TestInspectBytes_UnknownFormat(t *testing.T) {
	chain := newSigningChain(t)
	ins := newTestInspector(t, chain, "")

	r := ins.InspectBytes(context.Background(), []byte("plain text file"), "")
	assert.False(t, r.Ready())
	assert.ErrorIs(t, r.Err, container.ErrUnknownFormat)
}

func TestInspect_ArchivesReport(t *testing.T) {
	chain := newSigningChain(t)
	dir := t.TempDir()
	mediaPath := filepath.Join(dir, "test_file.jpg")
	if err := os.WriteFile(mediaPath, buildJPEG(signedStoreBytes(t, chain)), 0o600); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}

	archivePath := filepath.Join(dir, "reports.db")
	ins := newTestInspector(t, chain, archivePath)

	ctx := context.Background()
	r, err := ins.Inspect(ctx, mediaPath, "")
	if err != nil {
		t.Fatalf("Inspect error: %v", err)
	}
	if !r.Ready() {
		t.Fatalf("pipeline not ready: stage=%s err=%v", r.Stage, r.Err)
	}

	db, err := sqlite.InitDB(ctx, archivePath)
	if err != nil {
		t.Fatalf("InitDB error: %v", err)
	}
	defer sqlite.CloseDB(db)

	repo := sqlite.NewInspectionReportRepository(db)
	report, err := repo.FindLatestByPath(ctx, mediaPath)
	if err != nil {
		t.Fatalf("FindLatestByPath error: %v", err)
	}
	if report == nil {
		t.Fatal("no archived report found")
	}
	assert.Equal(t, testLabel, report.ActiveLabel)
	assert.Equal(t, "valid", report.TrustStatus)
	assert.Equal(t, "jpeg", report.Format)
	assert.Equal(t, 1, report.ManifestCount)
	assert.Equal(t, r.Output, report.Output)
}
