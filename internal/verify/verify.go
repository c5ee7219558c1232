/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

// Package verify computes the trust status of decoded manifests. It
// never aborts a pipeline: every outcome, including malformed
// signature envelopes, is reported as a status so that callers can
// still inspect untrusted manifests.
package verify

import (
	"bytes"
	"crypto/x509"
	"encoding/pem"
	"errors"

	"github.com/fxamacker/cbor/v2"
	cose "github.com/veraison/go-cose"

	"github.com/provenance-lab/c2pa-inspect/internal/manifest"
)

// DefaultMaxChainDepth bounds the certificate chain walk when the
// policy does not set its own limit.
const DefaultMaxChainDepth = 10

var ErrNoAnchors = errors.New("trust policy contains no anchors")

// TrustPolicy is the explicit verifier configuration. Anchors are
// passed as a value, never read from process-wide state, so a
// verification run is reproducible.
type TrustPolicy struct {
	Anchors       []*x509.Certificate
	MaxChainDepth int
}

func (p TrustPolicy) maxDepth() int {
	if p.MaxChainDepth > 0 {
		return p.MaxChainDepth
	}
	return DefaultMaxChainDepth
}

// ParseAnchorsPEM reads one or more CERTIFICATE blocks from a PEM
// bundle.
func ParseAnchorsPEM(data []byte) ([]*x509.Certificate, error) {
	var anchors []*x509.Certificate
	for len(data) > 0 {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, err
		}
		anchors = append(anchors, cert)
	}
	if len(anchors) == 0 {
		return nil, ErrNoAnchors
	}
	return anchors, nil
}

// Verifier checks manifest signatures against a trust policy.
type Verifier struct {
	policy TrustPolicy
}

func New(policy TrustPolicy) *Verifier {
	return &Verifier{policy: policy}
}

// VerifyManifest computes the SignatureInfo for one manifest. The
// signature is a detached COSE_Sign1 over the manifest's exact claim
// bytes; the certificate chain travels in the protected x5chain
// header. Validity periods are checked against the claim's declared
// signing time, not the wall clock.
func (v *Verifier) VerifyManifest(m *manifest.Manifest) *manifest.SignatureInfo {
	if len(m.SignatureBytes) == 0 {
		return &manifest.SignatureInfo{Status: manifest.TrustUnsigned}
	}

	var msg cose.Sign1Message
	if err := cbor.Unmarshal(m.SignatureBytes, &msg); err != nil {
		return &manifest.SignatureInfo{Status: manifest.TrustMalformed}
	}

	chain, err := x5chain(msg.Headers.Protected)
	if err != nil {
		return &manifest.SignatureInfo{Status: manifest.TrustMalformed}
	}
	leaf := chain[0]

	info := &manifest.SignatureInfo{
		Issuer:       leaf.Issuer.CommonName,
		SerialNumber: leaf.SerialNumber.String(),
	}

	// The claim must declare its signing time for validity-period
	// checks to be reproducible. Without it, fail closed.
	if m.SigningTime.IsZero() {
		info.Status = manifest.TrustUntrusted
		return info
	}

	alg, err := msg.Headers.Protected.Algorithm()
	if err != nil {
		info.Status = manifest.TrustUntrusted
		return info
	}
	verifier, err := cose.NewVerifier(alg, leaf.PublicKey)
	if err != nil {
		info.Status = manifest.TrustUntrusted
		return info
	}

	// The signature is detached; an embedded payload would let the
	// envelope disagree with the claim box.
	if msg.Payload != nil {
		info.Status = manifest.TrustMalformed
		return info
	}
	msg.Payload = m.ClaimBytes
	if err := msg.Verify(nil, verifier); err != nil {
		info.Status = manifest.TrustUntrusted
		return info
	}

	info.Status = v.walkChain(leaf, chain[1:], m)
	return info
}

// walkChain follows issuer links from the leaf toward a configured
// anchor. The walk is explicitly bounded and cycle-checked: chain
// loops and over-deep chains are Malformed rather than a hang.
func (v *Verifier) walkChain(leaf *x509.Certificate, intermediates []*x509.Certificate, m *manifest.Manifest) manifest.TrustStatus {
	signingTime := m.SigningTime
	seen := make(map[string]bool)
	cur := leaf

	for depth := 0; depth <= v.policy.maxDepth(); depth++ {
		if seen[string(cur.Raw)] {
			return manifest.TrustMalformed
		}
		seen[string(cur.Raw)] = true

		if signingTime.Before(cur.NotBefore) || signingTime.After(cur.NotAfter) {
			return manifest.TrustExpired
		}

		for _, anchor := range v.policy.Anchors {
			if bytes.Equal(anchor.Raw, cur.Raw) {
				return manifest.TrustValid
			}
			if bytes.Equal(cur.RawIssuer, anchor.RawSubject) && cur.CheckSignatureFrom(anchor) == nil {
				if signingTime.Before(anchor.NotBefore) || signingTime.After(anchor.NotAfter) {
					return manifest.TrustExpired
				}
				return manifest.TrustValid
			}
		}

		next := findParent(cur, intermediates)
		if next == nil {
			return manifest.TrustUntrusted
		}
		cur = next
	}
	return manifest.TrustMalformed
}

func findParent(cert *x509.Certificate, candidates []*x509.Certificate) *x509.Certificate {
	for _, c := range candidates {
		if bytes.Equal(cert.RawIssuer, c.RawSubject) && cert.CheckSignatureFrom(c) == nil {
			return c
		}
	}
	return nil
}

// x5chain pulls the DER certificate chain out of the protected header.
// A single certificate may be encoded as a bare byte string, multiple
// certificates as an array; the leaf comes first either way.
func x5chain(hdr cose.ProtectedHeader) ([]*x509.Certificate, error) {
	raw, ok := hdr[cose.HeaderLabelX5Chain]
	if !ok {
		return nil, errors.New("protected header has no x5chain")
	}

	var ders [][]byte
	switch val := raw.(type) {
	case []byte:
		ders = [][]byte{val}
	case []any:
		for _, entry := range val {
			der, ok := entry.([]byte)
			if !ok {
				return nil, errors.New("x5chain entry is not a byte string")
			}
			ders = append(ders, der)
		}
	default:
		return nil, errors.New("x5chain has unsupported encoding")
	}
	if len(ders) == 0 {
		return nil, errors.New("x5chain is empty")
	}

	chain := make([]*x509.Certificate, 0, len(ders))
	for _, der := range ders {
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, err
		}
		chain = append(chain, cert)
	}
	return chain, nil
}
