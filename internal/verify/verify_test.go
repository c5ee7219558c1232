/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package verify

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	cose "github.com/veraison/go-cose"

	"github.com/provenance-lab/c2pa-inspect/internal/manifest"
)

var (
	testSigningTime = time.Date(2023, 8, 23, 19, 12, 45, 0, time.UTC)

	// a serial past 64 bits, the kind real signing certs carry
	testSerial, _ = new(big.Int).SetString("720724792290093466979761268753629627544206005567", 10)
)

type testCert struct {
	key  *ecdsa.PrivateKey
	cert *x509.Certificate
	der  []byte
}

func newTestCert(t *testing.T, cn string, isCA bool, parent *testCert, notBefore, notAfter time.Time) *testCert {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey error: %v", err)
	}

	tmpl := &x509.Certificate{
		SerialNumber:          testSerial,
		Subject:               pkix.Name{CommonName: cn, Organization: []string{"c2pa-inspect test"}},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		BasicConstraintsValid: true,
		IsCA:                  isCA,
		KeyUsage:              x509.KeyUsageDigitalSignature,
	}
	if isCA {
		tmpl.KeyUsage |= x509.KeyUsageCertSign
	}

	parentCert, parentKey := tmpl, key
	if parent != nil {
		parentCert, parentKey = parent.cert, parent.key
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, parentCert, &key.PublicKey, parentKey)
	if err != nil {
		t.Fatalf("CreateCertificate error: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("ParseCertificate error: %v", err)
	}
	return &testCert{key: key, cert: cert, der: der}
}

func defaultWindow() (time.Time, time.Time) {
	return testSigningTime.Add(-24 * time.Hour), testSigningTime.Add(365 * 24 * time.Hour)
}

func signedManifest(t *testing.T, signer *testCert, chainDER [][]byte) *manifest.Manifest {
	t.Helper()
	m := &manifest.Manifest{
		Label:          "urn:uuid:aabda386-8331-4a35-a2f9-a5c42bc45a36",
		ClaimGenerator: "c2pa-inspect-test/0.1",
		InstanceID:     manifest.NewInstanceID(),
		SigningTime:    testSigningTime,
	}
	claimBytes, err := manifest.EncodeClaim(m)
	if err != nil {
		t.Fatalf("EncodeClaim error: %v", err)
	}
	m.ClaimBytes = claimBytes

	sig, err := SignClaim(rand.Reader, signer.key, cose.AlgorithmES256, chainDER, claimBytes)
	if err != nil {
		t.Fatalf("SignClaim error: %v", err)
	}
	m.SignatureBytes = sig
	return m
}

func TestVerifyManifest_ValidChainToAnchor(t *testing.T) {
	nb, na := defaultWindow()
	ca := newTestCert(t, "test anchor CA", true, nil, nb, na)
	leaf := newTestCert(t, "test signer", false, ca, nb, na)

	m := signedManifest(t, leaf, [][]byte{leaf.der})
	v := New(TrustPolicy{Anchors: []*x509.Certificate{ca.cert}})

	info := v.VerifyManifest(m)
	assert.Equal(t, manifest.TrustValid, info.Status)
	assert.Equal(t, "test anchor CA", info.Issuer)
	assert.Equal(t, testSerial.String(), info.SerialNumber)
}

func TestVerifyManifest_ValidViaIntermediate(t *testing.T) {
	nb, na := defaultWindow()
	root := newTestCert(t, "test root", true, nil, nb, na)
	inter := newTestCert(t, "test intermediate", true, root, nb, na)
	leaf := newTestCert(t, "test signer", false, inter, nb, na)

	m := signedManifest(t, leaf, [][]byte{leaf.der, inter.der})
	v := New(TrustPolicy{Anchors: []*x509.Certificate{root.cert}})

	info := v.VerifyManifest(m)
	assert.Equal(t, manifest.TrustValid, info.Status)
}

func TestVerifyManifest_SelfSignedAnchor(t *testing.T) {
	nb, na := defaultWindow()
	leaf := newTestCert(t, "self-signed signer", false, nil, nb, na)

	m := signedManifest(t, leaf, [][]byte{leaf.der})
	v := New(TrustPolicy{Anchors: []*x509.Certificate{leaf.cert}})

	info := v.VerifyManifest(m)
	assert.Equal(t, manifest.TrustValid, info.Status)
}

func TestVerifyManifest_UntrustedWithoutAnchor(t *testing.T) {
	nb, na := defaultWindow()
	ca := newTestCert(t, "signing CA", true, nil, nb, na)
	leaf := newTestCert(t, "test signer", false, ca, nb, na)
	otherCA := newTestCert(t, "unrelated CA", true, nil, nb, na)

	m := signedManifest(t, leaf, [][]byte{leaf.der})
	// valid signature, but the chain never reaches a configured anchor
	v := New(TrustPolicy{Anchors: []*x509.Certificate{otherCA.cert}})

	info := v.VerifyManifest(m)
	assert.Equal(t, manifest.TrustUntrusted, info.Status)
}

func TestVerifyManifest_ExpiredAtSigningTime(t *testing.T) {
	// validity window that ended before the declared signing time
	nb := testSigningTime.Add(-48 * time.Hour)
	na := testSigningTime.Add(-24 * time.Hour)
	ca := newTestCert(t, "test anchor CA", true, nil, nb, na)
	leaf := newTestCert(t, "test signer", false, ca, nb, na)

	m := signedManifest(t, leaf, [][]byte{leaf.der})
	v := New(TrustPolicy{Anchors: []*x509.Certificate{ca.cert}})

	info := v.VerifyManifest(m)
	assert.Equal(t, manifest.TrustExpired, info.Status)
}

func TestVerifyManifest_Unsigned(t *testing.T) {
	m := &manifest.Manifest{SigningTime: testSigningTime}
	v := New(TrustPolicy{})

	info := v.VerifyManifest(m)
	assert.Equal(t, manifest.TrustUnsigned, info.Status)
}

func TestVerifyManifest_MalformedEnvelope(t *testing.T) {
	m := &manifest.Manifest{
		SigningTime:    testSigningTime,
		ClaimBytes:     []byte{0xA0},
		SignatureBytes: []byte("not a COSE envelope"),
	}
	v := New(TrustPolicy{})

	info := v.VerifyManifest(m)
	assert.Equal(t, manifest.TrustMalformed, info.Status)
}

func TestVerifyManifest_MissingSigningTimeFailsClosed(t *testing.T) {
	nb, na := defaultWindow()
	leaf := newTestCert(t, "test signer", false, nil, nb, na)

	m := signedManifest(t, leaf, [][]byte{leaf.der})
	m.SigningTime = time.Time{}
	v := New(TrustPolicy{Anchors: []*x509.Certificate{leaf.cert}})

	info := v.VerifyManifest(m)
	assert.Equal(t, manifest.TrustUntrusted, info.Status)
}

func TestVerifyManifest_TamperedClaim(t *testing.T) {
	nb, na := defaultWindow()
	leaf := newTestCert(t, "test signer", false, nil, nb, na)

	m := signedManifest(t, leaf, [][]byte{leaf.der})
	m.ClaimBytes = append([]byte{}, m.ClaimBytes...)
	m.ClaimBytes[len(m.ClaimBytes)-1] ^= 0xFF
	v := New(TrustPolicy{Anchors: []*x509.Certificate{leaf.cert}})

	info := v.VerifyManifest(m)
	assert.Equal(t, manifest.TrustUntrusted, info.Status)
}

func TestVerifyManifest_ChainDepthBound(t *testing.T) {
	nb, na := defaultWindow()
	root := newTestCert(t, "test root", true, nil, nb, na)
	interA := newTestCert(t, "intermediate a", true, root, nb, na)
	interB := newTestCert(t, "intermediate b", true, interA, nb, na)
	leaf := newTestCert(t, "test signer", false, interB, nb, na)

	m := signedManifest(t, leaf, [][]byte{leaf.der, interB.der, interA.der})

	// generous depth reaches the root
	v := New(TrustPolicy{Anchors: []*x509.Certificate{root.cert}, MaxChainDepth: 5})
	assert.Equal(t, manifest.TrustValid, v.VerifyManifest(m).Status)

	// a one-hop bound cannot, and the walk must stop as malformed
	v = New(TrustPolicy{Anchors: []*x509.Certificate{root.cert}, MaxChainDepth: 1})
	assert.Equal(t, manifest.TrustMalformed, v.VerifyManifest(m).Status)
}

func TestParseAnchorsPEM(t *testing.T) {
	nb, na := defaultWindow()
	ca := newTestCert(t, "test anchor CA", true, nil, nb, na)

	bundle := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: ca.der})
	anchors, err := ParseAnchorsPEM(bundle)
	assert.Nil(t, err)
	assert.Len(t, anchors, 1)
	assert.Equal(t, ca.cert.Raw, anchors[0].Raw)

	_, err = ParseAnchorsPEM([]byte("no certificates here"))
	assert.ErrorIs(t, err, ErrNoAnchors)
}
