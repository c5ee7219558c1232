/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

// Package manifest decodes C2PA manifest stores from their JUMBF/CBOR
// byte form into immutable structures. Decoding is a pure function:
// identical bytes always yield an identical store.
package manifest

import (
	"time"
)

// Well-known assertion labels.
const (
	LabelActions = "c2pa.actions"
)

// TrustStatus is the verifier's judgement of one manifest's signature.
// It is computed after decoding and recorded on the manifest's
// SignatureInfo; it is never part of the encoded store.
type TrustStatus string

const (
	TrustValid     TrustStatus = "valid"
	TrustUntrusted TrustStatus = "untrusted"
	TrustExpired   TrustStatus = "expired"
	TrustMalformed TrustStatus = "malformed"
	TrustUnsigned  TrustStatus = "unsigned"
)

// Store is a decoded manifest store. Labels preserves the order in
// which manifests appeared in the byte stream; Manifests is keyed by
// manifest label. ActiveLabel is always a key of Manifests.
type Store struct {
	ActiveLabel string
	Labels      []string
	Manifests   map[string]*Manifest
}

// Active returns the active manifest. The decoder guarantees the
// lookup succeeds.
func (s *Store) Active() *Manifest {
	return s.Manifests[s.ActiveLabel]
}

// Manifest is one claim plus its assertions and signature. All fields
// are fixed at decode time.
type Manifest struct {
	Label          string
	ClaimGenerator string
	Title          string
	Format         string
	InstanceID     string

	// SigningTime is the claim's declared signing time. Zero when the
	// claim does not declare one; the verifier fails closed in that
	// case.
	SigningTime time.Time

	Assertions []Assertion

	// ClaimBytes is the exact CBOR encoding of the claim as found in
	// the store. Signatures are verified over these bytes, never over
	// a re-encoding.
	ClaimBytes []byte

	// SignatureBytes is the COSE_Sign1 envelope, empty for unsigned
	// manifests.
	SignatureBytes []byte

	// SignatureInfo is filled in by the verifier, nil until then.
	SignatureInfo *SignatureInfo
}

// Assertion is a labeled, typed payload. Payload is a closed variant:
// ActionsPayload for c2pa.actions, OpaquePayload for everything else.
type Assertion struct {
	Label   string
	Payload Payload
}

// Payload is the closed set of assertion payload variants.
type Payload interface {
	isPayload()
}

// ActionsPayload is the decoded form of a c2pa.actions assertion.
// Action order is the order found in the encoding.
type ActionsPayload struct {
	Actions []Action
}

func (ActionsPayload) isPayload() {}

// OpaquePayload preserves an assertion with an unrecognized label
// exactly as found, for forward compatibility.
type OpaquePayload struct {
	// MediaType is "application/cbor" or "application/json" depending
	// on the content box that carried the payload.
	MediaType string
	Data      []byte
}

func (OpaquePayload) isPayload() {}

// Action is one entry of a c2pa.actions assertion.
type Action struct {
	Action            string
	When              time.Time
	SoftwareAgent     string
	DigitalSourceType string
	Parameters        map[string]any
}

// SignatureInfo describes the signer of a manifest. SerialNumber is a
// decimal string: RFC 5280 serials may be up to 20 octets, past any
// fixed-width integer.
type SignatureInfo struct {
	Issuer       string
	SerialNumber string
	Status       TrustStatus
}
