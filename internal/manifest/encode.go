/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package manifest

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/provenance-lab/c2pa-inspect/internal/jumbf"
)

// The encoder exists for the reverse direction of the decoder: tests
// and fixtures build stores with it, and a decoded store re-encodes to
// the same bytes. Embedding the result into a media file is out of
// scope.

var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
}

// NewLabel returns a fresh urn:uuid manifest label.
func NewLabel() string {
	return "urn:uuid:" + uuid.NewString()
}

// NewInstanceID returns a fresh xmp:iid instance identifier.
func NewInstanceID() string {
	return "xmp:iid:" + uuid.NewString()
}

// EncodeClaim produces the deterministic CBOR claim for a manifest,
// including the digest references to its assertion payloads. Signing
// happens over exactly these bytes.
func EncodeClaim(m *Manifest) ([]byte, error) {
	refs := make([]assertionRef, 0, len(m.Assertions))
	for _, a := range m.Assertions {
		_, data, err := encodeAssertionPayload(a)
		if err != nil {
			return nil, err
		}
		sum := sha256.Sum256(data)
		refs = append(refs, assertionRef{Label: a.Label, Hash: sum[:]})
	}

	c := claim{
		ClaimGenerator: m.ClaimGenerator,
		Title:          m.Title,
		Format:         m.Format,
		InstanceID:     m.InstanceID,
		Assertions:     refs,
	}
	if !m.SigningTime.IsZero() {
		c.SignatureTime = m.SigningTime.Format(time.RFC3339)
	}
	return encMode.Marshal(&c)
}

// EncodeStore serializes a store into its JUMBF byte form. Manifests
// are written in Labels order; the active label is recorded in an
// explicit index box. A manifest's ClaimBytes are reused verbatim when
// present so that decode/encode round-trips are byte identical.
func EncodeStore(s *Store) ([]byte, error) {
	root := &jumbf.Box{
		Type:        jumbf.TypeSuperbox,
		ContentType: uuidStore,
		Label:       "c2pa",
		Requestable: true,
	}

	idxPayload, err := encMode.Marshal(&storeIndex{ActiveManifest: s.ActiveLabel})
	if err != nil {
		return nil, err
	}
	root.Children = append(root.Children, superbox(uuidIndex, boxLabelIndex, cborLeaf(idxPayload)))

	for _, label := range s.Labels {
		m, ok := s.Manifests[label]
		if !ok {
			return nil, fmt.Errorf("manifest encode: label %q has no manifest", label)
		}
		box, err := encodeManifest(m)
		if err != nil {
			return nil, err
		}
		root.Children = append(root.Children, box)
	}
	return jumbf.Encode(root), nil
}

func encodeManifest(m *Manifest) (*jumbf.Box, error) {
	box := &jumbf.Box{
		Type:        jumbf.TypeSuperbox,
		ContentType: uuidManifest,
		Label:       m.Label,
		Requestable: true,
	}

	assertions := superbox(uuidAssertionStore, boxLabelAssertions)
	for _, a := range m.Assertions {
		contentUUID, data, err := encodeAssertionPayload(a)
		if err != nil {
			return nil, err
		}
		leaf := &jumbf.Box{Type: jumbf.TypeCBOR, Payload: data}
		if contentUUID == uuidJSON {
			leaf.Type = jumbf.TypeJSON
		}
		assertions.Children = append(assertions.Children, superbox(contentUUID, a.Label, leaf))
	}
	box.Children = append(box.Children, assertions)

	claimBytes := m.ClaimBytes
	if claimBytes == nil {
		var err error
		claimBytes, err = EncodeClaim(m)
		if err != nil {
			return nil, err
		}
	}
	box.Children = append(box.Children, superbox(uuidClaim, boxLabelClaim, cborLeaf(claimBytes)))

	if len(m.SignatureBytes) > 0 {
		box.Children = append(box.Children, superbox(uuidSignature, boxLabelSignature, cborLeaf(m.SignatureBytes)))
	}
	return box, nil
}

func encodeAssertionPayload(a Assertion) (jumbf.UUID, []byte, error) {
	switch p := a.Payload.(type) {
	case ActionsPayload:
		doc := actionsDoc{Actions: make([]actionDoc, 0, len(p.Actions))}
		for _, act := range p.Actions {
			doc.Actions = append(doc.Actions, actionDoc{
				Action:            act.Action,
				When:              act.When.Format(time.RFC3339),
				SoftwareAgent:     act.SoftwareAgent,
				DigitalSourceType: act.DigitalSourceType,
				Parameters:        act.Parameters,
			})
		}
		data, err := encMode.Marshal(&doc)
		if err != nil {
			return jumbf.UUID{}, nil, err
		}
		return uuidCBOR, data, nil
	case OpaquePayload:
		if p.MediaType == "application/json" {
			return uuidJSON, p.Data, nil
		}
		return uuidCBOR, p.Data, nil
	default:
		return jumbf.UUID{}, nil, fmt.Errorf("manifest encode: assertion %q has no payload", a.Label)
	}
}

func superbox(contentType jumbf.UUID, label string, children ...*jumbf.Box) *jumbf.Box {
	return &jumbf.Box{
		Type:        jumbf.TypeSuperbox,
		ContentType: contentType,
		Label:       label,
		Requestable: true,
		Children:    children,
	}
}

func cborLeaf(payload []byte) *jumbf.Box {
	return &jumbf.Box{Type: jumbf.TypeCBOR, Payload: payload}
}
