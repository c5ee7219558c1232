/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package manifest

import (
	"bytes"
	"crypto/sha256"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/provenance-lab/c2pa-inspect/internal/jumbf"
)

// JUMBF content types for the manifest store box tree. The 12-byte
// suffix is the shared JUMBF vendor suffix; the first four bytes name
// the box kind.
var (
	uuidStore          = contentType("c2pa")
	uuidManifest       = contentType("c2ma")
	uuidAssertionStore = contentType("c2as")
	uuidClaim          = contentType("c2cl")
	uuidSignature      = contentType("c2cs")
	uuidIndex          = contentType("c2ix")
	uuidCBOR           = contentType("cbor")
	uuidJSON           = contentType("json")
)

func contentType(tag string) jumbf.UUID {
	var u jumbf.UUID
	copy(u[:4], tag)
	copy(u[4:], []byte{0x00, 0x11, 0x00, 0x10, 0x80, 0x00, 0x00, 0xAA, 0x00, 0x38, 0x9B, 0x71})
	return u
}

// Superbox labels inside one manifest.
const (
	boxLabelAssertions = "c2pa.assertions"
	boxLabelClaim      = "c2pa.claim"
	boxLabelSignature  = "c2pa.signature"
	boxLabelIndex      = "c2pa.index"
)

// claim is the CBOR document inside the c2pa.claim box.
type claim struct {
	ClaimGenerator string         `cbor:"claim_generator"`
	Title          string         `cbor:"dc:title"`
	Format         string         `cbor:"dc:format"`
	InstanceID     string         `cbor:"instanceID"`
	SignatureTime  string         `cbor:"signature_time,omitempty"`
	Assertions     []assertionRef `cbor:"assertions"`
}

// assertionRef binds an assertion label to the SHA-256 of its payload,
// so the claim signature covers every assertion.
type assertionRef struct {
	Label string `cbor:"label"`
	Hash  []byte `cbor:"hash"`
}

// storeIndex is the CBOR document inside the optional c2pa.index box.
type storeIndex struct {
	ActiveManifest string `cbor:"activeManifest"`
}

type actionsDoc struct {
	Actions []actionDoc `cbor:"actions"`
}

type actionDoc struct {
	Action            string         `cbor:"action"`
	When              string         `cbor:"when"`
	SoftwareAgent     string         `cbor:"softwareAgent,omitempty"`
	DigitalSourceType string         `cbor:"digitalSourceType,omitempty"`
	Parameters        map[string]any `cbor:"parameters,omitempty"`
}

// DecodeStore parses the JUMBF byte stream extracted from a container
// into a Store. Manifests and assertions may appear in any order;
// decoded order is preserved exactly. All structural problems are
// reported as *DecodeError.
func DecodeStore(data []byte) (*Store, error) {
	root, err := jumbf.Parse(data)
	if err != nil {
		return nil, decodeErrorf(err, "invalid JUMBF framing")
	}
	if root.Type != jumbf.TypeSuperbox || root.ContentType != uuidStore || root.Label != "c2pa" {
		return nil, decodeErrorf(nil, "top-level box is not a c2pa manifest store")
	}

	store := &Store{Manifests: make(map[string]*Manifest)}
	haveIndex := false

	for _, child := range root.Children {
		if child.Type != jumbf.TypeSuperbox {
			continue
		}
		switch child.ContentType {
		case uuidManifest:
			m, err := decodeManifest(child)
			if err != nil {
				return nil, err
			}
			if _, dup := store.Manifests[m.Label]; dup {
				return nil, decodeErrorf(nil, "duplicate manifest label %q", m.Label)
			}
			store.Labels = append(store.Labels, m.Label)
			store.Manifests[m.Label] = m
		case uuidIndex:
			var idx storeIndex
			if err := decodeCBORLeaf(child, &idx); err != nil {
				return nil, err
			}
			store.ActiveLabel = idx.ActiveManifest
			haveIndex = true
		default:
			// Unknown store-level boxes are ignored, same forward
			// compatibility stance as unknown assertion labels.
		}
	}

	if len(store.Labels) == 0 {
		return nil, decodeErrorf(nil, "store contains no manifests")
	}
	if !haveIndex {
		// Without an index the most recently appended manifest is
		// active.
		store.ActiveLabel = store.Labels[len(store.Labels)-1]
	}
	if _, ok := store.Manifests[store.ActiveLabel]; !ok {
		return nil, decodeErrorf(nil, "active manifest %q is not present in the store", store.ActiveLabel)
	}
	return store, nil
}

func decodeManifest(box *jumbf.Box) (*Manifest, error) {
	label := box.Label
	if !strings.HasPrefix(label, "urn:uuid:") {
		return nil, decodeErrorf(nil, "manifest label %q is not a urn:uuid", label)
	}
	if _, err := uuid.Parse(label); err != nil {
		return nil, decodeErrorf(err, "manifest label %q is not a urn:uuid", label)
	}

	claimBox := box.FindChild(boxLabelClaim)
	if claimBox == nil {
		return nil, decodeErrorf(nil, "manifest %q has no claim", label)
	}
	leafType, claimBytes, err := claimBox.Leaf()
	if err != nil || leafType != jumbf.TypeCBOR {
		return nil, decodeErrorf(err, "manifest %q claim is not a CBOR box", label)
	}

	var c claim
	if err := cbor.Unmarshal(claimBytes, &c); err != nil {
		return nil, decodeErrorf(err, "manifest %q claim is not decodable", label)
	}
	if c.ClaimGenerator == "" {
		return nil, decodeErrorf(nil, "manifest %q claim has no claim_generator", label)
	}
	if c.InstanceID == "" {
		return nil, decodeErrorf(nil, "manifest %q claim has no instanceID", label)
	}

	m := &Manifest{
		Label:          label,
		ClaimGenerator: c.ClaimGenerator,
		Title:          c.Title,
		Format:         c.Format,
		InstanceID:     c.InstanceID,
		ClaimBytes:     claimBytes,
	}

	if c.SignatureTime != "" {
		t, err := time.Parse(time.RFC3339, c.SignatureTime)
		if err != nil {
			return nil, decodeErrorf(err, "manifest %q has malformed signature_time", label)
		}
		m.SigningTime = t
	}

	if err := decodeAssertions(box, m, c.Assertions); err != nil {
		return nil, err
	}

	if sigBox := box.FindChild(boxLabelSignature); sigBox != nil {
		leafType, payload, err := sigBox.Leaf()
		if err != nil || leafType != jumbf.TypeCBOR {
			return nil, decodeErrorf(err, "manifest %q signature is not a CBOR box", label)
		}
		m.SignatureBytes = payload
	}
	return m, nil
}

// decodeAssertions resolves the claim's assertion references against
// the assertion store. The claim's reference order defines assertion
// order; every stored assertion must be referenced and every reference
// resolved, with a matching payload digest.
func decodeAssertions(box *jumbf.Box, m *Manifest, refs []assertionRef) error {
	storeBox := box.FindChild(boxLabelAssertions)
	if storeBox == nil {
		return decodeErrorf(nil, "manifest %q has no assertion store", m.Label)
	}

	type stored struct {
		mediaType string
		data      []byte
	}
	byLabel := make(map[string]stored, len(storeBox.Children))
	for _, a := range storeBox.Children {
		if a.Type != jumbf.TypeSuperbox {
			continue
		}
		if _, dup := byLabel[a.Label]; dup {
			return decodeErrorf(nil, "manifest %q has duplicate assertion %q", m.Label, a.Label)
		}
		leafType, data, err := a.Leaf()
		if err != nil {
			return decodeErrorf(err, "manifest %q assertion %q has no payload", m.Label, a.Label)
		}
		var mediaType string
		switch leafType {
		case jumbf.TypeCBOR:
			mediaType = "application/cbor"
		case jumbf.TypeJSON:
			mediaType = "application/json"
		default:
			return decodeErrorf(nil, "manifest %q assertion %q has unsupported content box %q", m.Label, a.Label, leafType)
		}
		byLabel[a.Label] = stored{mediaType: mediaType, data: data}
	}

	if len(refs) != len(byLabel) {
		return decodeErrorf(nil, "manifest %q claim references %d assertions, store holds %d", m.Label, len(refs), len(byLabel))
	}

	for _, ref := range refs {
		a, ok := byLabel[ref.Label]
		if !ok {
			return decodeErrorf(nil, "manifest %q claim references missing assertion %q", m.Label, ref.Label)
		}
		sum := sha256.Sum256(a.data)
		if !bytes.Equal(sum[:], ref.Hash) {
			return decodeErrorf(nil, "manifest %q assertion %q digest mismatch", m.Label, ref.Label)
		}

		assertion := Assertion{Label: ref.Label}
		if ref.Label == LabelActions && a.mediaType == "application/cbor" {
			payload, err := decodeActions(m.Label, a.data)
			if err != nil {
				return err
			}
			assertion.Payload = payload
		} else {
			assertion.Payload = OpaquePayload{MediaType: a.mediaType, Data: a.data}
		}
		m.Assertions = append(m.Assertions, assertion)
	}
	return nil
}

func decodeActions(manifestLabel string, data []byte) (ActionsPayload, error) {
	var doc actionsDoc
	if err := cbor.Unmarshal(data, &doc); err != nil {
		return ActionsPayload{}, decodeErrorf(err, "manifest %q has malformed c2pa.actions payload", manifestLabel)
	}
	if len(doc.Actions) == 0 {
		return ActionsPayload{}, decodeErrorf(nil, "manifest %q c2pa.actions payload is empty", manifestLabel)
	}

	out := ActionsPayload{Actions: make([]Action, 0, len(doc.Actions))}
	for _, a := range doc.Actions {
		if a.Action == "" {
			return ActionsPayload{}, decodeErrorf(nil, "manifest %q action entry has no action name", manifestLabel)
		}
		when, err := time.Parse(time.RFC3339, a.When)
		if err != nil {
			return ActionsPayload{}, decodeErrorf(err, "manifest %q action %q has malformed timestamp", manifestLabel, a.Action)
		}
		out.Actions = append(out.Actions, Action{
			Action:            a.Action,
			When:              when,
			SoftwareAgent:     a.SoftwareAgent,
			DigitalSourceType: a.DigitalSourceType,
			Parameters:        a.Parameters,
		})
	}
	return out, nil
}

func decodeCBORLeaf(box *jumbf.Box, v any) error {
	leafType, payload, err := box.Leaf()
	if err != nil || leafType != jumbf.TypeCBOR {
		return decodeErrorf(err, "box %q is not a CBOR box", box.Label)
	}
	if err := cbor.Unmarshal(payload, v); err != nil {
		return decodeErrorf(err, "box %q payload is not decodable", box.Label)
	}
	return nil
}
