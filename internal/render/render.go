/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

// Package render is the read-only facade over a decoded, verified
// manifest store: label/action/time-range queries and a canonical JSON
// rendering. Nothing in this package mutates the store.
package render

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/provenance-lab/c2pa-inspect/internal/manifest"
)

// View wraps a store for querying and rendering.
type View struct {
	store *manifest.Store
}

func NewView(s *manifest.Store) *View {
	return &View{store: s}
}

// Store exposes the underlying store for callers that want raw
// traversal.
func (v *View) Store() *manifest.Store {
	return v.store
}

// Manifest looks a manifest up by label, nil when absent.
func (v *View) Manifest(label string) *manifest.Manifest {
	return v.store.Manifests[label]
}

// Active returns the store's active manifest.
func (v *View) Active() *manifest.Manifest {
	return v.store.Active()
}

// ActionRef ties an action back to the manifest that asserted it.
type ActionRef struct {
	ManifestLabel string
	Action        manifest.Action
}

// ActionsNamed returns every action with the given name, in store and
// assertion order.
func (v *View) ActionsNamed(name string) []ActionRef {
	return v.collectActions(func(a manifest.Action) bool {
		return a.Action == name
	})
}

// ActionsBetween returns every action whose timestamp falls in
// [from, to], in store and assertion order.
func (v *View) ActionsBetween(from, to time.Time) []ActionRef {
	return v.collectActions(func(a manifest.Action) bool {
		return !a.When.Before(from) && !a.When.After(to)
	})
}

func (v *View) collectActions(keep func(manifest.Action) bool) []ActionRef {
	var out []ActionRef
	for _, label := range v.store.Labels {
		m := v.store.Manifests[label]
		for _, assertion := range m.Assertions {
			actions, ok := assertion.Payload.(manifest.ActionsPayload)
			if !ok {
				continue
			}
			for _, a := range actions.Actions {
				if keep(a) {
					out = append(out, ActionRef{ManifestLabel: label, Action: a})
				}
			}
		}
	}
	return out
}

// JSON document shapes. Struct fields give a fixed key order and the
// manifest/assertion arrays keep insertion order, so identical stores
// render byte-identically.

type storeDoc struct {
	ActiveManifest string        `json:"active_manifest"`
	Manifests      []manifestDoc `json:"manifests"`
}

type manifestDoc struct {
	Label          string         `json:"label"`
	ClaimGenerator string         `json:"claim_generator"`
	Title          string         `json:"title,omitempty"`
	Format         string         `json:"format,omitempty"`
	InstanceID     string         `json:"instance_id"`
	SigningTime    string         `json:"signing_time,omitempty"`
	SignatureInfo  *signatureDoc  `json:"signature_info"`
	Assertions     []assertionDoc `json:"assertions"`
}

type signatureDoc struct {
	Issuer       string `json:"issuer,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
	TrustStatus  string `json:"trust_status"`
}

type assertionDoc struct {
	Label string `json:"label"`
	Data  any    `json:"data"`
}

type actionDoc struct {
	Action            string `json:"action"`
	When              string `json:"when"`
	SoftwareAgent     string `json:"software_agent,omitempty"`
	DigitalSourceType string `json:"digital_source_type,omitempty"`
	Parameters        any    `json:"parameters,omitempty"`
}

// Render produces the canonical JSON text for the store. Assertion and
// action order is preserved; trust status is marked on every manifest.
func (v *View) Render() (string, error) {
	doc := storeDoc{
		ActiveManifest: v.store.ActiveLabel,
		Manifests:      make([]manifestDoc, 0, len(v.store.Labels)),
	}

	for _, label := range v.store.Labels {
		m := v.store.Manifests[label]
		md := manifestDoc{
			Label:          m.Label,
			ClaimGenerator: m.ClaimGenerator,
			Title:          m.Title,
			Format:         m.Format,
			InstanceID:     m.InstanceID,
		}
		if !m.SigningTime.IsZero() {
			md.SigningTime = m.SigningTime.Format(time.RFC3339)
		}
		if m.SignatureInfo != nil {
			md.SignatureInfo = &signatureDoc{
				Issuer:       m.SignatureInfo.Issuer,
				SerialNumber: m.SignatureInfo.SerialNumber,
				TrustStatus:  string(m.SignatureInfo.Status),
			}
		}
		for _, a := range m.Assertions {
			data, err := assertionData(a)
			if err != nil {
				return "", err
			}
			md.Assertions = append(md.Assertions, assertionDoc{Label: a.Label, Data: data})
		}
		doc.Manifests = append(doc.Manifests, md)
	}

	pretty, err := json.MarshalIndent(&doc, "", "  ")
	if err != nil {
		return "", err
	}
	return string(pretty), nil
}

// RenderManifest renders a single manifest by label, same document
// shape as the store rendering.
func (v *View) RenderManifest(label string) (string, error) {
	m := v.store.Manifests[label]
	if m == nil {
		return "", fmt.Errorf("no manifest labeled %q", label)
	}
	md := manifestDoc{
		Label:          m.Label,
		ClaimGenerator: m.ClaimGenerator,
		Title:          m.Title,
		Format:         m.Format,
		InstanceID:     m.InstanceID,
	}
	if !m.SigningTime.IsZero() {
		md.SigningTime = m.SigningTime.Format(time.RFC3339)
	}
	if m.SignatureInfo != nil {
		md.SignatureInfo = &signatureDoc{
			Issuer:       m.SignatureInfo.Issuer,
			SerialNumber: m.SignatureInfo.SerialNumber,
			TrustStatus:  string(m.SignatureInfo.Status),
		}
	}
	for _, a := range m.Assertions {
		data, err := assertionData(a)
		if err != nil {
			return "", err
		}
		md.Assertions = append(md.Assertions, assertionDoc{Label: a.Label, Data: data})
	}
	pretty, err := json.MarshalIndent(&md, "", "  ")
	if err != nil {
		return "", err
	}
	return string(pretty), nil
}

// RenderActions renders a query result as JSON, preserving order.
func RenderActions(refs []ActionRef) (string, error) {
	type refDoc struct {
		Manifest string    `json:"manifest"`
		Action   actionDoc `json:"action"`
	}
	docs := make([]refDoc, 0, len(refs))
	for _, ref := range refs {
		doc := actionDoc{
			Action:            ref.Action.Action,
			When:              ref.Action.When.Format(time.RFC3339),
			SoftwareAgent:     ref.Action.SoftwareAgent,
			DigitalSourceType: ref.Action.DigitalSourceType,
		}
		if ref.Action.Parameters != nil {
			params, err := normaliseCBORForJSON(ref.Action.Parameters)
			if err != nil {
				return "", err
			}
			doc.Parameters = params
		}
		docs = append(docs, refDoc{Manifest: ref.ManifestLabel, Action: doc})
	}
	pretty, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return "", err
	}
	return string(pretty), nil
}

func assertionData(a manifest.Assertion) (any, error) {
	switch p := a.Payload.(type) {
	case manifest.ActionsPayload:
		out := make([]actionDoc, 0, len(p.Actions))
		for _, act := range p.Actions {
			doc := actionDoc{
				Action:            act.Action,
				When:              act.When.Format(time.RFC3339),
				SoftwareAgent:     act.SoftwareAgent,
				DigitalSourceType: act.DigitalSourceType,
			}
			if act.Parameters != nil {
				// CBOR-decoded parameter values can hold map[any]any
				// nests that encoding/json rejects.
				params, err := normaliseCBORForJSON(act.Parameters)
				if err != nil {
					return nil, fmt.Errorf("render assertion %q: %w", a.Label, err)
				}
				doc.Parameters = params
			}
			out = append(out, doc)
		}
		return out, nil
	case manifest.OpaquePayload:
		switch p.MediaType {
		case "application/json":
			var v any
			if err := json.Unmarshal(p.Data, &v); err != nil {
				return nil, fmt.Errorf("render assertion %q: %w", a.Label, err)
			}
			return v, nil
		default:
			var v any
			if err := cbor.Unmarshal(p.Data, &v); err != nil {
				return nil, fmt.Errorf("render assertion %q: %w", a.Label, err)
			}
			return normaliseCBORForJSON(v)
		}
	default:
		return nil, fmt.Errorf("render assertion %q: unknown payload variant", a.Label)
	}
}
