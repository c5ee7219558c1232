/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package verify

import (
	"crypto"
	"io"

	cose "github.com/veraison/go-cose"
)

// SignClaim produces the detached COSE_Sign1 envelope over a claim's
// exact CBOR bytes, carrying the signer's DER certificate chain (leaf
// first) in the protected x5chain header. This is the writer-side
// counterpart of VerifyManifest; the repository uses it for fixtures
// and round-trip checks, embedding into media files stays out of
// scope.
func SignClaim(rand io.Reader, signer crypto.Signer, alg cose.Algorithm, chainDER [][]byte, claimBytes []byte) ([]byte, error) {
	coseSigner, err := cose.NewSigner(alg, signer)
	if err != nil {
		return nil, err
	}

	msg := cose.NewSign1Message()
	msg.Headers.Protected.SetAlgorithm(alg)
	msg.Headers.Protected[cose.HeaderLabelX5Chain] = chainDER
	msg.Payload = claimBytes

	if err := msg.Sign(rand, nil, coseSigner); err != nil {
		return nil, err
	}

	// Detach the payload: the claim travels in its own box.
	msg.Payload = nil
	return msg.MarshalCBOR()
}
