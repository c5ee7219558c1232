/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package resources

import (
	_ "embed"
)

var (
	// DemoTrustAnchorsPEM is the built-in anchor bundle used when no
	// trust_anchors are configured. It only trusts the demo signing
	// chain shipped with this repository; production use should
	// configure real anchors.
	//go:embed demo_trust_anchors.pem
	DemoTrustAnchorsPEM []byte

	//go:embed example_config.toml
	ExampleConfig []byte
)
