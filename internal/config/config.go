/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package config

import (
	"fmt"
	"log"

	"github.com/BurntSushi/toml"
)

// Config captures the tunables of an inspection run. Values are passed
// down explicitly; nothing reads ambient process state.
type Config struct {
	// TrustAnchorPaths lists PEM bundles of anchor certificates. When
	// empty the embedded demo anchor is used.
	TrustAnchorPaths []string `toml:"trust_anchors"`

	// MaxChainDepth bounds the certificate chain walk. Zero means the
	// verifier default.
	MaxChainDepth int `toml:"max_chain_depth"`

	// ArchivePath enables the sqlite report archive when non-empty.
	ArchivePath string `toml:"archive_path"`

	Logger *log.Logger `toml:"-"`
}

// Load reads a TOML config file. See resources/example_config.toml.
func Load(path string) (*Config, error) {
	var conf Config
	if _, err := toml.DecodeFile(path, &conf); err != nil {
		return nil, fmt.Errorf("failed to decode config (%s): %w", path, err)
	}
	return &conf, nil
}
