/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/provenance-lab/c2pa-inspect/internal/config"
	"github.com/provenance-lab/c2pa-inspect/internal/container"
	"github.com/provenance-lab/c2pa-inspect/internal/inspect"
	"github.com/provenance-lab/c2pa-inspect/internal/render"
)

var (
	path        string
	format      string
	configPath  string
	archivePath string
	labelQuery  string
	actionQuery string
	quiet       bool
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("c2pa-inspect", flag.ContinueOnError)
	fs.StringVar(&path, "path", "", "path to the media file to inspect")
	fs.StringVar(&format, "format", "", "container format (jpeg, png, bmff); detected from magic bytes when empty")
	fs.StringVar(&configPath, "config", "", "path to a TOML config file")
	fs.StringVar(&archivePath, "archive", "", "sqlite database to record reports in (overrides config)")
	fs.StringVar(&labelQuery, "label", "", "print only the manifest with this label")
	fs.StringVar(&actionQuery, "action", "", "print only actions with this name")
	fs.BoolVar(&quiet, "quiet", false, "suppress output, report via exit code only")

	if err := fs.Parse(args); err != nil {
		// Error is already printed
		os.Exit(1)
	}
	if path == "" {
		fs.PrintDefaults()
		return fmt.Errorf("\nprovide a media file with --path")
	}

	var conf *config.Config
	if configPath != "" {
		var err error
		conf, err = config.Load(configPath)
		if err != nil {
			return err
		}
	} else {
		conf = &config.Config{}
	}
	if archivePath != "" {
		conf.ArchivePath = archivePath
	}
	logOut := io.Writer(os.Stderr)
	if quiet {
		logOut = io.Discard
	}
	conf.Logger = log.New(logOut, "", log.LstdFlags)

	ctx := context.Background()
	ins, err := inspect.New(ctx, conf)
	if err != nil {
		return err
	}
	defer ins.Close()

	report, err := ins.Inspect(ctx, path, container.Format(format))
	if err != nil {
		return err
	}
	if !report.Ready() {
		return report.Err
	}

	if quiet {
		return nil
	}

	switch {
	case labelQuery != "":
		out, err := report.View.RenderManifest(labelQuery)
		if err != nil {
			return err
		}
		fmt.Println(out)
	case actionQuery != "":
		out, err := render.RenderActions(report.View.ActionsNamed(actionQuery))
		if err != nil {
			return err
		}
		fmt.Println(out)
	default:
		fmt.Println(report.Output)
	}
	return nil
}
