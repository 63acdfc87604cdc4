// Copyright (c) 2025 The coinview developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	flags "github.com/jessevdk/go-flags"
)

const (
	defaultDataDir = "coinviewctl_data"
	defaultLogFile = "coinviewctl.log"
)

// config defines the command-line options coinviewctl accepts. It is
// intentionally small: coinviewctl is a read-only inspector, not a node.
type config struct {
	DataDir string `short:"b" long:"datadir" description:"Directory holding the leveldb chain-state database to inspect"`
	LogFile string `short:"l" long:"logfile" description:"File to write debug logs to"`
	Debug   string `short:"d" long:"debuglevel" description:"Logging level: trace, debug, info, warn, error, critical"`
	ScId    string `long:"scid" description:"If set, print full detail for a single sidechain id instead of summary stats"`
}

// loadConfig parses the command line into a config, applying defaults for
// any flag the caller did not set.
func loadConfig() (*config, error) {
	cfg := config{
		DataDir: defaultDataDir,
		LogFile: defaultLogFile,
		Debug:   "info",
	}

	parser := flags.NewParser(&cfg, flags.Default)
	parser.Usage = "[OPTIONS]"
	_, err := parser.Parse()
	if err != nil {
		var e *flags.Error
		if errors.As(err, &e) && e.Type == flags.ErrHelp {
			os.Exit(0)
		}
		return nil, err
	}

	cfg.DataDir = filepath.Clean(cfg.DataDir)
	return &cfg, nil
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
