// Copyright (c) 2025 The coinview developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/decred/slog"
	"github.com/jrick/logrotate/rotator"

	"github.com/sidechainlabs/coinview/chainstate"
	"github.com/sidechainlabs/coinview/store"
)

// logWriter implements io.Writer and sends written data to both standard
// output and the rotating log file, mirroring dcrd's root logWriter.
type logWriter struct{}

func (logWriter) Write(p []byte) (n int, err error) {
	os.Stdout.Write(p)
	if logRotator != nil {
		logRotator.Write(p)
	}
	return len(p), nil
}

var (
	backendLog = slog.NewBackend(logWriter{})
	logRotator *rotator.Rotator

	ctlLog = backendLog.Logger("CTL")
)

// initLogRotator opens logFile for writing, rolling any existing log.
func initLogRotator(logFile string) error {
	logDir := filepath.Dir(logFile)
	if err := os.MkdirAll(logDir, 0700); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	r, err := rotator.New(logFile, 10*1024, false, 3)
	if err != nil {
		return fmt.Errorf("failed to create file rotator: %w", err)
	}
	logRotator = r
	return nil
}

// setLogLevel parses levelStr and applies it to every logger this command
// wires, including the chainstate and store package loggers.
func setLogLevel(levelStr string) {
	level, ok := slog.LevelFromString(levelStr)
	if !ok {
		level = slog.LevelInfo
	}

	ctlLog.SetLevel(level)

	chstLog := backendLog.Logger("CHST")
	chstLog.SetLevel(level)
	chainstate.UseLogger(chstLog)

	storLog := backendLog.Logger("STOR")
	storLog.SetLevel(level)
	store.UseLogger(storLog)
}
