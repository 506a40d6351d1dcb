// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"io"
	"log/slog"

	"github.com/charmbracelet/log"
)

// setupLogging routes the slog records of every package through a
// charmbracelet logger writing to w. Debug records appear only when verbose.
func setupLogging(w io.Writer, verbose bool) *log.Logger {
	level := log.WarnLevel
	if verbose {
		level = log.DebugLevel
	}
	logger := log.NewWithOptions(w, log.Options{
		Prefix: "bpm",
		Level:  level,
	})
	slog.SetDefault(slog.New(logger))
	return logger
}
