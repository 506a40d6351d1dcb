// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the CLI commands for bpm.
//
// This package implements the Cobra command hierarchy for the bpm CLI: the
// dependency commands (add, remove, deps), the build commands (build,
// manifest, preview) and the search, validate and config commands.
package cmd
