// SPDX-License-Identifier: MPL-2.0

// Package config handles bpm configuration using Viper with CUE as the file format.
//
// Values are layered, lowest first: built-in defaults, config.cue from the
// user config directory (or the base directory when the user has none), a
// .env file in the base directory, then BPM_* environment variables. A key
// such as ui.verbose is overridden by BPM_UI_VERBOSE.
//
// Config files are validated against the embedded #Config CUE schema
// (config_schema.cue) before being merged.
package config
