// SPDX-License-Identifier: MPL-2.0

// Package bpmpkg loads and edits bpm package descriptors (package.json) and
// projects.
//
// A package is a directory holding a package.json plus the directories it
// declares (lib, tests, resources and so on). A project is the consuming
// package: it additionally owns vendored packages under packages/, a cached
// dependency manifest and the build preview under .bpm/.
//
// Descriptors are validated against an embedded CUE schema and kept as an
// ordered document, so that rewriting a descriptor after an edit preserves
// key order and any fields bpm does not understand.
package bpmpkg
