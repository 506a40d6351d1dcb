// SPDX-License-Identifier: MPL-2.0

// Package pkgtest builds bpm package trees on disk for tests.
package pkgtest
