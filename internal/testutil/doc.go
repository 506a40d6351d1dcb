// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helpers that fail the test on error, reducing
// boilerplate in tests that work with package trees on disk.
//
// Package trees themselves are built with the pkgtest subpackage.
package testutil
