// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable errors and a catalog of Markdown guidance
// for the failures bpm reports: unresolvable dependencies, plugin failures,
// routing misses and invalid descriptors or configuration.
package issue
