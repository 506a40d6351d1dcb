// SPDX-License-Identifier: MPL-2.0

// Command bpm is a browser package manager and asset bundler.
package main

import cmd "github.com/bpmkit/bpm/cmd/bpm"

func main() {
	cmd.Execute()
}
