// Copyright (c) stint-run 2026. All rights reserved.
// SPDX-License-Identifier: MIT

// Package color decides whether terminal output should be colourized. The
// NO_COLOR and FORCE_COLOR environment variables override terminal detection,
// in that order.
package color

import (
	"os"

	"golang.org/x/term"
)

const (
	// NoColor is the environment variable that disables colour output.
	NoColor = "NO_COLOR"
	// ForceColor is the environment variable that forces colour output.
	ForceColor = "FORCE_COLOR"
)

// Enabled reports whether colour output is appropriate for the given file,
// typically os.Stdout or os.Stderr.
func Enabled(f *os.File) bool {
	if os.Getenv(NoColor) != "" {
		return false
	}

	if os.Getenv(ForceColor) != "" {
		return true
	}

	return term.IsTerminal(int(f.Fd()))
}
