// Copyright (c) stint-run 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package worker

import "runtime"

// memoryUsage reports the bytes of memory the Go runtime has obtained from
// the operating system. The ceiling check doubles this as a safety margin; it
// is an advisory heuristic, not a hard limit. A package variable so tests can
// stub it.
var memoryUsage = func() uint64 {
	var ms runtime.MemStats

	runtime.ReadMemStats(&ms)

	return ms.Sys
}
