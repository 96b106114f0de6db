// Copyright (c) stint-run 2026. All rights reserved.
// SPDX-License-Identifier: MIT

package batch

import (
	"strconv"
	"strings"
	"time"
)

const percentFull = 100.0

// Progress converts completion counters into a current position and a
// percentage. A completed operation contributes 1; the in-flight operation
// contributes its reported fraction. An empty set counts as already complete.
func Progress(total, remaining int, fraction float64) (current, percentage float64) {
	if total == 0 {
		return 0, percentFull
	}

	current = float64(total-remaining) + fraction

	return current, current / float64(total) * percentFull
}

// Progress returns the set's current position and percentage.
func (s *Set) Progress() (current, percentage float64) {
	return Progress(s.Total, s.Remaining, s.Fraction)
}

// Percentage aggregates completion across all sets, for supervisor display.
// The batch is finished exactly when every set reports success, so this is
// 100 only at true completion.
func (b *Batch) Percentage() float64 {
	var total, remaining int

	var fraction float64

	for _, s := range b.Sets {
		total += s.Total
		remaining += s.Remaining
	}

	if s := b.ActiveSet(); s != nil {
		fraction = s.Fraction
	}

	_, pct := Progress(total, remaining, fraction)

	return pct
}

// StatusMessage expands the set's progress message template. Recognized
// placeholders are @current, @total, @percentage and @message.
func (s *Set) StatusMessage(message string) string {
	if s.ProgressMessage == "" {
		return message
	}

	current, pct := s.Progress()

	r := strings.NewReplacer(
		"@current", strconv.FormatFloat(current, 'f', -1, 64),
		"@total", strconv.Itoa(s.Total),
		"@percentage", strconv.FormatFloat(pct, 'f', -1, 64),
		"@message", message,
	)

	return r.Replace(s.ProgressMessage)
}

// FormatElapsed renders a duration the way job feedback expects it: second
// precision, "0s" for anything shorter.
func FormatElapsed(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Second {
		return "0s"
	}

	return d.String()
}
