// Copyright (c) stint-run 2026. All rights reserved.
// SPDX-License-Identifier: MIT

// Package progress carries real-time updates out of the batch engine for
// monitoring surfaces such as the TUI.
package progress

import "time"

// EventType indicates what happened.
type EventType int

const (
	// EventBatchStarted indicates supervision of a batch has begun.
	EventBatchStarted EventType = iota
	// EventWorkerSpawned indicates a worker process has been started.
	EventWorkerSpawned
	// EventWorkerExited indicates a worker process has returned.
	EventWorkerExited
	// EventOperation indicates one operation invocation completed or yielded.
	EventOperation
	// EventSetAdvanced indicates the cursor moved to a new set.
	EventSetAdvanced
	// EventBatchFinished indicates the whole batch reached 100%.
	EventBatchFinished
	// EventBatchFailed indicates supervision ended without completion.
	EventBatchFailed
)

// String implements the Stringer interface for EventType.
func (et EventType) String() string {
	switch et {
	case EventBatchStarted:
		return "batch started"
	case EventWorkerSpawned:
		return "worker spawned"
	case EventWorkerExited:
		return "worker exited"
	case EventOperation:
		return "operation"
	case EventSetAdvanced:
		return "set advanced"
	case EventBatchFinished:
		return "batch finished"
	case EventBatchFailed:
		return "batch failed"
	default:
		return "unknown"
	}
}

// Event is one progress update.
type Event struct {
	Type       EventType
	BatchID    string
	SetID      string
	Message    string
	Percentage float64
	Timestamp  time.Time
}

// Reporter receives events. Implementations must not block the engine.
type Reporter interface {
	Report(event Event)
	Close()
}

// NullReporter discards all events.
type NullReporter struct{}

// Report implements Reporter.
func (NullReporter) Report(Event) {}

// Close implements Reporter.
func (NullReporter) Close() {}

// ChannelReporter forwards events to a buffered channel, dropping events if
// the receiver falls behind.
type ChannelReporter struct {
	ch chan Event
}

// NewChannelReporter creates a ChannelReporter with the given buffer size.
func NewChannelReporter(buffer int) *ChannelReporter {
	return &ChannelReporter{ch: make(chan Event, buffer)}
}

// Events returns the receive side of the channel.
func (r *ChannelReporter) Events() <-chan Event {
	return r.ch
}

// Report implements Reporter.
func (r *ChannelReporter) Report(e Event) {
	select {
	case r.ch <- e:
	default:
	}
}

// Close implements Reporter.
func (r *ChannelReporter) Close() {
	close(r.ch)
}
