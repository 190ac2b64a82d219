/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package peripheral implements the pseudo devices of a test setup: monitors
// capturing the values the target program writes to them, and stimulators
// feeding it a reproducible sequence of input values.
package peripheral

import (
	"github.com/pkg/errors"

	t "github.com/hyperledger-labs/fimut/pkg/types"
)

// DefaultMonitorCapacity is the number of values a monitor captures per run, unless configured otherwise.
const DefaultMonitorCapacity = 65536

// ErrCaptureFull is returned for writes to a monitor whose capture buffer is full.
// The written value is dropped.
var ErrCaptureFull = errors.New("monitor capture buffer full")

// Monitor captures the values written to its address during one run.
type Monitor struct {
	name    string
	address t.Address
	data    []uint64
	pos     int
}

// NewMonitor returns a monitor capturing at most capacity values per run.
// A capacity of zero selects DefaultMonitorCapacity.
func NewMonitor(name string, address t.Address, capacity int) *Monitor {
	if capacity <= 0 {
		capacity = DefaultMonitorCapacity
	}
	return &Monitor{
		name:    name,
		address: address,
		data:    make([]uint64, capacity),
	}
}

func (m *Monitor) Name() string {
	return m.name
}

func (m *Monitor) Address() t.Address {
	return m.address
}

// Capacity returns the maximum number of values captured per run.
func (m *Monitor) Capacity() int {
	return len(m.data)
}

// Write captures value. Once the buffer is full, values are rejected with ErrCaptureFull.
func (m *Monitor) Write(value uint64) error {
	if m.pos == len(m.data) {
		return ErrCaptureFull
	}
	m.data[m.pos] = value
	m.pos++
	return nil
}

// Captured returns a copy of the values captured in the current run.
func (m *Monitor) Captured() []uint64 {
	captured := make([]uint64, m.pos)
	copy(captured, m.data[:m.pos])
	return captured
}

// Reset rewinds the capture cursor for a new run.
func (m *Monitor) Reset() {
	m.pos = 0
}
