/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package peripheral

import (
	"github.com/pkg/errors"

	t "github.com/hyperledger-labs/fimut/pkg/types"
)

// Set holds the peripherals of a test setup, keyed by address.
type Set struct {
	monitors    map[t.Address]*Monitor
	stimulators map[t.Address]*Stimulator
}

func NewSet() *Set {
	return &Set{
		monitors:    map[t.Address]*Monitor{},
		stimulators: map[t.Address]*Stimulator{},
	}
}

func (s *Set) occupied(address t.Address) bool {
	_, ok := s.monitors[address]
	if !ok {
		_, ok = s.stimulators[address]
	}
	return ok
}

// AddMonitor registers m. Two peripherals cannot share an address.
func (s *Set) AddMonitor(m *Monitor) error {
	if s.occupied(m.Address()) {
		return errors.Errorf("monitor %s: address %#x already in use", m.Name(), uint64(m.Address()))
	}
	s.monitors[m.Address()] = m
	return nil
}

// AddStimulator registers st. Two peripherals cannot share an address.
func (s *Set) AddStimulator(st *Stimulator) error {
	if s.occupied(st.Address()) {
		return errors.Errorf("stimulator %s: address %#x already in use", st.Name(), uint64(st.Address()))
	}
	s.stimulators[st.Address()] = st
	return nil
}

func (s *Set) Monitor(address t.Address) (*Monitor, bool) {
	m, ok := s.monitors[address]
	return m, ok
}

func (s *Set) Stimulator(address t.Address) (*Stimulator, bool) {
	st, ok := s.stimulators[address]
	return st, ok
}

// Monitors returns all monitors, in no particular order.
func (s *Set) Monitors() []*Monitor {
	ms := make([]*Monitor, 0, len(s.monitors))
	for _, m := range s.monitors {
		ms = append(ms, m)
	}
	return ms
}

// Reset rewinds every peripheral for a new run.
func (s *Set) Reset() error {
	for _, m := range s.monitors {
		m.Reset()
	}
	for _, st := range s.stimulators {
		if err := st.Reset(); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the resources held by the stimulators.
func (s *Set) Close() error {
	var firstErr error
	for _, st := range s.stimulators {
		if err := st.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
