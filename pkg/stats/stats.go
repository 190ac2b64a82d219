/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package stats counts, per run, every register, CSR and memory access of the
// simulated program and the executions of its translation units.
package stats

import (
	"sort"

	"github.com/pkg/errors"

	t "github.com/hyperledger-labs/fimut/pkg/types"
)

// Direction is the direction of an access.
type Direction int

const (
	Read Direction = iota
	Write
)

func (d Direction) String() string {
	if d == Write {
		return "write"
	}
	return "read"
}

// Counter holds the read and write counts of one resource.
type Counter struct {
	Reads  uint64
	Writes uint64
}

// Total returns the number of accesses of either direction.
func (c Counter) Total() uint64 {
	return c.Reads + c.Writes
}

func (c *Counter) record(dir Direction) uint64 {
	if dir == Write {
		c.Writes++
	} else {
		c.Reads++
	}
	return c.Reads + c.Writes
}

// translationUnit is a block of instructions translated and executed as a whole.
// All its instructions share a single execution count.
type translationUnit struct {
	pcs        []t.Address
	executions uint64
}

// Collector gathers the access and execution statistics of one run.
// It is owned by the campaign controller and is not safe for concurrent use.
type Collector struct {
	registers [t.NumRegisters]Counter
	csrs      [t.NumCSRs]Counter
	memory    map[t.Address]*Counter
	units     map[t.Address]*translationUnit
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{
		memory: map[t.Address]*Counter{},
		units:  map[t.Address]*translationUnit{},
	}
}

// RecordRegister counts one access to register index and returns the number of
// accesses to it in this run, including this one.
func (c *Collector) RecordRegister(index t.RegIndex, dir Direction) uint64 {
	return c.registers[index].record(dir)
}

// RecordCSR counts one access to CSR index and returns the number of
// accesses to it in this run, including this one.
func (c *Collector) RecordCSR(index t.CSRIndex, dir Direction) uint64 {
	return c.csrs[index].record(dir)
}

// RecordMemory counts one access starting at address and returns the number of
// accesses starting at that address in this run, including this one.
func (c *Collector) RecordMemory(address t.Address, dir Direction) uint64 {
	ctr, ok := c.memory[address]
	if !ok {
		ctr = &Counter{}
		c.memory[address] = ctr
	}
	return ctr.record(dir)
}

// Register returns the counter of register index.
func (c *Collector) Register(index t.RegIndex) Counter {
	return c.registers[index]
}

// CSR returns the counter of CSR index.
func (c *Collector) CSR(index t.CSRIndex) Counter {
	return c.csrs[index]
}

// Memory returns the counter of address and whether the address has been accessed in this run.
func (c *Collector) Memory(address t.Address) (Counter, bool) {
	ctr, ok := c.memory[address]
	if !ok {
		return Counter{}, false
	}
	return *ctr, true
}

// MemoryAddresses returns all addresses accessed in this run, in ascending order.
func (c *Collector) MemoryAddresses() []t.Address {
	return sortedKeys(c.memory)
}

// AddTranslationUnit registers the translation unit starting at pc and made of the
// instructions at pcs. Registering a unit again replaces it and resets its count.
func (c *Collector) AddTranslationUnit(pc t.Address, pcs []t.Address) {
	unit := &translationUnit{
		pcs: make([]t.Address, len(pcs)),
	}
	copy(unit.pcs, pcs)
	c.units[pc] = unit
}

// ExecuteTranslationUnit counts one execution of the translation unit starting at pc.
func (c *Collector) ExecuteTranslationUnit(pc t.Address) error {
	unit, ok := c.units[pc]
	if !ok {
		return errors.Errorf("no translation unit registered at %#x", uint64(pc))
	}
	unit.executions++
	return nil
}

// InstructionCounts distributes the execution count of every translation unit to each
// of its instructions and returns the per-instruction totals.
// Instructions belonging to several units accumulate the counts of all of them.
func (c *Collector) InstructionCounts() map[t.Address]uint64 {
	counts := map[t.Address]uint64{}
	for _, unit := range c.units {
		for _, pc := range unit.pcs {
			counts[pc] += unit.executions
		}
	}
	return counts
}

// Reset clears all statistics, in preparation for a new run.
// The sparse maps are replaced rather than zeroed, as the accessed addresses
// and translated units differ from run to run.
func (c *Collector) Reset() {
	c.registers = [t.NumRegisters]Counter{}
	c.csrs = [t.NumCSRs]Counter{}
	c.memory = map[t.Address]*Counter{}
	c.units = map[t.Address]*translationUnit{}
}

// SortedAddresses returns the keys of an instruction count map in ascending order.
func SortedAddresses(counts map[t.Address]uint64) []t.Address {
	return sortedKeys(counts)
}

func sortedKeys[V any](m map[t.Address]V) []t.Address {
	keys := make([]t.Address, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i] < keys[j]
	})
	return keys
}
