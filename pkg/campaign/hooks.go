/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package campaign

import (
	"github.com/hyperledger-labs/fimut/pkg/catalog"
	"github.com/hyperledger-labs/fimut/pkg/fault"
	"github.com/hyperledger-labs/fimut/pkg/logging"
	"github.com/hyperledger-labs/fimut/pkg/stats"
	t "github.com/hyperledger-labs/fimut/pkg/types"
)

// Instrumentation is the interface through which the execution engine reports
// the accesses and translation units of the simulated program.
// The access hooks return the value the program observes.
type Instrumentation interface {
	OnRegister(index t.RegIndex, dir stats.Direction, value uint64) uint64
	OnCSR(index t.CSRIndex, dir stats.Direction, value uint64) uint64
	OnMemory(address t.Address, width uint, dir stats.Direction, value uint64) uint64
	OnTranslationUnitCreated(pc t.Address, pcs []t.Address)
	OnTranslationUnitExecuted(pc t.Address)
}

var _ Instrumentation = (*Controller)(nil)

func (c *Controller) running() bool {
	return (c.phase == PhaseGoldenRun || c.phase == PhaseMutant) && !c.finalized
}

// OnRegister counts an access to a general purpose register and applies the active mutant to it.
func (c *Controller) OnRegister(index t.RegIndex, dir stats.Direction, value uint64) uint64 {
	if !c.running() || !index.Valid() {
		return value
	}
	ordinal := c.stats.RecordRegister(index, dir)
	return fault.Apply(c.ActiveMutant(), fault.Access{
		Resource: catalog.Register,
		Target:   index.Pb(),
		Ordinal:  ordinal,
	}, value)
}

// OnCSR counts an access to a control and status register and applies the active mutant to it.
func (c *Controller) OnCSR(index t.CSRIndex, dir stats.Direction, value uint64) uint64 {
	if !c.running() || !index.Valid() {
		return value
	}
	ordinal := c.stats.RecordCSR(index, dir)
	return fault.Apply(c.ActiveMutant(), fault.Access{
		Resource: catalog.ControlStatusRegister,
		Target:   index.Pb(),
		Ordinal:  ordinal,
	}, value)
}

// OnMemory counts a memory access of width bytes at address and applies the active mutant to it.
// The ordinal of a memory access is the number of accesses in the run covering the target byte.
func (c *Controller) OnMemory(address t.Address, width uint, dir stats.Direction, value uint64) uint64 {
	if !c.running() {
		return value
	}
	c.stats.RecordMemory(address, dir)

	m := c.ActiveMutant()
	a := fault.Access{
		Resource: catalog.Memory,
		Target:   address.Pb(),
		Width:    width,
	}
	if _, ok := fault.Match(m, a); !ok {
		return value
	}
	c.targetHits++
	a.Ordinal = c.targetHits
	return fault.Apply(m, a, value)
}

// OnTranslationUnitCreated registers a translation unit for the execution statistics.
func (c *Controller) OnTranslationUnitCreated(pc t.Address, pcs []t.Address) {
	if !c.running() {
		return
	}
	c.stats.AddTranslationUnit(pc, pcs)
}

// OnTranslationUnitExecuted counts one execution of a translation unit.
func (c *Controller) OnTranslationUnitExecuted(pc t.Address) {
	if !c.running() {
		return
	}
	if err := c.stats.ExecuteTranslationUnit(pc); err != nil {
		c.logger.Log(logging.LevelWarn, "execution of unregistered translation unit", "pc", pc.Pb(), "run", c.run)
	}
}
