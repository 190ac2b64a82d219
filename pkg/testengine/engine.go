/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package testengine

import (
	"context"
	"slices"

	"github.com/pkg/errors"

	"github.com/hyperledger-labs/fimut/pkg/campaign"
	"github.com/hyperledger-labs/fimut/pkg/catalog"
	"github.com/hyperledger-labs/fimut/pkg/logging"
	"github.com/hyperledger-labs/fimut/pkg/outcome"
	"github.com/hyperledger-labs/fimut/pkg/peripheral"
	"github.com/hyperledger-labs/fimut/pkg/processor"
	"github.com/hyperledger-labs/fimut/pkg/stats"
	t "github.com/hyperledger-labs/fimut/pkg/types"
)

const (
	// ProgramBase is the address of the first step of a program.
	ProgramBase t.Address = 0x80000000

	// StepSize is the address distance of two consecutive steps.
	StepSize = 4
)

// Engine executes a Program once per campaign run.
// It implements processor.Target and is not safe for concurrent use.
type Engine struct {
	program     *Program
	peripherals *peripheral.Set
	logger      logging.Logger

	blockStarts map[int]struct{}

	node  *processor.Node
	hooks campaign.Instrumentation

	// clock is the virtual clock. It keeps running across runs.
	clock t.Micros

	run        t.RunNumber
	pc         int
	acc        uint64
	regs       [t.NumRegisters]uint64
	csrs       map[t.CSRIndex]uint64
	memory     map[t.Address]uint8
	translated map[int]struct{}
	console    []byte
	fullWarned bool

	// golden holds the monitor captures of the golden run, by monitor name.
	golden map[string][]uint64
}

var _ processor.Target = (*Engine)(nil)

// NewEngine returns an engine executing program. peripherals may be nil for
// programs without input and output steps.
func NewEngine(program *Program, peripherals *peripheral.Set, logger logging.Logger) *Engine {
	return &Engine{
		program:     program,
		peripherals: peripherals,
		logger:      logger,
		blockStarts: program.blockStarts(),
	}
}

// Now returns the virtual clock.
func (e *Engine) Now() t.Micros {
	return e.clock
}

// Reset restores the initial state of the program for run.
// The active mutant is applied through the instrumentation, not by the engine.
func (e *Engine) Reset(run t.RunNumber, mutant *catalog.Mutant) error {
	e.run = run
	e.pc = 0
	e.acc = 0
	e.regs = [t.NumRegisters]uint64{}
	e.csrs = map[t.CSRIndex]uint64{}
	e.memory = make(map[t.Address]uint8, len(e.program.Memory))
	for addr, b := range e.program.Memory {
		e.memory[t.Address(addr)] = b
	}
	e.translated = map[int]struct{}{}
	e.console = e.console[:0]
	e.fullWarned = false

	if mutant != nil {
		e.logger.Log(logging.LevelDebug, "reset target", "run", run, "mutant", mutant.ID)
	} else {
		e.logger.Log(logging.LevelDebug, "reset target", "run", run)
	}
	return nil
}

// Console returns what the current run wrote to the terminator console so far.
func (e *Engine) Console() string {
	return string(e.console)
}

// Run executes the campaign driven by node until it terminates, and returns its exit.
// node must have been created with this engine as target.
func (e *Engine) Run(ctx context.Context, node *processor.Node) (*campaign.ActionTerminate, error) {
	e.node = node
	e.hooks = node.Instrumentation()

	if err := node.Start(); err != nil {
		return nil, err
	}

	for !node.Terminated() {
		if err := ctx.Err(); err != nil {
			return nil, errors.WithMessagef(err, "campaign interrupted in run %d", e.run)
		}

		if err := e.step(); err != nil {
			return nil, errors.WithMessagef(err, "run %d failed", e.run)
		}
		if node.Terminated() {
			break
		}

		if err := node.Tick(); err != nil {
			return nil, err
		}
	}

	exit, _ := node.Exit()
	return exit, nil
}

func (e *Engine) address(step int) t.Address {
	return ProgramBase + t.Address(step*StepSize)
}

// enterBlock reports the translation unit starting at step, if any.
// A unit is created the first time it is entered in a run.
func (e *Engine) enterBlock(step int) {
	if _, ok := e.blockStarts[step]; !ok {
		return
	}

	pc := e.address(step)
	if _, ok := e.translated[step]; !ok {
		pcs := []t.Address{pc}
		for i := step + 1; i < len(e.program.Steps); i++ {
			if _, ok := e.blockStarts[i]; ok {
				break
			}
			pcs = append(pcs, e.address(i))
		}
		e.hooks.OnTranslationUnitCreated(pc, pcs)
		e.translated[step] = struct{}{}
	}
	e.hooks.OnTranslationUnitExecuted(pc)
}

func (e *Engine) step() error {
	if e.pc >= len(e.program.Steps) {
		// Ran off the program without exiting, the target idles until timed out.
		if e.program.IdleCost == 0 {
			e.clock += DefaultStepCost
		} else {
			e.clock += e.program.IdleCost
		}
		return nil
	}

	index := e.pc
	s := e.program.Steps[index]
	e.enterBlock(index)
	e.pc++
	if s.Cost == 0 {
		e.clock += DefaultStepCost
	} else {
		e.clock += s.Cost
	}

	switch s.Op {
	case OpImm:
		e.acc = s.Value
	case OpAdd:
		e.acc += s.Value
	case OpLoadReg:
		reg := t.RegIndex(s.Index)
		e.acc = e.hooks.OnRegister(reg, stats.Read, e.regs[reg])
	case OpStoreReg:
		reg := t.RegIndex(s.Index)
		value := e.hooks.OnRegister(reg, stats.Write, e.acc)
		if reg != 0 {
			// x0 is hardwired to zero.
			e.regs[reg] = value
		}
	case OpLoadCSR:
		csr := t.CSRIndex(s.Index)
		e.acc = e.hooks.OnCSR(csr, stats.Read, e.csrs[csr])
	case OpStoreCSR:
		csr := t.CSRIndex(s.Index)
		e.csrs[csr] = e.hooks.OnCSR(csr, stats.Write, e.acc)
	case OpLoadMem:
		addr := t.Address(s.Address)
		e.acc = e.hooks.OnMemory(addr, s.Width, stats.Read, e.readMemory(addr, s.Width))
	case OpStoreMem:
		addr := t.Address(s.Address)
		e.writeMemory(addr, s.Width, e.hooks.OnMemory(addr, s.Width, stats.Write, truncate(e.acc, s.Width)))
	case OpInput:
		return errors.WithMessagef(e.input(t.Address(s.Address), s.Width), "step %d", index)
	case OpOutput:
		return errors.WithMessagef(e.output(t.Address(s.Address)), "step %d", index)
	case OpJump:
		e.pc = s.Target
	case OpJumpIfZero:
		if e.acc == 0 {
			e.pc = s.Target
		}
	case OpPutChar:
		e.console = append(e.console, byte(e.acc))
	case OpExit:
		return e.exit(e.acc)
	default:
		return errors.Errorf("unknown operation %q", s.Op)
	}

	return nil
}

func truncate(value uint64, width uint) uint64 {
	if width >= 8 {
		return value
	}
	return value & ((uint64(1) << (8 * width)) - 1)
}

func (e *Engine) readMemory(addr t.Address, width uint) uint64 {
	var value uint64
	for i := uint(0); i < width; i++ {
		value |= uint64(e.memory[addr+t.Address(i)]) << (8 * i)
	}
	return value
}

func (e *Engine) writeMemory(addr t.Address, width uint, value uint64) {
	for i := uint(0); i < width; i++ {
		e.memory[addr+t.Address(i)] = uint8(value >> (8 * i))
	}
}

func (e *Engine) input(addr t.Address, width uint) error {
	if e.peripherals == nil {
		return errors.Errorf("no stimulator at %#x", addr)
	}
	st, ok := e.peripherals.Stimulator(addr)
	if !ok {
		return errors.Errorf("no stimulator at %#x", addr)
	}

	value, err := st.Read(width)
	switch {
	case errors.Is(err, peripheral.ErrStreamExhausted):
		// The run read more input than the stimulus holds. A mutant doing so is
		// killed, a golden run doing so fails the campaign as a golden run error.
		e.logger.Log(logging.LevelWarn, "stimulus exhausted, ending run", "stimulator", st.Name(), "run", e.run)
		return e.node.Complete(outcome.CodeUnknown)
	case err != nil:
		return err
	}
	e.acc = value
	return nil
}

func (e *Engine) output(addr t.Address) error {
	if e.peripherals == nil {
		return errors.Errorf("no monitor at %#x", addr)
	}
	m, ok := e.peripherals.Monitor(addr)
	if !ok {
		return errors.Errorf("no monitor at %#x", addr)
	}

	err := m.Write(e.acc)
	switch {
	case err == peripheral.ErrCaptureFull:
		if !e.fullWarned {
			e.logger.Log(logging.LevelWarn, "monitor capture full, dropping values", "monitor", m.Name(), "run", e.run)
			e.fullWarned = true
		}
		return nil
	default:
		return err
	}
}

// exit handles a word written to the terminator. A clean exit of a mutant run
// whose monitors captured something else than in the golden run is an output deviation.
func (e *Engine) exit(word uint64) error {
	code, ok := outcome.FromExitWord(word)
	if !ok {
		e.logger.Log(logging.LevelDebug, "ignoring terminator write", "word", word, "run", e.run)
		return nil
	}

	if code == outcome.CodeNotKilled {
		if e.run == campaign.GoldenRunNumber {
			e.golden = e.capture()
		} else if e.deviates() {
			code = outcome.CodeOutputDeviation
		}
	}

	return e.node.Complete(code)
}

func (e *Engine) capture() map[string][]uint64 {
	captured := map[string][]uint64{}
	if e.peripherals == nil {
		return captured
	}
	for _, m := range e.peripherals.Monitors() {
		captured[m.Name()] = slices.Clone(m.Captured())
	}
	return captured
}

func (e *Engine) deviates() bool {
	if e.peripherals == nil {
		return false
	}
	for _, m := range e.peripherals.Monitors() {
		if !slices.Equal(m.Captured(), e.golden[m.Name()]) {
			return true
		}
	}
	return false
}
