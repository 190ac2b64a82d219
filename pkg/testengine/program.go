/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package testengine is a deterministic execution engine for scripted target
// programs. It stands in for the instruction set simulator: it executes a Program
// on a virtual clock, reports every register, CSR and memory access through the
// campaign instrumentation and completes runs through a terminator device.
package testengine

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/hyperledger-labs/fimut/pkg/fault"
	t "github.com/hyperledger-labs/fimut/pkg/types"
)

// Op is the operation of a program step. Every step works on a single accumulator.
type Op string

const (
	// OpImm loads Value into the accumulator.
	OpImm Op = "imm"
	// OpAdd adds Value to the accumulator.
	OpAdd Op = "add"
	// OpLoadReg reads register Index into the accumulator.
	OpLoadReg Op = "load-reg"
	// OpStoreReg writes the accumulator to register Index.
	OpStoreReg Op = "store-reg"
	// OpLoadCSR reads CSR Index into the accumulator.
	OpLoadCSR Op = "load-csr"
	// OpStoreCSR writes the accumulator to CSR Index.
	OpStoreCSR Op = "store-csr"
	// OpLoadMem reads Width bytes at Address into the accumulator.
	OpLoadMem Op = "load-mem"
	// OpStoreMem writes the low Width bytes of the accumulator to Address.
	OpStoreMem Op = "store-mem"
	// OpInput reads Width bytes from the stimulator at Address into the accumulator.
	OpInput Op = "input"
	// OpOutput writes the accumulator to the monitor at Address.
	OpOutput Op = "output"
	// OpJump continues at step Target.
	OpJump Op = "jump"
	// OpJumpIfZero continues at step Target if the accumulator is zero.
	OpJumpIfZero Op = "jz"
	// OpExit writes the accumulator to the terminator as exit word.
	OpExit Op = "exit"
	// OpPutChar writes the low byte of the accumulator to the terminator console.
	OpPutChar Op = "putc"
)

// DefaultStepCost is the virtual time a step without explicit cost takes.
const DefaultStepCost t.Micros = 1

// Step is one instruction of a program.
type Step struct {
	Op      Op       `yaml:"op"`
	Index   uint64   `yaml:"index,omitempty"`
	Address uint64   `yaml:"address,omitempty"`
	Width   uint     `yaml:"width,omitempty"`
	Value   uint64   `yaml:"value,omitempty"`
	Target  int      `yaml:"target,omitempty"`
	Cost    t.Micros `yaml:"cost,omitempty"`
}

// Program is a scripted target program.
type Program struct {
	Name string `yaml:"name"`

	// Memory holds the initial content of memory, by byte address.
	Memory map[uint64]uint8 `yaml:"memory,omitempty"`

	// IdleCost is the virtual time passing per tick once the program ran off its
	// last step without exiting. Zero selects DefaultStepCost.
	IdleCost t.Micros `yaml:"idleCost,omitempty"`

	Steps []Step `yaml:"steps"`
}

// LoadProgram reads and validates the YAML program at path.
func LoadProgram(path string) (*Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithMessage(err, "could not open program")
	}
	defer f.Close()

	p, err := ParseProgram(f)
	if err != nil {
		return nil, errors.WithMessagef(err, "could not load program %s", path)
	}
	return p, nil
}

// ParseProgram reads and validates a YAML program.
func ParseProgram(source io.Reader) (*Program, error) {
	p := &Program{}
	if err := yaml.NewDecoder(source).Decode(p); err != nil {
		return nil, errors.WithMessage(err, "could not decode program")
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks the operands of every step.
func (p *Program) Validate() error {
	if len(p.Steps) == 0 {
		return errors.New("program has no steps")
	}

	for i, s := range p.Steps {
		if err := p.validateStep(s); err != nil {
			return errors.WithMessagef(err, "step %d (%s)", i, s.Op)
		}
	}
	return nil
}

func (p *Program) validateStep(s Step) error {
	switch s.Op {
	case OpImm, OpAdd, OpExit, OpPutChar, OpOutput:
	case OpLoadReg, OpStoreReg:
		if s.Index >= t.NumRegisters {
			return errors.Errorf("register index %d out of range", s.Index)
		}
	case OpLoadCSR, OpStoreCSR:
		if s.Index >= t.NumCSRs {
			return errors.Errorf("CSR index %d out of range", s.Index)
		}
	case OpLoadMem, OpStoreMem, OpInput:
		if s.Width == 0 || s.Width > fault.MaxWidth {
			return errors.Errorf("access width %d not in [1, %d]", s.Width, fault.MaxWidth)
		}
	case OpJump, OpJumpIfZero:
		if s.Target < 0 || s.Target >= len(p.Steps) {
			return errors.Errorf("jump target %d out of range", s.Target)
		}
	default:
		return errors.Errorf("unknown operation %q", s.Op)
	}
	return nil
}

// blockStarts returns the steps starting a translation unit: the first step,
// every jump target and every step following a jump or exit.
func (p *Program) blockStarts() map[int]struct{} {
	starts := map[int]struct{}{0: {}}
	for i, s := range p.Steps {
		switch s.Op {
		case OpJump, OpJumpIfZero:
			starts[s.Target] = struct{}{}
			starts[i+1] = struct{}{}
		case OpExit:
			starts[i+1] = struct{}{}
		}
	}
	delete(starts, len(p.Steps))
	return starts
}
