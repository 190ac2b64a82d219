/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package outcome classifies the raw 32-bit outcome codes a run terminates with.
//
// A code is laid out as follows:
//
//	bit 31      interrupt flag (trap codes only)
//	bit 28      trap flag, bits 0-27 then hold the trap cause
//	bits 20-23  category, for codes without the trap flag
//	bits 0-19   category specific sub-kind
//
// Codes that do not fit the layout classify as CategoryUnknown.
package outcome

import (
	"fmt"

	t "github.com/hyperledger-labs/fimut/pkg/types"
)

// Category is the coarse classification of a run.
type Category int

const (
	CategoryNotKilled Category = iota
	CategoryOutputDeviation
	CategoryTimeout
	CategoryException
	CategoryUnknown
	CategoryInterrupt
	CategoryMissingExtension
	CategoryExitFail
	CategoryTrap

	// NumCategories is the number of categories.
	NumCategories
)

// Categories lists every category, in code order.
var Categories = func() []Category {
	cs := make([]Category, NumCategories)
	for i := range cs {
		cs[i] = Category(i)
	}
	return cs
}()

var categoryTexts = [...]string{
	CategoryNotKilled:        "not killed",
	CategoryOutputDeviation:  "output deviation",
	CategoryTimeout:          "timeout",
	CategoryException:        "exception",
	CategoryUnknown:          "unknown",
	CategoryInterrupt:        "interrupt",
	CategoryMissingExtension: "missing isa extension",
	CategoryExitFail:         "non-zero exitcode",
	CategoryTrap:             "trap",
}

func (c Category) String() string {
	if c < 0 || c >= NumCategories {
		return fmt.Sprintf("category(%d)", int(c))
	}
	return categoryTexts[c]
}

const (
	categoryShift = 20
	categoryBits  = 0xF << categoryShift
	subKindBits   = 0xFFFFF

	// TrapFlag marks a code carrying a raw trap cause.
	TrapFlag = 0x10000000

	// InterruptFlag marks a trap cause as an interrupt rather than an exception.
	InterruptFlag = 0x80000000

	trapCauseBits = 0x0FFFFFFF

	// BaseExceptionOffset is the sub-kind of the first emulator-level exception.
	BaseExceptionOffset = 0x10000
)

// Code returns the code of a category with the given sub-kind.
// CategoryTrap has no category code, use TrapCode instead.
func Code(c Category, subKind uint32) uint32 {
	return uint32(c)<<categoryShift | subKind&subKindBits
}

// Well known codes.
var (
	CodeNotKilled       = Code(CategoryNotKilled, 0)
	CodeOutputDeviation = Code(CategoryOutputDeviation, 0)
	CodeTimeout         = Code(CategoryTimeout, 0)
	CodeUnknown         = Code(CategoryUnknown, 0)
	CodeExitFail        = Code(CategoryExitFail, 0)
)

// TrapCode returns the code of a raw trap with the given cause.
func TrapCode(cause uint32, interrupt bool) uint32 {
	code := TrapFlag | cause&trapCauseBits
	if interrupt {
		code |= InterruptFlag
	}
	return code
}

var riscvExceptions = [...]string{
	"ex::INSN_MISA",
	"ex::INSN_AC_FLT",
	"ex::ILLEGAL",
	"ex::BRK_POINT",
	"ex::LD_MISA",
	"ex::LD_AC_FLT",
	"ex::ST_MISA",
	"ex::ST_AC_FLT",
	"ex::U_ECALL",
	"ex::S_ECALL",
	"ex::__reserved__",
	"ex::M_ECALL",
	"ex::INSN_PG_FLT",
	"ex::LD_PG_FLT",
	"ex::__reserved__",
	"ex::ST_PG_FLT",
}

var baseExceptions = [...]string{
	"ex::INTERRUPT",
	"ex::HLT",
	"ex::DEBUG",
	"ex::HALTED",
	"ex::YIELD",
	"ex::ATOMIC",
}

var riscvInterrupts = [...]string{
	"irq::USER_SW",
	"irq::SUPERVISOR_SW",
	"irq::__reserved__",
	"irq::MACHINE_SW",
	"irq::USER_TIMER",
	"irq::SUPERVISOR_TIMER",
	"irq::__reserved__",
	"irq::MACHINE_TIMER",
	"irq::USER_EXTERN",
	"irq::SUPERVISOR_EXTERN",
	"irq::__reserved__",
	"irq::MACHINE_EXTERN",
}

// Missing ISA extension sub-kinds, one bit per extension letter.
const (
	ExtensionA = 1 << 0
	ExtensionC = 1 << 2
	ExtensionD = 1 << 3
	ExtensionF = 1 << 5
	ExtensionM = 1 << 12
)

var missingExtensions = map[uint32]string{
	ExtensionA: "MISSING_EXT_RVA",
	ExtensionC: "MISSING_EXT_RVC",
	ExtensionD: "MISSING_EXT_RVD",
	ExtensionF: "MISSING_EXT_RVF",
	ExtensionM: "MISSING_EXT_RVM",
}

const (
	reservedException = "ex::__reserved__"
	reservedInterrupt = "irq::__reserved__"
	unknownText       = "__unknown__"
)

// Classification is the decoded form of an outcome code.
type Classification struct {
	Category Category

	// Text is the most specific name of the outcome, as printed in the report.
	Text string
}

// Killed reports whether the fault was detected.
func (c Classification) Killed() bool {
	return c.Category != CategoryNotKilled
}

func (c Classification) String() string {
	return c.Text
}

var unknown = Classification{
	Category: CategoryUnknown,
	Text:     unknownText,
}

// Classify decodes a raw outcome code. It never fails: codes that do not
// match the layout are classified as CategoryUnknown.
func Classify(code uint32) Classification {
	if code&TrapFlag != 0 {
		return classifyTrap(code)
	}

	if code&^(categoryBits|subKindBits) != 0 {
		return unknown
	}

	category := Category(code >> categoryShift)
	subKind := code & subKindBits

	switch category {
	case CategoryException:
		switch {
		case subKind < uint32(len(riscvExceptions)):
			return Classification{Category: category, Text: riscvExceptions[subKind]}
		case subKind >= BaseExceptionOffset && subKind-BaseExceptionOffset < uint32(len(baseExceptions)):
			return Classification{Category: category, Text: baseExceptions[subKind-BaseExceptionOffset]}
		}
	case CategoryInterrupt:
		if subKind < uint32(len(riscvInterrupts)) {
			return Classification{Category: category, Text: riscvInterrupts[subKind]}
		}
	case CategoryMissingExtension:
		if text, ok := missingExtensions[subKind]; ok {
			return Classification{Category: category, Text: text}
		}
	case CategoryNotKilled, CategoryOutputDeviation, CategoryTimeout, CategoryUnknown, CategoryExitFail:
		if subKind == 0 {
			return Classification{Category: category, Text: category.String()}
		}
	}

	return unknown
}

func classifyTrap(code uint32) Classification {
	cause := code & trapCauseBits
	if code&InterruptFlag != 0 {
		if cause < uint32(len(riscvInterrupts)) {
			return Classification{Category: CategoryTrap, Text: riscvInterrupts[cause]}
		}
		return Classification{Category: CategoryTrap, Text: reservedInterrupt}
	}

	if cause < uint32(len(riscvExceptions)) {
		return Classification{Category: CategoryTrap, Text: riscvExceptions[cause]}
	}
	return Classification{Category: CategoryTrap, Text: reservedException}
}

// RunOutcome is the classified result of one run.
type RunOutcome struct {
	Code           uint32
	Classification Classification
	Elapsed        t.Micros
}

// New classifies code and returns the outcome of a run that took elapsed microseconds.
func New(code uint32, elapsed t.Micros) RunOutcome {
	return RunOutcome{
		Code:           code,
		Classification: Classify(code),
		Elapsed:        elapsed,
	}
}

// Exit words the target program writes to the terminator device.
const (
	ExitWordNormal = 0
	ExitWordFail   = 1
)

// FromExitWord maps a word written to the terminator device to an outcome code.
// Words that are neither a normal exit, a failed exit nor a trap are not a run
// completion and are ignored by the caller. Outcome codes are 32 bits wide, a
// word with any of the upper 32 bits set is never an exit word.
func FromExitWord(word uint64) (uint32, bool) {
	if word>>32 != 0 {
		return 0, false
	}
	code := uint32(word)
	switch {
	case code == ExitWordNormal:
		return CodeNotKilled, true
	case code == ExitWordFail:
		return CodeExitFail, true
	case code&TrapFlag != 0:
		return code, true
	default:
		return 0, false
	}
}
