/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package catalog

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// FaultKind describes how a mutant alters a value.
type FaultKind int

const (
	// Permanent faults flip the masked bits on every matching access.
	Permanent FaultKind = iota + 1

	// Transient faults flip the masked bits on exactly one matching access,
	// the one whose ordinal equals the mutant's trigger count.
	Transient

	// StuckAtZero faults clear the masked bits on every matching access.
	StuckAtZero

	// StuckAtOne faults set the masked bits on every matching access.
	StuckAtOne
)

func (fk FaultKind) String() string {
	switch fk {
	case Permanent:
		return "permanent"
	case Transient:
		return "transient"
	case StuckAtZero:
		return "stuck0"
	case StuckAtOne:
		return "stuck1"
	default:
		return fmt.Sprintf("fault(%d)", int(fk))
	}
}

// ResourceClass is the kind of resource a mutant targets.
type ResourceClass int

const (
	// Register is a general purpose register, identified by its index.
	Register ResourceClass = iota + 1

	// ControlStatusRegister is a CSR, identified by its index.
	ControlStatusRegister

	// Memory is a byte in the physical address space, identified by its address.
	Memory
)

func (rc ResourceClass) String() string {
	switch rc {
	case Register:
		return "reg"
	case ControlStatusRegister:
		return "csr"
	case Memory:
		return "mem"
	default:
		return fmt.Sprintf("resource(%d)", int(rc))
	}
}

// Kind is the decoded kind field of a catalog record.
type Kind struct {
	Fault    FaultKind
	Resource ResourceClass
}

func (k Kind) String() string {
	return k.Resource.String() + "-" + k.Fault.String()
}

// kindCodes maps the numeric kind codes of the catalog format to decoded kinds.
// Code 7 is unused.
var kindCodes = map[uint64]Kind{
	1:  {Permanent, Register},
	2:  {Transient, Register},
	3:  {Permanent, ControlStatusRegister},
	4:  {Transient, ControlStatusRegister},
	5:  {Permanent, Memory},
	6:  {Transient, Memory},
	8:  {StuckAtZero, Register},
	9:  {StuckAtOne, Register},
	10: {StuckAtZero, ControlStatusRegister},
	11: {StuckAtOne, ControlStatusRegister},
	12: {StuckAtZero, Memory},
	13: {StuckAtOne, Memory},
}

// Code returns the numeric catalog code of the kind, or 0 if the kind has none.
func (k Kind) Code() uint64 {
	for code, kind := range kindCodes {
		if kind == k {
			return code
		}
	}
	return 0
}

// ParseKind decodes a kind field, which is either a numeric code (e.g. "2")
// or a symbolic name of the form "<resource>-<fault>" (e.g. "reg-transient").
func ParseKind(field string) (Kind, error) {
	if code, err := strconv.ParseUint(field, 10, 64); err == nil {
		kind, ok := kindCodes[code]
		if !ok {
			return Kind{}, errors.Errorf("unknown fault kind code %d", code)
		}
		return kind, nil
	}

	parts := strings.SplitN(strings.ToLower(field), "-", 2)
	if len(parts) != 2 {
		return Kind{}, errors.Errorf("malformed fault kind %q", field)
	}

	var kind Kind
	switch parts[0] {
	case "reg", "gpr":
		kind.Resource = Register
	case "csr":
		kind.Resource = ControlStatusRegister
	case "mem":
		kind.Resource = Memory
	default:
		return Kind{}, errors.Errorf("unknown resource class %q", parts[0])
	}

	switch parts[1] {
	case "permanent":
		kind.Fault = Permanent
	case "transient":
		kind.Fault = Transient
	case "stuck0":
		kind.Fault = StuckAtZero
	case "stuck1":
		kind.Fault = StuckAtOne
	default:
		return Kind{}, errors.Errorf("unknown fault kind %q", parts[1])
	}

	return kind, nil
}
