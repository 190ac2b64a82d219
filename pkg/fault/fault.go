/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package fault decides, for every observed register, CSR or memory access,
// whether and how the active mutant alters the accessed value.
// It holds no state: the access ordinal is supplied by the caller.
package fault

import (
	"github.com/hyperledger-labs/fimut/pkg/catalog"
)

// MaxWidth is the widest memory access, in bytes, a fault can be applied to.
const MaxWidth = 8

// Access describes one observed access.
type Access struct {
	// Resource is the class of the accessed resource.
	Resource catalog.ResourceClass

	// Target is the register index, CSR index or, for memory, the start address of the access.
	Target uint64

	// Width is the width of a memory access in bytes. It is ignored for registers and CSRs.
	Width uint

	// Ordinal is the number of matching accesses in the current run, including this one.
	Ordinal uint64
}

// Match reports whether mutant m targets the accessed resource, and if it does,
// the bit offset of the targeted byte within the accessed value.
// The offset is always 0 for registers and CSRs.
func Match(m *catalog.Mutant, a Access) (shift uint, ok bool) {
	if m == nil || m.Kind.Resource != a.Resource {
		return 0, false
	}

	if a.Resource != catalog.Memory {
		return 0, m.Target == a.Target
	}

	if a.Width == 0 || a.Width > MaxWidth {
		return 0, false
	}

	// address <= target < address + width, written so that it cannot overflow.
	if m.Target < a.Target || m.Target-a.Target >= uint64(a.Width) {
		return 0, false
	}

	return uint(8 * (m.Target - a.Target)), true
}

// Apply returns the value the access observes under mutant m.
// A nil mutant (the golden run) or a mutant not matching the access leaves the value unchanged.
func Apply(m *catalog.Mutant, a Access, value uint64) uint64 {
	shift, ok := Match(m, a)
	if !ok {
		return value
	}

	mask := m.Mask << shift
	if a.Resource == catalog.Memory {
		// Bits beyond the access width do not belong to the accessed value.
		mask &= widthMask(a.Width)
	}

	switch m.Kind.Fault {
	case catalog.Permanent:
		return value ^ mask
	case catalog.Transient:
		if a.Ordinal == m.TriggerCount {
			return value ^ mask
		}
		return value
	case catalog.StuckAtZero:
		return value &^ mask
	case catalog.StuckAtOne:
		return value | mask
	default:
		return value
	}
}

func widthMask(width uint) uint64 {
	if width >= MaxWidth {
		return ^uint64(0)
	}
	return (uint64(1) << (8 * width)) - 1
}
