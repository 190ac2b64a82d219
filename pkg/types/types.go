/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package types

// ================================================================================

// MutantID represents the numeric ID of a mutant as assigned by the mutant catalog.
type MutantID int64

// Pb converts a MutantID to its underlying native type.
func (mid MutantID) Pb() int64 {
	return int64(mid)
}

// ================================================================================

// RegIndex represents the index of a general purpose register (0-31).
type RegIndex uint8

// NumRegisters is the size of the general purpose register file.
const NumRegisters = 32

// Pb converts a RegIndex to its underlying native type.
func (ri RegIndex) Pb() uint64 {
	return uint64(ri)
}

// Valid returns true if the index addresses an existing register.
func (ri RegIndex) Valid() bool {
	return ri < NumRegisters
}

// ================================================================================

// CSRIndex represents the index of a control and status register (0-4095).
type CSRIndex uint16

// NumCSRs is the size of the control and status register space.
const NumCSRs = 4096

// Pb converts a CSRIndex to its underlying native type.
func (ci CSRIndex) Pb() uint64 {
	return uint64(ci)
}

// Valid returns true if the index addresses an existing CSR.
func (ci CSRIndex) Valid() bool {
	return ci < NumCSRs
}

// ================================================================================

// Address represents a byte address in the simulated target's physical address space.
type Address uint64

// Pb converts an Address to its underlying native type.
func (a Address) Pb() uint64 {
	return uint64(a)
}

// AddressSlicePb converts a slice of Addresses to a slice of the native type underlying Address.
func AddressSlicePb(addrs []Address) []uint64 {
	pbSlice := make([]uint64, len(addrs))
	for i, a := range addrs {
		pbSlice[i] = a.Pb()
	}
	return pbSlice
}

// ================================================================================

// Micros represents a duration or a point in time of the target's clock, in microseconds.
type Micros uint64

// Pb converts Micros to its underlying native type.
func (m Micros) Pb() uint64 {
	return uint64(m)
}

// ================================================================================

// RunNumber identifies one run (golden or mutant) of a campaign.
// The golden run has number 1, every mutant run increments it by one.
type RunNumber uint64

// Pb converts a RunNumber to its underlying native type.
func (rn RunNumber) Pb() uint64 {
	return uint64(rn)
}
