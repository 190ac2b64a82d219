/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package fault_test

import (
	. "github.com/onsi/ginkgo"
	"github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"

	"github.com/hyperledger-labs/fimut/pkg/catalog"
	"github.com/hyperledger-labs/fimut/pkg/fault"
)

func mutant(f catalog.FaultKind, r catalog.ResourceClass, target, trigger, mask uint64) *catalog.Mutant {
	return &catalog.Mutant{
		ID:           1,
		Kind:         catalog.Kind{Fault: f, Resource: r},
		Target:       target,
		TriggerCount: trigger,
		Mask:         mask,
	}
}

func regAccess(index, ordinal uint64) fault.Access {
	return fault.Access{Resource: catalog.Register, Target: index, Ordinal: ordinal}
}

var _ = Describe("Apply", func() {
	It("passes values through without an active mutant", func() {
		Expect(fault.Apply(nil, regAccess(5, 1), 0x1234)).To(Equal(uint64(0x1234)))
	})

	It("ignores accesses to other resources", func() {
		m := mutant(catalog.Permanent, catalog.Register, 5, 0, 0x1)
		Expect(fault.Apply(m, regAccess(6, 1), 0x10)).To(Equal(uint64(0x10)))
		Expect(fault.Apply(m, fault.Access{Resource: catalog.ControlStatusRegister, Target: 5, Ordinal: 1}, 0x10)).To(Equal(uint64(0x10)))
	})

	It("flips a permanent fault on every matching access", func() {
		m := mutant(catalog.Permanent, catalog.Register, 5, 0, 0x81)
		for i := uint64(1); i <= 10; i++ {
			Expect(fault.Apply(m, regAccess(5, i), 0xF0)).To(Equal(uint64(0x71)))
		}
	})

	It("flips a transient fault on exactly the triggering access", func() {
		const n = 8
		for k := uint64(1); k <= n; k++ {
			m := mutant(catalog.Transient, catalog.ControlStatusRegister, 0x300, k, 0x4)
			mutated := 0
			for i := uint64(1); i <= n; i++ {
				v := fault.Apply(m, fault.Access{Resource: catalog.ControlStatusRegister, Target: 0x300, Ordinal: i}, 0)
				if i == k {
					Expect(v).To(Equal(uint64(0x4)))
					mutated++
				} else {
					Expect(v).To(BeZero())
				}
			}
			Expect(mutated).To(Equal(1))
		}
	})

	table.DescribeTable("stuck-at faults are idempotent",
		func(f catalog.FaultKind, value, mask, expected uint64) {
			m := mutant(f, catalog.Register, 3, 0, mask)
			once := fault.Apply(m, regAccess(3, 1), value)
			Expect(once).To(Equal(expected))
			Expect(fault.Apply(m, regAccess(3, 2), once)).To(Equal(once))
		},
		table.Entry("stuck at zero", catalog.StuckAtZero, uint64(0xFF), uint64(0x0F), uint64(0xF0)),
		table.Entry("stuck at zero on cleared bits", catalog.StuckAtZero, uint64(0xF0), uint64(0x0F), uint64(0xF0)),
		table.Entry("stuck at one", catalog.StuckAtOne, uint64(0x00), uint64(0x81), uint64(0x81)),
		table.Entry("stuck at one on set bits", catalog.StuckAtOne, uint64(0xFF), uint64(0x81), uint64(0xFF)),
	)

	Describe("memory accesses", func() {
		table.DescribeTable("affect only the targeted byte",
			func(address uint64, width uint, target uint64, mutated bool, expected uint64) {
				m := mutant(catalog.Permanent, catalog.Memory, target, 0, 0x01)
				a := fault.Access{Resource: catalog.Memory, Target: address, Width: width, Ordinal: 1}
				_, ok := fault.Match(m, a)
				Expect(ok).To(Equal(mutated))
				Expect(fault.Apply(m, a, 0x11223344)).To(Equal(expected))
			},
			table.Entry("byte access at target", uint64(0x100), uint(1), uint64(0x100), true, uint64(0x11223345)),
			table.Entry("word access, byte 0", uint64(0x100), uint(4), uint64(0x100), true, uint64(0x11223345)),
			table.Entry("word access, byte 1", uint64(0x100), uint(4), uint64(0x101), true, uint64(0x11223244)),
			table.Entry("word access, byte 2", uint64(0x100), uint(4), uint64(0x102), true, uint64(0x11233344)),
			table.Entry("word access, byte 3", uint64(0x100), uint(4), uint64(0x103), true, uint64(0x10223344)),
			table.Entry("below the access", uint64(0x100), uint(4), uint64(0xFF), false, uint64(0x11223344)),
			table.Entry("just past the access", uint64(0x100), uint(4), uint64(0x104), false, uint64(0x11223344)),
			table.Entry("half word past byte 1", uint64(0x100), uint(2), uint64(0x102), false, uint64(0x11223344)),
			table.Entry("double word, byte 7", uint64(0x100), uint(8), uint64(0x107), true, uint64(0x0100000011223344)),
		)

		It("clips masks wider than the access", func() {
			m := mutant(catalog.StuckAtOne, catalog.Memory, 0x101, 0, 0xFFFF)
			a := fault.Access{Resource: catalog.Memory, Target: 0x100, Width: 2, Ordinal: 1}
			Expect(fault.Apply(m, a, 0)).To(Equal(uint64(0xFF00)))
		})

		It("rejects unsupported widths", func() {
			m := mutant(catalog.Permanent, catalog.Memory, 0x100, 0, 1)
			_, ok := fault.Match(m, fault.Access{Resource: catalog.Memory, Target: 0x100, Width: 0})
			Expect(ok).To(BeFalse())
			_, ok = fault.Match(m, fault.Access{Resource: catalog.Memory, Target: 0x100, Width: 16})
			Expect(ok).To(BeFalse())
		})

		It("does not overflow near the top of the address space", func() {
			m := mutant(catalog.Permanent, catalog.Memory, 2, 0, 1)
			_, ok := fault.Match(m, fault.Access{Resource: catalog.Memory, Target: ^uint64(0) - 1, Width: 8})
			Expect(ok).To(BeFalse())
		})

		It("applies transient memory faults on the triggering access only", func() {
			m := mutant(catalog.Transient, catalog.Memory, 0x203, 2, 0x80)
			a := fault.Access{Resource: catalog.Memory, Target: 0x200, Width: 4, Ordinal: 1}
			Expect(fault.Apply(m, a, 0)).To(BeZero())
			a.Ordinal = 2
			Expect(fault.Apply(m, a, 0)).To(Equal(uint64(0x80000000)))
			a.Ordinal = 3
			Expect(fault.Apply(m, a, 0)).To(BeZero())
		})
	})
})
