/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package stats_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/hyperledger-labs/fimut/pkg/stats"
	t "github.com/hyperledger-labs/fimut/pkg/types"
)

var _ = Describe("Collector", func() {
	var (
		c *stats.Collector
	)

	BeforeEach(func() {
		c = stats.NewCollector()
	})

	It("counts register accesses per direction", func() {
		Expect(c.RecordRegister(5, stats.Read)).To(Equal(uint64(1)))
		Expect(c.RecordRegister(5, stats.Write)).To(Equal(uint64(2)))
		Expect(c.RecordRegister(5, stats.Read)).To(Equal(uint64(3)))
		Expect(c.RecordRegister(6, stats.Read)).To(Equal(uint64(1)))
		Expect(c.Register(5)).To(Equal(stats.Counter{Reads: 2, Writes: 1}))
		Expect(c.Register(5).Total()).To(Equal(uint64(3)))
	})

	It("counts CSR accesses across the whole index space", func() {
		c.RecordCSR(t.NumCSRs-1, stats.Write)
		Expect(c.CSR(t.NumCSRs - 1)).To(Equal(stats.Counter{Writes: 1}))
		Expect(c.CSR(0)).To(Equal(stats.Counter{}))
	})

	It("creates memory counters lazily", func() {
		_, ok := c.Memory(0x80000000)
		Expect(ok).To(BeFalse())

		c.RecordMemory(0x80000004, stats.Write)
		Expect(c.RecordMemory(0x80000000, stats.Read)).To(Equal(uint64(1)))
		Expect(c.RecordMemory(0x80000000, stats.Read)).To(Equal(uint64(2)))

		ctr, ok := c.Memory(0x80000000)
		Expect(ok).To(BeTrue())
		Expect(ctr).To(Equal(stats.Counter{Reads: 2}))
		Expect(c.MemoryAddresses()).To(Equal([]t.Address{0x80000000, 0x80000004}))
	})

	It("flattens translation unit executions into instruction counts", func() {
		c.AddTranslationUnit(0x100, []t.Address{0x100, 0x104, 0x108})
		c.AddTranslationUnit(0x104, []t.Address{0x104, 0x108})
		for i := 0; i < 3; i++ {
			Expect(c.ExecuteTranslationUnit(0x100)).To(Succeed())
		}
		Expect(c.ExecuteTranslationUnit(0x104)).To(Succeed())

		counts := c.InstructionCounts()
		Expect(counts).To(Equal(map[t.Address]uint64{
			0x100: 3,
			0x104: 4,
			0x108: 4,
		}))
		Expect(stats.SortedAddresses(counts)).To(Equal([]t.Address{0x100, 0x104, 0x108}))
	})

	It("refuses executions of unknown translation units", func() {
		Expect(c.ExecuteTranslationUnit(0x200)).To(MatchError("no translation unit registered at 0x200"))
	})

	It("clears everything on reset", func() {
		c.RecordRegister(1, stats.Write)
		c.RecordCSR(0x300, stats.Read)
		c.RecordMemory(0x10, stats.Read)
		c.AddTranslationUnit(0x100, []t.Address{0x100})
		Expect(c.ExecuteTranslationUnit(0x100)).To(Succeed())

		c.Reset()

		Expect(c.Register(1)).To(Equal(stats.Counter{}))
		Expect(c.CSR(0x300)).To(Equal(stats.Counter{}))
		Expect(c.MemoryAddresses()).To(BeEmpty())
		Expect(c.InstructionCounts()).To(BeEmpty())
		Expect(c.ExecuteTranslationUnit(0x100)).To(HaveOccurred())
		Expect(c.RecordMemory(0x10, stats.Read)).To(Equal(uint64(1)))
	})
})
