/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package results_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/hyperledger-labs/fimut/pkg/outcome"
	"github.com/hyperledger-labs/fimut/pkg/results"
	t "github.com/hyperledger-labs/fimut/pkg/types"
)

var _ = Describe("Record", func() {
	It("survives encoding, including negative ids", func() {
		r := &results.Record{Run: 7, MutantID: -3, Code: outcome.TrapCode(2, true), Elapsed: 12345}
		decoded := &results.Record{}
		Expect(decoded.Unmarshal(r.Marshal())).To(Succeed())
		Expect(decoded).To(Equal(r))
		Expect(decoded.Classification().Text).To(Equal("irq::__reserved__"))
	})

	It("rejects truncated input", func() {
		b := (&results.Record{Run: 1, Elapsed: 1 << 40}).Marshal()
		Expect((&results.Record{}).Unmarshal(b[:len(b)-1])).NotTo(Succeed())
	})
})

// storeBehavior exercises the contract shared by every Store implementation.
func storeBehavior(open func() results.Store) {
	var (
		store results.Store
	)

	BeforeEach(func() {
		store = open()
		Expect(store.Put(&results.Record{Run: 1, Golden: true, Code: outcome.CodeNotKilled, Elapsed: 1000})).To(Succeed())
		Expect(store.Put(&results.Record{Run: 3, MutantID: 11, Code: outcome.CodeTimeout, Elapsed: 2251})).To(Succeed())
		Expect(store.Put(&results.Record{Run: 2, MutantID: 10, Code: outcome.CodeNotKilled, Elapsed: 990})).To(Succeed())
		Expect(store.Put(&results.Record{Run: 4, MutantID: 12, Code: outcome.CodeTimeout, Elapsed: 2251})).To(Succeed())
	})

	AfterEach(func() {
		Expect(store.Close()).To(Succeed())
	})

	It("returns stored records", func() {
		r, err := store.Get(3)
		Expect(err).NotTo(HaveOccurred())
		Expect(r).To(Equal(&results.Record{Run: 3, MutantID: 11, Code: outcome.CodeTimeout, Elapsed: 2251}))
	})

	It("reports missing records", func() {
		_, err := store.Get(99)
		Expect(err).To(Equal(results.ErrNotFound))
	})

	It("iterates in run order", func() {
		var runs []t.RunNumber
		Expect(store.Iterate(func(r *results.Record) error {
			runs = append(runs, r.Run)
			return nil
		})).To(Succeed())
		Expect(runs).To(Equal([]t.RunNumber{1, 2, 3, 4}))
	})

	It("summarizes mutant results", func() {
		summary, err := results.Summary(store)
		Expect(err).NotTo(HaveOccurred())
		Expect(summary).To(Equal(map[outcome.Category]int{
			outcome.CategoryNotKilled: 1,
			outcome.CategoryTimeout:   2,
		}))
	})
}

var _ = Describe("VolatileStore", func() {
	storeBehavior(func() results.Store {
		return results.NewVolatileStore()
	})
})

var _ = Describe("BadgerStore", func() {
	storeBehavior(func() results.Store {
		store, err := results.OpenBadgerStore()
		Expect(err).NotTo(HaveOccurred())
		return store
	})
})
