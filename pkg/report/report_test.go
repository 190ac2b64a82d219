/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package report_test

import (
	"bytes"
	"strings"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/hyperledger-labs/fimut/pkg/outcome"
	"github.com/hyperledger-labs/fimut/pkg/report"
	"github.com/hyperledger-labs/fimut/pkg/stats"
	t "github.com/hyperledger-labs/fimut/pkg/types"
)

var _ = Describe("Reporter", func() {
	var (
		out    *bytes.Buffer
		status *bytes.Buffer
		r      *report.Reporter
	)

	BeforeEach(func() {
		out = &bytes.Buffer{}
		status = &bytes.Buffer{}
		r = report.New(out, report.StatusOpt(status), report.ProgressPeriodOpt(2), report.TitleOpt("test campaign"))
	})

	lines := func() []string {
		Expect(r.Flush()).To(Succeed())
		return strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	}

	It("writes a fixed width banner", func() {
		r.Header()
		l := lines()
		Expect(l).To(HaveLen(6))
		for _, line := range l[:5] {
			Expect(line).To(HaveLen(80))
		}
		Expect(l[2]).To(HavePrefix("##  test campaign "))
		Expect(l[2]).To(HaveSuffix("##"))
	})

	It("aligns the mutant table on the mutant count and the budget", func() {
		r.GoldenRun(1000, 2250, 12)
		r.Mutant(3, 0, outcome.New(outcome.CodeTimeout, 2251))
		r.Mutant(11, 1, outcome.New(outcome.CodeNotKilled, 980))

		Expect(lines()).To(Equal([]string{
			"#   Golden run took 1000 us to complete...",
			"#    -> Mutants will timeout after 2250 us.",
			"#",
			"#   Running 12 mutants:",
			"#   [ID, " + strings.Repeat(" ", 11) + "TEST RESULT, TIME US]",
			"     03, " + strings.Repeat(" ", 15) + "timeout, 2251 us",
			"     11, " + strings.Repeat(" ", 12) + "not killed,  980 us",
		}))
	})

	It("writes progress every period and on the footer", func() {
		r.GoldenRun(10, 1010, 3)
		r.Mutant(1, 0, outcome.New(outcome.CodeNotKilled, 10))
		Expect(status.String()).To(BeEmpty())
		r.Mutant(2, 1, outcome.New(outcome.Code(outcome.CategoryException, 2), 3))
		Expect(status.String()).To(Equal("2 / 3 (66.67 %)\n"))
		r.Mutant(3, 2, outcome.New(outcome.CodeTimeout, 1011))
		r.Footer(map[outcome.Category]int{
			outcome.CategoryNotKilled: 1,
			outcome.CategoryException: 1,
			outcome.CategoryTimeout:   1,
		})
		Expect(status.String()).To(Equal("2 / 3 (66.67 %)\n3 / 3 (100.00 %)\n"))
	})

	It("summarizes the classifications in the footer", func() {
		r.GoldenRun(10, 1010, 4)
		r.Mutant(1, 0, outcome.New(outcome.CodeNotKilled, 10))
		r.Mutant(2, 1, outcome.New(outcome.CodeTimeout, 1011))
		r.Mutant(3, 2, outcome.New(outcome.CodeTimeout, 1011))
		r.Mutant(4, 3, outcome.New(0xF00000, 5))
		r.Footer(map[outcome.Category]int{
			outcome.CategoryNotKilled: 1,
			outcome.CategoryTimeout:   2,
			outcome.CategoryUnknown:   1,
		})

		l := lines()
		Expect(l).To(ContainElement("#   Mutation testing finished. Simulated 4 mutants."))
		Expect(l).To(ContainElement("#   Killed 3 of 4 mutants (75.00 %):"))
		Expect(l).To(ContainElement("#   " + strings.Repeat(" ", 15) + "timeout: 2"))
		Expect(l).To(ContainElement("#   " + strings.Repeat(" ", 15) + "unknown: 1"))
	})

	It("dumps the access statistics", func() {
		c := stats.NewCollector()
		c.RecordRegister(1, stats.Read)
		c.RecordRegister(1, stats.Write)
		c.RecordCSR(0x300, stats.Read)
		c.RecordMemory(0x80000010, stats.Write)
		c.AddTranslationUnit(0x80000000, nil)
		c.AddTranslationUnit(0x80000004, []t.Address{0x80000004, 0x80000008})
		Expect(c.ExecuteTranslationUnit(0x80000004)).To(Succeed())

		r.Statistics(c)
		l := lines()
		Expect(l).To(ContainElement("GPR[1]:1,1,2"))
		Expect(l).To(ContainElement("GPR[31]:0,0,0"))
		Expect(l).NotTo(ContainElement("GPR[0]:0,0,0"))
		Expect(l).To(ContainElement("CSR[768]:1,0,1"))
		Expect(l).NotTo(ContainElement("CSR[0]:0,0,0"))
		Expect(l).To(ContainElement("EXE[80000004]:1"))
		Expect(l).To(ContainElement("EXE[80000008]:1"))
		Expect(l).To(ContainElement("MEMORY[80000010]:0,1,1"))
	})
})
