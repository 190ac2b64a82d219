/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package testengine_test

import (
	"strings"

	. "github.com/onsi/ginkgo"
	"github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"

	"github.com/hyperledger-labs/fimut/pkg/testengine"
)

var _ = Describe("ParseProgram", func() {
	It("parses a YAML program", func() {
		p, err := testengine.ParseProgram(strings.NewReader(`
name: echo
memory:
  0x100: 0x2a
idleCost: 5
steps:
  - op: load-mem
    address: 0x100
    width: 4
  - op: output
    address: 0x9000
  - op: jz
    target: 0
  - op: imm
    value: 0
    cost: 10
  - op: exit
`))
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Name).To(Equal("echo"))
		Expect(p.Memory).To(Equal(map[uint64]uint8{0x100: 0x2a}))
		Expect(p.Steps).To(HaveLen(5))
		Expect(p.Steps[0]).To(Equal(testengine.Step{Op: testengine.OpLoadMem, Address: 0x100, Width: 4}))
		Expect(p.Steps[3].Cost).To(BeEquivalentTo(10))
	})

	table.DescribeTable("rejects invalid steps",
		func(step, reason string) {
			_, err := testengine.ParseProgram(strings.NewReader("steps:\n  - " + step + "\n"))
			Expect(err).To(MatchError(ContainSubstring(reason)))
		},
		table.Entry("unknown operation", "op: mul", `unknown operation "mul"`),
		table.Entry("register out of range", "{op: load-reg, index: 32}", "register index 32 out of range"),
		table.Entry("CSR out of range", "{op: store-csr, index: 4096}", "CSR index 4096 out of range"),
		table.Entry("missing width", "{op: load-mem, address: 16}", "access width 0 not in [1, 8]"),
		table.Entry("too wide", "{op: input, address: 16, width: 9}", "access width 9 not in [1, 8]"),
		table.Entry("jump out of range", "{op: jump, target: 1}", "jump target 1 out of range"),
	)

	It("rejects an empty program", func() {
		_, err := testengine.ParseProgram(strings.NewReader("name: nothing\n"))
		Expect(err).To(MatchError("program has no steps"))
	})
})
