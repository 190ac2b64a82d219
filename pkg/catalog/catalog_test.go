/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package catalog_test

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	. "github.com/onsi/ginkgo"
	"github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"

	"github.com/hyperledger-labs/fimut/pkg/catalog"
	t "github.com/hyperledger-labs/fimut/pkg/types"
)

const twoMutants = `# id,kind,target,trigger,mask
1,1,5,0,0x1
2,6,0x80000010,3,ff
`

var _ = Describe("Catalog", func() {
	var (
		c *catalog.Catalog
	)

	BeforeEach(func() {
		var err error
		c, err = catalog.Load(strings.NewReader(twoMutants))
		Expect(err).NotTo(HaveOccurred())
	})

	It("counts only records", func() {
		Expect(c.Count()).To(Equal(2))
		Expect(c.Index()).To(Equal(-1))
		Expect(c.Current()).To(BeNil())
	})

	It("hands out mutants in file order, then reports exhaustion", func() {
		m, err := c.Advance()
		Expect(err).NotTo(HaveOccurred())
		Expect(m).To(Equal(&catalog.Mutant{
			ID:     1,
			Kind:   catalog.Kind{Fault: catalog.Permanent, Resource: catalog.Register},
			Target: 5,
			Mask:   1,
			Line:   2,
		}))
		Expect(c.Current()).To(BeIdenticalTo(m))

		m, err = c.Advance()
		Expect(err).NotTo(HaveOccurred())
		Expect(m.ID).To(Equal(t.MutantID(2)))
		Expect(m.Kind).To(Equal(catalog.Kind{Fault: catalog.Transient, Resource: catalog.Memory}))
		Expect(m.Target).To(Equal(uint64(0x80000010)))
		Expect(m.TriggerCount).To(Equal(uint64(3)))
		Expect(m.Mask).To(Equal(uint64(0xff)))
		Expect(c.Index()).To(Equal(1))

		_, err = c.Advance()
		Expect(err).To(Equal(catalog.ErrExhausted))
		Expect(c.Current()).To(BeNil())
		Expect(c.Index()).To(Equal(2))

		_, err = c.Advance()
		Expect(err).To(Equal(catalog.ErrExhausted))
		Expect(c.Index()).To(Equal(2))
	})

	It("treats blank lines like comments", func() {
		c, err := catalog.Load(strings.NewReader("\n# only a comment\n\n3,reg-stuck1,2,0,80\n\n"))
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Count()).To(Equal(1))
		m, err := c.Advance()
		Expect(err).NotTo(HaveOccurred())
		Expect(m.Kind).To(Equal(catalog.Kind{Fault: catalog.StuckAtOne, Resource: catalog.Register}))
		Expect(m.Line).To(Equal(4))
	})

	It("is empty for a comment-only source", func() {
		c, err := catalog.Load(strings.NewReader("# nothing\n"))
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Count()).To(Equal(0))
		_, err = c.Advance()
		Expect(err).To(Equal(catalog.ErrExhausted))
	})

	It("opens catalog files", func() {
		dir, err := os.MkdirTemp("", "catalog")
		Expect(err).NotTo(HaveOccurred())
		defer os.RemoveAll(dir)
		path := filepath.Join(dir, "mutants.csv")
		Expect(os.WriteFile(path, []byte(twoMutants), 0o644)).To(Succeed())
		c, err := catalog.Open(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Count()).To(Equal(2))
	})

	It("fails to open missing files", func() {
		_, err := catalog.Open(filepath.Join(os.TempDir(), "fimut-missing-catalog.csv"))
		Expect(err).To(HaveOccurred())
	})

	table.DescribeTable("rejects malformed records",
		func(record string, reason string) {
			_, err := catalog.Load(strings.NewReader("# header\n" + record + "\n"))
			var pe *catalog.ParseError
			Expect(errors.As(err, &pe)).To(BeTrue())
			Expect(pe.Line).To(Equal(2))
			Expect(pe.Error()).To(ContainSubstring(reason))
		},
		table.Entry("too few fields", "1,1,5,0", "expected 5 fields, got 4"),
		table.Entry("non-numeric id", "x,1,5,0,1", "bad id"),
		table.Entry("unknown kind code", "1,7,5,0,1", "unknown fault kind code 7"),
		table.Entry("unknown kind name", "1,reg-sticky,5,0,1", "unknown fault kind"),
		table.Entry("bad target", "1,1,five,0,1", "bad target"),
		table.Entry("bad trigger", "1,2,5,-1,1", "bad trigger count"),
		table.Entry("bad mask", "1,1,5,0,0xzz", "bad mask"),
		table.Entry("register out of range", "1,1,32,0,1", "register index 32 out of range"),
		table.Entry("CSR out of range", "1,3,4096,0,1", "CSR index 4096 out of range"),
		table.Entry("transient without trigger", "1,2,5,0,1", "trigger count of at least 1"),
	)
})

var _ = Describe("ParseKind", func() {
	It("decodes every numeric code to a symbolic equivalent", func() {
		for code := uint64(1); code <= 13; code++ {
			if code == 7 {
				continue
			}
			kind, err := catalog.ParseKind(strconv.FormatUint(code, 10))
			Expect(err).NotTo(HaveOccurred())
			Expect(kind.Code()).To(Equal(code))

			byName, err := catalog.ParseKind(kind.String())
			Expect(err).NotTo(HaveOccurred())
			Expect(byName).To(Equal(kind))
		}
	})

	It("accepts gpr as an alias for reg", func() {
		kind, err := catalog.ParseKind("GPR-Permanent")
		Expect(err).NotTo(HaveOccurred())
		Expect(kind).To(Equal(catalog.Kind{Fault: catalog.Permanent, Resource: catalog.Register}))
	})

	It("rejects names without a fault part", func() {
		_, err := catalog.ParseKind("reg")
		Expect(err).To(MatchError(`malformed fault kind "reg"`))
	})
})
