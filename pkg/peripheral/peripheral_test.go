/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package peripheral_test

import (
	"bytes"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/hyperledger-labs/fimut/pkg/peripheral"
)

var _ = Describe("Monitor", func() {
	var (
		m *peripheral.Monitor
	)

	BeforeEach(func() {
		m = peripheral.NewMonitor("out", 0x90000000, 2)
	})

	It("defaults its capacity", func() {
		Expect(peripheral.NewMonitor("out", 0, 0).Capacity()).To(Equal(peripheral.DefaultMonitorCapacity))
	})

	It("captures writes in order and rejects overflow", func() {
		Expect(m.Write(7)).To(Succeed())
		Expect(m.Write(8)).To(Succeed())
		Expect(m.Write(9)).To(MatchError(peripheral.ErrCaptureFull))
		Expect(m.Captured()).To(Equal([]uint64{7, 8}))
	})

	It("starts over after a reset", func() {
		Expect(m.Write(7)).To(Succeed())
		m.Reset()
		Expect(m.Captured()).To(BeEmpty())
		Expect(m.Write(1)).To(Succeed())
		Expect(m.Captured()).To(Equal([]uint64{1}))
	})
})

var _ = Describe("RandomSource", func() {
	It("starts with the maximum and zero", func() {
		s := peripheral.NewStimulator("in", 0x91000000, peripheral.NewRandomSource(1, 100))
		Expect(s.Read(4)).To(Equal(uint64(100)))
		Expect(s.Read(4)).To(Equal(uint64(0)))
		for i := 0; i < 1000; i++ {
			Expect(s.Read(4)).To(BeNumerically("<=", 100))
		}
	})

	It("repeats its sequence after a reset", func() {
		s := peripheral.NewRandomSource(42, peripheral.DefaultStimulatorMaxValue)
		var first []uint64
		for i := 0; i < 10; i++ {
			v, err := s.Next(4)
			Expect(err).NotTo(HaveOccurred())
			first = append(first, v)
		}

		Expect(s.Reset()).To(Succeed())
		for i := 0; i < 10; i++ {
			Expect(s.Next(4)).To(Equal(first[i]))
		}
	})

	It("truncates to the read width", func() {
		s := peripheral.NewStimulator("in", 0, peripheral.NewRandomSource(1, 0x1234))
		Expect(s.Read(1)).To(Equal(uint64(0x34)))
	})
})

var _ = Describe("StreamSource", func() {
	var (
		s *peripheral.Stimulator
	)

	BeforeEach(func() {
		stream := bytes.NewReader([]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06})
		s = peripheral.NewStimulator("in", 0x91000000, peripheral.NewStreamSource(stream))
	})

	It("reads little endian values of the access width", func() {
		Expect(s.Read(4)).To(Equal(uint64(0x04030201)))
		Expect(s.Read(1)).To(Equal(uint64(0x05)))
	})

	It("reports exhaustion", func() {
		Expect(s.Read(4)).To(Equal(uint64(0x04030201)))
		_, err := s.Read(4)
		Expect(err).To(MatchError("stimulator in: stimulus stream exhausted"))
	})

	It("rewinds on reset", func() {
		Expect(s.Read(2)).To(Equal(uint64(0x0201)))
		Expect(s.Reset()).To(Succeed())
		Expect(s.Read(2)).To(Equal(uint64(0x0201)))
	})
})

var _ = Describe("Set", func() {
	var (
		set *peripheral.Set
		m   *peripheral.Monitor
	)

	BeforeEach(func() {
		set = peripheral.NewSet()
		m = peripheral.NewMonitor("out", 0x90000000, 4)
		Expect(set.AddMonitor(m)).To(Succeed())
		Expect(set.AddStimulator(peripheral.NewStimulator("in", 0x91000000, peripheral.NewRandomSource(1, 9)))).To(Succeed())
	})

	It("looks peripherals up by address", func() {
		found, ok := set.Monitor(0x90000000)
		Expect(ok).To(BeTrue())
		Expect(found).To(Equal(m))
		_, ok = set.Stimulator(0x90000000)
		Expect(ok).To(BeFalse())
		_, ok = set.Stimulator(0x91000000)
		Expect(ok).To(BeTrue())
		Expect(set.Monitors()).To(ConsistOf(m))
	})

	It("refuses shared addresses", func() {
		Expect(set.AddStimulator(peripheral.NewStimulator("dup", 0x90000000, peripheral.NewRandomSource(1, 1)))).
			To(MatchError("stimulator dup: address 0x90000000 already in use"))
	})

	It("resets every peripheral", func() {
		st, _ := set.Stimulator(0x91000000)
		Expect(st.Read(4)).To(Equal(uint64(9)))
		Expect(m.Write(3)).To(Succeed())

		Expect(set.Reset()).To(Succeed())
		Expect(m.Captured()).To(BeEmpty())
		Expect(st.Read(4)).To(Equal(uint64(9)))
		Expect(set.Close()).To(Succeed())
	})
})
