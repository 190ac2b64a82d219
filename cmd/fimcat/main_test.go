/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/hyperledger-labs/fimut/pkg/campaign"
	"github.com/hyperledger-labs/fimut/pkg/eventlog"
	"github.com/hyperledger-labs/fimut/pkg/outcome"
	"github.com/hyperledger-labs/fimut/pkg/timeout"
)

var _ = Describe("Parsing", func() {
	It("parses a fully populated command line", func() {
		args, err := parseArgs([]string{
			"--input", "main.go",
			"--interactive",
			"--catalog", "mutants.csv",
			"--timeoutFactor", "1.5",
			"--timeoutExtra", "20",
			"--printActions",
			"--run", "2",
			"--run", "3",
			"--eventType", "RunCompleted",
			"--eventType", "TimeoutExpired",
			"--statusIndex", "4",
			"--statusIndex", "7",
			"--logLevel", "debug",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(args.input).NotTo(BeNil())
		Expect(args.input.Close()).NotTo(HaveOccurred())
		Expect(args.interactive).To(BeTrue())
		Expect(args.catalogPath).To(Equal("mutants.csv"))
		Expect(args.timeout).To(Equal(timeout.Config{Factor: 1.5, ExtraMicros: 20}))
		Expect(args.printActions).To(BeTrue())
		Expect(args.runs).To(Equal([]uint64{2, 3}))
		Expect(args.eventTypes).To(Equal([]string{"RunCompleted", "TimeoutExpired"}))
		Expect(args.statusIndices).To(Equal([]uint64{4, 7}))
	})

	It("defaults the timeout configuration", func() {
		args, err := parseArgs([]string{"--input", "main.go"})
		Expect(err).NotTo(HaveOccurred())
		Expect(args.input.Close()).NotTo(HaveOccurred())
		Expect(args.timeout).To(Equal(timeout.DefaultConfig()))
	})

	When("both event includes and event excludes are present", func() {
		It("returns an error", func() {
			_, err := parseArgs([]string{
				"--eventType", "Tick",
				"--notEventType", "Start",
			})
			Expect(err).To(MatchError("cannot set both --eventType and --notEventType"))
		})
	})

	When("status indices are set without interactive mode", func() {
		It("returns an error", func() {
			_, err := parseArgs([]string{"--statusIndex", "1"})
			Expect(err).To(MatchError("cannot set status indices for non-interactive playback"))
		})
	})

	When("printing actions without interactive mode", func() {
		It("returns an error", func() {
			_, err := parseArgs([]string{"--printActions"})
			Expect(err).To(MatchError("cannot print actions for non-interactive playback"))
		})
	})

	When("interactive mode has no catalog", func() {
		It("returns an error", func() {
			_, err := parseArgs([]string{"--interactive"})
			Expect(err).To(MatchError("interactive playback requires --catalog"))
		})
	})
})

var _ = Describe("Execution", func() {
	var (
		logBytes    *bytes.Buffer
		dir         string
		catalogPath string
		output      *bytes.Buffer
	)

	BeforeEach(func() {
		logBytes = &bytes.Buffer{}
		output = &bytes.Buffer{}

		now := int64(0)
		recorder := eventlog.NewRecorder(logBytes, eventlog.TimeSourceOpt(func() int64 {
			now++
			return now
		}))
		events := (&campaign.EventList{}).
			Start(0).
			RunCompleted(1000, 1, outcome.CodeNotKilled).
			Tick(2000).
			Tick(3251).
			RunCompleted(3300, 2, outcome.CodeNotKilled).
			RunCompleted(4000, 3, outcome.CodeExitFail)
		iter := events.Iterator()
		for event := iter.Next(); event != nil; event = iter.Next() {
			Expect(recorder.Intercept(event)).To(Succeed())
		}
		Expect(recorder.Stop()).To(Succeed())

		var err error
		dir, err = os.MkdirTemp("", "fimcat")
		Expect(err).NotTo(HaveOccurred())
		catalogPath = filepath.Join(dir, "mutants.csv")
		Expect(os.WriteFile(catalogPath, []byte("# two mutants\n1,2,5,1,0x1\n2,1,6,0,0x1\n"), 0o644)).To(Succeed())
	})

	AfterEach(func() {
		os.RemoveAll(dir)
	})

	It("prints every event of the log", func() {
		args := &arguments{input: io.NopCloser(logBytes)}
		Expect(args.execute(output)).To(Succeed())
		Expect(output.String()).To(Equal(
			"     1 [1] Start time=0us\n" +
				"     2 [2] RunCompleted time=1000us run=1 code=0x0 (not killed)\n" +
				"     3 [3] Tick time=2000us\n" +
				"     4 [4] Tick time=3251us\n" +
				"     5 [5] RunCompleted time=3300us run=2 code=0x0 (not killed)\n" +
				"     6 [6] RunCompleted time=4000us run=3 code=0x700000 (non-zero exitcode)\n",
		))
	})

	It("filters by run and event type", func() {
		args := &arguments{
			input:         io.NopCloser(logBytes),
			runs:          []uint64{2, 3},
			notEventTypes: []string{"Tick"},
		}
		Expect(args.execute(output)).To(Succeed())
		Expect(output.String()).To(Equal(
			"     5 [5] RunCompleted time=3300us run=2 code=0x0 (not killed)\n" +
				"     6 [6] RunCompleted time=4000us run=3 code=0x700000 (non-zero exitcode)\n",
		))
	})

	It("replays the log against a controller", func() {
		args := &arguments{
			input:         io.NopCloser(logBytes),
			interactive:   true,
			printActions:  true,
			catalogPath:   catalogPath,
			timeout:       timeout.DefaultConfig(),
			eventTypes:    []string{"Start"},
			statusIndices: []uint64{4},
		}
		Expect(args.execute(output)).To(Succeed())

		out := output.String()
		Expect(out).To(ContainSubstring("       actions: ResetTarget run=1 golden\n"))
		Expect(out).To(ContainSubstring("       actions: ArmTimeout run=2 after=2250us deadline=3250us\n"))
		// The tick past the deadline times out run 2, its explicit completion is ignored.
		Expect(out).To(ContainSubstring("     4 [4] Tick time=3251us\n"))
		Expect(out).To(ContainSubstring("Phase=mutant, Run=3, Finalized=false"))
		Expect(out).To(ContainSubstring("Replay ended in phase terminated at run 3 after 6 events\n"))
		Expect(out).To(ContainSubstring("Campaign exited: Terminate status=0\n"))
	})

	When("the catalog cannot be opened", func() {
		It("returns an error", func() {
			args := &arguments{
				input:       io.NopCloser(logBytes),
				interactive: true,
				catalogPath: filepath.Join(filepath.Dir(catalogPath), "missing.csv"),
			}
			Expect(args.execute(output)).To(MatchError(ContainSubstring("could not set up replay")))
		})
	})
})
