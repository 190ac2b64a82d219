/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package report writes the human readable campaign report: a header, the golden
// run summary, one line per mutant run and a footer, plus a condensed progress
// indicator on a separate status destination.
package report

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/hyperledger-labs/fimut/pkg/outcome"
	"github.com/hyperledger-labs/fimut/pkg/stats"
	t "github.com/hyperledger-labs/fimut/pkg/types"
)

// DefaultProgressPeriod is the number of mutant records between two progress updates.
const DefaultProgressPeriod = 100

const (
	banner    = "################################################################################"
	separator = "--------------------------------------------------------------------------------"

	// classificationWidth is the column width of the classification text.
	classificationWidth = 22
)

// Option customizes a Reporter.
type Option interface{}

type statusOpt struct {
	w io.Writer
}

// StatusOpt sets the destination of the progress indicator. Without it, no progress is written.
func StatusOpt(w io.Writer) Option {
	return statusOpt{w: w}
}

type progressPeriodOpt int

// ProgressPeriodOpt sets the number of mutant records between two progress updates.
func ProgressPeriodOpt(period int) Option {
	return progressPeriodOpt(period)
}

type titleOpt string

// TitleOpt sets the title printed in the header banner.
func TitleOpt(title string) Option {
	return titleOpt(title)
}

// Reporter writes the campaign report. It is not safe for concurrent use.
type Reporter struct {
	out    *bufio.Writer
	closer io.Closer

	status         io.Writer
	statusTerminal bool
	period         int
	title          string

	count     int
	budget    t.Micros
	idWidth   int
	timeWidth int

	sinceFlush int
}

// New returns a reporter writing the report to out.
// If out is an io.Closer, it is closed by Close.
func New(out io.Writer, opts ...Option) *Reporter {
	r := &Reporter{
		out:       bufio.NewWriter(out),
		period:    DefaultProgressPeriod,
		title:     "fimut fault injection campaign",
		idWidth:   1,
		timeWidth: 1,
	}

	if c, ok := out.(io.Closer); ok && out != os.Stdout && out != os.Stderr {
		r.closer = c
	}

	for _, opt := range opts {
		switch v := opt.(type) {
		case statusOpt:
			r.status = v.w
			if f, ok := v.w.(*os.File); ok {
				r.statusTerminal = term.IsTerminal(int(f.Fd()))
			}
		case progressPeriodOpt:
			if v > 0 {
				r.period = int(v)
			}
		case titleOpt:
			r.title = string(v)
		}
	}

	return r
}

// digits returns the number of decimal digits of n, at least 1.
func digits(n uint64) int {
	return len(strconv.FormatUint(n, 10))
}

// Header writes the banner opening the report.
func (r *Reporter) Header() {
	inner := len(banner) - 4
	blank := "##" + strings.Repeat(" ", inner) + "##"
	title := "##  " + r.title
	if pad := len(banner) - 2 - len(title); pad > 0 {
		title += strings.Repeat(" ", pad)
	}
	title += "##"

	fmt.Fprintln(r.out, banner)
	fmt.Fprintln(r.out, blank)
	fmt.Fprintln(r.out, title)
	fmt.Fprintln(r.out, blank)
	fmt.Fprintln(r.out, banner)
	fmt.Fprintln(r.out, "#")
}

// GoldenRun writes the golden run summary and the heading of the mutant table.
// It fixes the column widths used by all mutant records.
func (r *Reporter) GoldenRun(measured, budget t.Micros, count int) {
	r.count = count
	r.budget = budget
	r.idWidth = digits(uint64(count))
	r.timeWidth = digits(uint64(budget))

	fmt.Fprintf(r.out, "#   Golden run took %d us to complete...\n", measured)
	fmt.Fprintf(r.out, "#    -> Mutants will timeout after %d us.\n#\n", budget)
	fmt.Fprintf(r.out, "#   Running %d mutants:\n", count)
	fmt.Fprintf(r.out, "#   [%*s, %*s, %*s]\n", r.idWidth, "ID", classificationWidth, "TEST RESULT", r.timeWidth+3, "TIME US")
}

// Mutant writes the record of one mutant run. index is the zero-based position
// of the mutant in the catalog.
func (r *Reporter) Mutant(id t.MutantID, index int, o outcome.RunOutcome) {
	fmt.Fprintf(r.out, "     %0*d, %*s, %*d us\n", r.idWidth, id, classificationWidth, o.Classification.Text, r.timeWidth, o.Elapsed)

	r.sinceFlush++
	if r.sinceFlush < r.period {
		return
	}
	r.sinceFlush = 0
	r.out.Flush()
	r.progress(index+1, false)
}

func (r *Reporter) progress(done int, final bool) {
	if r.status == nil || r.count == 0 {
		return
	}

	percent := float64(done) / float64(r.count) * 100
	line := fmt.Sprintf("%0*d / %0*d (%03.2f %%)", r.idWidth, done, r.idWidth, r.count, percent)

	switch {
	case !r.statusTerminal:
		fmt.Fprintln(r.status, line)
	case final:
		fmt.Fprintf(r.status, "\r%s\n", line)
	default:
		fmt.Fprintf(r.status, "\r%s", line)
	}
}

// Statistics writes the access and execution counters of a run.
func (r *Reporter) Statistics(c *stats.Collector) {
	fmt.Fprintln(r.out, "\nGPR accesses <#reads, #writes, #total>:")
	fmt.Fprintln(r.out, separator)
	for i := t.RegIndex(1); i < t.NumRegisters; i++ {
		ctr := c.Register(i)
		fmt.Fprintf(r.out, "GPR[%d]:%d,%d,%d\n", i, ctr.Reads, ctr.Writes, ctr.Total())
	}

	fmt.Fprintln(r.out, "\nCSR accesses <#reads, #writes, #total>:")
	fmt.Fprintln(r.out, separator)
	for i := t.CSRIndex(0); i < t.NumCSRs; i++ {
		ctr := c.CSR(i)
		if ctr.Total() == 0 {
			continue
		}
		fmt.Fprintf(r.out, "CSR[%d]:%d,%d,%d\n", i, ctr.Reads, ctr.Writes, ctr.Total())
	}

	fmt.Fprintln(r.out, "\nINSTRUCTION executions:")
	fmt.Fprintln(r.out, separator)
	counts := c.InstructionCounts()
	for _, pc := range stats.SortedAddresses(counts) {
		fmt.Fprintf(r.out, "EXE[%x]:%d\n", uint64(pc), counts[pc])
	}

	fmt.Fprintln(r.out, "\nMemory accesses <#reads, #writes, #total>:")
	fmt.Fprintln(r.out, separator)
	for _, addr := range c.MemoryAddresses() {
		ctr, _ := c.Memory(addr)
		fmt.Fprintf(r.out, "MEMORY[%x]:%d,%d,%d\n", uint64(addr), ctr.Reads, ctr.Writes, ctr.Total())
	}
	fmt.Fprintln(r.out, separator)
}

// Footer writes the closing block of the report from the number of mutant runs
// per category, and completes the progress indicator.
func (r *Reporter) Footer(summary map[outcome.Category]int) {
	records := 0
	for _, n := range summary {
		records += n
	}

	fmt.Fprintf(r.out, "#   Mutation testing finished. Simulated %d mutants.\n", records)
	if records > 0 {
		killed := records - summary[outcome.CategoryNotKilled]
		fmt.Fprintf(r.out, "#   Killed %d of %d mutants (%03.2f %%):\n", killed, records, float64(killed)/float64(records)*100)
	}
	for _, c := range outcome.Categories {
		if n := summary[c]; n > 0 {
			fmt.Fprintf(r.out, "#   %*s: %d\n", classificationWidth, c, n)
		}
	}

	r.out.Flush()
	r.progress(r.count, true)
}

// Flush writes any buffered report data to the destination.
func (r *Reporter) Flush() error {
	return r.out.Flush()
}

// Close flushes the report and closes its destination, if it owns one.
func (r *Reporter) Close() error {
	if err := r.out.Flush(); err != nil {
		return err
	}
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}
