/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package campaign implements the controller of a fault injection campaign: a
// state machine running the golden run, then one run per mutant of the catalog,
// and finalizing every run exactly once.
//
// The controller is a pure event to action machine. It never blocks and never
// starts goroutines: completions, clock ticks and timer expiries are fed to
// ApplyEvent from a single thread, which applies the returned actions.
package campaign

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/hyperledger-labs/fimut/pkg/catalog"
	"github.com/hyperledger-labs/fimut/pkg/logging"
	"github.com/hyperledger-labs/fimut/pkg/outcome"
	"github.com/hyperledger-labs/fimut/pkg/peripheral"
	"github.com/hyperledger-labs/fimut/pkg/report"
	"github.com/hyperledger-labs/fimut/pkg/results"
	"github.com/hyperledger-labs/fimut/pkg/stats"
	"github.com/hyperledger-labs/fimut/pkg/status"
	"github.com/hyperledger-labs/fimut/pkg/timeout"
	t "github.com/hyperledger-labs/fimut/pkg/types"
)

// Phase is the phase of a campaign.
type Phase int

const (
	PhasePreInit Phase = iota
	PhaseGoldenRun
	PhaseMutant
	PhaseTerminated
)

func (p Phase) String() string {
	switch p {
	case PhasePreInit:
		return "pre-init"
	case PhaseGoldenRun:
		return "golden-run"
	case PhaseMutant:
		return "mutant"
	case PhaseTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Exit statuses of a campaign.
const (
	StatusSuccess        = 0
	StatusGoldenRunError = 1
	StatusConfigError    = 2
	StatusInternalError  = 3
)

// GoldenRunNumber is the number of the first run of every campaign.
const GoldenRunNumber t.RunNumber = 1

// GoldenRunError aborts a campaign whose golden run did not finish fault free.
type GoldenRunError struct {
	Outcome outcome.RunOutcome
}

func (e *GoldenRunError) Error() string {
	return fmt.Sprintf("golden run has errors: %s (code %#x after %dus), fix this or use another test program",
		e.Outcome.Classification.Text, e.Outcome.Code, e.Outcome.Elapsed)
}

// Config holds the collaborators of a Controller.
type Config struct {
	Catalog *catalog.Catalog
	Timeout timeout.Config

	// Reporter receives the report records. Required.
	Reporter *report.Reporter

	// Peripherals are reset at every run boundary. Optional.
	Peripherals *peripheral.Set

	// Results receives the outcome of every run. The report footer and the
	// status are summarized from it. Defaults to a results.VolatileStore.
	Results results.Store

	// VerboseStatistics dumps the access statistics of the golden run into the report.
	VerboseStatistics bool
}

// Controller is the campaign state machine.
type Controller struct {
	config *Config
	logger logging.Logger

	phase Phase
	run   t.RunNumber

	// finalized is set once the current run completed. Later completions
	// of the same run, e.g. a timer expiring after an explicit exit, are ignored.
	finalized bool
	runStart  t.Micros

	budget   *timeout.Budget
	deadline timeout.Deadline

	stats *stats.Collector

	// targetHits counts the accesses of the current run covering the target
	// byte of the active memory mutant.
	targetHits uint64

	exit *ActionTerminate
}

// NewController returns a controller in PhasePreInit.
func NewController(config *Config, logger logging.Logger) *Controller {
	if config.Results == nil {
		config.Results = results.NewVolatileStore()
	}

	return &Controller{
		config: config,
		logger: logger,
		phase:  PhasePreInit,
		budget: timeout.NewBudget(config.Timeout, logger),
		stats:  stats.NewCollector(),
	}
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase {
	return c.phase
}

// Run returns the number of the current run, 0 before the campaign started.
func (c *Controller) Run() t.RunNumber {
	return c.run
}

// Statistics returns the statistics collector of the current run.
func (c *Controller) Statistics() *stats.Collector {
	return c.stats
}

// ActiveMutant returns the mutant active in the current run, nil during the golden run.
func (c *Controller) ActiveMutant() *catalog.Mutant {
	if c.phase != PhaseMutant {
		return nil
	}
	return c.config.Catalog.Current()
}

// Exit returns the terminating action, once the campaign terminated.
func (c *Controller) Exit() (*ActionTerminate, bool) {
	return c.exit, c.exit != nil
}

// ApplyEvent applies one event to the state machine and returns the resulting actions.
func (c *Controller) ApplyEvent(event *Event) *ActionList {
	switch e := event.Type.(type) {
	case *EventStart:
		return c.applyStart(event.Time)
	case *EventRunCompleted:
		return c.applyRunCompleted(event.Time, e)
	case *EventTick:
		return c.applyTick(event.Time)
	case *EventTimeoutExpired:
		return c.applyTimeoutExpired(event.Time, e)
	default:
		panic(fmt.Sprintf("unknown campaign event type: %T", event.Type))
	}
}

func (c *Controller) applyStart(now t.Micros) *ActionList {
	if c.phase != PhasePreInit {
		c.logger.Log(logging.LevelWarn, "ignoring start of an already started campaign", "phase", c.phase)
		return &ActionList{}
	}

	c.config.Reporter.Header()
	c.phase = PhaseGoldenRun
	c.logger.Log(logging.LevelInfo, "starting golden run", "mutants", c.config.Catalog.Count())

	actions := &ActionList{}
	if err := c.beginRun(GoldenRunNumber, now); err != nil {
		return actions.PushBackList(c.terminate(StatusInternalError, err))
	}

	// The golden run is what the budget is derived from, it runs without timeout.
	return actions.ResetTarget(c.run, nil)
}

func (c *Controller) applyRunCompleted(now t.Micros, e *EventRunCompleted) *ActionList {
	if e.Run != c.run || c.finalized {
		c.logger.Log(logging.LevelDebug, "ignoring completion of a finalized run", "run", e.Run, "current", c.run, "code", e.Code)
		return &ActionList{}
	}
	return c.completeRun(now, e.Code)
}

func (c *Controller) applyTick(now t.Micros) *ActionList {
	if !c.deadline.Expired(now) {
		return &ActionList{}
	}
	run, _ := c.deadline.Armed()
	if run != c.run || c.finalized {
		c.deadline.Disarm()
		return &ActionList{}
	}
	c.logger.Log(logging.LevelDebug, "run timed out", "run", run, "deadline", c.deadline.At(), "now", now)
	return c.completeRun(now, outcome.CodeTimeout)
}

func (c *Controller) applyTimeoutExpired(now t.Micros, e *EventTimeoutExpired) *ActionList {
	if e.Run != c.run || c.finalized {
		c.logger.Log(logging.LevelDebug, "ignoring stale timeout", "run", e.Run, "current", c.run)
		return &ActionList{}
	}
	c.logger.Log(logging.LevelDebug, "run timed out on host timer", "run", e.Run)
	return c.completeRun(now, outcome.CodeTimeout)
}

// completeRun finalizes the current run. It is the only place runs end,
// whether by explicit completion or by timeout.
func (c *Controller) completeRun(now t.Micros, code uint32) *ActionList {
	if c.finalized || (c.phase != PhaseGoldenRun && c.phase != PhaseMutant) {
		return &ActionList{}
	}
	c.finalized = true

	actions := &ActionList{}
	c.deadline.Disarm()
	actions.DisarmTimeout(c.run)

	var elapsed t.Micros
	if now > c.runStart {
		elapsed = now - c.runStart
	}
	o := outcome.New(code, elapsed)

	switch c.phase {
	case PhaseGoldenRun:
		if o.Classification.Killed() {
			err := &GoldenRunError{Outcome: o}
			c.logger.Log(logging.LevelError, "golden run has errors", "outcome", o.Classification.Text, "code", o.Code, "elapsed", o.Elapsed)
			return actions.PushBackList(c.terminate(StatusGoldenRunError, err))
		}

		budget, err := c.budget.Calibrate(elapsed)
		if err != nil {
			return actions.PushBackList(c.terminate(StatusInternalError, err))
		}
		c.logger.Log(logging.LevelInfo, "golden run completed", "elapsed", elapsed, "budget", budget)

		c.config.Reporter.GoldenRun(elapsed, budget, c.config.Catalog.Count())
		if c.config.VerboseStatistics {
			c.config.Reporter.Statistics(c.stats)
		}
		if err := c.store(&results.Record{Run: c.run, Golden: true, Code: o.Code, Elapsed: o.Elapsed}); err != nil {
			return actions.PushBackList(c.terminate(StatusInternalError, err))
		}

		c.phase = PhaseMutant

	case PhaseMutant:
		m := c.config.Catalog.Current()
		c.config.Reporter.Mutant(m.ID, c.config.Catalog.Index(), o)
		c.logger.Log(logging.LevelDebug, "mutant run completed", "mutant", m.ID, "outcome", o.Classification.Text, "elapsed", o.Elapsed)
		if err := c.store(&results.Record{Run: c.run, MutantID: m.ID, Code: o.Code, Elapsed: o.Elapsed}); err != nil {
			return actions.PushBackList(c.terminate(StatusInternalError, err))
		}
	}

	m, err := c.config.Catalog.Advance()
	if err == catalog.ErrExhausted {
		summary, sumErr := results.Summary(c.config.Results)
		if sumErr != nil {
			return actions.PushBackList(c.terminate(StatusInternalError, sumErr))
		}
		c.config.Reporter.Footer(summary)
		c.logger.Log(logging.LevelInfo, "mutant catalog exhausted", "mutants", c.config.Catalog.Count())
		return actions.PushBackList(c.terminate(StatusSuccess, nil))
	}
	if err != nil {
		return actions.PushBackList(c.terminate(StatusInternalError, err))
	}

	if err := c.beginRun(c.run+1, now); err != nil {
		return actions.PushBackList(c.terminate(StatusInternalError, err))
	}

	budget, _ := c.budget.Micros()
	c.deadline.Arm(c.run, now, budget)
	actions.ArmTimeout(c.run, budget, c.deadline.At())

	return actions.ResetTarget(c.run, m)
}

// beginRun clears all per-run state for run, starting at now.
func (c *Controller) beginRun(run t.RunNumber, now t.Micros) error {
	c.run = run
	c.finalized = false
	c.runStart = now
	c.stats.Reset()
	c.targetHits = 0

	if c.config.Peripherals != nil {
		if err := c.config.Peripherals.Reset(); err != nil {
			return errors.WithMessagef(err, "could not reset peripherals for run %d", run)
		}
	}
	return nil
}

func (c *Controller) store(r *results.Record) error {
	return errors.WithMessage(c.config.Results.Put(r), "could not store run result")
}

func (c *Controller) terminate(status int, err error) *ActionList {
	c.phase = PhaseTerminated
	c.deadline.Disarm()
	if flushErr := c.config.Reporter.Flush(); flushErr != nil && err == nil {
		status, err = StatusInternalError, errors.WithMessage(flushErr, "could not write report")
	}
	c.exit = &ActionTerminate{
		Status: status,
		Err:    err,
	}
	return (&ActionList{}).Terminate(status, err)
}

// Status returns a snapshot of the campaign state, for debugging.
func (c *Controller) Status() *status.Campaign {
	s := &status.Campaign{
		Phase:       c.phase.String(),
		Run:         c.run.Pb(),
		Finalized:   c.finalized,
		MutantIndex: c.config.Catalog.Index(),
		MutantCount: c.config.Catalog.Count(),
		Outcomes:    map[string]int{},
	}

	if m := c.ActiveMutant(); m != nil {
		s.ActiveMutant = &status.Mutant{
			ID:           m.ID.Pb(),
			Kind:         m.Kind.String(),
			Target:       m.Target,
			TriggerCount: m.TriggerCount,
			Mask:         m.Mask,
		}
	}

	budget, calibrated := c.budget.Micros()
	_, armed := c.deadline.Armed()
	s.Timeout = status.Timeout{
		Factor:       c.budget.Config().Factor,
		ExtraMicros:  c.budget.Config().ExtraMicros,
		Calibrated:   calibrated,
		BudgetMicros: budget.Pb(),
		Deadline:     c.deadline.At().Pb(),
		Armed:        armed,
	}

	summary, err := results.Summary(c.config.Results)
	if err != nil {
		c.logger.Log(logging.LevelWarn, "could not summarize outcomes for status", "error", err)
	}
	for category, n := range summary {
		s.Outcomes[category.String()] = n
	}

	if c.exit != nil {
		s.Exit = &status.Exit{Status: c.exit.Status}
		if c.exit.Err != nil {
			s.Exit.Err = c.exit.Err.Error()
		}
	}

	return s
}
