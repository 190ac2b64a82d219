/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// fimcat is a tool for reviewing campaign event recordings.
// It understands the format written by github.com/hyperledger-labs/fimut/pkg/eventlog
// and is able to parse and filter these log files. It is also able to
// replay them against a campaign controller loaded with the same mutant catalog,
// for reproducing and debugging the decisions of a campaign.
package main

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"

	"github.com/pkg/errors"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/hyperledger-labs/fimut/pkg/campaign"
	"github.com/hyperledger-labs/fimut/pkg/catalog"
	"github.com/hyperledger-labs/fimut/pkg/eventlog"
	"github.com/hyperledger-labs/fimut/pkg/logging"
	"github.com/hyperledger-labs/fimut/pkg/outcome"
	"github.com/hyperledger-labs/fimut/pkg/report"
	"github.com/hyperledger-labs/fimut/pkg/timeout"
	t "github.com/hyperledger-labs/fimut/pkg/types"
)

// command line flags
var allEventTypes = []string{
	"Start",
	"RunCompleted",
	"Tick",
	"TimeoutExpired",
}

// excludeByType is used for --eventType/--notEventType.
// The assumption is that at least one of include or exclude is nil.
func excludeByType(value string, include []string, exclude []string) bool {
	if include != nil {
		for _, includeName := range include {
			if includeName == value {
				return false
			}
		}

		return true
	}

	for _, excludeName := range exclude {
		if excludeName == value {
			return true
		}
	}

	return false
}

func eventTypeText(event *campaign.Event) string {
	switch event.Type.(type) {
	case *campaign.EventStart:
		return "Start"
	case *campaign.EventRunCompleted:
		return "RunCompleted"
	case *campaign.EventTick:
		return "Tick"
	case *campaign.EventTimeoutExpired:
		return "TimeoutExpired"
	default:
		panic(fmt.Sprintf("Unknown event type '%T'", event.Type))
	}
}

// eventRun returns the run an event refers to, if it refers to one.
func eventRun(event *campaign.Event) (t.RunNumber, bool) {
	switch e := event.Type.(type) {
	case *campaign.EventRunCompleted:
		return e.Run, true
	case *campaign.EventTimeoutExpired:
		return e.Run, true
	default:
		return 0, false
	}
}

func excludedByRun(event *campaign.Event, runs []uint64) bool {
	if runs == nil {
		return false
	}

	run, ok := eventRun(event)
	if !ok {
		return true
	}

	for _, r := range runs {
		if t.RunNumber(r) == run {
			return false
		}
	}

	return true
}

func eventText(re *eventlog.RecordedEvent) string {
	text := fmt.Sprintf("[%d] %s time=%dus", re.Time, eventTypeText(re.Event), re.Event.Time)
	switch e := re.Event.Type.(type) {
	case *campaign.EventRunCompleted:
		text += fmt.Sprintf(" run=%d code=%#x (%s)", e.Run, e.Code, outcome.Classify(e.Code).Text)
	case *campaign.EventTimeoutExpired:
		text += fmt.Sprintf(" run=%d", e.Run)
	}
	return text
}

func actionText(action *campaign.Action) string {
	switch a := action.Type.(type) {
	case *campaign.ActionResetTarget:
		if a.Mutant == nil {
			return fmt.Sprintf("ResetTarget run=%d golden", a.Run)
		}
		return fmt.Sprintf("ResetTarget run=%d %s", a.Run, a.Mutant)
	case *campaign.ActionArmTimeout:
		return fmt.Sprintf("ArmTimeout run=%d after=%dus deadline=%dus", a.Run, a.After, a.Deadline)
	case *campaign.ActionDisarmTimeout:
		return fmt.Sprintf("DisarmTimeout run=%d", a.Run)
	case *campaign.ActionTerminate:
		if a.Err != nil {
			return fmt.Sprintf("Terminate status=%d error=%q", a.Status, a.Err.Error())
		}
		return fmt.Sprintf("Terminate status=%d", a.Status)
	default:
		return fmt.Sprintf("unknown action type %T", action.Type)
	}
}

type arguments struct {
	input         io.ReadCloser
	interactive   bool
	printActions  bool
	catalogPath   string
	timeout       timeout.Config
	logLevel      logging.LogLevel
	runs          []uint64
	eventTypes    []string
	notEventTypes []string
	statusIndices []uint64
}

// replay is a campaign controller events of the log are applied to.
type replay struct {
	controller *campaign.Controller
}

func (a *arguments) newReplay(output io.Writer) (*replay, error) {
	c, err := catalog.Open(a.catalogPath)
	if err != nil {
		return nil, err
	}

	return &replay{
		controller: campaign.NewController(&campaign.Config{
			Catalog:  c,
			Timeout:  a.timeout,
			Reporter: report.New(io.Discard),
		}, logging.NewConsoleLogger(a.logLevel, output)),
	}, nil
}

// apply applies event to the controller, catching its panics.
func (r *replay) apply(index uint64, event *campaign.Event) (result *campaign.ActionList, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.Errorf("controller panic-ed while applying event %d:\n\n%s\n\n%s", index, rec, debug.Stack())
		}
	}()

	return r.controller.ApplyEvent(event), nil
}

func (a *arguments) execute(output io.Writer) error {
	defer a.input.Close()

	// In interactive mode, events from the event log are applied to this controller.
	var r *replay
	if a.interactive {
		var err error
		if r, err = a.newReplay(output); err != nil {
			return errors.WithMessage(err, "could not set up replay")
		}
	}

	reader, err := eventlog.NewReader(a.input)
	if err != nil {
		return errors.WithMessage(err, "bad input file")
	}

	statusIndices := map[uint64]struct{}{}
	for _, index := range a.statusIndices {
		statusIndices[index] = struct{}{}
	}

	// The log itself does not keep track of indices, so we need to keep track of them here.
	index := uint64(0)

	for re, err := reader.ReadEvent(); err != io.EOF; re, err = reader.ReadEvent() {
		if err != nil {
			return errors.WithMessage(err, "failed reading input")
		}

		index++

		// We always print the event if the status index matches,
		// otherwise the output could be quite confusing.
		_, printStatus := statusIndices[index]
		if printStatus || (!excludedByRun(re.Event, a.runs) && !excludeByType(eventTypeText(re.Event), a.eventTypes, a.notEventTypes)) {
			fmt.Fprintf(output, "% 6d %s\n", index, eventText(re))
		}

		if r == nil {
			continue
		}

		actions, err := r.apply(index, re.Event)
		if err != nil {
			return err
		}

		if a.printActions {
			iter := actions.Iterator()
			for action := iter.Next(); action != nil; action = iter.Next() {
				fmt.Fprintf(output, "       actions: %s\n", actionText(action))
			}
		}

		if printStatus {
			fmt.Fprint(output, r.controller.Status().Pretty())
			fmt.Fprint(output, "\n")
		}
	}

	if r != nil {
		fmt.Fprintf(output, "Replay ended in phase %s at run %d after %d events\n", r.controller.Phase(), r.controller.Run(), index)
		if exit, ok := r.controller.Exit(); ok {
			fmt.Fprintf(output, "Campaign exited: %s\n", actionText(&campaign.Action{Type: exit}))
		}
	}

	return nil
}

func parseArgs(args []string) (*arguments, error) {
	app := kingpin.New("fimcat", "Utility for processing fault injection campaign event logs.")
	input := app.Flag("input", "The input file to read (defaults to stdin).").Default(os.Stdin.Name()).File()
	interactive := app.Flag("interactive", "Whether to replay this log against a campaign controller.").Default("false").Bool()
	catalogPath := app.Flag("catalog", "The mutant catalog the campaign ran with. (Required with --interactive)").String()
	timeoutFactor := app.Flag("timeoutFactor", "The timeout factor the campaign ran with.").Default(fmt.Sprint(timeout.DefaultFactor)).Float64()
	timeoutExtra := app.Flag("timeoutExtra", "The extra timeout in microseconds the campaign ran with.").Default(fmt.Sprint(timeout.DefaultExtraMicros)).Uint64()
	printActions := app.Flag("printActions", "Print actions produced by each event. (Must combine with --interactive)").Default("false").Bool()
	runs := app.Flag("run", "Report events of this run only, may be repeated").Uint64List()
	eventTypes := app.Flag("eventType", "Which event types to report.").Enums(allEventTypes...)
	notEventTypes := app.Flag("notEventType", "Which event types to exclude. (Cannot combine with --eventType)").Enums(allEventTypes...)
	statusIndices := app.Flag("statusIndex", "Print campaign status at given index in the log (repeatable).").Uint64List()
	logLevel := app.Flag("logLevel", "When run in interactive mode, the log level of the controller.").Enum("debug", "info", "warn", "error")

	_, err := app.Parse(args)
	if err != nil {
		return nil, err
	}

	switch {
	case *eventTypes != nil && *notEventTypes != nil:
		return nil, errors.Errorf("cannot set both --eventType and --notEventType")
	case *statusIndices != nil && !*interactive:
		return nil, errors.Errorf("cannot set status indices for non-interactive playback")
	case *logLevel != "" && !*interactive:
		return nil, errors.Errorf("cannot set logLevel for non-interactive playback")
	case *printActions && !*interactive:
		return nil, errors.Errorf("cannot print actions for non-interactive playback")
	case *interactive && *catalogPath == "":
		return nil, errors.Errorf("interactive playback requires --catalog")
	}

	level := logging.LevelInfo
	if *logLevel != "" {
		level = logging.ParseLevel(*logLevel)
	}

	return &arguments{
		input:       *input,
		interactive: *interactive,
		catalogPath: *catalogPath,
		timeout: timeout.Config{
			Factor:      *timeoutFactor,
			ExtraMicros: *timeoutExtra,
		},
		printActions:  *printActions,
		logLevel:      level,
		runs:          *runs,
		eventTypes:    *eventTypes,
		notEventTypes: *notEventTypes,
		statusIndices: *statusIndices,
	}, nil
}

func main() {
	kingpin.Version("0.0.1")
	args, err := parseArgs(os.Args[1:])
	if err != nil {
		kingpin.Fatalf("failed to parse arguments, %s, try --help", err)
	}
	err = args.execute(os.Stdout)
	if err != nil {
		fmt.Println("")
		kingpin.Fatalf("%s", err)
	}
}
