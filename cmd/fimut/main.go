/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// fimut runs a fault injection campaign: a golden run of the target program,
// followed by one run per mutant of the catalog, and writes the campaign report.
//
// The exit status is 0 on success, 1 if the golden run failed, 2 for
// configuration errors and 3 for internal errors.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/hyperledger-labs/fimut/pkg/campaign"
	"github.com/hyperledger-labs/fimut/pkg/catalog"
	"github.com/hyperledger-labs/fimut/pkg/config"
	"github.com/hyperledger-labs/fimut/pkg/eventlog"
	"github.com/hyperledger-labs/fimut/pkg/logging"
	"github.com/hyperledger-labs/fimut/pkg/outcome"
	"github.com/hyperledger-labs/fimut/pkg/processor"
	"github.com/hyperledger-labs/fimut/pkg/report"
	"github.com/hyperledger-labs/fimut/pkg/results"
	"github.com/hyperledger-labs/fimut/pkg/testengine"
)

const (
	loggerZerolog = "zerolog"
	loggerZap     = "zap"
	loggerConsole = "console"

	storeMemory = "memory"
	storeBadger = "badger"
)

type arguments struct {
	catalogPath    string
	setupPath      string
	programPath    string
	reportPath     string
	statusPath     string
	eventLogPath   string
	verbose        bool
	progressPeriod int
	loggerKind     string
	logLevel       logging.LogLevel
	hostTimeouts   bool
	timeoutScale   time.Duration
	resultStore    string
}

func parseArgs(args []string) (*arguments, error) {
	app := kingpin.New("fimut", "Fault injection mutation testing campaign runner.")
	catalogPath := app.Flag("catalog", "The mutant catalog to test.").Required().String()
	setupPath := app.Flag("setup", "The test setup document (XML or YAML), declaring peripherals and timeout.").String()
	programPath := app.Flag("program", "The scripted target program to run (YAML).").Required().String()
	reportPath := app.Flag("report", "Where to write the campaign report (defaults to stdout).").Default("-").String()
	statusPath := app.Flag("status", "Where to write the progress indicator: stdout, stderr, none or a file.").Default("stderr").String()
	eventLogPath := app.Flag("eventLog", "Record the campaign events to this file, for fimcat.").String()
	verbose := app.Flag("verbose", "Dump the access statistics of the golden run into the report.").Default("false").Bool()
	progressPeriod := app.Flag("progressPeriod", "Number of mutant records between progress updates.").Default(fmt.Sprint(report.DefaultProgressPeriod)).Int()
	loggerKind := app.Flag("logger", "The logging backend.").Default(loggerZerolog).Enum(loggerZerolog, loggerZap, loggerConsole)
	logLevel := app.Flag("logLevel", "The minimum level of log messages.").Default("info").Enum("debug", "info", "warn", "error")
	hostTimeouts := app.Flag("hostTimeouts", "Also time mutant runs out on the host clock.").Default("false").Bool()
	timeoutScale := app.Flag("timeoutScale", "Host time per microsecond of timeout budget (with --hostTimeouts).").Default("1us").Duration()
	resultStore := app.Flag("results", "Where to keep the run results during the campaign.").Default(storeMemory).Enum(storeMemory, storeBadger)

	_, err := app.Parse(args)
	if err != nil {
		return nil, err
	}

	switch {
	case *progressPeriod <= 0:
		return nil, errors.Errorf("progress period must be positive, got %d", *progressPeriod)
	case *timeoutScale <= 0:
		return nil, errors.Errorf("timeout scale must be positive, got %s", *timeoutScale)
	}

	return &arguments{
		catalogPath:    *catalogPath,
		setupPath:      *setupPath,
		programPath:    *programPath,
		reportPath:     *reportPath,
		statusPath:     *statusPath,
		eventLogPath:   *eventLogPath,
		verbose:        *verbose,
		progressPeriod: *progressPeriod,
		loggerKind:     *loggerKind,
		logLevel:       logging.ParseLevel(*logLevel),
		hostTimeouts:   *hostTimeouts,
		timeoutScale:   *timeoutScale,
		resultStore:    *resultStore,
	}, nil
}

func zapLevel(level logging.LogLevel) zapcore.Level {
	switch level {
	case logging.LevelDebug:
		return zapcore.DebugLevel
	case logging.LevelWarn:
		return zapcore.WarnLevel
	case logging.LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// newLogger returns the logger selected on the command line, and a function
// flushing it. Loggers are shared with the host timer goroutine.
func (a *arguments) newLogger(output io.Writer) (logging.Logger, func(), error) {
	switch a.loggerKind {
	case loggerZap:
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapLevel(a.logLevel))
		zl, err := cfg.Build()
		if err != nil {
			return nil, nil, errors.WithMessage(err, "could not create zap logger")
		}
		return logging.Zap(zl), func() { _ = zl.Sync() }, nil
	case loggerConsole:
		return logging.Synchronize(logging.NewConsoleLogger(a.logLevel, output)), func() {}, nil
	default:
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMicro
		zl := zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			NoColor:    true,
			TimeFormat: "15:04:05.000",
		}).With().Timestamp().Logger()
		return logging.Synchronize(logging.Zerolog(zl, a.logLevel)), func() {}, nil
	}
}

func openOutput(path string, stdout, stderr io.Writer) (io.Writer, error) {
	switch path {
	case "", "-", "stdout":
		return stdout, nil
	case "stderr":
		return stderr, nil
	case "none":
		return nil, nil
	default:
		f, err := os.Create(path)
		if err != nil {
			return nil, errors.WithMessagef(err, "could not create %s", path)
		}
		return f, nil
	}
}

// closer collects the cleanups of execute, run in reverse order.
type closer []func() error

func (c *closer) add(f func() error) {
	*c = append(*c, f)
}

func (c closer) close(logger logging.Logger) error {
	var first error
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i](); err != nil {
			logger.Log(logging.LevelError, "cleanup failed", "error", err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// execute runs the campaign and returns the exit status of the process.
func (a *arguments) execute(ctx context.Context, stdout, stderr io.Writer) (status int) {
	logger, syncLogger, err := a.newLogger(stderr)
	if err != nil {
		fmt.Fprintf(stderr, "fimut: %s\n", err)
		return campaign.StatusConfigError
	}
	defer syncLogger()

	var cleanup closer
	defer func() {
		if err := cleanup.close(logger); err != nil && status == campaign.StatusSuccess {
			status = campaign.StatusInternalError
		}
	}()

	configError := func(err error) int {
		logger.Log(logging.LevelError, "invalid configuration", "error", err)
		return campaign.StatusConfigError
	}

	c, err := catalog.Open(a.catalogPath)
	if err != nil {
		return configError(err)
	}

	setup := &config.TestSetup{}
	if a.setupPath != "" {
		if setup, err = config.Load(a.setupPath); err != nil {
			return configError(err)
		}
	}

	peripherals, err := setup.Peripherals(logger)
	if err != nil {
		return configError(err)
	}
	cleanup.add(peripherals.Close)

	program, err := testengine.LoadProgram(a.programPath)
	if err != nil {
		return configError(err)
	}

	if a.reportPath == "none" {
		return configError(errors.New("the report cannot be discarded"))
	}
	reportOut, err := openOutput(a.reportPath, stdout, stderr)
	if err != nil {
		return configError(errors.WithMessage(err, "report destination"))
	}

	statusOut, err := openOutput(a.statusPath, stdout, stderr)
	if err != nil {
		return configError(errors.WithMessage(err, "status destination"))
	}
	if sc, ok := statusOut.(io.Closer); ok && statusOut != stdout && statusOut != stderr {
		cleanup.add(sc.Close)
	}

	reportOpts := []report.Option{
		report.ProgressPeriodOpt(a.progressPeriod),
		report.TitleOpt(fmt.Sprintf("fimut fault injection campaign: %s", program.Name)),
	}
	if statusOut != nil {
		reportOpts = append(reportOpts, report.StatusOpt(statusOut))
	}
	reporter := report.New(reportOut, reportOpts...)
	cleanup.add(reporter.Close)

	var store results.Store
	switch a.resultStore {
	case storeBadger:
		bs, err := results.OpenBadgerStore()
		if err != nil {
			logger.Log(logging.LevelError, "could not open result store", "error", err)
			return campaign.StatusInternalError
		}
		store = bs
	default:
		store = results.NewVolatileStore()
	}
	cleanup.add(store.Close)

	var nodeOpts []processor.NodeOpt
	if a.eventLogPath != "" {
		f, err := os.Create(a.eventLogPath)
		if err != nil {
			return configError(errors.WithMessage(err, "could not create event log"))
		}
		cleanup.add(f.Close)
		recorder := eventlog.NewRecorder(f)
		cleanup.add(recorder.Stop)
		nodeOpts = append(nodeOpts, processor.InterceptorOpt(recorder))
	}
	if a.hostTimeouts {
		nodeOpts = append(nodeOpts, processor.HostTimerOpt(a.timeoutScale))
	}

	controller := campaign.NewController(&campaign.Config{
		Catalog:           c,
		Timeout:           setup.TimeoutConfig(),
		Reporter:          reporter,
		Peripherals:       peripherals,
		Results:           store,
		VerboseStatistics: a.verbose,
	}, logging.Decorate(logger, "campaign: "))

	engine := testengine.NewEngine(program, peripherals, logging.Decorate(logger, "engine: "))
	node := processor.NewNode(controller, engine, logger, nodeOpts...)
	defer node.Stop()

	logger.Log(logging.LevelInfo, "starting campaign", "mutants", c.Count(), "program", program.Name)
	exit, err := engine.Run(ctx, node)
	if err != nil {
		logger.Log(logging.LevelError, "campaign failed", "error", err)
		return campaign.StatusInternalError
	}
	if exit.Err != nil {
		logger.Log(logging.LevelError, "campaign aborted", "status", exit.Status, "error", exit.Err)
		return exit.Status
	}

	summary, err := results.Summary(store)
	if err != nil {
		logger.Log(logging.LevelError, "could not summarize results", "error", err)
		return campaign.StatusInternalError
	}
	args := []interface{}{"mutants", c.Count()}
	for _, category := range outcome.Categories {
		if n := summary[category]; n > 0 {
			args = append(args, category.String(), n)
		}
	}
	logger.Log(logging.LevelInfo, "campaign finished", args...)

	return exit.Status
}

func main() {
	kingpin.Version("0.0.1")
	args, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "fimut: failed to parse arguments, %s, try --help\n", err)
		os.Exit(campaign.StatusConfigError)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	status := args.execute(ctx, os.Stdout, os.Stderr)
	stop()
	os.Exit(status)
}
