/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package processor binds a campaign controller to the execution engine running
// the simulated target. A Node turns what the engine reports into campaign events
// and carries out the resulting actions, all on the thread driving the engine.
package processor

import (
	"time"

	"github.com/pkg/errors"

	"github.com/hyperledger-labs/fimut/pkg/campaign"
	"github.com/hyperledger-labs/fimut/pkg/catalog"
	"github.com/hyperledger-labs/fimut/pkg/logging"
	"github.com/hyperledger-labs/fimut/pkg/timeout"
	t "github.com/hyperledger-labs/fimut/pkg/types"
)

var ErrTerminated = errors.New("campaign terminated")

// Target is the simulated system under test.
type Target interface {
	// Reset restores the power-on state of the target and starts run with
	// mutant active. mutant is nil for the golden run.
	Reset(run t.RunNumber, mutant *catalog.Mutant) error

	// Now returns the current time of the target's virtual clock.
	Now() t.Micros
}

// EventInterceptor sees every event before it is applied, e.g. to record it.
type EventInterceptor interface {
	Intercept(event *campaign.Event) error
}

// ================================================================================
// Node options
// ================================================================================

type NodeOpt interface{}

type interceptorOpt struct {
	interceptor EventInterceptor
}

// InterceptorOpt passes every applied event to interceptor.
func InterceptorOpt(interceptor EventInterceptor) NodeOpt {
	return interceptorOpt{
		interceptor: interceptor,
	}
}

type hostTimerOpt struct {
	scale time.Duration
}

// HostTimerOpt backs every armed timeout with a timer on the host clock, one
// microsecond of budget lasting scale on the host. The expiries are applied
// on the next call to Tick, so a target that stops ticking is never timed out.
func HostTimerOpt(scale time.Duration) NodeOpt {
	return hostTimerOpt{
		scale: scale,
	}
}

// hostExpiryBuffer bounds the expiries pending between two ticks.
// Expiries beyond it are stale anyway, as only one run is armed at a time.
const hostExpiryBuffer = 16

// ================================================================================

// Node drives a campaign controller on behalf of one target.
// All methods except Done and Exit must be called from the thread driving the target.
type Node struct {
	controller  *campaign.Controller
	target      Target
	logger      logging.Logger
	interceptor EventInterceptor

	hostTimer  *timeout.Timer
	timerScale time.Duration
	expiredC   chan t.RunNumber

	exitNotifier *exitNotifier
}

// NewNode returns a node applying the events of target to controller.
func NewNode(controller *campaign.Controller, target Target, logger logging.Logger, opts ...NodeOpt) *Node {
	n := &Node{
		controller:   controller,
		target:       target,
		logger:       logger,
		exitNotifier: newExitNotifier(),
	}

	for _, opt := range opts {
		switch v := opt.(type) {
		case interceptorOpt:
			n.interceptor = v.interceptor
		case hostTimerOpt:
			n.timerScale = v.scale
			n.expiredC = make(chan t.RunNumber, hostExpiryBuffer)
			n.hostTimer = timeout.NewTimer(n.hostExpired)
		}
	}

	return n
}

// hostExpired runs on the goroutine of the host timer.
func (n *Node) hostExpired(run t.RunNumber) {
	select {
	case n.expiredC <- run:
	default:
		n.logger.Log(logging.LevelWarn, "dropping host timer expiry", "run", run)
	}
}

// Instrumentation returns the hooks the engine reports accesses through.
func (n *Node) Instrumentation() campaign.Instrumentation {
	return n.controller
}

// Controller returns the driven controller.
func (n *Node) Controller() *campaign.Controller {
	return n.controller
}

// Start starts the campaign with the golden run.
func (n *Node) Start() error {
	return n.apply((&campaign.EventList{}).Start(n.target.Now()))
}

// Complete reports the end of the current run with the given outcome code.
func (n *Node) Complete(code uint32) error {
	return n.apply((&campaign.EventList{}).RunCompleted(n.target.Now(), n.controller.Run(), code))
}

// Tick reports the progress of the target's clock. Pending host timer expiries
// are applied first.
func (n *Node) Tick() error {
	return n.apply((&campaign.EventList{}).Tick(n.target.Now()))
}

// Done is closed once the campaign terminated.
func (n *Node) Done() <-chan struct{} {
	return n.exitNotifier.ExitC()
}

// Exit returns the exit status of the campaign and the error causing it,
// once the campaign terminated.
func (n *Node) Exit() (*campaign.ActionTerminate, bool) {
	return n.exitNotifier.Exit()
}

// Terminated returns true once the campaign terminated.
func (n *Node) Terminated() bool {
	_, exited := n.exitNotifier.Exit()
	return exited
}

// Stop disarms the host timer. The node must not be used afterwards.
func (n *Node) Stop() {
	if n.hostTimer != nil {
		n.hostTimer.Disarm()
	}
}

func (n *Node) drainExpiries(events *campaign.EventList) *campaign.EventList {
	if n.expiredC == nil {
		return events
	}

	expired := &campaign.EventList{}
	for {
		select {
		case run := <-n.expiredC:
			expired.TimeoutExpired(n.target.Now(), run)
		default:
			return expired.PushBackList(events)
		}
	}
}

func (n *Node) apply(events *campaign.EventList) error {
	if n.Terminated() {
		return ErrTerminated
	}

	iter := n.drainExpiries(events).Iterator()
	for event := iter.Next(); event != nil; event = iter.Next() {
		if n.interceptor != nil {
			if err := n.interceptor.Intercept(event); err != nil {
				return n.fail(errors.WithMessage(err, "could not intercept event"))
			}
		}

		actions, err := n.applySafely(event)
		if err != nil {
			return n.fail(err)
		}

		if err := n.ProcessActions(actions); err != nil {
			return n.fail(err)
		}

		if n.Terminated() {
			return nil
		}
	}

	return nil
}

func (n *Node) applySafely(event *campaign.Event) (result *campaign.ActionList, err error) {
	defer func() {
		if r := recover(); r != nil {
			if rErr, ok := r.(error); ok {
				err = errors.WithMessage(rErr, "panic in campaign controller")
			} else {
				err = errors.Errorf("panic in campaign controller: %v", r)
			}
		}
	}()

	return n.controller.ApplyEvent(event), nil
}

func (n *Node) fail(err error) error {
	n.logger.Log(logging.LevelError, "campaign failed", "error", err)
	n.Stop()
	n.exitNotifier.Notify(campaign.StatusInternalError, err)
	return err
}

// ProcessActions carries out the actions of the controller, in order.
func (n *Node) ProcessActions(actions *campaign.ActionList) error {
	iter := actions.Iterator()
	for action := iter.Next(); action != nil; action = iter.Next() {
		switch a := action.Type.(type) {
		case *campaign.ActionResetTarget:
			if err := n.target.Reset(a.Run, a.Mutant); err != nil {
				return errors.WithMessagef(err, "could not reset target for run %d", a.Run)
			}
		case *campaign.ActionArmTimeout:
			if n.hostTimer != nil {
				n.hostTimer.Arm(a.Run, time.Duration(a.After)*n.timerScale)
			}
		case *campaign.ActionDisarmTimeout:
			if n.hostTimer != nil {
				n.hostTimer.Disarm()
			}
		case *campaign.ActionTerminate:
			n.Stop()
			if a.Err != nil {
				n.logger.Log(logging.LevelError, "campaign terminated", "status", a.Status, "error", a.Err)
			} else {
				n.logger.Log(logging.LevelInfo, "campaign terminated", "status", a.Status)
			}
			n.exitNotifier.Notify(a.Status, a.Err)
		default:
			return errors.Errorf("unexpected type for campaign action: %T", action.Type)
		}
	}
	return nil
}
