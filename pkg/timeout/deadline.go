/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package timeout

import (
	t "github.com/hyperledger-labs/fimut/pkg/types"
)

// Deadline is a timer on the target's virtual clock, checked on every clock tick.
// The zero value is disarmed.
type Deadline struct {
	run   t.RunNumber
	at    t.Micros
	armed bool
}

// Arm sets the deadline of run to after microseconds past now, replacing any previous one.
func (d *Deadline) Arm(run t.RunNumber, now, after t.Micros) {
	d.run = run
	d.at = now + after
	d.armed = true
}

// Disarm cancels the deadline. Disarming a disarmed deadline does nothing.
func (d *Deadline) Disarm() {
	d.armed = false
}

// Armed returns the run the deadline is armed for, and whether it is armed at all.
func (d *Deadline) Armed() (t.RunNumber, bool) {
	return d.run, d.armed
}

// At returns the point in time the deadline expires at.
func (d *Deadline) At() t.Micros {
	return d.at
}

// Expired reports whether the deadline is armed and now is past it.
func (d *Deadline) Expired(now t.Micros) bool {
	return d.armed && now > d.at
}
