/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package timeout

import (
	"sync"
	"time"

	t "github.com/hyperledger-labs/fimut/pkg/types"
)

// Timer is a timer on the host clock. When it fires, it invokes the callback from
// its own goroutine with the run it was armed for; the callback must hand the
// expiry over to the thread driving the campaign rather than act on it directly.
type Timer struct {
	mutex  sync.Mutex
	timer  *time.Timer
	run    t.RunNumber
	expire func(t.RunNumber)
}

// NewTimer returns a disarmed timer invoking expire on expiry.
func NewTimer(expire func(t.RunNumber)) *Timer {
	return &Timer{
		expire: expire,
	}
}

// Arm starts the timer for run, replacing any armed one.
func (tm *Timer) Arm(run t.RunNumber, after time.Duration) {
	tm.mutex.Lock()
	defer tm.mutex.Unlock()

	if tm.timer != nil {
		tm.timer.Stop()
	}

	tm.run = run
	var timer *time.Timer
	timer = time.AfterFunc(after, func() {
		tm.mutex.Lock()
		stale := tm.timer != timer
		if !stale {
			tm.timer = nil
		}
		tm.mutex.Unlock()

		if !stale {
			tm.expire(run)
		}
	})
	tm.timer = timer
}

// Disarm stops the timer. It is idempotent, and a timer that already fired
// but whose callback has not yet run will not invoke it.
func (tm *Timer) Disarm() {
	tm.mutex.Lock()
	defer tm.mutex.Unlock()

	if tm.timer == nil {
		return
	}
	tm.timer.Stop()
	tm.timer = nil
}

// Armed returns the run the timer is armed for, and whether it is armed.
func (tm *Timer) Armed() (t.RunNumber, bool) {
	tm.mutex.Lock()
	defer tm.mutex.Unlock()
	return tm.run, tm.timer != nil
}
