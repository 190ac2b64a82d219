/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package processor

import (
	"sync"

	"github.com/hyperledger-labs/fimut/pkg/campaign"
)

// exitNotifier records the first exit of a node and wakes up everyone waiting for it.
type exitNotifier struct {
	mutex sync.Mutex
	exit  *campaign.ActionTerminate
	exitC chan struct{}
}

func newExitNotifier() *exitNotifier {
	return &exitNotifier{
		exitC: make(chan struct{}),
	}
}

func (en *exitNotifier) Exit() (*campaign.ActionTerminate, bool) {
	en.mutex.Lock()
	defer en.mutex.Unlock()
	return en.exit, en.exit != nil
}

// Notify records the exit. Only the first call has an effect.
func (en *exitNotifier) Notify(status int, err error) {
	en.mutex.Lock()
	defer en.mutex.Unlock()
	if en.exit != nil {
		return
	}
	en.exit = &campaign.ActionTerminate{
		Status: status,
		Err:    err,
	}
	close(en.exitC)
}

func (en *exitNotifier) ExitC() <-chan struct{} {
	return en.exitC
}
