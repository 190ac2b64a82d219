/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package logging

import "sync"

type synchronizedLogger struct {
	logger Logger
	mutex  sync.Mutex
}

func (sl *synchronizedLogger) Log(level LogLevel, text string, args ...interface{}) {
	sl.mutex.Lock()
	defer sl.mutex.Unlock()
	sl.logger.Log(level, text, args...)
}

// Synchronize wraps a logger so that it may be shared between the engine thread
// and the host timer goroutine.
func Synchronize(logger Logger) Logger {
	if _, ok := logger.(*synchronizedLogger); ok {
		return logger
	}
	return &synchronizedLogger{
		logger: logger,
	}
}
