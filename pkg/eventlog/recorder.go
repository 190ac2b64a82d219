/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package eventlog records the events applied to a campaign controller into a
// gzip compressed stream of size prefixed records, and reads them back.
package eventlog

import (
	"compress/gzip"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/hyperledger-labs/fimut/pkg/campaign"
)

// RecorderOpt customizes a Recorder. See TimeSourceOpt, CompressionLevelOpt and BufferSizeOpt.
type RecorderOpt interface{}

type timeSourceOpt func() int64

// TimeSourceOpt stamps recorded events with the values of source instead of
// the milliseconds elapsed since the recorder was created. Tests use it to get
// reproducible logs.
func TimeSourceOpt(source func() int64) RecorderOpt {
	return timeSourceOpt(source)
}

type compressionLevelOpt int

// DefaultCompressionLevel is the gzip level of a recorder without CompressionLevelOpt.
const DefaultCompressionLevel = gzip.DefaultCompression

// CompressionLevelOpt sets the gzip level of the log, gzip.NoCompression to gzip.BestCompression.
func CompressionLevelOpt(level int) RecorderOpt {
	return compressionLevelOpt(level)
}

// DefaultBufferSize is the number of events queued for writing by default.
const DefaultBufferSize = 5000

type bufferSizeOpt int

// BufferSizeOpt sets how many events may wait for the writer goroutine.
// A full queue makes Intercept, and with it the campaign, wait.
func BufferSizeOpt(size int) RecorderOpt {
	return bufferSizeOpt(size)
}

// Recorder writes every intercepted campaign event to a gzip stream. Encoding
// and compression happen on a goroutine of the recorder, fed through a queue.
type Recorder struct {
	now   func() int64
	level int

	queue chan stampedEvent
	stopC chan struct{}
	doneC chan struct{}

	mutex sync.Mutex
	err   error
}

// NewRecorder starts recording to dest. Stop must be called once the campaign ended.
func NewRecorder(dest io.Writer, opts ...RecorderOpt) *Recorder {
	created := time.Now()

	r := &Recorder{
		now: func() int64 {
			return time.Since(created).Milliseconds()
		},
		level: DefaultCompressionLevel,
		queue: make(chan stampedEvent, DefaultBufferSize),
		stopC: make(chan struct{}),
		doneC: make(chan struct{}),
	}

	for _, opt := range opts {
		switch v := opt.(type) {
		case timeSourceOpt:
			r.now = v
		case compressionLevelOpt:
			r.level = int(v)
		case bufferSizeOpt:
			r.queue = make(chan stampedEvent, v)
		}
	}

	go r.run(dest)

	return r
}

type stampedEvent struct {
	event *campaign.Event
	time  int64
}

func (r *Recorder) result() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.err
}

// Intercept queues event for writing, waiting while the queue is full.
// Once the writer goroutine ended, it returns the error that ended it.
func (r *Recorder) Intercept(event *campaign.Event) error {
	select {
	case r.queue <- stampedEvent{event: event, time: r.now()}:
		return nil
	case <-r.doneC:
		return r.result()
	}
}

// Stop writes the queued events, closes the gzip stream and returns the first
// error the recording hit. Call it only after the campaign stopped applying events.
func (r *Recorder) Stop() error {
	close(r.stopC)
	<-r.doneC
	if err := r.result(); err != errStopped {
		return err
	}
	return nil
}

var errStopped = fmt.Errorf("recorder stopped")

func (r *Recorder) run(dest io.Writer) (err error) {
	defer func() {
		r.mutex.Lock()
		r.err = err
		r.mutex.Unlock()
		close(r.doneC)
	}()

	zw, err := gzip.NewWriterLevel(dest, r.level)
	if err != nil {
		return errors.WithMessage(err, "could not create gzip writer")
	}
	defer func() {
		if closeErr := zw.Close(); closeErr != nil && err == errStopped {
			err = errors.WithMessage(closeErr, "could not close gzip stream")
		}
	}()

	write := func(se stampedEvent) error {
		err := WriteRecordedEvent(zw, &RecordedEvent{
			Time:  se.time,
			Event: se.event,
		})
		return errors.WithMessage(err, "could not write event")
	}

	for {
		select {
		case se := <-r.queue:
			if err := write(se); err != nil {
				return err
			}
		case <-r.stopC:
			// Drain what was queued before Stop.
			for {
				select {
				case se := <-r.queue:
					if err := write(se); err != nil {
						return err
					}
				default:
					return errStopped
				}
			}
		}
	}
}
