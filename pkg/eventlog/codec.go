/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package eventlog

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/hyperledger-labs/fimut/pkg/campaign"
	t "github.com/hyperledger-labs/fimut/pkg/types"
)

// RecordedEvent is one entry of an event log.
type RecordedEvent struct {
	// Time is the recording time, as given by the recorder's time source.
	Time int64

	Event *campaign.Event
}

// Kinds of recorded events, as encoded on the wire.
const (
	kindStart          = 1
	kindRunCompleted   = 2
	kindTick           = 3
	kindTimeoutExpired = 4
)

const (
	fieldRecordTime protowire.Number = 1
	fieldKind       protowire.Number = 2
	fieldEventTime  protowire.Number = 3
	fieldRun        protowire.Number = 4
	fieldCode       protowire.Number = 5
)

func marshalRecordedEvent(re *RecordedEvent) ([]byte, error) {
	var kind uint64
	var run t.RunNumber
	var code uint32

	switch e := re.Event.Type.(type) {
	case *campaign.EventStart:
		kind = kindStart
	case *campaign.EventRunCompleted:
		kind, run, code = kindRunCompleted, e.Run, e.Code
	case *campaign.EventTick:
		kind = kindTick
	case *campaign.EventTimeoutExpired:
		kind, run = kindTimeoutExpired, e.Run
	default:
		return nil, errors.Errorf("unknown event type: %T", re.Event.Type)
	}

	var b []byte
	b = protowire.AppendTag(b, fieldRecordTime, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(re.Time))
	b = protowire.AppendTag(b, fieldKind, protowire.VarintType)
	b = protowire.AppendVarint(b, kind)
	b = protowire.AppendTag(b, fieldEventTime, protowire.VarintType)
	b = protowire.AppendVarint(b, re.Event.Time.Pb())
	if run != 0 {
		b = protowire.AppendTag(b, fieldRun, protowire.VarintType)
		b = protowire.AppendVarint(b, run.Pb())
	}
	if code != 0 {
		b = protowire.AppendTag(b, fieldCode, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(code))
	}
	return b, nil
}

func unmarshalRecordedEvent(b []byte) (*RecordedEvent, error) {
	var kind, eventTime, run, code uint64
	var recordTime int64

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, errors.WithMessage(protowire.ParseError(n), "could not decode tag")
		}
		b = b[n:]

		if typ != protowire.VarintType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, errors.WithMessagef(protowire.ParseError(n), "could not skip field %d", num)
			}
			b = b[n:]
			continue
		}

		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return nil, errors.WithMessagef(protowire.ParseError(n), "could not decode field %d", num)
		}
		b = b[n:]

		switch num {
		case fieldRecordTime:
			recordTime = protowire.DecodeZigZag(v)
		case fieldKind:
			kind = v
		case fieldEventTime:
			eventTime = v
		case fieldRun:
			run = v
		case fieldCode:
			code = v
		}
	}

	el := &campaign.EventList{}
	switch kind {
	case kindStart:
		el.Start(t.Micros(eventTime))
	case kindRunCompleted:
		el.RunCompleted(t.Micros(eventTime), t.RunNumber(run), uint32(code))
	case kindTick:
		el.Tick(t.Micros(eventTime))
	case kindTimeoutExpired:
		el.TimeoutExpired(t.Micros(eventTime), t.RunNumber(run))
	default:
		return nil, errors.Errorf("unknown event kind %d", kind)
	}

	return &RecordedEvent{
		Time:  recordTime,
		Event: el.Iterator().Next(),
	}, nil
}

// WriteRecordedEvent writes one size prefixed record to writer.
func WriteRecordedEvent(writer io.Writer, re *RecordedEvent) error {
	recordBytes, err := marshalRecordedEvent(re)
	if err != nil {
		return errors.WithMessage(err, "could not marshal")
	}

	lenBuf := make([]byte, binary.MaxVarintLen64)
	n := binary.PutVarint(lenBuf, int64(len(recordBytes)))
	if _, err = writer.Write(lenBuf[:n]); err != nil {
		return errors.WithMessage(err, "could not write length prefix")
	}

	if _, err = writer.Write(recordBytes); err != nil {
		return errors.WithMessage(err, "could not write record")
	}

	return nil
}

func readRecordedEvent(reader *bufio.Reader, buffer *bytes.Buffer) (*RecordedEvent, error) {
	l, err := binary.ReadVarint(reader)
	if err != nil {
		if err == io.EOF {
			return nil, err
		}
		return nil, errors.WithMessage(err, "could not read size prefix")
	}
	if l < 0 {
		return nil, errors.Errorf("invalid record size %d", l)
	}

	buffer.Grow(int(l))

	if _, err := io.CopyN(buffer, reader, l); err != nil {
		return nil, errors.WithMessage(err, "could not read record")
	}

	re, err := unmarshalRecordedEvent(buffer.Bytes())
	if err != nil {
		return nil, errors.WithMessage(err, "could not unmarshal record")
	}

	return re, nil
}
