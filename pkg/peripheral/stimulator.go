/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package peripheral

import (
	"encoding/binary"
	"io"
	"math"
	"math/rand/v2"

	"github.com/pkg/errors"

	t "github.com/hyperledger-labs/fimut/pkg/types"
)

const (
	DefaultStimulatorSeed     = 1
	DefaultStimulatorMaxValue = 0xFFFFFFFF

	maxReadWidth = 8
)

// ErrStreamExhausted is returned by a stream backed stimulator read past the end of its stream.
var ErrStreamExhausted = errors.New("stimulus stream exhausted")

// Source produces the values a stimulator returns.
type Source interface {
	// Next returns the value of a read of width bytes.
	Next(width uint) (uint64, error)

	// Reset rewinds the source to the start of its sequence.
	Reset() error
}

// RandomSource returns the configured maximum, then zero, then values drawn
// uniformly from [0, max]. The sequence only depends on the seed.
type RandomSource struct {
	seed  uint64
	max   uint64
	reads int
	rng   *rand.Rand
}

// NewRandomSource returns a random source seeded with seed.
func NewRandomSource(seed, max uint64) *RandomSource {
	rs := &RandomSource{
		seed: seed,
		max:  max,
	}
	rs.Reset()
	return rs
}

func (rs *RandomSource) Next(width uint) (uint64, error) {
	switch rs.reads {
	case 0:
		rs.reads++
		return rs.max, nil
	case 1:
		rs.reads++
		return 0, nil
	}

	if rs.max == math.MaxUint64 {
		return rs.rng.Uint64(), nil
	}
	return rs.rng.Uint64N(rs.max + 1), nil
}

// Reset re-seeds the generator, so that every run observes the same sequence.
func (rs *RandomSource) Reset() error {
	rs.reads = 0
	rs.rng = rand.New(rand.NewPCG(rs.seed, rs.seed))
	return nil
}

// StreamSource returns little endian values of the read width, consumed
// sequentially from a stream.
type StreamSource struct {
	stream io.ReadSeeker
}

// NewStreamSource returns a source reading from stream.
func NewStreamSource(stream io.ReadSeeker) *StreamSource {
	return &StreamSource{
		stream: stream,
	}
}

func (ss *StreamSource) Next(width uint) (uint64, error) {
	if width == 0 || width > maxReadWidth {
		return 0, errors.Errorf("unsupported read width %d", width)
	}

	var buf [maxReadWidth]byte
	if _, err := io.ReadFull(ss.stream, buf[:width]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return 0, ErrStreamExhausted
		}
		return 0, errors.WithMessage(err, "could not read stimulus stream")
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func (ss *StreamSource) Reset() error {
	_, err := ss.stream.Seek(0, io.SeekStart)
	return errors.WithMessage(err, "could not rewind stimulus stream")
}

// Close closes the underlying stream, if it can be closed.
func (ss *StreamSource) Close() error {
	if c, ok := ss.stream.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Stimulator answers reads from its address with the values of its source.
type Stimulator struct {
	name    string
	address t.Address
	source  Source
}

func NewStimulator(name string, address t.Address, source Source) *Stimulator {
	return &Stimulator{
		name:    name,
		address: address,
		source:  source,
	}
}

func (s *Stimulator) Name() string {
	return s.name
}

func (s *Stimulator) Address() t.Address {
	return s.address
}

// Read returns the next value, truncated to the read width.
func (s *Stimulator) Read(width uint) (uint64, error) {
	value, err := s.source.Next(width)
	if err != nil {
		return 0, errors.WithMessagef(err, "stimulator %s", s.name)
	}
	if width < maxReadWidth {
		value &= (uint64(1) << (8 * width)) - 1
	}
	return value, nil
}

// Reset rewinds the source for a new run.
func (s *Stimulator) Reset() error {
	return errors.WithMessagef(s.source.Reset(), "could not reset stimulator %s", s.name)
}

// Close releases the source, if it holds any resources.
func (s *Stimulator) Close() error {
	if c, ok := s.source.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
