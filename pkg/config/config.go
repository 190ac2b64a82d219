/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package config loads the test setup of a campaign: the monitor and stimulator
// peripherals and an optional override of the timeout parameters.
//
// The setup is an XML document
//
//	<TestSetup>
//	  <Monitors>
//	    <Monitor name="out" address="0x90000000" capacity="1024"/>
//	  </Monitors>
//	  <Stimulators>
//	    <Stimulator name="in" address="0x91000000" file="stimulus.bin"/>
//	    <Stimulator name="rnd" address="0x92000000" seed="7" max="0xff"/>
//	  </Stimulators>
//	  <Timeout factor="1.5" extra="2000"/>
//	</TestSetup>
//
// or, for files ending in .yaml or .yml, the equivalent YAML document.
// Addresses are hexadecimal, with or without 0x prefix. Relative stimulus file
// paths are resolved against the directory of the setup file.
package config

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/hyperledger-labs/fimut/pkg/logging"
	"github.com/hyperledger-labs/fimut/pkg/peripheral"
	"github.com/hyperledger-labs/fimut/pkg/timeout"
	t "github.com/hyperledger-labs/fimut/pkg/types"
)

// Error is a configuration error. It is fatal: a campaign with a bad
// configuration never starts.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("configuration %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Format is the syntax of a setup document.
type Format int

const (
	FormatXML Format = iota
	FormatYAML
)

// FormatOf returns the format of the setup file at path, judging by its extension.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatXML
	}
}

// HexValue is an unsigned value written in hexadecimal.
type HexValue uint64

func parseHex(s string) (HexValue, error) {
	s = strings.TrimSpace(s)
	if len(s) > 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, errors.WithMessagef(err, "invalid hexadecimal value %q", s)
	}
	return HexValue(v), nil
}

func (hv *HexValue) UnmarshalXMLAttr(attr xml.Attr) error {
	v, err := parseHex(attr.Value)
	if err != nil {
		return err
	}
	*hv = v
	return nil
}

func (hv *HexValue) UnmarshalYAML(node *yaml.Node) error {
	v, err := parseHex(node.Value)
	if err != nil {
		return errors.WithMessagef(err, "line %d", node.Line)
	}
	*hv = v
	return nil
}

type Monitor struct {
	Name     string   `xml:"name,attr" yaml:"name"`
	Address  HexValue `xml:"address,attr" yaml:"address"`
	Capacity int      `xml:"capacity,attr,omitempty" yaml:"capacity,omitempty"`
}

// Stimulator describes a stimulator. It is backed by File if one is given,
// by a random source using Seed and Max otherwise.
type Stimulator struct {
	Name    string    `xml:"name,attr" yaml:"name"`
	Address HexValue  `xml:"address,attr" yaml:"address"`
	File    string    `xml:"file,attr,omitempty" yaml:"file,omitempty"`
	Seed    *uint64   `xml:"seed,attr,omitempty" yaml:"seed,omitempty"`
	Max     *HexValue `xml:"max,attr,omitempty" yaml:"max,omitempty"`
}

// Timeout overrides the timeout parameters. An absent attribute keeps its default.
type Timeout struct {
	Factor *float64 `xml:"factor,attr,omitempty" yaml:"factor,omitempty"`
	Extra  *uint64  `xml:"extra,attr,omitempty" yaml:"extra,omitempty"`
}

// TestSetup is a parsed setup document.
type TestSetup struct {
	XMLName     xml.Name     `xml:"TestSetup" yaml:"-"`
	Monitors    []Monitor    `xml:"Monitors>Monitor" yaml:"monitors"`
	Stimulators []Stimulator `xml:"Stimulators>Stimulator" yaml:"stimulators"`
	Timeout     *Timeout     `xml:"Timeout" yaml:"timeout,omitempty"`

	// Dir is the directory relative stimulus file paths are resolved against.
	Dir string `xml:"-" yaml:"-"`
}

// Load reads and validates the setup file at path.
func Load(path string) (*TestSetup, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Path: path, Err: errors.WithMessage(err, "could not read test setup")}
	}

	ts, err := Parse(bytes.NewReader(data), FormatOf(path))
	if err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	ts.Dir = filepath.Dir(path)

	return ts, nil
}

// Parse reads and validates a setup document.
func Parse(source io.Reader, format Format) (*TestSetup, error) {
	ts := &TestSetup{}

	switch format {
	case FormatYAML:
		err := yaml.NewDecoder(source).Decode(ts)
		if err != nil && err != io.EOF {
			return nil, errors.WithMessage(err, "could not decode YAML test setup")
		}
	default:
		if err := xml.NewDecoder(source).Decode(ts); err != nil {
			return nil, errors.WithMessage(err, "could not decode XML test setup")
		}
	}

	if err := ts.validate(); err != nil {
		return nil, err
	}

	return ts, nil
}

func (ts *TestSetup) validate() error {
	names := map[string]struct{}{}
	checkName := func(kind, name string) error {
		if name == "" {
			return errors.Errorf("%s without name", kind)
		}
		if _, ok := names[name]; ok {
			return errors.Errorf("duplicate peripheral name %q", name)
		}
		names[name] = struct{}{}
		return nil
	}

	for _, m := range ts.Monitors {
		if err := checkName("monitor", m.Name); err != nil {
			return err
		}
		if m.Capacity < 0 {
			return errors.Errorf("monitor %s: negative capacity %d", m.Name, m.Capacity)
		}
	}

	for _, s := range ts.Stimulators {
		if err := checkName("stimulator", s.Name); err != nil {
			return err
		}
		if s.File != "" && (s.Seed != nil || s.Max != nil) {
			return errors.Errorf("stimulator %s: a file backed stimulator takes no seed or max", s.Name)
		}
	}

	return nil
}

// TimeoutConfig returns the timeout parameters, the defaults overridden by the setup.
func (ts *TestSetup) TimeoutConfig() timeout.Config {
	c := timeout.DefaultConfig()
	if ts.Timeout == nil {
		return c
	}
	if ts.Timeout.Factor != nil {
		c.Factor = *ts.Timeout.Factor
	}
	if ts.Timeout.Extra != nil {
		c.ExtraMicros = *ts.Timeout.Extra
	}
	return c
}

// Peripherals instantiates the peripherals of the setup. File backed
// stimulators open their stimulus file, a missing file is an *Error.
func (ts *TestSetup) Peripherals(logger logging.Logger) (*peripheral.Set, error) {
	set := peripheral.NewSet()

	fail := func(err error) (*peripheral.Set, error) {
		set.Close()
		return nil, err
	}

	for _, m := range ts.Monitors {
		err := set.AddMonitor(peripheral.NewMonitor(m.Name, t.Address(m.Address), m.Capacity))
		if err != nil {
			return fail(&Error{Path: ts.Dir, Err: err})
		}
		logger.Log(logging.LevelDebug, "configured monitor", "name", m.Name, "address", uint64(m.Address))
	}

	for _, s := range ts.Stimulators {
		var source peripheral.Source
		if s.File != "" {
			path := s.File
			if !filepath.IsAbs(path) {
				path = filepath.Join(ts.Dir, path)
			}
			f, err := os.Open(path)
			if err != nil {
				return fail(&Error{Path: path, Err: errors.WithMessagef(err, "stimulus file of stimulator %s", s.Name)})
			}
			source = peripheral.NewStreamSource(f)
		} else {
			seed := uint64(peripheral.DefaultStimulatorSeed)
			if s.Seed != nil {
				seed = *s.Seed
			}
			max := uint64(peripheral.DefaultStimulatorMaxValue)
			if s.Max != nil {
				max = uint64(*s.Max)
			}
			source = peripheral.NewRandomSource(seed, max)
		}

		st := peripheral.NewStimulator(s.Name, t.Address(s.Address), source)
		if err := set.AddStimulator(st); err != nil {
			st.Close()
			return fail(&Error{Path: ts.Dir, Err: err})
		}
		logger.Log(logging.LevelDebug, "configured stimulator", "name", s.Name, "address", uint64(s.Address), "file", s.File)
	}

	return set, nil
}
