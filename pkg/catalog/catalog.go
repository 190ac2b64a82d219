/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package catalog loads the ordered list of fault hypotheses (mutants) a campaign
// tests, one per run, and hands them out through a forward-only cursor.
//
// The catalog format is line oriented. Lines starting with '#' and blank lines are
// ignored, every other line is a record of five comma separated fields:
//
//	id,kind,target,triggerCount,mask
//
// id and triggerCount are decimal, target is decimal or 0x-prefixed hexadecimal
// (a register index, CSR index or byte address depending on kind) and mask is
// hexadecimal with an optional 0x prefix. Fields after the fifth are ignored.
package catalog

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	t "github.com/hyperledger-labs/fimut/pkg/types"
)

// CommentMarker starts a line that is not a record.
const CommentMarker = '#'

// ErrExhausted is returned by Advance once every mutant has been handed out.
var ErrExhausted = errors.New("mutant catalog exhausted")

// Mutant is one fault hypothesis. It is immutable once loaded.
type Mutant struct {
	ID           t.MutantID
	Kind         Kind
	Target       uint64
	TriggerCount uint64
	Mask         uint64

	// Line is the one-based line of the catalog source the mutant was read from.
	Line int
}

func (m *Mutant) String() string {
	return fmt.Sprintf("mutant %d (%s target=%#x trigger=%d mask=%#x)", m.ID, m.Kind, m.Target, m.TriggerCount, m.Mask)
}

// ParseError reports a malformed catalog record.
type ParseError struct {
	Line   int
	Text   string
	Reason error
}

func (pe *ParseError) Error() string {
	return fmt.Sprintf("catalog line %d: %v: %q", pe.Line, pe.Reason, pe.Text)
}

func (pe *ParseError) Unwrap() error {
	return pe.Reason
}

// Catalog is an ordered, forward-only sequence of mutants.
// It is not safe for concurrent use.
type Catalog struct {
	mutants []*Mutant

	// cursor is -1 before the first Advance and len(mutants) once exhausted.
	cursor int
}

// New returns a catalog handing out the given mutants in order.
func New(mutants ...*Mutant) *Catalog {
	return &Catalog{
		mutants: mutants,
		cursor:  -1,
	}
}

// Open loads the catalog stored in the file at path.
func Open(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithMessage(err, "could not open mutant catalog")
	}
	defer f.Close()

	c, err := Load(f)
	if err != nil {
		return nil, errors.WithMessagef(err, "could not load mutant catalog %s", path)
	}
	return c, nil
}

// Load reads and parses every record of the source.
// Any malformed record fails the whole load with a *ParseError, so that a catalog
// that loads successfully can never fail later, in the middle of a campaign.
func Load(source io.Reader) (*Catalog, error) {
	scanner := bufio.NewScanner(source)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)

	c := New()
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == CommentMarker {
			continue
		}

		m, err := parseRecord(line)
		if err != nil {
			return nil, &ParseError{
				Line:   lineNo,
				Text:   line,
				Reason: err,
			}
		}
		m.Line = lineNo
		c.mutants = append(c.mutants, m)
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.WithMessage(err, "could not read mutant catalog")
	}

	return c, nil
}

func parseRecord(line string) (*Mutant, error) {
	fields := strings.Split(line, ",")
	if len(fields) < 5 {
		return nil, errors.Errorf("expected 5 fields, got %d", len(fields))
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	id, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return nil, errors.WithMessage(err, "bad id")
	}

	kind, err := ParseKind(fields[1])
	if err != nil {
		return nil, errors.WithMessage(err, "bad kind")
	}

	target, err := parseTarget(fields[2])
	if err != nil {
		return nil, errors.WithMessage(err, "bad target")
	}

	trigger, err := strconv.ParseUint(fields[3], 10, 64)
	if err != nil {
		return nil, errors.WithMessage(err, "bad trigger count")
	}

	mask, err := strconv.ParseUint(trimHexPrefix(fields[4]), 16, 64)
	if err != nil {
		return nil, errors.WithMessage(err, "bad mask")
	}

	m := &Mutant{
		ID:           t.MutantID(id),
		Kind:         kind,
		Target:       target,
		TriggerCount: trigger,
		Mask:         mask,
	}

	switch {
	case kind.Resource == Register && target >= t.NumRegisters:
		return nil, errors.Errorf("register index %d out of range", target)
	case kind.Resource == ControlStatusRegister && target >= t.NumCSRs:
		return nil, errors.Errorf("CSR index %d out of range", target)
	case kind.Fault == Transient && trigger == 0:
		return nil, errors.Errorf("transient fault needs a trigger count of at least 1")
	}

	return m, nil
}

func parseTarget(field string) (uint64, error) {
	if hex := trimHexPrefix(field); hex != field {
		return strconv.ParseUint(hex, 16, 64)
	}
	return strconv.ParseUint(field, 10, 64)
}

func trimHexPrefix(field string) string {
	if len(field) > 2 && field[0] == '0' && (field[1] == 'x' || field[1] == 'X') {
		return field[2:]
	}
	return field
}

// Count returns the total number of mutants in the catalog.
func (c *Catalog) Count() int {
	return len(c.mutants)
}

// Index returns the zero-based position of the current mutant,
// -1 before the first Advance and Count() once exhausted.
func (c *Catalog) Index() int {
	return c.cursor
}

// Advance moves the cursor to the next mutant and returns it.
// After the last mutant it returns ErrExhausted, on this and every further call.
func (c *Catalog) Advance() (*Mutant, error) {
	if c.cursor >= len(c.mutants) {
		return nil, ErrExhausted
	}

	c.cursor++
	if c.cursor == len(c.mutants) {
		return nil, ErrExhausted
	}

	return c.mutants[c.cursor], nil
}

// Current returns the mutant under the cursor, or nil before the first Advance
// and after exhaustion.
func (c *Catalog) Current() *Mutant {
	if c.cursor < 0 || c.cursor >= len(c.mutants) {
		return nil
	}
	return c.mutants[c.cursor]
}
