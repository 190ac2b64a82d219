/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package results

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/hyperledger-labs/fimut/pkg/outcome"
	t "github.com/hyperledger-labs/fimut/pkg/types"
)

// ErrNotFound is returned by Get for a run without a stored result.
var ErrNotFound = errors.New("no result stored for run")

// Store holds run results, keyed by run number.
type Store interface {
	// Put stores r, replacing any result of the same run.
	Put(r *Record) error

	// Get returns the result of run, or ErrNotFound.
	Get(run t.RunNumber) (*Record, error)

	// Iterate invokes f on every stored result, in run order, until f returns an error.
	Iterate(f func(*Record) error) error

	Close() error
}

// Summary counts the stored mutant results per category. The golden run is not counted.
func Summary(s Store) (map[outcome.Category]int, error) {
	summary := map[outcome.Category]int{}
	err := s.Iterate(func(r *Record) error {
		if !r.Golden {
			summary[r.Classification().Category]++
		}
		return nil
	})
	if err != nil {
		return nil, errors.WithMessage(err, "could not summarize results")
	}
	return summary, nil
}

// VolatileStore is an in-memory Store backed by a map.
type VolatileStore struct {
	records map[t.RunNumber]*Record
}

func NewVolatileStore() *VolatileStore {
	return &VolatileStore{
		records: map[t.RunNumber]*Record{},
	}
}

func (vs *VolatileStore) Put(r *Record) error {
	rCopy := *r
	vs.records[r.Run] = &rCopy
	return nil
}

func (vs *VolatileStore) Get(run t.RunNumber) (*Record, error) {
	r, ok := vs.records[run]
	if !ok {
		return nil, ErrNotFound
	}
	rCopy := *r
	return &rCopy, nil
}

func (vs *VolatileStore) Iterate(f func(*Record) error) error {
	runs := make([]t.RunNumber, 0, len(vs.records))
	for run := range vs.records {
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i] < runs[j]
	})

	for _, run := range runs {
		rCopy := *vs.records[run]
		if err := f(&rCopy); err != nil {
			return err
		}
	}
	return nil
}

// Close does nothing.
func (vs *VolatileStore) Close() error {
	return nil
}
