/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package results keeps the outcome of every run of a campaign, for the footer
// summary and for later inspection. Results live for the duration of the process.
package results

import (
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/hyperledger-labs/fimut/pkg/outcome"
	t "github.com/hyperledger-labs/fimut/pkg/types"
)

// Record is the result of one run.
type Record struct {
	Run      t.RunNumber
	Golden   bool
	MutantID t.MutantID
	Code     uint32
	Elapsed  t.Micros
}

// Classification decodes the outcome code of the record.
func (r *Record) Classification() outcome.Classification {
	return outcome.Classify(r.Code)
}

const (
	fieldRun      protowire.Number = 1
	fieldGolden   protowire.Number = 2
	fieldMutantID protowire.Number = 3
	fieldCode     protowire.Number = 4
	fieldElapsed  protowire.Number = 5
)

// Marshal encodes the record in protobuf wire format.
func (r *Record) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldRun, protowire.VarintType)
	b = protowire.AppendVarint(b, r.Run.Pb())
	if r.Golden {
		b = protowire.AppendTag(b, fieldGolden, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(true))
	}
	b = protowire.AppendTag(b, fieldMutantID, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(r.MutantID.Pb()))
	b = protowire.AppendTag(b, fieldCode, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.Code))
	b = protowire.AppendTag(b, fieldElapsed, protowire.VarintType)
	b = protowire.AppendVarint(b, r.Elapsed.Pb())
	return b
}

// Unmarshal decodes a record encoded by Marshal. Unknown fields are skipped.
func (r *Record) Unmarshal(b []byte) error {
	*r = Record{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return errors.WithMessage(protowire.ParseError(n), "could not decode tag")
		}
		b = b[n:]

		if typ != protowire.VarintType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return errors.WithMessagef(protowire.ParseError(n), "could not skip field %d", num)
			}
			b = b[n:]
			continue
		}

		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return errors.WithMessagef(protowire.ParseError(n), "could not decode field %d", num)
		}
		b = b[n:]

		switch num {
		case fieldRun:
			r.Run = t.RunNumber(v)
		case fieldGolden:
			r.Golden = protowire.DecodeBool(v)
		case fieldMutantID:
			r.MutantID = t.MutantID(protowire.DecodeZigZag(v))
		case fieldCode:
			r.Code = uint32(v)
		case fieldElapsed:
			r.Elapsed = t.Micros(v)
		}
	}
	return nil
}
