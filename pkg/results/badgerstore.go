/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package results

import (
	"encoding/binary"

	badger "github.com/dgraph-io/badger/v2"
	"github.com/pkg/errors"

	t "github.com/hyperledger-labs/fimut/pkg/types"
)

var runKeyPrefix = []byte("run-")

// runKey returns the key of run. Big endian encoding keeps badger's key order equal to run order.
func runKey(run t.RunNumber) []byte {
	key := make([]byte, len(runKeyPrefix)+8)
	copy(key, runKeyPrefix)
	binary.BigEndian.PutUint64(key[len(runKeyPrefix):], run.Pb())
	return key
}

// BadgerStore is a Store kept in an in-memory badger database.
// It suits campaigns too large to keep every result in a Go map.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens an empty in-memory store.
func OpenBadgerStore() (*BadgerStore, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.WithMessage(err, "could not open result database")
	}

	return &BadgerStore{
		db: db,
	}, nil
}

func (bs *BadgerStore) Put(r *Record) error {
	return bs.db.Update(func(txn *badger.Txn) error {
		return txn.Set(runKey(r.Run), r.Marshal())
	})
}

func (bs *BadgerStore) Get(run t.RunNumber) (*Record, error) {
	r := &Record{}
	err := bs.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(runKey(run))
		if err != nil {
			return err
		}
		return item.Value(r.Unmarshal)
	})

	if err == badger.ErrKeyNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.WithMessagef(err, "could not read result of run %d", run)
	}

	return r, nil
}

func (bs *BadgerStore) Iterate(f func(*Record) error) error {
	return bs.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = runKeyPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			r := &Record{}
			if err := it.Item().Value(r.Unmarshal); err != nil {
				return errors.WithMessagef(err, "could not decode result %x", it.Item().Key())
			}
			if err := f(r); err != nil {
				return err
			}
		}
		return nil
	})
}

func (bs *BadgerStore) Close() error {
	return bs.db.Close()
}
