/*
 * Copyright 2025 The RuleGo Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

const defaultKeyPrefix = "streamcep:units:"

// Badger stores units in an embedded BadgerDB under prefix+org/name/version.
type Badger struct {
	db     *badger.DB
	prefix string
}

var _ Repository = (*Badger)(nil)

// NewBadger opens a BadgerDB at dir; an empty dir opens an in-memory database.
func NewBadger(dir, prefix string) (*Badger, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger repository %q: %w", dir, err)
	}
	return NewBadgerFromDB(db, prefix), nil
}

// NewBadgerFromDB wraps an existing database.
func NewBadgerFromDB(db *badger.DB, prefix string) *Badger {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &Badger{db: db, prefix: prefix}
}

func (r *Badger) prefixKey(id Identity) []byte {
	return []byte(r.prefix + id.key())
}

func (r *Badger) Fetch(ctx context.Context, id Identity) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	id = id.normalize()
	if err := id.validate(); err != nil {
		return nil, false, err
	}
	var value []byte
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(r.prefixKey(id))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("fetch %s: %w", id, err)
	}
	return value, true, nil
}

func (r *Badger) Store(ctx context.Context, id Identity, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id = id.normalize()
	if err := id.validate(); err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(r.prefixKey(id), data))
	})
}

func (r *Badger) Search(ctx context.Context, term string) ([]Identity, error) {
	var found []Identity
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(r.prefix)

		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			key := string(it.Item().Key())
			id, ok := parseKey(key[len(r.prefix):])
			if ok && id.Matches(term) {
				found = append(found, id)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	sortIdentities(found)
	return found, nil
}

// Close closes the database.
func (r *Badger) Close() error {
	return r.db.Close()
}
