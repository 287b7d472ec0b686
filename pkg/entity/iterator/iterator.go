// Copyright (c) 2024 The Achilles Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package iterator

import (
	"github.com/robinvandenberg/Achilles/pkg/common"
	"github.com/robinvandenberg/Achilles/pkg/storage/objects/base"
	"github.com/robinvandenberg/Achilles/pkg/storage/orm"

	"github.com/pkg/errors"
)

// ErrNoSuchElement is returned by iterators with no element left.
var ErrNoSuchElement = errors.New("no such element")

// KeyValue is one element of a slice: the key identifying the row, the
// value read and its time to live in seconds.
type KeyValue struct {
	Key   interface{}
	Value interface{}
	TTL   int32
}

// RowConverter turns a storage row into a KeyValue.
type RowConverter func(row []base.Column) (*KeyValue, error)

// KeyValueIterator walks the rows of a storage iterator, converting each row
// into a KeyValue. It is a single pass iterator.
type KeyValueIterator struct {
	rows    orm.Iterator
	convert RowConverter

	next *KeyValue
	err  error
	done bool
}

// New creates a KeyValueIterator over rows.
func New(rows orm.Iterator, convert RowConverter) *KeyValueIterator {
	return &KeyValueIterator{rows: rows, convert: convert}
}

func (it *KeyValueIterator) fetch() {
	if it.next != nil || it.err != nil || it.done {
		return
	}
	row, err := it.rows.Next()
	if err != nil {
		it.err = err
		return
	}
	if row == nil {
		it.done = true
		return
	}
	kv, err := it.convert(row)
	if err != nil {
		it.err = err
		return
	}
	it.next = kv
}

// HasNext returns true when Next will return an element or an error.
func (it *KeyValueIterator) HasNext() bool {
	it.fetch()
	return it.next != nil || it.err != nil
}

// Next returns the next element, or ErrNoSuchElement once exhausted.
func (it *KeyValueIterator) Next() (*KeyValue, error) {
	it.fetch()
	if it.err != nil {
		err := it.err
		it.err = nil
		it.done = true
		return nil, err
	}
	if it.next == nil {
		return nil, ErrNoSuchElement
	}
	kv := it.next
	it.next = nil
	return kv, nil
}

// NextKey returns the key of the next element.
func (it *KeyValueIterator) NextKey() (interface{}, error) {
	kv, err := it.Next()
	if err != nil {
		return nil, err
	}
	return kv.Key, nil
}

// NextValue returns the value of the next element.
func (it *KeyValueIterator) NextValue() (interface{}, error) {
	kv, err := it.Next()
	if err != nil {
		return nil, err
	}
	return kv.Value, nil
}

// NextTTL returns the time to live of the next element.
func (it *KeyValueIterator) NextTTL() (int32, error) {
	kv, err := it.Next()
	if err != nil {
		return 0, err
	}
	return kv.TTL, nil
}

// Remove is not supported: rows are read in a single pass.
func (it *KeyValueIterator) Remove() error {
	return common.NewUnsupportedOperationError(
		"Cannot remove an element from a slice iterator")
}

// Close releases the underlying storage iterator.
func (it *KeyValueIterator) Close() {
	it.done = true
	it.rows.Close()
}

// CounterKeyValueIterator walks the counter values of an entity: keys are
// counter property names, values are int64.
type CounterKeyValueIterator struct {
	*KeyValueIterator
}

// NewCounter creates a CounterKeyValueIterator over counter rows.
func NewCounter(rows orm.Iterator, convert RowConverter) *CounterKeyValueIterator {
	return &CounterKeyValueIterator{KeyValueIterator: New(rows, convert)}
}

// NextTTL always fails: counters have no time to live.
func (it *CounterKeyValueIterator) NextTTL() (int32, error) {
	return 0, common.NewUnsupportedOperationError(
		"Ttl does not exist for counter type")
}

// Remove always fails: counters are never removed.
func (it *CounterKeyValueIterator) Remove() error {
	return common.NewUnsupportedOperationError(
		"Cannot remove counter value. Please set a its value to 0 instead of removing it")
}
