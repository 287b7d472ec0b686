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

package orm

import (
	"context"

	"github.com/robinvandenberg/Achilles/pkg/storage/objects/base"
)

//go:generate mockgen -source=connector.go -destination=mocks/mock_connector.go -package=mocks

// SchemaConnector reads and creates column family layouts.
type SchemaConnector interface {
	// DescribeTable returns the layout of an existing column family. It
	// returns a yarpcerrors NotFound error when the column family does not
	// exist.
	DescribeTable(ctx context.Context, name string) (*base.Definition, error)

	// CreateTable creates a column family with the given layout.
	CreateTable(ctx context.Context, e *base.Definition) error
}

// Connector is the interface that must be implemented for a backend service.
// The consistency level of each call is carried by ctx, see
// consistency.WithLevel.
type Connector interface {
	SchemaConnector

	// Create creates a row in the DB for the base object. A non zero ttl
	// makes the written values expire after ttl seconds.
	Create(
		ctx context.Context,
		e *base.Definition,
		values []base.Column,
		ttl int32,
	) error

	// Get fetches a row by primary key of base object. It returns a
	// yarpcerrors NotFound error when the row does not exist.
	Get(
		ctx context.Context,
		e *base.Definition,
		keys []base.Column,
		colNamesToRead ...string,
	) (map[string]interface{}, error)

	// GetAllIter iterates over the rows of one partition. keys holds the
	// partition key columns, rng optionally bounds the clustering range.
	// Rows carry the TTL of their simple columns.
	GetAllIter(
		ctx context.Context,
		e *base.Definition,
		keys []base.Column,
		rng *base.SliceRange,
	) (Iterator, error)

	// Update updates a row in the DB for the base object
	Update(
		ctx context.Context,
		e *base.Definition,
		values []base.Column,
		keys []base.Column,
		ttl int32,
	) error

	// Delete deletes a row from the DB for the base object
	Delete(ctx context.Context, e *base.Definition, keys []base.Column) error

	// Increment adds delta to a counter column of a row.
	Increment(
		ctx context.Context,
		e *base.Definition,
		column string,
		delta int64,
		keys []base.Column,
	) error

	// ExecuteBatch applies mutations as one logged batch. Counter mutations
	// are sent in a separate counter batch.
	ExecuteBatch(ctx context.Context, mutations []*base.Mutation) error
}

// Iterator allows the caller to iterate over the results of a query.
type Iterator interface {
	// Next fetches the next row of the result. On reaching the end of
	// results, it returns nil. Error is returned if there is a failure
	// during iteration. Next should not be called once error is returned
	// or Close is called.
	Next() ([]base.Column, error)

	// Close indicates that iterator is no longer required and so any
	// clean-up actions may be performed.
	Close()
}
