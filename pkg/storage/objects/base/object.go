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

package base

import (
	"reflect"
	"sort"
)

// ColumnKind tells connectors how a column is laid out in the column family
// when the Go type alone is ambiguous.
type ColumnKind int

const (
	// SimpleColumn holds a single scalar value.
	SimpleColumn ColumnKind = iota
	// ListColumn holds an ordered collection.
	ListColumn
	// SetColumn holds a collection of distinct values.
	SetColumn
	// MapColumn holds a key/value collection.
	MapColumn
	// CounterColumn holds a counter that only supports increments.
	CounterColumn
)

// Definition stores schema information about a column family
type Definition struct {
	// normalized column family name
	Name string
	// Primary key of the column family
	Key *PrimaryKey
	// Column name to data type mapping of the column family
	ColumnToType map[string]reflect.Type
	// Column name to layout kind. Columns absent from this map are simple.
	ColumnKinds map[string]ColumnKind
}

// Column holds a column name and value for one row.
type Column struct {
	// Name of the column
	Name string
	// Value of the column
	Value interface{}
	// TTL of the column in seconds, 0 when the column does not expire or the
	// connector was not asked to read it.
	TTL int32
}

// ClusteringKey stores name and ordering of a clustering key
type ClusteringKey struct {
	// Name of the clustering key
	Name string
	// Clustering order
	Descending bool
}

// PrimaryKey stores information about partition keys and clustering keys
type PrimaryKey struct {
	// List of partition key names
	PartitionKeys []string
	// List of clustering key objects (clustering key name and order)
	ClusteringKeys []*ClusteringKey
}

// KindOf returns the layout kind of a column.
func (o *Definition) KindOf(column string) ColumnKind {
	if o.ColumnKinds == nil {
		return SimpleColumn
	}
	return o.ColumnKinds[column]
}

// IsKeyColumn returns true when the column is part of the primary key.
func (o *Definition) IsKeyColumn(column string) bool {
	if o.Key == nil {
		return false
	}
	for _, pk := range o.Key.PartitionKeys {
		if pk == column {
			return true
		}
	}
	for _, ck := range o.Key.ClusteringKeys {
		if ck.Name == column {
			return true
		}
	}
	return false
}

// GetColumnsToRead returns a list of column names to be read for this column
// family in a select operation. Key columns come first, in key order, the
// remaining columns follow sorted by name.
func (o *Definition) GetColumnsToRead() []string {
	colNamesToRead := []string{}
	if o.Key != nil {
		colNamesToRead = append(colNamesToRead, o.Key.PartitionKeys...)
		for _, ck := range o.Key.ClusteringKeys {
			colNamesToRead = append(colNamesToRead, ck.Name)
		}
	}
	var rest []string
	for col := range o.ColumnToType {
		if !o.IsKeyColumn(col) {
			rest = append(rest, col)
		}
	}
	sort.Strings(rest)
	return append(colNamesToRead, rest...)
}

// Operation is the kind of write a Mutation performs.
type Operation int

const (
	// OpInsert writes a full row.
	OpInsert Operation = iota + 1
	// OpUpdate writes a subset of columns of an existing row.
	OpUpdate
	// OpDelete removes a row.
	OpDelete
	// OpIncrement adds a delta to a counter column.
	OpIncrement
)

func (op Operation) String() string {
	switch op {
	case OpInsert:
		return "insert"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	case OpIncrement:
		return "increment"
	}
	return "unknown"
}

// Mutation is one write against a column family. Batching flush contexts
// accumulate mutations and hand them to the connector in one batch.
type Mutation struct {
	Op         Operation
	Definition *Definition
	// Keys holds the primary key columns identifying the row.
	Keys []Column
	// Values holds the columns to write. For OpIncrement it holds exactly one
	// column whose value is the int64 delta.
	Values []Column
	// TTL in seconds applied to written values, 0 for none.
	TTL int32
}

// SliceRange bounds a clustering range inside one partition.
type SliceRange struct {
	// From and To are clustering key prefixes, nil means unbounded.
	From []interface{}
	To   []interface{}
	// Limit caps the number of rows returned, 0 means no limit.
	Limit int
	// Reversed walks the partition in descending clustering order.
	Reversed bool
}

// Object is a marker interface method that is used to add connector specific
// annotations to entities. Users embed this interface in any entity struct
// definition.
//
// For example:
//
//	type Sensor struct {
//		base.Object `cassandra:"name=sensor"`
//		ID          int64     `column:"name=id, partition_key"`
//		Date        time.Time `column:"name=date, clustering_key=1"`
//		Type        string    `column:"name=type"`
//		Value       float64   `column:"name=value"`
//	}
//
// Here, base.Object is embedded in Sensor just to carry the column family
// name. Field tags describe the partition key, the clustering keys with their
// sequence, and the plain columns. Other field options are counter, join,
// cascade, list, set and map.
type Object interface {
	entity()
}
