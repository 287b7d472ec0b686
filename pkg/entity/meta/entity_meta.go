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

package meta

import (
	"reflect"
	"sync"

	"github.com/robinvandenberg/Achilles/pkg/common"
	"github.com/robinvandenberg/Achilles/pkg/storage/objects/base"

	"github.com/pkg/errors"
)

// CompoundKey is the primary key of an entity declaring clustering keys: the
// partition key value followed by the clustering key values in clustering
// order.
type CompoundKey []interface{}

// EntityMeta describes the mapping of one entity type to a column family.
type EntityMeta struct {
	// ClassName is the fully qualified name: registry package + type name.
	ClassName string
	// Type is the entity struct type.
	Type reflect.Type
	// TableName is the name of the column family.
	TableName string
	// PartitionKey is the partition key property.
	PartitionKey *PropertyMeta
	// ClusteringKeys are ordered by their declared sequence.
	ClusteringKeys []*PropertyMeta
	// Properties holds every other mapped property in declaration order.
	Properties []*PropertyMeta
	// PropertyMap indexes every property, keys included, by field name.
	PropertyMap map[string]*PropertyMeta
	// HasCounter is true when at least one property is a counter.
	HasCounter bool

	definitionOnce sync.Once
	definition     *base.Definition
}

// NewInstance allocates a new zero entity and returns a pointer to it.
func (em *EntityMeta) NewInstance() interface{} {
	return reflect.New(em.Type).Interface()
}

// IsInstance returns true when entity is a pointer to the entity type.
func (em *EntityMeta) IsInstance(entity interface{}) bool {
	t := reflect.TypeOf(entity)
	return t != nil && t.Kind() == reflect.Ptr && t.Elem() == em.Type
}

// KeyProperties returns the partition key followed by the clustering keys.
func (em *EntityMeta) KeyProperties() []*PropertyMeta {
	keys := make([]*PropertyMeta, 0, 1+len(em.ClusteringKeys))
	keys = append(keys, em.PartitionKey)
	return append(keys, em.ClusteringKeys...)
}

// IsKey returns true when the property is part of the primary key.
func (em *EntityMeta) IsKey(pm *PropertyMeta) bool {
	for _, k := range em.KeyProperties() {
		if k == pm {
			return true
		}
	}
	return false
}

// CounterProperties returns the counter properties of the entity.
func (em *EntityMeta) CounterProperties() []*PropertyMeta {
	var counters []*PropertyMeta
	for _, pm := range em.Properties {
		if pm.IsCounter() {
			counters = append(counters, pm)
		}
	}
	return counters
}

// ColumnProperties returns the non key properties stored in the entity
// column family, counters excluded.
func (em *EntityMeta) ColumnProperties() []*PropertyMeta {
	var props []*PropertyMeta
	for _, pm := range em.Properties {
		if !pm.IsCounter() {
			props = append(props, pm)
		}
	}
	return props
}

// Definition returns the column family layout of the entity. It must only be
// called once joins have been resolved.
func (em *EntityMeta) Definition() *base.Definition {
	em.definitionOnce.Do(func() {
		def := &base.Definition{
			Name: em.TableName,
			Key: &base.PrimaryKey{
				PartitionKeys: []string{em.PartitionKey.ColumnName},
			},
			ColumnToType: map[string]reflect.Type{
				em.PartitionKey.ColumnName: em.PartitionKey.ColumnType(),
			},
			ColumnKinds: map[string]base.ColumnKind{},
		}
		for _, ck := range em.ClusteringKeys {
			def.Key.ClusteringKeys = append(def.Key.ClusteringKeys,
				&base.ClusteringKey{Name: ck.ColumnName})
			def.ColumnToType[ck.ColumnName] = ck.ColumnType()
		}
		for _, pm := range em.ColumnProperties() {
			def.ColumnToType[pm.ColumnName] = pm.ColumnType()
			switch pm.Type {
			case ListProperty:
				def.ColumnKinds[pm.ColumnName] = base.ListColumn
			case SetProperty:
				def.ColumnKinds[pm.ColumnName] = base.SetColumn
			case MapProperty:
				def.ColumnKinds[pm.ColumnName] = base.MapColumn
			}
		}
		em.definition = def
	})
	return em.definition
}

// PrimaryKeyValues extracts the primary key of an entity: the partition key
// value alone, or a CompoundKey when clustering keys are declared.
func (em *EntityMeta) PrimaryKeyValues(entity interface{}) (interface{}, error) {
	var values CompoundKey
	for _, pm := range em.KeyProperties() {
		v, err := pm.GetValue(entity)
		if err != nil {
			return nil, err
		}
		if IsNil(v) {
			return nil, errors.Errorf(
				"key property '%s' of entity '%s' must not be nil",
				pm.Name, em.ClassName)
		}
		values = append(values, v)
	}
	if len(values) == 1 {
		return values[0], nil
	}
	return values, nil
}

// KeyColumns converts a primary key into the key columns of the column
// family. The key is either a scalar partition key value, a CompoundKey, or
// a pointer to an entity of this type.
func (em *EntityMeta) KeyColumns(primaryKey interface{}) ([]base.Column, error) {
	if em.IsInstance(primaryKey) {
		pk, err := em.PrimaryKeyValues(primaryKey)
		if err != nil {
			return nil, err
		}
		primaryKey = pk
	}
	keys := em.KeyProperties()
	var values []interface{}
	switch k := primaryKey.(type) {
	case CompoundKey:
		values = k
	case []interface{}:
		values = k
	default:
		values = []interface{}{primaryKey}
	}
	if len(values) != len(keys) {
		return nil, errors.Errorf(
			"primary key of entity '%s' requires %d components, got %d",
			em.ClassName, len(keys), len(values))
	}
	cols := make([]base.Column, 0, len(keys))
	for i, pm := range keys {
		if IsNil(values[i]) {
			return nil, errors.Errorf(
				"key component '%s' of entity '%s' must not be nil",
				pm.Name, em.ClassName)
		}
		v, err := ConvertValue(values[i], pm.ValueType)
		if err != nil {
			return nil, errors.Wrapf(err, "key component '%s'", pm.Name)
		}
		cols = append(cols, base.Column{Name: pm.ColumnName, Value: v.Interface()})
	}
	return cols, nil
}

// PartitionKeyColumns converts a partition key value into key columns.
func (em *EntityMeta) PartitionKeyColumns(partitionKey interface{}) ([]base.Column, error) {
	if IsNil(partitionKey) {
		return nil, errors.Errorf(
			"partition key of entity '%s' must not be nil", em.ClassName)
	}
	v, err := ConvertValue(partitionKey, em.PartitionKey.ValueType)
	if err != nil {
		return nil, errors.Wrapf(err, "partition key of entity '%s'", em.ClassName)
	}
	return []base.Column{{Name: em.PartitionKey.ColumnName, Value: v.Interface()}}, nil
}

// EntityMetaMap is the arena of every parsed entity, indexed by struct type.
type EntityMetaMap map[reflect.Type]*EntityMeta

// Get returns the descriptor of an entity given a pointer, a struct value or
// a reflect.Type.
func (m EntityMetaMap) Get(entityOrType interface{}) (*EntityMeta, error) {
	var t reflect.Type
	switch v := entityOrType.(type) {
	case reflect.Type:
		t = v
	default:
		t = reflect.TypeOf(entityOrType)
	}
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	em, ok := m[t]
	if !ok {
		return nil, common.NewUnsupportedOperationError(
			"the entity type '%v' is not managed", t)
	}
	return em, nil
}

// IsNil returns true for nil and for nil pointers, maps, slices and
// interfaces.
func IsNil(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// CounterDefinition returns the layout of the column family shared by every
// counter property.
func CounterDefinition() *base.Definition {
	return &base.Definition{
		Name: common.CounterColumnFamily,
		Key: &base.PrimaryKey{
			PartitionKeys: []string{
				common.CounterFQCNColumn,
				common.CounterPrimaryKeyColumn,
			},
			ClusteringKeys: []*base.ClusteringKey{
				{Name: common.CounterPropertyColumn},
			},
		},
		ColumnToType: map[string]reflect.Type{
			common.CounterFQCNColumn:       reflect.TypeOf(""),
			common.CounterPrimaryKeyColumn: reflect.TypeOf(""),
			common.CounterPropertyColumn:   reflect.TypeOf(""),
			common.CounterValueColumn:      reflect.TypeOf(int64(0)),
		},
		ColumnKinds: map[string]base.ColumnKind{
			common.CounterValueColumn: base.CounterColumn,
		},
	}
}
