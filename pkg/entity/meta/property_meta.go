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
	"fmt"
	"reflect"

	"github.com/pkg/errors"
)

// PropertyType is the storage kind of a mapped field.
type PropertyType int

const (
	// SimpleProperty is a scalar column.
	SimpleProperty PropertyType = iota + 1
	// ListProperty is an ordered collection column.
	ListProperty
	// SetProperty is a collection column of distinct values.
	SetProperty
	// MapProperty is a key/value collection column.
	MapProperty
	// CounterProperty lives in the shared counter column family.
	CounterProperty
	// JoinSimpleProperty references another entity by its partition key.
	JoinSimpleProperty
)

func (t PropertyType) String() string {
	switch t {
	case SimpleProperty:
		return "SIMPLE"
	case ListProperty:
		return "LIST"
	case SetProperty:
		return "SET"
	case MapProperty:
		return "MAP"
	case CounterProperty:
		return "COUNTER"
	case JoinSimpleProperty:
		return "JOIN_SIMPLE"
	}
	return "UNKNOWN"
}

// IsCollection returns true for list, set and map properties.
func (t PropertyType) IsCollection() bool {
	return t == ListProperty || t == SetProperty || t == MapProperty
}

// PropertyMeta describes one mapped field of an entity.
type PropertyMeta struct {
	// Name is the Go field name.
	Name string
	// ColumnName is the name of the column the field maps to.
	ColumnName string
	// Type is the storage kind.
	Type PropertyType
	// ValueType is the declared Go type of the field.
	ValueType reflect.Type
	// ElementType is the element type of a list or set, or the value type of
	// a map.
	ElementType reflect.Type
	// KeyType is the key type of a map.
	KeyType reflect.Type
	// SetterName identifies the mutator of this property in dirty maps.
	SetterName string
	// EntityClassName is the class name of the owning entity.
	EntityClassName string
	// ClusteringOrder is the declared sequence of a clustering key.
	ClusteringOrder int
	// Encoded is true when values go through the codec and are stored as
	// bytes.
	Encoded bool
	// Cascade persists the joined entity along with its owner.
	Cascade bool
	// JoinMeta is the descriptor of the joined entity. It is set by the join
	// resolution pass once every entity has been parsed.
	JoinMeta *EntityMeta
	// CounterProperties binds counter properties to their owning row.
	CounterProperties *CounterProperties
	// FieldIndex is the reflect index of the field in the entity struct.
	FieldIndex []int
}

func (pm *PropertyMeta) String() string {
	return fmt.Sprintf("%s.%s(%s %s)", pm.EntityClassName, pm.Name, pm.Type, pm.ValueType)
}

// IsCounter returns true for counter properties.
func (pm *PropertyMeta) IsCounter() bool {
	return pm.Type == CounterProperty
}

// IsJoin returns true for join properties.
func (pm *PropertyMeta) IsJoin() bool {
	return pm.Type == JoinSimpleProperty
}

// ColumnType returns the Go type of the column as stored: bytes for encoded
// values, the joined partition key type for joins, the declared type
// otherwise.
func (pm *PropertyMeta) ColumnType() reflect.Type {
	switch {
	case pm.Encoded:
		return reflect.TypeOf([]byte(nil))
	case pm.IsJoin() && pm.JoinMeta != nil:
		return pm.JoinMeta.PartitionKey.ValueType
	}
	return pm.ValueType
}

func (pm *PropertyMeta) field(entity interface{}) (reflect.Value, error) {
	v := reflect.ValueOf(entity)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return reflect.Value{}, errors.Errorf(
			"cannot access property '%s' on %T: a non nil pointer is required",
			pm.Name, entity)
	}
	v = v.Elem()
	if v.Kind() != reflect.Struct {
		return reflect.Value{}, errors.Errorf(
			"cannot access property '%s' on %T: not a struct", pm.Name, entity)
	}
	return v.FieldByIndex(pm.FieldIndex), nil
}

// GetValue reads the field value from an entity pointer.
func (pm *PropertyMeta) GetValue(entity interface{}) (interface{}, error) {
	f, err := pm.field(entity)
	if err != nil {
		return nil, err
	}
	return f.Interface(), nil
}

// SetValue writes a value into the field of an entity pointer, converting
// between compatible types. A nil value resets the field to its zero value.
func (pm *PropertyMeta) SetValue(entity interface{}, value interface{}) error {
	f, err := pm.field(entity)
	if err != nil {
		return err
	}
	converted, err := ConvertValue(value, pm.ValueType)
	if err != nil {
		return errors.Wrapf(err, "cannot set property '%s'", pm.Name)
	}
	f.Set(converted)
	return nil
}
