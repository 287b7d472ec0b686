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

package operations

import (
	"reflect"
	"sort"
	"time"

	"github.com/robinvandenberg/Achilles/pkg/codec"
	"github.com/robinvandenberg/Achilles/pkg/entity/meta"
	"github.com/robinvandenberg/Achilles/pkg/entity/proxy"
	"github.com/robinvandenberg/Achilles/pkg/storage/objects/base"

	"github.com/pkg/errors"
)

var (
	_bytesType  = reflect.TypeOf([]byte(nil))
	_stringType = reflect.TypeOf("")
	_int64Type  = reflect.TypeOf(int64(0))
)

// unwrap returns the entity pointer behind a proxy.
func unwrap(entity interface{}) interface{} {
	if e, ok := entity.(*proxy.Entity); ok {
		return e.Unproxy()
	}
	return entity
}

// toColumnValue converts a property value into the value stored in its
// column. Joins store the partition key of the joined entity, encoded
// properties store codec bytes.
func toColumnValue(pm *meta.PropertyMeta, value interface{}, c codec.Codec) (interface{}, error) {
	if meta.IsNil(value) {
		return nil, nil
	}
	switch {
	case pm.IsJoin():
		pk, err := pm.JoinMeta.PartitionKey.GetValue(value)
		if err != nil {
			return nil, err
		}
		if meta.IsNil(pk) {
			return nil, errors.Errorf(
				"entity joined by property '%s' of '%s' has no partition key",
				pm.Name, pm.EntityClassName)
		}
		return pk, nil
	case pm.Encoded:
		return c.Encode(value)
	}
	return value, nil
}

// fromColumnValue converts a column value into a property value, joins
// excepted.
func fromColumnValue(pm *meta.PropertyMeta, raw interface{}, c codec.Codec) (interface{}, error) {
	if meta.IsNil(raw) {
		return nil, nil
	}
	if pm.Encoded {
		b, err := meta.ConvertValue(raw, _bytesType)
		if err != nil {
			return nil, errors.Wrapf(err, "property '%s'", pm.Name)
		}
		if b.Len() == 0 {
			return nil, nil
		}
		return c.Decode(b.Bytes(), pm.ValueType)
	}
	v, err := meta.ConvertValue(raw, pm.ValueType)
	if err != nil {
		return nil, errors.Wrapf(err, "property '%s'", pm.Name)
	}
	return v.Interface(), nil
}

// columnValues reads the columns of the given properties from entity. nil
// values are skipped unless keepNil is set.
func columnValues(
	entity interface{},
	props []*meta.PropertyMeta,
	c codec.Codec,
	keepNil bool,
) ([]base.Column, error) {
	cols := make([]base.Column, 0, len(props))
	for _, pm := range props {
		v, err := pm.GetValue(entity)
		if err != nil {
			return nil, err
		}
		cv, err := toColumnValue(pm, v, c)
		if err != nil {
			return nil, err
		}
		if cv == nil && !keepNil {
			continue
		}
		cols = append(cols, base.Column{Name: pm.ColumnName, Value: cv})
	}
	return cols, nil
}

// setKeys writes key columns back into the key properties of entity.
func setKeys(em *meta.EntityMeta, entity interface{}, keys []base.Column) error {
	for i, pm := range em.KeyProperties() {
		if err := pm.SetValue(entity, keys[i].Value); err != nil {
			return err
		}
	}
	return nil
}

// sortedDirty returns the dirty properties ordered by column name.
func sortedDirty(dirty map[string]*meta.PropertyMeta) []*meta.PropertyMeta {
	props := make([]*meta.PropertyMeta, 0, len(dirty))
	for _, pm := range dirty {
		props = append(props, pm)
	}
	sort.Slice(props, func(i, j int) bool {
		return props[i].ColumnName < props[j].ColumnName
	})
	return props
}

// normalizeKey makes key values of equal rows encode identically: storage
// timestamps are UTC with millisecond precision.
func normalizeKey(v interface{}) interface{} {
	if t, ok := v.(time.Time); ok {
		return t.UTC().Truncate(time.Millisecond)
	}
	return v
}
