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
	"context"
	"reflect"

	"github.com/robinvandenberg/Achilles/pkg/codec"
	"github.com/robinvandenberg/Achilles/pkg/common"
	"github.com/robinvandenberg/Achilles/pkg/entity/iterator"
	"github.com/robinvandenberg/Achilles/pkg/entity/meta"
	"github.com/robinvandenberg/Achilles/pkg/entity/persistence"
	"github.com/robinvandenberg/Achilles/pkg/storage/objects/base"

	"github.com/pkg/errors"
)

// Slicer iterates over the rows of one partition and over the counters of
// one entity.
type Slicer struct{}

// SliceIterator iterates over the value of field in the rows of the
// partition pc.PrimaryKey, ordered by clustering key. Keys are clustering
// key values: a scalar for one clustering key, a meta.CompoundKey
// otherwise.
func (s *Slicer) SliceIterator(
	ctx context.Context,
	pc *persistence.Context,
	field string,
	rng *base.SliceRange,
) (*iterator.KeyValueIterator, error) {
	em := pc.Meta
	if len(em.ClusteringKeys) == 0 {
		return nil, common.NewUnsupportedOperationError(
			"entity '%s' has no clustering key and cannot be sliced", em.ClassName)
	}
	pm, ok := em.PropertyMap[field]
	if !ok {
		return nil, errors.Errorf("entity '%s' has no mapped property '%s'",
			em.ClassName, field)
	}
	if em.IsKey(pm) || pm.IsCounter() || pm.IsJoin() {
		return nil, common.NewUnsupportedOperationError(
			"property '%s' of entity '%s' cannot be sliced", field, em.ClassName)
	}

	keys, err := em.PartitionKeyColumns(pc.PrimaryKey)
	if err != nil {
		return nil, err
	}
	rng, err = convertRange(em, rng)
	if err != nil {
		return nil, err
	}

	dao := pc.DAO()
	rows, err := dao.Connector.GetAllIter(pc.ReadContext(ctx), em.Definition(), keys, rng)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to slice entity '%s'", em.ClassName)
	}

	c := pc.Codec()
	return iterator.New(rows, func(row []base.Column) (*iterator.KeyValue, error) {
		return sliceEntry(em, pm, c, row)
	}), nil
}

func convertRange(em *meta.EntityMeta, rng *base.SliceRange) (*base.SliceRange, error) {
	if rng == nil {
		return nil, nil
	}
	bound := func(values []interface{}) ([]interface{}, error) {
		if len(values) > len(em.ClusteringKeys) {
			return nil, errors.Errorf(
				"slice bound has %d components, entity '%s' has %d clustering keys",
				len(values), em.ClassName, len(em.ClusteringKeys))
		}
		out := make([]interface{}, len(values))
		for i, v := range values {
			cv, err := meta.ConvertValue(v, em.ClusteringKeys[i].ValueType)
			if err != nil {
				return nil, errors.Wrapf(err, "slice bound component %d", i)
			}
			out[i] = cv.Interface()
		}
		return out, nil
	}
	from, err := bound(rng.From)
	if err != nil {
		return nil, err
	}
	to, err := bound(rng.To)
	if err != nil {
		return nil, err
	}
	return &base.SliceRange{
		From:     from,
		To:       to,
		Limit:    rng.Limit,
		Reversed: rng.Reversed,
	}, nil
}

func sliceEntry(
	em *meta.EntityMeta,
	pm *meta.PropertyMeta,
	c codec.Codec,
	row []base.Column,
) (*iterator.KeyValue, error) {
	cols := make(map[string]base.Column, len(row))
	for _, col := range row {
		cols[col.Name] = col
	}

	key := make(meta.CompoundKey, len(em.ClusteringKeys))
	for i, ck := range em.ClusteringKeys {
		v, err := meta.ConvertValue(cols[ck.ColumnName].Value, ck.ValueType)
		if err != nil {
			return nil, errors.Wrapf(err, "clustering key '%s'", ck.Name)
		}
		key[i] = v.Interface()
	}

	col := cols[pm.ColumnName]
	value, err := fromColumnValue(pm, col.Value, c)
	if err != nil {
		return nil, err
	}
	if value == nil {
		value = reflect.Zero(pm.ValueType).Interface()
	}

	kv := &iterator.KeyValue{Value: value, TTL: col.TTL}
	if len(key) == 1 {
		kv.Key = key[0]
	} else {
		kv.Key = key
	}
	return kv, nil
}

// CounterIterator iterates over the counters of the entity pc.PrimaryKey.
// Keys are counter column names, values are int64.
func (s *Slicer) CounterIterator(
	ctx context.Context,
	pc *persistence.Context,
) (*iterator.CounterKeyValueIterator, error) {
	em := pc.Meta
	if !em.HasCounter {
		return nil, common.NewUnsupportedOperationError(
			"entity '%s' has no counter property", em.ClassName)
	}
	dao := pc.DAO()
	partition, err := counterPartition(dao, em, pc.PrimaryKey)
	if err != nil {
		return nil, err
	}
	rows, err := dao.Connector.GetAllIter(
		pc.ReadContextFor(ctx, common.CounterColumnFamily),
		dao.CounterDefinition,
		partition,
		nil,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read counters of '%s'", em.ClassName)
	}
	return iterator.NewCounter(rows, func(row []base.Column) (*iterator.KeyValue, error) {
		name, value, err := counterEntry(row)
		if err != nil {
			return nil, err
		}
		return &iterator.KeyValue{Key: name, Value: value}, nil
	}), nil
}
