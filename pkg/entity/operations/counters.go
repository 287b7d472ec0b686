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

	"github.com/robinvandenberg/Achilles/pkg/common"
	"github.com/robinvandenberg/Achilles/pkg/consistency"
	"github.com/robinvandenberg/Achilles/pkg/entity/meta"
	"github.com/robinvandenberg/Achilles/pkg/entity/persistence"
	"github.com/robinvandenberg/Achilles/pkg/storage/objects/base"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.uber.org/yarpc/yarpcerrors"
)

// counterPartition returns the key of the counter column family partition
// holding every counter of one entity: its class name and its serialized
// primary key.
func counterPartition(
	dao *persistence.DAOContext,
	em *meta.EntityMeta,
	primaryKey interface{},
) ([]base.Column, error) {
	keys, err := em.KeyColumns(primaryKey)
	if err != nil {
		return nil, err
	}
	values := make([]interface{}, len(keys))
	for i, k := range keys {
		values[i] = normalizeKey(k.Value)
	}
	var key interface{} = values
	if len(values) == 1 {
		key = values[0]
	}
	b, err := dao.CodecFor(em.Type).Encode(key)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot serialize primary key of '%s'", em.ClassName)
	}
	return []base.Column{
		{Name: common.CounterFQCNColumn, Value: em.ClassName},
		{Name: common.CounterPrimaryKeyColumn, Value: string(b)},
	}, nil
}

func counterKeys(
	dao *persistence.DAOContext,
	em *meta.EntityMeta,
	pm *meta.PropertyMeta,
	primaryKey interface{},
) ([]base.Column, error) {
	keys, err := counterPartition(dao, em, primaryKey)
	if err != nil {
		return nil, err
	}
	return append(keys, base.Column{Name: common.CounterPropertyColumn, Value: pm.ColumnName}), nil
}

func incrementMutation(
	dao *persistence.DAOContext,
	em *meta.EntityMeta,
	pm *meta.PropertyMeta,
	primaryKey interface{},
	delta int64,
) (*base.Mutation, error) {
	keys, err := counterKeys(dao, em, pm, primaryKey)
	if err != nil {
		return nil, err
	}
	return &base.Mutation{
		Op:         base.OpIncrement,
		Definition: dao.CounterDefinition,
		Keys:       keys,
		Values:     []base.Column{{Name: common.CounterValueColumn, Value: delta}},
	}, nil
}

// readCounters returns the counter values of an entity by property column
// name.
func readCounters(
	ctx context.Context,
	pc *persistence.Context,
	em *meta.EntityMeta,
	primaryKey interface{},
) (map[string]int64, error) {
	dao := pc.DAO()
	partition, err := counterPartition(dao, em, primaryKey)
	if err != nil {
		return nil, err
	}
	readCtx := pc.ReadContextFor(ctx, common.CounterColumnFamily)
	rows, err := dao.Connector.GetAllIter(readCtx, dao.CounterDefinition, partition, nil)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counters := make(map[string]int64)
	for {
		row, err := rows.Next()
		if err != nil {
			return nil, err
		}
		if row == nil {
			return counters, nil
		}
		name, value, err := counterEntry(row)
		if err != nil {
			return nil, err
		}
		counters[name] = value
	}
}

func counterEntry(row []base.Column) (string, int64, error) {
	var name string
	var value int64
	for _, col := range row {
		switch col.Name {
		case common.CounterPropertyColumn:
			v, err := meta.ConvertValue(col.Value, _stringType)
			if err != nil {
				return "", 0, err
			}
			name = v.String()
		case common.CounterValueColumn:
			v, err := meta.ConvertValue(col.Value, _int64Type)
			if err != nil {
				return "", 0, err
			}
			value = v.Int()
		}
	}
	return name, value, nil
}

// counterStore backs the counter wrappers of managed entities. Wrappers
// outlive the call that produced them, so each access opens its own scope
// from the consistency policy.
type counterStore struct {
	dao    *persistence.DAOContext
	policy *consistency.Policy
	em     *meta.EntityMeta
}

func (s *counterStore) GetCounter(
	ctx context.Context,
	pm *meta.PropertyMeta,
	primaryKey interface{},
) (int64, error) {
	keys, err := counterKeys(s.dao, s.em, pm, primaryKey)
	if err != nil {
		return 0, err
	}
	level := s.policy.ReadLevelFor(common.CounterColumnFamily)
	row, err := s.dao.Connector.Get(
		consistency.WithLevel(ctx, level),
		s.dao.CounterDefinition,
		keys,
		common.CounterValueColumn,
	)
	if yarpcerrors.IsNotFound(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	v, err := meta.ConvertValue(row[common.CounterValueColumn], _int64Type)
	if err != nil {
		return 0, err
	}
	return v.Int(), nil
}

func (s *counterStore) IncrementCounter(
	ctx context.Context,
	pm *meta.PropertyMeta,
	primaryKey interface{},
	delta int64,
) error {
	keys, err := counterKeys(s.dao, s.em, pm, primaryKey)
	if err != nil {
		return err
	}
	level := s.policy.WriteLevelFor(common.CounterColumnFamily)
	log.WithFields(log.Fields{
		common.EntityLogField:     s.em.ClassName,
		common.PrimaryKeyLogField: primaryKey,
		"property":                pm.Name,
		"delta":                   delta,
	}).Debug("incrementing counter")
	return s.dao.Connector.Increment(
		consistency.WithLevel(ctx, level),
		s.dao.CounterDefinition,
		common.CounterValueColumn,
		delta,
		keys,
	)
}
