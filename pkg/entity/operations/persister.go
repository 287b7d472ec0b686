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
	"github.com/robinvandenberg/Achilles/pkg/entity/meta"
	"github.com/robinvandenberg/Achilles/pkg/entity/persistence"
	"github.com/robinvandenberg/Achilles/pkg/storage/objects/base"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Persister writes and removes whole entities.
type Persister struct {
	validator *EntityValidator
}

// Persist inserts the entity of pc along with its non zero counters.
// Joined entities marked cascade are persisted first.
func (p *Persister) Persist(ctx context.Context, pc *persistence.Context) error {
	entity := unwrap(pc.Entity)
	if err := p.validator.Validate(pc.Meta, entity); err != nil {
		return err
	}
	return p.persist(ctx, pc, entity, map[interface{}]bool{})
}

func (p *Persister) persist(
	ctx context.Context,
	pc *persistence.Context,
	entity interface{},
	visited map[interface{}]bool,
) error {
	em := pc.Meta
	visited[entity] = true

	if err := p.cascade(ctx, pc, entity, em.ColumnProperties(), visited); err != nil {
		return err
	}

	primaryKey, err := em.PrimaryKeyValues(entity)
	if err != nil {
		return err
	}
	keys, err := em.KeyColumns(primaryKey)
	if err != nil {
		return err
	}
	values, err := columnValues(entity, em.ColumnProperties(), pc.Codec(), false)
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		common.EntityLogField:     em.ClassName,
		common.PrimaryKeyLogField: primaryKey,
	}).Debug("persisting entity")

	pc.LoadWriteLevel(em.TableName)
	if err := pc.Flush().Execute(ctx, &base.Mutation{
		Op:         base.OpInsert,
		Definition: em.Definition(),
		Keys:       keys,
		Values:     values,
		TTL:        pc.TTL,
	}); err != nil {
		return errors.Wrapf(err, "failed to persist entity '%s'", em.ClassName)
	}
	return p.persistCounters(ctx, pc, em, entity, primaryKey)
}

func (p *Persister) persistCounters(
	ctx context.Context,
	pc *persistence.Context,
	em *meta.EntityMeta,
	entity interface{},
	primaryKey interface{},
) error {
	counters := em.CounterProperties()
	if len(counters) == 0 {
		return nil
	}
	pc.LoadWriteLevel(common.CounterColumnFamily)
	for _, pm := range counters {
		v, err := pm.GetValue(entity)
		if err != nil {
			return err
		}
		delta, err := meta.ConvertValue(v, _int64Type)
		if err != nil {
			return err
		}
		if delta.Int() == 0 {
			continue
		}
		m, err := incrementMutation(pc.DAO(), em, pm, primaryKey, delta.Int())
		if err != nil {
			return err
		}
		if err := pc.Flush().Execute(ctx, m); err != nil {
			return errors.Wrapf(err, "failed to persist counter '%s' of '%s'",
				pm.Name, em.ClassName)
		}
	}
	return nil
}

// cascade persists the entities joined by the cascade properties among
// props.
func (p *Persister) cascade(
	ctx context.Context,
	pc *persistence.Context,
	entity interface{},
	props []*meta.PropertyMeta,
	visited map[interface{}]bool,
) error {
	for _, pm := range props {
		if !pm.IsJoin() || !pm.Cascade {
			continue
		}
		joined, err := pm.GetValue(entity)
		if err != nil {
			return err
		}
		if meta.IsNil(joined) || visited[joined] {
			continue
		}
		if err := p.validator.Validate(pm.JoinMeta, joined); err != nil {
			return errors.Wrapf(err, "cascading property '%s'", pm.Name)
		}
		primaryKey, err := pm.JoinMeta.PrimaryKeyValues(joined)
		if err != nil {
			return err
		}
		jc := pc.Duplicate(pm.JoinMeta, joined, primaryKey)
		if err := p.persist(ctx, jc, joined, visited); err != nil {
			return err
		}
	}
	return nil
}

// Remove deletes the row of pc and the counters of the entity.
func (p *Persister) Remove(ctx context.Context, pc *persistence.Context) error {
	em := pc.Meta
	keys, err := em.KeyColumns(pc.PrimaryKey)
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		common.EntityLogField:     em.ClassName,
		common.PrimaryKeyLogField: pc.PrimaryKey,
	}).Debug("removing entity")

	pc.LoadWriteLevel(em.TableName)
	if err := pc.Flush().Execute(ctx, &base.Mutation{
		Op:         base.OpDelete,
		Definition: em.Definition(),
		Keys:       keys,
	}); err != nil {
		return errors.Wrapf(err, "failed to remove entity '%s'", em.ClassName)
	}

	if !em.HasCounter {
		return nil
	}
	partition, err := counterPartition(pc.DAO(), em, pc.PrimaryKey)
	if err != nil {
		return err
	}
	pc.LoadWriteLevel(common.CounterColumnFamily)
	err = pc.Flush().Execute(ctx, &base.Mutation{
		Op:         base.OpDelete,
		Definition: pc.DAO().CounterDefinition,
		Keys:       partition,
	})
	return errors.Wrapf(err, "failed to remove counters of '%s'", em.ClassName)
}
