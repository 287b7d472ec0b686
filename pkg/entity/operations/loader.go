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
	"github.com/robinvandenberg/Achilles/pkg/entity/proxy"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.uber.org/yarpc/yarpcerrors"
)

// Loader reads entities by primary key.
type Loader struct {
	proxifier *Proxifier
}

// Load reads the entity addressed by pc.PrimaryKey and returns it managed.
// It returns nil when no row exists. A lazy load does not read storage: the
// returned reference only has its primary key set until it is initialized.
func (l *Loader) Load(
	ctx context.Context,
	pc *persistence.Context,
	lazy bool,
) (*proxy.Entity, error) {
	em := pc.Meta
	keys, err := em.KeyColumns(pc.PrimaryKey)
	if err != nil {
		return nil, err
	}

	if lazy {
		entity := em.NewInstance()
		if err := setKeys(em, entity, keys); err != nil {
			return nil, err
		}
		return l.proxifier.Proxify(em, entity, pc.PrimaryKey, false), nil
	}

	entity, err := l.load(ctx, pc, em, pc.PrimaryKey, true)
	if err != nil || entity == nil {
		return nil, err
	}
	return l.proxifier.Proxify(em, entity, pc.PrimaryKey, true), nil
}

// load reads one entity. Joined entities are read too when withJoins is set;
// their own joins only carry the joined partition key.
func (l *Loader) load(
	ctx context.Context,
	pc *persistence.Context,
	em *meta.EntityMeta,
	primaryKey interface{},
	withJoins bool,
) (interface{}, error) {
	keys, err := em.KeyColumns(primaryKey)
	if err != nil {
		return nil, err
	}
	def := em.Definition()
	row, err := pc.DAO().Connector.Get(
		pc.ReadContextFor(ctx, em.TableName), def, keys, def.GetColumnsToRead()...)
	if yarpcerrors.IsNotFound(err) {
		log.WithFields(log.Fields{
			common.EntityLogField:     em.ClassName,
			common.PrimaryKeyLogField: primaryKey,
		}).Debug("entity not found")
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load entity '%s'", em.ClassName)
	}

	entity := em.NewInstance()
	if err := l.fill(ctx, pc, em, entity, row, withJoins); err != nil {
		return nil, err
	}
	if em.HasCounter {
		counters, err := readCounters(ctx, pc, em, primaryKey)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to load counters of '%s'", em.ClassName)
		}
		for _, pm := range em.CounterProperties() {
			if err := pm.SetValue(entity, counters[pm.ColumnName]); err != nil {
				return nil, err
			}
		}
	}
	return entity, nil
}

func (l *Loader) fill(
	ctx context.Context,
	pc *persistence.Context,
	em *meta.EntityMeta,
	entity interface{},
	row map[string]interface{},
	withJoins bool,
) error {
	for _, pm := range em.KeyProperties() {
		if err := pm.SetValue(entity, row[pm.ColumnName]); err != nil {
			return err
		}
	}

	c := pc.DAO().CodecFor(em.Type)
	for _, pm := range em.ColumnProperties() {
		raw := row[pm.ColumnName]
		if meta.IsNil(raw) {
			continue
		}
		if pm.IsJoin() {
			joined, err := l.join(ctx, pc, pm, raw, withJoins)
			if err != nil {
				return err
			}
			if joined == nil {
				continue
			}
			if err := pm.SetValue(entity, joined); err != nil {
				return err
			}
			continue
		}
		v, err := fromColumnValue(pm, raw, c)
		if err != nil {
			return errors.Wrapf(err, "entity '%s'", em.ClassName)
		}
		if err := pm.SetValue(entity, v); err != nil {
			return err
		}
	}
	return nil
}

// join resolves the value of a join column. Beyond the first level only a
// reference carrying the partition key is built.
func (l *Loader) join(
	ctx context.Context,
	pc *persistence.Context,
	pm *meta.PropertyMeta,
	partitionKey interface{},
	load bool,
) (interface{}, error) {
	target := pm.JoinMeta
	if load {
		return l.load(ctx, pc, target, partitionKey, false)
	}
	entity := target.NewInstance()
	if err := target.PartitionKey.SetValue(entity, partitionKey); err != nil {
		return nil, err
	}
	return entity, nil
}
