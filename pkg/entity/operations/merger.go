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
	"github.com/robinvandenberg/Achilles/pkg/entity/persistence"
	"github.com/robinvandenberg/Achilles/pkg/entity/proxy"
	"github.com/robinvandenberg/Achilles/pkg/storage/objects/base"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Merger writes the modifications of managed entities.
type Merger struct {
	persister *Persister
	proxifier *Proxifier
}

// Merge writes exactly the dirty properties of a managed entity and clears
// its dirty map. A plain entity pointer is persisted as a whole and
// returned managed.
func (m *Merger) Merge(ctx context.Context, pc *persistence.Context) (*proxy.Entity, error) {
	e, ok := pc.Entity.(*proxy.Entity)
	if !ok {
		if err := m.persister.Persist(ctx, pc); err != nil {
			return nil, err
		}
		return m.proxifier.Proxify(pc.Meta, pc.Entity, pc.PrimaryKey, true), nil
	}

	if !e.IsDirty() {
		return e, nil
	}

	em := pc.Meta
	entity := e.Unproxy()
	dirty := sortedDirty(e.DirtyMap())

	visited := map[interface{}]bool{entity: true}
	if err := m.persister.cascade(ctx, pc, entity, dirty, visited); err != nil {
		return nil, err
	}

	values, err := columnValues(entity, dirty, pc.Codec(), true)
	if err != nil {
		return nil, err
	}
	keys, err := em.KeyColumns(e.PrimaryKey())
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		common.EntityLogField:     em.ClassName,
		common.PrimaryKeyLogField: e.PrimaryKey(),
		"dirty_columns":           len(values),
	}).Debug("merging entity")

	pc.LoadWriteLevel(em.TableName)
	if err := pc.Flush().Execute(ctx, &base.Mutation{
		Op:         base.OpUpdate,
		Definition: em.Definition(),
		Keys:       keys,
		Values:     values,
		TTL:        pc.TTL,
	}); err != nil {
		return nil, errors.Wrapf(err, "failed to merge entity '%s'", em.ClassName)
	}
	e.ClearDirty()
	return e, nil
}
