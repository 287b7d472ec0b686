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

	"github.com/robinvandenberg/Achilles/pkg/consistency"
	"github.com/robinvandenberg/Achilles/pkg/entity/meta"
	"github.com/robinvandenberg/Achilles/pkg/entity/persistence"
	"github.com/robinvandenberg/Achilles/pkg/entity/proxy"
)

// Proxifier turns entity pointers into managed entities.
type Proxifier struct {
	dao       *persistence.DAOContext
	policy    *consistency.Policy
	refresher *Refresher
}

// Proxify wraps entity. Lazy proxies load their state through the refresher
// on first access.
func (p *Proxifier) Proxify(
	em *meta.EntityMeta,
	entity interface{},
	primaryKey interface{},
	loaded bool,
) *proxy.Entity {
	opts := []proxy.Option{
		proxy.WithLoader(p.loader),
		proxy.WithCounterStore(&counterStore{dao: p.dao, policy: p.policy, em: em}),
	}
	if !loaded {
		opts = append(opts, proxy.Lazy())
	}
	return proxy.New(em, entity, primaryKey, opts...)
}

// Unproxify returns the entity pointer behind a managed entity.
func (p *Proxifier) Unproxify(entity interface{}) interface{} {
	return unwrap(entity)
}

func (p *Proxifier) loader(ctx context.Context, e *proxy.Entity) error {
	flush := persistence.NewImmediateFlushContext(p.dao.Connector, p.policy.NewScope())
	pc := persistence.NewContext(e.Meta(), e, e.PrimaryKey(), p.dao, flush)
	defer pc.Close()
	return p.refresher.refresh(ctx, pc, e)
}
