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

// Package operations implements the entity manager operations over an
// orm.Connector: persist, merge, remove, load, refresh and slicing.
package operations

import (
	"context"

	"github.com/robinvandenberg/Achilles/pkg/consistency"
	"github.com/robinvandenberg/Achilles/pkg/entity/iterator"
	"github.com/robinvandenberg/Achilles/pkg/entity/persistence"
	"github.com/robinvandenberg/Achilles/pkg/entity/proxy"
	"github.com/robinvandenberg/Achilles/pkg/storage/objects/base"
)

// Backend wires the entity operations together.
type Backend struct {
	validator *EntityValidator
	persister *Persister
	loader    *Loader
	merger    *Merger
	refresher *Refresher
	proxifier *Proxifier
	slicer    *Slicer
}

// NewBackend creates a Backend. policy provides the levels of counter
// wrappers and lazy loads, which run outside of any entity manager call.
func NewBackend(dao *persistence.DAOContext, policy *consistency.Policy) *Backend {
	validator := &EntityValidator{}
	proxifier := &Proxifier{dao: dao, policy: policy}
	loader := &Loader{proxifier: proxifier}
	refresher := &Refresher{loader: loader}
	proxifier.refresher = refresher
	persister := &Persister{validator: validator}

	return &Backend{
		validator: validator,
		persister: persister,
		loader:    loader,
		merger:    &Merger{persister: persister, proxifier: proxifier},
		refresher: refresher,
		proxifier: proxifier,
		slicer:    &Slicer{},
	}
}

// Validator returns the entity validator.
func (b *Backend) Validator() *EntityValidator {
	return b.validator
}

// Persist inserts a new entity.
func (b *Backend) Persist(ctx context.Context, pc *persistence.Context) error {
	return b.persister.Persist(ctx, pc)
}

// Merge writes the modifications of an entity.
func (b *Backend) Merge(ctx context.Context, pc *persistence.Context) (*proxy.Entity, error) {
	return b.merger.Merge(ctx, pc)
}

// Remove deletes an entity.
func (b *Backend) Remove(ctx context.Context, pc *persistence.Context) error {
	return b.persister.Remove(ctx, pc)
}

// Load reads an entity by primary key.
func (b *Backend) Load(ctx context.Context, pc *persistence.Context, lazy bool) (*proxy.Entity, error) {
	return b.loader.Load(ctx, pc, lazy)
}

// Refresh reloads a managed entity.
func (b *Backend) Refresh(ctx context.Context, pc *persistence.Context) error {
	return b.refresher.Refresh(ctx, pc)
}

// SliceIterator iterates over one property across the rows of a partition.
func (b *Backend) SliceIterator(
	ctx context.Context,
	pc *persistence.Context,
	field string,
	rng *base.SliceRange,
) (*iterator.KeyValueIterator, error) {
	return b.slicer.SliceIterator(ctx, pc, field, rng)
}

// CounterIterator iterates over the counters of an entity.
func (b *Backend) CounterIterator(
	ctx context.Context,
	pc *persistence.Context,
) (*iterator.CounterKeyValueIterator, error) {
	return b.slicer.CounterIterator(ctx, pc)
}

// Unwrap returns the entity pointer behind a managed entity.
func (b *Backend) Unwrap(entity interface{}) interface{} {
	return b.proxifier.Unproxify(entity)
}
