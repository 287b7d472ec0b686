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

package manager

import (
	"context"

	"github.com/robinvandenberg/Achilles/pkg/common"
	"github.com/robinvandenberg/Achilles/pkg/consistency"
	"github.com/robinvandenberg/Achilles/pkg/entity/iterator"
	"github.com/robinvandenberg/Achilles/pkg/entity/meta"
	"github.com/robinvandenberg/Achilles/pkg/entity/operations"
	"github.com/robinvandenberg/Achilles/pkg/entity/persistence"
	"github.com/robinvandenberg/Achilles/pkg/entity/proxy"
	"github.com/robinvandenberg/Achilles/pkg/storage/objects/base"

	"github.com/pkg/errors"
)

// Backend executes entity operations within a persistence context.
type Backend interface {
	Persist(ctx context.Context, pc *persistence.Context) error
	Merge(ctx context.Context, pc *persistence.Context) (*proxy.Entity, error)
	Remove(ctx context.Context, pc *persistence.Context) error
	// Load returns nil when the entity does not exist.
	Load(ctx context.Context, pc *persistence.Context, lazy bool) (*proxy.Entity, error)
	Refresh(ctx context.Context, pc *persistence.Context) error
	SliceIterator(
		ctx context.Context,
		pc *persistence.Context,
		field string,
		rng *base.SliceRange,
	) (*iterator.KeyValueIterator, error)
	CounterIterator(
		ctx context.Context,
		pc *persistence.Context,
	) (*iterator.CounterKeyValueIterator, error)
	Unwrap(entity interface{}) interface{}
}

// ensure that implementation (operations.Backend) satisfies the interface
var _ Backend = (*operations.Backend)(nil)

// Option configures one entity manager call.
type Option func(*callOptions)

type callOptions struct {
	level    consistency.Level
	hasLevel bool
	ttl      int32
	rng      *base.SliceRange
}

// WithConsistencyLevel runs the call at level, whatever the configured
// levels are.
func WithConsistencyLevel(level consistency.Level) Option {
	return func(o *callOptions) {
		o.level = level
		o.hasLevel = true
	}
}

// WithTTL makes values written by the call expire after seconds.
func WithTTL(seconds int32) Option {
	return func(o *callOptions) {
		o.ttl = seconds
	}
}

// WithSliceRange bounds the rows read by SliceIterator.
func WithSliceRange(rng *base.SliceRange) Option {
	return func(o *callOptions) {
		o.rng = rng
	}
}

func applyOptions(opts []Option) *callOptions {
	o := &callOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// session decides how the calls of a manager are flushed.
type session interface {
	// flushContext returns the flush context of the next call.
	flushContext() persistence.FlushContext
	// check validates a call before it runs.
	check(operation string, o *callOptions) error
	// done is told the outcome of every call.
	done(err error)
}

type immediateSession struct {
	dao    *persistence.DAOContext
	policy *consistency.Policy
}

func (s *immediateSession) flushContext() persistence.FlushContext {
	return persistence.NewImmediateFlushContext(s.dao.Connector, s.policy.NewScope())
}

func (s *immediateSession) check(string, *callOptions) error {
	return nil
}

func (s *immediateSession) done(error) {}

// EntityManager persists, loads and removes entities. It is safe for
// concurrent use: every call runs in its own persistence context.
type EntityManager struct {
	metas   meta.EntityMetaMap
	dao     *persistence.DAOContext
	backend Backend
	metrics *Metrics
	session session
}

func newEntityManager(
	metas meta.EntityMetaMap,
	dao *persistence.DAOContext,
	policy *consistency.Policy,
	backend Backend,
	metrics *Metrics,
) *EntityManager {
	return &EntityManager{
		metas:   metas,
		dao:     dao,
		backend: backend,
		metrics: metrics,
		session: &immediateSession{dao: dao, policy: policy},
	}
}

func (m *EntityManager) metaOf(entity interface{}) (*meta.EntityMeta, error) {
	if e, ok := entity.(*proxy.Entity); ok {
		return e.Meta(), nil
	}
	if meta.IsNil(entity) {
		return nil, errors.New("entity must not be nil")
	}
	return m.metas.Get(entity)
}

func (m *EntityManager) open(
	operation string,
	em *meta.EntityMeta,
	entity interface{},
	primaryKey interface{},
	opts []Option,
) (*persistence.Context, *callOptions, error) {
	o := applyOptions(opts)
	if err := m.session.check(operation, o); err != nil {
		return nil, nil, err
	}
	pc := persistence.NewContext(em, entity, primaryKey, m.dao, m.session.flushContext())
	pc.TTL = o.ttl
	if o.hasLevel {
		pc.Scope().SetCurrentReadLevel(o.level)
		pc.Scope().SetCurrentWriteLevel(o.level)
	}
	return pc, o, nil
}

func (m *EntityManager) run(
	ctx context.Context,
	operation string,
	em *meta.EntityMeta,
	entity interface{},
	primaryKey interface{},
	opts []Option,
	fn func(ctx context.Context, pc *persistence.Context, o *callOptions) error,
) (err error) {
	defer func() { m.session.done(err) }()

	pc, o, err := m.open(operation, em, entity, primaryKey, opts)
	if err != nil {
		return err
	}
	defer pc.Close()

	err = fn(ctx, pc, o)
	pc.MarkExecuted()
	return err
}

func primaryKeyOf(em *meta.EntityMeta, entity interface{}) (interface{}, error) {
	if e, ok := entity.(*proxy.Entity); ok {
		return e.PrimaryKey(), nil
	}
	if !em.IsInstance(entity) {
		return nil, common.NewUnsupportedOperationError(
			"%T is not a pointer to entity '%s'", entity, em.ClassName)
	}
	return em.PrimaryKeyValues(entity)
}

// Persist inserts a new entity. Counter properties with a non zero value
// are added to the stored counters.
func (m *EntityManager) Persist(ctx context.Context, entity interface{}, opts ...Option) (err error) {
	defer func() { count(err, m.metrics.Persist, m.metrics.PersistFail) }()

	em, err := m.metaOf(entity)
	if err != nil {
		return err
	}
	return m.run(ctx, "persist", em, entity, nil, opts,
		func(ctx context.Context, pc *persistence.Context, _ *callOptions) error {
			return m.backend.Persist(ctx, pc)
		})
}

// Merge writes the modified properties of a managed entity and returns it.
// A plain entity pointer is persisted and returned managed.
func (m *EntityManager) Merge(
	ctx context.Context,
	entity interface{},
	opts ...Option,
) (merged *proxy.Entity, err error) {
	defer func() { count(err, m.metrics.Merge, m.metrics.MergeFail) }()

	em, err := m.metaOf(entity)
	if err != nil {
		return nil, err
	}
	pk, err := primaryKeyOf(em, entity)
	if err != nil {
		return nil, err
	}
	err = m.run(ctx, "merge", em, entity, pk, opts,
		func(ctx context.Context, pc *persistence.Context, _ *callOptions) error {
			var err error
			merged, err = m.backend.Merge(ctx, pc)
			return err
		})
	return merged, err
}

// Remove deletes an entity and its counters.
func (m *EntityManager) Remove(ctx context.Context, entity interface{}, opts ...Option) (err error) {
	defer func() { count(err, m.metrics.Remove, m.metrics.RemoveFail) }()

	em, err := m.metaOf(entity)
	if err != nil {
		return err
	}
	pk, err := primaryKeyOf(em, entity)
	if err != nil {
		return err
	}
	return m.removeByID(ctx, em, pk, opts)
}

// RemoveByID deletes the entity of type entityType with the given primary
// key.
func (m *EntityManager) RemoveByID(
	ctx context.Context,
	entityType interface{},
	primaryKey interface{},
	opts ...Option,
) (err error) {
	defer func() { count(err, m.metrics.Remove, m.metrics.RemoveFail) }()

	em, err := m.metas.Get(entityType)
	if err != nil {
		return err
	}
	return m.removeByID(ctx, em, primaryKey, opts)
}

func (m *EntityManager) removeByID(
	ctx context.Context,
	em *meta.EntityMeta,
	primaryKey interface{},
	opts []Option,
) error {
	return m.run(ctx, "remove", em, nil, primaryKey, opts,
		func(ctx context.Context, pc *persistence.Context, _ *callOptions) error {
			return m.backend.Remove(ctx, pc)
		})
}

// Find reads the entity of type entityType with the given primary key. It
// returns nil when the entity does not exist. entityType is a pointer to,
// or a value of, the entity struct, or its reflect.Type.
func (m *EntityManager) Find(
	ctx context.Context,
	entityType interface{},
	primaryKey interface{},
	opts ...Option,
) (found *proxy.Entity, err error) {
	defer func() {
		count(err, m.metrics.Find, m.metrics.FindFail)
		if err == nil && found == nil {
			m.metrics.FindNotFound.Inc(1)
		}
	}()
	return m.load(ctx, "find", entityType, primaryKey, false, opts)
}

// GetReference returns a managed entity without reading storage. Its state
// is read on first access, or by Initialize.
func (m *EntityManager) GetReference(
	ctx context.Context,
	entityType interface{},
	primaryKey interface{},
	opts ...Option,
) (ref *proxy.Entity, err error) {
	defer func() { count(err, m.metrics.GetReference, m.metrics.GetReferenceFail) }()
	return m.load(ctx, "get reference", entityType, primaryKey, true, opts)
}

func (m *EntityManager) load(
	ctx context.Context,
	operation string,
	entityType interface{},
	primaryKey interface{},
	lazy bool,
	opts []Option,
) (loaded *proxy.Entity, err error) {
	em, err := m.metas.Get(entityType)
	if err != nil {
		return nil, err
	}
	err = m.run(ctx, operation, em, nil, primaryKey, opts,
		func(ctx context.Context, pc *persistence.Context, _ *callOptions) error {
			var err error
			loaded, err = m.backend.Load(ctx, pc, lazy)
			return err
		})
	return loaded, err
}

// Refresh overwrites a managed entity with its stored state.
func (m *EntityManager) Refresh(ctx context.Context, entity *proxy.Entity, opts ...Option) (err error) {
	defer func() { count(err, m.metrics.Refresh, m.metrics.RefreshFail) }()
	if entity == nil {
		return errors.New("entity must not be nil")
	}
	return m.run(ctx, "refresh", entity.Meta(), entity, entity.PrimaryKey(), opts,
		func(ctx context.Context, pc *persistence.Context, _ *callOptions) error {
			return m.backend.Refresh(ctx, pc)
		})
}

// Initialize reads the state of a reference returned by GetReference. It is
// a no-op for loaded entities.
func (m *EntityManager) Initialize(ctx context.Context, entity *proxy.Entity, opts ...Option) (err error) {
	defer func() { count(err, m.metrics.Initialize, m.metrics.InitializeFail) }()
	if entity == nil {
		return errors.New("entity must not be nil")
	}
	if entity.IsLoaded() {
		return nil
	}
	return m.run(ctx, "initialize", entity.Meta(), entity, entity.PrimaryKey(), opts,
		func(ctx context.Context, pc *persistence.Context, _ *callOptions) error {
			return m.backend.Refresh(ctx, pc)
		})
}

// Unwrap returns the entity pointer behind a managed entity, or entity
// itself.
func (m *EntityManager) Unwrap(entity interface{}) interface{} {
	return m.backend.Unwrap(entity)
}

// SliceIterator iterates over the value of field across the rows of one
// partition, in clustering order. WithSliceRange bounds the rows.
func (m *EntityManager) SliceIterator(
	ctx context.Context,
	entityType interface{},
	partitionKey interface{},
	field string,
	opts ...Option,
) (it *iterator.KeyValueIterator, err error) {
	defer func() { count(err, m.metrics.SliceIterator, m.metrics.SliceIteratorFail) }()

	em, err := m.metas.Get(entityType)
	if err != nil {
		return nil, err
	}
	err = m.run(ctx, "slice iterator", em, nil, partitionKey, opts,
		func(ctx context.Context, pc *persistence.Context, o *callOptions) error {
			var err error
			it, err = m.backend.SliceIterator(ctx, pc, field, o.rng)
			return err
		})
	return it, err
}

// CounterIterator iterates over the counters of one entity.
func (m *EntityManager) CounterIterator(
	ctx context.Context,
	entityType interface{},
	primaryKey interface{},
	opts ...Option,
) (it *iterator.CounterKeyValueIterator, err error) {
	defer func() { count(err, m.metrics.CounterIterator, m.metrics.CounterIteratorFail) }()

	em, err := m.metas.Get(entityType)
	if err != nil {
		return nil, err
	}
	err = m.run(ctx, "counter iterator", em, nil, primaryKey, opts,
		func(ctx context.Context, pc *persistence.Context, _ *callOptions) error {
			var err error
			it, err = m.backend.CounterIterator(ctx, pc)
			return err
		})
	return it, err
}

// Close is not supported: entity managers hold no resource of their own.
func (m *EntityManager) Close() error {
	return common.NewUnsupportedOperationError(
		"Cannot close an entity manager, it has no resource of its own")
}
