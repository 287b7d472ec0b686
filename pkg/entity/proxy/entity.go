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

// Package proxy wraps managed entities to record which properties were
// modified since they were loaded, so that merges only write those.
package proxy

import (
	"context"
	"reflect"

	"github.com/robinvandenberg/Achilles/pkg/common"
	"github.com/robinvandenberg/Achilles/pkg/entity/meta"

	"github.com/pkg/errors"
)

// Loader fills the target of a proxy from storage.
type Loader func(ctx context.Context, e *Entity) error

// CounterStore reads and increments the counter properties of an entity.
type CounterStore interface {
	GetCounter(ctx context.Context, pm *meta.PropertyMeta, primaryKey interface{}) (int64, error)
	IncrementCounter(ctx context.Context, pm *meta.PropertyMeta, primaryKey interface{}, delta int64) error
}

// Option configures an Entity.
type Option func(*Entity)

// WithLoader sets the loader used by lazy proxies.
func WithLoader(l Loader) Option {
	return func(e *Entity) {
		e.loader = l
	}
}

// WithCounterStore sets the store backing counter wrappers.
func WithCounterStore(c CounterStore) Option {
	return func(e *Entity) {
		e.counters = c
	}
}

// Lazy marks the target as not loaded yet.
func Lazy() Option {
	return func(e *Entity) {
		e.loaded = false
	}
}

// Entity is a managed entity: the target struct pointer along with its
// descriptor and the properties modified through the proxy. Entities are not
// safe for concurrent use.
type Entity struct {
	target     interface{}
	meta       *meta.EntityMeta
	primaryKey interface{}

	// dirty is keyed by setter name
	dirty map[string]*meta.PropertyMeta

	loaded   bool
	loader   Loader
	counters CounterStore
}

// New wraps target, a pointer to an entity of type em.
func New(
	em *meta.EntityMeta,
	target interface{},
	primaryKey interface{},
	opts ...Option,
) *Entity {
	e := &Entity{
		target:     target,
		meta:       em,
		primaryKey: primaryKey,
		dirty:      make(map[string]*meta.PropertyMeta),
		loaded:     true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Meta returns the descriptor of the entity.
func (e *Entity) Meta() *meta.EntityMeta {
	return e.meta
}

// PrimaryKey returns the primary key of the entity.
func (e *Entity) PrimaryKey() interface{} {
	return e.primaryKey
}

// Unproxy returns the target struct pointer.
func (e *Entity) Unproxy() interface{} {
	return e.target
}

// IsLoaded returns false for references whose state was not read yet.
func (e *Entity) IsLoaded() bool {
	return e.loaded
}

// MarkLoaded records that the target state was read from storage.
func (e *Entity) MarkLoaded() {
	e.loaded = true
}

// Initialize loads the target state of a lazy proxy. It is a no-op for
// loaded proxies.
func (e *Entity) Initialize(ctx context.Context) error {
	if e.loaded {
		return nil
	}
	if e.loader == nil {
		return common.NewUnsupportedOperationError(
			"entity '%s' is detached and cannot be loaded", e.meta.ClassName)
	}
	if err := e.loader(ctx, e); err != nil {
		return err
	}
	e.loaded = true
	return nil
}

func (e *Entity) property(field string) (*meta.PropertyMeta, error) {
	pm, ok := e.meta.PropertyMap[field]
	if !ok {
		return nil, errors.Errorf("entity '%s' has no mapped property '%s'",
			e.meta.ClassName, field)
	}
	return pm, nil
}

// Get returns the value of a mapped field. A lazy proxy is loaded first with
// a background context; use Initialize to control the load.
func (e *Entity) Get(field string) (interface{}, error) {
	pm, err := e.property(field)
	if err != nil {
		return nil, err
	}
	if !e.loaded && !e.meta.IsKey(pm) {
		if err := e.Initialize(context.Background()); err != nil {
			return nil, err
		}
	}
	return pm.GetValue(e.target)
}

// Set writes a mapped field and records it as dirty. A lazy proxy is loaded
// first so the load cannot overwrite the write. Primary key and counter
// properties cannot be set through a proxy.
func (e *Entity) Set(field string, value interface{}) error {
	pm, err := e.property(field)
	if err != nil {
		return err
	}
	if e.meta.IsKey(pm) {
		return common.NewUnsupportedOperationError(
			"cannot change primary key property '%s' of a managed entity '%s'",
			field, e.meta.ClassName)
	}
	if pm.IsCounter() {
		return common.NewUnsupportedOperationError(
			"cannot set counter property '%s' of entity '%s', use its counter wrapper",
			field, e.meta.ClassName)
	}
	if !e.loaded {
		if err := e.Initialize(context.Background()); err != nil {
			return err
		}
	}
	if err := pm.SetValue(e.target, value); err != nil {
		return err
	}
	e.markDirty(pm)
	return nil
}

func (e *Entity) markDirty(pm *meta.PropertyMeta) {
	e.dirty[pm.SetterName] = pm
}

// DirtyMap returns a copy of the modified properties keyed by setter name.
func (e *Entity) DirtyMap() map[string]*meta.PropertyMeta {
	dirty := make(map[string]*meta.PropertyMeta, len(e.dirty))
	for k, v := range e.dirty {
		dirty[k] = v
	}
	return dirty
}

// IsDirty returns true when at least one property was modified.
func (e *Entity) IsDirty() bool {
	return len(e.dirty) > 0
}

// ClearDirty forgets every recorded modification.
func (e *Entity) ClearDirty() {
	e.dirty = make(map[string]*meta.PropertyMeta)
}

func (e *Entity) collection(field string, typ meta.PropertyType) (*meta.PropertyMeta, reflect.Value, error) {
	pm, err := e.property(field)
	if err != nil {
		return nil, reflect.Value{}, err
	}
	if pm.Type != typ {
		return nil, reflect.Value{}, errors.Errorf(
			"property '%s' of entity '%s' is a %s property, not a %s",
			field, e.meta.ClassName, pm.Type, typ)
	}
	if !e.loaded {
		if err := e.Initialize(context.Background()); err != nil {
			return nil, reflect.Value{}, err
		}
	}
	return pm, reflect.ValueOf(e.target).Elem().FieldByIndex(pm.FieldIndex), nil
}

// List returns a wrapper over a list property recording modifications.
func (e *Entity) List(field string) (*List, error) {
	pm, v, err := e.collection(field, meta.ListProperty)
	if err != nil {
		return nil, err
	}
	return &List{owner: e, pm: pm, field: v}, nil
}

// SetOf returns a wrapper over a set property recording modifications.
func (e *Entity) SetOf(field string) (*Set, error) {
	pm, v, err := e.collection(field, meta.SetProperty)
	if err != nil {
		return nil, err
	}
	return &Set{owner: e, pm: pm, field: v}, nil
}

// Map returns a wrapper over a map property recording modifications.
func (e *Entity) Map(field string) (*Map, error) {
	pm, v, err := e.collection(field, meta.MapProperty)
	if err != nil {
		return nil, err
	}
	return &Map{owner: e, pm: pm, field: v}, nil
}

// Counter returns the wrapper of a counter property. Counter wrappers read
// and write storage directly.
func (e *Entity) Counter(field string) (*Counter, error) {
	pm, err := e.property(field)
	if err != nil {
		return nil, err
	}
	if !pm.IsCounter() {
		return nil, errors.Errorf("property '%s' of entity '%s' is not a counter",
			field, e.meta.ClassName)
	}
	if e.counters == nil {
		return nil, common.NewUnsupportedOperationError(
			"entity '%s' is detached, its counters cannot be accessed",
			e.meta.ClassName)
	}
	return &Counter{owner: e, pm: pm}, nil
}
