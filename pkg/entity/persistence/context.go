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

package persistence

import (
	"context"
	"sync"

	"github.com/robinvandenberg/Achilles/pkg/codec"
	"github.com/robinvandenberg/Achilles/pkg/common"
	"github.com/robinvandenberg/Achilles/pkg/consistency"
	"github.com/robinvandenberg/Achilles/pkg/entity/meta"

	"go.uber.org/atomic"
)

// State is the lifecycle state of a persistence context.
type State int32

const (
	// Opened contexts have not run their operation yet.
	Opened State = iota + 1
	// Executed contexts ran their operation.
	Executed
	// Closed contexts released their consistency scope.
	Closed
)

func (s State) String() string {
	switch s {
	case Opened:
		return "OPENED"
	case Executed:
		return "EXECUTED"
	case Closed:
		return "CLOSED"
	}
	return "UNKNOWN"
}

// Context carries the state of one entity manager call: the entity and its
// descriptor, the storage collaborators, the flush context and the
// consistency scope.
type Context struct {
	// Meta is the descriptor of the entity.
	Meta *meta.EntityMeta
	// Entity is the entity pointer or its proxy. It is nil for calls
	// addressing an entity by primary key.
	Entity interface{}
	// PrimaryKey is the primary key of the entity.
	PrimaryKey interface{}
	// TTL in seconds applied to written values, 0 for none.
	TTL int32

	dao   *DAOContext
	flush FlushContext

	state     *atomic.Int32
	executed  *atomic.Bool
	closeOnce *sync.Once
}

// NewContext opens a persistence context.
func NewContext(
	em *meta.EntityMeta,
	entity interface{},
	primaryKey interface{},
	dao *DAOContext,
	flush FlushContext,
) *Context {
	return &Context{
		Meta:       em,
		Entity:     entity,
		PrimaryKey: primaryKey,
		dao:        dao,
		flush:      flush,
		state:      atomic.NewInt32(int32(Opened)),
		executed:   atomic.NewBool(false),
		closeOnce:  &sync.Once{},
	}
}

// Duplicate returns a context for another entity sharing the storage
// collaborators, the flush context, the scope and the lifecycle of c. It is
// used to cascade operations to joined entities.
func (c *Context) Duplicate(
	em *meta.EntityMeta,
	entity interface{},
	primaryKey interface{},
) *Context {
	return &Context{
		Meta:       em,
		Entity:     entity,
		PrimaryKey: primaryKey,
		TTL:        c.TTL,
		dao:        c.dao,
		flush:      c.flush,
		state:      c.state,
		executed:   c.executed,
		closeOnce:  c.closeOnce,
	}
}

// DAO returns the storage collaborators.
func (c *Context) DAO() *DAOContext {
	return c.dao
}

// Flush returns the flush context.
func (c *Context) Flush() FlushContext {
	return c.flush
}

// Scope returns the consistency scope of the call.
func (c *Context) Scope() *consistency.Scope {
	return c.flush.Scope()
}

// Codec returns the codec of the entity type.
func (c *Context) Codec() codec.Codec {
	return c.dao.CodecFor(c.Meta.Type)
}

// IsBatching returns true when mutations are accumulated until the batch
// ends.
func (c *Context) IsBatching() bool {
	return c.flush.Type() == Batching
}

// ReadContext loads the read level of the entity column family into the
// scope and returns ctx carrying the level to use.
func (c *Context) ReadContext(ctx context.Context) context.Context {
	return c.ReadContextFor(ctx, c.Meta.TableName)
}

// ReadContextFor is ReadContext for an arbitrary column family.
func (c *Context) ReadContextFor(ctx context.Context, columnFamily string) context.Context {
	s := c.Scope()
	s.LoadConsistencyLevelForRead(columnFamily)
	return consistency.WithLevel(ctx, s.ReadLevel())
}

// LoadWriteLevel loads the write level of a column family into the scope.
// Mutations executed through the flush context use it.
func (c *Context) LoadWriteLevel(columnFamily string) {
	c.Scope().LoadConsistencyLevelForWrite(columnFamily)
}

// State returns the lifecycle state.
func (c *Context) State() State {
	return State(c.state.Load())
}

// MarkExecuted moves an opened context to Executed. It is called once the
// operation ran, whether it failed or not.
func (c *Context) MarkExecuted() {
	if c.state.CompareAndSwap(int32(Opened), int32(Executed)) {
		c.executed.Store(true)
	}
}

// HasExecuted returns true when the context went through Executed, including
// after it was closed.
func (c *Context) HasExecuted() bool {
	return c.executed.Load()
}

// CheckOpen fails once the context has been closed.
func (c *Context) CheckOpen() error {
	if c.State() == Closed {
		return common.NewUnsupportedOperationError(
			"persistence context of '%s' is closed", c.Meta.ClassName)
	}
	return nil
}

// Close releases the context. The explicit consistency levels of the scope
// are reset exactly once, except in batch mode where they live until the
// batch ends.
func (c *Context) Close() {
	c.closeOnce.Do(func() {
		if !c.IsBatching() {
			c.Scope().ReinitCurrentConsistencyLevels()
		}
		c.state.Store(int32(Closed))
	})
}
