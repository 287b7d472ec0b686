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

	"github.com/robinvandenberg/Achilles/pkg/common"
	"github.com/robinvandenberg/Achilles/pkg/consistency"
	"github.com/robinvandenberg/Achilles/pkg/storage/objects/base"
	"github.com/robinvandenberg/Achilles/pkg/storage/orm"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// FlushType tells how a flush context applies mutations.
type FlushType int

const (
	// Immediate flush contexts execute every mutation right away.
	Immediate FlushType = iota + 1
	// Batching flush contexts accumulate mutations until Flush.
	Batching
)

func (t FlushType) String() string {
	switch t {
	case Immediate:
		return "IMMEDIATE"
	case Batching:
		return "BATCHING"
	}
	return "UNKNOWN"
}

// FlushContext applies the mutations produced by entity operations.
type FlushContext interface {
	// Execute applies or enqueues a mutation at the write level of the
	// scope.
	Execute(ctx context.Context, m *base.Mutation) error
	// Flush writes every pending mutation.
	Flush(ctx context.Context) error
	// Cleanup drops pending mutations and resets the batch levels.
	Cleanup()
	// Scope returns the consistency scope of the flush context.
	Scope() *consistency.Scope
	// Type returns the flush type.
	Type() FlushType
}

// ImmediateFlushContext executes each mutation as soon as it is produced.
type ImmediateFlushContext struct {
	connector orm.Connector
	scope     *consistency.Scope
}

// NewImmediateFlushContext creates an ImmediateFlushContext.
func NewImmediateFlushContext(
	connector orm.Connector,
	scope *consistency.Scope,
) *ImmediateFlushContext {
	return &ImmediateFlushContext{connector: connector, scope: scope}
}

// Execute applies m at the scope's write level.
func (f *ImmediateFlushContext) Execute(ctx context.Context, m *base.Mutation) error {
	ctx = consistency.WithLevel(ctx, f.scope.WriteLevel())
	return apply(ctx, f.connector, m)
}

// Flush is a no-op: nothing is ever pending.
func (f *ImmediateFlushContext) Flush(ctx context.Context) error {
	return nil
}

// Cleanup is a no-op.
func (f *ImmediateFlushContext) Cleanup() {}

// Scope returns the consistency scope.
func (f *ImmediateFlushContext) Scope() *consistency.Scope {
	return f.scope
}

// Type returns Immediate.
func (f *ImmediateFlushContext) Type() FlushType {
	return Immediate
}

func apply(ctx context.Context, connector orm.Connector, m *base.Mutation) error {
	switch m.Op {
	case base.OpInsert:
		values := make([]base.Column, 0, len(m.Keys)+len(m.Values))
		values = append(values, m.Keys...)
		values = append(values, m.Values...)
		return connector.Create(ctx, m.Definition, values, m.TTL)
	case base.OpUpdate:
		return connector.Update(ctx, m.Definition, m.Values, m.Keys, m.TTL)
	case base.OpDelete:
		return connector.Delete(ctx, m.Definition, m.Keys)
	case base.OpIncrement:
		if len(m.Values) != 1 {
			return errors.Errorf("increment of %s requires exactly one column, got %d",
				m.Definition.Name, len(m.Values))
		}
		delta, ok := m.Values[0].Value.(int64)
		if !ok {
			return errors.Errorf("increment delta of %s must be an int64, got %T",
				m.Definition.Name, m.Values[0].Value)
		}
		return connector.Increment(ctx, m.Definition, m.Values[0].Name, delta, m.Keys)
	}
	return errors.Errorf("unknown mutation operation %v", m.Op)
}

// BatchingFlushContext accumulates mutations and writes them as one batch
// on Flush.
type BatchingFlushContext struct {
	connector orm.Connector
	scope     *consistency.Scope
	batchID   string
	mutations []*base.Mutation
	// levels[i] is the write level in effect when mutations[i] was enqueued.
	levels []consistency.Level
}

// NewBatchingFlushContext creates a BatchingFlushContext.
func NewBatchingFlushContext(
	connector orm.Connector,
	scope *consistency.Scope,
	batchID string,
) *BatchingFlushContext {
	return &BatchingFlushContext{
		connector: connector,
		scope:     scope,
		batchID:   batchID,
	}
}

// Execute enqueues m along with the scope's current write level.
func (f *BatchingFlushContext) Execute(ctx context.Context, m *base.Mutation) error {
	f.mutations = append(f.mutations, m)
	f.levels = append(f.levels, f.scope.WriteLevel())
	return nil
}

// Pending returns the number of mutations waiting for Flush.
func (f *BatchingFlushContext) Pending() int {
	return len(f.mutations)
}

// Flush writes every pending mutation. Mutations enqueued at the same write
// level go out in one batch, so a batch started with explicit levels is a
// single batch. Pending mutations are dropped and the scope reinitialized
// whether the batches succeed or not.
func (f *BatchingFlushContext) Flush(ctx context.Context) error {
	defer f.scope.Reinit()
	if len(f.mutations) == 0 {
		return nil
	}
	groups := groupByLevel(f.mutations, f.levels)
	f.mutations, f.levels = nil, nil

	for _, g := range groups {
		log.WithFields(log.Fields{
			"batch_id":                 f.batchID,
			"batch_size":               len(g.mutations),
			common.ConsistencyLogField: g.level.String(),
		}).Debug("flushing batch")

		err := f.connector.ExecuteBatch(consistency.WithLevel(ctx, g.level), g.mutations)
		if err != nil {
			return errors.Wrapf(err, "failed to flush batch %s at %s", f.batchID, g.level)
		}
	}
	return nil
}

type levelGroup struct {
	level     consistency.Level
	mutations []*base.Mutation
}

// groupByLevel splits mutations by write level, keeping the order in which
// levels and mutations were first seen.
func groupByLevel(mutations []*base.Mutation, levels []consistency.Level) []*levelGroup {
	var groups []*levelGroup
	byLevel := make(map[consistency.Level]*levelGroup)
	for i, m := range mutations {
		g, ok := byLevel[levels[i]]
		if !ok {
			g = &levelGroup{level: levels[i]}
			byLevel[levels[i]] = g
			groups = append(groups, g)
		}
		g.mutations = append(g.mutations, m)
	}
	return groups
}

// Cleanup drops pending mutations and restores the current and default
// levels of the scope.
func (f *BatchingFlushContext) Cleanup() {
	f.mutations, f.levels = nil, nil
	f.scope.Reinit()
}

// Scope returns the consistency scope shared by the whole batch.
func (f *BatchingFlushContext) Scope() *consistency.Scope {
	return f.scope
}

// Type returns Batching.
func (f *BatchingFlushContext) Type() FlushType {
	return Batching
}

// BatchID returns the identifier of the batch, used in logs.
func (f *BatchingFlushContext) BatchID() string {
	return f.batchID
}

// NewUnsupportedInBatchError is returned when an operation sets its own
// consistency level inside a batch.
func NewUnsupportedInBatchError(operation string) error {
	return common.NewUnsupportedOperationError(
		"runtime consistency level cannot be set for %s in batch mode, "+
			"set the levels when starting the batch", operation)
}
