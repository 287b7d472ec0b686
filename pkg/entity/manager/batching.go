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
	"github.com/robinvandenberg/Achilles/pkg/entity/persistence"

	"github.com/pborman/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.uber.org/atomic"
)

type batchSession struct {
	flush    *persistence.BatchingFlushContext
	poisoned *atomic.Bool
	metrics  *Metrics
}

func (s *batchSession) flushContext() persistence.FlushContext {
	return s.flush
}

func (s *batchSession) check(operation string, o *callOptions) error {
	if s.poisoned.Load() {
		return errPoisoned(s.flush.BatchID())
	}
	if o.hasLevel {
		return persistence.NewUnsupportedInBatchError(operation)
	}
	return nil
}

func (s *batchSession) done(err error) {
	if err == nil {
		return
	}
	s.poison(err)
}

func (s *batchSession) poison(err error) {
	if !s.poisoned.CompareAndSwap(false, true) {
		return
	}
	s.metrics.BatchPoisoned.Inc(1)
	dropped := s.flush.Pending()
	s.flush.Cleanup()
	log.WithError(err).WithFields(log.Fields{
		"batch_id": s.flush.BatchID(),
		"dropped":  dropped,
	}).Warn("batch discarded after failure")
}

func errPoisoned(batchID string) error {
	return common.NewUnsupportedOperationError(
		"batch %s was discarded after a failure, create a new batching entity manager",
		batchID)
}

// BatchingEntityManager accumulates the writes of its calls and sends them
// in one batch on EndBatch. Reads are executed at once.
//
// A BatchingEntityManager must not be shared between goroutines. Once a
// call fails, the pending writes are discarded and every later call fails.
type BatchingEntityManager struct {
	*EntityManager

	batch *batchSession
}

func newBatchingEntityManager(
	parent *EntityManager,
	policy *consistency.Policy,
) *BatchingEntityManager {
	batch := &batchSession{
		flush: persistence.NewBatchingFlushContext(
			parent.dao.Connector, policy.NewScope(), uuid.New()),
		poisoned: atomic.NewBool(false),
		metrics:  parent.metrics,
	}
	em := *parent
	em.session = batch
	return &BatchingEntityManager{
		EntityManager: &em,
		batch:         batch,
	}
}

// BatchID returns the identifier of the batch, as it appears in logs.
func (m *BatchingEntityManager) BatchID() string {
	return m.batch.flush.BatchID()
}

// Pending returns the number of writes waiting for EndBatch.
func (m *BatchingEntityManager) Pending() int {
	return m.batch.flush.Pending()
}

// IsPoisoned returns true once a call has failed.
func (m *BatchingEntityManager) IsPoisoned() bool {
	return m.batch.poisoned.Load()
}

// StartBatch discards pending writes and starts a batch at the configured
// levels.
func (m *BatchingEntityManager) StartBatch() error {
	if m.IsPoisoned() {
		return errPoisoned(m.BatchID())
	}
	m.batch.flush.Cleanup()
	m.metrics.BatchStart.Inc(1)
	return nil
}

// StartBatchWithLevels discards pending writes and starts a batch whose
// reads run at read and whose writes run at write.
func (m *BatchingEntityManager) StartBatchWithLevels(read, write consistency.Level) error {
	if err := m.StartBatch(); err != nil {
		return err
	}
	scope := m.batch.flush.Scope()
	scope.SetCurrentReadLevel(read)
	scope.SetCurrentWriteLevel(write)
	return nil
}

// EndBatch sends the pending writes, one batch per write level, and resets
// the batch levels.
func (m *BatchingEntityManager) EndBatch(ctx context.Context) error {
	if m.IsPoisoned() {
		return errPoisoned(m.BatchID())
	}
	pending := m.batch.flush.Pending()
	if err := m.batch.flush.Flush(ctx); err != nil {
		m.metrics.BatchEndFail.Inc(1)
		m.batch.poison(err)
		return err
	}
	m.batch.flush.Cleanup()
	m.metrics.BatchEnd.Inc(1)
	m.metrics.BatchMutations.Inc(int64(pending))
	log.WithFields(log.Fields{
		"batch_id":   m.BatchID(),
		"batch_size": pending,
	}).Debug("batch flushed")
	return nil
}

// CleanBatch discards the pending writes and resets the batch levels.
func (m *BatchingEntityManager) CleanBatch() {
	m.batch.flush.Cleanup()
	m.metrics.BatchClean.Inc(1)
}

// Close is not supported. Use EndBatch or CleanBatch.
func (m *BatchingEntityManager) Close() error {
	return errors.Wrap(m.EntityManager.Close(), "use EndBatch or CleanBatch instead")
}
