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
	"testing"
	"time"

	"github.com/robinvandenberg/Achilles/pkg/common"
	"github.com/robinvandenberg/Achilles/pkg/consistency"
	"github.com/robinvandenberg/Achilles/pkg/entity/meta"
	"github.com/robinvandenberg/Achilles/pkg/entity/operations"
	"github.com/robinvandenberg/Achilles/pkg/entity/parser"
	"github.com/robinvandenberg/Achilles/pkg/entity/persistence"
	"github.com/robinvandenberg/Achilles/pkg/samples"
	"github.com/robinvandenberg/Achilles/pkg/storage/connectors/memory"
	"github.com/robinvandenberg/Achilles/pkg/storage/orm/mocks"

	"github.com/golang/mock/gomock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/suite"
	"github.com/uber-go/tally/v4"
)

type BatchingTestSuite struct {
	suite.Suite

	ctx       context.Context
	scope     tally.TestScope
	connector *memory.Connector
	factory   *EntityManagerFactory
	t0        time.Time
}

func TestBatching(t *testing.T) {
	suite.Run(t, new(BatchingTestSuite))
}

func (suite *BatchingTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.scope = tally.NewTestScope("", nil)
	suite.connector = memory.NewConnector()
	suite.t0 = time.Date(2021, 6, 1, 10, 0, 0, 0, time.UTC)

	var err error
	suite.factory, err = NewEntityManagerFactory(suite.ctx, map[string]interface{}{
		EntityPackagesParam:  samples.Package,
		ConnectorParam:       suite.connector,
		ForceCFCreationParam: "true",
	}, suite.scope)
	suite.Require().NoError(err)
}

func (suite *BatchingTestSuite) TestWritesAreSentOnEndBatch() {
	bm := suite.factory.CreateBatchingEntityManager()
	suite.NotEmpty(bm.BatchID())
	suite.NoError(bm.StartBatchWithLevels(consistency.LocalQuorum, consistency.All))

	suite.connector.ResetAccesses()
	suite.NoError(bm.Persist(suite.ctx, &samples.Sensor{ID: 1, Date: suite.t0, Value: 1}))
	suite.NoError(bm.Persist(suite.ctx, &samples.User{Login: "u", TweetCount: 2}))
	suite.Equal(3, bm.Pending())
	suite.Empty(suite.connector.Accesses())

	// reads are not delayed and use the batch read level
	found, err := bm.Find(suite.ctx, &samples.User{}, "u")
	suite.NoError(err)
	suite.Nil(found)
	suite.Equal(consistency.LocalQuorum, suite.connector.Accesses()[0].Level)

	suite.connector.ResetAccesses()
	suite.NoError(bm.EndBatch(suite.ctx))
	accesses := suite.connector.Accesses()
	suite.Require().Len(accesses, 1)
	suite.Equal("batch", accesses[0].Operation)
	suite.Equal(consistency.All, accesses[0].Level)
	suite.Zero(bm.Pending())
	suite.Equal(int64(3), suite.scope.Snapshot().Counters()["batch.mutations+"].Value())

	found, err = suite.factory.CreateEntityManager().Find(suite.ctx, &samples.User{}, "u")
	suite.NoError(err)
	suite.Require().NotNil(found)
	suite.Equal(int64(2), found.Unproxy().(*samples.User).TweetCount)

	// EndBatch resets the batch levels
	suite.NoError(bm.Persist(suite.ctx, &samples.User{Login: "v"}))
	suite.NoError(bm.EndBatch(suite.ctx))
	suite.Equal(consistency.DefaultLevel, suite.connector.Accesses()[len(suite.connector.Accesses())-1].Level)
}

func (suite *BatchingTestSuite) TestColumnFamilyWriteLevelsInBatch() {
	connector := memory.NewConnector()
	factory, err := NewEntityManagerFactory(suite.ctx, map[string]interface{}{
		EntityPackagesParam:  samples.Package,
		ConnectorParam:       connector,
		ForceCFCreationParam: "true",
		WriteConsistencyMapParam: map[string]string{
			"sensor": "ALL",
		},
	}, tally.NoopScope)
	suite.Require().NoError(err)

	batchLevels := func() []consistency.Level {
		var levels []consistency.Level
		for _, a := range connector.Accesses() {
			if a.Operation == "batch" {
				levels = append(levels, a.Level)
			}
		}
		return levels
	}

	bm := factory.CreateBatchingEntityManager()
	scope := bm.batch.flush.Scope()

	suite.NoError(bm.StartBatch())
	connector.ResetAccesses()
	suite.NoError(bm.Persist(suite.ctx, &samples.Sensor{ID: 1, Date: suite.t0, Value: 1}))
	suite.NoError(bm.Persist(suite.ctx, &samples.User{Login: "first"}))
	suite.NoError(bm.EndBatch(suite.ctx))
	suite.Equal([]consistency.Level{consistency.All, consistency.One}, batchLevels())
	suite.True(scope.IsPristine())

	// the order of the writes does not change their levels
	suite.NoError(bm.StartBatch())
	connector.ResetAccesses()
	suite.NoError(bm.Persist(suite.ctx, &samples.User{Login: "second"}))
	suite.NoError(bm.Persist(suite.ctx, &samples.Sensor{ID: 2, Date: suite.t0, Value: 2}))
	suite.NoError(bm.EndBatch(suite.ctx))
	suite.Equal([]consistency.Level{consistency.One, consistency.All}, batchLevels())
	suite.True(scope.IsPristine())

	// batch-wide levels apply to every column family
	suite.NoError(bm.StartBatchWithLevels(consistency.One, consistency.Quorum))
	connector.ResetAccesses()
	suite.NoError(bm.Persist(suite.ctx, &samples.User{Login: "third"}))
	suite.NoError(bm.Persist(suite.ctx, &samples.Sensor{ID: 3, Date: suite.t0, Value: 3}))
	suite.NoError(bm.EndBatch(suite.ctx))
	suite.Equal([]consistency.Level{consistency.Quorum}, batchLevels())
	suite.True(scope.IsPristine())
}

func (suite *BatchingTestSuite) TestCleanBatch() {
	bm := suite.factory.CreateBatchingEntityManager()
	suite.NoError(bm.StartBatch())
	suite.NoError(bm.Persist(suite.ctx, &samples.User{Login: "gone"}))
	bm.CleanBatch()
	suite.Zero(bm.Pending())
	suite.NoError(bm.EndBatch(suite.ctx))

	found, err := bm.Find(suite.ctx, &samples.User{}, "gone")
	suite.NoError(err)
	suite.Nil(found)
}

func (suite *BatchingTestSuite) TestRuntimeLevelIsRejected() {
	bm := suite.factory.CreateBatchingEntityManager()
	suite.NoError(bm.StartBatch())
	suite.NoError(bm.Persist(suite.ctx, &samples.User{Login: "a"}))

	err := bm.Persist(suite.ctx, &samples.User{Login: "b"},
		WithConsistencyLevel(consistency.Quorum))
	suite.True(common.IsUnsupportedOperationError(err))

	// the failure discarded the batch
	suite.True(bm.IsPoisoned())
	suite.Zero(bm.Pending())
	suite.Error(bm.Persist(suite.ctx, &samples.User{Login: "c"}))
	suite.Error(bm.StartBatch())
	suite.Error(bm.EndBatch(suite.ctx))
	suite.Equal(int64(1), suite.scope.Snapshot().Counters()["batch.poisoned+"].Value())

	// other managers are not affected
	suite.NoError(suite.factory.CreateBatchingEntityManager().Persist(
		suite.ctx, &samples.User{Login: "d"}))
}

func (suite *BatchingTestSuite) TestClose() {
	bm := suite.factory.CreateBatchingEntityManager()
	suite.True(common.IsUnsupportedOperationError(bm.Close()))
}

func TestBatchFlushFailurePoisons(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	metas, _, err := parser.New().ParseAll([]string{samples.Package})
	if err != nil {
		t.Fatal(err)
	}
	connector := mocks.NewMockConnector(ctrl)
	policy := consistency.NewDefaultPolicy()
	dao := persistence.NewDAOContext(connector, nil)
	em := newEntityManager(metas, dao, policy,
		operations.NewBackend(dao, policy), NewMetrics(tally.NoopScope))
	bm := newBatchingEntityManager(em, policy)

	connector.EXPECT().
		ExecuteBatch(gomock.Any(), gomock.Len(1)).
		Return(errors.New("timeout"))

	if err := bm.Persist(context.Background(), &samples.Sensor{ID: 1}); err != nil {
		t.Fatal(err)
	}
	if err := bm.EndBatch(context.Background()); err == nil {
		t.Fatal("expected the batch to fail")
	}
	if !bm.IsPoisoned() {
		t.Fatal("expected the manager to be poisoned")
	}
	_, err = bm.Find(context.Background(), &samples.Sensor{}, meta.CompoundKey{int64(1), time.Time{}})
	if !common.IsUnsupportedOperationError(err) {
		t.Fatalf("unexpected error %v", err)
	}
}
