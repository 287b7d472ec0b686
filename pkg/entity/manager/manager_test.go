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
	"github.com/robinvandenberg/Achilles/pkg/entity/persistence"
	"github.com/robinvandenberg/Achilles/pkg/samples"
	"github.com/robinvandenberg/Achilles/pkg/storage/connectors/memory"
	"github.com/robinvandenberg/Achilles/pkg/storage/objects/base"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/suite"
	"github.com/uber-go/tally/v4"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type ManagerTestSuite struct {
	suite.Suite

	ctx       context.Context
	scope     tally.TestScope
	connector *memory.Connector
	factory   *EntityManagerFactory
	manager   *EntityManager
	t0        time.Time
}

func TestManager(t *testing.T) {
	suite.Run(t, new(ManagerTestSuite))
}

func (suite *ManagerTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.scope = tally.NewTestScope("", nil)
	suite.connector = memory.NewConnector()
	suite.t0 = time.Date(2021, 6, 1, 10, 0, 0, 0, time.UTC)

	var err error
	suite.factory, err = NewEntityManagerFactory(suite.ctx, map[string]interface{}{
		EntityPackagesParam:  samples.Package,
		ConnectorParam:       suite.connector,
		ForceCFCreationParam: true,
		ReadConsistencyMapParam: map[string]string{
			"sensor": "LOCAL_QUORUM",
		},
		WriteConsistencyMapParam: map[string]string{
			"sensor": "QUORUM",
		},
	}, suite.scope)
	suite.Require().NoError(err)
	suite.manager = suite.factory.CreateEntityManager()
}

func (suite *ManagerTestSuite) counter(name string) int64 {
	c, ok := suite.scope.Snapshot().Counters()[name]
	if !ok {
		return 0
	}
	return c.Value()
}

func (suite *ManagerTestSuite) lastAccess(operation string) memory.Access {
	accesses := suite.connector.Accesses()
	for i := len(accesses) - 1; i >= 0; i-- {
		if accesses[i].Operation == operation {
			return accesses[i]
		}
	}
	suite.Failf("no access", "no %s access recorded", operation)
	return memory.Access{}
}

func (suite *ManagerTestSuite) TestBootstrapCreatesColumnFamilies() {
	// four sample entities and the counter column family
	suite.Equal(int64(5), suite.counter("schema.column_family_created+"))
	for _, name := range []string{"sensor", "users", "tweet", "timeline", common.CounterColumnFamily} {
		_, err := suite.connector.DescribeTable(suite.ctx, name)
		suite.NoError(err, name)
	}
	suite.Len(suite.factory.Metas(), 4)

	// a second bootstrap validates what the first created
	_, err := NewEntityManagerFactory(suite.ctx, map[string]interface{}{
		EntityPackagesParam: []string{samples.Package},
		ConnectorParam:      suite.connector,
	}, suite.scope)
	suite.NoError(err)
	suite.Equal(int64(5), suite.counter("schema.column_family_validated+"))
}

func (suite *ManagerTestSuite) TestBootstrapFailures() {
	_, err := NewEntityManagerFactory(suite.ctx, map[string]interface{}{
		ConnectorParam: suite.connector,
	}, suite.scope)
	suite.Error(err)

	_, err = NewEntityManagerFactory(suite.ctx, map[string]interface{}{
		EntityPackagesParam: "no.such.package",
		ConnectorParam:      suite.connector,
	}, suite.scope)
	suite.True(common.IsMappingError(err))

	_, err = NewEntityManagerFactory(suite.ctx, map[string]interface{}{
		EntityPackagesParam: samples.Package,
		ConnectorParam:      memory.NewConnector(),
	}, suite.scope)
	suite.True(common.IsSchemaMismatchError(err))

	_, err = NewEntityManagerFactory(suite.ctx, map[string]interface{}{
		EntityPackagesParam:         samples.Package,
		ConnectorParam:              suite.connector,
		DefaultReadConsistencyParam: "SOMETIMES",
	}, suite.scope)
	suite.Error(err)
}

func (suite *ManagerTestSuite) TestSensorMergeWritesOnlyModifiedColumn() {
	sensor := &samples.Sensor{ID: 1, Date: suite.t0, Type: "temp", Value: 21.5}
	suite.NoError(suite.manager.Persist(suite.ctx, sensor))

	pk := meta.CompoundKey{int64(1), suite.t0}
	found, err := suite.manager.Find(suite.ctx, &samples.Sensor{}, pk)
	suite.Require().NoError(err)
	suite.Require().NotNil(found)
	suite.NoError(found.Set("Value", 22.0))

	suite.connector.ResetAccesses()
	_, err = suite.manager.Merge(suite.ctx, found)
	suite.NoError(err)
	accesses := suite.connector.Accesses()
	suite.Require().Len(accesses, 1)
	suite.Equal("update", accesses[0].Operation)
	suite.Equal("sensor", accesses[0].Table)
	suite.Equal(consistency.Quorum, accesses[0].Level)

	reloaded, err := suite.manager.Find(suite.ctx, samples.Sensor{}, pk)
	suite.Require().NoError(err)
	s := reloaded.Unproxy().(*samples.Sensor)
	suite.Equal("temp", s.Type)
	suite.Equal(22.0, s.Value)
	suite.Equal(int64(1), suite.counter("entity.merge+result=success"))
}

func (suite *ManagerTestSuite) TestFindMissing() {
	found, err := suite.manager.Find(suite.ctx, &samples.User{}, "nobody")
	suite.NoError(err)
	suite.Nil(found)
	suite.Equal(int64(1), suite.counter("entity.find_not_found+"))

	_, err = suite.manager.Find(suite.ctx, &samples.User{}, nil)
	suite.Error(err)
	suite.Equal(int64(1), suite.counter("entity.find+result=fail"))
}

func (suite *ManagerTestSuite) TestConsistencyLevels() {
	sensor := &samples.Sensor{ID: 2, Date: suite.t0, Type: "temp"}
	suite.NoError(suite.manager.Persist(suite.ctx, sensor,
		WithConsistencyLevel(consistency.EachQuorum)))
	suite.Equal(consistency.EachQuorum, suite.lastAccess("create").Level)

	// the level of a call does not leak into the next one
	pk := meta.CompoundKey{int64(2), suite.t0}
	_, err := suite.manager.Find(suite.ctx, &samples.Sensor{}, pk)
	suite.NoError(err)
	suite.Equal(consistency.LocalQuorum, suite.lastAccess("get").Level)

	_, err = suite.manager.Find(suite.ctx, &samples.Sensor{}, pk,
		WithConsistencyLevel(consistency.All))
	suite.NoError(err)
	suite.Equal(consistency.All, suite.lastAccess("get").Level)

	suite.NoError(suite.manager.Persist(suite.ctx, &samples.User{Login: "jdoe"}))
	suite.Equal(consistency.DefaultLevel, suite.lastAccess("create").Level)
}

func (suite *ManagerTestSuite) TestFailedCallResetsLevels() {
	// a sensor key has two components
	_, err := suite.manager.Find(suite.ctx, &samples.Sensor{}, int64(3),
		WithConsistencyLevel(consistency.All))
	suite.Error(err)

	suite.NoError(suite.manager.Persist(suite.ctx,
		&samples.Sensor{ID: 3, Date: suite.t0}))
	suite.Equal(consistency.Quorum, suite.lastAccess("create").Level)
}

func (suite *ManagerTestSuite) TestRemove() {
	user := &samples.User{Login: "jdoe", FirstName: "John", TweetCount: 3}
	suite.NoError(suite.manager.Persist(suite.ctx, user))

	suite.NoError(suite.manager.Remove(suite.ctx, user))
	found, err := suite.manager.Find(suite.ctx, &samples.User{}, "jdoe")
	suite.NoError(err)
	suite.Nil(found)

	suite.NoError(suite.manager.Persist(suite.ctx, &samples.Sensor{ID: 4, Date: suite.t0}))
	pk := meta.CompoundKey{int64(4), suite.t0}
	suite.NoError(suite.manager.RemoveByID(suite.ctx, &samples.Sensor{}, pk))
	found, err = suite.manager.Find(suite.ctx, &samples.Sensor{}, pk)
	suite.NoError(err)
	suite.Nil(found)

	suite.Error(suite.manager.Remove(suite.ctx, nil))
}

func (suite *ManagerTestSuite) TestReferenceAndInitialize() {
	suite.NoError(suite.manager.Persist(suite.ctx,
		&samples.User{Login: "ref", FirstName: "Ada"}))

	suite.connector.ResetAccesses()
	ref, err := suite.manager.GetReference(suite.ctx, &samples.User{}, "ref")
	suite.Require().NoError(err)
	suite.False(ref.IsLoaded())
	suite.Empty(suite.connector.Accesses())

	suite.NoError(suite.manager.Initialize(suite.ctx, ref))
	suite.True(ref.IsLoaded())
	suite.Equal("Ada", ref.Unproxy().(*samples.User).FirstName)

	// initializing a loaded entity reads nothing
	suite.connector.ResetAccesses()
	suite.NoError(suite.manager.Initialize(suite.ctx, ref))
	suite.Empty(suite.connector.Accesses())
}

func (suite *ManagerTestSuite) TestWriteThroughReferenceIsMerged() {
	suite.NoError(suite.manager.Persist(suite.ctx,
		&samples.User{Login: "lazy", FirstName: "old", LastName: "kept"}))

	ref, err := suite.manager.GetReference(suite.ctx, &samples.User{}, "lazy")
	suite.Require().NoError(err)
	suite.NoError(ref.Set("FirstName", "new"))
	last, err := ref.Get("LastName")
	suite.NoError(err)
	suite.Equal("kept", last)

	_, err = suite.manager.Merge(suite.ctx, ref)
	suite.NoError(err)

	found, err := suite.manager.Find(suite.ctx, &samples.User{}, "lazy")
	suite.Require().NoError(err)
	suite.Require().NotNil(found)
	suite.Equal("new", found.Unproxy().(*samples.User).FirstName)
	suite.Equal("kept", found.Unproxy().(*samples.User).LastName)
}

// failingBackend fails every Persist and keeps the context it was given.
type failingBackend struct {
	Backend

	pc *persistence.Context
}

func (b *failingBackend) Persist(ctx context.Context, pc *persistence.Context) error {
	b.pc = pc
	return errors.New("write timeout")
}

func (suite *ManagerTestSuite) TestFailedCallIsExecuted() {
	backend := &failingBackend{}
	em := newEntityManager(suite.factory.Metas(), suite.manager.dao,
		suite.factory.Policy(), backend, NewMetrics(tally.NoopScope))

	err := em.Persist(suite.ctx, &samples.User{Login: "x"})
	suite.EqualError(err, "write timeout")
	suite.Require().NotNil(backend.pc)
	suite.True(backend.pc.HasExecuted())
	suite.Equal(persistence.Closed, backend.pc.State())
}

func (suite *ManagerTestSuite) TestRefresh() {
	suite.NoError(suite.manager.Persist(suite.ctx,
		&samples.User{Login: "r", FirstName: "Old"}))
	found, err := suite.manager.Find(suite.ctx, &samples.User{}, "r")
	suite.Require().NoError(err)

	other, err := suite.manager.Find(suite.ctx, &samples.User{}, "r")
	suite.Require().NoError(err)
	suite.NoError(other.Set("FirstName", "New"))
	_, err = suite.manager.Merge(suite.ctx, other)
	suite.NoError(err)

	suite.NoError(suite.manager.Refresh(suite.ctx, found))
	suite.Equal("New", found.Unproxy().(*samples.User).FirstName)
	suite.Error(suite.manager.Refresh(suite.ctx, nil))
}

func (suite *ManagerTestSuite) TestJoinAndCounters() {
	author := &samples.User{Login: "author", FirstName: "Ann"}
	suite.NoError(suite.manager.Persist(suite.ctx, author))
	tweet := samples.NewTweet(author, "hello", "greeting")
	suite.NoError(suite.manager.Persist(suite.ctx, tweet))

	found, err := suite.manager.Find(suite.ctx, &samples.Tweet{}, tweet.ID)
	suite.Require().NoError(err)
	suite.Equal("Ann", found.Unproxy().(*samples.Tweet).Author.FirstName)

	user, err := suite.manager.Find(suite.ctx, &samples.User{}, "author")
	suite.Require().NoError(err)
	c, err := user.Counter("TweetCount")
	suite.Require().NoError(err)
	suite.NoError(c.Incr(suite.ctx))
	suite.NoError(c.IncrBy(suite.ctx, 2))

	it, err := suite.manager.CounterIterator(suite.ctx, &samples.User{}, "author")
	suite.Require().NoError(err)
	defer it.Close()
	suite.True(it.HasNext())
	kv, err := it.Next()
	suite.NoError(err)
	suite.Equal("tweet_count", kv.Key)
	suite.Equal(int64(3), kv.Value)
	suite.False(it.HasNext())
}

func (suite *ManagerTestSuite) TestSliceIterator() {
	for i, v := range []float64{1, 2, 3} {
		suite.NoError(suite.manager.Persist(suite.ctx, &samples.Sensor{
			ID:    7,
			Date:  suite.t0.Add(time.Duration(i) * time.Hour),
			Value: v,
		}))
	}

	it, err := suite.manager.SliceIterator(suite.ctx, &samples.Sensor{}, int64(7), "Value",
		WithSliceRange(&base.SliceRange{
			From: []interface{}{suite.t0.Add(time.Hour)},
		}))
	suite.Require().NoError(err)
	defer it.Close()

	var values []interface{}
	for it.HasNext() {
		v, err := it.NextValue()
		suite.NoError(err)
		values = append(values, v)
	}
	suite.Equal([]interface{}{2.0, 3.0}, values)
	suite.Equal(consistency.LocalQuorum, suite.lastAccess("get_iter").Level)
}

func (suite *ManagerTestSuite) TestTTL() {
	suite.NoError(suite.manager.Persist(suite.ctx,
		&samples.Sensor{ID: 8, Date: suite.t0, Value: 1}, WithTTL(120)))

	it, err := suite.manager.SliceIterator(suite.ctx, &samples.Sensor{}, int64(8), "Value")
	suite.Require().NoError(err)
	defer it.Close()
	ttl, err := it.NextTTL()
	suite.NoError(err)
	suite.InDelta(120, ttl, 1)
}

func (suite *ManagerTestSuite) TestUnwrapAndClose() {
	sensor := &samples.Sensor{ID: 9, Date: suite.t0}
	merged, err := suite.manager.Merge(suite.ctx, sensor)
	suite.Require().NoError(err)
	suite.Equal(sensor, suite.manager.Unwrap(merged))
	suite.Equal(sensor, suite.manager.Unwrap(sensor))

	suite.True(common.IsUnsupportedOperationError(suite.manager.Close()))
	suite.True(common.IsUnsupportedOperationError(suite.factory.Close()))
	_, err = suite.factory.IsOpen()
	suite.True(common.IsUnsupportedOperationError(err))
}
