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
	"reflect"
	"testing"
	"time"

	"github.com/robinvandenberg/Achilles/pkg/common"
	"github.com/robinvandenberg/Achilles/pkg/consistency"
	"github.com/robinvandenberg/Achilles/pkg/entity/iterator"
	"github.com/robinvandenberg/Achilles/pkg/entity/meta"
	"github.com/robinvandenberg/Achilles/pkg/entity/parser"
	"github.com/robinvandenberg/Achilles/pkg/entity/persistence"
	"github.com/robinvandenberg/Achilles/pkg/entity/proxy"
	"github.com/robinvandenberg/Achilles/pkg/storage/connectors/memory"
	"github.com/robinvandenberg/Achilles/pkg/storage/objects/base"
	"github.com/robinvandenberg/Achilles/pkg/storage/orm/mocks"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/suite"
	"go.uber.org/yarpc/yarpcerrors"
)

const testPackage = "operations_test"

type address struct {
	City string
	Zip  string
}

type member struct {
	base.Object `cassandra:"name=member"`
	ID          int64             `column:"name=id, partition_key"`
	Name        string            `column:"name=name"`
	Emails      []string          `column:"name=emails"`
	Roles       []string          `column:"name=roles, set"`
	Prefs       map[string]string `column:"name=prefs"`
	Visits      int64             `column:"name=visits, counter"`
	Address     *address          `column:"name=address"`
	Mentor      *member           `column:"name=mentor, join, cascade"`
}

type event struct {
	base.Object `cassandra:"name=event"`
	Source      string    `column:"name=source, partition_key"`
	At          time.Time `column:"name=at, clustering_key=1"`
	Seq         int32     `column:"name=seq, clustering_key=2"`
	Payload     string    `column:"name=payload"`
	Owner       *member   `column:"name=owner, join"`
}

func init() {
	parser.RegisterEntity(testPackage, &member{})
	parser.RegisterEntity(testPackage, &event{})
}

type OperationsTestSuite struct {
	suite.Suite

	metas      meta.EntityMetaMap
	memberMeta *meta.EntityMeta
	eventMeta  *meta.EntityMeta

	connector *memory.Connector
	dao       *persistence.DAOContext
	policy    *consistency.Policy
	backend   *Backend
	ctx       context.Context
	t0        time.Time
}

func TestOperations(t *testing.T) {
	suite.Run(t, new(OperationsTestSuite))
}

func (suite *OperationsTestSuite) SetupSuite() {
	metas, hasCounter, err := parser.New().ParseAll([]string{testPackage})
	suite.Require().NoError(err)
	suite.Require().True(hasCounter)
	suite.metas = metas
	suite.memberMeta, err = metas.Get(&member{})
	suite.Require().NoError(err)
	suite.eventMeta, err = metas.Get(&event{})
	suite.Require().NoError(err)
	suite.t0 = time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
}

func (suite *OperationsTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.connector = memory.NewConnector()
	suite.dao = persistence.NewDAOContext(suite.connector, nil)
	suite.policy = consistency.NewPolicy(
		consistency.One,
		consistency.One,
		map[string]consistency.Level{"member": consistency.Quorum},
		map[string]consistency.Level{"member": consistency.All},
	)
	suite.backend = NewBackend(suite.dao, suite.policy)

	for _, def := range []*base.Definition{
		suite.memberMeta.Definition(),
		suite.eventMeta.Definition(),
		suite.dao.CounterDefinition,
	} {
		suite.Require().NoError(suite.connector.CreateTable(suite.ctx, def))
	}
}

func (suite *OperationsTestSuite) newContext(
	em *meta.EntityMeta,
	entity interface{},
	primaryKey interface{},
) *persistence.Context {
	flush := persistence.NewImmediateFlushContext(suite.connector, suite.policy.NewScope())
	return persistence.NewContext(em, entity, primaryKey, suite.dao, flush)
}

func (suite *OperationsTestSuite) persist(entity interface{}) {
	em, err := suite.metas.Get(entity)
	suite.Require().NoError(err)
	pk, err := em.PrimaryKeyValues(entity)
	suite.Require().NoError(err)
	suite.Require().NoError(suite.backend.Persist(suite.ctx, suite.newContext(em, entity, pk)))
}

func (suite *OperationsTestSuite) find(id int64) *proxy.Entity {
	e, err := suite.backend.Load(suite.ctx, suite.newContext(suite.memberMeta, nil, id), false)
	suite.Require().NoError(err)
	return e
}

func (suite *OperationsTestSuite) fullMember() *member {
	grand := &member{ID: 1, Name: "grand"}
	mentor := &member{ID: 2, Name: "mentor", Mentor: grand}
	return &member{
		ID:      3,
		Name:    "ann",
		Emails:  []string{"a@x", "b@x"},
		Roles:   []string{"admin"},
		Prefs:   map[string]string{"lang": "en"},
		Visits:  3,
		Address: &address{City: "Oslo", Zip: "0150"},
		Mentor:  mentor,
	}
}

func (suite *OperationsTestSuite) TestPersistAndLoad() {
	suite.persist(suite.fullMember())

	e := suite.find(3)
	suite.Require().NotNil(e)
	suite.True(e.IsLoaded())
	suite.False(e.IsDirty())
	suite.Equal(int64(3), e.PrimaryKey())

	m := e.Unproxy().(*member)
	suite.Equal("ann", m.Name)
	suite.Equal([]string{"a@x", "b@x"}, m.Emails)
	suite.Equal([]string{"admin"}, m.Roles)
	suite.Equal(map[string]string{"lang": "en"}, m.Prefs)
	suite.Equal(int64(3), m.Visits)
	suite.Equal(&address{City: "Oslo", Zip: "0150"}, m.Address)

	// joins are loaded one level deep
	suite.Require().NotNil(m.Mentor)
	suite.Equal("mentor", m.Mentor.Name)
	suite.Require().NotNil(m.Mentor.Mentor)
	suite.Equal(int64(1), m.Mentor.Mentor.ID)
	suite.Empty(m.Mentor.Mentor.Name)

	// cascade persisted the whole chain
	grand := suite.find(1)
	suite.Require().NotNil(grand)
	suite.Equal("grand", grand.Unproxy().(*member).Name)
}

func (suite *OperationsTestSuite) TestPersistUsesColumnFamilyLevels() {
	suite.persist(&member{ID: 9, Name: "lvl"})
	suite.find(9)

	var writes, reads []consistency.Level
	for _, a := range suite.connector.Accesses() {
		if a.Table != "member" {
			continue
		}
		switch a.Operation {
		case "create":
			writes = append(writes, a.Level)
		case "get":
			reads = append(reads, a.Level)
		}
	}
	suite.Equal([]consistency.Level{consistency.All}, writes)
	suite.Equal([]consistency.Level{consistency.Quorum}, reads)
}

func (suite *OperationsTestSuite) TestLoadMissing() {
	e := suite.find(42)
	suite.Nil(e)
}

func (suite *OperationsTestSuite) TestLoadRejectsBadKey() {
	_, err := suite.backend.Load(suite.ctx, suite.newContext(suite.memberMeta, nil, nil), false)
	suite.Error(err)
}

func (suite *OperationsTestSuite) TestLazyLoad() {
	suite.persist(&member{ID: 5, Name: "lazy"})
	reads := suite.connector.Reads()

	e, err := suite.backend.Load(suite.ctx, suite.newContext(suite.memberMeta, nil, 5), true)
	suite.NoError(err)
	suite.False(e.IsLoaded())
	suite.Equal(reads, suite.connector.Reads())
	suite.Equal(int64(5), e.Unproxy().(*member).ID)

	name, err := e.Get("Name")
	suite.NoError(err)
	suite.Equal("lazy", name)
	suite.True(e.IsLoaded())
}

func (suite *OperationsTestSuite) TestMergeWritesDirtyProperties() {
	suite.persist(suite.fullMember())
	e := suite.find(3)

	suite.NoError(e.Set("Name", "bob"))
	suite.NoError(e.Set("Address", nil))
	merged, err := suite.backend.Merge(suite.ctx, suite.newContext(suite.memberMeta, e, e.PrimaryKey()))
	suite.NoError(err)
	suite.Equal(e, merged)
	suite.False(e.IsDirty())

	m := suite.find(3).Unproxy().(*member)
	suite.Equal("bob", m.Name)
	suite.Nil(m.Address)
	suite.Equal([]string{"a@x", "b@x"}, m.Emails)
}

func (suite *OperationsTestSuite) TestMergeCollectionWrappers() {
	suite.persist(suite.fullMember())
	e := suite.find(3)

	l, err := e.List("Emails")
	suite.NoError(err)
	suite.NoError(l.Add("c@x"))
	s, err := e.SetOf("Roles")
	suite.NoError(err)
	suite.NoError(s.Add("owner"))
	mp, err := e.Map("Prefs")
	suite.NoError(err)
	suite.NoError(mp.Put("tz", "CET"))

	_, err = suite.backend.Merge(suite.ctx, suite.newContext(suite.memberMeta, e, e.PrimaryKey()))
	suite.NoError(err)

	m := suite.find(3).Unproxy().(*member)
	suite.Equal([]string{"a@x", "b@x", "c@x"}, m.Emails)
	suite.Equal([]string{"admin", "owner"}, m.Roles)
	suite.Equal(map[string]string{"lang": "en", "tz": "CET"}, m.Prefs)
}

func (suite *OperationsTestSuite) TestMergeTransientEntity() {
	m := &member{ID: 7, Name: "new"}
	e, err := suite.backend.Merge(suite.ctx, suite.newContext(suite.memberMeta, m, int64(7)))
	suite.NoError(err)
	suite.Equal(m, e.Unproxy())
	suite.True(e.IsLoaded())
	suite.NotNil(suite.find(7))
}

func (suite *OperationsTestSuite) TestMergeCleanEntityWritesNothing() {
	suite.persist(&member{ID: 8, Name: "clean"})
	e := suite.find(8)
	writes := suite.connector.Writes()

	_, err := suite.backend.Merge(suite.ctx, suite.newContext(suite.memberMeta, e, e.PrimaryKey()))
	suite.NoError(err)
	suite.Equal(writes, suite.connector.Writes())
}

func (suite *OperationsTestSuite) TestRemoveDeletesRowAndCounters() {
	suite.persist(suite.fullMember())
	suite.NoError(suite.backend.Remove(suite.ctx, suite.newContext(suite.memberMeta, nil, int64(3))))
	suite.Nil(suite.find(3))

	// persisting again starts the counters from scratch
	suite.persist(&member{ID: 3, Name: "again", Visits: 1})
	suite.Equal(int64(1), suite.find(3).Unproxy().(*member).Visits)
}

func (suite *OperationsTestSuite) TestRefresh() {
	suite.persist(&member{ID: 4, Name: "before"})
	e := suite.find(4)
	suite.NoError(e.Set("Name", "local"))

	suite.persist(&member{ID: 4, Name: "stored"})
	suite.NoError(suite.backend.Refresh(suite.ctx, suite.newContext(suite.memberMeta, e, e.PrimaryKey())))
	suite.Equal("stored", e.Unproxy().(*member).Name)
	suite.False(e.IsDirty())

	suite.NoError(suite.backend.Remove(suite.ctx, suite.newContext(suite.memberMeta, nil, int64(4))))
	err := suite.backend.Refresh(suite.ctx, suite.newContext(suite.memberMeta, e, e.PrimaryKey()))
	suite.True(yarpcerrors.IsNotFound(err))

	err = suite.backend.Refresh(suite.ctx, suite.newContext(suite.memberMeta, &member{ID: 4}, int64(4)))
	suite.True(common.IsUnsupportedOperationError(err))
}

func (suite *OperationsTestSuite) TestCounterWrapper() {
	suite.persist(&member{ID: 6, Name: "counted"})
	e := suite.find(6)

	c, err := e.Counter("Visits")
	suite.NoError(err)
	suite.NoError(c.IncrBy(suite.ctx, 5))
	suite.NoError(c.Decr(suite.ctx))
	v, err := c.Get(suite.ctx)
	suite.NoError(err)
	suite.Equal(int64(4), v)

	it, err := suite.backend.CounterIterator(suite.ctx, suite.newContext(suite.memberMeta, nil, int64(6)))
	suite.NoError(err)
	defer it.Close()
	kv, err := it.Next()
	suite.NoError(err)
	suite.Equal(&iterator.KeyValue{Key: "visits", Value: int64(4)}, kv)
	suite.False(it.HasNext())
	suite.True(common.IsUnsupportedOperationError(it.Remove()))
}

func (suite *OperationsTestSuite) TestCounterIteratorRequiresCounters() {
	_, err := suite.backend.CounterIterator(suite.ctx, suite.newContext(suite.eventMeta, nil, "s"))
	suite.True(common.IsUnsupportedOperationError(err))
}

func (suite *OperationsTestSuite) persistEvents() {
	owner := &member{ID: 11, Name: "owner"}
	suite.persist(owner)
	for i := 0; i < 3; i++ {
		suite.persist(&event{
			Source:  "s1",
			At:      suite.t0.Add(time.Duration(i) * time.Minute),
			Seq:     int32(i),
			Payload: string(rune('a' + i)),
			Owner:   owner,
		})
	}
	suite.persist(&event{Source: "s2", At: suite.t0, Payload: "other"})
}

func collect(suite *OperationsTestSuite, it *iterator.KeyValueIterator) []*iterator.KeyValue {
	var kvs []*iterator.KeyValue
	for it.HasNext() {
		kv, err := it.Next()
		suite.Require().NoError(err)
		kvs = append(kvs, kv)
	}
	it.Close()
	return kvs
}

func (suite *OperationsTestSuite) TestSliceIterator() {
	suite.persistEvents()

	it, err := suite.backend.SliceIterator(
		suite.ctx, suite.newContext(suite.eventMeta, nil, "s1"), "Payload", nil)
	suite.NoError(err)
	kvs := collect(suite, it)
	suite.Len(kvs, 3)
	suite.Equal(meta.CompoundKey{suite.t0, int32(0)}, kvs[0].Key)
	suite.Equal("a", kvs[0].Value)
	suite.Equal("c", kvs[2].Value)

	it, err = suite.backend.SliceIterator(
		suite.ctx, suite.newContext(suite.eventMeta, nil, "s1"), "Payload",
		&base.SliceRange{
			From:     []interface{}{suite.t0.Add(time.Minute)},
			Reversed: true,
			Limit:    1,
		})
	suite.NoError(err)
	kvs = collect(suite, it)
	suite.Len(kvs, 1)
	suite.Equal("c", kvs[0].Value)

	// the join column of a loaded event holds the owner
	e, err := suite.backend.Load(suite.ctx,
		suite.newContext(suite.eventMeta, nil, meta.CompoundKey{"s1", suite.t0, 0}), false)
	suite.NoError(err)
	suite.Equal("owner", e.Unproxy().(*event).Owner.Name)
}

func (suite *OperationsTestSuite) TestSliceIteratorTTL() {
	ev := &event{Source: "ttl", At: suite.t0, Payload: "x"}
	pc := suite.newContext(suite.eventMeta, ev, meta.CompoundKey{"ttl", suite.t0, 0})
	pc.TTL = 60
	suite.NoError(suite.backend.Persist(suite.ctx, pc))

	it, err := suite.backend.SliceIterator(
		suite.ctx, suite.newContext(suite.eventMeta, nil, "ttl"), "Payload", nil)
	suite.NoError(err)
	ttl, err := it.NextTTL()
	suite.NoError(err)
	suite.InDelta(60, ttl, 1)
}

func (suite *OperationsTestSuite) TestSliceIteratorErrors() {
	_, err := suite.backend.SliceIterator(
		suite.ctx, suite.newContext(suite.memberMeta, nil, int64(1)), "Name", nil)
	suite.True(common.IsUnsupportedOperationError(err))

	_, err = suite.backend.SliceIterator(
		suite.ctx, suite.newContext(suite.eventMeta, nil, "s1"), "Seq", nil)
	suite.True(common.IsUnsupportedOperationError(err))

	_, err = suite.backend.SliceIterator(
		suite.ctx, suite.newContext(suite.eventMeta, nil, "s1"), "Missing", nil)
	suite.Error(err)

	_, err = suite.backend.SliceIterator(
		suite.ctx, suite.newContext(suite.eventMeta, nil, "s1"), "Payload",
		&base.SliceRange{From: []interface{}{suite.t0, 1, "extra"}})
	suite.Error(err)
}

func (suite *OperationsTestSuite) TestPersistValidation() {
	err := suite.backend.Persist(suite.ctx, suite.newContext(suite.memberMeta, &event{}, nil))
	suite.True(common.IsUnsupportedOperationError(err))

	err = suite.backend.Persist(suite.ctx, suite.newContext(suite.memberMeta, nil, nil))
	suite.Error(err)

	// non cascade joins only store the joined partition key
	err = suite.backend.Persist(suite.ctx, suite.newContext(suite.eventMeta,
		&event{Source: "s", At: suite.t0, Payload: "p", Owner: &member{ID: 404}}, nil))
	suite.NoError(err)
	suite.Nil(suite.find(404))
}

func (suite *OperationsTestSuite) TestBatchingFlush() {
	scope := suite.policy.NewScope()
	flush := persistence.NewBatchingFlushContext(suite.connector, scope, "b1")
	m := &member{ID: 20, Name: "batched", Visits: 2}
	pc := persistence.NewContext(suite.memberMeta, m, int64(20), suite.dao, flush)

	suite.NoError(suite.backend.Persist(suite.ctx, pc))
	suite.Equal(2, flush.Pending())
	suite.Nil(suite.find(20))

	suite.NoError(flush.Flush(suite.ctx))
	e := suite.find(20)
	suite.Require().NotNil(e)
	suite.Equal(int64(2), e.Unproxy().(*member).Visits)
}

func (suite *OperationsTestSuite) TestUnwrap() {
	m := &member{ID: 1}
	suite.Equal(m, suite.backend.Unwrap(m))
	suite.Equal(m, suite.backend.Unwrap(proxy.New(suite.memberMeta, m, int64(1))))
}

func TestMergeSendsOnlyDirtyColumns(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	metas, _, err := parser.New().ParseAll([]string{testPackage})
	if err != nil {
		t.Fatal(err)
	}
	em, _ := metas.Get(reflect.TypeOf(member{}))

	connector := mocks.NewMockConnector(ctrl)
	dao := persistence.NewDAOContext(connector, nil)
	policy := consistency.NewDefaultPolicy()
	backend := NewBackend(dao, policy)

	m := &member{ID: 1, Name: "x", Emails: []string{"e"}}
	e := proxy.New(em, m, int64(1))
	if err := e.Set("Name", "y"); err != nil {
		t.Fatal(err)
	}

	connector.EXPECT().
		Update(
			gomock.Any(),
			em.Definition(),
			[]base.Column{{Name: "name", Value: "y"}},
			[]base.Column{{Name: "id", Value: int64(1)}},
			int32(0),
		).
		Return(nil)

	flush := persistence.NewImmediateFlushContext(connector, policy.NewScope())
	pc := persistence.NewContext(em, e, int64(1), dao, flush)
	if _, err := backend.Merge(context.Background(), pc); err != nil {
		t.Fatal(err)
	}
}
