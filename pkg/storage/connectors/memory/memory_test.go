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

package memory

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/robinvandenberg/Achilles/pkg/consistency"
	"github.com/robinvandenberg/Achilles/pkg/storage/objects/base"
	"github.com/robinvandenberg/Achilles/pkg/storage/orm"

	"github.com/stretchr/testify/suite"
	"go.uber.org/yarpc/yarpcerrors"
)

var (
	simpleDef = &base.Definition{
		Name: "simple",
		Key: &base.PrimaryKey{
			PartitionKeys: []string{"id"},
		},
		ColumnToType: map[string]reflect.Type{
			"id":   reflect.TypeOf(int64(0)),
			"name": reflect.TypeOf(""),
			"data": reflect.TypeOf(""),
		},
	}

	clusteredDef = &base.Definition{
		Name: "clustered",
		Key: &base.PrimaryKey{
			PartitionKeys: []string{"id"},
			ClusteringKeys: []*base.ClusteringKey{
				{Name: "ck", Descending: true},
			},
		},
		ColumnToType: map[string]reflect.Type{
			"id":   reflect.TypeOf(int64(0)),
			"ck":   reflect.TypeOf(int64(0)),
			"data": reflect.TypeOf(""),
		},
	}

	counterDef = &base.Definition{
		Name: "counters",
		Key: &base.PrimaryKey{
			PartitionKeys: []string{"id"},
		},
		ColumnToType: map[string]reflect.Type{
			"id":    reflect.TypeOf(""),
			"value": reflect.TypeOf(int64(0)),
		},
		ColumnKinds: map[string]base.ColumnKind{"value": base.CounterColumn},
	}
)

type MemoryConnectorTestSuite struct {
	suite.Suite
	ctx       context.Context
	now       time.Time
	connector *Connector
}

func TestMemoryConnectorTestSuite(t *testing.T) {
	suite.Run(t, new(MemoryConnectorTestSuite))
}

func (suite *MemoryConnectorTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.now = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	suite.connector = NewConnector(WithClock(func() time.Time { return suite.now }))
	for _, def := range []*base.Definition{simpleDef, clusteredDef, counterDef} {
		suite.NoError(suite.connector.CreateTable(suite.ctx, def))
	}
}

func keyOf(id int64) []base.Column {
	return []base.Column{{Name: "id", Value: id}}
}

func (suite *MemoryConnectorTestSuite) TestSchema() {
	def, err := suite.connector.DescribeTable(suite.ctx, "clustered")
	suite.NoError(err)
	suite.Equal(clusteredDef.Key.PartitionKeys, def.Key.PartitionKeys)
	suite.True(def.Key.ClusteringKeys[0].Descending)

	_, err = suite.connector.DescribeTable(suite.ctx, "absent")
	suite.True(yarpcerrors.IsNotFound(err))

	err = suite.connector.CreateTable(suite.ctx, simpleDef)
	suite.True(yarpcerrors.IsAlreadyExists(err))
}

func (suite *MemoryConnectorTestSuite) TestCreateGetDelete() {
	row := append(keyOf(1),
		base.Column{Name: "name", Value: "test"},
		base.Column{Name: "data", Value: "testdata"})
	suite.NoError(suite.connector.Create(suite.ctx, simpleDef, row, 0))

	result, err := suite.connector.Get(suite.ctx, simpleDef, keyOf(1))
	suite.NoError(err)
	suite.Equal(map[string]interface{}{
		"id": int64(1), "name": "test", "data": "testdata",
	}, result)

	result, err = suite.connector.Get(suite.ctx, simpleDef, keyOf(1), "name")
	suite.NoError(err)
	suite.Equal(map[string]interface{}{"name": "test"}, result)

	suite.NoError(suite.connector.Delete(suite.ctx, simpleDef, keyOf(1)))
	_, err = suite.connector.Get(suite.ctx, simpleDef, keyOf(1))
	suite.True(yarpcerrors.IsNotFound(err))

	// deleting twice is a noop
	suite.NoError(suite.connector.Delete(suite.ctx, simpleDef, keyOf(1)))
}

func (suite *MemoryConnectorTestSuite) TestUpdate() {
	suite.NoError(suite.connector.Update(suite.ctx, simpleDef,
		[]base.Column{{Name: "name", Value: "first"}}, keyOf(2), 0))
	suite.NoError(suite.connector.Update(suite.ctx, simpleDef,
		[]base.Column{{Name: "data", Value: "more"}}, keyOf(2), 0))

	result, err := suite.connector.Get(suite.ctx, simpleDef, keyOf(2))
	suite.NoError(err)
	suite.Equal("first", result["name"])
	suite.Equal("more", result["data"])

	// nil values delete columns, a row without columns does not exist
	suite.NoError(suite.connector.Update(suite.ctx, simpleDef,
		[]base.Column{{Name: "name", Value: nil}, {Name: "data", Value: nil}},
		keyOf(2), 0))
	_, err = suite.connector.Get(suite.ctx, simpleDef, keyOf(2))
	suite.True(yarpcerrors.IsNotFound(err))

	err = suite.connector.Update(suite.ctx, simpleDef,
		append(keyOf(2), base.Column{Name: "name", Value: "x"}), keyOf(2), 0)
	suite.EqualError(err, "PRIMARY KEY part id found in SET part")

	err = suite.connector.Update(suite.ctx, &base.Definition{Name: "absent"},
		nil, keyOf(2), 0)
	suite.Error(err)
}

func (suite *MemoryConnectorTestSuite) TestTTL() {
	row := append(keyOf(3), base.Column{Name: "name", Value: "ephemeral"})
	suite.NoError(suite.connector.Create(suite.ctx, simpleDef, row, 10))

	suite.now = suite.now.Add(4500 * time.Millisecond)
	iter, err := suite.connector.GetAllIter(suite.ctx, simpleDef, keyOf(3), nil)
	suite.NoError(err)
	cols, err := iter.Next()
	suite.NoError(err)
	for _, col := range cols {
		if col.Name == "name" {
			suite.Equal(int32(6), col.TTL)
		} else {
			suite.Equal(int32(0), col.TTL)
		}
	}
	iter.Close()

	suite.now = suite.now.Add(6 * time.Second)
	_, err = suite.connector.Get(suite.ctx, simpleDef, keyOf(3))
	suite.True(yarpcerrors.IsNotFound(err))
}

func (suite *MemoryConnectorTestSuite) createClustered(id int64, cks ...int64) {
	for _, ck := range cks {
		suite.NoError(suite.connector.Create(suite.ctx, clusteredDef, []base.Column{
			{Name: "id", Value: id},
			{Name: "ck", Value: ck},
			{Name: "data", Value: "d"},
		}, 0))
	}
}

func drain(suite *MemoryConnectorTestSuite, iter orm.Iterator) []int64 {
	defer iter.Close()
	var cks []int64
	for {
		row, err := iter.Next()
		suite.NoError(err)
		if row == nil {
			return cks
		}
		for _, col := range row {
			if col.Name == "ck" {
				cks = append(cks, col.Value.(int64))
			}
		}
	}
}

func (suite *MemoryConnectorTestSuite) TestGetAllIterOrdering() {
	suite.createClustered(1, 10, 30, 20)
	suite.createClustered(2, 15)

	iter, err := suite.connector.GetAllIter(suite.ctx, clusteredDef, keyOf(1), nil)
	suite.NoError(err)
	suite.Equal([]int64{30, 20, 10}, drain(suite, iter))

	iter, err = suite.connector.GetAllIter(suite.ctx, clusteredDef, keyOf(1),
		&base.SliceRange{Reversed: true, Limit: 2})
	suite.NoError(err)
	suite.Equal([]int64{10, 20}, drain(suite, iter))

	iter, err = suite.connector.GetAllIter(suite.ctx, clusteredDef, keyOf(1),
		&base.SliceRange{From: []interface{}{15}, To: []interface{}{int32(30)}})
	suite.NoError(err)
	suite.Equal([]int64{30, 20}, drain(suite, iter))

	// partition delete
	suite.NoError(suite.connector.Delete(suite.ctx, clusteredDef, keyOf(1)))
	iter, err = suite.connector.GetAllIter(suite.ctx, clusteredDef, keyOf(1), nil)
	suite.NoError(err)
	suite.Empty(drain(suite, iter))

	iter, err = suite.connector.GetAllIter(suite.ctx, clusteredDef, keyOf(2), nil)
	suite.NoError(err)
	suite.Equal([]int64{15}, drain(suite, iter))
}

func (suite *MemoryConnectorTestSuite) TestIncrement() {
	keys := []base.Column{{Name: "id", Value: "a"}}
	suite.NoError(suite.connector.Increment(suite.ctx, counterDef, "value", 5, keys))
	suite.NoError(suite.connector.Increment(suite.ctx, counterDef, "value", -2, keys))
	result, err := suite.connector.Get(suite.ctx, counterDef, keys)
	suite.NoError(err)
	suite.Equal(int64(3), result["value"])

	suite.Error(suite.connector.Increment(suite.ctx, simpleDef, "name", 1, keyOf(1)))
}

func (suite *MemoryConnectorTestSuite) TestExecuteBatch() {
	err := suite.connector.ExecuteBatch(suite.ctx, []*base.Mutation{
		{
			Op:         base.OpInsert,
			Definition: simpleDef,
			Keys:       keyOf(4),
			Values:     []base.Column{{Name: "name", Value: "batched"}},
		},
		{
			Op:         base.OpIncrement,
			Definition: counterDef,
			Keys:       []base.Column{{Name: "id", Value: "b"}},
			Values:     []base.Column{{Name: "value", Value: int64(7)}},
		},
		{
			Op:         base.OpUpdate,
			Definition: simpleDef,
			Keys:       keyOf(4),
			Values:     []base.Column{{Name: "data", Value: "updated"}},
		},
	})
	suite.NoError(err)
	suite.Equal(int64(1), suite.connector.Writes())

	result, err := suite.connector.Get(suite.ctx, simpleDef, keyOf(4))
	suite.NoError(err)
	suite.Equal("batched", result["name"])
	suite.Equal("updated", result["data"])

	err = suite.connector.ExecuteBatch(suite.ctx, []*base.Mutation{
		{Op: base.OpDelete, Definition: simpleDef, Keys: keyOf(4)},
		{Op: base.OpDelete, Definition: &base.Definition{Name: "absent"}, Keys: keyOf(4)},
	})
	suite.Error(err)
	_, err = suite.connector.Get(suite.ctx, simpleDef, keyOf(4))
	suite.NoError(err)
}

func (suite *MemoryConnectorTestSuite) TestAccessesRecordLevel() {
	ctx := consistency.WithLevel(suite.ctx, consistency.Quorum)
	suite.NoError(suite.connector.Create(ctx, simpleDef, keyOf(5), 0))
	_, err := suite.connector.Get(suite.ctx, simpleDef, keyOf(5))
	suite.NoError(err)

	accesses := suite.connector.Accesses()
	suite.Equal([]Access{
		{Operation: create, Table: "simple", Level: consistency.Quorum, HasLevel: true},
		{Operation: get, Table: "simple"},
	}, accesses)
	suite.Equal(int64(1), suite.connector.Reads())

	suite.connector.ResetAccesses()
	suite.Empty(suite.connector.Accesses())
}

func (suite *MemoryConnectorTestSuite) TestStoredValuesDoNotAlias() {
	data := []byte("abc")
	suite.NoError(suite.connector.Create(suite.ctx, simpleDef,
		append(keyOf(6), base.Column{Name: "data", Value: data}), 0))
	data[0] = 'x'
	result, err := suite.connector.Get(suite.ctx, simpleDef, keyOf(6))
	suite.NoError(err)
	suite.Equal([]byte("abc"), result["data"])
}
