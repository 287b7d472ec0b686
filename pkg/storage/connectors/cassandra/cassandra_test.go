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

package cassandra

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/robinvandenberg/Achilles/pkg/consistency"
	"github.com/robinvandenberg/Achilles/pkg/storage/objects/base"

	"github.com/stretchr/testify/suite"
	"github.com/uber-go/tally/v4"
	"go.uber.org/yarpc/yarpcerrors"
)

// _hostEnv names the Cassandra contact point the connector suite runs
// against. The suite is skipped when it is not set.
const _hostEnv = "ACHILLES_CASSANDRA_HOST"

type CassandraConnSuite struct {
	suite.Suite

	connector *cassandraConnector
	scope     tally.TestScope
	// test tables created for this suite
	simple    *base.Definition
	clustered *base.Definition
	counters  *base.Definition
}

func TestCassandraConnSuite(t *testing.T) {
	suite.Run(t, new(CassandraConnSuite))
}

// SetupSuite initializes a C* session and creates the test tables
func (suite *CassandraConnSuite) SetupSuite() {
	host := os.Getenv(_hostEnv)
	if host == "" {
		suite.T().Skipf("%s not set", _hostEnv)
	}
	config := &Config{
		CassandraConn: &CassandraConn{
			ContactPoints: []string{host},
			CQLVersion:    "3.4.2",
		},
		StoreName: "achilles_test",
	}
	suite.scope = tally.NewTestScope("", map[string]string{})
	conn, err := NewCassandraConnector(config, suite.scope)
	suite.Require().NoError(err)
	suite.connector = conn.(*cassandraConnector)

	suffix := rand.New(rand.NewSource(time.Now().UnixNano())).Intn(100000)
	suite.simple = &base.Definition{
		Name: fmt.Sprintf("test_simple_%d", suffix),
		Key:  &base.PrimaryKey{PartitionKeys: []string{"id"}},
		ColumnToType: map[string]reflect.Type{
			"id":   reflect.TypeOf(int64(0)),
			"name": reflect.TypeOf(""),
			"data": reflect.TypeOf(""),
			"tags": reflect.TypeOf([]string{}),
		},
		ColumnKinds: map[string]base.ColumnKind{"tags": base.ListColumn},
	}
	suite.clustered = &base.Definition{
		Name: fmt.Sprintf("test_clustered_%d", suffix),
		Key: &base.PrimaryKey{
			PartitionKeys:  []string{"id"},
			ClusteringKeys: []*base.ClusteringKey{{Name: "ck", Descending: true}},
		},
		ColumnToType: map[string]reflect.Type{
			"id":   reflect.TypeOf(int64(0)),
			"ck":   reflect.TypeOf(int64(0)),
			"data": reflect.TypeOf(""),
		},
	}
	suite.counters = &base.Definition{
		Name: fmt.Sprintf("test_counters_%d", suffix),
		Key:  &base.PrimaryKey{PartitionKeys: []string{"id"}},
		ColumnToType: map[string]reflect.Type{
			"id":    reflect.TypeOf(""),
			"value": reflect.TypeOf(int64(0)),
		},
		ColumnKinds: map[string]base.ColumnKind{"value": base.CounterColumn},
	}
	ctx := context.Background()
	for _, def := range []*base.Definition{suite.simple, suite.clustered, suite.counters} {
		suite.Require().NoError(suite.connector.CreateTable(ctx, def))
	}
}

var keyRow = []base.Column{{Name: "id", Value: int64(1)}}

// TestCreateGetDelete creates a row in the test table and reads it back
// Then it deletes it and verifies that row was deleted
func (suite *CassandraConnSuite) TestCreateGetDelete() {
	ctx := consistency.WithLevel(context.Background(), consistency.One)
	row := append(keyRow,
		base.Column{Name: "name", Value: "test"},
		base.Column{Name: "tags", Value: []string{"a", "b"}})
	suite.NoError(suite.connector.Create(ctx, suite.simple, row, 0))

	result, err := suite.connector.Get(ctx, suite.simple, keyRow)
	suite.NoError(err)
	suite.Equal(int64(1), result["id"])
	suite.Equal("test", result["name"])
	suite.Nil(result["data"])
	suite.Equal([]string{"a", "b"}, result["tags"])

	suite.NoError(suite.connector.Delete(ctx, suite.simple, keyRow))
	_, err = suite.connector.Get(ctx, suite.simple, keyRow)
	suite.True(yarpcerrors.IsNotFound(err))

	// delete this row again from C*. It is a noop for C*
	// this should not result in error.
	suite.NoError(suite.connector.Delete(ctx, suite.simple, keyRow))
}

func (suite *CassandraConnSuite) TestCreateUpdateGet() {
	ctx := context.Background()
	row := append(keyRow, base.Column{Name: "name", Value: "test"})
	suite.NoError(suite.connector.Create(ctx, suite.simple, row, 0))

	err := suite.connector.Update(ctx, suite.simple,
		[]base.Column{{Name: "name", Value: "test-update"}}, keyRow, 0)
	suite.NoError(err)

	result, err := suite.connector.Get(ctx, suite.simple, keyRow, "name")
	suite.NoError(err)
	suite.Equal("test-update", result["name"])

	// you cannot use SET with primary key
	err = suite.connector.Update(ctx, suite.simple, row, keyRow, 0)
	suite.Error(err)
}

// TestGetAllIter tests iterating a partition with TTLs and ranges
func (suite *CassandraConnSuite) TestGetAllIter() {
	ctx := context.Background()
	for _, ck := range []int64{10, 20, 30} {
		suite.NoError(suite.connector.Create(ctx, suite.clustered, []base.Column{
			{Name: "id", Value: int64(1)},
			{Name: "ck", Value: ck},
			{Name: "data", Value: "d"},
		}, 300))
	}

	iter, err := suite.connector.GetAllIter(ctx, suite.clustered, keyRow,
		&base.SliceRange{From: []interface{}{int64(15)}, Reversed: true})
	suite.NoError(err)
	var cks []int64
	for {
		row, err := iter.Next()
		suite.NoError(err)
		if row == nil {
			break
		}
		for _, col := range row {
			switch col.Name {
			case "ck":
				cks = append(cks, col.Value.(int64))
			case "data":
				suite.True(col.TTL > 0 && col.TTL <= 300)
			}
		}
	}
	iter.Close()
	suite.Equal([]int64{20, 30}, cks)
}

// TestIncrementAndBatch tests counters and batched mutations
func (suite *CassandraConnSuite) TestIncrementAndBatch() {
	ctx := context.Background()
	keys := []base.Column{{Name: "id", Value: "c"}}
	suite.NoError(suite.connector.Increment(ctx, suite.counters, "value", 2, keys))

	err := suite.connector.ExecuteBatch(ctx, []*base.Mutation{
		{
			Op:         base.OpIncrement,
			Definition: suite.counters,
			Keys:       keys,
			Values:     []base.Column{{Name: "value", Value: int64(3)}},
		},
		{
			Op:         base.OpInsert,
			Definition: suite.simple,
			Keys:       []base.Column{{Name: "id", Value: int64(7)}},
			Values:     []base.Column{{Name: "name", Value: "batched"}},
		},
	})
	suite.NoError(err)

	result, err := suite.connector.Get(ctx, suite.counters, keys)
	suite.NoError(err)
	suite.Equal(int64(5), result["value"])
}

// TestDescribeTable tests reading back the layout of the test tables
func (suite *CassandraConnSuite) TestDescribeTable() {
	ctx := context.Background()
	def, err := suite.connector.DescribeTable(ctx, suite.clustered.Name)
	suite.NoError(err)
	suite.Equal([]string{"id"}, def.Key.PartitionKeys)
	suite.True(def.Key.ClusteringKeys[0].Descending)

	_, err = suite.connector.DescribeTable(ctx, "table_does_not_exist")
	suite.True(yarpcerrors.IsNotFound(err))
}

// TestDBFailures tests failures executing DB query
func (suite *CassandraConnSuite) TestDBFailures() {
	obj := &base.Definition{
		Name: "table_does_not_exist",
		Key:  &base.PrimaryKey{PartitionKeys: []string{"id"}},
		ColumnToType: map[string]reflect.Type{
			"id": reflect.TypeOf(int64(0)),
		},
	}
	ctx := context.Background()
	suite.Error(suite.connector.Create(ctx, obj, keyRow, 0))
	_, err := suite.connector.Get(ctx, obj, keyRow)
	suite.Error(err)
	suite.Error(suite.connector.Update(ctx, obj, keyRow, keyRow, 0))
	suite.Error(suite.connector.Delete(ctx, obj, keyRow))
}
