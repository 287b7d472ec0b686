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

package base

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalType(t *testing.T) {
	s := "x"
	data := []struct {
		in  interface{}
		out interface{}
	}{
		{int(1), int64(0)},
		{uint64(1), int64(0)},
		{int32(1), int32(0)},
		{&s, ""},
		{[]byte("b"), []byte(nil)},
		{time.Now(), time.Time{}},
		{[]int{1}, []int64(nil)},
		{map[string]uint32{}, map[string]int64(nil)},
		{float32(1), float32(0)},
	}
	for _, d := range data {
		assert.Equal(t,
			reflect.TypeOf(d.out),
			CanonicalType(reflect.TypeOf(d.in)),
			"type %T", d.in)
	}
	assert.True(t, SameColumnType(reflect.TypeOf(int(0)), reflect.TypeOf(int64(0))))
	assert.False(t, SameColumnType(reflect.TypeOf(""), reflect.TypeOf(int64(0))))
	assert.Nil(t, CanonicalType(nil))
}

func TestDefinitionColumnsToRead(t *testing.T) {
	def := &Definition{
		Name: "sensor",
		Key: &PrimaryKey{
			PartitionKeys:  []string{"id"},
			ClusteringKeys: []*ClusteringKey{{Name: "date"}},
		},
		ColumnToType: map[string]reflect.Type{
			"id":    reflect.TypeOf(int64(0)),
			"date":  reflect.TypeOf(time.Time{}),
			"value": reflect.TypeOf(float64(0)),
			"type":  reflect.TypeOf(""),
		},
		ColumnKinds: map[string]ColumnKind{"value": SimpleColumn},
	}
	assert.Equal(t, []string{"id", "date", "type", "value"}, def.GetColumnsToRead())
	assert.True(t, def.IsKeyColumn("date"))
	assert.False(t, def.IsKeyColumn("type"))
	assert.Equal(t, SimpleColumn, def.KindOf("type"))
	assert.Equal(t, "increment", OpIncrement.String())
}
