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
	"reflect"

	"github.com/robinvandenberg/Achilles/pkg/storage/objects/base"

	"github.com/gocql/gocql"
	"github.com/pkg/errors"
)

// goType maps a CQL type to the Go type its values read back as.
func goType(ti gocql.TypeInfo) (reflect.Type, base.ColumnKind, error) {
	switch ti.Type() {
	case gocql.TypeAscii, gocql.TypeText, gocql.TypeVarchar:
		return reflect.TypeOf(""), base.SimpleColumn, nil
	case gocql.TypeBigInt:
		return reflect.TypeOf(int64(0)), base.SimpleColumn, nil
	case gocql.TypeCounter:
		return reflect.TypeOf(int64(0)), base.CounterColumn, nil
	case gocql.TypeInt:
		return reflect.TypeOf(int32(0)), base.SimpleColumn, nil
	case gocql.TypeSmallInt:
		return reflect.TypeOf(int16(0)), base.SimpleColumn, nil
	case gocql.TypeTinyInt:
		return reflect.TypeOf(int8(0)), base.SimpleColumn, nil
	case gocql.TypeBoolean:
		return reflect.TypeOf(false), base.SimpleColumn, nil
	case gocql.TypeFloat:
		return reflect.TypeOf(float32(0)), base.SimpleColumn, nil
	case gocql.TypeDouble:
		return reflect.TypeOf(float64(0)), base.SimpleColumn, nil
	case gocql.TypeBlob:
		return _bytesType, base.SimpleColumn, nil
	case gocql.TypeTimestamp:
		return _timeType, base.SimpleColumn, nil
	case gocql.TypeUUID, gocql.TypeTimeUUID:
		return _uuidType, base.SimpleColumn, nil
	case gocql.TypeList, gocql.TypeSet:
		ct, ok := ti.(gocql.CollectionType)
		if !ok {
			break
		}
		elem, _, err := goType(ct.Elem)
		if err != nil {
			return nil, 0, err
		}
		kind := base.ListColumn
		if ti.Type() == gocql.TypeSet {
			kind = base.SetColumn
		}
		return reflect.SliceOf(elem), kind, nil
	case gocql.TypeMap:
		ct, ok := ti.(gocql.CollectionType)
		if !ok {
			break
		}
		key, _, err := goType(ct.Key)
		if err != nil {
			return nil, 0, err
		}
		elem, _, err := goType(ct.Elem)
		if err != nil {
			return nil, 0, err
		}
		return reflect.MapOf(key, elem), base.MapColumn, nil
	}
	return nil, 0, errors.Errorf("unsupported CQL type %s", ti.Type())
}

// definitionFromMetadata converts gocql table metadata into a definition.
func definitionFromMetadata(tm *gocql.TableMetadata) (*base.Definition, error) {
	def := &base.Definition{
		Name:         tm.Name,
		Key:          &base.PrimaryKey{},
		ColumnToType: make(map[string]reflect.Type, len(tm.Columns)),
		ColumnKinds:  make(map[string]base.ColumnKind),
	}
	for _, col := range tm.PartitionKey {
		def.Key.PartitionKeys = append(def.Key.PartitionKeys, col.Name)
	}
	for _, col := range tm.ClusteringColumns {
		def.Key.ClusteringKeys = append(def.Key.ClusteringKeys, &base.ClusteringKey{
			Name:       col.Name,
			Descending: col.Order == gocql.DESC,
		})
	}
	for name, col := range tm.Columns {
		typ, kind, err := goType(col.Type)
		if err != nil {
			return nil, errors.Wrapf(err, "column %s of table %s", name, tm.Name)
		}
		def.ColumnToType[name] = typ
		if kind != base.SimpleColumn {
			def.ColumnKinds[name] = kind
		}
	}
	return def, nil
}
