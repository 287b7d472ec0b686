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
	"time"
)

var (
	_int64Type = reflect.TypeOf(int64(0))
	_int32Type = reflect.TypeOf(int32(0))
	_int16Type = reflect.TypeOf(int16(0))
	_bytesType = reflect.TypeOf([]byte(nil))
	_timeType  = reflect.TypeOf(time.Time{})
)

// CanonicalType maps a Go type to the type a column of that Go type reads
// back as. Connectors describe existing column families with canonical types
// so the schema reconciler can compare them with entity mappings without
// knowing the storage type names.
func CanonicalType(t reflect.Type) reflect.Type {
	if t == nil {
		return nil
	}
	if t == _bytesType || t == _timeType {
		return t
	}
	switch t.Kind() {
	case reflect.Ptr:
		return CanonicalType(t.Elem())
	case reflect.Int, reflect.Int64, reflect.Uint, reflect.Uint32, reflect.Uint64:
		return _int64Type
	case reflect.Int32, reflect.Uint16:
		return _int32Type
	case reflect.Int16, reflect.Uint8:
		return _int16Type
	case reflect.Int8:
		return reflect.TypeOf(int8(0))
	case reflect.Float32:
		return reflect.TypeOf(float32(0))
	case reflect.Float64:
		return reflect.TypeOf(float64(0))
	case reflect.String:
		return reflect.TypeOf("")
	case reflect.Bool:
		return reflect.TypeOf(false)
	case reflect.Slice:
		return reflect.SliceOf(CanonicalType(t.Elem()))
	case reflect.Map:
		return reflect.MapOf(CanonicalType(t.Key()), CanonicalType(t.Elem()))
	}
	return t
}

// SameColumnType returns true when two column types read back identically.
func SameColumnType(a, b reflect.Type) bool {
	return CanonicalType(a) == CanonicalType(b)
}
