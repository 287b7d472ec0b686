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
	"bytes"
	"fmt"
	"reflect"
	"strings"
	"time"
)

// compareValues orders two column values of the same column. Numbers of
// different widths compare by value; pointers compare by their target.
func compareValues(a, b interface{}) int {
	av, bv := normalize(a), normalize(b)
	switch x := av.(type) {
	case nil:
		if bv == nil {
			return 0
		}
		return -1
	case int64:
		switch y := bv.(type) {
		case int64:
			return compareInt64(x, y)
		case uint64:
			if x < 0 {
				return -1
			}
			return compareUint64(uint64(x), y)
		case float64:
			return compareFloat64(float64(x), y)
		}
	case uint64:
		switch y := bv.(type) {
		case uint64:
			return compareUint64(x, y)
		case int64:
			if y < 0 {
				return 1
			}
			return compareUint64(x, uint64(y))
		case float64:
			return compareFloat64(float64(x), y)
		}
	case float64:
		switch y := bv.(type) {
		case float64:
			return compareFloat64(x, y)
		case int64:
			return compareFloat64(x, float64(y))
		case uint64:
			return compareFloat64(x, float64(y))
		}
	case string:
		if y, ok := bv.(string); ok {
			return strings.Compare(x, y)
		}
	case []byte:
		if y, ok := bv.([]byte); ok {
			return bytes.Compare(x, y)
		}
	case time.Time:
		if y, ok := bv.(time.Time); ok {
			switch {
			case x.Before(y):
				return -1
			case x.After(y):
				return 1
			}
			return 0
		}
	case bool:
		if y, ok := bv.(bool); ok {
			switch {
			case x == y:
				return 0
			case !x:
				return -1
			}
			return 1
		}
	}
	if bv == nil {
		return 1
	}
	return strings.Compare(fmt.Sprint(av), fmt.Sprint(bv))
}

func normalize(v interface{}) interface{} {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint()
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return rv.Bytes()
		}
	case reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			b := make([]byte, rv.Len())
			reflect.Copy(reflect.ValueOf(b), rv)
			return b
		}
	}
	return rv.Interface()
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareUint64(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareFloat64(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// copyValue returns a shallow copy of slices and maps so that stored rows do
// not alias caller memory.
func copyValue(v interface{}) interface{} {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice:
		if rv.IsNil() {
			return v
		}
		out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		reflect.Copy(out, rv)
		return out.Interface()
	case reflect.Map:
		if rv.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(rv.Type(), rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), iter.Value())
		}
		return out.Interface()
	}
	return v
}
