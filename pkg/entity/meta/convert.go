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

package meta

import (
	"reflect"

	"github.com/pkg/errors"
)

// ConvertValue converts a value read from storage, or supplied by a caller,
// into a reflect.Value of type typ. Connectors hand back driver types
// (int64 for bigint, []interface{} from generic decoders, pointers for
// nullable columns), so numeric widths, pointers, slices and maps are
// converted element by element. nil converts to the zero value.
func ConvertValue(value interface{}, typ reflect.Type) (reflect.Value, error) {
	if value == nil {
		return reflect.Zero(typ), nil
	}
	return convert(reflect.ValueOf(value), typ)
}

func convert(v reflect.Value, typ reflect.Type) (reflect.Value, error) {
	if !v.IsValid() {
		return reflect.Zero(typ), nil
	}
	if v.Type().AssignableTo(typ) {
		return v, nil
	}

	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Zero(typ), nil
		}
		return convert(v.Elem(), typ)
	}

	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return reflect.Zero(typ), nil
		}
		if typ.Kind() != reflect.Ptr {
			return convert(v.Elem(), typ)
		}
	}

	if typ.Kind() == reflect.Ptr {
		inner, err := convert(v, typ.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		p := reflect.New(typ.Elem())
		p.Elem().Set(inner)
		return p, nil
	}

	switch typ.Kind() {
	case reflect.Slice:
		if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
			break
		}
		out := reflect.MakeSlice(typ, v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			e, err := convert(v.Index(i), typ.Elem())
			if err != nil {
				return reflect.Value{}, errors.Wrapf(err, "element %d", i)
			}
			out.Index(i).Set(e)
		}
		return out, nil
	case reflect.Map:
		if v.Kind() != reflect.Map {
			break
		}
		out := reflect.MakeMapWithSize(typ, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			k, err := convert(iter.Key(), typ.Key())
			if err != nil {
				return reflect.Value{}, errors.Wrap(err, "map key")
			}
			e, err := convert(iter.Value(), typ.Elem())
			if err != nil {
				return reflect.Value{}, errors.Wrap(err, "map value")
			}
			out.SetMapIndex(k, e)
		}
		return out, nil
	case reflect.String:
		// integer to string conversion would produce a rune
		if v.Kind() != reflect.String {
			break
		}
		return v.Convert(typ), nil
	}

	if isNumber(v.Kind()) && isNumber(typ.Kind()) {
		return v.Convert(typ), nil
	}
	if v.Type().ConvertibleTo(typ) && v.Kind() == typ.Kind() {
		return v.Convert(typ), nil
	}
	return reflect.Value{}, errors.Errorf(
		"cannot convert value of type %s to %s", v.Type(), typ)
}

func isNumber(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
