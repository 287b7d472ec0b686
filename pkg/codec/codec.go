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

// Package codec converts property values that have no native column type
// to and from bytes. Round tripping through a Codec must be exact for every
// simple, collection and counter type an entity declares.
package codec

import (
	"reflect"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

// Codec encodes values into bytes and decodes them back into a declared type.
type Codec interface {
	// Encode serializes a value.
	Encode(v interface{}) ([]byte, error)
	// Decode deserializes data into a new value of type typ.
	Decode(data []byte, typ reflect.Type) (interface{}, error)
}

// Factory returns the Codec to use for an entity type.
type Factory interface {
	CodecFor(entityType reflect.Type) Codec
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func(entityType reflect.Type) Codec

// CodecFor calls f.
func (f FactoryFunc) CodecFor(entityType reflect.Type) Codec {
	return f(entityType)
}

type jsonCodec struct{}

// NewJSONCodec returns a Codec writing JSON documents.
func NewJSONCodec() Codec {
	return jsonCodec{}
}

// NewDefaultFactory returns a Factory handing out the JSON codec for every
// entity type.
func NewDefaultFactory() Factory {
	c := NewJSONCodec()
	return FactoryFunc(func(reflect.Type) Codec { return c })
}

func (jsonCodec) Encode(v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot encode value of type %T", v)
	}
	return b, nil
}

func (jsonCodec) Decode(data []byte, typ reflect.Type) (interface{}, error) {
	ptr := reflect.New(typ)
	if len(data) == 0 {
		return ptr.Elem().Interface(), nil
	}
	if err := json.Unmarshal(data, ptr.Interface()); err != nil {
		return nil, errors.Wrapf(err, "cannot decode value into %s", typ)
	}
	return ptr.Elem().Interface(), nil
}
