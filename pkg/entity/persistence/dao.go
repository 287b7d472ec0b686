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

package persistence

import (
	"reflect"

	"github.com/robinvandenberg/Achilles/pkg/codec"
	"github.com/robinvandenberg/Achilles/pkg/entity/meta"
	"github.com/robinvandenberg/Achilles/pkg/storage/objects/base"
	"github.com/robinvandenberg/Achilles/pkg/storage/orm"
)

// DAOContext groups the storage collaborators shared by every persistence
// context of an entity manager factory.
type DAOContext struct {
	Connector         orm.Connector
	CounterDefinition *base.Definition
	Codecs            codec.Factory
}

// NewDAOContext creates a DAOContext. A nil codec factory falls back to the
// default JSON codec.
func NewDAOContext(connector orm.Connector, codecs codec.Factory) *DAOContext {
	if codecs == nil {
		codecs = codec.NewDefaultFactory()
	}
	return &DAOContext{
		Connector:         connector,
		CounterDefinition: meta.CounterDefinition(),
		Codecs:            codecs,
	}
}

// CodecFor returns the codec of an entity type.
func (d *DAOContext) CodecFor(entityType reflect.Type) codec.Codec {
	return d.Codecs.CodecFor(entityType)
}
