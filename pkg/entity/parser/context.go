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

package parser

import (
	"reflect"

	"github.com/robinvandenberg/Achilles/pkg/entity/meta"
)

type pendingJoin struct {
	property *meta.PropertyMeta
	target   reflect.Type
}

// PendingJoins records join properties whose target descriptor is not known
// until every entity has been parsed. One instance is shared by all the
// parsing contexts of a bootstrap.
type PendingJoins struct {
	joins []pendingJoin
}

// Add records a join property and the struct type it references.
func (p *PendingJoins) Add(pm *meta.PropertyMeta, target reflect.Type) {
	p.joins = append(p.joins, pendingJoin{property: pm, target: target})
}

// Len returns the number of joins waiting to be resolved.
func (p *PendingJoins) Len() int {
	return len(p.joins)
}

// ParsingContext carries the state of parsing one entity type.
type ParsingContext struct {
	// Package is the registry package of the entity.
	Package string
	// EntityType is the struct type being parsed.
	EntityType reflect.Type
	// Joins is shared across the contexts of one bootstrap.
	Joins *PendingJoins
	// HasCounter is raised when the entity declares a counter property.
	HasCounter bool
}

// NewParsingContext creates a context for one entity type.
func NewParsingContext(
	joins *PendingJoins,
	pkg string,
	entityType reflect.Type,
) *ParsingContext {
	if joins == nil {
		joins = &PendingJoins{}
	}
	return &ParsingContext{
		Package:    pkg,
		EntityType: entityType,
		Joins:      joins,
	}
}
