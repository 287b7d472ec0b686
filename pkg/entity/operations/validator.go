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

package operations

import (
	"github.com/robinvandenberg/Achilles/pkg/common"
	"github.com/robinvandenberg/Achilles/pkg/entity/meta"

	"github.com/pkg/errors"
)

// EntityValidator checks entities handed to the entity manager.
type EntityValidator struct{}

// Validate checks that entity is a non nil pointer of the entity type with
// a complete primary key.
func (v *EntityValidator) Validate(em *meta.EntityMeta, entity interface{}) error {
	entity = unwrap(entity)
	if meta.IsNil(entity) {
		return errors.Errorf("entity '%s' must not be nil", em.ClassName)
	}
	if !em.IsInstance(entity) {
		return common.NewUnsupportedOperationError(
			"%T is not a pointer to entity '%s'", entity, em.ClassName)
	}
	_, err := em.PrimaryKeyValues(entity)
	return err
}

// ValidatePrimaryKey checks that primaryKey addresses exactly one row of
// the entity column family.
func (v *EntityValidator) ValidatePrimaryKey(em *meta.EntityMeta, primaryKey interface{}) error {
	if meta.IsNil(primaryKey) {
		return errors.Errorf("primary key of entity '%s' must not be nil", em.ClassName)
	}
	_, err := em.KeyColumns(primaryKey)
	return err
}
