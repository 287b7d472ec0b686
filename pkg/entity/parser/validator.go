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
	"strings"

	"github.com/robinvandenberg/Achilles/pkg/common"
	"github.com/robinvandenberg/Achilles/pkg/entity/meta"
)

// ValidateAtLeastOneEntity fails when discovery found no entity.
func ValidateAtLeastOneEntity(entities []Entity, packages []string) error {
	if len(entities) == 0 {
		return common.NewMappingError(
			"no entity found in packages '%s'", strings.Join(packages, ","))
	}
	return nil
}

// ValidateUniqueTables fails when two entities map to the same column family
// or when an entity uses the counter column family.
func ValidateUniqueTables(metas []*meta.EntityMeta) error {
	seen := make(map[string]string, len(metas))
	for _, em := range metas {
		if em.TableName == common.CounterColumnFamily {
			return common.NewMappingError(
				"entity '%s' cannot use the reserved column family '%s'",
				em.ClassName, em.TableName)
		}
		if other, ok := seen[em.TableName]; ok {
			return common.NewMappingError(
				"entities '%s' and '%s' both map to column family '%s'",
				other, em.ClassName, em.TableName)
		}
		seen[em.TableName] = em.ClassName
	}
	return nil
}
