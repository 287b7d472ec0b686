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

// CounterProperties binds a counter property to the entity owning it: the
// fully qualified class name and the descriptor of the entity's partition
// key, both used to locate the counter row.
type CounterProperties struct {
	FQCN   string
	IDMeta *PropertyMeta
}

// NewCounterProperties creates CounterProperties.
func NewCounterProperties(fqcn string, idMeta *PropertyMeta) *CounterProperties {
	return &CounterProperties{FQCN: fqcn, IDMeta: idMeta}
}
