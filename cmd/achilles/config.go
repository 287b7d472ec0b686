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

package main

import (
	"github.com/robinvandenberg/Achilles/pkg/entity/manager"
)

// Config is the configuration of the achilles tool.
type Config struct {
	// Achilles is the entity manager factory configuration
	Achilles manager.Config `yaml:"achilles"`
}
