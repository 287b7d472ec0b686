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
	"sync"

	"github.com/robinvandenberg/Achilles/pkg/storage/objects/base"

	log "github.com/sirupsen/logrus"
)

// Entity is a registered entity type together with the package it was
// registered under.
type Entity struct {
	Package string
	Type    reflect.Type
}

var (
	registryLock sync.RWMutex
	// registry is the process wide list of entity types. Entities are added
	// from init functions of the packages declaring them, in registration
	// order.
	registry []Entity
)

// RegisterEntity adds an entity type to the registry under a package name.
// It is usually called from an init function:
//
//	func init() {
//		parser.RegisterEntity("samples", &Sensor{})
//	}
//
// Registering the same type twice is a no-op.
func RegisterEntity(pkg string, entity base.Object) {
	t := reflect.TypeOf(entity)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	registryLock.Lock()
	defer registryLock.Unlock()
	for _, e := range registry {
		if e.Type == t {
			return
		}
	}
	registry = append(registry, Entity{Package: pkg, Type: t})
	log.WithFields(log.Fields{
		"package": pkg,
		"entity":  t.Name(),
	}).Debug("entity registered")
}

// Discover returns the entity types registered under any of the given
// packages, in registration order. Finding no entity at all is a mapping
// error.
func Discover(packages []string) ([]Entity, error) {
	wanted := make(map[string]bool, len(packages))
	for _, p := range packages {
		wanted[p] = true
	}

	registryLock.RLock()
	defer registryLock.RUnlock()

	var entities []Entity
	for _, e := range registry {
		if wanted[e.Package] {
			entities = append(entities, e)
		}
	}
	if err := ValidateAtLeastOneEntity(entities, packages); err != nil {
		return nil, err
	}
	return entities, nil
}
