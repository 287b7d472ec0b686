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
	"regexp"
	"strconv"
	"strings"

	"github.com/robinvandenberg/Achilles/pkg/common"
)

const (
	// entityTagKey is the tag on the embedded base.Object field.
	entityTagKey = "cassandra"
	// columnTagKey is the tag on mapped fields.
	columnTagKey = "column"

	nameOption          = "name"
	partitionKeyOption  = "partition_key"
	clusteringKeyOption = "clustering_key"
	counterOption       = "counter"
	joinOption          = "join"
	cascadeOption       = "cascade"
	listOption          = "list"
	setOption           = "set"
	mapOption           = "map"
)

// Cassandra identifiers: letters, digits and underscores, at most 48 chars.
var identifierRegexp = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]{0,47}$`)

var knownColumnOptions = map[string]bool{
	partitionKeyOption:  true,
	clusteringKeyOption: true,
	counterOption:       true,
	joinOption:          true,
	cascadeOption:       true,
	listOption:          true,
	setOption:           true,
	mapOption:           true,
}

// columnTag is the parsed form of a `column` struct tag.
type columnTag struct {
	name            string
	partitionKey    bool
	clusteringKey   bool
	clusteringOrder int
	counter         bool
	join            bool
	cascade         bool
	list            bool
	set             bool
	isMap           bool
}

// parseTagOptions splits "name=x, opt, opt=y" into an ordered list of
// key/value pairs.
func parseTagOptions(tag string) [][2]string {
	var opts [][2]string
	for _, part := range strings.Split(tag, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		opt := [2]string{strings.TrimSpace(kv[0])}
		if len(kv) == 2 {
			opt[1] = strings.TrimSpace(kv[1])
		}
		opts = append(opts, opt)
	}
	return opts
}

// parseColumnTag parses the `column` tag of a field. ok is false when the
// field carries no such tag and is therefore transient.
func parseColumnTag(field reflect.StructField) (tag *columnTag, ok bool, err error) {
	raw, ok := field.Tag.Lookup(columnTagKey)
	if !ok {
		return nil, false, nil
	}
	opts := parseTagOptions(raw)
	if len(opts) == 0 || opts[0][0] != nameOption || opts[0][1] == "" {
		return nil, true, common.NewMappingError(
			"column tag of field '%s' must start with name=<column>", field.Name)
	}
	tag = &columnTag{name: opts[0][1]}
	if !identifierRegexp.MatchString(tag.name) {
		return nil, true, common.NewMappingError(
			"invalid column name '%s' on field '%s'", tag.name, field.Name)
	}

	for _, opt := range opts[1:] {
		if !knownColumnOptions[opt[0]] {
			return nil, true, common.NewMappingError(
				"unknown option '%s' on field '%s'", opt[0], field.Name)
		}
		switch opt[0] {
		case partitionKeyOption:
			tag.partitionKey = true
		case clusteringKeyOption:
			order, err := strconv.Atoi(opt[1])
			if err != nil {
				return nil, true, common.NewMappingError(
					"clustering_key of field '%s' requires an integer sequence, got '%s'",
					field.Name, opt[1])
			}
			tag.clusteringKey = true
			tag.clusteringOrder = order
		case counterOption:
			tag.counter = true
		case joinOption:
			tag.join = true
		case cascadeOption:
			tag.cascade = true
		case listOption:
			tag.list = true
		case setOption:
			tag.set = true
		case mapOption:
			tag.isMap = true
		}
	}
	return tag, true, nil
}

// parseEntityTag returns the column family name declared on the embedded
// base.Object field.
func parseEntityTag(field reflect.StructField) (string, error) {
	raw, ok := field.Tag.Lookup(entityTagKey)
	if !ok {
		return "", nil
	}
	for _, opt := range parseTagOptions(raw) {
		if opt[0] == nameOption {
			if !identifierRegexp.MatchString(opt[1]) {
				return "", common.NewMappingError(
					"invalid column family name '%s'", opt[1])
			}
			return opt[1], nil
		}
	}
	return "", nil
}
