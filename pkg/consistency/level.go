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

package consistency

import (
	"context"
	"strings"

	"github.com/gocql/gocql"
	"github.com/pkg/errors"
)

// Level is the consistency level requested from Cassandra for one read or
// write. Semantics of each level are available here
// https://docs.datastax.com/en/cassandra/3.0/cassandra/dml/dmlConfigConsistency.html
type Level gocql.Consistency

// Public consistency levels
const (
	// Any maps to cassandra consistency "ANY"
	Any = Level(gocql.Any)
	// One maps to cassandra consistency "ONE"
	One = Level(gocql.One)
	// Two maps to cassandra consistency "TWO"
	Two = Level(gocql.Two)
	// Three maps to cassandra consistency "THREE"
	Three = Level(gocql.Three)
	// Quorum maps to cassandra consistency "QUORUM"
	Quorum = Level(gocql.Quorum)
	// All maps to cassandra consistency "ALL"
	All = Level(gocql.All)
	// LocalQuorum maps to cassandra consistency "LOCAL_QUORUM"
	LocalQuorum = Level(gocql.LocalQuorum)
	// EachQuorum maps to cassandra consistency "EACH_QUORUM"
	EachQuorum = Level(gocql.EachQuorum)
	// LocalOne maps to cassandra consistency "LOCAL_ONE"
	LocalOne = Level(gocql.LocalOne)
)

// DefaultLevel is used for reads and writes when nothing is configured.
const DefaultLevel = One

// String returns the cassandra name of the level, e.g. "LOCAL_QUORUM".
func (l Level) String() string {
	return gocql.Consistency(l).String()
}

// Gocql returns the driver representation of the level.
func (l Level) Gocql() gocql.Consistency {
	return gocql.Consistency(l)
}

// ParseLevel parses a level name such as "quorum" or "LOCAL_ONE".
func ParseLevel(s string) (Level, error) {
	c, err := gocql.ParseConsistencyWrapper(strings.TrimSpace(s))
	if err != nil {
		return 0, errors.Wrapf(err, "invalid consistency level %q", s)
	}
	return Level(c), nil
}

// ParseLevelMap parses a column family to level name mapping.
func ParseLevelMap(m map[string]string) (map[string]Level, error) {
	levels := make(map[string]Level, len(m))
	for cf, name := range m {
		l, err := ParseLevel(name)
		if err != nil {
			return nil, errors.Wrapf(err, "column family %q", cf)
		}
		levels[cf] = l
	}
	return levels, nil
}

type contextKey string

// levelKey is used to reference the consistency level of a storage call in
// the context
const levelKey = contextKey("achilles.consistency.level")

// WithLevel returns a context carrying the consistency level connectors must
// apply to the storage call made with it.
func WithLevel(ctx context.Context, l Level) context.Context {
	return context.WithValue(ctx, levelKey, l)
}

// LevelFromContext retrieves the consistency level from the context if set.
func LevelFromContext(ctx context.Context) (Level, bool) {
	l, ok := ctx.Value(levelKey).(Level)
	return l, ok
}
