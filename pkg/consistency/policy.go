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

// Policy holds the configured consistency levels: a default read level, a
// default write level, and per column family overrides for both. A Policy is
// built once at factory bootstrap and never mutated afterwards, so it is safe
// to share between goroutines. Per call levels live in a Scope.
type Policy struct {
	defaultRead  Level
	defaultWrite Level
	readMap      map[string]Level
	writeMap     map[string]Level
}

// NewPolicy creates a Policy. The maps are copied.
func NewPolicy(
	defaultRead Level,
	defaultWrite Level,
	readMap map[string]Level,
	writeMap map[string]Level,
) *Policy {
	p := &Policy{
		defaultRead:  defaultRead,
		defaultWrite: defaultWrite,
		readMap:      make(map[string]Level, len(readMap)),
		writeMap:     make(map[string]Level, len(writeMap)),
	}
	for cf, l := range readMap {
		p.readMap[cf] = l
	}
	for cf, l := range writeMap {
		p.writeMap[cf] = l
	}
	return p
}

// NewDefaultPolicy creates a Policy using DefaultLevel everywhere.
func NewDefaultPolicy() *Policy {
	return NewPolicy(DefaultLevel, DefaultLevel, nil, nil)
}

// DefaultReadLevel returns the global default read level.
func (p *Policy) DefaultReadLevel() Level {
	return p.defaultRead
}

// DefaultWriteLevel returns the global default write level.
func (p *Policy) DefaultWriteLevel() Level {
	return p.defaultWrite
}

// ReadLevelFor returns the read level configured for a column family,
// falling back to the global default.
func (p *Policy) ReadLevelFor(columnFamily string) Level {
	if l, ok := p.readMap[columnFamily]; ok {
		return l
	}
	return p.defaultRead
}

// WriteLevelFor returns the write level configured for a column family,
// falling back to the global default.
func (p *Policy) WriteLevelFor(columnFamily string) Level {
	if l, ok := p.writeMap[columnFamily]; ok {
		return l
	}
	return p.defaultWrite
}

// NewScope opens a Scope with the policy defaults and no current levels.
func (p *Policy) NewScope() *Scope {
	return &Scope{
		policy:       p,
		defaultRead:  p.defaultRead,
		defaultWrite: p.defaultWrite,
	}
}
