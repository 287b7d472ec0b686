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

// Scope carries the consistency levels of one logical operation. Each
// persistence context owns its own Scope, so concurrent calls with different
// explicit levels never observe each other's levels. A Scope is not safe for
// concurrent use.
//
// The effective read level is, in order: the current read level set for the
// operation, the level loaded for the column family being read, the global
// default. Writes follow the same rules.
type Scope struct {
	policy *Policy

	defaultRead  Level
	defaultWrite Level

	currentRead     Level
	currentWrite    Level
	hasCurrentRead  bool
	hasCurrentWrite bool
}

// SetCurrentReadLevel overrides the read level for the rest of the operation.
func (s *Scope) SetCurrentReadLevel(l Level) {
	s.currentRead = l
	s.hasCurrentRead = true
}

// SetCurrentWriteLevel overrides the write level for the rest of the
// operation.
func (s *Scope) SetCurrentWriteLevel(l Level) {
	s.currentWrite = l
	s.hasCurrentWrite = true
}

// CurrentReadLevel returns the current read level and whether one is set.
func (s *Scope) CurrentReadLevel() (Level, bool) {
	return s.currentRead, s.hasCurrentRead
}

// CurrentWriteLevel returns the current write level and whether one is set.
func (s *Scope) CurrentWriteLevel() (Level, bool) {
	return s.currentWrite, s.hasCurrentWrite
}

// DefaultReadLevel returns the read level used when no current level is set.
func (s *Scope) DefaultReadLevel() Level {
	return s.defaultRead
}

// DefaultWriteLevel returns the write level used when no current level is
// set.
func (s *Scope) DefaultWriteLevel() Level {
	return s.defaultWrite
}

// LoadConsistencyLevelForRead loads the read level configured for the column
// family into the default slot of the scope.
func (s *Scope) LoadConsistencyLevelForRead(columnFamily string) {
	s.defaultRead = s.policy.ReadLevelFor(columnFamily)
}

// LoadConsistencyLevelForWrite loads the write level configured for the
// column family into the default slot of the scope.
func (s *Scope) LoadConsistencyLevelForWrite(columnFamily string) {
	s.defaultWrite = s.policy.WriteLevelFor(columnFamily)
}

// ReadLevel returns the effective read level.
func (s *Scope) ReadLevel() Level {
	if s.hasCurrentRead {
		return s.currentRead
	}
	return s.defaultRead
}

// WriteLevel returns the effective write level.
func (s *Scope) WriteLevel() Level {
	if s.hasCurrentWrite {
		return s.currentWrite
	}
	return s.defaultWrite
}

// ReinitCurrentConsistencyLevels clears the current read and write levels.
func (s *Scope) ReinitCurrentConsistencyLevels() {
	s.currentRead, s.hasCurrentRead = 0, false
	s.currentWrite, s.hasCurrentWrite = 0, false
}

// ReinitDefaultConsistencyLevels restores the default slots to the global
// defaults of the policy.
func (s *Scope) ReinitDefaultConsistencyLevels() {
	s.defaultRead = s.policy.defaultRead
	s.defaultWrite = s.policy.defaultWrite
}

// Reinit restores both current and default levels.
func (s *Scope) Reinit() {
	s.ReinitCurrentConsistencyLevels()
	s.ReinitDefaultConsistencyLevels()
}

// IsPristine returns true when the scope carries no current level and its
// default slots equal the policy defaults.
func (s *Scope) IsPristine() bool {
	return !s.hasCurrentRead && !s.hasCurrentWrite &&
		s.defaultRead == s.policy.defaultRead &&
		s.defaultWrite == s.policy.defaultWrite
}
