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

package common

import (
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// MappingError is returned when an entity carries a bad, ambiguous or missing
// annotation combination. It is fatal at bootstrap.
type MappingError struct {
	msg string
}

func (e *MappingError) Error() string {
	return e.msg
}

// SchemaMismatchError is returned when a column family backing an entity is
// missing or incompatible with the entity mapping.
type SchemaMismatchError struct {
	ColumnFamily string
	msg          string
}

func (e *SchemaMismatchError) Error() string {
	return e.msg
}

// UnsupportedOperationError is returned when an operation is structurally
// invalid for the target, e.g. removing a counter value.
type UnsupportedOperationError struct {
	msg string
}

func (e *UnsupportedOperationError) Error() string {
	return e.msg
}

// NewMappingError creates a MappingError with a formatted message.
func NewMappingError(format string, args ...interface{}) error {
	return &MappingError{msg: fmt.Sprintf(format, args...)}
}

// NewSchemaMismatchError creates a SchemaMismatchError for a column family.
func NewSchemaMismatchError(cf string, format string, args ...interface{}) error {
	return &SchemaMismatchError{ColumnFamily: cf, msg: fmt.Sprintf(format, args...)}
}

// NewUnsupportedOperationError creates an UnsupportedOperationError.
func NewUnsupportedOperationError(format string, args ...interface{}) error {
	return &UnsupportedOperationError{msg: fmt.Sprintf(format, args...)}
}

// IsMappingError returns true if err, or any error it wraps or aggregates, is
// a MappingError.
func IsMappingError(err error) bool {
	var target *MappingError
	return hasError(err, func(e error) bool { return errors.As(e, &target) })
}

// IsSchemaMismatchError returns true if err, or any error it wraps or
// aggregates, is a SchemaMismatchError.
func IsSchemaMismatchError(err error) bool {
	var target *SchemaMismatchError
	return hasError(err, func(e error) bool { return errors.As(e, &target) })
}

// IsUnsupportedOperationError returns true if err, or any error it wraps or
// aggregates, is an UnsupportedOperationError.
func IsUnsupportedOperationError(err error) bool {
	var target *UnsupportedOperationError
	return hasError(err, func(e error) bool { return errors.As(e, &target) })
}

func hasError(err error, match func(error) bool) bool {
	if err == nil {
		return false
	}
	for _, e := range multierr.Errors(errors.Cause(err)) {
		if match(e) {
			return true
		}
	}
	return match(err)
}
