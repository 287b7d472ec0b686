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

package proxy

import (
	"reflect"

	"github.com/robinvandenberg/Achilles/pkg/entity/meta"

	"github.com/pkg/errors"
)

func elementValue(v interface{}, typ reflect.Type) (reflect.Value, error) {
	return meta.ConvertValue(v, typ)
}

// List wraps a list property. Every mutation is written back to the entity
// field and marks the property dirty.
type List struct {
	owner *Entity
	pm    *meta.PropertyMeta
	field reflect.Value
}

// Len returns the number of elements.
func (l *List) Len() int {
	return l.field.Len()
}

// Get returns the element at index i.
func (l *List) Get(i int) (interface{}, error) {
	if i < 0 || i >= l.field.Len() {
		return nil, errors.Errorf("index %d out of range [0, %d)", i, l.field.Len())
	}
	return l.field.Index(i).Interface(), nil
}

// Values returns the elements.
func (l *List) Values() interface{} {
	return l.field.Interface()
}

// Add appends elements.
func (l *List) Add(values ...interface{}) error {
	s := l.field
	for _, v := range values {
		ev, err := elementValue(v, l.pm.ElementType)
		if err != nil {
			return err
		}
		s = reflect.Append(s, ev)
	}
	l.field.Set(s)
	l.owner.markDirty(l.pm)
	return nil
}

// Set replaces the element at index i.
func (l *List) Set(i int, value interface{}) error {
	if i < 0 || i >= l.field.Len() {
		return errors.Errorf("index %d out of range [0, %d)", i, l.field.Len())
	}
	ev, err := elementValue(value, l.pm.ElementType)
	if err != nil {
		return err
	}
	l.field.Index(i).Set(ev)
	l.owner.markDirty(l.pm)
	return nil
}

// Remove deletes the element at index i.
func (l *List) Remove(i int) error {
	n := l.field.Len()
	if i < 0 || i >= n {
		return errors.Errorf("index %d out of range [0, %d)", i, n)
	}
	s := reflect.MakeSlice(l.field.Type(), 0, n-1)
	s = reflect.AppendSlice(s, l.field.Slice(0, i))
	s = reflect.AppendSlice(s, l.field.Slice(i+1, n))
	l.field.Set(s)
	l.owner.markDirty(l.pm)
	return nil
}

// Clear removes every element.
func (l *List) Clear() {
	l.field.Set(reflect.Zero(l.field.Type()))
	l.owner.markDirty(l.pm)
}

// Set wraps a set property stored as a slice of distinct elements.
type Set struct {
	owner *Entity
	pm    *meta.PropertyMeta
	field reflect.Value
}

func (s *Set) indexOf(v reflect.Value) int {
	for i := 0; i < s.field.Len(); i++ {
		if reflect.DeepEqual(s.field.Index(i).Interface(), v.Interface()) {
			return i
		}
	}
	return -1
}

// Len returns the number of elements.
func (s *Set) Len() int {
	return s.field.Len()
}

// Values returns the elements.
func (s *Set) Values() interface{} {
	return s.field.Interface()
}

// Contains returns true when value is an element of the set.
func (s *Set) Contains(value interface{}) bool {
	ev, err := elementValue(value, s.pm.ElementType)
	if err != nil {
		return false
	}
	return s.indexOf(ev) >= 0
}

// Add inserts elements not already present.
func (s *Set) Add(values ...interface{}) error {
	for _, v := range values {
		ev, err := elementValue(v, s.pm.ElementType)
		if err != nil {
			return err
		}
		if s.indexOf(ev) < 0 {
			s.field.Set(reflect.Append(s.field, ev))
		}
	}
	s.owner.markDirty(s.pm)
	return nil
}

// Remove deletes an element. Removing a missing element is a no-op.
func (s *Set) Remove(value interface{}) error {
	ev, err := elementValue(value, s.pm.ElementType)
	if err != nil {
		return err
	}
	i := s.indexOf(ev)
	if i < 0 {
		return nil
	}
	n := s.field.Len()
	out := reflect.MakeSlice(s.field.Type(), 0, n-1)
	out = reflect.AppendSlice(out, s.field.Slice(0, i))
	out = reflect.AppendSlice(out, s.field.Slice(i+1, n))
	s.field.Set(out)
	s.owner.markDirty(s.pm)
	return nil
}

// Clear removes every element.
func (s *Set) Clear() {
	s.field.Set(reflect.Zero(s.field.Type()))
	s.owner.markDirty(s.pm)
}

// Map wraps a map property.
type Map struct {
	owner *Entity
	pm    *meta.PropertyMeta
	field reflect.Value
}

// Len returns the number of entries.
func (m *Map) Len() int {
	return m.field.Len()
}

// Values returns the underlying map.
func (m *Map) Values() interface{} {
	return m.field.Interface()
}

// Get returns the value stored under key and whether it is present.
func (m *Map) Get(key interface{}) (interface{}, bool) {
	kv, err := elementValue(key, m.pm.KeyType)
	if err != nil || m.field.IsNil() {
		return nil, false
	}
	v := m.field.MapIndex(kv)
	if !v.IsValid() {
		return nil, false
	}
	return v.Interface(), true
}

// Put stores value under key.
func (m *Map) Put(key, value interface{}) error {
	kv, err := elementValue(key, m.pm.KeyType)
	if err != nil {
		return err
	}
	vv, err := elementValue(value, m.pm.ElementType)
	if err != nil {
		return err
	}
	if m.field.IsNil() {
		m.field.Set(reflect.MakeMap(m.field.Type()))
	}
	m.field.SetMapIndex(kv, vv)
	m.owner.markDirty(m.pm)
	return nil
}

// Remove deletes the entry stored under key.
func (m *Map) Remove(key interface{}) error {
	kv, err := elementValue(key, m.pm.KeyType)
	if err != nil {
		return err
	}
	if m.field.IsNil() {
		return nil
	}
	m.field.SetMapIndex(kv, reflect.Value{})
	m.owner.markDirty(m.pm)
	return nil
}

// Clear removes every entry.
func (m *Map) Clear() {
	m.field.Set(reflect.Zero(m.field.Type()))
	m.owner.markDirty(m.pm)
}
