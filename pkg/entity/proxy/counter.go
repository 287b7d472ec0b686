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
	"context"
	"reflect"

	"github.com/robinvandenberg/Achilles/pkg/entity/meta"
)

var int64Type = reflect.TypeOf(int64(0))

// Counter reads and increments one counter property of an entity. Calls go
// to storage immediately; the entity field is kept in sync with the last
// value seen.
type Counter struct {
	owner *Entity
	pm    *meta.PropertyMeta
}

// Get reads the current counter value.
func (c *Counter) Get(ctx context.Context) (int64, error) {
	v, err := c.owner.counters.GetCounter(ctx, c.pm, c.owner.primaryKey)
	if err != nil {
		return 0, err
	}
	if err := c.pm.SetValue(c.owner.target, v); err != nil {
		return 0, err
	}
	return v, nil
}

// Incr adds one to the counter.
func (c *Counter) Incr(ctx context.Context) error {
	return c.IncrBy(ctx, 1)
}

// IncrBy adds delta to the counter.
func (c *Counter) IncrBy(ctx context.Context, delta int64) error {
	if err := c.owner.counters.IncrementCounter(ctx, c.pm, c.owner.primaryKey, delta); err != nil {
		return err
	}
	current, err := c.pm.GetValue(c.owner.target)
	if err != nil {
		return err
	}
	v, err := meta.ConvertValue(current, int64Type)
	if err != nil {
		return err
	}
	return c.pm.SetValue(c.owner.target, v.Int()+delta)
}

// Decr subtracts one from the counter.
func (c *Counter) Decr(ctx context.Context) error {
	return c.IncrBy(ctx, -1)
}

// DecrBy subtracts delta from the counter.
func (c *Counter) DecrBy(ctx context.Context, delta int64) error {
	return c.IncrBy(ctx, -delta)
}
