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

package operations

import (
	"context"
	"reflect"

	"github.com/robinvandenberg/Achilles/pkg/common"
	"github.com/robinvandenberg/Achilles/pkg/entity/persistence"
	"github.com/robinvandenberg/Achilles/pkg/entity/proxy"

	"go.uber.org/yarpc/yarpcerrors"
)

// Refresher reloads managed entities from storage.
type Refresher struct {
	loader *Loader
}

// Refresh overwrites the mapped fields of the managed entity of pc with the
// stored state and forgets its pending modifications. It fails when the row
// no longer exists.
func (r *Refresher) Refresh(ctx context.Context, pc *persistence.Context) error {
	e, ok := pc.Entity.(*proxy.Entity)
	if !ok {
		return common.NewUnsupportedOperationError(
			"only managed entities of '%s' can be refreshed, got %T",
			pc.Meta.ClassName, pc.Entity)
	}
	return r.refresh(ctx, pc, e)
}

func (r *Refresher) refresh(ctx context.Context, pc *persistence.Context, e *proxy.Entity) error {
	em := e.Meta()
	fresh, err := r.loader.load(ctx, pc, em, e.PrimaryKey(), true)
	if err != nil {
		return err
	}
	if fresh == nil {
		return yarpcerrors.NotFoundErrorf(
			"entity '%s' with primary key %v no longer exists", em.ClassName, e.PrimaryKey())
	}

	target := reflect.ValueOf(e.Unproxy()).Elem()
	source := reflect.ValueOf(fresh).Elem()
	for _, pm := range em.PropertyMap {
		target.FieldByIndex(pm.FieldIndex).Set(source.FieldByIndex(pm.FieldIndex))
	}
	e.ClearDirty()
	e.MarkLoaded()
	return nil
}
