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

package schema

import (
	"context"
	"sort"

	"github.com/robinvandenberg/Achilles/pkg/common"
	"github.com/robinvandenberg/Achilles/pkg/entity/meta"
	"github.com/robinvandenberg/Achilles/pkg/storage/objects/base"
	"github.com/robinvandenberg/Achilles/pkg/storage/orm"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/uber-go/tally/v4"
	"go.uber.org/multierr"
	"go.uber.org/yarpc/yarpcerrors"
)

// Reconciler makes sure every column family an entity maps to exists with
// the expected layout.
type Reconciler struct {
	connector orm.SchemaConnector

	created    tally.Counter
	validated  tally.Counter
	mismatched tally.Counter
}

// NewReconciler creates a Reconciler.
func NewReconciler(connector orm.SchemaConnector, scope tally.Scope) *Reconciler {
	s := scope.SubScope("schema")
	return &Reconciler{
		connector:  connector,
		created:    s.Counter("column_family_created"),
		validated:  s.Counter("column_family_validated"),
		mismatched: s.Counter("column_family_mismatch"),
	}
}

// ValidateOrCreateColumnFamilies checks the column family of every entity,
// then the counter column family when hasCounter is set. Missing column
// families are created when force is set, otherwise they are reported as
// schema mismatches. Every mismatch is reported, not only the first one.
func (r *Reconciler) ValidateOrCreateColumnFamilies(
	ctx context.Context,
	metas meta.EntityMetaMap,
	force bool,
	hasCounter bool,
) error {
	var errs error
	for _, em := range sortedMetas(metas) {
		errs = multierr.Append(errs, r.validateOrCreate(ctx, em.Definition(), force))
	}
	if hasCounter {
		errs = multierr.Append(errs, r.validateOrCreate(ctx, meta.CounterDefinition(), force))
	}
	return errs
}

func sortedMetas(metas meta.EntityMetaMap) []*meta.EntityMeta {
	list := make([]*meta.EntityMeta, 0, len(metas))
	for _, em := range metas {
		list = append(list, em)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].TableName < list[j].TableName
	})
	return list
}

func (r *Reconciler) validateOrCreate(
	ctx context.Context,
	expected *base.Definition,
	force bool,
) error {
	logger := log.WithField(common.ColumnFamilyLogField, expected.Name)

	actual, err := r.connector.DescribeTable(ctx, expected.Name)
	switch {
	case err == nil:
		if err := Compare(expected, actual); err != nil {
			r.mismatched.Inc(1)
			logger.WithError(err).Error("column family does not match entity mapping")
			return err
		}
		r.validated.Inc(1)
		logger.Debug("column family validated")
		return nil

	case yarpcerrors.IsNotFound(err):
		if !force {
			r.mismatched.Inc(1)
			return common.NewSchemaMismatchError(expected.Name,
				"column family '%s' does not exist and force creation is disabled",
				expected.Name)
		}
		if err := r.connector.CreateTable(ctx, expected); err != nil {
			return errors.Wrapf(err, "failed to create column family '%s'", expected.Name)
		}
		r.created.Inc(1)
		logger.Info("column family created")
		return nil
	}
	return errors.Wrapf(err, "failed to describe column family '%s'", expected.Name)
}

// Compare checks an existing column family layout against the layout an
// entity expects: same partition and clustering key names in the same
// order, and every expected column present with a compatible type. Extra
// columns in the column family are allowed.
func Compare(expected, actual *base.Definition) error {
	mismatch := func(format string, args ...interface{}) error {
		return common.NewSchemaMismatchError(expected.Name, format, args...)
	}

	if !equalStrings(expected.Key.PartitionKeys, actual.Key.PartitionKeys) {
		return mismatch("partition key %v, expected %v",
			actual.Key.PartitionKeys, expected.Key.PartitionKeys)
	}
	if len(expected.Key.ClusteringKeys) != len(actual.Key.ClusteringKeys) {
		return mismatch("%d clustering keys, expected %d",
			len(actual.Key.ClusteringKeys), len(expected.Key.ClusteringKeys))
	}
	for i, ck := range expected.Key.ClusteringKeys {
		if actual.Key.ClusteringKeys[i].Name != ck.Name {
			return mismatch("clustering key #%d is '%s', expected '%s'",
				i+1, actual.Key.ClusteringKeys[i].Name, ck.Name)
		}
	}

	for name, typ := range expected.ColumnToType {
		actualType, ok := actual.ColumnToType[name]
		if !ok {
			return mismatch("column '%s' is missing", name)
		}
		if !base.SameColumnType(typ, actualType) {
			return mismatch("column '%s' has type %s, expected %s",
				name, base.CanonicalType(actualType), base.CanonicalType(typ))
		}
		if expected.KindOf(name) != actual.KindOf(name) {
			return mismatch("column '%s' has a different collection kind", name)
		}
	}
	return nil
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
