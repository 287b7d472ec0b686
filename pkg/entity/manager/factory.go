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

package manager

import (
	"context"

	"github.com/robinvandenberg/Achilles/pkg/common"
	"github.com/robinvandenberg/Achilles/pkg/consistency"
	"github.com/robinvandenberg/Achilles/pkg/entity/meta"
	"github.com/robinvandenberg/Achilles/pkg/entity/operations"
	"github.com/robinvandenberg/Achilles/pkg/entity/parser"
	"github.com/robinvandenberg/Achilles/pkg/entity/persistence"
	"github.com/robinvandenberg/Achilles/pkg/storage/orm"
	"github.com/robinvandenberg/Achilles/pkg/storage/schema"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/uber-go/tally/v4"
)

// EntityManagerFactory holds the entity metadata of a keyspace and creates
// entity managers over it.
type EntityManagerFactory struct {
	metas     meta.EntityMetaMap
	connector orm.Connector
	policy    *consistency.Policy
	dao       *persistence.DAOContext
	backend   Backend
	metrics   *Metrics
}

// NewEntityManagerFactory bootstraps a factory from a configuration map,
// see the *Param constants. The entities are parsed and their column
// families are validated, or created when ForceCFCreationParam is set.
// Any failure aborts the bootstrap.
func NewEntityManagerFactory(
	ctx context.Context,
	configMap map[string]interface{},
	scope tally.Scope,
) (*EntityManagerFactory, error) {
	args := NewArgumentExtractor(scope)

	packages, err := args.InitEntityPackages(configMap)
	if err != nil {
		return nil, err
	}
	force, err := args.InitForceCFCreation(configMap)
	if err != nil {
		return nil, err
	}
	codecs, err := args.InitCodecFactory(configMap)
	if err != nil {
		return nil, err
	}
	policy, err := args.InitConsistencyPolicy(configMap)
	if err != nil {
		return nil, err
	}

	metas, hasCounter, err := parser.New().ParseAll(packages)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse entities")
	}
	log.WithFields(log.Fields{
		"packages": packages,
		"entities": len(metas),
	}).Info("entities parsed")

	_, given := configMap[ConnectorParam]
	connector, err := args.InitConnector(configMap)
	if err != nil {
		return nil, err
	}

	reconciler := schema.NewReconciler(connector, scope)
	if err := reconciler.ValidateOrCreateColumnFamilies(ctx, metas, force, hasCounter); err != nil {
		if !given {
			closeConnector(connector)
		}
		return nil, errors.Wrap(err, "failed to validate column families")
	}

	dao := persistence.NewDAOContext(connector, codecs)
	return &EntityManagerFactory{
		metas:     metas,
		connector: connector,
		policy:    policy,
		dao:       dao,
		backend:   operations.NewBackend(dao, policy),
		metrics:   NewMetrics(scope),
	}, nil
}

// NewEntityManagerFactoryFromConfig bootstraps a factory from a YAML
// configuration. connector is used when not nil, otherwise the factory
// connects to cfg.Cassandra.
func NewEntityManagerFactoryFromConfig(
	ctx context.Context,
	cfg *Config,
	connector orm.Connector,
	scope tally.Scope,
) (*EntityManagerFactory, error) {
	configMap := cfg.ConfigMap()
	switch {
	case connector != nil:
		configMap[ConnectorParam] = connector
	case cfg.Cassandra != nil:
		c, err := newCassandraConnector(cfg.Cassandra, scope)
		if err != nil {
			return nil, err
		}
		configMap[ConnectorParam] = c
		factory, err := NewEntityManagerFactory(ctx, configMap, scope)
		if err != nil {
			closeConnector(c)
			return nil, err
		}
		return factory, nil
	}
	return NewEntityManagerFactory(ctx, configMap, scope)
}

// closeConnector releases the session of a connector the factory opened.
func closeConnector(connector orm.Connector) {
	if c, ok := connector.(interface{ Close() }); ok {
		c.Close()
		log.Info("cassandra session closed after failed bootstrap")
	}
}

// CreateEntityManager returns an entity manager. Entity managers are cheap
// and safe for concurrent use.
func (f *EntityManagerFactory) CreateEntityManager() *EntityManager {
	return newEntityManager(f.metas, f.dao, f.policy, f.backend, f.metrics)
}

// CreateBatchingEntityManager returns a new batching entity manager for
// the calling goroutine.
func (f *EntityManagerFactory) CreateBatchingEntityManager() *BatchingEntityManager {
	return newBatchingEntityManager(f.CreateEntityManager(), f.policy)
}

// Metas returns the metadata of every managed entity.
func (f *EntityManagerFactory) Metas() meta.EntityMetaMap {
	return f.metas
}

// Connector returns the connector of the factory.
func (f *EntityManagerFactory) Connector() orm.Connector {
	return f.connector
}

// Policy returns the consistency policy of the factory.
func (f *EntityManagerFactory) Policy() *consistency.Policy {
	return f.policy
}

// Close is not supported: the lifecycle of the connector belongs to the
// application.
func (f *EntityManagerFactory) Close() error {
	return common.NewUnsupportedOperationError(
		"Cannot close an entity manager factory, close its connector instead")
}

// IsOpen is not supported.
func (f *EntityManagerFactory) IsOpen() (bool, error) {
	return false, common.NewUnsupportedOperationError(
		"Cannot tell whether an entity manager factory is open")
}
