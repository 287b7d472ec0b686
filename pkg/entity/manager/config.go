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
	"strings"

	"github.com/robinvandenberg/Achilles/pkg/codec"
	"github.com/robinvandenberg/Achilles/pkg/consistency"
	"github.com/robinvandenberg/Achilles/pkg/storage/connectors/cassandra"
	"github.com/robinvandenberg/Achilles/pkg/storage/orm"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/uber-go/tally/v4"
)

var newCassandraConnector = cassandra.NewCassandraConnector

// Configuration map keys understood by NewEntityManagerFactory.
const (
	// EntityPackagesParam lists the registry packages holding the entities,
	// as a comma separated string or a []string. Mandatory.
	EntityPackagesParam = "achilles.entity.packages"
	// ConnectorParam is a ready to use orm.Connector.
	ConnectorParam = "achilles.cassandra.connector"
	// HostParam, ClusterNameParam and KeyspaceNameParam describe the cluster
	// to connect to when no connector is given. The connection fails when
	// ClusterNameParam is set and the nodes report another cluster name.
	HostParam         = "achilles.cassandra.host"
	ClusterNameParam  = "achilles.cassandra.cluster.name"
	KeyspaceNameParam = "achilles.cassandra.keyspace.name"
	// ForceCFCreationParam creates missing column families at bootstrap.
	ForceCFCreationParam = "achilles.ddl.force.column.family.creation"
	// CodecFactoryParam is the codec.Factory of encoded values.
	CodecFactoryParam = "achilles.codec.factory"
	// DefaultReadConsistencyParam and DefaultWriteConsistencyParam are level
	// names, ONE when absent.
	DefaultReadConsistencyParam  = "achilles.default.consistency.read"
	DefaultWriteConsistencyParam = "achilles.default.consistency.write"
	// ReadConsistencyMapParam and WriteConsistencyMapParam map column
	// family names to level names.
	ReadConsistencyMapParam  = "achilles.consistency.read.map"
	WriteConsistencyMapParam = "achilles.consistency.write.map"
)

// Config is the YAML configuration of an entity manager factory.
type Config struct {
	// EntityPackages lists the registry packages holding the entities
	EntityPackages []string `yaml:"entity_packages" validate:"nonzero"`
	// Cassandra is the cluster connection
	Cassandra *cassandra.Config `yaml:"cassandra"`
	// ForceColumnFamilyCreation creates missing column families at bootstrap
	ForceColumnFamilyCreation bool `yaml:"force_column_family_creation"`
	// Consistency holds the consistency levels
	Consistency ConsistencyConfig `yaml:"consistency"`
}

// ConsistencyConfig holds default and per column family consistency levels.
type ConsistencyConfig struct {
	DefaultRead  string            `yaml:"default_read"`
	DefaultWrite string            `yaml:"default_write"`
	ReadMap      map[string]string `yaml:"read_map"`
	WriteMap     map[string]string `yaml:"write_map"`
}

// ConfigMap converts the configuration into a configuration map. The
// connection settings are not part of it, see NewEntityManagerFactoryFromConfig.
func (c *Config) ConfigMap() map[string]interface{} {
	m := map[string]interface{}{
		EntityPackagesParam:  c.EntityPackages,
		ForceCFCreationParam: c.ForceColumnFamilyCreation,
	}
	if c.Consistency.DefaultRead != "" {
		m[DefaultReadConsistencyParam] = c.Consistency.DefaultRead
	}
	if c.Consistency.DefaultWrite != "" {
		m[DefaultWriteConsistencyParam] = c.Consistency.DefaultWrite
	}
	if len(c.Consistency.ReadMap) > 0 {
		m[ReadConsistencyMapParam] = c.Consistency.ReadMap
	}
	if len(c.Consistency.WriteMap) > 0 {
		m[WriteConsistencyMapParam] = c.Consistency.WriteMap
	}
	return m
}

// ArgumentExtractor reads the settings of a configuration map.
type ArgumentExtractor struct {
	scope tally.Scope
}

// NewArgumentExtractor creates an ArgumentExtractor. scope is given to the
// connectors it creates.
func NewArgumentExtractor(scope tally.Scope) *ArgumentExtractor {
	return &ArgumentExtractor{scope: scope}
}

// InitEntityPackages returns the mandatory entity packages.
func (a *ArgumentExtractor) InitEntityPackages(m map[string]interface{}) ([]string, error) {
	var packages []string
	switch v := m[EntityPackagesParam].(type) {
	case string:
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				packages = append(packages, p)
			}
		}
	case []string:
		packages = v
	case nil:
	default:
		return nil, errors.Errorf("'%s' must be a string or a []string, got %T",
			EntityPackagesParam, v)
	}
	if len(packages) == 0 {
		return nil, errors.Errorf("'%s' property should be set for Achilles bootstrap",
			EntityPackagesParam)
	}
	return packages, nil
}

// InitConnector returns the connector given under ConnectorParam, or
// connects to the cluster described by the host and keyspace settings.
func (a *ArgumentExtractor) InitConnector(m map[string]interface{}) (orm.Connector, error) {
	if v, ok := m[ConnectorParam]; ok {
		connector, ok := v.(orm.Connector)
		if !ok {
			return nil, errors.Errorf("'%s' must be an orm.Connector, got %T",
				ConnectorParam, v)
		}
		return connector, nil
	}

	host, _ := m[HostParam].(string)
	keyspace, _ := m[KeyspaceNameParam].(string)
	if host == "" || keyspace == "" {
		return nil, errors.Errorf(
			"either '%s' or both '%s' and '%s' should be set for Achilles bootstrap",
			ConnectorParam, HostParam, KeyspaceNameParam)
	}

	var hosts []string
	for _, h := range strings.Split(host, ",") {
		if h = strings.TrimSpace(h); h != "" {
			hosts = append(hosts, h)
		}
	}
	cluster, _ := m[ClusterNameParam].(string)
	log.WithFields(log.Fields{
		"hosts":    hosts,
		"cluster":  cluster,
		"keyspace": keyspace,
	}).Info("connecting to cassandra")

	return newCassandraConnector(&cassandra.Config{
		CassandraConn: &cassandra.CassandraConn{
			ContactPoints: hosts,
			ClusterName:   cluster,
		},
		StoreName: keyspace,
	}, a.scope)
}

// InitForceCFCreation returns whether missing column families are created.
func (a *ArgumentExtractor) InitForceCFCreation(m map[string]interface{}) (bool, error) {
	switch v := m[ForceCFCreationParam].(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case string:
		return strings.EqualFold(strings.TrimSpace(v), "true"), nil
	default:
		return false, errors.Errorf("'%s' must be a bool, got %T", ForceCFCreationParam, v)
	}
}

// InitCodecFactory returns the codec factory, the JSON codec when absent.
func (a *ArgumentExtractor) InitCodecFactory(m map[string]interface{}) (codec.Factory, error) {
	v, ok := m[CodecFactoryParam]
	if !ok || v == nil {
		return codec.NewDefaultFactory(), nil
	}
	f, ok := v.(codec.Factory)
	if !ok {
		return nil, errors.Errorf("'%s' must be a codec.Factory, got %T", CodecFactoryParam, v)
	}
	return f, nil
}

// InitConsistencyPolicy builds the consistency policy.
func (a *ArgumentExtractor) InitConsistencyPolicy(m map[string]interface{}) (*consistency.Policy, error) {
	defaultRead, err := a.level(m, DefaultReadConsistencyParam)
	if err != nil {
		return nil, err
	}
	defaultWrite, err := a.level(m, DefaultWriteConsistencyParam)
	if err != nil {
		return nil, err
	}
	readMap, err := a.levelMap(m, ReadConsistencyMapParam)
	if err != nil {
		return nil, err
	}
	writeMap, err := a.levelMap(m, WriteConsistencyMapParam)
	if err != nil {
		return nil, err
	}
	return consistency.NewPolicy(defaultRead, defaultWrite, readMap, writeMap), nil
}

func (a *ArgumentExtractor) level(m map[string]interface{}, key string) (consistency.Level, error) {
	switch v := m[key].(type) {
	case nil:
		return consistency.DefaultLevel, nil
	case consistency.Level:
		return v, nil
	case string:
		l, err := consistency.ParseLevel(v)
		return l, errors.Wrapf(err, "'%s'", key)
	default:
		return 0, errors.Errorf("'%s' must be a consistency level name, got %T", key, v)
	}
}

func (a *ArgumentExtractor) levelMap(
	m map[string]interface{},
	key string,
) (map[string]consistency.Level, error) {
	switch v := m[key].(type) {
	case nil:
		return nil, nil
	case map[string]consistency.Level:
		return v, nil
	case map[string]string:
		levels, err := consistency.ParseLevelMap(v)
		return levels, errors.Wrapf(err, "'%s'", key)
	default:
		return nil, errors.Errorf("'%s' must map column families to level names, got %T",
			key, v)
	}
}
