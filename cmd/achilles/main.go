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

package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/robinvandenberg/Achilles/pkg/common"
	"github.com/robinvandenberg/Achilles/pkg/common/config"
	"github.com/robinvandenberg/Achilles/pkg/common/logging"
	"github.com/robinvandenberg/Achilles/pkg/entity/manager"
	"github.com/robinvandenberg/Achilles/pkg/entity/meta"
	"github.com/robinvandenberg/Achilles/pkg/entity/parser"
	"github.com/robinvandenberg/Achilles/pkg/storage/connectors/cassandra"

	// registers the sample entities
	_ "github.com/robinvandenberg/Achilles/pkg/samples"

	log "github.com/sirupsen/logrus"
	"github.com/uber-go/tally/v4"
	"gopkg.in/alecthomas/kingpin.v2"
)

var (
	version string
	app     = kingpin.New("achilles", "Tool to manage the column families of Achilles entities")

	debug = app.Flag(
		"debug", "enable debug logging").
		Short('d').
		Default("false").
		Envar("ENABLE_DEBUG_LOGGING").
		Bool()

	logFormat = app.Flag(
		"log-format", "log format (json or text)").
		Default(logging.JSONFormat).
		Envar("LOG_FORMAT").
		Enum(logging.JSONFormat, logging.TextFormat)

	configFiles = app.Flag(
		"config",
		"YAML config files (can be provided multiple times to merge configs)").
		Short('c').
		Required().
		ExistingFiles()

	cassandraHosts = app.Flag(
		"cassandra-hosts", "Cassandra hosts").
		Envar("CASSANDRA_HOSTS").
		Strings()

	cassandraStore = app.Flag(
		"cassandra-store", "Cassandra keyspace").
		Default("").
		Envar("CASSANDRA_STORE").
		String()

	cassandraPort = app.Flag(
		"cassandra-port", "Cassandra port to connect").
		Default("0").
		Envar("CASSANDRA_PORT").
		Int()

	schemaCmd = app.Command("schema", "Manage the column families of the entities")
	upCmd     = schemaCmd.Command("up", "Create the missing column families and validate the others")
	checkCmd  = schemaCmd.Command("check", "Validate the column families against the entities")

	describeCmd = app.Command("describe", "Print the CQL statements creating the column families")
)

func main() {
	app.Version(version)
	app.HelpFlag.Short('h')
	cmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	level := log.InfoLevel
	if *debug {
		level = log.DebugLevel
	}
	if err := logging.Setup(level.String(), *logFormat, log.Fields{
		common.AppLogField: app.Name,
	}); err != nil {
		log.WithError(err).Fatal("Cannot set up logging")
	}
	log.WithField("files", *configFiles).Debug("Loading achilles config")

	var cfg Config
	if err := config.Parse(&cfg, *configFiles...); err != nil {
		log.WithError(err).Fatal("Cannot parse yaml config")
	}
	overrideCassandra(&cfg.Achilles)
	log.WithField("config", cfg.Achilles.Cassandra).Debug("Loaded achilles config")

	ctx := context.Background()
	switch cmd {
	case upCmd.FullCommand():
		cfg.Achilles.ForceColumnFamilyCreation = true
		bootstrap(ctx, &cfg.Achilles)
		log.Info("Column families are up to date")
	case checkCmd.FullCommand():
		cfg.Achilles.ForceColumnFamilyCreation = false
		bootstrap(ctx, &cfg.Achilles)
		log.Info("Column families match the entities")
	case describeCmd.FullCommand():
		if err := describe(cfg.Achilles.EntityPackages); err != nil {
			log.WithError(err).Fatal("Cannot describe entities")
		}
	}
}

func overrideCassandra(cfg *manager.Config) {
	if cfg.Cassandra == nil {
		cfg.Cassandra = &cassandra.Config{}
	}
	if cfg.Cassandra.CassandraConn == nil {
		cfg.Cassandra.CassandraConn = &cassandra.CassandraConn{}
	}
	if len(*cassandraHosts) > 0 {
		cfg.Cassandra.CassandraConn.ContactPoints = *cassandraHosts
	}
	if *cassandraStore != "" {
		cfg.Cassandra.StoreName = *cassandraStore
	}
	if *cassandraPort != 0 {
		cfg.Cassandra.CassandraConn.Port = *cassandraPort
	}
}

func bootstrap(ctx context.Context, cfg *manager.Config) {
	factory, err := manager.NewEntityManagerFactoryFromConfig(ctx, cfg, nil, tally.NoopScope)
	if err != nil {
		log.WithError(err).Fatal("Could not bootstrap entities")
	}
	log.WithField("entities", len(factory.Metas())).Info("Entities bootstrapped")
}

func describe(packages []string) error {
	metas, hasCounter, err := parser.New().ParseAll(packages)
	if err != nil {
		return err
	}

	ems := make([]*meta.EntityMeta, 0, len(metas))
	for _, em := range metas {
		ems = append(ems, em)
	}
	sort.Slice(ems, func(i, j int) bool { return ems[i].TableName < ems[j].TableName })

	for _, em := range ems {
		stmt, err := cassandra.CreateTableStmt(em.Definition())
		if err != nil {
			return err
		}
		fmt.Printf("-- %s\n%s;\n\n", em.ClassName, stmt)
	}
	if hasCounter {
		stmt, err := cassandra.CreateTableStmt(meta.CounterDefinition())
		if err != nil {
			return err
		}
		fmt.Printf("-- counters\n%s;\n", stmt)
	}
	return nil
}
