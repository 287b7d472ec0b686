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

package cassandra

import (
	"context"
	"reflect"
	"time"

	"github.com/robinvandenberg/Achilles/pkg/common"
	"github.com/robinvandenberg/Achilles/pkg/consistency"
	"github.com/robinvandenberg/Achilles/pkg/storage/objects/base"
	"github.com/robinvandenberg/Achilles/pkg/storage/orm"

	"github.com/gocql/gocql"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/uber-go/tally/v4"
	"go.uber.org/yarpc/yarpcerrors"
)

const (
	// operation tags for metrics
	create    = "create"
	get       = "get"
	getIter   = "get_iter"
	update    = "update"
	del       = "delete"
	increment = "increment"
	batch     = "batch"
	describe  = "describe"
	ddl       = "create_table"

	// default limit for select statements.
	_defaultQueryLimit = 1
)

type cassandraConnector struct {
	// Session is the gocql session created for this connector
	Session *gocql.Session
	// keyspace holding the column families
	keyspace string
	// scope is the storage scope for metrics
	scope tally.Scope
	// scope is the storage scope for success metrics
	executeSuccessScope tally.Scope
	// scope is the storage scope for failure metrics
	executeFailScope tally.Scope
}

// NewCassandraConnector initializes a Cassandra Connector
func NewCassandraConnector(
	config *Config,
	scope tally.Scope,
) (orm.Connector, error) {
	session, err := CreateStoreSession(
		config.CassandraConn, config.StoreName)
	if err != nil {
		return nil, err
	}
	if err := checkClusterName(session, config.CassandraConn.ClusterName); err != nil {
		session.Close()
		return nil, err
	}
	return NewCassandraConnectorWithSession(session, config.StoreName, scope), nil
}

// checkClusterName fails when expected is set and differs from the name of
// the cluster the session is connected to.
func checkClusterName(session *gocql.Session, expected string) error {
	if expected == "" {
		return nil
	}
	var actual string
	if err := session.Query(
		"SELECT cluster_name FROM system.local").Scan(&actual); err != nil {
		return errors.Wrap(err, "failed to read cluster name")
	}
	if actual != expected {
		return errors.Errorf("connected to cluster '%s', expected '%s'", actual, expected)
	}
	return nil
}

// NewCassandraConnectorWithSession initializes a Cassandra Connector over an
// existing gocql session.
func NewCassandraConnectorWithSession(
	session *gocql.Session,
	keyspace string,
	scope tally.Scope,
) orm.Connector {
	// create a storeScope for the keyspace
	storeScope := scope.SubScope("cql").Tagged(
		map[string]string{"store": keyspace})

	return &cassandraConnector{
		Session:  session,
		keyspace: keyspace,
		scope:    storeScope,
		executeSuccessScope: storeScope.Tagged(
			map[string]string{"result": "success"}),
		executeFailScope: storeScope.Tagged(
			map[string]string{"result": "fail"}),
	}
}

// ensure that implementation (cassandraConnector) satisfies the interface
var _ orm.Connector = (*cassandraConnector)(nil)

// Close releases the gocql session.
func (c *cassandraConnector) Close() {
	c.Session.Close()
}

// getGocqlErrorTag gets a error tag for metrics based on gocql error
// We cannot just use err.Error() as a tag because it contains invalid
// characters like = : etc. which will be rejected by M3
func getGocqlErrorTag(err error) string {
	if yarpcerrors.IsAlreadyExists(err) {
		return "already_exists"
	}
	if yarpcerrors.IsNotFound(err) {
		return "not_found"
	}
	switch err.(type) {
	case *gocql.RequestErrReadFailure:
		return "read_failure"
	case *gocql.RequestErrWriteFailure:
		return "write_failure"
	case *gocql.RequestErrAlreadyExists:
		return "already_exists"
	case *gocql.RequestErrReadTimeout:
		return "read_timeout"
	case *gocql.RequestErrWriteTimeout:
		return "write_timeout"
	case *gocql.RequestErrUnavailable:
		return "unavailable"
	case *gocql.RequestErrFunctionFailure:
		return "function_failure"
	case *gocql.RequestErrUnprepared:
		return "unprepared"
	default:
		return "unknown"
	}
}

// buildResultRow is used to allocate memory for the row to be populated by
// Cassandra read operation based on what object fields are being read.
// Every destination is a pointer to a pointer so that null columns scan as
// nil.
func buildResultRow(e *base.Definition, columns []string) []interface{} {
	results := make([]interface{}, len(columns))
	for i, column := range columns {
		typ, ok := e.ColumnToType[column]
		if !ok {
			// This should only happen if the definition and the statement
			// disagree on the selected columns
			log.WithFields(log.Fields{
				"table":  e.Name,
				"column": column,
			}).Info("type not found")
			typ = _bytesType
		}
		results[i] = reflect.New(reflect.PtrTo(base.CanonicalType(typ))).Interface()
	}
	return results
}

// getRowFromResult translates a row read from Cassandra into a list of
// base.Column to be interpreted by base store client
func getRowFromResult(columnNames []string, columnVals []interface{}) []base.Column {
	row := make([]base.Column, 0, len(columnNames))
	for i, columnName := range columnNames {
		row = append(row, base.Column{
			Name:  columnName,
			Value: derefResult(columnVals[i]),
		})
	}
	return row
}

func derefResult(v interface{}) interface{} {
	p := reflect.ValueOf(v).Elem()
	if p.IsNil() {
		return nil
	}
	return p.Elem().Interface()
}

// splitColumnNameValue is used to return list of column names and list of their
// corresponding value. Order is very important in this lists as they will be
// used separately when constructing the CQL query.
func splitColumnNameValue(row []base.Column) (
	colNames []string, colValues []interface{}) {

	// Split row into two lists of column names and column values.
	// So for a location `i` in the list, the colNames[i] and colValues[i] will
	// represent row[i]
	for _, column := range row {
		colNames = append(colNames, column.Name)
		colValues = append(colValues, column.Value)
	}

	return colNames, colValues
}

// query creates a gocql query applying the consistency level carried by ctx.
func (c *cassandraConnector) query(
	ctx context.Context,
	stmt string,
	values ...interface{},
) *gocql.Query {
	q := c.Session.Query(stmt, values...).WithContext(ctx)
	if l, ok := consistency.LevelFromContext(ctx); ok {
		q.Consistency(l.Gocql())
	}
	log.WithFields(log.Fields{
		common.DBStmtLogField: stmt,
		common.DBArgsLogField: values,
	}).Debug("cql and args")
	return q
}

func (c *cassandraConnector) exec(
	e *base.Definition,
	operation string,
	q *gocql.Query,
) error {
	if err := q.Exec(); err != nil {
		sendCounters(c.executeFailScope, e.Name, operation, err)
		return err
	}
	sendLatency(c.scope, e.Name, operation, time.Duration(q.Latency()))
	sendCounters(c.executeSuccessScope, e.Name, operation, nil)
	return nil
}

// insertStatement builds the INSERT of a row and its arguments.
func insertStatement(
	e *base.Definition,
	row []base.Column,
	ttl int32,
) (string, []interface{}, error) {
	// split row into a list of names and values to compose query stmt using
	// names and use values in the session query call, so the order needs to be
	// maintained.
	colNames, colValues := splitColumnNameValue(row)
	stmt, err := InsertStmt(
		Table(e.Name),
		Columns(colNames),
		Values(colValues),
		TTL(ttl),
	)
	return stmt, colValues, err
}

// Create creates a new row in DB.
func (c *cassandraConnector) Create(
	ctx context.Context,
	e *base.Definition,
	row []base.Column,
	ttl int32,
) error {
	stmt, args, err := insertStatement(e, row, ttl)
	if err != nil {
		return err
	}
	return c.exec(e, create, c.query(ctx, stmt, args...))
}

// Get fetches a record from DB using primary keys
// returns a map describing a row from DB, key is columnName,
// value is columnValue.
func (c *cassandraConnector) Get(
	ctx context.Context,
	e *base.Definition,
	keyCols []base.Column,
	colNamesToRead ...string,
) (map[string]interface{}, error) {
	if len(colNamesToRead) == 0 {
		colNamesToRead = e.GetColumnsToRead()
	}

	// split keyCols into a list of names and values to compose query stmt using
	// names and use values in the session query call, so the order needs to be
	// maintained.
	keyColNames, keyColValues := splitColumnNameValue(keyCols)

	stmt, err := SelectStmt(
		Table(e.Name),
		Columns(colNamesToRead),
		Conditions(keyColNames),
		Limit(_defaultQueryLimit),
	)
	if err != nil {
		sendCounters(c.executeFailScope, e.Name, get, err)
		return nil, err
	}

	q := c.query(ctx, stmt, keyColValues...)
	cqlIter := q.Iter()
	result := buildResultRow(e, colNamesToRead)
	found := cqlIter.Scan(result...)
	if err := cqlIter.Close(); err != nil {
		sendCounters(c.executeFailScope, e.Name, get, err)
		return nil, errors.Wrap(err, "Scan failed")
	}
	sendLatency(c.scope, e.Name, get, time.Duration(q.Latency()))
	if !found {
		err := yarpcerrors.NotFoundErrorf("row not found in table %s", e.Name)
		sendCounters(c.executeSuccessScope, e.Name, get, err)
		return nil, err
	}
	sendCounters(c.executeSuccessScope, e.Name, get, nil)

	values := make(map[string]interface{}, len(colNamesToRead))
	for _, col := range getRowFromResult(colNamesToRead, result) {
		values[col.Name] = col.Value
	}
	return values, nil
}

// ttlColumns returns the columns whose TTL can be selected: simple
// non key columns.
func ttlColumns(e *base.Definition, columns []string) []string {
	var cols []string
	for _, col := range columns {
		if !e.IsKeyColumn(col) && e.KindOf(col) == base.SimpleColumn {
			cols = append(cols, col)
		}
	}
	return cols
}

// GetAllIter gives an iterator to fetch all rows of a partition from DB
func (c *cassandraConnector) GetAllIter(
	ctx context.Context,
	e *base.Definition,
	keyCols []base.Column,
	rng *base.SliceRange,
) (iter orm.Iterator, err error) {
	colNamesToRead := e.GetColumnsToRead()
	ttlCols := ttlColumns(e, colNamesToRead)
	keyColNames, args := splitColumnNameValue(keyCols)

	opts := []Option{
		Table(e.Name),
		Columns(colNamesToRead),
		TTLColumns(ttlCols),
		Conditions(keyColNames),
	}
	if rng != nil {
		var clustering []string
		var order []string
		for _, ck := range e.Key.ClusteringKeys {
			clustering = append(clustering, ck.Name)
			desc := ck.Descending
			if rng.Reversed {
				desc = !desc
			}
			dir := "ASC"
			if desc {
				dir = "DESC"
			}
			order = append(order, ck.Name+" "+dir)
		}
		opts = append(opts,
			Range(clustering, len(rng.From), len(rng.To)),
			Limit(rng.Limit),
		)
		if rng.Reversed {
			opts = append(opts, OrderBy(order))
		}
		args = append(args, rng.From...)
		args = append(args, rng.To...)
	}

	stmt, err := SelectStmt(opts...)
	if err != nil {
		return nil, err
	}

	// execute query and get iterator
	q := c.query(ctx, stmt, args...)
	cqlIter := q.Iter()
	sendLatency(c.scope, e.Name, getIter, time.Duration(q.Latency()))

	return newIterator(
		e,
		colNamesToRead,
		ttlCols,
		c.executeSuccessScope,
		c.executeFailScope,
		cqlIter,
	), nil
}

// Delete deletes a record from DB using primary keys
func (c *cassandraConnector) Delete(
	ctx context.Context,
	e *base.Definition,
	keyCols []base.Column,
) error {
	stmt, args, err := deleteStatement(e, keyCols)
	if err != nil {
		return err
	}
	return c.exec(e, del, c.query(ctx, stmt, args...))
}

func deleteStatement(
	e *base.Definition,
	keyCols []base.Column,
) (string, []interface{}, error) {
	keyColNames, keyColValues := splitColumnNameValue(keyCols)
	stmt, err := DeleteStmt(
		Table(e.Name),
		Conditions(keyColNames),
	)
	return stmt, keyColValues, err
}

// Update updates an existing row in DB.
func (c *cassandraConnector) Update(
	ctx context.Context,
	e *base.Definition,
	row []base.Column,
	keyCols []base.Column,
	ttl int32,
) error {
	stmt, args, err := updateStatement(e, row, keyCols, ttl)
	if err != nil {
		return err
	}
	return c.exec(e, update, c.query(ctx, stmt, args...))
}

func updateStatement(
	e *base.Definition,
	row []base.Column,
	keyCols []base.Column,
	ttl int32,
) (string, []interface{}, error) {
	keyColNames, keyColValues := splitColumnNameValue(keyCols)
	colNames, colValues := splitColumnNameValue(row)

	stmt, err := UpdateStmt(
		Table(e.Name),
		Updates(colNames),
		Conditions(keyColNames),
		TTL(ttl),
	)
	// list of values to be supplied in the query
	return stmt, append(colValues, keyColValues...), err
}

// Increment adds delta to a counter column.
func (c *cassandraConnector) Increment(
	ctx context.Context,
	e *base.Definition,
	column string,
	delta int64,
	keyCols []base.Column,
) error {
	stmt, args, err := incrementStatement(e, column, delta, keyCols)
	if err != nil {
		return err
	}
	return c.exec(e, increment, c.query(ctx, stmt, args...))
}

func incrementStatement(
	e *base.Definition,
	column string,
	delta int64,
	keyCols []base.Column,
) (string, []interface{}, error) {
	keyColNames, keyColValues := splitColumnNameValue(keyCols)
	stmt, err := CounterUpdateStmt(
		Table(e.Name),
		CounterColumn(column),
		Conditions(keyColNames),
	)
	return stmt, append([]interface{}{delta}, keyColValues...), err
}

func mutationStatement(m *base.Mutation) (string, []interface{}, error) {
	switch m.Op {
	case base.OpInsert:
		row := append(append([]base.Column{}, m.Keys...), m.Values...)
		return insertStatement(m.Definition, row, m.TTL)
	case base.OpUpdate:
		return updateStatement(m.Definition, m.Values, m.Keys, m.TTL)
	case base.OpDelete:
		return deleteStatement(m.Definition, m.Keys)
	case base.OpIncrement:
		if len(m.Values) != 1 {
			return "", nil, errors.Errorf(
				"increment on table %s requires exactly one column", m.Definition.Name)
		}
		delta, ok := m.Values[0].Value.(int64)
		if !ok {
			return "", nil, errors.Errorf(
				"increment on table %s requires an int64 delta", m.Definition.Name)
		}
		return incrementStatement(m.Definition, m.Values[0].Name, delta, m.Keys)
	}
	return "", nil, errors.Errorf("unknown mutation %v", m.Op)
}

// ExecuteBatch sends mutations as a logged batch, counter mutations as a
// counter batch.
// isCounterTable returns true when the column family holds counters. Every
// write to such a column family must go through a counter batch.
func isCounterTable(e *base.Definition) bool {
	for _, kind := range e.ColumnKinds {
		if kind == base.CounterColumn {
			return true
		}
	}
	return false
}

func (c *cassandraConnector) ExecuteBatch(
	ctx context.Context,
	mutations []*base.Mutation,
) error {
	regular := c.Session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	counters := c.Session.NewBatch(gocql.CounterBatch).WithContext(ctx)
	if l, ok := consistency.LevelFromContext(ctx); ok {
		regular.Cons = l.Gocql()
		counters.Cons = l.Gocql()
	}

	for _, m := range mutations {
		stmt, args, err := mutationStatement(m)
		if err != nil {
			return err
		}
		log.WithFields(log.Fields{
			common.DBStmtLogField: stmt,
			common.DBArgsLogField: args,
		}).Debug("cql and args")
		if m.Op == base.OpIncrement || isCounterTable(m.Definition) {
			counters.Query(stmt, args...)
		} else {
			regular.Query(stmt, args...)
		}
	}

	for _, b := range []*gocql.Batch{regular, counters} {
		if b.Size() == 0 {
			continue
		}
		if err := c.Session.ExecuteBatch(b); err != nil {
			sendCounters(c.executeFailScope, c.keyspace, batch, err)
			log.WithError(err).
				WithField("batch_size", b.Size()).
				Error("ExecuteBatch failed")
			return err
		}
		sendLatency(c.scope, c.keyspace, batch, time.Duration(b.Latency()))
		sendCounters(c.executeSuccessScope, c.keyspace, batch, nil)
	}
	return nil
}

// DescribeTable reads the layout of a table from the keyspace metadata.
func (c *cassandraConnector) DescribeTable(
	ctx context.Context,
	name string,
) (*base.Definition, error) {
	km, err := c.Session.KeyspaceMetadata(c.keyspace)
	if err != nil {
		sendCounters(c.executeFailScope, name, describe, err)
		return nil, errors.Wrapf(err, "failed to read metadata of keyspace %s", c.keyspace)
	}
	tm, ok := km.Tables[name]
	if !ok {
		return nil, yarpcerrors.NotFoundErrorf(
			"table %s not found in keyspace %s", name, c.keyspace)
	}
	sendCounters(c.executeSuccessScope, name, describe, nil)
	return definitionFromMetadata(tm)
}

// CreateTable creates a table and waits for schema agreement.
func (c *cassandraConnector) CreateTable(ctx context.Context, e *base.Definition) error {
	stmt, err := CreateTableStmt(e)
	if err != nil {
		return err
	}
	log.WithField(common.DBStmtLogField, stmt).Info("creating table")
	if err := c.exec(e, ddl, c.Session.Query(stmt).WithContext(ctx)); err != nil {
		return err
	}
	return c.Session.AwaitSchemaAgreement(ctx)
}

// cassandraIterator implements interface Iterator for Cassandra
type cassandraIterator struct {
	cqlIter        *gocql.Iter
	tableDef       *base.Definition
	colNamesToRead []string
	ttlCols        []string
	successScope   tally.Scope
	failScope      tally.Scope
}

// ensure that implementation (cassandraIterator) satisfies the interface
var _ orm.Iterator = (*cassandraIterator)(nil)

func newIterator(
	e *base.Definition,
	cols []string,
	ttlCols []string,
	successScope tally.Scope,
	failScope tally.Scope,
	cqlIter *gocql.Iter,
) *cassandraIterator {
	return &cassandraIterator{
		cqlIter:        cqlIter,
		tableDef:       e,
		successScope:   successScope,
		failScope:      failScope,
		colNamesToRead: cols,
		ttlCols:        ttlCols,
	}
}

func (iter *cassandraIterator) Close() {
	iter.cqlIter.Close()
}

func (iter *cassandraIterator) Next() ([]base.Column, error) {
	result := buildResultRow(iter.tableDef, iter.colNamesToRead)
	ttls := make([]interface{}, len(iter.ttlCols))
	for i := range ttls {
		var ttl *int32
		ttls[i] = &ttl
	}
	if iter.cqlIter.Scan(append(result, ttls...)...) {
		row := getRowFromResult(iter.colNamesToRead, result)
		for i, name := range iter.ttlCols {
			ttl, _ := derefResult(ttls[i]).(int32)
			for j := range row {
				if row[j].Name == name {
					row[j].TTL = ttl
				}
			}
		}
		return row, nil
	}
	// Either end-of-results or error
	if errors := iter.cqlIter.Close(); errors != nil {
		sendCounters(iter.failScope, iter.tableDef.Name, getIter, errors)
		return nil, errors
	}
	sendCounters(iter.successScope, iter.tableDef.Name, getIter, nil)
	return nil, nil
}

// helper function to record call latency metric
func sendLatency(
	scope tally.Scope,
	table, operation string,
	d time.Duration,
) {
	s := scope.Tagged(map[string]string{
		"table":     table,
		"operation": operation,
	})
	s.Timer("execute_latency").Record(d)
}

// helper function to record cql query success/failure metrics
func sendCounters(
	scope tally.Scope,
	table, operation string,
	err error,
) {
	errMsg := "none"
	if err != nil {
		errMsg = getGocqlErrorTag(err)
	}
	s := scope.Tagged(map[string]string{
		"table":     table,
		"operation": operation,
		"error":     errMsg,
	})
	s.Counter("execute").Inc(1)
}
