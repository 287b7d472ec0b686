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

package memory

import (
	"context"
	"reflect"
	"sync"
	"time"

	"github.com/robinvandenberg/Achilles/pkg/consistency"
	"github.com/robinvandenberg/Achilles/pkg/storage/objects/base"
	"github.com/robinvandenberg/Achilles/pkg/storage/orm"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/btree"
	"go.uber.org/atomic"
	"go.uber.org/yarpc/yarpcerrors"
)

const (
	// operation names recorded in accesses
	create    = "create"
	get       = "get"
	getIter   = "get_iter"
	update    = "update"
	del       = "delete"
	increment = "increment"
	batch     = "batch"
)

// Access records one call made to the connector with the consistency level
// carried by its context.
type Access struct {
	Operation string
	Table     string
	Level     consistency.Level
	// HasLevel is false when the context carried no level.
	HasLevel bool
}

type row struct {
	key    []interface{}
	values map[string]interface{}
	// expires holds the expiry of columns written with a TTL
	expires map[string]time.Time
	// marker is set by inserts, a row only written by updates exists as long
	// as one of its columns does
	marker        bool
	markerExpires time.Time
}

type table struct {
	def *base.Definition
	// desc tells, per key component, whether it sorts descending
	desc []bool
	rows *btree.BTreeG[*row]
}

func newTable(def *base.Definition) *table {
	t := &table{def: def}
	nParts := len(def.Key.PartitionKeys)
	t.desc = make([]bool, nParts+len(def.Key.ClusteringKeys))
	for i, ck := range def.Key.ClusteringKeys {
		t.desc[nParts+i] = ck.Descending
	}
	t.rows = btree.NewBTreeG[*row](func(a, b *row) bool {
		return t.compareKeys(a.key, b.key) < 0
	})
	return t
}

// compareKeys orders full keys and key prefixes. A prefix sorts before
// every key it is a prefix of.
func (t *table) compareKeys(a, b []interface{}) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		c := compareValues(a[i], b[i])
		if t.desc[i] {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return compareInt64(int64(len(a)), int64(len(b)))
}

func (t *table) keyColumns() []string {
	names := append([]string{}, t.def.Key.PartitionKeys...)
	for _, ck := range t.def.Key.ClusteringKeys {
		names = append(names, ck.Name)
	}
	return names
}

// keyOf builds a key prefix from columns. Every partition key column is
// required, clustering columns must form a prefix.
func (t *table) keyOf(cols []base.Column) ([]interface{}, error) {
	byName := make(map[string]interface{}, len(cols))
	for _, c := range cols {
		byName[c.Name] = c.Value
	}
	var key []interface{}
	for i, name := range t.keyColumns() {
		v, ok := byName[name]
		if !ok {
			if i < len(t.def.Key.PartitionKeys) {
				return nil, errors.Errorf(
					"missing partition key column %s of table %s", name, t.def.Name)
			}
			break
		}
		if v == nil {
			return nil, errors.Errorf(
				"invalid null value for key column %s of table %s", name, t.def.Name)
		}
		key = append(key, v)
	}
	return key, nil
}

func (t *table) isFullKey(key []interface{}) bool {
	return len(key) == len(t.desc)
}

// scanPrefix calls fn for every row whose key starts with prefix, in
// clustering order.
func (t *table) scanPrefix(prefix []interface{}, fn func(r *row) bool) {
	t.rows.Ascend(&row{key: prefix}, func(r *row) bool {
		if t.compareKeys(r.key[:len(prefix)], prefix) != 0 {
			return false
		}
		return fn(r)
	})
}

func (r *row) live(now time.Time) bool {
	if r.marker && (r.markerExpires.IsZero() || now.Before(r.markerExpires)) {
		return true
	}
	for name := range r.values {
		if r.columnLive(name, now) {
			return true
		}
	}
	return false
}

func (r *row) columnLive(name string, now time.Time) bool {
	if _, ok := r.values[name]; !ok {
		return false
	}
	exp, ok := r.expires[name]
	return !ok || now.Before(exp)
}

// ttl returns the remaining seconds of a column, 0 when it does not expire.
func (r *row) ttl(name string, now time.Time) int32 {
	exp, ok := r.expires[name]
	if !ok {
		return 0
	}
	remaining := exp.Sub(now)
	secs := int32(remaining / time.Second)
	if remaining%time.Second != 0 {
		secs++
	}
	return secs
}

// Option configures a Connector.
type Option func(*Connector)

// WithClock replaces the clock used to expire columns written with a TTL.
func WithClock(now func() time.Time) Option {
	return func(c *Connector) {
		c.now = now
	}
}

// Connector is an orm.Connector keeping rows in memory, ordered by
// partition key then clustering key. It is used by tests and by the CLI
// dry run mode.
type Connector struct {
	sync.RWMutex

	tables   map[string]*table
	now      func() time.Time
	accesses []Access

	reads  *atomic.Int64
	writes *atomic.Int64
}

// ensure that implementation (Connector) satisfies the interface
var _ orm.Connector = (*Connector)(nil)

// NewConnector creates an empty in-memory connector.
func NewConnector(opts ...Option) *Connector {
	c := &Connector{
		tables: make(map[string]*table),
		now:    time.Now,
		reads:  atomic.NewInt64(0),
		writes: atomic.NewInt64(0),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Reads returns the number of read calls served.
func (c *Connector) Reads() int64 {
	return c.reads.Load()
}

// Writes returns the number of write calls served, a batch counts as one.
func (c *Connector) Writes() int64 {
	return c.writes.Load()
}

// Accesses returns the calls made so far, oldest first.
func (c *Connector) Accesses() []Access {
	c.RLock()
	defer c.RUnlock()
	return append([]Access(nil), c.accesses...)
}

// ResetAccesses forgets the recorded calls.
func (c *Connector) ResetAccesses() {
	c.Lock()
	defer c.Unlock()
	c.accesses = nil
}

// must be called with the lock held
func (c *Connector) record(ctx context.Context, operation, tableName string) {
	l, ok := consistency.LevelFromContext(ctx)
	c.accesses = append(c.accesses, Access{
		Operation: operation,
		Table:     tableName,
		Level:     l,
		HasLevel:  ok,
	})
}

func (c *Connector) table(name string) (*table, error) {
	t, ok := c.tables[name]
	if !ok {
		return nil, errors.Errorf("unconfigured table %s", name)
	}
	return t, nil
}

// DescribeTable returns the layout of an existing table.
func (c *Connector) DescribeTable(
	ctx context.Context,
	name string,
) (*base.Definition, error) {
	c.RLock()
	defer c.RUnlock()
	t, ok := c.tables[name]
	if !ok {
		return nil, yarpcerrors.NotFoundErrorf("table %s not found", name)
	}
	return copyDefinition(t.def), nil
}

// CreateTable creates a table.
func (c *Connector) CreateTable(ctx context.Context, e *base.Definition) error {
	if e.Key == nil || len(e.Key.PartitionKeys) == 0 {
		return errors.Errorf("table %s requires a partition key", e.Name)
	}
	c.Lock()
	defer c.Unlock()
	if _, ok := c.tables[e.Name]; ok {
		return yarpcerrors.AlreadyExistsErrorf("table %s already exists", e.Name)
	}
	c.tables[e.Name] = newTable(copyDefinition(e))
	log.WithField("table", e.Name).Debug("in-memory table created")
	return nil
}

func copyDefinition(e *base.Definition) *base.Definition {
	def := &base.Definition{
		Name:         e.Name,
		ColumnToType: make(map[string]reflect.Type, len(e.ColumnToType)),
		ColumnKinds:  make(map[string]base.ColumnKind, len(e.ColumnKinds)),
	}
	if e.Key != nil {
		def.Key = &base.PrimaryKey{
			PartitionKeys: append([]string(nil), e.Key.PartitionKeys...),
		}
		for _, ck := range e.Key.ClusteringKeys {
			def.Key.ClusteringKeys = append(def.Key.ClusteringKeys,
				&base.ClusteringKey{Name: ck.Name, Descending: ck.Descending})
		}
	}
	for k, v := range e.ColumnToType {
		def.ColumnToType[k] = v
	}
	for k, v := range e.ColumnKinds {
		def.ColumnKinds[k] = v
	}
	return def
}

// Create inserts a row, overwriting the given columns of an existing one.
func (c *Connector) Create(
	ctx context.Context,
	e *base.Definition,
	values []base.Column,
	ttl int32,
) error {
	c.Lock()
	defer c.Unlock()
	c.record(ctx, create, e.Name)
	c.writes.Inc()
	return c.create(e, values, ttl)
}

func (c *Connector) create(e *base.Definition, values []base.Column, ttl int32) error {
	t, err := c.table(e.Name)
	if err != nil {
		return err
	}
	key, err := t.keyOf(values)
	if err != nil {
		return err
	}
	if !t.isFullKey(key) {
		return errors.Errorf("some clustering keys are missing for table %s", e.Name)
	}
	r := c.upsertRow(t, key)
	r.marker = true
	r.markerExpires = c.expiry(ttl)
	c.write(t, r, values, ttl)
	return nil
}

func (c *Connector) expiry(ttl int32) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return c.now().Add(time.Duration(ttl) * time.Second)
}

func (c *Connector) upsertRow(t *table, key []interface{}) *row {
	if r, ok := t.rows.Get(&row{key: key}); ok {
		return r
	}
	r := &row{
		key:     key,
		values:  make(map[string]interface{}),
		expires: make(map[string]time.Time),
	}
	t.rows.Set(r)
	return r
}

func (c *Connector) write(t *table, r *row, values []base.Column, ttl int32) {
	exp := c.expiry(ttl)
	for _, col := range values {
		if t.def.IsKeyColumn(col.Name) {
			continue
		}
		if col.Value == nil {
			delete(r.values, col.Name)
			delete(r.expires, col.Name)
			continue
		}
		r.values[col.Name] = copyValue(col.Value)
		if exp.IsZero() {
			delete(r.expires, col.Name)
		} else {
			r.expires[col.Name] = exp
		}
	}
}

// Get fetches one row by its full primary key.
func (c *Connector) Get(
	ctx context.Context,
	e *base.Definition,
	keys []base.Column,
	colNamesToRead ...string,
) (map[string]interface{}, error) {
	c.Lock()
	defer c.Unlock()
	c.record(ctx, get, e.Name)
	c.reads.Inc()

	t, err := c.table(e.Name)
	if err != nil {
		return nil, err
	}
	key, err := t.keyOf(keys)
	if err != nil {
		return nil, err
	}
	if !t.isFullKey(key) {
		return nil, errors.Errorf("some clustering keys are missing for table %s", e.Name)
	}
	now := c.now()
	r, ok := t.rows.Get(&row{key: key})
	if !ok || !r.live(now) {
		return nil, yarpcerrors.NotFoundErrorf("row not found in table %s", e.Name)
	}
	if len(colNamesToRead) == 0 {
		colNamesToRead = t.def.GetColumnsToRead()
	}
	return t.rowMap(r, colNamesToRead, now), nil
}

func (t *table) rowMap(r *row, columns []string, now time.Time) map[string]interface{} {
	keyNames := t.keyColumns()
	result := make(map[string]interface{}, len(columns))
	for _, name := range columns {
		for i, kn := range keyNames {
			if kn == name {
				result[name] = r.key[i]
			}
		}
		if r.columnLive(name, now) {
			result[name] = copyValue(r.values[name])
		}
	}
	return result
}

// GetAllIter iterates over the rows of one partition.
func (c *Connector) GetAllIter(
	ctx context.Context,
	e *base.Definition,
	keys []base.Column,
	rng *base.SliceRange,
) (orm.Iterator, error) {
	c.Lock()
	defer c.Unlock()
	c.record(ctx, getIter, e.Name)
	c.reads.Inc()

	t, err := c.table(e.Name)
	if err != nil {
		return nil, err
	}
	prefix, err := t.keyOf(keys)
	if err != nil {
		return nil, err
	}

	now := c.now()
	columns := t.def.GetColumnsToRead()
	nParts := len(t.def.Key.PartitionKeys)
	var rows [][]base.Column
	t.scanPrefix(prefix, func(r *row) bool {
		if !r.live(now) || !inRange(r.key[nParts:], rng) {
			return true
		}
		values := t.rowMap(r, columns, now)
		var cols []base.Column
		for _, name := range columns {
			v, ok := values[name]
			if !ok {
				continue
			}
			col := base.Column{Name: name, Value: v}
			if !t.def.IsKeyColumn(name) {
				col.TTL = r.ttl(name, now)
			}
			cols = append(cols, col)
		}
		rows = append(rows, cols)
		return true
	})

	if rng != nil {
		if rng.Reversed {
			for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
				rows[i], rows[j] = rows[j], rows[i]
			}
		}
		if rng.Limit > 0 && len(rows) > rng.Limit {
			rows = rows[:rng.Limit]
		}
	}
	return &iterator{rows: rows}, nil
}

// inRange checks clustering values against inclusive tuple bounds.
func inRange(clustering []interface{}, rng *base.SliceRange) bool {
	if rng == nil {
		return true
	}
	if len(rng.From) > 0 && compareTuple(clustering, rng.From) < 0 {
		return false
	}
	if len(rng.To) > 0 && compareTuple(clustering, rng.To) > 0 {
		return false
	}
	return true
}

// compareTuple compares the leading components of values with bound.
func compareTuple(values, bound []interface{}) int {
	for i := 0; i < len(values) && i < len(bound); i++ {
		if c := compareValues(values[i], bound[i]); c != 0 {
			return c
		}
	}
	return 0
}

// Update writes columns of a row, creating it if needed.
func (c *Connector) Update(
	ctx context.Context,
	e *base.Definition,
	values []base.Column,
	keys []base.Column,
	ttl int32,
) error {
	c.Lock()
	defer c.Unlock()
	c.record(ctx, update, e.Name)
	c.writes.Inc()
	return c.update(e, values, keys, ttl)
}

func (c *Connector) update(
	e *base.Definition,
	values []base.Column,
	keys []base.Column,
	ttl int32,
) error {
	t, err := c.table(e.Name)
	if err != nil {
		return err
	}
	for _, col := range values {
		if t.def.IsKeyColumn(col.Name) {
			return errors.Errorf("PRIMARY KEY part %s found in SET part", col.Name)
		}
	}
	key, err := t.keyOf(keys)
	if err != nil {
		return err
	}
	if !t.isFullKey(key) {
		return errors.Errorf("some clustering keys are missing for table %s", e.Name)
	}
	c.write(t, c.upsertRow(t, key), values, ttl)
	return nil
}

// Delete removes a row, or a whole partition when keys only hold the
// partition key.
func (c *Connector) Delete(
	ctx context.Context,
	e *base.Definition,
	keys []base.Column,
) error {
	c.Lock()
	defer c.Unlock()
	c.record(ctx, del, e.Name)
	c.writes.Inc()
	return c.delete(e, keys)
}

func (c *Connector) delete(e *base.Definition, keys []base.Column) error {
	t, err := c.table(e.Name)
	if err != nil {
		return err
	}
	prefix, err := t.keyOf(keys)
	if err != nil {
		return err
	}
	var doomed []*row
	t.scanPrefix(prefix, func(r *row) bool {
		doomed = append(doomed, r)
		return true
	})
	for _, r := range doomed {
		t.rows.Delete(r)
	}
	return nil
}

// Increment adds delta to a counter column.
func (c *Connector) Increment(
	ctx context.Context,
	e *base.Definition,
	column string,
	delta int64,
	keys []base.Column,
) error {
	c.Lock()
	defer c.Unlock()
	c.record(ctx, increment, e.Name)
	c.writes.Inc()
	return c.increment(e, column, delta, keys)
}

func (c *Connector) increment(
	e *base.Definition,
	column string,
	delta int64,
	keys []base.Column,
) error {
	t, err := c.table(e.Name)
	if err != nil {
		return err
	}
	if t.def.KindOf(column) != base.CounterColumn {
		return errors.Errorf("column %s of table %s is not a counter", column, e.Name)
	}
	key, err := t.keyOf(keys)
	if err != nil {
		return err
	}
	if !t.isFullKey(key) {
		return errors.Errorf("some clustering keys are missing for table %s", e.Name)
	}
	r := c.upsertRow(t, key)
	current, _ := normalize(r.values[column]).(int64)
	r.values[column] = current + delta
	return nil
}

// ExecuteBatch applies the mutations in order under one lock. Mutations on
// unknown tables fail the batch before anything is written.
func (c *Connector) ExecuteBatch(ctx context.Context, mutations []*base.Mutation) error {
	c.Lock()
	defer c.Unlock()
	c.record(ctx, batch, "")
	c.writes.Inc()

	for _, m := range mutations {
		if _, err := c.table(m.Definition.Name); err != nil {
			return err
		}
		if m.Op == base.OpIncrement && len(m.Values) != 1 {
			return errors.Errorf("increment on table %s requires exactly one column",
				m.Definition.Name)
		}
	}
	for _, m := range mutations {
		var err error
		switch m.Op {
		case base.OpInsert:
			err = c.create(m.Definition, append(append([]base.Column{}, m.Keys...), m.Values...), m.TTL)
		case base.OpUpdate:
			err = c.update(m.Definition, m.Values, m.Keys, m.TTL)
		case base.OpDelete:
			err = c.delete(m.Definition, m.Keys)
		case base.OpIncrement:
			delta, _ := normalize(m.Values[0].Value).(int64)
			err = c.increment(m.Definition, m.Values[0].Name, delta, m.Keys)
		default:
			err = errors.Errorf("unknown mutation %v", m.Op)
		}
		if err != nil {
			return errors.Wrapf(err, "batch %s on table %s", m.Op, m.Definition.Name)
		}
	}
	return nil
}

// iterator serves rows snapshotted when the iterator was created.
type iterator struct {
	rows   [][]base.Column
	pos    int
	closed bool
}

// ensure that implementation (iterator) satisfies the interface
var _ orm.Iterator = (*iterator)(nil)

func (it *iterator) Next() ([]base.Column, error) {
	if it.closed {
		return nil, errors.New("iterator is closed")
	}
	if it.pos >= len(it.rows) {
		return nil, nil
	}
	row := it.rows[it.pos]
	it.pos++
	return row, nil
}

func (it *iterator) Close() {
	it.closed = true
	it.rows = nil
}
