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
	"bytes"
	"fmt"
	"reflect"
	"strings"
	"text/template"
	"time"

	"github.com/robinvandenberg/Achilles/pkg/storage/objects/base"

	"github.com/gocql/gocql"
	"github.com/pkg/errors"
)

// Options holds the clauses of a CQL statement.
type Options struct {
	Table      string
	Columns    []string
	Values     []interface{}
	Conditions []string
	Updates    []string
	IfNotExist bool
	Limit      int
	TTL        int32
	// TTLColumns are selected as TTL(column) after Columns
	TTLColumns []string
	// Counter is the counter column of a counter update
	Counter string
	// RangeColumns are the clustering columns bounded by RangeFrom/RangeTo
	RangeColumns []string
	RangeFrom    int
	RangeTo      int
	OrderBy      []string
}

// Option sets a clause of a CQL statement.
type Option func(*Options)

// Table sets the table name.
func Table(name string) Option {
	return func(o *Options) { o.Table = name }
}

// Columns sets the columns to insert or select.
func Columns(cols []string) Option {
	return func(o *Options) { o.Columns = cols }
}

// Values sets the values to insert, only their count matters.
func Values(values []interface{}) Option {
	return func(o *Options) { o.Values = values }
}

// Conditions sets the equality conditions of the WHERE clause.
func Conditions(cols []string) Option {
	return func(o *Options) { o.Conditions = cols }
}

// Updates sets the columns of the SET clause.
func Updates(cols []string) Option {
	return func(o *Options) { o.Updates = cols }
}

// IfNotExist makes an insert a CAS write.
func IfNotExist(cas bool) Option {
	return func(o *Options) { o.IfNotExist = cas }
}

// Limit caps the rows returned by a select, 0 means no limit.
func Limit(limit int) Option {
	return func(o *Options) { o.Limit = limit }
}

// TTL makes written values expire after ttl seconds, 0 means never.
func TTL(ttl int32) Option {
	return func(o *Options) { o.TTL = ttl }
}

// TTLColumns selects the remaining TTL of the given columns.
func TTLColumns(cols []string) Option {
	return func(o *Options) { o.TTLColumns = cols }
}

// CounterColumn sets the counter incremented by a counter update.
func CounterColumn(col string) Option {
	return func(o *Options) { o.Counter = col }
}

// Range bounds clustering columns with inclusive tuple relations. from and
// to are the number of bound components, 0 leaves that side open.
func Range(cols []string, from, to int) Option {
	return func(o *Options) {
		o.RangeColumns = cols
		o.RangeFrom = from
		o.RangeTo = to
	}
}

// OrderBy sets the ORDER BY clause, each entry being "column ASC|DESC".
func OrderBy(order []string) Option {
	return func(o *Options) { o.OrderBy = order }
}

func quote(s string) string {
	return `"` + s + `"`
}

var funcMap = template.FuncMap{
	"quote": quote,
	"join": func(s []string) string {
		return strings.Join(s, ", ")
	},
	"quoteJoin": func(cols []string) string {
		quoted := make([]string, len(cols))
		for i, c := range cols {
			quoted[i] = quote(c)
		}
		return strings.Join(quoted, ", ")
	},
	"ttlJoin": func(cols []string) string {
		ttls := make([]string, len(cols))
		for i, c := range cols {
			ttls[i] = "TTL(" + quote(c) + ")"
		}
		return strings.Join(ttls, ", ")
	},
	"placeholders": func(n int) string {
		return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
	},
	"where": func(o *Options) string {
		var clauses []string
		for _, c := range o.Conditions {
			clauses = append(clauses, c+"=?")
		}
		if o.RangeFrom > 0 {
			clauses = append(clauses, rangeRelation(o.RangeColumns[:o.RangeFrom], ">="))
		}
		if o.RangeTo > 0 {
			clauses = append(clauses, rangeRelation(o.RangeColumns[:o.RangeTo], "<="))
		}
		if len(clauses) == 0 {
			return ""
		}
		return " WHERE " + strings.Join(clauses, " AND ")
	},
	"assignments": func(cols []string) string {
		sets := make([]string, len(cols))
		for i, c := range cols {
			sets[i] = c + "=?"
		}
		return strings.Join(sets, ", ")
	},
}

func rangeRelation(cols []string, op string) string {
	return fmt.Sprintf("(%s) %s (%s)",
		strings.Join(cols, ", "), op,
		strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "))
}

var (
	insertTmpl = template.Must(template.New("insert").Funcs(funcMap).Parse(
		`INSERT INTO {{quote .Table}} ({{quoteJoin .Columns}}) VALUES ` +
			`({{placeholders (len .Columns)}})` +
			`{{if .IfNotExist}} IF NOT EXISTS{{end}}` +
			`{{if .TTL}} USING TTL {{.TTL}}{{end}};`))

	selectTmpl = template.Must(template.New("select").Funcs(funcMap).Parse(
		`SELECT {{quoteJoin .Columns}}` +
			`{{if .TTLColumns}}, {{ttlJoin .TTLColumns}}{{end}}` +
			` FROM {{quote .Table}}{{where .}}` +
			`{{if .OrderBy}} ORDER BY {{join .OrderBy}}{{end}}` +
			`{{if .Limit}} LIMIT {{.Limit}}{{end}};`))

	deleteTmpl = template.Must(template.New("delete").Funcs(funcMap).Parse(
		`DELETE FROM {{quote .Table}}{{where .}};`))

	updateTmpl = template.Must(template.New("update").Funcs(funcMap).Parse(
		`UPDATE {{quote .Table}}{{if .TTL}} USING TTL {{.TTL}}{{end}}` +
			` SET {{assignments .Updates}}{{where .}};`))

	counterTmpl = template.Must(template.New("counter").Funcs(funcMap).Parse(
		`UPDATE {{quote .Table}} SET {{.Counter}}={{.Counter}}+?{{where .}};`))
)

func buildStmt(tmpl *template.Template, opts []Option) (string, error) {
	o := &Options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.Table == "" {
		return "", errors.New("table name is required")
	}
	if o.RangeFrom > len(o.RangeColumns) || o.RangeTo > len(o.RangeColumns) {
		return "", errors.New("range bounds exceed the clustering columns")
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, o); err != nil {
		return "", errors.Wrapf(err, "failed to build %s statement", tmpl.Name())
	}
	return buf.String(), nil
}

// InsertStmt builds an INSERT statement.
func InsertStmt(opts ...Option) (string, error) {
	return buildStmt(insertTmpl, opts)
}

// SelectStmt builds a SELECT statement.
func SelectStmt(opts ...Option) (string, error) {
	return buildStmt(selectTmpl, opts)
}

// DeleteStmt builds a DELETE statement.
func DeleteStmt(opts ...Option) (string, error) {
	return buildStmt(deleteTmpl, opts)
}

// UpdateStmt builds an UPDATE statement.
func UpdateStmt(opts ...Option) (string, error) {
	return buildStmt(updateTmpl, opts)
}

// CounterUpdateStmt builds an UPDATE statement adding to a counter column.
func CounterUpdateStmt(opts ...Option) (string, error) {
	return buildStmt(counterTmpl, opts)
}

var (
	_timeType  = reflect.TypeOf(time.Time{})
	_bytesType = reflect.TypeOf([]byte(nil))
	_uuidType  = reflect.TypeOf(gocql.UUID{})
)

// cqlType returns the CQL type storing values of the Go type t.
func cqlType(t reflect.Type, kind base.ColumnKind) (string, error) {
	if kind == base.CounterColumn {
		return "counter", nil
	}
	t = base.CanonicalType(t)
	switch {
	case t == _timeType:
		return "timestamp", nil
	case t == _bytesType:
		return "blob", nil
	case t == _uuidType:
		return "uuid", nil
	}
	switch t.Kind() {
	case reflect.String:
		return "text", nil
	case reflect.Int64:
		return "bigint", nil
	case reflect.Int32:
		return "int", nil
	case reflect.Int16:
		return "smallint", nil
	case reflect.Int8:
		return "tinyint", nil
	case reflect.Bool:
		return "boolean", nil
	case reflect.Float32:
		return "float", nil
	case reflect.Float64:
		return "double", nil
	case reflect.Slice:
		elem, err := cqlType(t.Elem(), base.SimpleColumn)
		if err != nil {
			return "", err
		}
		if kind == base.SetColumn {
			return "set<" + elem + ">", nil
		}
		return "list<" + elem + ">", nil
	case reflect.Map:
		key, err := cqlType(t.Key(), base.SimpleColumn)
		if err != nil {
			return "", err
		}
		elem, err := cqlType(t.Elem(), base.SimpleColumn)
		if err != nil {
			return "", err
		}
		return "map<" + key + ", " + elem + ">", nil
	}
	return "", errors.Errorf("no CQL type for %s", t)
}

// CreateTableStmt builds the CREATE TABLE statement of a definition.
// Columns are declared in GetColumnsToRead order.
func CreateTableStmt(e *base.Definition) (string, error) {
	if e.Name == "" {
		return "", errors.New("table name is required")
	}
	if e.Key == nil || len(e.Key.PartitionKeys) == 0 {
		return "", errors.Errorf("table %s requires a partition key", e.Name)
	}

	var decls []string
	for _, col := range e.GetColumnsToRead() {
		typ, ok := e.ColumnToType[col]
		if !ok {
			return "", errors.Errorf("no type for column %s of table %s", col, e.Name)
		}
		ct, err := cqlType(typ, e.KindOf(col))
		if err != nil {
			return "", errors.Wrapf(err, "column %s of table %s", col, e.Name)
		}
		decls = append(decls, quote(col)+" "+ct)
	}

	partition := make([]string, len(e.Key.PartitionKeys))
	for i, pk := range e.Key.PartitionKeys {
		partition[i] = quote(pk)
	}
	key := []string{"(" + strings.Join(partition, ", ") + ")"}
	var order []string
	for _, ck := range e.Key.ClusteringKeys {
		key = append(key, quote(ck.Name))
		dir := "ASC"
		if ck.Descending {
			dir = "DESC"
		}
		order = append(order, quote(ck.Name)+" "+dir)
	}

	stmt := fmt.Sprintf("CREATE TABLE %s (%s, PRIMARY KEY (%s))",
		quote(e.Name), strings.Join(decls, ", "), strings.Join(key, ", "))
	if len(order) > 0 {
		stmt += " WITH CLUSTERING ORDER BY (" + strings.Join(order, ", ") + ")"
	}
	return stmt + ";", nil
}
