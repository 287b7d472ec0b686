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

package parser

import (
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/robinvandenberg/Achilles/pkg/common"
	"github.com/robinvandenberg/Achilles/pkg/entity/meta"
	"github.com/robinvandenberg/Achilles/pkg/storage/objects/base"

	log "github.com/sirupsen/logrus"
)

var (
	objectType = reflect.TypeOf((*base.Object)(nil)).Elem()
	timeType   = reflect.TypeOf(time.Time{})
	bytesType  = reflect.TypeOf([]byte(nil))
)

// Parser builds entity descriptors from annotated struct types.
type Parser struct{}

// New creates a Parser.
func New() *Parser {
	return &Parser{}
}

// ParseEntity builds the descriptor of ctx.EntityType. Join properties are
// left unresolved and recorded in ctx.Joins; ResolveJoins binds them once
// every entity has been parsed.
func (p *Parser) ParseEntity(ctx *ParsingContext) (*meta.EntityMeta, error) {
	t := ctx.EntityType
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, common.NewMappingError(
			"entity type '%v' must be a struct", ctx.EntityType)
	}

	em := &meta.EntityMeta{
		ClassName:   className(ctx.Package, t),
		Type:        t,
		PropertyMap: make(map[string]*meta.PropertyMeta),
	}

	isEntity := false
	columns := make(map[string]string)
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if field.Anonymous && field.Type == objectType {
			isEntity = true
			name, err := parseEntityTag(field)
			if err != nil {
				return nil, err
			}
			em.TableName = name
			continue
		}

		tag, ok, err := parseColumnTag(field)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if field.PkgPath != "" {
			return nil, common.NewMappingError(
				"mapped field '%s' of entity '%s' must be exported",
				field.Name, em.ClassName)
		}
		if other, dup := columns[tag.name]; dup {
			return nil, common.NewMappingError(
				"column '%s' of entity '%s' is mapped by both '%s' and '%s'",
				tag.name, em.ClassName, other, field.Name)
		}
		columns[tag.name] = field.Name

		pm, err := p.parseProperty(ctx, em, field, tag)
		if err != nil {
			return nil, err
		}
		em.PropertyMap[pm.Name] = pm

		switch {
		case tag.partitionKey:
			if em.PartitionKey != nil {
				return nil, common.NewMappingError(
					"entity '%s' declares more than one partition key: '%s' and '%s'",
					em.ClassName, em.PartitionKey.Name, pm.Name)
			}
			em.PartitionKey = pm
		case tag.clusteringKey:
			em.ClusteringKeys = append(em.ClusteringKeys, pm)
		default:
			em.Properties = append(em.Properties, pm)
		}
	}

	if !isEntity {
		return nil, common.NewMappingError(
			"type '%s' must embed base.Object to be an entity", em.ClassName)
	}
	if em.TableName == "" {
		em.TableName = strings.ToLower(t.Name())
	}
	if em.PartitionKey == nil {
		return nil, common.NewMappingError(
			"entity '%s' must declare exactly one partition key", em.ClassName)
	}
	if err := sortClusteringKeys(em); err != nil {
		return nil, err
	}
	if len(em.Properties) == 0 {
		return nil, common.NewMappingError(
			"entity '%s' must declare at least one property besides its keys",
			em.ClassName)
	}

	for _, pm := range em.Properties {
		if pm.IsCounter() {
			pm.CounterProperties = meta.NewCounterProperties(em.ClassName, em.PartitionKey)
			em.HasCounter = true
			ctx.HasCounter = true
		}
	}

	log.WithFields(log.Fields{
		common.EntityLogField:       em.ClassName,
		common.ColumnFamilyLogField: em.TableName,
		"properties":                len(em.PropertyMap),
	}).Debug("entity parsed")
	return em, nil
}

func sortClusteringKeys(em *meta.EntityMeta) error {
	sort.SliceStable(em.ClusteringKeys, func(i, j int) bool {
		return em.ClusteringKeys[i].ClusteringOrder < em.ClusteringKeys[j].ClusteringOrder
	})
	for i := 1; i < len(em.ClusteringKeys); i++ {
		prev, cur := em.ClusteringKeys[i-1], em.ClusteringKeys[i]
		if prev.ClusteringOrder == cur.ClusteringOrder {
			return common.NewMappingError(
				"clustering keys '%s' and '%s' of entity '%s' share the sequence %d",
				prev.Name, cur.Name, em.ClassName, cur.ClusteringOrder)
		}
	}
	return nil
}

func (p *Parser) parseProperty(
	ctx *ParsingContext,
	em *meta.EntityMeta,
	field reflect.StructField,
	tag *columnTag,
) (*meta.PropertyMeta, error) {
	pm := &meta.PropertyMeta{
		Name:            field.Name,
		ColumnName:      tag.name,
		ValueType:       field.Type,
		SetterName:      "Set" + field.Name,
		EntityClassName: em.ClassName,
		FieldIndex:      field.Index,
		ClusteringOrder: tag.clusteringOrder,
		Cascade:         tag.cascade,
	}
	fail := func(format string, args ...interface{}) error {
		return common.NewMappingError(
			"field '%s' of entity '%s': "+format,
			append([]interface{}{field.Name, em.ClassName}, args...)...)
	}

	isKey := tag.partitionKey || tag.clusteringKey
	if tag.partitionKey && tag.clusteringKey {
		return nil, fail("cannot be both partition key and clustering key")
	}
	if tag.cascade && !tag.join {
		return nil, fail("cascade is only allowed on joins")
	}
	if isKey && (tag.counter || tag.join || tag.list || tag.set || tag.isMap) {
		return nil, fail("a key cannot be a counter, a join or a collection")
	}

	switch {
	case tag.counter:
		if tag.join || tag.list || tag.set || tag.isMap {
			return nil, fail("a counter cannot be a join or a collection")
		}
		if !isInteger(field.Type) {
			return nil, fail("counter requires an integer type, got %s", field.Type)
		}
		pm.Type = meta.CounterProperty
		return pm, nil

	case tag.join:
		if tag.list || tag.set || tag.isMap {
			return nil, fail("a join cannot be a collection")
		}
		if field.Type.Kind() != reflect.Ptr || field.Type.Elem().Kind() != reflect.Struct {
			return nil, fail("join requires a pointer to an entity, got %s", field.Type)
		}
		pm.Type = meta.JoinSimpleProperty
		ctx.Joins.Add(pm, field.Type.Elem())
		return pm, nil
	}

	ft := field.Type
	switch {
	case ft.Kind() == reflect.Map:
		if tag.list || tag.set {
			return nil, fail("map type %s cannot be declared as list or set", ft)
		}
		if !isScalar(ft.Key()) || !isScalar(ft.Elem()) {
			return nil, fail("unsupported map type %s", ft)
		}
		pm.Type = meta.MapProperty
		pm.KeyType = ft.Key()
		pm.ElementType = ft.Elem()
	case ft.Kind() == reflect.Slice && ft != bytesType:
		if tag.isMap {
			return nil, fail("slice type %s cannot be declared as map", ft)
		}
		if tag.list && tag.set {
			return nil, fail("cannot be both list and set")
		}
		if !isScalar(ft.Elem()) {
			return nil, fail("unsupported collection element type %s", ft.Elem())
		}
		pm.Type = meta.ListProperty
		if tag.set {
			pm.Type = meta.SetProperty
		}
		pm.ElementType = ft.Elem()
	default:
		if tag.list || tag.set || tag.isMap {
			return nil, fail("collection option on non collection type %s", ft)
		}
		pm.Type = meta.SimpleProperty
		switch {
		case isScalar(ft):
		case isEncodable(ft) && !isKey:
			pm.Encoded = true
		default:
			return nil, fail("unsupported type %s", ft)
		}
	}
	return pm, nil
}

func className(pkg string, t reflect.Type) string {
	if pkg == "" {
		return t.String()
	}
	return pkg + "." + t.Name()
}

func isInteger(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

// isScalar returns true for types stored natively in a column.
func isScalar(t reflect.Type) bool {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == timeType || t == bytesType {
		return true
	}
	switch t.Kind() {
	case reflect.Bool, reflect.String, reflect.Float32, reflect.Float64:
		return true
	case reflect.Array:
		// fixed size byte arrays, e.g. UUIDs
		return t.Elem().Kind() == reflect.Uint8
	}
	return isInteger(t)
}

// isEncodable returns true for types stored as codec encoded bytes.
func isEncodable(t reflect.Type) bool {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct
}

// ResolveJoins binds every pending join to the descriptor of its target
// entity. The join column stores the target partition key, so a target
// declaring clustering keys cannot be joined.
func (p *Parser) ResolveJoins(joins *PendingJoins, metas meta.EntityMetaMap) error {
	for _, j := range joins.joins {
		target, ok := metas[j.target]
		if !ok {
			return common.NewMappingError(
				"join '%s' of entity '%s' references '%s' which is not a managed entity",
				j.property.Name, j.property.EntityClassName, j.target)
		}
		if len(target.ClusteringKeys) > 0 {
			return common.NewMappingError(
				"join '%s' of entity '%s' references '%s' which declares clustering keys",
				j.property.Name, j.property.EntityClassName, target.ClassName)
		}
		j.property.JoinMeta = target
	}
	joins.joins = nil
	return nil
}

// ParseAll discovers, parses and links every entity registered under the
// given packages. hasCounter is true when at least one entity declares a
// counter.
func (p *Parser) ParseAll(packages []string) (
	metas meta.EntityMetaMap, hasCounter bool, err error) {
	entities, err := Discover(packages)
	if err != nil {
		return nil, false, err
	}

	joins := &PendingJoins{}
	metas = make(meta.EntityMetaMap, len(entities))
	var parsed []*meta.EntityMeta
	for _, e := range entities {
		ctx := NewParsingContext(joins, e.Package, e.Type)
		em, err := p.ParseEntity(ctx)
		if err != nil {
			return nil, false, err
		}
		metas[e.Type] = em
		parsed = append(parsed, em)
		hasCounter = hasCounter || ctx.HasCounter
	}

	if err := p.ResolveJoins(joins, metas); err != nil {
		return nil, false, err
	}
	if err := ValidateUniqueTables(parsed); err != nil {
		return nil, false, err
	}
	return metas, hasCounter, nil
}
