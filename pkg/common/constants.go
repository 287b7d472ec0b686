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

package common

const (
	// AppLogField is the log field key for app name
	AppLogField = "app"

	// DBStmtLogField is the log field key for a CQL statement
	DBStmtLogField = "db_stmt"
	// DBArgsLogField is the log field key for the arguments bound to a CQL
	// statement
	DBArgsLogField = "db_args"

	// EntityLogField is the log field key for an entity class name
	EntityLogField = "entity"
	// ColumnFamilyLogField is the log field key for a column family name
	ColumnFamilyLogField = "column_family"
	// ConsistencyLogField is the log field key for a consistency level
	ConsistencyLogField = "consistency"
	// PrimaryKeyLogField is the log field key for an entity primary key
	PrimaryKeyLogField = "primary_key"

	// CounterColumnFamily is the column family shared by every entity that
	// declares counter properties
	CounterColumnFamily = "achilles_counter_cf"
	// CounterFQCNColumn, CounterPrimaryKeyColumn, CounterPropertyColumn and
	// CounterValueColumn are the columns of the counter column family
	CounterFQCNColumn       = "fqcn"
	CounterPrimaryKeyColumn = "primary_key"
	CounterPropertyColumn   = "property_name"
	CounterValueColumn      = "counter_value"
)
