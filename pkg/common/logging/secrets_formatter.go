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

package logging

import (
	"regexp"

	"github.com/robinvandenberg/Achilles/pkg/common"
	"github.com/robinvandenberg/Achilles/pkg/storage/connectors/cassandra"

	log "github.com/sirupsen/logrus"
)

// SecretsFormatter scrubs credentials from logs and formats logs into
// parsable json.
type SecretsFormatter struct {
	*log.JSONFormatter
}

const redactedStr = "REDACTED"

var _sensitive = regexp.MustCompile(`(?i)password|secret|credential|token`)

// Format is called by logrus and returns the formatted string.
// It looks for secrets in each entry and redacts them.
func (f *SecretsFormatter) Format(entry *log.Entry) ([]byte, error) {
	for k, v := range entry.Data {
		if _sensitive.MatchString(k) {
			entry.Data[k] = redactedStr
			continue
		}
		switch v := v.(type) {
		case string:
			// a statement touching a sensitive column leaks its value
			// through the bound arguments
			if k == common.DBStmtLogField && _sensitive.MatchString(v) {
				entry.Data[k] = redactedStr
				if _, ok := entry.Data[common.DBArgsLogField]; ok {
					entry.Data[common.DBArgsLogField] = redactedStr
				}
			}
		case *cassandra.CassandraConn:
			if v != nil && v.Password != "" {
				conn := *v
				conn.Password = redactedStr
				entry.Data[k] = &conn
			}
		case *cassandra.Config:
			if v != nil && v.CassandraConn != nil && v.CassandraConn.Password != "" {
				conn := *v.CassandraConn
				conn.Password = redactedStr
				cfg := *v
				cfg.CassandraConn = &conn
				entry.Data[k] = &cfg
			}
		}
	}
	return f.JSONFormatter.Format(entry)
}
