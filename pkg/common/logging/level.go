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
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	// JSONFormat logs entries as json objects, with secrets redacted.
	JSONFormat = "json"
	// TextFormat logs entries as human readable lines.
	TextFormat = "text"
)

// Setup configures the standard logger: level is a logrus level name and
// fields are added to every entry.
func Setup(level string, format string, fields log.Fields) error {
	l, err := log.ParseLevel(level)
	if err != nil {
		return err
	}

	var formatter log.Formatter
	switch format {
	case JSONFormat, "":
		formatter = &SecretsFormatter{JSONFormatter: &log.JSONFormatter{}}
	case TextFormat:
		formatter = &log.TextFormatter{FullTimestamp: true}
	default:
		return errors.Errorf("unknown log format %q", format)
	}

	log.SetLevel(l)
	log.SetOutput(os.Stderr)
	log.SetFormatter(LogFieldFormatter{Fields: fields, Formatter: formatter})
	return nil
}
