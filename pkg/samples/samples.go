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

// Package samples declares example entities. Importing the package registers
// them under the "samples" entity package.
package samples

import (
	"time"

	"github.com/robinvandenberg/Achilles/pkg/entity/parser"
	"github.com/robinvandenberg/Achilles/pkg/storage/objects/base"

	"github.com/pborman/uuid"
)

// Package is the entity package the samples are registered under.
const Package = "samples"

func init() {
	parser.RegisterEntity(Package, &Sensor{})
	parser.RegisterEntity(Package, &User{})
	parser.RegisterEntity(Package, &Tweet{})
	parser.RegisterEntity(Package, &Timeline{})
}

// Sensor is one measure of a sensor. The measures of a sensor are ordered
// by date.
type Sensor struct {
	base.Object `cassandra:"name=sensor"`
	ID          int64     `column:"name=id, partition_key"`
	Date        time.Time `column:"name=date, clustering_key=1"`
	Type        string    `column:"name=type"`
	Value       float64   `column:"name=value"`
}

// User is a user account.
type User struct {
	base.Object `cassandra:"name=users"`
	Login       string            `column:"name=login, partition_key"`
	FirstName   string            `column:"name=firstname"`
	LastName    string            `column:"name=lastname"`
	Followers   []string          `column:"name=followers, set"`
	Preferences map[string]string `column:"name=preferences"`
	TweetCount  int64             `column:"name=tweet_count, counter"`
}

// Tweet is a message posted by a user.
type Tweet struct {
	base.Object `cassandra:"name=tweet"`
	ID          string    `column:"name=id, partition_key"`
	Author      *User     `column:"name=author, join"`
	Content     string    `column:"name=content"`
	Tags        []string  `column:"name=tags, set"`
	CreatedAt   time.Time `column:"name=created_at"`
}

// NewTweet returns a tweet with a new random id.
func NewTweet(author *User, content string, tags ...string) *Tweet {
	return &Tweet{
		ID:        uuid.New(),
		Author:    author,
		Content:   content,
		Tags:      tags,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
}

// Timeline lists the tweets shown to a user, newest last.
type Timeline struct {
	base.Object `cassandra:"name=timeline"`
	Login       string    `column:"name=login, partition_key"`
	At          time.Time `column:"name=at, clustering_key=1"`
	TweetID     string    `column:"name=tweet_id, clustering_key=2"`
	Tweet       *Tweet    `column:"name=tweet, join"`
}
