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
	"github.com/uber-go/tally/v4"
)

// Metrics tracks the entity manager calls.
type Metrics struct {
	Persist     tally.Counter
	PersistFail tally.Counter

	Merge     tally.Counter
	MergeFail tally.Counter

	Remove     tally.Counter
	RemoveFail tally.Counter

	Find         tally.Counter
	FindFail     tally.Counter
	FindNotFound tally.Counter

	GetReference     tally.Counter
	GetReferenceFail tally.Counter

	Refresh     tally.Counter
	RefreshFail tally.Counter

	Initialize     tally.Counter
	InitializeFail tally.Counter

	SliceIterator     tally.Counter
	SliceIteratorFail tally.Counter

	CounterIterator     tally.Counter
	CounterIteratorFail tally.Counter

	BatchStart     tally.Counter
	BatchEnd       tally.Counter
	BatchEndFail   tally.Counter
	BatchClean     tally.Counter
	BatchPoisoned  tally.Counter
	BatchMutations tally.Counter
}

// NewMetrics returns a new Metrics struct, with all metrics initialized and
// rooted at the given tally.Scope
func NewMetrics(scope tally.Scope) *Metrics {
	entityScope := scope.SubScope("entity")
	successScope := entityScope.Tagged(map[string]string{"result": "success"})
	failScope := entityScope.Tagged(map[string]string{"result": "fail"})

	batchScope := scope.SubScope("batch")

	return &Metrics{
		Persist:     successScope.Counter("persist"),
		PersistFail: failScope.Counter("persist"),

		Merge:     successScope.Counter("merge"),
		MergeFail: failScope.Counter("merge"),

		Remove:     successScope.Counter("remove"),
		RemoveFail: failScope.Counter("remove"),

		Find:         successScope.Counter("find"),
		FindFail:     failScope.Counter("find"),
		FindNotFound: entityScope.Counter("find_not_found"),

		GetReference:     successScope.Counter("get_reference"),
		GetReferenceFail: failScope.Counter("get_reference"),

		Refresh:     successScope.Counter("refresh"),
		RefreshFail: failScope.Counter("refresh"),

		Initialize:     successScope.Counter("initialize"),
		InitializeFail: failScope.Counter("initialize"),

		SliceIterator:     successScope.Counter("slice_iterator"),
		SliceIteratorFail: failScope.Counter("slice_iterator"),

		CounterIterator:     successScope.Counter("counter_iterator"),
		CounterIteratorFail: failScope.Counter("counter_iterator"),

		BatchStart:     batchScope.Counter("start"),
		BatchEnd:       batchScope.Counter("end"),
		BatchEndFail:   batchScope.Counter("end_fail"),
		BatchClean:     batchScope.Counter("clean"),
		BatchPoisoned:  batchScope.Counter("poisoned"),
		BatchMutations: batchScope.Counter("mutations"),
	}
}

func count(err error, success, fail tally.Counter) {
	if err != nil {
		fail.Inc(1)
		return
	}
	success.Inc(1)
}
