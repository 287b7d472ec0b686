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

package backoff

import (
	"context"
	"time"
)

// Done is returned by NextBackOff once no attempt is left.
const Done time.Duration = -1

// Retrier is interface for managing backoff.
type Retrier interface {
	NextBackOff() time.Duration
}

// NewRetrier is used for creating a new instance of Retrier
func NewRetrier(policy RetryPolicy) Retrier {
	return &retrierImpl{
		policy:         policy,
		currentAttempt: 1,
	}
}

type retrierImpl struct {
	policy         RetryPolicy
	currentAttempt int
}

// NextBackOff returns the next delay interval.
func (r *retrierImpl) NextBackOff() time.Duration {
	nextInterval := r.policy.CalculateNextDelay(r.currentAttempt)

	r.currentAttempt++
	return nextInterval
}

// RetryPolicy is interface for defining retry policy.
type RetryPolicy interface {
	CalculateNextDelay(attempts int) time.Duration
}

// NewRetryPolicy returns a policy allowing maxAttempts attempts. The delay
// starts at retryInterval and doubles after every attempt, up to
// maxInterval. A zero maxInterval keeps the delay constant.
func NewRetryPolicy(maxAttempts int, retryInterval, maxInterval time.Duration) RetryPolicy {
	return &retryPolicy{
		maxAttempts:   maxAttempts,
		retryInterval: retryInterval,
		maxInterval:   maxInterval,
	}
}

type retryPolicy struct {
	maxAttempts   int
	retryInterval time.Duration
	maxInterval   time.Duration
}

// CalculateNextDelay returns next delay.
func (p *retryPolicy) CalculateNextDelay(attempts int) time.Duration {
	if attempts >= p.maxAttempts {
		return Done
	}
	if p.maxInterval <= 0 {
		return p.retryInterval
	}
	delay := p.retryInterval
	for i := 1; i < attempts && delay < p.maxInterval; i++ {
		delay *= 2
	}
	if delay > p.maxInterval {
		delay = p.maxInterval
	}
	return delay
}

// Retry calls fn until it succeeds or the retrier is done, and returns the
// last error. It stops waiting when ctx is done.
func Retry(ctx context.Context, fn func() error, r Retrier) error {
	for {
		err := fn()
		if err == nil {
			return nil
		}
		delay := r.NextBackOff()
		if delay == Done {
			return err
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
}
