/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package tally

import (
	"context"
	"errors"
	"time"

	"github.com/blnkfinance/tally/config"
	"github.com/blnkfinance/tally/internal/apierror"
	"github.com/blnkfinance/tally/internal/metrics"
	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// RetryPolicy bounds the retries of a single storage round-trip.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxElapsedTime  time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     config.DEFAULT_STORAGE_ATTEMPTS,
		InitialInterval: config.DEFAULT_STORAGE_INTERVAL_MS * time.Millisecond,
		MaxElapsedTime:  config.DEFAULT_STORAGE_ELAPSED_MS * time.Millisecond,
	}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	exponential := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		exponential.InitialInterval = p.InitialInterval
	}
	exponential.MaxElapsedTime = p.MaxElapsedTime

	var policy backoff.BackOff = exponential
	if p.MaxAttempts > 0 {
		policy = backoff.WithMaxRetries(policy, uint64(p.MaxAttempts-1))
	}
	return backoff.WithContext(policy, ctx)
}

// isTransient reports whether a storage error is worth retrying. Typed API
// errors (not found, conflict, validation, corrupt data) and context errors
// are final; anything else came from the driver or network.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	var apiErr apierror.APIError
	if errors.As(err, &apiErr) {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// withStorageRetry runs op with bounded exponential backoff. Exhausted
// transient failures come back as STORAGE_ERROR.
func withStorageRetry[T any](ctx context.Context, policy RetryPolicy, op func() (T, error)) (T, error) {
	result, err := backoff.RetryNotifyWithData(func() (T, error) {
		result, err := op()
		if err != nil && !isTransient(err) {
			return result, backoff.Permanent(err)
		}
		return result, err
	}, policy.backOff(ctx), func(err error, next time.Duration) {
		metrics.RecordStorageRetry()
		logrus.Warnf("storage call failed, retrying in %s: %v", next, err)
	})
	if isTransient(err) {
		return result, apierror.NewAPIError(apierror.ErrStorage, "Ledger storage is unavailable, try again later", err)
	}
	return result, err
}
