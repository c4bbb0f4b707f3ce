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
	"embed"
	"time"

	"github.com/blnkfinance/tally/config"
	"github.com/blnkfinance/tally/database"
	"github.com/blnkfinance/tally/internal/cache"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
)

//go:embed sql/*.sql
var SQLFiles embed.FS

var tracer = otel.Tracer("tally.ledger")

// Tally owns one ledger per user and keeps balance, inAmount, outAmount and
// history consistent across every mutation.
type Tally struct {
	datasource         database.IDataSource
	locker             LedgerLocker
	colors             ColorStore
	events             EventPublisher
	retry              RetryPolicy
	maxConflictRetries int
	now                func() time.Time
	newColor           ColorGenerator
}

// Options carries the collaborators of a Tally. Zero values fall back to
// in-process implementations.
type Options struct {
	Locker             LedgerLocker
	Colors             ColorStore
	Events             EventPublisher
	Retry              RetryPolicy
	MaxConflictRetries int
	Clock              func() time.Time
	ColorGenerator     ColorGenerator
}

func NewTally(datasource database.IDataSource, opts Options) *Tally {
	t := &Tally{
		datasource:         datasource,
		locker:             opts.Locker,
		colors:             opts.Colors,
		events:             opts.Events,
		retry:              opts.Retry,
		maxConflictRetries: opts.MaxConflictRetries,
		now:                opts.Clock,
		newColor:           opts.ColorGenerator,
	}
	if t.locker == nil {
		t.locker = NewLocalLocker()
	}
	if t.colors == nil {
		t.colors = NewMemoryColorStore()
	}
	if t.events == nil {
		t.events = noopPublisher{}
	}
	if t.retry.MaxAttempts <= 0 {
		t.retry = DefaultRetryPolicy()
	}
	if t.maxConflictRetries <= 0 {
		t.maxConflictRetries = config.DEFAULT_CONFLICT_RETRIES
	}
	if t.now == nil {
		t.now = time.Now
	}
	if t.newColor == nil {
		t.newColor = RandomColor
	}
	return t
}

// OptionsFromConfig builds the production collaborators. A nil redis client
// keeps locking and colors in process and disables webhooks.
func OptionsFromConfig(cnf *config.Configuration, client redis.UniversalClient) (Options, error) {
	opts := Options{
		Retry: RetryPolicy{
			MaxAttempts:     cnf.Ledger.StorageRetryMaxAttempts,
			InitialInterval: cnf.Ledger.StorageRetryInitialInterval(),
			MaxElapsedTime:  cnf.Ledger.StorageRetryMaxElapsed(),
		},
		MaxConflictRetries: cnf.Ledger.MaxConflictRetries,
	}
	if client == nil {
		return opts, nil
	}

	opts.Locker = NewRedisLocker(client, cnf.Ledger.LockTTL(), cnf.Ledger.LockWait())
	opts.Colors = cache.NewColorCache(client)
	if cnf.Notification.Webhook.Url != "" {
		publisher, err := NewWebhookPublisher(cnf)
		if err != nil {
			return opts, err
		}
		opts.Events = publisher
	}
	return opts, nil
}

// Close releases the event publisher's resources.
func (t *Tally) Close() error {
	return t.events.Close()
}

// clock returns the current time at the precision Postgres stores.
func (t *Tally) clock() time.Time {
	return t.now().UTC().Truncate(time.Microsecond)
}
