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
	"sync"
	"time"

	redlock "github.com/blnkfinance/tally/internal/lock"
	"github.com/blnkfinance/tally/model"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const ledgerLockPrefix = "ledger-lock:"

// LedgerLocker serialises read-modify-write cycles on one user's ledger.
type LedgerLocker interface {
	// Lock blocks until the user's ledger is held or ctx is done. The
	// returned function releases it.
	Lock(ctx context.Context, userID string) (func(), error)
}

// RedisLocker holds a SET NX lock per user, so writers in different
// processes are serialised too.
type RedisLocker struct {
	client redis.UniversalClient
	ttl    time.Duration
	wait   time.Duration
}

func NewRedisLocker(client redis.UniversalClient, ttl, wait time.Duration) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl, wait: wait}
}

func (r *RedisLocker) Lock(ctx context.Context, userID string) (func(), error) {
	locker := redlock.NewLocker(r.client, ledgerLockPrefix+userID, model.GenerateUUIDWithSuffix("lock"))
	if err := locker.WaitLock(ctx, r.ttl, r.wait); err != nil {
		return nil, err
	}

	stop, stopped := make(chan struct{}), make(chan struct{})
	go r.keepAlive(locker, stop, stopped)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-stopped
			// the caller's ctx may already be cancelled; the lock must still go
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := locker.Unlock(ctx); err != nil {
				logrus.WithField("user_id", userID).Warnf("failed to release ledger lock: %v", err)
			}
		})
	}, nil
}

// keepAlive pushes the lock's expiry out by a full TTL every half TTL until
// stop is closed.
func (r *RedisLocker) keepAlive(locker *redlock.Locker, stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)
	interval := r.ttl / 2
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			err := locker.ExtendLock(ctx, r.ttl)
			cancel()
			if err != nil {
				logrus.WithField("lock_key", locker.Key()).Warnf("failed to extend ledger lock: %v", err)
				return
			}
		}
	}
}

// LocalLocker is an in-process keyed mutex. Entries are dropped once no
// goroutine holds or waits on them.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*localLock
}

type localLock struct {
	held chan struct{}
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*localLock)}
}

func (l *LocalLocker) Lock(ctx context.Context, userID string) (func(), error) {
	l.mu.Lock()
	entry, ok := l.locks[userID]
	if !ok {
		entry = &localLock{held: make(chan struct{}, 1)}
		l.locks[userID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.held <- struct{}{}:
	case <-ctx.Done():
		l.release(userID, entry)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-entry.held
			l.release(userID, entry)
		})
	}, nil
}

func (l *LocalLocker) release(userID string, entry *localLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, userID)
	}
}

func (l *LocalLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
