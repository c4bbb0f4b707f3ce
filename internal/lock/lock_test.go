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

package redlock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocker_Lock_Success(t *testing.T) {
	db, mock := redismock.NewClientMock()
	locker := NewLocker(db, "ledger-lock:user_1", "owner-a")

	mock.ExpectSetNX("ledger-lock:user_1", "owner-a", 5*time.Second).SetVal(true)

	err := locker.Lock(context.Background(), 5*time.Second)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLocker_Lock_Held(t *testing.T) {
	db, mock := redismock.NewClientMock()
	locker := NewLocker(db, "ledger-lock:user_1", "owner-a")

	mock.ExpectSetNX("ledger-lock:user_1", "owner-a", 5*time.Second).SetVal(false)

	err := locker.Lock(context.Background(), 5*time.Second)
	assert.EqualError(t, err, "lock for key ledger-lock:user_1 is already held")
	assert.ErrorIs(t, err, ErrLockHeld)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLocker_Unlock(t *testing.T) {
	db, mock := redismock.NewClientMock()
	locker := NewLocker(db, "ledger-lock:user_1", "owner-a")

	mock.ExpectEval(unlockScript, []string{"ledger-lock:user_1"}, "owner-a").SetVal(int64(1))
	assert.NoError(t, locker.Unlock(context.Background()))

	mock.ExpectEval(unlockScript, []string{"ledger-lock:user_1"}, "owner-a").SetVal(int64(0))
	err := locker.Unlock(context.Background())
	assert.EqualError(t, err, "unlock failed, either lock expired or you're not the lock holder for key ledger-lock:user_1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLocker_ExtendLock(t *testing.T) {
	db, mock := redismock.NewClientMock()
	locker := NewLocker(db, "ledger-lock:user_1", "owner-a")

	mock.ExpectEval(extendScript, []string{"ledger-lock:user_1"}, "owner-a", "5000").SetVal(int64(1))
	assert.NoError(t, locker.ExtendLock(context.Background(), 5*time.Second))

	mock.ExpectEval(extendScript, []string{"ledger-lock:user_1"}, "owner-a", "5000").SetVal(int64(0))
	err := locker.ExtendLock(context.Background(), 5*time.Second)
	assert.EqualError(t, err, "lock extension failed for key ledger-lock:user_1, either lock expired or you're not the holder")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLocker_WaitLock_RedisErrorIsNotRetried(t *testing.T) {
	db, mock := redismock.NewClientMock()
	locker := NewLocker(db, "ledger-lock:user_1", "owner-a")

	mock.ExpectSetNX("ledger-lock:user_1", "owner-a", 5*time.Second).SetErr(errors.New("connection refused"))

	err := locker.WaitLock(context.Background(), 5*time.Second, time.Second)
	assert.EqualError(t, err, "connection refused")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func newMiniredisClient(t *testing.T) (*miniredis.Miniredis, redis.UniversalClient) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestLocker_WaitLock_AcquiresAfterRelease(t *testing.T) {
	_, client := newMiniredisClient(t)
	ctx := context.Background()

	holder := NewLocker(client, "ledger-lock:user_1", "owner-a")
	require.NoError(t, holder.Lock(ctx, 5*time.Second))

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = holder.Unlock(ctx)
	}()

	waiter := NewLocker(client, "ledger-lock:user_1", "owner-b")
	require.NoError(t, waiter.WaitLock(ctx, 5*time.Second, 2*time.Second))
	assert.NoError(t, waiter.Unlock(ctx))
}

func TestLocker_WaitLock_Timeout(t *testing.T) {
	_, client := newMiniredisClient(t)
	ctx := context.Background()

	holder := NewLocker(client, "ledger-lock:user_1", "owner-a")
	require.NoError(t, holder.Lock(ctx, 5*time.Second))

	waiter := NewLocker(client, "ledger-lock:user_1", "owner-b")
	err := waiter.WaitLock(ctx, 5*time.Second, 100*time.Millisecond)
	assert.ErrorIs(t, err, ErrLockHeld)
	assert.Contains(t, err.Error(), "within the wait timeout")

	// owner-b must not be able to release owner-a's lock
	assert.Error(t, waiter.Unlock(ctx))
	assert.NoError(t, holder.Unlock(ctx))
}
