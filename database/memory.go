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

package database

import (
	"context"
	"fmt"
	"sync"

	"github.com/blnkfinance/tally/internal/apierror"
	"github.com/blnkfinance/tally/model"
)

// MemoryDatasource keeps ledgers in process memory with the same version
// semantics as the Postgres datasource. Snapshots are cloned on the way in and out.
type MemoryDatasource struct {
	mu      sync.RWMutex
	ledgers map[string]*model.Ledger
}

func NewMemoryDataSource() *MemoryDatasource {
	return &MemoryDatasource{ledgers: make(map[string]*model.Ledger)}
}

func (m *MemoryDatasource) GetLedger(ctx context.Context, userID string) (*model.Ledger, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	ledger, ok := m.ledgers[userID]
	if !ok {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Ledger for user '%s' not found", userID), model.ErrLedgerNotFound)
	}
	return ledger.Clone(), nil
}

func (m *MemoryDatasource) CreateLedger(ctx context.Context, ledger *model.Ledger) (*model.Ledger, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.ledgers[ledger.UserID]; ok {
		return nil, apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("Ledger for user '%s' already exists", ledger.UserID), model.ErrLedgerExists)
	}
	created := ledger.Clone()
	created.InitializeLedgerFields()
	created.Version = 1
	m.ledgers[created.UserID] = created
	return created.Clone(), nil
}

func (m *MemoryDatasource) UpdateLedger(ctx context.Context, ledger *model.Ledger) (*model.Ledger, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.ledgers[ledger.UserID]
	if !ok || current.Version != ledger.Version {
		return nil, apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("Optimistic locking failure: ledger for user '%s' was updated by another writer", ledger.UserID), model.ErrVersionConflict)
	}
	updated := ledger.Clone()
	updated.Version++
	m.ledgers[updated.UserID] = updated
	return updated.Clone(), nil
}

func (m *MemoryDatasource) Ping(ctx context.Context) error {
	return ctx.Err()
}
