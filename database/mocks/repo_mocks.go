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
package mocks

import (
	"context"

	"github.com/blnkfinance/tally/model"
	"github.com/stretchr/testify/mock"
)

// MockDataSource is a mock implementation of the IDataSource interface
type MockDataSource struct {
	mock.Mock
}

func (m *MockDataSource) GetLedger(ctx context.Context, userID string) (*model.Ledger, error) {
	args := m.Called(ctx, userID)
	if ledger, ok := args.Get(0).(*model.Ledger); ok {
		return ledger, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDataSource) CreateLedger(ctx context.Context, ledger *model.Ledger) (*model.Ledger, error) {
	args := m.Called(ctx, ledger)
	if created, ok := args.Get(0).(*model.Ledger); ok {
		return created, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDataSource) UpdateLedger(ctx context.Context, ledger *model.Ledger) (*model.Ledger, error) {
	args := m.Called(ctx, ledger)
	if updated, ok := args.Get(0).(*model.Ledger); ok {
		return updated, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDataSource) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
