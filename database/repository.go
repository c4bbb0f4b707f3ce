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

	"github.com/blnkfinance/tally/model"
)

// IDataSource defines the interface for data source operations, grouping related functionalities.
type IDataSource interface {
	ledger      // Interface for ledger document operations
	healthCheck // Interface for connectivity checks
}

// ledger defines methods for handling per-user ledger documents.
type ledger interface {
	// GetLedger retrieves a user's ledger.
	GetLedger(ctx context.Context, userID string) (*model.Ledger, error)
	// CreateLedger inserts a new ledger; conflict if the user already has one.
	CreateLedger(ctx context.Context, ledger *model.Ledger) (*model.Ledger, error)
	// UpdateLedger replaces a ledger only if its stored version still matches.
	UpdateLedger(ctx context.Context, ledger *model.Ledger) (*model.Ledger, error)
}

type healthCheck interface {
	Ping(ctx context.Context) error
}
