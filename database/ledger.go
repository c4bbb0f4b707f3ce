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
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/blnkfinance/tally/internal/apierror"
	"github.com/blnkfinance/tally/model"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("tally.database")

const selectLedger = `
	SELECT user_id, balance, in_amount, out_amount, history, next_sequence, version, created_at, updated_at
	FROM tally.ledgers
	WHERE user_id = $1
`

func (d *Datasource) GetLedger(ctx context.Context, userID string) (*model.Ledger, error) {
	ctx, span := tracer.Start(ctx, "Fetching ledger from db")
	defer span.End()

	ledger := model.Ledger{}
	var historyJSON []byte
	err := d.Conn.QueryRowContext(ctx, selectLedger, userID).Scan(
		&ledger.UserID,
		&ledger.Balance,
		&ledger.InAmount,
		&ledger.OutAmount,
		&historyJSON,
		&ledger.NextSequence,
		&ledger.Version,
		&ledger.CreatedAt,
		&ledger.UpdatedAt,
	)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Ledger for user '%s' not found", userID), model.ErrLedgerNotFound)
		}
		return nil, fmt.Errorf("failed to retrieve ledger: %w", err)
	}

	if err := json.Unmarshal(historyJSON, &ledger.History); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal history", err)
	}
	ledger.InitializeLedgerFields()
	return &ledger, nil
}

func (d *Datasource) CreateLedger(ctx context.Context, ledger *model.Ledger) (*model.Ledger, error) {
	ctx, span := tracer.Start(ctx, "Saving ledger to db")
	defer span.End()

	created := ledger.Clone()
	created.InitializeLedgerFields()
	created.Version = 1

	historyJSON, err := json.Marshal(created.History)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal history", err)
	}

	_, err = d.Conn.ExecContext(ctx, `
		INSERT INTO tally.ledgers (user_id, balance, in_amount, out_amount, history, next_sequence, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, created.UserID, created.Balance.String(), created.InAmount.String(), created.OutAmount.String(), historyJSON, created.NextSequence, created.Version, created.CreatedAt, created.UpdatedAt)
	if err != nil {
		span.RecordError(err)
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return nil, apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("Ledger for user '%s' already exists", created.UserID), model.ErrLedgerExists)
		}
		return nil, fmt.Errorf("failed to create ledger: %w", err)
	}

	return created, nil
}

// UpdateLedger writes the whole document in one statement, guarded by the
// version the caller read. A zero row count means someone else won the race.
func (d *Datasource) UpdateLedger(ctx context.Context, ledger *model.Ledger) (*model.Ledger, error) {
	ctx, span := tracer.Start(ctx, "Updating ledger in db")
	defer span.End()

	historyJSON, err := json.Marshal(ledger.History)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal history", err)
	}

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE tally.ledgers
		SET balance = $2, in_amount = $3, out_amount = $4, history = $5, next_sequence = $6, updated_at = $7, version = version + 1
		WHERE user_id = $1 AND version = $8
	`, ledger.UserID, ledger.Balance.String(), ledger.InAmount.String(), ledger.OutAmount.String(), historyJSON, ledger.NextSequence, ledger.UpdatedAt, ledger.Version)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to update ledger: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("Optimistic locking failure: ledger for user '%s' was updated by another writer", ledger.UserID), model.ErrVersionConflict)
	}

	updated := ledger.Clone()
	updated.Version++
	return updated, nil
}
