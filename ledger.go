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
	"fmt"
	"strings"
	"time"

	"github.com/blnkfinance/tally/internal/apierror"
	redlock "github.com/blnkfinance/tally/internal/lock"
	"github.com/blnkfinance/tally/internal/metrics"
	"github.com/blnkfinance/tally/model"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	opRecord    = "record"
	opUpdate    = "update"
	opDelete    = "delete"
	opReset     = "reset"
	opGet       = "get"
	opGetCreate = "get_or_create"
	opList      = "list"
	opReport    = "report"
)

// mutation edits a working copy of the ledger. It returns the transaction it
// touched, or nil for whole-ledger changes.
type mutation func(ledger *model.Ledger, now time.Time) (*model.Transaction, error)

type mutationResult struct {
	ledger      *model.Ledger
	transaction *model.Transaction
	created     bool
}

// RecordTransaction appends an IN or OUT transaction, provisioning the ledger
// if the user has none yet.
func (t *Tally) RecordTransaction(ctx context.Context, userID string, direction model.Direction, amount decimal.Decimal, reason string) (*model.Ledger, error) {
	if !direction.Valid() {
		return nil, invalidInput(model.ErrInvalidDirection)
	}
	if err := validateEntry(amount, reason); err != nil {
		return nil, err
	}
	return t.mutate(ctx, userID, opRecord, EventTransactionRecorded, true, func(ledger *model.Ledger, now time.Time) (*model.Transaction, error) {
		transaction, err := ledger.Record(direction, amount, reason, now)
		if err != nil {
			return nil, err
		}
		return &transaction, nil
	})
}

// UpdateTransaction changes the amount and reason of the transaction with the given id.
func (t *Tally) UpdateTransaction(ctx context.Context, userID, transactionID string, amount decimal.Decimal, reason string) (*model.Ledger, error) {
	if err := validateEntry(amount, reason); err != nil {
		return nil, err
	}
	return t.mutate(ctx, userID, opUpdate, EventTransactionUpdated, false, func(ledger *model.Ledger, now time.Time) (*model.Transaction, error) {
		transaction, err := ledger.UpdateTransaction(transactionID, amount, reason, now)
		if err != nil {
			return nil, err
		}
		return &transaction, nil
	})
}

// UpdateTransactionAt is the position-addressed form of UpdateTransaction. A
// non-empty expectedID must still be at index when the write happens.
func (t *Tally) UpdateTransactionAt(ctx context.Context, userID string, index int, expectedID string, amount decimal.Decimal, reason string) (*model.Ledger, error) {
	if index < 0 {
		return nil, invalidInput(model.ErrInvalidIndex)
	}
	if err := validateEntry(amount, reason); err != nil {
		return nil, err
	}
	return t.mutate(ctx, userID, opUpdate, EventTransactionUpdated, false, func(ledger *model.Ledger, now time.Time) (*model.Transaction, error) {
		transaction, err := ledger.UpdateTransactionAt(index, expectedID, amount, reason, now)
		if err != nil {
			return nil, err
		}
		return &transaction, nil
	})
}

func (t *Tally) DeleteTransaction(ctx context.Context, userID, transactionID string) (*model.Ledger, error) {
	return t.mutate(ctx, userID, opDelete, EventTransactionDeleted, false, func(ledger *model.Ledger, now time.Time) (*model.Transaction, error) {
		transaction, err := ledger.DeleteTransaction(transactionID, now)
		if err != nil {
			return nil, err
		}
		return &transaction, nil
	})
}

func (t *Tally) DeleteTransactionAt(ctx context.Context, userID string, index int, expectedID string) (*model.Ledger, error) {
	if index < 0 {
		return nil, invalidInput(model.ErrInvalidIndex)
	}
	return t.mutate(ctx, userID, opDelete, EventTransactionDeleted, false, func(ledger *model.Ledger, now time.Time) (*model.Transaction, error) {
		transaction, err := ledger.DeleteTransactionAt(index, expectedID, now)
		if err != nil {
			return nil, err
		}
		return &transaction, nil
	})
}

// ResetLedger zeroes balance, both aggregates and history.
func (t *Tally) ResetLedger(ctx context.Context, userID string) (*model.Ledger, error) {
	return t.mutate(ctx, userID, opReset, EventLedgerReset, true, func(ledger *model.Ledger, now time.Time) (*model.Transaction, error) {
		ledger.Reset(now)
		return nil, nil
	})
}

func (t *Tally) GetLedger(ctx context.Context, userID string) (*model.Ledger, error) {
	ctx, span := tracer.Start(ctx, "GetLedger", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	ledger, err := t.getLedger(ctx, userID)
	metrics.RecordLedgerOperation(opGet, outcome(err))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.AddEvent("Ledger retrieved", trace.WithAttributes(attribute.Int64("ledger.version", ledger.Version)))
	return ledger, nil
}

func (t *Tally) getLedger(ctx context.Context, userID string) (*model.Ledger, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}
	return withStorageRetry(ctx, t.retry, func() (*model.Ledger, error) {
		return t.datasource.GetLedger(ctx, userID)
	})
}

// GetOrCreateLedger returns the user's ledger, creating a zeroed one on first use.
func (t *Tally) GetOrCreateLedger(ctx context.Context, userID string) (*model.Ledger, error) {
	ctx, span := tracer.Start(ctx, "GetOrCreateLedger", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	if err := validateUserID(userID); err != nil {
		span.RecordError(err)
		metrics.RecordLedgerOperation(opGetCreate, outcome(err))
		return nil, err
	}
	ledger, created, err := t.load(ctx, userID, true)
	metrics.RecordLedgerOperation(opGetCreate, outcome(err))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if created {
		span.AddEvent("New ledger created")
		t.publish(ctx, EventLedgerCreated, LedgerEvent{UserID: userID, Ledger: ledger})
	}
	return ledger, nil
}

// ListTransactions returns the history in append order, optionally narrowed to
// one direction, each entry tagged with its current index.
func (t *Tally) ListTransactions(ctx context.Context, userID string, filter model.TransactionFilter) ([]model.IndexedTransaction, error) {
	ctx, span := tracer.Start(ctx, "ListTransactions", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	if filter.Direction != "" && !filter.Direction.Valid() {
		err := invalidInput(model.ErrInvalidDirection)
		metrics.RecordLedgerOperation(opList, outcome(err))
		return nil, err
	}
	ledger, err := t.getLedger(ctx, userID)
	metrics.RecordLedgerOperation(opList, outcome(err))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	transactions := ledger.FilterHistory(filter)
	span.AddEvent("Transactions listed", trace.WithAttributes(attribute.Int("transaction.count", len(transactions))))
	return transactions, nil
}

// mutate runs one read-modify-write under the user's lock and publishes the
// event once the new snapshot is stored.
func (t *Tally) mutate(ctx context.Context, userID, operation, event string, provision bool, fn mutation) (*model.Ledger, error) {
	ctx, span := tracer.Start(ctx, "Ledger "+operation, trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	result, err := t.runMutation(ctx, userID, operation, provision, fn)
	metrics.RecordLedgerOperation(operation, outcome(err))
	fields := logrus.Fields{"user_id": userID, "operation": operation}
	if err != nil {
		span.RecordError(err)
		logrus.WithFields(fields).Warnf("ledger mutation failed: %v", err)
		return nil, err
	}

	payload := LedgerEvent{UserID: userID, Transaction: result.transaction, Ledger: result.ledger}
	if result.transaction != nil {
		fields["transaction_id"] = result.transaction.TransactionID
		span.SetAttributes(attribute.String("transaction.id", result.transaction.TransactionID))
	}
	logrus.WithFields(fields).Info("ledger updated")
	span.AddEvent("Ledger updated", trace.WithAttributes(attribute.Int64("ledger.version", result.ledger.Version)))

	if result.created {
		t.publish(ctx, EventLedgerCreated, LedgerEvent{UserID: userID, Ledger: result.ledger})
	}
	t.publish(ctx, event, payload)
	return result.ledger, nil
}

func (t *Tally) runMutation(ctx context.Context, userID, operation string, provision bool, fn mutation) (mutationResult, error) {
	if err := validateUserID(userID); err != nil {
		return mutationResult{}, err
	}
	unlock, err := t.lockLedger(ctx, userID)
	if err != nil {
		return mutationResult{}, err
	}
	defer unlock()

	var result mutationResult
	for attempt := 0; ; attempt++ {
		current, created, err := t.load(ctx, userID, provision)
		if err != nil {
			return mutationResult{}, err
		}
		result.created = result.created || created

		next := current.Clone()
		transaction, err := fn(next, t.clock())
		if err != nil {
			return mutationResult{}, modelError(err)
		}
		if err := ctx.Err(); err != nil {
			return mutationResult{}, err
		}

		saved, err := withStorageRetry(ctx, t.retry, func() (*model.Ledger, error) {
			return t.datasource.UpdateLedger(ctx, next)
		})
		if err == nil {
			result.ledger, result.transaction = saved, transaction
			return result, nil
		}
		if !apierror.Is(err, apierror.ErrConflict) {
			return mutationResult{}, err
		}

		// a retried write whose first attempt landed reports a conflict
		// against its own result
		stored, getErr := withStorageRetry(ctx, t.retry, func() (*model.Ledger, error) {
			return t.datasource.GetLedger(ctx, userID)
		})
		if getErr == nil && stored.Version == next.Version+1 && sameDocument(stored, next) {
			result.ledger, result.transaction = stored, transaction
			return result, nil
		}

		if attempt >= t.maxConflictRetries {
			return mutationResult{}, apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("Ledger for user '%s' kept changing, try again", userID), err)
		}
		metrics.RecordConflictRetry(operation)
		logrus.WithFields(logrus.Fields{"user_id": userID, "operation": operation, "attempt": attempt + 1}).Warn("version conflict, retrying ledger update")
	}
}

// load reads the user's ledger. With provision set a missing ledger is created,
// and losing the create race re-reads the winner.
func (t *Tally) load(ctx context.Context, userID string, provision bool) (*model.Ledger, bool, error) {
	ledger, err := withStorageRetry(ctx, t.retry, func() (*model.Ledger, error) {
		return t.datasource.GetLedger(ctx, userID)
	})
	if err == nil || !provision || !errors.Is(err, model.ErrLedgerNotFound) {
		return ledger, false, err
	}

	ledger, err = withStorageRetry(ctx, t.retry, func() (*model.Ledger, error) {
		return t.datasource.CreateLedger(ctx, model.NewLedger(userID, t.clock()))
	})
	if err == nil {
		logrus.WithField("user_id", userID).Info("ledger provisioned")
		return ledger, true, nil
	}
	if !errors.Is(err, model.ErrLedgerExists) {
		return nil, false, err
	}
	ledger, err = withStorageRetry(ctx, t.retry, func() (*model.Ledger, error) {
		return t.datasource.GetLedger(ctx, userID)
	})
	return ledger, false, err
}

func (t *Tally) lockLedger(ctx context.Context, userID string) (func(), error) {
	unlock, err := t.locker.Lock(ctx, userID)
	if err == nil {
		return unlock, nil
	}
	switch {
	case errors.Is(err, redlock.ErrLockHeld):
		return nil, apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("Ledger for user '%s' is busy, try again", userID), err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, err
	}
	return nil, apierror.NewAPIError(apierror.ErrStorage, "Failed to acquire ledger lock", err)
}

// sameDocument compares everything a mutation can change, ignoring the version.
func sameDocument(a, b *model.Ledger) bool {
	if !a.UpdatedAt.Equal(b.UpdatedAt) || a.NextSequence != b.NextSequence {
		return false
	}
	if !a.Balance.Equal(b.Balance) || !a.InAmount.Equal(b.InAmount) || !a.OutAmount.Equal(b.OutAmount) {
		return false
	}
	if len(a.History) != len(b.History) {
		return false
	}
	for i := range a.History {
		x, y := a.History[i], b.History[i]
		if x.TransactionID != y.TransactionID || !x.Amount.Equal(y.Amount) || x.Reason != y.Reason {
			return false
		}
	}
	return true
}

func validateUserID(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return invalidInput(model.ErrInvalidUserID)
	}
	return nil
}

func validateEntry(amount decimal.Decimal, reason string) error {
	if err := model.ValidateAmount(amount); err != nil {
		return invalidInput(err)
	}
	if _, err := model.NormalizeReason(reason); err != nil {
		return invalidInput(err)
	}
	return nil
}

func invalidInput(err error) error {
	return apierror.NewAPIError(apierror.ErrInvalidInput, err.Error(), err)
}

// modelError maps errors raised by model arithmetic onto API error codes.
func modelError(err error) error {
	switch {
	case model.IsValidationError(err):
		return invalidInput(err)
	case model.IsNotFoundError(err):
		return apierror.NewAPIError(apierror.ErrNotFound, err.Error(), err)
	}
	var apiErr apierror.APIError
	if errors.As(err, &apiErr) {
		return err
	}
	return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to apply ledger change", err)
}

func outcome(err error) string {
	if err == nil {
		return "OK"
	}
	return string(apierror.CodeOf(err))
}
