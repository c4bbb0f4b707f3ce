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

package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Ledger is the per-user document: running balance, the two aggregates and the
// ordered history they are derived from.
type Ledger struct {
	UserID       string          `json:"user_id"`
	Balance      decimal.Decimal `json:"balance"`
	InAmount     decimal.Decimal `json:"inAmount"`
	OutAmount    decimal.Decimal `json:"outAmount"`
	History      []Transaction   `json:"history"`
	NextSequence int64           `json:"next_sequence"`
	Version      int64           `json:"version"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func NewLedger(userID string, now time.Time) *Ledger {
	ledger := &Ledger{
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	ledger.InitializeLedgerFields()
	return ledger
}

func (ledger *Ledger) ToJSON() ([]byte, error) {
	return json.Marshal(ledger)
}

// Clone returns a deep copy. Mutations are computed on a clone so a failed
// write never leaves the caller holding half-applied state.
func (ledger *Ledger) Clone() *Ledger {
	clone := *ledger
	clone.History = make([]Transaction, len(ledger.History))
	copy(clone.History, ledger.History)
	return &clone
}

// Record appends a new transaction and adds it to the matching aggregate.
func (ledger *Ledger) Record(direction Direction, amount decimal.Decimal, reason string, now time.Time) (Transaction, error) {
	if !direction.Valid() {
		return Transaction{}, ErrInvalidDirection
	}
	if err := ValidateAmount(amount); err != nil {
		return Transaction{}, err
	}
	reason, err := NormalizeReason(reason)
	if err != nil {
		return Transaction{}, err
	}

	ledger.InitializeLedgerFields()
	transaction := Transaction{
		TransactionID: GenerateUUIDWithSuffix("txn"),
		Direction:     direction,
		Amount:        amount,
		Reason:        reason,
		CreatedAt:     now,
		Sequence:      ledger.NextSequence,
	}
	ledger.NextSequence++
	ledger.History = append(ledger.History, transaction)
	ledger.apply(direction, amount)
	ledger.UpdatedAt = now
	return transaction, nil
}

// IndexOf returns the position of the transaction with the given id, or -1.
func (ledger *Ledger) IndexOf(transactionID string) int {
	for i, transaction := range ledger.History {
		if transaction.TransactionID == transactionID {
			return i
		}
	}
	return -1
}

// ResolveIndex checks an index-addressed request against the current history.
// A non-empty expectedID must match the transaction currently at index.
func (ledger *Ledger) ResolveIndex(index int, expectedID string) (int, error) {
	if index < 0 {
		return -1, ErrInvalidIndex
	}
	if index >= len(ledger.History) {
		return -1, fmt.Errorf("%w: index %d, history has %d entries", ErrTransactionNotFound, index, len(ledger.History))
	}
	if expectedID != "" && ledger.History[index].TransactionID != expectedID {
		return -1, fmt.Errorf("%w: index %d holds %s, not %s", ErrStaleIndex, index, ledger.History[index].TransactionID, expectedID)
	}
	return index, nil
}

func (ledger *Ledger) resolveID(transactionID string) (int, error) {
	index := ledger.IndexOf(transactionID)
	if index < 0 {
		return -1, fmt.Errorf("%w: %s", ErrTransactionNotFound, transactionID)
	}
	return index, nil
}

// UpdateTransaction replaces the amount and reason of an existing transaction.
// The old contribution is reversed and the new amount applied to the same
// aggregate; direction, id, sequence, date and position are preserved.
func (ledger *Ledger) UpdateTransaction(transactionID string, amount decimal.Decimal, reason string, now time.Time) (Transaction, error) {
	if err := ValidateAmount(amount); err != nil {
		return Transaction{}, err
	}
	reason, err := NormalizeReason(reason)
	if err != nil {
		return Transaction{}, err
	}
	index, err := ledger.resolveID(transactionID)
	if err != nil {
		return Transaction{}, err
	}
	return ledger.updateAt(index, amount, reason, now), nil
}

func (ledger *Ledger) UpdateTransactionAt(index int, expectedID string, amount decimal.Decimal, reason string, now time.Time) (Transaction, error) {
	if err := ValidateAmount(amount); err != nil {
		return Transaction{}, err
	}
	reason, err := NormalizeReason(reason)
	if err != nil {
		return Transaction{}, err
	}
	index, err = ledger.ResolveIndex(index, expectedID)
	if err != nil {
		return Transaction{}, err
	}
	return ledger.updateAt(index, amount, reason, now), nil
}

func (ledger *Ledger) updateAt(index int, amount decimal.Decimal, reason string, now time.Time) Transaction {
	old := ledger.History[index]
	ledger.reverse(old.Direction, old.Amount)
	ledger.apply(old.Direction, amount)

	updated := old
	updated.Amount = amount
	updated.Reason = reason
	ledger.History[index] = updated
	ledger.UpdatedAt = now
	return updated
}

// DeleteTransaction removes a transaction and reverses its contribution.
// Later entries shift down by one position.
func (ledger *Ledger) DeleteTransaction(transactionID string, now time.Time) (Transaction, error) {
	index, err := ledger.resolveID(transactionID)
	if err != nil {
		return Transaction{}, err
	}
	return ledger.deleteAt(index, now), nil
}

func (ledger *Ledger) DeleteTransactionAt(index int, expectedID string, now time.Time) (Transaction, error) {
	index, err := ledger.ResolveIndex(index, expectedID)
	if err != nil {
		return Transaction{}, err
	}
	return ledger.deleteAt(index, now), nil
}

func (ledger *Ledger) deleteAt(index int, now time.Time) Transaction {
	removed := ledger.History[index]
	ledger.reverse(removed.Direction, removed.Amount)
	ledger.History = append(ledger.History[:index:index], ledger.History[index+1:]...)
	ledger.UpdatedAt = now
	return removed
}

// Reset zeroes the ledger in place. The sequence counter survives so ids and
// sequences are never reused.
func (ledger *Ledger) Reset(now time.Time) {
	ledger.Balance = decimal.Zero
	ledger.InAmount = decimal.Zero
	ledger.OutAmount = decimal.Zero
	ledger.History = []Transaction{}
	ledger.InitializeLedgerFields()
	ledger.UpdatedAt = now
}

// Verify recomputes both aggregates from history and checks the stored values
// and the balance identity against them.
func (ledger *Ledger) Verify() error {
	in, out := decimal.Zero, decimal.Zero
	for _, transaction := range ledger.History {
		switch transaction.Direction {
		case DirectionIn:
			in = in.Add(transaction.Amount)
		case DirectionOut:
			out = out.Add(transaction.Amount)
		default:
			return fmt.Errorf("%w: transaction %s has unknown type %q", ErrInconsistentLedger, transaction.TransactionID, transaction.Direction)
		}
	}
	if !in.Equal(ledger.InAmount) {
		return fmt.Errorf("%w: inAmount %s, history sums to %s", ErrInconsistentLedger, ledger.InAmount, in)
	}
	if !out.Equal(ledger.OutAmount) {
		return fmt.Errorf("%w: outAmount %s, history sums to %s", ErrInconsistentLedger, ledger.OutAmount, out)
	}
	if !ledger.Balance.Equal(in.Sub(out)) {
		return fmt.Errorf("%w: balance %s, expected %s", ErrInconsistentLedger, ledger.Balance, in.Sub(out))
	}
	return nil
}

// FilterHistory returns history entries matching the filter in append order,
// each tagged with its current index.
func (ledger *Ledger) FilterHistory(filter TransactionFilter) []IndexedTransaction {
	transactions := make([]IndexedTransaction, 0, len(ledger.History))
	for i, transaction := range ledger.History {
		if filter.matches(transaction) {
			transactions = append(transactions, IndexedTransaction{Index: i, Transaction: transaction})
		}
	}
	return transactions
}
