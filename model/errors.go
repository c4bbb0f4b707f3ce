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

import "errors"

var (
	ErrInvalidAmount    = errors.New("amount must be a positive number")
	ErrEmptyReason      = errors.New("reason is required")
	ErrReasonTooLong    = errors.New("reason too long (max 200 characters)")
	ErrInvalidDirection = errors.New("type must be IN or OUT")
	ErrInvalidIndex     = errors.New("transaction index must not be negative")
	ErrInvalidUserID    = errors.New("user id is required")

	ErrLedgerNotFound      = errors.New("ledger not found")
	ErrLedgerExists        = errors.New("ledger already exists")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrStaleIndex          = errors.New("transaction index no longer points at the expected transaction")
	ErrVersionConflict     = errors.New("ledger was modified concurrently")
	ErrInconsistentLedger  = errors.New("ledger aggregates do not match history")
)

// IsValidationError reports whether err was caused by bad caller input.
func IsValidationError(err error) bool {
	for _, target := range []error{ErrInvalidAmount, ErrEmptyReason, ErrReasonTooLong, ErrInvalidDirection, ErrInvalidIndex, ErrInvalidUserID} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsNotFoundError reports whether err addresses a ledger or transaction that does not exist.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrLedgerNotFound) || errors.Is(err, ErrTransactionNotFound) || errors.Is(err, ErrStaleIndex)
}
