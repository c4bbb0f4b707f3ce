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
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Direction says which side of the ledger a transaction lands on.
type Direction string

const (
	DirectionIn  Direction = "IN"
	DirectionOut Direction = "OUT"

	// MaxReasonLength bounds the free-text label of a transaction, in characters.
	MaxReasonLength = 200
)

type Transaction struct {
	TransactionID string          `json:"transaction_id"`
	Direction     Direction       `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	Reason        string          `json:"reason"`
	CreatedAt     time.Time       `json:"date"`
	Sequence      int64           `json:"sequence"`
}

// IndexedTransaction pairs a transaction with its current position in the history.
type IndexedTransaction struct {
	Index int `json:"index"`
	Transaction
}

// TransactionFilter mirrors the All/IN/OUT switch of the history screen.
type TransactionFilter struct {
	Direction Direction `json:"type,omitempty"`
}

func (transaction *Transaction) ToJSON() ([]byte, error) {
	return json.Marshal(transaction)
}

// ParseDirection accepts "in", "IN", " out " and friends.
func ParseDirection(value string) (Direction, error) {
	switch Direction(strings.ToUpper(strings.TrimSpace(value))) {
	case DirectionIn:
		return DirectionIn, nil
	case DirectionOut:
		return DirectionOut, nil
	}
	return "", ErrInvalidDirection
}

func (d Direction) Valid() bool {
	return d == DirectionIn || d == DirectionOut
}

// ParseAmount converts user-entered text into a positive amount.
// Anything that is not a finite positive decimal is rejected.
func ParseAmount(text string) (decimal.Decimal, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	amount, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if err := ValidateAmount(amount); err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}

func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

// NormalizeReason trims the reason and checks it is usable as a grouping label.
func NormalizeReason(reason string) (string, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return "", ErrEmptyReason
	}
	if utf8.RuneCountInString(reason) > MaxReasonLength {
		return "", ErrReasonTooLong
	}
	return reason, nil
}

func (f TransactionFilter) matches(transaction Transaction) bool {
	return f.Direction == "" || f.Direction == transaction.Direction
}
