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

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"

	"github.com/blnkfinance/tally/model"
)

type RecordTransaction struct {
	Type   string      `json:"type"`
	Amount json.Number `json:"amount"`
	Reason string      `json:"reason"`
}

type UpdateTransaction struct {
	Amount        json.Number `json:"amount"`
	Reason        string      `json:"reason"`
	TransactionID string      `json:"transaction_id,omitempty"`
}

func directionRule(value interface{}) error {
	_, err := model.ParseDirection(value.(string))
	return err
}

func amountRule(value interface{}) error {
	_, err := model.ParseAmount(string(value.(json.Number)))
	return err
}

func reasonRule(value interface{}) error {
	_, err := model.NormalizeReason(value.(string))
	return err
}

func (t *RecordTransaction) ValidateRecordTransaction() error {
	return validation.ValidateStruct(t,
		validation.Field(&t.Type, validation.Required, validation.By(directionRule)),
		validation.Field(&t.Amount, validation.Required, validation.By(amountRule)),
		validation.Field(&t.Reason, validation.Required, validation.By(reasonRule)),
	)
}

func (t *UpdateTransaction) ValidateUpdateTransaction() error {
	return validation.ValidateStruct(t,
		validation.Field(&t.Amount, validation.Required, validation.By(amountRule)),
		validation.Field(&t.Reason, validation.Required, validation.By(reasonRule)),
	)
}

// Direction and ParsedAmount are only meaningful after validation passed.
func (t *RecordTransaction) Direction() model.Direction {
	direction, _ := model.ParseDirection(t.Type)
	return direction
}

func (t *RecordTransaction) ParsedAmount() decimal.Decimal {
	amount, _ := model.ParseAmount(string(t.Amount))
	return amount
}

func (t *UpdateTransaction) ParsedAmount() decimal.Decimal {
	amount, _ := model.ParseAmount(string(t.Amount))
	return amount
}

// ParseFilter reads the ?type= query of the history list. Empty and "all"
// select every transaction.
func ParseFilter(value string) (model.TransactionFilter, error) {
	value = strings.TrimSpace(value)
	if value == "" || strings.EqualFold(value, "all") {
		return model.TransactionFilter{}, nil
	}
	direction, err := model.ParseDirection(value)
	if err != nil {
		return model.TransactionFilter{}, err
	}
	return model.TransactionFilter{Direction: direction}, nil
}
