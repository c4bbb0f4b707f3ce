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
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GenerateUUIDWithSuffix generates a UUID with a given module name as a prefix, e.g. txn_<uuid>.
func GenerateUUIDWithSuffix(module string) string {
	id := uuid.New()
	return fmt.Sprintf("%s_%s", module, id.String())
}

// InitializeLedgerFields replaces zero-value decimals and nil history so the
// ledger can be marshalled and mutated without special cases.
func (ledger *Ledger) InitializeLedgerFields() {
	if ledger.History == nil {
		ledger.History = []Transaction{}
	}
	if ledger.NextSequence < 1 {
		ledger.NextSequence = 1
	}
}

// addIn adds the amount to the IN aggregate.
func (ledger *Ledger) addIn(amount decimal.Decimal) {
	ledger.InAmount = ledger.InAmount.Add(amount)
}

// addOut adds the amount to the OUT aggregate.
func (ledger *Ledger) addOut(amount decimal.Decimal) {
	ledger.OutAmount = ledger.OutAmount.Add(amount)
}

// computeBalance recomputes the balance from the two aggregates.
func (ledger *Ledger) computeBalance() {
	ledger.Balance = ledger.InAmount.Sub(ledger.OutAmount)
}

// apply adds a transaction's contribution to the aggregate its direction selects.
func (ledger *Ledger) apply(direction Direction, amount decimal.Decimal) {
	switch direction {
	case DirectionIn:
		ledger.addIn(amount)
	case DirectionOut:
		ledger.addOut(amount)
	}
	ledger.computeBalance()
}

// reverse removes a contribution previously added by apply.
func (ledger *Ledger) reverse(direction Direction, amount decimal.Decimal) {
	ledger.apply(direction, amount.Neg())
}
