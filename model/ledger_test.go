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
	"math/rand"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func TestLedger_SalaryFoodScenario(t *testing.T) {
	ledger := NewLedger("user_1", testNow)

	salary, err := ledger.Record(DirectionIn, decimal.NewFromInt(100), "Salary", testNow)
	require.NoError(t, err)
	assertDecimal(t, "100", ledger.Balance)
	assertDecimal(t, "100", ledger.InAmount)
	assertDecimal(t, "0", ledger.OutAmount)

	food, err := ledger.Record(DirectionOut, decimal.NewFromInt(30), "Food", testNow)
	require.NoError(t, err)
	assertDecimal(t, "70", ledger.Balance)
	assertDecimal(t, "30", ledger.OutAmount)

	updated, err := ledger.UpdateTransactionAt(1, food.TransactionID, decimal.NewFromInt(50), "Food", testNow)
	require.NoError(t, err)
	assert.Equal(t, food.TransactionID, updated.TransactionID)
	assertDecimal(t, "50", ledger.Balance)
	assertDecimal(t, "50", ledger.OutAmount)

	removed, err := ledger.DeleteTransactionAt(0, "", testNow)
	require.NoError(t, err)
	assert.Equal(t, salary.TransactionID, removed.TransactionID)
	assertDecimal(t, "-50", ledger.Balance)
	assertDecimal(t, "0", ledger.InAmount)
	assertDecimal(t, "50", ledger.OutAmount)

	require.Len(t, ledger.History, 1)
	assert.Equal(t, DirectionOut, ledger.History[0].Direction)
	assertDecimal(t, "50", ledger.History[0].Amount)
	assert.Equal(t, "Food", ledger.History[0].Reason)
	assert.NoError(t, ledger.Verify())
}

func TestLedger_RecordValidation(t *testing.T) {
	ledger := NewLedger("user_1", testNow)

	_, err := ledger.Record(DirectionIn, decimal.Zero, "Salary", testNow)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = ledger.Record(DirectionIn, decimal.NewFromInt(-1), "Salary", testNow)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = ledger.Record(DirectionOut, decimal.NewFromInt(1), " ", testNow)
	assert.ErrorIs(t, err, ErrEmptyReason)
	_, err = ledger.Record("BOTH", decimal.NewFromInt(1), "x", testNow)
	assert.ErrorIs(t, err, ErrInvalidDirection)

	assert.Empty(t, ledger.History)
	assert.True(t, ledger.Balance.IsZero())
	assert.Equal(t, int64(1), ledger.NextSequence)
}

func TestLedger_RecordAssignsIdentity(t *testing.T) {
	ledger := NewLedger("user_1", testNow)
	later := testNow.Add(time.Minute)

	first, err := ledger.Record(DirectionIn, decimal.NewFromInt(10), "  Gift ", testNow)
	require.NoError(t, err)
	second, err := ledger.Record(DirectionIn, decimal.NewFromInt(10), "Gift", later)
	require.NoError(t, err)

	assert.Equal(t, "Gift", first.Reason)
	assert.Equal(t, int64(1), first.Sequence)
	assert.Equal(t, int64(2), second.Sequence)
	assert.NotEqual(t, first.TransactionID, second.TransactionID)
	assert.Equal(t, later, second.CreatedAt)
	assert.Equal(t, later, ledger.UpdatedAt)
}

func TestLedger_DuplicateRecords(t *testing.T) {
	ledger := NewLedger("user_1", testNow)
	for i := 0; i < 2; i++ {
		_, err := ledger.Record(DirectionOut, decimal.NewFromInt(15), "Coffee", testNow)
		require.NoError(t, err)
	}
	assert.Len(t, ledger.History, 2)
	assertDecimal(t, "30", ledger.OutAmount)
	assertDecimal(t, "-30", ledger.Balance)
}

func TestLedger_UpdateRoundTrip(t *testing.T) {
	ledger := NewLedger("user_1", testNow)
	txn, err := ledger.Record(DirectionIn, decimal.NewFromInt(80), "Salary", testNow)
	require.NoError(t, err)
	_, err = ledger.Record(DirectionOut, decimal.NewFromInt(5), "Bus", testNow)
	require.NoError(t, err)
	before := ledger.Clone()

	_, err = ledger.UpdateTransaction(txn.TransactionID, decimal.NewFromInt(200), "Bonus", testNow)
	require.NoError(t, err)
	assertDecimal(t, "195", ledger.Balance)

	updated, err := ledger.UpdateTransaction(txn.TransactionID, decimal.NewFromInt(80), "Salary", testNow)
	require.NoError(t, err)

	assertDecimal(t, before.Balance.String(), ledger.Balance)
	assertDecimal(t, before.InAmount.String(), ledger.InAmount)
	assertDecimal(t, before.OutAmount.String(), ledger.OutAmount)
	assert.Equal(t, txn.Sequence, updated.Sequence)
	assert.Equal(t, txn.CreatedAt, updated.CreatedAt)
	assert.Equal(t, DirectionIn, updated.Direction)
	assert.Equal(t, 0, ledger.IndexOf(txn.TransactionID))
}

func TestLedger_UpdateErrors(t *testing.T) {
	ledger := NewLedger("user_1", testNow)
	txn, err := ledger.Record(DirectionIn, decimal.NewFromInt(10), "Gift", testNow)
	require.NoError(t, err)

	_, err = ledger.UpdateTransaction("txn_missing", decimal.NewFromInt(1), "x", testNow)
	assert.ErrorIs(t, err, ErrTransactionNotFound)
	_, err = ledger.UpdateTransaction(txn.TransactionID, decimal.Zero, "x", testNow)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = ledger.UpdateTransactionAt(-1, "", decimal.NewFromInt(1), "x", testNow)
	assert.ErrorIs(t, err, ErrInvalidIndex)
	_, err = ledger.UpdateTransactionAt(1, "", decimal.NewFromInt(1), "x", testNow)
	assert.ErrorIs(t, err, ErrTransactionNotFound)
	_, err = ledger.UpdateTransactionAt(0, "txn_other", decimal.NewFromInt(1), "x", testNow)
	assert.ErrorIs(t, err, ErrStaleIndex)

	assertDecimal(t, "10", ledger.Balance)
	assert.Equal(t, "Gift", ledger.History[0].Reason)
}

func TestLedger_DeleteReindexes(t *testing.T) {
	ledger := NewLedger("user_1", testNow)
	var ids []string
	for _, reason := range []string{"A", "B", "C", "D"} {
		txn, err := ledger.Record(DirectionIn, decimal.NewFromInt(1), reason, testNow)
		require.NoError(t, err)
		ids = append(ids, txn.TransactionID)
	}

	_, err := ledger.DeleteTransaction(ids[1], testNow)
	require.NoError(t, err)

	require.Len(t, ledger.History, 3)
	assert.Equal(t, "A", ledger.History[0].Reason)
	assert.Equal(t, "C", ledger.History[1].Reason)
	assert.Equal(t, "D", ledger.History[2].Reason)
	assert.Equal(t, 1, ledger.IndexOf(ids[2]))

	// The index a client saw before the delete now points at C.
	_, err = ledger.DeleteTransactionAt(2, ids[3], testNow)
	assert.ErrorIs(t, err, ErrStaleIndex)
	_, err = ledger.DeleteTransaction(ids[1], testNow)
	assert.ErrorIs(t, err, ErrTransactionNotFound)
	assertDecimal(t, "3", ledger.Balance)
}

func TestLedger_DeleteDoesNotAliasClone(t *testing.T) {
	ledger := NewLedger("user_1", testNow)
	for _, reason := range []string{"A", "B", "C"} {
		_, err := ledger.Record(DirectionIn, decimal.NewFromInt(1), reason, testNow)
		require.NoError(t, err)
	}
	snapshot := ledger.Clone()

	_, err := ledger.DeleteTransactionAt(0, "", testNow)
	require.NoError(t, err)

	assert.Len(t, snapshot.History, 3)
	assert.Equal(t, "A", snapshot.History[0].Reason)
	assertDecimal(t, "3", snapshot.Balance)
}

func TestLedger_Reset(t *testing.T) {
	ledger := NewLedger("user_1", testNow)
	for i := 0; i < 3; i++ {
		_, err := ledger.Record(DirectionOut, decimal.NewFromInt(int64(i+1)), "Rent", testNow)
		require.NoError(t, err)
	}

	ledger.Reset(testNow)

	assert.True(t, ledger.Balance.IsZero())
	assert.True(t, ledger.InAmount.IsZero())
	assert.True(t, ledger.OutAmount.IsZero())
	assert.Empty(t, ledger.History)
	assert.Equal(t, int64(4), ledger.NextSequence)

	ledger.Reset(testNow)
	assert.Empty(t, ledger.History)
	assert.NoError(t, ledger.Verify())

	txn, err := ledger.Record(DirectionIn, decimal.NewFromInt(1), "Gift", testNow)
	require.NoError(t, err)
	assert.Equal(t, int64(4), txn.Sequence)
}

func TestLedger_VerifyDetectsDrift(t *testing.T) {
	ledger := NewLedger("user_1", testNow)
	_, err := ledger.Record(DirectionIn, decimal.NewFromInt(10), "Gift", testNow)
	require.NoError(t, err)

	ledger.InAmount = decimal.NewFromInt(11)
	assert.ErrorIs(t, ledger.Verify(), ErrInconsistentLedger)

	ledger.InAmount = decimal.NewFromInt(10)
	ledger.Balance = decimal.NewFromInt(9)
	assert.ErrorIs(t, ledger.Verify(), ErrInconsistentLedger)
}

func TestLedger_RandomOperationsKeepInvariant(t *testing.T) {
	faker := gofakeit.New(42)
	rng := rand.New(rand.NewSource(42))
	ledger := NewLedger(faker.UUID(), testNow)

	for step := 0; step < 500; step++ {
		amount := decimal.NewFromFloat(faker.Price(0.01, 1000)).Round(2)
		if !amount.IsPositive() {
			amount = decimal.NewFromInt(1)
		}
		switch op := rng.Intn(10); {
		case op < 5 || len(ledger.History) == 0:
			direction := DirectionIn
			if rng.Intn(2) == 0 {
				direction = DirectionOut
			}
			_, err := ledger.Record(direction, amount, faker.Word(), testNow)
			require.NoError(t, err)
		case op < 7:
			index := rng.Intn(len(ledger.History))
			_, err := ledger.UpdateTransactionAt(index, ledger.History[index].TransactionID, amount, faker.Word(), testNow)
			require.NoError(t, err)
		case op < 9:
			index := rng.Intn(len(ledger.History))
			_, err := ledger.DeleteTransaction(ledger.History[index].TransactionID, testNow)
			require.NoError(t, err)
		default:
			ledger.Reset(testNow)
		}
		require.NoError(t, ledger.Verify(), "step %d", step)
	}
}

func TestLedger_FilterHistory(t *testing.T) {
	ledger := NewLedger("user_1", testNow)
	_, _ = ledger.Record(DirectionIn, decimal.NewFromInt(1), "Salary", testNow)
	_, _ = ledger.Record(DirectionOut, decimal.NewFromInt(1), "Food", testNow)
	_, _ = ledger.Record(DirectionIn, decimal.NewFromInt(1), "Gift", testNow)

	all := ledger.FilterHistory(TransactionFilter{})
	assert.Len(t, all, 3)

	in := ledger.FilterHistory(TransactionFilter{Direction: DirectionIn})
	require.Len(t, in, 2)
	assert.Equal(t, 0, in[0].Index)
	assert.Equal(t, 2, in[1].Index)
	assert.Equal(t, "Gift", in[1].Reason)

	out := ledger.FilterHistory(TransactionFilter{Direction: DirectionOut})
	require.Len(t, out, 1)
	assert.Equal(t, 1, out[0].Index)
}
