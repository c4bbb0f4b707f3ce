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
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestParseDirection(t *testing.T) {
	tests := []struct {
		input    string
		expected Direction
		err      error
	}{
		{"IN", DirectionIn, nil},
		{"in", DirectionIn, nil},
		{" Out ", DirectionOut, nil},
		{"", "", ErrInvalidDirection},
		{"sideways", "", ErrInvalidDirection},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			direction, err := ParseDirection(tt.input)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.expected, direction)
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{"integer", "100", "100", false},
		{"fraction", "12.50", "12.5", false},
		{"padded", "  7 ", "7", false},
		{"zero", "0", "", true},
		{"negative", "-5", "", true},
		{"empty", "", "", true},
		{"not a number", "abc", "", true},
		{"nan", "NaN", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount, err := ParseAmount(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			assert.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.expected).Equal(amount))
		})
	}
}

func TestNormalizeReason(t *testing.T) {
	reason, err := NormalizeReason("  Food ")
	assert.NoError(t, err)
	assert.Equal(t, "Food", reason)

	_, err = NormalizeReason("   ")
	assert.ErrorIs(t, err, ErrEmptyReason)

	_, err = NormalizeReason(strings.Repeat("x", MaxReasonLength+1))
	assert.ErrorIs(t, err, ErrReasonTooLong)

	// the limit counts characters, not bytes
	reason, err = NormalizeReason(strings.Repeat("é", MaxReasonLength))
	assert.NoError(t, err)
	assert.Len(t, []rune(reason), MaxReasonLength)

	_, err = NormalizeReason(strings.Repeat("é", MaxReasonLength+1))
	assert.ErrorIs(t, err, ErrReasonTooLong)
}

func TestIsValidationError(t *testing.T) {
	assert.True(t, IsValidationError(ErrInvalidAmount))
	assert.True(t, IsValidationError(ErrInvalidIndex))
	assert.False(t, IsValidationError(ErrTransactionNotFound))
	assert.True(t, IsNotFoundError(ErrStaleIndex))
	assert.False(t, IsNotFoundError(ErrVersionConflict))
}
