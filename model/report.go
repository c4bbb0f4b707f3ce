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

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// ReasonShare is one slice of a direction's breakdown.
type ReasonShare struct {
	Reason     string          `json:"reason"`
	Amount     decimal.Decimal `json:"amount"`
	Percentage decimal.Decimal `json:"percentage"`
	Color      string          `json:"color,omitempty"`
}

type DirectionReport struct {
	Direction Direction       `json:"type"`
	Total     decimal.Decimal `json:"total"`
	NoData    bool            `json:"no_data"`
	Reasons   []ReasonShare   `json:"reasons"`
}

// Report is the grouped view behind the balance and breakdown charts.
type Report struct {
	UserID   string          `json:"user_id"`
	Balance  decimal.Decimal `json:"balance"`
	In       DirectionReport `json:"in"`
	Out      DirectionReport `json:"out"`
	InShare  decimal.Decimal `json:"in_share"`
	OutShare decimal.Decimal `json:"out_share"`
	NoData   bool            `json:"no_data"`
}

// Percentage returns part/total*100 rounded half away from zero to two places.
// The caller guarantees total is non-zero.
func Percentage(part, total decimal.Decimal) decimal.Decimal {
	return part.Mul(hundred).DivRound(total, 2)
}

// BuildReport groups the ledger history by (direction, reason). Reasons keep
// the order in which they first appear in history. Totals are summed from
// history rather than read from the stored aggregates.
func BuildReport(ledger *Ledger) *Report {
	report := &Report{
		UserID:  ledger.UserID,
		Balance: ledger.Balance,
		In:      DirectionReport{Direction: DirectionIn, Reasons: []ReasonShare{}},
		Out:     DirectionReport{Direction: DirectionOut, Reasons: []ReasonShare{}},
	}

	positions := map[Direction]map[string]int{
		DirectionIn:  {},
		DirectionOut: {},
	}
	for _, transaction := range ledger.History {
		section := report.section(transaction.Direction)
		if section == nil {
			continue
		}
		section.Total = section.Total.Add(transaction.Amount)
		if i, ok := positions[transaction.Direction][transaction.Reason]; ok {
			section.Reasons[i].Amount = section.Reasons[i].Amount.Add(transaction.Amount)
			continue
		}
		positions[transaction.Direction][transaction.Reason] = len(section.Reasons)
		section.Reasons = append(section.Reasons, ReasonShare{Reason: transaction.Reason, Amount: transaction.Amount})
	}

	for _, section := range []*DirectionReport{&report.In, &report.Out} {
		if section.Total.IsZero() {
			section.NoData = true
			continue
		}
		for i := range section.Reasons {
			section.Reasons[i].Percentage = Percentage(section.Reasons[i].Amount, section.Total)
		}
	}

	overall := report.In.Total.Add(report.Out.Total)
	if overall.IsZero() {
		report.NoData = true
		return report
	}
	report.InShare = Percentage(report.In.Total, overall)
	report.OutShare = Percentage(report.Out.Total, overall)
	return report
}

func (report *Report) section(direction Direction) *DirectionReport {
	switch direction {
	case DirectionIn:
		return &report.In
	case DirectionOut:
		return &report.Out
	}
	return nil
}

// Reasons lists every distinct reason in the report, IN reasons first, without duplicates.
func (report *Report) Reasons() []string {
	seen := make(map[string]struct{})
	var reasons []string
	for _, section := range []DirectionReport{report.In, report.Out} {
		for _, share := range section.Reasons {
			if _, ok := seen[share.Reason]; ok {
				continue
			}
			seen[share.Reason] = struct{}{}
			reasons = append(reasons, share.Reason)
		}
	}
	return reasons
}

// ApplyColors sets each reason's color from the given reason -> color map.
func (report *Report) ApplyColors(colors map[string]string) {
	for _, section := range []*DirectionReport{&report.In, &report.Out} {
		for i := range section.Reasons {
			section.Reasons[i].Color = colors[section.Reasons[i].Reason]
		}
	}
}
