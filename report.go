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

	"github.com/blnkfinance/tally/internal/apierror"
	"github.com/blnkfinance/tally/internal/metrics"
	"github.com/blnkfinance/tally/model"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// GetReport builds the per-reason breakdown of the user's ledger and attaches
// each reason's persisted color.
func (t *Tally) GetReport(ctx context.Context, userID string) (*model.Report, error) {
	ctx, span := tracer.Start(ctx, "GetReport", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	report, err := t.buildReport(ctx, userID)
	metrics.RecordLedgerOperation(opReport, outcome(err))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.AddEvent("Report built", trace.WithAttributes(attribute.Bool("report.no_data", report.NoData)))
	return report, nil
}

func (t *Tally) buildReport(ctx context.Context, userID string) (*model.Report, error) {
	ledger, err := t.getLedger(ctx, userID)
	if err != nil {
		return nil, err
	}

	report := model.BuildReport(ledger)
	reasons := report.Reasons()
	if len(reasons) == 0 {
		return report, nil
	}
	colors, err := t.assignColors(ctx, userID, reasons)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrStorage, "Failed to load reason colors", err)
	}
	report.ApplyColors(colors)
	return report, nil
}
