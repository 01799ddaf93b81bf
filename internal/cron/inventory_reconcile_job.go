package cron

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/codebrew/pos-backend/internal/inventory"
	"github.com/codebrew/pos-backend/pkg/logger"
)

const defaultReconcileBatchSize = 500

type reconciler interface {
	ReconcileAll(ctx context.Context, batchSize int) (*inventory.ReconcileReport, error)
}

type InventoryReconcileJobParams struct {
	Logger     *logger.Logger
	Reconciler reconciler
	BatchSize  int
}

// NewInventoryReconcileJob checks every inventory record against its audit
// trail and reports drift.
func NewInventoryReconcileJob(params InventoryReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("reconciler required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultReconcileBatchSize
	}
	return &inventoryReconcileJob{logg: params.Logger, reconciler: params.Reconciler, batch: batch}, nil
}

type inventoryReconcileJob struct {
	logg       *logger.Logger
	reconciler reconciler
	batch      int
}

func (j *inventoryReconcileJob) Name() string { return "inventory-reconcile" }

func (j *inventoryReconcileJob) Run(ctx context.Context) error {
	report, err := j.reconciler.ReconcileAll(ctx, j.batch)
	if report == nil {
		report = &inventory.ReconcileReport{}
	}

	var drift error
	for _, rec := range report.Drifted {
		driftCtx := j.logg.WithFields(ctx, map[string]any{
			"product_id": rec.ProductID.String(),
			"branch_id":  rec.BranchID.String(),
			"quantity":   rec.Quantity,
			"log_sum":    rec.LogSum,
			"entries":    rec.Entries,
		})
		j.logg.Warn(driftCtx, "inventory record drifted from audit log")
		drift = multierr.Append(drift, fmt.Errorf("drift %s/%s: quantity %d, log sum %d",
			rec.ProductID, rec.BranchID, rec.Quantity, rec.LogSum))
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"checked": report.Checked,
		"drifted": len(report.Drifted),
		"errors":  len(multierr.Errors(err)),
	})
	j.logg.Info(logCtx, "inventory reconciliation complete")
	return multierr.Combine(err, drift)
}
