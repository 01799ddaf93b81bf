package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/codebrew/pos-backend/pkg/db"
	"github.com/codebrew/pos-backend/pkg/db/models"
	"github.com/codebrew/pos-backend/pkg/enums"
	pkgerrors "github.com/codebrew/pos-backend/pkg/errors"
	"github.com/codebrew/pos-backend/pkg/logger"
	"github.com/codebrew/pos-backend/pkg/metrics"
	"github.com/codebrew/pos-backend/pkg/outbox"
	"github.com/codebrew/pos-backend/pkg/outbox/payloads"
	"github.com/codebrew/pos-backend/pkg/pagination"
	"github.com/codebrew/pos-backend/pkg/tracing"
)

const (
	opAdjust       = "adjust_inventory"
	opOpenRecord   = "open_inventory_record"
	opSetThreshold = "set_low_stock_threshold"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes manual adjustments and the inventory read side.
type Service interface {
	AdjustInventory(ctx context.Context, input AdjustInput) (*AdjustResult, error)
	OpenRecord(ctx context.Context, input OpenRecordInput) (*models.InventoryRecord, error)
	SetLowStockThreshold(ctx context.Context, productID, branchID uuid.UUID, threshold *int) (*models.InventoryRecord, error)
	ListBranchInventory(ctx context.Context, branchID uuid.UUID) ([]BranchInventoryItem, error)
	LowStockAlerts(ctx context.Context, branchID uuid.UUID) ([]BranchInventoryItem, error)
	ListLogs(ctx context.Context, query LogQuery) (*LogPage, error)
	Reconcile(ctx context.Context, productID, branchID uuid.UUID) (*Reconciliation, error)
	ReconcileAll(ctx context.Context, batchSize int) (*ReconcileReport, error)
}

// ServiceParams groups the collaborators of NewService.
type ServiceParams struct {
	Repo    Repository
	Tx      txRunner
	Ledger  *Ledger
	Audit   *AuditWriter
	Outbox  Emitter
	Metrics *metrics.EngineMetrics
	Logger  *logger.Logger
}

type service struct {
	repo    Repository
	tx      txRunner
	ledger  *Ledger
	audit   *AuditWriter
	outbox  Emitter
	metrics *metrics.EngineMetrics
	logg    *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Ledger == nil {
		params.Ledger = NewLedger()
	}
	if params.Audit == nil {
		params.Audit = NewAuditWriter()
	}
	return &service{
		repo:    params.Repo,
		tx:      params.Tx,
		ledger:  params.Ledger,
		audit:   params.Audit,
		outbox:  params.Outbox,
		metrics: params.Metrics,
		logg:    params.Logger,
	}, nil
}

func (s *service) AdjustInventory(ctx context.Context, input AdjustInput) (result *AdjustResult, err error) {
	started := time.Now()
	ctx, span := tracing.Start(ctx, "inventory", opAdjust,
		tracing.UUID("pos.product_id", input.ProductID),
		tracing.UUID("pos.branch_id", input.BranchID),
	)
	defer func() {
		tracing.End(span, err)
		s.metrics.Observe(opAdjust, started, err)
	}()

	if input.ProductID == uuid.Nil || input.BranchID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product_id and branch_id are required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.Delta == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity change must be non-zero")
	}
	reason, rerr := enums.ManualReason(input.Reason)
	if rerr != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, rerr, rerr.Error())
	}

	actor := BuildActor(input.ActorUserID, input.ActorBranchID, input.ActorRole)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		balance, err := s.ledger.AdjustQuantity(ctx, tx, Movement{
			ProductID: input.ProductID,
			BranchID:  input.BranchID,
			Delta:     input.Delta,
			Step:      string(enums.ReasonAdjustment),
		})
		if err != nil {
			return err
		}
		entry, err := s.audit.Append(ctx, tx, AuditEntry{
			ProductID:   input.ProductID,
			BranchID:    input.BranchID,
			UserID:      input.ActorUserID,
			Delta:       input.Delta,
			NewQuantity: balance.Quantity,
			Reason:      reason,
			Note:        input.Note,
		})
		if err != nil {
			return err
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventInventoryAdjusted,
			AggregateType: enums.AggregateInventoryRecord,
			AggregateID:   input.ProductID,
			Actor:         actor,
			Data: payloads.InventoryAdjustedEvent{
				ProductID:   input.ProductID,
				BranchID:    input.BranchID,
				Delta:       input.Delta,
				NewQuantity: balance.Quantity,
				Reason:      reason.String(),
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue inventory event")
		}
		if err := EmitLowStockIfCrossed(ctx, tx, s.outbox, actor, input.ProductID, input.BranchID, input.Delta, balance); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue low stock event")
		}

		result = &AdjustResult{
			ProductID:   input.ProductID,
			BranchID:    input.BranchID,
			NewQuantity: balance.Quantity,
			LogID:       entry.ID,
		}
		return nil
	})
	if err != nil {
		return nil, db.ClassifyError(err, "adjust inventory")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"product_id":   input.ProductID.String(),
		"branch_id":    input.BranchID.String(),
		"delta":        input.Delta,
		"new_quantity": result.NewQuantity,
		"reason":       reason.String(),
	})
	s.logg.Info(logCtx, "inventory adjusted")
	return result, nil
}

func (s *service) OpenRecord(ctx context.Context, input OpenRecordInput) (record *models.InventoryRecord, err error) {
	started := time.Now()
	defer func() { s.metrics.Observe(opOpenRecord, started, err) }()

	if input.ProductID == uuid.Nil || input.BranchID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product_id and branch_id are required")
	}
	if input.LowStockThreshold != nil && *input.LowStockThreshold < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "low_stock_threshold must be >= 0")
	}

	var created bool
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		candidate := &models.InventoryRecord{
			ProductID:         input.ProductID,
			BranchID:          input.BranchID,
			LowStockThreshold: input.LowStockThreshold,
		}
		ok, err := repo.CreateRecordIfAbsent(ctx, candidate)
		if err != nil {
			if db.IsForeignKeyViolation(err) {
				return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "product or branch not found")
			}
			return db.ClassifyError(err, "open inventory record")
		}
		created = ok
		record, err = repo.FindRecord(ctx, input.ProductID, input.BranchID)
		if err != nil {
			return db.ClassifyError(err, "load inventory record")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if created {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"product_id": input.ProductID.String(),
			"branch_id":  input.BranchID.String(),
			"user_id":    input.ActorUserID.String(),
		})
		s.logg.Info(logCtx, "inventory record opened")
	}
	return record, nil
}

func (s *service) SetLowStockThreshold(ctx context.Context, productID, branchID uuid.UUID, threshold *int) (record *models.InventoryRecord, err error) {
	started := time.Now()
	defer func() { s.metrics.Observe(opSetThreshold, started, err) }()

	if productID == uuid.Nil || branchID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product_id and branch_id are required")
	}
	if threshold != nil && *threshold < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "low_stock_threshold must be >= 0")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		affected, err := repo.UpdateThreshold(ctx, productID, branchID, threshold)
		if err != nil {
			return db.ClassifyError(err, "update low stock threshold")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "inventory record not found")
		}
		record, err = repo.FindRecord(ctx, productID, branchID)
		if err != nil {
			return db.ClassifyError(err, "load inventory record")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (s *service) ListBranchInventory(ctx context.Context, branchID uuid.UUID) ([]BranchInventoryItem, error) {
	if branchID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "branch_id is required")
	}
	rows, err := s.repo.ListBranch(ctx, branchID, false)
	if err != nil {
		return nil, db.ClassifyError(err, "list branch inventory")
	}
	return rows, nil
}

func (s *service) LowStockAlerts(ctx context.Context, branchID uuid.UUID) ([]BranchInventoryItem, error) {
	if branchID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "branch_id is required")
	}
	rows, err := s.repo.ListBranch(ctx, branchID, true)
	if err != nil {
		return nil, db.ClassifyError(err, "list low stock alerts")
	}
	return rows, nil
}

func (s *service) ListLogs(ctx context.Context, query LogQuery) (*LogPage, error) {
	cursor, err := pagination.ParseCursor(query.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	var afterSeq int64
	if cursor != nil {
		afterSeq = cursor.Seq
	}

	limit := pagination.NormalizeLimit(query.Limit)
	rows, err := s.repo.ListLogs(ctx, query.Filter, afterSeq, pagination.LimitWithBuffer(limit))
	if err != nil {
		return nil, db.ClassifyError(err, "list inventory logs")
	}

	page := &LogPage{Entries: make([]LogEntry, 0, len(rows))}
	if len(rows) > limit {
		rows = rows[:limit]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{Seq: rows[len(rows)-1].Seq})
	}
	for _, row := range rows {
		page.Entries = append(page.Entries, toLogEntry(row))
	}
	return page, nil
}

func (s *service) Reconcile(ctx context.Context, productID, branchID uuid.UUID) (*Reconciliation, error) {
	if productID == uuid.Nil || branchID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product_id and branch_id are required")
	}
	var out *Reconciliation
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		record, err := repo.FindRecordForShare(ctx, productID, branchID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "inventory record not found")
			}
			return db.ClassifyError(err, "load inventory record")
		}
		summary, err := repo.SummarizeLogs(ctx, productID, branchID)
		if err != nil {
			return db.ClassifyError(err, "summarize inventory logs")
		}
		out = reconcile(*record, summary)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReconcileReport summarizes a full pass over inventory_records.
type ReconcileReport struct {
	Checked int
	Drifted []Reconciliation
}

// ReconcileAll walks every record in id order. Per-record failures are
// collected and the walk continues.
func (s *service) ReconcileAll(ctx context.Context, batchSize int) (*ReconcileReport, error) {
	if batchSize <= 0 {
		batchSize = pagination.MaxLimit
	}
	report := &ReconcileReport{}
	var errs error
	after := uuid.Nil
	for {
		if err := ctx.Err(); err != nil {
			return report, multierr.Append(errs, err)
		}
		records, err := s.repo.ListRecordsAfter(ctx, after, batchSize)
		if err != nil {
			return report, multierr.Append(errs, db.ClassifyError(err, "list inventory records"))
		}
		for _, record := range records {
			rec, err := s.Reconcile(ctx, record.ProductID, record.BranchID)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("reconcile %s/%s: %w", record.ProductID, record.BranchID, err))
				continue
			}
			report.Checked++
			if !rec.Balanced {
				report.Drifted = append(report.Drifted, *rec)
			}
		}
		if len(records) < batchSize {
			return report, errs
		}
		after = records[len(records)-1].ID
	}
}

func reconcile(record models.InventoryRecord, summary LogSummary) *Reconciliation {
	balanced := int64(record.Quantity) == summary.DeltaSum
	if summary.LastSnapshot != nil {
		balanced = balanced && *summary.LastSnapshot == record.Quantity
	}
	return &Reconciliation{
		ProductID:    record.ProductID,
		BranchID:     record.BranchID,
		Quantity:     record.Quantity,
		LogSum:       summary.DeltaSum,
		LastSnapshot: summary.LastSnapshot,
		Entries:      summary.Entries,
		Balanced:     balanced,
	}
}
