package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/codebrew/pos-backend/pkg/db/models"
)

// Repository is the read side of inventory_records and inventory_logs plus
// the bookkeeping writes that never touch quantity.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindRecord(ctx context.Context, productID, branchID uuid.UUID) (*models.InventoryRecord, error)
	FindRecordForShare(ctx context.Context, productID, branchID uuid.UUID) (*models.InventoryRecord, error)
	CreateRecordIfAbsent(ctx context.Context, record *models.InventoryRecord) (bool, error)
	UpdateThreshold(ctx context.Context, productID, branchID uuid.UUID, threshold *int) (int64, error)
	ListBranch(ctx context.Context, branchID uuid.UUID, lowOnly bool) ([]BranchInventoryItem, error)
	ListLogs(ctx context.Context, filter LogFilter, afterSeq int64, limit int) ([]models.InventoryLog, error)
	SummarizeLogs(ctx context.Context, productID, branchID uuid.UUID) (LogSummary, error)
	ListRecordsAfter(ctx context.Context, after uuid.UUID, limit int) ([]models.InventoryRecord, error)
}

// LogSummary folds the audit trail of one (product, branch).
type LogSummary struct {
	Entries      int64 `gorm:"column:entries"`
	DeltaSum     int64 `gorm:"column:delta_sum"`
	LastSnapshot *int  `gorm:"-"`
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindRecord(ctx context.Context, productID, branchID uuid.UUID) (*models.InventoryRecord, error) {
	var record models.InventoryRecord
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND branch_id = ?", productID, branchID).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// FindRecordForShare loads the record and holds off ledger writers until the
// surrounding transaction ends.
func (r *repository) FindRecordForShare(ctx context.Context, productID, branchID uuid.UUID) (*models.InventoryRecord, error) {
	var record models.InventoryRecord
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "SHARE"}).
		Where("product_id = ? AND branch_id = ?", productID, branchID).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// CreateRecordIfAbsent inserts record unless the (product, branch) pair
// already exists. It reports whether a row was created.
func (r *repository) CreateRecordIfAbsent(ctx context.Context, record *models.InventoryRecord) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "product_id"}, {Name: "branch_id"}},
			DoNothing: true,
		}).
		Create(record)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) UpdateThreshold(ctx context.Context, productID, branchID uuid.UUID, threshold *int) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.InventoryRecord{}).
		Where("product_id = ? AND branch_id = ?", productID, branchID).
		Updates(map[string]any{
			"low_stock_threshold": threshold,
			"updated_at":          gorm.Expr("CURRENT_TIMESTAMP"),
		})
	return res.RowsAffected, res.Error
}

func (r *repository) ListBranch(ctx context.Context, branchID uuid.UUID, lowOnly bool) ([]BranchInventoryItem, error) {
	var rows []BranchInventoryItem
	query := r.db.WithContext(ctx).
		Table("inventory_records AS ir").
		Select(`ir.product_id, ir.branch_id, p.name AS product_name, p.sku AS sku,
			ir.quantity, ir.low_stock_threshold, ir.updated_at`).
		Joins("JOIN products p ON p.id = ir.product_id").
		Where("ir.branch_id = ?", branchID)
	if lowOnly {
		query = query.Where("ir.low_stock_threshold IS NOT NULL AND ir.quantity <= ir.low_stock_threshold")
	}
	err := query.Order("p.name ASC").Order("ir.product_id ASC").Scan(&rows).Error
	return rows, err
}

func (r *repository) ListLogs(ctx context.Context, filter LogFilter, afterSeq int64, limit int) ([]models.InventoryLog, error) {
	var rows []models.InventoryLog
	query := r.db.WithContext(ctx).Model(&models.InventoryLog{})
	if filter.ProductID != nil {
		query = query.Where("product_id = ?", *filter.ProductID)
	}
	if filter.BranchID != nil {
		query = query.Where("branch_id = ?", *filter.BranchID)
	}
	if afterSeq > 0 {
		query = query.Where("seq < ?", afterSeq)
	}
	err := query.Order("seq DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

func (r *repository) SummarizeLogs(ctx context.Context, productID, branchID uuid.UUID) (LogSummary, error) {
	var summary LogSummary
	err := r.db.WithContext(ctx).
		Model(&models.InventoryLog{}).
		Select("COUNT(*) AS entries, COALESCE(SUM(change_quantity), 0) AS delta_sum").
		Where("product_id = ? AND branch_id = ?", productID, branchID).
		Scan(&summary).Error
	if err != nil || summary.Entries == 0 {
		return summary, err
	}

	var last models.InventoryLog
	err = r.db.WithContext(ctx).
		Where("product_id = ? AND branch_id = ?", productID, branchID).
		Order("seq DESC").
		Limit(1).
		Find(&last).Error
	if err != nil {
		return summary, err
	}
	summary.LastSnapshot = &last.NewQuantity
	return summary, nil
}

func (r *repository) ListRecordsAfter(ctx context.Context, after uuid.UUID, limit int) ([]models.InventoryRecord, error) {
	var rows []models.InventoryRecord
	err := r.db.WithContext(ctx).
		Where("id > ?", after).
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
