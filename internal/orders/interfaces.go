package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/codebrew/pos-backend/pkg/db/models"
)

// Repository defines persistence operations for the order aggregate.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateItems(ctx context.Context, items []models.OrderItem) error
	CreatePayments(ctx context.Context, payments []models.Payment) error
	CreateDiscounts(ctx context.Context, discounts []models.OrderDiscount) error
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error)
	FindPayments(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error)
	FindDiscountIDs(ctx context.Context, orderID uuid.UUID) ([]uuid.UUID, error)
	MarkVoided(ctx context.Context, orderID, userID uuid.UUID, at time.Time) (bool, error)
}
