package orders

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/codebrew/pos-backend/pkg/config"
	pkgerrors "github.com/codebrew/pos-backend/pkg/errors"
)

// validateShape checks the request before any storage access.
func validateShape(input CreateOrderInput) error {
	if input.ActorUserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.BranchID == nil || *input.BranchID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "actor has no branch assignment")
	}
	if len(input.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "order requires at least one item")
	}
	for i, item := range input.Items {
		if item.ProductID == uuid.Nil {
			return lineError(i, "product_id is required")
		}
		if item.Quantity <= 0 {
			return lineError(i, "quantity must be greater than zero")
		}
		if item.UnitPrice.IsNegative() {
			return lineError(i, "unit_price must be >= 0")
		}
	}
	for i, payment := range input.Payments {
		if payment.PaymentMethodID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("payments[%d]: payment_method_id is required", i))
		}
		if !payment.Amount.IsPositive() {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("payments[%d]: amount must be greater than zero", i))
		}
	}
	for i, id := range input.DiscountIDs {
		if id == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("discount_ids[%d] is invalid", i))
		}
		for _, other := range input.DiscountIDs[:i] {
			if other == id {
				return pkgerrors.New(pkgerrors.CodeValidation, "discount_ids must be unique")
			}
		}
	}
	return nil
}

// verifyTotals recomputes the caller's amounts according to cfg.
func verifyTotals(input CreateOrderInput, cfg config.OrdersConfig) error {
	if cfg.EnforceTotals {
		amounts := []struct {
			name  string
			value decimal.Decimal
		}{
			{"subtotal", input.Subtotal},
			{"tax", input.Tax},
			{"discount", input.Discount},
			{"total", input.Total},
		}
		for _, amount := range amounts {
			if amount.value.IsNegative() {
				return pkgerrors.New(pkgerrors.CodeValidation, amount.name+" must be >= 0")
			}
			if !amount.value.Equal(amount.value.Round(2)) {
				return pkgerrors.New(pkgerrors.CodeValidation, amount.name+" has more than 2 decimal places")
			}
		}

		subtotal := decimal.Zero
		for _, item := range input.Items {
			subtotal = subtotal.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}
		subtotal = subtotal.Round(2)
		if !subtotal.Equal(input.Subtotal) {
			return totalsMismatch("subtotal", subtotal, input.Subtotal)
		}
		total := input.Subtotal.Sub(input.Discount).Add(input.Tax)
		if !total.Equal(input.Total) {
			return totalsMismatch("total", total, input.Total)
		}
	}

	if cfg.RequireFullPayment {
		paid := decimal.Zero
		for _, payment := range input.Payments {
			paid = paid.Add(payment.Amount)
		}
		if paid.LessThan(input.Total) {
			return pkgerrors.New(pkgerrors.CodeValidation, "payments do not cover the order total").
				WithDetails(map[string]any{
					"total": input.Total.StringFixed(2),
					"paid":  paid.StringFixed(2),
				})
		}
	}
	return nil
}

func lineError(index int, msg string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("items[%d]: %s", index, msg))
}

func totalsMismatch(field string, expected, got decimal.Decimal) error {
	return pkgerrors.New(pkgerrors.CodeValidation, field+" does not match line items").
		WithDetails(map[string]any{
			"field":    field,
			"expected": expected.StringFixed(2),
			"received": got.StringFixed(2),
		})
}
