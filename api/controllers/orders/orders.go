package orders

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/codebrew/pos-backend/api/middleware"
	"github.com/codebrew/pos-backend/api/responses"
	"github.com/codebrew/pos-backend/api/validators"
	internalorders "github.com/codebrew/pos-backend/internal/orders"
	"github.com/codebrew/pos-backend/pkg/enums"
	pkgerrors "github.com/codebrew/pos-backend/pkg/errors"
	"github.com/codebrew/pos-backend/pkg/logger"
)

type createOrderItem struct {
	ProductID uuid.UUID       `json:"product_id" validate:"required"`
	Quantity  int             `json:"quantity" validate:"gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price" validate:"money"`
}

type createOrderPayment struct {
	PaymentMethodID uuid.UUID       `json:"payment_method_id" validate:"required"`
	Amount          decimal.Decimal `json:"amount" validate:"money"`
}

type createOrderRequest struct {
	Items       []createOrderItem    `json:"items" validate:"required,min=1,dive"`
	Payments    []createOrderPayment `json:"payments" validate:"dive"`
	DiscountIDs []uuid.UUID          `json:"discount_ids"`
	Subtotal    decimal.Decimal      `json:"subtotal" validate:"money"`
	Tax         decimal.Decimal      `json:"tax" validate:"money"`
	Discount    decimal.Decimal      `json:"discount" validate:"money"`
	Total       decimal.Decimal      `json:"total" validate:"money"`
}

func (req createOrderRequest) toInput(actor middleware.Actor) internalorders.CreateOrderInput {
	input := internalorders.CreateOrderInput{
		BranchID:    actor.BranchID,
		ActorUserID: actor.UserID,
		ActorRole:   actor.Role,
		Items:       make([]internalorders.ItemInput, 0, len(req.Items)),
		Payments:    make([]internalorders.PaymentInput, 0, len(req.Payments)),
		DiscountIDs: req.DiscountIDs,
		Subtotal:    req.Subtotal,
		Tax:         req.Tax,
		Discount:    req.Discount,
		Total:       req.Total,
	}
	for _, item := range req.Items {
		input.Items = append(input.Items, internalorders.ItemInput{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	for _, payment := range req.Payments {
		input.Payments = append(input.Payments, internalorders.PaymentInput{
			PaymentMethodID: payment.PaymentMethodID,
			Amount:          payment.Amount,
		})
	}
	return input
}

// Create records a sale at the actor's branch.
func Create(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}

		var req createOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CreateOrder(r.Context(), req.toInput(actor))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// Detail returns the order with its items, payments and discounts.
func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		orderID, err := validators.URLParamUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		detail, err := svc.GetOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, detail)
	}
}

// Void reverses a completed order. Branch Officers may only void orders of
// their own branch.
func Void(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}
		orderID, err := validators.URLParamUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if actor.Role == enums.RoleBranchOfficer {
			detail, err := svc.GetOrder(r.Context(), orderID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			if !actor.OwnsBranch(detail.BranchID) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another branch"))
				return
			}
		}

		result, err := svc.VoidOrder(r.Context(), internalorders.VoidOrderInput{
			OrderID:       orderID,
			ActorUserID:   actor.UserID,
			ActorRole:     actor.Role,
			ActorBranchID: actor.BranchID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
