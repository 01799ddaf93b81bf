package inventory

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/codebrew/pos-backend/api/middleware"
	"github.com/codebrew/pos-backend/api/responses"
	"github.com/codebrew/pos-backend/api/validators"
	internalinventory "github.com/codebrew/pos-backend/internal/inventory"
	"github.com/codebrew/pos-backend/pkg/enums"
	pkgerrors "github.com/codebrew/pos-backend/pkg/errors"
	"github.com/codebrew/pos-backend/pkg/logger"
	"github.com/codebrew/pos-backend/pkg/pagination"
)

// authorizeBranch lets Admin act on any branch and everyone else only on
// their assigned branch.
func authorizeBranch(actor middleware.Actor, branchID uuid.UUID) error {
	if actor.Role == enums.RoleAdmin || actor.OwnsBranch(branchID) {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "branch not accessible").
		WithDetails(map[string]any{"branch_id": branchID.String()})
}

func actorFrom(r *http.Request) (middleware.Actor, error) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		return middleware.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return actor, nil
}

func unavailable() error {
	return pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable")
}

// BranchInventory lists every record of a branch with product name and SKU.
func BranchInventory(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable())
			return
		}
		branchID, err := branchFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items, err := svc.ListBranchInventory(r.Context(), branchID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, items)
	}
}

// Alerts lists records at or below their low-stock threshold.
func Alerts(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable())
			return
		}
		branchID, err := branchFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items, err := svc.LowStockAlerts(r.Context(), branchID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, items)
	}
}

func branchFromPath(r *http.Request) (uuid.UUID, error) {
	actor, err := actorFrom(r)
	if err != nil {
		return uuid.Nil, err
	}
	branchID, err := validators.URLParamUUID(r, "branchId")
	if err != nil {
		return uuid.Nil, err
	}
	if err := authorizeBranch(actor, branchID); err != nil {
		return uuid.Nil, err
	}
	return branchID, nil
}

// Logs pages through the audit trail, newest first. Branch Officers are
// pinned to their own branch.
func Logs(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable())
			return
		}
		actor, err := actorFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		productID, err := validators.ParseQueryUUID(r, "product_id", false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		branchID, err := validators.ParseQueryUUID(r, "branch_id", false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if actor.Role != enums.RoleAdmin {
			if branchID == nil {
				branchID = actor.BranchID
			}
			if branchID == nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "branch assignment required"))
				return
			}
			if err := authorizeBranch(actor, *branchID); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		page, err := svc.ListLogs(r.Context(), internalinventory.LogQuery{
			Filter: internalinventory.LogFilter{ProductID: productID, BranchID: branchID},
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
			Limit:  limit,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// Reconcile compares one record with the sum of its audit entries.
func Reconcile(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable())
			return
		}
		productID, err := validators.ParseQueryUUID(r, "product_id", true)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		branchID, err := validators.ParseQueryUUID(r, "branch_id", true)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Reconcile(r.Context(), *productID, *branchID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !result.Balanced && logg != nil {
			ctx := logg.WithFields(r.Context(), map[string]any{
				"product_id": productID.String(),
				"branch_id":  branchID.String(),
				"quantity":   result.Quantity,
				"log_sum":    result.LogSum,
			})
			logg.Warn(ctx, "inventory.drift")
		}
		responses.WriteSuccess(w, result)
	}
}

type openRecordRequest struct {
	ProductID         uuid.UUID `json:"product_id" validate:"required"`
	BranchID          uuid.UUID `json:"branch_id" validate:"required"`
	LowStockThreshold *int      `json:"low_stock_threshold" validate:"omitempty,min=0"`
}

// OpenRecord creates a zero-quantity record, or returns the existing one.
func OpenRecord(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable())
			return
		}
		actor, err := actorFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req openRecordRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.OpenRecord(r.Context(), internalinventory.OpenRecordInput{
			ProductID:         req.ProductID,
			BranchID:          req.BranchID,
			LowStockThreshold: req.LowStockThreshold,
			ActorUserID:       actor.UserID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, record)
	}
}

type thresholdRequest struct {
	ProductID         uuid.UUID `json:"product_id" validate:"required"`
	BranchID          uuid.UUID `json:"branch_id" validate:"required"`
	LowStockThreshold *int      `json:"low_stock_threshold" validate:"omitempty,min=0"`
}

// SetThreshold sets or clears the low-stock threshold of a record.
func SetThreshold(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable())
			return
		}
		actor, err := actorFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req thresholdRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := authorizeBranch(actor, req.BranchID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.SetLowStockThreshold(r.Context(), req.ProductID, req.BranchID, req.LowStockThreshold)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, record)
	}
}

type adjustRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	BranchID  uuid.UUID `json:"branch_id" validate:"required"`
	Delta     int       `json:"change_quantity" validate:"ne=0"`
	Reason    string    `json:"reason" validate:"max=64"`
	Note      *string   `json:"note" validate:"omitempty,max=500"`
}

// Adjust applies a manual stock correction.
func Adjust(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable())
			return
		}
		actor, err := actorFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req adjustRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := authorizeBranch(actor, req.BranchID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.AdjustInventory(r.Context(), internalinventory.AdjustInput{
			ProductID:     req.ProductID,
			BranchID:      req.BranchID,
			Delta:         req.Delta,
			Reason:        req.Reason,
			Note:          req.Note,
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
