package inventory

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/codebrew/pos-backend/api/responses"
	"github.com/codebrew/pos-backend/api/validators"
	"github.com/codebrew/pos-backend/internal/transfers"
	pkgerrors "github.com/codebrew/pos-backend/pkg/errors"
	"github.com/codebrew/pos-backend/pkg/logger"
)

type transferRequest struct {
	ProductID    uuid.UUID `json:"product_id" validate:"required"`
	FromBranchID uuid.UUID `json:"from_branch_id" validate:"required"`
	ToBranchID   uuid.UUID `json:"to_branch_id" validate:"required,nefield=FromBranchID"`
	Quantity     int       `json:"quantity" validate:"gt=0"`
	Notes        *string   `json:"notes" validate:"omitempty,max=500"`
}

// Transfer moves stock out of the actor's branch (any branch for Admin).
func Transfer(svc transfers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transfer service unavailable"))
			return
		}
		actor, err := actorFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req transferRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := authorizeBranch(actor, req.FromBranchID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.TransferProducts(r.Context(), transfers.Input{
			ProductID:     req.ProductID,
			FromBranchID:  req.FromBranchID,
			ToBranchID:    req.ToBranchID,
			Quantity:      req.Quantity,
			Notes:         req.Notes,
			ActorUserID:   actor.UserID,
			ActorRole:     actor.Role,
			ActorBranchID: actor.BranchID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if logg != nil {
			ctx := logg.WithField(r.Context(), "transfer_id", result.TransferID.String())
			logg.Info(ctx, "inventory.transferred")
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
