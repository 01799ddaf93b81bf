package transfers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/codebrew/pos-backend/internal/inventory"
	"github.com/codebrew/pos-backend/pkg/db"
	"github.com/codebrew/pos-backend/pkg/db/models"
	"github.com/codebrew/pos-backend/pkg/enums"
	pkgerrors "github.com/codebrew/pos-backend/pkg/errors"
	"github.com/codebrew/pos-backend/pkg/logger"
	"github.com/codebrew/pos-backend/pkg/metrics"
	"github.com/codebrew/pos-backend/pkg/outbox"
	"github.com/codebrew/pos-backend/pkg/outbox/payloads"
	"github.com/codebrew/pos-backend/pkg/tracing"
)

const opTransfer = "transfer_products"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Input moves Quantity units of one product between two branches.
type Input struct {
	ProductID     uuid.UUID
	FromBranchID  uuid.UUID
	ToBranchID    uuid.UUID
	Quantity      int
	Notes         *string
	ActorUserID   uuid.UUID
	ActorRole     enums.Role
	ActorBranchID *uuid.UUID
}

// Result is returned once both sides of the transfer commit.
type Result struct {
	TransferID          uuid.UUID `json:"transfer_id"`
	SourceQuantity      int       `json:"source_quantity"`
	DestinationQuantity int       `json:"destination_quantity"`
	CreatedAt           time.Time `json:"created_at"`
}

type Service interface {
	TransferProducts(ctx context.Context, input Input) (*Result, error)
}

// ServiceParams groups the collaborators of NewService.
type ServiceParams struct {
	Tx      txRunner
	Ledger  *inventory.Ledger
	Audit   *inventory.AuditWriter
	Outbox  inventory.Emitter
	Metrics *metrics.EngineMetrics
	Logger  *logger.Logger
}

type service struct {
	tx      txRunner
	ledger  *inventory.Ledger
	audit   *inventory.AuditWriter
	outbox  inventory.Emitter
	metrics *metrics.EngineMetrics
	logg    *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
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
		params.Ledger = inventory.NewLedger()
	}
	if params.Audit == nil {
		params.Audit = inventory.NewAuditWriter()
	}
	return &service{
		tx:      params.Tx,
		ledger:  params.Ledger,
		audit:   params.Audit,
		outbox:  params.Outbox,
		metrics: params.Metrics,
		logg:    params.Logger,
	}, nil
}

func validate(input Input) error {
	if input.ProductID == uuid.Nil || input.FromBranchID == uuid.Nil || input.ToBranchID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product_id, from_branch_id and to_branch_id are required")
	}
	if input.ActorUserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.Quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be greater than zero")
	}
	if input.FromBranchID == input.ToBranchID {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "source and destination branch must differ")
	}
	return nil
}

// TransferProducts debits the source and credits the destination in one
// transaction. The destination record is opened when it does not exist yet.
func (s *service) TransferProducts(ctx context.Context, input Input) (result *Result, err error) {
	started := time.Now()
	ctx, span := tracing.Start(ctx, "transfers", opTransfer,
		tracing.UUID("pos.product_id", input.ProductID),
		tracing.UUID("pos.from_branch_id", input.FromBranchID),
		tracing.UUID("pos.to_branch_id", input.ToBranchID),
	)
	defer func() {
		tracing.End(span, err)
		s.metrics.Observe(opTransfer, started, err)
	}()

	if err := validate(input); err != nil {
		return nil, err
	}

	actor := inventory.BuildActor(input.ActorUserID, input.ActorBranchID, input.ActorRole)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		header := &models.StockTransfer{
			ProductID:         input.ProductID,
			FromBranchID:      input.FromBranchID,
			ToBranchID:        input.ToBranchID,
			Quantity:          input.Quantity,
			InitiatedByUserID: input.ActorUserID,
			Notes:             input.Notes,
		}
		if err := tx.WithContext(ctx).Create(header).Error; err != nil {
			return db.ClassifyError(err, "create stock transfer")
		}
		note := transferNote(header.ID, input)

		source, err := s.ledger.AdjustQuantity(ctx, tx, inventory.Movement{
			ProductID: input.ProductID,
			BranchID:  input.FromBranchID,
			Delta:     -input.Quantity,
			Step:      string(enums.ReasonTransferOut),
		})
		if err != nil {
			return err
		}
		if _, err := s.audit.Append(ctx, tx, inventory.AuditEntry{
			ProductID:       input.ProductID,
			BranchID:        input.FromBranchID,
			UserID:          input.ActorUserID,
			Delta:           -input.Quantity,
			NewQuantity:     source.Quantity,
			Reason:          enums.SystemReason(enums.ReasonTransferOut),
			Note:            &note,
			StockTransferID: &header.ID,
		}); err != nil {
			return err
		}

		dest, err := s.ledger.AdjustQuantity(ctx, tx, inventory.Movement{
			ProductID:       input.ProductID,
			BranchID:        input.ToBranchID,
			Delta:           input.Quantity,
			CreateIfMissing: true,
			Step:            string(enums.ReasonTransferIn),
		})
		if err != nil {
			return err
		}
		if _, err := s.audit.Append(ctx, tx, inventory.AuditEntry{
			ProductID:       input.ProductID,
			BranchID:        input.ToBranchID,
			UserID:          input.ActorUserID,
			Delta:           input.Quantity,
			NewQuantity:     dest.Quantity,
			Reason:          enums.SystemReason(enums.ReasonTransferIn),
			Note:            &note,
			StockTransferID: &header.ID,
		}); err != nil {
			return err
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventStockTransferred,
			AggregateType: enums.AggregateStockTransfer,
			AggregateID:   header.ID,
			Actor:         actor,
			Data: payloads.StockTransferredEvent{
				TransferID:     header.ID,
				ProductID:      input.ProductID,
				FromBranchID:   input.FromBranchID,
				ToBranchID:     input.ToBranchID,
				Quantity:       input.Quantity,
				SourceQuantity: source.Quantity,
				DestQuantity:   dest.Quantity,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue transfer event")
		}
		if err := inventory.EmitLowStockIfCrossed(ctx, tx, s.outbox, actor, input.ProductID, input.FromBranchID, -input.Quantity, source); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue low stock event")
		}

		result = &Result{
			TransferID:          header.ID,
			SourceQuantity:      source.Quantity,
			DestinationQuantity: dest.Quantity,
			CreatedAt:           header.CreatedAt,
		}
		return nil
	})
	if err != nil {
		return nil, db.ClassifyError(err, "transfer products")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"transfer_id":          result.TransferID.String(),
		"product_id":           input.ProductID.String(),
		"from_branch_id":       input.FromBranchID.String(),
		"to_branch_id":         input.ToBranchID.String(),
		"quantity":             input.Quantity,
		"destination_quantity": result.DestinationQuantity,
	})
	s.logg.Info(logCtx, "stock transferred")
	return result, nil
}

func transferNote(transferID uuid.UUID, input Input) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Transfer ID: %s, From Branch ID: %s, To Branch ID: %s, Quantity: %d",
		transferID, input.FromBranchID, input.ToBranchID, input.Quantity)
	if input.Notes != nil && strings.TrimSpace(*input.Notes) != "" {
		fmt.Fprintf(&b, ", Notes: %s", strings.TrimSpace(*input.Notes))
	}
	return b.String()
}
