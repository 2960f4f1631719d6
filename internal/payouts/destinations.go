package payouts

import (
	"context"

	"github.com/google/uuid"

	"github.com/inkwellmarket/inkwell-backend/pkg/db/models"
	"github.com/inkwellmarket/inkwell-backend/pkg/enums"
	pkgerrors "github.com/inkwellmarket/inkwell-backend/pkg/errors"
	"github.com/inkwellmarket/inkwell-backend/pkg/logger"
)

// DestinationService manages per-seller payout destinations. It also
// satisfies the ledger writer's DestinationReader so new entries can pick up
// the seller's configured rail.
type DestinationService struct {
	repo Repository
	logg *logger.Logger
}

// NewDestinationService builds the destination service.
func NewDestinationService(repo Repository, logg *logger.Logger) (*DestinationService, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payouts repository is required")
	}
	return &DestinationService{repo: repo, logg: logg}, nil
}

// FindBySeller returns the seller's destination, or nil when none is
// registered.
func (s *DestinationService) FindBySeller(ctx context.Context, sellerID uuid.UUID) (*models.PayoutDestination, error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id is required")
	}
	return s.repo.FindDestinationBySeller(ctx, sellerID)
}

// RegisterInput carries a destination registration request.
type RegisterInput struct {
	SellerID   uuid.UUID
	Rail       enums.RailKind
	AccountRef string
}

// Register creates or replaces the seller's payout destination. Units already
// waiting on a destination are picked up by the next aggregation run.
func (s *DestinationService) Register(ctx context.Context, input RegisterInput) (*models.PayoutDestination, error) {
	if input.SellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id is required")
	}
	if !input.Rail.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown payout rail")
	}
	if input.AccountRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account reference is required")
	}

	destination := &models.PayoutDestination{
		SellerID:   input.SellerID,
		Rail:       input.Rail,
		AccountRef: input.AccountRef,
	}
	if err := s.repo.UpsertDestination(ctx, destination); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "upsert payout destination")
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"seller_id": input.SellerID.String(),
			"rail":      input.Rail,
		})
		s.logg.Info(logCtx, "payout destination registered")
	}
	return destination, nil
}
