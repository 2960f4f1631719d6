package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/inkwellmarket/inkwell-backend/internal/fees"
	dbpkg "github.com/inkwellmarket/inkwell-backend/pkg/db"
	"github.com/inkwellmarket/inkwell-backend/pkg/db/models"
	"github.com/inkwellmarket/inkwell-backend/pkg/enums"
	pkgerrors "github.com/inkwellmarket/inkwell-backend/pkg/errors"
	"github.com/inkwellmarket/inkwell-backend/pkg/logger"
	"github.com/inkwellmarket/inkwell-backend/pkg/outbox"
	"github.com/inkwellmarket/inkwell-backend/pkg/outbox/payloads"
	"github.com/inkwellmarket/inkwell-backend/pkg/pagination"
)

// DestinationReader looks up a seller's configured payout destination.
type DestinationReader interface {
	FindBySeller(ctx context.Context, sellerID uuid.UUID) (*models.PayoutDestination, error)
}

// PayoutAttacher folds a freshly written ledger entry into the seller's open
// payable unit inside the same transaction.
type PayoutAttacher interface {
	AttachEntryTx(ctx context.Context, tx *gorm.DB, entry *models.LedgerEntry) error
}

// Transactor runs a function inside one database transaction.
type Transactor interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// RecordSaleInput is one finalized order from the order pipeline.
type RecordSaleInput struct {
	OrderID       uuid.UUID
	Attribution   SellerAttribution
	BuyerID       uuid.UUID
	SubtotalCents int64
	ShippingCents int64
	DiscountCents int64
	PaymentMethod enums.PaymentMethod
	Currency      enums.Currency
	OccurredAt    time.Time
}

// ServiceParams groups dependencies for the ledger writer.
type ServiceParams struct {
	Transactor   Transactor
	Repo         Repository
	Calculator   *fees.Calculator
	Destinations DestinationReader
	Attacher     PayoutAttacher
	Outbox       *outbox.Service
	Logger       *logger.Logger
}

// Service turns finalized orders into immutable ledger entries.
type Service struct {
	transactor   Transactor
	repo         Repository
	calc         *fees.Calculator
	destinations DestinationReader
	attacher     PayoutAttacher
	outbox       *outbox.Service
	logg         *logger.Logger
}

// NewService builds the ledger writer.
func NewService(params ServiceParams) (*Service, error) {
	if params.Transactor == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transactor is required")
	}
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger repository is required")
	}
	if params.Calculator == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "fee calculator is required")
	}
	if params.Destinations == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "destination reader is required")
	}
	if params.Attacher == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payout attacher is required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox service is required")
	}
	return &Service{
		transactor:   params.Transactor,
		repo:         params.Repo,
		calc:         params.Calculator,
		destinations: params.Destinations,
		attacher:     params.Attacher,
		outbox:       params.Outbox,
		logg:         params.Logger,
	}, nil
}

// RecordSale writes exactly one ledger entry for a finalized order. Calling
// it again for the same order returns the existing entry unchanged. A seller
// with no payout destination still gets the entry written; only the money
// movement waits.
func (s *Service) RecordSale(ctx context.Context, input RecordSaleInput) (*models.LedgerEntry, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id is required")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	if !input.Currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid currency")
	}

	sellerID, err := ResolveSellerID(input.Attribution)
	if err != nil {
		return nil, err
	}

	if existing, err := s.repo.FindByOrderID(ctx, input.OrderID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "look up existing entry")
	} else if existing != nil {
		return existing, nil
	}

	rail, err := s.railForSeller(ctx, sellerID)
	if err != nil {
		return nil, err
	}

	breakdown, err := s.calc.Compute(fees.Input{
		SubtotalCents: input.SubtotalCents,
		ShippingCents: input.ShippingCents,
		DiscountCents: input.DiscountCents,
		Rail:          rail,
	})
	if err != nil {
		return nil, err
	}

	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	entry := &models.LedgerEntry{
		ID:                uuid.New(),
		OrderID:           input.OrderID,
		SellerID:          sellerID,
		BuyerID:           input.BuyerID,
		SubtotalCents:     input.SubtotalCents,
		ShippingCents:     input.ShippingCents,
		DiscountCents:     input.DiscountCents,
		GrossTotalCents:   breakdown.GrossTotalCents,
		RailFeeCents:      breakdown.RailFeeCents,
		PlatformFeeCents:  breakdown.PlatformFeeCents,
		TotalFeesCents:    breakdown.TotalFeesCents,
		NetRevenueCents:   breakdown.NetRevenueCents,
		ArtistPayoutCents: breakdown.ArtistPayoutCents,
		PayoutStatus:      enums.PayoutStatusPending,
		PaymentMethod:     input.PaymentMethod,
		Currency:          input.Currency,
		OccurredAt:        occurredAt,
	}
	if breakdown.NeedsReview {
		reason := breakdown.ReviewReason
		entry.ReviewReason = &reason
	}

	txErr := s.transactor.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, entry); err != nil {
			return err
		}
		if entry.ArtistPayoutCents > 0 {
			if err := s.attacher.AttachEntryTx(ctx, tx, entry); err != nil {
				return err
			}
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventLedgerEntryRecorded,
			AggregateType: enums.AggregateLedgerEntry,
			AggregateID:   entry.ID,
			Version:       1,
			OccurredAt:    occurredAt,
			Data: payloads.LedgerEntryRecordedEvent{
				EntryID:           entry.ID,
				OrderID:           entry.OrderID,
				SellerID:          entry.SellerID,
				GrossTotalCents:   entry.GrossTotalCents,
				TotalFeesCents:    entry.TotalFeesCents,
				ArtistPayoutCents: entry.ArtistPayoutCents,
				Currency:          entry.Currency,
				PaymentMethod:     entry.PaymentMethod,
				NeedsReview:       entry.ReviewReason != nil,
				OccurredAt:        entry.OccurredAt,
			},
		})
	})
	if txErr != nil {
		// A concurrent writer for the same order wins the race at the
		// unique index; the loser reads back the winner's row.
		if dbpkg.IsUniqueViolation(txErr, "ux_ledger_entries_order_id") {
			existing, findErr := s.repo.FindByOrderID(ctx, input.OrderID)
			if findErr != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, findErr, "re-read entry after conflict")
			}
			if existing != nil {
				return existing, nil
			}
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, txErr, "record sale")
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"order_id":  entry.OrderID.String(),
			"seller_id": entry.SellerID.String(),
			"gross":     entry.GrossTotalCents,
			"payout":    entry.ArtistPayoutCents,
		})
		s.logg.Info(logCtx, "ledger entry recorded")
	}
	return entry, nil
}

// GetEntry fetches one ledger entry by id.
func (s *Service) GetEntry(ctx context.Context, id uuid.UUID) (*models.LedgerEntry, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "entry id is required")
	}
	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find entry")
	}
	if entry == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "ledger entry not found")
	}
	return entry, nil
}

// ListEntries pages through ledger entries for the admin surface.
func (s *Service) ListEntries(ctx context.Context, query ListEntriesQuery) ([]models.LedgerEntry, *pagination.Cursor, error) {
	return s.repo.List(ctx, query)
}

func (s *Service) railForSeller(ctx context.Context, sellerID uuid.UUID) (enums.RailKind, error) {
	destination, err := s.destinations.FindBySeller(ctx, sellerID)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "look up payout destination")
	}
	if destination == nil {
		// Fees still need a schedule before the seller connects a
		// destination; the platform's default processing rail applies.
		return enums.RailKindStripeConnect, nil
	}
	return destination.Rail, nil
}
