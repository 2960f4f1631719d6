package payouts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/inkwellmarket/inkwell-backend/internal/ledger"
	"github.com/inkwellmarket/inkwell-backend/pkg/db/models"
	dbtypes "github.com/inkwellmarket/inkwell-backend/pkg/db/types"
	"github.com/inkwellmarket/inkwell-backend/pkg/enums"
	pkgerrors "github.com/inkwellmarket/inkwell-backend/pkg/errors"
	"github.com/inkwellmarket/inkwell-backend/pkg/logger"
	"github.com/inkwellmarket/inkwell-backend/pkg/outbox"
	"github.com/inkwellmarket/inkwell-backend/pkg/outbox/payloads"
)

// DeriveIdempotencyKey produces the deterministic key for a payable unit:
// sha256 over the seller id plus the sorted source entry ids. The same seller
// and entry set always derive the same key, which is what makes
// re-aggregation and dispatch retries safe.
func DeriveIdempotencyKey(sellerID uuid.UUID, entryIDs []uuid.UUID) string {
	sorted := make([]string, 0, len(entryIDs))
	for _, id := range entryIDs {
		sorted = append(sorted, id.String())
	}
	sort.Strings(sorted)

	hasher := sha256.New()
	hasher.Write([]byte(sellerID.String()))
	for _, id := range sorted {
		hasher.Write([]byte(id))
	}
	return hex.EncodeToString(hasher.Sum(nil))
}

// AggregatorParams groups dependencies for the payout aggregator.
type AggregatorParams struct {
	Transactor ledger.Transactor
	Repo       Repository
	LedgerRepo ledger.Repository
	Outbox     *outbox.Service
	Logger     *logger.Logger
}

// Aggregator groups a seller's outstanding ledger entries into one payable
// unit per run.
type Aggregator struct {
	transactor ledger.Transactor
	repo       Repository
	ledgerRepo ledger.Repository
	outbox     *outbox.Service
	logg       *logger.Logger
}

// NewAggregator builds the payout aggregator.
func NewAggregator(params AggregatorParams) (*Aggregator, error) {
	if params.Transactor == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transactor is required")
	}
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payouts repository is required")
	}
	if params.LedgerRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger repository is required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox service is required")
	}
	return &Aggregator{
		transactor: params.Transactor,
		repo:       params.Repo,
		ledgerRepo: params.LedgerRepo,
		outbox:     params.Outbox,
		logg:       params.Logger,
	}, nil
}

// AttachEntryTx folds a freshly recorded ledger entry into the seller's open
// payable unit, creating one when none exists. Runs inside the ledger
// writer's transaction so the entry and its unit land together.
func (a *Aggregator) AttachEntryTx(ctx context.Context, tx *gorm.DB, entry *models.LedgerEntry) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	repo := a.repo.WithTx(tx)

	open, err := repo.FindOpenBySeller(ctx, entry.SellerID)
	if err != nil {
		return err
	}
	if open == nil {
		payout := &models.PendingPayout{
			ID:             uuid.New(),
			SellerID:       entry.SellerID,
			SourceEntryIDs: dbtypes.UUIDArray{entry.ID},
			AmountCents:    entry.ArtistPayoutCents,
			Status:         enums.PendingPayoutStatusAwaitingDestination,
			IdempotencyKey: DeriveIdempotencyKey(entry.SellerID, []uuid.UUID{entry.ID}),
		}
		return repo.CreatePayout(ctx, payout)
	}

	if open.SourceEntryIDs.Contains(entry.ID) {
		return nil
	}
	open.SourceEntryIDs = append(open.SourceEntryIDs, entry.ID)
	open.AmountCents += entry.ArtistPayoutCents
	open.IdempotencyKey = DeriveIdempotencyKey(open.SellerID, open.SourceEntryIDs)
	return repo.SavePayout(ctx, open)
}

// Aggregate collects the seller's payable entries up to asOf into one unit
// and promotes it to queued once a payout destination exists. Re-running for
// the same underlying entry set derives the same idempotency key and returns
// the existing unit instead of minting a duplicate.
func (a *Aggregator) Aggregate(ctx context.Context, sellerID uuid.UUID, asOf time.Time) (*models.PendingPayout, error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id is required")
	}
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}

	var result *models.PendingPayout
	txErr := a.transactor.WithTx(ctx, func(tx *gorm.DB) error {
		repo := a.repo.WithTx(tx)
		ledgerRepo := a.ledgerRepo.WithTx(tx)

		payable, err := ledgerRepo.ListPayableBySeller(ctx, sellerID, asOf)
		if err != nil {
			return err
		}

		active, err := repo.ListActiveBySeller(ctx, sellerID)
		if err != nil {
			return err
		}
		attached := make(map[uuid.UUID]bool)
		var open *models.PendingPayout
		for i := range active {
			for _, id := range active[i].SourceEntryIDs {
				attached[id] = true
			}
			if active[i].Status == enums.PendingPayoutStatusAwaitingDestination && open == nil {
				open = &active[i]
			}
		}

		entryIDs := make([]uuid.UUID, 0, len(payable))
		amount := int64(0)
		if open != nil {
			entryIDs = append(entryIDs, open.SourceEntryIDs...)
			amount = open.AmountCents
		}
		for _, entry := range payable {
			if attached[entry.ID] {
				continue
			}
			entryIDs = append(entryIDs, entry.ID)
			amount += entry.ArtistPayoutCents
		}
		if len(entryIDs) == 0 {
			return nil
		}

		key := DeriveIdempotencyKey(sellerID, entryIDs)
		if existing, err := repo.FindPayoutByKey(ctx, key); err != nil {
			return err
		} else if existing != nil && (open == nil || existing.ID != open.ID) {
			result = existing
			return nil
		}

		if open == nil {
			open = &models.PendingPayout{
				ID:       uuid.New(),
				SellerID: sellerID,
				Status:   enums.PendingPayoutStatusAwaitingDestination,
			}
		}
		open.SourceEntryIDs = dbtypes.UUIDArray(entryIDs)
		open.AmountCents = amount
		open.IdempotencyKey = key

		destination, err := repo.FindDestinationBySeller(ctx, sellerID)
		if err != nil {
			return err
		}

		if destination != nil {
			rail := destination.Rail
			open.Status = enums.PendingPayoutStatusQueued
			open.Rail = &rail

			if _, err := ledgerRepo.UpdatePayoutStatus(ctx, entryIDs, enums.PayoutStatusPending, enums.PayoutStatusQueued); err != nil {
				return err
			}
			if err := a.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventPayoutQueued,
				AggregateType: enums.AggregatePendingPayout,
				AggregateID:   open.ID,
				Version:       1,
				Data: payloads.PayoutQueuedEvent{
					PayoutID:    open.ID,
					SellerID:    open.SellerID,
					AmountCents: open.AmountCents,
					Rail:        rail,
					EntryCount:  len(entryIDs),
				},
			}); err != nil {
				return err
			}
		}

		if open.CreatedAt.IsZero() {
			if err := repo.CreatePayout(ctx, open); err != nil {
				return err
			}
		} else if err := repo.SavePayout(ctx, open); err != nil {
			return err
		}

		result = open
		return nil
	})
	if txErr != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, txErr, "aggregate payouts")
	}

	if result != nil && a.logg != nil {
		logCtx := a.logg.WithFields(ctx, map[string]any{
			"seller_id": sellerID.String(),
			"payout_id": result.ID.String(),
			"status":    result.Status,
			"amount":    result.AmountCents,
		})
		a.logg.Info(logCtx, "payout aggregated")
	}
	return result, nil
}

// AggregateAll runs Aggregate for every seller with outstanding payable
// entries.
func (a *Aggregator) AggregateAll(ctx context.Context, asOf time.Time) (int, error) {
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}
	sellers, err := a.ledgerRepo.ListSellersWithPayable(ctx, asOf)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list sellers with payable entries")
	}

	aggregated := 0
	for _, sellerID := range sellers {
		if _, err := a.Aggregate(ctx, sellerID, asOf); err != nil {
			if a.logg != nil {
				a.logg.Error(a.logg.WithSellerID(ctx, sellerID.String()), "aggregate seller failed", err)
			}
			continue
		}
		aggregated++
	}
	return aggregated, nil
}
