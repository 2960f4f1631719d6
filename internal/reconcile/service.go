package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/inkwellmarket/inkwell-backend/internal/ledger"
	"github.com/inkwellmarket/inkwell-backend/internal/payouts"
	"github.com/inkwellmarket/inkwell-backend/internal/rails"
	"github.com/inkwellmarket/inkwell-backend/pkg/db/models"
	"github.com/inkwellmarket/inkwell-backend/pkg/enums"
	pkgerrors "github.com/inkwellmarket/inkwell-backend/pkg/errors"
	"github.com/inkwellmarket/inkwell-backend/pkg/logger"
	"github.com/inkwellmarket/inkwell-backend/pkg/outbox"
	"github.com/inkwellmarket/inkwell-backend/pkg/outbox/payloads"
	"github.com/inkwellmarket/inkwell-backend/pkg/pagination"
)

const (
	targetKindLedgerEntry   = "ledger_entry"
	targetKindPendingPayout = "pending_payout"
)

// FieldChange is one before/after pair in a correction plan.
type FieldChange struct {
	Field string `json:"field"`
	Old   any    `json:"old"`
	New   any    `json:"new"`
}

// Plan describes what a correction would do, or did. Dry runs return a plan
// with Applied false; confirmed runs return the same plan with Applied true
// and the id of the audit record that was written.
type Plan struct {
	Operation    enums.CorrectionOperation `json:"operation"`
	TargetKind   string                    `json:"targetKind"`
	TargetID     uuid.UUID                 `json:"targetId"`
	Applied      bool                      `json:"applied"`
	Summary      string                    `json:"summary"`
	Changes      []FieldChange             `json:"changes"`
	CorrectionID *uuid.UUID                `json:"correctionId,omitempty"`
}

// ServiceParams groups dependencies for the reconciliation service.
type ServiceParams struct {
	Transactor   ledger.Transactor
	Corrections  Repository
	LedgerRepo   ledger.Repository
	PayoutRepo   payouts.Repository
	Rails        map[enums.RailKind]rails.Rail
	Outbox       *outbox.Service
	Logger       *logger.Logger
	QueryTimeout time.Duration
}

// Service applies operator corrections to the ledger and payout state. Every
// operation defaults to a dry run; nothing mutates without Confirm, and every
// applied mutation leaves a CorrectionRecord behind.
type Service struct {
	transactor   ledger.Transactor
	corrections  Repository
	ledgerRepo   ledger.Repository
	payoutRepo   payouts.Repository
	rails        map[enums.RailKind]rails.Rail
	outbox       *outbox.Service
	logg         *logger.Logger
	queryTimeout time.Duration
}

// NewService builds the reconciliation service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Transactor == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transactor is required")
	}
	if params.Corrections == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "corrections repository is required")
	}
	if params.LedgerRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger repository is required")
	}
	if params.PayoutRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payouts repository is required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox service is required")
	}
	if params.QueryTimeout <= 0 {
		params.QueryTimeout = 30 * time.Second
	}
	return &Service{
		transactor:   params.Transactor,
		corrections:  params.Corrections,
		ledgerRepo:   params.LedgerRepo,
		payoutRepo:   params.PayoutRepo,
		rails:        params.Rails,
		outbox:       params.Outbox,
		logg:         params.Logger,
		queryTimeout: params.QueryTimeout,
	}, nil
}

// ReattributeInput requests moving a ledger entry to a different seller.
type ReattributeInput struct {
	EntryID     uuid.UUID
	NewSellerID uuid.UUID
	Actor       string
	Reason      string
	Confirm     bool
}

// ReattributeSeller re-points the seller attribution of one ledger entry.
// The original attribution survives in the correction record, never in the
// entry itself.
func (s *Service) ReattributeSeller(ctx context.Context, input ReattributeInput) (*Plan, error) {
	if input.EntryID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "entry id is required")
	}
	if input.NewSellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "new seller id is required")
	}
	if input.Actor == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor is required")
	}

	entry, err := s.ledgerRepo.FindByID(ctx, input.EntryID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load ledger entry")
	}
	if entry == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "ledger entry not found")
	}

	plan := &Plan{
		Operation:  enums.CorrectionReattributeSeller,
		TargetKind: targetKindLedgerEntry,
		TargetID:   entry.ID,
	}
	if entry.SellerID == input.NewSellerID {
		plan.Summary = "entry already attributed to the requested seller"
		return plan, nil
	}

	plan.Changes = []FieldChange{{
		Field: "seller_id",
		Old:   entry.SellerID.String(),
		New:   input.NewSellerID.String(),
	}}
	plan.Summary = fmt.Sprintf("reattribute entry from seller %s to %s", entry.SellerID, input.NewSellerID)

	if !input.Confirm {
		return plan, nil
	}

	record := &models.CorrectionRecord{
		ID:         uuid.New(),
		Operation:  enums.CorrectionReattributeSeller,
		TargetKind: targetKindLedgerEntry,
		TargetID:   entry.ID,
		Actor:      input.Actor,
		OldValue:   mustJSON(map[string]string{"seller_id": entry.SellerID.String()}),
		NewValue:   mustJSON(map[string]string{"seller_id": input.NewSellerID.String()}),
		Reason:     input.Reason,
	}
	txErr := s.transactor.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.ledgerRepo.WithTx(tx).UpdateSeller(ctx, entry.ID, input.NewSellerID); err != nil {
			return err
		}
		if err := s.corrections.WithTx(tx).Create(ctx, record); err != nil {
			return err
		}
		return s.emitCorrection(ctx, tx, record)
	})
	if txErr != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, txErr, "apply seller reattribution")
	}

	plan.Applied = true
	plan.CorrectionID = &record.ID
	s.logApplied(ctx, record)
	return plan, nil
}

// ResyncInput requests realigning ledger entry statuses with their payout.
type ResyncInput struct {
	PayoutID uuid.UUID
	Actor    string
	Reason   string
	Confirm  bool
}

// ResyncPayoutStatus repairs ledger entries that drifted from their payable
// unit, for example entries still reading queued after the payout completed.
func (s *Service) ResyncPayoutStatus(ctx context.Context, input ResyncInput) (*Plan, error) {
	if input.PayoutID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout id is required")
	}
	if input.Actor == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor is required")
	}

	payout, err := s.payoutRepo.FindPayoutByID(ctx, input.PayoutID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payout")
	}
	if payout == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payout not found")
	}

	expected := ledgerStatusFor(payout.Status)
	entries, err := s.ledgerRepo.FindByIDs(ctx, payout.SourceEntryIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load source entries")
	}

	plan := &Plan{
		Operation:  enums.CorrectionResyncPayout,
		TargetKind: targetKindPendingPayout,
		TargetID:   payout.ID,
	}

	var driftedIDs []uuid.UUID
	oldStatuses := map[string]string{}
	for i := range entries {
		if entries[i].PayoutStatus == expected {
			continue
		}
		driftedIDs = append(driftedIDs, entries[i].ID)
		oldStatuses[entries[i].ID.String()] = string(entries[i].PayoutStatus)
		plan.Changes = append(plan.Changes, FieldChange{
			Field: fmt.Sprintf("ledger_entries[%s].payout_status", entries[i].ID),
			Old:   string(entries[i].PayoutStatus),
			New:   string(expected),
		})
	}
	if len(driftedIDs) == 0 {
		plan.Summary = "ledger entries already match the payout status"
		return plan, nil
	}
	plan.Summary = fmt.Sprintf("resync %d of %d entries to %s", len(driftedIDs), len(entries), expected)

	if !input.Confirm {
		return plan, nil
	}

	record := &models.CorrectionRecord{
		ID:         uuid.New(),
		Operation:  enums.CorrectionResyncPayout,
		TargetKind: targetKindPendingPayout,
		TargetID:   payout.ID,
		Actor:      input.Actor,
		OldValue:   mustJSON(oldStatuses),
		NewValue:   mustJSON(map[string]string{"payout_status": string(expected)}),
		Reason:     input.Reason,
	}
	txErr := s.transactor.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.ledgerRepo.WithTx(tx).SetPayoutStatus(ctx, driftedIDs, expected); err != nil {
			return err
		}
		if err := s.corrections.WithTx(tx).Create(ctx, record); err != nil {
			return err
		}
		return s.emitCorrection(ctx, tx, record)
	})
	if txErr != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, txErr, "apply payout resync")
	}

	plan.Applied = true
	plan.CorrectionID = &record.ID
	s.logApplied(ctx, record)
	return plan, nil
}

// ResolveInput requests settling a payout stuck in dispatching from rail
// ground truth.
type ResolveInput struct {
	PayoutID uuid.UUID
	Actor    string
	Reason   string
	Confirm  bool
}

// ResolveDispatch asks the rail what actually happened to a stuck payout and
// settles it accordingly: completed batches finalize without a second money
// transfer, confirmed-absent submissions fall back to retry_pending, and
// failed or unidentifiable batches park for manual review.
func (s *Service) ResolveDispatch(ctx context.Context, input ResolveInput) (*Plan, error) {
	if input.PayoutID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout id is required")
	}
	if input.Actor == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor is required")
	}

	payout, err := s.payoutRepo.FindPayoutByID(ctx, input.PayoutID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payout")
	}
	if payout == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payout not found")
	}
	if payout.Status != enums.PendingPayoutStatusDispatching && payout.Status != enums.PendingPayoutStatusRetryPending {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("payout is %s, only dispatching or retry_pending can be resolved", payout.Status))
	}

	rail, err := s.railFor(ctx, payout)
	if err != nil {
		return nil, err
	}

	batchID := ""
	if payout.RailBatchID != nil {
		batchID = *payout.RailBatchID
	}
	queryCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	status, err := rail.QueryStatus(queryCtx, batchID, payout.IdempotencyKey)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "query rail status")
	}

	plan := &Plan{
		Operation:  enums.CorrectionResolveDispatch,
		TargetKind: targetKindPendingPayout,
		TargetID:   payout.ID,
	}

	var target enums.PendingPayoutStatus
	switch status.Status {
	case rails.BatchStatusCompleted:
		target = enums.PendingPayoutStatusCompleted
		plan.Summary = fmt.Sprintf("rail confirms batch %s completed, mark payout paid", status.BatchID)
	case rails.BatchStatusFailed:
		target = enums.PendingPayoutStatusManualReview
		plan.Summary = fmt.Sprintf("rail reports batch failed (%s), park for manual review", status.RawStatus)
	case rails.BatchStatusNotFound:
		target = enums.PendingPayoutStatusRetryPending
		plan.Summary = "rail has no record of the submission, schedule a fresh attempt"
	case rails.BatchStatusUnknown:
		// The rail cannot identify the submission, so neither completion nor
		// a fresh submit can be justified. Hand it to a human.
		target = enums.PendingPayoutStatusManualReview
		plan.Summary = "rail cannot identify the submission, park for manual review"
	default:
		plan.Summary = "rail is still processing the batch, no action taken"
		return plan, nil
	}

	plan.Changes = []FieldChange{{
		Field: "status",
		Old:   string(payout.Status),
		New:   string(target),
	}}
	if target == enums.PendingPayoutStatusCompleted {
		for _, id := range payout.SourceEntryIDs {
			plan.Changes = append(plan.Changes, FieldChange{
				Field: fmt.Sprintf("ledger_entries[%s].payout_status", id),
				New:   string(enums.PayoutStatusPaid),
			})
		}
	}

	if !input.Confirm {
		return plan, nil
	}

	record := &models.CorrectionRecord{
		ID:         uuid.New(),
		Operation:  enums.CorrectionResolveDispatch,
		TargetKind: targetKindPendingPayout,
		TargetID:   payout.ID,
		Actor:      input.Actor,
		OldValue:   mustJSON(map[string]string{"status": string(payout.Status)}),
		NewValue:   mustJSON(map[string]string{"status": string(target), "rail_status": status.RawStatus}),
		Reason:     input.Reason,
	}

	txErr := s.transactor.WithTx(ctx, func(tx *gorm.DB) error {
		payoutRepo := s.payoutRepo.WithTx(tx)

		switch target {
		case enums.PendingPayoutStatusCompleted:
			if existing, err := payoutRepo.FindConfirmationByPayout(ctx, payout.ID); err != nil {
				return err
			} else if existing == nil {
				confirmedAt := status.ConfirmedAt
				if confirmedAt.IsZero() {
					confirmedAt = time.Now().UTC()
				}
				confirmation := &models.RailConfirmation{
					ID:              uuid.New(),
					PendingPayoutID: payout.ID,
					Rail:            rail.Kind(),
					BatchID:         status.BatchID,
					Status:          string(rails.BatchStatusCompleted),
					RawStatus:       status.RawStatus,
					ConfirmedAt:     confirmedAt,
				}
				if err := payoutRepo.CreateConfirmation(ctx, confirmation); err != nil {
					return err
				}
			}
			payout.Status = enums.PendingPayoutStatusCompleted
			payout.NextAttemptAt = nil
			payout.LastError = nil
			if err := payoutRepo.SavePayout(ctx, payout); err != nil {
				return err
			}
			if _, err := s.ledgerRepo.WithTx(tx).SetPayoutStatus(ctx, payout.SourceEntryIDs, enums.PayoutStatusPaid); err != nil {
				return err
			}
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventPayoutCompleted,
				AggregateType: enums.AggregatePendingPayout,
				AggregateID:   payout.ID,
				Version:       1,
				Data: payloads.PayoutCompletedEvent{
					PayoutID:    payout.ID,
					SellerID:    payout.SellerID,
					AmountCents: payout.AmountCents,
					Rail:        rail.Kind(),
					BatchID:     status.BatchID,
					ConfirmedAt: status.ConfirmedAt,
				},
			}); err != nil {
				return err
			}
		case enums.PendingPayoutStatusManualReview:
			reason := fmt.Sprintf("rail reported batch failed: %s", status.RawStatus)
			payout.Status = enums.PendingPayoutStatusManualReview
			payout.NextAttemptAt = nil
			payout.LastError = &reason
			if err := payoutRepo.SavePayout(ctx, payout); err != nil {
				return err
			}
		case enums.PendingPayoutStatusRetryPending:
			payout.Status = enums.PendingPayoutStatusRetryPending
			payout.NextAttemptAt = nil
			if err := payoutRepo.SavePayout(ctx, payout); err != nil {
				return err
			}
		}

		if err := s.corrections.WithTx(tx).Create(ctx, record); err != nil {
			return err
		}
		return s.emitCorrection(ctx, tx, record)
	})
	if txErr != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, txErr, "apply dispatch resolution")
	}

	plan.Applied = true
	plan.CorrectionID = &record.ID
	s.logApplied(ctx, record)
	return plan, nil
}

// ListCorrections returns the audit trail, newest first.
func (s *Service) ListCorrections(ctx context.Context, query ListCorrectionsQuery) ([]models.CorrectionRecord, *pagination.Cursor, error) {
	return s.corrections.List(ctx, query)
}

func (s *Service) railFor(ctx context.Context, payout *models.PendingPayout) (rails.Rail, error) {
	kind := enums.RailKind("")
	if payout.Rail != nil {
		kind = *payout.Rail
	} else {
		destination, err := s.payoutRepo.FindDestinationBySeller(ctx, payout.SellerID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payout destination")
		}
		if destination == nil {
			return nil, pkgerrors.New(pkgerrors.CodeDependency, "seller has no payout destination")
		}
		kind = destination.Rail
	}
	rail, ok := s.rails[kind]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("no rail configured for %s", kind))
	}
	return rail, nil
}

func (s *Service) emitCorrection(ctx context.Context, tx *gorm.DB, record *models.CorrectionRecord) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventCorrectionApplied,
		AggregateType: enums.AggregateCorrection,
		AggregateID:   record.ID,
		Version:       1,
		Data: payloads.CorrectionAppliedEvent{
			CorrectionID: record.ID,
			Operation:    record.Operation,
			TargetKind:   record.TargetKind,
			TargetID:     record.TargetID,
			Actor:        record.Actor,
			Reason:       record.Reason,
		},
	})
}

func (s *Service) logApplied(ctx context.Context, record *models.CorrectionRecord) {
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"correction_id": record.ID.String(),
		"operation":     record.Operation,
		"target_id":     record.TargetID.String(),
		"actor":         record.Actor,
	})
	s.logg.Info(logCtx, "correction applied")
}

// ledgerStatusFor maps a payable unit's status to the ledger status its
// source entries should carry.
func ledgerStatusFor(status enums.PendingPayoutStatus) enums.PayoutStatus {
	switch status {
	case enums.PendingPayoutStatusCompleted:
		return enums.PayoutStatusPaid
	case enums.PendingPayoutStatusAwaitingDestination:
		return enums.PayoutStatusPending
	default:
		return enums.PayoutStatusQueued
	}
}

func mustJSON(value any) json.RawMessage {
	raw, err := json.Marshal(value)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return raw
}
