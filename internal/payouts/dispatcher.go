package payouts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/inkwellmarket/inkwell-backend/internal/ledger"
	"github.com/inkwellmarket/inkwell-backend/internal/rails"
	"github.com/inkwellmarket/inkwell-backend/pkg/db/models"
	"github.com/inkwellmarket/inkwell-backend/pkg/enums"
	pkgerrors "github.com/inkwellmarket/inkwell-backend/pkg/errors"
	"github.com/inkwellmarket/inkwell-backend/pkg/logger"
	"github.com/inkwellmarket/inkwell-backend/pkg/metrics"
	"github.com/inkwellmarket/inkwell-backend/pkg/outbox"
	"github.com/inkwellmarket/inkwell-backend/pkg/outbox/payloads"
)

// DispatcherParams groups dependencies for the payout dispatcher.
type DispatcherParams struct {
	Transactor      ledger.Transactor
	Repo            Repository
	LedgerRepo      ledger.Repository
	Rails           map[enums.RailKind]rails.Rail
	Outbox          *outbox.Service
	Metrics         *metrics.PayoutMetrics
	Logger          *logger.Logger
	MaxAttempts     int
	BackoffBase     time.Duration
	BackoffCap      time.Duration
	DispatchTimeout time.Duration
	RequeryAfter    time.Duration
}

// Dispatcher walks queued payouts through the external rails. Each unit moves
// queued -> dispatching -> {completed | retry_pending | manual_review}; the
// claim step is a guarded update so two workers never submit the same unit.
type Dispatcher struct {
	transactor      ledger.Transactor
	repo            Repository
	ledgerRepo      ledger.Repository
	rails           map[enums.RailKind]rails.Rail
	outbox          *outbox.Service
	metrics         *metrics.PayoutMetrics
	logg            *logger.Logger
	maxAttempts     int
	backoffBase     time.Duration
	backoffCap      time.Duration
	dispatchTimeout time.Duration
	requeryAfter    time.Duration
}

// NewDispatcher builds the payout dispatcher.
func NewDispatcher(params DispatcherParams) (*Dispatcher, error) {
	if params.Transactor == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transactor is required")
	}
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payouts repository is required")
	}
	if params.LedgerRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger repository is required")
	}
	if len(params.Rails) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "at least one rail is required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox service is required")
	}
	if params.MaxAttempts <= 0 {
		params.MaxAttempts = 5
	}
	if params.DispatchTimeout <= 0 {
		params.DispatchTimeout = 30 * time.Second
	}
	if params.RequeryAfter <= 0 {
		params.RequeryAfter = 10 * time.Minute
	}
	return &Dispatcher{
		transactor:      params.Transactor,
		repo:            params.Repo,
		ledgerRepo:      params.LedgerRepo,
		rails:           params.Rails,
		outbox:          params.Outbox,
		metrics:         params.Metrics,
		logg:            params.Logger,
		maxAttempts:     params.MaxAttempts,
		backoffBase:     params.BackoffBase,
		backoffCap:      params.BackoffCap,
		dispatchTimeout: params.DispatchTimeout,
		requeryAfter:    params.RequeryAfter,
	}, nil
}

// DispatchDue submits every payout that is queued or past its retry backoff.
// Returns the number of payouts that reached the completed state this run.
func (d *Dispatcher) DispatchDue(ctx context.Context, now time.Time, limit int) (int, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	due, err := d.repo.ListDue(ctx, now, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list due payouts")
	}

	completed := 0
	for i := range due {
		done, err := d.Dispatch(ctx, due[i].ID)
		if err != nil {
			if d.logg != nil {
				d.logg.Error(d.logg.WithPayoutID(ctx, due[i].ID.String()), "dispatch failed", err)
			}
			continue
		}
		if done {
			completed++
		}
	}
	return completed, nil
}

// Dispatch claims one payout and submits it to its rail. Returns true when
// the payout completed. A false claim means another worker got there first.
func (d *Dispatcher) Dispatch(ctx context.Context, payoutID uuid.UUID) (bool, error) {
	claimed, err := d.repo.ClaimForDispatch(ctx, payoutID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "claim payout")
	}
	if !claimed {
		return false, nil
	}

	payout, err := d.repo.FindPayoutByID(ctx, payoutID)
	if err != nil {
		return false, err
	}
	if payout == nil {
		return false, pkgerrors.New(pkgerrors.CodeNotFound, "payout not found after claim")
	}

	rail, destination, err := d.railFor(ctx, payout)
	if err != nil {
		// No usable rail or destination is not retryable.
		return false, d.failPermanent(ctx, payout, err)
	}

	submitCtx, cancel := context.WithTimeout(ctx, d.dispatchTimeout)
	defer cancel()

	result, submitErr := rail.SubmitPayout(submitCtx, rails.SubmitParams{
		PayoutID:       payout.ID,
		SellerID:       payout.SellerID,
		AccountRef:     destination.AccountRef,
		AmountCents:    payout.AmountCents,
		Currency:       enums.CurrencyGBP,
		IdempotencyKey: payout.IdempotencyKey,
	})
	if submitErr != nil {
		return false, d.handleSubmitFailure(ctx, payout, rail.Kind(), submitErr)
	}

	// Record the rail's batch id before finalizing. A crash between here and
	// the completion write leaves the requery sweep a handle it can look the
	// batch up by, which PayPal requires.
	if result.BatchID != "" {
		batchID := result.BatchID
		payout.RailBatchID = &batchID
		if err := d.repo.SavePayout(ctx, payout); err != nil {
			if d.logg != nil {
				d.logg.Warn(d.logg.WithPayoutID(ctx, payout.ID.String()), "failed to record rail batch id")
			}
		}
	}

	if err := d.finalize(ctx, payout, rail.Kind(), result.BatchID, result.RawStatus, result.ConfirmedAt); err != nil {
		return false, err
	}
	d.incDispatch(rail.Kind(), "completed")
	return true, nil
}

// Requery resolves payouts stuck in dispatching, typically after an ambiguous
// submit failure or a worker crash, by asking the rail what it knows about
// the submission. The stored batch id and the idempotency key are both passed
// so each rail can use whichever lookup it supports.
func (d *Dispatcher) Requery(ctx context.Context, now time.Time, limit int) (int, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	stuck, err := d.repo.ListStuckDispatching(ctx, now.Add(-d.requeryAfter), limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list stuck payouts")
	}

	resolved := 0
	for i := range stuck {
		payout := &stuck[i]
		rail, _, err := d.railFor(ctx, payout)
		if err != nil {
			if permErr := d.failPermanent(ctx, payout, err); permErr != nil {
				return resolved, permErr
			}
			resolved++
			continue
		}

		queryCtx, cancel := context.WithTimeout(ctx, d.dispatchTimeout)
		status, queryErr := rail.QueryStatus(queryCtx, storedBatchID(payout), payout.IdempotencyKey)
		cancel()
		if queryErr != nil {
			d.incRequery(rail.Kind(), "error")
			if d.logg != nil {
				d.logg.Error(d.logg.WithPayoutID(ctx, payout.ID.String()), "requery failed", queryErr)
			}
			continue
		}

		switch status.Status {
		case rails.BatchStatusCompleted:
			if err := d.finalize(ctx, payout, rail.Kind(), status.BatchID, status.RawStatus, status.ConfirmedAt); err != nil {
				return resolved, err
			}
			d.incRequery(rail.Kind(), "completed")
			resolved++
		case rails.BatchStatusFailed:
			// The rail's verdict is terminal. Resubmitting under the same
			// idempotency key cannot succeed, so park it for an operator.
			msg := fmt.Sprintf("rail reported batch failed: %s", status.RawStatus)
			payout.LastError = &msg
			if err := d.moveToManualReview(ctx, payout, rail.Kind()); err != nil {
				return resolved, err
			}
			d.incRequery(rail.Kind(), "failed")
			resolved++
		case rails.BatchStatusNotFound:
			// The rail confirmed the submit never landed, so a fresh attempt
			// is safe.
			if err := d.scheduleRetry(ctx, payout, rail.Kind(), "rail has no record of submission"); err != nil {
				return resolved, err
			}
			d.incRequery(rail.Kind(), "not_found")
			resolved++
		case rails.BatchStatusUnknown:
			// The rail cannot answer for this submission. Hold dispatching;
			// resubmitting here would be the blind retry requery exists to
			// prevent.
			d.incRequery(rail.Kind(), "unknown")
		default:
			// Still in flight at the rail. Leave it for the next sweep.
			d.incRequery(rail.Kind(), "pending")
		}
	}
	return resolved, nil
}

func (d *Dispatcher) railFor(ctx context.Context, payout *models.PendingPayout) (rails.Rail, *models.PayoutDestination, error) {
	destination, err := d.repo.FindDestinationBySeller(ctx, payout.SellerID)
	if err != nil {
		return nil, nil, err
	}
	if destination == nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeDependency, "seller has no payout destination")
	}
	kind := destination.Rail
	if payout.Rail != nil {
		kind = *payout.Rail
	}
	rail, ok := d.rails[kind]
	if !ok {
		return nil, nil, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("no rail configured for %s", kind))
	}
	return rail, destination, nil
}

func (d *Dispatcher) handleSubmitFailure(ctx context.Context, payout *models.PendingPayout, kind enums.RailKind, submitErr error) error {
	switch rails.Classify(submitErr) {
	case rails.ClassPermanent:
		d.incDispatch(kind, "permanent")
		return d.failPermanent(ctx, payout, submitErr)
	case rails.ClassAmbiguous:
		// Money may have moved. Record the error but hold the dispatching
		// state until a requery settles it.
		d.incDispatch(kind, "ambiguous")
		msg := truncateError(submitErr)
		payout.Attempts++
		payout.LastError = &msg
		if err := d.repo.SavePayout(ctx, payout); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record ambiguous failure")
		}
		return nil
	default:
		d.incDispatch(kind, "transient")
		return d.scheduleRetry(ctx, payout, kind, truncateError(submitErr))
	}
}

// scheduleRetry bumps the attempt counter and either backs the payout off or
// parks it for manual review once attempts are exhausted.
func (d *Dispatcher) scheduleRetry(ctx context.Context, payout *models.PendingPayout, kind enums.RailKind, reason string) error {
	payout.Attempts++
	payout.LastError = &reason

	if payout.Attempts >= d.maxAttempts {
		return d.moveToManualReview(ctx, payout, kind)
	}

	next := time.Now().UTC().Add(NextBackoff(d.backoffBase, d.backoffCap, payout.Attempts))
	payout.Status = enums.PendingPayoutStatusRetryPending
	payout.NextAttemptAt = &next
	if err := d.repo.SavePayout(ctx, payout); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "schedule payout retry")
	}

	if d.logg != nil {
		logCtx := d.logg.WithFields(ctx, map[string]any{
			"payout_id": payout.ID.String(),
			"attempts":  payout.Attempts,
			"next_at":   next.Format(time.RFC3339),
		})
		d.logg.Warn(logCtx, "payout retry scheduled")
	}
	return nil
}

func (d *Dispatcher) failPermanent(ctx context.Context, payout *models.PendingPayout, cause error) error {
	msg := truncateError(cause)
	payout.Attempts++
	payout.LastError = &msg
	kind := enums.RailKind("")
	if payout.Rail != nil {
		kind = *payout.Rail
	}
	return d.moveToManualReview(ctx, payout, kind)
}

func (d *Dispatcher) moveToManualReview(ctx context.Context, payout *models.PendingPayout, kind enums.RailKind) error {
	payout.Status = enums.PendingPayoutStatusManualReview
	payout.NextAttemptAt = nil

	lastError := ""
	if payout.LastError != nil {
		lastError = *payout.LastError
	}
	txErr := d.transactor.WithTx(ctx, func(tx *gorm.DB) error {
		if err := d.repo.WithTx(tx).SavePayout(ctx, payout); err != nil {
			return err
		}
		return d.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPayoutManualReview,
			AggregateType: enums.AggregatePendingPayout,
			AggregateID:   payout.ID,
			Version:       1,
			Data: payloads.PayoutManualReviewEvent{
				PayoutID:  payout.ID,
				SellerID:  payout.SellerID,
				Rail:      kind,
				Attempts:  payout.Attempts,
				LastError: lastError,
			},
		})
	})
	if txErr != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, txErr, "move payout to manual review")
	}

	if d.logg != nil {
		logCtx := d.logg.WithFields(ctx, map[string]any{
			"payout_id": payout.ID.String(),
			"attempts":  payout.Attempts,
		})
		d.logg.Warn(logCtx, "payout moved to manual review")
	}
	return nil
}

// finalize records the rail confirmation, completes the payout, and marks the
// source ledger entries paid, all in one transaction.
func (d *Dispatcher) finalize(ctx context.Context, payout *models.PendingPayout, kind enums.RailKind, batchID, rawStatus string, confirmedAt time.Time) error {
	if confirmedAt.IsZero() {
		confirmedAt = time.Now().UTC()
	}
	txErr := d.transactor.WithTx(ctx, func(tx *gorm.DB) error {
		repo := d.repo.WithTx(tx)

		if existing, err := repo.FindConfirmationByPayout(ctx, payout.ID); err != nil {
			return err
		} else if existing == nil {
			confirmation := &models.RailConfirmation{
				ID:              uuid.New(),
				PendingPayoutID: payout.ID,
				Rail:            kind,
				BatchID:         batchID,
				Status:          string(rails.BatchStatusCompleted),
				RawStatus:       rawStatus,
				ConfirmedAt:     confirmedAt,
			}
			if err := repo.CreateConfirmation(ctx, confirmation); err != nil {
				return err
			}
		}

		payout.Status = enums.PendingPayoutStatusCompleted
		payout.NextAttemptAt = nil
		payout.LastError = nil
		if batchID != "" {
			confirmed := batchID
			payout.RailBatchID = &confirmed
		}
		if err := repo.SavePayout(ctx, payout); err != nil {
			return err
		}

		entryIDs := []uuid.UUID(payout.SourceEntryIDs)
		if _, err := d.ledgerRepo.WithTx(tx).UpdatePayoutStatus(ctx, entryIDs, enums.PayoutStatusQueued, enums.PayoutStatusPaid); err != nil {
			return err
		}

		return d.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPayoutCompleted,
			AggregateType: enums.AggregatePendingPayout,
			AggregateID:   payout.ID,
			Version:       1,
			Data: payloads.PayoutCompletedEvent{
				PayoutID:    payout.ID,
				SellerID:    payout.SellerID,
				AmountCents: payout.AmountCents,
				Rail:        kind,
				BatchID:     batchID,
				ConfirmedAt: confirmedAt,
			},
		})
	})
	if txErr != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, txErr, "finalize payout")
	}

	if d.logg != nil {
		logCtx := d.logg.WithFields(ctx, map[string]any{
			"payout_id": payout.ID.String(),
			"batch_id":  batchID,
			"amount":    payout.AmountCents,
		})
		d.logg.Info(logCtx, "payout completed")
	}
	return nil
}

func (d *Dispatcher) incDispatch(kind enums.RailKind, outcome string) {
	if d.metrics != nil {
		d.metrics.IncDispatch(string(kind), outcome)
	}
}

func (d *Dispatcher) incRequery(kind enums.RailKind, result string) {
	if d.metrics != nil {
		d.metrics.IncRequery(string(kind), result)
	}
}

func storedBatchID(payout *models.PendingPayout) string {
	if payout.RailBatchID == nil {
		return ""
	}
	return *payout.RailBatchID
}

func truncateError(err error) string {
	msg := err.Error()
	if len(msg) > 512 {
		msg = msg[:512]
	}
	return msg
}
