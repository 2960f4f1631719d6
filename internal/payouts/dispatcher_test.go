package payouts

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/inkwellmarket/inkwell-backend/internal/ledger"
	"github.com/inkwellmarket/inkwell-backend/internal/rails"
	"github.com/inkwellmarket/inkwell-backend/pkg/db/models"
	"github.com/inkwellmarket/inkwell-backend/pkg/enums"
	"github.com/inkwellmarket/inkwell-backend/pkg/outbox"
)

type fakeRail struct {
	kind         enums.RailKind
	submitResult *rails.SubmitResult
	submitErr    error
	statusResult *rails.StatusResult
	statusErr    error

	submitCalls    []rails.SubmitParams
	statusCalls    []string
	statusBatchIDs []string
}

func (f *fakeRail) Kind() enums.RailKind { return f.kind }

func (f *fakeRail) SubmitPayout(ctx context.Context, params rails.SubmitParams) (*rails.SubmitResult, error) {
	f.submitCalls = append(f.submitCalls, params)
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return f.submitResult, nil
}

func (f *fakeRail) QueryStatus(ctx context.Context, batchID, idempotencyKey string) (*rails.StatusResult, error) {
	f.statusCalls = append(f.statusCalls, idempotencyKey)
	f.statusBatchIDs = append(f.statusBatchIDs, batchID)
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return f.statusResult, nil
}

func newTestDispatcher(t *testing.T, db *gorm.DB, rail *fakeRail) *Dispatcher {
	t.Helper()
	d, err := NewDispatcher(DispatcherParams{
		Transactor:      &gormTransactor{db: db},
		Repo:            NewRepository(db),
		LedgerRepo:      ledger.NewRepository(db),
		Rails:           map[enums.RailKind]rails.Rail{rail.kind: rail},
		Outbox:          outbox.NewService(outbox.NewRepository(db), nil),
		MaxAttempts:     5,
		BackoffBase:     time.Minute,
		BackoffCap:      6 * time.Hour,
		DispatchTimeout: 5 * time.Second,
		RequeryAfter:    10 * time.Minute,
	})
	require.NoError(t, err)
	return d
}

// seedQueuedPayout wires a full queued unit: destination, ledger entries in
// queued state, and the pending payout pointing at them.
func seedQueuedPayout(t *testing.T, db *gorm.DB, rail enums.RailKind, amounts ...int64) *models.PendingPayout {
	t.Helper()
	sellerID := uuid.New()
	seedDestination(t, db, sellerID, rail)

	now := time.Now().UTC()
	entryIDs := make([]uuid.UUID, 0, len(amounts))
	total := int64(0)
	for i, amount := range amounts {
		entry := seedPayableEntry(t, db, sellerID, amount, now.Add(-time.Duration(i+1)*time.Hour))
		require.NoError(t, db.Model(entry).Update("payout_status", enums.PayoutStatusQueued).Error)
		entryIDs = append(entryIDs, entry.ID)
		total += amount
	}

	payout := seedPayout(t, db, sellerID, enums.PendingPayoutStatusQueued, entryIDs...)
	railKind := rail
	require.NoError(t, db.Model(payout).Updates(map[string]any{
		"amount_cents": total,
		"rail":         railKind,
	}).Error)
	payout.AmountCents = total
	payout.Rail = &railKind
	return payout
}

func TestDispatchCompletesPayout(t *testing.T) {
	db := setupPayoutsTestDB(t)
	rail := &fakeRail{
		kind: enums.RailKindStripeConnect,
		submitResult: &rails.SubmitResult{
			BatchID:     "tr_123",
			RawStatus:   "paid",
			ConfirmedAt: time.Now().UTC(),
		},
	}
	d := newTestDispatcher(t, db, rail)
	ctx := context.Background()

	payout := seedQueuedPayout(t, db, rail.kind, 162, 300)

	done, err := d.Dispatch(ctx, payout.ID)
	require.NoError(t, err)
	assert.True(t, done)

	require.Len(t, rail.submitCalls, 1)
	assert.Equal(t, payout.IdempotencyKey, rail.submitCalls[0].IdempotencyKey)
	assert.EqualValues(t, 462, rail.submitCalls[0].AmountCents)
	assert.Equal(t, enums.CurrencyGBP, rail.submitCalls[0].Currency)

	reloaded, err := NewRepository(db).FindPayoutByID(ctx, payout.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PendingPayoutStatusCompleted, reloaded.Status)
	assert.Nil(t, reloaded.LastError)
	require.NotNil(t, reloaded.RailBatchID)
	assert.Equal(t, "tr_123", *reloaded.RailBatchID)

	confirmation, err := NewRepository(db).FindConfirmationByPayout(ctx, payout.ID)
	require.NoError(t, err)
	require.NotNil(t, confirmation)
	assert.Equal(t, "tr_123", confirmation.BatchID)

	var paid int64
	require.NoError(t, db.Model(&models.LedgerEntry{}).
		Where("payout_status = ?", enums.PayoutStatusPaid).
		Count(&paid).Error)
	assert.EqualValues(t, 2, paid)

	var events []models.OutboxEvent
	require.NoError(t, db.Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventPayoutCompleted, events[0].EventType)
}

func TestDispatchTransientFailureSchedulesRetry(t *testing.T) {
	db := setupPayoutsTestDB(t)
	rail := &fakeRail{
		kind:      enums.RailKindStripeConnect,
		submitErr: rails.Transient("stripe unavailable", nil),
	}
	d := newTestDispatcher(t, db, rail)
	ctx := context.Background()

	payout := seedQueuedPayout(t, db, rail.kind, 162)

	done, err := d.Dispatch(ctx, payout.ID)
	require.NoError(t, err)
	assert.False(t, done)

	reloaded, err := NewRepository(db).FindPayoutByID(ctx, payout.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PendingPayoutStatusRetryPending, reloaded.Status)
	assert.Equal(t, 1, reloaded.Attempts)
	require.NotNil(t, reloaded.LastError)
	assert.Contains(t, *reloaded.LastError, "stripe unavailable")
	require.NotNil(t, reloaded.NextAttemptAt)
	assert.WithinDuration(t, time.Now().UTC().Add(time.Minute), *reloaded.NextAttemptAt, 10*time.Second)
}

func TestDispatchTimeoutSchedulesRetry(t *testing.T) {
	db := setupPayoutsTestDB(t)
	rail := &fakeRail{
		kind:      enums.RailKindStripeConnect,
		submitErr: context.DeadlineExceeded,
	}
	d := newTestDispatcher(t, db, rail)
	ctx := context.Background()

	payout := seedQueuedPayout(t, db, rail.kind, 162)

	done, err := d.Dispatch(ctx, payout.ID)
	require.NoError(t, err)
	assert.False(t, done)

	reloaded, err := NewRepository(db).FindPayoutByID(ctx, payout.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PendingPayoutStatusRetryPending, reloaded.Status)
	assert.Equal(t, 1, reloaded.Attempts)
}

func TestDispatchPermanentFailureGoesToManualReview(t *testing.T) {
	db := setupPayoutsTestDB(t)
	rail := &fakeRail{
		kind:      enums.RailKindPayPalPayouts,
		submitErr: rails.Permanent("receiver account closed", nil),
	}
	d := newTestDispatcher(t, db, rail)
	ctx := context.Background()

	payout := seedQueuedPayout(t, db, rail.kind, 162)

	done, err := d.Dispatch(ctx, payout.ID)
	require.NoError(t, err)
	assert.False(t, done)

	reloaded, err := NewRepository(db).FindPayoutByID(ctx, payout.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PendingPayoutStatusManualReview, reloaded.Status)
	require.NotNil(t, reloaded.LastError)
	assert.Contains(t, *reloaded.LastError, "receiver account closed")

	var events []models.OutboxEvent
	require.NoError(t, db.Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventPayoutManualReview, events[0].EventType)
}

func TestDispatchAmbiguousFailureHolds(t *testing.T) {
	db := setupPayoutsTestDB(t)
	rail := &fakeRail{
		kind:      enums.RailKindPayPalPayouts,
		submitErr: rails.Ambiguous("connection reset mid response", nil),
	}
	d := newTestDispatcher(t, db, rail)
	ctx := context.Background()

	payout := seedQueuedPayout(t, db, rail.kind, 162)

	done, err := d.Dispatch(ctx, payout.ID)
	require.NoError(t, err)
	assert.False(t, done)

	// Ambiguous outcomes stay in dispatching for the requery sweep.
	reloaded, err := NewRepository(db).FindPayoutByID(ctx, payout.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PendingPayoutStatusDispatching, reloaded.Status)
	assert.Equal(t, 1, reloaded.Attempts)
	require.NotNil(t, reloaded.LastError)
}

func TestDispatchExhaustedRetriesGoToManualReview(t *testing.T) {
	db := setupPayoutsTestDB(t)
	rail := &fakeRail{
		kind:      enums.RailKindStripeConnect,
		submitErr: rails.Transient("still down", nil),
	}
	d := newTestDispatcher(t, db, rail)
	ctx := context.Background()

	payout := seedQueuedPayout(t, db, rail.kind, 162)
	require.NoError(t, db.Model(payout).Update("attempts", 4).Error)

	done, err := d.Dispatch(ctx, payout.ID)
	require.NoError(t, err)
	assert.False(t, done)

	reloaded, err := NewRepository(db).FindPayoutByID(ctx, payout.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PendingPayoutStatusManualReview, reloaded.Status)
	assert.Equal(t, 5, reloaded.Attempts)
}

func TestDispatchSecondClaimLoses(t *testing.T) {
	db := setupPayoutsTestDB(t)
	rail := &fakeRail{
		kind: enums.RailKindStripeConnect,
		submitResult: &rails.SubmitResult{
			BatchID:     "tr_1",
			ConfirmedAt: time.Now().UTC(),
		},
	}
	d := newTestDispatcher(t, db, rail)
	ctx := context.Background()

	payout := seedQueuedPayout(t, db, rail.kind, 162)

	done, err := d.Dispatch(ctx, payout.ID)
	require.NoError(t, err)
	assert.True(t, done)

	// The unit is completed now, so a second dispatch cannot claim it.
	again, err := d.Dispatch(ctx, payout.ID)
	require.NoError(t, err)
	assert.False(t, again)
	assert.Len(t, rail.submitCalls, 1)
}

func TestDispatchDueProcessesQueue(t *testing.T) {
	db := setupPayoutsTestDB(t)
	rail := &fakeRail{
		kind: enums.RailKindStripeConnect,
		submitResult: &rails.SubmitResult{
			BatchID:     "tr_batch",
			ConfirmedAt: time.Now().UTC(),
		},
	}
	d := newTestDispatcher(t, db, rail)
	ctx := context.Background()

	seedQueuedPayout(t, db, rail.kind, 100)
	seedQueuedPayout(t, db, rail.kind, 200)

	completed, err := d.DispatchDue(ctx, time.Now().UTC(), 10)
	require.NoError(t, err)
	assert.Equal(t, 2, completed)
	assert.Len(t, rail.submitCalls, 2)
}

func TestRequeryResolvesCompleted(t *testing.T) {
	db := setupPayoutsTestDB(t)
	rail := &fakeRail{
		kind: enums.RailKindPayPalPayouts,
		statusResult: &rails.StatusResult{
			Status:      rails.BatchStatusCompleted,
			BatchID:     "BATCH-1",
			RawStatus:   "SUCCESS",
			ConfirmedAt: time.Now().UTC(),
		},
	}
	d := newTestDispatcher(t, db, rail)
	ctx := context.Background()

	payout := seedQueuedPayout(t, db, rail.kind, 162)
	require.NoError(t, db.Model(payout).Updates(map[string]any{
		"status":     enums.PendingPayoutStatusDispatching,
		"updated_at": time.Now().UTC().Add(-time.Hour),
	}).Error)

	resolved, err := d.Requery(ctx, time.Now().UTC(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, resolved)

	require.Len(t, rail.statusCalls, 1)
	assert.Equal(t, payout.IdempotencyKey, rail.statusCalls[0])

	reloaded, err := NewRepository(db).FindPayoutByID(ctx, payout.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PendingPayoutStatusCompleted, reloaded.Status)

	confirmation, err := NewRepository(db).FindConfirmationByPayout(ctx, payout.ID)
	require.NoError(t, err)
	require.NotNil(t, confirmation)
	assert.Equal(t, "BATCH-1", confirmation.BatchID)
}

func TestRequeryNotFoundSchedulesRetry(t *testing.T) {
	db := setupPayoutsTestDB(t)
	rail := &fakeRail{
		kind:         enums.RailKindPayPalPayouts,
		statusResult: &rails.StatusResult{Status: rails.BatchStatusNotFound},
	}
	d := newTestDispatcher(t, db, rail)
	ctx := context.Background()

	payout := seedQueuedPayout(t, db, rail.kind, 162)
	require.NoError(t, db.Model(payout).Updates(map[string]any{
		"status":     enums.PendingPayoutStatusDispatching,
		"updated_at": time.Now().UTC().Add(-time.Hour),
	}).Error)

	resolved, err := d.Requery(ctx, time.Now().UTC(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, resolved)

	reloaded, err := NewRepository(db).FindPayoutByID(ctx, payout.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PendingPayoutStatusRetryPending, reloaded.Status)
	assert.Equal(t, 1, reloaded.Attempts)
}

func TestRequeryLeavesPendingBatches(t *testing.T) {
	db := setupPayoutsTestDB(t)
	rail := &fakeRail{
		kind:         enums.RailKindPayPalPayouts,
		statusResult: &rails.StatusResult{Status: rails.BatchStatusPending, RawStatus: "PROCESSING"},
	}
	d := newTestDispatcher(t, db, rail)
	ctx := context.Background()

	payout := seedQueuedPayout(t, db, rail.kind, 162)
	require.NoError(t, db.Model(payout).Updates(map[string]any{
		"status":     enums.PendingPayoutStatusDispatching,
		"updated_at": time.Now().UTC().Add(-time.Hour),
	}).Error)

	resolved, err := d.Requery(ctx, time.Now().UTC(), 10)
	require.NoError(t, err)
	assert.Zero(t, resolved)

	reloaded, err := NewRepository(db).FindPayoutByID(ctx, payout.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PendingPayoutStatusDispatching, reloaded.Status)
}

func TestRequeryFailedBatchGoesToManualReview(t *testing.T) {
	db := setupPayoutsTestDB(t)
	rail := &fakeRail{
		kind:         enums.RailKindPayPalPayouts,
		statusResult: &rails.StatusResult{Status: rails.BatchStatusFailed, RawStatus: "DENIED"},
	}
	d := newTestDispatcher(t, db, rail)
	ctx := context.Background()

	payout := seedQueuedPayout(t, db, rail.kind, 162)
	require.NoError(t, db.Model(payout).Updates(map[string]any{
		"status":     enums.PendingPayoutStatusDispatching,
		"updated_at": time.Now().UTC().Add(-time.Hour),
	}).Error)

	resolved, err := d.Requery(ctx, time.Now().UTC(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, resolved)

	// A terminal rail verdict must not be retried under the same key.
	reloaded, err := NewRepository(db).FindPayoutByID(ctx, payout.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PendingPayoutStatusManualReview, reloaded.Status)
	assert.Nil(t, reloaded.NextAttemptAt)
	require.NotNil(t, reloaded.LastError)
	assert.Contains(t, *reloaded.LastError, "DENIED")
}

func TestRequeryUnknownLeavesDispatching(t *testing.T) {
	db := setupPayoutsTestDB(t)
	rail := &fakeRail{
		kind:         enums.RailKindPayPalPayouts,
		statusResult: &rails.StatusResult{Status: rails.BatchStatusUnknown},
	}
	d := newTestDispatcher(t, db, rail)
	ctx := context.Background()

	payout := seedQueuedPayout(t, db, rail.kind, 162)
	require.NoError(t, db.Model(payout).Updates(map[string]any{
		"status":     enums.PendingPayoutStatusDispatching,
		"updated_at": time.Now().UTC().Add(-time.Hour),
	}).Error)

	resolved, err := d.Requery(ctx, time.Now().UTC(), 10)
	require.NoError(t, err)
	assert.Zero(t, resolved)

	// Unknown is not not_found. The payout holds its place rather than being
	// resubmitted against a batch the rail cannot rule out.
	reloaded, err := NewRepository(db).FindPayoutByID(ctx, payout.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PendingPayoutStatusDispatching, reloaded.Status)
	assert.Zero(t, reloaded.Attempts)
}

func TestRequeryPassesStoredBatchID(t *testing.T) {
	db := setupPayoutsTestDB(t)
	rail := &fakeRail{
		kind: enums.RailKindPayPalPayouts,
		statusResult: &rails.StatusResult{
			Status:      rails.BatchStatusCompleted,
			BatchID:     "BATCH-7",
			RawStatus:   "SUCCESS",
			ConfirmedAt: time.Now().UTC(),
		},
	}
	d := newTestDispatcher(t, db, rail)
	ctx := context.Background()

	payout := seedQueuedPayout(t, db, rail.kind, 162)
	require.NoError(t, db.Model(payout).Updates(map[string]any{
		"status":        enums.PendingPayoutStatusDispatching,
		"rail_batch_id": "BATCH-7",
		"updated_at":    time.Now().UTC().Add(-time.Hour),
	}).Error)

	resolved, err := d.Requery(ctx, time.Now().UTC(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, resolved)

	require.Len(t, rail.statusBatchIDs, 1)
	assert.Equal(t, "BATCH-7", rail.statusBatchIDs[0])
}

func TestRequerySkipsFreshDispatching(t *testing.T) {
	db := setupPayoutsTestDB(t)
	rail := &fakeRail{
		kind:         enums.RailKindPayPalPayouts,
		statusResult: &rails.StatusResult{Status: rails.BatchStatusCompleted},
	}
	d := newTestDispatcher(t, db, rail)
	ctx := context.Background()

	payout := seedQueuedPayout(t, db, rail.kind, 162)
	require.NoError(t, db.Model(payout).Update("status", enums.PendingPayoutStatusDispatching).Error)

	resolved, err := d.Requery(ctx, time.Now().UTC(), 10)
	require.NoError(t, err)
	assert.Zero(t, resolved)
	assert.Empty(t, rail.statusCalls)
}
