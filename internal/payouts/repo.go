package payouts

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/inkwellmarket/inkwell-backend/pkg/db/models"
	"github.com/inkwellmarket/inkwell-backend/pkg/enums"
	"github.com/inkwellmarket/inkwell-backend/pkg/pagination"
)

// Repository manages persistence for payable units, destinations and rail
// confirmations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreatePayout(ctx context.Context, payout *models.PendingPayout) error
	SavePayout(ctx context.Context, payout *models.PendingPayout) error
	FindPayoutByID(ctx context.Context, id uuid.UUID) (*models.PendingPayout, error)
	FindPayoutByKey(ctx context.Context, idempotencyKey string) (*models.PendingPayout, error)
	FindOpenBySeller(ctx context.Context, sellerID uuid.UUID) (*models.PendingPayout, error)
	ListActiveBySeller(ctx context.Context, sellerID uuid.UUID) ([]models.PendingPayout, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]models.PendingPayout, error)
	ListStuckDispatching(ctx context.Context, olderThan time.Time, limit int) ([]models.PendingPayout, error)
	ListPayouts(ctx context.Context, query ListPayoutsQuery) ([]models.PendingPayout, *pagination.Cursor, error)
	ClaimForDispatch(ctx context.Context, id uuid.UUID) (bool, error)

	FindDestinationBySeller(ctx context.Context, sellerID uuid.UUID) (*models.PayoutDestination, error)
	UpsertDestination(ctx context.Context, destination *models.PayoutDestination) error

	CreateConfirmation(ctx context.Context, confirmation *models.RailConfirmation) error
	FindConfirmationByPayout(ctx context.Context, payoutID uuid.UUID) (*models.RailConfirmation, error)
}

// ListPayoutsQuery configures admin payout list queries.
type ListPayoutsQuery struct {
	SellerID   *uuid.UUID
	Status     *enums.PendingPayoutStatus
	Pagination pagination.Params
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a payouts repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreatePayout(ctx context.Context, payout *models.PendingPayout) error {
	return r.db.WithContext(ctx).Create(payout).Error
}

func (r *repository) SavePayout(ctx context.Context, payout *models.PendingPayout) error {
	return r.db.WithContext(ctx).Save(payout).Error
}

func (r *repository) FindPayoutByID(ctx context.Context, id uuid.UUID) (*models.PendingPayout, error) {
	var payout models.PendingPayout
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&payout).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payout, nil
}

func (r *repository) FindPayoutByKey(ctx context.Context, idempotencyKey string) (*models.PendingPayout, error) {
	var payout models.PendingPayout
	err := r.db.WithContext(ctx).Where("idempotency_key = ?", idempotencyKey).First(&payout).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payout, nil
}

func (r *repository) FindOpenBySeller(ctx context.Context, sellerID uuid.UUID) (*models.PendingPayout, error) {
	var payout models.PendingPayout
	err := r.db.WithContext(ctx).
		Where("seller_id = ?", sellerID).
		Where("status = ?", enums.PendingPayoutStatusAwaitingDestination).
		Order("created_at ASC").
		First(&payout).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payout, nil
}

func (r *repository) ListActiveBySeller(ctx context.Context, sellerID uuid.UUID) ([]models.PendingPayout, error) {
	var payouts []models.PendingPayout
	err := r.db.WithContext(ctx).
		Where("seller_id = ?", sellerID).
		Where("status <> ?", enums.PendingPayoutStatusCompleted).
		Find(&payouts).Error
	return payouts, err
}

func (r *repository) ListDue(ctx context.Context, now time.Time, limit int) ([]models.PendingPayout, error) {
	if limit <= 0 {
		limit = 100
	}
	var payouts []models.PendingPayout
	err := r.db.WithContext(ctx).
		Where("status = ? OR (status = ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?))",
			enums.PendingPayoutStatusQueued, enums.PendingPayoutStatusRetryPending, now).
		Order("created_at ASC").
		Limit(limit).
		Find(&payouts).Error
	return payouts, err
}

func (r *repository) ListStuckDispatching(ctx context.Context, olderThan time.Time, limit int) ([]models.PendingPayout, error) {
	if limit <= 0 {
		limit = 100
	}
	var payouts []models.PendingPayout
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.PendingPayoutStatusDispatching).
		Where("updated_at <= ?", olderThan).
		Order("updated_at ASC").
		Limit(limit).
		Find(&payouts).Error
	return payouts, err
}

func (r *repository) ListPayouts(ctx context.Context, query ListPayoutsQuery) ([]models.PendingPayout, *pagination.Cursor, error) {
	limit := pagination.NormalizeLimit(query.Pagination.Limit)

	q := r.db.WithContext(ctx).Model(&models.PendingPayout{})
	if query.SellerID != nil {
		q = q.Where("seller_id = ?", *query.SellerID)
	}
	if query.Status != nil {
		q = q.Where("status = ?", *query.Status)
	}

	cursor, err := pagination.ParseCursor(query.Pagination.Cursor)
	if err != nil {
		return nil, nil, err
	}
	if cursor != nil {
		q = q.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var payouts []models.PendingPayout
	if err := q.Order("created_at DESC").
		Order("id DESC").
		Limit(limit + 1).
		Find(&payouts).Error; err != nil {
		return nil, nil, err
	}

	var next *pagination.Cursor
	if len(payouts) > limit {
		payouts = payouts[:limit]
		last := payouts[len(payouts)-1]
		next = &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return payouts, next, nil
}

// ClaimForDispatch performs the guarded queued/retry_pending to dispatching
// transition. The row count decides the winner when two cycles overlap; the
// loser sees false and walks away.
func (r *repository) ClaimForDispatch(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.PendingPayout{}).
		Where("id = ?", id).
		Where("status IN ?", []enums.PendingPayoutStatus{
			enums.PendingPayoutStatusQueued,
			enums.PendingPayoutStatusRetryPending,
		}).
		Updates(map[string]any{
			"status":          enums.PendingPayoutStatusDispatching,
			"next_attempt_at": nil,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) FindDestinationBySeller(ctx context.Context, sellerID uuid.UUID) (*models.PayoutDestination, error) {
	var destination models.PayoutDestination
	err := r.db.WithContext(ctx).Where("seller_id = ?", sellerID).First(&destination).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &destination, nil
}

func (r *repository) UpsertDestination(ctx context.Context, destination *models.PayoutDestination) error {
	existing, err := r.FindDestinationBySeller(ctx, destination.SellerID)
	if err != nil {
		return err
	}
	if existing == nil {
		if destination.ID == uuid.Nil {
			destination.ID = uuid.New()
		}
		return r.db.WithContext(ctx).Create(destination).Error
	}
	existing.Rail = destination.Rail
	existing.AccountRef = destination.AccountRef
	*destination = *existing
	return r.db.WithContext(ctx).Save(existing).Error
}

func (r *repository) CreateConfirmation(ctx context.Context, confirmation *models.RailConfirmation) error {
	return r.db.WithContext(ctx).Create(confirmation).Error
}

func (r *repository) FindConfirmationByPayout(ctx context.Context, payoutID uuid.UUID) (*models.RailConfirmation, error) {
	var confirmation models.RailConfirmation
	err := r.db.WithContext(ctx).Where("pending_payout_id = ?", payoutID).First(&confirmation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &confirmation, nil
}
