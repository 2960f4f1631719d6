package ledger

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

// Repository manages persistence for ledger entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.LedgerEntry) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.LedgerEntry, error)
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.LedgerEntry, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.LedgerEntry, error)
	List(ctx context.Context, query ListEntriesQuery) ([]models.LedgerEntry, *pagination.Cursor, error)
	ListPayableBySeller(ctx context.Context, sellerID uuid.UUID, asOf time.Time) ([]models.LedgerEntry, error)
	ListSellersWithPayable(ctx context.Context, asOf time.Time) ([]uuid.UUID, error)
	UpdatePayoutStatus(ctx context.Context, ids []uuid.UUID, from, to enums.PayoutStatus) (int64, error)
	SetPayoutStatus(ctx context.Context, ids []uuid.UUID, to enums.PayoutStatus) (int64, error)
	UpdateSeller(ctx context.Context, id uuid.UUID, sellerID uuid.UUID) error
}

// ListEntriesQuery configures admin ledger list queries.
type ListEntriesQuery struct {
	SellerID     *uuid.UUID
	PayoutStatus *enums.PayoutStatus
	From         *time.Time
	To           *time.Time
	Pagination   pagination.Params
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, entry *models.LedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func (r *repository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func (r *repository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.LedgerEntry, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var entries []models.LedgerEntry
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&entries).Error
	return entries, err
}

func (r *repository) List(ctx context.Context, query ListEntriesQuery) ([]models.LedgerEntry, *pagination.Cursor, error) {
	limit := pagination.NormalizeLimit(query.Pagination.Limit)

	q := r.db.WithContext(ctx).Model(&models.LedgerEntry{})
	if query.SellerID != nil {
		q = q.Where("seller_id = ?", *query.SellerID)
	}
	if query.PayoutStatus != nil {
		q = q.Where("payout_status = ?", *query.PayoutStatus)
	}
	if query.From != nil {
		q = q.Where("occurred_at >= ?", *query.From)
	}
	if query.To != nil {
		q = q.Where("occurred_at < ?", *query.To)
	}

	cursor, err := pagination.ParseCursor(query.Pagination.Cursor)
	if err != nil {
		return nil, nil, err
	}
	if cursor != nil {
		q = q.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var entries []models.LedgerEntry
	if err := q.Order("created_at DESC").
		Order("id DESC").
		Limit(limit + 1).
		Find(&entries).Error; err != nil {
		return nil, nil, err
	}

	var next *pagination.Cursor
	if len(entries) > limit {
		entries = entries[:limit]
		last := entries[len(entries)-1]
		next = &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return entries, next, nil
}

func (r *repository) ListPayableBySeller(ctx context.Context, sellerID uuid.UUID, asOf time.Time) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("seller_id = ?", sellerID).
		Where("payout_status = ?", enums.PayoutStatusPending).
		Where("artist_payout_cents > 0").
		Where("occurred_at <= ?", asOf).
		Order("occurred_at ASC").
		Order("id ASC").
		Find(&entries).Error
	return entries, err
}

func (r *repository) ListSellersWithPayable(ctx context.Context, asOf time.Time) ([]uuid.UUID, error) {
	var sellerIDs []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Where("payout_status = ?", enums.PayoutStatusPending).
		Where("artist_payout_cents > 0").
		Where("occurred_at <= ?", asOf).
		Distinct("seller_id").
		Pluck("seller_id", &sellerIDs).Error
	return sellerIDs, err
}

// UpdatePayoutStatus moves entries forward only: rows not currently in the
// expected `from` state are left untouched, and the affected count lets the
// caller detect a partial transition.
func (r *repository) UpdatePayoutStatus(ctx context.Context, ids []uuid.UUID, from, to enums.PayoutStatus) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Where("id IN ?", ids).
		Where("payout_status = ?", from).
		Update("payout_status", to)
	return result.RowsAffected, result.Error
}

// SetPayoutStatus writes the status unconditionally. Reserved for audited
// corrections; everything else goes through UpdatePayoutStatus.
func (r *repository) SetPayoutStatus(ctx context.Context, ids []uuid.UUID, to enums.PayoutStatus) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Where("id IN ?", ids).
		Update("payout_status", to)
	return result.RowsAffected, result.Error
}

func (r *repository) UpdateSeller(ctx context.Context, id uuid.UUID, sellerID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Where("id = ?", id).
		Update("seller_id", sellerID).Error
}
