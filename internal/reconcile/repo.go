package reconcile

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/inkwellmarket/inkwell-backend/pkg/db/models"
	"github.com/inkwellmarket/inkwell-backend/pkg/enums"
	"github.com/inkwellmarket/inkwell-backend/pkg/pagination"
)

// Repository persists the audit trail for applied corrections.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, record *models.CorrectionRecord) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.CorrectionRecord, error)
	List(ctx context.Context, query ListCorrectionsQuery) ([]models.CorrectionRecord, *pagination.Cursor, error)
}

// ListCorrectionsQuery configures audit trail list queries.
type ListCorrectionsQuery struct {
	Operation  *enums.CorrectionOperation
	TargetID   *uuid.UUID
	Pagination pagination.Params
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a corrections repository bound to the provided
// database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, record *models.CorrectionRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.CorrectionRecord, error) {
	var record models.CorrectionRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *repository) List(ctx context.Context, query ListCorrectionsQuery) ([]models.CorrectionRecord, *pagination.Cursor, error) {
	limit := pagination.NormalizeLimit(query.Pagination.Limit)

	q := r.db.WithContext(ctx).Model(&models.CorrectionRecord{})
	if query.Operation != nil {
		q = q.Where("operation = ?", *query.Operation)
	}
	if query.TargetID != nil {
		q = q.Where("target_id = ?", *query.TargetID)
	}

	cursor, err := pagination.ParseCursor(query.Pagination.Cursor)
	if err != nil {
		return nil, nil, err
	}
	if cursor != nil {
		q = q.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var records []models.CorrectionRecord
	if err := q.Order("created_at DESC").
		Order("id DESC").
		Limit(limit + 1).
		Find(&records).Error; err != nil {
		return nil, nil, err
	}

	var next *pagination.Cursor
	if len(records) > limit {
		records = records[:limit]
		last := records[len(records)-1]
		next = &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return records, next, nil
}
