package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/inkwellmarket/inkwell-backend/pkg/enums"
)

// CorrectionRecord is the audit row written for every applied reconciliation
// mutation. The ledger never loses track of whether a change was manual or
// automated: automated flows never write corrections.
type CorrectionRecord struct {
	ID         uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Operation  enums.CorrectionOperation `gorm:"column:operation;type:correction_operation_enum;not null" json:"operation"`
	TargetKind string                    `gorm:"column:target_kind;not null" json:"targetKind"`
	TargetID   uuid.UUID                 `gorm:"column:target_id;type:uuid;not null;index" json:"targetId"`
	Actor      string                    `gorm:"column:actor;not null" json:"actor"`
	OldValue   json.RawMessage           `gorm:"column:old_value;type:jsonb" json:"oldValue,omitempty"`
	NewValue   json.RawMessage           `gorm:"column:new_value;type:jsonb" json:"newValue,omitempty"`
	Reason     string                    `gorm:"column:reason" json:"reason"`
	CreatedAt  time.Time                 `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}
