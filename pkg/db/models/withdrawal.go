package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/threadkart/marketplace-backend/pkg/enums"
)

// Withdrawal is one seller payout request. Only admin actors transition it;
// terminal states are paid and rejected. PayoutAccountID is nil when the
// payout provider was unreachable at request time, leaving the record in
// manual processing mode.
type Withdrawal struct {
	ID              uuid.UUID              `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID        uuid.UUID              `gorm:"column:seller_id;type:uuid;not null;index"`
	AmountCents     int64                  `gorm:"column:amount_cents;not null"`
	Method          enums.PayoutMethod     `gorm:"column:method;type:text;not null"`
	Status          enums.WithdrawalStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	PayoutDetails   json.RawMessage        `gorm:"column:payout_details;type:jsonb"`
	PayoutAccountID *string                `gorm:"column:payout_account_id"`
	PayoutID        *string                `gorm:"column:payout_id"`
	ProviderStatus  *string                `gorm:"column:provider_status"`
	RejectReason    *string                `gorm:"column:reject_reason"`
	ApprovedBy      *uuid.UUID             `gorm:"column:approved_by;type:uuid"`
	ApprovedAt      *time.Time             `gorm:"column:approved_at"`
	ProcessedBy     *uuid.UUID             `gorm:"column:processed_by;type:uuid"`
	ProcessedAt     *time.Time             `gorm:"column:processed_at"`
	CreatedAt       time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
