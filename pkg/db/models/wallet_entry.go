package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/threadkart/marketplace-backend/pkg/enums"
)

// WalletEntry is one signed row in a seller's append-only wallet ledger.
// BalanceAfterCents records the materialized balance the atomic increment
// returned, so the ledger can be audited against the balance column.
type WalletEntry struct {
	ID                uuid.UUID             `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID          uuid.UUID             `gorm:"column:seller_id;type:uuid;not null;index"`
	Type              enums.WalletEntryType `gorm:"column:type;type:text;not null"`
	AmountCents       int64                 `gorm:"column:amount_cents;not null"`
	BalanceAfterCents int64                 `gorm:"column:balance_after_cents;not null"`
	Reason            string                `gorm:"column:reason;not null"`
	OrderID           *uuid.UUID            `gorm:"column:order_id;type:uuid;index"`
	ReturnRequestID   *uuid.UUID            `gorm:"column:return_request_id;type:uuid"`
	CreatedAt         time.Time             `gorm:"column:created_at;autoCreateTime"`
}
