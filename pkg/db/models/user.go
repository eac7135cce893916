package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/threadkart/marketplace-backend/pkg/enums"
)

// User is the minimal identity record this service depends on. Account
// provisioning lives in a separate service; the fields here exist because
// the order and settlement flows read them. WalletBalanceCents is mutated
// only through the wallet ledger's atomic increment.
type User struct {
	ID                 uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email              string          `gorm:"type:text;not null;uniqueIndex"`
	Name               string          `gorm:"column:name;not null"`
	Phone              *string         `gorm:"column:phone"`
	Role               enums.ActorRole `gorm:"column:role;type:text;not null;default:'buyer'"`
	WalletBalanceCents int64           `gorm:"column:wallet_balance_cents;not null;default:0"`
	IsActive           bool            `gorm:"column:is_active;not null;default:true"`
	CreatedAt          time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
