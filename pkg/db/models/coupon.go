package models

import (
	"time"

	"github.com/google/uuid"
)

// Coupon is a flat-discount code with a usage cap.
type Coupon struct {
	ID            uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Code          string    `gorm:"column:code;not null;uniqueIndex"`
	DiscountCents int       `gorm:"column:discount_cents;not null"`
	UsageLimit    int       `gorm:"column:usage_limit;not null;default:1"`
	UsedCount     int       `gorm:"column:used_count;not null;default:0"`
	ExpiresAt     *time.Time `gorm:"column:expires_at"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// CouponRedemption marks a coupon as used by one buyer. The unique index on
// (coupon_id, buyer_id) is what makes redemption once-per-buyer under
// concurrent checkouts.
type CouponRedemption struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	CouponID  uuid.UUID `gorm:"column:coupon_id;type:uuid;not null;uniqueIndex:idx_coupon_buyer"`
	BuyerID   uuid.UUID `gorm:"column:buyer_id;type:uuid;not null;uniqueIndex:idx_coupon_buyer"`
	OrderID   *uuid.UUID `gorm:"column:order_id;type:uuid"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
