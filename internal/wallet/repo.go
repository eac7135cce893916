package wallet

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/threadkart/marketplace-backend/pkg/db/models"
)

// Repository manages persistence for wallet balances and ledger entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	// ApplyDelta atomically adjusts a seller's balance and returns the
	// resulting balance. Returns gorm.ErrRecordNotFound when the seller
	// does not exist.
	ApplyDelta(ctx context.Context, sellerID uuid.UUID, deltaCents int64) (int64, error)
	CreateEntry(ctx context.Context, entry *models.WalletEntry) error
	Balance(ctx context.Context, sellerID uuid.UUID) (int64, error)
	ListEntries(ctx context.Context, sellerID uuid.UUID, limit int) ([]models.WalletEntry, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a wallet repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) ApplyDelta(ctx context.Context, sellerID uuid.UUID, deltaCents int64) (int64, error) {
	// Single-statement increment; never read-modify-write the balance.
	var balances []int64
	err := r.db.WithContext(ctx).Raw(
		`UPDATE users
		 SET wallet_balance_cents = wallet_balance_cents + ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?
		 RETURNING wallet_balance_cents`,
		deltaCents, sellerID,
	).Scan(&balances).Error
	if err != nil {
		return 0, err
	}
	if len(balances) == 0 {
		return 0, gorm.ErrRecordNotFound
	}
	return balances[0], nil
}

func (r *repository) CreateEntry(ctx context.Context, entry *models.WalletEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) Balance(ctx context.Context, sellerID uuid.UUID) (int64, error) {
	var user models.User
	if err := r.db.WithContext(ctx).
		Select("wallet_balance_cents").
		First(&user, "id = ?", sellerID).Error; err != nil {
		return 0, err
	}
	return user.WalletBalanceCents, nil
}

func (r *repository) ListEntries(ctx context.Context, sellerID uuid.UUID, limit int) ([]models.WalletEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var entries []models.WalletEntry
	if err := r.db.WithContext(ctx).
		Where("seller_id = ?", sellerID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
