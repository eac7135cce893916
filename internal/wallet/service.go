package wallet

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/threadkart/marketplace-backend/pkg/db/models"
	"github.com/threadkart/marketplace-backend/pkg/enums"
	pkgerrors "github.com/threadkart/marketplace-backend/pkg/errors"
	"github.com/threadkart/marketplace-backend/pkg/logger"
)

// Service moves money in and out of seller wallets. Every movement writes
// an append-only ledger entry in the same transaction as the balance change.
type Service interface {
	Credit(ctx context.Context, tx *gorm.DB, input MovementInput) (*models.WalletEntry, error)
	Debit(ctx context.Context, tx *gorm.DB, input MovementInput) (*models.WalletEntry, error)
	Balance(ctx context.Context, sellerID uuid.UUID) (int64, error)
	Entries(ctx context.Context, sellerID uuid.UUID, limit int) ([]models.WalletEntry, error)
}

type service struct {
	repo   Repository
	logger *logger.Logger
}

// MovementInput describes a single wallet credit or debit.
type MovementInput struct {
	SellerID        uuid.UUID
	AmountCents     int64
	Reason          string
	OrderID         *uuid.UUID
	ReturnRequestID *uuid.UUID
}

// NewService wires a wallet service with the provided repository.
func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("wallet repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("wallet logger required")
	}
	return &service{repo: repo, logger: logg}, nil
}

func (s *service) Credit(ctx context.Context, tx *gorm.DB, input MovementInput) (*models.WalletEntry, error) {
	return s.apply(ctx, tx, enums.WalletEntryTypeCredit, input)
}

func (s *service) Debit(ctx context.Context, tx *gorm.DB, input MovementInput) (*models.WalletEntry, error) {
	return s.apply(ctx, tx, enums.WalletEntryTypeDebit, input)
}

func (s *service) apply(ctx context.Context, tx *gorm.DB, entryType enums.WalletEntryType, input MovementInput) (*models.WalletEntry, error) {
	if input.SellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	if input.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "wallet movement amount must be positive")
	}
	if input.Reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "wallet movement reason required")
	}

	repo := s.repo.WithTx(tx)

	delta := input.AmountCents
	if entryType == enums.WalletEntryTypeDebit {
		delta = -delta
	}

	balance, err := repo.ApplyDelta(ctx, input.SellerID, delta)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "seller not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "adjusting wallet balance")
	}

	if balance < 0 {
		// Debits may drive a wallet negative (return charges against a
		// seller with no earnings yet). Allowed, but worth surfacing.
		warnCtx := s.logger.WithFields(ctx, map[string]any{
			"seller_id": input.SellerID.String(),
			"balance":   balance,
			"reason":    input.Reason,
		})
		s.logger.Warn(warnCtx, "wallet balance went negative")
	}

	entry := &models.WalletEntry{
		SellerID:          input.SellerID,
		Type:              entryType,
		AmountCents:       input.AmountCents,
		BalanceAfterCents: balance,
		Reason:            input.Reason,
		OrderID:           input.OrderID,
		ReturnRequestID:   input.ReturnRequestID,
	}
	if err := repo.CreateEntry(ctx, entry); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "writing wallet ledger entry")
	}
	return entry, nil
}

func (s *service) Balance(ctx context.Context, sellerID uuid.UUID) (int64, error) {
	if sellerID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	balance, err := s.repo.Balance(ctx, sellerID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, pkgerrors.New(pkgerrors.CodeNotFound, "seller not found")
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reading wallet balance")
	}
	return balance, nil
}

func (s *service) Entries(ctx context.Context, sellerID uuid.UUID, limit int) ([]models.WalletEntry, error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	entries, err := s.repo.ListEntries(ctx, sellerID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing wallet entries")
	}
	return entries, nil
}
