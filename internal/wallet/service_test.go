package wallet

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/threadkart/marketplace-backend/pkg/db/models"
	"github.com/threadkart/marketplace-backend/pkg/enums"
	"github.com/threadkart/marketplace-backend/pkg/logger"
)

type fakeRepository struct {
	applyFn  func(ctx context.Context, sellerID uuid.UUID, deltaCents int64) (int64, error)
	createFn func(ctx context.Context, entry *models.WalletEntry) error
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) ApplyDelta(ctx context.Context, sellerID uuid.UUID, deltaCents int64) (int64, error) {
	if f.applyFn != nil {
		return f.applyFn(ctx, sellerID, deltaCents)
	}
	return deltaCents, nil
}

func (f *fakeRepository) CreateEntry(ctx context.Context, entry *models.WalletEntry) error {
	if f.createFn != nil {
		return f.createFn(ctx, entry)
	}
	return nil
}

func (f *fakeRepository) Balance(ctx context.Context, sellerID uuid.UUID) (int64, error) {
	return 0, nil
}

func (f *fakeRepository) ListEntries(ctx context.Context, sellerID uuid.UUID, limit int) ([]models.WalletEntry, error) {
	return nil, nil
}

func newTestService(t *testing.T, repo Repository) Service {
	t.Helper()
	svc, err := NewService(repo, logger.New(logger.Options{ServiceName: "wallet-test"}))
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return svc
}

func TestService_CreditWritesLedgerEntry(t *testing.T) {
	sellerID := uuid.New()
	orderID := uuid.New()

	repo := &fakeRepository{}
	var gotDelta int64
	repo.applyFn = func(ctx context.Context, id uuid.UUID, delta int64) (int64, error) {
		if id != sellerID {
			t.Fatalf("unexpected seller id %s", id)
		}
		gotDelta = delta
		return 93000, nil
	}
	var created *models.WalletEntry
	repo.createFn = func(ctx context.Context, entry *models.WalletEntry) error {
		created = entry
		return nil
	}

	svc := newTestService(t, repo)
	entry, err := svc.Credit(context.Background(), nil, MovementInput{
		SellerID:    sellerID,
		AmountCents: 93000,
		Reason:      "order delivered",
		OrderID:     &orderID,
	})
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if gotDelta != 93000 {
		t.Fatalf("delta = %d, want 93000", gotDelta)
	}
	if created == nil || created != entry {
		t.Fatal("ledger entry not persisted")
	}
	if entry.Type != enums.WalletEntryTypeCredit {
		t.Fatalf("entry type = %s", entry.Type)
	}
	if entry.BalanceAfterCents != 93000 {
		t.Fatalf("balance after = %d", entry.BalanceAfterCents)
	}
}

func TestService_DebitNegatesDeltaAndAllowsNegativeBalance(t *testing.T) {
	repo := &fakeRepository{}
	var gotDelta int64
	repo.applyFn = func(ctx context.Context, id uuid.UUID, delta int64) (int64, error) {
		gotDelta = delta
		return -500, nil
	}

	svc := newTestService(t, repo)
	entry, err := svc.Debit(context.Background(), nil, MovementInput{
		SellerID:    uuid.New(),
		AmountCents: 1500,
		Reason:      "return charge",
	})
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if gotDelta != -1500 {
		t.Fatalf("delta = %d, want -1500", gotDelta)
	}
	if entry.BalanceAfterCents != -500 {
		t.Fatalf("balance after = %d, want -500", entry.BalanceAfterCents)
	}
}

func TestService_MovementValidation(t *testing.T) {
	svc := newTestService(t, &fakeRepository{})

	if _, err := svc.Credit(context.Background(), nil, MovementInput{AmountCents: 100, Reason: "x"}); err == nil {
		t.Fatal("expected error for missing seller id")
	}
	if _, err := svc.Credit(context.Background(), nil, MovementInput{SellerID: uuid.New(), AmountCents: 0, Reason: "x"}); err == nil {
		t.Fatal("expected error for zero amount")
	}
	if _, err := svc.Debit(context.Background(), nil, MovementInput{SellerID: uuid.New(), AmountCents: -5, Reason: "x"}); err == nil {
		t.Fatal("expected error for negative amount")
	}
	if _, err := svc.Debit(context.Background(), nil, MovementInput{SellerID: uuid.New(), AmountCents: 100}); err == nil {
		t.Fatal("expected error for missing reason")
	}
}

func TestService_CreditUnknownSeller(t *testing.T) {
	repo := &fakeRepository{}
	repo.applyFn = func(ctx context.Context, id uuid.UUID, delta int64) (int64, error) {
		return 0, gorm.ErrRecordNotFound
	}
	svc := newTestService(t, repo)
	if _, err := svc.Credit(context.Background(), nil, MovementInput{
		SellerID:    uuid.New(),
		AmountCents: 100,
		Reason:      "order delivered",
	}); err == nil {
		t.Fatal("expected not-found error")
	}
}

func TestService_EntryWriteFailureSurfaces(t *testing.T) {
	repo := &fakeRepository{}
	repo.createFn = func(ctx context.Context, entry *models.WalletEntry) error {
		return errors.New("insert failed")
	}
	svc := newTestService(t, repo)
	if _, err := svc.Credit(context.Background(), nil, MovementInput{
		SellerID:    uuid.New(),
		AmountCents: 100,
		Reason:      "order delivered",
	}); err == nil {
		t.Fatal("expected error when ledger write fails")
	}
}
