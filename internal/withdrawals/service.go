package withdrawals

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/threadkart/marketplace-backend/internal/wallet"
	"github.com/threadkart/marketplace-backend/pkg/db/models"
	"github.com/threadkart/marketplace-backend/pkg/enums"
	pkgerrors "github.com/threadkart/marketplace-backend/pkg/errors"
	"github.com/threadkart/marketplace-backend/pkg/logger"
	"github.com/threadkart/marketplace-backend/pkg/outbox"
	"github.com/threadkart/marketplace-backend/pkg/pagination"
	"github.com/threadkart/marketplace-backend/pkg/paygate"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type walletLedger interface {
	Balance(ctx context.Context, sellerID uuid.UUID) (int64, error)
	Debit(ctx context.Context, tx *gorm.DB, input wallet.MovementInput) (*models.WalletEntry, error)
}

// payoutGateway is the slice of the paygate client used to move money out.
type payoutGateway interface {
	PayoutsEnabled() bool
	CreateFundAccount(ctx context.Context, params paygate.FundAccountParams) (*paygate.FundAccount, error)
	CreatePayout(ctx context.Context, params paygate.PayoutParams) (*paygate.Payout, error)
	FetchPayout(ctx context.Context, payoutID string) (*paygate.Payout, error)
}

// Actor identifies who is invoking a withdrawal operation.
type Actor struct {
	UserID uuid.UUID
	Role   enums.ActorRole
}

// RequestInput is a seller's payout request. Destination carries the
// method-specific account details and is stored verbatim for audit.
type RequestInput struct {
	SellerID    uuid.UUID
	AmountCents int64
	Method      enums.PayoutMethod
	Destination json.RawMessage
}

// payoutDestination is the subset of the stored destination needed to
// register a fund account with the payout provider.
type payoutDestination struct {
	AccountName   string `json:"account_name"`
	AccountNumber string `json:"account_number"`
	IFSC          string `json:"ifsc"`
	VPA           string `json:"vpa"`
	Email         string `json:"email"`
}

type withdrawalEvent struct {
	WithdrawalID uuid.UUID              `json:"withdrawal_id"`
	SellerID     uuid.UUID              `json:"seller_id"`
	AmountCents  int64                  `json:"amount_cents"`
	Status       enums.WithdrawalStatus `json:"status"`
}

// Service owns the withdrawal state machine. Sellers request, admins
// decide and process. When the payout provider is unreachable or not
// configured, records proceed in manual processing mode without provider
// identifiers.
type Service interface {
	Request(ctx context.Context, input RequestInput) (*models.Withdrawal, error)
	AvailableBalance(ctx context.Context, sellerID uuid.UUID) (int64, error)
	ListForSeller(ctx context.Context, sellerID uuid.UUID, params pagination.Params) ([]models.Withdrawal, error)
	ListForAdmin(ctx context.Context, status *enums.WithdrawalStatus, params pagination.Params) ([]models.Withdrawal, error)
	Get(ctx context.Context, id uuid.UUID, actor Actor) (*models.Withdrawal, error)
	Approve(ctx context.Context, id uuid.UUID, actor Actor) (*models.Withdrawal, error)
	Reject(ctx context.Context, id uuid.UUID, reason string, actor Actor) (*models.Withdrawal, error)
	Process(ctx context.Context, id uuid.UUID, actor Actor) (*models.Withdrawal, error)
	RefreshPayoutStatus(ctx context.Context, id uuid.UUID, actor Actor) (*models.Withdrawal, error)
}

type Deps struct {
	Repo   Repository
	Tx     txRunner
	Outbox outboxPublisher
	Wallet walletLedger
	Payout payoutGateway
	Logger *logger.Logger
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	wallet walletLedger
	payout payoutGateway
	logger *logger.Logger
}

func NewService(deps Deps) (Service, error) {
	if deps.Repo == nil {
		return nil, fmt.Errorf("withdrawals service requires a repository")
	}
	if deps.Tx == nil {
		return nil, fmt.Errorf("withdrawals service requires a transaction runner")
	}
	if deps.Outbox == nil {
		return nil, fmt.Errorf("withdrawals service requires an outbox publisher")
	}
	if deps.Wallet == nil {
		return nil, fmt.Errorf("withdrawals service requires a wallet ledger")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("withdrawals service requires a logger")
	}
	return &service{
		repo:   deps.Repo,
		tx:     deps.Tx,
		outbox: deps.Outbox,
		wallet: deps.Wallet,
		payout: deps.Payout,
		logger: deps.Logger,
	}, nil
}

// AvailableBalance is the wallet balance minus withdrawals still holding
// funds (pending through processed).
func (s *service) AvailableBalance(ctx context.Context, sellerID uuid.UUID) (int64, error) {
	balance, err := s.wallet.Balance(ctx, sellerID)
	if err != nil {
		return 0, err
	}
	held, err := s.repo.SumOpenBySeller(ctx, sellerID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "summing open withdrawals")
	}
	return balance - held, nil
}

func (s *service) Request(ctx context.Context, input RequestInput) (*models.Withdrawal, error) {
	if input.SellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller is required")
	}
	if input.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "withdrawal amount must be positive")
	}
	if !input.Method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payout method")
	}

	available, err := s.AvailableBalance(ctx, input.SellerID)
	if err != nil {
		return nil, err
	}
	if input.AmountCents > available {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientBalance,
			fmt.Sprintf("requested %d exceeds available balance %d", input.AmountCents, available))
	}

	withdrawal := &models.Withdrawal{
		SellerID:      input.SellerID,
		AmountCents:   input.AmountCents,
		Method:        input.Method,
		Status:        enums.WithdrawalStatusPending,
		PayoutDetails: input.Destination,
	}

	// Fund-account registration is best effort. Without it the record
	// stays in manual processing mode.
	if accountID := s.registerFundAccount(ctx, input); accountID != "" {
		withdrawal.PayoutAccountID = &accountID
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, withdrawal); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating withdrawal")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventWithdrawalRequested,
			AggregateType: enums.AggregateWithdrawal,
			AggregateID:   withdrawal.ID,
			Actor:         &outbox.ActorRef{UserID: input.SellerID, Role: enums.ActorRoleSeller},
			Data: withdrawalEvent{
				WithdrawalID: withdrawal.ID,
				SellerID:     withdrawal.SellerID,
				AmountCents:  withdrawal.AmountCents,
				Status:       withdrawal.Status,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return withdrawal, nil
}

func (s *service) registerFundAccount(ctx context.Context, input RequestInput) string {
	if s.payout == nil || !s.payout.PayoutsEnabled() {
		return ""
	}
	var dest payoutDestination
	if len(input.Destination) > 0 {
		if err := json.Unmarshal(input.Destination, &dest); err != nil {
			s.logger.Warn(s.logger.WithUserID(ctx, input.SellerID.String()), "unparseable payout destination")
			return ""
		}
	}
	params := paygate.FundAccountParams{
		ContactName:  dest.AccountName,
		ContactEmail: dest.Email,
	}
	switch input.Method {
	case enums.PayoutMethodUPI:
		params.AccountType = "vpa"
		params.VPA = dest.VPA
	case enums.PayoutMethodBank:
		params.AccountType = "bank_account"
		params.AccountName = dest.AccountName
		params.AccountNumber = dest.AccountNumber
		params.IFSC = dest.IFSC
	default:
		return ""
	}
	account, err := s.payout.CreateFundAccount(ctx, params)
	if err != nil {
		s.logger.Warn(s.logger.WithUserID(ctx, input.SellerID.String()), "fund account registration failed, manual processing")
		return ""
	}
	return account.ID
}

func (s *service) ListForSeller(ctx context.Context, sellerID uuid.UUID, params pagination.Params) ([]models.Withdrawal, error) {
	return s.repo.ListBySeller(ctx, sellerID, params)
}

func (s *service) ListForAdmin(ctx context.Context, status *enums.WithdrawalStatus, params pagination.Params) ([]models.Withdrawal, error) {
	return s.repo.ListByStatus(ctx, status, params)
}

func (s *service) Get(ctx context.Context, id uuid.UUID, actor Actor) (*models.Withdrawal, error) {
	withdrawal, err := s.findWithdrawal(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != enums.ActorRoleAdmin && actor.UserID != withdrawal.SellerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to view this withdrawal")
	}
	return withdrawal, nil
}

func (s *service) Approve(ctx context.Context, id uuid.UUID, actor Actor) (*models.Withdrawal, error) {
	if actor.Role != enums.ActorRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only admins can approve withdrawals")
	}
	withdrawal, err := s.findWithdrawal(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	if withdrawal.Status != enums.WithdrawalStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot approve a withdrawal in state %s", withdrawal.Status))
	}
	now := time.Now().UTC()
	withdrawal.Status = enums.WithdrawalStatusApproved
	withdrawal.ApprovedBy = &actor.UserID
	withdrawal.ApprovedAt = &now
	if err := s.saveWithDecisionEvent(ctx, withdrawal, actor); err != nil {
		return nil, err
	}
	return withdrawal, nil
}

func (s *service) Reject(ctx context.Context, id uuid.UUID, reason string, actor Actor) (*models.Withdrawal, error) {
	if actor.Role != enums.ActorRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only admins can reject withdrawals")
	}
	withdrawal, err := s.findWithdrawal(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	switch withdrawal.Status {
	case enums.WithdrawalStatusPending, enums.WithdrawalStatusApproved:
	default:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot reject a withdrawal in state %s", withdrawal.Status))
	}
	withdrawal.Status = enums.WithdrawalStatusRejected
	if reason != "" {
		withdrawal.RejectReason = &reason
	}
	if err := s.saveWithDecisionEvent(ctx, withdrawal, actor); err != nil {
		return nil, err
	}
	return withdrawal, nil
}

// Process issues the payout. With a registered fund account the provider
// transfer is created and the record moves to processing pending the
// provider's word; in manual mode the admin is the provider and the record
// moves straight to processed.
func (s *service) Process(ctx context.Context, id uuid.UUID, actor Actor) (*models.Withdrawal, error) {
	if actor.Role != enums.ActorRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only admins can process withdrawals")
	}
	withdrawal, err := s.findWithdrawal(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	if withdrawal.Status != enums.WithdrawalStatusApproved {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot process a withdrawal in state %s", withdrawal.Status))
	}

	now := time.Now().UTC()
	withdrawal.ProcessedBy = &actor.UserID
	withdrawal.ProcessedAt = &now

	if s.payout != nil && s.payout.PayoutsEnabled() && withdrawal.PayoutAccountID != nil {
		payout, err := s.payout.CreatePayout(ctx, paygate.PayoutParams{
			FundAccountID: *withdrawal.PayoutAccountID,
			AmountCents:   withdrawal.AmountCents,
			ReferenceID:   withdrawal.ID.String(),
			Narration:     "seller withdrawal",
		})
		if err != nil {
			return nil, err
		}
		withdrawal.PayoutID = &payout.ID
		withdrawal.ProviderStatus = &payout.Status
		withdrawal.Status = enums.WithdrawalStatusProcessing
	} else {
		s.logger.Warn(s.logger.WithField(ctx, "withdrawal_id", withdrawal.ID.String()),
			"payout provider unavailable, manual processing")
		withdrawal.Status = enums.WithdrawalStatusProcessed
	}

	if err := s.saveWithDecisionEvent(ctx, withdrawal, actor); err != nil {
		return nil, err
	}
	return withdrawal, nil
}

// RefreshPayoutStatus polls the provider and settles the wallet when the
// payout lands. Manual-mode records (no provider payout id) are settled
// directly from the processed state.
func (s *service) RefreshPayoutStatus(ctx context.Context, id uuid.UUID, actor Actor) (*models.Withdrawal, error) {
	if actor.Role != enums.ActorRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only admins can refresh payout status")
	}
	withdrawal, err := s.findWithdrawal(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	if withdrawal.Status.IsTerminal() {
		return withdrawal, nil
	}

	if withdrawal.PayoutID == nil {
		if withdrawal.Status == enums.WithdrawalStatusProcessed {
			if err := s.markPaid(ctx, withdrawal, actor); err != nil {
				return nil, err
			}
		}
		return withdrawal, nil
	}

	if s.payout == nil {
		// A payout id without a configured provider means credentials were
		// removed after dispatch; the record stays manual until an admin
		// settles it.
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payout provider is not configured")
	}

	payout, err := s.payout.FetchPayout(ctx, *withdrawal.PayoutID)
	if err != nil {
		return nil, err
	}
	withdrawal.ProviderStatus = &payout.Status

	switch payout.Status {
	case paygate.PayoutStatusProcessed:
		if err := s.markPaid(ctx, withdrawal, actor); err != nil {
			return nil, err
		}
	case paygate.PayoutStatusReversed, paygate.PayoutStatusFailed:
		// The transfer bounced; funds never left, allow a re-attempt.
		withdrawal.Status = enums.WithdrawalStatusApproved
		withdrawal.PayoutID = nil
		logCtx := s.logger.WithFields(ctx, map[string]any{
			"withdrawal_id":   withdrawal.ID.String(),
			"provider_status": payout.Status,
		})
		s.logger.Warn(logCtx, "payout bounced, withdrawal reopened")
		if err := s.saveWithDecisionEvent(ctx, withdrawal, actor); err != nil {
			return nil, err
		}
	default:
		if err := s.repo.Update(ctx, withdrawal); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating withdrawal")
		}
	}
	return withdrawal, nil
}

// markPaid debits the seller's wallet and closes the withdrawal in one
// transaction.
func (s *service) markPaid(ctx context.Context, withdrawal *models.Withdrawal, actor Actor) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		withdrawal.Status = enums.WithdrawalStatusPaid
		if err := repo.Update(ctx, withdrawal); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating withdrawal")
		}
		_, err := s.wallet.Debit(ctx, tx, wallet.MovementInput{
			SellerID:    withdrawal.SellerID,
			AmountCents: withdrawal.AmountCents,
			Reason:      "withdrawal payout",
		})
		if err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventWithdrawalPaid,
			AggregateType: enums.AggregateWithdrawal,
			AggregateID:   withdrawal.ID,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role},
			Data: withdrawalEvent{
				WithdrawalID: withdrawal.ID,
				SellerID:     withdrawal.SellerID,
				AmountCents:  withdrawal.AmountCents,
				Status:       withdrawal.Status,
			},
		})
	})
}

func (s *service) saveWithDecisionEvent(ctx context.Context, withdrawal *models.Withdrawal, actor Actor) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Update(ctx, withdrawal); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating withdrawal")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventWithdrawalDecided,
			AggregateType: enums.AggregateWithdrawal,
			AggregateID:   withdrawal.ID,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role},
			Data: withdrawalEvent{
				WithdrawalID: withdrawal.ID,
				SellerID:     withdrawal.SellerID,
				AmountCents:  withdrawal.AmountCents,
				Status:       withdrawal.Status,
			},
		})
	})
}

func (s *service) findWithdrawal(ctx context.Context, repo Repository, id uuid.UUID) (*models.Withdrawal, error) {
	withdrawal, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "withdrawal not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading withdrawal")
	}
	return withdrawal, nil
}
