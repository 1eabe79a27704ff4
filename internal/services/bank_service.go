package services

import (
	"context"

	"github.com/tradeshield/escrow-backend/internal/apperr"
	"github.com/tradeshield/escrow-backend/internal/models"
	repo "github.com/tradeshield/escrow-backend/internal/repository"
)

type BankService struct {
	accounts repo.BankAccounts
	payouts  repo.Payouts
}

func NewBankService(accounts repo.BankAccounts, payouts repo.Payouts) *BankService {
	return &BankService{accounts: accounts, payouts: payouts}
}

type AddBankAccountInput struct {
	BankName      string          `json:"bank_name"`
	AccountName   string          `json:"account_name"`
	AccountNumber string          `json:"account_number"`
	Currency      models.Currency `json:"currency"`
}

func (s *BankService) Add(ctx context.Context, userID string, in AddBankAccountInput) (models.BankAccount, error) {
	switch {
	case in.BankName == "":
		return models.BankAccount{}, apperr.Validation("bank_name is required")
	case in.AccountName == "":
		return models.BankAccount{}, apperr.Validation("account_name is required")
	case len(in.AccountNumber) < 6:
		return models.BankAccount{}, apperr.Validation("account_number looks invalid")
	case !models.ValidCurrency(in.Currency):
		return models.BankAccount{}, apperr.Validationf("unsupported currency %q", in.Currency)
	}
	return s.accounts.Create(ctx, models.BankAccount{
		UserID:        userID,
		BankName:      in.BankName,
		AccountName:   in.AccountName,
		AccountNumber: models.MaskAccountNumber(in.AccountNumber),
		Currency:      in.Currency,
	})
}

func (s *BankService) List(ctx context.Context, userID string) ([]models.BankAccount, error) {
	return s.accounts.ListByUser(ctx, userID)
}

func (s *BankService) SetPrimary(ctx context.Context, userID, id string) (models.BankAccount, error) {
	return s.accounts.SetPrimary(ctx, userID, id)
}

func (s *BankService) Delete(ctx context.Context, userID, id string) error {
	return s.accounts.Delete(ctx, userID, id)
}

func (s *BankService) Payouts(ctx context.Context, userID string, limit, offset int) ([]models.Payout, error) {
	if limit < 1 || limit > 100 {
		limit = 50
	}
	return s.payouts.ListByUser(ctx, userID, limit, offset)
}
