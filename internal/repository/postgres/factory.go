package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"

	repo "github.com/tradeshield/escrow-backend/internal/repository"
)

type Repositories struct {
	Users         repo.Users
	Escrows       repo.Escrows
	Payments      repo.Payments
	Notifications repo.Notifications
	BankAccounts  repo.BankAccounts
	Payouts       repo.Payouts
	KYC           repo.KYC
	APIKeys       repo.APIKeys
	AuditLogs     repo.AuditLogs
}

func NewRepositories(pool *pgxpool.Pool) Repositories {
	return Repositories{
		Users:         &usersRepo{pool},
		Escrows:       &escrowsRepo{pool},
		Payments:      &paymentsRepo{pool},
		Notifications: &notificationsRepo{pool},
		BankAccounts:  &bankAccountsRepo{pool},
		Payouts:       &payoutsRepo{pool},
		KYC:           &kycRepo{pool},
		APIKeys:       &apiKeysRepo{pool},
		AuditLogs:     &auditLogsRepo{pool},
	}
}
