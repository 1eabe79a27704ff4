package services

import (
	"context"
	"log/slog"

	"github.com/tradeshield/escrow-backend/internal/apperr"
	"github.com/tradeshield/escrow-backend/internal/models"
	repo "github.com/tradeshield/escrow-backend/internal/repository"
)

type KYCService struct {
	r        repo.KYC
	audit    repo.AuditLogs
	notifier Notifier
}

func NewKYCService(r repo.KYC, audit repo.AuditLogs, notifier Notifier) *KYCService {
	return &KYCService{r: r, audit: audit, notifier: notifier}
}

type KYCSubmission struct {
	Tier      models.KYCTier       `json:"tier"`
	Documents []models.KYCDocument `json:"documents"`
}

// Submit creates or re-opens the user's verification record. Allowed only
// from unverified or rejected; anything in flight conflicts.
func (s *KYCService) Submit(ctx context.Context, userID string, in KYCSubmission) (models.KYCVerification, error) {
	if in.Tier == "" {
		in.Tier = models.KYCTierBasic
	}
	if in.Tier != models.KYCTierBasic && in.Tier != models.KYCTierFull {
		return models.KYCVerification{}, apperr.Validationf("unknown tier %q", in.Tier)
	}
	if len(in.Documents) == 0 {
		return models.KYCVerification{}, apperr.Validation("at least one document is required")
	}
	for _, d := range in.Documents {
		if d.Type == "" || d.URL == "" {
			return models.KYCVerification{}, apperr.Validation("documents need a type and a url")
		}
	}

	v, err := s.r.Submit(ctx, userID, in.Tier, in.Documents)
	if err != nil {
		return models.KYCVerification{}, err
	}
	s.auditLog(ctx, userID, "kyc_submitted", map[string]any{"tier": in.Tier})
	return v, nil
}

func (s *KYCService) Status(ctx context.Context, userID string) (models.KYCVerification, error) {
	return s.r.GetByUser(ctx, userID)
}

func (s *KYCService) ListPending(ctx context.Context, limit, offset int) ([]models.KYCVerification, error) {
	if limit < 1 || limit > 100 {
		limit = 50
	}
	return s.r.ListByStatus(ctx, models.KYCPending, limit, offset)
}

// Claim moves a pending submission under review so two reviewers do not
// pick up the same record.
func (s *KYCService) Claim(ctx context.Context, reviewerID, userID string) (models.KYCVerification, error) {
	return s.r.AdvanceStatus(ctx, userID,
		[]models.KYCStatus{models.KYCPending}, models.KYCUnderReview, reviewerID, "")
}

// Review finishes a verification with approve or reject.
func (s *KYCService) Review(ctx context.Context, reviewerID, userID string, approve bool, note string) (models.KYCVerification, error) {
	to := models.KYCApproved
	if !approve {
		to = models.KYCRejected
	}
	v, err := s.r.AdvanceStatus(ctx, userID,
		[]models.KYCStatus{models.KYCPending, models.KYCUnderReview}, to, reviewerID, note)
	if err != nil {
		return models.KYCVerification{}, err
	}
	s.auditLog(ctx, userID, "kyc_reviewed", map[string]any{"status": to, "reviewer": reviewerID})

	msg := "Your identity verification was approved"
	if !approve {
		msg = "Your identity verification was rejected"
		if note != "" {
			msg += ": " + note
		}
	}
	s.notifier.Dispatch(ctx, Event{
		Type:       models.NotifyKYCReviewed,
		Title:      "Verification reviewed",
		Message:    msg,
		Recipients: []string{userID},
	})
	return v, nil
}

func (s *KYCService) auditLog(ctx context.Context, userID, action string, details map[string]any) {
	if err := s.audit.Create(ctx, models.AuditLog{
		EntityType: "kyc",
		EntityID:   &userID,
		Action:     action,
		Details:    details,
	}); err != nil {
		slog.Error("audit write failed", "user", userID, "action", action, "err", err)
	}
}
