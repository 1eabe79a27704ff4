package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/tradeshield/escrow-backend/internal/apperr"
	"github.com/tradeshield/escrow-backend/internal/models"
)

type fakeKYC struct {
	mu   sync.Mutex
	seq  int
	rows map[string]models.KYCVerification // keyed by user id
}

func newFakeKYC() *fakeKYC {
	return &fakeKYC{rows: map[string]models.KYCVerification{}}
}

func (f *fakeKYC) GetByUser(_ context.Context, userID string) (models.KYCVerification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.rows[userID]
	if !ok {
		return models.KYCVerification{UserID: userID, Status: models.KYCUnverified}, nil
	}
	return v, nil
}

func (f *fakeKYC) Submit(_ context.Context, userID string, tier models.KYCTier, docs []models.KYCDocument) (models.KYCVerification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.rows[userID]
	if ok && v.Status != models.KYCUnverified && v.Status != models.KYCRejected {
		return models.KYCVerification{}, apperr.Conflict("verification already in progress")
	}
	if !ok {
		f.seq++
		v = models.KYCVerification{ID: fmt.Sprintf("kyc-%d", f.seq), UserID: userID, CreatedAt: time.Now().UTC()}
	}
	v.Tier = tier
	v.Status = models.KYCPending
	v.Documents = docs
	v.UpdatedAt = time.Now().UTC()
	f.rows[userID] = v
	return v, nil
}

func (f *fakeKYC) AdvanceStatus(_ context.Context, userID string, from []models.KYCStatus, to models.KYCStatus, reviewerID, note string) (models.KYCVerification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.rows[userID]
	if !ok {
		return models.KYCVerification{}, apperr.NotFound("no verification for user")
	}
	allowed := false
	for _, s := range from {
		if v.Status == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return models.KYCVerification{}, apperr.Conflict("verification is " + string(v.Status))
	}
	v.Status = to
	v.ReviewerID = &reviewerID
	v.Note = note
	v.UpdatedAt = time.Now().UTC()
	f.rows[userID] = v
	return v, nil
}

func (f *fakeKYC) ListByStatus(_ context.Context, status models.KYCStatus, limit, offset int) ([]models.KYCVerification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.KYCVerification
	for _, v := range f.rows {
		if v.Status == status {
			out = append(out, v)
		}
	}
	return out, nil
}

func newKYCFixture(t *testing.T) (*KYCService, *recordingNotifier) {
	t.Helper()
	n := &recordingNotifier{}
	return NewKYCService(newFakeKYC(), &fakeAudit{}, n), n
}

func validDocs() []models.KYCDocument {
	return []models.KYCDocument{{Type: "passport", URL: "https://docs.example.com/p.pdf"}}
}

func TestKYCSubmit(t *testing.T) {
	svc, _ := newKYCFixture(t)
	ctx := context.Background()

	v, err := svc.Submit(ctx, "alice", KYCSubmission{Documents: validDocs()})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if v.Status != models.KYCPending || v.Tier != models.KYCTierBasic {
		t.Fatalf("submission = %+v", v)
	}

	// Re-submitting while pending conflicts.
	if _, err := svc.Submit(ctx, "alice", KYCSubmission{Documents: validDocs()}); !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("resubmit err = %v, want conflict", err)
	}
}

func TestKYCSubmitValidation(t *testing.T) {
	svc, _ := newKYCFixture(t)
	ctx := context.Background()

	if _, err := svc.Submit(ctx, "alice", KYCSubmission{}); !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("no docs err = %v", err)
	}
	if _, err := svc.Submit(ctx, "alice", KYCSubmission{Tier: "platinum", Documents: validDocs()}); !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("bad tier err = %v", err)
	}
	if _, err := svc.Submit(ctx, "alice", KYCSubmission{Documents: []models.KYCDocument{{Type: "passport"}}}); !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("doc without url err = %v", err)
	}
}

func TestKYCReviewFlow(t *testing.T) {
	svc, notifier := newKYCFixture(t)
	ctx := context.Background()

	if _, err := svc.Submit(ctx, "alice", KYCSubmission{Tier: models.KYCTierFull, Documents: validDocs()}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	pending, err := svc.ListPending(ctx, 10, 0)
	if err != nil || len(pending) != 1 {
		t.Fatalf("pending = %v, %v", pending, err)
	}

	claimed, err := svc.Claim(ctx, "reviewer-1", "alice")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed.Status != models.KYCUnderReview {
		t.Fatalf("claimed status = %s", claimed.Status)
	}
	// A second reviewer cannot claim the same record.
	if _, err := svc.Claim(ctx, "reviewer-2", "alice"); !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("double claim err = %v, want conflict", err)
	}

	v, err := svc.Review(ctx, "reviewer-1", "alice", true, "")
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if v.Status != models.KYCApproved || v.ReviewerID == nil || *v.ReviewerID != "reviewer-1" {
		t.Fatalf("reviewed = %+v", v)
	}
	if n := notifier.byType(models.NotifyKYCReviewed); len(n) != 1 || n[0].Recipients[0] != "alice" {
		t.Fatalf("review notification = %+v", n)
	}

	// Approved is terminal for the reviewer.
	if _, err := svc.Review(ctx, "reviewer-1", "alice", false, ""); !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("re-review err = %v, want conflict", err)
	}
}

func TestKYCRejectReopens(t *testing.T) {
	svc, _ := newKYCFixture(t)
	ctx := context.Background()

	if _, err := svc.Submit(ctx, "alice", KYCSubmission{Documents: validDocs()}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	v, err := svc.Review(ctx, "reviewer-1", "alice", false, "document expired")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if v.Status != models.KYCRejected || v.Note != "document expired" {
		t.Fatalf("rejected = %+v", v)
	}

	// Rejected users may submit again.
	v, err = svc.Submit(ctx, "alice", KYCSubmission{Documents: validDocs()})
	if err != nil {
		t.Fatalf("resubmit after reject: %v", err)
	}
	if v.Status != models.KYCPending {
		t.Fatalf("resubmitted status = %s", v.Status)
	}
}

func TestKYCStatusUnverifiedDefault(t *testing.T) {
	svc, _ := newKYCFixture(t)
	v, err := svc.Status(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if v.Status != models.KYCUnverified {
		t.Fatalf("status = %s, want unverified", v.Status)
	}
}
