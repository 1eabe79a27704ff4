package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tradeshield/escrow-backend/internal/apperr"
	"github.com/tradeshield/escrow-backend/internal/models"
	"github.com/tradeshield/escrow-backend/internal/payments"
	repo "github.com/tradeshield/escrow-backend/internal/repository"
)

// In-memory repositories mirroring the conditional-update semantics of the
// postgres implementations, so the services under test see the same
// NotFound/Conflict behavior.

type fakeEscrows struct {
	mu   sync.Mutex
	seq  int
	rows map[string]models.Escrow
}

func newFakeEscrows() *fakeEscrows {
	return &fakeEscrows{rows: map[string]models.Escrow{}}
}

func (f *fakeEscrows) Create(_ context.Context, e models.Escrow) (models.Escrow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	e.ID = fmt.Sprintf("esc-%d", f.seq)
	e.Status = models.EscrowCreated
	e.CreatedAt = time.Now().UTC()
	f.rows[e.ID] = e
	return e, nil
}

func (f *fakeEscrows) GetByID(_ context.Context, id string) (models.Escrow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.rows[id]
	if !ok {
		return models.Escrow{}, apperr.NotFound("escrow not found")
	}
	return e, nil
}

func (f *fakeEscrows) ListByUser(_ context.Context, userID string, limit, offset int) ([]models.Escrow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Escrow
	for _, e := range f.rows {
		if e.IsParty(userID) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEscrows) Transition(_ context.Context, t repo.StatusTransition) (models.Escrow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.rows[t.EscrowID]
	if !ok {
		return models.Escrow{}, apperr.NotFound("escrow not found")
	}
	allowed := false
	for _, s := range t.From {
		if e.Status == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return models.Escrow{}, apperr.Conflict(fmt.Sprintf("escrow is %s", e.Status))
	}
	e.Status = t.To
	now := time.Now().UTC()
	switch t.To {
	case models.EscrowFunded:
		e.FundedAt = &now
	case models.EscrowDelivered:
		e.DeliveredAt = &now
	case models.EscrowCompleted:
		e.CompletedAt = &now
	}
	if t.Delivery != nil {
		d := *t.Delivery
		e.Delivery = &d
	}
	if t.Dispute != nil {
		d := *t.Dispute
		e.Dispute = &d
	}
	if t.Resolution != nil {
		r := *t.Resolution
		e.Resolution = &r
		e.ResolvedAt = &now
	}
	f.rows[e.ID] = e
	return e, nil
}

func (f *fakeEscrows) UpdateDeliveryProof(_ context.Context, id string, proof models.DeliveryProof) (models.Escrow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.rows[id]
	if !ok {
		return models.Escrow{}, apperr.NotFound("escrow not found")
	}
	if e.Status != models.EscrowDelivered {
		return models.Escrow{}, apperr.Conflict("escrow is not delivered")
	}
	e.Delivery = &proof
	f.rows[id] = e
	return e, nil
}

func (f *fakeEscrows) AppendDisputeResponse(_ context.Context, id string, resp models.DisputeResponse) (models.Escrow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.rows[id]
	if !ok {
		return models.Escrow{}, apperr.NotFound("escrow not found")
	}
	if e.Status != models.EscrowDisputed || e.Dispute == nil {
		return models.Escrow{}, apperr.Conflict("no open dispute")
	}
	d := *e.Dispute
	d.Responses = append(d.Responses, resp)
	e.Dispute = &d
	f.rows[id] = e
	return e, nil
}

func (f *fakeEscrows) ListAutoReleasable(_ context.Context, cutoff time.Time, limit int) ([]models.Escrow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Escrow
	for _, e := range f.rows {
		if e.Status == models.EscrowDelivered && e.DeliveredAt != nil && e.DeliveredAt.Before(cutoff) {
			out = append(out, e)
		}
	}
	return out, nil
}

// put installs an escrow in a chosen state, bypassing the lifecycle.
func (f *fakeEscrows) put(e models.Escrow) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[e.ID] = e
}

type fakeUsers struct {
	mu   sync.Mutex
	rows map[string]models.User
}

func newFakeUsers(ids ...string) *fakeUsers {
	f := &fakeUsers{rows: map[string]models.User{}}
	for _, id := range ids {
		f.rows[id] = models.User{ID: id, Username: id, Email: id + "@example.com", Role: models.RoleUser}
	}
	return f
}

func (f *fakeUsers) Create(_ context.Context, username, email, passwordHash, role string) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.rows {
		if u.Email == email {
			return models.User{}, apperr.Conflict("email already registered")
		}
	}
	u := models.User{
		ID:           fmt.Sprintf("user-%d", len(f.rows)+1),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	f.rows[u.ID] = u
	return u, nil
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.rows[id]
	if !ok {
		return models.User{}, apperr.NotFound("user not found")
	}
	return u, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.rows {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, apperr.NotFound("user not found")
}

func (f *fakeUsers) List(context.Context) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.User
	for _, u := range f.rows {
		out = append(out, u)
	}
	return out, nil
}

type fakeBankAccounts struct {
	mu    sync.Mutex
	seq   int
	rows  map[string]models.BankAccount
	order map[string]int
}

func newFakeBankAccounts() *fakeBankAccounts {
	return &fakeBankAccounts{rows: map[string]models.BankAccount{}, order: map[string]int{}}
}

func (f *fakeBankAccounts) Create(_ context.Context, a models.BankAccount) (models.BankAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	a.ID = fmt.Sprintf("bank-%d", f.seq)
	a.CreatedAt = time.Now().UTC()
	a.IsPrimary = true
	for _, other := range f.rows {
		if other.UserID == a.UserID {
			a.IsPrimary = false
			break
		}
	}
	f.rows[a.ID] = a
	f.order[a.ID] = f.seq
	return a, nil
}

func (f *fakeBankAccounts) ListByUser(_ context.Context, userID string) ([]models.BankAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.BankAccount
	for _, a := range f.rows {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeBankAccounts) GetPrimary(_ context.Context, userID string) (models.BankAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.rows {
		if a.UserID == userID && a.IsPrimary {
			return a, nil
		}
	}
	return models.BankAccount{}, apperr.NotFound("no primary bank account")
}

func (f *fakeBankAccounts) SetPrimary(_ context.Context, userID, id string) (models.BankAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	target, ok := f.rows[id]
	if !ok || target.UserID != userID {
		return models.BankAccount{}, apperr.NotFound("bank account not found")
	}
	for k, a := range f.rows {
		if a.UserID == userID {
			a.IsPrimary = k == id
			f.rows[k] = a
		}
	}
	return f.rows[id], nil
}

func (f *fakeBankAccounts) Delete(_ context.Context, userID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.rows[id]
	if !ok || a.UserID != userID {
		return apperr.NotFound("bank account not found")
	}
	delete(f.rows, id)
	delete(f.order, id)

	// Deleting the primary promotes the most recently added remaining account.
	if a.IsPrimary {
		newest := ""
		for k, other := range f.rows {
			if other.UserID != userID {
				continue
			}
			if newest == "" || f.order[k] > f.order[newest] {
				newest = k
			}
		}
		if newest != "" {
			heir := f.rows[newest]
			heir.IsPrimary = true
			f.rows[newest] = heir
		}
	}
	return nil
}

type fakePayouts struct {
	mu   sync.Mutex
	rows []models.Payout
}

func (f *fakePayouts) Create(_ context.Context, p models.Payout) (models.Payout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.ID = fmt.Sprintf("payout-%d", len(f.rows)+1)
	p.Status = models.PayoutPending
	p.CreatedAt = time.Now().UTC()
	f.rows = append(f.rows, p)
	return p, nil
}

func (f *fakePayouts) ListByUser(_ context.Context, userID string, limit, offset int) ([]models.Payout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Payout
	for _, p := range f.rows {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePayouts) all() []models.Payout {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Payout(nil), f.rows...)
}

type fakePayments struct {
	mu   sync.Mutex
	seq  int
	rows map[string]models.Payment // keyed by reference
}

func newFakePayments() *fakePayments {
	return &fakePayments{rows: map[string]models.Payment{}}
}

func (f *fakePayments) Create(_ context.Context, p models.Payment) (models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[p.Reference]; ok {
		return models.Payment{}, apperr.Conflict("reference already exists")
	}
	f.seq++
	p.ID = fmt.Sprintf("pay-%d", f.seq)
	p.Status = models.PaymentPending
	p.CreatedAt = time.Now().UTC()
	f.rows[p.Reference] = p
	return p, nil
}

func (f *fakePayments) GetByReference(_ context.Context, ref string) (models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[ref]
	if !ok {
		return models.Payment{}, apperr.NotFound("payment not found")
	}
	return p, nil
}

func (f *fakePayments) Confirm(_ context.Context, ref string) (models.Payment, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[ref]
	if !ok {
		return models.Payment{}, false, apperr.NotFound("payment not found")
	}
	if p.Status == models.PaymentConfirmed {
		return p, false, nil
	}
	if p.Status != models.PaymentPending {
		return models.Payment{}, false, apperr.Conflict("payment is " + string(p.Status))
	}
	now := time.Now().UTC()
	p.Status = models.PaymentConfirmed
	p.ConfirmedAt = &now
	f.rows[ref] = p
	return p, true, nil
}

func (f *fakePayments) MarkFailed(_ context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[ref]
	if !ok {
		return apperr.NotFound("payment not found")
	}
	p.Status = models.PaymentFailed
	f.rows[ref] = p
	return nil
}

type fakeNotifications struct {
	mu       sync.Mutex
	seq      int
	rows     map[string]models.Notification
	settings map[string]models.NotificationSettings
	failNext bool
}

func newFakeNotifications() *fakeNotifications {
	return &fakeNotifications{
		rows:     map[string]models.Notification{},
		settings: map[string]models.NotificationSettings{},
	}
}

func (f *fakeNotifications) Create(_ context.Context, n models.Notification) (models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return models.Notification{}, apperr.Internal("store unavailable", nil)
	}
	f.seq++
	n.ID = fmt.Sprintf("notif-%d", f.seq)
	n.CreatedAt = time.Now().UTC()
	f.rows[n.ID] = n
	return n, nil
}

func (f *fakeNotifications) List(_ context.Context, userID string, unreadOnly bool, limit, offset int) (repo.NotificationPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var page repo.NotificationPage
	for _, n := range f.rows {
		if n.UserID != userID {
			continue
		}
		page.Total++
		if !n.IsRead {
			page.UnreadCount++
		}
		if unreadOnly && n.IsRead {
			continue
		}
		page.Items = append(page.Items, n)
	}
	return page, nil
}

func (f *fakeNotifications) MarkRead(_ context.Context, userID, id string) (models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.rows[id]
	if !ok || n.UserID != userID {
		return models.Notification{}, apperr.NotFound("notification not found")
	}
	now := time.Now().UTC()
	n.IsRead = true
	n.ReadAt = &now
	f.rows[id] = n
	return n, nil
}

func (f *fakeNotifications) MarkAllRead(_ context.Context, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for id, n := range f.rows {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			f.rows[id] = n
			count++
		}
	}
	return count, nil
}

func (f *fakeNotifications) Delete(_ context.Context, userID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.rows[id]
	if !ok || n.UserID != userID {
		return apperr.NotFound("notification not found")
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeNotifications) DeleteRead(_ context.Context, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for id, n := range f.rows {
		if n.UserID == userID && n.IsRead {
			delete(f.rows, id)
			count++
		}
	}
	return count, nil
}

func (f *fakeNotifications) GetSettings(_ context.Context, userID string) (models.NotificationSettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.settings[userID]; ok {
		return s, nil
	}
	return models.NotificationSettings{UserID: userID, EmailEnabled: true, PushEnabled: true}, nil
}

func (f *fakeNotifications) UpdateSettings(_ context.Context, s models.NotificationSettings) (models.NotificationSettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s.UpdatedAt = time.Now().UTC()
	f.settings[s.UserID] = s
	return s, nil
}

func (f *fakeNotifications) countFor(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, n := range f.rows {
		if n.UserID == userID {
			count++
		}
	}
	return count
}

type fakeAudit struct {
	mu   sync.Mutex
	rows []models.AuditLog
}

func (f *fakeAudit) Create(_ context.Context, l models.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, l)
	return nil
}

func (f *fakeAudit) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.rows))
	for _, l := range f.rows {
		out = append(out, l.Action)
	}
	return out
}

// recordingNotifier captures dispatch events synchronously for assertions.
type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingNotifier) Dispatch(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingNotifier) byType(t models.NotificationType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// fakeProvider scripts the external payment processor.
type fakeProvider struct {
	mu      sync.Mutex
	results map[string]payments.VerificationResult
	err     error
	verifys int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{results: map[string]payments.VerificationResult{}}
}

func (f *fakeProvider) Initialize(_ context.Context, reference string, amount int64, currency string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return "https://checkout.example.com/" + reference, nil
}

func (f *fakeProvider) VerifyReference(_ context.Context, reference string) (payments.VerificationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifys++
	if f.err != nil {
		return payments.VerificationResult{}, f.err
	}
	res, ok := f.results[reference]
	if !ok {
		return payments.VerificationResult{}, apperr.NotFound("unknown reference")
	}
	return res, nil
}

func (f *fakeProvider) paid(reference string, amount int64, currency string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[reference] = payments.VerificationResult{
		Reference: reference,
		Paid:      true,
		Amount:    amount,
		Currency:  currency,
	}
}

func (f *fakeProvider) unpaid(reference string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[reference] = payments.VerificationResult{Reference: reference}
}

func (f *fakeProvider) verifyCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.verifys
}
