package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mansoorceksport/recgetup/internal/domain"
)

type memPackageRepo struct {
	mu   sync.Mutex
	pkgs map[string]*domain.ClassPackage
}

func newMemPackageRepo(pkgs ...*domain.ClassPackage) *memPackageRepo {
	r := &memPackageRepo{pkgs: make(map[string]*domain.ClassPackage)}
	for _, p := range pkgs {
		r.pkgs[p.ID] = p
	}
	return r
}

func (r *memPackageRepo) Create(ctx context.Context, pkg *domain.ClassPackage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pkgs[pkg.ID]; ok {
		verr := domain.NewValidationError()
		verr.Add("name", "a package with this name already exists")
		return verr
	}
	cp := *pkg
	r.pkgs[pkg.ID] = &cp
	return nil
}

func (r *memPackageRepo) GetByID(ctx context.Context, id string) (*domain.ClassPackage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pkgs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memPackageRepo) GetActivePackages(ctx context.Context) ([]*domain.ClassPackage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.ClassPackage
	for _, p := range r.pkgs {
		if p.IsActive {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	return out, nil
}

func (r *memPackageRepo) Update(ctx context.Context, pkg *domain.ClassPackage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pkgs[pkg.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *pkg
	r.pkgs[pkg.ID] = &cp
	return nil
}

type memPaymentRepo struct {
	mu       sync.Mutex
	payments map[string]*domain.PaymentHistory
	seq      int
	// settleErr, when set, fails the next MarkSuccess without writing
	settleErr error
}

func newMemPaymentRepo() *memPaymentRepo {
	return &memPaymentRepo{payments: make(map[string]*domain.PaymentHistory)}
}

func (r *memPaymentRepo) Create(ctx context.Context, p *domain.PaymentHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.payments[p.TransactionID]; ok {
		return fmt.Errorf("duplicate transaction %s", p.TransactionID)
	}
	r.seq++
	p.ID = fmt.Sprintf("pay-%d", r.seq)
	cp := *p
	r.payments[p.TransactionID] = &cp
	return nil
}

func (r *memPaymentRepo) GetByTransactionID(ctx context.Context, tx string) (*domain.PaymentHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[tx]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memPaymentRepo) ListByUserID(ctx context.Context, userID string) ([]*domain.PaymentHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.PaymentHistory
	for _, p := range r.payments {
		if p.UserID == userID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaymentDate.After(out[j].PaymentDate) })
	return out, nil
}

func (r *memPaymentRepo) MarkSuccess(ctx context.Context, tx, gatewayPaymentID string, settledAt time.Time) (*domain.PaymentHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.settleErr; err != nil {
		r.settleErr = nil
		return nil, err
	}
	p, ok := r.payments[tx]
	if !ok || p.Status == domain.PaymentStatusSuccess {
		return nil, domain.ErrNotFound
	}
	p.Status = domain.PaymentStatusSuccess
	p.GatewayPaymentID = gatewayPaymentID
	p.FailureReason = ""
	p.SettledAt = &settledAt
	cp := *p
	return &cp, nil
}

func (r *memPaymentRepo) MarkFailed(ctx context.Context, tx, reason string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[tx]
	if !ok || p.Status != domain.PaymentStatusPending {
		return domain.ErrNotFound
	}
	p.Status = domain.PaymentStatusFailed
	p.FailureReason = reason
	p.UpdatedAt = at
	return nil
}

func (r *memPaymentRepo) get(tx string) *domain.PaymentHistory {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *r.payments[tx]
	return &cp
}

type memSubscriptionRepo struct {
	mu      sync.Mutex
	subs    map[string]*domain.UserSubscription
	upserts int
	// upsertErr, when set, fails the next Upsert without writing
	upsertErr error
}

func newMemSubscriptionRepo() *memSubscriptionRepo {
	return &memSubscriptionRepo{subs: make(map[string]*domain.UserSubscription)}
}

func (r *memSubscriptionRepo) Upsert(ctx context.Context, userID, packageID string, startDate, endDate time.Time) (*domain.UserSubscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.upsertErr; err != nil {
		r.upsertErr = nil
		return nil, err
	}
	r.upserts++
	s, ok := r.subs[userID]
	if !ok {
		s = &domain.UserSubscription{ID: "sub-" + userID, UserID: userID}
		r.subs[userID] = s
	}
	s.PackageID = packageID
	s.StartDate = startDate
	s.EndDate = endDate
	s.IsActive = true
	cp := *s
	return &cp, nil
}

func (r *memSubscriptionRepo) GetByUserID(ctx context.Context, userID string) (*domain.UserSubscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *memSubscriptionRepo) Deactivate(ctx context.Context, userID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[userID]
	if !ok || !s.IsActive {
		return domain.ErrNotFound
	}
	s.IsActive = false
	s.UpdatedAt = at
	return nil
}

func (r *memSubscriptionRepo) CountByUserID(ctx context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subs[userID]; ok {
		return 1, nil
	}
	return 0, nil
}

func (r *memSubscriptionRepo) put(s *domain.UserSubscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[s.UserID] = s
}

type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
	seq   int
}

func newMemUserRepo(users ...*domain.User) *memUserRepo {
	r := &memUserRepo{users: make(map[string]*domain.User)}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *memUserRepo) Create(ctx context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return domain.ErrEmailTaken
		}
	}
	r.seq++
	u.ID = fmt.Sprintf("user-%d", r.seq)
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *memUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	email = domain.NormalizeEmail(email)
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memUserRepo) Update(ctx context.Context, u *domain.User) error {
	return r.mutate(u.ID, func(stored *domain.User) {
		stored.FirstName = u.FirstName
		stored.LastName = u.LastName
		avatar := stored.Profile.AvatarURL
		stored.Profile = u.Profile
		stored.Profile.AvatarURL = avatar
	})
}

func (r *memUserRepo) SetActive(ctx context.Context, id string, active bool) error {
	return r.mutate(id, func(u *domain.User) { u.IsActive = active })
}

func (r *memUserRepo) UpdatePassword(ctx context.Context, id, hash string) error {
	return r.mutate(id, func(u *domain.User) { u.PasswordHash = hash })
}

func (r *memUserRepo) UpdateAvatar(ctx context.Context, id, url string) error {
	return r.mutate(id, func(u *domain.User) { u.Profile.AvatarURL = url })
}

func (r *memUserRepo) mutate(id string, fn func(u *domain.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	fn(u)
	return nil
}

type memClassRepo struct {
	mu      sync.Mutex
	classes map[string]*domain.ScheduledClass
	seq     int
}

func newMemClassRepo(classes ...*domain.ScheduledClass) *memClassRepo {
	r := &memClassRepo{classes: make(map[string]*domain.ScheduledClass)}
	for _, c := range classes {
		r.classes[c.ID] = c
	}
	return r
}

func (r *memClassRepo) Create(ctx context.Context, c *domain.ScheduledClass) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	c.ID = fmt.Sprintf("class-%d", r.seq)
	cp := *c
	r.classes[c.ID] = &cp
	return nil
}

func (r *memClassRepo) GetByID(ctx context.Context, id string) (*domain.ScheduledClass, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.classes[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memClassRepo) Update(ctx context.Context, c *domain.ScheduledClass) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.classes[c.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *c
	r.classes[c.ID] = &cp
	return nil
}

// ListUpcomingVisible returns every stored class; callers filter with FilterVisibleClasses
func (r *memClassRepo) ListUpcomingVisible(ctx context.Context, packageID string, from time.Time, limit int64) ([]*domain.ScheduledClass, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.ScheduledClass, 0, len(r.classes))
	for _, c := range r.classes {
		cp := *c
		out = append(out, &cp)
	}
	visible := domain.FilterVisibleClasses(out, packageID, from)
	if limit > 0 && int64(len(visible)) > limit {
		visible = visible[:limit]
	}
	return visible, nil
}

type memRefreshTokenRepo struct {
	mu     sync.Mutex
	tokens map[string]*domain.RefreshToken
}

func newMemRefreshTokenRepo() *memRefreshTokenRepo {
	return &memRefreshTokenRepo{tokens: make(map[string]*domain.RefreshToken)}
}

func (r *memRefreshTokenRepo) Create(ctx context.Context, t *domain.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	r.tokens[t.TokenHash] = &cp
	return nil
}

func (r *memRefreshTokenRepo) FindByHash(ctx context.Context, hash string) (*domain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[hash]
	if !ok || t.Revoked {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (r *memRefreshTokenRepo) RevokeByHash(ctx context.Context, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tokens[hash]; ok {
		t.Revoked = true
	}
	return nil
}

func (r *memRefreshTokenRepo) RevokeAllByUserID(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tokens {
		if t.UserID == userID {
			t.Revoked = true
		}
	}
	return nil
}

type recordingDispatcher struct {
	mu       sync.Mutex
	receipts []domain.PaymentReceipt
	welcomes []domain.Welcome
}

func (d *recordingDispatcher) PaymentSucceeded(ctx context.Context, r domain.PaymentReceipt) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.receipts = append(d.receipts, r)
}

func (d *recordingDispatcher) UserActivated(ctx context.Context, w domain.Welcome) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.welcomes = append(d.welcomes, w)
}

type sentLink struct {
	to   domain.Recipient
	link string
}

type recordingMailer struct {
	activations []sentLink
	resets      []sentLink
	err         error
}

func (m *recordingMailer) SendActivationLink(ctx context.Context, to domain.Recipient, link string) error {
	m.activations = append(m.activations, sentLink{to: to, link: link})
	return m.err
}

func (m *recordingMailer) SendPasswordReset(ctx context.Context, to domain.Recipient, link string) error {
	m.resets = append(m.resets, sentLink{to: to, link: link})
	return m.err
}

// failingGateway fails order creation and rejects every signature
type failingGateway struct{}

func (failingGateway) CreateOrder(ctx context.Context, params OrderParams) (*GatewayOrder, error) {
	return nil, fmt.Errorf("connection refused")
}

func (failingGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return false
}

func (failingGateway) KeyID() string { return "rzp_test_failing" }

type memFileRepo struct {
	uploads map[string][]byte
}

func (r *memFileRepo) Upload(ctx context.Context, file []byte, filename, contentType string) (string, error) {
	if r.uploads == nil {
		r.uploads = make(map[string][]byte)
	}
	r.uploads[filename] = file
	return "http://files.local/avatars/" + filename, nil
}
