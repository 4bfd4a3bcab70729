package usecase_test

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/LegalDragon/funtime-identity/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClock is a settable time source shared by the usecase tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// ---- in-memory user repository ----

// memUserRepo honors the store contract the usecases rely on: unique email
// and phone enforced on write, not-found as sentinel errors.
type memUserRepo struct {
	mu     sync.Mutex
	users  map[int64]*domain.User
	nextID int64
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[int64]*domain.User)}
}

func cloneUser(u *domain.User) *domain.User {
	c := *u
	return &c
}

func (r *memUserRepo) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkUnique(user, 0); err != nil {
		return nil, err
	}

	r.nextID++
	c := cloneUser(user)
	c.ID = r.nextID
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	r.users[c.ID] = c
	return cloneUser(c), nil
}

func (r *memUserRepo) FindByID(_ context.Context, id int64) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (r *memUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Email != nil && *u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *memUserRepo) FindByPhone(_ context.Context, phone string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.PhoneNumber != nil && *u.PhoneNumber == phone {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *memUserRepo) Update(_ context.Context, user *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.ID]; !ok {
		return nil, domain.ErrUserNotFound
	}
	if err := r.checkUnique(user, user.ID); err != nil {
		return nil, err
	}

	c := cloneUser(user)
	c.UpdatedAt = time.Now()
	r.users[c.ID] = c
	return cloneUser(c), nil
}

func (r *memUserRepo) TouchLastLogin(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	now := time.Now()
	u.LastLoginAt = &now
	return nil
}

func (r *memUserRepo) checkUnique(user *domain.User, selfID int64) error {
	for id, other := range r.users {
		if id == selfID {
			continue
		}
		if user.Email != nil && other.Email != nil && *user.Email == *other.Email {
			return domain.ErrDuplicateEmail
		}
		if user.PhoneNumber != nil && other.PhoneNumber != nil && *user.PhoneNumber == *other.PhoneNumber {
			return domain.ErrDuplicatePhone
		}
	}
	return nil
}

// ---- in-memory external login repository ----

type memExternalRepo struct {
	mu     sync.Mutex
	logins map[int64]*domain.ExternalLogin
	nextID int64
	users  *memUserRepo
}

func newMemExternalRepo(users *memUserRepo) *memExternalRepo {
	return &memExternalRepo{logins: make(map[int64]*domain.ExternalLogin), users: users}
}

func cloneLogin(l *domain.ExternalLogin) *domain.ExternalLogin {
	c := *l
	return &c
}

func (r *memExternalRepo) Create(_ context.Context, login *domain.ExternalLogin) (*domain.ExternalLogin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, other := range r.logins {
		if other.UserID == login.UserID && other.Provider == login.Provider {
			return nil, domain.ErrAlreadyLinkedProvider
		}
		if other.Provider == login.Provider && other.ProviderUserID == login.ProviderUserID {
			return nil, domain.ErrProviderTaken
		}
	}

	r.nextID++
	c := cloneLogin(login)
	c.ID = r.nextID
	c.CreatedAt = time.Now()
	c.LastUsedAt = c.CreatedAt
	r.logins[c.ID] = c
	return cloneLogin(c), nil
}

func (r *memExternalRepo) FindByProvider(_ context.Context, provider, providerUserID string) (*domain.ExternalLogin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, l := range r.logins {
		if l.Provider == provider && l.ProviderUserID == providerUserID {
			return cloneLogin(l), nil
		}
	}
	return nil, domain.ErrExternalLoginNotFound
}

func (r *memExternalRepo) ListByUser(_ context.Context, userID int64) ([]*domain.ExternalLogin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.ExternalLogin
	for _, l := range r.logins {
		if l.UserID == userID {
			out = append(out, cloneLogin(l))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memExternalRepo) Touch(_ context.Context, id int64, providerEmail, displayName *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.logins[id]
	if !ok {
		return domain.ErrExternalLoginNotFound
	}
	if providerEmail != nil {
		l.ProviderEmail = providerEmail
	}
	if displayName != nil {
		l.DisplayName = displayName
	}
	l.LastUsedAt = time.Now()
	return nil
}

// DeleteIfNotLast serializes concurrent unlinks behind the repo mutex, the
// same guarantee the postgres version gets from its row lock.
func (r *memExternalRepo) DeleteIfNotLast(ctx context.Context, userID int64, provider string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, err := r.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	total := 0
	var target *domain.ExternalLogin
	for _, l := range r.logins {
		if l.UserID == userID {
			total++
			if l.Provider == provider {
				target = l
			}
		}
	}
	if user.HasEmailCredential() {
		total++
	}
	if user.PhoneNumber != nil {
		total++
	}

	if total <= 1 {
		return domain.ErrLastCredential
	}
	if target == nil {
		return domain.ErrExternalLoginNotFound
	}
	delete(r.logins, target.ID)
	return nil
}

// ---- in-memory OTP repositories ----

type memOtpRepo struct {
	mu     sync.Mutex
	reqs   map[int64]*domain.OtpRequest
	nextID int64
}

func newMemOtpRepo() *memOtpRepo {
	return &memOtpRepo{reqs: make(map[int64]*domain.OtpRequest)}
}

func cloneOtp(o *domain.OtpRequest) *domain.OtpRequest {
	c := *o
	return &c
}

func (r *memOtpRepo) Create(_ context.Context, req *domain.OtpRequest) (*domain.OtpRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	c := cloneOtp(req)
	c.ID = r.nextID
	c.CreatedAt = time.Now()
	r.reqs[c.ID] = c
	return cloneOtp(c), nil
}

func (r *memOtpRepo) LatestByIdentifier(_ context.Context, identifier string) (*domain.OtpRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var latest *domain.OtpRequest
	for _, req := range r.reqs {
		if req.Identifier != identifier {
			continue
		}
		if latest == nil || req.ID > latest.ID {
			latest = req
		}
	}
	if latest == nil {
		return nil, domain.ErrOtpNotFound
	}
	return cloneOtp(latest), nil
}

func (r *memOtpRepo) IncrementAttempts(_ context.Context, id int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.reqs[id]
	if !ok {
		return 0, domain.ErrOtpNotFound
	}
	req.AttemptCount++
	return req.AttemptCount, nil
}

func (r *memOtpRepo) MarkUsed(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.reqs[id]
	if !ok {
		return domain.ErrOtpNotFound
	}
	if req.Used {
		return domain.ErrCodeAlreadyUsed
	}
	req.Used = true
	return nil
}

func (r *memOtpRepo) DeleteExpired(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, req := range r.reqs {
		if req.ExpiresAt.Before(cutoff) {
			delete(r.reqs, id)
			n++
		}
	}
	return n, nil
}

type memRateLimitRepo struct {
	mu     sync.Mutex
	limits map[string]*domain.OtpRateLimit
}

func newMemRateLimitRepo() *memRateLimitRepo {
	return &memRateLimitRepo{limits: make(map[string]*domain.OtpRateLimit)}
}

func (r *memRateLimitRepo) Bump(_ context.Context, identifier string, now, windowStart time.Time) (*domain.OtpRateLimit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rl, ok := r.limits[identifier]
	if !ok || rl.WindowStartedAt.Before(windowStart) {
		blocked := (*time.Time)(nil)
		if ok {
			blocked = rl.BlockedUntil
		}
		rl = &domain.OtpRateLimit{
			Identifier:      identifier,
			RequestCount:    1,
			WindowStartedAt: now,
			BlockedUntil:    blocked,
		}
		r.limits[identifier] = rl
	} else {
		rl.RequestCount++
	}

	c := *rl
	return &c, nil
}

func (r *memRateLimitRepo) Block(_ context.Context, identifier string, until time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rl, ok := r.limits[identifier]; ok {
		rl.BlockedUntil = &until
	}
	return nil
}

func (r *memRateLimitRepo) DeleteStale(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, rl := range r.limits {
		if rl.WindowStartedAt.Before(cutoff) && (rl.BlockedUntil == nil || rl.BlockedUntil.Before(cutoff)) {
			delete(r.limits, id)
			n++
		}
	}
	return n, nil
}

// ---- in-memory API key repository ----

type memKeyRepo struct {
	mu       sync.Mutex
	keys     map[int64]*domain.ApiKey
	nextID   int64
	findErrs int // counts FindByKey calls, for cache assertions
}

func newMemKeyRepo() *memKeyRepo {
	return &memKeyRepo{keys: make(map[int64]*domain.ApiKey)}
}

func cloneKey(k *domain.ApiKey) *domain.ApiKey {
	c := *k
	return &c
}

func (r *memKeyRepo) Create(_ context.Context, key *domain.ApiKey) (*domain.ApiKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, other := range r.keys {
		if other.PartnerSlug == key.PartnerSlug {
			return nil, domain.ErrDuplicatePartner
		}
	}

	r.nextID++
	c := cloneKey(key)
	c.ID = r.nextID
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	r.keys[c.ID] = c
	return cloneKey(c), nil
}

func (r *memKeyRepo) FindByKey(_ context.Context, key string) (*domain.ApiKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.findErrs++
	for _, k := range r.keys {
		if k.Key == key {
			return cloneKey(k), nil
		}
	}
	return nil, domain.ErrKeyNotFound
}

func (r *memKeyRepo) storeLookups() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.findErrs
}

func (r *memKeyRepo) FindByID(_ context.Context, id int64) (*domain.ApiKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k, ok := r.keys[id]
	if !ok {
		return nil, domain.ErrKeyNotFound
	}
	return cloneKey(k), nil
}

func (r *memKeyRepo) List(_ context.Context) ([]*domain.ApiKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*domain.ApiKey
	for _, k := range r.keys {
		out = append(out, cloneKey(k))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memKeyRepo) Update(_ context.Context, key *domain.ApiKey) (*domain.ApiKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.keys[key.ID]; !ok {
		return nil, domain.ErrKeyNotFound
	}
	c := cloneKey(key)
	c.UpdatedAt = time.Now()
	r.keys[c.ID] = c
	return cloneKey(c), nil
}

func (r *memKeyRepo) ReplaceSecret(_ context.Context, id int64, newKey, newPrefix string) (*domain.ApiKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k, ok := r.keys[id]
	if !ok {
		return nil, domain.ErrKeyNotFound
	}
	k.Key = newKey
	k.KeyPrefix = newPrefix
	k.UsageCount = 0
	k.LastUsedAt = nil
	k.UpdatedAt = time.Now()
	return cloneKey(k), nil
}

func (r *memKeyRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.keys[id]; !ok {
		return domain.ErrKeyNotFound
	}
	delete(r.keys, id)
	return nil
}

func (r *memKeyRepo) RecordUsage(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, k := range r.keys {
		if k.Key == key {
			k.UsageCount++
			now := time.Now()
			k.LastUsedAt = &now
			return nil
		}
	}
	return domain.ErrKeyNotFound
}

// ---- fake delivery ----

type fakeSender struct {
	mu    sync.Mutex
	codes map[string]string // identifier -> last code
	err   error
}

func newFakeSender() *fakeSender {
	return &fakeSender{codes: make(map[string]string)}
}

func (s *fakeSender) Deliver(_ context.Context, identifier, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.codes[identifier] = code
	return nil
}

func (s *fakeSender) lastCode(identifier string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codes[identifier]
}
