package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sakif/family-finance/internal/apperror"
	"github.com/sakif/family-finance/internal/auth"
	"github.com/sakif/family-finance/internal/events"
	"github.com/sakif/family-finance/internal/model"
	"github.com/sakif/family-finance/internal/repository"
)

// =========================================================================
// FAKE STORE
// =========================================================================
//
// fakeStore implements every repository interface in memory. The *Err
// fields make the matching calls fail so degradation paths can be tested.
// It is safe for concurrent use because GetMyFamilies fans out.

type fakeStore struct {
	mu sync.Mutex

	accounts map[string]*model.Account
	profiles map[string]model.Profile
	families map[string]model.FamilyGroup
	members  []model.Membership
	txs      []model.Transaction
	kv       map[string][]byte
	nextID   int

	// createConflicts makes the next n CreateFamilyWithAdmin calls report a
	// join-code clash.
	createConflicts int

	getProfileErr    error
	upsertProfileErr error
	listTxErr        error
	listMembersErr   error
}

var (
	_ repository.AccountRepository     = (*fakeStore)(nil)
	_ repository.ProfileRepository     = (*fakeStore)(nil)
	_ repository.FamilyRepository      = (*fakeStore)(nil)
	_ repository.TransactionRepository = (*fakeStore)(nil)
	_ repository.KVRepository          = (*fakeStore)(nil)
)

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts: make(map[string]*model.Account),
		profiles: make(map[string]model.Profile),
		families: make(map[string]model.FamilyGroup),
		kv:       make(map[string][]byte),
	}
}

func (f *fakeStore) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

// ----- accounts -----

func (f *fakeStore) CreateAccount(_ context.Context, a *model.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.accounts {
		if existing.Email == a.Email {
			return apperror.Conflict("account", a.Email)
		}
	}
	a.ID = f.id("u")
	a.CreatedAt = time.Now()
	stored := *a
	f.accounts[a.ID] = &stored
	return nil
}

func (f *fakeStore) GetAccountByEmail(_ context.Context, email string) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.accounts {
		if a.Email == email {
			out := *a
			return &out, nil
		}
	}
	return nil, apperror.NotFound("account", email)
}

func (f *fakeStore) GetAccountByID(_ context.Context, id string) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return nil, apperror.NotFound("account", id)
	}
	out := *a
	return &out, nil
}

func (f *fakeStore) UpsertGitHubAccount(_ context.Context, a *model.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.accounts {
		if existing.GitHubID != nil && *existing.GitHubID == *a.GitHubID {
			existing.Name = a.Name
			a.ID = existing.ID
			a.CreatedAt = existing.CreatedAt
			return nil
		}
	}
	a.ID = f.id("u")
	a.CreatedAt = time.Now()
	stored := *a
	f.accounts[a.ID] = &stored
	return nil
}

// ----- profiles -----

func (f *fakeStore) GetProfile(_ context.Context, id string) (*model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getProfileErr != nil {
		return nil, f.getProfileErr
	}
	p, ok := f.profiles[id]
	if !ok {
		return nil, apperror.NotFound("profile", id)
	}
	return &p, nil
}

func (f *fakeStore) GetProfilesByIDs(_ context.Context, ids []string) ([]model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getProfileErr != nil {
		return nil, f.getProfileErr
	}
	out := make([]model.Profile, 0, len(ids))
	for _, id := range ids {
		if p, ok := f.profiles[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) UpsertProfile(_ context.Context, p *model.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertProfileErr != nil {
		return f.upsertProfileErr
	}
	f.profiles[p.ID] = *p
	return nil
}

// ----- families -----

func (f *fakeStore) CreateFamilyWithAdmin(_ context.Context, g *model.FamilyGroup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createConflicts > 0 {
		f.createConflicts--
		return apperror.Conflict("join code", g.JoinCode)
	}
	for _, existing := range f.families {
		if existing.JoinCode == g.JoinCode {
			return apperror.Conflict("join code", g.JoinCode)
		}
	}
	g.ID = f.id("f")
	g.CreatedAt = time.Now()
	f.families[g.ID] = *g
	f.members = append(f.members, model.Membership{
		FamilyID: g.ID, UserID: g.CreatedBy, Role: model.RoleAdmin, JoinedAt: time.Now(),
	})
	return nil
}

func (f *fakeStore) GetFamily(_ context.Context, id string) (*model.FamilyGroup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.families[id]
	if !ok {
		return nil, apperror.NotFound("family", id)
	}
	return &g, nil
}

func (f *fakeStore) GetFamilyByJoinCode(_ context.Context, code string) (*model.FamilyGroup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, g := range f.families {
		if g.JoinCode == code {
			return &g, nil
		}
	}
	return nil, apperror.NotFound("family", code)
}

func (f *fakeStore) ListFamiliesByIDs(_ context.Context, ids []string) ([]model.FamilyGroup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.FamilyGroup, 0, len(ids))
	for _, id := range ids {
		if g, ok := f.families[id]; ok {
			out = append(out, g)
		}
	}
	return out, nil
}

func (f *fakeStore) membershipIndex(familyID, userID string) int {
	return slices.IndexFunc(f.members, func(m model.Membership) bool {
		return m.FamilyID == familyID && m.UserID == userID
	})
}

func (f *fakeStore) GetMembership(_ context.Context, familyID, userID string) (*model.Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.membershipIndex(familyID, userID)
	if i < 0 {
		return nil, apperror.NotFound("membership", familyID+"/"+userID)
	}
	m := f.members[i]
	return &m, nil
}

func (f *fakeStore) AddMember(_ context.Context, m *model.Membership) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.membershipIndex(m.FamilyID, m.UserID) >= 0 {
		return nil
	}
	m.JoinedAt = time.Now()
	f.members = append(f.members, *m)
	return nil
}

func (f *fakeStore) RemoveMember(_ context.Context, familyID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.membershipIndex(familyID, userID)
	if i < 0 {
		return apperror.NotFound("membership", familyID+"/"+userID)
	}
	f.members = slices.Delete(f.members, i, i+1)
	return nil
}

func (f *fakeStore) SetMemberRole(_ context.Context, familyID, userID string, role model.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.membershipIndex(familyID, userID)
	if i < 0 {
		return apperror.NotFound("membership", familyID+"/"+userID)
	}
	f.members[i].Role = role
	return nil
}

func (f *fakeStore) ListMembershipsForUser(_ context.Context, userID string) ([]model.Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Membership, 0)
	for _, m := range f.members {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) ListMembers(_ context.Context, familyID string) ([]model.Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listMembersErr != nil {
		return nil, f.listMembersErr
	}
	out := make([]model.Membership, 0)
	for _, m := range f.members {
		if m.FamilyID == familyID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) CountAdmins(_ context.Context, familyID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.members {
		if m.FamilyID == familyID && m.Role == model.RoleAdmin {
			n++
		}
	}
	return n, nil
}

// ----- transactions -----

func (f *fakeStore) CreateTransaction(_ context.Context, tx *model.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx.ID = f.id("t")
	tx.CreatedAt = time.Now()
	f.txs = append(f.txs, *tx)
	return nil
}

func (f *fakeStore) GetTransaction(_ context.Context, id string) (*model.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.txs {
		if t.ID == id {
			return &t, nil
		}
	}
	return nil, apperror.NotFound("transaction", id)
}

func (f *fakeStore) ListTransactions(_ context.Context, filter repository.TransactionFilter) ([]model.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listTxErr != nil {
		return nil, f.listTxErr
	}
	out := make([]model.Transaction, 0)
	for _, t := range f.txs {
		if !slices.Contains(filter.UserIDs, t.UserID) {
			continue
		}
		if filter.Month != "" && !strings.HasPrefix(t.Date, filter.Month) {
			continue
		}
		if filter.Category != "" && t.Category != filter.Category {
			continue
		}
		if filter.Type != "" && t.Type != filter.Type {
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out, nil
}

func (f *fakeStore) UpdateTransaction(_ context.Context, tx *model.Transaction, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.txs {
		if t.ID == tx.ID && t.UserID == userID {
			f.txs[i] = *tx
			return nil
		}
	}
	return apperror.NotFound("transaction", tx.ID)
}

func (f *fakeStore) DeleteTransaction(_ context.Context, id, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.txs {
		if t.ID == id && t.UserID == userID {
			f.txs = slices.Delete(f.txs, i, i+1)
			return nil
		}
	}
	return apperror.NotFound("transaction", id)
}

// ----- kv -----

func (f *fakeStore) GetValue(_ context.Context, ownerID, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.kv[ownerID+"/"+key]
	if !ok {
		return nil, apperror.NotFound("key", key)
	}
	return v, nil
}

func (f *fakeStore) PutValue(_ context.Context, ownerID, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kv[ownerID+"/"+key] = value
	return nil
}

// addProfile seeds a profile the way sign-up would.
func (f *fakeStore) addProfile(id, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[id] = *model.NewDefaultProfile(id, strings.ToLower(name)+"@familia.com", name)
}

// =========================================================================
// RECORDING PUBLISHER
// =========================================================================

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) last() events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return events.Event{}
	}
	return p.events[len(p.events)-1]
}

func (p *recordingPublisher) ofType(typ string) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Event
	for _, e := range p.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

// =========================================================================
// TEST HELPERS
// =========================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fixedNow is "today" for every service test.
var fixedNow = time.Date(2025, 1, 20, 12, 0, 0, 0, time.UTC)

// testServices bundles every service over one fake store.
type testServices struct {
	store        *fakeStore
	pub          *recordingPublisher
	sessions     *SessionManager
	families     *FamilyService
	transactions *TransactionService
	budgets      *BudgetService
	dashboard    *DashboardService
}

func newTestServices(t *testing.T) *testServices {
	t.Helper()

	store := newFakeStore()
	pub := &recordingPublisher{}
	logger := testLogger()

	tokens, err := auth.NewTokenService("test-secret-at-least-16", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	families := NewFamilyService(store, store, pub, logger)
	transactions := NewTransactionService(store, families, pub, logger)
	transactions.now = func() time.Time { return fixedNow }
	dashboard := NewDashboardService(transactions, families, store, logger)
	dashboard.now = func() time.Time { return fixedNow }

	return &testServices{
		store:        store,
		pub:          pub,
		sessions:     NewSessionManager(store, store, tokens, auth.NewPasswordServiceForTest(4), logger),
		families:     families,
		transactions: transactions,
		budgets:      NewBudgetService(store, transactions, logger),
		dashboard:    dashboard,
	}
}

// sequentialCodes returns a join-code generator yielding codes in order.
func sequentialCodes(codes ...string) func() (string, error) {
	var mu sync.Mutex
	i := 0
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		if i >= len(codes) {
			return "", fmt.Errorf("no more codes")
		}
		c := codes[i]
		i++
		return c, nil
	}
}
