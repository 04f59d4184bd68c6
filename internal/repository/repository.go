// Package repository declares the storage contracts the services depend on.
// The sqlite subpackage is the only implementation; service tests use fakes.
package repository

import (
	"context"

	"github.com/sakif/family-finance/internal/model"
)

// TransactionFilter narrows a transaction listing. UserIDs is required: a
// listing always names the exact set of owners whose rows may be returned.
// Empty Month, Category or Type mean "any".
type TransactionFilter struct {
	UserIDs  []string
	Month    string
	Category string
	Type     model.TransactionType
}

type AccountRepository interface {
	CreateAccount(ctx context.Context, account *model.Account) error
	GetAccountByEmail(ctx context.Context, email string) (*model.Account, error)
	GetAccountByID(ctx context.Context, id string) (*model.Account, error)
	UpsertGitHubAccount(ctx context.Context, account *model.Account) error
}

type ProfileRepository interface {
	GetProfile(ctx context.Context, id string) (*model.Profile, error)
	GetProfilesByIDs(ctx context.Context, ids []string) ([]model.Profile, error)
	UpsertProfile(ctx context.Context, profile *model.Profile) error
}

type FamilyRepository interface {
	// CreateFamilyWithAdmin inserts the group and the creator's admin
	// membership atomically. A join-code clash returns apperror.ErrConflict.
	CreateFamilyWithAdmin(ctx context.Context, family *model.FamilyGroup) error
	GetFamily(ctx context.Context, id string) (*model.FamilyGroup, error)
	GetFamilyByJoinCode(ctx context.Context, code string) (*model.FamilyGroup, error)
	ListFamiliesByIDs(ctx context.Context, ids []string) ([]model.FamilyGroup, error)

	GetMembership(ctx context.Context, familyID, userID string) (*model.Membership, error)
	// AddMember is a no-op when the membership already exists.
	AddMember(ctx context.Context, m *model.Membership) error
	RemoveMember(ctx context.Context, familyID, userID string) error
	SetMemberRole(ctx context.Context, familyID, userID string, role model.Role) error
	ListMembershipsForUser(ctx context.Context, userID string) ([]model.Membership, error)
	ListMembers(ctx context.Context, familyID string) ([]model.Membership, error)
	CountAdmins(ctx context.Context, familyID string) (int, error)
}

type TransactionRepository interface {
	CreateTransaction(ctx context.Context, tx *model.Transaction) error
	GetTransaction(ctx context.Context, id string) (*model.Transaction, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]model.Transaction, error)
	// UpdateTransaction and DeleteTransaction only touch a row owned by
	// userID; any other row reports apperror.ErrNotFound.
	UpdateTransaction(ctx context.Context, tx *model.Transaction, userID string) error
	DeleteTransaction(ctx context.Context, id, userID string) error
}

// KVRepository stores small serialized documents per owner, such as the
// budget list.
type KVRepository interface {
	GetValue(ctx context.Context, ownerID, key string) ([]byte, error)
	PutValue(ctx context.Context, ownerID, key string, value []byte) error
}
