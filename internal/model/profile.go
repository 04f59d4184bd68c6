// Package model defines the data structures used throughout the application.
package model

import (
	"strings"
	"time"
)

// Role is a user's role either globally (on the profile) or within a family.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleMember
}

// DefaultProfileName is used when neither a name nor an email local-part is
// available while synthesizing a profile.
const DefaultProfileName = "Usuário"

// avatarBaseURL produces a deterministic avatar image per seed.
const avatarBaseURL = "https://api.dicebear.com/7.x/avataaars/svg?seed="

// AvatarFor returns the generated avatar URL for a user id.
func AvatarFor(userID string) string {
	return avatarBaseURL + userID
}

// Account is the identity record: the credentials a user signs in with.
//
// Exactly one of PasswordHash or GitHubID is normally set, depending on how
// the account was created. The Profile for an account shares its ID.
type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`              // name supplied at sign-up (user metadata)
	GitHubID     *int64    `json:"githubId,omitempty"` // set for accounts created through GitHub OAuth
	CreatedAt    time.Time `json:"createdAt"`
}

// Profile is the public, user-editable view of a person: what family members
// see about each other.
type Profile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	AvatarURL string    `json:"avatarUrl"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewDefaultProfile synthesizes the profile of a user who has none yet.
//
// The name is taken from the first non-empty of: the provided name, the local
// part of the email, DefaultProfileName. New profiles start as admin.
func NewDefaultProfile(userID, email, name string) *Profile {
	return &Profile{
		ID:        userID,
		Name:      DisplayName(name, email),
		Email:     email,
		AvatarURL: AvatarFor(userID),
		Role:      RoleAdmin,
	}
}

// DisplayName picks the name shown for a user.
func DisplayName(name, email string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	if local, _, ok := strings.Cut(strings.TrimSpace(email), "@"); ok && local != "" {
		return local
	}
	return DefaultProfileName
}
