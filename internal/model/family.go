package model

import "time"

// MissingMemberName is displayed for a member whose profile has no name.
const MissingMemberName = "Sem nome"

// FamilyGroup is a named set of users who can see each other's transactions.
// JoinCode is fixed at creation and shared out-of-band to invite members.
type FamilyGroup struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	JoinCode  string    `json:"joinCode"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

// Membership is the many-to-many edge between a profile and a family.
type Membership struct {
	FamilyID string    `json:"familyId"`
	UserID   string    `json:"userId"`
	Role     Role      `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Member is one roster entry: a membership merged with its profile.
type Member struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar"`
	Role   Role   `json:"role"`
}

// NewMember merges a membership row with the member's profile, applying the
// display fallbacks for missing name and avatar.
func NewMember(m Membership, p Profile) Member {
	name := p.Name
	if name == "" {
		name = MissingMemberName
	}
	avatar := p.AvatarURL
	if avatar == "" {
		avatar = AvatarFor(p.ID)
	}
	return Member{
		ID:     p.ID,
		Name:   name,
		Email:  p.Email,
		Avatar: avatar,
		Role:   m.Role,
	}
}

// FamilyWithMembers is a family together with its resolved roster.
type FamilyWithMembers struct {
	FamilyGroup
	Members []Member `json:"members"`
}
