package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/sakif/family-finance/internal/apperror"
	"github.com/sakif/family-finance/internal/events"
	"github.com/sakif/family-finance/internal/joincode"
	"github.com/sakif/family-finance/internal/model"
	"github.com/sakif/family-finance/internal/repository"
)

const (
	MaxFamilyNameLength = 80

	// maxJoinCodeAttempts bounds the retries when a freshly generated join
	// code is already taken.
	maxJoinCodeAttempts = 5

	// rosterConcurrency caps the per-family roster lookups GetMyFamilies runs
	// at once.
	rosterConcurrency = 4
)

// FamilyService resolves who belongs to which family and, from that, whose
// transactions a user may see.
type FamilyService struct {
	families repository.FamilyRepository
	profiles repository.ProfileRepository
	events   events.Publisher
	logger   *slog.Logger
	newCode  func() (string, error)
}

func NewFamilyService(
	families repository.FamilyRepository,
	profiles repository.ProfileRepository,
	publisher events.Publisher,
	logger *slog.Logger,
) *FamilyService {
	return &FamilyService{
		families: families,
		profiles: profiles,
		events:   publisher,
		logger:   logger,
		newCode:  joincode.New,
	}
}

// CreateFamily creates a family with userID as its admin. The group and the
// admin membership are written together, so a failure leaves neither.
func (s *FamilyService) CreateFamily(ctx context.Context, name, userID string) (*model.FamilyGroup, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.ValidationFailed("name", "family name is required")
	}
	if len(name) > MaxFamilyNameLength {
		return nil, apperror.ValidationFailed("name",
			fmt.Sprintf("family name must be %d characters or less", MaxFamilyNameLength))
	}

	for attempt := 1; attempt <= maxJoinCodeAttempts; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return nil, fmt.Errorf("service/family: generating join code: %w", err)
		}

		family := &model.FamilyGroup{Name: name, JoinCode: code, CreatedBy: userID}
		err = s.families.CreateFamilyWithAdmin(ctx, family)
		if errors.Is(err, apperror.ErrConflict) {
			s.logger.Warn("join code collision, retrying", slog.Int("attempt", attempt))
			continue
		}
		if err != nil {
			s.logger.Error("failed to create family",
				slog.String("userID", userID),
				slog.String("error", err.Error()),
			)
			return nil, fmt.Errorf("service/family: creating family: %w", err)
		}

		s.logger.Info("family created",
			slog.String("familyID", family.ID),
			slog.String("userID", userID),
		)
		s.publish(ctx, events.New(events.EntityFamily, events.ActionCreated, family.ID, userID, []string{userID}))
		return family, nil
	}

	return nil, fmt.Errorf("service/family: no free join code after %d attempts", maxJoinCodeAttempts)
}

// ReconcileFamily repairs a family left without any admin by making its
// creator an admin again (re-adding them if they are no longer a member).
// It reports whether a repair happened. userID must be the creator or a
// current member.
func (s *FamilyService) ReconcileFamily(ctx context.Context, familyID, userID string) (bool, error) {
	family, err := s.families.GetFamily(ctx, familyID)
	if err != nil {
		return false, err
	}
	if family.CreatedBy != userID {
		if _, err := s.families.GetMembership(ctx, familyID, userID); err != nil {
			if errors.Is(err, apperror.ErrNotFound) {
				return false, apperror.Forbidden("only members can reconcile a family")
			}
			return false, fmt.Errorf("service/family: checking membership: %w", err)
		}
	}

	admins, err := s.families.CountAdmins(ctx, familyID)
	if err != nil {
		return false, fmt.Errorf("service/family: counting admins: %w", err)
	}
	if admins > 0 {
		return false, nil
	}

	_, err = s.families.GetMembership(ctx, familyID, family.CreatedBy)
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		err = s.families.AddMember(ctx, &model.Membership{
			FamilyID: familyID,
			UserID:   family.CreatedBy,
			Role:     model.RoleAdmin,
		})
	case err == nil:
		err = s.families.SetMemberRole(ctx, familyID, family.CreatedBy, model.RoleAdmin)
	}
	if err != nil {
		return false, fmt.Errorf("service/family: restoring admin of %s: %w", familyID, err)
	}

	s.logger.Warn("family had no admin, creator restored",
		slog.String("familyID", familyID),
		slog.String("creator", family.CreatedBy),
	)
	return true, nil
}

// JoinFamily adds userID to the family with the given join code. Codes are
// matched case-insensitively and ignoring surrounding spaces. Joining a
// family twice succeeds without creating a second membership.
func (s *FamilyService) JoinFamily(ctx context.Context, code, userID string) (*model.FamilyGroup, error) {
	code = joincode.Normalize(code)
	if code == "" {
		return nil, apperror.ValidationFailed("code", "join code is required")
	}

	family, err := s.families.GetFamilyByJoinCode(ctx, code)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFound("family", code)
		}
		return nil, fmt.Errorf("service/family: looking up join code: %w", err)
	}

	_, err = s.families.GetMembership(ctx, family.ID, userID)
	if err == nil {
		return family, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/family: checking membership: %w", err)
	}

	err = s.families.AddMember(ctx, &model.Membership{FamilyID: family.ID, UserID: userID, Role: model.RoleMember})
	if err != nil {
		return nil, fmt.Errorf("service/family: joining %s: %w", family.ID, err)
	}

	s.logger.Info("family joined",
		slog.String("familyID", family.ID),
		slog.String("userID", userID),
	)
	s.publish(ctx, events.New(events.EntityFamily, events.ActionJoined, family.ID, userID, s.rosterIDs(ctx, family.ID)))
	return family, nil
}

// GetMyFamilies returns every family userID belongs to with its roster.
//
// ROSTER FAN-OUT:
// Each family's roster is two queries (memberships, then their profiles), so
// rosters are resolved concurrently through an errgroup capped at
// rosterConcurrency. Results are written by index into a preallocated slice,
// which keeps the families in the order ListFamiliesByIDs returned them
// without a mutex. Profile failures only shrink a roster; a failure to list
// a family's memberships cancels the rest and fails the call.
func (s *FamilyService) GetMyFamilies(ctx context.Context, userID string) ([]model.FamilyWithMembers, error) {
	memberships, err := s.families.ListMembershipsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/family: listing memberships: %w", err)
	}
	if len(memberships) == 0 {
		return []model.FamilyWithMembers{}, nil
	}

	ids := make([]string, len(memberships))
	for i, m := range memberships {
		ids[i] = m.FamilyID
	}
	groups, err := s.families.ListFamiliesByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("service/family: listing families: %w", err)
	}

	out := make([]model.FamilyWithMembers, len(groups))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(rosterConcurrency)
	for i, group := range groups {
		g.Go(func() error {
			members, err := s.GetFamilyMembers(gctx, group.ID)
			if err != nil {
				return err
			}
			out[i] = model.FamilyWithMembers{FamilyGroup: group, Members: members}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetFamilyMembers returns the roster of one family in join order. A member
// whose profile is missing or cannot be read is left out and logged; only a
// failure to list the memberships themselves is an error.
func (s *FamilyService) GetFamilyMembers(ctx context.Context, familyID string) ([]model.Member, error) {
	memberships, err := s.families.ListMembers(ctx, familyID)
	if err != nil {
		return nil, fmt.Errorf("service/family: listing members of %s: %w", familyID, err)
	}

	ids := make([]string, len(memberships))
	for i, m := range memberships {
		ids[i] = m.UserID
	}
	profiles, err := s.profiles.GetProfilesByIDs(ctx, ids)
	if err != nil {
		// Every member of the batch counts as profile-less: the family is
		// still listed, with an empty roster.
		s.logger.Warn("failed to load member profiles, skipping members",
			slog.String("familyID", familyID),
			slog.Int("members", len(ids)),
			slog.String("error", err.Error()),
		)
		profiles = nil
	}
	byID := make(map[string]model.Profile, len(profiles))
	for _, p := range profiles {
		byID[p.ID] = p
	}

	members := make([]model.Member, 0, len(memberships))
	for _, m := range memberships {
		p, ok := byID[m.UserID]
		if !ok {
			s.logger.Warn("member has no profile, skipping",
				slog.String("familyID", familyID),
				slog.String("userID", m.UserID),
			)
			continue
		}
		members = append(members, model.NewMember(m, p))
	}
	return members, nil
}

// MemberRoster is GetFamilyMembers for a viewer, who must belong to the
// family. Non-members get apperror.ErrNotFound.
func (s *FamilyService) MemberRoster(ctx context.Context, familyID, viewerID string) ([]model.Member, error) {
	ok, err := s.IsMember(ctx, familyID, viewerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperror.NotFound("family", familyID)
	}
	return s.GetFamilyMembers(ctx, familyID)
}

// LeaveFamily removes userID from the family. Transactions the user tagged
// with the family keep the tag.
func (s *FamilyService) LeaveFamily(ctx context.Context, familyID, userID string) error {
	audience := s.rosterIDs(ctx, familyID)

	if err := s.families.RemoveMember(ctx, familyID, userID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return err
		}
		return fmt.Errorf("service/family: leaving %s: %w", familyID, err)
	}

	s.logger.Info("family left",
		slog.String("familyID", familyID),
		slog.String("userID", userID),
	)
	s.publish(ctx, events.New(events.EntityFamily, events.ActionLeft, familyID, userID, audience))
	return nil
}

// IsMember reports whether userID belongs to familyID.
func (s *FamilyService) IsMember(ctx context.Context, familyID, userID string) (bool, error) {
	_, err := s.families.GetMembership(ctx, familyID, userID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, apperror.ErrNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("service/family: checking membership: %w", err)
}

// VisibleUserIDs returns userID followed by every other user who shares at
// least one family with them, without duplicates. These are the owners
// whose transactions userID may read.
func (s *FamilyService) VisibleUserIDs(ctx context.Context, userID string) ([]string, error) {
	memberships, err := s.families.ListMembershipsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/family: listing memberships: %w", err)
	}

	seen := map[string]bool{userID: true}
	ids := []string{userID}
	for _, m := range memberships {
		roster, err := s.families.ListMembers(ctx, m.FamilyID)
		if err != nil {
			return nil, fmt.Errorf("service/family: listing members of %s: %w", m.FamilyID, err)
		}
		for _, r := range roster {
			if !seen[r.UserID] {
				seen[r.UserID] = true
				ids = append(ids, r.UserID)
			}
		}
	}
	return ids, nil
}

// rosterIDs lists the user IDs of a family for event delivery. Failures only
// narrow the audience, so they are logged, not returned.
func (s *FamilyService) rosterIDs(ctx context.Context, familyID string) []string {
	roster, err := s.families.ListMembers(ctx, familyID)
	if err != nil {
		s.logger.Warn("could not resolve event audience",
			slog.String("familyID", familyID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	ids := make([]string, len(roster))
	for i, m := range roster {
		ids[i] = m.UserID
	}
	return ids
}

func (s *FamilyService) publish(ctx context.Context, e events.Event) {
	if err := s.events.Publish(ctx, e); err != nil {
		s.logger.Warn("event publish failed",
			slog.String("type", e.Type),
			slog.String("error", err.Error()),
		)
	}
}
