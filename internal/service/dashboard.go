package service

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sakif/family-finance/internal/apperror"
	"github.com/sakif/family-finance/internal/model"
	"github.com/sakif/family-finance/internal/repository"
	"github.com/sakif/family-finance/internal/stats"
)

// TransactionReader returns every transaction visible to a viewer.
type TransactionReader interface {
	GetAll(ctx context.Context, viewerID string) ([]model.Transaction, error)
}

// MemberSpend is one row of the "who spent what" panel.
type MemberSpend struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Email  string          `json:"email"`
	Avatar string          `json:"avatar"`
	Spent  decimal.Decimal `json:"spent"`
	IsYou  bool            `json:"isYou"`
}

// Dashboard is the month overview. Degraded is set when the transactions
// could not be read and the figures are those of an empty month.
type Dashboard struct {
	stats.Summary
	Members  []MemberSpend `json:"members"`
	Degraded bool          `json:"degraded"`
}

// MemberDetail is one member's month: their expense total and their
// transactions in that month.
type MemberDetail struct {
	Member       MemberSpend         `json:"member"`
	Month        string              `json:"month"`
	Transactions []model.Transaction `json:"transactions"`
}

type DashboardService struct {
	txs        TransactionReader
	visibility Visibility
	profiles   repository.ProfileRepository
	logger     *slog.Logger
	now        func() time.Time
}

func NewDashboardService(
	txs TransactionReader,
	visibility Visibility,
	profiles repository.ProfileRepository,
	logger *slog.Logger,
) *DashboardService {
	return &DashboardService{
		txs:        txs,
		visibility: visibility,
		profiles:   profiles,
		logger:     logger,
		now:        time.Now,
	}
}

// Build computes the dashboard of month (the current month when empty) over
// everything viewerID can see.
//
// DEGRADED READS:
// Read failures do not fail the call. A failed transaction read gives zero
// totals; a failed member read gives an empty member list. Either sets
// Degraded, so the client can show "data may be incomplete" instead of a
// blank screen that looks like an empty month.
func (s *DashboardService) Build(ctx context.Context, viewerID, month string) (*Dashboard, error) {
	month, err := s.resolveMonth(month)
	if err != nil {
		return nil, err
	}

	degraded := false
	txs, err := s.txs.GetAll(ctx, viewerID)
	if err != nil {
		s.logger.Warn("dashboard transactions unavailable",
			slog.String("userID", viewerID),
			slog.String("error", err.Error()),
		)
		txs, degraded = nil, true
	}

	members, err := s.members(ctx, viewerID)
	if err != nil {
		s.logger.Warn("dashboard members unavailable",
			slog.String("userID", viewerID),
			slog.String("error", err.Error()),
		)
		members, degraded = []MemberSpend{}, true
	}
	for i := range members {
		members[i].Spent = stats.MemberSpend(txs, month, members[i].ID)
	}

	return &Dashboard{
		Summary:  stats.Summarize(txs, month, s.now()),
		Members:  members,
		Degraded: degraded,
	}, nil
}

// MemberDetail returns memberID's month as seen by viewerID. A member the
// viewer shares no family with is not found.
func (s *DashboardService) MemberDetail(ctx context.Context, viewerID, memberID, month string) (*MemberDetail, error) {
	month, err := s.resolveMonth(month)
	if err != nil {
		return nil, err
	}

	members, err := s.members(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	i := slices.IndexFunc(members, func(m MemberSpend) bool { return m.ID == memberID })
	if i < 0 {
		return nil, apperror.NotFound("member", memberID)
	}

	txs, err := s.txs.GetAll(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	own := make([]model.Transaction, 0)
	for _, t := range stats.FilterMonth(txs, month) {
		if t.UserID == memberID {
			own = append(own, t)
		}
	}

	m := members[i]
	m.Spent = stats.MemberSpend(txs, month, memberID)
	return &MemberDetail{Member: m, Month: month, Transactions: own}, nil
}

// members lists everyone visible to viewerID, viewer first. A user without a
// profile row still appears, under the fallback name.
func (s *DashboardService) members(ctx context.Context, viewerID string) ([]MemberSpend, error) {
	ids, err := s.visibility.VisibleUserIDs(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	profiles, err := s.profiles.GetProfilesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]model.Profile, len(profiles))
	for _, p := range profiles {
		byID[p.ID] = p
	}

	out := make([]MemberSpend, 0, len(ids))
	for _, id := range ids {
		p, ok := byID[id]
		if !ok {
			p = model.Profile{ID: id}
		}
		m := model.NewMember(model.Membership{UserID: id, Role: p.Role}, p)
		out = append(out, MemberSpend{
			ID:     m.ID,
			Name:   m.Name,
			Email:  m.Email,
			Avatar: m.Avatar,
			Spent:  decimal.Zero,
			IsYou:  id == viewerID,
		})
	}
	return out, nil
}

func (s *DashboardService) resolveMonth(month string) (string, error) {
	if month == "" {
		return model.MonthOf(s.now()), nil
	}
	if !model.ValidMonth(month) {
		return "", apperror.ValidationFailed("month", "month must be YYYY-MM")
	}
	return month, nil
}
