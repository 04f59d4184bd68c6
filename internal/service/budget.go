package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/sakif/family-finance/internal/apperror"
	"github.com/sakif/family-finance/internal/model"
	"github.com/sakif/family-finance/internal/repository"
	"github.com/sakif/family-finance/internal/stats"
)

// BudgetsKey is the storage key of a user's budget list.
const BudgetsKey = "financa_budgets_v3"

// MonthReader returns the transactions visible to a viewer in one month.
type MonthReader interface {
	GetByMonth(ctx context.Context, viewerID, month string) ([]model.Transaction, error)
}

// BudgetService keeps one list of category budgets per user.
//
// ONE DOCUMENT PER USER:
// The list lives in kv_store as a single JSON array under BudgetsKey, keyed
// by owner. There is no budgets table: every Save or Remove reads the whole
// list, changes it in memory and writes it back. A missing document means
// "never saved" and yields model.DefaultBudgets; a document that no longer
// decodes is logged and also treated as the defaults, so the next save
// overwrites it.
//
// Budgets belong to the user, not the family. Statuses measures them against
// the family-wide transactions the user can see.
type BudgetService struct {
	kv     repository.KVRepository
	txs    MonthReader
	logger *slog.Logger

	// mu serializes read-modify-write cycles so concurrent saves by the same
	// process do not drop each other's entries.
	mu sync.Mutex
}

func NewBudgetService(kv repository.KVRepository, txs MonthReader, logger *slog.Logger) *BudgetService {
	return &BudgetService{kv: kv, txs: txs, logger: logger}
}

// List returns userID's budgets. A user who never saved one gets the
// defaults; an unreadable document also falls back to them.
func (s *BudgetService) List(ctx context.Context, userID string) ([]model.Budget, error) {
	raw, err := s.kv.GetValue(ctx, userID, BudgetsKey)
	if errors.Is(err, apperror.ErrNotFound) {
		return model.DefaultBudgets(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("service/budget: loading budgets: %w", err)
	}

	var budgets []model.Budget
	if err := json.Unmarshal(raw, &budgets); err != nil {
		s.logger.Warn("stored budgets are unreadable, using defaults",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return model.DefaultBudgets(), nil
	}
	if budgets == nil {
		budgets = []model.Budget{}
	}
	return budgets, nil
}

// Save sets the limit of one category, replacing any existing budget for it.
func (s *BudgetService) Save(ctx context.Context, userID string, b model.Budget) ([]model.Budget, error) {
	if !model.ValidCategory(model.Expense, b.Category) {
		return nil, apperror.ValidationFailed("category",
			fmt.Sprintf("%q is not an expense category", b.Category))
	}
	if !b.Limit.IsPositive() {
		return nil, apperror.ValidationFailed("limit", "limit must be greater than zero")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	budgets, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	i := slices.IndexFunc(budgets, func(x model.Budget) bool { return x.Category == b.Category })
	if i >= 0 {
		budgets[i] = b
	} else {
		budgets = append(budgets, b)
	}

	if err := s.store(ctx, userID, budgets); err != nil {
		return nil, err
	}
	return budgets, nil
}

// Remove deletes the budget of one category.
func (s *BudgetService) Remove(ctx context.Context, userID, category string) ([]model.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	budgets, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	i := slices.IndexFunc(budgets, func(x model.Budget) bool { return x.Category == category })
	if i < 0 {
		return nil, apperror.NotFound("budget", category)
	}
	budgets = slices.Delete(budgets, i, i+1)

	if err := s.store(ctx, userID, budgets); err != nil {
		return nil, err
	}
	return budgets, nil
}

// Statuses reports how much of each budget has been spent in month, counting
// every transaction visible to userID.
func (s *BudgetService) Statuses(ctx context.Context, userID, month string) ([]stats.BudgetStatus, error) {
	budgets, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	txs, err := s.txs.GetByMonth(ctx, userID, month)
	if err != nil {
		return nil, err
	}

	out := make([]stats.BudgetStatus, len(budgets))
	for i, b := range budgets {
		out[i] = stats.BudgetConsumption(txs, month, b)
	}
	return out, nil
}

func (s *BudgetService) store(ctx context.Context, userID string, budgets []model.Budget) error {
	raw, err := json.Marshal(budgets)
	if err != nil {
		return fmt.Errorf("service/budget: encoding budgets: %w", err)
	}
	if err := s.kv.PutValue(ctx, userID, BudgetsKey, raw); err != nil {
		s.logger.Error("failed to save budgets",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("service/budget: saving budgets: %w", err)
	}
	return nil
}
