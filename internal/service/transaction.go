package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/sakif/family-finance/internal/apperror"
	"github.com/sakif/family-finance/internal/events"
	"github.com/sakif/family-finance/internal/model"
	"github.com/sakif/family-finance/internal/repository"
)

const MaxDescriptionLength = 200

// Visibility answers the two family questions transactions depend on. It is
// implemented by FamilyService.
type Visibility interface {
	VisibleUserIDs(ctx context.Context, userID string) ([]string, error)
	IsMember(ctx context.Context, familyID, userID string) (bool, error)
}

// TransactionQuery narrows a listing. Empty fields mean "any".
type TransactionQuery struct {
	Month    string
	Category string
	Type     model.TransactionType
}

// TransactionService is the gateway for reading and writing transactions.
// Writes only ever touch the caller's own rows; reads cover the caller and
// everyone who shares a family with them.
type TransactionService struct {
	repo       repository.TransactionRepository
	visibility Visibility
	events     events.Publisher
	logger     *slog.Logger
	now        func() time.Time
}

func NewTransactionService(
	repo repository.TransactionRepository,
	visibility Visibility,
	publisher events.Publisher,
	logger *slog.Logger,
) *TransactionService {
	return &TransactionService{
		repo:       repo,
		visibility: visibility,
		events:     publisher,
		logger:     logger,
		now:        time.Now,
	}
}

// Create records a transaction owned by userID.
func (s *TransactionService) Create(ctx context.Context, userID string, in model.TransactionInput) (*model.Transaction, error) {
	tx := &model.Transaction{
		UserID:      userID,
		Description: in.Description,
		Amount:      in.Amount,
		Date:        in.Date,
		Type:        in.Type,
		Category:    in.Category,
		FamilyID:    in.FamilyID,
	}
	// DEFAULT DATE:
	// an undated transaction is stamped now, in UTC, as RFC 3339. The first
	// ten characters are then the UTC day, matching model.MonthOf/DayOf.
	if strings.TrimSpace(tx.Date) == "" {
		tx.Date = s.now().UTC().Format(time.RFC3339)
	}
	if err := s.validate(ctx, tx); err != nil {
		return nil, err
	}

	if err := s.repo.CreateTransaction(ctx, tx); err != nil {
		s.logger.Error("failed to create transaction",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("service/transaction: creating: %w", err)
	}

	s.logger.Info("transaction created",
		slog.String("id", tx.ID),
		slog.String("userID", userID),
		slog.String("type", string(tx.Type)),
	)
	s.publish(ctx, events.ActionCreated, tx.ID, userID)
	return tx, nil
}

// List returns the transactions visible to viewerID, newest first.
func (s *TransactionService) List(ctx context.Context, viewerID string, q TransactionQuery) ([]model.Transaction, error) {
	if q.Month != "" && !model.ValidMonth(q.Month) {
		return nil, apperror.ValidationFailed("month", "month must be YYYY-MM")
	}
	if q.Type != "" && !q.Type.Valid() {
		return nil, apperror.ValidationFailed("type", "type must be income or expense")
	}

	ids, err := s.visibility.VisibleUserIDs(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("service/transaction: resolving visibility: %w", err)
	}

	txs, err := s.repo.ListTransactions(ctx, repository.TransactionFilter{
		UserIDs:  ids,
		Month:    q.Month,
		Category: q.Category,
		Type:     q.Type,
	})
	if err != nil {
		return nil, fmt.Errorf("service/transaction: listing: %w", err)
	}
	return txs, nil
}

func (s *TransactionService) GetAll(ctx context.Context, viewerID string) ([]model.Transaction, error) {
	return s.List(ctx, viewerID, TransactionQuery{})
}

func (s *TransactionService) GetByMonth(ctx context.Context, viewerID, month string) ([]model.Transaction, error) {
	return s.List(ctx, viewerID, TransactionQuery{Month: month})
}

func (s *TransactionService) GetByCategory(ctx context.Context, viewerID, category string) ([]model.Transaction, error) {
	return s.List(ctx, viewerID, TransactionQuery{Category: category})
}

func (s *TransactionService) GetByType(ctx context.Context, viewerID string, t model.TransactionType) ([]model.Transaction, error) {
	return s.List(ctx, viewerID, TransactionQuery{Type: t})
}

// Update applies patch to a transaction owned by userID. Someone else's
// transaction reads as not found, even when it is visible to userID.
func (s *TransactionService) Update(ctx context.Context, id, userID string, patch model.TransactionPatch) (*model.Transaction, error) {
	tx, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if tx.UserID != userID {
		return nil, apperror.NotFound("transaction", id)
	}

	if patch.Description != nil {
		tx.Description = *patch.Description
	}
	if patch.Amount != nil {
		tx.Amount = *patch.Amount
	}
	if patch.Date != nil {
		tx.Date = *patch.Date
	}
	if patch.Type != nil {
		tx.Type = *patch.Type
	}
	if patch.Category != nil {
		tx.Category = *patch.Category
	}
	if patch.FamilyID != nil {
		if *patch.FamilyID == "" {
			tx.FamilyID = nil
		} else {
			tx.FamilyID = patch.FamilyID
		}
	}
	if err := s.validate(ctx, tx); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateTransaction(ctx, tx, userID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("service/transaction: updating %s: %w", id, err)
	}

	s.publish(ctx, events.ActionUpdated, tx.ID, userID)
	return tx, nil
}

// Delete removes a transaction owned by userID.
func (s *TransactionService) Delete(ctx context.Context, id, userID string) error {
	if err := s.repo.DeleteTransaction(ctx, id, userID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return err
		}
		return fmt.Errorf("service/transaction: deleting %s: %w", id, err)
	}

	s.logger.Info("transaction deleted",
		slog.String("id", id),
		slog.String("userID", userID),
	)
	s.publish(ctx, events.ActionDeleted, id, userID)
	return nil
}

// validate checks tx in place, filling the default description.
func (s *TransactionService) validate(ctx context.Context, tx *model.Transaction) error {
	if !tx.Type.Valid() {
		return apperror.ValidationFailed("type", "type must be income or expense")
	}
	if tx.Amount.IsNegative() {
		return apperror.ValidationFailed("amount", "amount must not be negative")
	}
	if !model.ValidCategory(tx.Type, tx.Category) {
		return apperror.ValidationFailed("category",
			fmt.Sprintf("%q is not a valid %s category", tx.Category, tx.Type))
	}
	if !model.ValidDate(tx.Date) {
		return apperror.ValidationFailed("date", "date must be YYYY-MM-DD or RFC 3339")
	}

	tx.Description = strings.TrimSpace(tx.Description)
	if tx.Description == "" {
		tx.Description = model.DefaultDescription
	}
	if len(tx.Description) > MaxDescriptionLength {
		return apperror.ValidationFailed("description",
			fmt.Sprintf("description must be %d characters or less", MaxDescriptionLength))
	}

	if tx.FamilyID != nil {
		ok, err := s.visibility.IsMember(ctx, *tx.FamilyID, tx.UserID)
		if err != nil {
			return fmt.Errorf("service/transaction: checking family: %w", err)
		}
		if !ok {
			return apperror.Forbidden("not a member of this family")
		}
	}
	return nil
}

// publish notifies the owner and everyone who can see the owner's rows.
func (s *TransactionService) publish(ctx context.Context, action, id, userID string) {
	audience, err := s.visibility.VisibleUserIDs(ctx, userID)
	if err != nil {
		s.logger.Warn("could not resolve event audience",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		audience = []string{userID}
	}
	if !slices.Contains(audience, userID) {
		audience = append(audience, userID)
	}

	e := events.New(events.EntityTransaction, action, id, userID, audience)
	if err := s.events.Publish(ctx, e); err != nil {
		s.logger.Warn("event publish failed",
			slog.String("type", e.Type),
			slog.String("error", err.Error()),
		)
	}
}
