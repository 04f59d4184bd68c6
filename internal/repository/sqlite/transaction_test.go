package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/sakif/family-finance/internal/apperror"
	"github.com/sakif/family-finance/internal/model"
	"github.com/sakif/family-finance/internal/repository"
)

func createTestTransaction(t *testing.T, db *DB, userID, amount, date string, typ model.TransactionType, category string) *model.Transaction {
	t.Helper()
	tx := &model.Transaction{
		UserID:      userID,
		Description: "test",
		Amount:      decimal.RequireFromString(amount),
		Date:        date,
		Type:        typ,
		Category:    category,
	}
	if err := db.CreateTransaction(context.Background(), tx); err != nil {
		t.Fatalf("failed to create test transaction: %v", err)
	}
	return tx
}

// =========================================================================
// CREATE / GET TESTS
// =========================================================================

func TestCreateTransaction_RoundTripsDecimalAndFamily(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	f := createTestFamily(t, db, "Silva", "AB12CD34", "u-1")

	tx := &model.Transaction{
		UserID:      "u-1",
		FamilyID:    &f.ID,
		Description: "Feira",
		Amount:      decimal.RequireFromString("150.50"),
		Date:        "2025-01-05",
		Type:        model.Expense,
		Category:    "Mercado",
	}
	if err := db.CreateTransaction(ctx, tx); err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	if tx.ID == "" || tx.CreatedAt.IsZero() {
		t.Fatal("CreateTransaction() did not set ID/CreatedAt")
	}

	found, err := db.GetTransaction(ctx, tx.ID)
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if !found.Amount.Equal(decimal.RequireFromString("150.5")) {
		t.Errorf("Amount = %s, want 150.5", found.Amount)
	}
	if found.FamilyID == nil || *found.FamilyID != f.ID {
		t.Errorf("FamilyID = %v, want %s", found.FamilyID, f.ID)
	}
	if found.Type != model.Expense || found.Category != "Mercado" || found.Date != "2025-01-05" {
		t.Errorf("found = %+v", found)
	}
}

func TestGetTransaction_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetTransaction(context.Background(), "nope")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// LIST TESTS
// =========================================================================

func TestListTransactions_ScopedToUserIDs(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	createTestTransaction(t, db, "u-1", "10", "2025-01-01", model.Expense, "Mercado")
	createTestTransaction(t, db, "u-2", "20", "2025-01-02", model.Expense, "Mercado")
	createTestTransaction(t, db, "u-3", "30", "2025-01-03", model.Expense, "Mercado")

	got, err := db.ListTransactions(ctx, repository.TransactionFilter{UserIDs: []string{"u-1", "u-2"}})
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d rows, want 2", len(got))
	}
	for _, tx := range got {
		if tx.UserID == "u-3" {
			t.Error("row from outside the scope was returned")
		}
	}

	none, err := db.ListTransactions(ctx, repository.TransactionFilter{})
	if err != nil {
		t.Fatalf("ListTransactions(empty scope): %v", err)
	}
	if none == nil || len(none) != 0 {
		t.Errorf("empty scope returned %v, want empty non-nil slice", none)
	}
}

func TestListTransactions_NewestFirst(t *testing.T) {
	db := newTestDB(t)
	createTestTransaction(t, db, "u-1", "1", "2025-01-01", model.Expense, "Mercado")
	createTestTransaction(t, db, "u-1", "3", "2025-03-01T10:00:00Z", model.Expense, "Mercado")
	createTestTransaction(t, db, "u-1", "2", "2025-02-01", model.Expense, "Mercado")

	got, err := db.ListTransactions(context.Background(), repository.TransactionFilter{UserIDs: []string{"u-1"}})
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	want := []string{"2025-03-01T10:00:00Z", "2025-02-01", "2025-01-01"}
	for i, tx := range got {
		if tx.Date != want[i] {
			t.Errorf("got[%d].Date = %q, want %q", i, tx.Date, want[i])
		}
	}
}

func TestListTransactions_Filters(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	createTestTransaction(t, db, "u-1", "1000", "2025-01-05", model.Income, "Salário")
	createTestTransaction(t, db, "u-1", "300", "2025-01-06", model.Expense, "Mercado")
	createTestTransaction(t, db, "u-1", "50", "2025-01-31T23:00:00Z", model.Expense, "Lanche")
	createTestTransaction(t, db, "u-1", "70", "2025-02-01", model.Expense, "Mercado")

	scope := []string{"u-1"}
	tests := []struct {
		name   string
		filter repository.TransactionFilter
		want   int
	}{
		{"month", repository.TransactionFilter{UserIDs: scope, Month: "2025-01"}, 3},
		{"category", repository.TransactionFilter{UserIDs: scope, Category: "Mercado"}, 2},
		{"type", repository.TransactionFilter{UserIDs: scope, Type: model.Income}, 1},
		{"month and category", repository.TransactionFilter{UserIDs: scope, Month: "2025-02", Category: "Mercado"}, 1},
		{"no match", repository.TransactionFilter{UserIDs: scope, Month: "2024-12"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.ListTransactions(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListTransactions: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d rows, want %d", len(got), tt.want)
			}
		})
	}
}

// =========================================================================
// UPDATE / DELETE TESTS
// =========================================================================

func TestUpdateTransaction(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	tx := createTestTransaction(t, db, "u-1", "10", "2025-01-01", model.Expense, "Mercado")

	tx.Amount = decimal.RequireFromString("12.34")
	tx.Category = "Lanche"
	if err := db.UpdateTransaction(ctx, tx, "u-1"); err != nil {
		t.Fatalf("UpdateTransaction: %v", err)
	}

	found, err := db.GetTransaction(ctx, tx.ID)
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if !found.Amount.Equal(decimal.RequireFromString("12.34")) || found.Category != "Lanche" {
		t.Errorf("after update = %+v", found)
	}
}

// Another user's row behaves exactly like a missing row and is left untouched.
func TestUpdateDeleteTransaction_OtherUserIsNotFound(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	tx := createTestTransaction(t, db, "u-1", "10", "2025-01-01", model.Expense, "Mercado")

	changed := *tx
	changed.Amount = decimal.NewFromInt(999)
	if err := db.UpdateTransaction(ctx, &changed, "u-2"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("cross-user update: error = %v, want ErrNotFound", err)
	}
	if err := db.DeleteTransaction(ctx, tx.ID, "u-2"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("cross-user delete: error = %v, want ErrNotFound", err)
	}

	found, err := db.GetTransaction(ctx, tx.ID)
	if err != nil {
		t.Fatalf("row vanished after cross-user delete: %v", err)
	}
	if !found.Amount.Equal(decimal.NewFromInt(10)) {
		t.Errorf("Amount = %s, want unchanged 10", found.Amount)
	}
}

func TestDeleteTransaction(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	tx := createTestTransaction(t, db, "u-1", "10", "2025-01-01", model.Expense, "Mercado")

	if err := db.DeleteTransaction(ctx, tx.ID, "u-1"); err != nil {
		t.Fatalf("DeleteTransaction: %v", err)
	}
	if _, err := db.GetTransaction(ctx, tx.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("after delete: error = %v, want ErrNotFound", err)
	}
}

// Leaving a family does not touch transactions tagged with it.
func TestRemoveMember_KeepsTransactions(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	f := createTestFamily(t, db, "Silva", "AB12CD34", "u-1")
	tx := createTestTransaction(t, db, "u-1", "10", "2025-01-01", model.Expense, "Mercado")
	tx.FamilyID = &f.ID
	if err := db.UpdateTransaction(ctx, tx, "u-1"); err != nil {
		t.Fatalf("UpdateTransaction: %v", err)
	}

	if err := db.RemoveMember(ctx, f.ID, "u-1"); err != nil {
		t.Fatalf("RemoveMember: %v", err)
	}

	found, err := db.GetTransaction(ctx, tx.ID)
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if found.FamilyID == nil || *found.FamilyID != f.ID {
		t.Errorf("FamilyID = %v, want %s", found.FamilyID, f.ID)
	}
}
