package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/family-finance/internal/apperror"
	"github.com/sakif/family-finance/internal/model"
	"github.com/sakif/family-finance/internal/repository"
)

var _ repository.TransactionRepository = (*DB)(nil)

const transactionColumns = `id, user_id, family_id, description, amount, date, type, category, created_at`

// CreateTransaction inserts tx, assigning its ID and CreatedAt.
//
// AMOUNT STORAGE: amounts go in as decimal text ("150.5") through
// decimal.Decimal's driver.Valuer and come back through its sql.Scanner, so
// no float ever touches a stored value.
func (db *DB) CreateTransaction(ctx context.Context, tx *model.Transaction) error {
	tx.ID = xid.New().String()
	tx.CreatedAt = time.Now()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO transactions (`+transactionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID,
		tx.UserID,
		tx.FamilyID,
		tx.Description,
		tx.Amount,
		tx.Date,
		tx.Type,
		tx.Category,
		tx.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating transaction: %w", err)
	}
	return nil
}

func (db *DB) GetTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)

	var tx model.Transaction
	err := scanTransaction(row, &tx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("transaction", id)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting transaction %s: %w", id, err)
	}
	return &tx, nil
}

// ListTransactions returns the rows owned by filter.UserIDs matching the
// optional filters, newest date first. An empty UserIDs yields an empty
// list: a listing is never unscoped.
//
// MONTH FILTER: substr(date, 1, 7) compares the YYYY-MM prefix of the ISO
// date string, the same rule the dashboard applies in memory.
func (db *DB) ListTransactions(ctx context.Context, filter repository.TransactionFilter) ([]model.Transaction, error) {
	txs := make([]model.Transaction, 0)
	if len(filter.UserIDs) == 0 {
		return txs, nil
	}

	placeholders, args := inClause(filter.UserIDs)
	var where strings.Builder
	where.WriteString(`user_id IN (` + placeholders + `)`)

	if filter.Month != "" {
		where.WriteString(` AND substr(date, 1, 7) = ?`)
		args = append(args, filter.Month)
	}
	if filter.Category != "" {
		where.WriteString(` AND category = ?`)
		args = append(args, filter.Category)
	}
	if filter.Type != "" {
		where.WriteString(` AND type = ?`)
		args = append(args, string(filter.Type))
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE `+where.String()+`
		 ORDER BY date DESC, created_at DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing transactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tx model.Transaction
		if err := scanTransaction(rows, &tx); err != nil {
			return nil, fmt.Errorf("sqlite: scanning transaction row: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating transactions: %w", err)
	}
	return txs, nil
}

// UpdateTransaction overwrites the editable fields of tx. The WHERE clause
// includes user_id, so a row owned by someone else is indistinguishable from
// a missing one.
func (db *DB) UpdateTransaction(ctx context.Context, tx *model.Transaction, userID string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE transactions
		 SET family_id = ?, description = ?, amount = ?, date = ?, type = ?, category = ?
		 WHERE id = ? AND user_id = ?`,
		tx.FamilyID,
		tx.Description,
		tx.Amount,
		tx.Date,
		tx.Type,
		tx.Category,
		tx.ID,
		userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating transaction %s: %w", tx.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("transaction", tx.ID)
	}
	return nil
}

func (db *DB) DeleteTransaction(ctx context.Context, id, userID string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM transactions WHERE id = ? AND user_id = ?`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting transaction %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("transaction", id)
	}
	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s rowScanner, tx *model.Transaction) error {
	var familyID sql.NullString
	err := s.Scan(
		&tx.ID,
		&tx.UserID,
		&familyID,
		&tx.Description,
		&tx.Amount,
		&tx.Date,
		&tx.Type,
		&tx.Category,
		&tx.CreatedAt,
	)
	if err != nil {
		return err
	}
	if familyID.Valid {
		tx.FamilyID = &familyID.String
	}
	return nil
}
