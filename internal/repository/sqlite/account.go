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

var _ repository.AccountRepository = (*DB)(nil)

const accountColumns = `id, email, password_hash, name, github_id, created_at`

// CreateAccount inserts a password account. Emails are stored lower-cased;
// an address that is already registered returns apperror.ErrConflict.
func (db *DB) CreateAccount(ctx context.Context, account *model.Account) error {
	account.ID = xid.New().String()
	account.Email = strings.ToLower(strings.TrimSpace(account.Email))
	account.CreatedAt = time.Now()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO accounts (id, email, password_hash, name, github_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		account.ID,
		account.Email,
		account.PasswordHash,
		account.Name,
		account.GitHubID,
		account.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("account", account.Email)
		}
		return fmt.Errorf("sqlite: creating account: %w", err)
	}
	return nil
}

// GetAccountByEmail looks an account up case-insensitively.
func (db *DB) GetAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	a, err := scanAccount(db.conn.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = ? AND email <> ''`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("account", email)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting account by email: %w", err)
	}
	return a, nil
}

func (db *DB) GetAccountByID(ctx context.Context, id string) (*model.Account, error) {
	a, err := scanAccount(db.conn.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("account", id)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting account %s: %w", id, err)
	}
	return a, nil
}

// UpsertGitHubAccount inserts or refreshes the account linked to
// account.GitHubID, keeping the internal ID and creation time of an existing
// row so the user's profile, memberships and transactions stay attached.
func (db *DB) UpsertGitHubAccount(ctx context.Context, account *model.Account) error {
	if account.GitHubID == nil {
		return apperror.ValidationFailed("github_id", "is required")
	}
	account.Email = strings.ToLower(strings.TrimSpace(account.Email))

	var existingID string
	var createdAt time.Time
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, created_at FROM accounts WHERE github_id = ?`, *account.GitHubID,
	).Scan(&existingID, &createdAt)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("sqlite: looking up account by github_id %d: %w", *account.GitHubID, err)
	}

	if existingID != "" {
		account.ID = existingID
		account.CreatedAt = createdAt
		_, err = db.conn.ExecContext(ctx,
			`UPDATE accounts SET name = ? WHERE id = ?`,
			account.Name, account.ID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: updating account %s: %w", account.ID, err)
		}
		return nil
	}

	account.ID = xid.New().String()
	account.CreatedAt = time.Now()
	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO accounts (id, email, password_hash, name, github_id, created_at)
		 VALUES (?, ?, '', ?, ?, ?)`,
		account.ID,
		account.Email,
		account.Name,
		*account.GitHubID,
		account.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("account", account.Email)
		}
		return fmt.Errorf("sqlite: inserting account (githubID=%d): %w", *account.GitHubID, err)
	}
	return nil
}

func scanAccount(row *sql.Row) (*model.Account, error) {
	var a model.Account
	var githubID sql.NullInt64
	if err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.Name, &githubID, &a.CreatedAt); err != nil {
		return nil, err
	}
	if githubID.Valid {
		a.GitHubID = &githubID.Int64
	}
	return &a, nil
}
