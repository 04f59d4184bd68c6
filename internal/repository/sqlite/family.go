package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/family-finance/internal/apperror"
	"github.com/sakif/family-finance/internal/model"
	"github.com/sakif/family-finance/internal/repository"
)

var _ repository.FamilyRepository = (*DB)(nil)

const familyColumns = `id, name, join_code, created_by, created_at`

// CreateFamilyWithAdmin inserts the family and its creator's admin membership
// in a single SQL transaction, so a family can never exist without the
// membership that lets its creator see it. family.CreatedBy and
// family.JoinCode must be set by the caller.
func (db *DB) CreateFamilyWithAdmin(ctx context.Context, family *model.FamilyGroup) error {
	family.ID = xid.New().String()
	family.CreatedAt = time.Now()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning family tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO family_groups (id, name, join_code, created_by, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		family.ID, family.Name, family.JoinCode, family.CreatedBy, family.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("join code", family.JoinCode)
		}
		return fmt.Errorf("sqlite: creating family: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO family_members (family_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)`,
		family.ID, family.CreatedBy, model.RoleAdmin, family.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: adding family creator: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing family %s: %w", family.ID, err)
	}
	return nil
}

func (db *DB) GetFamily(ctx context.Context, id string) (*model.FamilyGroup, error) {
	f, err := scanFamily(db.conn.QueryRowContext(ctx,
		`SELECT `+familyColumns+` FROM family_groups WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("family", id)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting family %s: %w", id, err)
	}
	return f, nil
}

// GetFamilyByJoinCode expects an already normalised code.
func (db *DB) GetFamilyByJoinCode(ctx context.Context, code string) (*model.FamilyGroup, error) {
	f, err := scanFamily(db.conn.QueryRowContext(ctx,
		`SELECT `+familyColumns+` FROM family_groups WHERE join_code = ?`, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("family", code)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting family by join code: %w", err)
	}
	return f, nil
}

// ListFamiliesByIDs returns the families among ids, oldest first.
func (db *DB) ListFamiliesByIDs(ctx context.Context, ids []string) ([]model.FamilyGroup, error) {
	families := make([]model.FamilyGroup, 0, len(ids))
	if len(ids) == 0 {
		return families, nil
	}

	placeholders, args := inClause(ids)
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+familyColumns+` FROM family_groups
		 WHERE id IN (`+placeholders+`)
		 ORDER BY created_at ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing families: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var f model.FamilyGroup
		if err := rows.Scan(&f.ID, &f.Name, &f.JoinCode, &f.CreatedBy, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning family row: %w", err)
		}
		families = append(families, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating families: %w", err)
	}
	return families, nil
}

func (db *DB) GetMembership(ctx context.Context, familyID, userID string) (*model.Membership, error) {
	var m model.Membership
	err := db.conn.QueryRowContext(ctx,
		`SELECT family_id, user_id, role, joined_at FROM family_members
		 WHERE family_id = ? AND user_id = ?`,
		familyID, userID,
	).Scan(&m.FamilyID, &m.UserID, &m.Role, &m.JoinedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("membership", familyID+"/"+userID)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting membership: %w", err)
	}
	return &m, nil
}

// AddMember inserts the membership unless the (family, user) pair already
// exists, in which case the existing row and its role are left alone.
func (db *DB) AddMember(ctx context.Context, m *model.Membership) error {
	if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now()
	}
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO family_members (family_id, user_id, role, joined_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(family_id, user_id) DO NOTHING`,
		m.FamilyID, m.UserID, m.Role, m.JoinedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: adding member %s to family %s: %w", m.UserID, m.FamilyID, err)
	}
	return nil
}

func (db *DB) RemoveMember(ctx context.Context, familyID, userID string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM family_members WHERE family_id = ? AND user_id = ?`,
		familyID, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: removing member %s from family %s: %w", userID, familyID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("membership", familyID+"/"+userID)
	}
	return nil
}

func (db *DB) SetMemberRole(ctx context.Context, familyID, userID string, role model.Role) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE family_members SET role = ? WHERE family_id = ? AND user_id = ?`,
		role, familyID, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: setting role of %s in family %s: %w", userID, familyID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("membership", familyID+"/"+userID)
	}
	return nil
}

func (db *DB) ListMembershipsForUser(ctx context.Context, userID string) ([]model.Membership, error) {
	return db.listMemberships(ctx,
		`SELECT family_id, user_id, role, joined_at FROM family_members
		 WHERE user_id = ? ORDER BY joined_at ASC`, userID)
}

func (db *DB) ListMembers(ctx context.Context, familyID string) ([]model.Membership, error) {
	return db.listMemberships(ctx,
		`SELECT family_id, user_id, role, joined_at FROM family_members
		 WHERE family_id = ? ORDER BY joined_at ASC`, familyID)
}

func (db *DB) CountAdmins(ctx context.Context, familyID string) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM family_members WHERE family_id = ? AND role = ?`,
		familyID, model.RoleAdmin,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting admins of family %s: %w", familyID, err)
	}
	return n, nil
}

func (db *DB) listMemberships(ctx context.Context, query, arg string) ([]model.Membership, error) {
	rows, err := db.conn.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing memberships: %w", err)
	}
	defer rows.Close()

	memberships := make([]model.Membership, 0)
	for rows.Next() {
		var m model.Membership
		if err := rows.Scan(&m.FamilyID, &m.UserID, &m.Role, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning membership row: %w", err)
		}
		memberships = append(memberships, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating memberships: %w", err)
	}
	return memberships, nil
}

func scanFamily(row *sql.Row) (*model.FamilyGroup, error) {
	var f model.FamilyGroup
	if err := row.Scan(&f.ID, &f.Name, &f.JoinCode, &f.CreatedBy, &f.CreatedAt); err != nil {
		return nil, err
	}
	return &f, nil
}
