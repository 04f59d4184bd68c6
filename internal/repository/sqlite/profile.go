package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/family-finance/internal/apperror"
	"github.com/sakif/family-finance/internal/model"
	"github.com/sakif/family-finance/internal/repository"
)

var _ repository.ProfileRepository = (*DB)(nil)

const profileColumns = `id, name, email, avatar_url, role, created_at, updated_at`

func (db *DB) GetProfile(ctx context.Context, id string) (*model.Profile, error) {
	var p model.Profile
	err := db.conn.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.Email, &p.AvatarURL, &p.Role, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("profile", id)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting profile %s: %w", id, err)
	}
	return &p, nil
}

// GetProfilesByIDs returns the profiles that exist among ids, in no
// particular order. Missing ids are simply absent from the result.
func (db *DB) GetProfilesByIDs(ctx context.Context, ids []string) ([]model.Profile, error) {
	profiles := make([]model.Profile, 0, len(ids))
	if len(ids) == 0 {
		return profiles, nil
	}

	placeholders, args := inClause(ids)
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing profiles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p model.Profile
		if err := rows.Scan(&p.ID, &p.Name, &p.Email, &p.AvatarURL, &p.Role, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning profile row: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating profiles: %w", err)
	}
	return profiles, nil
}

// UpsertProfile writes profile keyed by its ID. On update the original
// created_at is kept.
func (db *DB) UpsertProfile(ctx context.Context, profile *model.Profile) error {
	if !profile.Role.Valid() {
		profile.Role = model.RoleAdmin
	}
	now := time.Now()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO profiles (id, name, email, avatar_url, role, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		     name = excluded.name,
		     email = excluded.email,
		     avatar_url = excluded.avatar_url,
		     role = excluded.role,
		     updated_at = excluded.updated_at`,
		profile.ID,
		profile.Name,
		profile.Email,
		profile.AvatarURL,
		profile.Role,
		profile.CreatedAt,
		profile.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: upserting profile %s: %w", profile.ID, err)
	}
	return nil
}
