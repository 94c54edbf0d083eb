package db

import (
	"context"
	"database/sql"
	"errors"

	"heelbid-auction-service/internal/domain/shared"

	"github.com/google/uuid"
)

// ProfileRepository implements outbound.ProfileRepository on the profile table
type ProfileRepository struct {
	conn *Connection
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(conn *Connection) *ProfileRepository {
	return &ProfileRepository{conn: conn}
}

// GetByID retrieves a profile by user ID
func (r *ProfileRepository) GetByID(ctx context.Context, id uuid.UUID) (*shared.Profile, error) {
	query := `SELECT id, username, display_name FROM profile WHERE id = $1`

	var profile shared.Profile
	if err := r.conn.GetDB().GetContext(ctx, &profile, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrProfileNotFound
		}
		return nil, shared.NewStoreError("get profile", err)
	}
	return &profile, nil
}

// Upsert creates the profile or refreshes its display name
func (r *ProfileRepository) Upsert(ctx context.Context, profile *shared.Profile) error {
	query := `
		INSERT INTO profile (id, username, display_name)
		VALUES (:id, :username, :display_name)
		ON CONFLICT (id) DO UPDATE
		SET display_name = CASE WHEN EXCLUDED.display_name <> '' THEN EXCLUDED.display_name ELSE profile.display_name END,
		    username = CASE WHEN EXCLUDED.username <> '' THEN EXCLUDED.username ELSE profile.username END
	`

	if _, err := r.conn.GetDB().NamedExecContext(ctx, query, profile); err != nil {
		return shared.NewStoreError("upsert profile", err)
	}
	return nil
}
