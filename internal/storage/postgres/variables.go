package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/singleflight"

	"github.com/cory-johannsen/draconic/internal/scripting"
)

// ErrGvarNotFound is returned when a global variable does not exist or is not
// owned by the caller.
var ErrGvarNotFound = errors.New("gvar not found")

// VariableRepository stores uvars, svars and gvars. It implements
// scripting.VariableStore.
type VariableRepository struct {
	db     *pgxpool.Pool
	limits scripting.VarLimits
	gvars  singleflight.Group
}

// NewVariableRepository creates a VariableRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewVariableRepository(db *pgxpool.Pool, limits scripting.VarLimits) *VariableRepository {
	return &VariableRepository{db: db, limits: limits}
}

// Uvars returns every user variable owned by userID.
//
// Postcondition: Returns a non-nil map (may be empty) or a non-nil error.
func (r *VariableRepository) Uvars(ctx context.Context, userID string) (map[string]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT name, value FROM uvars WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying uvars: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("scanning uvar: %w", err)
		}
		out[name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating uvars: %w", err)
	}
	return out, nil
}

// SetUvar creates or replaces one user variable.
//
// Postcondition: Returns ErrValueTooLong if value exceeds the uvar limit.
func (r *VariableRepository) SetUvar(ctx context.Context, userID, name, value string) error {
	if err := checkLength("uvar", value, r.limits.Uvar); err != nil {
		return err
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO uvars (user_id, name, value)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, name) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		userID, name, value,
	)
	if err != nil {
		return fmt.Errorf("upserting uvar: %w", err)
	}
	return nil
}

// DeleteUvar removes one user variable. Deleting a missing variable is not an error.
func (r *VariableRepository) DeleteUvar(ctx context.Context, userID, name string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM uvars WHERE user_id = $1 AND name = $2`, userID, name); err != nil {
		return fmt.Errorf("deleting uvar: %w", err)
	}
	return nil
}

// Svar returns one server variable.
func (r *VariableRepository) Svar(ctx context.Context, guildID, name string) (string, bool, error) {
	var value string
	err := r.db.QueryRow(ctx,
		`SELECT value FROM svars WHERE guild_id = $1 AND name = $2`,
		guildID, name,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("querying svar: %w", err)
	}
	return value, true, nil
}

// SetSvar creates or replaces one server variable.
//
// Postcondition: Returns ErrValueTooLong if value exceeds the svar limit.
func (r *VariableRepository) SetSvar(ctx context.Context, guildID, name, value string) error {
	if err := checkLength("svar", value, r.limits.Svar); err != nil {
		return err
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO svars (guild_id, name, value)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (guild_id, name) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		guildID, name, value,
	)
	if err != nil {
		return fmt.Errorf("upserting svar: %w", err)
	}
	return nil
}

// DeleteSvar removes one server variable.
func (r *VariableRepository) DeleteSvar(ctx context.Context, guildID, name string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM svars WHERE guild_id = $1 AND name = $2`, guildID, name); err != nil {
		return fmt.Errorf("deleting svar: %w", err)
	}
	return nil
}

// Gvar returns a global variable by id. Concurrent reads of the same id
// share one query. Ids that are not UUIDs do not exist.
func (r *VariableRepository) Gvar(ctx context.Context, id string) (string, bool, error) {
	key, err := uuid.Parse(id)
	if err != nil {
		return "", false, nil
	}
	v, err, _ := r.gvars.Do(key.String(), func() (any, error) {
		var value string
		err := r.db.QueryRow(ctx, `SELECT value FROM gvars WHERE id = $1`, key).Scan(&value)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("querying gvar: %w", err)
		}
		return &value, nil
	})
	if err != nil {
		return "", false, err
	}
	value, ok := v.(*string)
	if !ok || value == nil {
		return "", false, nil
	}
	return *value, true, nil
}

// CreateGvar stores a new global variable and returns its generated id.
//
// Postcondition: Returns ErrValueTooLong if value exceeds the gvar limit.
func (r *VariableRepository) CreateGvar(ctx context.Context, ownerID, value string) (string, error) {
	if err := checkLength("gvar", value, r.limits.Gvar); err != nil {
		return "", err
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generating gvar id: %w", err)
	}
	if _, err := r.db.Exec(ctx,
		`INSERT INTO gvars (id, owner_id, value) VALUES ($1, $2, $3)`,
		id, ownerID, value,
	); err != nil {
		return "", fmt.Errorf("inserting gvar: %w", err)
	}
	return id.String(), nil
}

// UpdateGvar replaces the value of a global variable owned by ownerID.
//
// Postcondition: Returns ErrGvarNotFound if no such gvar is owned by ownerID.
func (r *VariableRepository) UpdateGvar(ctx context.Context, id, ownerID, value string) error {
	if err := checkLength("gvar", value, r.limits.Gvar); err != nil {
		return err
	}
	key, err := uuid.Parse(id)
	if err != nil {
		return ErrGvarNotFound
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE gvars SET value = $3, updated_at = NOW() WHERE id = $1 AND owner_id = $2`,
		key, ownerID, value,
	)
	if err != nil {
		return fmt.Errorf("updating gvar: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrGvarNotFound
	}
	return nil
}

// DeleteGvar removes a global variable owned by ownerID.
//
// Postcondition: Returns ErrGvarNotFound if no such gvar is owned by ownerID.
func (r *VariableRepository) DeleteGvar(ctx context.Context, id, ownerID string) error {
	key, err := uuid.Parse(id)
	if err != nil {
		return ErrGvarNotFound
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM gvars WHERE id = $1 AND owner_id = $2`, key, ownerID)
	if err != nil {
		return fmt.Errorf("deleting gvar: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrGvarNotFound
	}
	return nil
}
