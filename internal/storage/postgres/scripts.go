package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/draconic/internal/scripting"
)

// Owner kinds stored with every alias and snippet.
const (
	OwnerUser  = "user"
	OwnerGuild = "guild"
)

// ErrScriptNotFound is returned when deleting an alias or snippet that does not exist.
var ErrScriptNotFound = errors.New("script not found")

// ErrInvalidName is returned for an empty or whitespace-containing script name.
var ErrInvalidName = errors.New("invalid script name")

// ScriptRepository stores alias and snippet bodies. It implements
// scripting.AliasStore and scripting.SnippetStore.
type ScriptRepository struct {
	db      *pgxpool.Pool
	maxBody int
}

// NewScriptRepository creates a ScriptRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewScriptRepository(db *pgxpool.Pool, limits scripting.VarLimits) *ScriptRepository {
	return &ScriptRepository{db: db, maxBody: limits.Body}
}

// PersonalAlias returns the alias userID defined under name.
func (r *ScriptRepository) PersonalAlias(ctx context.Context, userID, name string) (scripting.Alias, bool, error) {
	return r.alias(ctx, OwnerUser, userID, name)
}

// ServerAlias returns the alias guildID defined under name.
func (r *ScriptRepository) ServerAlias(ctx context.Context, guildID, name string) (scripting.Alias, bool, error) {
	return r.alias(ctx, OwnerGuild, guildID, name)
}

func (r *ScriptRepository) alias(ctx context.Context, kind, owner, name string) (scripting.Alias, bool, error) {
	var (
		body       string
		collection []byte
	)
	err := r.db.QueryRow(ctx,
		`SELECT body, collection_id FROM aliases
		 WHERE owner_kind = $1 AND owner_id = $2 AND name = $3`,
		kind, owner, name,
	).Scan(&body, &collection)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return scripting.Alias{}, false, nil
		}
		return scripting.Alias{}, false, fmt.Errorf("querying alias: %w", err)
	}
	a := scripting.Alias{Name: name, Body: body, Server: kind == OwnerGuild}
	if len(collection) == 12 {
		var id [12]byte
		copy(id[:], collection)
		a.CollectionID = &id
	}
	return a, true, nil
}

// SaveAlias creates or replaces an alias.
//
// Precondition: kind must be OwnerUser or OwnerGuild.
// Postcondition: Returns ErrValueTooLong if the body exceeds the body limit,
// or ErrInvalidName for an unusable name.
func (r *ScriptRepository) SaveAlias(ctx context.Context, kind, owner string, a scripting.Alias) error {
	if err := r.check(a.Name, a.Body); err != nil {
		return err
	}
	var collection []byte
	if a.CollectionID != nil {
		collection = a.CollectionID[:]
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO aliases (owner_kind, owner_id, name, body, collection_id)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (owner_kind, owner_id, name)
		 DO UPDATE SET body = EXCLUDED.body, collection_id = EXCLUDED.collection_id, updated_at = NOW()`,
		kind, owner, a.Name, a.Body, collection,
	)
	if err != nil {
		return fmt.Errorf("upserting alias: %w", err)
	}
	return nil
}

// DeleteAlias removes an alias.
//
// Postcondition: Returns ErrScriptNotFound if it did not exist.
func (r *ScriptRepository) DeleteAlias(ctx context.Context, kind, owner, name string) error {
	return r.delete(ctx, "aliases", kind, owner, name)
}

// PersonalSnippet returns the snippet userID defined under name.
func (r *ScriptRepository) PersonalSnippet(ctx context.Context, userID, name string) (scripting.Snippet, bool, error) {
	return r.snippet(ctx, OwnerUser, userID, name)
}

// ServerSnippet returns the snippet guildID defined under name.
func (r *ScriptRepository) ServerSnippet(ctx context.Context, guildID, name string) (scripting.Snippet, bool, error) {
	return r.snippet(ctx, OwnerGuild, guildID, name)
}

func (r *ScriptRepository) snippet(ctx context.Context, kind, owner, name string) (scripting.Snippet, bool, error) {
	var body string
	err := r.db.QueryRow(ctx,
		`SELECT body FROM snippets WHERE owner_kind = $1 AND owner_id = $2 AND name = $3`,
		kind, owner, name,
	).Scan(&body)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return scripting.Snippet{}, false, nil
		}
		return scripting.Snippet{}, false, fmt.Errorf("querying snippet: %w", err)
	}
	return scripting.Snippet{Name: name, Body: body}, true, nil
}

// SaveSnippet creates or replaces a snippet.
//
// Postcondition: Returns ErrValueTooLong if the body exceeds the body limit,
// or ErrInvalidName for an unusable name.
func (r *ScriptRepository) SaveSnippet(ctx context.Context, kind, owner string, s scripting.Snippet) error {
	if err := r.check(s.Name, s.Body); err != nil {
		return err
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO snippets (owner_kind, owner_id, name, body)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (owner_kind, owner_id, name)
		 DO UPDATE SET body = EXCLUDED.body, updated_at = NOW()`,
		kind, owner, s.Name, s.Body,
	)
	if err != nil {
		return fmt.Errorf("upserting snippet: %w", err)
	}
	return nil
}

// DeleteSnippet removes a snippet.
//
// Postcondition: Returns ErrScriptNotFound if it did not exist.
func (r *ScriptRepository) DeleteSnippet(ctx context.Context, kind, owner, name string) error {
	return r.delete(ctx, "snippets", kind, owner, name)
}

// ListAliases returns the alias names owned by owner, sorted.
func (r *ScriptRepository) ListAliases(ctx context.Context, kind, owner string) ([]string, error) {
	return r.names(ctx, "aliases", kind, owner)
}

// ListSnippets returns the snippet names owned by owner, sorted.
func (r *ScriptRepository) ListSnippets(ctx context.Context, kind, owner string) ([]string, error) {
	return r.names(ctx, "snippets", kind, owner)
}

func (r *ScriptRepository) check(name, body string) error {
	if !validScriptName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return checkLength("body", body, r.maxBody)
}

// table is always one of the two literal table names above.
func (r *ScriptRepository) delete(ctx context.Context, table, kind, owner, name string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM `+table+` WHERE owner_kind = $1 AND owner_id = $2 AND name = $3`,
		kind, owner, name,
	)
	if err != nil {
		return fmt.Errorf("deleting from %s: %w", table, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrScriptNotFound
	}
	return nil
}

func (r *ScriptRepository) names(ctx context.Context, table, kind, owner string) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT name FROM `+table+` WHERE owner_kind = $1 AND owner_id = $2 ORDER BY name`,
		kind, owner,
	)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", table, err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", table, err)
	}
	return names, nil
}

func validScriptName(name string) bool {
	if name == "" || len(name) > 100 {
		return false
	}
	for _, r := range name {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			return false
		}
	}
	return true
}
