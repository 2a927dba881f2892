// Package redis stores character sheets and combat snapshots as JSON
// documents in Redis.
package redis

import (
	"context"
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
	goredis "github.com/redis/go-redis/v9"

	"github.com/cory-johannsen/draconic/internal/character"
	"github.com/cory-johannsen/draconic/internal/config"
	"github.com/cory-johannsen/draconic/internal/scripting"
)

// ErrCharacterNotFound is returned when a character id has no document.
var ErrCharacterNotFound = errors.New("character not found")

// Store reads and writes character and combat documents.
type Store struct {
	client *goredis.Client
	prefix string
}

// NewClient creates a go-redis client from cfg.
func NewClient(cfg config.RedisConfig) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// NewStore creates a Store whose keys all start with prefix.
//
// Precondition: client must be non-nil.
func NewStore(client *goredis.Client, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

func (s *Store) key(parts ...string) string {
	k := s.prefix
	for _, p := range parts {
		if k != "" {
			k += ":"
		}
		k += p
	}
	return k
}

// Get loads a character by id.
//
// Postcondition: Returns ErrCharacterNotFound if no document exists.
func (s *Store) Get(ctx context.Context, id string) (*character.Character, error) {
	data, err := s.client.Get(ctx, s.key("character", id)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, ErrCharacterNotFound
		}
		return nil, fmt.Errorf("getting character: %w", err)
	}
	var c character.Character
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decoding character %s: %w", id, err)
	}
	return &c, nil
}

// Put writes c in full and indexes it under its owner.
//
// Precondition: c must pass Validate.
func (s *Store) Put(ctx context.Context, c *character.Character) error {
	if err := c.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding character: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key("character", c.ID), data, 0)
	if c.OwnerID != "" {
		pipe.SAdd(ctx, s.key("owner", c.OwnerID), c.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("saving character: %w", err)
	}
	return nil
}

// List returns the ids of every character owned by ownerID.
func (s *Store) List(ctx context.Context, ownerID string) ([]string, error) {
	ids, err := s.client.SMembers(ctx, s.key("owner", ownerID)).Result()
	if err != nil {
		return nil, fmt.Errorf("listing characters: %w", err)
	}
	return ids, nil
}

// SetActive marks id as ownerID's active character.
//
// Postcondition: Returns ErrCharacterNotFound if id has no document.
func (s *Store) SetActive(ctx context.Context, ownerID, id string) error {
	n, err := s.client.Exists(ctx, s.key("character", id)).Result()
	if err != nil {
		return fmt.Errorf("checking character: %w", err)
	}
	if n == 0 {
		return ErrCharacterNotFound
	}
	if err := s.client.Set(ctx, s.key("active", ownerID), id, 0).Err(); err != nil {
		return fmt.Errorf("setting active character: %w", err)
	}
	return nil
}

// Active loads ownerID's active character.
//
// Postcondition: Returns scripting.ErrNoCharacter when none is set or the
// active id no longer has a document.
func (s *Store) Active(ctx context.Context, ownerID string) (*character.Character, error) {
	id, err := s.client.Get(ctx, s.key("active", ownerID)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, scripting.ErrNoCharacter
		}
		return nil, fmt.Errorf("getting active character: %w", err)
	}
	c, err := s.Get(ctx, id)
	if errors.Is(err, ErrCharacterNotFound) {
		return nil, scripting.ErrNoCharacter
	}
	return c, err
}

// Characters returns a scripting.CharacterProvider bound to ownerID.
func (s *Store) Characters(ownerID string) scripting.CharacterProvider {
	return &activeCharacter{store: s, owner: ownerID}
}

type activeCharacter struct {
	store *Store
	owner string
}

func (a *activeCharacter) Character(ctx context.Context) (*character.Character, error) {
	return a.store.Active(ctx, a.owner)
}

func (a *activeCharacter) Save(ctx context.Context, c *character.Character) error {
	return a.store.Put(ctx, c)
}

// PutCombat stores the combat snapshot of channelID. A nil state ends combat.
func (s *Store) PutCombat(ctx context.Context, channelID string, state *scripting.CombatState) error {
	key := s.key("combat", channelID)
	if state == nil {
		if err := s.client.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("ending combat: %w", err)
		}
		return nil
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding combat: %w", err)
	}
	if err := s.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("saving combat: %w", err)
	}
	return nil
}

// Combat returns a scripting.CombatProvider bound to channelID.
func (s *Store) Combat(channelID string) scripting.CombatProvider {
	return combatProvider{store: s, channel: channelID}
}

type combatProvider struct {
	store   *Store
	channel string
}

func (p combatProvider) Combat(ctx context.Context) (*scripting.CombatState, error) {
	data, err := p.store.client.Get(ctx, p.store.key("combat", p.channel)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting combat: %w", err)
	}
	var state scripting.CombatState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decoding combat: %w", err)
	}
	return &state, nil
}
