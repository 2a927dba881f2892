package scripting

import (
	"context"
	"fmt"
	"strconv"

	"github.com/bwmarrin/discordgo"

	"github.com/cory-johannsen/draconic/internal/character"
	"github.com/cory-johannsen/draconic/internal/signature"
)

//go:generate mockgen -destination=mock/mock_collaborators.go -package=scriptingmock github.com/cory-johannsen/draconic/internal/scripting VariableStore,CharacterProvider,SnippetStore

// CharacterProvider loads and saves the invoking user's active character.
type CharacterProvider interface {
	// Character returns the active character, or ErrNoCharacter.
	Character(ctx context.Context) (*character.Character, error)
	// Save persists c in full.
	Save(ctx context.Context, c *character.Character) error
}

// VariableStore persists user, server and global variables.
type VariableStore interface {
	Uvars(ctx context.Context, userID string) (map[string]string, error)
	SetUvar(ctx context.Context, userID, name, value string) error
	DeleteUvar(ctx context.Context, userID, name string) error
	// Svar returns a server variable; ok is false when it does not exist.
	Svar(ctx context.Context, guildID, name string) (value string, ok bool, err error)
	// Gvar returns a global variable by id; ok is false when it does not exist.
	Gvar(ctx context.Context, id string) (value string, ok bool, err error)
}

// Snippet is a named script body spliced into command arguments.
type Snippet struct {
	Name string
	Body string
}

// SnippetStore looks snippets up by name.
type SnippetStore interface {
	PersonalSnippet(ctx context.Context, userID, name string) (Snippet, bool, error)
	ServerSnippet(ctx context.Context, guildID, name string) (Snippet, bool, error)
}

// Alias is a named script invoked as a pseudo-command.
type Alias struct {
	Name string
	Body string
	// Server marks an alias owned by a guild rather than a user.
	Server bool
	// CollectionID is the id of the published collection the alias came from.
	CollectionID *[12]byte
}

// AliasStore looks aliases up by name.
type AliasStore interface {
	PersonalAlias(ctx context.Context, userID, name string) (Alias, bool, error)
	ServerAlias(ctx context.Context, guildID, name string) (Alias, bool, error)
}

// CombatState is a read-only snapshot of an initiative tracker.
type CombatState struct {
	Round      int
	Turn       int
	Combatants []string
	Current    string
}

// CombatProvider returns the channel's active combat, or nil when there is none.
type CombatProvider interface {
	Combat(ctx context.Context) (*CombatState, error)
}

// InvocationContext identifies the chat message that triggered an invocation.
type InvocationContext struct {
	MessageID  uint64
	ChannelID  uint64
	AuthorID   uint64
	AuthorName string
	// GuildID is zero for direct messages.
	GuildID uint64
	Prefix  string
	// Alias is the command name the user typed.
	Alias        string
	Scope        signature.ExecutionScope
	CollectionID *[12]byte
}

// UserKey returns the author id as a storage key.
func (c InvocationContext) UserKey() string {
	return strconv.FormatUint(c.AuthorID, 10)
}

// GuildKey returns the guild id as a storage key, or "" outside a guild.
func (c InvocationContext) GuildKey() string {
	if c.GuildID == 0 {
		return ""
	}
	return strconv.FormatUint(c.GuildID, 10)
}

// FromDiscordMessage builds an InvocationContext from a gateway message.
//
// Precondition: m must be non-nil with a non-nil Author.
// Postcondition: returns the parsed ids or an error naming the bad field.
func FromDiscordMessage(m *discordgo.Message, prefix, alias string) (InvocationContext, error) {
	if m == nil || m.Author == nil {
		return InvocationContext{}, fmt.Errorf("scripting: message has no author")
	}
	ic := InvocationContext{AuthorName: m.Author.Username, Prefix: prefix, Alias: alias}
	ids := []struct {
		name string
		raw  string
		dst  *uint64
	}{
		{"message id", m.ID, &ic.MessageID},
		{"channel id", m.ChannelID, &ic.ChannelID},
		{"author id", m.Author.ID, &ic.AuthorID},
		{"guild id", m.GuildID, &ic.GuildID},
	}
	for _, id := range ids {
		if id.raw == "" && id.dst == &ic.GuildID {
			continue
		}
		v, err := strconv.ParseUint(id.raw, 10, 64)
		if err != nil {
			return InvocationContext{}, fmt.Errorf("scripting: parsing %s %q: %w", id.name, id.raw, err)
		}
		*id.dst = v
	}
	return ic, nil
}
