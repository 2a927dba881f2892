package postgres_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/draconic/internal/scripting"
	"github.com/cory-johannsen/draconic/internal/storage/postgres"
	"github.com/cory-johannsen/draconic/internal/testutil"
)

func TestScriptRepository_Aliases(t *testing.T) {
	repo := postgres.NewScriptRepository(testutil.NewPool(t), scripting.DefaultVarLimits())
	ctx := context.Background()
	user := uniqueID("user")
	guild := uniqueID("guild")
	coll := [12]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}

	require.NoError(t, repo.SaveAlias(ctx, postgres.OwnerUser, user, scripting.Alias{Name: "hit", Body: "echo %1%"}))
	require.NoError(t, repo.SaveAlias(ctx, postgres.OwnerGuild, guild, scripting.Alias{Name: "hit", Body: "echo server", CollectionID: &coll}))

	a, ok, err := repo.PersonalAlias(ctx, user, "hit")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "echo %1%", a.Body)
	assert.False(t, a.Server)
	assert.Nil(t, a.CollectionID)

	a, ok, err = repo.ServerAlias(ctx, guild, "hit")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, a.Server)
	require.NotNil(t, a.CollectionID)
	assert.Equal(t, coll, *a.CollectionID)

	require.NoError(t, repo.SaveAlias(ctx, postgres.OwnerUser, user, scripting.Alias{Name: "hit", Body: "echo v2"}))
	a, _, err = repo.PersonalAlias(ctx, user, "hit")
	require.NoError(t, err)
	assert.Equal(t, "echo v2", a.Body)

	names, err := repo.ListAliases(ctx, postgres.OwnerUser, user)
	require.NoError(t, err)
	assert.Equal(t, []string{"hit"}, names)

	require.NoError(t, repo.DeleteAlias(ctx, postgres.OwnerUser, user, "hit"))
	_, ok, err = repo.PersonalAlias(ctx, user, "hit")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.ErrorIs(t, repo.DeleteAlias(ctx, postgres.OwnerUser, user, "hit"), postgres.ErrScriptNotFound)
}

func TestScriptRepository_Snippets(t *testing.T) {
	repo := postgres.NewScriptRepository(testutil.NewPool(t), scripting.DefaultVarLimits())
	ctx := context.Background()
	user := uniqueID("user")

	require.NoError(t, repo.SaveSnippet(ctx, postgres.OwnerUser, user, scripting.Snippet{Name: "sneak", Body: "-d 3d6"}))
	require.NoError(t, repo.SaveSnippet(ctx, postgres.OwnerUser, user, scripting.Snippet{Name: "adv", Body: "adv"}))

	s, ok, err := repo.PersonalSnippet(ctx, user, "sneak")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "-d 3d6", s.Body)

	_, ok, err = repo.ServerSnippet(ctx, user, "sneak")
	require.NoError(t, err)
	assert.False(t, ok, "personal snippets are not server snippets")

	names, err := repo.ListSnippets(ctx, postgres.OwnerUser, user)
	require.NoError(t, err)
	assert.Equal(t, []string{"adv", "sneak"}, names)
}

func TestScriptRepository_Validation(t *testing.T) {
	repo := postgres.NewScriptRepository(testutil.NewPool(t), scripting.VarLimits{Body: 10})
	ctx := context.Background()

	err := repo.SaveSnippet(ctx, postgres.OwnerUser, "u", scripting.Snippet{Name: "long", Body: strings.Repeat("x", 11)})
	assert.ErrorIs(t, err, postgres.ErrValueTooLong)

	err = repo.SaveAlias(ctx, postgres.OwnerUser, "u", scripting.Alias{Name: "two words", Body: "x"})
	assert.ErrorIs(t, err, postgres.ErrInvalidName)
}
