package postgres_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/draconic/internal/scripting"
	"github.com/cory-johannsen/draconic/internal/storage/postgres"
	"github.com/cory-johannsen/draconic/internal/testutil"
)

var (
	_ scripting.VariableStore = (*postgres.VariableRepository)(nil)
	_ scripting.AliasStore    = (*postgres.ScriptRepository)(nil)
	_ scripting.SnippetStore  = (*postgres.ScriptRepository)(nil)
)

func uniqueID(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano())
}

func TestVariableRepository_Uvars(t *testing.T) {
	repo := postgres.NewVariableRepository(testutil.NewPool(t), scripting.DefaultVarLimits())
	ctx := context.Background()
	user := uniqueID("user")

	got, err := repo.Uvars(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, repo.SetUvar(ctx, user, "color", "red"))
	require.NoError(t, repo.SetUvar(ctx, user, "size", "large"))
	require.NoError(t, repo.SetUvar(ctx, user, "color", "blue"))
	require.NoError(t, repo.SetUvar(ctx, uniqueID("other"), "color", "green"))

	got, err = repo.Uvars(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"color": "blue", "size": "large"}, got)

	require.NoError(t, repo.DeleteUvar(ctx, user, "color"))
	require.NoError(t, repo.DeleteUvar(ctx, user, "missing"))
	got, err = repo.Uvars(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"size": "large"}, got)
}

func TestVariableRepository_UvarTooLong(t *testing.T) {
	repo := postgres.NewVariableRepository(testutil.NewPool(t), scripting.VarLimits{Uvar: 3})
	err := repo.SetUvar(context.Background(), "u", "x", "abcd")
	assert.ErrorIs(t, err, postgres.ErrValueTooLong)
}

func TestVariableRepository_Svars(t *testing.T) {
	repo := postgres.NewVariableRepository(testutil.NewPool(t), scripting.DefaultVarLimits())
	ctx := context.Background()
	guild := uniqueID("guild")

	_, ok, err := repo.Svar(ctx, guild, "dc")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.SetSvar(ctx, guild, "dc", "15"))
	v, ok, err := repo.Svar(ctx, guild, "dc")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "15", v)

	require.NoError(t, repo.DeleteSvar(ctx, guild, "dc"))
	_, ok, err = repo.Svar(ctx, guild, "dc")
	require.NoError(t, err)
	assert.False(t, ok)

	err = repo.SetSvar(ctx, guild, "big", strings.Repeat("x", scripting.DefaultVarLimits().Svar+1))
	assert.ErrorIs(t, err, postgres.ErrValueTooLong)
}

func TestVariableRepository_Gvars(t *testing.T) {
	repo := postgres.NewVariableRepository(testutil.NewPool(t), scripting.DefaultVarLimits())
	ctx := context.Background()

	id, err := repo.CreateGvar(ctx, "owner", "hello")
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	require.NoError(t, err)

	v, ok, err := repo.Gvar(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "hello", v)

	assert.ErrorIs(t, repo.UpdateGvar(ctx, id, "intruder", "x"), postgres.ErrGvarNotFound)
	require.NoError(t, repo.UpdateGvar(ctx, id, "owner", "bye"))
	v, _, err = repo.Gvar(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "bye", v)

	require.NoError(t, repo.DeleteGvar(ctx, id, "owner"))
	_, ok, err = repo.Gvar(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.ErrorIs(t, repo.DeleteGvar(ctx, id, "owner"), postgres.ErrGvarNotFound)
}

func TestVariableRepository_GvarMalformedID(t *testing.T) {
	repo := postgres.NewVariableRepository(testutil.NewPool(t), scripting.DefaultVarLimits())
	_, ok, err := repo.Gvar(context.Background(), "not-a-uuid")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVariableRepository_ConcurrentGvarReads(t *testing.T) {
	repo := postgres.NewVariableRepository(testutil.NewPool(t), scripting.DefaultVarLimits())
	ctx := context.Background()
	id, err := repo.CreateGvar(ctx, "owner", "shared")
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]string, 16)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, _, err := repo.Gvar(ctx, id)
			if err == nil {
				results[i] = v
			}
		}()
	}
	wg.Wait()
	for _, v := range results {
		assert.Equal(t, "shared", v)
	}
}
