package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/draconic/internal/character"
	"github.com/cory-johannsen/draconic/internal/config"
	"github.com/cory-johannsen/draconic/internal/dice"
	"github.com/cory-johannsen/draconic/internal/observability"
	"github.com/cory-johannsen/draconic/internal/scripting"
	"github.com/cory-johannsen/draconic/internal/signature"
	"github.com/cory-johannsen/draconic/internal/storage/postgres"
	"github.com/cory-johannsen/draconic/internal/storage/redis"
)

// discordEpoch is the first millisecond of 2015 in Unix time.
const discordEpoch = 1420070400000

var expandFlags struct {
	user      uint64
	guild     uint64
	channel   uint64
	alias     string
	asArgs    bool
	offline   bool
	character string
}

var expandCmd = &cobra.Command{
	Use:   "expand [text]",
	Short: "Expand script substitutions in text",
	Long: `Expand every substitution in text as one invocation and print the result.
Text is read from stdin when no argument is given. With --alias the text is
the alias's arguments.

  Example: draconic expand --offline --character bob.yaml "{{character().hp}}"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExpand,
}

func init() {
	f := expandCmd.Flags()
	f.Uint64Var(&expandFlags.user, "user", 1, "invoking user id")
	f.Uint64Var(&expandFlags.guild, "guild", 0, "guild id (0 for a direct message)")
	f.Uint64Var(&expandFlags.channel, "channel", 1, "channel id")
	f.StringVar(&expandFlags.alias, "alias", "", "invoke the named alias with text as its arguments")
	f.BoolVar(&expandFlags.asArgs, "args", false, "split text into arguments and expand snippets first")
	f.BoolVar(&expandFlags.offline, "offline", false, "run without Postgres or Redis")
	f.StringVar(&expandFlags.character, "character", "", "YAML character sheet to use; changes are written back")
}

func runExpand(cmd *cobra.Command, args []string) error {
	text, err := inputText(cmd, args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	metrics, shutdown, err := observability.InitMetricsProvider()
	if err != nil {
		return fmt.Errorf("initializing metrics: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	codec, err := signature.NewCodec([]byte(cfg.Signing.Secret))
	if err != nil {
		return err
	}
	opts := []scripting.ExpanderOption{scripting.WithCodec(codec), scripting.WithMetrics(metrics)}

	inv := scripting.Invocation{Context: scripting.InvocationContext{
		MessageID: uint64(time.Now().UnixMilli()-discordEpoch) << 22,
		ChannelID: expandFlags.channel,
		AuthorID:  expandFlags.user,
		GuildID:   expandFlags.guild,
		Prefix:    "!",
		Scope:     signature.ScopeCommandTest,
	}}

	if !expandFlags.offline {
		cleanup, storeOpts, err := connectStores(ctx, cfg, logger, &inv)
		if err != nil {
			return err
		}
		defer cleanup()
		opts = append(opts, storeOpts...)
	}
	if expandFlags.character != "" {
		fc, err := loadCharacterFile(expandFlags.character)
		if err != nil {
			return err
		}
		inv.Characters = fc
	}

	x := scripting.NewExpander(cfg.Scripting, dice.NewLoggedRoller(dice.NewCryptoSource(), logger), logger, opts...)

	var res scripting.Result
	switch {
	case expandFlags.alias != "":
		res, err = x.ExpandAlias(ctx, inv, expandFlags.alias, text)
	case expandFlags.asArgs:
		var parts []string
		if parts, err = scripting.ArgSplit(text); err == nil {
			res, err = x.ExpandArgs(ctx, inv, parts)
		}
	default:
		res, err = x.Expand(ctx, inv, text)
	}

	for _, w := range res.Warnings {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning:", w)
	}
	if err != nil {
		msg, _ := scripting.UserMessage(err)
		var ee *scripting.EvaluationError
		if verbose && errors.As(err, &ee) {
			fmt.Fprintln(cmd.ErrOrStderr(), ee.AuthorDetail(1500))
		}
		return errors.New(msg)
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.Text)
	return nil
}

func inputText(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}

// connectStores opens Postgres and Redis and binds the invocation's
// character and combat providers.
func connectStores(ctx context.Context, cfg config.Config, logger *zap.Logger, inv *scripting.Invocation) (func(), []scripting.ExpanderOption, error) {
	dbStart := time.Now()
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}
	logger.Debug("database connected",
		zap.String("host", cfg.Database.Host),
		zap.Int("port", cfg.Database.Port),
		zap.Duration("elapsed", time.Since(dbStart)),
	)

	client := redis.NewClient(cfg.Redis)
	if err := client.Ping(ctx).Err(); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("connecting to redis: %w", err)
	}
	store := redis.NewStore(client, cfg.Redis.KeyPrefix)
	inv.Characters = store.Characters(inv.Context.UserKey())
	inv.Combat = store.Combat(strconv.FormatUint(inv.Context.ChannelID, 10))

	limits := scripting.VarLimitsFromConfig(cfg.Scripting)
	scripts := postgres.NewScriptRepository(pool.DB(), limits)
	opts := []scripting.ExpanderOption{
		scripting.WithVariableStore(postgres.NewVariableRepository(pool.DB(), limits)),
		scripting.WithSnippetStore(scripts),
		scripting.WithAliasStore(scripts),
	}
	cleanup := func() {
		_ = client.Close()
		pool.Close()
	}
	return cleanup, opts, nil
}

// fileCharacter serves a character sheet from a YAML file and writes it back
// on save.
type fileCharacter struct {
	path string
	c    *character.Character
}

func loadCharacterFile(path string) (*fileCharacter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading character: %w", err)
	}
	c, err := character.LoadFromBytes(data)
	if err != nil {
		return nil, err
	}
	return &fileCharacter{path: path, c: c}, nil
}

func (f *fileCharacter) Character(context.Context) (*character.Character, error) {
	return f.c.Clone(), nil
}

func (f *fileCharacter) Save(_ context.Context, c *character.Character) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding character: %w", err)
	}
	if err := os.WriteFile(f.path, data, 0o644); err != nil {
		return fmt.Errorf("writing character: %w", err)
	}
	f.c = c.Clone()
	return nil
}
