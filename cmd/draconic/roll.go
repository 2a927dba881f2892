package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cory-johannsen/draconic/internal/config"
	"github.com/cory-johannsen/draconic/internal/dice"
)

var (
	rollSeed        uint64
	rollConsolidate bool
)

var rollCmd = &cobra.Command{
	Use:   "roll [expression...]",
	Short: "Roll a dice expression",
	Long: `Roll a dice expression and print its Markdown result.

  Example: draconic roll 4d6kh3 + 2`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRoll,
}

func init() {
	rollCmd.Flags().Uint64Var(&rollSeed, "seed", 0, "seed for reproducible rolls (0 uses crypto randomness)")
	rollCmd.Flags().BoolVar(&rollConsolidate, "consolidate", false, "collapse the result into one term per die size")
}

func runRoll(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(config.LoggingConfig{Level: "warn", Format: "console"})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	src := dice.NewCryptoSource()
	if rollSeed != 0 {
		src = dice.NewSeededSource(rollSeed)
	}
	res, err := dice.NewLoggedRoller(src, logger).Roll(strings.Join(args, " "))
	if err != nil {
		return err
	}
	if rollConsolidate {
		res = dice.Consolidate(res)
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.Result)
	return nil
}
