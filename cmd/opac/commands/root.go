package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"opacbridge/internal/components/telemetry"
	"opacbridge/internal/i18n"
	"opacbridge/internal/opac"

	"github.com/spf13/cobra"
)

var (
	configPath  *string
	libraryFlag *string
	debugFlag   *bool
)

// env is set up before any subcommand runs.
var env *environment

var rootCmd = &cobra.Command{
	Use:           "opac",
	Short:         "opac is a CLI for searching library catalogs and managing library accounts.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		telemetry.InitSlog(*debugFlag)

		cfg, err := readConfig(*configPath, cmd.Flags().Changed("config"))
		if err != nil {
			return err
		}
		if *debugFlag {
			cfg.Telemetry.Debug = true
		}
		env, err = newEnvironment(cmd.Context(), cfg)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if env != nil {
			env.Close()
		}
	},
}

func init() {
	configPath = rootCmd.PersistentFlags().String("config", "opac.json5", "The config file, searched upwards from the working directory unless given.")
	libraryFlag = rootCmd.PersistentFlags().StringP("library", "l", "", "The ident of the library to use, defaults to the first configured one.")
	debugFlag = rootCmd.PersistentFlags().Bool("debug", false, "Log debug output.")
}

func ExecuteContext(ctx context.Context) {
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return
	}

	messages := i18n.NewTable("en")
	if env != nil {
		env.Close()
		messages = env.strings
	}
	var opacErr *opac.Error
	if errors.As(err, &opacErr) {
		slog.Debug("command failed", "kind", opacErr.Kind.String(), "err", err)
		fmt.Fprintln(os.Stderr, opacErr.Display(messages))
	} else {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(1)
}
