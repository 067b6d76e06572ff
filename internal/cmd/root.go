package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	. "github.com/defval/di"
	"github.com/getsentry/raven-go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ely.by/mcauth/internal/di"
	"ely.by/mcauth/internal/otel"
	"ely.by/mcauth/internal/session"
	"ely.by/mcauth/internal/version"
)

var (
	configFile   string
	verbose      bool
	otelShutdown func(context.Context) error
)

var RootCmd = &cobra.Command{
	Use:           "mcauth",
	Short:         "Authenticates game accounts and resolves verified game profiles",
	Version:       version.Version(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configFile != "" {
			viper.SetConfigFile(configFile)
			if err := viper.ReadInConfig(); err != nil {
				return fmt.Errorf("unable to read the config: %w", err)
			}
		}

		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}

		shutdown, err := otel.SetupOTelSDK(cmd.Context(), level)
		if err != nil {
			return err
		}

		otelShutdown = shutdown

		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if otelShutdown == nil {
			return nil
		}

		return otelShutdown(context.Background())
	},
}

func shouldGetContainer() *Container {
	container, err := di.New()
	if err != nil {
		panic(err)
	}

	// Initializes the error reporting, when configured
	var sentry *raven.Client
	err = container.Resolve(&sentry)
	if err != nil {
		panic(err)
	}

	return container
}

// resolve fills every target with a value from the container
func resolve(container *Container, targets ...any) error {
	for _, target := range targets {
		if err := container.Resolve(target); err != nil {
			return err
		}
	}

	return nil
}

// describeError prefixes the error with its category. Failures which aren't caused
// by the user are reported to sentry
func describeError(err error) error {
	category := session.Classify(err)
	if category == session.CategoryServiceProblem || category == session.CategoryUnknown {
		raven.CaptureErrorAndWait(err, map[string]string{"category": category.String()})
	}

	return fmt.Errorf("%s: %w", category, err)
}

func printJSON(cmd *cobra.Command, value any) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")

	return encoder.Encode(value)
}

func init() {
	cobra.OnInitialize(initConfig)
	RootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to a config file (yaml, json or toml)")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug messages")
}

func initConfig() {
	viper.AutomaticEnv()
	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)
}
