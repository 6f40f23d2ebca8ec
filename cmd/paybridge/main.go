package main

import (
	"fmt"
	"os"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/paybridge/internal/clock"
	"github.com/railzwaylabs/paybridge/internal/config"
	"github.com/railzwaylabs/paybridge/internal/observability"
	"github.com/railzwaylabs/paybridge/internal/payment"
	"github.com/railzwaylabs/paybridge/internal/server"
	"github.com/railzwaylabs/paybridge/internal/storage"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootOptions struct {
	configFile string
	envFile    string
}

func (o *rootOptions) load() (config.Config, error) {
	return config.Load(o.loadOptions())
}

func (o *rootOptions) loadOptions() config.LoadOptions {
	return config.LoadOptions{File: o.configFile, EnvFile: o.envFile}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "paybridge",
		Short:         "Payment processor bridge",
		Version:       config.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "configuration file (default ./paybridge.yaml)")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "dotenv file loaded before the environment is read (default ./.env)")

	root.AddCommand(newServeCmd(opts), newConfigCmd(opts), newWebhookCmd(opts))
	return root
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve webhook ingestion, health and metrics endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(appOptions(opts.loadOptions())...)
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}
}

func appOptions(load config.LoadOptions) []fx.Option {
	return []fx.Option{
		fx.Supply(load),
		config.Module,
		observability.Module,
		clock.Module,
		fx.Provide(registerSnowflake),
		storage.Module,
		payment.Module,
		server.Module,
	}
}

func registerSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
