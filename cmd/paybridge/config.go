package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/railzwaylabs/paybridge/internal/security/vault"
	"github.com/spf13/cobra"
)

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and prepare configuration",
	}
	cmd.AddCommand(newConfigValidateCmd(opts), newConfigSealCmd())
	return cmd
}

func newConfigValidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load the configuration and check it without contacting the processor",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration valid: processor=%s storage=%s addr=%s\n",
				cfg.Processor.Provider, cfg.Storage.Driver, cfg.Server.Addr)
			return nil
		},
	}
}

func newConfigSealCmd() *cobra.Command {
	var key string
	cmd := &cobra.Command{
		Use:   "seal <value>",
		Short: "Encrypt a credential into an enc: configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if key == "" {
				key = os.Getenv("PAYBRIDGE_VAULT_KEY")
			}
			if strings.TrimSpace(key) == "" {
				return errors.New("a vault key is required: pass --key or set PAYBRIDGE_VAULT_KEY")
			}
			v, err := vault.New(key)
			if err != nil {
				return err
			}
			sealed, err := v.Seal(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sealed)
			return nil
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "vault master key (default $PAYBRIDGE_VAULT_KEY)")
	return cmd
}
