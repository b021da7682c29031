package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	configapp "github.com/kernhell/kernhell-go/internal/application/config"
	"github.com/kernhell/kernhell-go/internal/application/keys"
	"github.com/kernhell/kernhell-go/internal/domain"
	configinfra "github.com/kernhell/kernhell-go/internal/infrastructure/config"
	"github.com/kernhell/kernhell-go/internal/pkg/logger"
)

// Spinner is the progress indicator shown while slow network checks run.
type Spinner interface {
	Start()
	Stop()
}

// NewConfigCommand creates the config command with all subcommands
func NewConfigCommand(resolve ContainerFunc, spinner func(io.Writer, string) Spinner) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage kernhell configuration and API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfiguration(cmd.Context(), cmd.OutOrStdout(), resolve)
		},
	}

	configCmd.AddCommand(
		newConfigShowCommand(resolve),
		newConfigPathCommand(resolve),
		newConfigValidateCommand(resolve),
		newConfigDiffCommand(resolve),
		newConfigAddKeyCommand(resolve),
		newConfigListKeysCommand(resolve),
		newConfigRemoveKeyCommand(resolve),
		newConfigPruneCommand(resolve, spinner),
	)

	return configCmd
}

func newConfigShowCommand(resolve ContainerFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show full configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfiguration(cmd.Context(), cmd.OutOrStdout(), resolve)
		},
	}
}

func newConfigPathCommand(resolve ContainerFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the configuration and state locations",
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := resolve(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "config: %s\n", container.ConfigLoader.Path())
			fmt.Fprintf(out, "keys:   %s\n", container.Pool.Path())
			fmt.Fprintf(out, "memory: %s\n", container.Memory.Path())
			fmt.Fprintf(out, "runs:   %s\n", container.History.Path())
			return nil
		},
	}
}

func newConfigValidateCommand(resolve ContainerFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := resolve(cmd.Context())
			if err != nil {
				return err
			}
			cfg, err := container.ConfigProvider.Load(cmd.Context())
			if err != nil {
				return fmt.Errorf("configuration validation failed: %w", err)
			}
			if err := configapp.Validate(cfg); err != nil {
				return fmt.Errorf("configuration validation failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), MsgConfigurationValid)
			return nil
		},
	}
}

func newConfigDiffCommand(resolve ContainerFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "diff",
		Short: "Show diff versus default configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfigurationDiff(cmd.Context(), cmd.OutOrStdout(), resolve)
		},
	}
}

func newConfigAddKeyCommand(resolve ContainerFunc) *cobra.Command {
	var provider string

	cmd := &cobra.Command{
		Use:   "add-key <KEY>",
		Short: "Add an API key to a provider pool",
		Long: "Add an API key to a provider pool. Cloudflare keys use the form ACCOUNT_ID:API_TOKEN.\n" +
			"Providers: " + strings.Join(domain.BackendNames(), ", "),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := resolve(cmd.Context())
			if err != nil {
				return err
			}
			b, err := domain.ParseBackend(provider)
			if err != nil {
				return err
			}
			if err := container.Pool.Add(b, args[0]); err != nil {
				return fmt.Errorf("add key: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s key %s (%d total)\n",
				b, logger.MaskSecret(args[0]), container.Pool.Count(b))
			return nil
		},
	}

	cmd.Flags().StringVarP(&provider, "provider", "p", string(domain.BackendGoogle), "Provider the key belongs to")
	return cmd
}

func newConfigListKeysCommand(resolve ContainerFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "list-keys",
		Short: "List configured API keys (masked)",
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := resolve(cmd.Context())
			if err != nil {
				return err
			}
			displayKeys(cmd.OutOrStdout(), container.KeysService.List())
			return nil
		},
	}
}

func newConfigRemoveKeyCommand(resolve ContainerFunc) *cobra.Command {
	var provider string

	cmd := &cobra.Command{
		Use:   "remove-key <KEY>",
		Short: "Remove an API key; without --provider every pool is searched",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := resolve(cmd.Context())
			if err != nil {
				return err
			}
			var b domain.Backend
			if provider != "" {
				if b, err = domain.ParseBackend(provider); err != nil {
					return err
				}
			}
			from, err := container.Pool.Remove(args[0], b)
			if err != nil {
				return fmt.Errorf("remove key: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s key %s\n", from, logger.MaskSecret(args[0]))
			return nil
		},
	}

	cmd.Flags().StringVarP(&provider, "provider", "p", "", "Only search this provider")
	return cmd
}

func newConfigPruneCommand(resolve ContainerFunc, spinner func(io.Writer, string) Spinner) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Verify every API key and remove the dead ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := resolve(cmd.Context())
			if err != nil {
				return err
			}
			s := spinner(cmd.ErrOrStderr(), fmt.Sprintf("Verifying %d keys...", container.Pool.Total()))
			s.Start()
			report, err := container.KeysService.Prune(cmd.Context())
			s.Stop()

			displayPruneReport(cmd.OutOrStdout(), report)
			return err
		},
	}
}

func showConfiguration(ctx context.Context, out io.Writer, resolve ContainerFunc) error {
	cfg, err := loadConfig(ctx, resolve)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}

	fmt.Fprint(out, string(data))
	return nil
}

func showConfigurationDiff(ctx context.Context, out io.Writer, resolve ContainerFunc) error {
	currentConfig, err := loadConfig(ctx, resolve)
	if err != nil {
		return err
	}

	defaultConfig, err := configinfra.Defaults()
	if err != nil {
		return fmt.Errorf("failed to load defaults: %w", err)
	}
	diff := cmp.Diff(defaultConfig, currentConfig)

	if diff == "" {
		fmt.Fprintln(out, MsgNoDifferencesFromDefault)
		return nil
	}

	fmt.Fprintln(out, diff)
	return nil
}

func loadConfig(ctx context.Context, resolve ContainerFunc) (domain.Config, error) {
	container, err := resolve(ctx)
	if err != nil {
		return domain.Config{}, err
	}
	cfg, err := container.ConfigProvider.Load(ctx)
	if err != nil {
		return domain.Config{}, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func displayKeys(out io.Writer, entries []keys.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(out, MsgNoKeysConfigured)
		return
	}
	for _, e := range entries {
		marker := " "
		if e.Active {
			marker = "*"
		}
		fmt.Fprintf(out, "%s %-10s #%d %s\n", marker, e.Backend, e.Index, e.Masked)
	}
}

func displayPruneReport(out io.Writer, report keys.PruneReport) {
	for _, c := range report.Checks {
		switch {
		case c.Skipped:
			fmt.Fprintf(out, "[SKIP] %s %s - no verification available\n", c.Backend, c.Masked)
		case c.Alive:
			fmt.Fprintf(out, "[OK]   %s %s\n", c.Backend, c.Masked)
		default:
			fmt.Fprintf(out, "[DEAD] %s %s - %s\n", c.Backend, c.Masked, c.Err)
		}
	}
	if len(report.Checks) > 0 {
		fmt.Fprintf(out, "Removed %d of %d keys.\n", report.Removed, len(report.Checks))
	}
}
