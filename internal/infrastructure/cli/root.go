package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/kernhell/kernhell-go/internal/app"
	"github.com/kernhell/kernhell-go/internal/infrastructure/cli/commands"
	"github.com/kernhell/kernhell-go/internal/infrastructure/watcher"
)

// Options holds CLI-level configuration.
type Options struct {
	Verbose bool
}

// FailedFilesError is returned when at least one file could not be healed, so the
// process exits non-zero.
type FailedFilesError struct {
	Failed int
	Total  int
}

func (e *FailedFilesError) Error() string {
	return fmt.Sprintf("%d of %d files could not be healed", e.Failed, e.Total)
}

// NewRootCmd wires the cobra root command.
// The container is built lazily after flag parsing, so --config and --verbose apply.
func NewRootCmd(ctx context.Context, opts Options) (*cobra.Command, error) {
	var (
		configPath string
		verbose    bool
		once       sync.Once
		container  *app.Container
		buildErr   error
	)

	resolve := func(ctx context.Context) (*app.Container, error) {
		once.Do(func() {
			container, buildErr = app.BuildContainer(ctx, app.Options{
				ConfigPath: configPath,
				Verbose:    opts.Verbose || verbose,
			})
		})
		return container, buildErr
	}

	root := &cobra.Command{
		Use:   "kernhell [file|dir]",
		Short: "kernhell - self-healing test runner",
		Long:  "kernhell runs failing Playwright test scripts, asks AI backends for a fix and patches the file until it passes.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return runHeal(cmd, resolve, args[0], -1)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if container == nil {
				return nil
			}
			return container.Close()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.kernhell/config.yaml)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(newHealCommand(resolve))
	root.AddCommand(newWatchCommand(resolve))
	root.AddCommand(commands.NewConfigCommand(resolve, newSpinner))
	root.AddCommand(commands.NewQuotaCommand(resolve))
	root.AddCommand(commands.NewMemoryCommand(resolve))
	root.AddCommand(commands.NewHistoryCommand(resolve))
	root.AddCommand(commands.NewDoctorCommand(resolve))
	root.AddCommand(commands.NewGuardrailCommand(resolve))
	root.AddCommand(commands.NewCleanCommand())
	root.AddCommand(commands.NewVersionCommand())
	return root, nil
}

func newHealCommand(resolve commands.ContainerFunc) *cobra.Command {
	var maxRetries int

	cmd := &cobra.Command{
		Use:   "heal <file|dir>",
		Short: "Run a test file (or every test under a directory) and heal failures",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHeal(cmd, resolve, args[0], maxRetries)
		},
	}

	cmd.Flags().IntVarP(&maxRetries, "max-retries", "r", -1, "Override healing.max_retries (default from config)")
	return cmd
}

func runHeal(cmd *cobra.Command, resolve commands.ContainerFunc, target string, maxRetries int) error {
	container, err := resolve(cmd.Context())
	if err != nil {
		return err
	}
	svc := container.HealService
	if maxRetries >= 0 {
		svc.Config.Healing.MaxRetries = maxRetries
	}

	info, err := os.Stat(target)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if !info.IsDir() {
		outcome, err := svc.HealFile(cmd.Context(), target)
		if err != nil {
			return err
		}
		RenderOutcome(out, outcome)
		if !outcome.Healed() {
			return &FailedFilesError{Failed: 1, Total: 1}
		}
		return nil
	}

	report, err := svc.HealDir(cmd.Context(), target)
	RenderBatch(out, report)
	if err != nil {
		return err
	}
	if report.Failures > 0 {
		return &FailedFilesError{Failed: report.Failures, Total: len(report.Outcomes)}
	}
	return nil
}

func newWatchCommand(resolve commands.ContainerFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [dir]",
		Short: "Re-heal test files whenever they change",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			container, err := resolve(cmd.Context())
			if err != nil {
				return err
			}
			cfg := container.Config
			out := cmd.OutOrStdout()

			w := watcher.New(dir, cfg.IsTestFile, cfg.WatchDebounce(),
				healOnChange(container, out),
				watcher.WithLogger(container.Logger),
			)
			fmt.Fprintf(out, "Watching %s for test changes (Ctrl+C to stop)\n", dir)
			if err := w.Run(cmd.Context()); err != nil && cmd.Context().Err() == nil {
				return err
			}
			return nil
		},
	}
}

func healOnChange(container *app.Container, out io.Writer) watcher.Handler {
	return func(ctx context.Context, path string) {
		outcome, err := container.HealService.HealFile(ctx, path)
		if err != nil {
			container.Logger.Error("watch heal failed", err, map[string]interface{}{"file": path})
			return
		}
		RenderOutcome(out, outcome)
	}
}
