package commands

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/kernhell/kernhell-go/internal/domain"
	"github.com/kernhell/kernhell-go/internal/infrastructure/cli/helpers"
	"github.com/kernhell/kernhell-go/internal/ports"
)

const maxHistoryAnalysisRecords = 500

// NewHistoryCommand creates the history command with all subcommands
func NewHistoryCommand(resolve ContainerFunc) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect the healing run log",
	}

	historyCmd.AddCommand(
		newHistoryListCommand(resolve),
		newHistoryStatsCommand(resolve),
		newHistoryClearCommand(resolve),
		newHistoryExportCommand(resolve),
	)

	return historyCmd
}

func newHistoryListCommand(resolve ContainerFunc) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent healing runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := historyStore(cmd, resolve)
			if err != nil {
				return err
			}
			return listHistoryEntries(cmd.OutOrStdout(), store, limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", DefaultHistoryLimit, "Max entries to show")
	return cmd
}

func newHistoryStatsCommand(resolve ContainerFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show heal rate, saved time and the most stubborn files",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := historyStore(cmd, resolve)
			if err != nil {
				return err
			}
			return showHistoryStats(cmd.OutOrStdout(), store)
		},
	}
}

func newHistoryClearCommand(resolve ContainerFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear the run log",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := historyStore(cmd, resolve)
			if err != nil {
				return err
			}
			if err := store.Clear(); err != nil {
				return fmt.Errorf("failed to clear history: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "History cleared.")
			return nil
		},
	}
}

func newHistoryExportCommand(resolve ContainerFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "export <path>",
		Short: "Export the run log to a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := historyStore(cmd, resolve)
			if err != nil {
				return err
			}
			if err := store.ExportJSON(args[0]); err != nil {
				return fmt.Errorf("failed to export history to %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported run log to %s\n", args[0])
			return nil
		},
	}
}

func historyStore(cmd *cobra.Command, resolve ContainerFunc) (ports.RunHistory, error) {
	container, err := resolve(cmd.Context())
	if err != nil {
		return nil, err
	}
	if container.History == nil {
		return nil, errors.New(ErrHistoryStoreUnavailable)
	}
	return container.History, nil
}

func listHistoryEntries(out io.Writer, store ports.RunHistory, limit int) error {
	runs, err := store.Recent(limit)
	if err != nil {
		return fmt.Errorf("failed to retrieve history records: %w", err)
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, MsgNoHistoryRecorded)
		return nil
	}

	for _, run := range runs {
		status := "FAILED"
		if run.Healed {
			status = "HEALED"
		}
		fmt.Fprintf(out, "%s | %-6s | %s | %s\n",
			run.Timestamp.Local().Format(TimestampFormat),
			status,
			run.Model,
			run.File)
		if run.Error != nil && *run.Error != "" {
			fmt.Fprintf(out, "    %s\n", *run.Error)
		}
	}
	return nil
}

func showHistoryStats(out io.Writer, store ports.RunHistory) error {
	stats, err := store.Stats()
	if err != nil {
		return fmt.Errorf("failed to compute history stats: %w", err)
	}
	if stats.TotalRuns == 0 {
		fmt.Fprintln(out, MsgNoHistoryRecorded)
		return nil
	}

	fmt.Fprintf(out, "Total runs: %d\nHealed: %d\nHeal rate: %.1f%%\nTime saved: %.1f hours\n",
		stats.TotalRuns,
		stats.TotalHealed,
		helpers.CalculateSuccessRate(stats.TotalHealed, stats.TotalRuns),
		stats.SavedHours)

	runs, err := store.Recent(maxHistoryAnalysisRecords)
	if err != nil {
		return fmt.Errorf("failed to retrieve history for analysis: %w", err)
	}
	displayRunBreakdown(out, runs)
	return nil
}

func displayRunBreakdown(out io.Writer, runs []domain.HealingRun) {
	if usage := helpers.ModelUsage(runs); len(usage) > 0 {
		fmt.Fprintln(out, "Heals by model:")
		models := make([]string, 0, len(usage))
		for model := range usage {
			models = append(models, model)
		}
		sort.Strings(models)
		for _, model := range models {
			fmt.Fprintf(out, "  %s: %d\n", model, usage[model])
		}
	}

	if stubborn := helpers.TopUnhealedFiles(runs, 5); len(stubborn) > 0 {
		fmt.Fprintln(out, "Most stubborn files:")
		for _, stat := range stubborn {
			fmt.Fprintf(out, "  %s (%d)\n", stat.File, stat.Count)
		}
	}
}
