package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kernhell/kernhell-go/internal/domain"
)

// NewMemoryCommand inspects the healing memory.
func NewMemoryCommand(resolve ContainerFunc) *cobra.Command {
	memoryCmd := &cobra.Command{
		Use:   "memory",
		Short: "Inspect remembered fixes",
	}

	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the most recent remembered fixes",
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := resolve(cmd.Context())
			if err != nil {
				return err
			}
			displayMemory(cmd.OutOrStdout(), container.Memory.Records(), limit)
			return nil
		},
	}
	listCmd.Flags().IntVar(&limit, "limit", DefaultMemoryLimit, "Max records to show")

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Forget every remembered fix",
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := resolve(cmd.Context())
			if err != nil {
				return err
			}
			if err := container.Memory.Clear(); err != nil {
				return fmt.Errorf("failed to clear memory: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Healing memory cleared.")
			return nil
		},
	}

	memoryCmd.AddCommand(listCmd, clearCmd)
	return memoryCmd
}

// displayMemory prints newest records first.
func displayMemory(out io.Writer, records []domain.HealingRecord, limit int) {
	if len(records) == 0 {
		fmt.Fprintln(out, MsgNoMemoryRecorded)
		return
	}
	shown := 0
	for i := len(records) - 1; i >= 0; i-- {
		if limit > 0 && shown == limit {
			break
		}
		rec := records[i]
		snippet := strings.ReplaceAll(rec.ErrorSnippet, "\n", " ")
		if len(snippet) > 80 {
			snippet = snippet[:80] + "..."
		}
		fmt.Fprintf(out, "%s | %-10s | %s | %s\n",
			rec.Timestamp.Local().Format(TimestampFormat),
			rec.Backend,
			rec.Fingerprint,
			snippet)
		shown++
	}
}
