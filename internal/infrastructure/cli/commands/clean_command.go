package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kernhell/kernhell-go/internal/infrastructure/cache"
	"github.com/kernhell/kernhell-go/internal/infrastructure/cli/helpers"
)

// NewCleanCommand removes a project's .kernhell_cache directory.
func NewCleanCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clean [dir]",
		Short: "Remove the kernhell cache (screenshots, app map) from a project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			c := cache.New(dir)
			if !c.Exists() {
				fmt.Fprintln(cmd.OutOrStdout(), MsgNoCache)
				return nil
			}
			freed, err := c.Clear()
			if err != nil {
				return fmt.Errorf("failed to clear cache: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s (%s freed)\n", c.Dir(), helpers.FormatBytes(freed))
			return nil
		},
	}
}
