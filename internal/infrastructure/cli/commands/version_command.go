package commands

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/kernhell/kernhell-go/internal/domain"
	"github.com/kernhell/kernhell-go/internal/version"
)

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show kernhell version and supported backends",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if short {
				fmt.Fprintln(out, version.Version)
				return nil
			}
			displayVersionInformation(out)
			return nil
		},
	}
	cmd.Flags().BoolVar(&short, "short", false, "Print only the version number")
	return cmd
}

func displayVersionInformation(out io.Writer) {
	fmt.Fprintf(out, "kernhell %s", version.Version)
	if version.Commit != "" {
		fmt.Fprintf(out, " (%s", version.Commit)
		if version.BuildDate != "" {
			fmt.Fprintf(out, ", built %s", version.BuildDate)
		}
		fmt.Fprint(out, ")")
	}
	fmt.Fprintf(out, "\n%s %s/%s\n\nBackends:\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)

	for _, b := range domain.BackendOrder {
		vision := ""
		if domain.SupportsVision(b) {
			vision = " [vision]"
		}
		fmt.Fprintf(out, "  %-10s %s%s\n", b, domain.ModelName(b), vision)
	}
}
