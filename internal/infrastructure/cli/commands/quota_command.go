package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kernhell/kernhell-go/internal/domain"
	"github.com/kernhell/kernhell-go/internal/ports"
)

// QuotaReader is the read side of the quota tracker used for display.
type QuotaReader interface {
	ports.QuotaTracker
	Limit(b domain.Backend) (int, bool)
}

// NewQuotaCommand shows today's usage per provider.
func NewQuotaCommand(resolve ContainerFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "quota",
		Short: "Show today's API usage and remaining quota per provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := resolve(cmd.Context())
			if err != nil {
				return err
			}
			displayQuota(cmd.OutOrStdout(), container.Quota, container.Pool.CountsByBackend())
			return nil
		},
	}
}

func displayQuota(out io.Writer, quota QuotaReader, keyCounts map[domain.Backend]int) {
	fmt.Fprintf(out, "%-10s %6s %10s %10s %5s\n", "PROVIDER", "USED", "LIMIT", "REMAINING", "KEYS")
	for _, b := range domain.BackendOrder {
		limit, remaining := "-", "unlimited"
		if l, ok := quota.Limit(b); ok {
			limit = fmt.Sprintf("%d", l)
			remaining = fmt.Sprintf("%d", quota.Remaining(b))
		}
		fmt.Fprintf(out, "%-10s %6d %10s %10s %5d\n", b, quota.Used(b), limit, remaining, keyCounts[b])
	}
}
