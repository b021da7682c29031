package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kernhell/kernhell-go/internal/domain"
)

// NewDoctorCommand creates the doctor command
func NewDoctorCommand(resolve ContainerFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose environment setup",
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := resolve(cmd.Context())
			if err != nil {
				return err
			}
			if container.DoctorService == nil {
				return errors.New(ErrDoctorServiceUnavailable)
			}

			report, err := container.DoctorService.Run(cmd.Context())
			// Display report even if there were errors
			displayDoctorReport(cmd.OutOrStdout(), report)
			if err != nil {
				return fmt.Errorf("diagnostics completed with errors: %w", err)
			}
			if failed := report.Failures(); len(failed) > 0 {
				return fmt.Errorf("diagnostics completed with errors: %s", strings.Join(failed, ", "))
			}
			return nil
		},
	}
}

func displayDoctorReport(out io.Writer, report domain.HealthReport) {
	for _, check := range report.Checks {
		fmt.Fprintf(out, "[%s] %s - %s\n",
			strings.ToUpper(string(check.Status)),
			check.Name,
			check.Details)
	}
}
