package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kernhell/kernhell-go/internal/domain"
	"github.com/kernhell/kernhell-go/internal/infrastructure/security"
)

// NewGuardrailCommand creates the guardrail command with status and check subcommands
func NewGuardrailCommand(resolve ContainerFunc) *cobra.Command {
	guardrailCmd := &cobra.Command{
		Use:   "guardrail",
		Short: "Inspect the rules that screen generated fixes",
	}

	guardrailCmd.AddCommand(
		newGuardrailStatusCommand(resolve),
		newGuardrailCheckCommand(resolve),
	)

	return guardrailCmd
}

func newGuardrailStatusCommand(resolve ContainerFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show guardrail status",
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := resolve(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			settings := container.Config.Guardrail
			if !settings.Enabled || container.Guardrail == nil {
				fmt.Fprintln(out, MsgGuardrailDisabled)
				return nil
			}
			fmt.Fprintf(out, "Guardrail is enabled with %d rules.\n", container.Guardrail.Rules())
			if _, err := os.Stat(settings.RulesFile); err == nil {
				fmt.Fprintf(out, "Rules file: %s\n", settings.RulesFile)
			} else {
				fmt.Fprintln(out, "Rules file: built-in")
			}
			return nil
		},
	}
}

// newGuardrailCheckCommand screens a file the way a generated fix would be screened.
// It loads the rules even when the guardrail is disabled so they can be tried out first.
func newGuardrailCheckCommand(resolve ContainerFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "check <file>",
		Short: "Evaluate a file against the guardrail rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := resolve(cmd.Context())
			if err != nil {
				return err
			}
			guard := container.Guardrail
			if guard == nil {
				if guard, err = security.NewGuardrail(container.Config.Guardrail.RulesFile); err != nil {
					return err
				}
			}

			code, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			assessment := guard.Evaluate(string(code))
			displayAssessment(cmd.OutOrStdout(), args[0], assessment)
			if assessment.Blocked() {
				return fmt.Errorf("%s would be rejected: %s", args[0], strings.Join(assessment.Reasons, "; "))
			}
			return nil
		},
	}
}

func displayAssessment(out io.Writer, file string, assessment domain.RiskAssessment) {
	fmt.Fprintf(out, "%s: %s (%s)\n", file, strings.ToUpper(string(assessment.Action)), assessment.Level)
	for _, reason := range assessment.Reasons {
		fmt.Fprintf(out, "  - %s\n", reason)
	}
}
