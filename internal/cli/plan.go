package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/phrazzld/dayplan-api/internal/api"
	"github.com/phrazzld/dayplan-api/internal/domain"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newPlanCmd(v *viper.Viper) *cobra.Command {
	planCmd := &cobra.Command{
		Use:   "plan",
		Short: "Show and regenerate daily plans",
	}
	planCmd.AddCommand(newPlanShowCmd(v), newPlanRegenerateCmd(v))
	return planCmd
}

func newPlanShowCmd(v *viper.Viper) *cobra.Command {
	var plain bool
	cmd := &cobra.Command{
		Use:   "show [YYYY-MM-DD]",
		Short: "Show the current plan, or the plan for a date",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClientFromSettings(v)

			var (
				plan *api.PlanResponse
				err  error
			)
			if len(args) == 1 {
				if _, perr := domain.ParsePlanDate(args[0]); perr != nil {
					return perr
				}
				plan, err = client.PlanForDate(cmd.Context(), args[0])
			} else {
				plan, err = client.CurrentPlan(cmd.Context())
			}
			if err != nil {
				return err
			}

			return writePlan(cmd.OutOrStdout(), plan, plain)
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "print the plan text without markdown rendering")
	return cmd
}

func newPlanRegenerateCmd(v *viper.Viper) *cobra.Command {
	var wait bool
	cmd := &cobra.Command{
		Use:   "regenerate",
		Short: "Regenerate today's plan",
		Long: `Regenerate today's plan from the current tasks.

By default the regeneration is scheduled and the command returns immediately.
With --wait the plan is streamed to stdout as it is generated.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client := newClientFromSettings(v)
			out := cmd.OutOrStdout()

			if !wait {
				if err := client.RequestRegeneration(cmd.Context()); err != nil {
					return err
				}
				_, err := fmt.Fprintln(out, "Regeneration scheduled.")
				return err
			}

			planID, err := client.StreamRegeneration(cmd.Context(), func(fragment string) {
				_, _ = io.WriteString(out, fragment)
			})
			_, _ = fmt.Fprintln(out)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.ErrOrStderr(), "Plan %s saved.\n", planID)
			return err
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "stream the plan as it is generated")
	return cmd
}

// planMarkdown frames a plan as a markdown document.
func planMarkdown(plan *api.PlanResponse) string {
	md := fmt.Sprintf("# Plan for %s\n\n%s\n", plan.Date, plan.Plan)
	if plan.IsPlaceholder {
		md += "\n_Generation is still in progress._\n"
	}
	return md + fmt.Sprintf("\n_Updated %s_\n", plan.UpdatedAt.Local().Format(time.RFC1123))
}

func writePlan(out io.Writer, plan *api.PlanResponse, plain bool) error {
	if plain {
		_, err := fmt.Fprintln(out, plan.Plan)
		return err
	}
	_, err := io.WriteString(out, renderMarkdown(planMarkdown(plan)))
	return err
}

// renderMarkdown renders content for a terminal, returning it unchanged if
// rendering fails.
func renderMarkdown(content string) string {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return content
	}
	rendered, err := renderer.Render(content)
	if err != nil {
		return content
	}
	return rendered
}
