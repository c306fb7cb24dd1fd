package generation

import (
	"fmt"
	"strings"
	"time"

	"github.com/phrazzld/dayplan-api/internal/domain"
)

// WorkdayMinutes is the working-day budget embedded in every plan prompt.
const WorkdayMinutes = 480

// Composer builds generation prompts. Its output depends only on its inputs,
// so identical task snapshots and dates always produce identical prompts.
type Composer struct{}

// NewComposer creates a Composer
func NewComposer() *Composer {
	return &Composer{}
}

// Compose builds the daily-plan prompt for tasks, keeping their order.
// Only the calendar date of referenceDate is used.
func (c *Composer) Compose(tasks []domain.Task, referenceDate time.Time) string {
	date := referenceDate.Format(domain.PlanDateLayout)

	var b strings.Builder
	if len(tasks) == 0 {
		fmt.Fprintf(&b, "Today is %s and my schedule is completely open.\n\n", date)
		fmt.Fprintf(&b, "Suggest how to spend a productive working day of %d minutes. ", WorkdayMinutes)
		b.WriteString("Recommend meeting with the team for a sync, planning upcoming work, " +
			"or other productive activities.\n\n")
		b.WriteString("Format the answer as a structured document with sections, " +
			"headings and bullet points.")
		return b.String()
	}

	fmt.Fprintf(&b, "Today is %s. Here are my tasks for today:\n", date)
	for _, task := range tasks {
		fmt.Fprintf(&b, "- %s: %s (Estimated: %s, Status: %s)\n",
			task.Title, task.Description, formatEstimate(task.EstimatedMinutes), task.Status)
	}

	fmt.Fprintf(&b, "\nI have %d minutes of working time today. ", WorkdayMinutes)
	b.WriteString("Generate a concise, actionable daily plan for me:\n")
	fmt.Fprintf(&b, "- Prioritize tasks with status %q or %q.\n",
		domain.TaskStatusTodo, domain.TaskStatusInProgress)
	fmt.Fprintf(&b, "- Include only the tasks that fit into %d minutes and defer the rest, "+
		"listing which tasks were deferred.\n", WorkdayMinutes)
	b.WriteString("- State the estimated time allocation for each included task.\n")
	b.WriteString("\nFormat the plan in Markdown.")
	return b.String()
}

// ComposeSuggestion builds a prompt asking for a description of a task with
// the given title.
func (c *Composer) ComposeSuggestion(title string) string {
	return fmt.Sprintf("Draft a detailed task description for the following title: '%s' "+
		"Only return the description, no other text.", strings.TrimSpace(title))
}

func formatEstimate(minutes *int) string {
	if minutes == nil {
		return "unspecified"
	}
	return fmt.Sprintf("%d min", *minutes)
}
