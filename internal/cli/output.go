package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"taskdesk/internal/domain"
)

const dueLayout = "2006-01-02 15:04"

func printTasks(w io.Writer, tasks []domain.Task) error {
	if len(tasks) == 0 {
		_, err := fmt.Fprintln(w, "no tasks")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tPRIORITY\tDUE\tTITLE\tDESCRIPTION")
	for _, t := range tasks {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			t.ID,
			statusMark(t.Status),
			t.Priority,
			formatDue(t),
			t.Title,
			oneLine(t.Description),
		)
	}
	return tw.Flush()
}

func statusMark(s domain.TaskStatus) string {
	if s == domain.TaskStatusComplete {
		return "[x]"
	}
	return "[ ]"
}

func formatDue(t domain.Task) string {
	if !t.HasDueDate() {
		return "-"
	}
	return t.DueDate.Local().Format(dueLayout)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
