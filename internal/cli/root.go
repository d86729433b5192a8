package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"mytodo/internal/models"
	"mytodo/internal/todo"
)

// NewRootCommand builds the mytodo command tree.
func NewRootCommand() *cobra.Command {
	root, _ := newRootCommand()
	return root
}

func newRootCommand() (*cobra.Command, func() *app) {
	var (
		configFile string
		a          *app
	)

	root := &cobra.Command{
		Use:           "mytodo",
		Short:         "A single-user task list",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			var err error
			a, err = openApp(cmd.Context(), configFile, cmd.ErrOrStderr())
			return err
		},
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "path to a config file")

	current := func() *app { return a }

	root.AddCommand(
		newAddCmd(current),
		newListCmd(current),
		newToggleCmd(current),
		newEditCmd(current),
		newDeleteCmd(current),
		newClearCompletedCmd(current),
		newCountsCmd(current),
		newServeCmd(current),
	)

	// Cobra skips post-run hooks when RunE fails, so close here instead.
	for _, cmd := range root.Commands() {
		closeAfter(cmd, current)
	}

	return root, current
}

func closeAfter(c *cobra.Command, getApp func() *app) {
	run := c.RunE
	c.RunE = func(cmd *cobra.Command, args []string) (err error) {
		defer func() {
			if a := getApp(); a != nil {
				if cerr := a.Close(); err == nil {
					err = cerr
				}
			}
		}()
		return run(cmd, args)
	}
}

func newAddCmd(getApp func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add <text>",
		Short: "Add a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			tasks, err := getApp().tasks.Add(text)
			if err != nil {
				if errors.Is(err, todo.ErrDuplicateTask) {
					return fmt.Errorf("a task named %q already exists", models.NormalizeText(text))
				}
				return err
			}
			printTasks(cmd.OutOrStdout(), tasks)
			return nil
		},
	}
}

func newListCmd(getApp func() *app) *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := models.ParseFilter(filter)
			if err != nil {
				return err
			}

			tasks := getApp().tasks
			tasks.SetFilter(f)

			out := cmd.OutOrStdout()
			for t := range tasks.FilteredView() {
				printTask(out, t)
			}
			printCounts(out, tasks.Counts())
			return nil
		},
	}
	cmd.Flags().StringVarP(&filter, "filter", "f", "all", "all, active, or completed")

	return cmd
}

func newToggleCmd(getApp func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <id>",
		Short: "Mark a task done or not done",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			tasks, err := getApp().tasks.Toggle(id)
			if err != nil {
				return err
			}
			printTasks(cmd.OutOrStdout(), tasks)
			return nil
		},
	}
}

func newEditCmd(getApp func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "edit <id> <text>",
		Short: "Change the text of a task",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			tasks, err := getApp().tasks.Edit(id, strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			printTasks(cmd.OutOrStdout(), tasks)
			return nil
		},
	}
}

func newDeleteCmd(getApp func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			tasks, err := getApp().tasks.Delete(id)
			if err != nil {
				return err
			}
			printTasks(cmd.OutOrStdout(), tasks)
			return nil
		},
	}
}

func newClearCompletedCmd(getApp func() *app) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear-completed",
		Short: "Delete all completed tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			confirmed := yes
			if !confirmed {
				confirmed = confirm(cmd.InOrStdin(), out, "Delete all completed tasks? [y/N] ")
			}
			if !confirmed {
				fmt.Fprintln(out, "Aborted.")
				return nil
			}

			tasks, err := getApp().tasks.ClearCompleted(true)
			if err != nil {
				return err
			}
			printTasks(out, tasks)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")

	return cmd
}

func newCountsCmd(getApp func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "counts",
		Short: "Show task counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := getApp().tasks.Counts()
			fmt.Fprintf(cmd.OutOrStdout(), "total: %d\nactive: %d\ncompleted: %d\n", c.Total, c.Active, c.Completed)
			return nil
		},
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q", s)
	}
	return id, nil
}

func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprint(out, prompt)
	answer, _ := bufio.NewReader(in).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func printTask(w io.Writer, t models.Task) {
	mark := " "
	if t.Completed {
		mark = "x"
	}
	fmt.Fprintf(w, "[%s] %d. %s\n", mark, t.ID, t.Text)
}

func printTasks(w io.Writer, tasks []models.Task) {
	for _, t := range tasks {
		printTask(w, t)
	}
}

func printCounts(w io.Writer, c models.Counts) {
	fmt.Fprintf(w, "%d total, %d active, %d completed\n", c.Total, c.Active, c.Completed)
}
