package cli

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/hyqf98/trainhub/task"
)

var managerClient *Client

// SetClient installs the API client used by every command. Called once by
// the root command's PersistentPreRun.
func SetClient(c *Client) {
	managerClient = c
}

var tasksCmd = []cobra.Command{
	{
		Use:   "list",
		Short: "List all training tasks",
		Long:  ``,
		Run: func(cmd *cobra.Command, _ []string) {
			tasks, err := managerClient.ListTasks()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				logJSONCmd(*cmd, tasks)

				return
			}

			for _, t := range tasks {
				fmt.Fprintf(cmd.OutOrStdout(), "%4d  %-24s %-6s %s\n",
					t.ID, t.Name, t.ExecutionMode, colorStatus(t.Status))
			}
		},
	},
	{
		Use:   "create",
		Short: "Create a training task interactively",
		Long:  `Opens a form collecting the task fields, then registers the task.`,
		Run: func(cmd *cobra.Command, _ []string) {
			t, err := taskForm(task.Task{ExecutionMode: task.Local})
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			created, err := managerClient.CreateTask(t)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logOKCmd(*cmd, "created task %d (%s)", created.ID, created.Name)
		},
	},
	{
		Use:   "get <task_id>",
		Short: "Show one training task",
		Long:  ``,
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				logErrorCmd(*cmd, fmt.Errorf("task id must be an integer"))

				return
			}

			t, err := managerClient.GetTask(id)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, t)
		},
	},
	{
		Use:   "edit <task_id>",
		Short: "Edit a training task interactively",
		Long:  ``,
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				logErrorCmd(*cmd, fmt.Errorf("task id must be an integer"))

				return
			}

			current, err := managerClient.GetTask(id)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			edited, err := taskForm(current)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			edited.ID = id

			updated, err := managerClient.UpdateTask(edited)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logOKCmd(*cmd, "updated task %d (%s)", updated.ID, updated.Name)
		},
	},
	{
		Use:   "delete <task_id>",
		Short: "Delete a training task",
		Long:  `Asks for confirmation unless --yes is given. A running task is stopped first.`,
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				logErrorCmd(*cmd, fmt.Errorf("task id must be an integer"))

				return
			}

			if skip, _ := cmd.Flags().GetBool("yes"); !skip {
				var confirmed bool
				prompt := huh.NewConfirm().
					Title(fmt.Sprintf("Delete task %d?", id)).
					Description("The task record and its execution log will be removed.").
					Value(&confirmed)
				if err := prompt.Run(); err != nil {
					logErrorCmd(*cmd, err)

					return
				}
				if !confirmed {
					logWarnCmd(*cmd, "aborted")

					return
				}
			}

			if err := managerClient.DeleteTask(id); err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logOKCmd(*cmd, "deleted task %d", id)
		},
	},
	{
		Use:   "start <task_id>",
		Short: "Start a training task",
		Long:  ``,
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				logErrorCmd(*cmd, fmt.Errorf("task id must be an integer"))

				return
			}

			if err := managerClient.StartTask(id); err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logOKCmd(*cmd, "started task %d", id)
		},
	},
	{
		Use:   "stop <task_id>",
		Short: "Stop a training task",
		Long:  ``,
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				logErrorCmd(*cmd, fmt.Errorf("task id must be an integer"))

				return
			}

			if err := managerClient.StopTask(id); err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logOKCmd(*cmd, "stopped task %d", id)
		},
	},
	{
		Use:   "complete <task_id>",
		Short: "Mark a training task completed",
		Long:  ``,
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				logErrorCmd(*cmd, fmt.Errorf("task id must be an integer"))

				return
			}

			if err := managerClient.CompleteTask(id); err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logOKCmd(*cmd, "task %d marked completed", id)
		},
	},
	{
		Use:   "logs <task_id>",
		Short: "Print a task's execution log",
		Long:  ``,
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				logErrorCmd(*cmd, fmt.Errorf("task id must be an integer"))

				return
			}

			log, err := managerClient.TaskLog(id)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			fmt.Fprint(cmd.OutOrStdout(), log)
		},
	},
}

func NewTasksCmd() *cobra.Command {
	cmd := cobra.Command{
		Use:   "tasks",
		Short: "Training task management",
		Long:  ``,
	}

	for i := range tasksCmd {
		cmd.AddCommand(&tasksCmd[i])
	}

	tasksCmd[0].Flags().Bool("json", false, "Print tasks as JSON")
	tasksCmd[4].Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")

	return &cmd
}

// taskForm collects task fields, pre-filled from initial.
func taskForm(initial task.Task) (task.Task, error) {
	t := initial
	serverID := ""
	if t.ServerID != nil {
		serverID = strconv.Itoa(*t.ServerID)
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Name").
				Description("Leave empty to generate one").
				Value(&t.Name),
			huh.NewSelect[task.ExecutionMode]().
				Title("Execution mode").
				Options(
					huh.NewOption("Local", task.Local),
					huh.NewOption("Remote", task.Remote),
				).
				Value(&t.ExecutionMode),
			huh.NewInput().
				Title("Dataset path").
				Value(&t.DatasetPath),
			huh.NewInput().
				Title("Environment name").
				Description("Conda environment to run under; empty uses the default interpreter").
				Value(&t.EnvironmentName),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Save path").
				Value(&t.SavePath),
		).WithHideFunc(func() bool { return t.ExecutionMode != task.Local }),
		huh.NewGroup(
			huh.NewInput().
				Title("Server ID").
				Validate(func(s string) error {
					if _, err := strconv.Atoi(s); err != nil {
						return fmt.Errorf("must be an integer")
					}

					return nil
				}).
				Value(&serverID),
			huh.NewInput().
				Title("Remote path").
				Value(&t.RemotePath),
		).WithHideFunc(func() bool { return t.ExecutionMode != task.Remote }),
	)

	if err := form.Run(); err != nil {
		return task.Task{}, err
	}

	if t.ExecutionMode == task.Remote && serverID != "" {
		id, err := strconv.Atoi(serverID)
		if err != nil {
			return task.Task{}, err
		}
		t.ServerID = &id
	}

	return t, nil
}

func colorStatus(s task.Status) string {
	switch s {
	case task.Running, task.Completed:
		return okColor.Sprint(s.String())
	case task.StatusError:
		return errColor.Sprint(s.String())
	case task.Uploading:
		return warnColor.Sprint(s.String())
	default:
		return s.String()
	}
}
