package tasks

import (
	"fmt"
	"net/http"

	"github.com/jcallum/medley/internal/cli/cl"
	"github.com/spf13/cobra"
)

var cmdTasksCancel = &cobra.Command{
	Use:   "cancel [id]",
	Short: "Cancel a task",
	Long: `Cancel a task.

Cancellation is cooperative; a running worker may take a moment to notice and stop. Pass --all to
cancel every task that is still pending or running.`,
	Example: `$ medley tasks cancel f2o0jph4lsrc
$ medley tasks cancel --all`,
	RunE: tasksCancel,
	Args: cobra.MaximumNArgs(1),
}

func init() {
	cmdTasksCancel.Flags().Bool("all", false, "cancel every active task")
	CmdTasks.AddCommand(cmdTasksCancel)
}

func tasksCancel(cmd *cobra.Command, args []string) error {
	all, _ := cmd.Flags().GetBool("all")

	if all {
		cl.State.Fmt.Print("Cancelling all active tasks")

		resp := struct {
			Cancelled int `json:"cancelled"`
		}{}
		if err := cl.State.Request(http.MethodPost, "/api/tasks/cancel-all", nil, &resp); err != nil {
			cl.State.Fmt.PrintErr(fmt.Sprintf("could not cancel tasks: %v", err))
			cl.State.Fmt.Finish()
			return err
		}

		cl.State.Fmt.PrintSuccess(fmt.Sprintf("Asked %d task(s) to stop", resp.Cancelled))
		cl.State.Fmt.Finish()
		return nil
	}

	if len(args) == 0 {
		err := fmt.Errorf("must provide a task id or --all")
		cl.State.Fmt.PrintErr(err)
		cl.State.Fmt.Finish()
		return err
	}

	id := args[0]
	cl.State.Fmt.Print("Cancelling task")

	if err := cl.State.Request(http.MethodPost, fmt.Sprintf("/api/tasks/%s/cancel", id), nil, nil); err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not cancel task: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	cl.State.Fmt.PrintSuccess(fmt.Sprintf("Asked task %s to stop", id))
	cl.State.Fmt.Finish()

	return nil
}
