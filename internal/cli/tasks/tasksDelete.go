package tasks

import (
	"fmt"
	"net/http"

	"github.com/jcallum/medley/internal/cli/cl"
	"github.com/spf13/cobra"
)

var cmdTasksDelete = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a task record",
	Long: `Delete a task record.

Deleting a running task does not preempt its worker. Pass --all to remove every task record.`,
	Example: `$ medley tasks delete f2o0jph4lsrc
$ medley tasks delete --all`,
	RunE: tasksDelete,
	Args: cobra.MaximumNArgs(1),
}

func init() {
	cmdTasksDelete.Flags().Bool("all", false, "delete every task record")
	CmdTasks.AddCommand(cmdTasksDelete)
}

func tasksDelete(cmd *cobra.Command, args []string) error {
	all, _ := cmd.Flags().GetBool("all")

	if all {
		cl.State.Fmt.Print("Deleting all tasks")

		resp := struct {
			Deleted int64 `json:"deleted"`
		}{}
		if err := cl.State.Request(http.MethodDelete, "/api/tasks", nil, &resp); err != nil {
			cl.State.Fmt.PrintErr(fmt.Sprintf("could not delete tasks: %v", err))
			cl.State.Fmt.Finish()
			return err
		}

		cl.State.Fmt.PrintSuccess(fmt.Sprintf("Deleted %d task(s)", resp.Deleted))
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
	cl.State.Fmt.Print("Deleting task")

	if err := cl.State.Request(http.MethodDelete, "/api/tasks/"+id, nil, nil); err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not delete task: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	cl.State.Fmt.PrintSuccess(fmt.Sprintf("Deleted task %s", id))
	cl.State.Fmt.Finish()

	return nil
}
