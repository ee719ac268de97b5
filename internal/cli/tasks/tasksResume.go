package tasks

import (
	"fmt"
	"net/http"

	"github.com/jcallum/medley/internal/cli/cl"
	"github.com/spf13/cobra"
)

var cmdTasksResume = &cobra.Command{
	Use:   "resume <id>",
	Short: "Resume an interrupted or finished task",
	Long: `Resume an interrupted or finished task.

The task is reset to pending and re-run from its original request parameters. Tasks that never
stored request parameters cannot be resumed.`,
	Example: `$ medley tasks resume f2o0jph4lsrc`,
	RunE:    tasksResume,
	Args:    cobra.ExactArgs(1),
}

func init() {
	CmdTasks.AddCommand(cmdTasksResume)
}

func tasksResume(_ *cobra.Command, args []string) error {
	id := args[0]

	cl.State.Fmt.Print("Resuming task")

	resp := struct {
		TaskID string `json:"task_id"`
	}{}
	if err := cl.State.Request(http.MethodPost, fmt.Sprintf("/api/tasks/%s/resume", id), nil, &resp); err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not resume task: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	cl.State.Fmt.PrintSuccess(fmt.Sprintf("Resumed task %s", resp.TaskID))
	cl.State.Fmt.Finish()

	return nil
}
