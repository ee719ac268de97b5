package tasks

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/jcallum/medley/internal/cli/cl"
	"github.com/spf13/cobra"
)

var cmdTasksLogs = &cobra.Command{
	Use:     "logs <id>",
	Short:   "Print the captured worker output for a task",
	Example: `$ medley tasks logs f2o0jph4lsrc`,
	RunE:    tasksLogs,
	Args:    cobra.ExactArgs(1),
}

func init() {
	CmdTasks.AddCommand(cmdTasksLogs)
}

func tasksLogs(_ *cobra.Command, args []string) error {
	id := args[0]

	cl.State.Fmt.Print("Retrieving logs")

	resp := struct {
		Lines []string `json:"lines"`
	}{}
	if err := cl.State.Request(http.MethodGet, fmt.Sprintf("/api/tasks/%s/logs", id), nil, &resp); err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not get logs: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	if len(resp.Lines) == 0 {
		cl.State.Fmt.Println("No logs found")
		cl.State.Fmt.Finish()
		return nil
	}

	cl.State.Fmt.Println(strings.Join(resp.Lines, "\n"))
	cl.State.Fmt.Finish()

	return nil
}
