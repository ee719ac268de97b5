package tasks

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/jcallum/medley/internal/cli/cl"
	cliformat "github.com/jcallum/medley/internal/cli/format"
	"github.com/jcallum/medley/internal/models"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var cmdTasksList = &cobra.Command{
	Use:   "list",
	Short: "List all tasks",
	Long: `List all tasks.

A short listing of every task the server knows about, newest first.`,
	Example: `$ medley tasks list`,
	RunE:    tasksList,
}

func init() {
	CmdTasks.AddCommand(cmdTasksList)
}

func tasksList(_ *cobra.Command, _ []string) error {
	cl.State.Fmt.Print("Retrieving tasks")

	resp := struct {
		Tasks []models.Task `json:"tasks"`
	}{}
	if err := cl.State.Request(http.MethodGet, "/api/tasks", nil, &resp); err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not list tasks: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	if len(resp.Tasks) == 0 {
		cl.State.Fmt.Println("No tasks found")
		cl.State.Fmt.Finish()
		return nil
	}

	data := [][]string{}
	for _, task := range resp.Tasks {
		data = append(data, []string{
			task.ID,
			task.Name,
			task.Type,
			cliformat.UnixMilli(task.CreatedAt, "Unknown", cl.State.Config.Detail),
			cliformat.Progress(task.Progress),
			cliformat.TaskStatus(string(task.Status)),
		})
	}

	table := formatTable(data, !cl.State.Config.NoColor)

	cl.State.Fmt.Println(fmt.Sprintf("  Tasks\n\n%s", table))
	cl.State.Fmt.Finish()

	return nil
}

func formatTable(data [][]string, color bool) string {
	tableString := &strings.Builder{}
	table := tablewriter.NewWriter(tableString)

	table.SetHeader([]string{"ID", "Name", "Type", "Created", "Progress", "Status"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(true)
	table.SetBorder(false)
	table.SetAutoFormatHeaders(false)
	table.SetRowSeparator("―")
	table.SetRowLine(false)
	table.SetColumnSeparator("")
	table.SetCenterSeparator("")

	if color {
		table.SetHeaderColor(
			tablewriter.Color(tablewriter.FgBlueColor),
			tablewriter.Color(tablewriter.FgBlueColor),
			tablewriter.Color(tablewriter.FgBlueColor),
			tablewriter.Color(tablewriter.FgBlueColor),
			tablewriter.Color(tablewriter.FgBlueColor),
			tablewriter.Color(tablewriter.FgBlueColor),
		)
		table.SetColumnColor(
			tablewriter.Color(tablewriter.FgYellowColor),
			tablewriter.Color(0),
			tablewriter.Color(0),
			tablewriter.Color(0),
			tablewriter.Color(0),
			tablewriter.Color(0),
		)
	}

	table.AppendBulk(data)

	table.Render()
	return tableString.String()
}
