package tasks

import (
	"bytes"
	"fmt"
	"net/http"
	"text/template"

	"github.com/jcallum/medley/internal/cli/cl"
	"github.com/jcallum/medley/internal/cli/format"
	"github.com/jcallum/medley/internal/models"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var cmdTasksGet = &cobra.Command{
	Use:     "get <id>",
	Short:   "Get details on a specific task",
	Example: `$ medley tasks get f2o0jph4lsrc`,
	RunE:    tasksGet,
	Args:    cobra.ExactArgs(1),
}

func init() {
	CmdTasks.AddCommand(cmdTasksGet)
}

func tasksGet(_ *cobra.Command, args []string) error {
	id := args[0]

	cl.State.Fmt.Print("Retrieving task")

	resp := struct {
		Task models.Task `json:"task"`
	}{}
	if err := cl.State.Request(http.MethodGet, "/api/tasks/"+id, nil, &resp); err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not get task: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	cl.State.Fmt.Println(formatTaskInfo(resp.Task, cl.State.Config.Detail))
	cl.State.Fmt.Finish()

	return nil
}

type data struct {
	ID       string
	Name     string
	Type     string
	Status   string
	Progress string
	Message  string
	Error    string
	Created  string
	Files    [][]string
	LogsCmd  string
}

func formatTaskInfo(task models.Task, detail bool) string {
	faint := color.New(color.Faint).SprintfFunc()

	// First we create a FuncMap with which to register the function.
	funcMap := template.FuncMap{
		"magenta": color.MagentaString,
		"faint":   faint,
	}

	files := [][]string{}
	if task.Result != nil {
		for _, file := range task.Result.Files {
			files = append(files, []string{
				color.MagentaString("│"),
				file.Type,
				color.BlueString(file.Path),
			})
		}
	}

	data := data{
		ID:       color.BlueString(task.ID),
		Name:     task.Name,
		Type:     color.BlueString(task.Type),
		Status:   format.TaskStatus(string(task.Status)),
		Progress: format.Progress(task.Progress),
		Message:  task.Message,
		Error:    task.Error,
		Created:  format.UnixMilli(task.CreatedAt, "Unknown", detail),
		Files:    files,
		LogsCmd:  color.CyanString(fmt.Sprintf("medley tasks logs %s", task.ID)),
	}

	const formatTmpl = `Task {{.ID}} :: {{.Status}} :: {{.Progress}}

   {{magenta "│"}} Type: {{.Type}}
  {{if .Name}} {{magenta "│"}} Name: {{.Name}} {{- end}}
   {{magenta "│"}} Created {{.Created}}
  {{if .Message}} {{magenta "│"}} Message: {{.Message}} {{- end}}
{{- if .Error}}

 Error:
   {{magenta "│"}} {{.Error}}
{{ end }}

{{- if .Files}}
 Produced Files:
{{- range .Files}}
   {{index . 0}} {{index . 1}}: {{index . 2}}
{{- end}}
{{ end }}
* Use '{{.LogsCmd}}' to view logs.`

	var tpl bytes.Buffer
	t := template.Must(template.New("tmp").Funcs(funcMap).Parse(formatTmpl))
	_ = t.Execute(&tpl, data)
	return tpl.String()
}
