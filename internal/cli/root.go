// Package cli controls the main user entry point into both the API and interacting with it.
// It provides not only administrators an easy way to run the server, but is the main entry point
// for how non-UI users interact with medley.
package cli

import (
	"fmt"
	"strings"

	"github.com/jcallum/medley/internal/cli/cl"
	"github.com/jcallum/medley/internal/cli/service"
	"github.com/jcallum/medley/internal/cli/tasks"
	"github.com/spf13/cobra"
)

var appVersion = "0.0.dev_000000"

// RootCmd is the base of the cli
var RootCmd = &cobra.Command{
	Use:   "medley",
	Short: "Medley is a self-hosted media processing server.",
	Long: `Medley is a self-hosted media processing server.

It downloads, transcribes, translates, and re-renders media through a small pipeline engine.
Every submission becomes a persistent, cancellable task whose progress can be followed over
the command line or a websocket.`,
	Version: " ", // We leave this added but empty so that the rootcmd will supply the -v flag
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		cl.InitState(cmd)
	},
}

func init() {
	RootCmd.SetVersionTemplate(humanizeVersion(appVersion))
	RootCmd.AddCommand(service.CmdService)
	RootCmd.AddCommand(tasks.CmdTasks)

	RootCmd.PersistentFlags().String("config", "", "configuration file path")
	RootCmd.PersistentFlags().Bool("detail", false, "show extra detail for some commands (ex. Exact time instead of humanized)")
	RootCmd.PersistentFlags().String("format", "", "output format; accepted values are 'pretty', 'json', 'silent'")
	RootCmd.PersistentFlags().Bool("no-color", false, "disable color output")
	RootCmd.PersistentFlags().String("host", "", "specify the URL of the server to communicate to")
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return RootCmd.Execute()
}

func humanizeVersion(version string) string {
	semver, hash, found := strings.Cut(version, "_")
	if !found {
		return ""
	}
	return fmt.Sprintf("medley %s [%s]\n", semver, hash)
}
