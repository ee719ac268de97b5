package tasks

import (
	"github.com/spf13/cobra"
)

var CmdTasks = &cobra.Command{
	Use:   "tasks",
	Short: "Manage medley tasks",
	Long: `Manage medley tasks.

Every download, transcription, translation, or pipeline submission becomes a task. These commands
let you inspect, follow, cancel, resume, and clean up those tasks.`,
}
