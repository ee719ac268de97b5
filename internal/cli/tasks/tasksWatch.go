package tasks

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jcallum/medley/internal/cli/cl"
	"github.com/jcallum/medley/internal/cli/format"
	"github.com/jcallum/medley/internal/models"

	"github.com/fatih/color"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

var cmdTasksWatch = &cobra.Command{
	Use:   "watch",
	Short: "Stream live task state changes",
	Long: `Stream live task state changes.

Connects to the server's observer websocket. The first frame is always a full snapshot of every
task; after that each state change arrives as its own frame. Blocks until interrupted.`,
	Example: `$ medley tasks watch`,
	RunE:    tasksWatch,
}

func init() {
	CmdTasks.AddCommand(cmdTasksWatch)
}

func tasksWatch(_ *cobra.Command, _ []string) error {
	cl.State.Fmt.Print("Connecting to server")

	conn, _, err := websocket.DefaultDialer.Dial(cl.State.WebsocketURL("/ws/tasks"), nil)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not connect to server: %v", err))
		cl.State.Fmt.Finish()
		return err
	}
	defer conn.Close()

	cl.State.Fmt.PrintSuccess("Connected; watching tasks")
	cl.State.Fmt.Finish()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	frames := make(chan models.WireMessage)
	readErr := make(chan error, 1)

	go func() {
		for {
			var frame models.WireMessage
			if err := conn.ReadJSON(&frame); err != nil {
				readErr <- err
				return
			}
			frames <- frame
		}
	}()

	for {
		select {
		case <-quit:
			return nil
		case err := <-readErr:
			return fmt.Errorf("connection closed: %w", err)
		case frame := <-frames:
			printFrame(frame)
		}
	}
}

func printFrame(frame models.WireMessage) {
	switch frame.Type {
	case models.WireTypeSnapshot:
		fmt.Printf("%s %d task(s) known\n", color.BlueString("snapshot"), len(frame.Tasks))
		for _, task := range frame.Tasks {
			printTaskLine(task)
		}
	case models.WireTypeUpdate:
		if frame.Task != nil {
			printTaskLine(*frame.Task)
		}
	case models.WireTypeDelete:
		fmt.Printf("%s %s\n", color.RedString("deleted"), frame.TaskID)
	}
}

func printTaskLine(task models.Task) {
	line := fmt.Sprintf("%s [%s] %s %s",
		color.YellowString(task.ID),
		task.Type,
		format.TaskStatus(string(task.Status)),
		format.Progress(task.Progress))
	if task.Message != "" {
		line += " :: " + task.Message
	}
	fmt.Println(line)
}
