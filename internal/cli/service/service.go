package service

import (
	"github.com/spf13/cobra"
)

var CmdService = &cobra.Command{
	Use:   "service",
	Short: "Manages service related commands for Medley.",
	Long: `Manages service related commands for the Medley Service/API.

These commands help with managing and running the Medley service.`,
}
