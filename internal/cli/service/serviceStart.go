package service

import (
	"os"

	"github.com/jcallum/medley/internal/app"
	"github.com/jcallum/medley/internal/cli/cl"
	"github.com/jcallum/medley/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/spf13/cobra"
)

var cmdServiceStart = &cobra.Command{
	Use:   "start",
	Short: "Start the Medley server",
	Long: `Start the Medley server.

Running this command attempts to start the long running service. This command will block and only
gracefully stop on SIGINT or SIGTERM signals.

Run 'medley service printenv' to list the environment variables the server reads on startup.`,
	RunE: serverStart,
}

func init() {
	cmdServiceStart.Flags().BoolP("dev-mode", "d", false, "Alters several feature flags such that development is easy. "+
		"This is not to be used in production and may turn off features that are useful for even development like request logging")
	CmdService.AddCommand(cmdServiceStart)
}

func serverStart(cmd *cobra.Command, _ []string) error {
	cl.State.Fmt.Finish()

	configPath, _ := cmd.Flags().GetString("config")
	conf, err := config.InitAPIConfig(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("error in config initialization")
	}

	devMode, _ := cmd.Flags().GetBool("dev-mode")
	if devMode {
		conf.Server.DevMode = true
	}

	setupLogging(conf.LogLevel, conf.Server.DevMode)
	app.StartServices(conf)

	return nil
}

func setupLogging(loglevel string, pretty bool) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.With().Caller().Logger()
	zerolog.SetGlobalLevel(parseLogLevel(loglevel))
	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func parseLogLevel(loglevel string) zerolog.Level {
	switch loglevel {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	default:
		log.Error().Msgf("loglevel %s not recognized; defaulting to debug", loglevel)
		return zerolog.DebugLevel
	}
}
