// Package app is the setup package for all things API related. It properly initializes every collaborator
// into the service container and starts the main API service.
package app

import (
	"github.com/rs/zerolog/log"

	"github.com/jcallum/medley/internal/api"
	"github.com/jcallum/medley/internal/config"
	"github.com/jcallum/medley/internal/media"
	"github.com/jcallum/medley/internal/notifier"
	"github.com/jcallum/medley/internal/pipeline"
	"github.com/jcallum/medley/internal/runner"
	"github.com/jcallum/medley/internal/service"
	"github.com/jcallum/medley/internal/steps"
	"github.com/jcallum/medley/internal/storage"
	"github.com/jcallum/medley/internal/taskmanager"
)

// Service names registered into the container. Tests override individual
// entries to swap a collaborator without rebuilding the rest.
const (
	ServiceConfig         = "config"
	ServiceStorage        = "storage"
	ServiceTaskManager    = "task_manager"
	ServiceNotifier       = "notifier"
	ServicePool           = "worker_pool"
	ServicePipelineRunner = "pipeline_runner"
	ServiceBackground     = "background_runner"
	ServiceDownloader     = "downloader"
	ServiceTranscriber    = "transcriber"
	ServiceTranslator     = "translator"
	ServiceSynthesizer    = "synthesizer"
)

// RegisterAllServices fills the container with factories for every
// collaborator. Nothing is constructed until first resolved, so overriding an
// entry before use replaces it cleanly.
func RegisterAllServices(container *service.Container, conf *config.API) {
	container.Register(ServiceConfig, func() any { return conf })

	container.Register(ServiceStorage, func() any {
		db, err := storage.New(conf.Database.Path, conf.Database.MaxResultsLimit)
		if err != nil {
			log.Fatal().Err(err).Msg("could not init storage")
		}
		return db
	})

	container.Register(ServiceTaskManager, func() any {
		db, err := service.Resolve[storage.DB](container, ServiceStorage)
		if err != nil {
			log.Fatal().Err(err).Msg("could not resolve storage")
		}

		manager, err := taskmanager.New(db)
		if err != nil {
			log.Fatal().Err(err).Msg("could not init task manager")
		}
		return manager
	})

	container.Register(ServiceNotifier, func() any { return notifier.New() })

	container.Register(ServicePool, func() any { return runner.NewPool(conf.WorkerCount) })

	container.Register(ServicePipelineRunner, func() any {
		manager, err := service.Resolve[*taskmanager.Manager](container, ServiceTaskManager)
		if err != nil {
			log.Fatal().Err(err).Msg("could not resolve task manager")
		}
		return pipeline.NewRunner(manager, conf.TaskLogsDir)
	})

	container.Register(ServiceBackground, func() any {
		manager, err := service.Resolve[*taskmanager.Manager](container, ServiceTaskManager)
		if err != nil {
			log.Fatal().Err(err).Msg("could not resolve task manager")
		}
		pool, err := service.Resolve[*runner.Pool](container, ServicePool)
		if err != nil {
			log.Fatal().Err(err).Msg("could not resolve worker pool")
		}
		return runner.NewBackground(manager, pool, conf.TaskLogsDir)
	})

	container.Register(ServiceDownloader, func() any {
		return media.Downloader(&media.YTDLPDownloader{
			Binary: conf.Media.YTDLPPath,
			OutDir: conf.Media.DownloadDir,
		})
	})

	container.Register(ServiceTranscriber, func() any {
		return media.Transcriber(&media.WhisperTranscriber{
			Binary:    conf.Media.WhisperPath,
			ModelDir:  conf.Media.WhisperModelDir,
			OutputDir: conf.Media.OutputDir,
		})
	})

	container.Register(ServiceTranslator, func() any {
		return media.Translator(&media.CommandTranslator{
			Command: conf.Media.TranslatorCommand,
		})
	})

	container.Register(ServiceSynthesizer, func() any {
		return media.Synthesizer(&media.FFmpegSynthesizer{
			Binary: conf.Media.FFmpegPath,
			OutDir: conf.Media.OutputDir,
		})
	})
}

// StartServices initializes all required services and blocks serving the API.
func StartServices(conf *config.API) {
	if conf.Server.DevMode {
		log.Warn().Msg("server in development mode; not for use in production")
	}

	container := service.NewContainer()
	RegisterAllServices(container, conf)

	apictx, err := BuildAPI(container)
	if err != nil {
		log.Fatal().Err(err).Msg("could not init api")
	}

	apictx.StartAPIService()
}

// BuildAPI resolves every collaborator out of the container, wires the
// notifier and the built-in pipeline steps, and assembles the API context.
func BuildAPI(container *service.Container) (*api.APIContext, error) {
	conf, err := service.Resolve[*config.API](container, ServiceConfig)
	if err != nil {
		return nil, err
	}

	manager, err := service.Resolve[*taskmanager.Manager](container, ServiceTaskManager)
	if err != nil {
		return nil, err
	}

	observers, err := service.Resolve[*notifier.Notifier](container, ServiceNotifier)
	if err != nil {
		return nil, err
	}
	manager.SetNotifier(observers)

	pool, err := service.Resolve[*runner.Pool](container, ServicePool)
	if err != nil {
		return nil, err
	}

	pipelineRunner, err := service.Resolve[*pipeline.Runner](container, ServicePipelineRunner)
	if err != nil {
		return nil, err
	}

	background, err := service.Resolve[*runner.Background](container, ServiceBackground)
	if err != nil {
		return nil, err
	}

	downloader, err := service.Resolve[media.Downloader](container, ServiceDownloader)
	if err != nil {
		return nil, err
	}

	transcriber, err := service.Resolve[media.Transcriber](container, ServiceTranscriber)
	if err != nil {
		return nil, err
	}

	translator, err := service.Resolve[media.Translator](container, ServiceTranslator)
	if err != nil {
		return nil, err
	}

	synthesizer, err := service.Resolve[media.Synthesizer](container, ServiceSynthesizer)
	if err != nil {
		return nil, err
	}

	steps.RegisterAll(manager, downloader, transcriber, translator, synthesizer)

	log.Info().Str("database", conf.Database.Path).Int("workers", conf.WorkerCount).
		Msg("services initialized")

	return api.NewAPIContext(conf, manager, observers, pipelineRunner, background, pool,
		downloader, transcriber, translator), nil
}
