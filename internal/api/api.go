// Package api controls the bulk of the medley API logic.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/handlers"
	"github.com/rs/zerolog/log"

	"github.com/jcallum/medley/internal/config"
	"github.com/jcallum/medley/internal/media"
	"github.com/jcallum/medley/internal/models"
	"github.com/jcallum/medley/internal/notifier"
	"github.com/jcallum/medley/internal/pipeline"
	"github.com/jcallum/medley/internal/resume"
	"github.com/jcallum/medley/internal/runner"
	"github.com/jcallum/medley/internal/taskmanager"
)

var appVersion = "0.0.dev_000000"

func parseVersion(versionString string) (version, commit string) {
	version, commit, found := strings.Cut(versionString, "_")
	if !found {
		return "", ""
	}

	return
}

type CancelContext struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// APIContext represents the main medley service. It ties the task manager, the
// observer fan-out, and the runners together behind the HTTP surface.
type APIContext struct {
	// Parent context for management goroutines. Used to easily stop goroutines on shutdown.
	context *CancelContext

	// Config represents the relative configuration for the medley API. This is a combination of envvars and config
	// values gleaned at startup time.
	config *config.API

	manager  *taskmanager.Manager
	notifier *notifier.Notifier

	pipelineRunner *pipeline.Runner
	background     *runner.Background
	pool           *runner.Pool
	resume         *resume.Service

	downloader  media.Downloader
	transcriber media.Transcriber
	translator  media.Translator
}

// NewAPIContext assembles the service around already-constructed collaborators.
func NewAPIContext(conf *config.API, manager *taskmanager.Manager, observers *notifier.Notifier,
	pipelineRunner *pipeline.Runner, background *runner.Background, pool *runner.Pool,
	downloader media.Downloader, transcriber media.Transcriber, translator media.Translator,
) *APIContext {
	ctx, cancel := context.WithCancel(context.Background())

	apictx := &APIContext{
		context:        &CancelContext{ctx: ctx, cancel: cancel},
		config:         conf,
		manager:        manager,
		notifier:       observers,
		pipelineRunner: pipelineRunner,
		background:     background,
		pool:           pool,
		downloader:     downloader,
		transcriber:    transcriber,
		translator:     translator,
	}

	apictx.resume = resume.NewService(manager)
	apictx.registerResumeHandlers()

	return apictx
}

// registerResumeHandlers binds each task type to the code path that relaunches
// it from stored request params. Types without their own handler fall through
// to the pipeline handler inside the resume service.
func (apictx *APIContext) registerResumeHandlers() {
	apictx.resume.Register(resume.HandlerFunc{
		TaskType: models.TaskTypePipeline,
		Fn: func(_ context.Context, task models.Task) error {
			steps, err := stepsFromParams(task.RequestParams)
			if err != nil {
				return err
			}

			apictx.launchPipeline(task.ID, steps)
			return nil
		},
	})

	apictx.resume.Register(resume.HandlerFunc{
		TaskType: models.TaskTypeDownload,
		Fn: func(_ context.Context, task models.Task) error {
			return apictx.launchDownload(task.ID, task.RequestParams)
		},
	})

	apictx.resume.Register(resume.HandlerFunc{
		TaskType: models.TaskTypeTranscribe,
		Fn: func(_ context.Context, task models.Task) error {
			return apictx.launchTranscription(task.ID, task.RequestParams)
		},
	})

	apictx.resume.Register(resume.HandlerFunc{
		TaskType: models.TaskTypeTranslate,
		Fn: func(_ context.Context, task models.Task) error {
			return apictx.launchTranslation(task.ID, task.RequestParams)
		},
	})
}

// launchPipeline schedules a pipeline run on the shared worker pool. The run
// gets a context that is cancelled when the task's cancel latch flips so steps
// blocked on I/O stop without polling themselves.
func (apictx *APIContext) launchPipeline(taskID string, steps []pipeline.StepRequest) {
	apictx.pool.Submit(func() {
		ctx, cancel := context.WithCancel(apictx.context.ctx)
		defer cancel()

		watchDone := make(chan struct{})
		defer close(watchDone)
		go func() {
			ticker := time.NewTicker(500 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-watchDone:
					return
				case <-ctx.Done():
					return
				case <-ticker.C:
					if apictx.manager.IsCancelled(taskID) {
						cancel()
						return
					}
				}
			}
		}()

		_, err := apictx.pipelineRunner.Run(ctx, taskID, steps)
		if err != nil {
			log.Debug().Err(err).Str("task_id", taskID).Msg("pipeline run did not complete")
		}
	})
}

// submitOrRecycle is the shared submission path: debounce against an existing
// active task, recycle a matching terminal task in place, or create a new one.
// The resolution itself is a single atomic manager operation, so identical
// concurrent submissions get the same task id and launch is only called by the
// one caller that actually (re)started the work.
func (apictx *APIContext) submitOrRecycle(taskType, name, message string, params map[string]any,
	launch func(taskID string) error,
) (taskID string, note string, err error) {
	id, outcome, err := apictx.manager.Submit(taskType, name, message, params)
	if err != nil {
		return "", "", err
	}

	if outcome == taskmanager.SubmitDebounced {
		return id, "Task already active", nil
	}

	if err := launch(id); err != nil {
		return "", "", err
	}

	if outcome == taskmanager.SubmitRecycled {
		return id, "Task recycled", nil
	}

	return id, "Task created", nil
}

// stepsFromParams recovers the typed step list from a task's canonical stored
// params.
func stepsFromParams(params map[string]any) ([]pipeline.StepRequest, error) {
	rawSteps, ok := params["steps"]
	if !ok {
		return nil, fmt.Errorf("request params carry no steps")
	}

	encoded, err := json.Marshal(rawSteps)
	if err != nil {
		return nil, err
	}

	steps := []pipeline.StepRequest{}
	if err := json.Unmarshal(encoded, &steps); err != nil {
		return nil, fmt.Errorf("request params steps are malformed: %w", err)
	}

	return steps, nil
}

// canonicalParams round-trips any JSON-serializable value into the map form the
// task manager stores and keys on.
func canonicalParams(v any) (map[string]any, error) {
	encoded, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	params := map[string]any{}
	if err := json.Unmarshal(encoded, &params); err != nil {
		return nil, err
	}

	return params, nil
}

// Router assembles the full HTTP surface: the huma-described REST API plus the
// raw websocket endpoint, which huma cannot describe.
func (apictx *APIContext) Router() *chi.Mux {
	router := chi.NewMux()

	version, _ := parseVersion(appVersion)
	apiDesc := humachi.New(router, huma.DefaultConfig("Medley", version))

	apictx.registerRunPipeline(apiDesc)
	apictx.registerSubmitDownload(apiDesc)
	apictx.registerSubmitTranscription(apiDesc)
	apictx.registerSubmitTranslation(apiDesc)
	apictx.registerListTasks(apiDesc)
	apictx.registerDescribeTask(apiDesc)
	apictx.registerCancelTask(apiDesc)
	apictx.registerCancelAllTasks(apiDesc)
	apictx.registerResumeTask(apiDesc)
	apictx.registerDeleteTask(apiDesc)
	apictx.registerDeleteAllTasks(apiDesc)
	apictx.registerGetTaskLogs(apiDesc)
	apictx.registerDescribeSystemInfo(apiDesc)

	router.Get("/ws/tasks", apictx.observeTasksHandler)

	return router
}

// StartAPIService starts the medley API service and blocks until a SIGINT or SIGTERM is received.
func (apictx *APIContext) StartAPIService() {
	router := apictx.Router()

	var handler http.Handler = router
	if apictx.config.Server.DevMode {
		handler = handlers.LoggingHandler(os.Stdout, router)
	}

	httpServer := &http.Server{
		Addr:         apictx.config.Host,
		Handler:      handler,
		WriteTimeout: 0,
		ReadTimeout:  0,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server exited abnormally")
		}
	}()
	log.Info().Str("url", apictx.config.Host).Msg("started medley http service")

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGTERM, syscall.SIGINT)
	<-c

	// Stop the latch watchers and any in-flight pipeline contexts before
	// closing out connections.
	apictx.context.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), apictx.config.Server.ShutdownTimeout)
	defer cancel()

	err := httpServer.Shutdown(ctx)
	if err != nil {
		log.Error().Err(err).Msg("could not shutdown server in timeout specified")
		return
	}

	log.Info().Msg("http server exited gracefully")
}
