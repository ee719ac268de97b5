package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog/log"

	"github.com/jcallum/medley/internal/models"
	"github.com/jcallum/medley/internal/pipeline"
)

type RunPipelineRequest struct {
	Body struct {
		Name  string                 `json:"name,omitempty" example:"subtitle korean lecture" doc:"Optional human readable task name"`
		Steps []pipeline.StepRequest `json:"steps" doc:"Ordered list of steps to execute"`
	}
}

type RunPipelineResponse struct {
	Body struct {
		TaskID  string `json:"task_id" example:"f1p2k9d8e3a1" doc:"Identifier of the task backing this run"`
		Message string `json:"message" example:"Task created" doc:"Whether the submission created, debounced into, or recycled a task"`
	}
}

func (apictx *APIContext) registerRunPipeline(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "RunPipeline",
		Method:      http.MethodPost,
		Path:        "/api/pipeline/run",
		Summary:     "Submit a pipeline of media processing steps",
		Description: "Runs the given steps in order against a shared pipeline context. Submissions that duplicate a " +
			"task that is still pending or running return the existing task id instead of enqueueing again; submissions " +
			"that duplicate a finished task recycle it in place, reusing its id.",
		Tags: []string{"Pipelines"},
		// Handler //
	}, func(_ context.Context, request *RunPipelineRequest) (*RunPipelineResponse, error) {
		if len(request.Body.Steps) > 0 {
			for _, step := range request.Body.Steps {
				if step.StepName == "" {
					return nil, huma.NewError(http.StatusBadRequest, "every step requires a step_name")
				}
			}
		}

		params, err := canonicalParams(map[string]any{"steps": request.Body.Steps})
		if err != nil {
			return nil, huma.NewError(http.StatusBadRequest, "pipeline steps are not serializable", err)
		}

		steps := request.Body.Steps

		taskID, note, err := apictx.submitOrRecycle(models.TaskTypePipeline, request.Body.Name,
			"Pipeline queued", params, func(taskID string) error {
				apictx.launchPipeline(taskID, steps)
				return nil
			})
		if err != nil {
			log.Error().Err(err).Msg("could not submit pipeline")
			return nil, huma.NewError(http.StatusInternalServerError, "could not submit pipeline", err)
		}

		resp := &RunPipelineResponse{}
		resp.Body.TaskID = taskID
		resp.Body.Message = note

		return resp, nil
	})
}
