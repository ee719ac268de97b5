package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog/log"

	"github.com/jcallum/medley/internal/media"
	"github.com/jcallum/medley/internal/models"
	"github.com/jcallum/medley/internal/runner"
)

// launchDownload schedules a standalone download worker for the task.
func (apictx *APIContext) launchDownload(taskID string, params map[string]any) error {
	url, _ := params["url"].(string)
	if url == "" {
		return fmt.Errorf("download requires a url")
	}

	req := media.DownloadRequest{URL: url}
	req.Quality, _ = params["quality"].(string)
	req.OutDir, _ = params["out_dir"].(string)

	worker := func(ctx context.Context, progress media.ProgressFunc) (any, error) {
		return apictx.downloader.Download(ctx, req, progress)
	}

	return apictx.background.Run(taskID, worker, runner.Options{
		StartMessage:   "Starting download...",
		SuccessMessage: "Download complete",
		Transform:      downloadResultTransform,
	})
}

func downloadResultTransform(raw any) *models.TaskResult {
	result, ok := raw.(*media.DownloadResult)
	if !ok {
		return &models.TaskResult{Success: true}
	}

	return &models.TaskResult{
		Success: true,
		Files:   []models.FileRef{{Type: "video", Path: result.VideoPath}},
		Meta: map[string]any{
			"title":          result.Title,
			"media_filename": result.Filename,
		},
	}
}

// launchTranscription schedules a standalone transcription worker for the task.
func (apictx *APIContext) launchTranscription(taskID string, params map[string]any) error {
	audioPath, _ := params["audio_path"].(string)
	if audioPath == "" {
		return fmt.Errorf("transcription requires an audio_path")
	}

	req := media.TranscribeRequest{AudioPath: audioPath}
	req.Model, _ = params["model"].(string)
	req.Language, _ = params["language"].(string)

	worker := func(ctx context.Context, progress media.ProgressFunc) (any, error) {
		return apictx.transcriber.Transcribe(ctx, req, progress)
	}

	return apictx.background.Run(taskID, worker, runner.Options{
		StartMessage:   "Starting transcription...",
		SuccessMessage: "Transcription complete",
		Transform:      transcribeResultTransform,
	})
}

func transcribeResultTransform(raw any) *models.TaskResult {
	result, ok := raw.(*media.TranscribeResult)
	if !ok {
		return &models.TaskResult{Success: true}
	}

	return &models.TaskResult{
		Success: true,
		Files:   []models.FileRef{{Type: "subtitle", Path: result.SRTPath}},
		Meta: map[string]any{
			"text":     result.Text,
			"segments": result.Segments,
			"language": result.Language,
		},
	}
}

// launchTranslation schedules a standalone subtitle translation worker for the task.
func (apictx *APIContext) launchTranslation(taskID string, params map[string]any) error {
	srtPath, _ := params["srt_path"].(string)
	targetLang, _ := params["target_lang"].(string)
	if srtPath == "" || targetLang == "" {
		return fmt.Errorf("translation requires srt_path and target_lang")
	}

	req := media.TranslateRequest{SRTPath: srtPath, TargetLang: targetLang}

	worker := func(ctx context.Context, progress media.ProgressFunc) (any, error) {
		return apictx.translator.Translate(ctx, req, progress)
	}

	return apictx.background.Run(taskID, worker, runner.Options{
		StartMessage:   "Starting translation...",
		SuccessMessage: "Translation complete",
		Transform:      translateResultTransform,
	})
}

func translateResultTransform(raw any) *models.TaskResult {
	result, ok := raw.(*media.TranslateResult)
	if !ok {
		return &models.TaskResult{Success: true}
	}

	return &models.TaskResult{
		Success: true,
		Files:   []models.FileRef{{Type: "subtitle", Path: result.SRTPath, Label: "Translated subtitles"}},
		Meta: map[string]any{
			"translated_segments": result.Segments,
		},
	}
}

type SubmitDownloadRequest struct {
	Body struct {
		URL     string `json:"url" example:"https://youtu.be/dQw4w9WgXcQ" doc:"Remote media URL to fetch"`
		Quality string `json:"quality,omitempty" example:"720p" doc:"Preferred format or quality selector"`
		Name    string `json:"name,omitempty" doc:"Optional human readable task name"`
	}
}

type SubmitDownloadResponse struct {
	Body struct {
		TaskID  string `json:"task_id" doc:"Identifier of the task backing this download"`
		Message string `json:"message" doc:"Whether the submission created, debounced into, or recycled a task"`
	}
}

func (apictx *APIContext) registerSubmitDownload(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "SubmitDownload",
		Method:      http.MethodPost,
		Path:        "/api/download",
		Summary:     "Download a remote media file",
		Description: "Fetches the given URL in the background. Resubmitting a URL that is already being fetched " +
			"returns the active task instead of starting a second download.",
		Tags: []string{"Media"},
		// Handler //
	}, func(_ context.Context, request *SubmitDownloadRequest) (*SubmitDownloadResponse, error) {
		if request.Body.URL == "" {
			return nil, huma.NewError(http.StatusBadRequest, "url required")
		}

		params, err := canonicalParams(map[string]any{
			"url":     request.Body.URL,
			"quality": request.Body.Quality,
		})
		if err != nil {
			return nil, huma.NewError(http.StatusBadRequest, "request params are not serializable", err)
		}

		taskID, note, err := apictx.submitOrRecycle(models.TaskTypeDownload, request.Body.Name,
			"Download queued", params, func(taskID string) error {
				return apictx.launchDownload(taskID, params)
			})
		if err != nil {
			log.Error().Err(err).Msg("could not submit download")
			return nil, huma.NewError(http.StatusInternalServerError, "could not submit download", err)
		}

		resp := &SubmitDownloadResponse{}
		resp.Body.TaskID = taskID
		resp.Body.Message = note

		return resp, nil
	})
}

type SubmitTranslationRequest struct {
	Body struct {
		SRTPath    string `json:"srt_path" example:"/media/lecture.srt" doc:"Subtitle file to translate"`
		TargetLang string `json:"target_lang" example:"en" doc:"Language to translate the subtitles into"`
		Name       string `json:"name,omitempty" doc:"Optional human readable task name"`
	}
}

type SubmitTranslationResponse struct {
	Body struct {
		TaskID  string `json:"task_id" doc:"Identifier of the task backing this translation"`
		Message string `json:"message" doc:"Whether the submission created, debounced into, or recycled a task"`
	}
}

func (apictx *APIContext) registerSubmitTranslation(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "SubmitTranslation",
		Method:      http.MethodPost,
		Path:        "/api/translate",
		Summary:     "Translate a subtitle file",
		Description: "Translates the given subtitle file into the target language in the background.",
		Tags:        []string{"Media"},
		// Handler //
	}, func(_ context.Context, request *SubmitTranslationRequest) (*SubmitTranslationResponse, error) {
		if request.Body.SRTPath == "" || request.Body.TargetLang == "" {
			return nil, huma.NewError(http.StatusBadRequest, "srt_path and target_lang required")
		}

		params, err := canonicalParams(map[string]any{
			"srt_path":    request.Body.SRTPath,
			"target_lang": request.Body.TargetLang,
		})
		if err != nil {
			return nil, huma.NewError(http.StatusBadRequest, "request params are not serializable", err)
		}

		taskID, note, err := apictx.submitOrRecycle(models.TaskTypeTranslate, request.Body.Name,
			"Translation queued", params, func(taskID string) error {
				return apictx.launchTranslation(taskID, params)
			})
		if err != nil {
			log.Error().Err(err).Msg("could not submit translation")
			return nil, huma.NewError(http.StatusInternalServerError, "could not submit translation", err)
		}

		resp := &SubmitTranslationResponse{}
		resp.Body.TaskID = taskID
		resp.Body.Message = note

		return resp, nil
	})
}

type SubmitTranscriptionRequest struct {
	Body struct {
		AudioPath string `json:"audio_path" example:"/media/lecture.mp3" doc:"Local media file to recognize speech from"`
		Model     string `json:"model,omitempty" example:"base" doc:"Speech recognition model name"`
		Language  string `json:"language,omitempty" example:"ko" doc:"Spoken language hint"`
		Name      string `json:"name,omitempty" doc:"Optional human readable task name"`
	}
}

type SubmitTranscriptionResponse struct {
	Body struct {
		TaskID  string `json:"task_id" doc:"Identifier of the task backing this transcription"`
		Message string `json:"message" doc:"Whether the submission created, debounced into, or recycled a task"`
	}
}

func (apictx *APIContext) registerSubmitTranscription(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "SubmitTranscription",
		Method:      http.MethodPost,
		Path:        "/api/transcribe",
		Summary:     "Transcribe a local media file",
		Description: "Runs speech recognition over the given file in the background and produces a subtitle file.",
		Tags:        []string{"Media"},
		// Handler //
	}, func(_ context.Context, request *SubmitTranscriptionRequest) (*SubmitTranscriptionResponse, error) {
		if request.Body.AudioPath == "" {
			return nil, huma.NewError(http.StatusBadRequest, "audio_path required")
		}

		params, err := canonicalParams(map[string]any{
			"audio_path": request.Body.AudioPath,
			"model":      request.Body.Model,
			"language":   request.Body.Language,
		})
		if err != nil {
			return nil, huma.NewError(http.StatusBadRequest, "request params are not serializable", err)
		}

		taskID, note, err := apictx.submitOrRecycle(models.TaskTypeTranscribe, request.Body.Name,
			"Transcription queued", params, func(taskID string) error {
				return apictx.launchTranscription(taskID, params)
			})
		if err != nil {
			log.Error().Err(err).Msg("could not submit transcription")
			return nil, huma.NewError(http.StatusInternalServerError, "could not submit transcription", err)
		}

		resp := &SubmitTranscriptionResponse{}
		resp.Body.TaskID = taskID
		resp.Body.Message = note

		return resp, nil
	})
}
