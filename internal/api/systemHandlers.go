package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

type (
	DescribeSystemInfoRequest  struct{}
	DescribeSystemInfoResponse struct {
		Body struct {
			Commit    string `json:"commit" example:"e83adcd" doc:"The commit of the current build"`
			Semver    string `json:"semver" example:"1.0.0" doc:"The semver version of the current build"`
			Observers int    `json:"observers" example:"2" doc:"Number of live websocket observers"`
			Workers   int    `json:"workers" example:"2" doc:"Size of the background worker pool"`
		}
	}
)

func (apictx *APIContext) registerDescribeSystemInfo(apiDesc huma.API) {
	// Description //
	huma.Register(apiDesc, huma.Operation{
		OperationID: "DescribeSystemInfo",
		Method:      http.MethodGet,
		Path:        "/api/system/info",
		Summary:     "Describe current system information",
		Description: "Return a number of internal meta information about the medley server.",
		Tags:        []string{"System"},
		// Handler //
	}, func(_ context.Context, _ *DescribeSystemInfoRequest) (*DescribeSystemInfoResponse, error) {
		version, commit := parseVersion(appVersion)
		resp := &DescribeSystemInfoResponse{}
		resp.Body.Commit = commit
		resp.Body.Semver = version
		resp.Body.Observers = apictx.notifier.Count()
		resp.Body.Workers = apictx.config.WorkerCount

		return resp, nil
	})
}
