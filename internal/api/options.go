package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/camwatch/internal/api/models"
	"github.com/smazurov/camwatch/internal/ffmpeg"
)

// registerOptionsRoutes exposes the ffmpeg input options sources may use.
func (s *Server) registerOptionsRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-ffmpeg-options",
		Method:      http.MethodGet,
		Path:        "/api/options",
		Summary:     "Get FFmpeg Options",
		Description: "Input options accepted by the ffmpeg capture backend, with defaults and conflict groups",
		Tags:        []string{"configuration"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.OptionsResponse, error) {
		return &models.OptionsResponse{
			Body: models.OptionsData{
				Options: ffmpeg.AllOptions,
			},
		}, nil
	})
}
