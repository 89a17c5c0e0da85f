package health

import (
	"os"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp"
)

type HealthEndpoints struct {
	version    string
	uploadRoot string
}

func NewEndpoints(version, uploadRoot string) *HealthEndpoints {
	return &HealthEndpoints{
		version:    version,
		uploadRoot: uploadRoot,
	}
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uploads string `json:"uploads"`
}

// Health reports ok while the upload root is reachable.
func (h *HealthEndpoints) Health(ctx *fasthttp.RequestCtx) {
	response := HealthResponse{
		Status:  "ok",
		Version: h.version,
		Uploads: "ok",
	}
	status := fasthttp.StatusOK

	if info, err := os.Stat(h.uploadRoot); err != nil || !info.IsDir() {
		log.Warn().Err(err).Str("uploadRoot", h.uploadRoot).Msg("Upload root unavailable")
		response.Status = "degraded"
		response.Uploads = "unavailable"
		status = fasthttp.StatusServiceUnavailable
	}

	responseJSON, err := json.Marshal(response)
	if err != nil {
		ctx.Error("Internal Server Error", fasthttp.StatusInternalServerError)
		return
	}

	ctx.SetContentType("application/json")
	ctx.SetStatusCode(status)
	ctx.SetBody(responseJSON)
}
