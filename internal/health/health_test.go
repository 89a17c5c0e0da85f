package health

import (
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

func TestHealthEndpoints_Health_ShouldReportOk(t *testing.T) {
	// given
	endpoints := NewEndpoints("1.0.0", t.TempDir())
	ctx := &fasthttp.RequestCtx{}

	// when
	endpoints.Health(ctx)

	// then
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	var response HealthResponse
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &response))
	assert.Equal(t, "ok", response.Status)
	assert.Equal(t, "1.0.0", response.Version)
}

func TestHealthEndpoints_Health_ShouldReportDegradedWithoutUploadRoot(t *testing.T) {
	// given
	endpoints := NewEndpoints("1.0.0", filepath.Join(t.TempDir(), "missing"))
	ctx := &fasthttp.RequestCtx{}

	// when
	endpoints.Health(ctx)

	// then
	assert.Equal(t, fasthttp.StatusServiceUnavailable, ctx.Response.StatusCode())
	var response HealthResponse
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &response))
	assert.Equal(t, "degraded", response.Status)
	assert.Equal(t, "unavailable", response.Uploads)
}
