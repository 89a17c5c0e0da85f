package internal

import (
	"math"
	"strings"

	"github.com/jlairapp/faceFlipper/internal/health"
	"github.com/jlairapp/faceFlipper/internal/middleware"
	"github.com/jlairapp/faceFlipper/internal/upload"
	"github.com/jlairapp/faceFlipper/internal/websocket"
	"github.com/valyala/fasthttp"
)

const ownerQueryArg = "_id"

func NewRequestHandler(corsMiddleware *middleware.CORSMiddleware, authMiddleware *middleware.AuthMiddleware, healthEndpoints *health.HealthEndpoints, uploadEndpoints *upload.Endpoints, wsHandler *websocket.Handler) fasthttp.RequestHandler {
	handler := func(ctx *fasthttp.RequestCtx) {
		path := string(ctx.Path())

		switch {
		case path == "/health":
			healthEndpoints.Health(ctx)

		case path == "/upload":
			if ctx.IsPost() {
				authMiddleware.RequireOwner(ownerQueryArg, uploadEndpoints.Upload)(ctx)
			} else {
				ctx.Error("Method Not Allowed", fasthttp.StatusMethodNotAllowed)
			}
		case strings.HasPrefix(path, "/upload/"):
			parts := strings.Split(path, "/")
			if len(parts) == 3 && parts[2] != "" {
				ctx.SetUserValue("uploadID", parts[2])
				if string(ctx.Method()) == fasthttp.MethodDelete {
					authMiddleware.RequireOwner(ownerQueryArg, uploadEndpoints.Delete)(ctx)
				} else {
					ctx.Error("Method Not Allowed", fasthttp.StatusMethodNotAllowed)
				}
			} else {
				ctx.Error("Not Found", fasthttp.StatusNotFound)
			}

		case path == "/ws":
			wsHandler.HandleFastHTTP(ctx)

		default:
			ctx.Error("Not Found", fasthttp.StatusNotFound)
		}
	}

	return middleware.Logging(corsMiddleware.Handle(handler))
}

// NewServer streams request bodies without a size cap. The maximum file size
// is enforced by the upload coordinator alone.
func NewServer(handler fasthttp.RequestHandler) *fasthttp.Server {
	return &fasthttp.Server{
		Handler:            handler,
		Name:               "faceFlipper",
		StreamRequestBody:  true,
		MaxRequestBodySize: math.MaxInt,
	}
}
