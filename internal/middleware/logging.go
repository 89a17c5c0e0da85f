package middleware

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp"
)

const headerRequestID = "X-Request-ID"

// Logging logs one line per request and tags the response with a request id.
func Logging(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		reqID := string(ctx.Request.Header.Peek(headerRequestID))
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx.Response.Header.Set(headerRequestID, reqID)

		start := time.Now()
		next(ctx)

		log.Info().
			Str("reqId", reqID).
			Str("method", string(ctx.Method())).
			Str("path", string(ctx.Path())).
			Int("status", ctx.Response.StatusCode()).
			Int("size", len(ctx.Response.Body())).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	}
}
