package middleware

import (
	"regexp"

	"github.com/valyala/fasthttp"
)

var localhostOrigin = regexp.MustCompile(`^https?://localhost(:\d+)?$`)

// CORSMiddleware lets the browser uploader post from another origin.
// "*" allows any origin; "http://localhost:*" allows any local dev port.
type CORSMiddleware struct {
	allowedOrigins []string
}

func NewCORSMiddleware(allowedOrigins []string) *CORSMiddleware {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	return &CORSMiddleware{allowedOrigins: allowedOrigins}
}

func (cm *CORSMiddleware) Handle(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		origin := string(ctx.Request.Header.Peek("Origin"))

		switch {
		case origin != "" && cm.isOriginAllowed(origin):
			ctx.Response.Header.Set("Access-Control-Allow-Origin", origin)
			ctx.Response.Header.Set("Access-Control-Allow-Credentials", "true")
			ctx.Response.Header.Add("Vary", "Origin")
		case cm.wildcard():
			ctx.Response.Header.Set("Access-Control-Allow-Origin", "*")
		}

		ctx.Response.Header.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		ctx.Response.Header.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Cache-Control, X-Requested-With")
		ctx.Response.Header.Set("Access-Control-Expose-Headers", "Content-Type, X-Request-ID")
		ctx.Response.Header.Set("Access-Control-Max-Age", "86400")

		if ctx.IsOptions() {
			ctx.SetStatusCode(fasthttp.StatusNoContent)
			return
		}

		next(ctx)
	}
}

func (cm *CORSMiddleware) wildcard() bool {
	return len(cm.allowedOrigins) == 1 && cm.allowedOrigins[0] == "*"
}

func (cm *CORSMiddleware) isOriginAllowed(origin string) bool {
	for _, allowed := range cm.allowedOrigins {
		switch allowed {
		case origin:
			return true
		case "http://localhost:*", "https://localhost:*":
			if localhostOrigin.MatchString(origin) {
				return true
			}
		}
	}
	return cm.wildcard() && localhostOrigin.MatchString(origin)
}

// AllowsRequest reports whether the request's Origin may open a websocket.
// Requests without an Origin header come from non-browser clients.
func (cm *CORSMiddleware) AllowsRequest(ctx *fasthttp.RequestCtx) bool {
	origin := string(ctx.Request.Header.Peek("Origin"))
	return origin == "" || cm.wildcard() || cm.isOriginAllowed(origin)
}
