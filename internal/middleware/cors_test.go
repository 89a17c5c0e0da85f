package middleware

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/valyala/fasthttp"
)

func TestCORSMiddleware_Handle_ShouldEchoAllowedOrigin(t *testing.T) {
	// given
	cm := NewCORSMiddleware([]string{"https://app.example.com"})
	ctx := newRequestCtx("/upload", "")
	ctx.Request.Header.Set("Origin", "https://app.example.com")

	// when
	cm.Handle(func(ctx *fasthttp.RequestCtx) {})(ctx)

	// then
	assert.Equal(t, "https://app.example.com", string(ctx.Response.Header.Peek("Access-Control-Allow-Origin")))
}

func TestCORSMiddleware_Handle_ShouldAnswerPreflight(t *testing.T) {
	// given
	cm := NewCORSMiddleware(nil)
	ctx := newRequestCtx("/upload", "")
	ctx.Request.Header.SetMethod(fasthttp.MethodOptions)
	called := false

	// when
	cm.Handle(func(ctx *fasthttp.RequestCtx) { called = true })(ctx)

	// then
	assert.False(t, called)
	assert.Equal(t, fasthttp.StatusNoContent, ctx.Response.StatusCode())
	assert.Equal(t, "*", string(ctx.Response.Header.Peek("Access-Control-Allow-Origin")))
}

func TestCORSMiddleware_isOriginAllowed_ShouldMatchLocalhostWildcard(t *testing.T) {
	cm := NewCORSMiddleware([]string{"http://localhost:*"})

	assert.True(t, cm.isOriginAllowed("http://localhost:5173"))
	assert.True(t, cm.isOriginAllowed("http://localhost"))
	assert.False(t, cm.isOriginAllowed("http://evil.example.com"))
}

func TestCORSMiddleware_AllowsRequest_ShouldRejectUnknownOrigin(t *testing.T) {
	// given
	cm := NewCORSMiddleware([]string{"https://app.example.com"})
	allowed := newRequestCtx("/ws", "")
	allowed.Request.Header.Set("Origin", "https://app.example.com")
	denied := newRequestCtx("/ws", "")
	denied.Request.Header.Set("Origin", "https://evil.example.com")
	native := newRequestCtx("/ws", "")

	// then
	assert.True(t, cm.AllowsRequest(allowed))
	assert.False(t, cm.AllowsRequest(denied))
	assert.True(t, cm.AllowsRequest(native))
}
