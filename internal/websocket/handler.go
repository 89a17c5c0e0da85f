package websocket

import (
	"github.com/fasthttp/websocket"
	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp"
)

// Authenticator validates the optional connect token.
type Authenticator interface {
	Enabled() bool
	SubjectFromRequest(ctx *fasthttp.RequestCtx) (string, error)
}

type Handler struct {
	hub      *Hub
	auth     Authenticator
	upgrader websocket.FastHTTPUpgrader
}

func NewHandler(hub *Hub, auth Authenticator, checkOrigin func(ctx *fasthttp.RequestCtx) bool) *Handler {
	return &Handler{
		hub:  hub,
		auth: auth,
		upgrader: websocket.FastHTTPUpgrader{
			CheckOrigin: checkOrigin,
		},
	}
}

func (h *Handler) HandleFastHTTP(ctx *fasthttp.RequestCtx) {
	subject := ""
	if h.auth != nil && h.auth.Enabled() {
		var err error
		subject, err = h.auth.SubjectFromRequest(ctx)
		if err != nil {
			log.Debug().Err(err).Msg("[WS] Connection rejected: invalid token")
			ctx.Error("Unauthorized", fasthttp.StatusUnauthorized)
			return
		}
	}

	err := h.upgrader.Upgrade(ctx, func(conn *websocket.Conn) {
		client := NewClient(h.hub, conn, subject)
		h.hub.Register(client)

		client.send <- &OutgoingMessage{
			Type:     MessageTypeConnected,
			ClientID: client.id,
		}

		log.Info().
			Str("clientId", client.id).
			Str("subject", subject).
			Msg("[WS] Client connected")

		go client.WritePump()
		client.ReadPump()
	})
	if err != nil {
		log.Error().Err(err).Msg("[WS] Failed to upgrade connection")
	}
}
