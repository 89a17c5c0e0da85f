package websocket

import (
	"time"

	"github.com/fasthttp/websocket"
	"github.com/google/uuid"
	"github.com/jlairapp/faceFlipper/internal/upload"
	"github.com/rs/zerolog/log"
)

const (
	writeTimeout   = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = 30 * time.Second
	maxMessageSize = 4 * 1024
	sendBufferSize = 64
)

type Client struct {
	id      string
	subject string
	hub     *Hub
	conn    *websocket.Conn
	send    chan interface{}
}

func NewClient(hub *Hub, conn *websocket.Conn, subject string) *Client {
	return &Client{
		id:      uuid.NewString(),
		subject: subject,
		hub:     hub,
		conn:    conn,
		send:    make(chan interface{}, sendBufferSize),
	}
}

func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg IncomingMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Debug().Str("clientId", c.id).Err(err).Msg("[WS] Read error")
			} else {
				log.Debug().Str("clientId", c.id).Msg("[WS] Client disconnected")
			}
			return
		}

		c.handleMessage(&msg)
	}
}

func (c *Client) handleMessage(msg *IncomingMessage) {
	switch msg.Type {
	case MessageTypeFileUpload:
		announcement := &UploadMessage{Type: MessageTypeUpload, Message: uploadMessage}
		if msg.UploadID != "" {
			announcement.Upload = &upload.UploadCompleted{UploadID: msg.UploadID}
		}
		c.hub.Announce(announcement)

	case MessageTypePing:
		select {
		case c.send <- &OutgoingMessage{Type: MessageTypePong}:
		default:
		}

	default:
		log.Debug().
			Str("type", string(msg.Type)).
			Msg("[WS] Unknown message type")
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				log.Debug().Str("clientId", c.id).Err(err).Msg("[WS] Write error")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().Str("clientId", c.id).Err(err).Msg("[WS] Ping error")
				return
			}
		}
	}
}
