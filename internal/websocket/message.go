package websocket

import "github.com/jlairapp/faceFlipper/internal/upload"

type MessageType string

const (
	MessageTypeConnected  MessageType = "connected"
	MessageTypeFileUpload MessageType = "fileupload"
	MessageTypeUpload     MessageType = "upload"
	MessageTypePing       MessageType = "ping"
	MessageTypePong       MessageType = "pong"
)

const uploadMessage = "fileuploaded"

type IncomingMessage struct {
	Type     MessageType `json:"type"`
	UploadID string      `json:"uploadId,omitempty"`
}

type OutgoingMessage struct {
	Type     MessageType `json:"type"`
	ClientID string      `json:"clientId,omitempty"`
	Message  string      `json:"message,omitempty"`
}

// UploadMessage announces a finished upload. An announcement relayed from a
// client only carries the upload id the client named, if any.
type UploadMessage struct {
	Type    MessageType             `json:"type"`
	Message string                  `json:"message"`
	Upload  *upload.UploadCompleted `json:"upload,omitempty"`
}
