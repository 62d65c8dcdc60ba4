package protocol

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// Message types sent to streaming clients.
const (
	MessageTypePartial = "partial"
	MessageTypeFinal   = "final"
	MessageTypeInfo    = "info"
	MessageTypeError   = "error"
)

// ServerMessage is one typed JSON message on the stream connection.
// Partial messages carry provisional text that later messages may revise;
// final messages commit a segment.
type ServerMessage struct {
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
	IsFinal bool   `json:"is_final"`
}

// Partial builds a provisional transcript message.
func Partial(text string) ServerMessage {
	return ServerMessage{Type: MessageTypePartial, Text: text, IsFinal: false}
}

// Final builds a committed segment message.
func Final(text string) ServerMessage {
	return ServerMessage{Type: MessageTypeFinal, Text: text, IsFinal: true}
}

// Info builds an informational message.
func Info(text string) ServerMessage {
	return ServerMessage{Type: MessageTypeInfo, Text: text}
}

// Error builds an error message. The session stays open: input errors reject
// the frame, never the connection.
func Error(text string) ServerMessage {
	return ServerMessage{Type: MessageTypeError, Text: text}
}

// StreamParams are the out-of-band session parameters supplied as connection
// query parameters.
type StreamParams struct {
	SessionID string
	// Language is an ISO code, or empty for auto-detection.
	Language string
}

// ParseStreamParams extracts session parameters from the connection query.
// A missing session_id gets a generated one; language "auto" (or absent)
// maps to empty, meaning auto-detect.
func ParseStreamParams(query url.Values) StreamParams {
	sessionID := strings.TrimSpace(query.Get("session_id"))
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	language := strings.TrimSpace(query.Get("language"))
	if strings.EqualFold(language, "auto") {
		language = ""
	}

	return StreamParams{
		SessionID: sessionID,
		Language:  language,
	}
}

// ValidateSessionID rejects identifiers that are empty or unreasonably long.
func ValidateSessionID(id string) error {
	if id == "" {
		return fmt.Errorf("session id cannot be empty")
	}
	if len(id) > 128 {
		return fmt.Errorf("session id too long: %d characters (max 128)", len(id))
	}
	return nil
}
