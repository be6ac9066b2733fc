package server

// Client message types
const (
	clientStop = "stop"
)

// Server message types
const (
	msgReady = "ready"
	msgDelta = "delta"
	msgFinal = "final"
	msgError = "error"
)

// ClientMessage is a JSON control message sent in a text frame
type ClientMessage struct {
	Type string `json:"type"`
}

// ServerMessage is every JSON message sent to the client
type ServerMessage struct {
	Type           string   `json:"type"`
	SessionID      string   `json:"session_id"`
	SampleRate     int      `json:"sample_rate,omitempty"`
	Encoding       string   `json:"encoding,omitempty"`
	Seq            int      `json:"seq,omitempty"`
	Text           string   `json:"text,omitempty"`
	CommittedUntil *float64 `json:"committed_until,omitempty"`
	Transcript     *string  `json:"transcript,omitempty"`
	Message        string   `json:"message,omitempty"`
}
