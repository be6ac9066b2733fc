package server

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lexiqai/stream-transcriber/internal/audio"
	"github.com/lexiqai/stream-transcriber/internal/config"
	"github.com/lexiqai/stream-transcriber/internal/observability"
	"github.com/lexiqai/stream-transcriber/internal/sink"
	"github.com/lexiqai/stream-transcriber/internal/streaming"
	"github.com/lexiqai/stream-transcriber/internal/stt"
)

// CorrelationHeader carries a caller-supplied correlation ID
const CorrelationHeader = "X-Correlation-ID"

var upgrader = websocket.Upgrader{
	// Browser clients are served from other origins
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// Server accepts streaming transcription connections
type Server struct {
	streamCfg   streaming.Config
	transcriber stt.Transcriber
	sink        sink.Sink
	registry    *Registry
	logger      zerolog.Logger
}

// New creates a server using t for every session and s for transcript egress
func New(cfg *config.Config, t stt.Transcriber, s sink.Sink) *Server {
	if s == nil {
		s = sink.Nop{}
	}
	return &Server{
		streamCfg:   streaming.ConfigFrom(cfg),
		transcriber: t,
		sink:        s,
		registry:    NewRegistry(cfg.MaxSessions),
		logger:      observability.GetLogger().With().Str("component", "server").Logger(),
	}
}

// ActiveSessions returns the number of open streams
func (s *Server) ActiveSessions() int {
	return s.registry.Count()
}

// Shutdown closes every open stream
func (s *Server) Shutdown() {
	n := s.registry.Count()
	s.registry.CloseAll()
	s.logger.Info().Int("sessions", n).Msg("Closed active sessions")
}

// HandleWS upgrades the request and runs one transcription stream until it ends
func (s *Server) HandleWS() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()

		enc, err := audio.ParseEncoding(query.Get("encoding"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		if s.registry.Full() {
			observability.RecordError("session_limit", "server")
			http.Error(w, ErrTooManySessions.Error(), http.StatusServiceUnavailable)
			return
		}

		streamCfg := s.streamCfg
		if lang := query.Get("language"); lang != "" {
			streamCfg.Language = lang
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already replied
			s.logger.Warn().Err(err).Msg("Failed to upgrade connection to WebSocket")
			return
		}

		sessionID := observability.NewCorrelationID()
		logger := observability.WithSession(sessionID, r.Header.Get(CorrelationHeader)).
			With().
			Str("encoding", string(enc)).
			Str("language", streamCfg.Language).
			Logger()

		c := newConnection(sessionID, conn, streamCfg, enc, s.transcriber, s.sink, logger)

		if err := s.registry.Add(c); err != nil {
			// Lost the race for the last slot
			c.send(ServerMessage{Type: msgError, SessionID: sessionID, Message: err.Error()})
			c.close(websocket.CloseTryAgainLater, err.Error())
			return
		}
		defer s.registry.Remove(sessionID)

		c.metrics.RecordSessionStart()
		defer c.metrics.RecordSessionEnd()

		logger.Info().Str("remote_addr", r.RemoteAddr).Msg("Stream connected")

		go c.readLoop()
		c.run()

		logger.Info().Msg("Stream closed")
	}
}
