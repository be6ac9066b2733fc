package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lexiqai/stream-transcriber/internal/audio"
	"github.com/lexiqai/stream-transcriber/internal/observability"
	"github.com/lexiqai/stream-transcriber/internal/sink"
	"github.com/lexiqai/stream-transcriber/internal/streaming"
	"github.com/lexiqai/stream-transcriber/internal/stt"
)

const (
	writeWait   = 10 * time.Second
	audioQueue  = 64 // decoded frames waiting for the actor
	finalCloser = "stream finished"
)

// decodeResult carries a finished decode back to the actor
type decodeResult struct {
	job      *streaming.DecodeJob
	segments []stt.Segment
	err      error
}

// Connection is one client stream. The reader goroutine decodes frames;
// the actor goroutine (run) owns the session and is the only writer.
type Connection struct {
	id          string
	conn        *websocket.Conn
	session     *streaming.Session
	transcriber stt.Transcriber
	sink        sink.Sink
	encoding    audio.Encoding
	sampleRate  int

	logger  zerolog.Logger
	metrics *observability.SessionMetrics

	audioIn  chan []float32
	stopped  chan struct{} // client sent a stop message
	readDone chan struct{} // reader exited
	results  chan decodeResult
	decoding bool
	seq      int

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func newConnection(id string, conn *websocket.Conn, cfg streaming.Config, enc audio.Encoding,
	t stt.Transcriber, s sink.Sink, logger zerolog.Logger) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	return &Connection{
		id:          id,
		conn:        conn,
		session:     streaming.NewSession(cfg, t),
		transcriber: t,
		sink:        s,
		encoding:    enc,
		sampleRate:  cfg.SampleRate,
		logger:      logger,
		metrics:     observability.NewSessionMetrics(id),
		audioIn:     make(chan []float32, audioQueue),
		stopped:     make(chan struct{}),
		readDone:    make(chan struct{}),
		results:     make(chan decodeResult, 1),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// ID returns the session ID
func (c *Connection) ID() string {
	return c.id
}

// Shutdown ends the connection from outside the actor
func (c *Connection) Shutdown() {
	c.cancel()
}

// readLoop turns incoming frames into samples for the actor
func (c *Connection) readLoop() {
	defer close(c.readDone)

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn().Err(err).Msg("WebSocket read error")
			}
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			samples, err := audio.Decode(c.encoding, data)
			if err != nil {
				c.logger.Warn().Err(err).Int("bytes", len(data)).Msg("Dropping malformed audio frame")
				c.metrics.RecordError("malformed_frame", "server")
				continue
			}
			if len(samples) == 0 {
				continue
			}
			select {
			case c.audioIn <- samples:
			case <-c.ctx.Done():
				return
			}

		case websocket.TextMessage:
			var msg ClientMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				c.logger.Warn().Err(err).Msg("Failed to parse control message")
				continue
			}
			switch msg.Type {
			case clientStop:
				c.logger.Info().Msg("Client requested stop")
				close(c.stopped)
				return
			default:
				c.logger.Warn().Str("type", msg.Type).Msg("Unknown control message")
			}
		}
	}
}

// run is the actor loop. It returns when the stream ends for any reason.
func (c *Connection) run() {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().Interface("panic", r).Msg("Session failed")
			c.metrics.RecordError("panic", "session")
			c.send(ServerMessage{Type: msgError, SessionID: c.id, Message: "internal session error"})
			c.close(websocket.CloseInternalServerErr, "internal error")
		}
	}()

	c.send(ServerMessage{
		Type:       msgReady,
		SessionID:  c.id,
		SampleRate: c.sampleRate,
		Encoding:   string(c.encoding),
	})

	for {
		select {
		case samples := <-c.audioIn:
			c.push(samples)
			c.dispatch()

		case res := <-c.results:
			c.decoding = false
			c.apply(res)
			c.dispatch()

		case <-c.stopped:
			c.finish()
			return

		case <-c.readDone:
			select {
			case <-c.stopped:
				c.finish()
				return
			default:
			}
			c.logger.Info().Msg("Client disconnected")
			c.close(websocket.CloseNormalClosure, "")
			return

		case <-c.ctx.Done():
			c.logger.Info().Msg("Session shut down by server")
			c.close(websocket.CloseGoingAway, "server shutting down")
			return
		}
	}
}

func (c *Connection) push(samples []float32) {
	dropped, err := c.session.Push(samples)
	if err != nil {
		c.logger.Debug().Err(err).Msg("Push after close")
		return
	}
	c.metrics.RecordAudio(len(samples), dropped)
	if dropped > 0 {
		c.logger.Debug().Int("dropped", dropped).Msg("Buffer full, oldest audio trimmed")
	}
}

// dispatch starts a decode on its own goroutine if the scheduler triggers
func (c *Connection) dispatch() {
	if c.decoding {
		return
	}
	job, err := c.session.PrepareDecode()
	if err != nil || job == nil {
		return
	}
	c.startDecode(job)
}

func (c *Connection) startDecode(job *streaming.DecodeJob) {
	c.decoding = true
	c.metrics.RecordDecodeStart()
	c.logger.Debug().
		Str("trigger", job.Trigger.String()).
		Float64("window_start", job.WindowStart).
		Float64("now", job.Now).
		Msg("Decoding window")

	go func() {
		segments, err := job.Run(c.ctx, c.transcriber)
		// Buffered for the single outstanding decode
		c.results <- decodeResult{job: job, segments: segments, err: err}
	}()
}

// apply reconciles a finished decode and emits its delta
func (c *Connection) apply(res decodeResult) {
	delta, err := c.session.Complete(res.job, res.segments, res.err)
	trigger := res.job.Trigger.String()
	if err != nil {
		c.metrics.RecordDecodeEnd(trigger, false)
		if errors.Is(err, streaming.ErrSessionClosed) || errors.Is(err, context.Canceled) {
			return
		}
		c.metrics.RecordError("decode_failed", "transcriber")
		c.logger.Warn().Err(err).Str("trigger", trigger).Msg("Decode failed, retrying on next trigger")
		return
	}
	c.metrics.RecordDecodeEnd(trigger, true)

	if delta.Empty() {
		return
	}

	c.seq++
	c.metrics.RecordDelta(delta.Words())
	committed := delta.CommittedUntil
	c.send(ServerMessage{
		Type:           msgDelta,
		SessionID:      c.id,
		Seq:            c.seq,
		Text:           delta.Text,
		CommittedUntil: &committed,
	})
	c.publish(sink.Event{
		Type:           sink.EventDelta,
		SessionID:      c.id,
		Seq:            c.seq,
		Text:           delta.Text,
		CommittedUntil: committed,
	})
}

// finish flushes remaining audio and sends the final transcript
func (c *Connection) finish() {
	// Frames read before the stop message are already queued
	for drained := false; !drained; {
		select {
		case samples := <-c.audioIn:
			c.push(samples)
		default:
			drained = true
		}
	}

	if c.decoding {
		select {
		case res := <-c.results:
			c.decoding = false
			c.apply(res)
		case <-c.ctx.Done():
			c.close(websocket.CloseGoingAway, "server shutting down")
			return
		}
	}

	if job, err := c.session.PrepareFinal(); err == nil && job != nil {
		c.metrics.RecordDecodeStart()
		segments, decodeErr := job.Run(c.ctx, c.transcriber)
		c.apply(decodeResult{job: job, segments: segments, err: decodeErr})
	}

	transcript := c.session.Transcript()
	committed := c.session.LastCommittedTime()
	c.send(ServerMessage{
		Type:           msgFinal,
		SessionID:      c.id,
		Transcript:     &transcript,
		CommittedUntil: &committed,
	})
	c.publish(sink.Event{
		Type:           sink.EventFinal,
		SessionID:      c.id,
		Transcript:     transcript,
		CommittedUntil: committed,
	})
	c.logger.Info().Int("deltas", c.seq).Float64("committed_until", committed).Msg("Stream finished")
	c.close(websocket.CloseNormalClosure, finalCloser)
}

func (c *Connection) publish(event sink.Event) {
	if err := c.sink.Publish(c.ctx, event); err != nil {
		c.metrics.RecordError("publish_failed", "sink")
		c.logger.Warn().Err(err).Str("event", event.Type).Msg("Failed to publish transcript event")
	}
}

// send writes one JSON message. Only the actor calls it.
func (c *Connection) send(msg ServerMessage) {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(msg); err != nil {
		c.logger.Debug().Err(err).Str("type", msg.Type).Msg("Failed to write message")
	}
}

// close sends a close frame and releases the session
func (c *Connection) close(code int, reason string) {
	c.closeOnce.Do(func() {
		deadline := time.Now().Add(writeWait)
		if err := c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
			c.logger.Debug().Err(err).Msg("Failed to write close frame")
		}
		c.cancel()
		c.session.Close()
		c.conn.Close()
	})
}
