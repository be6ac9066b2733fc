package streaming

import (
	"context"
	"errors"
	"fmt"

	"github.com/lexiqai/stream-transcriber/internal/audio"
	"github.com/lexiqai/stream-transcriber/internal/stt"
)

var (
	// ErrSessionClosed is returned by operations on a closed session
	ErrSessionClosed = errors.New("session closed")
	// ErrDecodeInFlight is returned when a result arrives for a decode the session is not waiting on
	ErrDecodeInFlight = errors.New("no matching decode in flight")
)

// State is the lifecycle state of a session
type State int

const (
	StateIdle         State = iota // no audio yet
	StateAccumulating              // below minimum context or waiting for a trigger
	StateReady                     // the scheduler would trigger a decode
	StateDecoding                  // adapter call outstanding
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAccumulating:
		return "accumulating"
	case StateReady:
		return "ready"
	case StateDecoding:
		return "decoding"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// DecodeJob is a dispatched decode. It carries its own copy of the window,
// so it may run on another goroutine while the session keeps ingesting.
type DecodeJob struct {
	Request     stt.Request
	Trigger     Trigger
	WindowStart float64
	Now         float64
	id          uint64
}

// Run invokes the transcriber, converting a panic into an error
func (j *DecodeJob) Run(ctx context.Context, t stt.Transcriber) (segments []stt.Segment, err error) {
	defer func() {
		if r := recover(); r != nil {
			segments = nil
			err = fmt.Errorf("transcriber panic: %v", r)
		}
	}()
	return t.Transcribe(ctx, j.Request)
}

// Session accumulates audio for one connection and turns decode results
// into transcript deltas. It is not safe for concurrent use; the owner
// must serialize Push, PrepareDecode and Complete.
type Session struct {
	cfg         Config
	transcriber stt.Transcriber
	ring        *audio.Ring
	scheduler   *Scheduler
	reconciler  *Reconciler
	transcript  *Transcript

	windowSamples int
	totalSamples  int64
	nextJob       uint64
	inflight      uint64 // 0 when no decode is outstanding
	closed        bool
}

// NewSession creates a session that decodes with t
func NewSession(cfg Config, t stt.Transcriber) *Session {
	return &Session{
		cfg:           cfg,
		transcriber:   t,
		ring:          audio.NewRing(cfg.bufferCapacity()),
		scheduler:     NewScheduler(cfg),
		reconciler:    NewReconciler(),
		transcript:    &Transcript{},
		windowSamples: cfg.Samples(cfg.WindowSeconds),
	}
}

// Push ingests normalized mono samples and returns how many of the oldest
// buffered samples were dropped to stay within capacity. Empty chunks are no-ops.
func (s *Session) Push(samples []float32) (int, error) {
	if s.closed {
		return 0, ErrSessionClosed
	}
	if len(samples) == 0 {
		return 0, nil
	}
	dropped := s.ring.Append(samples)
	s.scheduler.Observe(samples)
	s.totalSamples += int64(len(samples))
	return dropped, nil
}

// State returns the current lifecycle state
func (s *Session) State() State {
	switch {
	case s.closed:
		return StateClosed
	case s.inflight != 0:
		return StateDecoding
	case s.totalSamples == 0:
		return StateIdle
	case s.scheduler.Decide(s.ring.Len()) != TriggerNone:
		return StateReady
	default:
		return StateAccumulating
	}
}

// PrepareDecode dispatches a decode if the scheduler triggers and none is
// outstanding. It returns nil when there is nothing to do.
func (s *Session) PrepareDecode() (*DecodeJob, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.inflight != 0 {
		return nil, nil
	}
	trigger := s.scheduler.Decide(s.ring.Len())
	if trigger == TriggerNone {
		return nil, nil
	}
	return s.dispatch(trigger), nil
}

// PrepareFinal dispatches a force-flush decode of whatever is buffered,
// bypassing the scheduler. Used when the client ends the stream.
func (s *Session) PrepareFinal() (*DecodeJob, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.inflight != 0 || s.ring.Len() == 0 {
		return nil, nil
	}
	return s.dispatch(TriggerFinal), nil
}

func (s *Session) dispatch(trigger Trigger) *DecodeJob {
	window := audio.MeanCenter(s.ring.Last(s.windowSamples))

	s.nextJob++
	s.inflight = s.nextJob
	s.scheduler.MarkDispatched(trigger)

	now := s.cfg.Seconds(s.totalSamples)
	return &DecodeJob{
		Request: stt.Request{
			Window:     window,
			SampleRate: s.cfg.SampleRate,
			Language:   s.cfg.Language,
			Prompt:     s.transcript.PromptTail(s.cfg.PromptChars),
		},
		Trigger:     trigger,
		WindowStart: now - s.cfg.Seconds(int64(len(window))),
		Now:         now,
		id:          s.nextJob,
	}
}

// Complete applies the result of job. A non-nil decodeErr leaves the
// transcript untouched and is returned; the next trigger retries.
func (s *Session) Complete(job *DecodeJob, segments []stt.Segment, decodeErr error) (Delta, error) {
	if s.closed {
		return Delta{}, ErrSessionClosed
	}
	if job == nil || job.id != s.inflight {
		return Delta{}, ErrDecodeInFlight
	}
	s.inflight = 0

	if decodeErr != nil {
		s.scheduler.Rearm(job.Trigger)
		return Delta{Trigger: job.Trigger, CommittedUntil: s.transcript.LastCommittedTime()}, decodeErr
	}

	delta := s.reconciler.Reconcile(s.transcript, Round{
		Segments:    segments,
		WindowStart: job.WindowStart,
		Now:         job.Now,
		CommitLag:   s.cfg.CommitLagSeconds,
		Force:       job.Trigger.ForceFlush(),
	})
	delta.Trigger = job.Trigger
	return delta, nil
}

// MaybeEmit runs one synchronous scheduler check, decode and reconcile.
// The returned delta is empty when nothing was triggered or committed.
func (s *Session) MaybeEmit(ctx context.Context) (Delta, error) {
	job, err := s.PrepareDecode()
	if err != nil || job == nil {
		return Delta{}, err
	}
	segments, decodeErr := job.Run(ctx, s.transcriber)
	return s.Complete(job, segments, decodeErr)
}

// Flush synchronously force-commits whatever is buffered
func (s *Session) Flush(ctx context.Context) (Delta, error) {
	job, err := s.PrepareFinal()
	if err != nil || job == nil {
		return Delta{}, err
	}
	segments, decodeErr := job.Run(ctx, s.transcriber)
	return s.Complete(job, segments, decodeErr)
}

// Transcript returns the committed text; empty once closed
func (s *Session) Transcript() string {
	if s.closed {
		return ""
	}
	return s.transcript.Text()
}

// LastCommittedTime returns the finalized stream time in seconds
func (s *Session) LastCommittedTime() float64 {
	if s.closed {
		return 0
	}
	return s.transcript.LastCommittedTime()
}

// Buffered returns the number of samples held by the ring
func (s *Session) Buffered() int {
	if s.closed {
		return 0
	}
	return s.ring.Len()
}

// TotalSamples returns the number of samples pushed since the session started
func (s *Session) TotalSamples() int64 {
	return s.totalSamples
}

// Close releases buffered audio and transcript state. Results of a decode
// still in flight are discarded.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.inflight = 0
	s.ring.Reset()
	s.transcript = &Transcript{}
}
