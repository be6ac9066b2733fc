package streaming

import "github.com/lexiqai/stream-transcriber/internal/audio"

// Trigger is the reason a decode was scheduled
type Trigger int

const (
	TriggerNone    Trigger = iota
	TriggerStep            // enough new audio since the last decode
	TriggerSilence         // sustained silence; commit lag is waived
	TriggerFinal           // client ended the stream; commit lag is waived
)

func (t Trigger) String() string {
	switch t {
	case TriggerNone:
		return "none"
	case TriggerStep:
		return "step"
	case TriggerSilence:
		return "silence"
	case TriggerFinal:
		return "final"
	default:
		return "unknown"
	}
}

// ForceFlush reports whether the round commits everything decodable
func (t Trigger) ForceFlush() bool {
	return t == TriggerSilence || t == TriggerFinal
}

// Scheduler decides when buffered audio justifies a decode.
// It is not safe for concurrent use.
type Scheduler struct {
	minContext     int
	stepSamples    int
	silenceSamples int
	threshold      float64

	sinceDecode int
	silentRun   int
	flushArmed  bool
	flushRetry  bool // a failed flush waits one step before firing again
}

// NewScheduler creates a scheduler for the given policy
func NewScheduler(cfg Config) *Scheduler {
	step := cfg.Samples(cfg.StepSeconds)
	if step < 1 {
		step = 1
	}
	silence := cfg.Samples(cfg.SilenceFlushSeconds)
	if silence < 1 {
		silence = 1
	}
	return &Scheduler{
		minContext:     cfg.Samples(cfg.MinContextSeconds),
		stepSamples:    step,
		silenceSamples: silence,
		threshold:      cfg.SpeechRMSThreshold,
		flushArmed:     true,
	}
}

// Observe updates the counters for one pushed chunk
func (s *Scheduler) Observe(chunk []float32) {
	if len(chunk) == 0 {
		return
	}
	s.sinceDecode += len(chunk)
	if audio.IsSilent(chunk, s.threshold) {
		s.silentRun += len(chunk)
		return
	}
	s.silentRun = 0
	s.flushArmed = true
	s.flushRetry = false
}

// Decide returns the trigger for the current state without changing it.
// buffered is the number of samples currently held by the ring.
func (s *Scheduler) Decide(buffered int) Trigger {
	if buffered <= s.minContext {
		return TriggerNone
	}
	if s.flushArmed && s.silentRun >= s.silenceSamples &&
		(!s.flushRetry || s.sinceDecode >= s.stepSamples) {
		return TriggerSilence
	}
	if s.sinceDecode >= s.stepSamples {
		return TriggerStep
	}
	return TriggerNone
}

// MarkDispatched records that a decode was started for t
func (s *Scheduler) MarkDispatched(t Trigger) {
	s.sinceDecode = 0
	s.flushRetry = false
	if t.ForceFlush() {
		// One flush per silent stretch; speech re-arms it
		s.flushArmed = false
	}
}

// Rearm restores the silence flush after a failed decode of t, so the
// next trigger in the same silent stretch still waives the commit lag.
func (s *Scheduler) Rearm(t Trigger) {
	if t != TriggerSilence || s.flushArmed {
		return
	}
	s.flushArmed = true
	s.flushRetry = true
}

// SamplesSinceDecode returns the samples observed since the last dispatch
func (s *Scheduler) SamplesSinceDecode() int {
	return s.sinceDecode
}

// SilentRun returns the length of the current run of silent samples
func (s *Scheduler) SilentRun() int {
	return s.silentRun
}
