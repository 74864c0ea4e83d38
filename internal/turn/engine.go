// Package turn implements the turn-detection state machine that decides
// when a user starts speaking, stops speaking, or interrupts playback
// (barge-in), driven by VAD probability and extracted audio features.
package turn

import "voicepipe/internal/features"

// State is the turn-detection automaton's current state.
type State int

const (
	Idle State = iota
	Speaking
	SilenceGap
)

func (s State) String() string {
	switch s {
	case Speaking:
		return "speaking"
	case SilenceGap:
		return "silence_gap"
	default:
		return "idle"
	}
}

// Event is what Process returns after consuming one frame.
type Event int

const (
	EventNone Event = iota
	EventTurnStarted
	EventTurnEnded
	EventBargeIn
)

func (e Event) String() string {
	switch e {
	case EventTurnStarted:
		return "turn_started"
	case EventTurnEnded:
		return "turn_ended"
	case EventBargeIn:
		return "barge_in"
	default:
		return "none"
	}
}

// Config tunes the state machine's thresholds and hysteresis.
type Config struct {
	VADThresholdEnter    float32
	VADThresholdExit     float32
	MinSpeechDurationMs  uint32
	MaxSilenceDurationMs uint32
	VolumeThresholdDB    float32
}

// DefaultConfig returns the engine's default tuning.
func DefaultConfig() Config {
	return Config{
		VADThresholdEnter:    0.6,
		VADThresholdExit:     0.3,
		MinSpeechDurationMs:  250,
		MaxSilenceDurationMs: 400,
		VolumeThresholdDB:    -40.0,
	}
}

const maxHistorySize = 50

// Engine drives the Idle/Speaking/SilenceGap automaton for one session.
// Not safe for concurrent use — owned by a single session's goroutine.
type Engine struct {
	state              State
	vadHistory         []float32
	silenceDurationMs  uint32
	speechDurationMs   uint32
	config             Config
	bargeInPending     bool
	triggerVADProb     float32
	lastTurnDurationMs uint32
}

// New creates an Engine with the given configuration, starting in Idle.
func New(config Config) *Engine {
	return &Engine{state: Idle, config: config}
}

// Process advances the state machine by one frame and returns any event
// produced. frameDurationMs is the wall-clock duration the frame
// represents (20ms for this pipeline's frame size).
func (e *Engine) Process(vadProb float32, feats features.Features, frameDurationMs uint32) Event {
	e.vadHistory = append(e.vadHistory, vadProb)
	if len(e.vadHistory) > maxHistorySize {
		e.vadHistory = e.vadHistory[1:]
	}

	switch e.state {
	case Idle:
		return e.handleIdle(vadProb, feats, frameDurationMs)
	case Speaking:
		return e.handleSpeaking(vadProb, frameDurationMs)
	case SilenceGap:
		return e.handleSilenceGap(vadProb, frameDurationMs)
	default:
		return EventNone
	}
}

func (e *Engine) handleIdle(vadProb float32, feats features.Features, frameDurationMs uint32) Event {
	if vadProb > e.config.VADThresholdEnter && feats.VolumeDB > e.config.VolumeThresholdDB {
		e.state = Speaking
		e.speechDurationMs = frameDurationMs
		e.triggerVADProb = vadProb
		return EventTurnStarted
	}
	return EventNone
}

func (e *Engine) handleSpeaking(vadProb float32, frameDurationMs uint32) Event {
	e.speechDurationMs += frameDurationMs

	if vadProb < e.config.VADThresholdExit {
		e.state = SilenceGap
		e.silenceDurationMs = frameDurationMs
	}
	return EventNone
}

func (e *Engine) handleSilenceGap(vadProb float32, frameDurationMs uint32) Event {
	e.silenceDurationMs += frameDurationMs

	if vadProb > e.config.VADThresholdEnter {
		e.state = Speaking
		e.speechDurationMs += frameDurationMs
		return EventNone
	}

	if e.silenceDurationMs >= e.config.MaxSilenceDurationMs {
		e.state = Idle
		duration := e.speechDurationMs
		e.speechDurationMs = 0
		e.silenceDurationMs = 0

		if duration >= e.config.MinSpeechDurationMs {
			e.lastTurnDurationMs = duration
			return EventTurnEnded
		}
		return EventNone
	}

	return EventNone
}

// SetMaxSilenceDurationMs updates the silence threshold that ends a turn,
// for orchestration's AdjustVAD(sensitivity, threshold_ms) control command.
func (e *Engine) SetMaxSilenceDurationMs(ms uint32) {
	e.config.MaxSilenceDurationMs = ms
}

// State returns the engine's current state.
func (e *Engine) State() State {
	return e.state
}

// SpeechDurationMs returns the accumulated speech duration of the current
// turn. It is zero while Idle, including right after a turn has ended;
// LastTurnDurationMs keeps the ended turn's duration.
func (e *Engine) SpeechDurationMs() uint32 {
	return e.speechDurationMs
}

// LastTurnDurationMs returns the speech duration captured for the most
// recently emitted TurnEnded event, surviving the duration counters'
// reset to zero on that same transition.
func (e *Engine) LastTurnDurationMs() uint32 {
	return e.lastTurnDurationMs
}

// TriggerVADProbability returns the VAD probability that triggered the
// most recent Idle→Speaking transition, captured at the moment TurnStarted
// was emitted. A SilenceGap→Speaking resume does not change it.
func (e *Engine) TriggerVADProbability() float32 {
	return e.triggerVADProb
}

// SilenceDurationMs returns the accumulated silence duration in the
// current SilenceGap, or since it last reset.
func (e *Engine) SilenceDurationMs() uint32 {
	return e.silenceDurationMs
}

// Reset returns the engine to Idle and clears all accumulated state.
func (e *Engine) Reset() {
	e.state = Idle
	e.vadHistory = nil
	e.silenceDurationMs = 0
	e.speechDurationMs = 0
	e.bargeInPending = false
	e.triggerVADProb = 0
	e.lastTurnDurationMs = 0
}

// AverageVAD returns the mean VAD probability over the bounded history
// window (up to the last 50 frames).
func (e *Engine) AverageVAD() float32 {
	if len(e.vadHistory) == 0 {
		return 0
	}
	var sum float32
	for _, v := range e.vadHistory {
		sum += v
	}
	return sum / float32(len(e.vadHistory))
}

// IsSpeaking reports whether the engine is currently in the Speaking
// state.
func (e *Engine) IsSpeaking() bool {
	return e.state == Speaking
}

// SignalPotentialBargeIn marks that a barge-in may have occurred. It has
// no effect while the engine is Idle.
func (e *Engine) SignalPotentialBargeIn() {
	if e.state != Idle {
		e.bargeInPending = true
	}
}

// CheckBargeIn consumes the pending barge-in flag and reports whether a
// barge-in should be raised. It only fires while actively Speaking.
func (e *Engine) CheckBargeIn() bool {
	if e.bargeInPending && e.state == Speaking {
		e.bargeInPending = false
		return true
	}
	return false
}
