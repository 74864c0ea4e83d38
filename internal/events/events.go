// Package events defines the turn-detection event schema emitted per
// session and a bounded sink that drops status events when full (TryPush)
// and makes a TurnEnded producer wait for room instead (Push).
package events

import "errors"

// Kind identifies which event variant a Event carries.
type Kind int

const (
	KindAudioFrame Kind = iota
	KindTurnStarted
	KindTurnEnded
	KindPartialTranscript
	KindSessionEnded
	KindBargeIn
)

func (k Kind) String() string {
	switch k {
	case KindAudioFrame:
		return "audio_frame"
	case KindTurnStarted:
		return "turn_started"
	case KindTurnEnded:
		return "turn_ended"
	case KindPartialTranscript:
		return "partial_transcript"
	case KindSessionEnded:
		return "session_ended"
	case KindBargeIn:
		return "barge_in"
	default:
		return "unknown"
	}
}

// Event is a tagged union over the pipeline's emitted event types. Only
// the fields relevant to Kind are populated.
type Event struct {
	Kind            Kind
	SessionID       string
	TimestampMs     int64
	VADProbability  float32 // KindTurnStarted
	DurationMs      uint32  // KindTurnEnded, KindSessionEnded
	Text            string  // KindPartialTranscript
	Confidence      float32 // KindPartialTranscript
	TotalFrames     uint32  // KindSessionEnded
	FusedConfidence float32 // KindTurnStarted, KindTurnEnded, KindBargeIn
	ConfidenceLevel string  // KindTurnStarted, KindTurnEnded, KindBargeIn
}

// DefaultCapacity is the sink's default bounded channel size.
const DefaultCapacity = 100

// ErrSinkClosed is returned by Push/TryPush after Close.
var ErrSinkClosed = errors.New("events: sink closed")

// Sink is a bounded event channel. Several sessions may push into the same
// Sink; voicepipe-server shares one Sink across all of its sessions. Droppable
// events (everything but TurnEnded) are discarded when the sink is full
// rather than blocking the pipeline's hot loop; TurnEnded blocks until
// room is available or the sink closes.
type Sink struct {
	ch     chan Event
	closed chan struct{}
}

// NewSink creates a Sink with the given buffer capacity.
func NewSink(capacity int) *Sink {
	return &Sink{
		ch:     make(chan Event, capacity),
		closed: make(chan struct{}),
	}
}

// TryPush attempts to enqueue ev without blocking, and returns false if the
// sink is full or closed. Use this for droppable status events
// (AudioFrame, PartialTranscript, SessionEnded, BargeIn); for TurnEnded,
// which must never be silently dropped, use Push instead.
func (s *Sink) TryPush(ev Event) bool {
	select {
	case <-s.closed:
		return false
	default:
	}
	select {
	case s.ch <- ev:
		return true
	default:
		return false
	}
}

// Push enqueues ev, blocking until room is available. The pipeline uses
// this exclusively for TurnEnded, which backpressure must never discard.
// It returns ErrSinkClosed if the sink is closed before the event could be
// enqueued.
func (s *Sink) Push(ev Event) error {
	select {
	case s.ch <- ev:
		return nil
	case <-s.closed:
		return ErrSinkClosed
	}
}

// Events returns the channel consumers should range over to drain events.
func (s *Sink) Events() <-chan Event {
	return s.ch
}

// Close marks the sink closed, unblocking any pending Push/TryPush calls.
// It does not close the underlying channel, so a consumer already
// draining it via Events() is not disrupted mid-range.
func (s *Sink) Close() {
	select {
	case <-s.closed:
	default:
		close(s.closed)
	}
}
