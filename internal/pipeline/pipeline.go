// Package pipeline wires one session's processing chain: RTP datagrams in,
// turn-detection events out. Each session owns a single goroutine fed by a
// buffered channel of datagrams, mirroring the teacher's capture/playback
// loop design — no lock is ever held across a channel send or a pipeline
// stage call.
package pipeline

import (
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"voicepipe/internal/audioproc"
	"voicepipe/internal/codec"
	"voicepipe/internal/control"
	"voicepipe/internal/events"
	"voicepipe/internal/features"
	"voicepipe/internal/fusion"
	"voicepipe/internal/jitter"
	"voicepipe/internal/metricslog"
	"voicepipe/internal/rtpx"
	"voicepipe/internal/session"
	"voicepipe/internal/turn"
	"voicepipe/internal/vad"
)

// datagramChannelBuf bounds how many undelivered datagrams a session will
// queue before the receive loop starts dropping, mirroring the teacher's
// captureChannelBuf sizing rationale: low latency, drop rather than
// accumulate lag.
const datagramChannelBuf = 50

// dropLogRate and dropLogBurst throttle the "dropped under backpressure"
// warnings a single session can emit per second, so a sustained flood of
// drops (a stuck consumer, a wedged control client) logs at a bounded rate
// instead of one zap.Warn per dropped item.
const (
	dropLogRate  = 1
	dropLogBurst = 2
)

// Config mirrors the subset of the server config a single session's
// pipeline needs.
type Config struct {
	SampleRate  int
	Channels    int
	FrameMs     int
	JitterMaxMs int
}

// Session drives one RTP stream through jitter buffering, Opus decode,
// voice isolation, feature extraction, VAD, fusion, and turn detection,
// emitting events to Sink.
type Session struct {
	id       string
	cfg      Config
	registry *session.Registry
	sink     *events.Sink
	logger   *zap.Logger
	metrics  *metricslog.Counters

	datagrams chan []byte
	commands  chan control.Command
	stopCh    chan struct{}

	jb       *jitter.Buffer
	dec      *codec.Decoder
	isolator audioproc.Isolator
	detector *vad.VAD
	fuser    *fusion.Fusion
	engine   *turn.Engine

	context fusion.Context

	frameSize       int
	framesProcessed uint64

	// fusedConfidence/confidenceLevel hold the most recent FuseSignals
	// output, read by emitTurnEvent and mirrored into the session registry
	// for status-API consumers.
	fusedConfidence float32
	confidenceLevel string

	// dropLogLimiter gates the "dropped under backpressure" warnings shared
	// by the datagram queue, command queue, and turn-ended sink path, since
	// they're all instances of the same flood risk under a stuck consumer.
	dropLogLimiter *rate.Limiter
}

// New constructs a Session's pipeline. The caller is responsible for
// registering id with the session registry beforehand. metrics may be nil,
// in which case process-wide counters are simply not updated (used by
// tests that don't care about them).
func New(id string, cfg Config, registry *session.Registry, sink *events.Sink, logger *zap.Logger, metrics *metricslog.Counters) (*Session, error) {
	frameSize := cfg.SampleRate * cfg.FrameMs / 1000

	dec, err := codec.New(cfg.SampleRate, cfg.Channels, frameSize)
	if err != nil {
		return nil, fmt.Errorf("pipeline: session %s: %w", id, err)
	}

	s := &Session{
		id:        id,
		cfg:       cfg,
		registry:  registry,
		sink:      sink,
		logger:    logger,
		metrics:   metrics,
		datagrams: make(chan []byte, datagramChannelBuf),
		commands:  make(chan control.Command, datagramChannelBuf),
		stopCh:    make(chan struct{}),
		jb:        jitter.New(cfg.JitterMaxMs, cfg.SampleRate),
		dec:       dec,
		isolator:  audioproc.NewNoiseGateIsolator(),
		detector:  vad.New(),
		fuser:     fusion.New(),
		engine:    turn.New(turn.DefaultConfig()),
		frameSize: frameSize,

		dropLogLimiter: rate.NewLimiter(dropLogRate, dropLogBurst),
	}
	if metrics != nil {
		metrics.ActiveConnections.Add(1)
	}
	return s, nil
}

// Enqueue hands a raw UDP datagram to the session's receive loop. It never
// blocks: a full queue drops the datagram and records the loss.
func (s *Session) Enqueue(datagram []byte) {
	select {
	case s.datagrams <- datagram:
	default:
		s.registry.RecordCounters(s.id, session.Counters{PacketsLost: 1})
		if s.dropLogLimiter.Allow() {
			s.logger.Warn("datagram dropped: session queue full", zap.String("session_id", s.id))
		}
	}
}

// SendCommand hands an orchestration command to the session. It never
// blocks: a full queue drops the command.
func (s *Session) SendCommand(cmd control.Command) {
	select {
	case s.commands <- cmd:
		if s.metrics != nil {
			s.metrics.GRPCMessagesReceived.Add(1)
		}
	default:
		if s.dropLogLimiter.Allow() {
			s.logger.Warn("control command dropped: session queue full", zap.String("session_id", s.id))
		}
	}
}

// Run drives the session's goroutine until Stop is called. Call this in
// its own goroutine.
func (s *Session) Run() {
	for {
		select {
		case <-s.stopCh:
			return
		case datagram := <-s.datagrams:
			s.handleDatagram(datagram)
		case cmd := <-s.commands:
			s.handleCommand(cmd)
		}
	}
}

// Stop terminates the session's goroutine and emits a SessionEnded status
// event summarising the session's duration and frame count. It must be
// called at most once per session.
func (s *Session) Stop() {
	s.sink.TryPush(events.Event{
		Kind:        events.KindSessionEnded,
		SessionID:   s.id,
		TimestampMs: s.timestampMs(),
		DurationMs:  uint32(s.timestampMs()),
		TotalFrames: uint32(s.framesProcessed),
	})
	if s.metrics != nil {
		s.metrics.ActiveConnections.Add(-1)
	}
	close(s.stopCh)
}

func (s *Session) handleCommand(cmd control.Command) {
	switch cmd.Kind {
	case control.KindAdjustVAD:
		s.detector.AdaptThreshold(cmd.Sensitivity)
		if cmd.ThresholdMs > 0 {
			s.engine.SetMaxSilenceDurationMs(cmd.ThresholdMs)
		}
	case control.KindClearContext:
		s.context = ""
	case control.KindPlayAudio:
		s.context = fusion.ContextPlayingAudio
		s.engine.SignalPotentialBargeIn()
	case control.KindStopAudio:
		s.context = ""
	}
}

func (s *Session) handleDatagram(datagram []byte) {
	pkt, err := rtpx.Parse(datagram)
	if err != nil {
		s.logger.Debug("dropping malformed RTP packet", zap.String("session_id", s.id), zap.Error(err))
		return
	}
	if !pkt.IsOpus() {
		return
	}

	s.registry.RecordCounters(s.id, session.Counters{PacketsReceived: 1})
	if s.metrics != nil {
		s.metrics.RTPPacketsReceived.Add(1)
	}
	lost := s.jb.Insert(pkt.SequenceNumber, pkt.Payload)

	// Conceal one PLC frame per missing packet in the detected gap, capped
	// at the buffer's own depth so a stale/garbled sequence jump can't spin
	// this loop into synthesizing an unbounded run of silence.
	if cap := uint64(s.jb.Capacity()); lost > cap {
		lost = cap
	}
	for i := uint64(0); i < lost; i++ {
		s.registry.RecordCounters(s.id, session.Counters{PacketsLost: 1})
		s.processFrame(nil)
	}

	for {
		payload, ok := s.jb.GetReadyFrame()
		if !ok {
			break
		}
		s.processFrame(payload)
	}
}

func (s *Session) processFrame(payload []byte) {
	var (
		pcm []int16
		err error
	)
	if len(payload) == 0 {
		pcm, err = s.dec.Decode(nil) // concealment
	} else {
		pcm, err = s.dec.Decode(payload)
	}
	if err != nil {
		s.logger.Warn("decode failure", zap.String("session_id", s.id), zap.Error(err))
		return
	}

	audio := audioproc.PCMToFloat(pcm)
	audio = s.isolator.Process(audio)

	feats := features.Extract(audio, s.cfg.SampleRate)
	vadProb := s.detector.Process(audio)
	fused := s.fuser.FuseSignals(vadProb, feats, s.context)
	confidence := s.fuser.ConfidenceLevelOf(fused)
	s.fusedConfidence = fused
	s.confidenceLevel = confidence.String()

	event := s.engine.Process(vadProb, feats, uint32(s.cfg.FrameMs))
	s.framesProcessed++
	s.registry.RecordCounters(s.id, session.Counters{FramesProcessed: 1})
	s.registry.UpdateStatus(s.id, session.Status{
		JitterLevelPercent: s.jb.LevelPercent(),
		TurnState:          s.engine.State().String(),
		FusedConfidence:    s.fusedConfidence,
		ConfidenceLevel:    s.confidenceLevel,
	})
	if s.metrics != nil {
		s.metrics.AudioFramesProcessed.Add(1)
		if vadProb > 0.5 {
			s.metrics.VADDetections.Add(1)
		}
	}
	s.emitTurnEvent(event)

	if s.engine.CheckBargeIn() {
		s.registry.RecordCounters(s.id, session.Counters{BargeIns: 1})
		if s.metrics != nil {
			s.metrics.BargeIns.Add(1)
		}
		s.sink.TryPush(events.Event{
			Kind:            events.KindBargeIn,
			SessionID:       s.id,
			TimestampMs:     s.timestampMs(),
			FusedConfidence: s.fusedConfidence,
			ConfidenceLevel: s.confidenceLevel,
		})
	}
}

// timestampMs derives the event schema's monotonic session-relative
// timestamp from frames processed so far, per spec rather than wall time.
func (s *Session) timestampMs() int64 {
	return int64(s.framesProcessed) * int64(s.cfg.FrameMs)
}

func (s *Session) emitTurnEvent(event turn.Event) {
	switch event {
	case turn.EventTurnStarted:
		s.registry.RecordCounters(s.id, session.Counters{TurnEvents: 1})
		if s.metrics != nil {
			s.metrics.TurnEventsDetected.Add(1)
			s.metrics.TurnStarts.Add(1)
		}
		s.sink.TryPush(events.Event{
			Kind:            events.KindTurnStarted,
			SessionID:       s.id,
			TimestampMs:     s.timestampMs(),
			VADProbability:  s.engine.TriggerVADProbability(),
			FusedConfidence: s.fusedConfidence,
			ConfidenceLevel: s.confidenceLevel,
		})
	case turn.EventTurnEnded:
		s.registry.RecordCounters(s.id, session.Counters{TurnEvents: 1})
		if s.metrics != nil {
			s.metrics.TurnEventsDetected.Add(1)
			s.metrics.TurnEnds.Add(1)
		}
		// TurnEnded must never be silently dropped under backpressure.
		if err := s.sink.Push(events.Event{
			Kind:            events.KindTurnEnded,
			SessionID:       s.id,
			TimestampMs:     s.timestampMs(),
			DurationMs:      s.engine.LastTurnDurationMs(),
			FusedConfidence: s.fusedConfidence,
			ConfidenceLevel: s.confidenceLevel,
		}); err != nil && s.dropLogLimiter.Allow() {
			s.logger.Warn("turn ended event dropped: sink closed", zap.String("session_id", s.id))
		}
	}
}
