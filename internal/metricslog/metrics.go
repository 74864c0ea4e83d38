// Package metricslog holds the process-wide counters the pipeline updates
// as it processes datagrams and turn events, plus a periodic logger that
// reports them through an injected *zap.Logger.
package metricslog

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Counters is an injected handle, not a package-level singleton — callers
// construct one and pass it to every component that needs to record
// activity, mirroring how *zap.Logger is threaded through this codebase
// rather than reached for as a global.
type Counters struct {
	ActiveConnections    atomic.Int64
	RTPPacketsReceived   atomic.Uint64
	AudioFramesProcessed atomic.Uint64
	TurnEventsDetected   atomic.Uint64
	GRPCMessagesSent     atomic.Uint64
	GRPCMessagesReceived atomic.Uint64
	VADDetections        atomic.Uint64
	TurnStarts           atomic.Uint64
	TurnEnds             atomic.Uint64
	BargeIns             atomic.Uint64
}

// New returns a zeroed Counters handle.
func New() *Counters {
	return &Counters{}
}

// Snapshot is an immutable point-in-time read of Counters, safe to log or
// serve over the status API.
type Snapshot struct {
	ActiveConnections    int64
	RTPPacketsReceived   uint64
	AudioFramesProcessed uint64
	TurnEventsDetected   uint64
	GRPCMessagesSent     uint64
	GRPCMessagesReceived uint64
	VADDetections        uint64
	TurnStarts           uint64
	TurnEnds             uint64
	BargeIns             uint64
}

// Snapshot reads all counters into a plain struct.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		ActiveConnections:    c.ActiveConnections.Load(),
		RTPPacketsReceived:   c.RTPPacketsReceived.Load(),
		AudioFramesProcessed: c.AudioFramesProcessed.Load(),
		TurnEventsDetected:   c.TurnEventsDetected.Load(),
		GRPCMessagesSent:     c.GRPCMessagesSent.Load(),
		GRPCMessagesReceived: c.GRPCMessagesReceived.Load(),
		VADDetections:        c.VADDetections.Load(),
		TurnStarts:           c.TurnStarts.Load(),
		TurnEnds:             c.TurnEnds.Load(),
		BargeIns:             c.BargeIns.Load(),
	}
}

// RunPeriodicLog logs a Counters snapshot every interval until ctx is
// canceled, skipping silent ticks with no packets and no connections.
func RunPeriodicLog(ctx context.Context, counters *Counters, logger *zap.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := counters.Snapshot()
			if snap.ActiveConnections == 0 && snap.RTPPacketsReceived == 0 {
				continue
			}
			logger.Info("pipeline stats",
				zap.Int64("active_connections", snap.ActiveConnections),
				zap.Uint64("rtp_packets_received", snap.RTPPacketsReceived),
				zap.Uint64("audio_frames_processed", snap.AudioFramesProcessed),
				zap.Uint64("turn_events_detected", snap.TurnEventsDetected),
				zap.Uint64("vad_detections", snap.VADDetections),
				zap.Uint64("turn_starts", snap.TurnStarts),
				zap.Uint64("turn_ends", snap.TurnEnds),
				zap.Uint64("barge_ins", snap.BargeIns),
			)
		}
	}
}
