// Command voicepipe-server runs the voice pipeline as a standalone UDP
// service: it demultiplexes incoming RTP datagrams by SSRC into per-session
// pipelines and exposes a read-only HTTP status API alongside them.
package main

import (
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"voicepipe/internal/config"
	"voicepipe/internal/events"
	"voicepipe/internal/httpapi"
	"voicepipe/internal/metricslog"
	"voicepipe/internal/pipeline"
	"voicepipe/internal/session"
)

func main() {
	configPath := preScanConfigFlag(os.Args[1:])
	base, err := config.LoadFromFile(configPath)
	if err != nil {
		fatalf("config: %v", err)
	}

	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	fs.String("config", "", "path to a JSON config file overlaying the defaults")
	cfg, err := config.ParseFlags(fs, os.Args[1:], base)
	if err != nil {
		fatalf("config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		fatalf("logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	registry := session.New(session.Config{TTL: cfg.SessionTTL, MaxSessions: cfg.MaxSessions})
	sink := events.NewSink(events.DefaultCapacity)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	counters := metricslog.New()
	go metricslog.RunPeriodicLog(ctx, counters, logger, cfg.MetricsLogInterval)

	statusServer := httpapi.New(registry, logger)
	go statusServer.Run(ctx, cfg.HTTPAddr)

	dispatcher := newDispatcher(cfg, registry, sink, logger, counters)
	go dispatcher.drainEvents(ctx)

	logger.Info("listening", zap.String("rtp_addr", cfg.ListenAddr), zap.String("http_addr", cfg.HTTPAddr))
	if err := dispatcher.listenAndServe(ctx, cfg.ListenAddr); err != nil {
		logger.Error("rtp listener stopped", zap.Error(err))
	}

	dispatcher.stopAll()
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// preScanConfigFlag finds the -config/--config value before the full flag
// set is registered, since config.ParseFlags needs a config-file overlay as
// its base *before* command-line flags are applied over it.
func preScanConfigFlag(args []string) string {
	for i, arg := range args {
		switch {
		case arg == "-config" || arg == "--config":
			if i+1 < len(args) {
				return args[i+1]
			}
		case strings.HasPrefix(arg, "-config="):
			return strings.TrimPrefix(arg, "-config=")
		case strings.HasPrefix(arg, "--config="):
			return strings.TrimPrefix(arg, "--config=")
		}
	}
	return ""
}

// dispatcher demultiplexes incoming RTP datagrams by SSRC, creating a new
// pipeline.Session (and a matching session registry record) the first time
// an SSRC is seen.
type dispatcher struct {
	cfg      config.Config
	registry *session.Registry
	sink     *events.Sink
	logger   *zap.Logger
	metrics  *metricslog.Counters

	mu       sync.Mutex
	sessions map[uint32]*pipeline.Session
}

func newDispatcher(cfg config.Config, registry *session.Registry, sink *events.Sink, logger *zap.Logger, metrics *metricslog.Counters) *dispatcher {
	return &dispatcher{
		cfg:      cfg,
		registry: registry,
		sink:     sink,
		logger:   logger,
		metrics:  metrics,
		sessions: make(map[uint32]*pipeline.Session),
	}
}

// ssrcOf extracts the SSRC field from a raw RTP datagram without fully
// parsing it, since the dispatcher only needs it for demux; each session's
// own pipeline.Session re-parses the full header.
func ssrcOf(datagram []byte) (uint32, bool) {
	if len(datagram) < 12 {
		return 0, false
	}
	return binary.BigEndian.Uint32(datagram[8:12]), true
}

func (d *dispatcher) listenAndServe(ctx context.Context, addr string) error {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	buf := make([]byte, 1500)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		datagram := make([]byte, n)
		copy(datagram, buf[:n])

		ssrc, ok := ssrcOf(datagram)
		if !ok {
			continue
		}
		if s, ok := d.sessionFor(ssrc); ok {
			s.Enqueue(datagram)
		}
	}
}

// sessionFor returns the pipeline for ssrc, creating one on first sight.
// The bool result is false when session creation fails (e.g. the registry
// is at capacity); the datagram that triggered creation is dropped in that
// case rather than the dispatcher silently swallowing the error.
func (d *dispatcher) sessionFor(ssrc uint32) (*pipeline.Session, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if s, ok := d.sessions[ssrc]; ok {
		return s, true
	}

	userID := fmt.Sprintf("ssrc-%d", ssrc)
	id, err := d.registry.Create(userID)
	if err != nil {
		d.logger.Warn("could not register session, dropping stream", zap.Uint32("ssrc", ssrc), zap.Error(err))
		return nil, false
	}

	pipelineCfg := pipeline.Config{
		SampleRate:  d.cfg.SampleRate,
		Channels:    d.cfg.Channels,
		FrameMs:     d.cfg.FrameMs,
		JitterMaxMs: d.cfg.JitterMaxMs,
	}
	s, err := pipeline.New(id, pipelineCfg, d.registry, d.sink, d.logger, d.metrics)
	if err != nil {
		d.logger.Error("could not construct pipeline, dropping stream", zap.Uint32("ssrc", ssrc), zap.Error(err))
		return nil, false
	}

	d.sessions[ssrc] = s
	go s.Run()
	d.logger.Info("session started", zap.Uint32("ssrc", ssrc), zap.String("session_id", id))
	return s, true
}

// drainEvents logs the voice-activity events the sink collects. A real
// deployment would forward these to an orchestrator; this binary is the
// reference/demo server, so it logs them instead.
func (d *dispatcher) drainEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-d.sink.Events():
			if d.metrics != nil {
				d.metrics.GRPCMessagesSent.Add(1)
			}
			d.logger.Info("pipeline event",
				zap.String("kind", ev.Kind.String()),
				zap.String("session_id", ev.SessionID),
				zap.Int64("timestamp_ms", ev.TimestampMs),
			)
		}
	}
}

func (d *dispatcher) stopAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for ssrc, s := range d.sessions {
		s.Stop()
		delete(d.sessions, ssrc)
	}
	d.sink.Close()
}
