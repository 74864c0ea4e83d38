// Package httpapi exposes a read-only HTTP status surface over the
// session registry: health checks and per-session snapshots for an
// external orchestrator or operator to poll.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"voicepipe/internal/session"
)

// Server serves the voice pipeline's status endpoints on its own HTTP
// port, separate from the UDP media path.
type Server struct {
	registry *session.Registry
	echo     *echo.Echo
	logger   *zap.Logger
}

// New constructs a Server and registers its routes.
func New(registry *session.Registry, logger *zap.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod: true,
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("http request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
			)
			return nil
		},
	}))
	e.Use(middleware.Recover())

	s := &Server{registry: registry, echo: e, logger: logger}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/healthz", s.handleHealthz)
	s.echo.GET("/sessions", s.handleListSessions)
	s.echo.GET("/sessions/:id", s.handleGetSession)
}

// HealthResponse is the payload for GET /healthz.
type HealthResponse struct {
	Status         string `json:"status"`
	ActiveSessions int    `json:"active_sessions"`
	TotalSessions  int    `json:"total_sessions"`
}

func (s *Server) handleHealthz(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:         "ok",
		ActiveSessions: s.registry.ActiveCount(),
		TotalSessions:  s.registry.TotalCount(),
	})
}

// SessionResponse is one session's JSON representation.
type SessionResponse struct {
	ID              string            `json:"id"`
	UserID          string            `json:"user_id,omitempty"`
	State           string            `json:"state"`
	CreatedAt       time.Time         `json:"created_at"`
	LastActivity    time.Time         `json:"last_activity"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	PacketsReceived uint64            `json:"packets_received"`
	PacketsLost     uint64            `json:"packets_lost"`
	LossRatio       float64           `json:"loss_ratio"`
	FramesProcessed uint64            `json:"frames_processed"`
	TurnEvents      uint64            `json:"turn_events"`
	BargeIns        uint64            `json:"barge_ins"`
	JitterLevel     float64           `json:"jitter_level"`
	TurnState       string            `json:"turn_state"`
	FusedConfidence float32           `json:"fused_confidence"`
	ConfidenceLevel string            `json:"confidence_level,omitempty"`
}

func toResponse(rec session.Record) SessionResponse {
	var lossRatio float64
	if total := rec.Counters.PacketsReceived + rec.Counters.PacketsLost; total > 0 {
		lossRatio = float64(rec.Counters.PacketsLost) / float64(total)
	}
	return SessionResponse{
		ID:              rec.ID,
		UserID:          rec.UserID,
		State:           rec.State.String(),
		CreatedAt:       rec.CreatedAt,
		LastActivity:    rec.LastActivity,
		Metadata:        rec.Metadata,
		PacketsReceived: rec.Counters.PacketsReceived,
		PacketsLost:     rec.Counters.PacketsLost,
		LossRatio:       lossRatio,
		FramesProcessed: rec.Counters.FramesProcessed,
		TurnEvents:      rec.Counters.TurnEvents,
		BargeIns:        rec.Counters.BargeIns,
		JitterLevel:     rec.Status.JitterLevelPercent,
		TurnState:       rec.Status.TurnState,
		FusedConfidence: rec.Status.FusedConfidence,
		ConfidenceLevel: rec.Status.ConfidenceLevel,
	}
}

func (s *Server) handleListSessions(c echo.Context) error {
	records := s.registry.List()
	out := make([]SessionResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, toResponse(rec))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetSession(c echo.Context) error {
	rec, err := s.registry.Get(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, toResponse(rec))
}

// Run starts the HTTP server on addr and blocks until ctx is canceled.
func (s *Server) Run(ctx context.Context, addr string) {
	go func() {
		if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server error", zap.Error(err))
		}
	}()
	<-ctx.Done()
	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.echo.Shutdown(shutCtx); err != nil {
		s.logger.Error("http server shutdown error", zap.Error(err))
	}
}
