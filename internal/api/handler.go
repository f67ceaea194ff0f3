package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/DevRickLin/reward-relay/internal/biz/domain"
	"github.com/DevRickLin/reward-relay/internal/biz/repo"
	"github.com/DevRickLin/reward-relay/internal/biz/usecase"
)

const defaultArchiveLimit = 50

// Server provides the local admin API: health, metrics, ledger inspection and dry-run parsing
type Server struct {
	echo      *echo.Echo
	admission *usecase.AdmissionUsecase
	ledger    repo.LedgerRepo
	archive   repo.ArchiveRepo // nil when disabled
	logger    *zap.Logger
	port      int
}

// ParseRequest is the body of a dry-run parse
type ParseRequest struct {
	Text      string `json:"text"`
	ChannelID string `json:"channel_id,omitempty"` // Empty skips the channel gate
}

// ParseResponse reports the admission decision for a dry run
type ParseResponse struct {
	Admitted bool                `json:"admitted"`
	Gate     string              `json:"gate"`
	RoomIDs  []string            `json:"room_ids,omitempty"`
	RoomID   string              `json:"room_id,omitempty"`
	Event    *domain.ParsedEvent `json:"event,omitempty"`
}

// NewServer creates a new API server
func NewServer(
	admission *usecase.AdmissionUsecase,
	ledger repo.LedgerRepo,
	archive repo.ArchiveRepo,
	port int,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		admission: admission,
		ledger:    ledger,
		archive:   archive,
		logger:    logger.Named("api"),
		port:      port,
	}
	s.echo = s.routes()
	return s
}

func (s *Server) routes() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.logger.Debug("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("request_id", v.RequestID),
			)
			return nil
		},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	e.GET("/api/ledger", s.handleLedger)
	e.POST("/api/parse", s.handleParse)
	e.GET("/api/archive", s.handleArchive)
	return e
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server (blocks until shutdown)
func (s *Server) Start() error {
	addr := fmt.Sprintf("127.0.0.1:%d", s.port)
	s.logger.Info("starting HTTP server", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleLedger(c echo.Context) error {
	entries := s.ledger.Entries()
	return c.JSON(http.StatusOK, map[string]any{
		"count":   len(entries),
		"entries": entries,
	})
}

func (s *Server) handleParse(c echo.Context) error {
	var req ParseRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON")
	}
	if req.Text == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text is required")
	}

	var d *usecase.Decision
	if req.ChannelID != "" {
		d = s.admission.Evaluate(&domain.InboundMessage{ChannelID: req.ChannelID, Text: req.Text})
	} else {
		d = s.admission.EvaluateText(req.Text)
	}

	return c.JSON(http.StatusOK, ParseResponse{
		Admitted: d.Admitted(),
		Gate:     string(d.Gate),
		RoomIDs:  d.RoomIDs,
		RoomID:   d.RoomID,
		Event:    d.Event,
	})
}

func (s *Server) handleArchive(c echo.Context) error {
	if s.archive == nil {
		return echo.NewHTTPError(http.StatusNotFound, "archive disabled")
	}

	limit := defaultArchiveLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = n
	}

	events, err := s.archive.Recent(c.Request().Context(), limit)
	if err != nil {
		s.logger.Warn("archive query failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "archive query failed")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"count":  len(events),
		"events": events,
	})
}
