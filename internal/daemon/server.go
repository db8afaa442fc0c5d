package daemon

import (
	"context"
	"dropfiles/internal/folder"
	"dropfiles/internal/logger"
	"dropfiles/internal/model"
	"dropfiles/internal/repository"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// HistoryReader serves the /history endpoints.
type HistoryReader interface {
	GetRecent(limit int) ([]model.History, error)
	GetStats() (repository.Stats, error)
}

type Server struct {
	echo   *echo.Echo
	orch   *Orchestrator
	hist   HistoryReader
	port   int
	stopCh chan struct{}
}

func NewServer(orch *Orchestrator, hist HistoryReader, port int) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:   e,
		orch:   orch,
		hist:   hist,
		port:   port,
		stopCh: make(chan struct{}, 1),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	// For the entire daemon
	s.echo.GET("/status", s.handleStatus)
	s.echo.POST("/stop", s.handleStop)
	s.echo.GET("/events", s.handleEvents)

	// Sync control
	s.echo.POST("/sync", s.handleSync)
	s.echo.POST("/folder", s.handleSetFolder)
	s.echo.GET("/changes", s.handleChanges)
	s.echo.GET("/settings", s.handleGetSettings)
	s.echo.PUT("/settings", s.handlePutSettings)

	// History
	s.echo.GET("/history", s.handleHistory)
	s.echo.GET("/history/stats", s.handleHistoryStats)
}

func (s *Server) Start() {
	go func() {
		addr := "localhost:" + strconv.Itoa(s.port)
		logger.Log.Info("daemon server started",
			zap.String("addr", addr))

		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Error("daemon server error", zap.Error(err))
		}
	}()
}

func (s *Server) Stop(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// StopCh is signalled when a client asks the daemon to stop.
func (s *Server) StopCh() <-chan struct{} {
	return s.stopCh
}

func (s *Server) handleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.orch.Snapshot())
}

func (s *Server) handleStop(c echo.Context) error {
	select {
	case s.stopCh <- struct{}{}:
	default:
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "stopping"})
}

// handleSync requests a pass. With ?wait=true it responds once no pass is in
// flight, with the resulting snapshot. A request arriving during a timer or
// watcher pass waits for that pass instead.
func (s *Server) handleSync(c echo.Context) error {
	wait, _ := strconv.ParseBool(c.QueryParam("wait"))
	if !wait {
		s.orch.TriggerSync()
		return c.JSON(http.StatusAccepted, map[string]string{"status": "requested"})
	}

	ctx := c.Request().Context()
	updates, unsubscribe := s.orch.Subscribe()
	defer unsubscribe()

	select {
	case <-s.orch.TriggerSync():
	case <-ctx.Done():
		return ctx.Err()
	}

	snap := s.orch.Snapshot()
	for snap.State.Status.Kind == model.StatusSyncing {
		select {
		case next, ok := <-updates:
			if !ok {
				return c.JSON(http.StatusOK, s.orch.Snapshot())
			}
			snap = next
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return c.JSON(http.StatusOK, snap)
}

type setFolderRequest struct {
	Path string `json:"path"`
}

func (s *Server) handleSetFolder(c echo.Context) error {
	var req setFolderRequest
	if err := c.Bind(&req); err != nil || req.Path == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "path required"})
	}

	f, err := folder.Resolve(req.Path)
	if err == nil {
		err = s.orch.SetWatchedFolder(f)
	}

	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, model.ErrAccessDenied) {
			status = http.StatusForbidden
		}

		return c.JSON(status, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, s.orch.Snapshot())
}

func (s *Server) handleChanges(c echo.Context) error {
	return c.JSON(http.StatusOK, s.orch.Snapshot().RecentChanges)
}

func (s *Server) handleGetSettings(c echo.Context) error {
	return c.JSON(http.StatusOK, s.orch.Snapshot().Settings)
}

func (s *Server) handlePutSettings(c echo.Context) error {
	settings := s.orch.Snapshot().Settings
	if err := c.Bind(&settings); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid settings"})
	}

	if settings.IntervalSeconds < 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "interval_seconds must be positive"})
	}

	if err := s.orch.ApplySettings(settings); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, s.orch.Snapshot().Settings)
}

func (s *Server) handleHistory(c echo.Context) error {
	n := 20
	if nStr := c.QueryParam("n"); nStr != "" {
		if parsed, err := strconv.Atoi(nStr); err == nil && parsed > 0 {
			n = parsed
		}
	}

	histories, err := s.hist.GetRecent(n)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, histories)
}

func (s *Server) handleHistoryStats(c echo.Context) error {
	stats, err := s.hist.GetStats()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, stats)
}

// handleEvents streams a snapshot as a server-sent event after every state change.
func (s *Server) handleEvents(c echo.Context) error {
	ch, unsubscribe := s.orch.Subscribe()
	defer unsubscribe()

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ctx := c.Request().Context()
	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				return nil
			}

			b, err := json.Marshal(snap)
			if err != nil {
				return err
			}

			if _, err := fmt.Fprintf(w, "event: state\ndata: %s\n\n", b); err != nil {
				return nil
			}
			w.Flush()

		case <-ctx.Done():
			return nil
		}
	}
}
