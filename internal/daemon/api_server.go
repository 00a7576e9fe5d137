package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"tunevault/internal/api"
	"tunevault/internal/config"
	"tunevault/internal/library"
	"tunevault/internal/logging"
	"tunevault/internal/queue"
	"tunevault/internal/services"
)

const (
	healthPath        = "/health"
	defaultTrackLimit = 100
	version           = "0.1.0"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon
	echo   *echo.Echo

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

// newAPIServer returns nil when no bind address is configured; every method
// tolerates a nil receiver.
func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil
	}
	srv := &apiServer{bind: bind, logger: logger, daemon: d}
	srv.echo = srv.routes(strings.TrimSpace(cfg.Paths.APIToken))
	return srv
}

func (s *apiServer) routes(token string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.handleError

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
		RequestIDHandler: func(c echo.Context, id string) {
			req := c.Request()
			c.SetRequest(req.WithContext(services.WithRequestID(req.Context(), id)))
		},
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []logging.Attr{
				logging.String("method", v.Method),
				logging.String("uri", v.URI),
				logging.Int("status", v.Status),
				logging.Duration("latency", v.Latency),
				logging.String("request_id", v.RequestID),
			}
			if v.Error != nil {
				attrs = append(attrs, logging.Error(v.Error))
			}
			s.logger.Debug("api request", logging.Args(attrs...)...)
			return nil
		},
	}))
	e.Use(authMiddleware(token))

	e.GET(healthPath, s.handleHealth)
	e.GET("/api/status", s.handleStatus)

	e.POST("/api/queue", s.handleEnqueue)
	e.POST("/api/queue/batch", s.handleEnqueueBatch)
	e.POST("/api/queue/playlist", s.handleEnqueuePlaylist)
	e.GET("/api/queue", s.handleQueueList)
	e.DELETE("/api/queue", s.handleQueueRemove)
	e.DELETE("/api/queue/all", s.handleQueueClear)
	e.GET("/api/queue/size", s.handleQueueSize)
	e.GET("/api/queue/status", s.handleQueueStatus)
	e.GET("/api/queue/:id", s.handleQueueItem)

	e.GET("/api/tasks/:id", s.handleTask)
	e.GET("/api/tracks", s.handleTracks)
	e.GET("/api/tracks/search", s.handleTrackSearch)
	e.GET("/api/tracks/stats", s.handleTrackStats)
	e.DELETE("/api/tracks/:id", s.handleTrackDelete)
	return e
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	server := &http.Server{
		Handler:           s.echo,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.mu.Lock()
	s.listener = listener
	s.server = server
	s.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		s.stop()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()
	if server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}

func (s *apiServer) addr() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": version})
}

func (s *apiServer) handleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.daemon.Status(c.Request().Context()))
}

func (s *apiServer) handleEnqueue(c echo.Context) error {
	var req api.EnqueueRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	result, err := s.daemon.queueSvc.Enqueue(c.Request().Context(), req.URL, req.Source, req.Title)
	if err != nil {
		return err
	}
	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	return c.JSON(status, result)
}

func (s *apiServer) handleEnqueueBatch(c echo.Context) error {
	var req api.EnqueueBatchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.URLs) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "urls must not be empty")
	}
	results, err := s.daemon.queueSvc.EnqueueMany(c.Request().Context(), req.URLs, req.Source, req.Titles)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, api.EnqueueBatchResponse{Items: results})
}

func (s *apiServer) handleQueueList(c echo.Context) error {
	var statuses []queue.Status
	for _, value := range c.QueryParams()["status"] {
		if strings.TrimSpace(value) == "" {
			continue
		}
		status, err := queue.ParseStatus(value)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		statuses = append(statuses, status)
	}
	items, err := s.daemon.queueSvc.List(c.Request().Context(), statuses...)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, api.QueueListResponse{Items: items})
}

func (s *apiServer) handleQueueRemove(c echo.Context) error {
	urls := c.QueryParams()["url"]
	if len(urls) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "url query parameter is required")
	}
	result, err := api.RemoveURLs(c.Request().Context(), s.daemon.queueSvc, urls)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

func (s *apiServer) handleQueueClear(c echo.Context) error {
	removed, err := s.daemon.queueSvc.ClearAll(c.Request().Context())
	if err != nil {
		return err
	}
	s.logger.Info("queue cleared", logging.Int64("removed", removed))
	return c.JSON(http.StatusOK, api.ClearResponse{Removed: removed})
}

func (s *apiServer) handleQueueSize(c echo.Context) error {
	size, err := s.daemon.queueSvc.Size(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, api.SizeResponse{Size: size})
}

func (s *apiServer) handleQueueStatus(c echo.Context) error {
	summary, err := s.daemon.queueSvc.StatusSummary(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, summary)
}

func (s *apiServer) handleQueueItem(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid queue item id")
	}
	item, err := s.daemon.queueSvc.Describe(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if item == nil {
		return echo.NewHTTPError(http.StatusNotFound, "queue item not found")
	}
	return c.JSON(http.StatusOK, item)
}

func (s *apiServer) handleTask(c echo.Context) error {
	task, ok := s.daemon.queueSvc.Task(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "task not found")
	}
	return c.JSON(http.StatusOK, task)
}

func (s *apiServer) handleEnqueuePlaylist(c echo.Context) error {
	var req api.PlaylistEnqueueRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	resp, err := s.daemon.queueSvc.EnqueuePlaylist(c.Request().Context(), req.URL, req.Source)
	if err != nil {
		return err
	}
	s.logger.Info("playlist queued",
		logging.String("url", req.URL),
		logging.Int("tracks", resp.URLsCount),
		logging.Int("created", resp.Created),
	)
	return c.JSON(http.StatusOK, resp)
}

func (s *apiServer) handleTracks(c echo.Context) error {
	limit, err := trackLimit(c)
	if err != nil {
		return err
	}
	resp, err := s.daemon.tracks.List(c.Request().Context(), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *apiServer) handleTrackSearch(c echo.Context) error {
	limit, err := trackLimit(c)
	if err != nil {
		return err
	}
	query := library.SearchQuery{
		Query:  c.QueryParam("q"),
		Artist: c.QueryParam("artist"),
		Album:  c.QueryParam("album"),
		Title:  c.QueryParam("title"),
	}
	resp, err := s.daemon.tracks.Search(c.Request().Context(), query, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *apiServer) handleTrackStats(c echo.Context) error {
	stats, err := s.daemon.tracks.Stats(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

func (s *apiServer) handleTrackDelete(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid track id")
	}
	resp, err := s.daemon.tracks.Delete(c.Request().Context(), id)
	if err != nil {
		return err
	}
	s.logger.Info("track deleted",
		logging.Int64("track_id", id),
		logging.String("path", resp.Track.FilePath),
	)
	return c.JSON(http.StatusOK, resp)
}

func trackLimit(c echo.Context) (int, error) {
	raw := c.QueryParam("limit")
	if raw == "" {
		return defaultTrackLimit, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed < 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
	}
	return parsed, nil
}

// handleError renders every error as api.ErrorResponse, mapping service
// error markers onto HTTP status codes.
func (s *apiServer) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status := http.StatusInternalServerError
	body := api.ErrorResponse{Error: err.Error()}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		status = httpErr.Code
		body.Error = fmt.Sprint(httpErr.Message)
	} else {
		details := services.Details(err)
		body.Kind = string(details.Kind)
		switch details.Kind {
		case services.KindValidation:
			status = http.StatusBadRequest
		case services.KindNotFound:
			status = http.StatusNotFound
		case services.KindContention:
			status = http.StatusConflict
		case services.KindTimeout:
			status = http.StatusGatewayTimeout
		case services.KindTransient:
			status = http.StatusServiceUnavailable
		}
		if status >= http.StatusInternalServerError {
			logging.WithContext(c.Request().Context(), s.logger).Error("api request failed",
				logging.String("path", c.Path()),
				logging.Error(err),
			)
		}
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}
	_ = c.JSON(status, body)
}
