// Package webapi exposes the operator JSON API: session control,
// roster queries, the attendance ledger, and the live camera preview.
// It drives the engine through narrow interfaces so handlers stay
// testable without hardware.
package webapi

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/crypto/bcrypt"

	"github.com/campuskit/faceroll/internal/conf"
	"github.com/campuskit/faceroll/internal/datastore"
	"github.com/campuskit/faceroll/internal/logging"
	"github.com/campuskit/faceroll/internal/observability"
	"github.com/campuskit/faceroll/internal/session"
)

// ComponentWebAPI is the component name used in error reports.
const ComponentWebAPI = "webapi"

// SignalReloadRoster asks the engine for a full roster refresh. The
// handler queues it on the control channel; the engine does the slow
// work off the request path.
const SignalReloadRoster = "reload_roster"

const shutdownTimeout = 10 * time.Second

// SessionRegistry is the slice of the engine the API drives.
// rollcall.Registry implements it.
type SessionRegistry interface {
	StartSession(mode session.Mode) (*session.Session, error)
	Get(id uuid.UUID) (*session.Session, bool)
	List() []*session.Session
	StopSession(id uuid.UUID) error
	Supply(id uuid.UUID, regNo string) error
	SwitchGroup(id uuid.UUID, tag string) error
}

// Store is the read side of the datastore the API serves.
// datastore.Interface implements it.
type Store interface {
	ListPeople(ctx context.Context) ([]datastore.Person, error)
	ListGroup(ctx context.Context, groupTag string) ([]datastore.Person, error)
	SearchPeople(ctx context.Context, query string) ([]datastore.Person, error)
	DistinctGroups(ctx context.Context) ([]string, error)
	AttendanceOn(ctx context.Context, date string) ([]datastore.AttendanceEntry, error)
	AttendanceBetween(ctx context.Context, startDate, endDate string) ([]datastore.AttendanceEntry, error)
}

// Controller manages the API routes and handlers.
type Controller struct {
	Echo     *echo.Echo
	Group    *echo.Group
	Settings *conf.Settings

	registry    SessionRegistry
	store       Store
	metrics     *observability.Metrics
	controlChan chan<- string

	logger      *slog.Logger
	loggerClose func() error
	startTime   time.Time
}

// New assembles the API controller and registers its routes. The
// metrics instance and control channel are optional.
func New(settings *conf.Settings, store Store, registry SessionRegistry,
	metrics *observability.Metrics, controlChan chan<- string) *Controller {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.IPExtractor = echo.ExtractIPFromXFFHeader()

	c := &Controller{
		Echo:        e,
		Settings:    settings,
		registry:    registry,
		store:       store,
		metrics:     metrics,
		controlChan: controlChan,
		startTime:   time.Now(),
	}
	c.initLogger()
	e.Logger = newEchoLogger(c.logger)
	c.configureMiddleware()
	c.initRoutes()
	return c
}

// initLogger sets up the web access logger, to file when the
// configuration asks for one.
func (c *Controller) initLogger() {
	logCfg := c.Settings.WebServer.Log
	if logCfg.Enabled && logCfg.Path != "" {
		fileLogger, closeFunc, err := logging.NewFileLogger(logCfg.Path, "webapi", slog.LevelInfo)
		if err == nil {
			c.logger = fileLogger
			c.loggerClose = closeFunc
			return
		}
		logging.ForService("webapi").Error("failed to open web log file, falling back",
			"path", logCfg.Path,
			"error", err)
	}
	c.logger = logging.ForService("webapi")
	if c.logger == nil {
		c.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	c.loggerClose = func() error { return nil }
}

func (c *Controller) configureMiddleware() {
	c.Echo.Use(middleware.Recover())
	c.Echo.Use(middleware.Gzip())
	c.Echo.Use(middleware.BodyLimit("1M"))
	c.Echo.Use(c.loggingMiddleware())
}

// loggingMiddleware logs each request and feeds the HTTP metrics.
// The route template, not the raw path, labels the metrics so session
// IDs do not explode the cardinality.
func (c *Controller) loggingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			err := next(ctx)

			req := ctx.Request()
			res := ctx.Response()
			if c.metrics != nil && c.metrics.HTTP != nil {
				c.metrics.HTTP.RecordHTTPRequest(req.Method, ctx.Path(), res.Status, time.Since(start).Seconds())
			}
			c.logger.LogAttrs(req.Context(), slog.LevelInfo, "request",
				slog.String("method", req.Method),
				slog.String("path", req.URL.Path),
				slog.Int("status", res.Status),
				slog.String("ip", ctx.RealIP()),
				slog.Int64("latency_ms", time.Since(start).Milliseconds()),
			)
			return err
		}
	}
}

// initRoutes registers the endpoints. Everything except the health
// check sits behind basic auth when it is enabled.
func (c *Controller) initRoutes() {
	c.Echo.GET("/health", c.HealthCheck)

	c.Group = c.Echo.Group("/api/v1")
	if c.Settings.WebServer.BasicAuth.Enabled {
		c.Group.Use(middleware.BasicAuth(c.validateCredentials))
	}

	c.Group.GET("/sessions", c.GetSessions)
	c.Group.POST("/sessions", c.StartSession)
	c.Group.GET("/sessions/:id", c.GetSession)
	c.Group.DELETE("/sessions/:id", c.StopSession)
	c.Group.POST("/sessions/:id/supply", c.SupplyIdentifier)
	c.Group.POST("/sessions/:id/group", c.SwitchGroup)
	c.Group.GET("/sessions/:id/frame", c.GetFrame)
	c.Group.GET("/sessions/:id/preview", c.StreamPreview)

	c.Group.GET("/people", c.GetPeople)
	c.Group.GET("/people/groups", c.GetGroups)
	c.Group.GET("/attendance/today", c.GetAttendanceToday)
	c.Group.GET("/attendance", c.GetAttendance)

	c.Group.POST("/roster/reload", c.ReloadRoster)

	if c.metrics != nil {
		c.Group.GET("/metrics", echo.WrapHandler(c.metrics.Handler()))
	}
}

// validateCredentials checks basic auth against the configured
// operator account. The stored password is a bcrypt hash.
func (c *Controller) validateCredentials(username, password string, ctx echo.Context) (bool, error) {
	auth := c.Settings.WebServer.BasicAuth

	userMatch := subtle.ConstantTimeCompare([]byte(username), []byte(auth.Username)) == 1
	passErr := bcrypt.CompareHashAndPassword([]byte(auth.Password), []byte(password))
	if !userMatch || passErr != nil {
		if c.metrics != nil && c.metrics.HTTP != nil {
			c.metrics.HTTP.RecordAuthOperation("basic", "login", "failure")
			c.metrics.HTTP.RecordAuthError("basic", "invalid_credentials")
		}
		c.logger.Warn("basic auth rejected", "ip", ctx.RealIP())
		return false, nil
	}
	if c.metrics != nil && c.metrics.HTTP != nil {
		c.metrics.HTTP.RecordAuthOperation("basic", "login", "success")
	}
	return true, nil
}

// Start serves the API on the configured port until quitChan closes.
func (c *Controller) Start(wg *sync.WaitGroup, quitChan <-chan struct{}) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.logger.Info("web server starting", "port", c.Settings.WebServer.Port)
		if err := c.Echo.Start(":" + c.Settings.WebServer.Port); err != nil && !isServerClosed(err) {
			c.logger.Error("web server error", "error", err)
		}
	}()

	go c.gracefulShutdown(quitChan)
}

func (c *Controller) gracefulShutdown(quitChan <-chan struct{}) {
	<-quitChan
	c.logger.Info("stopping web server")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := c.Echo.Shutdown(ctx); err != nil {
		c.logger.Error("web server shutdown error", "error", err)
	}
	if err := c.loggerClose(); err != nil {
		logging.Error("failed to close web log file", "error", err)
	}
}

func isServerClosed(err error) bool {
	return errors.Is(err, http.ErrServerClosed)
}

// HealthCheck reports liveness and build information.
func (c *Controller) HealthCheck(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]any{
		"status":  "healthy",
		"version": c.Settings.Version,
		"uptime":  time.Since(c.startTime).Seconds(),
	})
}

// ErrorResponse is the JSON error body every handler returns.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// HandleError logs err and replies with a structured error body. The
// correlation ID ties the response to the log line.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	resp := &ErrorResponse{
		Error:         message,
		Message:       message,
		Code:          code,
		CorrelationID: generateCorrelationID(),
	}
	if err != nil {
		resp.Error = err.Error()
	}

	c.logger.Error("request failed",
		"correlation_id", resp.CorrelationID,
		"message", message,
		"error", resp.Error,
		"code", code,
		"path", ctx.Request().URL.Path,
		"method", ctx.Request().Method,
		"ip", ctx.RealIP(),
	)
	return ctx.JSON(code, resp)
}

// generateCorrelationID returns a short random identifier for error
// tracking.
func generateCorrelationID() string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "00000000"
	}
	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b)
}
