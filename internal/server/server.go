package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/bark-labs/gntp-notify/internal/config"
	"github.com/bark-labs/gntp-notify/internal/gntp"
	"github.com/bark-labs/gntp-notify/internal/growlclient"
	"github.com/bark-labs/gntp-notify/internal/model"
	"github.com/bark-labs/gntp-notify/internal/service"
	"github.com/bark-labs/gntp-notify/internal/storage"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"
)

const pingTimeout = 3 * time.Second

// Server wires HTTP handlers.
type Server struct {
	app       *fiber.App
	hostSvc   *service.HostService
	notifySvc *service.NotifyService
	logSvc    *service.NotifyLogService
	authSvc   *service.AuthService
	store     storage.Store
	cfg       *config.Config
	log       logrus.FieldLogger
	// ping reports whether the configured GNTP target accepts connections.
	ping func(ctx context.Context) error
}

// New builds a server instance.
func New(cfg *config.Config, store storage.Store, hostSvc *service.HostService, notifySvc *service.NotifyService, logSvc *service.NotifyLogService, authSvc *service.AuthService, log logrus.FieldLogger) *Server {
	app := fiber.New(fiber.Config{
		IdleTimeout:           cfg.HTTP.ReadTimeout,
		ReadTimeout:           cfg.HTTP.ReadTimeout,
		WriteTimeout:          cfg.HTTP.WriteTimeout,
		AppName:               "gntp-notify",
		DisableStartupMessage: true,
	})
	s := &Server{
		app:       app,
		hostSvc:   hostSvc,
		notifySvc: notifySvc,
		logSvc:    logSvc,
		authSvc:   authSvc,
		store:     store,
		cfg:       cfg,
		log:       log.WithField("pkg", "server"),
	}
	s.ping = s.dialGNTP
	s.registerRoutes()
	return s
}

// Start listens and serves HTTP traffic.
func (s *Server) Start() error {
	s.log.WithField("addr", s.cfg.HTTP.Addr).Info("HTTP server listening")
	return s.app.Listen(s.cfg.HTTP.Addr)
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) registerRoutes() {
	s.app.Use(recover.New())
	s.app.Use(s.logRequests)

	s.app.Get("/healthz", s.handleHealth)

	s.app.Post("/auth/login", s.handleLogin)
	s.app.Get("/auth/profile", s.requireAuth, s.handleProfile)

	notify := s.app.Group("/notify", s.requireAPIAccess)
	notify.Get("/", s.handleNotifyQuery)
	notify.Get("/:title/:message", s.handleNotifyPath)
	notify.Post("/", s.handleNotifyPost)
	notify.Post("/broadcast", s.handleNotifyBroadcast)

	s.app.Get("/status/endpoint", s.handleStatusEndpoint)

	logGroup := s.app.Group("/api/notify/log", s.requireAuth)
	logGroup.Get("/list", s.handleLogList)
	logGroup.Get("/count/date", s.handleLogCountDate)
	logGroup.Get("/count/status", s.handleLogCountStatus)
	logGroup.Get("/count/notification", s.handleLogCountNotification)
	logGroup.Get("/count/host", s.handleLogCountHost)

	admin := s.app.Group("/admin", s.requireAuth)
	admin.Get("/summary", s.handleAdminSummary)
	admin.Get("/hosts", s.handleAdminListHosts)
	admin.Post("/hosts", s.handleAdminUpsertHost)
	admin.Post("/hosts/gen", s.handleAdminGenerateHost)
	admin.Get("/hosts/:key", s.handleAdminGetHost)
	admin.Post("/hosts/:key/active", s.handleAdminActivateHost)
	admin.Post("/hosts/:key/stop", s.handleAdminStopHost)
}

func (s *Server) logRequests(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	s.log.WithFields(logrus.Fields{
		"method":   c.Method(),
		"path":     c.Path(),
		"status":   c.Response().StatusCode(),
		"duration": time.Since(start),
	}).Debug("HTTP request")
	return err
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	resp := fiber.Map{"status": "ok"}
	ctx, cancel := context.WithTimeout(c.UserContext(), pingTimeout)
	defer cancel()
	if err := s.ping(ctx); err != nil {
		resp["gntp"] = fiber.Map{"status": "degraded", "address": s.cfg.GNTP.Address, "error": err.Error()}
	} else {
		resp["gntp"] = fiber.Map{"status": "up", "address": s.cfg.GNTP.Address}
	}
	return c.Status(http.StatusOK).JSON(resp)
}

func (s *Server) handleStatusEndpoint(c *fiber.Ctx) error {
	res := model.StatusRes{
		Application: s.cfg.GNTP.Application,
		Address:     gntp.Address(s.cfg.GNTP.Address),
	}
	if !s.validAPIToken(c.Get("API-TOKEN")) {
		res.Status = "unauthorized"
		return c.Status(http.StatusUnauthorized).JSON(res)
	}
	hosts, err := s.hostSvc.List(c.UserContext())
	if err != nil {
		res.Status = "error"
		return c.Status(http.StatusInternalServerError).JSON(res)
	}
	for _, h := range hosts {
		if h.Active() {
			res.ActiveHostNum++
		}
	}
	res.AllHostNum = len(hosts)
	res.Status = "offline"
	ctx, cancel := context.WithTimeout(c.UserContext(), pingTimeout)
	defer cancel()
	if s.ping(ctx) == nil {
		res.Status = "online"
	}
	return c.JSON(res)
}

// dialGNTP opens and closes a TCP connection to the configured target.
func (s *Server) dialGNTP(ctx context.Context) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", gntp.Address(s.cfg.GNTP.Address))
	if err != nil {
		return err
	}
	return conn.Close()
}

func (s *Server) requireAuth(c *fiber.Ctx) error {
	if !s.authSvc.Enabled() {
		return c.Next()
	}
	token := extractBearerToken(c.Get("Authorization"))
	if token == "" {
		return c.Status(http.StatusUnauthorized).JSON(model.ErrorWithCode(model.UnauthorizedCode, "not logged in", nil))
	}
	session, err := s.authSvc.Session(token)
	if err != nil {
		s.log.WithError(err).Debug("Rejected session token")
		return c.Status(http.StatusUnauthorized).JSON(model.ErrorWithCode(model.UnauthorizedCode, "session expired", nil))
	}
	c.Locals(sessionKey, session)
	return c.Next()
}

// requireAPIAccess accepts either the static API token or an admin JWT.
func (s *Server) requireAPIAccess(c *fiber.Ctx) error {
	if s.validAPIToken(c.Get("API-TOKEN")) {
		return c.Next()
	}
	return s.requireAuth(c)
}

func (s *Server) validAPIToken(token string) bool {
	expected := strings.TrimSpace(s.cfg.HTTP.APIToken)
	return expected != "" && subtle.ConstantTimeCompare([]byte(token), []byte(expected)) == 1
}

func extractBearerToken(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// respondError maps service and session errors to an HTTP status and
// envelope code. data carries partial results such as a failed delivery.
func (s *Server) respondError(c *fiber.Ctx, err error, data any) error {
	var (
		verr *gntp.ValidationError
		derr *growlclient.DeliveryError
		rerr *growlclient.RegistrationError
	)
	status, code := http.StatusInternalServerError, model.ErrorCode
	switch {
	case errors.Is(err, service.ErrEmptyMessage), errors.Is(err, service.ErrInvalidInput), errors.As(err, &verr):
		status, code = http.StatusBadRequest, model.ValidationCode
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, service.ErrNoTargets):
		status, code = http.StatusNotFound, model.NotFoundCode
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrInvalidToken):
		status, code = http.StatusUnauthorized, model.UnauthorizedCode
	case errors.As(err, &derr), errors.As(err, &rerr), errors.Is(err, growlclient.ErrNotRegistered):
		status, code = http.StatusBadGateway, model.DeliveryCode
	}
	if status == http.StatusInternalServerError {
		s.log.WithError(err).WithField("path", c.Path()).Error("Request failed")
	}
	return c.Status(status).JSON(model.ErrorWithCode(code, err.Error(), data))
}
