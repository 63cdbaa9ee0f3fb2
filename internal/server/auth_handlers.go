package server

import (
	"net/http"

	"github.com/bark-labs/gntp-notify/internal/model"
	"github.com/bark-labs/gntp-notify/internal/service"
	"github.com/gofiber/fiber/v2"
)

// sessionKey holds the service.Session set by requireAuth.
const sessionKey = "session"

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(c *fiber.Ctx) error {
	var creds credentials
	if err := c.BodyParser(&creds); err != nil {
		return c.Status(http.StatusBadRequest).JSON(model.ErrorWithCode(model.ValidationCode, "malformed request body", nil))
	}
	session, err := s.authSvc.Login(creds.Username, creds.Password)
	if err != nil {
		s.log.WithField("username", creds.Username).Warn("Login failed")
		return s.respondError(c, err, nil)
	}
	msg := "login succeeded"
	if !session.Enabled {
		msg = "login not required"
	}
	return c.JSON(model.Success(msg, session))
}

// handleProfile runs behind requireAuth; without auth it reports a guest.
func (s *Server) handleProfile(c *fiber.Ctx) error {
	session, ok := c.Locals(sessionKey).(service.Session)
	if !ok {
		session, _ = s.authSvc.Session("")
	}
	session.Token = ""
	return c.JSON(model.Success("ok", session))
}
