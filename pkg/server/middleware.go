package server

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/openngo/sitecms/pkg/auth"
	"github.com/openngo/sitecms/pkg/session"
	"github.com/openngo/sitecms/pkg/utils/logging"
)

const localGate = "gate"

// requestLogger tags the request context with a request id and logs the
// outcome once the handler chain has finished.
func requestLogger(c *fiber.Ctx) error {
	id := c.Get(fiber.HeaderXRequestID)
	if id == "" {
		id = uuid.NewString()
	}
	c.Set(fiber.HeaderXRequestID, id)

	logger := logging.From(c.UserContext()).With("request_id", id)
	c.SetUserContext(logging.With(c.UserContext(), logger))

	start := time.Now()
	if err := c.Next(); err != nil {
		if herr := c.App().Config().ErrorHandler(c, err); herr != nil {
			_ = c.SendStatus(fiber.StatusInternalServerError)
		}
	}

	logger.Debug("request",
		"method", c.Method(),
		"path", c.Path(),
		"status", c.Response().StatusCode(),
		"duration", time.Since(start),
	)
	return nil
}

// protect builds a session gate for the request from its cookie and lets
// the guard decide. Nothing is rendered until the gate has resolved.
func (s *Server) protect(c *fiber.Ctx) error {
	ctx := c.UserContext()
	token := strings.Clone(c.Cookies(SessionCookie))

	gate := session.NewGate(auth.NewClient(ctx, s.auth, token))
	defer gate.Close()

	d, err := s.guard.Check(ctx, gate, c.Path())
	if err != nil {
		return err
	}

	switch d.Action {
	case session.ActionRedirect:
		return c.Redirect(d.Location, fiber.StatusSeeOther)
	case session.ActionRender:
		c.Locals(localGate, gate)
		return c.Next()
	}
	return fiber.NewError(fiber.StatusServiceUnavailable, "session is still loading")
}

func gateOf(c *fiber.Ctx) *session.Gate {
	gate, _ := c.Locals(localGate).(*session.Gate)
	return gate
}
