package server

import (
	"github.com/gofiber/fiber/v2"
	"github.com/m-mizutani/goerr/v2"
	"github.com/openngo/sitecms/pkg/model"
	"github.com/openngo/sitecms/pkg/usecase/content"
)

type loginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

func (s *Server) loginPage(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"page":   "login",
		"action": s.guard.LoginPath(),
		"fields": []string{"email", "password"},
	})
}

func (s *Server) login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return goerr.Wrap(model.ErrValidation, "invalid login request", goerr.V("error", err.Error()))
	}
	if req.Email == "" || req.Password == "" {
		return goerr.Wrap(model.ErrValidation, "email and password are required")
	}

	sess, err := gateOf(c).SignIn(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}

	c.Cookie(&fiber.Cookie{
		Name:     SessionCookie,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HTTPOnly: true,
		Secure:   s.secureCookie,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.JSON(fiber.Map{
		"user":      sess.Principal,
		"expiresAt": sess.ExpiresAt,
		"redirect":  s.guard.HomePath(),
	})
}

func (s *Server) logout(c *fiber.Ctx) error {
	if err := gateOf(c).SignOut(c.UserContext()); err != nil {
		return err
	}
	c.ClearCookie(SessionCookie)
	return c.Redirect(s.guard.LoginPath(), fiber.StatusSeeOther)
}

func (s *Server) dashboard(c *fiber.Ctx) error {
	d, err := s.registry.Dashboard(c.UserContext(), c.QueryInt("limit", content.DefaultRecentLimit))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"user":   gateOf(c).Snapshot().User,
		"counts": d.Counts,
		"recent": d.Recent,
	})
}
