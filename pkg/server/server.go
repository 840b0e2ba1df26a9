package server

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/m-mizutani/goerr/v2"
	"github.com/openngo/sitecms/pkg/adapter"
	"github.com/openngo/sitecms/pkg/auth"
	"github.com/openngo/sitecms/pkg/backend"
	"github.com/openngo/sitecms/pkg/model"
	"github.com/openngo/sitecms/pkg/repository"
	"github.com/openngo/sitecms/pkg/session"
	"github.com/openngo/sitecms/pkg/usecase/content"
	"github.com/openngo/sitecms/pkg/utils/logging"
)

const (
	// SessionCookie holds the session token issued at sign-in.
	SessionCookie = "sitecms_session"

	defaultBodyLimit = 32 * 1024 * 1024
	shutdownTimeout  = 10 * time.Second
)

// Server is the admin and public HTTP API.
type Server struct {
	app      *fiber.App
	db       *repository.Database
	auth     *auth.Service
	registry *content.Registry
	guard    *session.Guard
	files    *adapter.MemoryBlob

	secureCookie bool
	bodyLimit    int
}

type Option func(*Server)

// WithSecureCookie marks the session cookie Secure, for HTTPS deployments.
func WithSecureCookie() Option {
	return func(s *Server) { s.secureCookie = true }
}

// WithBodyLimit sets the largest accepted request body in bytes.
func WithBodyLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.bodyLimit = n
		}
	}
}

// New builds the routes on b. b must have an identity backend.
func New(b *backend.Backend, opts ...Option) (*Server, error) {
	if b.Auth() == nil {
		return nil, goerr.New("server requires a jwt secret for sessions")
	}

	s := &Server{
		db:        b.DB(),
		auth:      b.Auth(),
		registry:  b.Registry(),
		guard:     b.Guard(),
		files:     b.MemoryBlob(),
		bodyLimit: defaultBodyLimit,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "sitecms",
		DisableStartupMessage: true,
		BodyLimit:             s.bodyLimit,
		ErrorHandler:          errorHandler,
		// the route guard folds case the same way
		CaseSensitive: false,
	})
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.app.Use(requestLogger)

	s.app.Get("/healthz", s.healthz)

	admin := s.app.Group(session.DefaultAdminPrefix, s.protect)
	admin.Get("/", s.dashboard)
	admin.Get("/login", s.loginPage)
	admin.Post("/login", s.login)
	admin.Post("/logout", s.logout)

	admin.Post("/content/pages/preview", s.preview)
	admin.Get("/content/:collection", s.listContent)
	admin.Post("/content/:collection/new", s.createContent)
	admin.Get("/content/:collection/edit/:id", s.getContent)
	admin.Put("/content/:collection/edit/:id", s.updateContent)
	admin.Delete("/content/:collection/:id", s.deleteContent)

	api := s.app.Group("/api")
	api.Get("/:collection", s.listPublic)
	api.Get("/:collection/:id", s.getPublic)

	if s.files != nil {
		s.app.Get("/files/*", s.getFile)
	}
}

// App returns the underlying fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Listen(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.app.Listen(addr)
	}()
	logging.From(ctx).Info("server started", "addr", addr)

	select {
	case err := <-errCh:
		if err != nil {
			return goerr.Wrap(err, "server stopped", goerr.V("addr", addr))
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.app.ShutdownWithContext(shutdownCtx); err != nil {
		return goerr.Wrap(err, "failed to shut down server")
	}
	logging.From(ctx).Info("server stopped", "addr", addr)
	return nil
}

func statusOf(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, model.ErrBackendUnavailable):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, model.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, model.ErrInvalidCredentials):
		return fiber.StatusUnauthorized
	case errors.Is(err, model.ErrTransport):
		return fiber.StatusBadGateway
	case errors.Is(err, model.ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, model.ErrConflict):
		return fiber.StatusConflict
	}
	return fiber.StatusInternalServerError
}

func errorHandler(c *fiber.Ctx, err error) error {
	status := statusOf(err)

	logger := logging.From(c.UserContext())
	if status >= fiber.StatusInternalServerError {
		logger.Error("request failed", "status", status, logging.ErrAttr(err))
	} else {
		logger.Info("request rejected", "status", status, "error", err.Error())
	}

	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
