package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/openngo/sitecms/pkg/model"
	"github.com/openngo/sitecms/pkg/repository"
	"github.com/openngo/sitecms/pkg/utils/logging"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultIssuer     = "sitecms"
	DefaultSessionTTL = 24 * time.Hour
	minPasswordLength = 8
)

// Config holds token settings for the identity backend
type Config struct {
	Secret     string
	Issuer     string
	SessionTTL time.Duration
}

// Session is the result of a successful sign-in
type Session struct {
	Token     string
	Principal *model.Principal
	ExpiresAt time.Time
}

// Service is the identity backend: email and password accounts in the users
// collection and one session record per signed-in browser.
type Service struct {
	users    repository.Store[model.User]
	sessions repository.Store[model.SessionRecord]
	tokens   *tokenService
	ttl      time.Duration
	cost     int
	clock    func() time.Time

	// serializes the email check and insert of Register
	registerMu sync.Mutex
}

type Option func(*Service)

// WithClock replaces time.Now for session expiry and token timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// WithBcryptCost sets the hashing cost of new passwords.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

func NewService(db *repository.Database, cfg Config, opts ...Option) (*Service, error) {
	if cfg.Secret == "" {
		return nil, goerr.New("token secret is required")
	}
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultIssuer
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}

	s := &Service{
		users:    repository.Users(db),
		sessions: repository.Sessions(db),
		ttl:      cfg.SessionTTL,
		cost:     bcrypt.DefaultCost,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.tokens = &tokenService{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		clock:  s.clock,
	}
	return s, nil
}

func (s *Service) findUser(ctx context.Context, email string) (*model.User, error) {
	users, err := s.users.Query(ctx,
		repository.Where("email", "==", model.NormalizeEmail(email)),
		repository.Limit(1),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to look up user")
	}
	if len(users) == 0 {
		return nil, nil
	}
	return users[0], nil
}

// Register creates an admin account. Emails are unique among accounts
// registered through this Service; the store has no unique index, so two
// processes registering the same email at once can both succeed.
func (s *Service) Register(ctx context.Context, email, password, displayName string) (*model.Principal, error) {
	email = model.NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, goerr.Wrap(model.ErrValidation, "a valid email is required", goerr.V("email", email))
	}
	if len(password) < minPasswordLength {
		return nil, goerr.Wrap(model.ErrValidation, "password must be at least 8 characters")
	}

	s.registerMu.Lock()
	defer s.registerMu.Unlock()

	existing, err := s.findUser(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, goerr.Wrap(model.ErrConflict, "email is already registered", goerr.V("email", email))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to hash password")
	}

	user := &model.User{
		Email:        email,
		DisplayName:  strings.TrimSpace(displayName),
		PasswordHash: string(hash),
	}
	if _, err := s.users.Create(ctx, user); err != nil {
		return nil, goerr.Wrap(err, "failed to create user", goerr.V("email", email))
	}

	logging.From(ctx).Info("user registered", "user_id", user.ID, "email", email)
	return user.Principal(), nil
}

// SignIn verifies credentials and opens a session. Rejections wrap
// model.ErrInvalidCredentials; there is no retry, rate limit, or lockout.
func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.findUser(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, goerr.Wrap(model.ErrInvalidCredentials, "sign-in rejected", goerr.V("reason", "unknown email"))
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, goerr.Wrap(model.ErrInvalidCredentials, "sign-in rejected", goerr.V("reason", "password mismatch"))
	}

	session := &model.SessionRecord{
		UserID:    user.ID,
		ExpiresAt: s.clock().Add(s.ttl).UTC(),
	}
	if _, err := s.sessions.Create(ctx, session); err != nil {
		return nil, goerr.Wrap(err, "failed to create session", goerr.V("user_id", user.ID))
	}

	token, err := s.tokens.issue(session, user)
	if err != nil {
		return nil, err
	}

	logging.From(ctx).Info("signed in", "user_id", user.ID, "session_id", session.ID)
	return &Session{
		Token:     token,
		Principal: user.Principal(),
		ExpiresAt: session.ExpiresAt,
	}, nil
}

func (s *Service) lookup(ctx context.Context, token string) (*Claims, *model.SessionRecord, error) {
	if token == "" {
		return nil, nil, nil
	}
	claims, err := s.tokens.parse(token)
	if err != nil {
		logging.From(ctx).Debug("rejected session token", logging.ErrAttr(err))
		return nil, nil, nil
	}

	session, err := s.sessions.Get(ctx, model.RecordID(claims.ID))
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to load session", goerr.V("session_id", claims.ID))
	}
	if session == nil || session.Expired(s.clock()) {
		return nil, nil, nil
	}
	return claims, session, nil
}

// Resolve returns the principal behind a session token, or nil when the
// token is missing, invalid, expired, or signed out.
func (s *Service) Resolve(ctx context.Context, token string) (*model.Principal, error) {
	_, session, err := s.lookup(ctx, token)
	if err != nil || session == nil {
		return nil, err
	}

	user, err := s.users.Get(ctx, session.UserID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load user", goerr.V("user_id", session.UserID))
	}
	if user == nil {
		return nil, nil
	}
	return user.Principal(), nil
}

// SignOut ends the session behind token. Unknown tokens are ignored.
func (s *Service) SignOut(ctx context.Context, token string) error {
	_, session, err := s.lookup(ctx, token)
	if err != nil || session == nil {
		return err
	}

	if err := s.sessions.Delete(ctx, session.ID); err != nil {
		return goerr.Wrap(err, "failed to delete session", goerr.V("session_id", session.ID))
	}
	logging.From(ctx).Info("signed out", "user_id", session.UserID, "session_id", session.ID)
	return nil
}

// ListUsers returns every account without password hashes.
func (s *Service) ListUsers(ctx context.Context) ([]*model.Principal, error) {
	users, err := s.users.GetAll(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list users")
	}
	principals := make([]*model.Principal, 0, len(users))
	for _, u := range users {
		principals = append(principals, u.Principal())
	}
	return principals, nil
}

// IsInvalidCredentials reports whether err is a sign-in rejection.
func IsInvalidCredentials(err error) bool {
	return errors.Is(err, model.ErrInvalidCredentials)
}
