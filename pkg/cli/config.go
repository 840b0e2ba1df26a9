package cli

import (
	"context"
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/openngo/sitecms/pkg/adapter"
	"github.com/openngo/sitecms/pkg/backend"
	"github.com/openngo/sitecms/pkg/repository"
	"github.com/openngo/sitecms/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// config holds configuration values
type config struct {
	// Logging
	logLevel  string
	logFormat string

	// Document database
	databaseBackend string
	project         string
	database        string
	credentialsFile string
	mongoURI        string
	mongoDatabase   string

	// Blob storage
	storageBackend string
	bucket         string
	publicURLBase  string

	// Sessions
	jwtSecret   string
	sessionTTL  time.Duration
	routePolicy string
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("SITECMS_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "Log format (console, json)",
			Value:       string(logging.FormatConsole),
			Sources:     cli.EnvVars("SITECMS_LOG_FORMAT"),
			Destination: &cfg.logFormat,
		},
		&cli.StringFlag{
			Name:        "backend",
			Aliases:     []string{"b"},
			Usage:       "Document database backend (firestore, mongo, memory)",
			Value:       backend.DatabaseFirestore,
			Sources:     cli.EnvVars("SITECMS_BACKEND"),
			Destination: &cfg.databaseBackend,
		},
		&cli.StringFlag{
			Name:        "project",
			Aliases:     []string{"p"},
			Usage:       "Google Cloud project ID",
			Sources:     cli.EnvVars("GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.project,
		},
		&cli.StringFlag{
			Name:        "database",
			Aliases:     []string{"d"},
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("FIRESTORE_DATABASE_ID"),
			Destination: &cfg.database,
		},
		&cli.StringFlag{
			Name:        "credentials-file",
			Usage:       "Google Cloud service account key file",
			Sources:     cli.EnvVars("GOOGLE_APPLICATION_CREDENTIALS"),
			Destination: &cfg.credentialsFile,
		},
		&cli.StringFlag{
			Name:        "mongo-uri",
			Usage:       "MongoDB connection URI",
			Sources:     cli.EnvVars("SITECMS_MONGO_URI"),
			Destination: &cfg.mongoURI,
		},
		&cli.StringFlag{
			Name:        "mongo-database",
			Usage:       "MongoDB database name",
			Value:       "sitecms",
			Sources:     cli.EnvVars("SITECMS_MONGO_DATABASE"),
			Destination: &cfg.mongoDatabase,
		},
		&cli.StringFlag{
			Name:        "storage-backend",
			Usage:       "Blob storage backend (gcs, memory)",
			Value:       backend.StorageGCS,
			Sources:     cli.EnvVars("SITECMS_STORAGE_BACKEND"),
			Destination: &cfg.storageBackend,
		},
		&cli.StringFlag{
			Name:        "bucket",
			Usage:       "Cloud Storage bucket for uploads",
			Sources:     cli.EnvVars("SITECMS_BUCKET"),
			Destination: &cfg.bucket,
		},
		&cli.StringFlag{
			Name:        "public-url-base",
			Usage:       "URL prefix of uploaded files",
			Sources:     cli.EnvVars("SITECMS_PUBLIC_URL_BASE"),
			Destination: &cfg.publicURLBase,
		},
		&cli.StringFlag{
			Name:        "jwt-secret",
			Usage:       "Secret for signing session tokens",
			Sources:     cli.EnvVars("SITECMS_JWT_SECRET"),
			Destination: &cfg.jwtSecret,
		},
		&cli.DurationFlag{
			Name:        "session-ttl",
			Usage:       "Lifetime of an admin session",
			Value:       24 * time.Hour,
			Sources:     cli.EnvVars("SITECMS_SESSION_TTL"),
			Destination: &cfg.sessionTTL,
		},
		&cli.StringFlag{
			Name:        "route-policy",
			Usage:       "Rego file or directory deciding protected routes",
			Sources:     cli.EnvVars("SITECMS_ROUTE_POLICY"),
			Destination: &cfg.routePolicy,
		},
	}
}

// setupLogger installs the configured logger as default and in ctx.
func (cfg *config) setupLogger(ctx context.Context) (context.Context, error) {
	level, err := logging.ParseLevel(cfg.logLevel)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(cfg.logFormat)
	if err != nil {
		return nil, err
	}

	logger := logging.New(os.Stderr, logging.WithLevel(level), logging.WithFormat(format))
	logging.SetDefault(logger)
	return logging.With(ctx, logger), nil
}

func (cfg *config) backendConfig() backend.Config {
	return backend.Config{
		Database: cfg.databaseBackend,
		Firestore: repository.FirestoreConfig{
			ProjectID:       cfg.project,
			DatabaseID:      cfg.database,
			CredentialsFile: cfg.credentialsFile,
		},
		Mongo: repository.MongoConfig{
			URI:      cfg.mongoURI,
			Database: cfg.mongoDatabase,
		},
		Storage: cfg.storageBackend,
		GCS: adapter.StorageConfig{
			Bucket:          cfg.bucket,
			CredentialsFile: cfg.credentialsFile,
		},
		PublicURLBase: cfg.publicURLBase,
		JWTSecret:     cfg.jwtSecret,
		SessionTTL:    cfg.sessionTTL,
		RoutePolicy:   cfg.routePolicy,
	}
}

// newBackend sets up logging and opens every backend connection. The
// caller must Teardown the result.
func (cfg *config) newBackend(ctx context.Context) (context.Context, *backend.Backend, error) {
	ctx, err := cfg.setupLogger(ctx)
	if err != nil {
		return nil, nil, err
	}

	b, err := backend.Init(ctx, cfg.backendConfig())
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to initialize backend")
	}
	return ctx, b, nil
}

// requireAuth is newBackend for commands that need the identity backend.
func (cfg *config) requireAuth(ctx context.Context) (context.Context, *backend.Backend, error) {
	if cfg.jwtSecret == "" {
		return nil, nil, goerr.New("jwt-secret is required")
	}
	return cfg.newBackend(ctx)
}

func teardown(ctx context.Context, b *backend.Backend) {
	if err := b.Teardown(ctx); err != nil {
		logging.From(ctx).Warn("failed to close backend", logging.ErrAttr(err))
	}
}
