package backend

import (
	"context"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/openngo/sitecms/pkg/adapter"
	"github.com/openngo/sitecms/pkg/auth"
	"github.com/openngo/sitecms/pkg/repository"
	"github.com/openngo/sitecms/pkg/session"
	"github.com/openngo/sitecms/pkg/usecase/content"
	"github.com/openngo/sitecms/pkg/utils/logging"
)

const (
	DatabaseFirestore = "firestore"
	DatabaseMongo     = "mongo"
	DatabaseMemory    = "memory"

	StorageGCS    = "gcs"
	StorageMemory = "memory"
)

// Config selects and configures every backend connection.
type Config struct {
	Database  string
	Firestore repository.FirestoreConfig
	Mongo     repository.MongoConfig

	Storage       string
	GCS           adapter.StorageConfig
	PublicURLBase string

	// JWTSecret signs session tokens. Without it there is no identity
	// backend and Auth returns nil.
	JWTSecret  string
	SessionTTL time.Duration

	// RoutePolicy is a .rego file or directory. Empty means the built-in
	// /admin prefix policy.
	RoutePolicy string
}

// Backend is the process-wide handle to the document database, blob
// storage, and the services built on them. Create it once at startup with
// Init and release it with Teardown.
type Backend struct {
	db       *repository.Database
	blob     adapter.Blob
	memBlob  *adapter.MemoryBlob
	gcs      *adapter.GCSBlob
	uploader *adapter.Uploader
	auth     *auth.Service
	registry *content.Registry
	guard    *session.Guard
}

func openDatabase(ctx context.Context, cfg Config) (*repository.Database, error) {
	switch cfg.Database {
	case DatabaseFirestore, "":
		return repository.NewFirestore(ctx, cfg.Firestore)
	case DatabaseMongo:
		return repository.NewMongo(ctx, cfg.Mongo)
	case DatabaseMemory:
		return repository.NewMemory(), nil
	default:
		return nil, goerr.New("unknown database backend", goerr.V("backend", cfg.Database))
	}
}

// Init opens every connection named by cfg. On failure anything already
// opened is closed again.
func Init(ctx context.Context, cfg Config) (*Backend, error) {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	b := &Backend{db: db}

	switch cfg.Storage {
	case StorageGCS, "":
		gcsCfg := cfg.GCS
		if gcsCfg.PublicURLBase == "" {
			gcsCfg.PublicURLBase = cfg.PublicURLBase
		}
		gcs, err := adapter.NewStorage(ctx, gcsCfg)
		if err != nil {
			_ = b.Teardown(ctx)
			return nil, err
		}
		b.gcs, b.blob = gcs, gcs
	case StorageMemory:
		b.memBlob = adapter.NewMemoryBlob(cfg.PublicURLBase)
		b.blob = b.memBlob
	default:
		_ = b.Teardown(ctx)
		return nil, goerr.New("unknown storage backend", goerr.V("backend", cfg.Storage))
	}
	b.uploader = adapter.NewUploader(b.blob)

	if cfg.JWTSecret != "" {
		b.auth, err = auth.NewService(db, auth.Config{Secret: cfg.JWTSecret, SessionTTL: cfg.SessionTTL})
		if err != nil {
			_ = b.Teardown(ctx)
			return nil, err
		}
	}

	b.registry, err = content.NewRegistry(db, b.uploader)
	if err != nil {
		_ = b.Teardown(ctx)
		return nil, err
	}

	var policy session.RoutePolicy = session.DefaultPolicy()
	if cfg.RoutePolicy != "" {
		rp, err := session.LoadRegoPolicy(ctx, cfg.RoutePolicy)
		if err != nil {
			_ = b.Teardown(ctx)
			return nil, err
		}
		policy = rp
	}
	b.guard = session.NewGuard(policy)

	logging.From(ctx).Info("backend initialized",
		"database", db.Backend(),
		"storage", cfg.Storage,
		"route_policy", cfg.RoutePolicy,
		"auth", b.auth != nil,
	)
	return b, nil
}

// Teardown closes every connection. It is safe to call more than once.
func (b *Backend) Teardown(ctx context.Context) error {
	var errs []error
	if err := b.db.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if b.gcs != nil {
		if err := b.gcs.Close(); err != nil {
			errs = append(errs, goerr.Wrap(err, "failed to close storage client"))
		}
		b.gcs = nil
	}
	return errors.Join(errs...)
}

func (b *Backend) DB() *repository.Database    { return b.db }
func (b *Backend) Blob() adapter.Blob          { return b.blob }
func (b *Backend) Uploader() *adapter.Uploader { return b.uploader }
func (b *Backend) Auth() *auth.Service         { return b.auth }
func (b *Backend) Registry() *content.Registry { return b.registry }
func (b *Backend) Guard() *session.Guard       { return b.guard }

// MemoryBlob returns the in-memory blob store, or nil when uploads go to
// Cloud Storage.
func (b *Backend) MemoryBlob() *adapter.MemoryBlob { return b.memBlob }
