package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/openngo/sitecms/pkg/model"
	"go.mongodb.org/mongo-driver/mongo"
)

// Store is a collection-agnostic CRUD passthrough to the document database.
// Every call round-trips to the backend; nothing is cached here.
type Store[T any] interface {
	// Create inserts data with createdAt/updatedAt set to now and returns the
	// new identifier. The identifier and timestamps are also written into data.
	Create(ctx context.Context, data *T) (model.RecordID, error)

	// Get returns the record with the given id, or nil without error if it
	// does not exist.
	Get(ctx context.Context, id model.RecordID) (*T, error)

	// GetAll returns every record in the collection in backend order.
	GetAll(ctx context.Context) ([]*T, error)

	// Query applies backend-native filter, sort and limit constraints.
	Query(ctx context.Context, constraints ...Constraint) ([]*T, error)

	// Update merges fields into the existing record and refreshes updatedAt.
	// It returns model.ErrNotFound if the record does not exist.
	Update(ctx context.Context, id model.RecordID, fields model.Fields) error

	// Delete removes the record. Deleting a missing record is not an error.
	Delete(ctx context.Context, id model.RecordID) error
}

// record is satisfied by a pointer to any collection type embedding model.Meta.
type record[T any] interface {
	*T
	model.Document
}

// Database is the process-wide handle to one document database backend.
// It is created once at startup and closed at shutdown; stores derived from
// it fail with model.ErrBackendUnavailable after Close.
type Database struct {
	fs    *firestore.Client
	mongo *mongo.Database
	mem   *memoryDB

	closeFn func(ctx context.Context) error

	clock     func() time.Time
	precision time.Duration

	mu     sync.Mutex
	last   time.Time
	closed bool
}

// Option configures a Database
type Option func(*Database)

// WithClock replaces time.Now as the source of createdAt/updatedAt.
func WithClock(clock func() time.Time) Option {
	return func(db *Database) {
		db.clock = clock
	}
}

func newDatabase(precision time.Duration, opts ...Option) *Database {
	db := &Database{
		clock:     time.Now,
		precision: precision,
	}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

// Backend returns the name of the backend behind the handle.
func (db *Database) Backend() string {
	switch {
	case db == nil:
		return "none"
	case db.fs != nil:
		return "firestore"
	case db.mongo != nil:
		return "mongo"
	default:
		return "memory"
	}
}

// Close releases the backend connection.
func (db *Database) Close(ctx context.Context) error {
	if db == nil {
		return nil
	}
	db.mu.Lock()
	if db.closed {
		db.mu.Unlock()
		return nil
	}
	db.closed = true
	db.mu.Unlock()

	if db.closeFn == nil {
		return nil
	}
	if err := db.closeFn(ctx); err != nil {
		return goerr.Wrap(err, "failed to close database", goerr.V("backend", db.Backend()))
	}
	return nil
}

func (db *Database) ready() error {
	if db == nil {
		return goerr.Wrap(model.ErrBackendUnavailable, "database is not initialized")
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return goerr.Wrap(model.ErrBackendUnavailable, "database is closed", goerr.V("backend", db.Backend()))
	}
	return nil
}

// now returns a UTC timestamp truncated to the backend precision that is
// strictly after every timestamp previously handed out by this handle.
func (db *Database) now() time.Time {
	db.mu.Lock()
	defer db.mu.Unlock()

	t := db.clock().UTC()
	if db.precision > 0 {
		t = t.Truncate(db.precision)
	}
	if !t.After(db.last) {
		step := db.precision
		if step <= 0 {
			step = time.Nanosecond
		}
		t = db.last.Add(step)
	}
	db.last = t
	return t
}

// Collection returns the store for a named collection on the given database.
func Collection[T any, P record[T]](db *Database, name model.CollectionName) Store[T] {
	switch {
	case db == nil:
		return unavailableStore[T]{}
	case db.fs != nil:
		return &firestoreStore[T, P]{db: db, name: name}
	case db.mongo != nil:
		return &mongoStore[T, P]{db: db, name: name}
	default:
		return &memoryStore[T, P]{db: db, name: name}
	}
}

func Pages(db *Database) Store[model.Page] {
	return Collection[model.Page](db, model.CollectionPages)
}

func Events(db *Database) Store[model.Event] {
	return Collection[model.Event](db, model.CollectionEvents)
}

func TeamMembers(db *Database) Store[model.TeamMember] {
	return Collection[model.TeamMember](db, model.CollectionTeamMembers)
}

func Programs(db *Database) Store[model.Program] {
	return Collection[model.Program](db, model.CollectionPrograms)
}

func Users(db *Database) Store[model.User] {
	return Collection[model.User](db, model.CollectionUsers)
}

func Sessions(db *Database) Store[model.SessionRecord] {
	return Collection[model.SessionRecord](db, model.CollectionSessions)
}

// Direction is the sort order of an OrderBy constraint
type Direction int

const (
	Asc Direction = iota
	Desc
)

type constraintKind int

const (
	kindWhere constraintKind = iota + 1
	kindOrderBy
	kindLimit
)

// Constraint is a backend-native query predicate. Its semantics are those of
// the backend; this layer only translates it.
type Constraint struct {
	kind  constraintKind
	path  string
	op    string
	value any
	dir   Direction
	limit int
}

// Where filters on a field. op is one of ==, !=, <, <=, >, >=, in, not-in,
// array-contains and array-contains-any.
func Where(path, op string, value any) Constraint {
	return Constraint{kind: kindWhere, path: path, op: op, value: value}
}

// OrderBy sorts the result by a field.
func OrderBy(path string, dir Direction) Constraint {
	return Constraint{kind: kindOrderBy, path: path, dir: dir}
}

// Limit caps the number of returned records.
func Limit(n int) Constraint {
	return Constraint{kind: kindLimit, limit: n}
}

// updateFields drops fields that must never be overwritten by an update and
// returns the remaining keys in a stable order.
func updateFields(fields model.Fields) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k == "id" || k == model.FieldCreatedAt || k == model.FieldUpdatedAt {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func unavailable(err error, msg string, name model.CollectionName) error {
	return goerr.Wrap(errors.Join(model.ErrBackendUnavailable, err), msg, goerr.V("collection", name))
}

type unavailableStore[T any] struct{}

func (unavailableStore[T]) err() error {
	return goerr.Wrap(model.ErrBackendUnavailable, "database is not initialized")
}

func (s unavailableStore[T]) Create(ctx context.Context, data *T) (model.RecordID, error) {
	return "", s.err()
}

func (s unavailableStore[T]) Get(ctx context.Context, id model.RecordID) (*T, error) {
	return nil, s.err()
}

func (s unavailableStore[T]) GetAll(ctx context.Context) ([]*T, error) {
	return nil, s.err()
}

func (s unavailableStore[T]) Query(ctx context.Context, constraints ...Constraint) ([]*T, error) {
	return nil, s.err()
}

func (s unavailableStore[T]) Update(ctx context.Context, id model.RecordID, fields model.Fields) error {
	return s.err()
}

func (s unavailableStore[T]) Delete(ctx context.Context, id model.RecordID) error {
	return s.err()
}
