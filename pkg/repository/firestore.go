package repository

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/openngo/sitecms/pkg/model"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreConfig selects the Firestore database to connect to.
type FirestoreConfig struct {
	ProjectID       string
	DatabaseID      string
	CredentialsFile string
}

// NewFirestore connects to Firestore. The emulator is used when
// FIRESTORE_EMULATOR_HOST is set, as the client library does.
func NewFirestore(ctx context.Context, cfg FirestoreConfig, opts ...Option) (*Database, error) {
	if cfg.ProjectID == "" {
		return nil, goerr.New("firestore project ID is required")
	}
	if cfg.DatabaseID == "" {
		cfg.DatabaseID = firestore.DefaultDatabaseID
	}

	var clientOpts []option.ClientOption
	if cfg.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := firestore.NewClientWithDatabase(ctx, cfg.ProjectID, cfg.DatabaseID, clientOpts...)
	if err != nil {
		return nil, goerr.Wrap(errors.Join(model.ErrBackendUnavailable, err), "failed to create firestore client",
			goerr.V("project_id", cfg.ProjectID),
			goerr.V("database_id", cfg.DatabaseID))
	}

	// Firestore keeps microseconds
	db := newDatabase(time.Microsecond, opts...)
	db.fs = client
	db.closeFn = func(context.Context) error { return client.Close() }
	return db, nil
}

type firestoreStore[T any, P record[T]] struct {
	db   *Database
	name model.CollectionName
}

func (s *firestoreStore[T, P]) collection() *firestore.CollectionRef {
	return s.db.fs.Collection(string(s.name))
}

func (s *firestoreStore[T, P]) wrap(err error, msg string, id model.RecordID) error {
	switch status.Code(err) {
	case codes.Unavailable:
		return unavailable(err, msg, s.name)
	case codes.NotFound:
		return goerr.Wrap(errors.Join(model.ErrNotFound, err), msg,
			goerr.V("collection", s.name), goerr.V("id", id))
	}
	return goerr.Wrap(err, msg, goerr.V("collection", s.name), goerr.V("id", id))
}

func (s *firestoreStore[T, P]) Create(ctx context.Context, data *T) (model.RecordID, error) {
	if err := s.db.ready(); err != nil {
		return "", err
	}

	now := s.db.now()
	meta := P(data).GetMeta()
	meta.CreatedAt = now
	meta.UpdatedAt = now

	ref := s.collection().NewDoc()
	if _, err := ref.Create(ctx, data); err != nil {
		return "", s.wrap(err, "failed to create document", "")
	}

	meta.ID = model.RecordID(ref.ID)
	return meta.ID, nil
}

func (s *firestoreStore[T, P]) Get(ctx context.Context, id model.RecordID) (*T, error) {
	if err := s.db.ready(); err != nil {
		return nil, err
	}

	snap, err := s.collection().Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, s.wrap(err, "failed to get document", id)
	}

	return s.decode(snap)
}

func (s *firestoreStore[T, P]) decode(snap *firestore.DocumentSnapshot) (*T, error) {
	var v T
	if err := snap.DataTo(&v); err != nil {
		return nil, goerr.Wrap(err, "failed to decode document",
			goerr.V("collection", s.name), goerr.V("id", snap.Ref.ID))
	}
	P(&v).GetMeta().ID = model.RecordID(snap.Ref.ID)
	return &v, nil
}

func (s *firestoreStore[T, P]) GetAll(ctx context.Context) ([]*T, error) {
	return s.Query(ctx)
}

func (s *firestoreStore[T, P]) Query(ctx context.Context, constraints ...Constraint) ([]*T, error) {
	if err := s.db.ready(); err != nil {
		return nil, err
	}

	q := s.collection().Query
	for _, c := range constraints {
		switch c.kind {
		case kindWhere:
			q = q.Where(c.path, c.op, c.value)
		case kindOrderBy:
			dir := firestore.Asc
			if c.dir == Desc {
				dir = firestore.Desc
			}
			q = q.OrderBy(c.path, dir)
		case kindLimit:
			q = q.Limit(c.limit)
		}
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var results []*T
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, s.wrap(err, "failed to iterate documents", "")
		}

		v, err := s.decode(snap)
		if err != nil {
			return nil, err
		}
		results = append(results, v)
	}

	return results, nil
}

func (s *firestoreStore[T, P]) Update(ctx context.Context, id model.RecordID, fields model.Fields) error {
	if err := s.db.ready(); err != nil {
		return err
	}

	keys := updateFields(fields)
	updates := make([]firestore.Update, 0, len(keys)+1)
	for _, k := range keys {
		updates = append(updates, firestore.Update{Path: k, Value: fields[k]})
	}
	updates = append(updates, firestore.Update{Path: model.FieldUpdatedAt, Value: s.db.now()})

	if _, err := s.collection().Doc(string(id)).Update(ctx, updates); err != nil {
		return s.wrap(err, "failed to update document", id)
	}
	return nil
}

func (s *firestoreStore[T, P]) Delete(ctx context.Context, id model.RecordID) error {
	if err := s.db.ready(); err != nil {
		return err
	}

	if _, err := s.collection().Doc(string(id)).Delete(ctx); err != nil {
		return s.wrap(err, "failed to delete document", id)
	}
	return nil
}
