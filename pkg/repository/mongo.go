package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/openngo/sitecms/pkg/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoConfig selects the MongoDB database to connect to.
type MongoConfig struct {
	URI      string
	Database string
}

// NewMongo connects to MongoDB and verifies the connection with a ping.
func NewMongo(ctx context.Context, cfg MongoConfig, opts ...Option) (*Database, error) {
	if cfg.URI == "" {
		return nil, goerr.New("mongo URI is required")
	}
	if cfg.Database == "" {
		return nil, goerr.New("mongo database name is required")
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, goerr.Wrap(errors.Join(model.ErrBackendUnavailable, err), "failed to connect to mongo",
			goerr.V("database", cfg.Database))
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, goerr.Wrap(errors.Join(model.ErrBackendUnavailable, err), "failed to ping mongo",
			goerr.V("database", cfg.Database))
	}

	// BSON datetimes keep milliseconds
	db := newDatabase(time.Millisecond, opts...)
	db.mongo = client.Database(cfg.Database)
	db.closeFn = client.Disconnect
	return db, nil
}

var mongoOperators = map[string]string{
	"==":     "$eq",
	"!=":     "$ne",
	"<":      "$lt",
	"<=":     "$lte",
	">":      "$gt",
	">=":     "$gte",
	"in":     "$in",
	"not-in": "$nin",
}

type mongoStore[T any, P record[T]] struct {
	db   *Database
	name model.CollectionName
}

func (s *mongoStore[T, P]) collection() *mongo.Collection {
	return s.db.mongo.Collection(string(s.name))
}

func (s *mongoStore[T, P]) wrap(err error, msg string, id model.RecordID) error {
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return unavailable(err, msg, s.name)
	}
	return goerr.Wrap(err, msg, goerr.V("collection", s.name), goerr.V("id", id))
}

func (s *mongoStore[T, P]) Create(ctx context.Context, data *T) (model.RecordID, error) {
	if err := s.db.ready(); err != nil {
		return "", err
	}

	now := s.db.now()
	meta := P(data).GetMeta()
	meta.CreatedAt = now
	meta.UpdatedAt = now

	raw, err := bson.Marshal(data)
	if err != nil {
		return "", goerr.Wrap(err, "failed to encode document", goerr.V("collection", s.name))
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return "", goerr.Wrap(err, "failed to encode document", goerr.V("collection", s.name))
	}

	id := model.RecordID(uuid.NewString())
	doc["_id"] = id.String()

	if _, err := s.collection().InsertOne(ctx, doc); err != nil {
		return "", s.wrap(err, "failed to insert document", id)
	}

	meta.ID = id
	return id, nil
}

func (s *mongoStore[T, P]) decode(raw bson.Raw) (*T, error) {
	var v T
	if err := bson.Unmarshal(raw, &v); err != nil {
		return nil, goerr.Wrap(err, "failed to decode document", goerr.V("collection", s.name))
	}
	if id, ok := raw.Lookup("_id").StringValueOK(); ok {
		P(&v).GetMeta().ID = model.RecordID(id)
	}
	return &v, nil
}

func (s *mongoStore[T, P]) Get(ctx context.Context, id model.RecordID) (*T, error) {
	if err := s.db.ready(); err != nil {
		return nil, err
	}

	raw, err := s.collection().FindOne(ctx, bson.M{"_id": id.String()}).Raw()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, s.wrap(err, "failed to find document", id)
	}

	return s.decode(raw)
}

func (s *mongoStore[T, P]) GetAll(ctx context.Context) ([]*T, error) {
	return s.Query(ctx)
}

func mongoFilter(c Constraint) (bson.M, error) {
	switch c.op {
	case "array-contains":
		return bson.M{c.path: c.value}, nil
	case "array-contains-any":
		return bson.M{c.path: bson.M{"$in": c.value}}, nil
	}

	op, ok := mongoOperators[c.op]
	if !ok {
		return nil, goerr.New("unsupported query operator", goerr.V("op", c.op), goerr.V("path", c.path))
	}
	return bson.M{c.path: bson.M{op: c.value}}, nil
}

func (s *mongoStore[T, P]) Query(ctx context.Context, constraints ...Constraint) ([]*T, error) {
	if err := s.db.ready(); err != nil {
		return nil, err
	}

	var (
		filters []bson.M
		sortBy  bson.D
	)
	findOpts := options.Find()

	for _, c := range constraints {
		switch c.kind {
		case kindWhere:
			f, err := mongoFilter(c)
			if err != nil {
				return nil, err
			}
			filters = append(filters, f)
		case kindOrderBy:
			order := 1
			if c.dir == Desc {
				order = -1
			}
			sortBy = append(sortBy, bson.E{Key: c.path, Value: order})
		case kindLimit:
			findOpts.SetLimit(int64(c.limit))
		}
	}
	if len(sortBy) > 0 {
		findOpts.SetSort(sortBy)
	}

	filter := bson.M{}
	switch len(filters) {
	case 0:
	case 1:
		filter = filters[0]
	default:
		filter = bson.M{"$and": filters}
	}

	cursor, err := s.collection().Find(ctx, filter, findOpts)
	if err != nil {
		return nil, s.wrap(err, "failed to find documents", "")
	}
	defer cursor.Close(ctx)

	var results []*T
	for cursor.Next(ctx) {
		v, err := s.decode(cursor.Current)
		if err != nil {
			return nil, err
		}
		results = append(results, v)
	}
	if err := cursor.Err(); err != nil {
		return nil, s.wrap(err, "failed to iterate documents", "")
	}

	return results, nil
}

func (s *mongoStore[T, P]) Update(ctx context.Context, id model.RecordID, fields model.Fields) error {
	if err := s.db.ready(); err != nil {
		return err
	}

	set := bson.M{}
	for _, k := range updateFields(fields) {
		set[k] = fields[k]
	}
	set[model.FieldUpdatedAt] = s.db.now()

	result, err := s.collection().UpdateOne(ctx, bson.M{"_id": id.String()}, bson.M{"$set": set})
	if err != nil {
		return s.wrap(err, "failed to update document", id)
	}
	if result.MatchedCount == 0 {
		return goerr.Wrap(model.ErrNotFound, "document to update does not exist",
			goerr.V("collection", s.name), goerr.V("id", id))
	}
	return nil
}

func (s *mongoStore[T, P]) Delete(ctx context.Context, id model.RecordID) error {
	if err := s.db.ready(); err != nil {
		return err
	}

	if _, err := s.collection().DeleteOne(ctx, bson.M{"_id": id.String()}); err != nil {
		return s.wrap(err, "failed to delete document", id)
	}
	return nil
}
