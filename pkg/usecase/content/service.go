package content

import (
	"context"
	"errors"

	"github.com/m-mizutani/goerr/v2"
	"github.com/openngo/sitecms/pkg/adapter"
	"github.com/openngo/sitecms/pkg/model"
	"github.com/openngo/sitecms/pkg/repository"
	"github.com/openngo/sitecms/pkg/utils/logging"
)

// Record is implemented by a pointer to each editable content type.
type Record[T any] interface {
	*T
	model.Document
	Normalize()
	Validate() error
	Matches(q string) bool
	ImageURL() string
	SetImageURL(url string)
	ImageField() string
	Label() string
}

// Service provides the admin operations of one content collection
type Service[T any, P Record[T]] struct {
	name     model.CollectionName
	slug     string
	store    repository.Store[T]
	uploader *adapter.Uploader
	schemas  *schemas
	visible  func(P) bool
}

// Option is a functional option for Service
type Option[T any, P Record[T]] func(*Service[T, P])

// WithVisibility restricts what public readers may see.
func WithVisibility[T any, P Record[T]](visible func(P) bool) Option[T, P] {
	return func(s *Service[T, P]) {
		s.visible = visible
	}
}

// New creates a Service. slug is the collection's name in admin and API
// routes. uploader may be nil, in which case image uploads are rejected.
func New[T any, P Record[T]](
	name model.CollectionName,
	slug string,
	store repository.Store[T],
	uploader *adapter.Uploader,
	opts ...Option[T, P],
) (*Service[T, P], error) {
	sc, err := newSchemas[T](name)
	if err != nil {
		return nil, err
	}

	s := &Service[T, P]{
		name:     name,
		slug:     slug,
		store:    store,
		uploader: uploader,
		schemas:  sc,
		visible:  func(P) bool { return true },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service[T, P]) Name() model.CollectionName { return s.name }
func (s *Service[T, P]) Slug() string               { return s.slug }

// Check validates a create payload without storing it.
func (s *Service[T, P]) Check(payload map[string]any) (*T, error) {
	doc, err := normalizePayload(payload)
	if err != nil {
		return nil, err
	}
	if err := validate(s.schemas.create, doc, s.name); err != nil {
		return nil, err
	}

	v, err := decodeRecord[T](doc)
	if err != nil {
		return nil, err
	}
	P(v).Normalize()
	if err := P(v).Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid record", goerr.V("collection", s.name))
	}
	return v, nil
}

func (s *Service[T, P]) upload(ctx context.Context, image *adapter.File) (string, error) {
	if s.uploader == nil {
		return "", goerr.Wrap(model.ErrValidation, "image uploads are not configured", goerr.V("collection", s.name))
	}
	path := adapter.GenerateFilePath(string(s.name), image.Name)
	result, err := s.uploader.UploadFile(ctx, image, path)
	if err != nil {
		return "", err
	}
	return result.URL, nil
}

func (s *Service[T, P]) removeImage(ctx context.Context, url string) {
	if url == "" || s.uploader == nil {
		return
	}
	path, ok := s.uploader.PathOf(url)
	if !ok {
		return
	}
	if err := s.uploader.DeleteFile(ctx, path); err != nil && !errors.Is(err, model.ErrNotFound) {
		logging.From(ctx).Warn("failed to delete image", "collection", s.name, "path", path, logging.ErrAttr(err))
	}
}

// Create validates payload, uploads image if given, writes its URL into the
// record, and then persists the record.
func (s *Service[T, P]) Create(ctx context.Context, payload map[string]any, image *adapter.File) (*T, error) {
	v, err := s.Check(payload)
	if err != nil {
		return nil, err
	}

	if image != nil {
		url, err := s.upload(ctx, image)
		if err != nil {
			return nil, err
		}
		P(v).SetImageURL(url)
	}

	if _, err := s.store.Create(ctx, v); err != nil {
		if image != nil {
			s.removeImage(ctx, P(v).ImageURL())
		}
		return nil, goerr.Wrap(err, "failed to create record", goerr.V("collection", s.name))
	}

	logging.From(ctx).Info("record created", "collection", s.name, "id", P(v).GetMeta().ID, "label", P(v).Label())
	return v, nil
}

// Get returns the record or an error wrapping model.ErrNotFound.
func (s *Service[T, P]) Get(ctx context.Context, id model.RecordID) (*T, error) {
	v, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get record", goerr.V("collection", s.name), goerr.V("id", id))
	}
	if v == nil {
		return nil, goerr.Wrap(model.ErrNotFound, "record not found", goerr.V("collection", s.name), goerr.V("id", id))
	}
	return v, nil
}

// List returns records newest first, keeping those matching search
// case-insensitively when search is not empty.
func (s *Service[T, P]) List(ctx context.Context, search string) ([]*T, error) {
	records, err := s.store.Query(ctx, repository.OrderBy(model.FieldCreatedAt, repository.Desc))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list records", goerr.V("collection", s.name))
	}
	if search == "" {
		return records, nil
	}

	matched := make([]*T, 0, len(records))
	for _, v := range records {
		if P(v).Matches(search) {
			matched = append(matched, v)
		}
	}
	return matched, nil
}

// ListPublic is List restricted to records public readers may see.
func (s *Service[T, P]) ListPublic(ctx context.Context) ([]*T, error) {
	records, err := s.List(ctx, "")
	if err != nil {
		return nil, err
	}
	visible := make([]*T, 0, len(records))
	for _, v := range records {
		if s.visible(P(v)) {
			visible = append(visible, v)
		}
	}
	return visible, nil
}

// GetPublic is Get for public readers; hidden records are not found.
func (s *Service[T, P]) GetPublic(ctx context.Context, id model.RecordID) (*T, error) {
	v, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.visible(P(v)) {
		return nil, goerr.Wrap(model.ErrNotFound, "record not found", goerr.V("collection", s.name), goerr.V("id", id))
	}
	return v, nil
}

// Update applies a partial patch. Only fields present in patch are written;
// a new image replaces the stored one, whose blob is then removed.
func (s *Service[T, P]) Update(ctx context.Context, id model.RecordID, patch map[string]any, image *adapter.File) (*T, error) {
	doc, err := normalizePayload(patch)
	if err != nil {
		return nil, err
	}
	if err := validate(s.schemas.patch, doc, s.name); err != nil {
		return nil, err
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	merged, err := encodeRecord(current)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(doc)+1)
	for k, v := range doc {
		merged[k] = v
		keys = append(keys, k)
	}

	next, err := decodeRecord[T](merged)
	if err != nil {
		return nil, err
	}
	P(next).Normalize()
	if err := P(next).Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid record", goerr.V("collection", s.name), goerr.V("id", id))
	}

	oldImage := P(current).ImageURL()
	if image != nil {
		url, err := s.upload(ctx, image)
		if err != nil {
			return nil, err
		}
		P(next).SetImageURL(url)
		keys = append(keys, P(next).ImageField())
	}

	if err := s.store.Update(ctx, id, typedFields(next, keys)); err != nil {
		if image != nil {
			s.removeImage(ctx, P(next).ImageURL())
		}
		return nil, goerr.Wrap(err, "failed to update record", goerr.V("collection", s.name), goerr.V("id", id))
	}

	if newImage := P(next).ImageURL(); oldImage != "" && oldImage != newImage {
		s.removeImage(ctx, oldImage)
	}

	logging.From(ctx).Info("record updated", "collection", s.name, "id", id, "fields", keys)
	return s.Get(ctx, id)
}

// Delete removes the record and, best effort, its uploaded image. Deleting
// a missing record is not an error.
func (s *Service[T, P]) Delete(ctx context.Context, id model.RecordID) error {
	current, err := s.store.Get(ctx, id)
	if err != nil {
		return goerr.Wrap(err, "failed to get record", goerr.V("collection", s.name), goerr.V("id", id))
	}
	if current == nil {
		return nil
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return goerr.Wrap(err, "failed to delete record", goerr.V("collection", s.name), goerr.V("id", id))
	}
	s.removeImage(ctx, P(current).ImageURL())

	logging.From(ctx).Info("record deleted", "collection", s.name, "id", id)
	return nil
}

// Count returns the number of records in the collection.
func (s *Service[T, P]) Count(ctx context.Context) (int, error) {
	records, err := s.store.GetAll(ctx)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to count records", goerr.V("collection", s.name))
	}
	return len(records), nil
}

// Recent returns up to n records, most recently updated first.
func (s *Service[T, P]) Recent(ctx context.Context, n int) ([]*T, error) {
	records, err := s.store.Query(ctx,
		repository.OrderBy(model.FieldUpdatedAt, repository.Desc),
		repository.Limit(n),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list recent records", goerr.V("collection", s.name))
	}
	return records, nil
}
