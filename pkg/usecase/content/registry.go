package content

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/openngo/sitecms/pkg/adapter"
	"github.com/openngo/sitecms/pkg/model"
	"github.com/openngo/sitecms/pkg/repository"
)

// Collection is a Service with its record type erased, for callers that
// pick the collection at runtime from a route or a file.
type Collection interface {
	Name() model.CollectionName
	Slug() string
	Check(payload map[string]any) error
	Create(ctx context.Context, payload map[string]any, image *adapter.File) (model.Document, error)
	Get(ctx context.Context, id model.RecordID) (model.Document, error)
	List(ctx context.Context, search string) ([]model.Document, error)
	ListPublic(ctx context.Context) ([]model.Document, error)
	GetPublic(ctx context.Context, id model.RecordID) (model.Document, error)
	Update(ctx context.Context, id model.RecordID, patch map[string]any, image *adapter.File) (model.Document, error)
	Delete(ctx context.Context, id model.RecordID) error
	Count(ctx context.Context) (int, error)
	Recent(ctx context.Context, n int) ([]model.Document, error)
	Label(doc model.Document) string
}

type erased[T any, P Record[T]] struct {
	svc *Service[T, P]
}

// Erase wraps a typed Service as a Collection.
func Erase[T any, P Record[T]](svc *Service[T, P]) Collection {
	return &erased[T, P]{svc: svc}
}

func docs[T any, P Record[T]](records []*T) []model.Document {
	out := make([]model.Document, len(records))
	for i, v := range records {
		out[i] = P(v)
	}
	return out
}

func one[T any, P Record[T]](v *T, err error) (model.Document, error) {
	if err != nil {
		return nil, err
	}
	return P(v), nil
}

func many[T any, P Record[T]](records []*T, err error) ([]model.Document, error) {
	if err != nil {
		return nil, err
	}
	return docs[T, P](records), nil
}

func (x *erased[T, P]) Name() model.CollectionName { return x.svc.Name() }
func (x *erased[T, P]) Slug() string               { return x.svc.Slug() }

func (x *erased[T, P]) Check(payload map[string]any) error {
	_, err := x.svc.Check(payload)
	return err
}

func (x *erased[T, P]) Create(ctx context.Context, payload map[string]any, image *adapter.File) (model.Document, error) {
	return one[T, P](x.svc.Create(ctx, payload, image))
}

func (x *erased[T, P]) Get(ctx context.Context, id model.RecordID) (model.Document, error) {
	return one[T, P](x.svc.Get(ctx, id))
}

func (x *erased[T, P]) List(ctx context.Context, search string) ([]model.Document, error) {
	return many[T, P](x.svc.List(ctx, search))
}

func (x *erased[T, P]) ListPublic(ctx context.Context) ([]model.Document, error) {
	return many[T, P](x.svc.ListPublic(ctx))
}

func (x *erased[T, P]) GetPublic(ctx context.Context, id model.RecordID) (model.Document, error) {
	return one[T, P](x.svc.GetPublic(ctx, id))
}

func (x *erased[T, P]) Update(ctx context.Context, id model.RecordID, patch map[string]any, image *adapter.File) (model.Document, error) {
	return one[T, P](x.svc.Update(ctx, id, patch, image))
}

func (x *erased[T, P]) Delete(ctx context.Context, id model.RecordID) error {
	return x.svc.Delete(ctx, id)
}

func (x *erased[T, P]) Count(ctx context.Context) (int, error) {
	return x.svc.Count(ctx)
}

func (x *erased[T, P]) Recent(ctx context.Context, n int) ([]model.Document, error) {
	return many[T, P](x.svc.Recent(ctx, n))
}

func (x *erased[T, P]) Label(doc model.Document) string {
	if v, ok := doc.(P); ok {
		return v.Label()
	}
	return ""
}

// Registry holds the content collections in admin menu order.
type Registry struct {
	collections []Collection
}

// NewRegistry builds the pages, events, team and programs collections on db.
// Public readers only see published pages.
func NewRegistry(db *repository.Database, uploader *adapter.Uploader) (*Registry, error) {
	pages, err := New(model.CollectionPages, "pages", repository.Pages(db), uploader,
		WithVisibility(func(p *model.Page) bool { return p.Status == model.PageStatusPublished }))
	if err != nil {
		return nil, err
	}
	events, err := New[model.Event](model.CollectionEvents, "events", repository.Events(db), uploader)
	if err != nil {
		return nil, err
	}
	team, err := New[model.TeamMember](model.CollectionTeamMembers, "team", repository.TeamMembers(db), uploader)
	if err != nil {
		return nil, err
	}
	programs, err := New[model.Program](model.CollectionPrograms, "programs", repository.Programs(db), uploader)
	if err != nil {
		return nil, err
	}

	return &Registry{
		collections: []Collection{Erase(pages), Erase(events), Erase(team), Erase(programs)},
	}, nil
}

func (r *Registry) All() []Collection {
	return r.collections
}

// Lookup finds a collection by route slug or stored collection name.
func (r *Registry) Lookup(name string) (Collection, error) {
	for _, c := range r.collections {
		if c.Slug() == name || string(c.Name()) == name {
			return c, nil
		}
	}
	return nil, goerr.Wrap(model.ErrNotFound, "unknown collection", goerr.V("collection", name))
}
