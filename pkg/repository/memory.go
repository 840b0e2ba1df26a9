package repository

import (
	"context"
	"encoding/json"
	"reflect"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/openngo/sitecms/pkg/model"
)

// NewMemory returns a database kept in process memory. Documents are stored
// as their JSON field maps so queries see the same field names as the
// hosted backends.
func NewMemory(opts ...Option) *Database {
	db := newDatabase(0, opts...)
	db.mem = &memoryDB{collections: map[model.CollectionName]*memCollection{}}
	return db
}

type memoryDB struct {
	mu          sync.RWMutex
	collections map[model.CollectionName]*memCollection
}

type memCollection struct {
	order []model.RecordID
	docs  map[model.RecordID]map[string]any
}

func (m *memoryDB) collection(name model.CollectionName) *memCollection {
	c, ok := m.collections[name]
	if !ok {
		c = &memCollection{docs: map[model.RecordID]map[string]any{}}
		m.collections[name] = c
	}
	return c
}

type memoryStore[T any, P record[T]] struct {
	db   *Database
	name model.CollectionName
}

func toFieldMap(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to encode document")
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, goerr.Wrap(err, "failed to encode document")
	}
	if err := fillZeroFields(doc, reflect.TypeOf(v)); err != nil {
		return nil, err
	}
	delete(doc, "id")
	return doc, nil
}

var timeType = reflect.TypeFor[time.Time]()

// fillZeroFields adds the fields omitempty dropped, so zero values are
// stored and queried as they are on Firestore and MongoDB.
func fillZeroFields(doc map[string]any, t reflect.Type) error {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct || t == timeType {
		return nil
	}

	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if f.Anonymous && name == "" {
			if err := fillZeroFields(doc, f.Type); err != nil {
				return err
			}
			continue
		}
		if name == "-" {
			continue
		}
		if name == "" {
			name = f.Name
		}

		if _, ok := doc[name]; !ok {
			zero, err := normalize(reflect.Zero(f.Type).Interface())
			if err != nil {
				return goerr.Wrap(err, "failed to encode zero value", goerr.V("field", name))
			}
			doc[name] = zero
		}
		if nested, ok := doc[name].(map[string]any); ok {
			if err := fillZeroFields(nested, f.Type); err != nil {
				return err
			}
		}
	}
	return nil
}

// normalize converts a Go value into the shape json.Unmarshal produces so
// that it compares with stored fields.
func normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to encode value")
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, goerr.Wrap(err, "failed to encode value")
	}
	return out, nil
}

func (s *memoryStore[T, P]) decode(id model.RecordID, doc map[string]any) (*T, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to decode document", goerr.V("collection", s.name), goerr.V("id", id))
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, goerr.Wrap(err, "failed to decode document", goerr.V("collection", s.name), goerr.V("id", id))
	}
	P(&v).GetMeta().ID = id
	return &v, nil
}

func (s *memoryStore[T, P]) Create(ctx context.Context, data *T) (model.RecordID, error) {
	if err := s.db.ready(); err != nil {
		return "", err
	}
	now := s.db.now()
	meta := P(data).GetMeta()
	meta.CreatedAt = now
	meta.UpdatedAt = now

	doc, err := toFieldMap(data)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create document", goerr.V("collection", s.name))
	}

	id := model.RecordID(uuid.NewString())

	s.db.mem.mu.Lock()
	c := s.db.mem.collection(s.name)
	c.order = append(c.order, id)
	c.docs[id] = doc
	s.db.mem.mu.Unlock()

	meta.ID = id
	return id, nil
}

func (s *memoryStore[T, P]) Get(ctx context.Context, id model.RecordID) (*T, error) {
	if err := s.db.ready(); err != nil {
		return nil, err
	}

	s.db.mem.mu.RLock()
	doc, ok := s.db.mem.collection(s.name).docs[id]
	s.db.mem.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return s.decode(id, doc)
}

func (s *memoryStore[T, P]) GetAll(ctx context.Context) ([]*T, error) {
	return s.Query(ctx)
}

type memEntry struct {
	id  model.RecordID
	doc map[string]any
}

func (s *memoryStore[T, P]) Query(ctx context.Context, constraints ...Constraint) ([]*T, error) {
	if err := s.db.ready(); err != nil {
		return nil, err
	}

	s.db.mem.mu.RLock()
	c := s.db.mem.collection(s.name)
	entries := make([]memEntry, 0, len(c.order))
	for _, id := range c.order {
		entries = append(entries, memEntry{id: id, doc: c.docs[id]})
	}
	s.db.mem.mu.RUnlock()

	limit := -1
	var orders []Constraint
	for _, con := range constraints {
		switch con.kind {
		case kindWhere:
			value, err := normalize(con.value)
			if err != nil {
				return nil, goerr.Wrap(err, "invalid query value", goerr.V("path", con.path))
			}
			var kept []memEntry
			for _, e := range entries {
				ok, err := matchWhere(lookupPath(e.doc, con.path), con.op, value)
				if err != nil {
					return nil, goerr.Wrap(err, "failed to evaluate query",
						goerr.V("collection", s.name), goerr.V("path", con.path))
				}
				if ok {
					kept = append(kept, e)
				}
			}
			entries = kept

		case kindOrderBy:
			orders = append(orders, con)
			// documents without the ordered field are excluded
			var kept []memEntry
			for _, e := range entries {
				if lookupPath(e.doc, con.path) != nil {
					kept = append(kept, e)
				}
			}
			entries = kept

		case kindLimit:
			limit = con.limit
		}
	}

	if len(orders) > 0 {
		slices.SortStableFunc(entries, func(a, b memEntry) int {
			for _, o := range orders {
				cmp, _ := compareValues(lookupPath(a.doc, o.path), lookupPath(b.doc, o.path))
				if o.dir == Desc {
					cmp = -cmp
				}
				if cmp != 0 {
					return cmp
				}
			}
			return 0
		})
	}
	if limit >= 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	results := make([]*T, 0, len(entries))
	for _, e := range entries {
		v, err := s.decode(e.id, e.doc)
		if err != nil {
			return nil, err
		}
		results = append(results, v)
	}
	return results, nil
}

func (s *memoryStore[T, P]) Update(ctx context.Context, id model.RecordID, fields model.Fields) error {
	if err := s.db.ready(); err != nil {
		return err
	}

	updates := make(map[string]any, len(fields)+1)
	for _, k := range updateFields(fields) {
		v, err := normalize(fields[k])
		if err != nil {
			return goerr.Wrap(err, "invalid update value", goerr.V("collection", s.name), goerr.V("field", k))
		}
		updates[k] = v
	}
	updatedAt, err := normalize(s.db.now())
	if err != nil {
		return err
	}
	updates[model.FieldUpdatedAt] = updatedAt

	s.db.mem.mu.Lock()
	defer s.db.mem.mu.Unlock()

	c := s.db.mem.collection(s.name)
	current, ok := c.docs[id]
	if !ok {
		return goerr.Wrap(model.ErrNotFound, "document to update does not exist",
			goerr.V("collection", s.name), goerr.V("id", id))
	}

	// readers hold stored maps outside the lock, so updates replace them
	doc, err := toFieldMap(current)
	if err != nil {
		return goerr.Wrap(err, "failed to copy document", goerr.V("collection", s.name), goerr.V("id", id))
	}
	for k, v := range updates {
		setPath(doc, k, v)
	}
	c.docs[id] = doc
	return nil
}

func (s *memoryStore[T, P]) Delete(ctx context.Context, id model.RecordID) error {
	if err := s.db.ready(); err != nil {
		return err
	}

	s.db.mem.mu.Lock()
	defer s.db.mem.mu.Unlock()

	c := s.db.mem.collection(s.name)
	if _, ok := c.docs[id]; !ok {
		return nil
	}
	delete(c.docs, id)
	c.order = slices.DeleteFunc(c.order, func(x model.RecordID) bool { return x == id })
	return nil
}

// lookupPath resolves a dotted field path such as "social.email".
func lookupPath(doc map[string]any, path string) any {
	var cur any = doc
	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = m[key]
		if !ok {
			return nil
		}
	}
	return cur
}

func setPath(doc map[string]any, path string, value any) {
	keys := strings.Split(path, ".")
	cur := doc
	for _, key := range keys[:len(keys)-1] {
		next, ok := cur[key].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[key] = next
		}
		cur = next
	}
	cur[keys[len(keys)-1]] = value
}

func matchWhere(field any, op string, value any) (bool, error) {
	switch op {
	case "==":
		return field != nil && equalValues(field, value), nil
	case "!=":
		return field != nil && !equalValues(field, value), nil
	case "<", "<=", ">", ">=":
		if field == nil {
			return false, nil
		}
		cmp, ok := compareValues(field, value)
		if !ok {
			return false, nil
		}
		switch op {
		case "<":
			return cmp < 0, nil
		case "<=":
			return cmp <= 0, nil
		case ">":
			return cmp > 0, nil
		default:
			return cmp >= 0, nil
		}
	case "in", "not-in":
		list, ok := value.([]any)
		if !ok {
			return false, goerr.New("operator requires a list value", goerr.V("op", op))
		}
		found := slices.ContainsFunc(list, func(x any) bool { return equalValues(field, x) })
		if op == "in" {
			return found, nil
		}
		return field != nil && !found, nil
	case "array-contains":
		arr, ok := field.([]any)
		if !ok {
			return false, nil
		}
		return slices.ContainsFunc(arr, func(x any) bool { return equalValues(x, value) }), nil
	case "array-contains-any":
		arr, ok := field.([]any)
		if !ok {
			return false, nil
		}
		list, ok := value.([]any)
		if !ok {
			return false, goerr.New("operator requires a list value", goerr.V("op", op))
		}
		for _, x := range arr {
			if slices.ContainsFunc(list, func(y any) bool { return equalValues(x, y) }) {
				return true, nil
			}
		}
		return false, nil
	}
	return false, goerr.New("unsupported query operator", goerr.V("op", op))
}

func equalValues(a, b any) bool {
	if cmp, ok := compareValues(a, b); ok {
		return cmp == 0
	}
	return reflect.DeepEqual(a, b)
}

// compareValues orders two normalized JSON values of the same kind. Strings
// holding RFC 3339 timestamps compare as instants.
func compareValues(a, b any) (int, bool) {
	switch x := a.(type) {
	case float64:
		y, ok := b.(float64)
		if !ok {
			return 0, false
		}
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	case string:
		y, ok := b.(string)
		if !ok {
			return 0, false
		}
		if tx, err := time.Parse(time.RFC3339Nano, x); err == nil {
			if ty, err := time.Parse(time.RFC3339Nano, y); err == nil {
				return tx.Compare(ty), true
			}
		}
		return strings.Compare(x, y), true
	case bool:
		y, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case x == y:
			return 0, true
		case !x:
			return -1, true
		}
		return 1, true
	case nil:
		if b == nil {
			return 0, true
		}
		return 0, false
	}
	return 0, false
}
