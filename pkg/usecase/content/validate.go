package content

import (
	"encoding/json"
	"reflect"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
	"github.com/openngo/sitecms/pkg/model"
)

var metaFields = []string{"id", model.FieldCreatedAt, model.FieldUpdatedAt}

// schemas holds the boundary validators of one collection type. The create
// schema is inferred from the struct: fields without omitempty are required
// and must not be empty strings. The patch schema is the same without
// required fields.
type schemas struct {
	create *jsonschema.Resolved
	patch  *jsonschema.Resolved
}

func newSchemas[T any](name model.CollectionName) (*schemas, error) {
	base, err := jsonschema.For[T](nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to infer schema", goerr.V("collection", name))
	}
	for _, req := range base.Required {
		if prop := base.Properties[req]; prop != nil && prop.Type == "string" {
			prop.MinLength = jsonschema.Ptr(1)
		}
	}
	customize(name, base)

	create, err := base.Resolve(nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to resolve schema", goerr.V("collection", name))
	}

	patchSchema := base.CloneSchemas()
	patchSchema.Required = nil
	patch, err := patchSchema.Resolve(nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to resolve patch schema", goerr.V("collection", name))
	}

	return &schemas{create: create, patch: patch}, nil
}

// customize adds constraints the struct cannot express.
func customize(name model.CollectionName, s *jsonschema.Schema) {
	switch name {
	case model.CollectionPages:
		if p := s.Properties["status"]; p != nil {
			p.Enum = []any{string(model.PageStatusDraft), string(model.PageStatusPublished)}
		}
	case model.CollectionEvents:
		if p := s.Properties["date"]; p != nil {
			p.Pattern = `^[0-9]{4}-[0-9]{2}-[0-9]{2}$`
		}
	}
}

// normalizePayload converts decoded JSON or YAML into plain JSON values and
// drops server-managed fields.
func normalizePayload(payload map[string]any) (map[string]any, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, goerr.Wrap(model.ErrValidation, "payload is not JSON encodable", goerr.V("error", err.Error()))
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, goerr.Wrap(model.ErrValidation, "payload is not an object", goerr.V("error", err.Error()))
	}
	for _, k := range metaFields {
		delete(doc, k)
	}
	return doc, nil
}

func validate(rs *jsonschema.Resolved, doc map[string]any, name model.CollectionName) error {
	if err := rs.Validate(doc); err != nil {
		return goerr.Wrap(model.ErrValidation, err.Error(), goerr.V("collection", name))
	}
	return nil
}

func decodeRecord[T any](doc map[string]any) (*T, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, goerr.Wrap(model.ErrValidation, "failed to encode payload", goerr.V("error", err.Error()))
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, goerr.Wrap(model.ErrValidation, "payload does not match record shape", goerr.V("error", err.Error()))
	}
	return &v, nil
}

func encodeRecord(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to encode record")
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, goerr.Wrap(err, "failed to encode record")
	}
	return doc, nil
}

// typedFields picks the Go-typed values of the given JSON field names from
// v so that every backend stores them with the struct's types.
func typedFields(v any, keys []string) model.Fields {
	rv := reflect.Indirect(reflect.ValueOf(v))
	byName := map[string]reflect.Value{}
	for _, f := range reflect.VisibleFields(rv.Type()) {
		if f.Anonymous || !f.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = f.Name
		}
		byName[name] = rv.FieldByIndex(f.Index)
	}

	fields := model.Fields{}
	for _, k := range keys {
		if fv, ok := byName[k]; ok {
			fields[k] = fv.Interface()
		}
	}
	return fields
}
