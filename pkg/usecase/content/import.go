package content

import (
	"context"
	"io"
	"sort"

	"github.com/m-mizutani/goerr/v2"
	"github.com/openngo/sitecms/pkg/model"
	"github.com/openngo/sitecms/pkg/utils/logging"
	"gopkg.in/yaml.v3"
)

// ImportResult counts validated and created records
type ImportResult struct {
	Validated int
	Created   map[model.CollectionName]int
}

// Import loads seed content from YAML keyed by collection slug or name:
//
//	pages:
//	  - title: About
//	    path: /about
//	events:
//	  - title: Open day
//	    date: "2024-09-01"
//
// Every record is validated before anything is written. With dryRun nothing
// is written at all.
func (r *Registry) Import(ctx context.Context, src io.Reader, dryRun bool) (*ImportResult, error) {
	var seed map[string][]map[string]any
	if err := yaml.NewDecoder(src).Decode(&seed); err != nil {
		if err == io.EOF {
			return &ImportResult{Created: map[model.CollectionName]int{}}, nil
		}
		return nil, goerr.Wrap(model.ErrValidation, "failed to parse seed file", goerr.V("error", err.Error()))
	}

	keys := make([]string, 0, len(seed))
	for k := range seed {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	type item struct {
		c       Collection
		payload map[string]any
	}
	var items []item
	for _, k := range keys {
		c, err := r.Lookup(k)
		if err != nil {
			return nil, goerr.Wrap(model.ErrValidation, "unknown collection in seed file", goerr.V("collection", k))
		}
		for i, payload := range seed[k] {
			if err := c.Check(payload); err != nil {
				return nil, goerr.Wrap(err, "invalid seed record", goerr.V("collection", k), goerr.V("index", i))
			}
			items = append(items, item{c: c, payload: payload})
		}
	}

	result := &ImportResult{Validated: len(items), Created: map[model.CollectionName]int{}}
	if dryRun {
		return result, nil
	}

	for _, it := range items {
		if _, err := it.c.Create(ctx, it.payload, nil); err != nil {
			return result, goerr.Wrap(err, "failed to import record", goerr.V("collection", it.c.Name()))
		}
		result.Created[it.c.Name()]++
	}

	logging.From(ctx).Info("seed imported", "records", len(items))
	return result, nil
}
