package content

import (
	"context"
	"sort"
	"time"

	"github.com/openngo/sitecms/pkg/model"
)

const DefaultRecentLimit = 5

type CollectionCount struct {
	Collection model.CollectionName `json:"collection"`
	Slug       string               `json:"slug"`
	Count      int                  `json:"count"`
}

type RecentItem struct {
	Collection model.CollectionName `json:"collection"`
	ID         model.RecordID       `json:"id"`
	Label      string               `json:"label"`
	UpdatedAt  time.Time            `json:"updatedAt"`
}

// Dashboard is the admin landing summary
type Dashboard struct {
	Counts []CollectionCount `json:"counts"`
	Recent []RecentItem      `json:"recent"`
}

// Dashboard counts every collection and lists the records updated most
// recently across all of them.
func (r *Registry) Dashboard(ctx context.Context, limit int) (*Dashboard, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	d := &Dashboard{
		Counts: make([]CollectionCount, 0, len(r.collections)),
		Recent: []RecentItem{},
	}
	for _, c := range r.collections {
		n, err := c.Count(ctx)
		if err != nil {
			return nil, err
		}
		d.Counts = append(d.Counts, CollectionCount{Collection: c.Name(), Slug: c.Slug(), Count: n})

		recent, err := c.Recent(ctx, limit)
		if err != nil {
			return nil, err
		}
		for _, doc := range recent {
			meta := doc.GetMeta()
			d.Recent = append(d.Recent, RecentItem{
				Collection: c.Name(),
				ID:         meta.ID,
				Label:      c.Label(doc),
				UpdatedAt:  meta.UpdatedAt,
			})
		}
	}

	sort.SliceStable(d.Recent, func(i, j int) bool {
		return d.Recent[i].UpdatedAt.After(d.Recent[j].UpdatedAt)
	})
	if len(d.Recent) > limit {
		d.Recent = d.Recent[:limit]
	}
	return d, nil
}
