package content_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/openngo/sitecms/pkg/model"
)

func TestDashboard(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	pages, err := f.registry.Lookup("pages")
	gt.NoError(t, err)
	events, err := f.registry.Lookup("events")
	gt.NoError(t, err)

	for i, title := range []string{"One", "Two", "Three"} {
		_, err := pages.Create(ctx, map[string]any{"title": title, "path": "/" + string(rune('a'+i))}, nil)
		gt.NoError(t, err)
	}
	ev, err := events.Create(ctx, map[string]any{"title": "Fair", "date": "2024-09-01"}, nil)
	gt.NoError(t, err)

	d, err := f.registry.Dashboard(ctx, 2)
	gt.NoError(t, err)

	gt.A(t, d.Counts).Length(4)
	gt.Equal(t, d.Counts[0].Collection, model.CollectionPages)
	gt.Equal(t, d.Counts[0].Count, 3)
	gt.Equal(t, d.Counts[1].Count, 1)
	gt.Equal(t, d.Counts[2].Count, 0)

	gt.A(t, d.Recent).Length(2)
	gt.Equal(t, d.Recent[0].ID, ev.GetMeta().ID)
	gt.Equal(t, d.Recent[0].Label, "Fair")
	gt.Equal(t, d.Recent[1].Label, "Three")
}
