package content_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/openngo/sitecms/pkg/usecase/content"
)

func TestRenderPreview(t *testing.T) {
	testCases := []struct {
		name string
		in   string
		want string
	}{
		{"heading", "# Title", "<h1>Title</h1>"},
		{"subheadings", "## Sub\n### Minor", "<h2>Sub</h2><h3>Minor</h3>"},
		{"emphasis", "a **bold** and *soft* word", "a <strong>bold</strong> and <em>soft</em> word"},
		{"line breaks", "one\ntwo", "one<br>two"},
		{"escapes html", "<script>alert(1)</script>", "&lt;script&gt;alert(1)&lt;/script&gt;"},
		{"crlf", "a\r\nb", "a<br>b"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gt.Equal(t, content.RenderPreview(tc.in), tc.want)
		})
	}
}
