package content

import (
	"html"
	"regexp"
	"strings"
)

var (
	boldPattern   = regexp.MustCompile(`\*\*(.+?)\*\*`)
	italicPattern = regexp.MustCompile(`\*(.+?)\*`)
)

// RenderPreview turns page content into the HTML shown in the editor
// preview. Input is escaped first; then "#", "##" and "###" headings,
// **bold** and *italic* are converted and remaining newlines become <br>.
func RenderPreview(content string) string {
	escaped := html.EscapeString(strings.ReplaceAll(content, "\r\n", "\n"))

	lines := strings.Split(escaped, "\n")
	var b strings.Builder
	for i, line := range lines {
		heading := false
		for level, prefix := range []string{"### ", "## ", "# "} {
			if strings.HasPrefix(line, prefix) {
				tag := []string{"h3", "h2", "h1"}[level]
				line = "<" + tag + ">" + strings.TrimPrefix(line, prefix) + "</" + tag + ">"
				heading = true
				break
			}
		}

		line = boldPattern.ReplaceAllString(line, "<strong>$1</strong>")
		line = italicPattern.ReplaceAllString(line, "<em>$1</em>")
		b.WriteString(line)

		if i < len(lines)-1 && !heading {
			b.WriteString("<br>")
		}
	}
	return b.String()
}
