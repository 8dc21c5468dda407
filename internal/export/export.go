package export

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/yuin/goldmark"

	"innervoice/internal/database"
)

var md = goldmark.New()

const pageTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Journal digest</title>
<style>
body { font-family: Georgia, serif; max-width: 42rem; margin: 2rem auto; padding: 0 1rem; color: #222; }
article { border-bottom: 1px solid #ddd; padding: 1.5rem 0; }
h2 { margin-bottom: 0.2rem; }
.meta { color: #777; font-size: 0.85rem; }
.tags { color: #558; font-size: 0.85rem; }
</style>
</head>
<body>
<h1>Journal digest</h1>
{{range .Entries}}
<article>
<h2>{{.Title}}</h2>
<p class="meta">{{.Date}}{{if .Feelings}} &mdash; {{.Feelings}}{{end}}</p>
{{if .Tags}}<p class="tags">{{.Tags}}</p>{{end}}
{{.Body}}
</article>
{{end}}
</body>
</html>
`

var page = template.Must(template.New("digest").Parse(pageTemplate))

type renderedEntry struct {
	Title    string
	Date     string
	Tags     string
	Feelings string
	Body     template.HTML
}

// Digest renders all entries to a standalone HTML page, most recent first.
// Each entry shows its headline (or a transcript excerpt), tags, feelings,
// and summary or transcript rendered from markdown.
func Digest(db *database.DB) ([]byte, error) {
	entries, err := db.ListEntries()
	if err != nil {
		return nil, fmt.Errorf("loading entries: %w", err)
	}

	data := struct{ Entries []renderedEntry }{}
	for _, e := range entries {
		feelings, err := db.GetFeelingsForEntry(e.ID)
		if err != nil {
			return nil, fmt.Errorf("loading feelings: %w", err)
		}
		data.Entries = append(data.Entries, renderEntry(&e, feelings))
	}

	var buf bytes.Buffer
	if err := page.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("rendering digest: %w", err)
	}
	return buf.Bytes(), nil
}

func renderEntry(e *database.Entry, feelings []database.Feeling) renderedEntry {
	title := excerpt(e.Transcript, 60)
	if e.Headline != nil && *e.Headline != "" {
		title = *e.Headline
	}

	body := e.Transcript
	if e.Summary != nil && *e.Summary != "" {
		body = *e.Summary
	}

	var names []string
	for _, f := range feelings {
		names = append(names, f.Name)
	}

	return renderedEntry{
		Title:    title,
		Date:     e.CreatedAt.Format("Jan 02, 2006"),
		Tags:     strings.Join(e.Tags, ", "),
		Feelings: strings.Join(names, ", "),
		Body:     renderMarkdown(body),
	}
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String())
}

func excerpt(text string, max int) string {
	text = strings.TrimSpace(text)
	if len(text) <= max {
		return text
	}
	return text[:max] + "..."
}
