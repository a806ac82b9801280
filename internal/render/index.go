// Package render turns loaded entries into static pages.
package render

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/MrSnakeDoc/mailmarks/internal/domain"
)

// indexTemplate is the static index page. html/template escapes titles and
// URLs, so markup in a subject cannot alter the page structure.
var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{ .Title }}</title>

<style>
body {
    margin: 0;
    padding: 0;
    background: #ffffff;
    color: #222;
    font-family: Georgia, "Times New Roman", serif;
    line-height: 1.6;
}

.container {
    max-width: 680px;
    margin: 60px auto;
    padding: 0 20px;
}

header {
    font-size: 14px;
    text-transform: uppercase;
    letter-spacing: 1px;
    color: #888;
    margin-bottom: 40px;
}

.entry {
    margin-bottom: 48px;
}

.title {
    font-size: 22px;
    font-weight: normal;
    margin: 0 0 6px 0;
}

.title a {
    text-decoration: none;
    color: #000;
}

.title a:hover {
    text-decoration: underline;
}

.meta {
    font-size: 13px;
    color: #888;
}

.meta a {
    color: #888;
    text-decoration: none;
}

.meta a:hover {
    text-decoration: underline;
}
</style>

</head>
<body>
<div class="container">

<header>{{ .Title }}</header>
{{ range .Entries }}
<article class="entry">
    <h2 class="title">
        <a href="{{ .URL }}" target="_blank">{{ .Title }}</a>
    </h2>
    <div class="meta">
        {{ .Domain }} · {{ .DatetimeDisplay }} · {{ .Source }} ·
        <a href="{{ .DetailsPath }}">details</a>
    </div>
</article>
{{ end }}
</div>
</body>
</html>
`))

// DefaultTitle is the page heading of the index.
const DefaultTitle = "Inbox"

type indexData struct {
	Title   string
	Entries []domain.Entry
}

// RenderIndex renders entries, in the given order, into a complete page.
// The same entries always produce the same output.
func RenderIndex(entries []domain.Entry) (string, error) {
	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, indexData{Title: DefaultTitle, Entries: entries}); err != nil {
		return "", fmt.Errorf("failed to render index: %w", err)
	}
	return buf.String(), nil
}
