package render

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/MrSnakeDoc/mailmarks/internal/domain"
)

// ViewsTitle is the heading of the markdown listing.
const ViewsTitle = "Bookmarks"

var (
	markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

	// viewsPolicy keeps the markup goldmark produces for a listing and drops
	// anything else a title might smuggle in.
	viewsPolicy = func() *bluemonday.Policy {
		p := bluemonday.UGCPolicy()
		p.RequireParseableURLs(true)
		p.AllowURLSchemes("http", "https", "mailto")
		p.AllowRelativeURLs(true)
		return p
	}()

	mdEscaper = strings.NewReplacer(
		`\`, `\\`,
		`[`, `\[`,
		`]`, `\]`,
		`*`, `\*`,
		`_`, `\_`,
		"`", "\\`",
		`<`, `&lt;`,
		`>`, `&gt;`,
	)
)

var viewsTemplate = template.Must(template.New("views").Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8">
  <title>{{ .Title }}</title>
</head>
<body>
{{ .Body }}
</body>
</html>
`))

// RenderViewsMarkdown lists entries as a markdown bullet list, in the given
// order: datetime, title linked to the URL, and a link to the bookmark file.
func RenderViewsMarkdown(entries []domain.Entry) string {
	var b strings.Builder
	b.WriteString("# " + ViewsTitle + "\n\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "- **%s** — [%s](%s) · [details](%s)\n",
			e.DatetimeDisplay,
			mdEscaper.Replace(e.Title),
			linkDestination(e.URL),
			linkDestination(e.DetailsPath))
	}
	return b.String()
}

// RenderViewsHTML converts the markdown listing to a sanitized HTML page.
func RenderViewsHTML(md string) (string, error) {
	var converted bytes.Buffer
	if err := markdown.Convert([]byte(md), &converted); err != nil {
		return "", fmt.Errorf("failed to convert views markdown: %w", err)
	}

	body := viewsPolicy.SanitizeBytes(converted.Bytes())

	var page bytes.Buffer
	err := viewsTemplate.Execute(&page, struct {
		Title string
		Body  template.HTML
	}{
		Title: ViewsTitle,
		Body:  template.HTML(body), //nolint:gosec // sanitized by bluemonday above
	})
	if err != nil {
		return "", fmt.Errorf("failed to render views page: %w", err)
	}
	return page.String(), nil
}

// linkDestination wraps destinations containing spaces or parentheses in
// angle brackets, as CommonMark requires.
func linkDestination(dest string) string {
	if strings.ContainsAny(dest, " ()<>") {
		return "<" + strings.NewReplacer("<", "%3C", ">", "%3E").Replace(dest) + ">"
	}
	return dest
}
