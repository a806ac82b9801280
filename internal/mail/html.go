package mail

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// HTMLToText flattens an HTML body into text. Anchors are replaced by their
// href so links survive the conversion in document order.
func HTMLToText(body string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML body: %w", err)
	}

	doc.Find("script, style").Remove()

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}
		s.ReplaceWithNodes(textNode(" " + href + " "))
	})

	// Block boundaries become line breaks so words do not run together.
	doc.Find("br, p, div, li, tr").Each(func(_ int, s *goquery.Selection) {
		s.AfterNodes(textNode("\n"))
	})

	return strings.TrimSpace(doc.Text()), nil
}

func textNode(text string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: text}
}
