package domain

import "regexp"

// linkPattern matches an http(s) URL up to the first whitespace, angle or
// square bracket, or quote character.
var linkPattern = regexp.MustCompile(`(?i)https?://[^\s<>\[\]"']+`)

// ExtractLinks returns every URL found in text, in order of appearance.
// Repeated URLs are returned once per occurrence.
func ExtractLinks(text string) []string {
	if text == "" {
		return []string{}
	}
	links := linkPattern.FindAllString(text, -1)
	if links == nil {
		return []string{}
	}
	return links
}
