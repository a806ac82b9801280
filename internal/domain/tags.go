package domain

import (
	"net/url"
	"strings"
)

// RootDomain returns the label before the first dot of the URL host, after
// lower-casing it and stripping one leading "www.".
//
//	https://www.youtube.com/watch?v=... -> youtube
//	https://substack.com/...            -> substack
//
// The boolean is false when no tag can be derived (empty URL, missing or
// malformed host).
func RootDomain(rawURL string) (string, bool) {
	host := strings.ToLower(urlHost(rawURL))
	if host == "" {
		return "", false
	}

	host = strings.TrimPrefix(host, "www.")
	root, _, _ := strings.Cut(host, ".")
	if root == "" {
		return "", false
	}
	return root, true
}

// DeriveTags merges the root-domain tag of rawURL into existing.
// Existing tags keep their order; the derived tag is appended only once.
func DeriveTags(rawURL string, existing []string) []string {
	tags := make([]string, 0, len(existing)+1)
	tags = append(tags, existing...)

	root, ok := RootDomain(rawURL)
	if !ok {
		return tags
	}
	for _, t := range tags {
		if t == root {
			return tags
		}
	}
	return append(tags, root)
}

// urlHost returns the host[:port] of rawURL without userinfo. Stray "%"
// signs in the path or query make url.Parse fail, so on error the
// authority is cut out of the raw text and parsed on its own.
func urlHost(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	if u, err := url.Parse(rawURL); err == nil {
		return u.Host
	}

	scheme, rest, ok := strings.Cut(rawURL, "://")
	if !ok {
		return ""
	}
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		rest = rest[:i]
	}
	u, err := url.Parse(scheme + "://" + rest)
	if err != nil {
		return ""
	}
	return u.Host
}
