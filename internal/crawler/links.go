package crawler

import (
	"net/url"
	"regexp"
	"strings"
)

// skippedNamespaces are wiki namespaces that never hold article content.
var skippedNamespaces = []string{
	"Special:", "File:", "Image:", "Category:", "Template:", "Talk:", "User:", "MediaWiki:",
}

// canonicalPath maps a wiki href to "/index.php?title=<Title>", the form used
// as the visited-set key. ok is false for anything that is not a same-host
// content page.
func canonicalPath(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.Contains(href, "#") {
		return "", false
	}

	u, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	if u.Host != "" && !strings.EqualFold(u.Host, base.Host) {
		return "", false
	}
	if u.Scheme != "" && u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}

	var title string
	switch {
	case strings.HasPrefix(u.Path, "/wiki/"):
		title = strings.TrimPrefix(u.Path, "/wiki/")
	case u.Path == "/index.php":
		q := u.Query()
		if q.Has("action") || q.Has("redlink") || q.Has("oldid") || q.Has("diff") {
			return "", false
		}
		title = q.Get("title")
	default:
		return "", false
	}

	title = strings.ReplaceAll(strings.TrimSpace(title), " ", "_")
	if title == "" {
		return "", false
	}
	for _, ns := range skippedNamespaces {
		if strings.HasPrefix(title, ns) {
			return "", false
		}
	}

	return "/index.php?" + url.Values{"title": {title}}.Encode(), true
}

// DiscoverLinks resolves, filters and dedups the hrefs found on a page,
// keeping document order. Results are absolute URLs on the base host.
func DiscoverLinks(base *url.URL, hrefs []string, exclusions []*regexp.Regexp) []string {
	var links []string
	seen := make(map[string]bool)

	for _, href := range hrefs {
		path, ok := canonicalPath(base, href)
		if !ok {
			continue
		}
		link := resolve(base, path)

		excluded := false
		for _, ex := range exclusions {
			if ex.MatchString(link) {
				excluded = true
				break
			}
		}
		if excluded || seen[link] {
			continue
		}
		seen[link] = true
		links = append(links, link)
	}
	return links
}

// titleFromURL derives a display title from the title= parameter or the last
// path segment.
func titleFromURL(u *url.URL) string {
	title := u.Query().Get("title")
	if title == "" {
		segs := strings.Split(strings.Trim(u.Path, "/"), "/")
		title = segs[len(segs)-1]
	}
	if title == "" {
		return "Unknown Page"
	}
	return strings.ReplaceAll(title, "_", " ")
}

func resolve(base *url.URL, path string) string {
	ref, err := url.Parse(path)
	if err != nil {
		return base.String() + path
	}
	return base.ResolveReference(ref).String()
}
