package crawler

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// Page is one fetched and parsed wiki page.
type Page struct {
	URL        string
	Title      string
	Content    string
	Categories []string
	Links      []string
}

var (
	titleSelectors   = []string{"h1#firstHeading", "h1.firstHeading", ".mw-page-title-main"}
	contentSelectors = []string{"#mw-content-text .mw-parser-output", "#bodyContent"}
)

const (
	boilerplateSelector = ".mw-editsection, .navbox, .infobox, .toc, #toc, .thumb, .mbox, script, style, .reference, .noprint"
	blockSelector       = "p, h2, h3, h4, ul, ol, blockquote"
	categorySelector    = "#catlinks a, .category-links a"

	// minBlockChars drops stubs such as empty paragraphs and lone links.
	minBlockChars = 20
)

// ParsePage extracts title, main text, categories and raw hrefs from a page.
// Links are returned unfiltered; DiscoverLinks narrows them.
func ParsePage(raw []byte, pageURL *url.URL) (*Page, []string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, nil, fmt.Errorf("parse html: %w", err)
	}

	// Collect hrefs and categories before boilerplate removal mutates the tree.
	var hrefs []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			hrefs = append(hrefs, href)
		}
	})

	page := &Page{
		URL:        pageURL.String(),
		Title:      extractTitle(doc, pageURL),
		Categories: extractCategories(doc),
	}

	content, found := extractContent(doc)
	if !found {
		content = readableText(raw, pageURL)
	}
	if content == "" {
		content = fmt.Sprintf("No content could be extracted from the page %q at %s.", page.Title, page.URL)
	}
	page.Content = content

	return page, hrefs, nil
}

func extractTitle(doc *goquery.Document, pageURL *url.URL) string {
	for _, sel := range titleSelectors {
		if t := collapse(doc.Find(sel).First().Text()); t != "" {
			return t
		}
	}
	return titleFromURL(pageURL)
}

func extractCategories(doc *goquery.Document) []string {
	var cats []string
	seen := make(map[string]bool)
	doc.Find(categorySelector).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		name := collapse(s.Text())
		if !strings.Contains(href, "Category:") || name == "" || seen[name] {
			return
		}
		seen[name] = true
		cats = append(cats, name)
	})
	return cats
}

// extractContent renders the designated content container as plain text with
// markdown-style headings. found is false when no container exists.
func extractContent(doc *goquery.Document) (string, bool) {
	var container *goquery.Selection
	for _, sel := range contentSelectors {
		if s := doc.Find(sel).First(); s.Length() > 0 {
			container = s
			break
		}
	}
	if container == nil {
		return "", false
	}

	container.Find(boilerplateSelector).Remove()

	var blocks []string
	container.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		if s.ParentsFiltered("ul, ol, blockquote").Length() > 0 {
			return
		}
		if block := renderBlock(s); block != "" {
			blocks = append(blocks, block)
		}
	})
	return strings.Join(blocks, "\n\n"), true
}

func renderBlock(s *goquery.Selection) string {
	switch goquery.NodeName(s) {
	case "h2", "h3", "h4":
		text := collapse(s.Text())
		if text == "" {
			return ""
		}
		level := int(goquery.NodeName(s)[1] - '0')
		return strings.Repeat("#", level) + " " + text
	case "ul", "ol":
		var items []string
		s.ChildrenFiltered("li").Each(func(_ int, li *goquery.Selection) {
			if t := collapse(li.Text()); t != "" {
				items = append(items, "- "+t)
			}
		})
		text := strings.Join(items, "\n")
		if len(text) <= minBlockChars {
			return ""
		}
		return text
	default:
		text := collapse(s.Text())
		if len(text) <= minBlockChars {
			return ""
		}
		return text
	}
}

// readableText is the fallback for pages without a wiki content container.
func readableText(raw []byte, pageURL *url.URL) string {
	article, err := readability.FromReader(bytes.NewReader(raw), pageURL)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(article.TextContent)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
