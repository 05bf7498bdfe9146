package crawl

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

// boilerplateSelector lists elements removed before article recovery.
const boilerplateSelector = "script, style, nav, footer, header, aside, form, noscript, iframe"

// Extract reduces raw HTML to article text in markdown shape, capped at
// maxBytes. Returns ErrEmptyContent when nothing useful survives.
func Extract(raw []byte, pageURL string, maxBytes int) (title, text string, err error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(raw)))
	if err != nil {
		return "", "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find(boilerplateSelector).Remove()

	cleaned, err := doc.Html()
	if err != nil {
		return "", "", fmt.Errorf("serialize html: %w", err)
	}

	parsed, err := url.Parse(pageURL)
	if err != nil {
		parsed = &url.URL{}
	}

	article, err := readability.FromReader(strings.NewReader(cleaned), parsed)
	if err != nil || strings.TrimSpace(article.TextContent) == "" {
		// Readability refuses short or oddly structured pages; fall back
		// to the stripped document body.
		text = renderText(cleaned)
		title = strings.TrimSpace(doc.Find("title").First().Text())
	} else {
		text = renderText(article.Content)
		title = article.Title
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", "", ErrEmptyContent
	}
	if len(text) > maxBytes {
		text = truncateUTF8(text, maxBytes)
	}
	return title, text, nil
}

// renderText walks the HTML tree and emits markdown-shaped plain text:
// headings become #-prefixed lines, list items get a dash, table cells
// are pipe-separated, block elements separate paragraphs.
func renderText(fragment string) string {
	root, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return ""
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			return
		}
		if n.Type == html.ElementNode {
			switch n.Data {
			case "h1", "h2", "h3", "h4", "h5", "h6":
				b.WriteString("\n\n")
				b.WriteString(strings.Repeat("#", int(n.Data[1]-'0')))
				b.WriteString(" ")
			case "p", "div", "section", "article", "blockquote", "table", "ul", "ol", "br", "tr":
				b.WriteString("\n")
			case "li":
				b.WriteString("\n- ")
			case "td", "th":
				b.WriteString(" | ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return collapseBlankLines(b.String())
}

// collapseBlankLines normalizes whitespace: intra-line runs become one
// space, runs of blank lines become one blank line.
func collapseBlankLines(s string) string {
	rawLines := strings.Split(s, "\n")
	lines := make([]string, 0, len(rawLines))
	blank := true
	for _, line := range rawLines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank {
				lines = append(lines, "")
			}
			blank = true
			continue
		}
		lines = append(lines, line)
		blank = false
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
