package browser

import (
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/charmbracelet/glamour"
)

// Link is a numbered hyperlink found in the rendered page.
type Link struct {
	Index int
	Text  string
	URL   string
}

// RenderedPage holds the final terminal-ready output.
type RenderedPage struct {
	Title      string
	Content    string // styled terminal text
	Links      []Link
	FaviconURL string
}

// Glamour renderers are expensive to build; cache one per width.
var (
	rendererMu    sync.Mutex
	termRenderer  *glamour.TermRenderer
	rendererWidth int
)

// Render converts an Article's HTML content into styled terminal text with
// numbered, followable links.
func Render(article *Article, width int) *RenderedPage {
	if width <= 0 {
		width = 80
	}
	contentWidth := width - 4
	if contentWidth > 100 {
		contentWidth = 100
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content))
	if err != nil {
		return &RenderedPage{Title: article.Title, Content: article.TextContent, FaviconURL: article.FaviconURL}
	}

	conv := &mdConverter{}
	var md strings.Builder
	if article.Title != "" {
		md.WriteString("# " + article.Title + "\n\n")
	}
	if article.Byline != "" {
		md.WriteString("*" + article.Byline + "*\n\n")
	}
	md.WriteString("---\n\n")

	doc.Find("body").Children().Each(func(_ int, s *goquery.Selection) {
		md.WriteString(conv.block(s, 0))
	})

	content, err := renderMarkdown(md.String(), contentWidth)
	if err != nil {
		content = md.String()
	}

	return &RenderedPage{
		Title:      article.Title,
		Content:    content,
		Links:      conv.links,
		FaviconURL: article.FaviconURL,
	}
}

func renderMarkdown(markdown string, width int) (string, error) {
	rendererMu.Lock()
	defer rendererMu.Unlock()

	if termRenderer == nil || rendererWidth != width {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return "", err
		}
		termRenderer = r
		rendererWidth = width
	}
	return termRenderer.Render(markdown)
}

// mdConverter walks goquery nodes and emits markdown, numbering links as it
// goes.
type mdConverter struct {
	links []Link
}

func (c *mdConverter) block(s *goquery.Selection, depth int) string {
	node := goquery.NodeName(s)
	switch node {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		level := int(node[1] - '0')
		text := strings.TrimSpace(c.inline(s))
		if text == "" {
			return ""
		}
		return strings.Repeat("#", level) + " " + text + "\n\n"

	case "p":
		text := strings.TrimSpace(c.inline(s))
		if text == "" {
			return ""
		}
		return text + "\n\n"

	case "ul", "ol":
		return c.list(s, node == "ol", depth)

	case "blockquote":
		var sb strings.Builder
		for _, line := range strings.Split(strings.TrimSpace(c.inline(s)), "\n") {
			sb.WriteString("> " + line + "\n")
		}
		sb.WriteString("\n")
		return sb.String()

	case "pre":
		lang := ""
		if class, ok := s.Find("code").Attr("class"); ok {
			lang = strings.TrimPrefix(class, "language-")
		}
		return "```" + lang + "\n" + strings.TrimRight(s.Text(), "\n") + "\n```\n\n"

	case "hr":
		return "---\n\n"

	case "table":
		return c.table(s)

	case "div", "section", "article", "main", "figure", "header", "footer":
		var sb strings.Builder
		children := s.Children()
		if children.Length() == 0 {
			if text := strings.TrimSpace(c.inline(s)); text != "" {
				sb.WriteString(text + "\n\n")
			}
			return sb.String()
		}
		children.Each(func(_ int, child *goquery.Selection) {
			sb.WriteString(c.block(child, depth))
		})
		return sb.String()

	case "img":
		return c.image(s)

	default:
		text := strings.TrimSpace(c.inline(s))
		if text == "" {
			return ""
		}
		return text + "\n\n"
	}
}

func (c *mdConverter) list(s *goquery.Selection, ordered bool, depth int) string {
	var sb strings.Builder
	indent := strings.Repeat("  ", depth)
	s.ChildrenFiltered("li").Each(func(i int, li *goquery.Selection) {
		marker := "-"
		if ordered {
			marker = fmt.Sprintf("%d.", i+1)
		}
		text := strings.TrimSpace(c.inline(li))
		sb.WriteString(fmt.Sprintf("%s%s %s\n", indent, marker, text))
		li.ChildrenFiltered("ul, ol").Each(func(_ int, nested *goquery.Selection) {
			sb.WriteString(c.list(nested, goquery.NodeName(nested) == "ol", depth+1))
		})
	})
	if depth == 0 {
		sb.WriteString("\n")
	}
	return sb.String()
}

// inline flattens a node to inline markdown text.
func (c *mdConverter) inline(s *goquery.Selection) string {
	var sb strings.Builder
	s.Contents().Each(func(_ int, n *goquery.Selection) {
		switch goquery.NodeName(n) {
		case "#text":
			raw := n.Text()
			text := collapseSpace(raw)
			// Keep single boundary spaces so inline tags don't glue words.
			if text != "" {
				if strings.TrimLeft(raw, " \t\n") != raw {
					text = " " + text
				}
				if strings.TrimRight(raw, " \t\n") != raw {
					text += " "
				}
			}
			sb.WriteString(text)
		case "a":
			sb.WriteString(c.link(n))
		case "strong", "b":
			if t := strings.TrimSpace(c.inline(n)); t != "" {
				sb.WriteString("**" + t + "**")
			}
		case "em", "i":
			if t := strings.TrimSpace(c.inline(n)); t != "" {
				sb.WriteString("*" + t + "*")
			}
		case "code":
			sb.WriteString("`" + n.Text() + "`")
		case "br":
			sb.WriteString("\n")
		case "img":
			sb.WriteString(c.image(n))
		default:
			sb.WriteString(c.inline(n))
		}
	})
	return sb.String()
}

// link emits the anchor text followed by its [n] marker and records the
// target so the follow-link command can resolve the number later.
func (c *mdConverter) link(s *goquery.Selection) string {
	href, ok := s.Attr("href")
	text := strings.TrimSpace(c.inline(s))
	if !ok || href == "" || strings.HasPrefix(href, "#") {
		return text
	}
	if text == "" {
		text = href
	}
	idx := len(c.links) + 1
	c.links = append(c.links, Link{Index: idx, Text: text, URL: href})
	return fmt.Sprintf("%s [%d]", text, idx)
}

func (c *mdConverter) image(s *goquery.Selection) string {
	alt := s.AttrOr("alt", "image")
	return fmt.Sprintf("🖼 *%s*", alt)
}

func (c *mdConverter) table(s *goquery.Selection) string {
	var rows [][]string
	s.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var row []string
		tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
			row = append(row, strings.TrimSpace(c.inline(cell)))
		})
		if len(row) > 0 {
			rows = append(rows, row)
		}
	})
	if len(rows) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("| " + strings.Join(rows[0], " | ") + " |\n")
	sb.WriteString("|" + strings.Repeat(" --- |", len(rows[0])) + "\n")
	for _, row := range rows[1:] {
		sb.WriteString("| " + strings.Join(row, " | ") + " |\n")
	}
	sb.WriteString("\n")
	return sb.String()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
