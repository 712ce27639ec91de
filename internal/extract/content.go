package extract

import (
	"bytes"
	"html"
	"net/url"
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/dyatlov/go-opengraph/opengraph"
	"github.com/go-shiori/go-readability"
)

// ContentSelectors are tried in order; the first with matches wins.
var ContentSelectors = []string{"main", "article", ".content", ".post-content", ".entry-content", "#content", "body"}

// Options bound the extracted text.
type Options struct {
	MaxChars      int
	MinBlockChars int
}

// DefaultOptions returns 5000 chars and 100-char blocks.
func DefaultOptions() Options {
	return Options{MaxChars: 5000, MinBlockChars: 100}
}

var whitespace = regexp.MustCompile(`\s+`)

// MainContent returns the readable text of a page.
func MainContent(page *Page, opts Options) string {
	pageURL := page.URL
	if pageURL == nil {
		pageURL = &url.URL{}
	}
	text := ""
	if article, err := readability.FromReader(bytes.NewReader(page.Body), pageURL); err == nil {
		text = collapse(article.TextContent)
	}
	if len([]rune(text)) <= opts.MinBlockChars {
		text = SelectorContent(page.Body, opts)
	}
	return truncate(text, opts.MaxChars)
}

// SelectorContent extracts text from the first matching content selector.
func SelectorContent(body []byte, opts Options) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return truncate(collapse(string(body)), opts.MaxChars)
	}
	doc.Find("script, style").Remove()

	var blocks []string
	for _, sel := range ContentSelectors {
		found := doc.Find(sel)
		if found.Length() == 0 {
			continue
		}
		found.Each(func(_ int, s *goquery.Selection) {
			text := collapse(s.Text())
			if len([]rune(text)) > opts.MinBlockChars {
				blocks = append(blocks, text)
			}
		})
		break
	}

	text := strings.Join(blocks, " ")
	if text == "" {
		text = collapse(doc.Text())
	}
	return truncate(text, opts.MaxChars)
}

func collapse(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

func truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}

// Summary is the short description of a website.
type Summary struct {
	Title           string
	MetaDescription string
	FirstParagraph  string
	SiteName        string
}

// Summarize reads OpenGraph tags and falls back to the document head.
func Summarize(body []byte) Summary {
	var s Summary
	og := opengraph.NewOpenGraph()
	if err := og.ProcessHTML(bytes.NewReader(body)); err == nil {
		s.Title = collapse(og.Title)
		s.MetaDescription = collapse(og.Description)
		s.SiteName = collapse(og.SiteName)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return s
	}
	if s.Title == "" {
		s.Title = collapse(doc.Find("title").First().Text())
	}
	if s.MetaDescription == "" {
		s.MetaDescription = metaDescription(doc)
	}
	doc.Find("p").EachWithBreak(func(_ int, p *goquery.Selection) bool {
		if text := collapse(p.Text()); text != "" {
			s.FirstParagraph = text
			return false
		}
		return true
	})
	return s
}

func metaDescription(doc *goquery.Document) string {
	desc := ""
	doc.Find("meta").Each(func(_ int, m *goquery.Selection) {
		name, _ := m.Attr("name")
		if strings.EqualFold(name, "description") {
			content, _ := m.Attr("content")
			desc = strings.TrimSpace(content)
		}
	})
	return desc
}

// CleanText flattens a website into labelled lines for the company profiler.
func CleanText(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	doc.Find("script, style").Remove()

	var parts []string
	if title := doc.Find("title").First(); title.Length() > 0 {
		parts = append(parts, "Title: "+strings.TrimSpace(title.Text()))
	}
	if desc := metaDescription(doc); desc != "" {
		parts = append(parts, "Meta description: "+desc)
	}
	doc.Find("h1, h2, h3").Each(func(_ int, h *goquery.Selection) {
		parts = append(parts, strings.ToUpper(goquery.NodeName(h))+": "+collapse(h.Text()))
	})
	doc.Find("p").Each(func(_ int, p *goquery.Selection) {
		parts = append(parts, "P: "+collapse(p.Text()))
	})
	doc.Find("li").Each(func(_ int, li *goquery.Selection) {
		parts = append(parts, "LI: "+collapse(li.Text()))
	})

	return html.UnescapeString(strings.Join(parts, "\n")), nil
}

// Markdown converts HTML to markdown.
func Markdown(body []byte) (string, error) {
	return htmltomarkdown.ConvertString(string(body))
}
