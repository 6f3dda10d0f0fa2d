package browser

import (
	"bytes"
	"fmt"
	"net/url"
	"time"

	readability "github.com/go-shiori/go-readability"
)

// Article holds the extracted readable content from a page.
type Article struct {
	Title       string
	Byline      string
	Content     string // cleaned HTML
	TextContent string // plain text
	SiteName    string
	FaviconURL  string
	URL         string
	FinalURL    string
	FetchTime   time.Duration
}

// Extract takes a FetchResult and pulls out the readable article content.
// Non-HTML responses pass through as preformatted text.
func Extract(result *FetchResult) (*Article, error) {
	if !IsHTML(result.ContentType) {
		return &Article{
			Title:       result.FinalURL,
			Content:     "<pre>" + string(result.Body) + "</pre>",
			TextContent: string(result.Body),
			URL:         result.URL,
			FinalURL:    result.FinalURL,
			FetchTime:   result.Duration,
		}, nil
	}

	parsedURL, err := url.Parse(result.FinalURL)
	if err != nil {
		return nil, fmt.Errorf("parsing URL: %w", err)
	}

	article, err := readability.FromReader(bytes.NewReader(result.Body), parsedURL)
	if err != nil {
		return nil, fmt.Errorf("extracting article: %w", err)
	}

	return &Article{
		Title:       article.Title,
		Byline:      article.Byline,
		Content:     article.Content,
		TextContent: article.TextContent,
		SiteName:    article.SiteName,
		FaviconURL:  article.Favicon,
		URL:         result.URL,
		FinalURL:    result.FinalURL,
		FetchTime:   result.Duration,
	}, nil
}
