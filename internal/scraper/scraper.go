// Package scraper fetches rustcc.cn daily posts. It is an external
// collaborator of the command controller, not part of the core
// event-gateway engineering; the implementation here is the minimal
// selector-driven HTTP GET the source spec describes.
package scraper

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/rustcc-bot/qbot-gateway/internal/model"
)

// Origin is the source site's scheme+host; commands must present a URL
// beginning with it before this package is invoked.
const Origin = "https://rustcc.cn"

// Scraper fetches an Article given its site-relative href.
type Scraper interface {
	FetchPost(ctx context.Context, href string) (model.Article, error)
}

// HTTPScraper is the real Scraper, backed by an HTTP GET against Origin
// and a goquery selector walk of the returned document.
type HTTPScraper struct {
	baseURL    string
	httpClient *http.Client
}

// New builds an HTTPScraper against Origin.
func New() *HTTPScraper {
	return &HTTPScraper{
		baseURL:    Origin,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// FetchPost retrieves the article at href and extracts its title,
// author, publish time, date and content.
func (s *HTTPScraper) FetchPost(ctx context.Context, href string) (model.Article, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+href, nil)
	if err != nil {
		return model.Article{}, fmt.Errorf("scraper: build request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return model.Article{}, fmt.Errorf("scraper: fetch %s: %w", href, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return model.Article{}, fmt.Errorf("scraper: unsuccessful HTTP status %d for %s", resp.StatusCode, href)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return model.Article{}, fmt.Errorf("scraper: parse HTML for %s: %w", href, err)
	}

	title := strings.TrimSpace(doc.Find(".article-title, .detail-title").First().Text())
	author := strings.TrimSpace(doc.Find(".article-author, .detail-author").First().Text())
	publishTime := strings.TrimSpace(doc.Find(".article-time, .detail-time").First().Text())

	dateStr := strings.TrimSpace(doc.Find(".article-date, .detail-date").First().Text())
	if len(dateStr) < 10 {
		dateStr = firstTenOf(publishTime)
	}
	date, err := model.ParseDate(dateStr)
	if err != nil {
		return model.Article{}, fmt.Errorf("scraper: parse date for %s: %w", href, err)
	}

	var contentHTML strings.Builder
	doc.Find(".detail-body").Children().Each(func(_ int, sel *goquery.Selection) {
		if html, err := goquery.OuterHtml(sel); err == nil {
			contentHTML.WriteString(html)
		}
	})

	return model.Article{
		Href:        href,
		Title:       title,
		Author:      author,
		PublishTime: publishTime,
		Date:        date,
		ContentHTML: contentHTML.String(),
	}, nil
}

func firstTenOf(s string) string {
	if len(s) < 10 {
		return s
	}
	return s[:10]
}
