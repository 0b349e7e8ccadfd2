package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	log "github.com/sirupsen/logrus"

	"trends/scraper/internal/config"
	"trends/scraper/internal/domain"
	"trends/scraper/internal/proxy"
)

const newsResultsPerPage = 10

type NewsClient interface {
	// Search returns the articles on one zero-based results page for keyword.
	Search(ctx context.Context, keyword string, page int) ([]domain.NewsArticle, error)
	// SearchUntil collects pages 0..pages-1, stopping early at the first empty page.
	SearchUntil(ctx context.Context, keyword string, pages int) ([]domain.NewsArticle, error)
}

type newsClient struct {
	*httpFetcher
	config config.TrendsConfig
	parser *newsParser
}

func NewNewsClient(cfg config.TrendsConfig, proxySupplier proxy.ProxySupplier) NewsClient {
	return &newsClient{
		httpFetcher: newHTTPFetcher(cfg, proxySupplier),
		config:      cfg,
		parser:      &newsParser{baseURL: cfg.NewsURL},
	}
}

func (c *newsClient) Search(ctx context.Context, keyword string, page int) ([]domain.NewsArticle, error) {
	html, err := c.get(ctx, c.config.NewsURL+"/search", map[string]string{
		"q":     keyword,
		"tbm":   "nws",
		"hl":    c.config.Language,
		"start": strconv.Itoa(page * newsResultsPerPage),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch news page %d for %q: %w", page, keyword, err)
	}

	articles, err := c.parser.Parse(html, keyword, page)
	if err != nil {
		return nil, fmt.Errorf("failed to parse news page %d for %q: %w", page, keyword, err)
	}

	log.Debugf("Parsed %d articles for %q on page %d", len(articles), keyword, page)
	return articles, nil
}

func (c *newsClient) SearchUntil(ctx context.Context, keyword string, pages int) ([]domain.NewsArticle, error) {
	var all []domain.NewsArticle
	for page := range max(1, pages) {
		articles, err := c.Search(ctx, keyword, page)
		if err != nil {
			return nil, err
		}
		if len(articles) == 0 {
			break
		}
		all = append(all, articles...)
	}
	return all, nil
}

type newsParser struct {
	baseURL string
}

func (p *newsParser) Parse(html, keyword string, page int) ([]domain.NewsArticle, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	articles := make([]domain.NewsArticle, 0, newsResultsPerPage)
	seen := make(map[string]struct{})

	doc.Find("#search a[href]:has([role='heading']), #search a[href]:has(h3)").Each(func(i int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		href = p.resolve(href)
		if href == "" {
			return
		}
		if _, dup := seen[href]; dup {
			return
		}

		title := strings.TrimSpace(link.Find("[role='heading']").First().Text())
		if title == "" {
			title = strings.TrimSpace(link.Find("h3").First().Text())
		}
		if title == "" {
			return
		}

		seen[href] = struct{}{}
		articles = append(articles, domain.NewsArticle{
			Keyword:   keyword,
			Title:     title,
			URL:       href,
			Source:    strings.TrimSpace(link.Find(".source, .MgUUmf").First().Text()),
			Published: strings.TrimSpace(link.Find("time, .OSrXXb").First().Text()),
			Page:      page,
		})
	})

	if len(articles) == 0 && doc.Find("#search").Length() == 0 {
		return nil, fmt.Errorf("no search results container found")
	}

	return articles, nil
}

// resolve turns redirect and relative links into absolute article URLs.
func (p *newsParser) resolve(href string) string {
	if strings.HasPrefix(href, "/url?") {
		u, err := url.Parse(href)
		if err != nil {
			return ""
		}
		href = u.Query().Get("q")
		if href == "" {
			href = u.Query().Get("url")
		}
	}
	switch {
	case strings.HasPrefix(href, "http://"), strings.HasPrefix(href, "https://"):
		return href
	case strings.HasPrefix(href, "//"):
		return "https:" + href
	case strings.HasPrefix(href, "/"):
		return p.baseURL + href
	default:
		return ""
	}
}
