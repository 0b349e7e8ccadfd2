package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"trends/scraper/internal/config"
	"trends/scraper/internal/domain"
	"trends/scraper/internal/proxy"
)

const timeseriesWidget = "TIMESERIES"

type TrendsClient interface {
	// InterestOverTime returns the search interest of keywords in long format.
	InterestOverTime(ctx context.Context, keywords []string) ([]domain.InterestPoint, error)
}

type trendsClient struct {
	*httpFetcher
	config config.TrendsConfig
}

func NewTrendsClient(cfg config.TrendsConfig, proxySupplier proxy.ProxySupplier) TrendsClient {
	return &trendsClient{
		httpFetcher: newHTTPFetcher(cfg, proxySupplier),
		config:      cfg,
	}
}

type comparisonItem struct {
	Keyword string `json:"keyword"`
	Time    string `json:"time"`
	Geo     string `json:"geo"`
}

type exploreRequest struct {
	ComparisonItem []comparisonItem `json:"comparisonItem"`
	Category       int              `json:"category"`
	Property       string           `json:"property"`
}

type exploreResponse struct {
	Widgets []struct {
		ID      string          `json:"id"`
		Token   string          `json:"token"`
		Request json.RawMessage `json:"request"`
	} `json:"widgets"`
}

type multilineResponse struct {
	Default struct {
		TimelineData []struct {
			Time      string `json:"time"`
			Value     []int  `json:"value"`
			IsPartial bool   `json:"isPartial"`
		} `json:"timelineData"`
	} `json:"default"`
}

func (c *trendsClient) InterestOverTime(ctx context.Context, keywords []string) ([]domain.InterestPoint, error) {
	if len(keywords) == 0 {
		return nil, fmt.Errorf("no keywords")
	}

	token, widgetReq, err := c.explore(ctx, keywords)
	if err != nil {
		return nil, err
	}

	body, err := c.get(ctx, c.config.BaseURL+"/trends/api/widgetdata/multiline", map[string]string{
		"hl":    c.config.Language,
		"tz":    strconv.Itoa(c.config.TimezoneOffset),
		"req":   string(widgetReq),
		"token": token,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch interest over time: %w", err)
	}

	var resp multilineResponse
	if err := decodeGuarded(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode interest over time: %w", err)
	}

	points := longFormat(keywords, resp, c.config.EmptySeriesLength)
	log.Debugf("Fetched %d interest points for %v", len(points), keywords)
	return points, nil
}

func (c *trendsClient) explore(ctx context.Context, keywords []string) (string, json.RawMessage, error) {
	req := exploreRequest{ComparisonItem: make([]comparisonItem, len(keywords))}
	for i, kw := range keywords {
		req.ComparisonItem[i] = comparisonItem{Keyword: kw, Time: c.config.Timeframe, Geo: c.config.Geo}
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode explore request: %w", err)
	}

	body, err := c.get(ctx, c.config.BaseURL+"/trends/api/explore", map[string]string{
		"hl":  c.config.Language,
		"tz":  strconv.Itoa(c.config.TimezoneOffset),
		"req": string(payload),
	})
	if err != nil {
		return "", nil, fmt.Errorf("failed to fetch explore widgets: %w", err)
	}

	var resp exploreResponse
	if err := decodeGuarded(body, &resp); err != nil {
		return "", nil, fmt.Errorf("failed to decode explore widgets: %w", err)
	}

	for _, w := range resp.Widgets {
		if w.ID == timeseriesWidget {
			return w.Token, w.Request, nil
		}
	}
	return "", nil, fmt.Errorf("explore response has no %s widget", timeseriesWidget)
}

// decodeGuarded decodes a JSON body prefixed with an anti-hijacking guard such as ")]}'".
func decodeGuarded(body string, v any) error {
	start := strings.IndexByte(body, '{')
	if start < 0 {
		return fmt.Errorf("no JSON object in response")
	}
	return json.Unmarshal([]byte(body[start:]), v)
}

// longFormat reshapes a timeline into (date, keyword, interest) rows. An empty timeline
// becomes a zero-filled series of emptyLength rows per keyword.
func longFormat(keywords []string, resp multilineResponse, emptyLength int) []domain.InterestPoint {
	timeline := resp.Default.TimelineData
	emptyLength = max(0, emptyLength)
	if len(timeline) == 0 {
		points := make([]domain.InterestPoint, 0, emptyLength*len(keywords))
		for _, kw := range keywords {
			for range emptyLength {
				points = append(points, domain.InterestPoint{Keyword: kw})
			}
		}
		return points
	}

	points := make([]domain.InterestPoint, 0, len(timeline)*len(keywords))
	for i, kw := range keywords {
		for _, row := range timeline {
			p := domain.InterestPoint{Keyword: kw, Date: formatDate(row.Time)}
			if i < len(row.Value) {
				p.SearchInterest = row.Value[i]
			}
			points = append(points, p)
		}
	}
	return points
}

func formatDate(unix string) string {
	sec, err := strconv.ParseInt(unix, 10, 64)
	if err != nil {
		return unix
	}
	return time.Unix(sec, 0).UTC().Format(time.DateOnly)
}
