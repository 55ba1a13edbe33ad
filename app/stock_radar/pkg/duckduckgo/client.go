package duckduckgo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/iWorld-y/stock_radar/app/stock_radar/pkg/search"
)

const (
	defaultBaseURL = "https://html.duckduckgo.com"
	userAgent      = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Client 解析 DuckDuckGo HTML 结果页，无需 API Key
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient baseURL 为空时使用官方地址，timeout 单位为秒
func NewClient(baseURL string, timeout int) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	t := time.Duration(timeout) * time.Second
	if t == 0 {
		t = 20 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: t},
	}
}

var _ search.Searcher = (*Client)(nil)

// Search 实现 search.Searcher
func (c *Client) Search(ctx context.Context, req *search.Request) (*search.Response, error) {
	form := url.Values{}
	form.Set("q", req.Query)
	if age, ok := req.Window(time.Now()); ok {
		form.Set("df", dateFilter(age))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/html/", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("User-Agent", userAgent)

	res, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo returned status %d", res.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return nil, fmt.Errorf("parse html failed: %w", err)
	}

	var results []search.Result
	doc.Find(".result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if req.MaxResults > 0 && len(results) >= req.MaxResults {
			return false
		}
		// 广告位
		if s.HasClass("result--ad") {
			return true
		}
		link := s.Find("a.result__a").First()
		title := strings.TrimSpace(link.Text())
		href, _ := link.Attr("href")
		if title == "" || href == "" {
			return true
		}
		results = append(results, search.Result{
			Title:   title,
			URL:     resolveLink(href),
			Content: strings.TrimSpace(s.Find(".result__snippet").Text()),
		})
		return true
	})

	return &search.Response{Results: results}, nil
}

// resolveLink 结果链接经过 /l/?uddg= 跳转，取出真实地址
func resolveLink(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}

// dateFilter DuckDuckGo 的 df 参数只支持 d/w/m/y
func dateFilter(age time.Duration) string {
	switch {
	case age <= 24*time.Hour:
		return "d"
	case age <= 7*24*time.Hour:
		return "w"
	case age <= 31*24*time.Hour:
		return "m"
	default:
		return "y"
	}
}
