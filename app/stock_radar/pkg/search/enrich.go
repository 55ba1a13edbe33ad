package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-shiori/go-readability"
	"golang.org/x/sync/errgroup"

	"github.com/iWorld-y/stock_radar/app/stock_radar/pkg/logger"
)

const (
	minSnippetLen = 120
	maxContentLen = 2000
	maxPageBytes  = 2 << 20
	fetchTimeout  = 15 * time.Second
	fetchWorkers  = 3
)

// ContentFetcher 抓取网页正文，需要响应 ctx 取消
type ContentFetcher func(ctx context.Context, pageURL string) (string, error)

var fetchClient = &http.Client{Timeout: fetchTimeout}

// FetchReadable 下载页面后用 readability 抽取正文
func FetchReadable(ctx context.Context, pageURL string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; stock-radar)")

	resp, err := fetchClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	article, err := readability.FromReader(io.LimitReader(resp.Body, maxPageBytes), u)
	if err != nil {
		return "", err
	}
	return article.TextContent, nil
}

// Enricher 摘要过短时补全 Content：优先用搜索引擎返回的原文，没有再抓取页面
type Enricher struct {
	next  Searcher
	fetch ContentFetcher
}

// NewEnricher 包装一个 Searcher，fetch 为空时使用 FetchReadable
func NewEnricher(next Searcher, fetch ContentFetcher) *Enricher {
	if fetch == nil {
		fetch = FetchReadable
	}
	return &Enricher{next: next, fetch: fetch}
}

var _ Searcher = (*Enricher)(nil)

// Search 实现 Searcher，每个 goroutine 只写自己的那条结果
func (e *Enricher) Search(ctx context.Context, req *Request) (*Response, error) {
	forward := *req
	forward.IncludeRawContent = true
	resp, err := e.next.Search(ctx, &forward)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return &Response{}, nil
	}

	var g errgroup.Group
	g.SetLimit(fetchWorkers)
	for i := range resp.Results {
		r := &resp.Results[i]
		if len(r.Content) >= minSnippetLen {
			continue
		}
		if r.RawContent != "" {
			r.Content = truncate(r.RawContent)
			continue
		}
		if r.URL == "" {
			continue
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			text, err := e.fetch(ctx, r.URL)
			if err != nil {
				logger.Log.Debugf("抓取正文失败 [%s]: %v", r.URL, err)
				return nil
			}
			text = truncate(text)
			r.RawContent = text
			if text != "" {
				r.Content = text
			}
			return nil
		})
	}
	_ = g.Wait()
	return resp, nil
}

func truncate(text string) string {
	if runes := []rune(text); len(runes) > maxContentLen {
		return string(runes[:maxContentLen])
	}
	return text
}
