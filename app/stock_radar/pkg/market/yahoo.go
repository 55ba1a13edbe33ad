package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/iWorld-y/stock_radar/app/stock_radar/pkg/model"
)

const (
	yahooBaseURL   = "https://query2.finance.yahoo.com"
	yahooCookieURL = "https://fc.yahoo.com"
	yahooUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

	infoModules = "price,summaryDetail,assetProfile,defaultKeyStatistics,financialData"
)

// YahooProvider 基于 Yahoo Finance quoteSummary 接口的数据源
type YahooProvider struct {
	client    *http.Client
	baseURL   string
	cookieURL string

	mu    sync.Mutex
	crumb string
}

// YahooOption Yahoo 数据源配置项
type YahooOption func(*YahooProvider)

// WithYahooBaseURL 替换接口地址，cookie 也从同一地址获取
func WithYahooBaseURL(baseURL string) YahooOption {
	return func(p *YahooProvider) {
		p.baseURL = strings.TrimRight(baseURL, "/")
		p.cookieURL = p.baseURL
	}
}

// NewYahooProvider 创建 Yahoo 数据源，proxyURL 为空时直连
func NewYahooProvider(proxyURL string, timeout time.Duration, opts ...YahooOption) *YahooProvider {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	jar, _ := cookiejar.New(nil)
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	p := &YahooProvider{
		client:    &http.Client{Timeout: timeout, Transport: transport, Jar: jar},
		baseURL:   yahooBaseURL,
		cookieURL: yahooCookieURL,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *YahooProvider) Name() string { return "yahoo" }

type quoteSummaryResponse struct {
	QuoteSummary struct {
		Result []map[string]json.RawMessage `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteSummary"`
}

// Info 拉取公司概况相关模块并拍平成一张表
func (p *YahooProvider) Info(ctx context.Context, symbol string) (Info, error) {
	modules, err := p.quoteSummary(ctx, symbol, infoModules)
	if err != nil {
		return nil, err
	}

	info := Info{}
	for _, name := range strings.Split(infoModules, ",") {
		raw, ok := modules[name]
		if !ok {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			continue
		}
		flatten(m, info)
	}
	return info, nil
}

// Statement 年度利润表或资产负债表，以报告期为键
func (p *YahooProvider) Statement(ctx context.Context, symbol string, kind model.StatementKind) (model.FinancialStatement, error) {
	var module, listKey string
	switch kind {
	case model.IncomeStatement:
		module, listKey = "incomeStatementHistory", "incomeStatementHistory"
	case model.BalanceSheet:
		module, listKey = "balanceSheetHistory", "balanceSheetStatements"
	default:
		return nil, fmt.Errorf("unknown statement kind %q", kind)
	}

	modules, err := p.quoteSummary(ctx, symbol, module)
	if err != nil {
		return nil, err
	}
	raw, ok := modules[module]
	if !ok {
		return model.FinancialStatement{}, nil
	}

	var wrapper map[string][]map[string]any
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil, fmt.Errorf("decode %s: %w", module, err)
	}

	st := model.FinancialStatement{}
	for _, entry := range wrapper[listKey] {
		period := periodKey(entry["endDate"])
		if period == "" {
			continue
		}
		row := Info{}
		flatten(entry, row)
		delete(row, "endDate")
		st[period] = row
	}
	return st, nil
}

type yahooSearchResponse struct {
	News []struct {
		Title               string   `json:"title"`
		Publisher           string   `json:"publisher"`
		Link                string   `json:"link"`
		ProviderPublishTime int64    `json:"providerPublishTime"`
		Type                string   `json:"type"`
		RelatedTickers      []string `json:"relatedTickers"`
	} `json:"news"`
}

// News 通过搜索接口获取相关新闻
func (p *YahooProvider) News(ctx context.Context, symbol string, limit int) ([]model.NewsItem, error) {
	if limit <= 0 {
		limit = 10
	}
	q := url.Values{}
	q.Set("q", symbol)
	q.Set("quotesCount", "0")
	q.Set("newsCount", fmt.Sprintf("%d", limit))

	body, err := p.get(ctx, p.baseURL+"/v1/finance/search?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var resp yahooSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode news: %w", err)
	}

	items := make([]model.NewsItem, 0, len(resp.News))
	for _, n := range resp.News {
		items = append(items, model.NewsItem{
			Title:          n.Title,
			Publisher:      n.Publisher,
			Link:           n.Link,
			PublishedAt:    time.Unix(n.ProviderPublishTime, 0),
			Category:       n.Type,
			RelatedSymbols: n.RelatedTickers,
		})
	}
	return items, nil
}

func (p *YahooProvider) quoteSummary(ctx context.Context, symbol, modules string) (map[string]json.RawMessage, error) {
	crumb, err := p.getCrumb(ctx)
	if err != nil {
		return nil, fmt.Errorf("get crumb: %w", err)
	}

	q := url.Values{}
	q.Set("modules", modules)
	q.Set("crumb", crumb)
	endpoint := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?%s", p.baseURL, url.PathEscape(symbol), q.Encode())

	body, err := p.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var resp quoteSummaryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode quoteSummary: %w", err)
	}
	if e := resp.QuoteSummary.Error; e != nil {
		return nil, fmt.Errorf("%s: %s", e.Code, e.Description)
	}
	if len(resp.QuoteSummary.Result) == 0 {
		return nil, fmt.Errorf("no data in response for %s", symbol)
	}
	return resp.QuoteSummary.Result[0], nil
}

// getCrumb 首次调用时先拿 cookie 再换 crumb，之后复用；网络请求期间不持锁
func (p *YahooProvider) getCrumb(ctx context.Context) (string, error) {
	p.mu.Lock()
	crumb := p.crumb
	p.mu.Unlock()
	if crumb != "" {
		return crumb, nil
	}

	// fc.yahoo.com 通常返回 404，只需要它下发的 cookie
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cookieURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", yahooUserAgent)
	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	body, err := p.get(ctx, p.baseURL+"/v1/test/getcrumb")
	if err != nil {
		return "", err
	}
	crumb = strings.TrimSpace(string(body))
	if crumb == "" || strings.Contains(crumb, "<") {
		return "", fmt.Errorf("invalid crumb response")
	}

	p.mu.Lock()
	p.crumb = crumb
	p.mu.Unlock()
	return crumb, nil
}

func (p *YahooProvider) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", yahooUserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		// crumb 失效，下次重新获取
		p.mu.Lock()
		p.crumb = ""
		p.mu.Unlock()
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo returned status %d", resp.StatusCode)
	}
	return body, nil
}

// flatten 把 {"raw":..,"fmt":..} 形式的值展开为 raw，嵌套对象和数组忽略
func flatten(m map[string]any, into Info) {
	for k, v := range m {
		if k == "maxAge" {
			continue
		}
		switch t := v.(type) {
		case map[string]any:
			if raw, ok := t["raw"]; ok {
				into[k] = raw
			}
		case string, float64, bool:
			into[k] = t
		}
	}
}

func periodKey(v any) string {
	m, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	if s, ok := m["fmt"].(string); ok && s != "" {
		return s
	}
	if raw, ok := m["raw"].(float64); ok {
		return time.Unix(int64(raw), 0).UTC().Format("2006-01-02")
	}
	return ""
}
