package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iWorld-y/stock_radar/app/stock_radar/pkg/market"
	"github.com/iWorld-y/stock_radar/app/stock_radar/pkg/model"
	"github.com/iWorld-y/stock_radar/app/stock_radar/pkg/search"
)

// NewsLimit 新闻工具返回的最大条数
const NewsLimit = 10

// Tool 流水线阶段可调用的能力。Invoke 永远返回文本，错误也以文本形式返回。
type Tool interface {
	Name() string
	Description() string
	Invoke(ctx context.Context, input string) string
}

// MarketData 工具依赖的行情接口，由 market.Gateway 实现
type MarketData interface {
	Quote(ctx context.Context, symbol string) (*model.Quote, error)
	Snapshot(ctx context.Context, symbol string) (*model.CompanySnapshot, error)
	Statement(ctx context.Context, symbol string, kind model.StatementKind) (model.FinancialStatement, error)
	News(ctx context.Context, symbol string, limit int) ([]model.NewsItem, error)
}

var _ MarketData = (*market.Gateway)(nil)

// SymbolTools 以股票代码为输入的全部工具
func SymbolTools(md MarketData) []Tool {
	return []Tool{
		&PriceTool{md: md},
		&CompanyInfoTool{md: md},
		&StatementTool{md: md, kind: model.IncomeStatement},
		&StatementTool{md: md, kind: model.BalanceSheet},
		&NewsTool{md: md},
	}
}

// PriceTool 当前股价
type PriceTool struct{ md MarketData }

func (t *PriceTool) Name() string { return "get_current_stock_price" }

func (t *PriceTool) Description() string {
	return "Get the current stock price for a given symbol."
}

func (t *PriceTool) Invoke(ctx context.Context, input string) (out string) {
	symbol := normalize(input)
	defer recoverAs(&out, "current price", symbol)

	q, err := t.md.Quote(ctx, symbol)
	if err != nil {
		return failure("current price", symbol, err)
	}
	return fmt.Sprintf("%.2f", q.Price)
}

// CompanyInfoTool 公司概况与财务快照（JSON）
type CompanyInfoTool struct{ md MarketData }

func (t *CompanyInfoTool) Name() string { return "get_company_info" }

func (t *CompanyInfoTool) Description() string {
	return "Get company information and current financial snapshot for a given stock symbol, as JSON."
}

func (t *CompanyInfoTool) Invoke(ctx context.Context, input string) (out string) {
	symbol := normalize(input)
	defer recoverAs(&out, "company profile", symbol)

	s, err := t.md.Snapshot(ctx, symbol)
	if err != nil {
		return failure("company profile", symbol, err)
	}
	return toJSON("company profile", symbol, s)
}

// StatementTool 利润表或资产负债表（JSON）
type StatementTool struct {
	md   MarketData
	kind model.StatementKind
}

func (t *StatementTool) Name() string {
	if t.kind == model.BalanceSheet {
		return "get_balance_sheet"
	}
	return "get_income_statements"
}

func (t *StatementTool) Description() string {
	if t.kind == model.BalanceSheet {
		return "Get balance sheet data for a given stock symbol, as JSON keyed by fiscal period."
	}
	return "Get income statements for a given stock symbol, as JSON keyed by fiscal period."
}

func (t *StatementTool) what() string {
	if t.kind == model.BalanceSheet {
		return "balance sheet"
	}
	return "income statements"
}

func (t *StatementTool) Invoke(ctx context.Context, input string) (out string) {
	symbol := normalize(input)
	defer recoverAs(&out, t.what(), symbol)

	st, err := t.md.Statement(ctx, symbol, t.kind)
	if err != nil {
		return failure(t.what(), symbol, err)
	}
	return toJSON(t.what(), symbol, st)
}

// NewsTool 最近新闻（JSON，最多 NewsLimit 条）
type NewsTool struct{ md MarketData }

func (t *NewsTool) Name() string { return "get_news" }

func (t *NewsTool) Description() string {
	return "Get recent news about a given stock symbol, as a JSON array."
}

type newsEntry struct {
	Title          string   `json:"title"`
	Publisher      string   `json:"publisher"`
	Link           string   `json:"link"`
	PublishedDate  string   `json:"publishedDate"`
	Type           string   `json:"type"`
	RelatedTickers []string `json:"relatedTickers"`
}

func (t *NewsTool) Invoke(ctx context.Context, input string) (out string) {
	symbol := normalize(input)
	defer recoverAs(&out, "news", symbol)

	items, err := t.md.News(ctx, symbol, NewsLimit)
	if err != nil {
		return failure("news", symbol, err)
	}

	entries := make([]newsEntry, 0, len(items))
	for _, n := range items {
		related := n.RelatedSymbols
		if related == nil {
			related = []string{}
		}
		entries = append(entries, newsEntry{
			Title:          n.Title,
			Publisher:      n.Publisher,
			Link:           n.Link,
			PublishedDate:  n.PublishedAt.Format(time.DateTime),
			Type:           n.Category,
			RelatedTickers: related,
		})
	}
	return toJSON("news", symbol, entries)
}

// NewsWindowDays 新闻搜索默认回看的天数
const NewsWindowDays = 3

// WebSearchTool 通用网页搜索，用于工具覆盖不到的开放问题
type WebSearchTool struct {
	searcher   search.Searcher
	maxResults int
	topic      string
	days       int
	now        func() time.Time
}

// NewWebSearch 创建搜索工具
func NewWebSearch(s search.Searcher, maxResults int) *WebSearchTool {
	if maxResults <= 0 {
		maxResults = 5
	}
	return &WebSearchTool{searcher: s, maxResults: maxResults, now: time.Now}
}

// News 返回只搜索最近 days 天新闻的副本
func (t *WebSearchTool) News(days int) *WebSearchTool {
	if days <= 0 {
		days = NewsWindowDays
	}
	c := *t
	c.topic = search.TopicNews
	c.days = days
	return &c
}

func (t *WebSearchTool) request(query string) *search.Request {
	req := &search.Request{Query: query, Topic: t.topic, MaxResults: t.maxResults}
	if t.days > 0 {
		now := t.now()
		req.StartDate = now.AddDate(0, 0, -t.days).Format(search.DateLayout)
		req.EndDate = now.Format(search.DateLayout)
	}
	return req
}

func (t *WebSearchTool) Name() string { return "web_search" }

func (t *WebSearchTool) Description() string {
	return "Search the internet for information on a given topic."
}

func (t *WebSearchTool) Invoke(ctx context.Context, input string) (out string) {
	query := strings.TrimSpace(input)
	defer func() {
		if r := recover(); r != nil {
			out = fmt.Sprintf("Error searching for %q: %v", query, r)
		}
	}()

	if query == "" {
		return "Error searching: empty query"
	}
	resp, err := t.searcher.Search(ctx, t.request(query))
	if err != nil {
		return fmt.Sprintf("Error searching for %q: %v", query, err)
	}
	if resp == nil || len(resp.Results) == 0 {
		return fmt.Sprintf("No results found for %q", query)
	}

	var sb strings.Builder
	for i, r := range resp.Results {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, r.Title)
		if r.URL != "" {
			fmt.Fprintf(&sb, "   %s\n", r.URL)
		}
		if r.PublishedDate != "" {
			fmt.Fprintf(&sb, "   Published: %s\n", r.PublishedDate)
		}
		if r.Content != "" {
			fmt.Fprintf(&sb, "   %s\n", strings.TrimSpace(r.Content))
		}
	}
	return sb.String()
}

func normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// failure 数据不可用与其他错误使用不同的措辞
func failure(what, symbol string, err error) string {
	var u *market.Unavailable
	if errors.As(err, &u) {
		return fmt.Sprintf("Could not fetch %s for %s: %s", what, symbol, u.Reason)
	}
	return fmt.Sprintf("Error fetching %s for %s: %v", what, symbol, err)
}

func recoverAs(out *string, what, symbol string) {
	if r := recover(); r != nil {
		*out = fmt.Sprintf("Error fetching %s for %s: %v", what, symbol, r)
	}
}

func toJSON(what, symbol string, v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("Error fetching %s for %s: %v", what, symbol, err)
	}
	return string(data)
}
