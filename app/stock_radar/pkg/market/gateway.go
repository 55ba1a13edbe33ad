package market

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/iWorld-y/stock_radar/app/stock_radar/pkg/logger"
	"github.com/iWorld-y/stock_radar/app/stock_radar/pkg/model"
)

// ErrNotSupported 数据源不提供该类数据
var ErrNotSupported = errors.New("not supported by provider")

// Provider 外部行情数据源
type Provider interface {
	Name() string
	Info(ctx context.Context, symbol string) (Info, error)
	Statement(ctx context.Context, symbol string, kind model.StatementKind) (model.FinancialStatement, error)
	News(ctx context.Context, symbol string, limit int) ([]model.NewsItem, error)
}

// Unavailable 数据不可用。网关的所有失败都以该类型返回，Reason 可直接展示给人看。
type Unavailable struct {
	Symbol string
	What   string
	Reason string
}

func (u *Unavailable) Error() string {
	return fmt.Sprintf("%s unavailable for %s: %s", u.What, u.Symbol, u.Reason)
}

// IsUnavailable 判断错误是否为数据不可用
func IsUnavailable(err error) bool {
	var u *Unavailable
	return errors.As(err, &u)
}

// Gateway 行情网关：按顺序尝试各数据源，把缺失和异常统一成 Unavailable
type Gateway struct {
	providers []Provider
	limiter   *rate.Limiter
	now       func() time.Time
}

// Option 网关配置项
type Option func(*Gateway)

// WithRateLimit 限制每秒请求上游的次数
func WithRateLimit(requestsPerSecond int) Option {
	return func(g *Gateway) {
		if requestsPerSecond > 0 {
			g.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// WithClock 替换时钟，用于测试
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		g.now = now
	}
}

// NewGateway 创建网关
func NewGateway(providers []Provider, opts ...Option) *Gateway {
	g := &Gateway{
		providers: providers,
		limiter:   rate.NewLimiter(rate.Inf, 1),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Quote 获取报价。上游既没有 currentPrice 也没有 regularMarketPrice 时返回 Unavailable，不会返回 0。
func (g *Gateway) Quote(ctx context.Context, symbol string) (*model.Quote, error) {
	symbol = normalize(symbol)
	info, err := g.info(ctx, symbol, "quote", func(info Info) bool {
		_, ok := PriceFields.Float(info)
		return ok
	})
	if err != nil {
		return nil, err
	}

	price, _ := PriceFields.Float(info)
	q := &model.Quote{
		Symbol:        symbol,
		Price:         price,
		Change:        PriceChangeFields.FloatPtr(info),
		ChangePercent: PriceChangePercentFields.FloatPtr(info),
		AsOf:          g.now(),
	}
	if ts, ok := PriceTimeFields.Float(info); ok && ts > 0 {
		q.AsOf = time.Unix(int64(ts), 0)
	}
	if c, ok := CurrencyFields.String(info); ok {
		q.Currency = c
	}
	return q, nil
}

// Snapshot 获取公司概况。每个字段独立读取，缺失的字段保持为 nil。
func (g *Gateway) Snapshot(ctx context.Context, symbol string) (*model.CompanySnapshot, error) {
	symbol = normalize(symbol)
	info, err := g.info(ctx, symbol, "company info", func(info Info) bool {
		return len(info) > 0
	})
	if err != nil {
		return nil, err
	}

	s := &model.CompanySnapshot{
		Name:                 NameFields.StringPtr(info),
		Symbol:               SymbolFields.StringPtr(info),
		CurrentPrice:         PriceFields.FloatPtr(info),
		MarketCap:            MarketCapFields.FloatPtr(info),
		Currency:             CurrencyFields.StringPtr(info),
		Sector:               SectorFields.StringPtr(info),
		Industry:             IndustryFields.StringPtr(info),
		City:                 CityFields.StringPtr(info),
		Country:              CountryFields.StringPtr(info),
		EPS:                  EPSFields.FloatPtr(info),
		PERatio:              PEFields.FloatPtr(info),
		FiftyTwoWeekLow:      FiftyTwoWeekLowFields.FloatPtr(info),
		FiftyTwoWeekHigh:     FiftyTwoWeekHighFields.FloatPtr(info),
		FiftyDayAverage:      FiftyDayAverageFields.FloatPtr(info),
		TwoHundredDayAverage: TwoHundredDayAverageFields.FloatPtr(info),
		Employees:            EmployeesFields.FloatPtr(info),
		TotalCash:            TotalCashFields.FloatPtr(info),
		FreeCashflow:         FreeCashflowFields.FloatPtr(info),
		OperatingCashflow:    OperatingCashflowFields.FloatPtr(info),
		EBITDA:               EBITDAFields.FloatPtr(info),
		RevenueGrowth:        RevenueGrowthFields.FloatPtr(info),
		GrossMargins:         GrossMarginsFields.FloatPtr(info),
		EBITDAMargins:        EBITDAMarginsFields.FloatPtr(info),
		DividendYield:        DividendYieldFields.FloatPtr(info),
		PriceChange:          PriceChangeFields.FloatPtr(info),
		PriceChangePercent:   PriceChangePercentFields.FloatPtr(info),
	}
	if s.Symbol == nil {
		s.Symbol = &symbol
	}
	return s, nil
}

// Statement 获取财报
func (g *Gateway) Statement(ctx context.Context, symbol string, kind model.StatementKind) (model.FinancialStatement, error) {
	symbol = normalize(symbol)
	what := string(kind) + " statement"
	if symbol == "" {
		return nil, &Unavailable{Symbol: symbol, What: what, Reason: "empty symbol"}
	}

	var reasons []string
	for _, p := range g.providers {
		var st model.FinancialStatement
		err := g.call(ctx, func() (err error) {
			st, err = p.Statement(ctx, symbol, kind)
			return err
		})
		if errors.Is(err, ErrNotSupported) {
			continue
		}
		if err != nil {
			reasons = append(reasons, fmt.Sprintf("%s: %v", p.Name(), err))
			continue
		}
		if len(st) == 0 {
			reasons = append(reasons, fmt.Sprintf("%s: no data", p.Name()))
			continue
		}
		return st, nil
	}
	return nil, g.unavailable(symbol, what, reasons)
}

// News 获取最新新闻，按发布时间倒序，最多 limit 条。没有新闻不算错误。
func (g *Gateway) News(ctx context.Context, symbol string, limit int) ([]model.NewsItem, error) {
	symbol = normalize(symbol)
	if symbol == "" {
		return nil, &Unavailable{Symbol: symbol, What: "news", Reason: "empty symbol"}
	}

	var reasons []string
	for _, p := range g.providers {
		var items []model.NewsItem
		err := g.call(ctx, func() (err error) {
			items, err = p.News(ctx, symbol, limit)
			return err
		})
		if errors.Is(err, ErrNotSupported) {
			continue
		}
		if err != nil {
			reasons = append(reasons, fmt.Sprintf("%s: %v", p.Name(), err))
			continue
		}

		sort.SliceStable(items, func(i, j int) bool {
			return items[i].PublishedAt.After(items[j].PublishedAt)
		})
		if limit > 0 && len(items) > limit {
			items = items[:limit]
		}
		return items, nil
	}
	return nil, g.unavailable(symbol, "news", reasons)
}

// info 依次询问各数据源，返回第一个满足 accept 的结果
func (g *Gateway) info(ctx context.Context, symbol, what string, accept func(Info) bool) (Info, error) {
	if symbol == "" {
		return nil, &Unavailable{Symbol: symbol, What: what, Reason: "empty symbol"}
	}

	var reasons []string
	for _, p := range g.providers {
		var info Info
		err := g.call(ctx, func() (err error) {
			info, err = p.Info(ctx, symbol)
			return err
		})
		if errors.Is(err, ErrNotSupported) {
			continue
		}
		if err != nil {
			logger.Log.Debugf("数据源 %s 获取 %s 失败 [%s]: %v", p.Name(), what, symbol, err)
			reasons = append(reasons, fmt.Sprintf("%s: %v", p.Name(), err))
			continue
		}
		if !accept(info) {
			reasons = append(reasons, fmt.Sprintf("%s: no %s data", p.Name(), what))
			continue
		}
		return info, nil
	}
	return nil, g.unavailable(symbol, what, reasons)
}

// call 限流后调用数据源，并把 panic 转成错误
func (g *Gateway) call(ctx context.Context, fn func() error) (err error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("provider panic: %v", r)
		}
	}()
	return fn()
}

func (g *Gateway) unavailable(symbol, what string, reasons []string) *Unavailable {
	reason := "no provider configured"
	if len(reasons) > 0 {
		reason = strings.Join(reasons, "; ")
	}
	return &Unavailable{Symbol: symbol, What: what, Reason: reason}
}

func normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
