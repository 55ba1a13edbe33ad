package engine

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/iWorld-y/stock_radar/app/stock_radar/pkg/config"
	"github.com/iWorld-y/stock_radar/app/stock_radar/pkg/extract"
	"github.com/iWorld-y/stock_radar/app/stock_radar/pkg/logger"
	"github.com/iWorld-y/stock_radar/app/stock_radar/pkg/market"
	"github.com/iWorld-y/stock_radar/app/stock_radar/pkg/model"
	"github.com/iWorld-y/stock_radar/app/stock_radar/pkg/pipeline"
	"github.com/iWorld-y/stock_radar/app/stock_radar/pkg/search/factory"
	"github.com/iWorld-y/stock_radar/app/stock_radar/pkg/tools"
)

// DirectNewsLimit 结构化数据中附带的新闻条数
const DirectNewsLimit = 5

var (
	// ErrInvalidSymbol 股票代码为空或格式不合法，此时不会发出任何网络请求
	ErrInvalidSymbol = errors.New("invalid symbol")
	// ErrAnalysisTimeout 整体分析超过 analysis.timeout
	ErrAnalysisTimeout = errors.New("analysis timed out")
)

var symbolPattern = regexp.MustCompile(`^\^?[A-Z0-9][A-Z0-9.=-]{0,19}$`)

// AnalysisError 流水线失败
type AnalysisError struct {
	Err error
}

func (e *AnalysisError) Error() string {
	return "analysis failed: " + e.Err.Error()
}

func (e *AnalysisError) Unwrap() error { return e.Err }

// Runner 执行角色流水线
type Runner interface {
	Run(ctx context.Context, symbol string, progress pipeline.ProgressFunc) (*pipeline.Transcript, error)
}

// Engine 分析编排器
type Engine struct {
	runner  Runner
	market  tools.MarketData
	timeout time.Duration
	now     func() time.Time
}

// New 组装编排器，timeout <= 0 表示不设整体超时
func New(runner Runner, md tools.MarketData, timeout time.Duration) *Engine {
	return &Engine{
		runner:  runner,
		market:  md,
		timeout: timeout,
		now:     time.Now,
	}
}

// NewEngine 按配置创建模型、搜索和流水线。行情网关由调用方创建并注入。
func NewEngine(ctx context.Context, cfg *config.Config, gateway *market.Gateway) (*Engine, error) {
	// 初始化 LLM
	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM 初始化失败: %w", err)
	}

	// 初始化限流器
	limit := rate.Limit(float64(cfg.Concurrency.RPM) / 60.0)
	burst := cfg.Concurrency.QPS
	limiter := rate.NewLimiter(limit, burst)

	// 初始化搜索客户端
	searcher, err := factory.NewSearcher(&cfg.Search)
	if err != nil {
		return nil, fmt.Errorf("搜索客户端初始化失败: %w", err)
	}

	llm := pipeline.NewLLM(chatModel, limiter, cfg.Analysis.Retries())
	webSearch := tools.NewWebSearch(searcher, cfg.Search.MaxResults)
	p := pipeline.NewDefault(llm, gateway, webSearch.News(tools.NewsWindowDays), webSearch, cfg.Concurrency.Workers)

	return New(p, gateway, cfg.AnalysisTimeout()), nil
}

// RunOptions 运行选项
type RunOptions struct {
	Symbol           string
	ProgressCallback func(status string, progress int)
}

// NormalizeSymbol 去空白并转大写，格式不合法时返回 ErrInvalidSymbol
func NormalizeSymbol(symbol string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if !symbolPattern.MatchString(s) {
		return "", ErrInvalidSymbol
	}
	return s, nil
}

type outcome struct {
	transcript *pipeline.Transcript
	err        error
}

// Analyze 执行一次完整分析
func (e *Engine) Analyze(ctx context.Context, opts RunOptions) (*model.AnalysisResult, error) {
	symbol, err := NormalizeSymbol(opts.Symbol)
	if err != nil {
		return nil, err
	}

	log := logger.Log.WithFields(logrus.Fields{"run_id": uuid.NewString(), "symbol": symbol})
	log.Infof("开始分析")
	progress := func(status string, p int) {
		if opts.ProgressCallback != nil {
			opts.ProgressCallback(status, p)
		}
	}
	progress("starting", 0)

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	// 上游调用不一定响应取消，超时在这里强制生效
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("pipeline panic: %v", r)}
			}
		}()
		tr, err := e.runner.Run(ctx, symbol, func(status string, p int) {
			progress(status, p*80/100)
		})
		done <- outcome{transcript: tr, err: err}
	}()

	var res outcome
	select {
	case <-ctx.Done():
		return nil, e.ctxError(ctx, log)
	case res = <-done:
	}
	if res.err != nil {
		if ctx.Err() != nil {
			return nil, e.ctxError(ctx, log)
		}
		log.Errorf("分析失败: %v", res.err)
		return nil, &AnalysisError{Err: res.err}
	}
	if res.transcript == nil {
		return nil, &AnalysisError{Err: errors.New("pipeline returned no output")}
	}

	progress("fetching market data", 85)
	data, err := e.fetchMarketData(ctx, symbol, log)
	if err != nil {
		return nil, err
	}

	result := &model.AnalysisResult{
		Symbol:         symbol,
		AnalysisDate:   e.now().Format("02-Jan-2006"),
		Data:           data,
		Analysis:       res.transcript.ByRole(),
		Recommendation: extract.Recommendation(res.transcript.Final()),
		FullAnalysis:   res.transcript.Full(),
	}
	if result.Recommendation.Empty() {
		log.Warnf("未能从结论中提取投资建议")
	}

	progress("completed", 100)
	log.Infof("分析完成: %s", result.Recommendation.Action)
	return result, nil
}

func (e *Engine) ctxError(ctx context.Context, log *logrus.Entry) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		log.Errorf("分析超时 (%v)", e.timeout)
		return ErrAnalysisTimeout
	}
	log.Warnf("分析被取消: %v", ctx.Err())
	return &AnalysisError{Err: ctx.Err()}
}

// fetchMarketData 与流水线共用同一个截止时间，行情源不响应 ctx 时也不会拖过超时
func (e *Engine) fetchMarketData(ctx context.Context, symbol string, log *logrus.Entry) (model.MarketData, error) {
	done := make(chan model.MarketData, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Errorf("获取行情数据 panic: %v", r)
				done <- model.MarketData{Symbol: symbol}
			}
		}()
		done <- e.marketData(ctx, symbol, log)
	}()

	select {
	case <-ctx.Done():
		return model.MarketData{}, e.ctxError(ctx, log)
	case data := <-done:
		return data, nil
	}
}

// marketData 直接从网关拉取行情快照，每一项失败只记录日志
func (e *Engine) marketData(ctx context.Context, symbol string, log *logrus.Entry) model.MarketData {
	data := model.MarketData{Symbol: symbol}

	if q, err := e.market.Quote(ctx, symbol); err != nil {
		log.Warnf("获取报价失败: %v", err)
	} else if q != nil {
		data.CurrentPrice = &q.Price
		data.PriceChange = q.Change
		data.PriceChangePercent = q.ChangePercent
	}

	if s, err := e.market.Snapshot(ctx, symbol); err != nil {
		log.Warnf("获取公司概况失败: %v", err)
	} else if s != nil {
		data.CompanyName = s.Name
		if s.Symbol != nil {
			data.Symbol = *s.Symbol
		}
		data.MarketCap = s.MarketCap
		data.Sector = s.Sector
		data.Industry = s.Industry
		data.PERatio = s.PERatio
		data.DividendYield = s.DividendYield
		data.FiftyTwoWeekLow = s.FiftyTwoWeekLow
		data.FiftyTwoWeekHigh = s.FiftyTwoWeekHigh
		if data.CurrentPrice == nil {
			data.CurrentPrice = s.CurrentPrice
		}
		if data.PriceChange == nil {
			data.PriceChange = s.PriceChange
		}
		if data.PriceChangePercent == nil {
			data.PriceChangePercent = s.PriceChangePercent
		}
	}

	if news, err := e.market.News(ctx, symbol, DirectNewsLimit); err != nil {
		log.Warnf("获取新闻失败: %v", err)
	} else {
		for _, n := range news {
			data.News = append(data.News, model.NewsBrief{
				Title:         n.Title,
				Publisher:     n.Publisher,
				Link:          n.Link,
				PublishedDate: n.PublishedAt.Format(time.DateOnly),
			})
		}
	}
	return data
}
