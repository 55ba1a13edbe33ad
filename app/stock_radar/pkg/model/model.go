package model

import "time"

// Quote 实时报价；只有拿到价格时才存在
type Quote struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	Change        *float64  `json:"change"`
	ChangePercent *float64  `json:"change_percent"`
	Currency      string    `json:"currency,omitempty"`
	AsOf          time.Time `json:"as_of"`
}

// CompanySnapshot 公司概况与财务快照，任何字段都可能缺失（null）
type CompanySnapshot struct {
	Name                 *string  `json:"Name"`
	Symbol               *string  `json:"Symbol"`
	CurrentPrice         *float64 `json:"Current Stock Price"`
	MarketCap            *float64 `json:"Market Cap"`
	Currency             *string  `json:"Currency"`
	Sector               *string  `json:"Sector"`
	Industry             *string  `json:"Industry"`
	City                 *string  `json:"City"`
	Country              *string  `json:"Country"`
	EPS                  *float64 `json:"EPS"`
	PERatio              *float64 `json:"P/E Ratio"`
	FiftyTwoWeekLow      *float64 `json:"52 Week Low"`
	FiftyTwoWeekHigh     *float64 `json:"52 Week High"`
	FiftyDayAverage      *float64 `json:"50 Day Average"`
	TwoHundredDayAverage *float64 `json:"200 Day Average"`
	Employees            *float64 `json:"Employees"`
	TotalCash            *float64 `json:"Total Cash"`
	FreeCashflow         *float64 `json:"Free Cash Flow"`
	OperatingCashflow    *float64 `json:"Operating Cash Flow"`
	EBITDA               *float64 `json:"EBITDA"`
	RevenueGrowth        *float64 `json:"Revenue Growth"`
	GrossMargins         *float64 `json:"Gross Margins"`
	EBITDAMargins        *float64 `json:"Ebitda Margins"`
	DividendYield        *float64 `json:"Dividend Yield"`
	PriceChange          *float64 `json:"Price Change"`
	PriceChangePercent   *float64 `json:"Price Change Percent"`
}

// StatementKind 财报类型
type StatementKind string

const (
	IncomeStatement StatementKind = "income"
	BalanceSheet    StatementKind = "balance"
)

// FinancialStatement 以财报期为键、科目为列的表，原样保留
type FinancialStatement map[string]map[string]any

// NewsItem 单条新闻
type NewsItem struct {
	Title          string    `json:"title"`
	Publisher      string    `json:"publisher"`
	Link           string    `json:"link"`
	PublishedAt    time.Time `json:"published_at"`
	Category       string    `json:"type"`
	RelatedSymbols []string  `json:"relatedTickers"`
}

// StageOutput 单个阶段产出的叙述文本
type StageOutput struct {
	Role string
	Text string
}

// NewsBrief 结构化数据中的新闻摘要
type NewsBrief struct {
	Title         string `json:"title"`
	Publisher     string `json:"publisher"`
	Link          string `json:"link"`
	PublishedDate string `json:"published_date"`
}

// MarketData 编排器直接抓取的行情快照，缺失字段省略
type MarketData struct {
	CompanyName        *string     `json:"company_name,omitempty"`
	Symbol             string      `json:"symbol,omitempty"`
	CurrentPrice       *float64    `json:"current_price,omitempty"`
	PriceChange        *float64    `json:"price_change,omitempty"`
	PriceChangePercent *float64    `json:"price_change_percent,omitempty"`
	MarketCap          *float64    `json:"market_cap,omitempty"`
	Sector             *string     `json:"sector,omitempty"`
	Industry           *string     `json:"industry,omitempty"`
	PERatio            *float64    `json:"pe_ratio,omitempty"`
	DividendYield      *float64    `json:"dividend_yield,omitempty"`
	FiftyTwoWeekLow    *float64    `json:"52_week_low,omitempty"`
	FiftyTwoWeekHigh   *float64    `json:"52_week_high,omitempty"`
	News               []NewsBrief `json:"news,omitempty"`
}

// AnalysisResult 单次分析结果，按请求创建，不持久化
type AnalysisResult struct {
	Symbol       string     `json:"symbol"`
	AnalysisDate string     `json:"analysis_date"`
	Data         MarketData `json:"data"`
	// Analysis 各阶段输出，键为角色
	Analysis       map[string]string `json:"analysis"`
	Recommendation Recommendation    `json:"recommendation"`
	FullAnalysis   string            `json:"full_analysis"`
}

// Action 投资动作
type Action string

const (
	ActionBuy  Action = "Buy"
	ActionHold Action = "Hold"
	ActionSell Action = "Sell"
)

// Horizon 投资期限
type Horizon string

const (
	HorizonShort  Horizon = "Short-term"
	HorizonMedium Horizon = "Medium-term"
	HorizonLong   Horizon = "Long-term"
)

// Recommendation 从叙述中提取出的建议，字段缺失时省略
type Recommendation struct {
	Action      Action   `json:"action,omitempty"`
	TargetPrice *float64 `json:"target_price,omitempty"`
	TimeHorizon Horizon  `json:"time_horizon,omitempty"`
}

// Empty 是否什么都没提取到
func (r Recommendation) Empty() bool {
	return r.Action == "" && r.TargetPrice == nil && r.TimeHorizon == ""
}
