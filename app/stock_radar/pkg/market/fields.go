package market

import (
	"encoding/json"
	"strconv"
)

// Info 数据源返回的扁平化字段表（键沿用上游字段名）
type Info map[string]any

// Float 读取数值字段，缺失或类型不符时返回 false
func (i Info) Float(key string) (float64, bool) {
	switch n := i[key].(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// String 读取非空字符串字段
func (i Info) String(key string) (string, bool) {
	s, ok := i[key].(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// FieldChain 同一数据点的有序备选字段，依次尝试，取第一个存在的
type FieldChain []string

// Float 按顺序读取第一个存在的数值
func (c FieldChain) Float(info Info) (float64, bool) {
	for _, key := range c {
		if v, ok := info.Float(key); ok {
			return v, true
		}
	}
	return 0, false
}

// String 按顺序读取第一个存在的字符串
func (c FieldChain) String(info Info) (string, bool) {
	for _, key := range c {
		if v, ok := info.String(key); ok {
			return v, true
		}
	}
	return "", false
}

// FloatPtr 缺失时返回 nil
func (c FieldChain) FloatPtr(info Info) *float64 {
	if v, ok := c.Float(info); ok {
		return &v
	}
	return nil
}

// StringPtr 缺失时返回 nil
func (c FieldChain) StringPtr(info Info) *string {
	if v, ok := c.String(info); ok {
		return &v
	}
	return nil
}

// 各数据点的备选字段。交易时段不同，上游可能只填其中一个。
var (
	PriceFields                = FieldChain{"currentPrice", "regularMarketPrice"}
	PriceChangeFields          = FieldChain{"regularMarketChange"}
	PriceChangePercentFields   = FieldChain{"regularMarketChangePercent"}
	PriceTimeFields            = FieldChain{"regularMarketTime"}
	NameFields                 = FieldChain{"shortName", "longName"}
	SymbolFields               = FieldChain{"symbol"}
	MarketCapFields            = FieldChain{"marketCap", "enterpriseValue"}
	CurrencyFields             = FieldChain{"currency", "financialCurrency"}
	SectorFields               = FieldChain{"sector"}
	IndustryFields             = FieldChain{"industry"}
	CityFields                 = FieldChain{"city"}
	CountryFields              = FieldChain{"country"}
	EPSFields                  = FieldChain{"trailingEps", "epsTrailingTwelveMonths"}
	PEFields                   = FieldChain{"trailingPE"}
	FiftyTwoWeekLowFields      = FieldChain{"fiftyTwoWeekLow"}
	FiftyTwoWeekHighFields     = FieldChain{"fiftyTwoWeekHigh"}
	FiftyDayAverageFields      = FieldChain{"fiftyDayAverage"}
	TwoHundredDayAverageFields = FieldChain{"twoHundredDayAverage"}
	EmployeesFields            = FieldChain{"fullTimeEmployees"}
	TotalCashFields            = FieldChain{"totalCash"}
	FreeCashflowFields         = FieldChain{"freeCashflow"}
	OperatingCashflowFields    = FieldChain{"operatingCashflow"}
	EBITDAFields               = FieldChain{"ebitda"}
	RevenueGrowthFields        = FieldChain{"revenueGrowth"}
	GrossMarginsFields         = FieldChain{"grossMargins"}
	EBITDAMarginsFields        = FieldChain{"ebitdaMargins"}
	DividendYieldFields        = FieldChain{"dividendYield", "trailingAnnualDividendYield"}
)
