package market

import (
	"context"
	"encoding/json"
	"fmt"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/quote"

	"github.com/iWorld-y/stock_radar/app/stock_radar/pkg/model"
)

// FinanceGoProvider 基于 piquette/finance-go 的备用数据源，只提供报价类字段
type FinanceGoProvider struct {
	get func(symbol string) (*finance.Quote, error)
}

// NewFinanceGoProvider 创建 finance-go 数据源
func NewFinanceGoProvider() *FinanceGoProvider {
	return &FinanceGoProvider{get: quote.Get}
}

func (p *FinanceGoProvider) Name() string { return "financego" }

// Info 报价结构体按 JSON 字段名转成 Info，零值视为缺失
func (p *FinanceGoProvider) Info(ctx context.Context, symbol string) (Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q, err := p.get(symbol)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return nil, fmt.Errorf("no quote for %s", symbol)
	}

	data, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("encode quote: %w", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode quote: %w", err)
	}

	info := Info{}
	for k, v := range raw {
		switch t := v.(type) {
		case float64:
			if t != 0 {
				info[k] = t
			}
		case string:
			if t != "" {
				info[k] = t
			}
		}
	}
	return info, nil
}

func (p *FinanceGoProvider) Statement(context.Context, string, model.StatementKind) (model.FinancialStatement, error) {
	return nil, ErrNotSupported
}

func (p *FinanceGoProvider) News(context.Context, string, int) ([]model.NewsItem, error) {
	return nil, ErrNotSupported
}
