package domain

import "github.com/shopspring/decimal"

// Position 用户持有的一只股票
type Position struct {
	Symbol        string
	Shares        decimal.Decimal
	PurchasePrice decimal.Decimal
	PurchaseDate  string
	Notes         string
}

// Invested 买入成本
func (p *Position) Invested() decimal.Decimal {
	return p.Shares.Mul(p.PurchasePrice)
}

// PositionView 带现价估值的持仓，拿不到现价时估值字段省略
type PositionView struct {
	Symbol             string   `json:"symbol"`
	Shares             float64  `json:"shares"`
	PurchasePrice      float64  `json:"purchase_price"`
	PurchaseDate       string   `json:"purchase_date"`
	Notes              string   `json:"notes"`
	CurrentPrice       *float64 `json:"current_price,omitempty"`
	CurrentValue       *float64 `json:"current_value,omitempty"`
	GainLoss           *float64 `json:"gain_loss,omitempty"`
	GainLossPercentage *float64 `json:"gain_loss_percentage,omitempty"`
}

// PortfolioView 持仓列表及汇总
type PortfolioView struct {
	Portfolio     []*PositionView `json:"portfolio"`
	TotalValue    float64         `json:"total_value"`
	TotalInvested float64         `json:"total_invested"`
	TotalGainLoss float64         `json:"total_gain_loss"`
}
