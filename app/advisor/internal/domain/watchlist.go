package domain

// WatchItem 自选股及其当前行情。取数失败时只有 Symbol 和 Error
type WatchItem struct {
	Symbol             string   `json:"symbol"`
	Name               string   `json:"name,omitempty"`
	CurrentPrice       *float64 `json:"current_price,omitempty"`
	PriceChange        *float64 `json:"price_change,omitempty"`
	PriceChangePercent *float64 `json:"price_change_percent,omitempty"`
	Sector             string   `json:"sector,omitempty"`
	PERatio            *float64 `json:"pe_ratio,omitempty"`
	Error              string   `json:"error,omitempty"`
}
