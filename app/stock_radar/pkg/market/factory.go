package market

import (
	"fmt"
	"time"

	"github.com/iWorld-y/stock_radar/app/stock_radar/pkg/config"
)

// NewGatewayFromConfig 按配置的顺序创建数据源
func NewGatewayFromConfig(cfg config.MarketDataConfig) (*Gateway, error) {
	timeout := time.Duration(cfg.Timeout) * time.Second

	providers := make([]Provider, 0, len(cfg.Providers))
	for _, name := range cfg.Providers {
		switch name {
		case "yahoo":
			providers = append(providers, NewYahooProvider(cfg.Proxy, timeout))
		case "financego":
			providers = append(providers, NewFinanceGoProvider())
		default:
			return nil, fmt.Errorf("unsupported market data provider: %s", name)
		}
	}
	return NewGateway(providers, WithRateLimit(cfg.RPS)), nil
}
