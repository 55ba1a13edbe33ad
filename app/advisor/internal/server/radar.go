package server

import (
	"context"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/iWorld-y/stock_radar/app/advisor/internal/conf"
	"github.com/iWorld-y/stock_radar/app/stock_radar/pkg/config"
	"github.com/iWorld-y/stock_radar/app/stock_radar/pkg/engine"
	srLogger "github.com/iWorld-y/stock_radar/app/stock_radar/pkg/logger"
	"github.com/iWorld-y/stock_radar/app/stock_radar/pkg/market"
)

// RadarConfig 将 internal/conf.Radar 转换为 pkg/config.Config，并应用环境变量和默认值
func RadarConfig(c *conf.Radar) *config.Config {
	cfg := &config.Config{}
	if c == nil {
		c = &conf.Radar{}
	}

	if c.Llm != nil {
		cfg.LLM = config.LLMConfig{
			BaseURL: c.Llm.BaseUrl,
			APIKey:  c.Llm.ApiKey,
			Model:   c.Llm.Model,
		}
	}
	if s := c.Search; s != nil {
		cfg.Search.Provider = s.Provider
		cfg.Search.MaxResults = int(s.MaxResults)
		cfg.Search.FetchContent = s.FetchContent
		if s.Tavily != nil {
			cfg.Search.Tavily.APIKey = s.Tavily.ApiKey
		}
		if s.Searxng != nil {
			cfg.Search.SearXNG = config.SearXNGConfig{
				BaseURL: s.Searxng.BaseUrl,
				Timeout: int(s.Searxng.Timeout),
			}
		}
		if s.Duckduckgo != nil {
			cfg.Search.DuckDuckGo = config.DuckDuckGoConfig{
				BaseURL: s.Duckduckgo.BaseUrl,
				Timeout: int(s.Duckduckgo.Timeout),
			}
		}
	}
	if m := c.MarketData; m != nil {
		cfg.MarketData = config.MarketDataConfig{
			Providers: m.Providers,
			Proxy:     m.Proxy,
			Timeout:   int(m.Timeout),
			RPS:       int(m.Rps),
		}
	}
	if a := c.Analysis; a != nil {
		cfg.Analysis.Timeout = int(a.Timeout)
		if a.MaxRetries != nil {
			n := int(*a.MaxRetries)
			cfg.Analysis.MaxRetries = &n
		}
	}
	if l := c.Log; l != nil {
		cfg.Log = config.LogConfig{Level: l.Level, File: l.File}
	}
	if cc := c.Concurrency; cc != nil {
		cfg.Concurrency = config.ConcurrencyConfig{
			QPS:     int(cc.Qps),
			RPM:     int(cc.Rpm),
			Workers: int(cc.Workers),
		}
	}

	cfg.ApplyEnv()
	cfg.ApplyDefaults()
	return cfg
}

// NewRadarEngine 初始化 stock_radar 分析引擎和行情网关
func NewRadarEngine(c *conf.Radar, logger log.Logger) (*engine.Engine, *market.Gateway, func(), error) {
	helper := log.NewHelper(logger)
	cfg := RadarConfig(c)
	if err := cfg.Validate(); err != nil {
		helper.Errorf("Invalid radar config: %v", err)
		return nil, nil, nil, err
	}

	// 初始化日志
	if err := srLogger.InitLogger(cfg.Log.Level, cfg.Log.File); err != nil {
		helper.Errorf("Failed to init stock_radar logger: %v", err)
		_ = srLogger.InitLogger("info", "") // 降级处理
	}

	gateway, err := market.NewGatewayFromConfig(cfg.MarketData)
	if err != nil {
		helper.Errorf("Failed to init market gateway: %v", err)
		return nil, nil, nil, err
	}

	eng, err := engine.NewEngine(context.Background(), cfg, gateway)
	if err != nil {
		helper.Errorf("Failed to init engine: %v", err)
		return nil, nil, nil, err
	}

	cleanup := func() {
		helper.Info("Cleaning up stock_radar engine")
	}
	return eng, gateway, cleanup, nil
}
