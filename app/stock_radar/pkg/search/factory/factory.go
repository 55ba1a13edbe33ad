package factory

import (
	"fmt"

	"github.com/iWorld-y/stock_radar/app/stock_radar/pkg/config"
	"github.com/iWorld-y/stock_radar/app/stock_radar/pkg/duckduckgo"
	"github.com/iWorld-y/stock_radar/app/stock_radar/pkg/search"
	"github.com/iWorld-y/stock_radar/app/stock_radar/pkg/searxng"
	"github.com/iWorld-y/stock_radar/app/stock_radar/pkg/tavily"
)

// NewSearcher 根据配置创建搜索实例，开启 fetch_content 时包一层正文抓取
func NewSearcher(cfg *config.SearchConfig) (search.Searcher, error) {
	var s search.Searcher

	switch cfg.Provider {
	case "tavily":
		if cfg.Tavily.APIKey == "" {
			return nil, fmt.Errorf("tavily api key is missing")
		}
		s = tavily.NewClient(cfg.Tavily.APIKey)

	case "searxng":
		if cfg.SearXNG.BaseURL == "" {
			return nil, fmt.Errorf("searxng base url is missing")
		}
		s = searxng.NewClient(cfg.SearXNG.BaseURL, cfg.SearXNG.Timeout)

	case "duckduckgo":
		s = duckduckgo.NewClient(cfg.DuckDuckGo.BaseURL, cfg.DuckDuckGo.Timeout)

	case "":
		return nil, fmt.Errorf("search provider not configured")

	default:
		return nil, fmt.Errorf("unknown search provider: %s", cfg.Provider)
	}

	if cfg.FetchContent {
		s = search.NewEnricher(s, nil)
	}
	return s, nil
}
