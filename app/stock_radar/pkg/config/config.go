package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 项目配置结构体
type Config struct {
	LLM         LLMConfig         `yaml:"llm"`
	Search      SearchConfig      `yaml:"search"`
	MarketData  MarketDataConfig  `yaml:"market_data"`
	Analysis    AnalysisConfig    `yaml:"analysis"`
	Log         LogConfig         `yaml:"log"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
}

// LLMConfig LLM 相关配置
type LLMConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

// SearchConfig 搜索相关配置
type SearchConfig struct {
	Provider   string           `yaml:"provider"`
	MaxResults int              `yaml:"max_results"`
	Tavily     TavilyConfig     `yaml:"tavily"`
	SearXNG    SearXNGConfig    `yaml:"searxng"`
	DuckDuckGo DuckDuckGoConfig `yaml:"duckduckgo"`
	// FetchContent 搜索摘要过短时是否抓取原文
	FetchContent bool `yaml:"fetch_content"`
}

// TavilyConfig Tavily 配置
type TavilyConfig struct {
	APIKey string `yaml:"api_key"`
}

// SearXNGConfig SearXNG 配置
type SearXNGConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout int    `yaml:"timeout"`
}

// DuckDuckGoConfig DuckDuckGo HTML 搜索配置
type DuckDuckGoConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout int    `yaml:"timeout"`
}

// MarketDataConfig 行情数据源配置
type MarketDataConfig struct {
	// Providers 按顺序尝试，前一个失败时使用下一个
	Providers []string `yaml:"providers"`
	Proxy     string   `yaml:"proxy"`
	Timeout   int      `yaml:"timeout"`
	// RPS 每秒请求上游的次数上限
	RPS int `yaml:"rps"`
}

// AnalysisConfig 分析流程配置
type AnalysisConfig struct {
	// Timeout 单次分析的整体超时（秒）
	Timeout int `yaml:"timeout"`
	// MaxRetries LLM 被限流时的最大重试次数，未配置时为 DefaultMaxRetries，0 表示不重试
	MaxRetries *int `yaml:"max_retries"`
}

// DefaultMaxRetries 未配置 max_retries 时的重试次数
const DefaultMaxRetries = 3

// Retries 返回生效的重试次数
func (a AnalysisConfig) Retries() int {
	if a.MaxRetries == nil {
		return DefaultMaxRetries
	}
	return *a.MaxRetries
}

// LogConfig 日志相关配置
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// ConcurrencyConfig 并发控制配置
type ConcurrencyConfig struct {
	QPS int `yaml:"qps"`
	RPM int `yaml:"rpm"`
	// Workers Collector 阶段并发调用工具的数量
	Workers int `yaml:"workers"`
}

// AnalysisTimeout 返回整体超时时间
func (c *Config) AnalysisTimeout() time.Duration {
	return time.Duration(c.Analysis.Timeout) * time.Second
}

// LoadConfig 从指定路径加载配置，然后应用环境变量覆盖和默认值
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.ApplyEnv()
	cfg.ApplyDefaults()
	return cfg, nil
}

// ApplyEnv 环境变量覆盖
func (c *Config) ApplyEnv() {
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("TAVILY_API_KEY"); v != "" {
		c.Search.Tavily.APIKey = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" && c.MarketData.Proxy == "" {
		c.MarketData.Proxy = v
	}
}

// ApplyDefaults 填充默认值
func (c *Config) ApplyDefaults() {
	if c.Search.Provider == "" {
		if c.Search.Tavily.APIKey != "" {
			c.Search.Provider = "tavily"
		} else {
			c.Search.Provider = "duckduckgo"
		}
	}
	if c.Search.MaxResults == 0 {
		c.Search.MaxResults = 5
	}
	if len(c.MarketData.Providers) == 0 {
		c.MarketData.Providers = []string{"yahoo", "financego"}
	}
	if c.MarketData.Timeout == 0 {
		c.MarketData.Timeout = 30
	}
	if c.MarketData.RPS == 0 {
		c.MarketData.RPS = 5
	}
	if c.Analysis.Timeout == 0 {
		c.Analysis.Timeout = 300
	}
	if c.Analysis.MaxRetries == nil {
		n := DefaultMaxRetries
		c.Analysis.MaxRetries = &n
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Concurrency.QPS == 0 {
		c.Concurrency.QPS = 1
	}
	if c.Concurrency.RPM == 0 {
		c.Concurrency.RPM = 30
	}
	if c.Concurrency.Workers == 0 {
		c.Concurrency.Workers = 3
	}
}

// Validate 检查必填项
func (c *Config) Validate() error {
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	if c.LLM.APIKey == "" {
		return fmt.Errorf("llm.api_key is required")
	}
	if c.Concurrency.Workers < 1 {
		return fmt.Errorf("concurrency.workers must be positive")
	}
	if c.Analysis.Timeout < 1 {
		return fmt.Errorf("analysis.timeout must be positive")
	}
	if c.Analysis.Retries() < 0 {
		return fmt.Errorf("analysis.max_retries must not be negative")
	}
	return nil
}
