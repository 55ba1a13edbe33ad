package conf

type Bootstrap struct {
	Server *Server `json:"server"`
	Data   *Data   `json:"data"`
	Auth   *Auth   `json:"auth"`
	Radar  *Radar  `json:"radar"`
}

// Auth 账号服务签发 JWT 使用的共享密钥
type Auth struct {
	JwtKey string `json:"jwt_key"`
}

type Server struct {
	Http *HTTP `json:"http"`
}

type HTTP struct {
	Addr string `json:"addr"`
	// Timeout 为空时不设请求级超时，分析由 radar.analysis.timeout 控制
	Timeout string `json:"timeout"`
}

type Data struct {
	Database *Database `json:"database"`
}

type Database struct {
	Driver string `json:"driver"`
	Source string `json:"source"`
}

// Radar 分析引擎配置，与 stock_radar 的 config.yaml 同构
type Radar struct {
	Llm         *LLM         `json:"llm"`
	Search      *Search      `json:"search"`
	MarketData  *MarketData  `json:"market_data"`
	Analysis    *Analysis    `json:"analysis"`
	Log         *Log         `json:"log"`
	Concurrency *Concurrency `json:"concurrency"`
}

type LLM struct {
	BaseUrl string `json:"base_url"`
	ApiKey  string `json:"api_key"`
	Model   string `json:"model"`
}

type Search struct {
	Provider     string      `json:"provider"`
	MaxResults   int32       `json:"max_results"`
	FetchContent bool        `json:"fetch_content"`
	Tavily       *Tavily     `json:"tavily"`
	Searxng      *SearXNG    `json:"searxng"`
	Duckduckgo   *DuckDuckGo `json:"duckduckgo"`
}

type Tavily struct {
	ApiKey string `json:"api_key"`
}

type SearXNG struct {
	BaseUrl string `json:"base_url"`
	Timeout int32  `json:"timeout"`
}

type DuckDuckGo struct {
	BaseUrl string `json:"base_url"`
	Timeout int32  `json:"timeout"`
}

type MarketData struct {
	Providers []string `json:"providers"`
	Proxy     string   `json:"proxy"`
	Timeout   int32    `json:"timeout"`
	Rps       int32    `json:"rps"`
}

type Analysis struct {
	Timeout    int32  `json:"timeout"`
	MaxRetries *int32 `json:"max_retries"`
}

type Log struct {
	Level string `json:"level"`
	File  string `json:"file"`
}

type Concurrency struct {
	Qps     int32 `json:"qps"`
	Rpm     int32 `json:"rpm"`
	Workers int32 `json:"workers"`
}
