package search

import (
	"context"
	"time"
)

// 搜索主题，各搜索引擎按自己的方式映射
const (
	TopicGeneral = "general"
	TopicNews    = "news"
)

// DateLayout StartDate / EndDate 的格式
const DateLayout = time.DateOnly

// Searcher 各搜索引擎的统一接口
type Searcher interface {
	Search(ctx context.Context, req *Request) (*Response, error)
}

// Request 搜索请求。Topic 为空等同 TopicGeneral，日期为空表示不限时间。
type Request struct {
	Query      string
	Topic      string
	MaxResults int
	// IncludeRawContent 要求引擎附带网页原文，不支持的引擎忽略
	IncludeRawContent bool
	StartDate         string
	EndDate           string
}

// Window 返回 StartDate 到 now 的跨度，StartDate 为空或无法解析时 ok 为 false
func (r *Request) Window(now time.Time) (time.Duration, bool) {
	if r.StartDate == "" {
		return 0, false
	}
	start, err := time.ParseInLocation(DateLayout, r.StartDate, now.Location())
	if err != nil {
		return 0, false
	}
	return now.Sub(start), true
}

// Response 搜索结果列表
type Response struct {
	Results []Result
}

// Result 单条搜索结果，RawContent 只在引擎返回原文或抓取成功时有值
type Result struct {
	Title         string
	URL           string
	Content       string
	RawContent    string
	Score         float64
	PublishedDate string
}
