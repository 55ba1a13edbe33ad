package pipeline

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/iWorld-y/stock_radar/app/stock_radar/pkg/logger"
	"github.com/iWorld-y/stock_radar/app/stock_radar/pkg/tools"
)

// Stage 流水线中的一个角色。input 是上一阶段的完整输出，第一阶段为空。
type Stage interface {
	Role() Role
	Run(ctx context.Context, symbol, input string) (string, error)
}

// Collector 并发调用全部数据工具，再让模型整理成结构化摘要
type Collector struct {
	llm     *LLM
	tools   []tools.Tool
	search  tools.Tool
	workers int
}

// NewCollector search 可以为空
func NewCollector(llm *LLM, symbolTools []tools.Tool, search tools.Tool, workers int) *Collector {
	if workers < 1 {
		workers = 1
	}
	return &Collector{llm: llm, tools: symbolTools, search: search, workers: workers}
}

func (c *Collector) Role() Role { return CollectorRole }

type toolCall struct {
	tool  tools.Tool
	input string
}

// Run 所有工具调用结束后才会请求模型
func (c *Collector) Run(ctx context.Context, symbol, _ string) (string, error) {
	calls := make([]toolCall, 0, len(c.tools)+1)
	for _, t := range c.tools {
		calls = append(calls, toolCall{tool: t, input: symbol})
	}
	if c.search != nil {
		calls = append(calls, toolCall{tool: c.search, input: symbol + " stock latest news and price movement"})
	}

	outputs := make([]string, len(calls))
	var g errgroup.Group
	g.SetLimit(c.workers)
	for i, call := range calls {
		g.Go(func() error {
			outputs[i] = call.tool.Invoke(ctx, call.input)
			logger.Log.Debugf("工具 %s [%s] 返回 %d 字节", call.tool.Name(), symbol, len(outputs[i]))
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(collectorTask, symbol))
	sb.WriteString("\n\nData gathered with your tools:\n\n")
	for i, call := range calls {
		sb.WriteString(section(call.tool.Name(), outputs[i]))
	}
	return c.llm.Generate(ctx, CollectorRole.SystemPrompt(), sb.String())
}

// Analyst 只基于 Collector 的摘要分析，不再调用数据工具
type Analyst struct {
	llm    *LLM
	search tools.Tool
}

func NewAnalyst(llm *LLM, search tools.Tool) *Analyst {
	return &Analyst{llm: llm, search: search}
}

func (a *Analyst) Role() Role { return AnalystRole }

func (a *Analyst) Run(ctx context.Context, symbol, input string) (string, error) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(analystTask, symbol))
	sb.WriteString("\n\n")
	sb.WriteString(section("Collected data", input))
	if a.search != nil {
		sb.WriteString(section("Industry context", a.search.Invoke(ctx, symbol+" industry peers valuation benchmarks")))
	}
	return a.llm.Generate(ctx, AnalystRole.SystemPrompt(), sb.String())
}

// Advisor 基于 Analyst 的分析给出投资建议
type Advisor struct {
	llm    *LLM
	search tools.Tool
}

func NewAdvisor(llm *LLM, search tools.Tool) *Advisor {
	return &Advisor{llm: llm, search: search}
}

func (a *Advisor) Role() Role { return AdvisorRole }

func (a *Advisor) Run(ctx context.Context, symbol, input string) (string, error) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(advisorTask, symbol))
	sb.WriteString("\n\n")
	sb.WriteString(section("Financial analysis", input))
	if a.search != nil {
		sb.WriteString(section("Market sentiment", a.search.Invoke(ctx, symbol+" analyst price target consensus")))
	}
	return a.llm.Generate(ctx, AdvisorRole.SystemPrompt(), sb.String())
}
