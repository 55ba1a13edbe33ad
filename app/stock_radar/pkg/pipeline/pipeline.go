package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/iWorld-y/stock_radar/app/stock_radar/pkg/logger"
	"github.com/iWorld-y/stock_radar/app/stock_radar/pkg/model"
	"github.com/iWorld-y/stock_radar/app/stock_radar/pkg/tools"
)

// ProgressFunc 进度回调，progress 取值 0-100
type ProgressFunc func(status string, progress int)

// StageError 某个阶段失败，之后的阶段不会执行
type StageError struct {
	Role string
	Err  error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Role, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Transcript 各阶段输出，按执行顺序排列
type Transcript struct {
	Outputs []model.StageOutput
}

// Final 最后一个阶段的输出
func (t *Transcript) Final() string {
	if len(t.Outputs) == 0 {
		return ""
	}
	return t.Outputs[len(t.Outputs)-1].Text
}

// ByRole 以角色名为键
func (t *Transcript) ByRole() map[string]string {
	m := make(map[string]string, len(t.Outputs))
	for _, o := range t.Outputs {
		m[o.Role] = o.Text
	}
	return m
}

// Full 所有阶段的输出，带角色标题
func (t *Transcript) Full() string {
	parts := make([]string, 0, len(t.Outputs))
	for _, o := range t.Outputs {
		parts = append(parts, fmt.Sprintf("## %s\n\n%s", o.Role, o.Text))
	}
	return strings.Join(parts, "\n\n")
}

// Pipeline 顺序执行的阶段序列
type Pipeline struct {
	stages []Stage
}

// New 按给定顺序组装
func New(stages ...Stage) *Pipeline {
	return &Pipeline{stages: stages}
}

// NewDefault Collector -> Analyst -> Advisor。news 只给 Collector 用，其余阶段用通用搜索
func NewDefault(llm *LLM, md tools.MarketData, news, search tools.Tool, workers int) *Pipeline {
	return New(
		NewCollector(llm, tools.SymbolTools(md), news, workers),
		NewAnalyst(llm, search),
		NewAdvisor(llm, search),
	)
}

// Run 依次执行每个阶段，上一阶段的输出作为下一阶段的输入
func (p *Pipeline) Run(ctx context.Context, symbol string, progress ProgressFunc) (*Transcript, error) {
	t := &Transcript{}
	input := ""
	total := len(p.stages)

	for i, stage := range p.stages {
		role := stage.Role().Name
		if progress != nil {
			progress(fmt.Sprintf("running %s", role), i*100/(total+1))
		}
		logger.Log.Infof("阶段开始: %s [%s]", role, symbol)

		out, err := stage.Run(ctx, symbol, input)
		if err != nil {
			logger.Log.Errorf("阶段失败: %s [%s]: %v", role, symbol, err)
			return nil, &StageError{Role: role, Err: err}
		}

		t.Outputs = append(t.Outputs, model.StageOutput{Role: role, Text: out})
		input = out
	}

	if progress != nil {
		progress("pipeline completed", total*100/(total+1))
	}
	return t, nil
}
