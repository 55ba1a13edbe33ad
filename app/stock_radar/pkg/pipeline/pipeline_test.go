package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/stock_radar/app/stock_radar/pkg/search"
	"github.com/iWorld-y/stock_radar/app/stock_radar/pkg/tools"
)

// fakeChatModel 按 system prompt 中的角色名返回预设结果
type fakeChatModel struct {
	mu      sync.Mutex
	reply   func(system, user string) (string, error)
	systems []string
	users   []string
}

func (f *fakeChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	system, user := input[0].Content, input[1].Content
	f.mu.Lock()
	f.systems = append(f.systems, system)
	f.users = append(f.users, user)
	f.mu.Unlock()

	text, err := f.reply(system, user)
	if err != nil {
		return nil, err
	}
	return schema.AssistantMessage(text, nil), nil
}

func (f *fakeChatModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not supported")
}

func (f *fakeChatModel) calledRoles() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var roles []string
	for _, s := range f.systems {
		for _, r := range []Role{CollectorRole, AnalystRole, AdvisorRole} {
			if strings.Contains(s, r.Name) {
				roles = append(roles, r.Name)
			}
		}
	}
	return roles
}

func byRole(replies map[string]string, fail map[string]error) func(system, user string) (string, error) {
	return func(system, _ string) (string, error) {
		for role, err := range fail {
			if strings.Contains(system, role) {
				return "", err
			}
		}
		for role, text := range replies {
			if strings.Contains(system, role) {
				return text, nil
			}
		}
		return "", fmt.Errorf("unexpected system prompt: %s", system)
	}
}

// slowTool 记录并发度
type slowTool struct {
	name    string
	delay   time.Duration
	active  *int32
	peak    *int32
	invoked int32
}

func (s *slowTool) Name() string        { return s.name }
func (s *slowTool) Description() string { return s.name }

func (s *slowTool) Invoke(_ context.Context, input string) string {
	n := atomic.AddInt32(s.active, 1)
	for {
		p := atomic.LoadInt32(s.peak)
		if n <= p || atomic.CompareAndSwapInt32(s.peak, p, n) {
			break
		}
	}
	time.Sleep(s.delay)
	atomic.AddInt32(s.active, -1)
	atomic.AddInt32(&s.invoked, 1)
	return s.name + " result for " + input
}

func TestPipeline_RunsStagesInOrder(t *testing.T) {
	cm := &fakeChatModel{reply: byRole(map[string]string{
		CollectorRole.Name: "collected: price 10",
		AnalystRole.Name:   "analysis: healthy",
		AdvisorRole.Name:   "Recommendation: BUY",
	}, nil)}
	llm := NewLLM(cm, nil, 0)
	p := New(NewCollector(llm, nil, nil, 2), NewAnalyst(llm, nil), NewAdvisor(llm, nil))

	var statuses []string
	tr, err := p.Run(context.Background(), "ABC", func(status string, _ int) {
		statuses = append(statuses, status)
	})
	require.NoError(t, err)

	assert.Equal(t, []string{CollectorRole.Name, AnalystRole.Name, AdvisorRole.Name}, cm.calledRoles())
	assert.Equal(t, "Recommendation: BUY", tr.Final())
	assert.Equal(t, "analysis: healthy", tr.ByRole()[AnalystRole.Name])
	assert.Contains(t, tr.Full(), "## Financial Data Collector\n\ncollected: price 10")
	assert.Len(t, statuses, 4)

	// Analyst 只看到 Collector 的输出，Advisor 只看到 Analyst 的输出
	assert.Contains(t, cm.users[1], "collected: price 10")
	assert.Contains(t, cm.users[2], "analysis: healthy")
	assert.NotContains(t, cm.users[2], "collected: price 10")
}

func TestPipeline_AnalystFailureSkipsAdvisor(t *testing.T) {
	cm := &fakeChatModel{reply: byRole(map[string]string{
		CollectorRole.Name: "collected",
		AdvisorRole.Name:   "Recommendation: SELL",
	}, map[string]error{AnalystRole.Name: errors.New("model overloaded")})}
	llm := NewLLM(cm, nil, 0)
	p := New(NewCollector(llm, nil, nil, 1), NewAnalyst(llm, nil), NewAdvisor(llm, nil))

	tr, err := p.Run(context.Background(), "ABC", nil)
	assert.Nil(t, tr)
	require.Error(t, err)

	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, AnalystRole.Name, se.Role)
	assert.Contains(t, err.Error(), "model overloaded")
	assert.Equal(t, []string{CollectorRole.Name, AnalystRole.Name}, cm.calledRoles())
}

func TestCollector_WaitsForAllTools(t *testing.T) {
	var active, peak int32
	var toolList []*slowTool
	for i := 0; i < 5; i++ {
		toolList = append(toolList, &slowTool{
			name:   fmt.Sprintf("tool_%d", i),
			delay:  time.Duration(5*(5-i)) * time.Millisecond,
			active: &active,
			peak:   &peak,
		})
	}
	webSearch := &slowTool{name: "web_search", delay: time.Millisecond, active: &active, peak: &peak}

	cm := &fakeChatModel{reply: func(_, user string) (string, error) {
		for _, tl := range toolList {
			if atomic.LoadInt32(&tl.invoked) != 1 {
				return "", fmt.Errorf("%s not finished", tl.name)
			}
		}
		return "summary", nil
	}}

	toolset := make([]tools.Tool, 0, len(toolList))
	for _, tl := range toolList {
		toolset = append(toolset, tl)
	}
	c := NewCollector(NewLLM(cm, nil, 0), toolset, webSearch, 2)

	out, err := c.Run(context.Background(), "XYZ", "")
	require.NoError(t, err)
	assert.Equal(t, "summary", out)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))

	require.Len(t, cm.users, 1)
	for _, tl := range toolList {
		assert.Contains(t, cm.users[0], tl.name+" result for XYZ")
	}
	assert.Contains(t, cm.users[0], "web_search result for XYZ stock")
}

type recordingSearcher struct {
	mu   sync.Mutex
	reqs []*search.Request
}

func (r *recordingSearcher) Search(_ context.Context, req *search.Request) (*search.Response, error) {
	r.mu.Lock()
	r.reqs = append(r.reqs, req)
	r.mu.Unlock()
	return &search.Response{Results: []search.Result{{Title: "headline"}}}, nil
}

func TestCollector_SearchesRecentNews(t *testing.T) {
	s := &recordingSearcher{}
	web := tools.NewWebSearch(s, 3)
	cm := &fakeChatModel{reply: byRole(map[string]string{
		CollectorRole.Name: "summary",
		AnalystRole.Name:   "analysis",
	}, nil)}
	llm := NewLLM(cm, nil, 0)

	_, err := NewCollector(llm, nil, web.News(2), 1).Run(context.Background(), "XYZ", "")
	require.NoError(t, err)
	require.Len(t, s.reqs, 1)

	req := s.reqs[0]
	assert.Equal(t, "XYZ stock latest news and price movement", req.Query)
	assert.Equal(t, "news", req.Topic)
	start, err := time.Parse(time.DateOnly, req.StartDate)
	require.NoError(t, err)
	end, err := time.Parse(time.DateOnly, req.EndDate)
	require.NoError(t, err)
	assert.Equal(t, 48*time.Hour, end.Sub(start))

	_, err = NewAnalyst(llm, web).Run(context.Background(), "XYZ", "summary")
	require.NoError(t, err)
	require.Len(t, s.reqs, 2)
	assert.Empty(t, s.reqs[1].Topic)
	assert.Empty(t, s.reqs[1].StartDate)
}

func TestLLM_RetriesOnRateLimit(t *testing.T) {
	var calls int32
	cm := &fakeChatModel{reply: func(_, _ string) (string, error) {
		if atomic.AddInt32(&calls, 1) < 3 {
			return "", errors.New("error, status code: 429, message: Too Many Requests")
		}
		return "  ok  ", nil
	}}
	llm := NewLLM(cm, nil, 3)
	llm.baseDelay = time.Millisecond

	out, err := llm.Generate(context.Background(), "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestLLM_GivesUpAfterMaxRetries(t *testing.T) {
	cm := &fakeChatModel{reply: func(_, _ string) (string, error) {
		return "", errors.New("429 too many requests")
	}}
	llm := NewLLM(cm, nil, 1)
	llm.baseDelay = time.Millisecond

	_, err := llm.Generate(context.Background(), "sys", "user")
	require.Error(t, err)
	assert.Len(t, cm.systems, 2)
}

func TestLLM_EmptyResponse(t *testing.T) {
	cm := &fakeChatModel{reply: func(_, _ string) (string, error) { return "   ", nil }}
	_, err := NewLLM(cm, nil, 0).Generate(context.Background(), "sys", "user")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

type nilChatModel struct{}

func (nilChatModel) Generate(context.Context, []*schema.Message, ...model.Option) (*schema.Message, error) {
	return nil, nil
}

func (nilChatModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, nil
}

func TestLLM_NilMessage(t *testing.T) {
	_, err := NewLLM(nilChatModel{}, nil, 0).Generate(context.Background(), "sys", "user")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestLLM_NonRetryableError(t *testing.T) {
	cm := &fakeChatModel{reply: func(_, _ string) (string, error) { return "", errors.New("401 unauthorized") }}
	_, err := NewLLM(cm, nil, 3).Generate(context.Background(), "sys", "user")
	require.Error(t, err)
	assert.Len(t, cm.systems, 1)
}
