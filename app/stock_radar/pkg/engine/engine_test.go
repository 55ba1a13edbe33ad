package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/stock_radar/app/stock_radar/pkg/market"
	dm "github.com/iWorld-y/stock_radar/app/stock_radar/pkg/model"
	"github.com/iWorld-y/stock_radar/app/stock_radar/pkg/pipeline"
)

type fakeMarket struct {
	mu      sync.Mutex
	quote   *dm.Quote
	snap    *dm.CompanySnapshot
	news    []dm.NewsItem
	err     error
	symbols []string
}

func (f *fakeMarket) record(symbol string) {
	f.mu.Lock()
	f.symbols = append(f.symbols, symbol)
	f.mu.Unlock()
}

func (f *fakeMarket) Quote(_ context.Context, symbol string) (*dm.Quote, error) {
	f.record(symbol)
	if f.err != nil {
		return nil, f.err
	}
	return f.quote, nil
}

func (f *fakeMarket) Snapshot(_ context.Context, symbol string) (*dm.CompanySnapshot, error) {
	f.record(symbol)
	if f.err != nil {
		return nil, f.err
	}
	return f.snap, nil
}

func (f *fakeMarket) Statement(_ context.Context, symbol string, _ dm.StatementKind) (dm.FinancialStatement, error) {
	f.record(symbol)
	if f.err != nil {
		return nil, f.err
	}
	return dm.FinancialStatement{"2024-12-31": {"totalRevenue": 1.0}}, nil
}

func (f *fakeMarket) News(_ context.Context, symbol string, limit int) ([]dm.NewsItem, error) {
	f.record(symbol)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.news) > limit {
		return f.news[:limit], nil
	}
	return f.news, nil
}

type fakeChatModel struct {
	reply func(system string) (string, error)
}

func (f *fakeChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	text, err := f.reply(input[0].Content)
	if err != nil {
		return nil, err
	}
	return schema.AssistantMessage(text, nil), nil
}

func (f *fakeChatModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not supported")
}

func roleReplies(advisor string, analystErr error) func(string) (string, error) {
	return func(system string) (string, error) {
		switch {
		case strings.Contains(system, pipeline.CollectorRole.Name):
			return "Price 180.00, revenue growing", nil
		case strings.Contains(system, pipeline.AnalystRole.Name):
			if analystErr != nil {
				return "", analystErr
			}
			return "Healthy balance sheet, fair valuation", nil
		default:
			return advisor, nil
		}
	}
}

func ptr[T any](v T) *T { return &v }

func newTestEngine(md *fakeMarket, cm *fakeChatModel, timeout time.Duration) *Engine {
	llm := pipeline.NewLLM(cm, nil, 0)
	e := New(pipeline.NewDefault(llm, md, nil, nil, 2), md, timeout)
	e.now = func() time.Time { return time.Date(2025, 3, 7, 10, 0, 0, 0, time.UTC) }
	return e
}

func TestAnalyze_EndToEnd(t *testing.T) {
	md := &fakeMarket{
		quote: &dm.Quote{Symbol: "ABC", Price: 180, Change: ptr(1.5)},
		snap:  &dm.CompanySnapshot{Name: ptr("ABC Corp"), Sector: ptr("Technology"), PERatio: ptr(22.5)},
		news: []dm.NewsItem{
			{Title: "n1", PublishedAt: time.Date(2025, 3, 6, 9, 0, 0, 0, time.UTC)},
			{Title: "n2"}, {Title: "n3"}, {Title: "n4"}, {Title: "n5"}, {Title: "n6"},
		},
	}
	advisor := "Recommendation: BUY\nTarget Price: $200.00\nTime Horizon: Long-term\nRisks: competition"
	e := newTestEngine(md, &fakeChatModel{reply: roleReplies(advisor, nil)}, time.Minute)

	var statuses []string
	res, err := e.Analyze(context.Background(), RunOptions{
		Symbol:           "abc",
		ProgressCallback: func(status string, _ int) { statuses = append(statuses, status) },
	})
	require.NoError(t, err)

	assert.Equal(t, "ABC", res.Symbol)
	assert.Equal(t, "07-Mar-2025", res.AnalysisDate)
	assert.Equal(t, dm.ActionBuy, res.Recommendation.Action)
	require.NotNil(t, res.Recommendation.TargetPrice)
	assert.Equal(t, 200.0, *res.Recommendation.TargetPrice)
	assert.Equal(t, dm.HorizonLong, res.Recommendation.TimeHorizon)

	require.NotNil(t, res.Data.CurrentPrice)
	assert.Equal(t, 180.0, *res.Data.CurrentPrice)
	assert.Equal(t, "ABC Corp", *res.Data.CompanyName)
	assert.Len(t, res.Data.News, DirectNewsLimit)
	assert.Equal(t, "2025-03-06", res.Data.News[0].PublishedDate)

	assert.Len(t, res.Analysis, 3)
	assert.Contains(t, res.FullAnalysis, "Healthy balance sheet")
	assert.Contains(t, res.FullAnalysis, "Target Price: $200.00")

	for _, s := range md.symbols {
		assert.Equal(t, "ABC", s)
	}
	assert.Equal(t, "starting", statuses[0])
	assert.Equal(t, "completed", statuses[len(statuses)-1])
}

func TestAnalyze_InvalidSymbol(t *testing.T) {
	md := &fakeMarket{}
	e := newTestEngine(md, &fakeChatModel{reply: roleReplies("", nil)}, time.Minute)

	for _, symbol := range []string{"", "   ", "AB C", "abc/../x", strings.Repeat("A", 30)} {
		_, err := e.Analyze(context.Background(), RunOptions{Symbol: symbol})
		assert.ErrorIs(t, err, ErrInvalidSymbol, symbol)
	}
	assert.Empty(t, md.symbols)
}

func TestNormalizeSymbol(t *testing.T) {
	for in, want := range map[string]string{
		"aapl":        "AAPL",
		" brk-b ":     "BRK-B",
		"reliance.ns": "RELIANCE.NS",
		"^gspc":       "^GSPC",
		"eurusd=x":    "EURUSD=X",
	} {
		got, err := NormalizeSymbol(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
}

func TestAnalyze_AnalystFailure(t *testing.T) {
	md := &fakeMarket{quote: &dm.Quote{Price: 1}}
	advisorCalled := false
	cm := &fakeChatModel{reply: func(system string) (string, error) {
		if strings.Contains(system, pipeline.AdvisorRole.Name) {
			advisorCalled = true
		}
		return roleReplies("Recommendation: SELL", errors.New("context length exceeded"))(system)
	}}
	e := newTestEngine(md, cm, time.Minute)

	res, err := e.Analyze(context.Background(), RunOptions{Symbol: "abc"})
	assert.Nil(t, res)
	require.Error(t, err)

	var ae *AnalysisError
	require.True(t, errors.As(err, &ae))
	var se *pipeline.StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, pipeline.AnalystRole.Name, se.Role)
	assert.Contains(t, err.Error(), "analysis failed: ")
	assert.Contains(t, err.Error(), "context length exceeded")
	assert.False(t, advisorCalled)
}

func TestAnalyze_MarketDataFailureIsSwallowed(t *testing.T) {
	md := &fakeMarket{err: &market.Unavailable{Symbol: "ABC", What: "quote", Reason: "down"}}
	e := newTestEngine(md, &fakeChatModel{reply: roleReplies("Recommendation: HOLD", nil)}, time.Minute)

	res, err := e.Analyze(context.Background(), RunOptions{Symbol: "ABC"})
	require.NoError(t, err)
	assert.Equal(t, "ABC", res.Data.Symbol)
	assert.Nil(t, res.Data.CurrentPrice)
	assert.Nil(t, res.Data.CompanyName)
	assert.Empty(t, res.Data.News)
	assert.Equal(t, dm.ActionHold, res.Recommendation.Action)
}

type blockingRunner struct {
	release chan struct{}
}

// Run 忽略 ctx，模拟不响应取消的上游
func (b *blockingRunner) Run(context.Context, string, pipeline.ProgressFunc) (*pipeline.Transcript, error) {
	<-b.release
	return &pipeline.Transcript{}, nil
}

func TestAnalyze_Timeout(t *testing.T) {
	r := &blockingRunner{release: make(chan struct{})}
	defer close(r.release)
	e := New(r, &fakeMarket{}, 20*time.Millisecond)

	start := time.Now()
	_, err := e.Analyze(context.Background(), RunOptions{Symbol: "ABC"})
	assert.ErrorIs(t, err, ErrAnalysisTimeout)
	assert.Less(t, time.Since(start), time.Second)
}

type panicRunner struct{}

func (panicRunner) Run(context.Context, string, pipeline.ProgressFunc) (*pipeline.Transcript, error) {
	panic("nil pointer")
}

func TestAnalyze_PipelinePanic(t *testing.T) {
	e := New(panicRunner{}, &fakeMarket{}, time.Minute)
	_, err := e.Analyze(context.Background(), RunOptions{Symbol: "ABC"})
	var ae *AnalysisError
	require.True(t, errors.As(err, &ae))
	assert.Contains(t, err.Error(), "pipeline panic: nil pointer")
}

type fixedRunner struct {
	final string
}

func (f fixedRunner) Run(context.Context, string, pipeline.ProgressFunc) (*pipeline.Transcript, error) {
	return &pipeline.Transcript{Outputs: []dm.StageOutput{{Role: pipeline.AdvisorRole.Name, Text: f.final}}}, nil
}

// stuckMarket 报价接口忽略 ctx 一直阻塞
type stuckMarket struct {
	fakeMarket
	release chan struct{}
}

func (s *stuckMarket) Quote(context.Context, string) (*dm.Quote, error) {
	<-s.release
	return &dm.Quote{Price: 1}, nil
}

func TestAnalyze_MarketDataBoundByTimeout(t *testing.T) {
	md := &stuckMarket{release: make(chan struct{})}
	defer close(md.release)
	e := New(fixedRunner{final: "Recommendation: BUY"}, md, 50*time.Millisecond)

	start := time.Now()
	res, err := e.Analyze(context.Background(), RunOptions{Symbol: "ABC"})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrAnalysisTimeout)
	assert.Less(t, time.Since(start), time.Second)
}

// nilMarket 返回 (nil, nil)
type nilMarket struct {
	fakeMarket
}

func (*nilMarket) Quote(context.Context, string) (*dm.Quote, error) {
	return nil, nil
}

func (*nilMarket) Snapshot(context.Context, string) (*dm.CompanySnapshot, error) {
	return nil, nil
}

func TestAnalyze_NilMarketResults(t *testing.T) {
	e := New(fixedRunner{final: "Recommendation: HOLD"}, &nilMarket{}, time.Minute)

	res, err := e.Analyze(context.Background(), RunOptions{Symbol: "abc"})
	require.NoError(t, err)
	assert.Equal(t, "ABC", res.Data.Symbol)
	assert.Nil(t, res.Data.CurrentPrice)
	assert.Nil(t, res.Data.CompanyName)
	assert.Equal(t, dm.ActionHold, res.Recommendation.Action)
}

type emptyRunner struct{}

func (emptyRunner) Run(context.Context, string, pipeline.ProgressFunc) (*pipeline.Transcript, error) {
	return nil, nil
}

func TestAnalyze_NoTranscript(t *testing.T) {
	_, err := New(emptyRunner{}, &fakeMarket{}, time.Minute).Analyze(context.Background(), RunOptions{Symbol: "ABC"})
	var ae *AnalysisError
	require.True(t, errors.As(err, &ae))
}
