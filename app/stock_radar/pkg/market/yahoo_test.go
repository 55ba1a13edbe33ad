package market

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	finance "github.com/piquette/finance-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/stock_radar/app/stock_radar/pkg/model"
)

const quoteSummaryBody = `{"quoteSummary":{"result":[{
  "price":{"maxAge":1,"regularMarketPrice":{"raw":187.5,"fmt":"187.50"},"regularMarketChange":{"raw":2.1,"fmt":"2.10"},"shortName":"Apple Inc.","symbol":"AAPL","currency":"USD"},
  "summaryDetail":{"trailingPE":{"raw":29.4,"fmt":"29.40"},"dividendYield":{},"fiftyTwoWeekLow":{"raw":164.1}},
  "assetProfile":{"sector":"Technology","industry":"Consumer Electronics","companyOfficers":[{"name":"x"}]},
  "financialData":{"currentPrice":{"raw":187.4}}
}],"error":null}}`

const statementBody = `{"quoteSummary":{"result":[{
  "incomeStatementHistory":{"incomeStatementHistory":[
    {"maxAge":1,"endDate":{"raw":1727654400,"fmt":"2024-09-30"},"totalRevenue":{"raw":391035000000,"fmt":"391.04B"},"netIncome":{"raw":93736000000}},
    {"endDate":{"raw":1696032000,"fmt":"2023-09-30"},"totalRevenue":{"raw":383285000000}}
  ]}
}],"error":null}}`

const searchBody = `{"news":[
  {"title":"Apple beats","publisher":"Reuters","link":"https://example.com/a","providerPublishTime":1735689600,"type":"STORY","relatedTickers":["AAPL"]}
]}`

func newYahooServer(t *testing.T, crumbCalls *int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "A3", Value: "session"})
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/v1/test/getcrumb", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(crumbCalls, 1)
		_, _ = w.Write([]byte("crumb123"))
	})
	mux.HandleFunc("/v10/finance/quoteSummary/AAPL", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("crumb") != "crumb123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Query().Get("modules") == "incomeStatementHistory" {
			_, _ = w.Write([]byte(statementBody))
			return
		}
		_, _ = w.Write([]byte(quoteSummaryBody))
	})
	mux.HandleFunc("/v10/finance/quoteSummary/BAD", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"quoteSummary":{"result":null,"error":{"code":"Not Found","description":"Quote not found for symbol: BAD"}}}`))
	})
	mux.HandleFunc("/v1/finance/search", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "AAPL", r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(searchBody))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestYahooProvider_Info(t *testing.T) {
	var crumbCalls int32
	srv := newYahooServer(t, &crumbCalls)
	p := NewYahooProvider("", 5*time.Second, WithYahooBaseURL(srv.URL))

	info, err := p.Info(context.Background(), "AAPL")
	require.NoError(t, err)

	price, ok := PriceFields.Float(info)
	require.True(t, ok)
	assert.Equal(t, 187.4, price)
	assert.Equal(t, "Technology", info["sector"])
	assert.Equal(t, 29.4, info["trailingPE"])
	_, hasYield := info["dividendYield"]
	assert.False(t, hasYield)
	_, hasOfficers := info["companyOfficers"]
	assert.False(t, hasOfficers)

	_, err = p.Info(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&crumbCalls))
}

func TestYahooProvider_InfoError(t *testing.T) {
	var crumbCalls int32
	srv := newYahooServer(t, &crumbCalls)
	p := NewYahooProvider("", 5*time.Second, WithYahooBaseURL(srv.URL))

	_, err := p.Info(context.Background(), "BAD")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Quote not found")
}

func TestYahooProvider_Statement(t *testing.T) {
	var crumbCalls int32
	srv := newYahooServer(t, &crumbCalls)
	p := NewYahooProvider("", 5*time.Second, WithYahooBaseURL(srv.URL))

	st, err := p.Statement(context.Background(), "AAPL", model.IncomeStatement)
	require.NoError(t, err)
	require.Len(t, st, 2)
	assert.Equal(t, 391035000000.0, st["2024-09-30"]["totalRevenue"])
	_, hasEnd := st["2024-09-30"]["endDate"]
	assert.False(t, hasEnd)
}

func TestYahooProvider_News(t *testing.T) {
	var crumbCalls int32
	srv := newYahooServer(t, &crumbCalls)
	p := NewYahooProvider("", 5*time.Second, WithYahooBaseURL(srv.URL))

	items, err := p.News(context.Background(), "AAPL", 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Apple beats", items[0].Title)
	assert.Equal(t, "Reuters", items[0].Publisher)
	assert.Equal(t, []string{"AAPL"}, items[0].RelatedSymbols)
	assert.Equal(t, int64(1735689600), items[0].PublishedAt.Unix())
}

func TestYahooProvider_ThroughGateway(t *testing.T) {
	var crumbCalls int32
	srv := newYahooServer(t, &crumbCalls)
	g := NewGateway([]Provider{NewYahooProvider("", 5*time.Second, WithYahooBaseURL(srv.URL))})

	s, err := g.Snapshot(context.Background(), "aapl")
	require.NoError(t, err)
	require.NotNil(t, s.Name)
	assert.Equal(t, "Apple Inc.", *s.Name)
	require.NotNil(t, s.FiftyTwoWeekLow)
	assert.Equal(t, 164.1, *s.FiftyTwoWeekLow)
	assert.Nil(t, s.DividendYield)
}

func TestFinanceGoProvider_Info(t *testing.T) {
	q := &finance.Quote{Symbol: "MSFT", ShortName: "Microsoft", RegularMarketPrice: 410.2}
	p := &FinanceGoProvider{get: func(string) (*finance.Quote, error) { return q, nil }}

	info, err := p.Info(context.Background(), "MSFT")
	require.NoError(t, err)
	price, ok := PriceFields.Float(info)
	require.True(t, ok)
	assert.Equal(t, 410.2, price)
	_, hasChange := info["regularMarketChange"]
	assert.False(t, hasChange)

	_, err = p.Statement(context.Background(), "MSFT", model.BalanceSheet)
	assert.True(t, errors.Is(err, ErrNotSupported))
}

func TestFinanceGoProvider_NilQuote(t *testing.T) {
	p := &FinanceGoProvider{get: func(string) (*finance.Quote, error) { return nil, nil }}
	_, err := p.Info(context.Background(), "NONE")
	require.Error(t, err)
}
