package service

import (
	"context"
	"fmt"
	nethttp "net/http"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	authjwt "github.com/go-kratos/kratos/v2/middleware/auth/jwt"
	"github.com/go-kratos/kratos/v2/transport/http"
	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"

	"github.com/iWorld-y/stock_radar/app/advisor/internal/domain"
	"github.com/iWorld-y/stock_radar/app/advisor/internal/usecase"
	"github.com/iWorld-y/stock_radar/app/stock_radar/pkg/engine"
	"github.com/iWorld-y/stock_radar/app/stock_radar/pkg/model"
)

// Analyzer 单只股票分析，由 engine.Engine 实现
type Analyzer interface {
	Analyze(ctx context.Context, opts engine.RunOptions) (*model.AnalysisResult, error)
}

// AdvisorService 对外 HTTP 接口
type AdvisorService struct {
	analyzer  Analyzer
	portfolio *usecase.PortfolioUseCase
	watchlist *usecase.WatchlistUseCase
	log       *log.Helper
}

func NewAdvisorService(analyzer Analyzer, portfolio *usecase.PortfolioUseCase, watchlist *usecase.WatchlistUseCase, logger log.Logger) *AdvisorService {
	return &AdvisorService{
		analyzer:  analyzer,
		portfolio: portfolio,
		watchlist: watchlist,
		log:       log.NewHelper(logger),
	}
}

type structuredData struct {
	Symbol         string               `json:"symbol"`
	AnalysisDate   string               `json:"analysis_date"`
	Data           model.MarketData     `json:"data"`
	Analysis       map[string]string    `json:"analysis"`
	Recommendation model.Recommendation `json:"recommendation"`
}

type analyzeReply struct {
	StructuredData structuredData `json:"structured_data"`
	FullAnalysis   string         `json:"full_analysis"`
}

type messageReply struct {
	Message string `json:"message"`
}

type watchlistReply struct {
	Watchlist []*domain.WatchItem `json:"watchlist"`
}

type addPositionRequest struct {
	Symbol        string          `json:"symbol"`
	Shares        decimal.Decimal `json:"shares"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	PurchaseDate  string          `json:"purchase_date"`
	Notes         string          `json:"notes"`
}

type removePositionRequest struct {
	Symbol string          `json:"symbol"`
	Shares decimal.Decimal `json:"shares"`
}

type symbolRequest struct {
	Symbol string `json:"symbol"`
}

// serve 让 handler 经过 server 上注册的中间件（recovery、鉴权），然后以 200 输出 JSON
func serve(ctx http.Context, fn func(context.Context) (any, error)) error {
	h := ctx.Middleware(func(c context.Context, _ any) (any, error) {
		return fn(c)
	})
	out, err := h(ctx, nil)
	if err != nil {
		return err
	}
	return ctx.JSON(nethttp.StatusOK, out)
}

// identity 取 JWT 中的用户标识：优先 sub，其次 email
func identity(ctx context.Context) (string, error) {
	claims, ok := authjwt.FromContext(ctx)
	if !ok {
		return "", errors.Unauthorized("UNAUTHORIZED", "Missing authorization token")
	}
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		return sub, nil
	}
	if mc, ok := claims.(jwtv5.MapClaims); ok {
		if email, ok := mc["email"].(string); ok && email != "" {
			return email, nil
		}
	}
	return "", errors.Unauthorized("UNAUTHORIZED", "Token has no identity")
}

// Analyze GET /api/analyze/{symbol}
func (s *AdvisorService) Analyze(ctx http.Context) error {
	symbol := ctx.Vars().Get("symbol")
	return serve(ctx, func(c context.Context) (any, error) {
		res, err := s.analyzer.Analyze(c, engine.RunOptions{
			Symbol: symbol,
			ProgressCallback: func(status string, progress int) {
				s.log.Infof("[%s] %d%% %s", symbol, progress, status)
			},
		})
		if err != nil {
			return nil, analyzeError(symbol, err)
		}
		return &analyzeReply{
			StructuredData: structuredData{
				Symbol:         res.Symbol,
				AnalysisDate:   res.AnalysisDate,
				Data:           res.Data,
				Analysis:       res.Analysis,
				Recommendation: res.Recommendation,
			},
			FullAnalysis: res.FullAnalysis,
		}, nil
	})
}

func analyzeError(symbol string, err error) error {
	if errors.Is(err, engine.ErrInvalidSymbol) {
		return errors.BadRequest("INVALID_SYMBOL", fmt.Sprintf("Invalid stock symbol: %q", symbol))
	}
	var ae *engine.AnalysisError
	if errors.As(err, &ae) {
		err = ae.Err
	}
	return errors.InternalServer("ANALYSIS_FAILED", "Analysis failed: "+err.Error())
}

// GetPortfolio GET /api/portfolio
func (s *AdvisorService) GetPortfolio(ctx http.Context) error {
	return serve(ctx, func(c context.Context) (any, error) {
		user, err := identity(c)
		if err != nil {
			return nil, err
		}
		return s.portfolio.Get(c, user)
	})
}

// AddPosition POST /api/portfolio/add
func (s *AdvisorService) AddPosition(ctx http.Context) error {
	return serve(ctx, func(c context.Context) (any, error) {
		user, err := identity(c)
		if err != nil {
			return nil, err
		}
		var req addPositionRequest
		if err := ctx.Bind(&req); err != nil {
			return nil, err
		}
		err = s.portfolio.Add(c, user, &usecase.AddPositionRequest{
			Symbol:        req.Symbol,
			Shares:        req.Shares,
			PurchasePrice: req.PurchasePrice,
			PurchaseDate:  req.PurchaseDate,
			Notes:         req.Notes,
		})
		if err != nil {
			return nil, err
		}
		return &messageReply{Message: "Stock added to portfolio"}, nil
	})
}

// RemovePosition POST /api/portfolio/remove
func (s *AdvisorService) RemovePosition(ctx http.Context) error {
	return serve(ctx, func(c context.Context) (any, error) {
		user, err := identity(c)
		if err != nil {
			return nil, err
		}
		var req removePositionRequest
		if err := ctx.Bind(&req); err != nil {
			return nil, err
		}
		if err := s.portfolio.Remove(c, user, req.Symbol, req.Shares); err != nil {
			return nil, err
		}
		symbol, _ := engine.NormalizeSymbol(req.Symbol)
		return &messageReply{Message: fmt.Sprintf("Stock %s updated in portfolio", symbol)}, nil
	})
}

// GetWatchlist GET /api/watchlist
func (s *AdvisorService) GetWatchlist(ctx http.Context) error {
	return serve(ctx, func(c context.Context) (any, error) {
		user, err := identity(c)
		if err != nil {
			return nil, err
		}
		items, err := s.watchlist.List(c, user)
		if err != nil {
			return nil, err
		}
		return &watchlistReply{Watchlist: items}, nil
	})
}

// AddWatch POST /api/watchlist/add
func (s *AdvisorService) AddWatch(ctx http.Context) error {
	return serve(ctx, func(c context.Context) (any, error) {
		user, err := identity(c)
		if err != nil {
			return nil, err
		}
		var req symbolRequest
		if err := ctx.Bind(&req); err != nil {
			return nil, err
		}
		msg, err := s.watchlist.Add(c, user, req.Symbol)
		if err != nil {
			return nil, err
		}
		return &messageReply{Message: msg}, nil
	})
}

// RemoveWatch POST /api/watchlist/remove
func (s *AdvisorService) RemoveWatch(ctx http.Context) error {
	return serve(ctx, func(c context.Context) (any, error) {
		user, err := identity(c)
		if err != nil {
			return nil, err
		}
		var req symbolRequest
		if err := ctx.Bind(&req); err != nil {
			return nil, err
		}
		msg, err := s.watchlist.Remove(c, user, req.Symbol)
		if err != nil {
			return nil, err
		}
		return &messageReply{Message: msg}, nil
	})
}
