package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/iWorld-y/stock_radar/app/advisor/internal/domain"
	"github.com/iWorld-y/stock_radar/app/advisor/internal/repo"
	"github.com/iWorld-y/stock_radar/app/stock_radar/pkg/engine"
	"github.com/iWorld-y/stock_radar/app/stock_radar/pkg/model"
)

// quoteWorkers 估值时并发查询报价的数量
const quoteWorkers = 4

var hundred = decimal.NewFromInt(100)

// MarketData 持仓和自选股用到的行情接口，由 market.Gateway 实现
type MarketData interface {
	Quote(ctx context.Context, symbol string) (*model.Quote, error)
	Snapshot(ctx context.Context, symbol string) (*model.CompanySnapshot, error)
}

// AddPositionRequest 买入请求
type AddPositionRequest struct {
	Symbol        string
	Shares        decimal.Decimal
	PurchasePrice decimal.Decimal
	PurchaseDate  string
	Notes         string
}

// PortfolioUseCase 持仓业务逻辑
type PortfolioUseCase struct {
	repo   repo.PortfolioRepo
	market MarketData
	log    *log.Helper
	now    func() time.Time
}

// NewPortfolioUseCase 创建持仓业务逻辑实例
func NewPortfolioUseCase(repo repo.PortfolioRepo, market MarketData, logger log.Logger) *PortfolioUseCase {
	return &PortfolioUseCase{
		repo:   repo,
		market: market,
		log:    log.NewHelper(logger),
		now:    time.Now,
	}
}

// Get 按现价估值用户持仓。单只股票取价失败只影响它自己的估值字段
func (uc *PortfolioUseCase) Get(ctx context.Context, userID string) (*domain.PortfolioView, error) {
	positions, err := uc.repo.ListPositions(ctx, userID)
	if err != nil {
		return nil, err
	}

	prices := make([]*decimal.Decimal, len(positions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(quoteWorkers)
	for i, p := range positions {
		g.Go(func() error {
			q, err := uc.market.Quote(gctx, p.Symbol)
			if err != nil {
				uc.log.Warnf("获取 %s 报价失败: %v", p.Symbol, err)
				return nil
			}
			price := decimal.NewFromFloat(q.Price)
			prices[i] = &price
			return nil
		})
	}
	_ = g.Wait()

	view := &domain.PortfolioView{Portfolio: make([]*domain.PositionView, 0, len(positions))}
	var totalValue, totalInvested, totalGain decimal.Decimal
	for i, p := range positions {
		pv := &domain.PositionView{
			Symbol:        p.Symbol,
			Shares:        p.Shares.InexactFloat64(),
			PurchasePrice: p.PurchasePrice.InexactFloat64(),
			PurchaseDate:  p.PurchaseDate,
			Notes:         p.Notes,
		}
		totalInvested = totalInvested.Add(p.Invested())

		if price := prices[i]; price != nil {
			value := price.Mul(p.Shares)
			gain := price.Sub(p.PurchasePrice).Mul(p.Shares)
			pct := decimal.Zero
			if p.PurchasePrice.IsPositive() {
				pct = price.Div(p.PurchasePrice).Sub(decimal.NewFromInt(1)).Mul(hundred)
			}
			pv.CurrentPrice = floatPtr(*price)
			pv.CurrentValue = floatPtr(value)
			pv.GainLoss = floatPtr(gain)
			pv.GainLossPercentage = floatPtr(pct)
			totalValue = totalValue.Add(value)
			totalGain = totalGain.Add(gain)
		}
		view.Portfolio = append(view.Portfolio, pv)
	}
	view.TotalValue = totalValue.InexactFloat64()
	view.TotalInvested = totalInvested.InexactFloat64()
	view.TotalGainLoss = totalGain.InexactFloat64()
	return view, nil
}

// Add 买入。已持有时合并股数并按加权平均重算买入价
func (uc *PortfolioUseCase) Add(ctx context.Context, userID string, req *AddPositionRequest) error {
	symbol, err := engine.NormalizeSymbol(req.Symbol)
	if err != nil {
		return errors.BadRequest("INVALID_SYMBOL", fmt.Sprintf("Invalid stock symbol: %s", req.Symbol))
	}
	if !req.Shares.IsPositive() || !req.PurchasePrice.IsPositive() {
		return errors.BadRequest("MISSING_FIELDS", "Missing required fields")
	}

	return uc.repo.UpdatePosition(ctx, userID, symbol, func(cur *domain.Position) (*domain.Position, error) {
		if cur == nil {
			date := req.PurchaseDate
			if date == "" {
				date = uc.now().Format(time.RFC3339)
			}
			return &domain.Position{
				Symbol:        symbol,
				Shares:        req.Shares,
				PurchasePrice: req.PurchasePrice,
				PurchaseDate:  date,
				Notes:         req.Notes,
			}, nil
		}

		total := cur.Shares.Add(req.Shares)
		cost := cur.Invested().Add(req.Shares.Mul(req.PurchasePrice))
		merged := *cur
		merged.Shares = total
		merged.PurchasePrice = cost.Div(total)
		uc.log.Infof("合并持仓 %s: %s 股, 均价 %s", symbol, total, merged.PurchasePrice.StringFixed(4))
		return &merged, nil
	})
}

// Remove 卖出。shares <= 0 或不少于持有股数时清仓
func (uc *PortfolioUseCase) Remove(ctx context.Context, userID, symbol string, shares decimal.Decimal) error {
	normalized, err := engine.NormalizeSymbol(symbol)
	if err != nil {
		return errors.BadRequest("INVALID_SYMBOL", "Stock symbol is required")
	}

	return uc.repo.UpdatePosition(ctx, userID, normalized, func(cur *domain.Position) (*domain.Position, error) {
		if cur == nil {
			return nil, errors.NotFound("POSITION_NOT_FOUND", fmt.Sprintf("Stock %s not found in portfolio", normalized))
		}
		if !shares.IsPositive() || shares.GreaterThanOrEqual(cur.Shares) {
			return nil, nil
		}
		reduced := *cur
		reduced.Shares = cur.Shares.Sub(shares)
		return &reduced, nil
	})
}

func floatPtr(d decimal.Decimal) *float64 {
	f := d.InexactFloat64()
	return &f
}
