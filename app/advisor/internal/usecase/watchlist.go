package usecase

import (
	"context"
	"fmt"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"golang.org/x/sync/errgroup"

	"github.com/iWorld-y/stock_radar/app/advisor/internal/domain"
	"github.com/iWorld-y/stock_radar/app/advisor/internal/repo"
	"github.com/iWorld-y/stock_radar/app/stock_radar/pkg/engine"
)

// WatchlistUseCase 自选股业务逻辑
type WatchlistUseCase struct {
	repo   repo.WatchlistRepo
	market MarketData
	log    *log.Helper
}

// NewWatchlistUseCase 创建自选股业务逻辑实例
func NewWatchlistUseCase(repo repo.WatchlistRepo, market MarketData, logger log.Logger) *WatchlistUseCase {
	return &WatchlistUseCase{repo: repo, market: market, log: log.NewHelper(logger)}
}

// List 返回自选股及当前行情
func (uc *WatchlistUseCase) List(ctx context.Context, userID string) ([]*domain.WatchItem, error) {
	symbols, err := uc.repo.ListSymbols(ctx, userID)
	if err != nil {
		return nil, err
	}

	items := make([]*domain.WatchItem, len(symbols))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(quoteWorkers)
	for i, symbol := range symbols {
		g.Go(func() error {
			items[i] = uc.describe(gctx, symbol)
			return nil
		})
	}
	_ = g.Wait()
	return items, nil
}

func (uc *WatchlistUseCase) describe(ctx context.Context, symbol string) *domain.WatchItem {
	s, err := uc.market.Snapshot(ctx, symbol)
	if err != nil {
		uc.log.Warnf("获取 %s 行情失败: %v", symbol, err)
		return &domain.WatchItem{Symbol: symbol, Error: err.Error()}
	}

	item := &domain.WatchItem{
		Symbol:             symbol,
		Name:               symbol,
		CurrentPrice:       s.CurrentPrice,
		PriceChange:        s.PriceChange,
		PriceChangePercent: s.PriceChangePercent,
		PERatio:            s.PERatio,
	}
	if s.Name != nil {
		item.Name = *s.Name
	}
	if s.Sector != nil {
		item.Sector = *s.Sector
	}
	return item
}

// Add 加入自选股，代码必须能查到行情
func (uc *WatchlistUseCase) Add(ctx context.Context, userID, symbol string) (string, error) {
	normalized, err := engine.NormalizeSymbol(symbol)
	if err != nil {
		return "", errors.BadRequest("INVALID_SYMBOL", "Stock symbol is required")
	}
	if _, err := uc.market.Snapshot(ctx, normalized); err != nil {
		uc.log.Infof("自选股代码校验失败 %s: %v", normalized, err)
		return "", errors.BadRequest("INVALID_SYMBOL", fmt.Sprintf("Invalid stock symbol: %s", normalized))
	}

	added, err := uc.repo.AddSymbol(ctx, userID, normalized)
	if err != nil {
		return "", err
	}
	if !added {
		return fmt.Sprintf("Stock %s already in watchlist", normalized), nil
	}
	return fmt.Sprintf("Stock %s added to watchlist", normalized), nil
}

// Remove 移除自选股
func (uc *WatchlistUseCase) Remove(ctx context.Context, userID, symbol string) (string, error) {
	normalized, err := engine.NormalizeSymbol(symbol)
	if err != nil {
		return "", errors.BadRequest("INVALID_SYMBOL", "Stock symbol is required")
	}
	if err := uc.repo.RemoveSymbol(ctx, userID, normalized); err != nil {
		return "", err
	}
	return fmt.Sprintf("Stock %s removed from watchlist", normalized), nil
}
