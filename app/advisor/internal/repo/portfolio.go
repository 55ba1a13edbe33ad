package repo

import (
	"context"

	"github.com/iWorld-y/stock_radar/app/advisor/internal/domain"
)

// PositionUpdater 根据当前持仓（不存在时为 nil）计算新持仓，返回 nil 表示删除
type PositionUpdater func(cur *domain.Position) (*domain.Position, error)

// PortfolioRepo 持仓仓库接口
type PortfolioRepo interface {
	// ListPositions 获取用户全部持仓，没有持仓时返回空列表
	ListPositions(ctx context.Context, userID string) ([]*domain.Position, error)
	// UpdatePosition 在同一事务内读取并改写一只股票的持仓
	UpdatePosition(ctx context.Context, userID, symbol string, fn PositionUpdater) error
}

// WatchlistRepo 自选股仓库接口
type WatchlistRepo interface {
	// ListSymbols 按加入顺序返回自选股
	ListSymbols(ctx context.Context, userID string) ([]string, error)
	// AddSymbol 加入自选股，已存在时返回 false
	AddSymbol(ctx context.Context, userID, symbol string) (bool, error)
	// RemoveSymbol 移除自选股，不存在时不报错
	RemoveSymbol(ctx context.Context, userID, symbol string) error
}
